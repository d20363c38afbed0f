package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/reglet-dev/scriptnet/domain/errors"
)

func TestFetch_OK(t *testing.T) {
	a := newTestApp(t)
	url := newStub(t)

	var out, errOut bytes.Buffer
	err := a.fetch(testContext(t), &out, &errOut, url+"/ok", &fetchOptions{method: "GET", include: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out.String())
	assert.Equal(t, "status: 200\n", errOut.String())
}

func TestFetch_HTTPErrorFails(t *testing.T) {
	a := newTestApp(t)
	url := newStub(t)

	var out bytes.Buffer
	err := a.fetch(testContext(t), &out, &bytes.Buffer{}, url+"/status/404?body=missing", &fetchOptions{method: "GET"})
	require.Error(t, err)
	assert.Equal(t, "HTTP error 404", err.Error())
	assert.Equal(t, "missing", out.String(), "the body is still printed")
}

func TestFetch_PostWithHeadersAndBody(t *testing.T) {
	a := newTestApp(t)
	url := newStub(t)

	var out bytes.Buffer
	err := a.fetch(testContext(t), &out, &bytes.Buffer{}, url+"/echo", &fetchOptions{
		method:  "POST",
		headers: []string{"X-Trace: abc"},
		data:    "hello",
	})
	require.NoError(t, err)

	var echo struct {
		Headers map[string]string `json:"headers"`
		Method  string            `json:"method"`
		Body    string            `json:"body"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &echo))
	assert.Equal(t, "POST", echo.Method)
	assert.Equal(t, "hello", echo.Body)
	assert.Equal(t, "abc", echo.Headers["X-Trace"])
	assert.Equal(t, "scriptnet/dev", echo.Headers["User-Agent"])
}

func TestFetch_BodyFromFile(t *testing.T) {
	a := newTestApp(t)
	url := newStub(t)
	path := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o600))

	var out bytes.Buffer
	err := a.fetch(testContext(t), &out, &bytes.Buffer{}, url+"/echo", &fetchOptions{method: "PUT", data: "@" + path})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"body":"from file"`)
}

func TestFetch_RejectedSynchronously(t *testing.T) {
	a := newTestApp(t)

	err := a.fetch(testContext(t), &bytes.Buffer{}, &bytes.Buffer{}, "ftp://example.com/", &fetchOptions{method: "GET"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domerrors.ErrValidation))
}

func TestFetch_BadHeader(t *testing.T) {
	a := newTestApp(t)

	err := a.fetch(testContext(t), &bytes.Buffer{}, &bytes.Buffer{}, "http://example.com/", &fetchOptions{headers: []string{"nocolon"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid header")
}

func TestFetch_SSRFProtectionBlocksLoopback(t *testing.T) {
	a := newTestApp(t)
	a.cfg.Network.SSRFProtection = true
	url := newStub(t)

	err := a.fetch(testContext(t), &bytes.Buffer{}, &bytes.Buffer{}, url+"/ok", &fetchOptions{method: "GET"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "localhost")
}
