package guest

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/scriptnet/hostfuncs"
	"github.com/reglet-dev/scriptnet/log"
)

// fakeHost replaces the host imports for one test.
func fakeHost(t *testing.T, fn func(name string, payload []byte) []byte) {
	t.Helper()
	prevCall, prevLog := hostCall, hostLog
	hostCall = fn
	t.Cleanup(func() {
		hostCall, hostLog = prevCall, prevLog
		callbacks.Lock()
		clear(callbacks.byName)
		callbacks.Unlock()
	})
}

func TestFetch_RegistersCallback(t *testing.T) {
	var sent hostfuncs.HTTPRequest
	fakeHost(t, func(name string, payload []byte) []byte {
		require.Equal(t, "http_request", name)
		require.NoError(t, json.Unmarshal(payload, &sent))
		return []byte(`{"id":42}`)
	})

	var got []hostfuncs.HTTPCallback
	id, err := Fetch(hostfuncs.HTTPRequest{URL: "http://example.com/", Method: "GET"}, func(cb hostfuncs.HTTPCallback) {
		got = append(got, cb)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.NotEmpty(t, sent.Callback, "a callback name is generated")
	assert.Equal(t, 1, Waiting())

	payload, err := json.Marshal(hostfuncs.HTTPCallback{Callback: sent.Callback, Status: 200, Body: []byte("ok")})
	require.NoError(t, err)
	require.NoError(t, Deliver(payload))

	require.Len(t, got, 1)
	assert.Equal(t, 200, got[0].Status)
	assert.Equal(t, "ok", string(got[0].Body))
	assert.Zero(t, Waiting())

	assert.Error(t, Deliver(payload), "a callback runs at most once")
}

func TestFetch_HostRejects(t *testing.T) {
	fakeHost(t, func(string, []byte) []byte {
		return hostfuncs.ErrorResponse{Error: hostfuncs.CodeRateLimited, Message: "slow down", Code: 429, RetryAfterSeconds: 12}.ToJSON()
	})

	_, err := Fetch(hostfuncs.HTTPRequest{URL: "http://example.com/", Callback: "mine"}, func(hostfuncs.HTTPCallback) {})
	require.Error(t, err)

	var hostErr *HostError
	require.True(t, errors.As(err, &hostErr))
	assert.Equal(t, hostfuncs.CodeRateLimited, hostErr.Response.Error)
	assert.Equal(t, 12, hostErr.Response.RetryAfterSeconds)
	assert.Equal(t, "RATE_LIMITED: slow down", err.Error())
	assert.Zero(t, Waiting(), "rejected requests do not keep their callback")
}

func TestFetch_DuplicateCallbackName(t *testing.T) {
	fakeHost(t, func(string, []byte) []byte { return []byte(`{"id":1}`) })

	_, err := Fetch(hostfuncs.HTTPRequest{URL: "http://a/", Callback: "same"}, func(hostfuncs.HTTPCallback) {})
	require.NoError(t, err)
	_, err = Fetch(hostfuncs.HTTPRequest{URL: "http://b/", Callback: "same"}, func(hostfuncs.HTTPCallback) {})
	assert.ErrorContains(t, err, "already waiting")
}

func TestFetch_EmptyReply(t *testing.T) {
	fakeHost(t, func(string, []byte) []byte { return nil })

	_, err := Fetch(hostfuncs.HTTPRequest{URL: "http://a/"}, func(hostfuncs.HTTPCallback) {})
	assert.ErrorContains(t, err, "empty reply")
}

func TestStatsAndSSRF(t *testing.T) {
	fakeHost(t, func(name string, payload []byte) []byte {
		switch name {
		case "http_stats":
			return []byte(`{"accepted":3,"active":1,"capacity":10}`)
		case "ssrf_check":
			return []byte(`{"allowed":false,"reason":"ssrf blocked: localhost"}`)
		}
		return nil
	})

	stats, err := Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Accepted)
	assert.Equal(t, 10, stats.Capacity)

	res, err := CheckSSRF("127.0.0.1:80")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "localhost")
}

func TestDeliver_Malformed(t *testing.T) {
	assert.ErrorContains(t, Deliver([]byte("{")), "failed to decode callback")
	assert.ErrorContains(t, Deliver([]byte(`{"callback":"nobody"}`)), "no callback")
}

func TestLog(t *testing.T) {
	fakeHost(t, nil)
	var rec log.LogMessageWire
	hostLog = func(payload []byte) {
		require.NoError(t, json.Unmarshal(payload, &rec))
	}

	Log("info", "fetched", "status", 200, "url", "http://a/", "ok", true, "extra")

	assert.Equal(t, "info", rec.Level)
	assert.Equal(t, "fetched", rec.Message)
	assert.Equal(t, []log.LogAttrWire{
		{Key: "status", Type: "int64", Value: "200"},
		{Key: "url", Type: "string", Value: "http://a/"},
		{Key: "ok", Type: "bool", Value: "true"},
	}, rec.Attrs)
}

func TestWireAttr_JSONFallback(t *testing.T) {
	attr := wireAttr("hdrs", map[string]string{"a": "b"})
	assert.Equal(t, "json", attr.Type)
	assert.JSONEq(t, `{"a":"b"}`, attr.Value)
}
