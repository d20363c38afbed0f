// Package testutil provides fakes and assertions shared by the transport tests.
package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/scriptnet/domain/entities"
)

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// AssertResponse checks every field of a delivered response. An empty
// errText asserts that no error was set.
func AssertResponse(t *testing.T, resp entities.Response, status int, body, errText string) {
	t.Helper()

	assert.Equal(t, status, resp.Status, "status")
	assert.Equal(t, body, string(resp.Body), "body")
	if errText == "" {
		assert.Nil(t, resp.Error, "error should be unset")
		return
	}
	require.NotNil(t, resp.Error, "error should be set")
	assert.Equal(t, errText, *resp.Error)
}

// AssertTransportFailure checks the shape of a transport-level failure:
// status 0, no body, and an error starting with prefix.
func AssertTransportFailure(t *testing.T, resp entities.Response, prefix string) {
	t.Helper()

	assert.Zero(t, resp.Status, "status")
	assert.Nil(t, resp.Body, "body")
	require.NotNil(t, resp.Error, "error should be set")
	assert.Contains(t, *resp.Error, prefix)
}

// AssertNoLeaks asserts that every allocated descriptor was released.
func AssertNoLeaks(t *testing.T, allocated, released uint64) {
	t.Helper()
	assert.Equal(t, allocated, released, "allocations and releases must balance")
}
