package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHeader_Size(t *testing.T) {
	assert.Equal(t, len("Accept: */*"), Header{Name: "Accept", Value: "*/*"}.Size())
	assert.Equal(t, 2, Header{}.Size())
}

func TestRequestState_String(t *testing.T) {
	tests := []struct {
		state RequestState
		want  string
	}{
		{StateQueued, "queued"},
		{StateActive, "active"},
		{StateCompleted, "completed"},
		{StateFailed, "failed"},
		{RequestState(42), "unknown"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.state.String())
	}
}

func TestNewRequestDescriptor(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	req := Request{
		URL:     "https://example.com",
		Headers: []Header{{Name: "X-A", Value: "1"}},
		Body:    []byte("x"),
	}

	d := NewRequestDescriptor(7, req, "tok", now)

	assert.Equal(t, uint64(7), d.ID)
	assert.Equal(t, "GET", d.Method, "empty method defaults to GET")
	assert.Equal(t, StateQueued, d.State)
	assert.Equal(t, now, d.CreatedAt)
	assert.True(t, d.StartedAt.IsZero())
	assert.Equal(t, "tok", d.CallbackToken)
	assert.Equal(t, req.Headers, d.Headers)
	assert.Equal(t, []byte("x"), d.Body)

	d = NewRequestDescriptor(8, Request{URL: "https://example.com", Method: "POST"}, nil, now)
	assert.Equal(t, "POST", d.Method)
}

func TestResponse_OK(t *testing.T) {
	msg := "boom"
	assert.True(t, Response{Status: 200}.OK())
	assert.True(t, Response{Status: 302}.OK())
	assert.False(t, Response{Status: 404}.OK())
	assert.False(t, Response{Error: &msg}.OK())
	assert.False(t, Response{}.OK())
}

func TestResponse_ErrorText(t *testing.T) {
	msg := "boom"
	assert.Empty(t, Response{Status: 200}.ErrorText())
	assert.Equal(t, "boom", Response{Error: &msg}.ErrorText())
}

func TestHTTPErrorText(t *testing.T) {
	assert.Equal(t, "HTTP error 404", HTTPErrorText(404))
}
