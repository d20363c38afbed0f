package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/scriptnet/domain/entities"
	domerrors "github.com/reglet-dev/scriptnet/domain/errors"
	"github.com/reglet-dev/scriptnet/internal/testutil"
)

func TestBuildResponse(t *testing.T) {
	tests := []struct {
		name   string
		record entities.ResponseRecord
		status int
		body   string
		err    string
	}{
		{
			name:   "success",
			record: entities.ResponseRecord{StatusCode: 200, Body: []byte(`{"ok":true}`)},
			status: 200,
			body:   `{"ok":true}`,
		},
		{
			name:   "redirect status is not an error",
			record: entities.ResponseRecord{StatusCode: 304},
			status: 304,
		},
		{
			name:   "http error keeps body",
			record: entities.ResponseRecord{StatusCode: 404, Body: []byte("not found")},
			status: 404,
			body:   "not found",
			err:    "HTTP error 404",
		},
		{
			name:   "server error",
			record: entities.ResponseRecord{StatusCode: 503, Body: []byte("down")},
			status: 503,
			body:   "down",
			err:    "HTTP error 503",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := BuildResponse(&entities.RequestDescriptor{Response: tc.record})
			testutil.AssertResponse(t, resp, tc.status, tc.body, tc.err)
			assert.NotNil(t, resp.Body, "HTTP responses always carry a body")
			if tc.err == "" {
				assert.Nil(t, resp.Detail)
				return
			}
			require.NotNil(t, resp.Detail)
			assert.Equal(t, entities.ErrorTypeHTTP, resp.Detail.Type)
			assert.Equal(t, tc.status, resp.Detail.Details["status"])
		})
	}
}

func TestBuildResponse_TransportFailure(t *testing.T) {
	desc := &entities.RequestDescriptor{Response: entities.ResponseRecord{
		Err: &domerrors.TimeoutError{Phase: domerrors.PhaseTotal},
	}}

	resp := BuildResponse(desc)
	testutil.AssertTransportFailure(t, resp, "request timed out")
	require.NotNil(t, resp.Detail)
	assert.Equal(t, entities.ErrorTypeTimeout, resp.Detail.Type)
	assert.Equal(t, "total", resp.Detail.Code)
	assert.True(t, resp.Detail.IsTimeout)
}

func newTestDispatcher(t *testing.T, invoker *testutil.Recorder) (*Dispatcher, *Engine, *testutil.FakeBackend, *testutil.Clock) {
	t.Helper()
	engine, backend, clock := newTestEngine(t)
	return NewDispatcher(engine, invoker, nil), engine, backend, clock
}

func TestDispatcher_DeliversOnceAndReleases(t *testing.T) {
	rec := &testutil.Recorder{}
	dispatcher, engine, backend, clock := newTestDispatcher(t, rec)

	require.NoError(t, engine.Enqueue(descriptor(1, clock)))
	require.NoError(t, engine.Enqueue(descriptor(2, clock)))
	backend.Transfers()[0].Respond(200, "a")
	backend.Transfers()[1].Respond(500, "b")

	engine.Pump()
	require.NoError(t, dispatcher.Drain(context.Background()))
	require.NoError(t, dispatcher.Drain(context.Background()))

	require.Len(t, rec.Deliveries, 2)
	assert.ElementsMatch(t, []any{uint64(1), uint64(2)}, rec.Tokens())
	assert.Equal(t, uint64(2), dispatcher.Delivered())

	stats := engine.Stats()
	testutil.AssertNoLeaks(t, stats.Allocated, stats.Released)
}

func TestDispatcher_InvokerErrorStillReleases(t *testing.T) {
	rec := &testutil.Recorder{Hook: func(context.Context, any, entities.Response) error {
		return errors.New("script raised")
	}}
	dispatcher, engine, backend, clock := newTestDispatcher(t, rec)

	require.NoError(t, engine.Enqueue(descriptor(1, clock)))
	require.NoError(t, engine.Enqueue(descriptor(2, clock)))
	backend.Transfers()[0].Respond(200, "")
	backend.Transfers()[1].Respond(200, "")
	engine.Pump()

	err := dispatcher.Drain(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script raised")
	assert.Len(t, rec.Deliveries, 2, "one failing callback does not stop the drain")
	assert.Equal(t, uint64(2), dispatcher.InvokeErrors())

	stats := engine.Stats()
	testutil.AssertNoLeaks(t, stats.Allocated, stats.Released)
}

func TestDispatcher_InvokerPanicStillReleases(t *testing.T) {
	rec := &testutil.Recorder{Hook: func(context.Context, any, entities.Response) error {
		panic("callback exploded")
	}}
	dispatcher, engine, backend, clock := newTestDispatcher(t, rec)

	desc := descriptor(1, clock)
	require.NoError(t, engine.Enqueue(desc))
	backend.Last().Respond(200, "body")
	engine.Pump()

	var err error
	assert.NotPanics(t, func() { err = dispatcher.Drain(context.Background()) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback exploded")

	stats := engine.Stats()
	testutil.AssertNoLeaks(t, stats.Allocated, stats.Released)
	assert.Nil(t, desc.CallbackToken)
	assert.Nil(t, desc.Response.Body)
}

func TestDispatcher_DeliversWorkFinishedDuringDrain(t *testing.T) {
	engine, backend, clock := newTestEngine(t)
	rec := &testutil.Recorder{}
	dispatcher := NewDispatcher(engine, rec, nil)

	rec.Hook = func(_ context.Context, token any, _ entities.Response) error {
		if token == uint64(1) {
			backend.StartErr = errors.New("no route")
			return engine.Enqueue(descriptor(2, clock))
		}
		return nil
	}

	require.NoError(t, engine.Enqueue(descriptor(1, clock)))
	backend.Last().Respond(200, "")
	engine.Pump()

	require.NoError(t, dispatcher.Drain(context.Background()))
	assert.Equal(t, []any{uint64(1), uint64(2)}, rec.Tokens())
	assert.Equal(t, 0, engine.FinishedCount())
}
