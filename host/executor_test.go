package host

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/hostfuncs"
	"github.com/reglet-dev/scriptnet/internal/testutil"
	"github.com/reglet-dev/scriptnet/transport"
)

func newTestExecutor(t *testing.T, backend *testutil.FakeBackend, opts ...Option) *Executor {
	t.Helper()
	ctx := context.Background()
	opts = append([]Option{WithTransportOptions(transport.WithBackend(backend))}, opts...)
	e, err := NewExecutor(ctx, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })
	return e
}

func TestNewExecutor(t *testing.T) {
	ctx := context.Background()
	e, err := NewExecutor(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, e)
	if e != nil {
		err := e.Close(ctx)
		assert.NoError(t, err)
	}
}

func TestExecutor_RegistersBuiltins(t *testing.T) {
	e := newTestExecutor(t, &testutil.FakeBackend{})

	assert.Equal(t, []string{"http_request", "http_stats", "ssrf_check"}, e.Registry().Names())
}

func TestExecutor_WithHostFunctions(t *testing.T) {
	e := newTestExecutor(t, &testutil.FakeBackend{},
		WithHostFunctions(hostfuncs.WithByteHandler("ping", func(ctx context.Context, _ []byte) ([]byte, error) {
			return []byte(`"pong"`), nil
		})),
	)

	assert.True(t, e.Registry().Has("ping"))
	out, err := e.Registry().Invoke(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, `"pong"`, string(out))
}

func TestExecutor_LoadPluginRejectsGarbage(t *testing.T) {
	e := newTestExecutor(t, &testutil.FakeBackend{})

	_, err := e.LoadPlugin(context.Background(), "bad", []byte("not wasm"))
	assert.Error(t, err)
}

func TestExecutor_HTTPRequestCarriesCaller(t *testing.T) {
	backend := &testutil.FakeBackend{}
	e := newTestExecutor(t, backend)

	ctx := hostfuncs.WithCaller(context.Background(), "ghost")
	out, err := e.Registry().Invoke(ctx, "http_request",
		[]byte(`{"url":"http://example.com/","callback":"on_done"}`))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"id"`)
	assert.Equal(t, 1, e.Client().Pending())

	backend.Last().Respond(200, "ok")
	err = e.Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown plugin "ghost"`)
	assert.Contains(t, err.Error(), "on_done")

	stats := e.Client().Stats()
	assert.Equal(t, uint64(1), stats.Delivered)
	assert.Equal(t, uint64(1), stats.InvokeErrors)
	assert.Zero(t, stats.Outstanding())
}

func TestExecutor_DeliverRejectsForeignToken(t *testing.T) {
	e := newTestExecutor(t, &testutil.FakeBackend{})

	err := e.deliver(context.Background(), "not a token", entities.Response{Status: 200})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected callback token")
}

func TestExecutor_RunUntilIdle(t *testing.T) {
	backend := &testutil.FakeBackend{}
	e := newTestExecutor(t, backend)

	_, err := e.Client().Enqueue(entities.Request{URL: "http://example.com/", Method: "GET"},
		hostfuncs.CallbackToken{Caller: "ghost", Callback: "cb"})
	require.NoError(t, err)
	backend.Last().Respond(204, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = e.RunUntilIdle(ctx, time.Millisecond)
	require.Error(t, err, "delivery to an unknown plugin is reported")
	assert.Zero(t, e.Client().Pending())
}

func TestExecutor_RunUntilIdleStopsOnCancel(t *testing.T) {
	backend := &testutil.FakeBackend{}
	e := newTestExecutor(t, backend)

	_, err := e.Client().Enqueue(entities.Request{URL: "http://example.com/", Method: "GET"},
		hostfuncs.CallbackToken{Caller: "ghost", Callback: "cb"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = e.RunUntilIdle(ctx, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, e.Client().Pending())
}
