package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reglet-dev/scriptnet/internal/config"
	"github.com/reglet-dev/scriptnet/internal/stubserver"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	v := config.New()
	cfg, err := config.Decode(v)
	require.NoError(t, err)
	cfg.Batch.Tick = time.Millisecond
	cfg.REPL.Tick = time.Millisecond
	return &app{v: v, cfg: cfg, logger: zap.NewNop()}
}

func newStub(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(stubserver.New("", nil).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// executeCommand runs the root command with args and returns stdout.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(testContext(t))
	return out.String(), err
}
