package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/scriptnet/internal/stubserver"
)

func newStubCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve the demo HTTP endpoints",
		Long: `Serve /ok, /status/{code}, /echo, /bytes/{n}, /hang, /slow/{ms} and
/redirect/{n} for trying the transport locally. Stops on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serveStub(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (default stub.addr)")
	_ = a.v.BindPFlag("stub.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func (a *app) serveStub(ctx context.Context) error {
	srv := stubserver.New(a.cfg.Stub.Addr, a.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
