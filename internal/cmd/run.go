package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reglet-dev/scriptnet/host"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		export  string
		name    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run <plugin.wasm>",
		Short: "Run a WASM plugin against the transport",
		Long: `Load a WASM plugin, call its entry export and tick the transport until
every request the plugin issued has been delivered to its on_http_response
export. Plugins import http_request, http_stats, ssrf_check and log_message
from the scriptnet_host module.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return a.runPlugin(ctx, args[0], name, export)
		},
	}

	cmd.Flags().StringVar(&export, "export", "run", "plugin export to call")
	cmd.Flags().StringVar(&name, "name", "", "plugin name (default file name without extension)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits until idle)")
	return cmd
}

func (a *app) runPlugin(ctx context.Context, path, name, export string) (err error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read plugin: %w", err)
	}

	exec, err := host.NewExecutor(ctx,
		host.WithLogger(a.logger),
		host.WithTransportOptions(a.transportOptions()...),
		host.WithAddressPolicy(a.addressPolicy()),
	)
	if err != nil {
		return err
	}
	defer func() {
		// Close on a fresh context so pending callbacks still reach the plugin.
		if closeErr := exec.Close(context.Background()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	plugin, err := exec.LoadPlugin(ctx, name, wasm)
	if err != nil {
		return err
	}
	if err := exec.Call(ctx, plugin, export); err != nil {
		return fmt.Errorf("plugin %s: %s: %w", name, export, err)
	}

	start := time.Now()
	if err := exec.RunUntilIdle(ctx, a.cfg.Batch.Tick); err != nil {
		return err
	}

	stats := exec.Client().Stats()
	a.logger.Info("plugin finished",
		zap.String("plugin", name),
		zap.Uint64("accepted", stats.Accepted),
		zap.Uint64("delivered", stats.Delivered),
		zap.Uint64("invoke_errors", stats.InvokeErrors),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
