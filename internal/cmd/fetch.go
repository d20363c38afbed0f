package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/ports"
)

type fetchOptions struct {
	method  string
	data    string
	headers []string
	include bool
}

func newFetchCmd(a *app) *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Issue one request and print the response",
		Long: `Issue one request through the transport and print the body. The command
exits non-zero when the request is rejected, fails, or returns HTTP >= 400.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fetch(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.method, "request", "X", "GET", "HTTP method")
	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", nil, `request header "Name: value" (repeatable)`)
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "request body, or @file to read it from a file")
	cmd.Flags().BoolVarP(&opts.include, "include", "i", false, "print the status line to stderr")
	return cmd
}

func (a *app) fetch(ctx context.Context, stdout, stderr io.Writer, url string, opts *fetchOptions) error {
	headers, err := parseHeaders(opts.headers)
	if err != nil {
		return err
	}
	body, err := readBody(opts.data)
	if err != nil {
		return err
	}

	var got *entities.Response
	client := a.newClient(ports.InvokerFunc(func(_ context.Context, _ any, resp entities.Response) error {
		got = &resp
		return nil
	}))
	defer func() { _ = client.Close() }()

	if _, err := client.Enqueue(entities.Request{
		URL:     url,
		Method:  opts.method,
		Headers: headers,
		Body:    body,
	}, url); err != nil {
		return err
	}

	if err := client.RunUntilIdle(ctx, a.cfg.Batch.Tick); err != nil {
		return err
	}
	if got == nil {
		return errors.New("no response delivered")
	}

	if opts.include && got.Status != 0 {
		_, _ = fmt.Fprintf(stderr, "status: %d\n", got.Status)
	}
	if _, err := stdout.Write(got.Body); err != nil {
		return err
	}
	if got.Error != nil {
		return errors.New(*got.Error)
	}
	return nil
}
