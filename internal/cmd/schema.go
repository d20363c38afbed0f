package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/scriptnet/domain/entities"
	"github.com/reglet-dev/scriptnet/domain/ports"
	"github.com/reglet-dev/scriptnet/hostfuncs"
	"github.com/reglet-dev/scriptnet/transport"
)

// schemaDocument is what the schema command prints.
type schemaDocument struct {
	Functions map[string]hostfuncs.FuncSchema `json:"functions"`
	Callback  any                             `json:"callback"`
}

func newSchemaCmd(a *app) *cobra.Command {
	var function string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the script-facing payloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.printSchema(cmd.OutOrStdout(), function)
		},
	}
	cmd.Flags().StringVar(&function, "function", "", "only print this host function")
	return cmd
}

func (a *app) printSchema(w io.Writer, function string) error {
	// The client is never driven; it only gives the bundles their types.
	client := transport.NewClient(ports.InvokerFunc(func(context.Context, any, entities.Response) error { return nil }),
		transport.WithLogger(a.logger))
	defer func() { _ = client.Close() }()

	reg, err := hostfuncs.NewRegistry(hostfuncs.WithBundle(hostfuncs.AllBundles(client, a.addressPolicy())))
	if err != nil {
		return err
	}

	doc := schemaDocument{Functions: reg.Schemas(), Callback: hostfuncs.CallbackSchema()}
	var out any = doc
	if function != "" {
		fs, ok := doc.Functions[function]
		if !ok {
			return fmt.Errorf("unknown host function %q", function)
		}
		out = fs
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
