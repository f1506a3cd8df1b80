package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"textgend/internal/model"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List catalog models and available backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.openCatalog()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tBACKEND\tSIZE\tSEQ_LEN\tPARTS")
			for _, m := range cat.List() {
				backend := m.Backend
				if backend == "" {
					backend = a.cfg.Backend
				}
				if backend == "" {
					backend = model.DefaultBackend
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", m.ID, backend, m.Size, m.SeqLen, len(m.Model))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			llama := "not built (rebuild with -tags llama)"
			if model.LlamaAvailable() {
				llama = "available"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nbackends: %s; llama %s\n", strings.Join(model.Backends(), ", "), llama)
			return nil
		},
	}
}
