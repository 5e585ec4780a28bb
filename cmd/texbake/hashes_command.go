package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"texbake/internal/config"
	"texbake/internal/hashstore"
)

func newHashesCommand(ctx *commandContext) *cobra.Command {
	hashesCmd := &cobra.Command{
		Use:   "hashes",
		Short: "Inspect persisted child hashes",
	}

	hashesCmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Count stored child hashes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *hashstore.Store) error {
				n, err := store.CountHashes(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d child hash(es) in %s\n", n, store.Path())
				return nil
			})
		},
	})

	hashesCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget stored child hashes so every child is re-baked",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *hashstore.Store) error {
				n, err := store.ClearHashes(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d child hash(es)\n", n)
				return nil
			})
		},
	})

	return hashesCmd
}
