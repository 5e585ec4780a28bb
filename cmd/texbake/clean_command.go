package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"texbake/internal/config"
	"texbake/internal/packager"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "clean [target]",
		Short: "Remove generated textures and group files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target := cfg.Paths.OutputDir
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				if target, err = config.ExpandPath(args[0]); err != nil {
					return fmt.Errorf("resolve target: %w", err)
				}
			}
			removed, err := packager.Clean(target)
			out := cmd.OutOrStdout()
			if !quiet {
				for _, path := range removed {
					fmt.Fprintln(out, path)
				}
			}
			if err != nil {
				return fmt.Errorf("clean %s: %w", target, err)
			}
			fmt.Fprintf(out, "Removed %d generated file(s) from %s\n", len(removed), target)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print the summary")
	return cmd
}
