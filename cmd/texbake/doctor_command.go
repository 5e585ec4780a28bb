package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"texbake/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, donor materials and external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Environment", colorize) {
				fmt.Fprintln(out, line)
			}
			failures := 0
			for _, result := range preflight.RunAll(cfg) {
				if !result.Passed {
					failures++
				}
				fmt.Fprintln(out, renderResult(result, false, colorize))
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("External tools", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, status := range preflight.CheckSystemDeps(cfg.Bake.ToolPath) {
				optional := status.Optional && !cfg.Export.UseExternalBaking
				detail := status.Path
				if !status.Available {
					detail = status.Detail
				}
				result := preflight.Result{Name: status.Name, Passed: status.Available, Detail: detail}
				fmt.Fprintln(out, renderResult(result, optional, colorize))
			}

			fmt.Fprintln(out)
			fmt.Fprintf(out, "Hash store: %s (enabled: %s)\n", cfg.HashStore.Path, yesNo(cfg.HashStore.Enabled))
			if failures > 0 {
				return fmt.Errorf("%d preflight check(s) failed", failures)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
