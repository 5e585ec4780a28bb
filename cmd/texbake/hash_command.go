package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"texbake/internal/codec"
	"texbake/internal/phash"
)

func newHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "hash <image> [image...]",
		Short:       "Print perceptual hashes and their distance to the first image",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := codec.NewLoader(codec.PNG{})
			hasher := phash.DHash{}
			out := cmd.OutOrStdout()

			var first uint64
			for i, path := range args {
				h, err := phash.HashFile(hasher, loader, path)
				if err != nil {
					return err
				}
				if i == 0 {
					first = h
					fmt.Fprintf(out, "%016x  %s\n", h, path)
					continue
				}
				fmt.Fprintf(out, "%016x  %s  (distance %d)\n", h, path, phash.Distance(first, h))
			}
			return nil
		},
	}
}
