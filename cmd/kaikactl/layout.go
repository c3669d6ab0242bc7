// cmd/kaikactl/layout.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yusukekikuta0509/projectKAIKA/internal/scene"
)

func newLayoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Generate the decorative city layout for a seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetUint64("seed")
			if !cmd.Flags().Changed("seed") {
				tuning, err := loadTuning(cmd)
				if err != nil {
					return err
				}
				seed = tuning.Scene.LayoutSeed
			}
			layout := scene.GenerateLayout(seed)
			counts := map[string]int{
				"roads":     len(layout.Roads),
				"lines":     len(layout.Lines),
				"buildings": len(layout.Buildings),
				"glows":     layout.GlowCount(),
			}

			full, _ := cmd.Flags().GetBool("full")
			if jsonOutput(cmd) {
				if full {
					return writeJSON(cmd.OutOrStdout(), layout)
				}
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"seed": seed, "counts": counts})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seed %d\n", seed)
			for _, name := range []string{"roads", "lines", "buildings", "glows"} {
				fmt.Fprintf(out, "  %-10s %d\n", name, counts[name])
			}
			return nil
		},
	}
	cmd.Flags().Uint64("seed", 0, "Layout seed (tuning scene.layout_seed when unset)")
	cmd.Flags().Bool("full", false, "With --json, print every instance matrix")
	return cmd
}
