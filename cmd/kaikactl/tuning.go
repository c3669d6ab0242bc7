// cmd/kaikactl/tuning.go
package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newTuningCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tuning",
		Short: "Print the effective tuning as YAML",
		Long: `Print the tuning the server would start with. Without --tuning this is
the built-in defaults, a good starting point for data/tuning.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tuning, err := loadTuning(cmd)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), tuning)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(tuning); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
