// cmd/kaikactl/serve.go
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/yusukekikuta0509/projectKAIKA/internal/app"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo HTTP and WebSocket server",
		Long: `Run the demo server. Settings come from the environment and an
optional .env file (PORT, DATA_DIR, TUNING_FILE, AUTH_SECRET_KEY, ...).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				os.Setenv("PORT", port)
			}
			if tuning, _ := cmd.Flags().GetString("tuning"); tuning != "" {
				os.Setenv("TUNING_FILE", tuning)
			}
			if err := app.Initialize(); err != nil {
				return err
			}
			return app.Run()
		},
	}
	cmd.Flags().String("port", "", "Listen port (overrides PORT)")
	return cmd
}
