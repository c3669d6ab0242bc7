// cmd/server/main.go
package main

import (
	"github.com/yusukekikuta0509/projectKAIKA/internal/app"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

func main() {
	logger := utils.GetLogger()
	logger.Info("starting KAIKA demo server", nil)

	if err := app.Initialize(); err != nil {
		logger.Fatal("initialization failed", map[string]interface{}{"error": err.Error()})
	}

	cfg := app.GetApp().GetConfig()
	logger.Infof("listening on http://localhost:%s", cfg.Port)

	if err := app.Run(); err != nil {
		logger.Fatal("server stopped with error", map[string]interface{}{"error": err.Error()})
	}
	logger.Info("server shut down cleanly", nil)
}
