package main

import (
	"ledgercore/internal/pkg/components"
	"ledgercore/internal/pkg/logging"
	"log"
)

func main() {
	container, err := components.GetInstance()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	logging.Info("ledgercore api initialized", map[string]interface{}{
		"port": container.Config.Server.Port,
	})

	if err := container.Start(); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
