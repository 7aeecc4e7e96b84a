//go:build !windows

// cmd/service/run_other.go
package main

import (
	"context"
	"log/slog"

	"olmeda-realtime/internal/config"
	"olmeda-realtime/internal/lifecycle"
)

// Fora do Windows não há gerenciador de serviço: SIGUSR1/SIGUSR2 fazem o papel de Pause/Continue
func run(cfg *config.Config, logger *slog.Logger) error {
	return runConsole(cfg, logger, func(ctx context.Context) []lifecycle.Source {
		return []lifecycle.Source{lifecycle.NewSignalSource(ctx)}
	})
}
