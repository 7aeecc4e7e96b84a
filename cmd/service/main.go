// cmd/service/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"olmeda-realtime/internal/config"
	"olmeda-realtime/internal/lifecycle"
	"olmeda-realtime/internal/logging"
	"olmeda-realtime/internal/service"
)

const serviceName = "OlmedaRealtime"

func main() {
	exePath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERRO CRÍTICO: Falha ao obter caminho do executável: %v\n", err)
		os.Exit(1)
	}

	configPath := flag.String("config", config.PathFor(exePath), "caminho do config.json")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERRO CRÍTICO: Falha ao carregar configuração: %v\n", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if cfg.Development.Enabled && cfg.Development.DebugLog {
		level = "debug"
	}
	logger, logCloser, err := logging.New(logging.Options{
		Level:   level,
		Format:  cfg.LogFormat,
		Path:    cfg.LogPath,
		Service: serviceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERRO CRÍTICO: Falha ao abrir arquivo de log (%s): %v\n", cfg.LogPath, err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("iniciando olmeda realtime",
		slog.String("exe", exePath),
		slog.String("config", *configPath),
		slog.String("server_url", cfg.Realtime.ServerURL),
		slog.String("store", cfg.Store.Driver),
		slog.String("instance_id", cfg.Realtime.InstanceID),
		slog.Bool("development", cfg.Development.Enabled),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("serviço falhou", logging.Err(err))
		logCloser.Close()
		os.Exit(1)
	}
	logger.Info("processo de encerramento concluído")
}

// runConsole roda o agente em primeiro plano até Ctrl+C ou SIGTERM
func runConsole(cfg *config.Config, logger *slog.Logger, extra func(ctx context.Context) []lifecycle.Source) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent, err := service.New(ctx, cfg, logger, service.Deps{})
	if err != nil {
		return err
	}

	var sources []lifecycle.Source
	if extra != nil {
		sources = extra(ctx)
	}

	logger.Info("modo console: pressione Ctrl+C para sair")
	return agent.Run(ctx, sources...)
}
