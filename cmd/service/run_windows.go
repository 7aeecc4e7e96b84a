//go:build windows

// cmd/service/run_windows.go
package main

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sys/windows/svc"

	"olmeda-realtime/internal/config"
	"olmeda-realtime/internal/lifecycle"
	"olmeda-realtime/internal/logging"
	"olmeda-realtime/internal/service"
)

const cmdsAccepted = svc.AcceptStop | svc.AcceptShutdown | svc.AcceptPauseAndContinue

func run(cfg *config.Config, logger *slog.Logger) error {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return fmt.Errorf("falha ao determinar tipo de sessão: %w", err)
	}
	if !isService {
		return runConsole(cfg, logger, nil)
	}

	logger.Info("iniciando em modo serviço Windows", slog.String("service", serviceName))
	return svc.Run(serviceName, &olmedaService{cfg: cfg, logger: logger})
}

// olmedaService adapta o agente ao gerenciador de serviços. Pause e Continue viram background e active.
type olmedaService struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (m *olmedaService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (ssec bool, errno uint32) {
	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agent, err := service.New(ctx, m.cfg, m.logger, service.Deps{})
	if err != nil {
		m.logger.Error("falha ao criar agente", logging.Err(err))
		changes <- svc.Status{State: svc.Stopped}
		return true, 1
	}

	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	changes <- svc.Status{State: svc.Running, Accepts: cmdsAccepted}
	m.logger.Info("serviço em execução")

	for {
		select {
		case err := <-done:
			if err != nil {
				m.logger.Error("agente terminou com erro", logging.Err(err))
				changes <- svc.Status{State: svc.Stopped}
				return true, 2
			}
			changes <- svc.Status{State: svc.Stopped}
			return false, 0

		case c := <-r:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus
			case svc.Stop, svc.Shutdown:
				m.logger.Info("recebido comando de parada via serviço")
				changes <- svc.Status{State: svc.StopPending}
				cancel()
				if err := <-done; err != nil {
					m.logger.Warn("erro ao encerrar agente", logging.Err(err))
				}
				return false, 0
			case svc.Pause:
				agent.Lifecycle().Publish(lifecycle.Background)
				changes <- svc.Status{State: svc.Paused, Accepts: cmdsAccepted}
			case svc.Continue:
				agent.Lifecycle().Publish(lifecycle.Active)
				changes <- svc.Status{State: svc.Running, Accepts: cmdsAccepted}
			default:
				m.logger.Warn("comando de serviço inesperado", slog.Int("cmd", int(c.Cmd)))
			}
		}
	}
}
