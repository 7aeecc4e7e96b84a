// cmd/wstest/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"olmeda-realtime/internal/auth"
	"olmeda-realtime/internal/identity"
	"olmeda-realtime/internal/lifecycle"
	"olmeda-realtime/internal/logging"
	"olmeda-realtime/internal/store"
	"olmeda-realtime/internal/websocket"
)

// Cliente de teste: conecta no wsserver com um token gerado localmente e imprime o que chega.
// Digite background, inactive ou active no terminal para simular o ciclo de vida.
func main() {
	serverURL := flag.String("url", "http://localhost:8080/ws", "URL SockJS do servidor")
	secret := flag.String("secret", "dev-secret", "chave HMAC compartilhada com o wsserver")
	token := flag.String("token", "", "token pronto (ignora -secret)")
	doctorID := flag.String("doctor", "42", "id do médico")
	ttl := flag.Duration("ttl", time.Hour, "validade do token gerado")
	insecure := flag.Bool("insecure", false, "não verifica o certificado TLS (apenas teste local!)")
	flag.Parse()

	logger := logging.NewWithWriter(os.Stdout, logging.Options{Level: "debug", Format: "text", Service: "wstest"})

	if *token == "" {
		t, err := auth.NewTokenIssuer(*secret).GenerateToken(*doctorID, "wstest", *ttl)
		if err != nil {
			logger.Error("erro ao gerar token", logging.Err(err))
			os.Exit(1)
		}
		*token = t
	}

	creds := auth.NewMemoryCredentials()
	_ = creds.Set(auth.KeyAccessToken, *token)
	_ = creds.Set(auth.KeyDoctorID, *doctorID)
	redirector := auth.NewLoginRedirector(creds, logger, func() {
		fmt.Println(">> autenticação necessária: token rejeitado ou expirado")
	})

	dialer, err := websocket.NewSockJSDialer(websocket.DialerConfig{
		ServerURL:          *serverURL,
		InsecureSkipVerify: *insecure,
		InstanceID:         "wstest",
		Logger:             logger,
	})
	if err != nil {
		logger.Error("erro ao criar dialer", logging.Err(err))
		os.Exit(1)
	}

	s := store.NewMemoryStore()
	s.Observe(func(c store.Change) {
		switch {
		case c.Appointment != nil:
			fmt.Printf(">> agendamento %s: %s %s %s\n", c.Appointment.ID, c.Appointment.Status,
				c.Appointment.AppointmentDate, c.Appointment.PatientName)
		case c.Notification != nil:
			fmt.Printf(">> notificação [%s] %s: %s\n", c.Notification.Type, c.Notification.Title, c.Notification.Message)
		}
	})

	client, err := websocket.NewSyncClient(websocket.ClientConfig{
		Dialer:    dialer,
		Tokens:    auth.NewKeyringTokenProvider(creds, redirector, 30*time.Second, logger),
		Navigator: redirector,
		Identity:  identity.FromCredentials{Store: creds},
		Store:     s,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("erro ao criar cliente", logging.Err(err))
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	states := lifecycle.NewChannelSource(1)
	go readStates(ctx, states, logger)
	go client.Watch(ctx, states)

	logger.Info("conectando", slog.String("url", *serverURL), logging.Identity(*doctorID))
	if err := client.Connect(ctx); err != nil {
		logger.Warn("conexão inicial falhou", logging.Err(err))
	}

	<-ctx.Done()
	stats := client.Stats()
	logger.Info("encerrando",
		slog.Int64("messages", stats.MessagesReceived),
		slog.Int64("dropped", stats.FramesDropped),
		slog.Int64("reconnections", stats.Reconnections))
}

func readStates(ctx context.Context, states *lifecycle.ChannelSource, logger *slog.Logger) {
	defer states.Close()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		state, err := lifecycle.ParseAppState(line)
		if err != nil {
			logger.Warn("estado desconhecido", logging.Err(err))
			continue
		}
		states.Publish(state)
	}
}
