// cmd/wsserver/main.go
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"olmeda-realtime/internal/auth"
	"olmeda-realtime/internal/logging"
)

func main() {
	addr := flag.String("addr", ":8080", "endereço do servidor")
	secret := flag.String("secret", "dev-secret", "chave HMAC dos tokens")
	template := flag.String("template", "", "modelo do canal (padrão /user-queue/appointments/{identity})")
	heartBeat := flag.Duration("heartbeat", 10*time.Second, "intervalo de heart-beat oferecido (0 desliga)")
	certFile := flag.String("cert", "", "caminho do certificado SSL (vazio = sem TLS)")
	keyFile := flag.String("key", "", "caminho da chave privada SSL")
	level := flag.String("log-level", "debug", "nível de log")
	flag.Parse()

	logger := logging.NewWithWriter(os.Stdout, logging.Options{Level: *level, Format: "text", Service: "wsserver"})

	b := newBroker(auth.NewTokenIssuer(*secret), *template, *heartBeat, logger)
	server := &http.Server{
		Addr:              *addr,
		Handler:           b.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS := *certFile != "" && *keyFile != ""
	if useTLS {
		cert, err := tls.LoadX509KeyPair(*certFile, *keyFile)
		if err != nil {
			logger.Error("erro ao carregar certificados", logging.Err(err))
			os.Exit(1)
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("servidor iniciado", slog.String("addr", *addr), slog.Bool("tls", useTLS))

	var err error
	if useTLS {
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("erro ao iniciar servidor", logging.Err(err))
		os.Exit(1)
	}
}
