// internal/service/agent.go
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"olmeda-realtime/internal/auth"
	"olmeda-realtime/internal/config"
	"olmeda-realtime/internal/database"
	"olmeda-realtime/internal/identity"
	"olmeda-realtime/internal/lifecycle"
	"olmeda-realtime/internal/logging"
	"olmeda-realtime/internal/metrics"
	"olmeda-realtime/internal/stomp"
	"olmeda-realtime/internal/store"
	"olmeda-realtime/internal/websocket"
)

// Deps permite trocar as dependências externas (testes e ferramentas de desenvolvimento).
// Campos nulos são construídos a partir da configuração.
type Deps struct {
	Dialer      websocket.Dialer
	Credentials auth.CredentialStore
	Store       store.Store
	Registry    *prometheus.Registry
	Scheduler   websocket.Scheduler
}

// Agent monta e executa o cliente realtime com tudo que ele precisa
type Agent struct {
	cfg    *config.Config
	logger *slog.Logger

	store      store.Store
	storeClose io.Closer
	storePing  pinger

	credentials auth.CredentialStore
	redirector  *auth.LoginRedirector
	identity    *identity.Deferred
	lifecycle   *lifecycle.ChannelSource
	client      *websocket.SyncClient
	registry    *prometheus.Registry
	monitor     *Monitor
	server      *http.Server

	closeOnce sync.Once
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps Deps) (*Agent, error) {
	if cfg == nil {
		return nil, errors.New("configuração obrigatória")
	}
	if logger == nil {
		logger = logging.Discard()
	}

	a := &Agent{
		cfg:       cfg,
		logger:    logger,
		lifecycle: lifecycle.NewChannelSource(8),
		registry:  deps.Registry,
	}

	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	realtimeMetrics := metrics.NewRealtimeMetrics(a.registry)

	if deps.Store != nil {
		a.store = deps.Store
	} else if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	a.credentials = deps.Credentials
	if a.credentials == nil {
		creds, err := openCredentials(cfg.Keyring)
		if err != nil {
			a.closeStore()
			return nil, err
		}
		a.credentials = creds
	}
	a.seedCredentials()

	a.redirector = auth.NewLoginRedirector(a.credentials, logger, func() {
		logger.Warn("token inválido ou ausente; aguardando novo token em PUT /session")
	})
	tokens := auth.NewKeyringTokenProvider(a.credentials, a.redirector, cfg.Realtime.TokenLeeway, logger)

	a.identity = identity.NewDeferred(identity.Resolve(
		identity.FromCredentials{Store: a.credentials},
		identity.Static(cfg.Realtime.DoctorID),
	))

	dialer := deps.Dialer
	if dialer == nil {
		d, err := websocket.NewSockJSDialer(websocket.DialerConfig{
			ServerURL:          cfg.Realtime.ServerURL,
			UseSSL:             cfg.Realtime.UseSSL,
			InsecureSkipVerify: cfg.Realtime.InsecureSkipVerify,
			InstanceID:         cfg.Realtime.InstanceID,
			HandshakeTimeout:   cfg.Realtime.HandshakeTimeout,
			Logger:             logger,
		})
		if err != nil {
			a.closeStore()
			return nil, fmt.Errorf("erro ao criar dialer: %w", err)
		}
		dialer = d
	}

	client, err := websocket.NewSyncClient(websocket.ClientConfig{
		Dialer:    dialer,
		Tokens:    tokens,
		Navigator: a.redirector,
		Identity:  a.identity,
		Store:     a.store,
		Logger:    logger,
		Metrics:   realtimeMetrics,
		Scheduler: deps.Scheduler,
		Reconnect: websocket.ReconnectPolicy{
			MaxAttempts: cfg.Realtime.Reconnect.MaxAttempts,
			BaseDelay:   cfg.Realtime.Reconnect.BaseDelay,
			MaxDelay:    cfg.Realtime.Reconnect.MaxDelay,
		},
		ChannelTemplate:  cfg.Realtime.ChannelTemplate,
		Host:             cfg.Realtime.Host,
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		HandlerTimeout:   cfg.Realtime.HandlerTimeout,
		HeartBeat: stomp.HeartBeat{
			Outgoing: cfg.Realtime.HeartBeat,
			Incoming: cfg.Realtime.HeartBeat,
		},
		DisableHeartBeat: cfg.Realtime.DisableHeartBeat,
	})
	if err != nil {
		a.closeStore()
		return nil, fmt.Errorf("erro ao criar cliente realtime: %w", err)
	}
	a.client = client

	// identidade resolvida depois da conexão dispara a assinatura
	a.identity.OnChange(func(id string) {
		if id == "" {
			return
		}
		if err := a.client.Subscribe(id); err != nil {
			logger.Warn("erro ao assinar canal", logging.Identity(id), logging.Err(err))
		}
	})

	a.monitor = NewMonitor(client, a.storePing, cfg.StatsInterval, logger)

	if cfg.HTTP.Enabled {
		a.server = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           a.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return a, nil
}

func (a *Agent) openStore(ctx context.Context) error {
	sc := a.cfg.Store
	switch sc.Driver {
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return fmt.Errorf("erro ao conectar ao redis: %w", err)
		}
		a.store = store.NewRedisStore(rdb, store.RedisOptions{
			Prefix:           sc.RedisPrefix,
			MaxNotifications: sc.MaxNotifications,
		})
		a.storeClose = rdb
		a.storePing = pingerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

	case config.StoreSQLite, config.StoreODBC:
		driver := database.DriverSQLite
		if sc.Driver == config.StoreODBC {
			driver = database.DriverODBC
		}
		s, err := database.NewSQLStore(driver, sc.DSN)
		if err != nil {
			return fmt.Errorf("erro ao inicializar banco de dados: %w", err)
		}
		a.store = s
		a.storeClose = s
		a.storePing = s

	default:
		a.store = store.NewMemoryStore()
	}

	a.logger.Info("store inicializado", slog.String("driver", sc.Driver))
	return nil
}

func openCredentials(kc config.Keyring) (auth.CredentialStore, error) {
	if kc.Disabled {
		return auth.NewMemoryCredentials(), nil
	}
	ks, err := auth.NewKeyringStore(auth.KeyringConfig{
		ServiceName:  kc.ServiceName,
		FileDir:      kc.FileDir,
		FilePassword: kc.FilePassword,
	})
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir cofre de credenciais: %w", err)
	}
	return ks, nil
}

// seedCredentials grava token e doctor id da configuração quando o cofre ainda não os tem
func (a *Agent) seedCredentials() {
	seed := func(key, value string) {
		if value == "" {
			return
		}
		if _, err := a.credentials.Get(key); !errors.Is(err, auth.ErrCredentialNotFound) {
			return
		}
		if err := a.credentials.Set(key, value); err != nil {
			a.logger.Warn("erro ao gravar credencial inicial", slog.String("key", key), logging.Err(err))
		}
	}
	seed(auth.KeyAccessToken, a.cfg.Realtime.AuthToken)
	seed(auth.KeyDoctorID, a.cfg.Realtime.DoctorID)
}

// Client expõe o cliente realtime (ferramentas e testes)
func (a *Agent) Client() *websocket.SyncClient { return a.client }

// Lifecycle é a fonte alimentada pela API local e pelo serviço Windows
func (a *Agent) Lifecycle() *lifecycle.ChannelSource { return a.lifecycle }

func (a *Agent) Identity() *identity.Deferred { return a.identity }

func (a *Agent) Store() store.Store { return a.store }

// Run conecta, acompanha o ciclo de vida e serve a API local até o contexto acabar
func (a *Agent) Run(ctx context.Context, sources ...lifecycle.Source) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	if a.cfg.Realtime.Enabled {
		for _, src := range append([]lifecycle.Source{a.lifecycle}, sources...) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.client.Watch(ctx, src)
			}()
		}
		a.client.EnsureConnected()
	} else {
		a.logger.Warn("realtime desabilitado nas configurações")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.monitor.Run(ctx)
	}()

	errCh := make(chan error, 1)
	if a.server != nil {
		go func() {
			a.logger.Info("API local escutando", slog.String("addr", a.server.Addr))
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("erro na API local: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	cancel()
	wg.Wait()
	a.Close()
	return runErr
}

// Close encerra cliente, API e store. Pode ser chamado mais de uma vez.
func (a *Agent) Close() {
	a.closeOnce.Do(func() {
		a.logger.Info("encerrando agente")
		a.client.Close()

		if a.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.server.Shutdown(ctx); err != nil {
				a.logger.Warn("erro ao encerrar API local", logging.Err(err))
			}
			cancel()
		}

		a.lifecycle.Close()
		a.closeStore()
	})
}

func (a *Agent) closeStore() {
	if a.storeClose == nil {
		return
	}
	if err := a.storeClose.Close(); err != nil {
		a.logger.Warn("erro ao fechar store", logging.Err(err))
	}
}
