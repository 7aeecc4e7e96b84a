// internal/service/monitor.go
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"olmeda-realtime/internal/logging"
	"olmeda-realtime/internal/websocket"
)

type statsSource interface {
	State() websocket.ConnectionState
	Stats() websocket.WSStats
	ReconnectAttempts() int
}

type pinger interface {
	Ping(ctx context.Context) error
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Snapshot é o retrato do cliente e do store num instante
type Snapshot struct {
	State             string    `json:"state"`
	ReconnectAttempts int       `json:"reconnectAttempts"`
	MessagesReceived  int64     `json:"messagesReceived"`
	FramesDropped     int64     `json:"framesDropped"`
	Reconnections     int64     `json:"reconnections"`
	BytesSent         int64     `json:"bytesSent"`
	BytesReceived     int64     `json:"bytesReceived"`
	ConnectedSince    time.Time `json:"connectedSince,omitzero"`
	LastReconnectAt   time.Time `json:"lastReconnectAt,omitzero"`
	StoreHealthy      bool      `json:"storeHealthy"`
	StoreError        string    `json:"storeError,omitempty"`
	CheckedAt         time.Time `json:"checkedAt"`
}

// Monitor faz a verificação periódica: loga as estatísticas do cliente e testa o banco.
// Não reconecta o cliente; as reconexões ficam a cargo do próprio cliente e do ciclo de vida.
type Monitor struct {
	client   statsSource
	db       pinger
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	last   Snapshot
	errors int64
}

func NewMonitor(client statsSource, db pinger, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Monitor{
		client:   client,
		db:       db,
		interval: interval,
		logger:   logger.With(slog.String("component", "monitor")),
		now:      time.Now,
	}
}

// Run executa Check a cada intervalo até o contexto acabar
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Debug("iniciando rotina de monitoramento", slog.Duration("interval", m.interval))
	defer m.logger.Debug("finalizando rotina de monitoramento")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

func (m *Monitor) Check(ctx context.Context) Snapshot {
	stats := m.client.Stats()
	snap := Snapshot{
		State:             m.client.State().String(),
		ReconnectAttempts: m.client.ReconnectAttempts(),
		MessagesReceived:  stats.MessagesReceived,
		FramesDropped:     stats.FramesDropped,
		Reconnections:     stats.Reconnections,
		BytesSent:         stats.BytesSent,
		BytesReceived:     stats.BytesReceived,
		ConnectedSince:    stats.ConnectedSince,
		LastReconnectAt:   stats.LastReconnectAt,
		StoreHealthy:      true,
		CheckedAt:         m.now(),
	}

	if m.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.db.Ping(pingCtx)
		cancel()
		if err != nil {
			snap.StoreHealthy = false
			snap.StoreError = err.Error()
			m.logger.Error("falha na verificação do banco", logging.Err(err))
		}
	}

	m.mu.Lock()
	m.last = snap
	if !snap.StoreHealthy {
		m.errors++
	}
	m.mu.Unlock()

	m.logger.Info("estatísticas do cliente realtime",
		logging.State(snap.State),
		slog.Int("reconnect_attempts", snap.ReconnectAttempts),
		slog.Int64("messages", snap.MessagesReceived),
		slog.Int64("dropped", snap.FramesDropped),
		slog.Int64("reconnections", snap.Reconnections),
	)
	return snap
}

// Last devolve o último retrato calculado (zero antes do primeiro Check)
func (m *Monitor) Last() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Errors conta as verificações com falha no banco
func (m *Monitor) Errors() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors
}
