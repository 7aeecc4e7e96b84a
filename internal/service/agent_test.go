package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"olmeda-realtime/internal/auth"
	"olmeda-realtime/internal/config"
	"olmeda-realtime/internal/models"
	"olmeda-realtime/internal/stomp"
	"olmeda-realtime/internal/store"
	"olmeda-realtime/internal/websocket"
)

// brokerConn responde ao CONNECT e guarda o id da assinatura
type brokerConn struct {
	in      chan []byte
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	subID   string
	dest    string
	subbed  chan struct{}
	subOnce sync.Once
}

func newBrokerConn() *brokerConn {
	return &brokerConn{
		in:     make(chan []byte, 16),
		done:   make(chan struct{}),
		subbed: make(chan struct{}),
	}
}

func (c *brokerConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.done:
		return nil, errors.New("fechada")
	}
}

func (c *brokerConn) WriteMessage(data []byte) error {
	frames, err := stomp.ParseFrames(data)
	if err != nil {
		return err
	}
	for _, f := range frames {
		switch f.Command {
		case stomp.CmdConnect:
			c.in <- stomp.New(stomp.CmdConnected, stomp.HdrVersion, "1.2").Marshal()
		case stomp.CmdSubscribe:
			c.mu.Lock()
			c.subID = f.Get(stomp.HdrID)
			c.dest = f.Get(stomp.HdrDestination)
			c.mu.Unlock()
			c.subOnce.Do(func() { close(c.subbed) })
		}
	}
	return nil
}

func (c *brokerConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *brokerConn) push(body string) {
	c.mu.Lock()
	id := c.subID
	c.mu.Unlock()
	f := stomp.New(stomp.CmdMessage, stomp.HdrSubscription, id, stomp.HdrMessageID, "1")
	f.Body = []byte(body)
	c.in <- f.Marshal()
}

type agentEnv struct {
	agent  *Agent
	store  *store.MemoryStore
	creds  *auth.MemoryCredentials
	conns  chan *brokerConn
	dials  func() int
	server *httptest.Server
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Realtime: config.Realtime{
			Enabled:          true,
			ServerURL:        "https://api.olmeda.com/ws",
			HandshakeTimeout: 2 * time.Second,
			DisableHeartBeat: true,
			TokenLeeway:      time.Second,
		},
		Keyring: config.Keyring{Disabled: true},
	}
	return cfg
}

func newAgentEnv(t *testing.T, cfg *config.Config) *agentEnv {
	t.Helper()

	env := &agentEnv{
		store: store.NewMemoryStore(),
		creds: auth.NewMemoryCredentials(),
		conns: make(chan *brokerConn, 8),
	}

	var mu sync.Mutex
	dials := 0
	env.dials = func() int {
		mu.Lock()
		defer mu.Unlock()
		return dials
	}
	dialer := websocket.DialerFunc(func(ctx context.Context, credential string) (websocket.Conn, error) {
		mu.Lock()
		dials++
		mu.Unlock()
		conn := newBrokerConn()
		env.conns <- conn
		return conn, nil
	})

	a, err := New(context.Background(), cfg, nil, Deps{
		Dialer:      dialer,
		Credentials: env.creds,
		Store:       env.store,
		Registry:    prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	env.agent = a
	env.server = httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		env.server.Close()
		a.Close()
	})
	return env
}

func validToken(t *testing.T) string {
	t.Helper()
	tok, err := auth.NewTokenIssuer("segredo").GenerateToken("42", "inst-1", time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *agentEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAgent_SessionConnectsAndAppliesPush(t *testing.T) {
	env := newAgentEnv(t, testConfig())

	resp := env.do(t, http.MethodPut, "/session", `{"token":"`+validToken(t)+`","doctorId":"42"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var conn *brokerConn
	select {
	case conn = <-env.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("agente não discou")
	}
	select {
	case <-conn.subbed:
	case <-time.After(2 * time.Second):
		t.Fatal("agente não assinou o canal")
	}
	conn.mu.Lock()
	assert.Equal(t, "/user-queue/appointments/42", conn.dest)
	conn.mu.Unlock()

	conn.push(`{"type":"APPOINTMENT","payload":{"appointmentId":7,"patientName":"Ana","status":"CONFIRMED"}}`)
	conn.push(`{"type":"NOTIFICATION","payload":{"id":"n1","type":"alert","title":"Aviso"}}`)

	require.Eventually(t, func() bool {
		got, _ := env.store.Notifications(context.Background(), 0)
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp = env.do(t, http.MethodGet, "/appointments", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var appts []models.AppointmentRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&appts))
	require.Len(t, appts, 1)
	assert.Equal(t, models.RecordID("7"), appts[0].ID)

	resp = env.do(t, http.MethodGet, "/notifications?limit=5", "")
	var notifs []models.NotificationRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&notifs))
	require.Len(t, notifs, 1)
	assert.Equal(t, models.NotificationAlert, notifs[0].Type)

	resp = env.do(t, http.MethodPost, "/notifications/n1/read", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/notifications/nao-existe/read", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/healthz", "")
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "connected", health["state"])
	assert.Equal(t, "42", health["identity"])
	assert.Equal(t, false, health["authRequired"])
}

func TestAgent_MissingTokenRequiresAuth(t *testing.T) {
	env := newAgentEnv(t, testConfig())

	err := env.agent.Client().Connect(context.Background())
	assert.ErrorIs(t, err, websocket.ErrCredentialUnavailable)
	assert.Equal(t, 0, env.dials())

	resp := env.do(t, http.MethodGet, "/healthz", "")
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, true, health["authRequired"])
	assert.Equal(t, "disconnected", health["state"])
}

func TestAgent_SeedsCredentialsFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Realtime.AuthToken = "tok-config"
	cfg.Realtime.DoctorID = "77"
	env := newAgentEnv(t, cfg)

	tok, err := env.creds.Get(auth.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-config", tok)
	assert.Equal(t, "77", env.agent.Identity().CurrentIdentity())
}

func TestAgent_IdentityAndLifecycleRoutes(t *testing.T) {
	env := newAgentEnv(t, testConfig())

	resp := env.do(t, http.MethodPut, "/identity", `{"doctorId":"99"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "99", env.agent.Identity().CurrentIdentity())
	stored, err := env.creds.Get(auth.KeyDoctorID)
	require.NoError(t, err)
	assert.Equal(t, "99", stored)

	resp = env.do(t, http.MethodPut, "/identity", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/lifecycle", `{"state":"background"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	select {
	case s := <-env.agent.Lifecycle().Changes():
		assert.Equal(t, "background", string(s))
	case <-time.After(time.Second):
		t.Fatal("transição não publicada")
	}

	resp = env.do(t, http.MethodPost, "/lifecycle", `{"state":"dormindo"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/notifications?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/session", `{"token":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAgent_MetricsEndpoint(t *testing.T) {
	env := newAgentEnv(t, testConfig())

	resp := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, err := io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "olmeda_realtime_client_connection_state")
}

func TestAgent_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	env := newAgentEnv(t, cfg)
	require.NoError(t, env.creds.Set(auth.KeyAccessToken, validToken(t)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.agent.Run(ctx) }()

	select {
	case <-env.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("Run não iniciou a conexão")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run não terminou")
	}
	assert.Equal(t, websocket.StateDisconnected, env.agent.Client().State())
	assert.False(t, env.agent.Lifecycle().Publish("active"))
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, nil, Deps{})
	assert.Error(t, err)
}
