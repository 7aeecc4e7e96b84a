package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"olmeda-realtime/internal/identity"
	"olmeda-realtime/internal/stomp"
	"olmeda-realtime/internal/store"
)

var errConnClosed = errors.New("conexão fechada")

// fakeConn simula o transporte já desembrulhado do SockJS
type fakeConn struct {
	inbound      chan []byte
	connectReply []byte

	mu       sync.Mutex
	frames   []stomp.Frame
	closed   bool
	closeErr error
	done     chan struct{}
}

func newFakeConn(reply []byte) *fakeConn {
	if reply == nil {
		reply = stomp.New(stomp.CmdConnected, stomp.HdrVersion, "1.2").Marshal()
	}
	return &fakeConn{
		inbound:      make(chan []byte, 64),
		connectReply: reply,
		done:         make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closeErr != nil {
			return nil, c.closeErr
		}
		return nil, errConnClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errConnClosed
	}
	frames, err := stomp.ParseFrames(data)
	c.frames = append(c.frames, frames...)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	for _, f := range frames {
		if f.Command == stomp.CmdConnect {
			c.inbound <- c.connectReply
		}
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.fail(nil)
	return nil
}

// fail fecha a conexão fazendo ReadMessage devolver err
func (c *fakeConn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = err
	close(c.done)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) written() []stomp.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]stomp.Frame(nil), c.frames...)
}

func (c *fakeConn) commands() []string {
	var out []string
	for _, f := range c.written() {
		out = append(out, f.Command)
	}
	return out
}

// push entrega um MESSAGE na assinatura informada
func (c *fakeConn) push(subscriptionID, body string) {
	f := stomp.New(stomp.CmdMessage,
		stomp.HdrSubscription, subscriptionID,
		stomp.HdrDestination, "/user-queue/appointments/42",
		stomp.HdrMessageID, "m-1",
	)
	f.Body = []byte(body)
	c.inbound <- f.Marshal()
}

type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	tokens  []string
	conns   []*fakeConn
	errs    []error
	failAll error
	gate    chan struct{}
	reply   []byte
}

func (d *fakeDialer) Dial(ctx context.Context, credential string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	d.tokens = append(d.tokens, credential)
	gate := d.gate
	var err error
	if len(d.errs) > 0 {
		err, d.errs = d.errs[0], d.errs[1:]
	} else if d.failAll != nil {
		err = d.failAll
	}
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	conn := newFakeConn(d.reply)
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) allConns() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeConn(nil), d.conns...)
}

type fakeTimer struct {
	delay    time.Duration
	fn       func()
	canceled bool
	fired    bool
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	s.timers = append(s.timers, t)
	return &fakeTimerHandle{s: s, t: t}
}

type fakeTimerHandle struct {
	s *fakeScheduler
	t *fakeTimer
}

func (h *fakeTimerHandle) Cancel() {
	h.s.mu.Lock()
	h.t.canceled = true
	h.s.mu.Unlock()
}

func (s *fakeScheduler) scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.canceled && !t.fired {
			n++
		}
	}
	return n
}

func (s *fakeScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, t := range s.timers {
		out = append(out, t.delay)
	}
	return out
}

// fireNext dispara o primeiro timer pendente; devolve false se não houver
func (s *fakeScheduler) fireNext() bool {
	s.mu.Lock()
	var next *fakeTimer
	for _, t := range s.timers {
		if !t.canceled && !t.fired {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	s.mu.Unlock()

	if next == nil {
		return false
	}
	next.fn()
	return true
}

type fakeTokens struct {
	token string
	calls atomic.Int32
}

func (f *fakeTokens) ValidCredential(context.Context) (string, error) {
	f.calls.Add(1)
	return f.token, nil
}

type fakeNavigator struct {
	calls atomic.Int32
}

func (n *fakeNavigator) RedirectToAuth() {
	n.calls.Add(1)
}

type testEnv struct {
	client    *SyncClient
	dialer    *fakeDialer
	scheduler *fakeScheduler
	tokens    *fakeTokens
	navigator *fakeNavigator
	store     *store.MemoryStore
	identity  *identity.Deferred
}

func newTestEnv(t *testing.T, mutate ...func(*ClientConfig)) *testEnv {
	t.Helper()

	env := &testEnv{
		dialer:    &fakeDialer{},
		scheduler: &fakeScheduler{},
		tokens:    &fakeTokens{token: "tok-valido"},
		navigator: &fakeNavigator{},
		store:     store.NewMemoryStore(),
		identity:  identity.NewDeferred("42"),
	}

	cfg := ClientConfig{
		Dialer:           env.dialer,
		Tokens:           env.tokens,
		Navigator:        env.navigator,
		Identity:         env.identity,
		Store:            env.store,
		Scheduler:        env.scheduler,
		DisableHeartBeat: true,
		HandshakeTimeout: 2 * time.Second,
		Now:              func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) },
	}
	for _, m := range mutate {
		m(&cfg)
	}

	c, err := NewSyncClient(cfg)
	require.NoError(t, err)
	env.client = c
	t.Cleanup(c.Close)
	return env
}

func (e *testEnv) connect(t *testing.T) *fakeConn {
	t.Helper()
	require.NoError(t, e.client.Connect(context.Background()))
	require.Equal(t, StateConnected, e.client.State())
	conn := e.dialer.lastConn()
	require.NotNil(t, conn)
	return conn
}

// settled é verdadeiro quando não há tentativa em andamento
func (e *testEnv) settled() bool {
	e.client.mu.Lock()
	defer e.client.mu.Unlock()
	return e.client.attempt == nil
}

func (e *testEnv) waitSettled(t *testing.T) {
	t.Helper()
	require.Eventually(t, e.settled, 2*time.Second, 5*time.Millisecond)
}
