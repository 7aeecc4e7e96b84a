// internal/websocket/client.go
package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"olmeda-realtime/internal/auth"
	"olmeda-realtime/internal/identity"
	"olmeda-realtime/internal/lifecycle"
	"olmeda-realtime/internal/logging"
	"olmeda-realtime/internal/metrics"
	"olmeda-realtime/internal/models"
	"olmeda-realtime/internal/stomp"
	"olmeda-realtime/internal/store"
)

const (
	DefaultChannelTemplate = "/user-queue/appointments/{identity}"
	defaultHandlerTimeout  = 30 * time.Second
	defaultHeartBeat       = 10 * time.Second
)

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return fmt.Sprintf("ConnectionState(%d)", int(s))
}

// ClientConfig contém as configurações do cliente
type ClientConfig struct {
	Dialer    Dialer
	Tokens    auth.TokenProvider
	Navigator auth.Navigator
	Identity  identity.Source
	Store     store.StateStore
	Logger    *slog.Logger
	Metrics   *metrics.RealtimeMetrics
	Scheduler Scheduler
	Reconnect ReconnectPolicy

	// ChannelTemplate deve conter {identity}
	ChannelTemplate  string
	Host             string
	HandshakeTimeout time.Duration
	HandlerTimeout   time.Duration
	// HeartBeat pedido no CONNECT; zero usa 10s nos dois sentidos
	HeartBeat        stomp.HeartBeat
	DisableHeartBeat bool
	Now              func() time.Time
}

type WSStats struct {
	MessagesReceived int64
	FramesDropped    int64
	Reconnections    int64
	LastReconnectAt  time.Time
	ConnectedSince   time.Time
	BytesSent        int64
	BytesReceived    int64
}

// Subscription é a assinatura ativa no canal do médico
type Subscription struct {
	ID          string
	Destination string
	Identity    string
}

// connectAttempt é a tentativa em andamento. Todos que chamam Connect durante ela esperam o mesmo done.
type connectAttempt struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// session é um transporte com STOMP já negociado
type session struct {
	conn      Conn
	writeMu   sync.Mutex
	heartBeat stomp.HeartBeat
	lastRead  atomic.Int64
	stop      context.CancelFunc
	onWrite   func(n int)
}

func (s *session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(data); err != nil {
		return err
	}
	if s.onWrite != nil {
		s.onWrite(len(data))
	}
	return nil
}

func (s *session) send(f stomp.Frame) error {
	return s.write(f.Marshal())
}

func (s *session) touch(now time.Time) {
	s.lastRead.Store(now.UnixNano())
}

// SyncClient mantém uma única conexão STOMP/SockJS com o servidor de push e
// aplica os eventos recebidos no StateStore.
type SyncClient struct {
	cfg    ClientConfig
	logger *slog.Logger
	tracer trace.Tracer

	mu           sync.Mutex
	state        ConnectionState
	attempt      *connectAttempt
	session      *session
	subscription *Subscription
	timer        Timer
	timerGen     uint64
	attempts     int
	closed       bool

	handlersMu sync.RWMutex
	handlers   map[models.EventKind]EventHandler

	stats   WSStats
	statsMu sync.RWMutex
}

// NewSyncClient cria uma nova instância do cliente
func NewSyncClient(cfg ClientConfig) (*SyncClient, error) {
	switch {
	case cfg.Dialer == nil:
		return nil, errors.New("dialer obrigatório")
	case cfg.Tokens == nil:
		return nil, errors.New("token provider obrigatório")
	case cfg.Navigator == nil:
		return nil, errors.New("navigator obrigatório")
	case cfg.Store == nil:
		return nil, errors.New("state store obrigatório")
	}

	// Configurar valores padrão
	if cfg.Identity == nil {
		cfg.Identity = identity.Static("")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = SystemScheduler
	}
	cfg.Reconnect = cfg.Reconnect.withDefaults()
	if cfg.ChannelTemplate == "" {
		cfg.ChannelTemplate = DefaultChannelTemplate
	}
	if cfg.Host == "" {
		cfg.Host = "/"
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = handshakeTimeout
	}
	if cfg.HandlerTimeout == 0 {
		cfg.HandlerTimeout = defaultHandlerTimeout
	}
	if cfg.DisableHeartBeat {
		cfg.HeartBeat = stomp.HeartBeat{}
	} else if cfg.HeartBeat == (stomp.HeartBeat{}) {
		cfg.HeartBeat = stomp.HeartBeat{Outgoing: defaultHeartBeat, Incoming: defaultHeartBeat}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := cfg.Logger.With(slog.String("component", "realtime"))
	c := &SyncClient{
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("olmeda-realtime/websocket"),
		state:    StateDisconnected,
		handlers: DefaultHandlers(cfg.Store, logger),
	}
	cfg.Metrics.SetConnectionState(int(StateDisconnected))
	return c, nil
}

// RegisterHandler troca o handler de um tipo de evento
func (c *SyncClient) RegisterHandler(kind models.EventKind, h EventHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[kind] = h
}

func (c *SyncClient) handlerFor(kind models.EventKind) EventHandler {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	return c.handlers[kind]
}

func (c *SyncClient) now() time.Time {
	return c.cfg.Now()
}

// ChannelFor monta o destino da assinatura. Função pura da identidade.
func ChannelFor(template, id string) string {
	if template == "" {
		template = DefaultChannelTemplate
	}
	if !strings.Contains(template, "{identity}") {
		return strings.TrimSuffix(template, "/") + "/" + id
	}
	return strings.ReplaceAll(template, "{identity}", id)
}

// Connect abre a conexão. Se já estiver conectado, retorna nil sem tocar no transporte;
// se houver uma tentativa em andamento, espera por ela.
// O erro devolvido é informativo: falhas já foram tratadas internamente.
func (c *SyncClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	a := c.startConnectLocked()
	c.mu.Unlock()

	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnsureConnected inicia uma tentativa apenas se estiver desconectado. Não bloqueia.
func (c *SyncClient) EnsureConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.state != StateDisconnected {
		return
	}
	c.startConnectLocked()
}

// Reconnect força uma nova conexão. O contador de tentativas não é zerado.
func (c *SyncClient) Reconnect(ctx context.Context) error {
	c.Disconnect()
	return c.Connect(ctx)
}

func (c *SyncClient) startConnectLocked() *connectAttempt {
	if c.attempt != nil {
		return c.attempt
	}
	c.cancelTimerLocked()

	ctx, cancel := context.WithCancel(context.Background())
	a := &connectAttempt{done: make(chan struct{}), cancel: cancel}
	c.attempt = a
	c.setStateLocked(StateConnecting)

	go c.runAttempt(ctx, a)
	return a
}

func (c *SyncClient) runAttempt(ctx context.Context, a *connectAttempt) {
	defer a.cancel()

	ctx, span := c.tracer.Start(ctx, "realtime.connect")
	defer span.End()

	sess, err := c.establish(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.finishAttempt(a, sess, err)
}

func (c *SyncClient) establish(ctx context.Context) (*session, error) {
	token, err := c.cfg.Tokens.ValidCredential(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtendo credencial: %w", err)
	}
	if token == "" {
		return nil, ErrCredentialUnavailable
	}

	hsCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	conn, err := c.cfg.Dialer.Dial(hsCtx, token)
	if err != nil {
		return nil, err
	}

	sess, err := c.handshake(hsCtx, conn)
	if err != nil {
		if cerr := conn.Close(); cerr != nil {
			c.logger.Debug("erro ao fechar transporte após handshake", logging.Err(cerr))
		}
		return nil, err
	}
	return sess, nil
}

// handshake envia CONNECT e espera CONNECTED. O transporte é fechado se o contexto expirar.
func (c *SyncClient) handshake(ctx context.Context, conn Conn) (*session, error) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sess := &session{conn: conn, onWrite: c.addBytesSent}
	connect := stomp.New(stomp.CmdConnect,
		stomp.HdrAcceptVersion, "1.2",
		stomp.HdrHost, c.cfg.Host,
		stomp.HdrHeartBeat, c.cfg.HeartBeat.String(),
	)
	if err := sess.send(connect); err != nil {
		return nil, fmt.Errorf("enviando CONNECT: %w", err)
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("timeout no handshake STOMP: %w", ctx.Err())
			}
			return nil, err
		}
		c.addBytesReceived(len(data))

		frames, err := stomp.ParseFrames(data)
		if err != nil {
			return nil, fmt.Errorf("resposta inválida no handshake: %w", err)
		}

		for _, f := range frames {
			switch f.Command {
			case stomp.CmdConnected:
				server, err := stomp.ParseHeartBeat(f.Get(stomp.HdrHeartBeat))
				if err != nil {
					c.logger.Warn("heart-beat do servidor ignorado", logging.Err(err))
				}
				sess.heartBeat = stomp.NegotiateHeartBeat(c.cfg.HeartBeat, server)
				sess.touch(c.now())
				return sess, nil
			case stomp.CmdError:
				return nil, &ServerError{Message: f.Get(stomp.HdrMessage), Body: string(f.Body)}
			default:
				c.logger.Debug("frame inesperado no handshake", slog.String("command", f.Command))
			}
		}
	}
}

func (c *SyncClient) finishAttempt(a *connectAttempt, sess *session, err error) {
	c.mu.Lock()

	if c.attempt != a {
		// Disconnect ou Close aconteceu durante a tentativa
		c.mu.Unlock()
		if sess != nil {
			if cerr := sess.conn.Close(); cerr != nil {
				c.logger.Debug("erro ao fechar transporte descartado", logging.Err(cerr))
			}
		}
		if err == nil {
			err = ErrConnectAborted
		}
		a.err = err
		close(a.done)
		return
	}
	c.attempt = nil

	if err != nil {
		a.err = c.failLocked(err, "falha ao conectar")
		redirect := errors.Is(a.err, ErrAuthorizationRejected)
		c.mu.Unlock()
		if redirect {
			c.cfg.Navigator.RedirectToAuth()
		}
		close(a.done)
		return
	}

	c.session = sess
	c.attempts = 0
	c.setStateLocked(StateConnected)
	c.cfg.Metrics.ObserveConnect("success")
	c.statsMu.Lock()
	c.stats.ConnectedSince = c.now()
	c.statsMu.Unlock()
	c.logger.Info("conexão realtime estabelecida",
		slog.String("heart_beat", sess.heartBeat.String()))

	hbCtx, stop := context.WithCancel(context.Background())
	sess.stop = stop
	go c.readPump(sess)
	go c.heartbeatLoop(hbCtx, sess)

	if id := c.cfg.Identity.CurrentIdentity(); id != "" {
		if err := c.subscribeLocked(id); err != nil {
			c.logger.Warn("erro ao assinar canal após conectar", logging.Identity(id), logging.Err(err))
		}
	} else {
		c.logger.Info("identidade ainda desconhecida, assinatura adiada")
	}

	c.mu.Unlock()
	close(a.done)
}

type failureKind int

const (
	failureTransport failureKind = iota
	failureNoCredential
	failureAuth
)

var authMarkers = []string{
	"unauthorized", "forbidden", "access denied",
	"invalid token", "expired", "authentication",
}

// status HTTP só conta como número isolado ("frame 4013" não é 401)
var authStatusPattern = regexp.MustCompile(`\b40[13]\b`)

func looksLikeAuth(msg string) bool {
	msg = strings.ToLower(msg)
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return authStatusPattern.MatchString(msg)
}

func classifyFailure(err error) failureKind {
	if errors.Is(err, ErrCredentialUnavailable) {
		return failureNoCredential
	}
	if errors.Is(err, ErrAuthorizationRejected) {
		return failureAuth
	}

	var ce *CloseError
	if errors.As(err, &ce) && (ce.Code == ClosePolicyViolation || ce.Code == CloseProtocolError) {
		return failureAuth
	}

	var se *ServerError
	if errors.As(err, &se) && (looksLikeAuth(se.Message) || looksLikeAuth(se.Body)) {
		return failureAuth
	}
	return failureTransport
}

// failLocked derruba tudo e decide entre reconectar ou parar.
// Devolve o erro a reportar; falhas de autenticação voltam embrulhando ErrAuthorizationRejected
// e o chamador deve redirecionar depois de soltar o lock.
func (c *SyncClient) failLocked(err error, msg string) error {
	c.teardownLocked(false)
	c.setStateLocked(StateDisconnected)

	switch classifyFailure(err) {
	case failureNoCredential:
		c.logger.Info("conexão abortada: sem credencial")
		c.cfg.Metrics.ObserveConnect("no_credential")
		return err

	case failureAuth:
		c.cancelTimerLocked()
		c.logger.Warn(msg+": autorização rejeitada, sem nova tentativa", logging.Err(err))
		c.cfg.Metrics.ObserveConnect("auth_rejected")
		c.cfg.Metrics.AuthRedirect()
		if !errors.Is(err, ErrAuthorizationRejected) {
			err = fmt.Errorf("%w: %w", ErrAuthorizationRejected, err)
		}
		return err
	}

	c.logger.Warn(msg, logging.Err(err))
	c.cfg.Metrics.ObserveConnect("transport_failure")
	c.scheduleReconnectLocked()
	return err
}

func (c *SyncClient) scheduleReconnectLocked() {
	if c.closed {
		return
	}
	if c.attempts >= c.cfg.Reconnect.MaxAttempts {
		c.logger.Warn("número máximo de tentativas de reconexão atingido",
			logging.Attempt(c.attempts))
		return
	}

	c.attempts++
	delay := c.cfg.Reconnect.Delay(c.attempts)

	c.cancelTimerLocked()
	gen := c.timerGen
	c.timer = c.cfg.Scheduler.AfterFunc(delay, func() { c.onReconnectTimer(gen) })

	c.logger.Info("reconexão agendada",
		logging.Attempt(c.attempts),
		slog.Int("max_attempts", c.cfg.Reconnect.MaxAttempts),
		slog.Duration("delay", delay))
	c.cfg.Metrics.ReconnectScheduled()

	c.statsMu.Lock()
	c.stats.Reconnections++
	c.stats.LastReconnectAt = c.now()
	c.statsMu.Unlock()
}

func (c *SyncClient) cancelTimerLocked() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Cancel()
		c.timer = nil
	}
}

func (c *SyncClient) onReconnectTimer(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.timerGen || c.timer == nil {
		return
	}
	c.timer = nil
	if c.closed || c.state != StateDisconnected {
		return
	}
	c.logger.Info("tentando reconectar", logging.Attempt(c.attempts))
	c.startConnectLocked()
}

// Subscribe assina o canal da identidade, desfazendo a assinatura anterior.
// Fora do estado Connected não faz nada.
func (c *SyncClient) Subscribe(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribeLocked(id)
}

func (c *SyncClient) subscribeLocked(id string) error {
	if id == "" {
		return identity.ErrEmptyIdentity
	}
	if c.state != StateConnected || c.session == nil {
		c.logger.Warn("assinatura ignorada: cliente não conectado",
			logging.Identity(id), logging.State(c.state.String()))
		return nil
	}

	if prev := c.subscription; prev != nil {
		c.subscription = nil
		if err := c.session.send(stomp.New(stomp.CmdUnsubscribe, stomp.HdrID, prev.ID)); err != nil {
			c.logger.Warn("erro ao cancelar assinatura anterior", logging.Destination(prev.Destination), logging.Err(err))
		}
	}

	sub := &Subscription{
		ID:          "sub-" + uuid.NewString(),
		Destination: ChannelFor(c.cfg.ChannelTemplate, id),
		Identity:    id,
	}
	frame := stomp.New(stomp.CmdSubscribe,
		stomp.HdrID, sub.ID,
		stomp.HdrDestination, sub.Destination,
		stomp.HdrAck, "auto",
	)
	if err := c.session.send(frame); err != nil {
		return fmt.Errorf("enviando SUBSCRIBE: %w", err)
	}

	c.subscription = sub
	c.logger.Info("canal assinado", logging.Destination(sub.Destination), logging.Identity(id))
	return nil
}

// Disconnect derruba conexão, assinatura, tentativa em andamento e reconexão agendada.
// Pode ser chamado em qualquer estado. Não zera o contador de tentativas.
func (c *SyncClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelTimerLocked()
	if a := c.attempt; a != nil {
		c.attempt = nil
		a.cancel()
	}
	c.teardownLocked(true)
	if c.state != StateDisconnected {
		c.logger.Info("desconectado")
	}
	c.setStateLocked(StateDisconnected)
}

// Close encerra o cliente de vez
func (c *SyncClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.Disconnect()
}

// teardownLocked solta sessão e assinatura. graceful envia UNSUBSCRIBE e DISCONNECT antes de fechar;
// erros de limpeza são apenas registrados.
func (c *SyncClient) teardownLocked(graceful bool) {
	sess := c.session
	sub := c.subscription
	c.session = nil
	c.subscription = nil
	if sess == nil {
		return
	}

	if graceful {
		if sub != nil {
			if err := sess.send(stomp.New(stomp.CmdUnsubscribe, stomp.HdrID, sub.ID)); err != nil {
				c.logger.Debug("erro ao cancelar assinatura", logging.Err(err))
			}
		}
		if err := sess.send(stomp.New(stomp.CmdDisconnect)); err != nil {
			c.logger.Debug("erro ao enviar DISCONNECT", logging.Err(err))
		}
	}
	if sess.stop != nil {
		sess.stop()
	}
	if err := sess.conn.Close(); err != nil {
		c.logger.Debug("erro ao fechar transporte", logging.Err(err))
	}

	c.statsMu.Lock()
	c.stats.ConnectedSince = time.Time{}
	c.statsMu.Unlock()
}

func (c *SyncClient) setStateLocked(s ConnectionState) {
	c.state = s
	c.cfg.Metrics.SetConnectionState(int(s))
}

// readPump lê frames até o transporte cair
func (c *SyncClient) readPump(sess *session) {
	for {
		data, err := sess.conn.ReadMessage()
		if err != nil {
			c.endSession(sess, err)
			return
		}
		sess.touch(c.now())
		c.addBytesReceived(len(data))

		frames, err := stomp.ParseFrames(data)
		if err != nil {
			c.logger.Warn("frame STOMP inválido descartado", logging.Err(err))
			c.cfg.Metrics.ObserveFrame("", resultMalformed)
			c.incrementDropped()
		}

		for _, f := range frames {
			switch f.Command {
			case stomp.CmdMessage:
				c.handleMessage(sess, f)
			case stomp.CmdError:
				c.endSession(sess, &ServerError{Message: f.Get(stomp.HdrMessage), Body: string(f.Body)})
				return
			case stomp.CmdReceipt:
				c.logger.Debug("receipt recebido", slog.String("receipt_id", f.Get(stomp.HdrReceiptID)))
			default:
				c.logger.Debug("frame ignorado", slog.String("command", f.Command))
			}
		}
	}
}

func (c *SyncClient) handleMessage(sess *session, f stomp.Frame) {
	c.mu.Lock()
	current := c.subscription
	stale := c.session != sess
	c.mu.Unlock()

	if stale {
		return
	}
	if current == nil || f.Get(stomp.HdrSubscription) != current.ID {
		c.logger.Debug("mensagem de assinatura antiga descartada",
			slog.String("subscription", f.Get(stomp.HdrSubscription)))
		c.cfg.Metrics.ObserveFrame("", "stale_subscription")
		c.incrementDropped()
		return
	}
	c.processFrame(f.Body)
}

// endSession trata o fim do transporte de uma sessão ativa. Callbacks de sessões antigas são ignorados.
func (c *SyncClient) endSession(sess *session, cause error) {
	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}

	err := c.failLocked(cause, "conexão realtime perdida")
	redirect := errors.Is(err, ErrAuthorizationRejected)
	c.mu.Unlock()

	if redirect {
		c.cfg.Navigator.RedirectToAuth()
	}
}

// heartbeatLoop envia EOL no intervalo negociado e derruba o transporte quando o servidor some
func (c *SyncClient) heartbeatLoop(ctx context.Context, sess *session) {
	hb := sess.heartBeat
	if hb.Outgoing <= 0 && hb.Incoming <= 0 {
		return
	}

	var sendC, checkC <-chan time.Time
	if hb.Outgoing > 0 {
		t := time.NewTicker(hb.Outgoing)
		defer t.Stop()
		sendC = t.C
	}
	if hb.Incoming > 0 {
		t := time.NewTicker(hb.Incoming)
		defer t.Stop()
		checkC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sendC:
			if err := sess.write([]byte("\n")); err != nil {
				c.logger.Warn("erro ao enviar heart-beat", logging.Err(err))
				sess.conn.Close()
				return
			}
		case <-checkC:
			last := time.Unix(0, sess.lastRead.Load())
			if silence := c.now().Sub(last); silence > 2*hb.Incoming {
				c.logger.Warn("servidor sem heart-beat, fechando transporte", slog.Duration("silence", silence))
				sess.conn.Close()
				return
			}
		}
	}
}

// OnAppStateChange desconecta em background/inactive e garante conexão em active
func (c *SyncClient) OnAppStateChange(state lifecycle.AppState) {
	c.logger.Debug("mudança de estado da aplicação", slog.String("app_state", string(state)))
	if state.Visible() {
		c.EnsureConnected()
		return
	}
	c.Disconnect()
}

// Watch consome as transições até o contexto acabar ou a fonte fechar
func (c *SyncClient) Watch(ctx context.Context, src lifecycle.Source) {
	changes := src.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-changes:
			if !ok {
				return
			}
			c.OnAppStateChange(s)
		}
	}
}

// State retorna o estado atual da conexão
func (c *SyncClient) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscription retorna uma cópia da assinatura ativa, ou nil
func (c *SyncClient) Subscription() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscription == nil {
		return nil
	}
	sub := *c.subscription
	return &sub
}

// ReconnectAttempts é o número de reconexões agendadas desde o último sucesso
func (c *SyncClient) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Stats retorna uma cópia das estatísticas atuais
func (c *SyncClient) Stats() WSStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// Métodos internos para atualizar as estatísticas
func (c *SyncClient) incrementMessagesReceived() {
	c.statsMu.Lock()
	c.stats.MessagesReceived++
	c.statsMu.Unlock()
}

func (c *SyncClient) incrementDropped() {
	c.statsMu.Lock()
	c.stats.FramesDropped++
	c.statsMu.Unlock()
}

func (c *SyncClient) addBytesSent(n int) {
	c.statsMu.Lock()
	c.stats.BytesSent += int64(n)
	c.statsMu.Unlock()
}

func (c *SyncClient) addBytesReceived(n int) {
	c.statsMu.Lock()
	c.stats.BytesReceived += int64(n)
	c.statsMu.Unlock()
}
