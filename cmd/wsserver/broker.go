// cmd/wsserver/broker.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"olmeda-realtime/internal/auth"
	"olmeda-realtime/internal/logging"
	"olmeda-realtime/internal/stomp"
	realtime "olmeda-realtime/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Permissivo para testes
	},
}

// broker é um servidor STOMP mínimo sobre SockJS para desenvolvimento
type broker struct {
	issuer    *auth.TokenIssuer
	logger    *slog.Logger
	template  string
	heartBeat time.Duration

	mu       sync.Mutex
	sessions map[*brokerSession]struct{}
}

type brokerSession struct {
	id       string
	ws       *websocket.Conn
	doctorID string

	writeMu sync.Mutex
	mu      sync.Mutex
	subs    map[string]string // id da assinatura -> destino
}

func newBroker(issuer *auth.TokenIssuer, template string, heartBeat time.Duration, logger *slog.Logger) *broker {
	if template == "" {
		template = realtime.DefaultChannelTemplate
	}
	return &broker{
		issuer:    issuer,
		logger:    logger,
		template:  template,
		heartBeat: heartBeat,
		sessions:  make(map[*brokerSession]struct{}),
	}
}

func (b *broker) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws/info", b.handleInfo)
	r.Get("/ws/{server}/{session}/websocket", b.handleWebSocket)

	r.Post("/token", b.handleToken)
	r.Post("/publish/{identity}", b.handlePublish)
	r.Post("/revoke/{identity}", b.handleRevoke)
	return r
}

func (b *broker) authenticate(r *http.Request) (*auth.Claims, bool) {
	claims, err := b.issuer.ValidateToken(r.URL.Query().Get("token"))
	if err != nil {
		b.logger.Warn("token rejeitado", logging.Err(err))
		return nil, false
	}
	return claims, true
}

func (b *broker) handleInfo(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.authenticate(r); !ok {
		http.Error(w, "Credenciais inválidas", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"websocket":     true,
		"cookie_needed": false,
		"origins":       []string{"*:*"},
		"entropy":       rand.Int64(),
	})
}

func (b *broker) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, ok := b.authenticate(r)
	if !ok {
		http.Error(w, "Credenciais inválidas", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("erro no upgrade", logging.Err(err))
		return
	}

	s := &brokerSession{
		id:       chi.URLParam(r, "session"),
		ws:       conn,
		doctorID: claims.DoctorID,
		subs:     make(map[string]string),
	}
	b.logger.Info("nova conexão",
		logging.Identity(s.doctorID),
		slog.String("instance_id", claims.InstanceID),
		slog.String("session", s.id))

	b.mu.Lock()
	b.sessions[s] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.sessions, s)
		b.mu.Unlock()
		conn.Close()
		b.logger.Info("cliente desconectado", slog.String("session", s.id))
	}()

	if err := s.writeRaw([]byte("o")); err != nil {
		return
	}

	stop := make(chan struct{})
	defer close(stop)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msgs []string
		if err := json.Unmarshal(data, &msgs); err != nil {
			b.logger.Warn("frame SockJS inválido", logging.Err(err))
			return
		}

		for _, m := range msgs {
			frames, err := stomp.ParseFrames([]byte(m))
			if err != nil {
				s.sendError("frame inválido", err.Error())
				return
			}
			for _, f := range frames {
				if !b.handleFrame(s, f, stop) {
					return
				}
			}
		}
	}
}

// handleFrame devolve false quando a sessão deve ser encerrada
func (b *broker) handleFrame(s *brokerSession, f stomp.Frame, stop <-chan struct{}) bool {
	switch f.Command {
	case stomp.CmdConnect:
		hb := stomp.HeartBeat{Outgoing: b.heartBeat, Incoming: b.heartBeat}
		reply := stomp.New(stomp.CmdConnected,
			stomp.HdrVersion, "1.2",
			stomp.HdrHeartBeat, hb.String(),
			"server", "olmeda-wsserver/1.0",
		)
		if err := s.send(reply); err != nil {
			return false
		}

		client, err := stomp.ParseHeartBeat(f.Get(stomp.HdrHeartBeat))
		if err == nil {
			if interval := stomp.NegotiateHeartBeat(hb, client).Outgoing; interval > 0 {
				go s.heartbeat(interval, stop)
			}
		}

	case stomp.CmdSubscribe:
		dest := f.Get(stomp.HdrDestination)
		if dest != realtime.ChannelFor(b.template, s.doctorID) {
			s.sendError("Access Denied: destino não permitido", dest)
			return false
		}
		s.mu.Lock()
		s.subs[f.Get(stomp.HdrID)] = dest
		s.mu.Unlock()
		b.logger.Info("assinatura registrada", logging.Destination(dest), logging.Identity(s.doctorID))

	case stomp.CmdUnsubscribe:
		s.mu.Lock()
		delete(s.subs, f.Get(stomp.HdrID))
		s.mu.Unlock()

	case stomp.CmdDisconnect:
		if receipt := f.Get(stomp.HdrReceipt); receipt != "" {
			_ = s.send(stomp.New(stomp.CmdReceipt, stomp.HdrReceiptID, receipt))
		}
		return false

	default:
		b.logger.Debug("comando ignorado", slog.String("command", f.Command))
	}
	return true
}

func (b *broker) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DoctorID   string `json:"doctorId"`
		InstanceID string `json:"instanceId"`
		TTL        string `json:"ttl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DoctorID == "" {
		http.Error(w, "doctorId obrigatório", http.StatusBadRequest)
		return
	}

	var ttl time.Duration
	if req.TTL != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil {
			http.Error(w, "ttl inválido", http.StatusBadRequest)
			return
		}
		ttl = d
	}

	token, err := b.issuer.GenerateToken(req.DoctorID, req.InstanceID, ttl)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handlePublish entrega o corpo (um evento {"type":...,"payload":...}) a todas as sessões do médico
func (b *broker) handlePublish(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "corpo inválido", http.StatusBadRequest)
		return
	}

	delivered := b.publish(identity, body)
	writeJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}

func (b *broker) publish(identity string, body []byte) int {
	dest := realtime.ChannelFor(b.template, identity)
	delivered := 0

	for _, s := range b.sessionsFor(identity) {
		s.mu.Lock()
		var subIDs []string
		for id, d := range s.subs {
			if d == dest {
				subIDs = append(subIDs, id)
			}
		}
		s.mu.Unlock()

		for _, id := range subIDs {
			msg := stomp.New(stomp.CmdMessage,
				stomp.HdrSubscription, id,
				stomp.HdrDestination, dest,
				stomp.HdrMessageID, uuid.NewString(),
				stomp.HdrContentType, "application/json",
			)
			msg.Body = body
			if err := s.send(msg); err != nil {
				b.logger.Warn("erro no envio", logging.Err(err))
				continue
			}
			delivered++
		}
	}

	b.logger.Info("evento publicado", logging.Destination(dest), slog.Int("delivered", delivered))
	return delivered
}

// handleRevoke fecha as sessões do médico com 1008, como o backend faz ao revogar o token
func (b *broker) handleRevoke(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	closed := 0
	for _, s := range b.sessionsFor(identity) {
		frame := fmt.Sprintf("c[%d,%s]", realtime.ClosePolicyViolation, strconv.Quote("token revogado"))
		if err := s.writeRaw([]byte(frame)); err == nil {
			closed++
		}
		s.ws.Close()
	}
	writeJSON(w, http.StatusOK, map[string]int{"closed": closed})
}

func (b *broker) sessionsFor(identity string) []*brokerSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*brokerSession
	for s := range b.sessions {
		if s.doctorID == identity {
			out = append(out, s)
		}
	}
	return out
}

func (s *brokerSession) writeRaw(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

func (s *brokerSession) send(f stomp.Frame) error {
	payload, err := realtime.EncodeSockJSMessages(f.Marshal())
	if err != nil {
		return err
	}
	return s.writeRaw(append([]byte("a"), payload...))
}

func (s *brokerSession) sendError(message, body string) {
	f := stomp.New(stomp.CmdError, stomp.HdrMessage, message)
	f.Body = []byte(body)
	_ = s.send(f)
}

func (s *brokerSession) heartbeat(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			payload, _ := realtime.EncodeSockJSMessages([]byte("\n"))
			if err := s.writeRaw(append([]byte("a"), payload...)); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
