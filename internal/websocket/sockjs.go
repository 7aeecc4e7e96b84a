// internal/websocket/sockjs.go
package websocket

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"olmeda-realtime/internal/logging"
)

const (
	writeWait        = 10 * time.Second
	maxMessageSize   = 512 * 1024 // 512KB
	defaultTimeout   = 45 * time.Second
	handshakeTimeout = 15 * time.Second
	maxInfoBody      = 64 * 1024
)

// Tipos de frame SockJS
const (
	FrameOpen      = 'o'
	FrameHeartbeat = 'h'
	FrameArray     = 'a'
	FrameMessage   = 'm'
	FrameClose     = 'c'
)

// SockJSFrame é um frame recebido do servidor SockJS
type SockJSFrame struct {
	Type     byte
	Messages [][]byte
	Code     int
	Reason   string
}

// DecodeSockJSFrame interpreta o texto de um frame WebSocket do transporte SockJS
func DecodeSockJSFrame(data []byte) (SockJSFrame, error) {
	if len(data) == 0 {
		return SockJSFrame{}, fmt.Errorf("sockjs: frame vazio")
	}

	f := SockJSFrame{Type: data[0]}
	payload := data[1:]

	switch f.Type {
	case FrameOpen, FrameHeartbeat:
		return f, nil

	case FrameArray:
		var msgs []string
		if err := json.Unmarshal(payload, &msgs); err != nil {
			return SockJSFrame{}, fmt.Errorf("sockjs: frame a inválido: %w", err)
		}
		for _, m := range msgs {
			f.Messages = append(f.Messages, []byte(m))
		}
		return f, nil

	case FrameMessage:
		var msg string
		if err := json.Unmarshal(payload, &msg); err != nil {
			return SockJSFrame{}, fmt.Errorf("sockjs: frame m inválido: %w", err)
		}
		f.Messages = [][]byte{[]byte(msg)}
		return f, nil

	case FrameClose:
		var parts []json.RawMessage
		if err := json.Unmarshal(payload, &parts); err != nil || len(parts) == 0 {
			return SockJSFrame{}, fmt.Errorf("sockjs: frame c inválido: %s", payload)
		}
		if err := json.Unmarshal(parts[0], &f.Code); err != nil {
			return SockJSFrame{}, fmt.Errorf("sockjs: código de fechamento inválido: %w", err)
		}
		if len(parts) > 1 {
			_ = json.Unmarshal(parts[1], &f.Reason)
		}
		return f, nil
	}

	return SockJSFrame{}, fmt.Errorf("sockjs: tipo de frame desconhecido %q", f.Type)
}

// EncodeSockJSMessages monta o array JSON que o cliente envia
func EncodeSockJSMessages(msgs ...[]byte) ([]byte, error) {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m)
	}
	return json.Marshal(out)
}

// BaseURL normaliza o endereço do servidor. Sem esquema, UseSSL decide entre http e https.
func BaseURL(serverURL string, useSSL bool) (*url.URL, error) {
	raw := strings.TrimSpace(serverURL)
	if raw == "" {
		return nil, fmt.Errorf("URL do servidor vazia")
	}
	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("erro ao parsear URL base: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL do servidor sem host: %q", serverURL)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "https"
	case "http", "ws":
		u.Scheme = "http"
	default:
		u.Scheme = "http"
		if useSSL {
			u.Scheme = "https"
		}
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// InfoURL é o endpoint de handshake com o token na query
func InfoURL(base *url.URL, token string) string {
	u := *base
	u.Path = base.Path + "/info"
	q := url.Values{}
	q.Set("token", token)
	q.Set("t", strconv.FormatInt(time.Now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

// BuildTransportURL monta ws(s)://host{base}/{server}/{session}/websocket?token=...
func BuildTransportURL(base *url.URL, token, serverID, sessionID string) string {
	u := *base
	u.Scheme = "ws"
	if base.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path = fmt.Sprintf("%s/%s/%s/websocket", base.Path, serverID, sessionID)
	q := url.Values{}
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func newServerID() string {
	return fmt.Sprintf("%03d", rand.IntN(1000))
}

func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

type sockjsInfo struct {
	WebSocket    bool     `json:"websocket"`
	CookieNeeded bool     `json:"cookie_needed"`
	Origins      []string `json:"origins"`
	Entropy      int64    `json:"entropy"`
}

type DialerConfig struct {
	ServerURL          string
	UseSSL             bool
	InsecureSkipVerify bool
	InstanceID         string
	HandshakeTimeout   time.Duration
	Logger             *slog.Logger
}

// SockJSDialer faz o probe /info via HTTP e abre o transporte websocket do SockJS
type SockJSDialer struct {
	base       *url.URL
	httpClient *http.Client
	ws         *websocket.Dialer
	header     http.Header
	logger     *slog.Logger
}

func NewSockJSDialer(cfg DialerConfig) (*SockJSDialer, error) {
	base, err := BaseURL(cfg.ServerURL, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = handshakeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	header := http.Header{
		"User-Agent": []string{"Olmeda-Realtime-Client/1.0"},
	}
	if cfg.InstanceID != "" {
		header.Set("X-Instance-ID", cfg.InstanceID)
	}

	return &SockJSDialer{
		base: base,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment, TLSClientConfig: tlsConfig},
		},
		ws: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
			TLSClientConfig:  tlsConfig,
		},
		header: header,
		logger: cfg.Logger,
	}, nil
}

func (d *SockJSDialer) Dial(ctx context.Context, credential string) (Conn, error) {
	info, err := d.probeInfo(ctx, credential)
	if err != nil {
		return nil, err
	}
	if !info.WebSocket {
		return nil, fmt.Errorf("servidor SockJS não oferece transporte websocket")
	}

	transportURL := BuildTransportURL(d.base, credential, newServerID(), newSessionID())
	d.logger.Debug("abrindo transporte websocket", slog.String("host", d.base.Host))

	ws, resp, err := d.ws.DialContext(ctx, transportURL, d.header)
	if err != nil {
		if resp != nil {
			status := resp.StatusCode
			if resp.Body != nil {
				resp.Body.Close()
			}
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				return nil, fmt.Errorf("%w: handshake websocket com status %d", ErrAuthorizationRejected, status)
			}
		}
		return nil, fmt.Errorf("falha na conexão WebSocket: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	conn := &sockjsConn{ws: ws}
	if err := conn.awaitOpen(ctx); err != nil {
		ws.Close()
		return nil, err
	}
	return conn, nil
}

func (d *SockJSDialer) probeInfo(ctx context.Context, credential string) (*sockjsInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, InfoURL(d.base, credential), nil)
	if err != nil {
		return nil, err
	}
	for k, v := range d.header {
		req.Header[k] = v
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("falha no handshake: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: handshake com status %d", ErrAuthorizationRejected, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("handshake falhou com status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInfoBody))
	if err != nil {
		return nil, err
	}

	var info sockjsInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("resposta do handshake inválida: %w", err)
	}
	return &info, nil
}

// sockjsConn desembrulha os frames SockJS sobre a conexão gorilla
type sockjsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	pending [][]byte
}

func (c *sockjsConn) awaitOpen(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { c.ws.Close() })
	defer stop()

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("aguardando abertura do SockJS: %w", ctx.Err())
		}
		return translateReadError(err)
	}

	f, err := DecodeSockJSFrame(data)
	if err != nil {
		return err
	}
	switch f.Type {
	case FrameOpen:
		return nil
	case FrameClose:
		return &CloseError{Code: f.Code, Reason: f.Reason}
	}
	return fmt.Errorf("sockjs: esperado frame de abertura, recebido %q", f.Type)
}

func (c *sockjsConn) ReadMessage() ([]byte, error) {
	for {
		if len(c.pending) > 0 {
			msg := c.pending[0]
			c.pending = c.pending[1:]
			return msg, nil
		}

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, translateReadError(err)
		}

		f, err := DecodeSockJSFrame(data)
		if err != nil {
			return nil, err
		}

		switch f.Type {
		case FrameOpen:
			continue
		case FrameHeartbeat:
			return []byte{}, nil
		case FrameArray, FrameMessage:
			c.pending = append(c.pending, f.Messages...)
		case FrameClose:
			return nil, &CloseError{Code: f.Code, Reason: f.Reason}
		}
	}
}

func (c *sockjsConn) WriteMessage(data []byte) error {
	payload, err := EncodeSockJSMessages(data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *sockjsConn) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}

func translateReadError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: ce.Code, Reason: ce.Text}
	}
	return err
}
