// internal/websocket/transport.go
package websocket

import (
	"context"
	"errors"
	"fmt"
)

// Conn é a conexão já desembrulhada do SockJS: cada mensagem é um pedaço de texto STOMP.
// Uma mensagem vazia indica atividade (heartbeat do transporte) sem frames.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer abre um transporte autenticado com a credencial informada
type Dialer interface {
	Dial(ctx context.Context, credential string) (Conn, error)
}

type DialerFunc func(ctx context.Context, credential string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, credential string) (Conn, error) {
	return f(ctx, credential)
}

var (
	// ErrAuthorizationRejected indica falha terminal de autenticação/autorização
	ErrAuthorizationRejected = errors.New("autorização rejeitada pelo servidor")
	// ErrCredentialUnavailable indica que não havia token; o TokenProvider já redirecionou
	ErrCredentialUnavailable = errors.New("credencial indisponível")
	ErrClientClosed          = errors.New("cliente realtime encerrado")
	// ErrConnectAborted é devolvido a quem esperava uma tentativa cancelada por Disconnect
	ErrConnectAborted        = errors.New("tentativa de conexão abandonada")
)

// Códigos de fechamento que indicam rejeição de política/protocolo
const (
	CloseProtocolError   = 1002
	ClosePolicyViolation = 1008
)

// CloseError é o fechamento informado pelo servidor (frame c[...] do SockJS ou close do WebSocket)
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("conexão fechada pelo servidor: %d %s", e.Code, e.Reason)
}

// ServerError é um frame STOMP ERROR
type ServerError struct {
	Message string
	Body    string
}

func (e *ServerError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("erro STOMP: %s (%s)", e.Message, e.Body)
	}
	return "erro STOMP: " + e.Message
}
