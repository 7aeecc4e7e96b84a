// internal/lifecycle/lifecycle.go
package lifecycle

import (
	"fmt"
	"strings"
	"sync"
)

// AppState é o estado de visibilidade da aplicação
type AppState string

const (
	Active     AppState = "active"
	Background AppState = "background"
	Inactive   AppState = "inactive"
)

func ParseAppState(s string) (AppState, error) {
	switch AppState(strings.ToLower(strings.TrimSpace(s))) {
	case Active:
		return Active, nil
	case Background:
		return Background, nil
	case Inactive:
		return Inactive, nil
	}
	return "", fmt.Errorf("estado de aplicação inválido: %q", s)
}

// Visible é verdadeiro só para Active
func (s AppState) Visible() bool {
	return s == Active
}

// Source entrega as transições de estado. O canal fecha quando a fonte termina.
type Source interface {
	Changes() <-chan AppState
}

// ChannelSource é alimentado manualmente (API local, serviço Windows, testes)
type ChannelSource struct {
	mu     sync.Mutex
	ch     chan AppState
	closed bool
}

func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{ch: make(chan AppState, buffer)}
}

func (s *ChannelSource) Changes() <-chan AppState {
	return s.ch
}

// Publish entrega a transição; devolve false depois de Close
func (s *ChannelSource) Publish(state AppState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.ch <- state
	return true
}

func (s *ChannelSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
