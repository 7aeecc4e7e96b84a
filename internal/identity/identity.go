// internal/identity/identity.go
package identity

import (
	"errors"
	"slices"
	"sync"

	"olmeda-realtime/internal/auth"
)

// Source informa o identificador do médico usado no canal. "" significa ainda desconhecido.
type Source interface {
	CurrentIdentity() string
}

type Static string

func (s Static) CurrentIdentity() string { return string(s) }

// Deferred é preenchido depois que o perfil carrega (ou pela API local)
type Deferred struct {
	mu        sync.RWMutex
	id        string
	listeners []func(string)
}

func NewDeferred(initial string) *Deferred {
	return &Deferred{id: initial}
}

func (d *Deferred) CurrentIdentity() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id
}

// Set troca a identidade e avisa os ouvintes quando o valor muda
func (d *Deferred) Set(id string) {
	d.mu.Lock()
	if d.id == id {
		d.mu.Unlock()
		return
	}
	d.id = id
	listeners := slices.Clone(d.listeners)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
}

func (d *Deferred) OnChange(fn func(string)) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// FromCredentials lê o doctor_id gravado junto com o token
type FromCredentials struct {
	Store auth.CredentialStore
}

func (f FromCredentials) CurrentIdentity() string {
	id, err := f.Store.Get(auth.KeyDoctorID)
	if err != nil {
		return ""
	}
	return id
}

// Resolve devolve a primeira identidade conhecida entre as fontes
func Resolve(sources ...Source) string {
	for _, s := range sources {
		if s == nil {
			continue
		}
		if id := s.CurrentIdentity(); id != "" {
			return id
		}
	}
	return ""
}

var ErrEmptyIdentity = errors.New("identidade vazia")
