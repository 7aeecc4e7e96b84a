// internal/auth/provider.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"olmeda-realtime/internal/logging"
)

// TokenProvider devolve um token válido ou "" depois de já ter redirecionado para o login.
// Nunca devolve token expirado ou malformado.
type TokenProvider interface {
	ValidCredential(ctx context.Context) (string, error)
}

// Navigator leva o usuário de volta para a tela de autenticação
type Navigator interface {
	RedirectToAuth()
}

type NavigatorFunc func()

func (f NavigatorFunc) RedirectToAuth() { f() }

// KeyringTokenProvider lê o token do cofre e confere a expiração sem validar a assinatura;
// quem valida é o servidor.
type KeyringTokenProvider struct {
	store     CredentialStore
	navigator Navigator
	leeway    time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewKeyringTokenProvider(store CredentialStore, navigator Navigator, leeway time.Duration, logger *slog.Logger) *KeyringTokenProvider {
	if logger == nil {
		logger = logging.Discard()
	}
	return &KeyringTokenProvider{
		store:     store,
		navigator: navigator,
		leeway:    leeway,
		logger:    logger,
		now:       time.Now,
	}
}

func (p *KeyringTokenProvider) ValidCredential(_ context.Context) (string, error) {
	token, err := p.store.Get(KeyAccessToken)
	if err != nil && !errors.Is(err, ErrCredentialNotFound) {
		return "", fmt.Errorf("lendo token: %w", err)
	}
	if token == "" {
		p.logger.Info("nenhum token armazenado, redirecionando para login")
		p.navigator.RedirectToAuth()
		return "", nil
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		p.logger.Warn("token malformado, redirecionando para login", logging.Err(err))
		p.navigator.RedirectToAuth()
		return "", nil
	}

	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(p.now().Add(p.leeway)) {
		p.logger.Info("token expirado, redirecionando para login", slog.Time("expires_at", claims.ExpiresAt.Time))
		p.navigator.RedirectToAuth()
		return "", nil
	}

	return token, nil
}

// LoginRedirector é o Navigator do agente: descarta o token e sinaliza que é preciso autenticar de novo
type LoginRedirector struct {
	store        CredentialStore
	logger       *slog.Logger
	onRedirect   func()
	authRequired atomic.Bool
	redirects    atomic.Int64
}

func NewLoginRedirector(store CredentialStore, logger *slog.Logger, onRedirect func()) *LoginRedirector {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LoginRedirector{store: store, logger: logger, onRedirect: onRedirect}
}

func (r *LoginRedirector) RedirectToAuth() {
	r.redirects.Add(1)
	r.authRequired.Store(true)

	if err := r.store.Delete(KeyAccessToken); err != nil {
		r.logger.Warn("erro ao remover token", logging.Err(err))
	}
	r.logger.Warn("autenticação necessária")

	if r.onRedirect != nil {
		r.onRedirect()
	}
}

func (r *LoginRedirector) AuthRequired() bool {
	return r.authRequired.Load()
}

func (r *LoginRedirector) Redirects() int64 {
	return r.redirects.Load()
}

// StoreToken grava um novo token e limpa o sinal de autenticação pendente
func (r *LoginRedirector) StoreToken(token string) error {
	if err := r.store.Set(KeyAccessToken, token); err != nil {
		return err
	}
	r.authRequired.Store(false)
	return nil
}
