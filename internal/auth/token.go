// internal/auth/token.go
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims do token de acesso do médico
type Claims struct {
	DoctorID   string `json:"doctor_id"`
	InstanceID string `json:"instance_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer emite e valida tokens HS256. Usado pelo servidor de desenvolvimento e pelos testes.
type TokenIssuer struct {
	secretKey []byte
	issuer    string
	now       func() time.Time
}

func NewTokenIssuer(secretKey string) *TokenIssuer {
	return &TokenIssuer{
		secretKey: []byte(secretKey),
		issuer:    "olmeda-realtime",
		now:       time.Now,
	}
}

// GenerateToken cria um token para o médico válido por ttl
func (g *TokenIssuer) GenerateToken(doctorID, instanceID string, ttl time.Duration) (string, error) {
	if doctorID == "" {
		return "", fmt.Errorf("doctorID vazio")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	now := g.now()
	claims := Claims{
		DoctorID:   doctorID,
		InstanceID: instanceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   doctorID,
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secretKey)
	if err != nil {
		return "", fmt.Errorf("erro ao assinar token: %w", err)
	}
	return token, nil
}

// ValidateToken verifica assinatura e expiração e devolve os claims
func (g *TokenIssuer) ValidateToken(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de assinatura inesperado: %v", t.Header["alg"])
		}
		return g.secretKey, nil
	}, jwt.WithIssuer(g.issuer), jwt.WithTimeFunc(g.now))
	if err != nil {
		return nil, fmt.Errorf("token inválido: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("token inválido")
	}
	if claims.DoctorID == "" {
		claims.DoctorID = claims.Subject
	}
	return &claims, nil
}
