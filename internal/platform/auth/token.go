package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// StaticToken is a fixed bearer token, typically a long-lived API key.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// ServiceTokenConfig describes the service token minted for backend calls.
type ServiceTokenConfig struct {
	SigningKey []byte
	Issuer     string
	Subject    string
	Audience   string
	Roles      []string
	TTL        time.Duration
}

// ServiceTokenSource mints HS256 tokens and reuses each one until shortly
// before it expires.
type ServiceTokenSource struct {
	cfg   ServiceTokenConfig
	cache *cache.Cache
	now   func() time.Time
}

const (
	serviceTokenKey   = "service-token"
	defaultServiceTTL = 15 * time.Minute
	renewBefore       = 30 * time.Second
)

func NewServiceTokenSource(cfg ServiceTokenConfig) (*ServiceTokenSource, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("service token: signing key is required")
	}
	if cfg.TTL <= renewBefore {
		cfg.TTL = defaultServiceTTL
	}
	if cfg.Subject == "" {
		cfg.Subject = "hms-console"
	}
	return &ServiceTokenSource{
		cfg:   cfg,
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
		now:   time.Now,
	}, nil
}

func (s *ServiceTokenSource) Token(_ context.Context) (string, error) {
	if tok, ok := s.cache.Get(serviceTokenKey); ok {
		return tok.(string), nil
	}
	tok, err := s.mint()
	if err != nil {
		return "", err
	}
	s.cache.Set(serviceTokenKey, tok, s.cfg.TTL-renewBefore)
	return tok, nil
}

func (s *ServiceTokenSource) mint() (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			Subject:   s.cfg.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
		Roles: s.cfg.Roles,
	}
	if s.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return signed, nil
}
