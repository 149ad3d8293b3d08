package gotrue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/agrovia/go-access"
)

// TokenValidator checks GoTrue-issued access tokens. With a JWTSecret it
// validates HS256 locally; otherwise it pulls the backend's JWK Set and
// keeps it refreshed in the background.
type TokenValidator struct {
	keyFunc jwt.Keyfunc
	methods []string
}

// NewTokenValidator creates a validator from the client config.
func NewTokenValidator(cfg Config) (*TokenValidator, error) {
	if cfg.JWTSecret != "" {
		secret := []byte(cfg.JWTSecret)
		return &TokenValidator{
			keyFunc: func(t *jwt.Token) (any, error) {
				if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, fmt.Errorf("gotrue: unexpected signing method %s", t.Method.Alg())
				}
				return secret, nil
			},
			methods: []string{jwt.SigningMethodHS256.Alg()},
		}, nil
	}

	jwksURL := cfg.jwksURL()
	if jwksURL == "" {
		return nil, fmt.Errorf("gotrue: JWKS URL or JWT secret is required")
	}

	refresh := cfg.CacheTTL
	if refresh <= 0 {
		refresh = time.Hour
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   refresh,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gotrue: failed to get JWK Set: %w", err)
	}

	return &TokenValidator{
		keyFunc: jwks.Keyfunc,
		methods: []string{
			jwt.SigningMethodRS256.Alg(),
			jwt.SigningMethodES256.Alg(),
		},
	}, nil
}

// Validate implements access.SessionValidator.
func (v *TokenValidator) Validate(_ context.Context, accessToken string) (*access.User, error) {
	claims := jwt.MapClaims{}

	_, err := jwt.ParseWithClaims(accessToken, claims, v.keyFunc,
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	return userFromClaims(claims)
}

func userFromClaims(claims jwt.MapClaims) (*access.User, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("gotrue: token has no subject")
	}

	user := &access.User{ID: sub}

	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}

	if meta, ok := claims["user_metadata"].(map[string]any); ok {
		user.Metadata = meta
	}

	return user, nil
}

var _ access.SessionValidator = (*TokenValidator)(nil)
