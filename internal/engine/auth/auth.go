package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tufline/internal/domain"
	"tufline/internal/failure"
	"tufline/internal/repo"
)

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID string
	KeyID  string
	Source string
}

// Service authenticates credentials against stored API keys. A credential is
// either an opaque API key or a bearer token minted from one.
type Service struct {
	Repo        repo.Repo
	TokenSecret []byte
	Now         func() time.Time
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func nonexistent(err error) error {
	return failure.Wrap(failure.APIKeyNonexistent, err, "api key nonexistent")
}

// Authenticate resolves a credential to a principal. Every failure, including
// store errors, is reported as API_KEY_NONEXISTENT.
func (s Service) Authenticate(ctx context.Context, credential string) (Principal, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Principal{}, nonexistent(errors.New("credential required"))
	}
	if looksLikeToken(credential) {
		return s.authenticateToken(ctx, credential)
	}
	key, err := s.Repo.LatestAPIKeyByHash(ctx, repo.HashAPIKey(credential))
	if err != nil {
		return Principal{}, nonexistent(err)
	}
	if !key.ValidAt(s.now().UnixMilli()) {
		return Principal{}, nonexistent(errors.New("api key expired or cancelled"))
	}
	return Principal{UserID: key.CreatorUserID, KeyID: key.ID, Source: "api_key"}, nil
}

func looksLikeToken(credential string) bool {
	return strings.Count(credential, ".") == 2
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

func (s Service) authenticateToken(ctx context.Context, token string) (Principal, error) {
	if len(s.TokenSecret) == 0 {
		return Principal{}, nonexistent(errors.New("bearer tokens not enabled"))
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	claims := &tokenClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.TokenSecret, nil
	})
	if err != nil {
		return Principal{}, nonexistent(err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Principal{}, nonexistent(errors.New("invalid token"))
	}
	// The token only lives as long as the key it was minted from.
	key, err := s.Repo.LatestAPIKeyByID(ctx, claims.Subject)
	if err != nil {
		return Principal{}, nonexistent(err)
	}
	if !key.ValidAt(s.now().UnixMilli()) {
		return Principal{}, nonexistent(errors.New("api key expired or cancelled"))
	}
	return Principal{UserID: key.CreatorUserID, KeyID: key.ID, Source: "token"}, nil
}

// Issue creates a new API key for a user and returns its secret. The secret is
// not stored; only its hash is.
func (s Service) Issue(ctx context.Context, tx *sql.Tx, creatorUserID string, ttl time.Duration) (string, domain.APIKey, error) {
	if strings.TrimSpace(creatorUserID) == "" {
		return "", domain.APIKey{}, errors.New("creator_user_id required")
	}
	if ttl <= 0 {
		return "", domain.APIKey{}, errors.New("ttl must be positive")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", domain.APIKey{}, err
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)
	key := domain.APIKey{
		ID:            uuid.NewString(),
		CreatorUserID: creatorUserID,
		KeyHash:       repo.HashAPIKey(secret),
		CreationTime:  s.now().UnixMilli(),
		Duration:      ttl.Milliseconds(),
		Kind:          domain.APIKeyValid,
	}
	if err := s.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return "", domain.APIKey{}, err
	}
	return secret, key, nil
}

// Revoke appends a CANCEL record for the key id; its latest record now fails authentication.
func (s Service) Revoke(ctx context.Context, tx *sql.Tx, keyID string) (domain.APIKey, error) {
	key, err := s.Repo.LatestAPIKeyByID(ctx, keyID)
	if err != nil {
		return key, nonexistent(err)
	}
	key.Kind = domain.APIKeyCancel
	key.CreationTime = s.now().UnixMilli()
	key.Duration = 0
	return key, s.Repo.InsertAPIKey(ctx, tx, key)
}

// MintToken signs a bearer token for an authenticated principal.
func (s Service) MintToken(p Principal, ttl time.Duration) (string, error) {
	if len(s.TokenSecret) == 0 {
		return "", failure.New(failure.TokenRequestNotValid, "bearer tokens disabled: auth.token_secret not configured")
	}
	now := s.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.KeyID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: p.UserID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.TokenSecret)
}
