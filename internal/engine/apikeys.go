package engine

import (
	"context"
	"database/sql"
	"time"

	"tufline/internal/audit"
	"tufline/internal/domain"
	"tufline/internal/engine/auth"
	"tufline/internal/failure"
)

// IssueAPIKey creates a key for creatorUserID and returns its secret, which is
// shown once. A zero ttl uses auth.api_key_ttl.
func (e Engine) IssueAPIKey(ctx context.Context, creatorUserID string, ttl time.Duration) (secret string, key domain.APIKey, err error) {
	defer func() { err = e.finish(ctx, "issue_api_key", err) }()
	if ttl <= 0 && e.Config != nil {
		ttl = e.Config.Auth.APIKeyTTL.Duration
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		secret, key, err = e.authService().Issue(ctx, tx, creatorUserID, ttl)
		if err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "api_key.issue", "api_key", key.ID, creatorUserID,
			audit.Payload{"duration": key.Duration})
	})
	return secret, key, err
}

// RevokeAPIKey cancels the key with the given id.
func (e Engine) RevokeAPIKey(ctx context.Context, keyID string) (key domain.APIKey, err error) {
	defer func() { err = e.finish(ctx, "revoke_api_key", err) }()
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if key, err = e.authService().Revoke(ctx, tx, keyID); err != nil {
			return err
		}
		return e.audit().Append(ctx, tx, "api_key.revoke", "api_key", key.ID, key.CreatorUserID, nil)
	})
	return key, err
}

// ListAPIKeys returns the current record of each key, optionally for one creator.
func (e Engine) ListAPIKeys(ctx context.Context, creatorUserID string) (keys []domain.APIKey, err error) {
	defer func() { err = e.finish(ctx, "list_api_keys", err) }()
	return e.Repo.ListAPIKeys(ctx, creatorUserID)
}

// Authenticate exposes credential checking to transports.
func (e Engine) Authenticate(ctx context.Context, credential string) (auth.Principal, error) {
	return e.authenticate(ctx, credential)
}

// MintToken exchanges a valid API key for a bearer token that expires after
// ttl, or auth.token_ttl when ttl is zero.
func (e Engine) MintToken(ctx context.Context, apiKey string, ttl time.Duration) (token string, err error) {
	defer func() { err = e.finish(ctx, "mint_token", err) }()
	p, err := e.authenticate(ctx, apiKey)
	if err != nil {
		return "", err
	}
	if p.Source == "token" {
		return "", failure.New(failure.APIKeyNonexistent, "tokens are minted from api keys only")
	}
	if ttl <= 0 && e.Config != nil {
		ttl = e.Config.Auth.TokenTTL.Duration
	}
	if ttl <= 0 {
		return "", failure.New(failure.TokenRequestNotValid, "token ttl must be positive")
	}
	return e.authService().MintToken(p, ttl)
}

// AuditLog returns recent audit entries, newest first.
func (e Engine) AuditLog(ctx context.Context, limit int, evtType, entityKind, entityID string) (res []domain.AuditEvent, err error) {
	defer func() { err = e.finish(ctx, "audit_log", err) }()
	return e.Repo.LatestAuditEvents(ctx, limit, evtType, entityKind, entityID)
}
