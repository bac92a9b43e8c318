package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"

	"tufline/internal/domain"
)

// HashAPIKey returns a stable SHA-256 hex digest for the provided key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

const apiKeyColumns = `id, creator_user_id, key_hash, creation_time, duration, kind`

func scanAPIKey(row interface{ Scan(...any) error }) (domain.APIKey, error) {
	var key domain.APIKey
	err := row.Scan(&key.ID, &key.CreatorUserID, &key.KeyHash, &key.CreationTime, &key.Duration, &key.Kind)
	if err == sql.ErrNoRows {
		return domain.APIKey{}, ErrNotFound
	}
	return key, err
}

// InsertAPIKey appends an API key record. KeyHash must already contain the hashed value.
func (r Repo) InsertAPIKey(ctx context.Context, tx *sql.Tx, key domain.APIKey) error {
	if key.ID == "" {
		return errors.New("id required")
	}
	if key.CreatorUserID == "" {
		return errors.New("creator_user_id required")
	}
	if key.KeyHash == "" {
		return errors.New("key_hash required")
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO api_keys(`+apiKeyColumns+`) VALUES (?,?,?,?,?,?)`,
		key.ID, key.CreatorUserID, key.KeyHash, key.CreationTime, key.Duration, key.Kind)
	return err
}

// LatestAPIKeyByHash returns the newest record for a hashed key.
func (r Repo) LatestAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error) {
	return scanAPIKey(r.DB.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash=? ORDER BY revision_id DESC LIMIT 1`, hash))
}

// LatestAPIKeyByID returns the newest record for an API key id.
func (r Repo) LatestAPIKeyByID(ctx context.Context, id string) (domain.APIKey, error) {
	return scanAPIKey(r.DB.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id=? ORDER BY revision_id DESC LIMIT 1`, id))
}

// ListAPIKeys returns the current record of every key, optionally filtered by creator.
func (r Repo) ListAPIKeys(ctx context.Context, creatorUserID string) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys k` +
		latestJoin(true, "api_keys", "k", "revision_id", "id")
	var w where
	if creatorUserID != "" {
		w.eq("k.creator_user_id", creatorUserID)
	}
	query += w.sql() + ` ORDER BY k.creation_time DESC`
	rows, err := r.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []domain.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
