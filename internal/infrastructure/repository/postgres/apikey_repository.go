package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

// APIKeyRepository resolves opaque bearer keys to their permission sets.
// Keys are stored hashed; the plaintext never reaches the database.
type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) ResolveKey(ctx context.Context, key string) (*domain.APIKeyPermissions, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT key_id, allowed_kb_ids, rate_limit_per_sec, rate_limit_burst
FROM api_keys
WHERE key_hash = $1 AND revoked_at IS NULL
`, hashKey(key))

	var perms domain.APIKeyPermissions
	var kbRaw []byte
	err := row.Scan(&perms.KeyID, &kbRaw, &perms.RateLimitPerSec, &perms.RateLimitBurst)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrUnauthorized, "resolve api key", errors.New("unknown or revoked key"))
		}
		return nil, fmt.Errorf("query api key: %w", err)
	}
	if len(kbRaw) > 0 {
		if err := json.Unmarshal(kbRaw, &perms.AllowedKBIDs); err != nil {
			return nil, fmt.Errorf("unmarshal allowed kb ids: %w", err)
		}
	}
	return &perms, nil
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
