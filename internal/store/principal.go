package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/backofficehq/backoffice/internal/models"
)

// PrincipalStore resolves API keys to actors. The principals table is not
// tenant-scoped: the key itself is the tenant binding.
type PrincipalStore struct {
	Base
}

// NewPrincipalStore creates a PrincipalStore.
func NewPrincipalStore(base Base) *PrincipalStore {
	return &PrincipalStore{Base: base}
}

// HashAPIKey returns the hex SHA-256 digest stored for an API key. Keys are
// never persisted in the clear.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])
}

// GetByAPIKey returns the actor bound to an active API key, or
// ErrRecordNotFound when the key is unknown or disabled.
func (s *PrincipalStore) GetByAPIKey(ctx context.Context, apiKey string) (models.Actor, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var actor models.Actor

	err := s.Pool.QueryRow(ctx,
		`SELECT user_id, company_id, name, permissions
		 FROM principals
		 WHERE api_key_hash = $1 AND active`,
		HashAPIKey(apiKey),
	).Scan(&actor.UserID, &actor.CompanyID, &actor.Name, &actor.Permissions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Actor{}, models.ErrRecordNotFound
		}

		return models.Actor{}, fmt.Errorf("looking up principal: %w", err)
	}

	return actor, nil
}
