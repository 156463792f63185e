package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Arnold10-web/ishaazi-realtime/internal/database"
)

// TokenRevocationRepository persists the denylist of revoked JWT IDs.
// Rows only need to outlive their token's natural expiry; the cleanup
// sweep removes the rest.
type TokenRevocationRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRevocationRepository(db *database.DB) *TokenRevocationRepository {
	return &TokenRevocationRepository{pool: db.Pool}
}

// RevokeToken denylists one token by its jti. Revoking a jti that is
// already on the list is a no-op, which keeps logout retries idempotent.
func (r *TokenRevocationRepository) RevokeToken(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error {
	query := `
		INSERT INTO revoked_tokens (id, jti, user_id, token_type, expires_at, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (jti) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, uuid.New().String(), jti, userID, tokenType, expiresAt, reason); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// IsTokenRevoked reports whether the jti is on the denylist. This runs on
// every authenticated request, so it must stay a single indexed lookup.
func (r *TokenRevocationRepository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti,
	).Scan(&revoked)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return revoked, nil
}

// CleanupExpiredTokens drops entries whose token has passed its natural
// expiry; a token that no longer validates needs no denylist row.
func (r *TokenRevocationRepository) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
