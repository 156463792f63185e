package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Arnold10-web/ishaazi-realtime/internal/database"
	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
)

// LoginAttemptRepository stores the attempt log the lockout policy
// counts against. Every row carries its own expires_at so retention is
// a property of the data, not of whoever happens to run the purge.
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

// RecordAttempt appends one attempt to the log. Id and timestamp are
// stamped here when the caller left them zero.
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.AttemptTime.IsZero() {
		attempt.AttemptTime = time.Now()
	}

	query := `
		INSERT INTO login_attempts (id, email, ip_address, user_agent, attempt_time, success, failure_reason, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		attempt.ID,
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.AttemptTime,
		attempt.Success,
		attempt.FailureReason,
		attempt.ExpiresAt,
	)
	return err
}

// CountRecentFailures counts failed attempts for the email since the
// window start. This is the number the lockout threshold compares
// against.
func (r *LoginAttemptRepository) CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND success = false AND attempt_time >= $2
	`

	var count int
	err := r.pool.QueryRow(ctx, query, email, since).Scan(&count)
	return count, err
}

// ListRecent pages through an email's attempt history, newest first.
// Backs the admin login-attempts feed.
func (r *LoginAttemptRepository) ListRecent(ctx context.Context, email string, since time.Time, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, email, ip_address, user_agent, attempt_time, success, failure_reason, expires_at
		FROM login_attempts
		WHERE email = $1 AND attempt_time >= $2
		ORDER BY attempt_time DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, email, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)
	for rows.Next() {
		var attempt models.LoginAttempt
		err := rows.Scan(
			&attempt.ID, &attempt.Email, &attempt.IPAddress, &attempt.UserAgent,
			&attempt.AttemptTime, &attempt.Success, &attempt.FailureReason, &attempt.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, &attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read attempt rows: %w", err)
	}

	return attempts, nil
}

// DeleteForEmail wipes an email's attempt history. Called when a
// lockout expires so the failure count restarts from zero.
func (r *LoginAttemptRepository) DeleteForEmail(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE email = $1`, email)
	return err
}

// DeleteExpiredAttempts purges rows past their retention stamp.
func (r *LoginAttemptRepository) DeleteExpiredAttempts(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE expires_at <= NOW()`)
	return err
}
