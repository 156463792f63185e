package integration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Arnold10-web/ishaazi-realtime/internal/database"
	"github.com/Arnold10-web/ishaazi-realtime/internal/models"
	"github.com/Arnold10-web/ishaazi-realtime/internal/repositories"
	pkgauth "github.com/Arnold10-web/ishaazi-realtime/pkg/auth"
)

// TestDB wraps the throwaway PostgreSQL container shared by the whole
// integration package, plus the pool and database handle built on it.
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase starts a PostgreSQL container and migrates it to the
// current schema. Fields are filled in as each step succeeds so that a
// failure partway through can hand cleanup to Teardown.
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("ishaazi"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			// The entrypoint restarts postgres once after initdb, so the
			// ready line has to appear twice before connections stick.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}
	tdb := &TestDB{Container: container}

	tdb.ConnString, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		tdb.Teardown(ctx)
		return nil, fmt.Errorf("failed to resolve connection string: %w", err)
	}

	tdb.Pool, err = pgxpool.New(ctx, tdb.ConnString)
	if err != nil {
		tdb.Teardown(ctx)
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}

	if err := tdb.Pool.Ping(ctx); err != nil {
		tdb.Teardown(ctx)
		return nil, fmt.Errorf("failed to reach container database: %w", err)
	}

	// Warnings and errors only; migration chatter drowns test output.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	tdb.DB = database.NewFromPool(tdb.Pool, logger)

	goose.SetLogger(goose.NopLogger())
	if err := tdb.DB.Migrate(ctx); err != nil {
		tdb.Teardown(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return tdb, nil
}

// Teardown closes whatever SetupTestDatabase managed to bring up.
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables empties every application table so tests start from a
// known state. One statement keeps it atomic; CASCADE follows the
// foreign keys back to users.
func (db *TestDB) CleanupTables(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx,
		`TRUNCATE TABLE users, login_attempts, revoked_tokens, security_events, notifications CASCADE`)
	if err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}

// InitializeRepositories constructs the full repository set on one
// database handle, in the order the services consume them.
func InitializeRepositories(db *database.DB) (
	*repositories.UserRepository,
	*repositories.TokenRevocationRepository,
	*repositories.LoginAttemptRepository,
	*repositories.SecurityEventRepository,
	*repositories.NotificationRepository,
) {
	return repositories.NewUserRepository(db),
		repositories.NewTokenRevocationRepository(db),
		repositories.NewLoginAttemptRepository(db),
		repositories.NewSecurityEventRepository(db),
		repositories.NewNotificationRepository(db)
}

// SeedUser inserts an active account straight into the database,
// bypassing registration. The password goes through the real hasher so
// the account can log in through the API afterwards.
func SeedUser(ctx context.Context, pool *pgxpool.Pool, email, password, role string) (*models.User, error) {
	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (id, email, password_hash, name, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, email, password_hash, name, role, status, account_locked, created_at, updated_at
	`

	var user models.User
	err = pool.QueryRow(ctx, query,
		uuid.New().String(), email, hashedPassword, "Test User", role, models.StatusActive,
	).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Status,
		&user.AccountLocked,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return &user, nil
}

// SeedLockedUser inserts a user already under an account lock. Driving
// a lock through the API always lands locked_until half an hour out, so
// states like an expired lock can only be manufactured here.
func SeedLockedUser(ctx context.Context, pool *pgxpool.Pool, email, password string, lockedUntil time.Time) (*models.User, error) {
	user, err := SeedUser(ctx, pool, email, password, models.RoleUser)
	if err != nil {
		return nil, err
	}

	query := `UPDATE users SET account_locked = true, locked_until = $2 WHERE id = $1`
	if _, err := pool.Exec(ctx, query, user.ID, lockedUntil); err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	user.AccountLocked = true
	user.LockedUntil = &lockedUntil
	return user, nil
}

// SeedNotification inserts a notification row directly, for tests that
// need existing entries without going through the admin endpoints.
func SeedNotification(ctx context.Context, pool *pgxpool.Pool, userID, notificationType, title string, read bool) (string, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, read, created_at)
		VALUES ($1, $2, $3, $4, 'seeded for tests', $5, NOW())
	`
	if _, err := pool.Exec(ctx, query, id, userID, notificationType, title, read); err != nil {
		return "", fmt.Errorf("failed to insert notification: %w", err)
	}
	return id, nil
}

// CountRows checks persistence side effects at the table level, where
// the API exposes no endpoint to observe them.
func CountRows(ctx context.Context, pool *pgxpool.Pool, table, where string, args ...interface{}) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where)
	var count int
	err := pool.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}
