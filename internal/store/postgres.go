package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/krishisakhi/farm-alerts/internal/db"
	"github.com/krishisakhi/farm-alerts/internal/farm"
	"github.com/krishisakhi/farm-alerts/internal/notifications"
)

// Querier is the part of *db.Pool the Postgres store uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	HealthCheck(ctx context.Context) error
}

// Postgres is the relational backend. Queries use the prepared statements
// registered in package db.
type Postgres struct {
	pool   Querier
	logger *slog.Logger
}

// NewPostgres wraps a connection pool, normally a *db.Pool.
func NewPostgres(pool Querier, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}
}

// Name implements Store.
func (p *Postgres) Name() string { return "postgres" }

// ListUsers returns every user ordered by id.
func (p *Postgres) ListUsers(ctx context.Context) ([]farm.User, error) {
	rows, err := p.pool.Query(ctx, db.StmtListUsers)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []farm.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			p.logger.Warn("skipping unreadable user row", "error", err)
			continue
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser returns one user.
func (p *Postgres) GetUser(ctx context.Context, uid string) (farm.User, error) {
	u, err := scanUser(p.pool.QueryRow(ctx, db.StmtGetUser, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return farm.User{}, fmt.Errorf("%s: %w", uid, notifications.ErrUserNotFound)
	}
	if err != nil {
		return farm.User{}, fmt.Errorf("get user %s: %w", uid, err)
	}
	return u, nil
}

const foreignKeyViolation = "23503"

// AppendNotification inserts a notification row with a fresh UUID.
func (p *Postgres) AppendNotification(ctx context.Context, uid string, n farm.Notification) (string, error) {
	id := uuid.NewString()
	_, err := p.pool.Exec(ctx, db.StmtInsertNotification,
		id, uid, n.Title, n.Message, n.Timestamp, n.Type, n.Lang, n.Read,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return "", fmt.Errorf("%s: %w", uid, notifications.ErrUserNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("insert notification: %w", err)
	}
	return id, nil
}

// PushToken returns the user's fcm_token, "" if unset or the user is gone.
func (p *Postgres) PushToken(ctx context.Context, uid string) (string, error) {
	var token string
	err := p.pool.QueryRow(ctx, db.StmtUserPushToken, uid).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read fcm_token: %w", err)
	}
	return token, nil
}

// Ping runs the pool's health check.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.HealthCheck(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (farm.User, error) {
	var (
		u    farm.User
		logs []byte
	)
	if err := row.Scan(&u.ID, &u.PreferredLanguage, &u.Location, &logs); err != nil {
		return farm.User{}, err
	}
	u.ActivityLogs, u.LogsErr = readLogs(logs)
	return u, nil
}
