// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krishisakhi/farm-alerts/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, StmtHealthCheck).Scan(&n)
}

// Prepared statement names.
const (
	StmtHealthCheck        = "health_check"
	StmtListUsers          = "list_users"
	StmtGetUser            = "get_user"
	StmtUserPushToken      = "user_push_token"
	StmtInsertNotification = "insert_notification"
)

// registerPreparedStatements registers all statements the alert job uses.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		StmtHealthCheck: "SELECT 1",

		// Users: farm_activity_logs is jsonb shaped crop -> log -> entry
		StmtListUsers: `SELECT id, COALESCE(preferred_language, ''), COALESCE(location, ''), COALESCE(farm_activity_logs, '{}'::jsonb)
			FROM users ORDER BY id`,
		StmtGetUser: `SELECT id, COALESCE(preferred_language, ''), COALESCE(location, ''), COALESCE(farm_activity_logs, '{}'::jsonb)
			FROM users WHERE id = $1`,

		// Push
		StmtUserPushToken: "SELECT COALESCE(fcm_token, '') FROM users WHERE id = $1",

		// Notifications
		StmtInsertNotification: `INSERT INTO notifications (id, user_id, title, message, ts, type, lang, read)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
