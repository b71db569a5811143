package reel

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/hypecast-live/hypecast/pkg/core/session"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Archive persists finished sessions and their highlight windows to Postgres
// so the reel job can pick them up. It is optional: when no database URL is
// configured the server simply runs without one.
type Archive struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenArchive connects to Postgres, runs pending migrations, and returns the
// archive. The context bounds connect and migration time.
func OpenArchive(ctx context.Context, databaseURL string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open reel archive: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping reel archive: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Archive{pool: pool, logger: logger}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run reel migrations: %w", err)
	}
	return nil
}

// SaveSession writes the session row and its highlight windows in one
// transaction. Re-saving the same session replaces its highlights, so the
// call is safe to repeat after a crashed teardown.
func (a *Archive) SaveSession(ctx context.Context, sess *session.Session) error {
	highlights := sess.Highlights
	if len(highlights) == 0 {
		highlights = DeriveHighlights(sess.CommentaryLog)
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("archive session %s: %w", sess.ID, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (id, stream_call_id, status, created_at, ended_at, reel_id, reel_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status   = EXCLUDED.status,
			ended_at = EXCLUDED.ended_at,
			reel_id  = EXCLUDED.reel_id,
			reel_url = EXCLUDED.reel_url`,
		sess.ID, sess.StreamCallID, string(sess.Status), sess.CreatedAt, sess.EndedAt,
		nullable(sess.ReelID), nullable(sess.ReelURL))
	if err != nil {
		return fmt.Errorf("archive session %s: %w", sess.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM highlights WHERE session_id = $1`, sess.ID); err != nil {
		return fmt.Errorf("archive session %s: %w", sess.ID, err)
	}
	for _, h := range highlights {
		_, err := tx.Exec(ctx, `
			INSERT INTO highlights (session_id, start_time, end_time, energy_score, commentary_text)
			VALUES ($1, $2, $3, $4, $5)`,
			sess.ID, h.StartTime, h.EndTime, h.EnergyScore, h.CommentaryText)
		if err != nil {
			return fmt.Errorf("archive session %s highlights: %w", sess.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("archive session %s: %w", sess.ID, err)
	}
	a.logger.Info("session archived", "session_id", sess.ID, "highlights", len(highlights))
	return nil
}

// Close releases the connection pool.
func (a *Archive) Close() {
	a.pool.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
