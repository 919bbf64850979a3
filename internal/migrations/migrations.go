package migrations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Migration struct {
	ID    string
	UpSQL string
}

// Все поля статьи, кроме id, необязательны: значения по умолчанию подставляет адаптер источника.
var allMigrations = []Migration{
	{
		ID: "20250610090000_create_articles_table",
		UpSQL: `
		CREATE TABLE articles(
		id TEXT PRIMARY KEY,
		title TEXT,
		description TEXT,
		body TEXT,
		category TEXT,
		image_url TEXT,
		author TEXT,
		url TEXT,
		read_time INTEGER,
		beginner BOOLEAN,
		video_url1 TEXT,
		video_url2 TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	},
	{
		ID: "20250610090100_index_articles_feed",
		UpSQL: `
		CREATE INDEX articles_feed_idx
		ON articles (COALESCE(beginner, FALSE), created_at DESC);`,
	},
	{
		// category_key пишет приложение; для старых строк ключ совпадает с lower() на ASCII.
		ID: "20250624120000_add_articles_category_key",
		UpSQL: `
		ALTER TABLE articles ADD COLUMN category_key TEXT;
		UPDATE articles SET category_key = lower(COALESCE(category, 'General'));
		CREATE INDEX articles_category_key_idx ON articles (category_key);`,
	},
}

// Apply применяет все еще не примененные миграции в одной транзакции.
func Apply(ctx context.Context, log *slog.Logger, pool *pgxpool.Pool) error {
	log = log.With(slog.String("component", "migrations"))
	log.Info("Starting database migrations check")
	_, err := pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
	id TEXT PRIMARY KEY
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	rows, err := pool.Query(ctx, "SELECT id FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration id: %w", err)
		}
		applied[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	pending := Pending(applied)
	if len(pending) == 0 {
		log.Info("Database is up to date, no new migrations found")
		return nil
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	for _, m := range pending {
		log.Info("Applying migration", slog.String("id", m.ID))
		if _, err := tx.Exec(ctx, m.UpSQL); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (id) VALUES ($1)", m.ID); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migrations transaction: %w", err)
	}
	log.Info("Database migrations applied successfully", slog.Int("count", len(pending)))
	return nil
}

// Pending возвращает неприменённые миграции в порядке их id.
func Pending(applied map[string]bool) []Migration {
	out := make([]Migration, 0, len(allMigrations))
	for _, m := range allMigrations {
		if !applied[m.ID] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}
