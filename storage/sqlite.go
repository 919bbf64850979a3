package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finfeed/internal/config"
	"finfeed/internal/domain"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS articles(
id TEXT PRIMARY KEY,
title TEXT,
description TEXT,
body TEXT,
category TEXT,
image_url TEXT,
author TEXT,
url TEXT,
read_time INTEGER,
beginner INTEGER,
video_url1 TEXT,
video_url2 TEXT,
created_at INTEGER NOT NULL,
category_key TEXT
);
CREATE INDEX IF NOT EXISTS articles_feed_idx ON articles (COALESCE(beginner, 0), created_at DESC);
CREATE INDEX IF NOT EXISTS articles_category_key_idx ON articles (category_key);
`

// SQLiteArticleDB - хранилище статей в одном файле SQLite для локального запуска.
// created_at хранится в наносекундах Unix, чтобы сортировка совпадала с хронологией.
type SQLiteArticleDB struct {
	db           *sql.DB
	log          *slog.Logger
	defaultLimit int
}

// OpenSQLite открывает (или создает) базу по пути path и создает схему.
// Путь ":memory:" дает базу в памяти.
func OpenSQLite(ctx context.Context, path string, appCfg config.AppConfig, log *slog.Logger) (*SQLiteArticleDB, error) {
	const op = "storage.sqlite.Open"
	log = log.With(slog.String("component", "storage"))
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// База ":memory:" существует только внутри своего соединения.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to configure: %w", op, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to create schema: %w", op, err)
	}
	log.Info("Initializing SQLite article storage", slog.String("path", path))
	return &SQLiteArticleDB{db: db, log: log, defaultLimit: appCfg.FeedLimit}, nil
}

func (s *SQLiteArticleDB) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("storage.sqlite.Ping: %w", err)
	}
	return nil
}

func (s *SQLiteArticleDB) Close() {
	s.log.Info("Closing SQLite database")
	if err := s.db.Close(); err != nil {
		s.log.Error("Failed to close SQLite database", slog.Any("error", err))
	}
}

// SaveArticles вставляет документы в одной транзакции; существующие id пропускаются.
func (s *SQLiteArticleDB) SaveArticles(ctx context.Context, docs []domain.Document) (saved int, err error) {
	const op = "storage.sqlite.SaveArticles"
	if len(docs) == 0 {
		return 0, nil
	}
	log := s.log.With(slog.String("op", op))
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				log.Error("Failed to rollback transaction", slog.Any("error", rollbackErr))
			}
		}
	}()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO articles (`+articleColumns+`, category_key)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to prepare insert: %w", op, err)
	}
	defer stmt.Close()
	now := time.Now()
	for _, doc := range docs {
		createdAt := now
		if doc.CreatedAt != nil {
			createdAt = *doc.CreatedAt
		}
		res, execErr := stmt.ExecContext(ctx,
			doc.ID,
			doc.Title,
			doc.Description,
			doc.Body,
			doc.Category,
			doc.ImageURL,
			doc.Author,
			doc.URL,
			doc.ReadTime,
			doc.Beginner,
			doc.VideoURL1,
			doc.VideoURL2,
			createdAt.UnixNano(),
			categoryKey(doc),
		)
		if execErr != nil {
			err = execErr
			log.Error("Failed to insert document", slog.String("id", doc.ID), slog.Any("error", err))
			return 0, fmt.Errorf("%s: failed to insert %s: %w", op, doc.ID, err)
		}
		n, execErr := res.RowsAffected()
		if execErr != nil {
			err = execErr
			return 0, fmt.Errorf("%s: failed to read affected rows for %s: %w", op, doc.ID, err)
		}
		saved += int(n)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return saved, nil
}

// ListDocuments выбирает документы от новых к старым.
// Категории сравниваются по ключу category_key, который вычисляется в Go при сохранении:
// lower() в SQLite не приводит к нижнему регистру символы вне ASCII.
func (s *SQLiteArticleDB) ListDocuments(ctx context.Context, q domain.DocumentQuery) ([]domain.Document, error) {
	const op = "storage.sqlite.ListDocuments"
	limit := q.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}
	query, args := buildSQLiteListQuery(q, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.log.Error("Database query failed", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()
	docs := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to iterate rows: %w", op, err)
	}
	return docs, nil
}

// GetDocument возвращает документ по id или domain.ErrArticleNotFound.
func (s *SQLiteArticleDB) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	const op = "storage.sqlite.GetDocument"
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	doc, err := scanSQLiteDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, domain.ErrArticleNotFound
		}
		return domain.Document{}, fmt.Errorf("%s: failed to scan row: %w", op, err)
	}
	return doc, nil
}

func buildSQLiteListQuery(q domain.DocumentQuery, limit int) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + articleColumns + ` FROM articles WHERE COALESCE(beginner, 0) = ?`)
	args := []any{q.Beginner}
	if len(q.Categories) > 0 {
		placeholders := make([]string, 0, len(q.Categories))
		for _, key := range categoryKeys(q.Categories) {
			placeholders = append(placeholders, "?")
			args = append(args, key)
		}
		fmt.Fprintf(&sb, ` AND %s IN (%s)`, categoryKeyExpr, strings.Join(placeholders, ", "))
	}
	sb.WriteString(` ORDER BY created_at DESC LIMIT ?`)
	args = append(args, limit)
	return sb.String(), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	var createdAt int64
	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Description,
		&doc.Body,
		&doc.Category,
		&doc.ImageURL,
		&doc.Author,
		&doc.URL,
		&doc.ReadTime,
		&doc.Beginner,
		&doc.VideoURL1,
		&doc.VideoURL2,
		&createdAt,
	)
	if err != nil {
		return domain.Document{}, err
	}
	t := time.Unix(0, createdAt).UTC()
	doc.CreatedAt = &t
	return doc, nil
}
