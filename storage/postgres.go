package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"finfeed/internal/config"
	"finfeed/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const articleColumns = `id, title, description, body, category, image_url, author, url,
	read_time, beginner, video_url1, video_url2, created_at`

// categoryKeyExpr подставляет ключ для строк, записанных не через SaveArticles.
const categoryKeyExpr = `COALESCE(category_key, lower(COALESCE(category, '` + domain.DefaultCategory + `')))`

// categoryKey вычисляет ключ категории документа; отсутствующая категория считается General.
func categoryKey(doc domain.Document) string {
	if doc.Category == nil {
		return domain.CategoryKey(domain.DefaultCategory)
	}
	return domain.CategoryKey(*doc.Category)
}

func categoryKeys(categories []string) []string {
	keys := make([]string, 0, len(categories))
	for _, c := range categories {
		keys = append(keys, domain.CategoryKey(c))
	}
	return keys
}

type PostgresArticleDB struct {
	pool         *pgxpool.Pool
	log          *slog.Logger
	defaultLimit int
}

func NewPostgresArticleDB(pool *pgxpool.Pool, appCfg config.AppConfig, log *slog.Logger) *PostgresArticleDB {
	log = log.With(slog.String("component", "storage"))
	log.Info("Initializing Postgres article storage")
	return &PostgresArticleDB{
		pool:         pool,
		log:          log,
		defaultLimit: appCfg.FeedLimit,
	}
}

// Ping проверяет доступность базы данных.
func (db *PostgresArticleDB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("storage.Ping: %w", err)
	}
	return nil
}

func (db *PostgresArticleDB) Close() {
	db.log.Info("Closing database connection pool")
	db.pool.Close()
}

// SaveArticles вставляет документы одним батчем; уже существующие id пропускаются.
// Возвращает количество действительно вставленных документов.
func (db *PostgresArticleDB) SaveArticles(ctx context.Context, docs []domain.Document) (saved int, err error) {
	const op = "storage.postgres.SaveArticles"
	if len(docs) == 0 {
		return 0, nil
	}
	log := db.log.With(slog.String("op", op))
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		log.Error("Failed to begin transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(context.Background()); rollbackErr != nil {
				log.Error("Failed to rollback transaction", slog.Any("error", rollbackErr))
			}
		}
	}()
	query := `
	INSERT INTO articles (` + articleColumns + `, category_key)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, now()), $14)
	ON CONFLICT (id) DO NOTHING;
	`
	batch := &pgx.Batch{}
	for _, doc := range docs {
		batch.Queue(query,
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
			doc.CreatedAt,
			categoryKey(doc),
		)
	}
	results := tx.SendBatch(ctx, batch)
	for range docs {
		tag, execErr := results.Exec()
		if execErr != nil {
			results.Close()
			err = execErr
			log.Error("Failed to execute batch", slog.Any("error", err))
			return 0, fmt.Errorf("%s: failed to execute batch: %w", op, err)
		}
		saved += int(tag.RowsAffected())
	}
	if err = results.Close(); err != nil {
		log.Error("Failed to close batch", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to close batch: %w", op, err)
	}
	if err = tx.Commit(ctx); err != nil {
		log.Error("Failed to commit transaction", slog.Any("error", err))
		return 0, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return saved, nil
}

// ListDocuments выбирает документы от новых к старым.
// Категории сравниваются по domain.CategoryKey, как strings.EqualFold на стороне клиента.
func (db *PostgresArticleDB) ListDocuments(ctx context.Context, q domain.DocumentQuery) ([]domain.Document, error) {
	const op = "storage.postgres.ListDocuments"
	limit := q.Limit
	if limit <= 0 {
		limit = db.defaultLimit
	}
	log := db.log.With(
		slog.String("op", op),
		slog.Int("limit", limit),
		slog.Bool("beginner", q.Beginner),
	)
	sql, args := buildListQuery(q, limit)
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		log.Error("Database query failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	docs, err := pgx.CollectRows(rows, scanDocument)
	if err != nil {
		log.Error("Failed to collect rows", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
	}
	log.Debug("Documents retrieved", slog.Int("count", len(docs)))
	return docs, nil
}

// GetDocument возвращает документ по id или domain.ErrArticleNotFound.
func (db *PostgresArticleDB) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	const op = "storage.postgres.GetDocument"
	rows, err := db.pool.Query(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	doc, err := pgx.CollectExactlyOneRow(rows, scanDocument)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Document{}, domain.ErrArticleNotFound
		}
		return domain.Document{}, fmt.Errorf("%s: failed to scan row: %w", op, err)
	}
	return doc, nil
}

func buildListQuery(q domain.DocumentQuery, limit int) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + articleColumns + ` FROM articles WHERE COALESCE(beginner, FALSE) = $1`)
	args := []any{q.Beginner}
	if len(q.Categories) > 0 {
		args = append(args, categoryKeys(q.Categories))
		fmt.Fprintf(&sb, ` AND %s = ANY($%d)`, categoryKeyExpr, len(args))
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, ` ORDER BY created_at DESC LIMIT $%d`, len(args))
	return sb.String(), args
}

func scanDocument(row pgx.CollectableRow) (domain.Document, error) {
	var doc domain.Document
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
		&doc.CreatedAt,
	)
	return doc, err
}
