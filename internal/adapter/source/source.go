package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finfeed/internal/domain"
)

// DocumentStore - возможность запроса к внешнему хранилищу документов.
type DocumentStore interface {
	ListDocuments(ctx context.Context, q domain.DocumentQuery) ([]domain.Document, error)
	GetDocument(ctx context.Context, id string) (domain.Document, error)
}

// Adapter получает сырые документы из хранилища и нормализует их в статьи.
// Все ошибки наружу отдаются как *domain.FetchError. Повторов нет.
type Adapter struct {
	store DocumentStore
	loc   *time.Location
	limit int
	log   *slog.Logger
}

// New создает адаптер. Клиент хранилища создается один раз при старте и передается сюда.
// loc задает часовой пояс, в котором вычисляется дата публикации.
func New(store DocumentStore, loc *time.Location, limit int, log *slog.Logger) *Adapter {
	if loc == nil {
		loc = time.UTC
	}
	return &Adapter{
		store: store,
		loc:   loc,
		limit: limit,
		log:   log.With(slog.String("component", "content-source")),
	}
}

// Fetch реализует feed.Source. Фильтр передается в хранилище;
// порядок результата не гарантируется.
func (a *Adapter) Fetch(ctx context.Context, filter domain.Filter) ([]domain.Article, error) {
	const op = "source.Fetch"
	log := a.log.With(slog.String("op", op))

	docs, err := a.store.ListDocuments(ctx, domain.DocumentQuery{
		Beginner:   filter.Beginner,
		Categories: filter.Interests,
		Limit:      a.limit,
	})
	if err != nil {
		log.Error("Document query failed", slog.Any("error", err))
		return nil, domain.NewNetworkError(fmt.Errorf("%s: %w", op, err))
	}

	items := make([]domain.Article, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for i, doc := range docs {
		item, err := Normalize(doc, a.loc)
		if err != nil {
			log.Error("Document cannot be normalized",
				slog.Int("position", i),
				slog.Any("error", err),
			)
			return nil, domain.NewMalformedResponseError(fmt.Errorf("%s: document %d: %w", op, i, err))
		}
		if _, dup := seen[item.ID]; dup {
			log.Warn("Duplicate document id in batch, skipping", slog.String("id", item.ID))
			continue
		}
		seen[item.ID] = struct{}{}
		items = append(items, item)
	}
	log.Debug("Documents fetched", slog.Int("count", len(items)))
	return items, nil
}

// Get возвращает одну нормализованную статью.
// Отсутствие статьи возвращается как domain.ErrArticleNotFound без обертки в FetchError.
func (a *Adapter) Get(ctx context.Context, id string) (domain.Article, error) {
	const op = "source.Get"
	doc, err := a.store.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrArticleNotFound) {
			return domain.Article{}, err
		}
		a.log.Error("Document lookup failed",
			slog.String("op", op),
			slog.String("id", id),
			slog.Any("error", err),
		)
		return domain.Article{}, domain.NewNetworkError(fmt.Errorf("%s: %w", op, err))
	}
	item, err := Normalize(doc, a.loc)
	if err != nil {
		return domain.Article{}, domain.NewMalformedResponseError(fmt.Errorf("%s: %w", op, err))
	}
	return item, nil
}

// Normalize заполняет отсутствующие поля документа значениями по умолчанию.
func Normalize(doc domain.Document, loc *time.Location) (domain.Article, error) {
	if doc.ID == "" {
		return domain.Article{}, domain.ErrMissingID
	}
	item := domain.Article{
		ID:            doc.ID,
		Title:         orDefault(doc.Title, domain.DefaultTitle),
		Description:   orDefault(doc.Description, ""),
		Body:          orDefault(doc.Body, domain.DefaultBody),
		Category:      orDefault(doc.Category, domain.DefaultCategory),
		ImageURL:      orDefault(doc.ImageURL, domain.DefaultImageURL),
		Author:        orDefault(doc.Author, domain.DefaultAuthor),
		URL:           orDefault(doc.URL, ""),
		ReadTime:      domain.DefaultReadTime,
		ExternalLinks: make([]string, 0, domain.MaxExternalLinks),
	}
	if doc.ReadTime != nil && *doc.ReadTime > 0 {
		item.ReadTime = *doc.ReadTime
	}
	if doc.Beginner != nil {
		item.Beginner = *doc.Beginner
	}
	if doc.CreatedAt != nil && !doc.CreatedAt.IsZero() {
		item.PublishedDate = domain.DateOf(*doc.CreatedAt, loc)
	}
	for _, link := range []*string{doc.VideoURL1, doc.VideoURL2} {
		if link != nil && *link != "" {
			item.ExternalLinks = append(item.ExternalLinks, *link)
		}
	}
	return item, nil
}

func orDefault(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
