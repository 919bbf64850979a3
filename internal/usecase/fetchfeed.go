package usecase

import (
	"context"
	"io"

	"finfeed/internal/domain"
)

// FeedFetcher определяет интерфейс для загрузки внешних лент.
// Возвращает io.ReadCloser который должен быть закрыт после использования.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// FeedParser определяет интерфейс для парсинга ленты в доменную модель.
type FeedParser interface {
	Parse(ctx context.Context, reader io.Reader) (*domain.Feed, error)
}

// ArticleStorage определяет интерфейс для сохранения статей в хранилище документов.
// Возвращает количество новых документов.
type ArticleStorage interface {
	SaveArticles(ctx context.Context, docs []domain.Document) (int, error)
}

// IngestMetrics принимает наблюдения о наполнении хранилища.
type IngestMetrics interface {
	FeedProcessed(feed, outcome string)
	ItemsIngested(feed string, n int)
}

type nopIngestMetrics struct{}

func (nopIngestMetrics) FeedProcessed(string, string) {}
func (nopIngestMetrics) ItemsIngested(string, int)    {}
