package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"finfeed/internal/domain"

	"github.com/google/uuid"
)

// ArticleNamespace - пространство имен UUIDv5 для идентификаторов статей.
// Идентификатор вычисляется из ссылки, поэтому повторная загрузка той же записи не создает дубль.
var ArticleNamespace = uuid.MustParse("6f0b2c1e-5d0a-4c53-9a53-0f1f3c2b8e71")

// WordsPerMinute - скорость чтения, по которой оценивается время чтения статьи.
const WordsPerMinute = 200

// FeedProcessingUseCase реализует наполнение хранилища статьями из внешних лент.
// Координирует загрузку, парсинг и сохранение.
type FeedProcessingUseCase struct {
	fetcher FeedFetcher
	parser  FeedParser
	storage ArticleStorage
	metrics IngestMetrics
	log     *slog.Logger
}

// NewFeedProcessingUseCase создает UseCase наполнения. metrics может быть nil.
func NewFeedProcessingUseCase(
	fetcher FeedFetcher,
	parser FeedParser,
	storage ArticleStorage,
	metrics IngestMetrics,
	log *slog.Logger,
) *FeedProcessingUseCase {
	if metrics == nil {
		metrics = nopIngestMetrics{}
	}
	return &FeedProcessingUseCase{
		fetcher: fetcher,
		parser:  parser,
		storage: storage,
		metrics: metrics,
		log:     log.With(slog.String("component", "feed-processor")),
	}
}

// ProcessFeed выполняет полный цикл обработки ленты: получение, парсинг и сохранение.
// Всем статьям ленты проставляются категория и уровень подготовки из src.
func (uc *FeedProcessingUseCase) ProcessFeed(ctx context.Context, src domain.FeedSource) error {
	const op = "usecase.ProcessFeed"
	start := time.Now()
	feedName := FeedName(src)
	log := uc.log.With(
		slog.String("op", op),
		slog.String("feed", feedName),
		slog.String("url", src.URL),
	)

	log.Info("Processing feed started")

	reader, err := uc.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		uc.metrics.FeedProcessed(feedName, "fetch_error")
		log.Error("Feed fetch failed",
			slog.String("stage", "fetch"),
			slog.Any("error", err),
		)
		return fmt.Errorf("%s: fetch failed for %s: %w", op, feedName, err)
	}
	defer reader.Close()

	feed, err := uc.parser.Parse(ctx, reader)
	if err != nil {
		uc.metrics.FeedProcessed(feedName, "parse_error")
		log.Error("Feed parsing failed",
			slog.String("stage", "parse"),
			slog.Any("error", err),
		)
		return fmt.Errorf("%s: parse failed for %s: %w", op, feedName, err)
	}

	docs := ToDocuments(feed, src)
	log.Debug("Feed parsed successfully",
		slog.String("stage", "parse"),
		slog.Int("items_parsed", len(feed.Items)),
	)

	savedCount, err := uc.storage.SaveArticles(ctx, docs)
	if err != nil {
		uc.metrics.FeedProcessed(feedName, "save_error")
		log.Error("Feed save failed",
			slog.String("stage", "save"),
			slog.Any("error", err),
		)
		return fmt.Errorf("%s: save failed for %s: %w", op, feedName, err)
	}

	uc.metrics.FeedProcessed(feedName, "success")
	uc.metrics.ItemsIngested(feedName, savedCount)
	log.Info("Feed processing completed successfully",
		slog.Int("items_found", len(feed.Items)),
		slog.Int("items_saved", savedCount),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// ToDocuments превращает записи ленты в документы хранилища.
// Записи с повторяющейся ссылкой сворачиваются в одну.
func ToDocuments(feed *domain.Feed, src domain.FeedSource) []domain.Document {
	docs := make([]domain.Document, 0, len(feed.Items))
	seen := make(map[string]struct{}, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		id := ArticleID(item.Link)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		category := src.Category
		beginner := src.Beginner
		doc := domain.Document{
			ID:          id,
			Title:       nonEmpty(item.Title),
			Description: nonEmpty(item.Description),
			Body:        nonEmpty(item.Body),
			Category:    &category,
			ImageURL:    nonEmpty(item.ImageURL),
			Author:      nonEmpty(item.Author),
			URL:         nonEmpty(item.Link),
			ReadTime:    readTime(item.Body),
			Beginner:    &beginner,
		}
		if !item.PubDate.IsZero() {
			published := item.PubDate.UTC()
			doc.CreatedAt = &published
		}
		docs = append(docs, doc)
	}
	return docs
}

// ArticleID возвращает стабильный идентификатор статьи по ее ссылке.
func ArticleID(link string) string {
	return uuid.NewSHA1(ArticleNamespace, []byte(strings.TrimSpace(link))).String()
}

// FeedName возвращает читаемое имя ленты: из конфигурации или домен URL.
func FeedName(src domain.FeedSource) string {
	if src.Name != "" {
		return src.Name
	}
	parts := strings.Split(src.URL, "/")
	if len(parts) >= 3 {
		return strings.TrimPrefix(parts[2], "www.")
	}
	return "Unknown"
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// readTime оценивает время чтения в минутах. Пустой текст дает nil,
// чтобы при чтении сработало значение по умолчанию.
func readTime(body string) *int {
	words := len(strings.Fields(body))
	if words == 0 {
		return nil
	}
	minutes := int(math.Ceil(float64(words) / WordsPerMinute))
	return &minutes
}
