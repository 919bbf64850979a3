package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"finfeed/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// MaxDescriptionRunes ограничивает длину краткого описания записи.
const MaxDescriptionRunes = 1000

// FeedParser разбирает RSS, Atom и JSON Feed через gofeed и очищает HTML в тексте записей.
type FeedParser struct {
	log *slog.Logger
}

func NewFeedParser(log *slog.Logger) *FeedParser {
	return &FeedParser{
		log: log,
	}
}

// Parse реализует метод интерфейса FeedParser.
// Записи без ссылки пропускаются: по ссылке вычисляется идентификатор статьи.
func (p *FeedParser) Parse(ctx context.Context, reader io.Reader) (*domain.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parsed, err := gofeed.NewParser().Parse(reader)
	if err != nil {
		p.log.Error(
			"Error decoding feed",
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	feed := domain.Feed{
		Title:       parsed.Title,
		Link:        parsed.Link,
		Description: StripHTML(parsed.Description),
		Items:       make([]domain.Item, 0, len(parsed.Items)),
	}
	for _, src := range parsed.Items {
		if src == nil {
			continue
		}
		link := strings.TrimSpace(src.Link)
		if link == "" {
			p.log.Warn(
				"feed item has no link, skipping item",
				slog.String("item_title", src.Title),
			)
			continue
		}
		description := truncateRunes(StripHTML(src.Description), MaxDescriptionRunes)
		body := StripHTML(src.Content)
		if body == "" {
			body = StripHTML(src.Description)
		}
		feed.Items = append(feed.Items, domain.Item{
			Title:       strings.TrimSpace(src.Title),
			Link:        link,
			Description: description,
			Body:        body,
			Author:      itemAuthor(src),
			ImageURL:    itemImage(src),
			PubDate:     itemDate(src),
		})
	}
	return &feed, nil
}

// StripHTML возвращает текст HTML-фрагмента со схлопнутыми пробелами.
func StripHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func itemAuthor(item *gofeed.Item) string {
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	return ""
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

// itemDate возвращает дату публикации, при ее отсутствии - дату обновления.
// Нулевое время означает, что дата неизвестна.
func itemDate(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	default:
		return time.Time{}
	}
}
