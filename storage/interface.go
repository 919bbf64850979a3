package storage

import (
	"context"

	"finfeed/internal/domain"
)

// Storage определяет общий интерфейс хранилища статей.
// Объединяет запись статей из внешних лент, выборку документов для ленты и закрытие соединения.
type Storage interface {
	SaveArticles(ctx context.Context, docs []domain.Document) (int, error)
	ListDocuments(ctx context.Context, q domain.DocumentQuery) ([]domain.Document, error)
	GetDocument(ctx context.Context, id string) (domain.Document, error)
	Ping(ctx context.Context) error
	Close()
}
