package usecase

import (
	"context"

	"finfeed/internal/domain"
)

// ArticleSource определяет интерфейс получения одной нормализованной статьи.
type ArticleSource interface {
	Get(ctx context.Context, id string) (domain.Article, error)
}

// ArticleGetterUseCase отдает статью для экрана подробностей.
type ArticleGetterUseCase struct {
	source ArticleSource
}

// NewArticleGetterUseCase создает новый экземпляр UseCase для получения статьи.
func NewArticleGetterUseCase(s ArticleSource) *ArticleGetterUseCase {
	return &ArticleGetterUseCase{source: s}
}

// GetArticle возвращает статью по идентификатору.
// Отсутствующая статья дает domain.ErrArticleNotFound, пустой идентификатор - domain.ErrMissingID.
func (uc *ArticleGetterUseCase) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	if id == "" {
		return domain.Article{}, domain.ErrMissingID
	}
	return uc.source.Get(ctx, id)
}
