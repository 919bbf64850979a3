package usecase

import (
	"context"
	"testing"

	"finfeed/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArticleSource map[string]domain.Article

func (s fakeArticleSource) Get(_ context.Context, id string) (domain.Article, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return domain.Article{}, domain.ErrArticleNotFound
}

func TestArticleGetter(t *testing.T) {
	uc := NewArticleGetterUseCase(fakeArticleSource{"a1": {ID: "a1", Title: "Tax tips"}})

	got, err := uc.GetArticle(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Tax tips", got.Title)

	_, err = uc.GetArticle(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrArticleNotFound)

	_, err = uc.GetArticle(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMissingID)
}
