// Package feed собирает ленту статей: фильтрует, группирует по дате публикации,
// перемешивает записи внутри дня и хранит состояние экрана ленты.
package feed

import (
	"strings"

	"finfeed/internal/domain"
)

// Matches сообщает, проходит ли статья выбранный пользователем фильтр.
// Категория сравнивается без учета регистра, пустой список интересов пропускает любую категорию.
// Уровень подготовки должен совпадать точно.
func Matches(item domain.Article, filter domain.Filter) bool {
	return matchesCategory(item.Category, filter.Interests) && item.Beginner == filter.Beginner
}

func matchesCategory(category string, interests []string) bool {
	if len(interests) == 0 {
		return true
	}
	for _, interest := range interests {
		if strings.EqualFold(interest, category) {
			return true
		}
	}
	return false
}

// Select возвращает статьи, прошедшие фильтр, в исходном порядке.
func Select(items []domain.Article, filter domain.Filter) []domain.Article {
	out := make([]domain.Article, 0, len(items))
	for _, item := range items {
		if Matches(item, filter) {
			out = append(out, item)
		}
	}
	return out
}
