package feed

import (
	"math/rand/v2"
	"sort"
	"sync"

	"finfeed/internal/domain"
)

// Arranger упорядочивает статьи: группы по дате публикации от новых к старым,
// внутри группы - случайная перестановка, заново выбираемая при каждом вызове.
type Arranger struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewArranger создает Arranger с источником случайности src.
// Если src равен nil, используется непредсказуемый источник.
func NewArranger(src rand.Source) *Arranger {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Arranger{rnd: rand.New(src)}
}

// Arrange возвращает новый срез; входной срез не изменяется.
func (a *Arranger) Arrange(items []domain.Article) []domain.Article {
	out := make([]domain.Article, 0, len(items))
	if len(items) == 0 {
		return out
	}

	groups := make(map[domain.Date][]domain.Article)
	for _, item := range items {
		groups[item.PublishedDate] = append(groups[item.PublishedDate], item)
	}
	dates := make([]domain.Date, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].After(dates[j])
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range dates {
		group := groups[d]
		// rand.Shuffle - это Фишер-Йейтс, каждая перестановка равновероятна.
		a.rnd.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		out = append(out, group...)
	}
	return out
}

// Compose применяет фильтр и упорядочивание к свежей выборке.
func (a *Arranger) Compose(items []domain.Article, filter domain.Filter) []domain.Article {
	return a.Arrange(Select(items, filter))
}
