package feed

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"testing"
	"time"

	"finfeed/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() *Arranger {
	return NewArranger(rand.NewPCG(42, 1024))
}

func ids(items []domain.Article) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestArrange_Empty(t *testing.T) {
	got := seeded().Arrange(nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestArrange_GroupsNewestDateFirst(t *testing.T) {
	june7 := domain.Date{Year: 2024, Month: time.June, Day: 7}
	june5 := domain.Date{Year: 2024, Month: time.June, Day: 5}
	items := []domain.Article{
		newArticle("old-1", "Tax", false, june5),
		newArticle("new-1", "Tax", false, june7),
		newArticle("old-2", "Tax", false, june5),
		newArticle("new-2", "Tax", false, june7),
		newArticle("new-3", "Tax", false, june7),
	}
	arranger := seeded()

	for i := 0; i < 50; i++ {
		got := arranger.Arrange(items)
		require.Len(t, got, 5)
		assert.ElementsMatch(t, []string{"new-1", "new-2", "new-3"}, ids(got[:3]))
		assert.ElementsMatch(t, []string{"old-1", "old-2"}, ids(got[3:]))
	}
}

func TestArrange_PreservesMultisetAndStrictlyDecreasingGroups(t *testing.T) {
	rnd := rand.New(rand.NewPCG(7, 7))
	arranger := seeded()
	for round := 0; round < 100; round++ {
		n := rnd.IntN(40)
		items := make([]domain.Article, 0, n)
		for i := 0; i < n; i++ {
			date := domain.Date{}
			if rnd.IntN(10) > 0 {
				date = domain.Date{Year: 2024, Month: time.Month(1 + rnd.IntN(3)), Day: 1 + rnd.IntN(5)}
			}
			items = append(items, newArticle(fmt.Sprintf("item-%d", i), "Tax", false, date))
		}
		before := ids(items)

		got := arranger.Arrange(items)

		assert.ElementsMatch(t, before, ids(got))
		assert.Equal(t, before, ids(items), "input must not be mutated")

		var keys []domain.Date
		for i, item := range got {
			if i == 0 || item.PublishedDate != got[i-1].PublishedDate {
				keys = append(keys, item.PublishedDate)
			}
		}
		for i := 1; i < len(keys); i++ {
			assert.True(t, keys[i-1].After(keys[i]), "group %s must come before %s", keys[i-1], keys[i])
		}
	}
}

func TestArrange_ReshufflesOnEveryCall(t *testing.T) {
	day := domain.Date{Year: 2024, Month: time.June, Day: 7}
	var items []domain.Article
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		items = append(items, newArticle(id, "Tax", false, day))
	}
	arranger := seeded()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		seen[strings.Join(ids(arranger.Arrange(items)), "")] = true
	}
	assert.Greater(t, len(seen), 1)
}

// Критическое значение хи-квадрат для 5 степеней свободы при p = 0.0001.
const chiSquareCritical5 = 25.74

func TestArrange_ShuffleIsUniform(t *testing.T) {
	day := domain.Date{Year: 2024, Month: time.June, Day: 7}
	items := []domain.Article{
		newArticle("a", "Tax", false, day),
		newArticle("b", "Tax", false, day),
		newArticle("c", "Tax", false, day),
	}
	arranger := seeded()

	const runs = 60000
	counts := make(map[string]int)
	for i := 0; i < runs; i++ {
		counts[strings.Join(ids(arranger.Arrange(items)), "")]++
	}

	perms := make([]string, 0, len(counts))
	for p := range counts {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	require.Equal(t, []string{"abc", "acb", "bac", "bca", "cab", "cba"}, perms)

	expected := float64(runs) / 6
	var chi float64
	for _, c := range counts {
		d := float64(c) - expected
		chi += d * d / expected
	}
	assert.Less(t, chi, chiSquareCritical5, "counts: %v", counts)
}

func TestCompose_FiltersThenArranges(t *testing.T) {
	june7 := domain.Date{Year: 2024, Month: time.June, Day: 7}
	june5 := domain.Date{Year: 2024, Month: time.June, Day: 5}
	items := []domain.Article{
		newArticle("tax-old", "Tax", true, june5),
		newArticle("stock", "Stock", true, june7),
		newArticle("tax-advanced", "Tax", false, june7),
		newArticle("tax-new", "tax", true, june7),
	}

	got := seeded().Compose(items, domain.Filter{Interests: []string{"TAX"}, Beginner: true})

	assert.Equal(t, []string{"tax-new", "tax-old"}, ids(got))
}
