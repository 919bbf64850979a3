package domain

import (
	"strings"
	"unicode"
)

// CategoryKey возвращает ключ категории для сравнения без учета регистра.
// Две строки дают один ключ тогда и только тогда, когда strings.EqualFold считает их равными.
// Для ASCII ключ совпадает со strings.ToLower.
func CategoryKey(category string) string {
	var sb strings.Builder
	sb.Grow(len(category))
	for _, r := range category {
		sb.WriteRune(foldRune(r))
	}
	return sb.String()
}

// foldRune выбирает представителя орбиты unicode.SimpleFold:
// наименьшую строчную руну, а если строчных нет - наименьшую.
func foldRune(r rune) rune {
	best, bestLower := r, unicode.IsLower(r)
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		fLower := unicode.IsLower(f)
		switch {
		case fLower && !bestLower:
			best, bestLower = f, true
		case fLower == bestLower && f < best:
			best = f
		}
	}
	return best
}
