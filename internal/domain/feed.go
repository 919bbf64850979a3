package domain

import "time"

// Item представляет отдельную запись внешней RSS/Atom-ленты до сохранения.
type Item struct {
	Title       string
	Link        string
	Description string
	Body        string
	Author      string
	ImageURL    string
	PubDate     time.Time
}

// Feed представляет разобранную внешнюю ленту с метаданными и списком записей.
type Feed struct {
	Title       string
	Link        string
	Description string
	Items       []Item
}

// FeedSource описывает внешнюю ленту, из которой наполняется хранилище статей.
// Category и Beginner проставляются всем статьям этой ленты.
type FeedSource struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category"`
	Beginner bool   `json:"beginner"`
}
