package domain

import "time"

// Значения по умолчанию для полей документа, которые отсутствуют в хранилище.
const (
	DefaultTitle     = "Untitled"
	DefaultCategory  = "General"
	DefaultBody      = "No content available"
	DefaultAuthor    = "Anonymous"
	DefaultImageURL  = "https://images.unsplash.com/photo-1504384764587-65818e5f5659"
	DefaultReadTime  = 5
	MaxExternalLinks = 2
)

// Article представляет одну запись ленты после нормализации.
// Все необязательные поля уже заполнены значениями по умолчанию.
type Article struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Body          string   `json:"body"`
	Category      string   `json:"category"`
	ImageURL      string   `json:"image_url"`
	Author        string   `json:"author"`
	URL           string   `json:"url"`
	ReadTime      int      `json:"read_time"`
	PublishedDate Date     `json:"published_date"`
	Beginner      bool     `json:"beginner"`
	ExternalLinks []string `json:"external_links"`
}

// Document представляет сырую запись из хранилища документов.
// Указатели равны nil, если поле в документе отсутствует.
type Document struct {
	ID          string
	Title       *string
	Description *string
	Body        *string
	Category    *string
	ImageURL    *string
	Author      *string
	URL         *string
	ReadTime    *int
	Beginner    *bool
	VideoURL1   *string
	VideoURL2   *string
	CreatedAt   *time.Time
}

// Filter описывает выбор пользователя на экране ленты.
// Пустой список интересов означает отсутствие ограничения по категории.
type Filter struct {
	Interests []string `json:"interests"`
	Beginner  bool     `json:"beginner"`
}

// Clone возвращает копию фильтра, не разделяющую срез интересов.
func (f Filter) Clone() Filter {
	out := Filter{Beginner: f.Beginner}
	if len(f.Interests) > 0 {
		out.Interests = append([]string(nil), f.Interests...)
	}
	return out
}

// DocumentQuery - запрос к хранилищу документов.
// Документы всегда сортируются по времени создания от новых к старым.
// Пустой Categories не ограничивает категорию; Limit <= 0 означает лимит хранилища по умолчанию.
type DocumentQuery struct {
	Beginner   bool
	Categories []string
	Limit      int
}
