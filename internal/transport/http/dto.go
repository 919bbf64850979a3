package http

import (
	"finfeed/internal/domain"
	"finfeed/internal/feed"
)

// stateResponse - представление состояния ленты для клиента.
// Items уже отсортированы; Sections описывают границы групп по дате.
type stateResponse struct {
	Status   string           `json:"status"`
	Token    uint64           `json:"token"`
	Filter   filterDTO        `json:"filter"`
	Items    []domain.Article `json:"items"`
	Sections []sectionDTO     `json:"sections"`
	Error    *errorDTO        `json:"error,omitempty"`
}

type filterDTO struct {
	Interests []string `json:"interests"`
	Beginner  bool     `json:"beginner"`
}

type sectionDTO struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type errorDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// filterRequest - тело PUT /api/feed/filter. Отсутствующее поле не меняется.
type filterRequest struct {
	Interests *[]string `json:"interests"`
	Beginner  *bool     `json:"beginner"`
}

type signInRequest struct {
	APIKey string `json:"api_key"`
}

func newStateResponse(s feed.State) stateResponse {
	resp := stateResponse{
		Status: s.Status.String(),
		Token:  s.Token,
		Filter: filterDTO{
			Interests: s.Filter.Interests,
			Beginner:  s.Filter.Beginner,
		},
		Items:    s.Items,
		Sections: sections(s.Items),
	}
	if resp.Filter.Interests == nil {
		resp.Filter.Interests = []string{}
	}
	if resp.Items == nil {
		resp.Items = []domain.Article{}
	}
	if s.Err != nil {
		resp.Error = &errorDTO{Kind: s.Err.Kind.String(), Message: s.Err.Message}
	}
	return resp
}

// sections сворачивает подряд идущие статьи с одной датой в группы.
func sections(items []domain.Article) []sectionDTO {
	out := []sectionDTO{}
	for i, item := range items {
		if i == 0 || item.PublishedDate != items[i-1].PublishedDate {
			out = append(out, sectionDTO{Date: item.PublishedDate.String()})
		}
		out[len(out)-1].Count++
	}
	return out
}
