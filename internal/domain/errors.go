package domain

import (
	"errors"
	"fmt"
)

var (
	ErrArticleNotFound = errors.New("article not found")
	ErrMissingID       = errors.New("document has no id")
	ErrUnauthorized    = errors.New("unauthorized")
)

// FetchErrorKind классифицирует сбой получения ленты.
type FetchErrorKind int

const (
	// KindNetwork - транспортный сбой или отказ хранилища выполнить запрос.
	KindNetwork FetchErrorKind = iota
	// KindMalformedResponse - хранилище вернуло данные, которые нельзя нормализовать.
	KindMalformedResponse
)

func (k FetchErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// FetchError - единственный тип ошибки, который источник контента отдает наверх.
// Message предназначено для показа пользователю, Err хранит исходную причину.
type FetchError struct {
	Kind    FetchErrorKind
	Message string
	Err     error
}

// NewNetworkError оборачивает транспортную ошибку.
func NewNetworkError(err error) *FetchError {
	return &FetchError{Kind: KindNetwork, Message: "Failed to load articles", Err: err}
}

// NewMalformedResponseError оборачивает ошибку нормализации ответа.
func NewMalformedResponseError(err error) *FetchError {
	return &FetchError{Kind: KindMalformedResponse, Message: "Received invalid articles from server", Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AsFetchError приводит произвольную ошибку к *FetchError.
// Ошибки другого типа считаются сетевыми.
func AsFetchError(err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return NewNetworkError(err)
}
