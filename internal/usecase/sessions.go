package usecase

import (
	"log/slog"
	"sync"

	"finfeed/internal/feed"
)

// ViewModelFactory создает модель ленты для пользователя.
type ViewModelFactory func(userID string) *feed.ViewModel

// SessionRegistry хранит по одной модели ленты на каждого вошедшего пользователя.
// Модель создается при первом обращении и сбрасывается при выходе.
type SessionRegistry struct {
	factory ViewModelFactory
	log     *slog.Logger

	mu     sync.Mutex
	models map[string]*feed.ViewModel
}

// NewSessionRegistry создает пустой реестр.
func NewSessionRegistry(factory ViewModelFactory, log *slog.Logger) *SessionRegistry {
	return &SessionRegistry{
		factory: factory,
		log:     log.With(slog.String("component", "sessions")),
		models:  make(map[string]*feed.ViewModel),
	}
}

// Get возвращает модель пользователя, создавая ее при необходимости.
func (r *SessionRegistry) Get(userID string) *feed.ViewModel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vm, ok := r.models[userID]; ok {
		return vm
	}
	vm := r.factory(userID)
	r.models[userID] = vm
	r.log.Info("Feed view created", slog.String("user", userID))
	return vm
}

// SignOut сбрасывает и удаляет модель пользователя.
// Незавершенные загрузки отменяются, их результаты никуда не попадут.
func (r *SessionRegistry) SignOut(userID string) bool {
	r.mu.Lock()
	vm, ok := r.models[userID]
	delete(r.models, userID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	vm.Reset()
	r.log.Info("Feed view discarded", slog.String("user", userID))
	return true
}

// Len возвращает число активных моделей.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.models)
}

// CloseAll сбрасывает все модели и дожидается завершения их загрузок.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	models := r.models
	r.models = make(map[string]*feed.ViewModel)
	r.mu.Unlock()
	for _, vm := range models {
		vm.Close()
	}
	r.log.Info("All feed views closed", slog.Int("count", len(models)))
}
