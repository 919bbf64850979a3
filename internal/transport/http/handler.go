package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"finfeed/internal/config"
	"finfeed/internal/domain"
	"finfeed/internal/feed"

	"github.com/gorilla/mux"
)

// maxWait ограничивает параметр wait у GET /api/feed.
const maxWait = 10 * time.Second

type feedSessions interface {
	Get(userID string) *feed.ViewModel
	SignOut(userID string) bool
}

type articleGetter interface {
	GetArticle(ctx context.Context, id string) (domain.Article, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	log        *slog.Logger
	sessions   feedSessions
	articles   articleGetter
	auth       *SessionAuth
	categories []config.Category
	db         pinger
}

func NewHandler(
	log *slog.Logger,
	sessions feedSessions,
	articles articleGetter,
	auth *SessionAuth,
	categories []config.Category,
	db pinger,
) *Handler {
	return &Handler{
		log:        log.With(slog.String("component", "http")),
		sessions:   sessions,
		articles:   articles,
		auth:       auth,
		categories: categories,
		db:         db,
	}
}

// healthCheck - хендлер для проверки состояния сервиса
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.log.Warn("Health check failed", slog.Any("error", err))
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// signIn - POST /api/session
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/signIn"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
	)
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	userID, err := h.auth.SignIn(w, r, req.APIKey)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			log.Warn("Sign in rejected")
			respondWithError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		log.Error("Failed to save session", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	log.Info("User signed in", slog.String("user", userID))
	respondWithJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

// signOut - DELETE /api/session. Модель ленты пользователя сбрасывается.
func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/signOut"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
	)
	userID, err := h.auth.SignOut(w, r)
	if err != nil {
		log.Error("Failed to clear session", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	h.sessions.SignOut(userID)
	log.Info("User signed out", slog.String("user", userID))
	w.WriteHeader(http.StatusNoContent)
}

// getCategories - GET /api/categories
func (h *Handler) getCategories(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.categories)
}

// getFeed - GET /api/feed. Первый запрос открывает ленту.
// Параметр wait (например, wait=2s) ждет завершения загрузки, но не дольше maxWait.
func (h *Handler) getFeed(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/getFeed"
	vm := h.viewModel(r)
	vm.Mount()

	wait, err := parseWait(r.URL.Query().Get("wait"))
	if err != nil {
		h.log.Warn("invalid wait parameter",
			slog.String("op", op),
			slog.String("wait", r.URL.Query().Get("wait")),
		)
		respondWithError(w, http.StatusBadRequest, "Invalid 'wait' parameter")
		return
	}
	state := vm.State()
	if wait > 0 && inFlight(state.Status) {
		state = awaitSettled(r.Context(), vm, wait)
	}
	respondWithJSON(w, http.StatusOK, newStateResponse(state))
}

// streamFeed - GET /api/feed/stream. Отдает состояния ленты как server-sent events.
func (h *Handler) streamFeed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	vm := h.viewModel(r)
	vm.Mount()
	updates, unsubscribe := vm.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(newStateResponse(state))
			if err != nil {
				h.log.Error("Failed to marshal feed state", slog.Any("error", err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// setFilter - PUT /api/feed/filter
func (h *Handler) setFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Interests == nil && req.Beginner == nil {
		respondWithError(w, http.StatusBadRequest, "Nothing to change")
		return
	}
	vm := h.viewModel(r)
	f := vm.Filter()
	if req.Interests != nil {
		f.Interests = *req.Interests
	}
	if req.Beginner != nil {
		f.Beginner = *req.Beginner
	}
	vm.SetFilter(f)
	respondWithJSON(w, http.StatusAccepted, newStateResponse(vm.State()))
}

// refreshFeed - POST /api/feed/refresh. После ошибки работает как повтор.
func (h *Handler) refreshFeed(w http.ResponseWriter, r *http.Request) {
	vm := h.viewModel(r)
	if vm.State().Status == feed.StatusFailed {
		vm.Retry()
	} else {
		vm.Refresh()
	}
	respondWithJSON(w, http.StatusAccepted, newStateResponse(vm.State()))
}

// getArticle - GET /api/articles/{id}
func (h *Handler) getArticle(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/getArticle"
	id := mux.Vars(r)["id"]
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
		slog.String("id", id),
	)
	article, err := h.articles.GetArticle(r.Context(), id)
	if err != nil {
		var fe *domain.FetchError
		switch {
		case errors.Is(err, domain.ErrArticleNotFound):
			respondWithError(w, http.StatusNotFound, "Article not found")
		case errors.Is(err, domain.ErrMissingID):
			respondWithError(w, http.StatusBadRequest, "Article id is required")
		case errors.As(err, &fe) && fe.Kind == domain.KindMalformedResponse:
			log.Error("Malformed article", slog.Any("error", err))
			respondWithError(w, http.StatusBadGateway, fe.Message)
		default:
			log.Error("Failed to get article", slog.Any("error", err))
			respondWithError(w, http.StatusServiceUnavailable, domain.AsFetchError(err).Message)
		}
		return
	}
	respondWithJSON(w, http.StatusOK, article)
}

func (h *Handler) viewModel(r *http.Request) *feed.ViewModel {
	userID, _ := UserFromContext(r.Context())
	return h.sessions.Get(userID)
}

func inFlight(s feed.Status) bool {
	return s == feed.StatusLoading || s == feed.StatusRefreshing
}

// awaitSettled ждет состояния без незавершенной загрузки.
// По таймауту или отмене запроса возвращает последнее известное состояние.
func awaitSettled(ctx context.Context, vm *feed.ViewModel, wait time.Duration) feed.State {
	updates, unsubscribe := vm.Subscribe()
	defer unsubscribe()
	timer := time.NewTimer(wait)
	defer timer.Stop()
	last := vm.State()
	for {
		select {
		case state, ok := <-updates:
			if !ok {
				return vm.State()
			}
			last = state
			if !inFlight(state.Status) {
				return state
			}
		case <-timer.C:
			return last
		case <-ctx.Done():
			return last
		}
	}
}

func parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid wait %q", raw)
	}
	return min(d, maxWait), nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// Вспомогательные функции для ответов
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
