package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// NewServer создает роутер с эндпоинтами API и middleware.
// Маршруты ленты и выхода доступны только с сессией.
func NewServer(log *slog.Logger, h *Handler, metrics http.Handler) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	router.HandleFunc("/api/health", h.healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/categories", h.getCategories).Methods(http.MethodGet)
	router.Handle("/api/session", h.auth.LimitSignIn(http.HandlerFunc(h.signIn))).Methods(http.MethodPost)
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(h.auth.RequireAuth)
	authed.HandleFunc("/session", h.signOut).Methods(http.MethodDelete)
	authed.HandleFunc("/feed", h.getFeed).Methods(http.MethodGet)
	authed.HandleFunc("/feed/stream", h.streamFeed).Methods(http.MethodGet)
	authed.HandleFunc("/feed/filter", h.setFilter).Methods(http.MethodPut)
	authed.HandleFunc("/feed/refresh", h.refreshFeed).Methods(http.MethodPost)
	authed.HandleFunc("/articles/{id}", h.getArticle).Methods(http.MethodGet)

	var handler http.Handler = router
	handler = loggingMiddleware(log)(handler)
	handler = corsMiddleware()(handler)
	handler = requestIDMiddleware(handler)
	return handler
}
