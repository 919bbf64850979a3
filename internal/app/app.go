package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"finfeed/internal/adapter/fetcher"
	"finfeed/internal/adapter/parser"
	"finfeed/internal/adapter/source"
	"finfeed/internal/config"
	"finfeed/internal/feed"
	"finfeed/internal/logger"
	"finfeed/internal/metrics"
	"finfeed/internal/migrations"
	server "finfeed/internal/transport/http"
	"finfeed/internal/usecase"
	"finfeed/internal/worker"
	"finfeed/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App связывает HTTP-сервер, модели лент пользователей, воркер наполнения,
// хранилище и логирование. Обеспечивает graceful startup и shutdown.
type App struct {
	config    *config.Config
	logger    *slog.Logger
	closeLogs func() error
	server    *http.Server
	worker    *worker.Worker
	sessions  *usecase.SessionRegistry
	store     storage.Storage
	stopChan  chan os.Signal
	wg        sync.WaitGroup
}

// New создает приложение: логгер, хранилище и все зависимости.
// Клиент хранилища создается один раз и передается всем, кому он нужен.
func New(cfg *config.Config) (*App, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, fmt.Errorf("bad init app: %w", err)
	}
	appLogger, closeLogs, dbStorage, err := bootstrap(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	appMetrics := metrics.New()

	ingestWorker := newIngestWorker(cfg, dbStorage, appMetrics, appLogger)

	contentSource := source.New(dbStorage, loc, cfg.App.FeedLimit, appLogger)
	arranger := feed.NewArranger(nil)
	registry := usecase.NewSessionRegistry(func(userID string) *feed.ViewModel {
		return feed.NewViewModel(contentSource, arranger,
			appLogger.With(slog.String("user", userID)),
			feed.WithMetrics(appMetrics),
		)
	}, appLogger)
	appMetrics.TrackSessions(registry.Len)

	auth := server.NewSessionAuth(server.NewCookieStore(cfg.Auth), cfg.Auth.APIKeys, appLogger,
		server.WithSignInLimit(cfg.Auth.SignInPerMinute),
	)
	articles := usecase.NewArticleGetterUseCase(contentSource)
	handler := server.NewHandler(appLogger, registry, articles, auth, cfg.App.Categories, dbStorage)
	router := server.NewServer(appLogger, handler, appMetrics.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &App{
		config:    cfg,
		logger:    appLogger,
		closeLogs: closeLogs,
		server:    httpServer,
		worker:    ingestWorker,
		sessions:  registry,
		store:     dbStorage,
		stopChan:  make(chan os.Signal, 1),
	}, nil
}

// Run запускает воркер и HTTP-сервер и блокируется до сигнала завершения.
func (a *App) Run() error {
	a.logger.Info("Starting finfeed",
		slog.String("component", "app"),
		slog.Int("feed_count", len(a.worker.Sources())),
		slog.Duration("ingest_interval", a.worker.Interval()),
	)
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to create listener: %w", err), a.Shutdown())
	}
	a.worker.Start()
	a.logger.Info("HTTP server ready",
		slog.String("component", "server"),
		slog.String("address", listener.Addr().String()),
	)
	serveErr := make(chan error, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
			serveErr <- err
		}
	}()
	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case sig := <-a.stopChan:
		a.logger.Info("Shutdown signal received",
			slog.String("component", "app"),
			slog.String("signal", sig.String()),
		)
	case runErr = <-serveErr:
	}
	return errors.Join(runErr, a.Shutdown())
}

// Shutdown останавливает воркер и сервер, сбрасывает модели лент и закрывает пул.
func (a *App) Shutdown() error {
	a.logger.Info("Starting graceful shutdown", slog.String("component", "app"))
	signal.Stop(a.stopChan)
	a.worker.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var shutdownErr error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", slog.Any("error", err))
		shutdownErr = err
	}
	a.wg.Wait()
	a.sessions.CloseAll()
	a.store.Close()
	a.logger.Info("Application stopped gracefully", slog.String("component", "app"))
	return errors.Join(shutdownErr, a.closeLogs())
}

// Migrate подготавливает схему хранилища и завершает работу.
func Migrate(ctx context.Context, cfg *config.Config) error {
	appLogger, closeLogs, store, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	store.Close()
	appLogger.Info("Storage schema is up to date", slog.String("component", "app"))
	return closeLogs()
}

// IngestOnce выполняет один цикл наполнения хранилища без HTTP-сервера.
// Возвращает число успешно и неуспешно обработанных лент.
func IngestOnce(ctx context.Context, cfg *config.Config) (int, int, error) {
	appLogger, closeLogs, store, err := bootstrap(ctx, cfg)
	if err != nil {
		return 0, 0, err
	}
	defer closeLogs()
	defer store.Close()
	ok, failed := newIngestWorker(cfg, store, nil, appLogger).RunOnce(ctx)
	return ok, failed, nil
}

// bootstrap создает логгер и открывает хранилище выбранным драйвером.
func bootstrap(ctx context.Context, cfg *config.Config) (*slog.Logger, func() error, storage.Storage, error) {
	appLogger, closeLogs, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	slog.SetDefault(appLogger)
	store, err := openStorage(ctx, cfg, appLogger)
	if err != nil {
		closeLogs()
		return nil, nil, nil, err
	}
	return appLogger, closeLogs, store, nil
}

func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	if cfg.Database.Driver == config.DriverSQLite {
		store, err := storage.OpenSQLite(ctx, cfg.Database.Path, cfg.App, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return store, nil
	}
	dbPool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if err := migrations.Apply(ctx, log, dbPool); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return storage.NewPostgresArticleDB(dbPool, cfg.App, log), nil
}

func newIngestWorker(cfg *config.Config, store usecase.ArticleStorage, m usecase.IngestMetrics, log *slog.Logger) *worker.Worker {
	httpFetcher := fetcher.NewHTTPFetcher(cfg.App.FetchTimeoutDuration(), log)
	feedParser := parser.NewFeedParser(log)
	processor := usecase.NewFeedProcessingUseCase(httpFetcher, feedParser, store, m, log)
	return worker.New(processor, cfg.App.Feeds, cfg.App.IngestEvery(), cfg.App.FetchTimeoutDuration(), log)
}
