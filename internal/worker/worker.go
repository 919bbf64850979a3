package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"finfeed/internal/domain"
)

// FeedProcessor определяет интерфейс для обработки отдельной внешней ленты.
type FeedProcessor interface {
	ProcessFeed(ctx context.Context, src domain.FeedSource) error
}

// Worker периодически наполняет хранилище статьями из внешних лент.
// Ленты одного цикла обрабатываются параллельно, каждая со своим таймаутом.
type Worker struct {
	processor FeedProcessor
	sources   []domain.FeedSource
	interval  time.Duration
	timeout   time.Duration
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New создает воркер. timeout ограничивает обработку одной ленты.
func New(processor FeedProcessor, sources []domain.FeedSource, interval, timeout time.Duration, log *slog.Logger) *Worker {
	return &Worker{
		processor: processor,
		sources:   sources,
		interval:  interval,
		timeout:   timeout,
		log:       log.With(slog.String("component", "worker")),
	}
}

// Start запускает воркер в отдельной горутине. Первый цикл выполняется сразу.
func (w *Worker) Start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.done = make(chan struct{})
	go w.run()
}

// Stop отменяет текущий цикл и дожидается выхода воркера.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	w.log.Info("Feed processing worker started",
		slog.Duration("interval", w.interval),
		slog.Int("feed_count", len(w.sources)),
	)
	if len(w.sources) == 0 {
		w.log.Warn("No feeds configured, worker is idle")
		<-w.ctx.Done()
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.RunOnce(w.ctx)
	for {
		select {
		case <-ticker.C:
			w.RunOnce(w.ctx)
		case <-w.ctx.Done():
			w.log.Info("Worker stopping")
			return
		}
	}
}

// RunOnce обрабатывает все ленты один раз и возвращает число успешных и неудачных.
func (w *Worker) RunOnce(ctx context.Context) (int, int) {
	start := time.Now()
	w.log.Info("Feed processing cycle started", slog.Int("feed_to_process", len(w.sources)))
	var wg sync.WaitGroup
	var successCount atomic.Int64
	var errorCount atomic.Int64
	for _, src := range w.sources {
		wg.Add(1)
		go func(src domain.FeedSource) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			opCtx, opCancel := context.WithTimeout(ctx, w.timeout)
			defer opCancel()
			if err := w.processor.ProcessFeed(opCtx, src); err != nil {
				errorCount.Add(1)
				w.log.Error("Feed processing failed",
					slog.String("url", src.URL),
					slog.Any("error", err),
				)
				return
			}
			successCount.Add(1)
		}(src)
	}
	wg.Wait()
	ok, failed := int(successCount.Load()), int(errorCount.Load())
	w.log.Info("Feed processing cycle completed",
		slog.Int("successful", ok),
		slog.Int("errors", failed),
		slog.Int("total", len(w.sources)),
		slog.Duration("duration", time.Since(start)),
	)
	return ok, failed
}

// Sources возвращает ленты, которые обрабатывает воркер.
func (w *Worker) Sources() []domain.FeedSource { return w.sources }

// Interval возвращает интервал между циклами.
func (w *Worker) Interval() time.Duration { return w.interval }
