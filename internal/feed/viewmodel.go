package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"finfeed/internal/domain"
)

// Status - вариант состояния экрана ленты.
type Status int

const (
	// StatusIdle - экран еще не открыт или пользователь вышел.
	StatusIdle Status = iota
	// StatusLoading - идет загрузка, показать пока нечего.
	StatusLoading
	// StatusRefreshing - идет загрузка, под ней остаются прежние статьи.
	StatusRefreshing
	// StatusReady - лента готова; пустой список означает "нет статей под фильтр".
	StatusReady
	// StatusFailed - загрузка не удалась, пользователю предлагается повтор.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusRefreshing:
		return "refreshing"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State - снимок состояния ленты. Items разделяется между снимками и не должен изменяться.
type State struct {
	Status Status
	Items  []domain.Article
	Err    *domain.FetchError
	Filter domain.Filter
	Token  uint64
}

// Source отдает свежую выборку статей под фильтр.
// Ошибки должны быть *domain.FetchError; прочие считаются сетевыми.
type Source interface {
	Fetch(ctx context.Context, filter domain.Filter) ([]domain.Article, error)
}

// Metrics принимает наблюдения о загрузках ленты.
type Metrics interface {
	ObserveFetch(outcome string, duration time.Duration)
	StaleDiscarded()
}

type nopMetrics struct{}

func (nopMetrics) ObserveFetch(string, time.Duration) {}
func (nopMetrics) StaleDiscarded()                    {}

// Option настраивает ViewModel.
type Option func(*ViewModel)

// WithMetrics подключает сбор метрик.
func WithMetrics(m Metrics) Option {
	return func(vm *ViewModel) {
		if m != nil {
			vm.metrics = m
		}
	}
}

// WithFilter задает фильтр, с которым экран открывается.
func WithFilter(f domain.Filter) Option {
	return func(vm *ViewModel) {
		vm.initial = f.Clone()
	}
}

// ViewModel связывает источник, фильтр и упорядочивание и хранит состояние экрана ленты.
// Одновременно учитывается только результат последней запущенной загрузки:
// каждая загрузка получает возрастающий токен, ответы с устаревшим токеном отбрасываются.
// Перемешивание выполняется один раз на успешную загрузку; чтение состояния его не повторяет.
type ViewModel struct {
	source   Source
	arranger *Arranger
	log      *slog.Logger
	metrics  Metrics
	initial  domain.Filter

	mu      sync.Mutex
	state   State
	filter  domain.Filter
	latest  uint64
	ctx     context.Context
	cancel  context.CancelFunc
	subs    map[int]chan State
	nextSub int

	wg sync.WaitGroup
}

// NewViewModel создает модель ленты в состоянии StatusIdle.
func NewViewModel(source Source, arranger *Arranger, log *slog.Logger, opts ...Option) *ViewModel {
	vm := &ViewModel{
		source:   source,
		arranger: arranger,
		log:      log.With(slog.String("component", "feed-view")),
		metrics:  nopMetrics{},
		subs:     make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.filter = vm.initial.Clone()
	vm.state = State{Status: StatusIdle, Filter: vm.filter.Clone()}
	vm.ctx, vm.cancel = context.WithCancel(context.Background())
	return vm
}

// Mount запускает первую загрузку, если экран еще не открыт.
// Повторные вызовы ничего не делают и возвращают false.
func (vm *ViewModel) Mount() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.state.Status != StatusIdle {
		return false
	}
	vm.startLocked("mount")
	return true
}

// SetFilter заменяет фильтр целиком и перезапускает загрузку.
func (vm *ViewModel) SetFilter(f domain.Filter) uint64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.filter = f.Clone()
	return vm.startLocked("filter")
}

// SetInterests меняет набор интересующих категорий и перезапускает загрузку.
func (vm *ViewModel) SetInterests(interests []string) uint64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.filter.Interests = append([]string(nil), interests...)
	return vm.startLocked("filter")
}

// SetBeginner переключает уровень подготовки и перезапускает загрузку.
func (vm *ViewModel) SetBeginner(beginner bool) uint64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.filter.Beginner = beginner
	return vm.startLocked("filter")
}

// Refresh - обновление по запросу пользователя.
func (vm *ViewModel) Refresh() uint64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.startLocked("refresh")
}

// Retry повторяет загрузку после ошибки. Автоматических повторов нет.
func (vm *ViewModel) Retry() uint64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.startLocked("retry")
}

// State возвращает текущий снимок состояния.
func (vm *ViewModel) State() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state
}

// Filter возвращает копию текущего фильтра.
func (vm *ViewModel) Filter() domain.Filter {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.filter.Clone()
}

// Subscribe возвращает канал, в котором всегда лежит самое свежее состояние.
// Промежуточные состояния, не прочитанные подписчиком, заменяются новыми.
func (vm *ViewModel) Subscribe() (<-chan State, func()) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	id := vm.nextSub
	vm.nextSub++
	ch := make(chan State, 1)
	ch <- vm.state
	vm.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			vm.mu.Lock()
			defer vm.mu.Unlock()
			if _, ok := vm.subs[id]; ok {
				delete(vm.subs, id)
				close(ch)
			}
		})
	}
}

// Reset возвращает модель в StatusIdle и отбрасывает все незавершенные загрузки.
// Подписчики получают состояние StatusIdle, после чего их каналы закрываются.
// Вызывается при выходе пользователя из сессии.
func (vm *ViewModel) Reset() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.latest++
	vm.cancel()
	vm.ctx, vm.cancel = context.WithCancel(context.Background())
	vm.filter = vm.initial.Clone()
	vm.state = State{Status: StatusIdle, Filter: vm.filter.Clone(), Token: vm.latest}
	vm.publishLocked()
	for id, ch := range vm.subs {
		delete(vm.subs, id)
		close(ch)
	}
	vm.log.Info("Feed view reset", slog.Uint64("token", vm.latest))
}

// Wait блокируется до завершения всех запущенных загрузок.
func (vm *ViewModel) Wait() {
	vm.wg.Wait()
}

// Close сбрасывает модель и дожидается завершения загрузок.
func (vm *ViewModel) Close() {
	vm.Reset()
	vm.Wait()
}

func (vm *ViewModel) startLocked(trigger string) uint64 {
	vm.latest++
	token := vm.latest
	filter := vm.filter.Clone()

	next := State{Filter: filter.Clone(), Token: token}
	switch vm.state.Status {
	case StatusReady, StatusRefreshing:
		next.Status = StatusRefreshing
		next.Items = vm.state.Items
	case StatusFailed:
		next.Status = StatusRefreshing
	default:
		next.Status = StatusLoading
	}
	vm.state = next
	vm.publishLocked()

	vm.log.Debug("Feed fetch started",
		slog.String("trigger", trigger),
		slog.Uint64("token", token),
		slog.Bool("beginner", filter.Beginner),
		slog.Int("interests", len(filter.Interests)),
	)

	ctx := vm.ctx
	vm.wg.Add(1)
	go vm.fetch(ctx, token, filter)
	return token
}

func (vm *ViewModel) fetch(ctx context.Context, token uint64, filter domain.Filter) {
	defer vm.wg.Done()
	start := time.Now()
	items, err := vm.source.Fetch(ctx, filter)

	var next State
	outcome := "success"
	if err != nil {
		fe := domain.AsFetchError(err)
		outcome = fe.Kind.String()
		next = State{Status: StatusFailed, Err: fe}
	} else {
		next = State{Status: StatusReady, Items: vm.arranger.Compose(items, filter)}
	}
	next.Filter = filter
	next.Token = token

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if token != vm.latest {
		vm.metrics.StaleDiscarded()
		vm.log.Debug("Discarding stale feed result",
			slog.Uint64("token", token),
			slog.Uint64("latest", vm.latest),
		)
		return
	}
	vm.metrics.ObserveFetch(outcome, time.Since(start))
	if err != nil {
		vm.log.Warn("Feed fetch failed",
			slog.Uint64("token", token),
			slog.Any("error", err),
		)
	} else {
		vm.log.Info("Feed ready",
			slog.Uint64("token", token),
			slog.Int("count", len(next.Items)),
		)
	}
	vm.state = next
	vm.publishLocked()
}

func (vm *ViewModel) publishLocked() {
	for _, ch := range vm.subs {
		select {
		case <-ch:
		default:
		}
		ch <- vm.state
	}
}
