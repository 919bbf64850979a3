package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"finfeed/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newFakeProcessor(fail ...string) *fakeProcessor {
	p := &fakeProcessor{calls: map[string]int{}, fail: map[string]bool{}}
	for _, u := range fail {
		p.fail[u] = true
	}
	return p
}

func (p *fakeProcessor) ProcessFeed(ctx context.Context, src domain.FeedSource) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[src.URL]++
	if p.fail[src.URL] {
		return errors.New("boom")
	}
	return nil
}

func (p *fakeProcessor) count(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[url]
}

var sources = []domain.FeedSource{
	{Name: "a", URL: "https://a.example.com/rss", Category: "Stock"},
	{Name: "b", URL: "https://b.example.com/rss", Category: "Tax"},
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorker_RunOnceCountsOutcomes(t *testing.T) {
	proc := newFakeProcessor(sources[1].URL)
	w := New(proc, sources, time.Hour, time.Second, discardLogger())

	ok, failed := w.RunOnce(context.Background())

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, proc.count(sources[0].URL))
	assert.Equal(t, 1, proc.count(sources[1].URL))
}

func TestWorker_RunOnceSkipsWhenCancelled(t *testing.T) {
	proc := newFakeProcessor()
	w := New(proc, sources, time.Hour, time.Second, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, failed := w.RunOnce(ctx)

	assert.Zero(t, ok)
	assert.Zero(t, failed)
}

func TestWorker_StartRunsImmediatelyAndStops(t *testing.T) {
	proc := newFakeProcessor()
	w := New(proc, sources, 20*time.Millisecond, time.Second, discardLogger())

	w.Start()
	require.Eventually(t, func() bool { return proc.count(sources[0].URL) >= 2 }, time.Second, 5*time.Millisecond)
	w.Stop()

	after := proc.count(sources[0].URL)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, proc.count(sources[0].URL))
	assert.Equal(t, 20*time.Millisecond, w.Interval())
	assert.Len(t, w.Sources(), 2)
}

func TestWorker_IdleWithoutSources(t *testing.T) {
	w := New(newFakeProcessor(), nil, time.Millisecond, time.Second, discardLogger())
	w.Start()
	w.Stop()
}
