package usecase

import (
	"context"
	"testing"
	"time"

	"finfeed/internal/domain"
	"finfeed/internal/feed"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource []domain.Article

func (s staticSource) Fetch(context.Context, domain.Filter) ([]domain.Article, error) {
	return s, nil
}

func newTestRegistry(created *[]string) *SessionRegistry {
	src := staticSource{{ID: "a1", Category: "Tax"}}
	return NewSessionRegistry(func(userID string) *feed.ViewModel {
		*created = append(*created, userID)
		return feed.NewViewModel(src, feed.NewArranger(nil), discardLogger(),
			feed.WithFilter(domain.Filter{Interests: []string{"Tax"}}))
	}, discardLogger())
}

func TestSessionRegistry_GetCreatesOncePerUser(t *testing.T) {
	var created []string
	reg := newTestRegistry(&created)
	defer reg.CloseAll()

	a := reg.Get("alice")
	again := reg.Get("alice")
	b := reg.Get("bob")

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
	assert.Equal(t, []string{"alice", "bob"}, created)
	assert.Equal(t, 2, reg.Len())
}

func TestSessionRegistry_SignOutResetsAndDrops(t *testing.T) {
	var created []string
	reg := newTestRegistry(&created)
	defer reg.CloseAll()

	vm := reg.Get("alice")
	require.True(t, vm.Mount())
	require.Eventually(t, func() bool { return vm.State().Status == feed.StatusReady }, time.Second, 5*time.Millisecond)

	assert.True(t, reg.SignOut("alice"))
	assert.Equal(t, feed.StatusIdle, vm.State().Status)
	assert.Empty(t, vm.State().Items)

	assert.Zero(t, reg.Len())
	assert.False(t, reg.SignOut("alice"))

	fresh := reg.Get("alice")
	assert.NotSame(t, vm, fresh)
	assert.Equal(t, feed.StatusIdle, fresh.State().Status)
}

func TestSessionRegistry_CloseAll(t *testing.T) {
	var created []string
	reg := newTestRegistry(&created)
	vm := reg.Get("alice")
	vm.Mount()

	reg.CloseAll()

	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, feed.StatusIdle, vm.State().Status)
}
