package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgenbot/smartgen/internal/provider"
)

func TestRegistry_PutGetTake(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get(1))
	assert.Nil(t, r.Take(1))

	s := &Session{ChatID: 1, OwnerID: 7, Provider: provider.KindGotd}
	r.Put(s)
	assert.Same(t, s, r.Get(1))
	assert.Equal(t, 1, r.Len())

	assert.Same(t, s, r.Take(1))
	assert.Nil(t, r.Get(1))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_PutReplaces(t *testing.T) {
	r := NewRegistry()
	first := &Session{ChatID: 1}
	second := &Session{ChatID: 1}
	r.Put(first)
	r.Put(second)
	assert.Same(t, second, r.Get(1))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_TakeIf(t *testing.T) {
	r := NewRegistry()
	s := &Session{ChatID: 1}
	s.setStage(StageCode)
	r.Put(s)

	// wrong stage leaves the session in place
	assert.False(t, r.TakeIf(s, StagePassword))
	require.Same(t, s, r.Get(1))

	// matching stage removes it
	assert.True(t, r.TakeIf(s, StagePhone, StageCode))
	assert.Nil(t, r.Get(1))

	// second take is a no-op
	assert.False(t, r.TakeIf(s, StageCode))
}

func TestRegistry_TakeIfIgnoresReplacedSession(t *testing.T) {
	r := NewRegistry()
	stale := &Session{ChatID: 1}
	stale.setStage(StageCode)
	r.Put(stale)

	fresh := &Session{ChatID: 1}
	fresh.setStage(StageCode)
	r.Put(fresh)

	// a watchdog holding the stale pointer must not evict the fresh one
	assert.False(t, r.TakeIf(stale, StageCode))
	assert.Same(t, fresh, r.Get(1))
}

func TestRegistry_TakeIfWithoutStages(t *testing.T) {
	r := NewRegistry()
	s := &Session{ChatID: 1}
	r.Put(s)
	assert.True(t, r.TakeIf(s))
	assert.False(t, r.TakeIf(s))
}
