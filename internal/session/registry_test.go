package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryGet(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	id, c := r.Get("")
	assert.NotEmpty(t, id)
	assert.NotNil(t, c)

	id2, c2 := r.Get(id)
	assert.Equal(t, id, id2)
	assert.Same(t, c, c2)

	id3, c3 := r.Get("unknown")
	assert.NotEqual(t, "unknown", id3)
	assert.NotSame(t, c, c3)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryPrune(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRegistry(nil)
	r.now = func() time.Time { return now }

	old, _ := r.Get("")
	now = now.Add(2 * time.Hour)
	fresh, _ := r.Get("")

	assert.Equal(t, 1, r.Prune(time.Hour))
	assert.Equal(t, 1, r.Len())
	got, _ := r.Get(fresh)
	assert.Equal(t, fresh, got)
	got, _ = r.Get(old)
	assert.NotEqual(t, old, got)
}
