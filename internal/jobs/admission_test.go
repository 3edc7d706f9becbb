package jobs

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdmission(t *testing.T) {
	assert.IsType(t, &Exclusive{}, NewAdmission(ModeExclusive))
	assert.IsType(t, Unbounded{}, NewAdmission(ModeUnbounded))
	assert.IsType(t, Unbounded{}, NewAdmission(""))
}

func TestUnbounded_AdmitsEverything(t *testing.T) {
	a := Unbounded{}
	for i := 0; i < 3; i++ {
		require.NoError(t, a.Acquire(uuid.New(), "u", func() {}))
	}
	_, ok := a.Active()
	assert.False(t, ok)

	_, err := a.Cancel("u", nil)
	assert.ErrorIs(t, err, ErrNoActiveJob)
}

func TestExclusive_SingleSlot(t *testing.T) {
	e := NewExclusive()
	first := uuid.New()

	require.NoError(t, e.Acquire(first, "alice", func() {}))
	assert.ErrorIs(t, e.Acquire(uuid.New(), "bob", func() {}), ErrBusy)
	assert.ErrorIs(t, e.Acquire(uuid.New(), "alice", func() {}), ErrBusy)

	slot, ok := e.Active()
	require.True(t, ok)
	assert.Equal(t, first, slot.JobID)
	assert.Equal(t, "alice", slot.Owner)

	e.Release(first)
	_, ok = e.Active()
	assert.False(t, ok)
	require.NoError(t, e.Acquire(uuid.New(), "bob", func() {}))
}

func TestExclusive_ReleaseOfStaleJobIsNoop(t *testing.T) {
	e := NewExclusive()
	stale := uuid.New()
	current := uuid.New()

	require.NoError(t, e.Acquire(current, "alice", func() {}))
	e.Release(stale)

	slot, ok := e.Active()
	require.True(t, ok)
	assert.Equal(t, current, slot.JobID)
}

func TestExclusive_CancelByOwner(t *testing.T) {
	e := NewExclusive()
	id := uuid.New()
	cancelled := false

	require.NoError(t, e.Acquire(id, "alice", func() { cancelled = true }))

	var heldDuringCallback bool
	got, err := e.Cancel("alice", func(jobID uuid.UUID) {
		assert.Equal(t, id, jobID)
		heldDuringCallback = e.slot != nil && e.slot.JobID == jobID
	})
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.True(t, cancelled)
	assert.True(t, heldDuringCallback, "callback runs before the slot is freed")

	_, ok := e.Active()
	assert.False(t, ok, "slot is cleared immediately")

	// The cancelled job's own deferred release must not disturb a new holder.
	next := uuid.New()
	require.NoError(t, e.Acquire(next, "bob", func() {}))
	e.Release(id)
	slot, ok := e.Active()
	require.True(t, ok)
	assert.Equal(t, next, slot.JobID)
}

func TestExclusive_CancelByOtherUser(t *testing.T) {
	e := NewExclusive()
	cancelled := false
	require.NoError(t, e.Acquire(uuid.New(), "alice", func() { cancelled = true }))

	_, err := e.Cancel("mallory", nil)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.False(t, cancelled)

	_, ok := e.Active()
	assert.True(t, ok)
}

func TestExclusive_CancelWhenIdle(t *testing.T) {
	_, err := NewExclusive().Cancel("alice", nil)
	assert.ErrorIs(t, err, ErrNoActiveJob)
}
