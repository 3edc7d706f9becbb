package jobs

import (
	"sync"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// broadcaster fans job snapshots out to watchers. Each watcher holds only the
// latest snapshot, so a slow reader skips intermediate states but never
// blocks the reporter.
type broadcaster struct {
	mu       sync.Mutex
	nextID   uint64
	watchers map[uuid.UUID]map[uint64]chan models.Job
}

func newBroadcaster() *broadcaster {
	return &broadcaster{watchers: make(map[uuid.UUID]map[uint64]chan models.Job)}
}

// subscribe registers a watcher seeded with snap and must be called with b.mu
// held. When snap is terminal the channel is closed right after the seed and
// no registration is kept.
func (b *broadcaster) subscribe(snap models.Job) (<-chan models.Job, func()) {
	ch := make(chan models.Job, 1)
	ch <- snap
	if snap.Status.IsTerminal() {
		close(ch)
		return ch, func() {}
	}

	b.nextID++
	id := b.nextID
	set, ok := b.watchers[snap.ID]
	if !ok {
		set = make(map[uint64]chan models.Job)
		b.watchers[snap.ID] = set
	}
	set[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.remove(snap.ID, id)
		})
	}
}

// remove must be called with b.mu held.
func (b *broadcaster) remove(jobID uuid.UUID, id uint64) {
	set, ok := b.watchers[jobID]
	if !ok {
		return
	}
	if ch, ok := set[id]; ok {
		delete(set, id)
		close(ch)
	}
	if len(set) == 0 {
		delete(b.watchers, jobID)
	}
}

// publish replaces each watcher's pending snapshot with snap. Terminal
// snapshots close every watcher of the job.
func (b *broadcaster) publish(snap models.Job) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.watchers[snap.ID]
	for id, ch := range set {
		select {
		case <-ch:
		default:
		}
		ch <- snap.Clone()
		if snap.Status.IsTerminal() {
			delete(set, id)
			close(ch)
		}
	}
	if len(set) == 0 {
		delete(b.watchers, snap.ID)
	}
}

// watching returns the number of live watchers for jobID.
func (b *broadcaster) watching(jobID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watchers[jobID])
}
