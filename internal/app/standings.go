package app

import (
	"sync"
	"time"

	"house-points-service/internal/domain"
)

// Broadcaster fans out standings snapshots to in-process subscribers
// (websocket connections). It is a push convenience layer only; the store
// remains the source of truth for totals.
type Broadcaster struct {
	now         func() time.Time
	mu          sync.Mutex
	subscribers map[chan domain.Standings]struct{}
}

func NewBroadcaster() *Broadcaster {
	return newBroadcasterWithClock(time.Now)
}

// newBroadcasterWithClock allows deterministic timestamps in tests.
func newBroadcasterWithClock(now func() time.Time) *Broadcaster {
	return &Broadcaster{
		now:         now,
		subscribers: make(map[chan domain.Standings]struct{}),
	}
}

// Subscribe returns a channel receiving standings updates. The caller must
// invoke the returned cancel function to avoid leaks.
func (b *Broadcaster) Subscribe() (<-chan domain.Standings, func()) {
	ch := make(chan domain.Standings, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish pushes a snapshot to every subscriber, dropping the stale update
// when a slow client's buffer is full so broadcast never blocks.
func (b *Broadcaster) Publish(houses []domain.HouseStanding) {
	snapshot := domain.Standings{Houses: houses, UpdatedAt: b.now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}
