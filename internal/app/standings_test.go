package app

import (
	"testing"
	"time"

	"house-points-service/internal/domain"
)

func TestBroadcasterDeliversSnapshots(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newBroadcasterWithClock(func() time.Time { return now })

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish([]domain.HouseStanding{{Name: domain.Gryffindor, TotalPoints: 5}})

	update := <-ch
	if update.Houses[0].TotalPoints != 5 || !update.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected snapshot %+v", update)
	}
}

func TestBroadcasterDropsStaleForSlowSubscriber(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	defer cancel()

	// Overflow the subscriber buffer; Publish must never block, and the
	// last frame must win.
	for i := 1; i <= 20; i++ {
		b.Publish([]domain.HouseStanding{{Name: domain.Slytherin, TotalPoints: i}})
	}

	var last domain.Standings
	for {
		select {
		case update := <-ch:
			last = update
			continue
		default:
		}
		break
	}
	if last.Houses[0].TotalPoints != 20 {
		t.Fatalf("expected latest frame 20, got %+v", last.Houses)
	}
}

func TestBroadcasterCancelIsIdempotent(t *testing.T) {
	b := NewBroadcaster()
	_, cancel := b.Subscribe()
	cancel()
	cancel() // second call must not panic on the closed channel

	// Publishing after cancel must not reach the removed subscriber.
	b.Publish([]domain.HouseStanding{{Name: domain.Hufflepuff, TotalPoints: 1}})
}
