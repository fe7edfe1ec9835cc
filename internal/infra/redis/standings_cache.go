package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"house-points-service/internal/domain"
)

const standingsKey = "houses:standings"

// StandingsSource loads ranked standings from the backing store.
type StandingsSource interface {
	RankedStandings(ctx context.Context) ([]domain.HouseStanding, error)
}

// StandingsCache keeps the ranked house list in Redis and falls back to
// the store on a miss. Writers call Invalidate after changing totals; the
// TTL bounds staleness if an invalidation is lost. Singleflight collapses
// concurrent misses into one store query.
type StandingsCache struct {
	client *redis.Client
	source StandingsSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewStandingsCache(client *redis.Client, source StandingsSource, ttl time.Duration) *StandingsCache {
	return &StandingsCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *StandingsCache) Standings(ctx context.Context) ([]domain.HouseStanding, error) {
	if standings, ok := c.cached(ctx); ok {
		return standings, nil
	}

	result, err, _ := c.sf.Do(standingsKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if standings, ok := c.cached(ctx); ok {
			return standings, nil
		}

		standings, err := c.source.RankedStandings(ctx)
		if err != nil {
			return nil, err
		}

		if payload, err := json.Marshal(standings); err == nil {
			// best-effort fill
			_ = c.client.Set(ctx, standingsKey, payload, c.ttlWithJitter()).Err()
		}
		return standings, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.HouseStanding), nil
}

func (c *StandingsCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, standingsKey).Err()
}

func (c *StandingsCache) cached(ctx context.Context) ([]domain.HouseStanding, bool) {
	raw, err := c.client.Get(ctx, standingsKey).Bytes()
	if err != nil {
		return nil, false
	}
	var standings []domain.HouseStanding
	if err := json.Unmarshal(raw, &standings); err != nil {
		return nil, false
	}
	return standings, true
}

func (c *StandingsCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
