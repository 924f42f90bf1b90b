// Package hot puts an optional Redis tier in front of the file-backed
// artifact store. The file store stays the source of truth: Redis misses and
// errors fall through silently (logged at debug), and every successful file
// write is mirrored forward.
package hot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/chainops/launchgate/internal/cache"
	"github.com/chainops/launchgate/internal/domain"
)

const keyPrefix = "launchgate:artifact:"

// Config controls the Redis connection and entry lifetime.
type Config struct {
	Addr string
	DB   int
	TTL  time.Duration
}

func DefaultConfig() Config {
	return Config{Addr: "localhost:6379", DB: 0, TTL: 15 * time.Minute}
}

// Tiered implements cache.Store with a Redis front over an inner store.
type Tiered struct {
	client redis.Cmdable
	inner  cache.Store
	ttl    time.Duration
}

// NewTiered connects a Redis front tier to the given inner store.
func NewTiered(cfg Config, inner cache.Store) *Tiered {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &Tiered{client: client, inner: inner, ttl: cfg.TTL}
}

// newWithClient is the injection point for redismock.
func newWithClient(client redis.Cmdable, inner cache.Store, ttl time.Duration) *Tiered {
	return &Tiered{client: client, inner: inner, ttl: ttl}
}

var _ cache.Store = (*Tiered)(nil)

// lookup returns the raw hot-tier bytes for a key, or nil on any miss or
// Redis failure. Redis being down never degrades a cache read.
func (t *Tiered) lookup(key cache.Key) []byte {
	b, err := t.client.Get(context.Background(), keyPrefix+key.String()).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		log.Debug().Err(err).Str("key", key.String()).Msg("hot tier read failed, falling through")
		return nil
	}
	return b
}

func (t *Tiered) mirror(key cache.Key, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := t.client.Set(context.Background(), keyPrefix+key.String(), b, t.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key.String()).Msg("hot tier write failed")
	}
}

func (t *Tiered) GetRisk(key cache.Key) (*domain.RiskArtifact, bool, error) {
	if b := t.lookup(key); b != nil {
		var art domain.RiskArtifact
		if err := json.Unmarshal(b, &art); err == nil {
			return &art, true, nil
		}
	}
	art, ok, err := t.inner.GetRisk(key)
	if ok && err == nil {
		t.mirror(key, art)
	}
	return art, ok, err
}

func (t *Tiered) PutRisk(key cache.Key, art *domain.RiskArtifact) error {
	if err := t.inner.PutRisk(key, art); err != nil {
		return err
	}
	t.mirror(key, art)
	return nil
}

func (t *Tiered) GetForecast(key cache.Key) (*domain.ForecastArtifact, bool, error) {
	if b := t.lookup(key); b != nil {
		var art domain.ForecastArtifact
		if err := json.Unmarshal(b, &art); err == nil {
			return &art, true, nil
		}
	}
	art, ok, err := t.inner.GetForecast(key)
	if ok && err == nil {
		t.mirror(key, art)
	}
	return art, ok, err
}

func (t *Tiered) PutForecast(key cache.Key, art *domain.ForecastArtifact) error {
	if err := t.inner.PutForecast(key, art); err != nil {
		return err
	}
	t.mirror(key, art)
	return nil
}

func (t *Tiered) GetBehavior(key cache.Key) (*domain.UserBehaviorArtifact, bool, error) {
	if b := t.lookup(key); b != nil {
		var art domain.UserBehaviorArtifact
		if err := json.Unmarshal(b, &art); err == nil {
			return &art, true, nil
		}
	}
	art, ok, err := t.inner.GetBehavior(key)
	if ok && err == nil {
		t.mirror(key, art)
	}
	return art, ok, err
}

func (t *Tiered) PutBehavior(key cache.Key, art *domain.UserBehaviorArtifact) error {
	if err := t.inner.PutBehavior(key, art); err != nil {
		return err
	}
	t.mirror(key, art)
	return nil
}
