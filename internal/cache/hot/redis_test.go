package hot

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"

	"github.com/chainops/launchgate/internal/cache"
	"github.com/chainops/launchgate/internal/domain"
)

// memStore is a minimal in-memory inner store for exercising fall-through.
type memStore struct {
	risk     map[string]*domain.RiskArtifact
	getCalls int
}

func newMemStore() *memStore {
	return &memStore{risk: map[string]*domain.RiskArtifact{}}
}

func (m *memStore) GetRisk(key cache.Key) (*domain.RiskArtifact, bool, error) {
	m.getCalls++
	art, ok := m.risk[key.String()]
	return art, ok, nil
}

func (m *memStore) PutRisk(key cache.Key, art *domain.RiskArtifact) error {
	m.risk[key.String()] = art
	return nil
}

func (m *memStore) GetForecast(cache.Key) (*domain.ForecastArtifact, bool, error) {
	return nil, false, nil
}
func (m *memStore) PutForecast(cache.Key, *domain.ForecastArtifact) error { return nil }
func (m *memStore) GetBehavior(cache.Key) (*domain.UserBehaviorArtifact, bool, error) {
	return nil, false, nil
}
func (m *memStore) PutBehavior(cache.Key, *domain.UserBehaviorArtifact) error { return nil }

func TestTieredGetRisk_HotHit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	inner := newMemStore()
	tiered := newWithClient(client, inner, time.Minute)

	key := cache.RiskKey("abc123")
	want := &domain.RiskArtifact{Address: "abc123", CombinedScore: 62.5}
	payload, _ := json.Marshal(want)

	mock.ExpectGet("launchgate:artifact:" + key.String()).SetVal(string(payload))

	got, ok, err := tiered.GetRisk(key)
	if err != nil {
		t.Fatalf("GetRisk: %v", err)
	}
	if !ok {
		t.Fatal("expected hot tier hit")
	}
	if got.CombinedScore != want.CombinedScore {
		t.Errorf("CombinedScore = %v, want %v", got.CombinedScore, want.CombinedScore)
	}
	if inner.getCalls != 0 {
		t.Errorf("inner store consulted %d times on a hot hit", inner.getCalls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations: %v", err)
	}
}

func TestTieredGetRisk_MissFallsThroughAndBackfills(t *testing.T) {
	client, mock := redismock.NewClientMock()
	inner := newMemStore()
	tiered := newWithClient(client, inner, time.Minute)

	key := cache.RiskKey("abc123")
	want := &domain.RiskArtifact{Address: "abc123", CombinedScore: 30}
	inner.risk[key.String()] = want
	payload, _ := json.Marshal(want)

	redisKey := "launchgate:artifact:" + key.String()
	mock.ExpectGet(redisKey).RedisNil()
	mock.ExpectSet(redisKey, payload, time.Minute).SetVal("OK")

	got, ok, err := tiered.GetRisk(key)
	if err != nil {
		t.Fatalf("GetRisk: %v", err)
	}
	if !ok || got.CombinedScore != 30 {
		t.Fatalf("expected inner hit with score 30, got ok=%v art=%+v", ok, got)
	}
	if inner.getCalls != 1 {
		t.Errorf("inner store consulted %d times, want 1", inner.getCalls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations: %v", err)
	}
}

func TestTieredGetRisk_RedisDownIsInvisible(t *testing.T) {
	client, mock := redismock.NewClientMock()
	inner := newMemStore()
	tiered := newWithClient(client, inner, time.Minute)

	key := cache.RiskKey("abc123")
	inner.risk[key.String()] = &domain.RiskArtifact{Address: "abc123"}

	redisKey := "launchgate:artifact:" + key.String()
	mock.ExpectGet(redisKey).SetErr(errors.New("connection refused"))
	mock.Regexp().ExpectSet(redisKey, `.*`, time.Minute).SetErr(errors.New("connection refused"))

	got, ok, err := tiered.GetRisk(key)
	if err != nil {
		t.Fatalf("redis failure must not surface: %v", err)
	}
	if !ok || got == nil {
		t.Fatal("expected inner store to serve the artifact despite redis being down")
	}
}

func TestTieredPutRisk_WritesInnerFirst(t *testing.T) {
	client, mock := redismock.NewClientMock()
	inner := newMemStore()
	tiered := newWithClient(client, inner, time.Minute)

	key := cache.RiskKey("abc123")
	art := &domain.RiskArtifact{Address: "abc123", CombinedScore: 0}
	payload, _ := json.Marshal(art)

	mock.ExpectSet("launchgate:artifact:"+key.String(), payload, time.Minute).SetVal("OK")

	if err := tiered.PutRisk(key, art); err != nil {
		t.Fatalf("PutRisk: %v", err)
	}
	if _, ok := inner.risk[key.String()]; !ok {
		t.Error("inner store (source of truth) missing the artifact")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations: %v", err)
	}
}
