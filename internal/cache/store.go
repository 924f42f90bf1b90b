// Package cache persists pillar artifacts as tabular CSV payloads with a
// small JSON metadata sidecar, keyed by normalized analysis parameters.
// Lookups never mutate; writes are idempotent per key and atomic (temp file
// plus rename), which is the only concurrency protection the single-writer
// batch model needs.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/chainops/launchgate/internal/domain"
)

// Store is the artifact cache contract. A (nil, false, nil) return is a
// clean miss. A non-nil error is always a *domain.CacheUnavailableError:
// callers must treat it as a miss, recompute, and disclose the degradation.
type Store interface {
	GetRisk(key Key) (*domain.RiskArtifact, bool, error)
	PutRisk(key Key, art *domain.RiskArtifact) error
	GetForecast(key Key) (*domain.ForecastArtifact, bool, error)
	PutForecast(key Key, art *domain.ForecastArtifact) error
	GetBehavior(key Key) (*domain.UserBehaviorArtifact, bool, error)
	PutBehavior(key Key, art *domain.UserBehaviorArtifact) error
}

// FileStore lays artifacts out under root as
// {pillar}/{pillar}_{identifier}.csv with an adjacent
// {pillar}_{identifier}.meta.json sidecar.
type FileStore struct {
	root string
}

// NewFileStore creates the per-pillar subdirectories under root.
func NewFileStore(root string) (*FileStore, error) {
	for _, pillar := range []string{domain.PillarRisk, domain.PillarGas, domain.PillarBehavior} {
		if err := os.MkdirAll(filepath.Join(root, pillar), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir %s: %w", pillar, err)
		}
	}
	return &FileStore{root: root}, nil
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) payloadPath(k Key) string {
	return filepath.Join(s.root, k.Pillar, k.base()+".csv")
}

func (s *FileStore) metaPath(k Key) string {
	return filepath.Join(s.root, k.Pillar, k.base()+".meta.json")
}

// readMeta loads and version-checks the sidecar. A missing sidecar is a
// clean miss; a version mismatch is a stale layout and also a miss, so old
// artifacts are recomputed rather than half-parsed.
func (s *FileStore) readMeta(k Key, out interface{}) (bool, error) {
	b, err := os.ReadFile(s.metaPath(k))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &domain.CacheUnavailableError{Op: "get", Key: k.String(), Err: err}
	}
	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(b, &probe); err != nil {
		return false, &domain.CacheUnavailableError{Op: "get", Key: k.String(), Err: err}
	}
	if probe.Version != k.Version {
		log.Debug().Str("key", k.String()).Str("found", probe.Version).Msg("cache schema version mismatch, treating as miss")
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, &domain.CacheUnavailableError{Op: "get", Key: k.String(), Err: err}
	}
	return true, nil
}

// writeAtomic replaces path with data via a temp file in the same directory
// so a concurrent reader process never observes a partial write.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// put writes payload and sidecar; the sidecar lands last so a reader that
// sees valid metadata can rely on the payload being complete.
func (s *FileStore) put(k Key, payload []byte, meta interface{}) error {
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return &domain.CacheUnavailableError{Op: "put", Key: k.String(), Err: err}
	}
	if err := writeAtomic(s.payloadPath(k), payload); err != nil {
		return &domain.CacheUnavailableError{Op: "put", Key: k.String(), Err: err}
	}
	if err := writeAtomic(s.metaPath(k), metaBytes); err != nil {
		return &domain.CacheUnavailableError{Op: "put", Key: k.String(), Err: err}
	}
	log.Debug().Str("key", k.String()).Str("file", s.payloadPath(k)).Msg("artifact cached")
	return nil
}

func (s *FileStore) readPayload(k Key) ([]byte, error) {
	b, err := os.ReadFile(s.payloadPath(k))
	if err != nil {
		return nil, &domain.CacheUnavailableError{Op: "get", Key: k.String(), Err: err}
	}
	return b, nil
}
