package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/chainops/launchgate/internal/domain"
)

// SchemaVersion tags every persisted artifact. A version mismatch on read is
// treated as a miss so stale layouts are recomputed, never half-parsed.
const SchemaVersion = "v1"

// Key is the deterministic composite identity of a cached artifact: artifact
// kind, normalized identifying parameters and the schema version tag.
// Identical parameters always produce identical keys.
type Key struct {
	Pillar  string
	ID      string
	Version string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Pillar, k.ID, k.Version)
}

// base is the filename stem shared by the payload and its metadata sidecar.
func (k Key) base() string {
	return fmt.Sprintf("%s_%s", k.Pillar, k.ID)
}

// RiskKey identifies a risk artifact. Risk is treated as slowly changing, so
// the key carries no date stamp and a hit remains valid indefinitely.
func RiskKey(address string) Key {
	return Key{
		Pillar:  domain.PillarRisk,
		ID:      domain.NormalizeAddress(address),
		Version: SchemaVersion,
	}
}

// ForecastKey identifies a gas forecast for one campaign, horizon and as-of
// date. A new as-of date produces a new key: artifacts are superseded, never
// mutated. Same-day re-runs map to the same key and overwrite.
func ForecastKey(campaign string, horizonHours int, asOf time.Time) Key {
	return Key{
		Pillar:  domain.PillarGas,
		ID:      fmt.Sprintf("%s_h%d_%s", Slug(campaign), horizonHours, asOf.UTC().Format("20060102")),
		Version: SchemaVersion,
	}
}

// BehaviorKey identifies a user behavior artifact by campaign start date.
func BehaviorKey(campaignStart time.Time) Key {
	return Key{
		Pillar:  domain.PillarBehavior,
		ID:      campaignStart.UTC().Format("20060102"),
		Version: SchemaVersion,
	}
}

// Slug lower-cases a campaign name and maps anything unsafe for a filename
// to a hyphen.
func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
