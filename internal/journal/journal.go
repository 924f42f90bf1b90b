// Package journal persists one audit row per decision run. The journal is
// optional infrastructure: unavailability is logged and never fails a run.
package journal

import (
	"context"
	"time"

	"github.com/chainops/launchgate/internal/domain"
)

// Entry is one recorded decision run.
type Entry struct {
	ID            int64     `db:"id"`
	RunID         string    `db:"run_id"`
	Campaign      string    `db:"campaign"`
	Contract      string    `db:"contract"`
	Action        string    `db:"action"`
	LaunchHourUTC int       `db:"launch_hour_utc"`
	Verdict       string    `db:"verdict"`
	RiskScore     float64   `db:"risk_score"`
	Rationale     []string  `db:"-"`
	CreatedAt     time.Time `db:"created_at"`
}

// FromRecommendation flattens a run's outputs into a journal entry.
func FromRecommendation(rec domain.Recommendation, contract string, forecast *domain.ForecastArtifact, risk *domain.RiskArtifact) Entry {
	e := Entry{
		RunID:         rec.RunID,
		Campaign:      rec.Campaign,
		Contract:      contract,
		Action:        string(rec.Action),
		LaunchHourUTC: rec.LaunchHourUTC,
		Rationale:     rec.Rationale,
	}
	if forecast != nil {
		e.Verdict = string(forecast.Verdict)
	}
	if risk != nil {
		e.RiskScore = risk.CombinedScore
	}
	return e
}

// Repo records and lists decision runs.
type Repo interface {
	Record(ctx context.Context, e Entry) error
	Latest(ctx context.Context, n int) ([]Entry, error)
}
