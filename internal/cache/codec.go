package cache

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/chainops/launchgate/internal/domain"
)

// Two tabular schemas recur across pillars: long-format (metric,value,type)
// rows for scalar and categorical results, and wide-format forecast rows
// indexed by timestamp with predicted value and confidence bounds.

func encodeLong(rows [][3]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"metric", "value", "type"}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(r[:]); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func decodeLong(b []byte) ([][3]string, error) {
	r := csv.NewReader(bytes.NewReader(b))
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	rows := make([][3]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != 3 {
			return nil, fmt.Errorf("malformed row %v", rec)
		}
		rows = append(rows, [3]string{rec[0], rec[1], rec[2]})
	}
	return rows, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// --- risk ---

type riskMeta struct {
	Version        string    `json:"version"`
	Address        string    `json:"address"`
	SourceVerified bool      `json:"source_verified"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// PutRisk stores scores and findings as long-format rows. A combined score
// of exactly 0 round-trips as 0, distinguishable from "not cached".
func (s *FileStore) PutRisk(key Key, art *domain.RiskArtifact) error {
	rows := [][3]string{
		{"internal_score", formatFloat(art.InternalScore), "score"},
		{"dependency_score", formatFloat(art.DependencyScore), "score"},
		{"combined_score", formatFloat(art.CombinedScore), "score"},
	}
	for _, f := range art.Findings {
		rows = append(rows, [3]string{"finding", f, "finding"})
	}
	payload, err := encodeLong(rows)
	if err != nil {
		return &domain.CacheUnavailableError{Op: "put", Key: key.String(), Err: err}
	}
	return s.put(key, payload, riskMeta{
		Version:        key.Version,
		Address:        art.Address,
		SourceVerified: art.SourceVerified,
		GeneratedAt:    art.GeneratedAt,
	})
}

func (s *FileStore) GetRisk(key Key) (*domain.RiskArtifact, bool, error) {
	var meta riskMeta
	ok, err := s.readMeta(key, &meta)
	if err != nil || !ok {
		return nil, false, err
	}
	payload, err := s.readPayload(key)
	if err != nil {
		return nil, false, err
	}
	rows, err := decodeLong(payload)
	if err != nil {
		return nil, false, &domain.CacheUnavailableError{Op: "get", Key: key.String(), Err: err}
	}

	art := &domain.RiskArtifact{
		Address:        meta.Address,
		SourceVerified: meta.SourceVerified,
		GeneratedAt:    meta.GeneratedAt,
	}
	// Presence tracking: a score row carrying 0 is a valid stored value,
	// so absence is detected by row presence, never by a zero check.
	seen := map[string]bool{}
	for _, r := range rows {
		switch r[0] {
		case "internal_score", "dependency_score", "combined_score":
			v, perr := strconv.ParseFloat(r[1], 64)
			if perr != nil {
				return nil, false, &domain.CacheUnavailableError{Op: "get", Key: key.String(), Err: perr}
			}
			seen[r[0]] = true
			switch r[0] {
			case "internal_score":
				art.InternalScore = v
			case "dependency_score":
				art.DependencyScore = v
			case "combined_score":
				art.CombinedScore = v
			}
		case "finding":
			art.Findings = append(art.Findings, r[1])
		}
	}
	if !seen["internal_score"] || !seen["dependency_score"] || !seen["combined_score"] {
		return nil, false, &domain.CacheUnavailableError{
			Op: "get", Key: key.String(),
			Err: fmt.Errorf("payload missing score rows"),
		}
	}
	return art, true, nil
}

// --- gas forecast ---

type forecastMeta struct {
	Version       string                    `json:"version"`
	Campaign      string                    `json:"campaign"`
	HorizonHours  int                       `json:"horizon_hours"`
	AsOf          time.Time                 `json:"as_of"`
	GeneratedAt   time.Time                 `json:"generated_at"`
	Verdict       domain.ReliabilityVerdict `json:"verdict"`
	VerdictReason string                    `json:"verdict_reason,omitempty"`
	BestWindow    domain.LaunchWindow       `json:"best_window"`
	Backtest      domain.BacktestResult     `json:"backtest"`
}

// PutForecast stores the per-hour predictions as wide-format rows and the
// scalars (verdict, best window, backtest metrics) in the sidecar.
func (s *FileStore) PutForecast(key Key, art *domain.ForecastArtifact) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"timestamp", "predicted", "lower", "upper"}); err != nil {
		return &domain.CacheUnavailableError{Op: "put", Key: key.String(), Err: err}
	}
	for _, p := range art.Points {
		rec := []string{
			p.Hour.UTC().Format(time.RFC3339),
			formatFloat(p.Predicted),
			formatFloat(p.Lower),
			formatFloat(p.Upper),
		}
		if err := w.Write(rec); err != nil {
			return &domain.CacheUnavailableError{Op: "put", Key: key.String(), Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &domain.CacheUnavailableError{Op: "put", Key: key.String(), Err: err}
	}
	return s.put(key, buf.Bytes(), forecastMeta{
		Version:       key.Version,
		Campaign:      art.Campaign,
		HorizonHours:  art.HorizonHours,
		AsOf:          art.AsOf,
		GeneratedAt:   art.GeneratedAt,
		Verdict:       art.Verdict,
		VerdictReason: art.VerdictReason,
		BestWindow:    art.BestWindow,
		Backtest:      art.Backtest,
	})
}

func (s *FileStore) GetForecast(key Key) (*domain.ForecastArtifact, bool, error) {
	var meta forecastMeta
	ok, err := s.readMeta(key, &meta)
	if err != nil || !ok {
		return nil, false, err
	}
	payload, err := s.readPayload(key)
	if err != nil {
		return nil, false, err
	}
	r := csv.NewReader(bytes.NewReader(payload))
	records, err := r.ReadAll()
	if err != nil {
		return nil, false, &domain.CacheUnavailableError{Op: "get", Key: key.String(), Err: err}
	}
	if len(records) == 0 {
		return nil, false, &domain.CacheUnavailableError{
			Op: "get", Key: key.String(), Err: fmt.Errorf("empty payload"),
		}
	}

	points := make([]domain.ForecastPoint, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != 4 {
			return nil, false, &domain.CacheUnavailableError{
				Op: "get", Key: key.String(), Err: fmt.Errorf("malformed row %v", rec),
			}
		}
		ts, terr := time.Parse(time.RFC3339, rec[0])
		if terr != nil {
			return nil, false, &domain.CacheUnavailableError{Op: "get", Key: key.String(), Err: terr}
		}
		var vals [3]float64
		for i := 0; i < 3; i++ {
			v, perr := strconv.ParseFloat(rec[i+1], 64)
			if perr != nil {
				return nil, false, &domain.CacheUnavailableError{Op: "get", Key: key.String(), Err: perr}
			}
			vals[i] = v
		}
		points = append(points, domain.ForecastPoint{
			Hour: ts, Predicted: vals[0], Lower: vals[1], Upper: vals[2],
		})
	}

	return &domain.ForecastArtifact{
		Campaign:      meta.Campaign,
		HorizonHours:  meta.HorizonHours,
		AsOf:          meta.AsOf,
		GeneratedAt:   meta.GeneratedAt,
		Points:        points,
		BestWindow:    meta.BestWindow,
		Backtest:      meta.Backtest,
		Verdict:       meta.Verdict,
		VerdictReason: meta.VerdictReason,
	}, true, nil
}

// --- user behavior ---

type behaviorMeta struct {
	Version       string                `json:"version"`
	CampaignStart time.Time             `json:"campaign_start"`
	PeakHourUTC   int                   `json:"peak_hour_utc"`
	GeneratedAt   time.Time             `json:"generated_at"`
	SybilClusters []domain.SybilCluster `json:"sybil_clusters"`
}

func (s *FileStore) PutBehavior(key Key, art *domain.UserBehaviorArtifact) error {
	rows := [][3]string{
		{"peak_hour_utc", strconv.Itoa(art.PeakHourUTC), "hour"},
		{"wallets_analyzed", strconv.Itoa(art.WalletsAnalyzed), "count"},
	}
	for h, n := range art.HourlyActivity {
		rows = append(rows, [3]string{
			fmt.Sprintf("activity_h%02d", h), strconv.FormatInt(n, 10), "histogram",
		})
	}
	for _, c := range art.Cohorts {
		stem := "cohort_" + c.CohortWeek.UTC().Format("20060102")
		rows = append(rows,
			[3]string{stem + "_size", strconv.Itoa(c.Size), "cohort"},
			[3]string{stem + "_day1", formatFloat(c.Day1), "retention"},
			[3]string{stem + "_day7", formatFloat(c.Day7), "retention"},
			[3]string{stem + "_day30", formatFloat(c.Day30), "retention"},
		)
	}
	payload, err := encodeLong(rows)
	if err != nil {
		return &domain.CacheUnavailableError{Op: "put", Key: key.String(), Err: err}
	}
	return s.put(key, payload, behaviorMeta{
		Version:       key.Version,
		CampaignStart: art.CampaignStart,
		PeakHourUTC:   art.PeakHourUTC,
		GeneratedAt:   art.GeneratedAt,
		SybilClusters: art.SybilClusters,
	})
}

func (s *FileStore) GetBehavior(key Key) (*domain.UserBehaviorArtifact, bool, error) {
	var meta behaviorMeta
	ok, err := s.readMeta(key, &meta)
	if err != nil || !ok {
		return nil, false, err
	}
	payload, err := s.readPayload(key)
	if err != nil {
		return nil, false, err
	}
	rows, err := decodeLong(payload)
	if err != nil {
		return nil, false, &domain.CacheUnavailableError{Op: "get", Key: key.String(), Err: err}
	}

	art := &domain.UserBehaviorArtifact{
		CampaignStart: meta.CampaignStart,
		PeakHourUTC:   meta.PeakHourUTC,
		GeneratedAt:   meta.GeneratedAt,
		SybilClusters: meta.SybilClusters,
	}
	cohorts := map[string]*domain.CohortRetention{}
	var cohortOrder []string
	for _, r := range rows {
		switch r[2] {
		case "count":
			n, perr := strconv.Atoi(r[1])
			if perr != nil {
				return nil, false, &domain.CacheUnavailableError{Op: "get", Key: key.String(), Err: perr}
			}
			art.WalletsAnalyzed = n
		case "histogram":
			var h int
			if _, serr := fmt.Sscanf(r[0], "activity_h%02d", &h); serr != nil || h < 0 || h > 23 {
				continue
			}
			n, perr := strconv.ParseInt(r[1], 10, 64)
			if perr != nil {
				return nil, false, &domain.CacheUnavailableError{Op: "get", Key: key.String(), Err: perr}
			}
			art.HourlyActivity[h] = n
		case "cohort", "retention":
			// metric is cohort_YYYYMMDD_{size,day1,day7,day30}
			var stamp, field string
			if _, serr := fmt.Sscanf(r[0], "cohort_%8s_%s", &stamp, &field); serr != nil {
				continue
			}
			week, terr := time.Parse("20060102", stamp)
			if terr != nil {
				continue
			}
			c, exists := cohorts[stamp]
			if !exists {
				c = &domain.CohortRetention{CohortWeek: week.UTC()}
				cohorts[stamp] = c
				cohortOrder = append(cohortOrder, stamp)
			}
			switch field {
			case "size":
				n, perr := strconv.Atoi(r[1])
				if perr != nil {
					return nil, false, &domain.CacheUnavailableError{Op: "get", Key: key.String(), Err: perr}
				}
				c.Size = n
			case "day1", "day7", "day30":
				v, perr := strconv.ParseFloat(r[1], 64)
				if perr != nil {
					return nil, false, &domain.CacheUnavailableError{Op: "get", Key: key.String(), Err: perr}
				}
				switch field {
				case "day1":
					c.Day1 = v
				case "day7":
					c.Day7 = v
				case "day30":
					c.Day30 = v
				}
			}
		}
	}
	for _, stamp := range cohortOrder {
		art.Cohorts = append(art.Cohorts, *cohorts[stamp])
	}
	return art, true, nil
}
