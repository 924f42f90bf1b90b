package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chainops/launchgate/internal/domain"
)

// writeReport renders one run under outDir/decisions/YYYY-MM-DD/: a human
// report.md, a machine summary.json and an artifacts.jsonl with one line per
// pillar artifact that was produced. Reruns on the same day overwrite.
func writeReport(outDir string, asOf time.Time, res *Result) (string, error) {
	dir := filepath.Join(outDir, "decisions", asOf.UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	summary, err := json.MarshalIndent(res.Recommendation, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.json"), summary, 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}

	if err := writeArtifactLines(filepath.Join(dir, "artifacts.jsonl"), res); err != nil {
		return "", err
	}

	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte(renderMarkdown(res)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return dir, nil
}

type artifactLine struct {
	Kind     string      `json:"kind"`
	Artifact interface{} `json:"artifact"`
}

func writeArtifactLines(path string, res *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifacts file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if res.Risk != nil {
		if err := enc.Encode(artifactLine{Kind: domain.PillarRisk, Artifact: res.Risk}); err != nil {
			return fmt.Errorf("encode risk artifact: %w", err)
		}
	}
	if res.Forecast != nil {
		if err := enc.Encode(artifactLine{Kind: domain.PillarGas, Artifact: res.Forecast}); err != nil {
			return fmt.Errorf("encode forecast artifact: %w", err)
		}
	}
	if res.Behavior != nil {
		if err := enc.Encode(artifactLine{Kind: domain.PillarBehavior, Artifact: res.Behavior}); err != nil {
			return fmt.Errorf("encode behavior artifact: %w", err)
		}
	}
	return nil
}

func renderMarkdown(res *Result) string {
	rec := res.Recommendation
	var b strings.Builder

	fmt.Fprintf(&b, "# Launch Decision: %s\n\n", rec.Campaign)
	fmt.Fprintf(&b, "**Run:** %s  \n", rec.RunID)
	fmt.Fprintf(&b, "**Generated:** %s  \n", rec.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "**Action:** %s  \n", rec.Action)
	if rec.LaunchHourUTC >= 0 {
		fmt.Fprintf(&b, "**Launch hour:** %02d:00 UTC  \n", rec.LaunchHourUTC)
	} else {
		b.WriteString("**Launch hour:** none recommended  \n")
	}
	fmt.Fprintf(&b, "**Confidence:** %s\n\n", rec.Confidence)

	fmt.Fprintf(&b, "%s\n\n", rec.Summary)

	b.WriteString("## Rationale\n\n")
	for _, line := range rec.Rationale {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	b.WriteString("\n## Pillars\n\n")
	b.WriteString("| Pillar | Status | Detail |\n|---|---|---|\n")
	writeRiskRow(&b, res.Risk)
	writeForecastRow(&b, res.Forecast)
	writeBehaviorRow(&b, res.Behavior)

	if res.Forecast != nil && res.Forecast.Verdict == domain.VerdictReliable {
		w := res.Forecast.BestWindow
		fmt.Fprintf(&b, "\n## Gas Window\n\n%d-hour window %s to %s, average %.2f gwei.\n",
			w.Hours,
			w.Start.UTC().Format("2006-01-02 15:04"),
			w.End.UTC().Format("2006-01-02 15:04"),
			w.AvgPrice)
	}
	return b.String()
}

func writeRiskRow(b *strings.Builder, art *domain.RiskArtifact) {
	if art == nil {
		fmt.Fprintf(b, "| risk | unavailable | |\n")
		return
	}
	fmt.Fprintf(b, "| risk | scored | combined %.1f (internal %.1f, dependency %.1f), %d findings |\n",
		art.CombinedScore, art.InternalScore, art.DependencyScore, len(art.Findings))
}

func writeForecastRow(b *strings.Builder, art *domain.ForecastArtifact) {
	if art == nil {
		fmt.Fprintf(b, "| gas | unavailable | |\n")
		return
	}
	fmt.Fprintf(b, "| gas | %s | %s, MAPE %.1f%%, R2 %.2f |\n",
		art.Verdict, art.Backtest.Order, art.Backtest.MAPE, art.Backtest.R2)
}

func writeBehaviorRow(b *strings.Builder, art *domain.UserBehaviorArtifact) {
	if art == nil {
		fmt.Fprintf(b, "| behavior | unavailable | |\n")
		return
	}
	fmt.Fprintf(b, "| behavior | analyzed | peak %02d:00 UTC, %d wallets, %d sybil clusters |\n",
		art.PeakHourUTC, art.WalletsAnalyzed, len(art.SybilClusters))
}
