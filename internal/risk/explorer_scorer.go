package risk

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainops/launchgate/internal/domain"
	"github.com/chainops/launchgate/internal/explorer"
)

// SourceFetcher is the slice of the explorer client the scorer needs.
type SourceFetcher interface {
	ContractSource(ctx context.Context, address string) (*explorer.Source, error)
}

// NeutralInternalScore applies when no verified source is available: an
// explicit, disclosed default, not an error.
const NeutralInternalScore = 50.0

// staticChecks are the source patterns that each deduct 5 points from the
// internal score. The order is fixed so findings always list in the same
// sequence for the same source.
var staticChecks = []struct {
	pattern *regexp.Regexp
	finding string
}{
	{regexp.MustCompile(`\bdelegatecall\b`), "delegatecall usage"},
	{regexp.MustCompile(`\btx\.origin\b`), "tx.origin authorization"},
	{regexp.MustCompile(`\bselfdestruct\b`), "selfdestruct present"},
	{regexp.MustCompile(`\bblock\.timestamp\b`), "timestamp-dependent logic"},
	{regexp.MustCompile(`\.call\{value|\.call\.value`), "low-level call forwarding value"},
	{regexp.MustCompile(`\bassembly\b`), "inline assembly block"},
	{regexp.MustCompile(`\bsuicide\b`), "deprecated suicide opcode"},
}

const findingPenalty = 5.0

// importPattern captures external package imports; relative imports are the
// contract's own files, not protocol dependencies.
var importPattern = regexp.MustCompile(`import\s+(?:\{[^}]*\}\s+from\s+)?["']([^"']+)["']`)

// ExplorerScorer derives a RiskArtifact from explorer-verified source.
type ExplorerScorer struct {
	fetcher SourceFetcher
}

func NewExplorerScorer(fetcher SourceFetcher) *ExplorerScorer {
	return &ExplorerScorer{fetcher: fetcher}
}

var _ Scorer = (*ExplorerScorer)(nil)

// Score is deterministic per address: same source in, same artifact out.
// Explorer failure or an unverified contract takes the neutral default path
// and discloses it as a finding; it never aborts the run.
func (s *ExplorerScorer) Score(ctx context.Context, address string) (*domain.RiskArtifact, error) {
	addr := domain.NormalizeAddress(address)

	var findings []string
	internal := NeutralInternalScore
	dependency := 0.0
	verified := false

	src, err := s.fetcher.ContractSource(ctx, addr)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("address", addr).Msg("explorer unavailable, applying neutral internal score")
		findings = append(findings, fmt.Sprintf("explorer unavailable (%v), neutral internal score %.0f/100 applied", err, NeutralInternalScore))
	case !src.Verified:
		findings = append(findings, fmt.Sprintf("source not verified, neutral internal score %.0f/100 applied", NeutralInternalScore))
	default:
		verified = true
		internal = 100.0
		for _, check := range staticChecks {
			if check.pattern.MatchString(src.Code) {
				findings = append(findings, check.finding)
				internal -= findingPenalty
			}
		}
		if internal < 0 {
			internal = 0
		}
		deps := externalDependencies(src.Code)
		dependency = dependencyScore(len(deps))
		for _, d := range deps {
			findings = append(findings, "external dependency: "+d)
		}
	}

	art := &domain.RiskArtifact{
		Address:         addr,
		InternalScore:   internal,
		DependencyScore: dependency,
		CombinedScore:   Combine(internal, dependency),
		SourceVerified:  verified,
		Findings:        findings,
		GeneratedAt:     time.Now().UTC(),
	}
	log.Info().
		Str("address", addr).
		Float64("internal", internal).
		Float64("dependency", dependency).
		Float64("combined", art.CombinedScore).
		Bool("verified", verified).
		Msg("risk scored")
	return art, nil
}

// dependencyScore maps a dependency count onto 0-100: five or more distinct
// external protocols saturate the scale.
func dependencyScore(count int) float64 {
	if count > 5 {
		count = 5
	}
	return float64(count) / 5 * 100
}

// externalDependencies extracts distinct external import namespaces from
// verified source, sorted for determinism. An import like
// "@openzeppelin/contracts/token/ERC20.sol" counts once as "@openzeppelin".
func externalDependencies(code string) []string {
	seen := map[string]bool{}
	for _, m := range importPattern.FindAllStringSubmatch(code, -1) {
		path := m[1]
		if strings.HasPrefix(path, ".") {
			continue
		}
		ns := path
		if i := strings.Index(path, "/"); i > 0 {
			ns = path[:i]
		}
		seen[ns] = true
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
