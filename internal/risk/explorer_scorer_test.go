package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainops/launchgate/internal/explorer"
)

type fakeFetcher struct {
	src *explorer.Source
	err error
}

func (f *fakeFetcher) ContractSource(ctx context.Context, address string) (*explorer.Source, error) {
	return f.src, f.err
}

func TestScoreVerifiedSource(t *testing.T) {
	code := `
		import "@openzeppelin/contracts/token/ERC20/IERC20.sol";
		import "@uniswap/v3-core/contracts/interfaces/IUniswapV3Pool.sol";
		import "./VaultStorage.sol";

		contract Vault {
			function sweep(address target) external {
				require(tx.origin == owner);
				(bool ok,) = target.delegatecall(msg.data);
			}
		}`
	s := NewExplorerScorer(&fakeFetcher{src: &explorer.Source{Verified: true, Code: code}})

	art, err := s.Score(context.Background(), "0xAbC123")
	require.NoError(t, err)

	assert.Equal(t, "abc123", art.Address, "address must be normalized in the artifact")
	assert.True(t, art.SourceVerified)
	// Two static findings at 5 points each.
	assert.Equal(t, 90.0, art.InternalScore)
	assert.Contains(t, art.Findings, "delegatecall usage")
	assert.Contains(t, art.Findings, "tx.origin authorization")
	// Two external namespaces, the relative import does not count.
	assert.Equal(t, 40.0, art.DependencyScore)
	assert.Contains(t, art.Findings, "external dependency: @openzeppelin")
	assert.Contains(t, art.Findings, "external dependency: @uniswap")
	assert.InDelta(t, 0.4*90+0.6*40, art.CombinedScore, 1e-9)
}

func TestScoreUnverifiedAppliesNeutralDefault(t *testing.T) {
	s := NewExplorerScorer(&fakeFetcher{src: &explorer.Source{Verified: false}})

	art, err := s.Score(context.Background(), "deadbeef")
	require.NoError(t, err)

	assert.Equal(t, NeutralInternalScore, art.InternalScore)
	assert.False(t, art.SourceVerified)
	require.NotEmpty(t, art.Findings, "the neutral default must be disclosed, never silent")
	assert.Contains(t, art.Findings[0], "source not verified")
	assert.Equal(t, 0.0, art.DependencyScore)
}

func TestScoreExplorerFailureIsNotFatal(t *testing.T) {
	s := NewExplorerScorer(&fakeFetcher{err: errors.New("connection refused")})

	art, err := s.Score(context.Background(), "deadbeef")
	require.NoError(t, err, "explorer failure must degrade, not abort")
	assert.Equal(t, NeutralInternalScore, art.InternalScore)
	require.NotEmpty(t, art.Findings)
	assert.Contains(t, art.Findings[0], "explorer unavailable")
}

func TestDependencyScoreSaturates(t *testing.T) {
	assert.Equal(t, 0.0, dependencyScore(0))
	assert.Equal(t, 60.0, dependencyScore(3))
	assert.Equal(t, 100.0, dependencyScore(5))
	assert.Equal(t, 100.0, dependencyScore(12), "more than five dependencies saturates the scale")
}

func TestAllStaticChecksFire(t *testing.T) {
	code := `delegatecall tx.origin selfdestruct block.timestamp .call{value assembly suicide`
	s := NewExplorerScorer(&fakeFetcher{src: &explorer.Source{Verified: true, Code: code}})

	art, err := s.Score(context.Background(), "ffff")
	require.NoError(t, err)
	assert.Len(t, art.Findings, len(staticChecks))
	assert.Equal(t, 100.0-findingPenalty*float64(len(staticChecks)), art.InternalScore)
}

func TestScoreIsDeterministic(t *testing.T) {
	code := `import "@chainlink/contracts/src/v0.8/interfaces/AggregatorV3Interface.sol";
		contract Feed { }`
	s := NewExplorerScorer(&fakeFetcher{src: &explorer.Source{Verified: true, Code: code}})

	a, err := s.Score(context.Background(), "0xABCD")
	require.NoError(t, err)
	b, err := s.Score(context.Background(), "0xabcd")
	require.NoError(t, err)

	assert.Equal(t, a.InternalScore, b.InternalScore)
	assert.Equal(t, a.DependencyScore, b.DependencyScore)
	assert.Equal(t, a.Findings, b.Findings)
}
