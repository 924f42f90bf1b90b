package behavior

import (
	"math"
	"sort"

	"github.com/chainops/launchgate/internal/domain"
	"github.com/chainops/launchgate/internal/warehouse"
)

// clusterSybils runs density clustering over (funding source, creation time)
// wallet features. Wallets funded by the same source within a short creation
// span land in one cluster; clusters of minPts or more are flagged as Sybil
// groups. The implementation is fully deterministic: wallets are processed
// in address order and both feature dimensions are min-max normalized before
// the euclidean distance test against eps.
func clusterSybils(features []warehouse.WalletFeature, eps float64, minPts int) []domain.SybilCluster {
	if len(features) < minPts {
		return nil
	}

	sorted := append([]warehouse.WalletFeature(nil), features...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })

	// Factorize funding sources over their sorted distinct values so the
	// mapping never depends on input order.
	distinct := map[string]bool{}
	for _, f := range sorted {
		distinct[f.FundingSource] = true
	}
	sources := make([]string, 0, len(distinct))
	for s := range distinct {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	sourceID := make(map[string]int, len(sources))
	for i, s := range sources {
		sourceID[s] = i
	}

	xs := make([]float64, len(sorted))
	ys := make([]float64, len(sorted))
	for i, f := range sorted {
		xs[i] = float64(sourceID[f.FundingSource])
		ys[i] = float64(f.CreatedAt.Unix())
	}
	normalize(xs)
	normalize(ys)

	dist := func(i, j int) float64 {
		dx, dy := xs[i]-xs[j], ys[i]-ys[j]
		return math.Sqrt(dx*dx + dy*dy)
	}
	neighbors := func(i int) []int {
		var out []int
		for j := range sorted {
			if dist(i, j) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	const (
		unvisited = 0
		noise     = -1
	)
	labels := make([]int, len(sorted)) // 0 unvisited, -1 noise, >0 cluster id
	next := 1
	for i := range sorted {
		if labels[i] != unvisited {
			continue
		}
		seed := neighbors(i)
		if len(seed) < minPts {
			labels[i] = noise
			continue
		}
		id := next
		next++
		labels[i] = id
		// Ordered frontier expansion keeps cluster membership reproducible.
		for k := 0; k < len(seed); k++ {
			j := seed[k]
			if labels[j] == noise {
				labels[j] = id
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = id
			if nb := neighbors(j); len(nb) >= minPts {
				seed = append(seed, nb...)
			}
		}
	}

	byID := map[int][]int{}
	for i, l := range labels {
		if l > 0 {
			byID[l] = append(byID[l], i)
		}
	}
	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var clusters []domain.SybilCluster
	for _, id := range ids {
		members := byID[id]
		if len(members) < minPts {
			continue
		}
		wallets := make([]string, len(members))
		for i, m := range members {
			wallets[i] = sorted[m].Address
		}
		sort.Strings(wallets)
		clusters = append(clusters, domain.SybilCluster{
			ID:            len(clusters),
			FundingSource: modalSource(sorted, members),
			Wallets:       wallets,
		})
	}
	return clusters
}

func normalize(v []float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if hi == lo {
		for i := range v {
			v[i] = 0
		}
		return
	}
	for i := range v {
		v[i] = (v[i] - lo) / (hi - lo)
	}
}

// modalSource returns the most common funding source among cluster members,
// alphabetically first on ties.
func modalSource(features []warehouse.WalletFeature, members []int) string {
	counts := map[string]int{}
	for _, m := range members {
		counts[features[m].FundingSource]++
	}
	best, bestCount := "", 0
	keys := make([]string, 0, len(counts))
	for s := range counts {
		keys = append(keys, s)
	}
	sort.Strings(keys)
	for _, s := range keys {
		if counts[s] > bestCount {
			best, bestCount = s, counts[s]
		}
	}
	return best
}
