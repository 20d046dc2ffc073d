package aggregator

import (
	"math"
	"sort"

	"xroute/pkg/types"
)

// Weights scale the three composite score components
type Weights struct {
	Output float64
	Speed  float64
	Fee    float64
}

var objectiveWeights = map[types.Objective]Weights{
	types.ObjectiveOutput: {Output: 0.5, Speed: 10, Fee: 5},
	types.ObjectiveSpeed:  {Output: 0.3, Speed: 15, Fee: 3},
	types.ObjectiveFee:    {Output: 0.3, Speed: 5, Fee: 15},
}

const (
	// speedHorizon is the estimated time, in seconds, that scores zero on speed
	speedHorizon = 3600
	// feeHorizon is the fee plus gas, in USD, that scores zero on cost
	feeHorizon = 50
)

// WeightsFor returns the weights of an objective, defaulting to output
func WeightsFor(objective types.Objective) Weights {
	if w, ok := objectiveWeights[objective]; ok {
		return w
	}
	return objectiveWeights[types.ObjectiveOutput]
}

// Score computes the composite score of a route under an objective.
// Output value is left unnormalized so it dominates at scale.
func Score(route types.Route, objective types.Objective) float64 {
	w := WeightsFor(objective)

	outputScore := route.DstAmountUSD
	speedScore := math.Max(0, 1-float64(route.EstimatedTime)/speedHorizon)
	feeScore := math.Max(0, 1-route.TotalCostUSD()/feeHorizon)

	return outputScore*w.Output + speedScore*w.Speed + feeScore*w.Fee
}

// Rank tags a route set and orders it by descending composite score.
// Input routes are copied, existing tags are discarded and ties keep
// the input order, so ranking the same input twice gives the same result.
func Rank(routes []types.Route, objective types.Objective) []types.Route {
	ranked := make([]types.Route, len(routes))
	for i, r := range routes {
		r.Tags = []types.RouteTag{}
		ranked[i] = r
	}
	if len(ranked) == 0 {
		return ranked
	}

	best := 0
	for i := 1; i < len(ranked); i++ {
		if ranked[i].DstAmountUSD > ranked[best].DstAmountUSD {
			best = i
		}
	}
	ranked[best].Tags = append(ranked[best].Tags, types.TagBestReturn)

	// fastest and cheapest are picked among the remaining routes, so they
	// never land on the best-return route and may share one route even when
	// the best-return route is faster or cheaper. Ties keep the first route.
	fastest, cheapest := -1, -1
	for i := range ranked {
		if i == best {
			continue
		}
		if fastest < 0 || ranked[i].EstimatedTime < ranked[fastest].EstimatedTime {
			fastest = i
		}
		if cheapest < 0 || ranked[i].TotalCostUSD() < ranked[cheapest].TotalCostUSD() {
			cheapest = i
		}
	}
	if fastest >= 0 {
		ranked[fastest].Tags = append(ranked[fastest].Tags, types.TagFastest)
	}
	if cheapest >= 0 {
		ranked[cheapest].Tags = append(ranked[cheapest].Tags, types.TagCheapest)
	}

	scores := make([]float64, len(ranked))
	order := make([]int, len(ranked))
	for i := range ranked {
		scores[i] = Score(ranked[i], objective)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if top := order[0]; top != best {
		ranked[top].Tags = append(ranked[top].Tags, types.TagRecommended)
	}

	out := make([]types.Route, len(order))
	for i, idx := range order {
		out[i] = ranked[idx]
	}
	return out
}
