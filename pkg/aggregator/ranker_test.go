package aggregator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xroute/pkg/types"
)

func countTag(routes []types.Route, tag types.RouteTag) int {
	n := 0
	for _, r := range routes {
		if r.HasTag(tag) {
			n++
		}
	}
	return n
}

func sampleRoutes() []types.Route {
	routes := make([]types.Route, 0, 8)
	for i := 0; i < 8; i++ {
		routes = append(routes, makeRoute(
			fmt.Sprintf("r%d", i),
			types.ProviderLiFi,
			float64(2950+(i*7)%40),
			60+(i*97)%900,
			float64((i*13)%9)/2,
		))
	}
	return routes
}

func TestScore(t *testing.T) {
	route := makeRoute("r", types.ProviderLiFi, 3000, 60, 2)

	assert.InDelta(t, 1500+10*(1-60.0/3600)+5*(1-2.0/50), Score(route, types.ObjectiveOutput), 1e-9)
	assert.InDelta(t, 900+15*(1-60.0/3600)+3*(1-2.0/50), Score(route, types.ObjectiveSpeed), 1e-9)
	assert.InDelta(t, 900+5*(1-60.0/3600)+15*(1-2.0/50), Score(route, types.ObjectiveFee), 1e-9)
	assert.Equal(t, Score(route, types.ObjectiveOutput), Score(route, "unknown"))

	slow := makeRoute("slow", types.ProviderLiFi, 0, 7200, 80)
	assert.Zero(t, Score(slow, types.ObjectiveOutput))
}

func TestRankTagInvariants(t *testing.T) {
	for _, objective := range []types.Objective{types.ObjectiveOutput, types.ObjectiveSpeed, types.ObjectiveFee} {
		ranked := Rank(sampleRoutes(), objective)
		require.Len(t, ranked, 8)

		assert.Equal(t, 1, countTag(ranked, types.TagBestReturn))
		assert.LessOrEqual(t, countTag(ranked, types.TagFastest), 1)
		assert.LessOrEqual(t, countTag(ranked, types.TagCheapest), 1)
		assert.LessOrEqual(t, countTag(ranked, types.TagRecommended), 1)

		for _, r := range ranked {
			if r.HasTag(types.TagBestReturn) {
				assert.False(t, r.HasTag(types.TagFastest))
				assert.False(t, r.HasTag(types.TagCheapest))
				assert.False(t, r.HasTag(types.TagRecommended))
			}
		}

		for i := 1; i < len(ranked); i++ {
			assert.GreaterOrEqual(t, Score(ranked[i-1], objective), Score(ranked[i], objective))
		}
	}
}

func TestRankIsIdempotent(t *testing.T) {
	input := sampleRoutes()

	first := Rank(input, types.ObjectiveSpeed)
	second := Rank(input, types.ObjectiveSpeed)
	assert.Equal(t, first, second)

	again := Rank(first, types.ObjectiveSpeed)
	assert.Equal(t, first, again)

	// the caller's routes keep their own tags
	assert.Equal(t, []types.RouteTag{types.TagRecommended}, input[0].Tags)
}

func TestRankRecommendsBetterComposite(t *testing.T) {
	best := makeRoute("best", types.ProviderLiFi, 1000, 3600, 50)
	balanced := makeRoute("balanced", types.ProviderSocket, 990, 0, 0)

	ranked := Rank([]types.Route{best, balanced}, types.ObjectiveOutput)
	require.Len(t, ranked, 2)

	assert.Equal(t, "balanced", ranked[0].ID)
	assert.ElementsMatch(t, []types.RouteTag{types.TagFastest, types.TagCheapest, types.TagRecommended}, ranked[0].Tags)
	assert.Equal(t, []types.RouteTag{types.TagBestReturn}, ranked[1].Tags)
}

func TestRankSingleRoute(t *testing.T) {
	ranked := Rank([]types.Route{makeRoute("only", types.ProviderLiFi, 10, 60, 1)}, types.ObjectiveFee)
	require.Len(t, ranked, 1)
	assert.Equal(t, []types.RouteTag{types.TagBestReturn}, ranked[0].Tags)
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil, types.ObjectiveOutput))
}

func TestRankSecondaryTagsSkipBestReturn(t *testing.T) {
	routes := []types.Route{
		makeRoute("best", types.ProviderLiFi, 3000, 30, 0.1),
		makeRoute("slow", types.ProviderSocket, 2990, 600, 5),
		makeRoute("quick", types.ProviderOneClick, 2980, 120, 3),
		makeRoute("quick-cheap", types.ProviderSocket, 2970, 120, 1),
	}
	byID := map[string]types.Route{}
	for _, r := range Rank(routes, types.ObjectiveOutput) {
		byID[r.ID] = r
	}

	// the best-return route is fastest and cheapest overall but keeps one tag
	assert.Equal(t, []types.RouteTag{types.TagBestReturn}, byID["best"].Tags)
	// equal times keep the first route encountered
	assert.Equal(t, []types.RouteTag{types.TagFastest}, byID["quick"].Tags)
	assert.Equal(t, []types.RouteTag{types.TagCheapest}, byID["quick-cheap"].Tags)
	assert.Empty(t, byID["slow"].Tags)
}

func TestRankOneOtherRouteTakesBothTags(t *testing.T) {
	ranked := Rank([]types.Route{
		makeRoute("a", types.ProviderLiFi, 3000, 60, 2),
		makeRoute("b", types.ProviderSocket, 2995, 600, 0.5),
	}, types.ObjectiveOutput)

	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].ID)
	assert.Equal(t, []types.RouteTag{types.TagBestReturn}, ranked[0].Tags)
	assert.Equal(t, []types.RouteTag{types.TagFastest, types.TagCheapest}, ranked[1].Tags)
}
