package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grainbids/pkg/contracts/domain"
)

func bidRow(source, location string, commodity domain.Commodity) domain.BidRow {
	return domain.BidRow{
		SourceName: source,
		Location:   location,
		Commodity:  commodity,
		Timestamp:  testNow,
	}
}

func TestRouter_FirstMatchWins(t *testing.T) {
	// Both rules match the row; configuration order decides.
	rules := []domain.ProcessorRule{
		{Name: "cargill-east", Patterns: []string{"east"}},
		{Name: "adm-east", Patterns: []string{"east elevator"}},
	}
	router := NewRouter(rules, false)

	rule, ok := router.Match(bidRow("coop", "East Elevator", domain.CommodityCorn))
	require.True(t, ok)
	assert.Equal(t, "cargill-east", rule.Name)

	// Reversed order flips the winner.
	reversed := NewRouter([]domain.ProcessorRule{rules[1], rules[0]}, false)
	rule, ok = reversed.Match(bidRow("coop", "East Elevator", domain.CommodityCorn))
	require.True(t, ok)
	assert.Equal(t, "adm-east", rule.Name)
}

func TestRouter_CommodityFilter(t *testing.T) {
	rules := []domain.ProcessorRule{
		{Name: "corn-only", Patterns: []string{"elevator"}, Commodity: domain.CommodityCorn},
		{Name: "any", Patterns: []string{"elevator"}},
	}
	router := NewRouter(rules, false)

	rule, ok := router.Match(bidRow("coop", "East Elevator", domain.CommodityCorn))
	require.True(t, ok)
	assert.Equal(t, "corn-only", rule.Name)

	rule, ok = router.Match(bidRow("coop", "East Elevator", domain.CommoditySoybeans))
	require.True(t, ok)
	assert.Equal(t, "any", rule.Name)
}

func TestRouter_MatchSource(t *testing.T) {
	rules := []domain.ProcessorRule{
		{Name: "by-source", Patterns: []string{"prairie"}, MatchSource: true},
		{Name: "location-only", Patterns: []string{"prairie"}},
	}

	row := bidRow("Prairie Coop", "East Elevator", domain.CommodityCorn)

	rule, ok := NewRouter(rules, false).Match(row)
	require.True(t, ok)
	assert.Equal(t, "by-source", rule.Name)

	// Without MatchSource the same pattern misses a location-less hit.
	_, ok = NewRouter(rules[1:], false).Match(row)
	assert.False(t, ok)
}

func TestRouter_CaseInsensitive(t *testing.T) {
	router := NewRouter([]domain.ProcessorRule{
		{Name: "r", Patterns: []string{"EAST"}},
	}, false)
	_, ok := router.Match(bidRow("coop", "east elevator", domain.CommodityCorn))
	assert.True(t, ok)
}

func TestRouter_Route_UnmatchedKeptByDefault(t *testing.T) {
	router := NewRouter([]domain.ProcessorRule{
		{Name: "east", Patterns: []string{"east"}},
	}, false)

	rows := []domain.BidRow{
		bidRow("coop", "East Elevator", domain.CommodityCorn),
		bidRow("coop", "West Elevator", domain.CommodityCorn),
	}
	routed := router.Route(rows)
	require.Len(t, routed, 2)
	assert.Equal(t, "east", routed[0].MatchedProcessor)
	assert.Equal(t, "", routed[1].MatchedProcessor)
}

func TestRouter_Route_DropUnrouted(t *testing.T) {
	router := NewRouter([]domain.ProcessorRule{
		{Name: "east", Patterns: []string{"east"}},
	}, true)

	rows := []domain.BidRow{
		bidRow("coop", "East Elevator", domain.CommodityCorn),
		bidRow("coop", "West Elevator", domain.CommodityCorn),
	}
	routed := router.Route(rows)
	require.Len(t, routed, 1)
	assert.Equal(t, "East Elevator", routed[0].Location)
}

func TestRouter_EmptyPatternIgnored(t *testing.T) {
	router := NewRouter([]domain.ProcessorRule{
		{Name: "r", Patterns: []string{"  ", "west"}},
	}, false)
	// The blank pattern must not match everything.
	_, ok := router.Match(bidRow("coop", "East Elevator", domain.CommodityCorn))
	assert.False(t, ok)
	_, ok = router.Match(bidRow("coop", "West Elevator", domain.CommodityCorn))
	assert.True(t, ok)
}
