package dataprocessing

import (
	"strings"

	"grainbids/pkg/contracts/domain"
)

// Router classifies normalized rows against an ordered list of processor
// rules. Rules are evaluated in configuration order and the first match
// wins, so reordering the rule list is a behavior change; tests pin it.
// Routing never fails: a row matching no rule is simply unrouted.
type Router struct {
	rules        []domain.ProcessorRule
	dropUnrouted bool
}

// NewRouter creates a router over an ordered rule list. When dropUnrouted
// is set, rows matching no rule are omitted from the output instead of
// passing through unrouted.
func NewRouter(rules []domain.ProcessorRule, dropUnrouted bool) *Router {
	return &Router{rules: rules, dropUnrouted: dropUnrouted}
}

// Match returns the first rule matching the row, or false when none does.
func (r *Router) Match(row domain.BidRow) (domain.ProcessorRule, bool) {
	for _, rule := range r.rules {
		if ruleMatches(rule, row) {
			return rule, true
		}
	}
	return domain.ProcessorRule{}, false
}

// Route tags every row with its matched processor. Unmatched rows keep an
// empty MatchedProcessor and are retained unless the router drops them.
func (r *Router) Route(rows []domain.BidRow) []domain.RoutedRow {
	routed := make([]domain.RoutedRow, 0, len(rows))
	for _, row := range rows {
		rule, ok := r.Match(row)
		if !ok && r.dropUnrouted {
			continue
		}
		routed = append(routed, domain.RoutedRow{BidRow: row, MatchedProcessor: rule.Name})
	}
	return routed
}

// ruleMatches applies one rule: any pattern must appear in the row's
// location (or source name when the rule opts in), case-insensitively,
// AND the commodity filter must agree when the rule sets one.
func ruleMatches(rule domain.ProcessorRule, row domain.BidRow) bool {
	if rule.Commodity != "" && rule.Commodity != row.Commodity {
		return false
	}
	location := strings.ToLower(row.Location)
	source := strings.ToLower(row.SourceName)
	for _, pattern := range rule.Patterns {
		p := strings.ToLower(strings.TrimSpace(pattern))
		if p == "" {
			continue
		}
		if strings.Contains(location, p) {
			return true
		}
		if rule.MatchSource && strings.Contains(source, p) {
			return true
		}
	}
	return false
}
