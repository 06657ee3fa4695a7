package query

import (
	"strconv"
	"strings"

	"github.com/openrecon/scanview/pkg/models"
)

// Rule operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpInRange     = "in_range"
	OpRegex       = "regex"
	OpIsEmpty     = "is_empty"
	OpIsNotEmpty  = "is_not_empty"
)

// Logic is the combination mode of a rule group.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// Rule is one declarative filter condition.
type Rule struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
	Enabled  bool   `json:"enabled"`
}

// RuleGroup combines rules under one logic mode.
type RuleGroup struct {
	Logic Logic  `json:"logic"`
	Rules []Rule `json:"rules"`
}

// ApplyFilters returns the hosts matching the rule group. An empty group, or
// one whose rules are all disabled, passes the input through unchanged. The
// input slice is never mutated.
func ApplyFilters(hosts []*models.Host, group RuleGroup) []*models.Host {
	enabled := 0
	for _, r := range group.Rules {
		if r.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return hosts
	}

	out := make([]*models.Host, 0, len(hosts))
	for _, h := range hosts {
		if matchGroup(h, group) {
			out = append(out, h)
		}
	}
	return out
}

// matchGroup evaluates the group against one host. Disabled rules contribute
// true regardless of the logic mode.
func matchGroup(h *models.Host, group RuleGroup) bool {
	if group.Logic == LogicOr {
		for _, r := range group.Rules {
			if !r.Enabled || matchRule(h, r) {
				return true
			}
		}
		return false
	}
	for _, r := range group.Rules {
		if r.Enabled && !matchRule(h, r) {
			return false
		}
	}
	return true
}

// matchRule evaluates one rule. Bad input never propagates: an unparseable
// number or an invalid regex makes the rule match nothing.
func matchRule(h *models.Host, r Rule) bool {
	field := resolveField(h, r.Field)
	lowField := strings.ToLower(field)
	lowValue := strings.ToLower(r.Value)

	switch r.Operator {
	case OpEquals:
		return lowField == lowValue
	case OpNotEquals:
		return lowField != lowValue
	case OpContains:
		return strings.Contains(lowField, lowValue)
	case OpNotContains:
		return !strings.Contains(lowField, lowValue)
	case OpStartsWith:
		return strings.HasPrefix(lowField, lowValue)
	case OpEndsWith:
		return strings.HasSuffix(lowField, lowValue)
	case OpGreaterThan:
		fv, fok := toNumber(field)
		rv, rok := toNumber(r.Value)
		return fok && rok && fv > rv
	case OpLessThan:
		fv, fok := toNumber(field)
		rv, rok := toNumber(r.Value)
		return fok && rok && fv < rv
	case OpInRange:
		lo, hi, ok := parseRange(r.Value)
		if !ok {
			return false
		}
		fv, fok := toNumber(field)
		return fok && fv >= lo && fv <= hi
	case OpRegex:
		return matchRegex(field, r.Value)
	case OpIsEmpty:
		return field == "" || field == "0"
	case OpIsNotEmpty:
		return field != "" && field != "0"
	}
	return false
}

func toNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

// parseRange parses an inclusive "min-max" range expression.
func parseRange(s string) (lo, hi float64, ok bool) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, lok := toNumber(parts[0])
	hi, hok := toNumber(parts[1])
	return lo, hi, lok && hok
}
