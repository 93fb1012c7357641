package core

import (
	"fmt"
	"sort"
	"strings"

	"culturecore/pkg/domain"
)

// DefaultMinViability is the minimum viability percentage applied when a
// cell-counting rule set does not configure one.
const DefaultMinViability = 80.0

// EvaluateCCA compares recorded step parameters against the step's rule set
// and returns a structured verdict. Viability defaults to DefaultMinViability
// when the rule set does not configure a minimum; every other parameter is
// checked only when its rule defines one. The function is pure: identical
// rules and parameters always produce an identical result.
func EvaluateCCA(rules []domain.CCARule, params map[string]float64) domain.CCAResult {
	ruleIndex := make(map[string]domain.CCARule, len(rules))
	for _, rule := range rules {
		ruleIndex[rule.Parameter] = rule
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	result := domain.CCAResult{Passed: true}
	var failures []string

	for _, name := range names {
		recorded := params[name]
		rule, hasRule := ruleIndex[name]

		var min float64
		switch {
		case hasRule && rule.Min != nil:
			min = *rule.Min
		case name == domain.ParamViabilityPercent:
			min = DefaultMinViability
		default:
			// No threshold configured for this parameter.
			continue
		}

		check := domain.CCACheck{
			Parameter: name,
			Recorded:  recorded,
			Minimum:   min,
			Passed:    recorded >= min,
		}
		if check.Passed {
			check.Detail = fmt.Sprintf("%s %.2f meets minimum %.2f", name, recorded, min)
		} else {
			check.Detail = fmt.Sprintf("%s %.2f below minimum %.2f", name, recorded, min)
			failures = append(failures, check.Detail)
			result.Passed = false
		}
		result.Checks = append(result.Checks, check)
	}

	if result.Passed {
		result.Message = "all checks passed"
	} else {
		result.Message = strings.Join(failures, "; ")
	}
	return result
}
