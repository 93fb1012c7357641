package core

import (
	"reflect"
	"strings"
	"testing"

	"culturecore/pkg/domain"
)

func float64Ptr(v float64) *float64 { return &v }

func TestEvaluateCCAAppliesDefaultViabilityMinimum(t *testing.T) {
	params := map[string]float64{domain.ParamViabilityPercent: 75}

	result := EvaluateCCA(nil, params)
	if result.Passed {
		t.Fatalf("viability 75 must fail the default minimum of %v", DefaultMinViability)
	}
	if len(result.Checks) != 1 || result.Checks[0].Minimum != DefaultMinViability {
		t.Fatalf("unexpected checks: %+v", result.Checks)
	}
	if !strings.Contains(result.Message, "below minimum") {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestEvaluateCCAConfiguredRuleOverridesDefault(t *testing.T) {
	rules := []domain.CCARule{{Parameter: domain.ParamViabilityPercent, Min: float64Ptr(70)}}
	params := map[string]float64{domain.ParamViabilityPercent: 75}

	result := EvaluateCCA(rules, params)
	if !result.Passed {
		t.Fatalf("viability 75 passes a configured minimum of 70: %+v", result)
	}
	if result.Message != "all checks passed" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestEvaluateCCAIgnoresUnconfiguredParameters(t *testing.T) {
	params := map[string]float64{domain.ParamTemperatureC: 12}

	result := EvaluateCCA(nil, params)
	if !result.Passed || len(result.Checks) != 0 {
		t.Fatalf("parameters without rules must not be checked: %+v", result)
	}

	rules := []domain.CCARule{{Parameter: domain.ParamTemperatureC, Min: float64Ptr(36)}}
	result = EvaluateCCA(rules, params)
	if result.Passed || len(result.Checks) != 1 {
		t.Fatalf("configured minimum must apply: %+v", result)
	}
}

func TestEvaluateCCAIsDeterministic(t *testing.T) {
	rules := []domain.CCARule{
		{Parameter: domain.ParamTemperatureC, Min: float64Ptr(36)},
		{Parameter: domain.ParamCO2Percent, Min: float64Ptr(4)},
	}
	params := map[string]float64{
		domain.ParamViabilityPercent: 62,
		domain.ParamTemperatureC:     33,
		domain.ParamCO2Percent:       3,
	}

	first := EvaluateCCA(rules, params)
	second := EvaluateCCA(rules, params)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs must produce identical results:\n%+v\n%+v", first, second)
	}
	if first.Passed || len(first.Checks) != 3 {
		t.Fatalf("expected three failing checks, got %+v", first)
	}
	for i := 1; i < len(first.Checks); i++ {
		if first.Checks[i-1].Parameter > first.Checks[i].Parameter {
			t.Fatalf("checks must be sorted by parameter: %+v", first.Checks)
		}
	}
}
