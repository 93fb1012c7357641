package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestExecutedStepJSONRoundtrip(t *testing.T) {
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	passed := false
	min := 80.0
	step := ExecutedStep{
		Base:       Base{ID: "st-1", CreatedAt: started, UpdatedAt: started},
		ProcessID:  "pr-1",
		StepNumber: 2,
		Name:       "Cell count",
		Type:       StepCellCounting,
		Critical:   true,
		CCARules:   []CCARule{{Parameter: ParamViabilityPercent, Min: &min, Severity: DeviationCritical}},
		Status:     StepFailed,
		StartedAt:  &started,
		Parameters: map[string]float64{ParamViabilityPercent: 75},
		CCAPassed:  &passed,
		CCAResult: &CCAResult{
			Passed:  false,
			Message: "viability_percent 75 below minimum 80",
			Checks:  []CCACheck{{Parameter: ParamViabilityPercent, Recorded: 75, Minimum: 80, Passed: false}},
		},
	}

	data, err := json.Marshal(step)
	if err != nil {
		t.Fatalf("marshal step: %v", err)
	}
	var decoded ExecutedStep
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal step: %v", err)
	}
	if decoded.Status != StepFailed || decoded.CCAPassed == nil || *decoded.CCAPassed {
		t.Fatalf("cca verdict lost in roundtrip: %+v", decoded)
	}
	if len(decoded.CCARules) != 1 || decoded.CCARules[0].Min == nil || *decoded.CCARules[0].Min != 80 {
		t.Fatalf("cca rules lost in roundtrip: %+v", decoded.CCARules)
	}
	if decoded.Parameters[ParamViabilityPercent] != 75 {
		t.Fatalf("parameters lost in roundtrip: %+v", decoded.Parameters)
	}
}

func TestContainerTerminal(t *testing.T) {
	cases := []struct {
		status   ContainerStatus
		terminal bool
	}{
		{ContainerActive, false},
		{ContainerFrozen, false},
		{ContainerBlocked, false},
		{ContainerThawed, true},
		{ContainerDisposed, true},
	}
	for _, tc := range cases {
		if got := (Container{Status: tc.status}).Terminal(); got != tc.terminal {
			t.Fatalf("status %s: terminal = %v, want %v", tc.status, got, tc.terminal)
		}
	}
}
