package core

import (
	"context"
	"fmt"

	"culturecore/pkg/domain"
)

// StepSequenceRule enforces left-to-right monotonic step execution within a
// process: no step may leave pending while an earlier step is still pending,
// and at most one step of a process may be in progress at a time.
func StepSequenceRule() domain.Rule {
	return stepSequenceRule{}
}

type stepSequenceRule struct{}

func (stepSequenceRule) Name() string { return "step_sequence" }

func (stepSequenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	touched := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityExecutedStep {
			continue
		}
		step, ok := decodeChangePayload[domain.ExecutedStep](change.After)
		if !ok {
			continue
		}
		touched[step.ProcessID] = struct{}{}
	}

	for processID := range touched {
		steps := view.ListProcessSteps(processID)
		sawPending := false
		inProgress := 0
		for _, step := range steps {
			switch step.Status {
			case domain.StepPending:
				sawPending = true
			case domain.StepInProgress:
				inProgress++
				if sawPending {
					res.Violations = append(res.Violations, stepSequenceViolation(step.ID,
						fmt.Sprintf("step %d of process %s is in progress while an earlier step is pending", step.StepNumber, processID)))
				}
				if inProgress > 1 {
					res.Violations = append(res.Violations, stepSequenceViolation(step.ID,
						fmt.Sprintf("process %s has more than one step in progress", processID)))
				}
			case domain.StepCompleted, domain.StepFailed:
				if sawPending {
					res.Violations = append(res.Violations, stepSequenceViolation(step.ID,
						fmt.Sprintf("step %d of process %s is terminal while an earlier step is pending", step.StepNumber, processID)))
				}
			}
		}
	}

	return res, nil
}

func stepSequenceViolation(stepID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "step_sequence",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityExecutedStep,
		EntityID: stepID,
	}
}
