package core

import (
	"context"
	"fmt"

	"culturecore/pkg/domain"
)

// LifecycleTransitionRule blocks illegal state transitions on stateful entities.
func LifecycleTransitionRule() domain.Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

type lifecycleMachine struct {
	entity    domain.EntityType
	label     string
	terminal  map[string]struct{}
	valid     map[string]struct{}
	extractor func(payload domain.ChangePayload) (id string, state string, ok bool)
}

var lifecycleMachines = map[domain.EntityType]lifecycleMachine{
	domain.EntityCulture: {
		entity:   domain.EntityCulture,
		label:    "culture",
		terminal: toSet(string(domain.CultureDisposed)),
		valid: toSet(
			string(domain.CultureActive),
			string(domain.CultureFrozen),
			string(domain.CultureHold),
			string(domain.CultureContaminated),
			string(domain.CultureDisposed),
		),
		extractor: func(payload domain.ChangePayload) (string, string, bool) {
			culture, ok := decodeChangePayload[domain.Culture](payload)
			if !ok {
				return "", "", false
			}
			return culture.ID, string(culture.Status), true
		},
	},
	domain.EntityContainer: {
		entity:   domain.EntityContainer,
		label:    "container",
		terminal: toSet(string(domain.ContainerDisposed), string(domain.ContainerThawed)),
		valid: toSet(
			string(domain.ContainerActive),
			string(domain.ContainerFrozen),
			string(domain.ContainerThawed),
			string(domain.ContainerDisposed),
			string(domain.ContainerBlocked),
		),
		extractor: func(payload domain.ChangePayload) (string, string, bool) {
			container, ok := decodeChangePayload[domain.Container](payload)
			if !ok {
				return "", "", false
			}
			return container.ID, string(container.Status), true
		},
	},
	domain.EntityExecutedProcess: {
		entity:   domain.EntityExecutedProcess,
		label:    "executed process",
		terminal: toSet(string(domain.ProcessCompleted), string(domain.ProcessAborted)),
		valid: toSet(
			string(domain.ProcessInProgress),
			string(domain.ProcessCompleted),
			string(domain.ProcessPaused),
			string(domain.ProcessAborted),
			string(domain.ProcessPausedQualityHold),
		),
		extractor: func(payload domain.ChangePayload) (string, string, bool) {
			process, ok := decodeChangePayload[domain.ExecutedProcess](payload)
			if !ok {
				return "", "", false
			}
			return process.ID, string(process.Status), true
		},
	},
	domain.EntityExecutedStep: {
		entity:   domain.EntityExecutedStep,
		label:    "executed step",
		terminal: toSet(string(domain.StepCompleted), string(domain.StepFailed)),
		valid: toSet(
			string(domain.StepPending),
			string(domain.StepInProgress),
			string(domain.StepCompleted),
			string(domain.StepFailed),
		),
		extractor: func(payload domain.ChangePayload) (string, string, bool) {
			step, ok := decodeChangePayload[domain.ExecutedStep](payload)
			if !ok {
				return "", "", false
			}
			return step.ID, string(step.Status), true
		},
	},
	domain.EntityDeviation: {
		entity:   domain.EntityDeviation,
		label:    "deviation",
		terminal: toSet(string(domain.DeviationClosed)),
		valid: toSet(
			string(domain.DeviationOpen),
			string(domain.DeviationClosed),
		),
		extractor: func(payload domain.ChangePayload) (string, string, bool) {
			deviation, ok := decodeChangePayload[domain.Deviation](payload)
			if !ok {
				return "", "", false
			}
			return deviation.ID, string(deviation.Status), true
		},
	},
	domain.EntityTask: {
		entity:   domain.EntityTask,
		label:    "task",
		terminal: toSet(string(domain.TaskDone)),
		valid: toSet(
			string(domain.TaskOpen),
			string(domain.TaskDone),
		),
		extractor: func(payload domain.ChangePayload) (string, string, bool) {
			task, ok := decodeChangePayload[domain.Task](payload)
			if !ok {
				return "", "", false
			}
			return task.ID, string(task.Status), true
		},
	},
}

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

func (lifecycleTransitionRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	_ = view // view not needed for lifecycle evaluation today
	res := domain.Result{}
	for _, change := range changes {
		machine, ok := lifecycleMachines[change.Entity]
		if !ok {
			continue
		}

		afterID, newState, ok := machine.extractor(change.After)
		if ok {
			if _, valid := machine.valid[newState]; !valid {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "lifecycle_transition",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("%s %s is set to invalid state %s", machine.label, afterID, newState),
					Entity:   machine.entity,
					EntityID: afterID,
				})
				continue
			}
		}

		beforeID, beforeState, ok := machine.extractor(change.Before)
		if !ok {
			continue
		}
		if _, ok := machine.terminal[beforeState]; !ok {
			continue
		}
		afterID, afterState, ok := machine.extractor(change.After)
		if !ok {
			continue
		}
		if afterState != beforeState {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "lifecycle_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("cannot move %s %s from terminal state %s to %s", machine.label, beforeID, beforeState, afterState),
				Entity:   machine.entity,
				EntityID: afterID,
			})
		}
	}
	return res, nil
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
