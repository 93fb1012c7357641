package core

import (
	"context"
	"errors"
	"testing"

	"culturecore/internal/infra/persistence/memory"
	"culturecore/pkg/domain"
)

func mustChangePayload[T any](t *testing.T, value T) domain.ChangePayload {
	t.Helper()
	payload, err := domain.NewChangePayloadFromValue(value)
	if err != nil {
		t.Fatalf("build change payload: %v", err)
	}
	return payload
}

func evaluateAgainstEmptyStore(t *testing.T, rule Rule, changes []Change) Result {
	t.Helper()
	store := memory.NewStore(NewRulesEngine())
	var res Result
	err := store.View(context.Background(), func(view TransactionView) error {
		var evalErr error
		res, evalErr = rule.Evaluate(context.Background(), view, changes)
		return evalErr
	})
	if err != nil {
		t.Fatalf("evaluate %s: %v", rule.Name(), err)
	}
	return res
}

func TestLifecycleTransitionBlocksTerminalExit(t *testing.T) {
	rule := LifecycleTransitionRule()
	before := domain.Container{Base: domain.Base{ID: "c1"}, CultureID: "cul", Status: domain.ContainerDisposed, SplitIndex: 1}
	after := domain.Container{Base: domain.Base{ID: "c1"}, CultureID: "cul", Status: domain.ContainerActive, SplitIndex: 1}

	res := evaluateAgainstEmptyStore(t, rule, []Change{{
		Entity: domain.EntityContainer,
		Action: domain.ActionUpdate,
		Before: mustChangePayload(t, before),
		After:  mustChangePayload(t, after),
	}})
	if len(res.Violations) == 0 {
		t.Fatalf("expected violation when leaving terminal container state")
	}
	if res.Violations[0].Rule != "lifecycle_transition" {
		t.Fatalf("unexpected rule name %q", res.Violations[0].Rule)
	}
}

func TestLifecycleTransitionRejectsUnknownState(t *testing.T) {
	rule := LifecycleTransitionRule()
	invalid := domain.ExecutedProcess{Base: domain.Base{ID: "p1"}, Status: domain.ProcessStatus("warp")}

	res := evaluateAgainstEmptyStore(t, rule, []Change{{
		Entity: domain.EntityExecutedProcess,
		Action: domain.ActionCreate,
		After:  mustChangePayload(t, invalid),
	}})
	if len(res.Violations) == 0 {
		t.Fatalf("expected violation for invalid process state")
	}
}

func TestLifecycleTransitionSkipsUndecodablePayload(t *testing.T) {
	rule := LifecycleTransitionRule()
	res := evaluateAgainstEmptyStore(t, rule, []Change{{
		Entity: domain.EntityExecutedStep,
		Action: domain.ActionUpdate,
		After:  domain.NewChangePayload([]byte("{")),
	}})
	if len(res.Violations) != 0 {
		t.Fatalf("expected undecodable payload to be skipped, got %v", res.Violations)
	}
}

func TestStepSequenceBlocksTerminalAheadOfPending(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(NewRulesEngine())
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateExecutedStep(domain.ExecutedStep{
			Base: domain.Base{ID: "s1"}, ProcessID: "proc", StepNumber: 1, Status: domain.StepPending,
		}); err != nil {
			return err
		}
		_, err := tx.CreateExecutedStep(domain.ExecutedStep{
			Base: domain.Base{ID: "s2"}, ProcessID: "proc", StepNumber: 2, Status: domain.StepCompleted,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed steps: %v", err)
	}

	rule := StepSequenceRule()
	touched := domain.ExecutedStep{Base: domain.Base{ID: "s2"}, ProcessID: "proc", StepNumber: 2, Status: domain.StepCompleted}
	var res Result
	if err := store.View(ctx, func(view TransactionView) error {
		var evalErr error
		res, evalErr = rule.Evaluate(ctx, view, []Change{{
			Entity: domain.EntityExecutedStep,
			Action: domain.ActionUpdate,
			After:  mustChangePayload(t, touched),
		}})
		return evalErr
	}); err != nil {
		t.Fatalf("evaluate step sequence: %v", err)
	}
	if len(res.Violations) == 0 {
		t.Fatalf("expected violation for terminal step ahead of a pending one")
	}
}

func TestStepSequenceAllowsMonotonicProgress(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(NewRulesEngine())
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.CreateExecutedStep(domain.ExecutedStep{
			Base: domain.Base{ID: "s1"}, ProcessID: "proc", StepNumber: 1, Status: domain.StepCompleted,
		}); err != nil {
			return err
		}
		if _, err := tx.CreateExecutedStep(domain.ExecutedStep{
			Base: domain.Base{ID: "s2"}, ProcessID: "proc", StepNumber: 2, Status: domain.StepInProgress,
		}); err != nil {
			return err
		}
		_, err := tx.CreateExecutedStep(domain.ExecutedStep{
			Base: domain.Base{ID: "s3"}, ProcessID: "proc", StepNumber: 3, Status: domain.StepPending,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed steps: %v", err)
	}

	rule := StepSequenceRule()
	touched := domain.ExecutedStep{Base: domain.Base{ID: "s2"}, ProcessID: "proc", StepNumber: 2, Status: domain.StepInProgress}
	var res Result
	if err := store.View(ctx, func(view TransactionView) error {
		var evalErr error
		res, evalErr = rule.Evaluate(ctx, view, []Change{{
			Entity: domain.EntityExecutedStep,
			Action: domain.ActionUpdate,
			After:  mustChangePayload(t, touched),
		}})
		return evalErr
	}); err != nil {
		t.Fatalf("evaluate step sequence: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations, got %v", res.Violations)
	}
}

func TestLineageIntegrityBlocksCrossCultureParent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(NewDefaultRulesEngine())
	parentID := "c1"
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		for _, culture := range []domain.Culture{
			{Base: domain.Base{ID: "cul-a"}, Code: "CUL-A", Name: "A", CellLine: "L1", Status: domain.CultureActive},
			{Base: domain.Base{ID: "cul-b"}, Code: "CUL-B", Name: "B", CellLine: "L1", Status: domain.CultureActive},
		} {
			if _, err := tx.CreateCulture(culture); err != nil {
				return err
			}
		}
		if _, err := tx.CreateContainer(domain.Container{
			Base: domain.Base{ID: parentID}, CultureID: "cul-a", Status: domain.ContainerActive,
			PassageNumber: 1, SplitIndex: 1, ContainerType: "flask",
		}); err != nil {
			return err
		}
		_, err := tx.CreateContainer(domain.Container{
			Base: domain.Base{ID: "c2"}, CultureID: "cul-b", ParentID: &parentID, Status: domain.ContainerActive,
			PassageNumber: 2, SplitIndex: 1, ContainerType: "flask",
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected cross-culture parent to be rejected")
	}
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	found := false
	for _, v := range violation.Result.Violations {
		if v.Rule == "lineage_integrity" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected lineage_integrity violation, got %v", violation.Result.Violations)
	}
}

func TestLineageIntegrityBlocksPassageRollback(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(NewDefaultRulesEngine())
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateCulture(domain.Culture{
			Base: domain.Base{ID: "cul"}, Code: "CUL-R", Name: "R", CellLine: "L1",
			CurrentPassage: 5, Status: domain.CultureActive,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed culture: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.UpdateCulture("cul", func(culture *domain.Culture) error {
			culture.CurrentPassage = 3
			return nil
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected passage rollback to be rejected")
	}
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
}

func TestDefaultEngineBlocksInvalidCreate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(NewDefaultRulesEngine())
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		_, err := tx.CreateCulture(domain.Culture{
			Base: domain.Base{ID: "cul"}, Code: "CUL-X", Name: "X", CellLine: "L1",
			Status: domain.CultureStatus("melted"),
		})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected default engine to block invalid culture state, got %v", err)
	}
}
