package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"culturecore/pkg/domain"
)

func seedCulture(t *testing.T, store *Store) Culture {
	t.Helper()
	var created Culture
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		created, err = tx.CreateCulture(Culture{Code: "CUL-001", Name: "HEK293 batch", CellLine: "HEK293", CurrentPassage: 2})
		return err
	})
	if err != nil {
		t.Fatalf("seed culture: %v", err)
	}
	return created
}

func TestCreateCultureDefaultsAndStamps(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })

	culture := seedCulture(t, store)
	if culture.ID == "" {
		t.Fatalf("expected generated id")
	}
	if culture.Status != domain.CultureActive {
		t.Fatalf("expected default active status, got %s", culture.Status)
	}
	if !culture.CreatedAt.Equal(fixed) || !culture.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected pinned timestamps, got %v / %v", culture.CreatedAt, culture.UpdatedAt)
	}

	got, ok := store.GetCulture(culture.ID)
	if !ok || got.Code != "CUL-001" {
		t.Fatalf("culture not readable from committed state: %+v", got)
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store := NewStore(nil)
	culture := seedCulture(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateContainer(Container{CultureID: culture.ID, Status: domain.ContainerActive, PassageNumber: 2, SplitIndex: 1}); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatalf("expected transaction error")
	}
	if got := store.ListContainers(); len(got) != 0 {
		t.Fatalf("container leaked from rolled-back transaction: %d", len(got))
	}
}

type blockEverything struct{}

func (blockEverything) Name() string { return "block_everything" }

func (blockEverything) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (Result, error) {
	res := Result{}
	for range changes {
		res.Violations = append(res.Violations, domain.Violation{Rule: "block_everything", Severity: domain.SeverityBlock, Message: "no"})
	}
	return res, nil
}

func TestBlockingRuleDiscardsMutations(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockEverything{})
	store := NewStore(engine)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateCulture(Culture{Code: "CUL-X"})
		return err
	})
	if err == nil {
		t.Fatalf("expected rule violation error")
	}
	var rve domain.RuleViolationError
	if ok := asRuleViolation(err, &rve); !ok {
		t.Fatalf("expected RuleViolationError, got %T: %v", err, err)
	}
	if len(store.ListCultures()) != 0 {
		t.Fatalf("blocked transaction must not commit")
	}
}

func asRuleViolation(err error, target *domain.RuleViolationError) bool {
	rve, ok := err.(domain.RuleViolationError)
	if ok {
		*target = rve
	}
	return ok
}

func TestNextSequenceIsTransactional(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	// A failing transaction must not consume sequence numbers.
	_, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := tx.NextSequence("PROC-2026"); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	if err == nil {
		t.Fatalf("expected aborted transaction")
	}

	var first, second int
	_, err = store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		if first, err = tx.NextSequence("PROC-2026"); err != nil {
			return err
		}
		second, err = tx.NextSequence("PROC-2026")
		return err
	})
	if err != nil {
		t.Fatalf("sequence transaction: %v", err)
	}
	if first != 1 || second != 2 {
		t.Fatalf("expected 1,2 after rollback, got %d,%d", first, second)
	}

	if _, err := store.RunInTransaction(ctx, func(tx Transaction) error {
		n, err := tx.NextSequence("DEV-2026")
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("scopes must be independent, got %d", n)
		}
		return nil
	}); err != nil {
		t.Fatalf("scoped sequence: %v", err)
	}
}

func TestStepOrderingFollowsStepNumber(t *testing.T) {
	store := NewStore(nil)
	culture := seedCulture(t, store)

	var process ExecutedProcess
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		process, err = tx.CreateExecutedProcess(ExecutedProcess{CultureID: culture.ID, Status: domain.ProcessInProgress, StartedAt: tx.Now()})
		if err != nil {
			return err
		}
		// Insert out of order on purpose.
		for _, n := range []int{3, 1, 2} {
			if _, err := tx.CreateExecutedStep(ExecutedStep{ProcessID: process.ID, StepNumber: n, Name: fmt.Sprintf("step %d", n)}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed process: %v", err)
	}

	steps := store.ListProcessSteps(process.ID)
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	for i, st := range steps {
		if st.StepNumber != i+1 {
			t.Fatalf("steps out of order: %+v", steps)
		}
		if st.Status != domain.StepPending {
			t.Fatalf("expected default pending status, got %s", st.Status)
		}
	}
}

func TestSnapshotRoundtripPreservesState(t *testing.T) {
	store := NewStore(nil)
	culture := seedCulture(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		container, err := tx.CreateContainer(Container{CultureID: culture.ID, Status: domain.ContainerActive, PassageNumber: 2, SplitIndex: 1, VolumeML: 25})
		if err != nil {
			return err
		}
		_, err = tx.AppendContainerHistory(ContainerHistoryEvent{
			ContainerID: container.ID,
			CultureID:   culture.ID,
			Operation:   domain.OperationPassage,
			Actor:       "tech.ws",
			Parameters:  map[string]string{"split_ratio": "1:3"},
		})
		if err != nil {
			return err
		}
		_, err = tx.NextSequence("PROC-2026")
		return err
	})
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}

	restored := NewStore(nil)
	restored.ImportState(store.ExportState())

	if len(restored.ListContainers()) != 1 {
		t.Fatalf("containers lost in snapshot roundtrip")
	}
	history := restored.ListCultureHistory(culture.ID)
	if len(history) != 1 || history[0].Parameters["split_ratio"] != "1:3" {
		t.Fatalf("history lost in snapshot roundtrip: %+v", history)
	}
	if _, err := restored.RunInTransaction(context.Background(), func(tx Transaction) error {
		n, err := tx.NextSequence("PROC-2026")
		if err != nil {
			return err
		}
		if n != 2 {
			return fmt.Errorf("sequence counter not restored, got %d", n)
		}
		return nil
	}); err != nil {
		t.Fatalf("restored sequence: %v", err)
	}
}

func TestMigrateSnapshotDropsDanglingRows(t *testing.T) {
	snapshot := Snapshot{
		Cultures: map[string]Culture{"cu-1": {Base: domain.Base{ID: "cu-1"}, Status: domain.CultureActive}},
		Containers: map[string]Container{
			"ct-ok":       {Base: domain.Base{ID: "ct-ok"}, CultureID: "cu-1", Status: domain.ContainerActive},
			"ct-dangling": {Base: domain.Base{ID: "ct-dangling"}, CultureID: "cu-gone", Status: domain.ContainerActive},
		},
		Steps: map[string]ExecutedStep{
			"st-dangling": {Base: domain.Base{ID: "st-dangling"}, ProcessID: "pr-gone"},
		},
	}
	store := NewStore(nil)
	store.ImportState(snapshot)

	if len(store.ListContainers()) != 1 {
		t.Fatalf("dangling container survived migration")
	}
	if _, ok := store.GetExecutedStep("st-dangling"); ok {
		t.Fatalf("dangling step survived migration")
	}
}

func TestClonesIsolateCallers(t *testing.T) {
	store := NewStore(nil)
	culture := seedCulture(t, store)

	var step ExecutedStep
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		process, err := tx.CreateExecutedProcess(ExecutedProcess{CultureID: culture.ID, Status: domain.ProcessInProgress, StartedAt: tx.Now()})
		if err != nil {
			return err
		}
		step, err = tx.CreateExecutedStep(ExecutedStep{
			ProcessID:  process.ID,
			StepNumber: 1,
			Parameters: map[string]float64{domain.ParamViabilityPercent: 90},
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed step: %v", err)
	}

	step.Parameters[domain.ParamViabilityPercent] = 1
	got, _ := store.GetExecutedStep(step.ID)
	if got.Parameters[domain.ParamViabilityPercent] != 90 {
		t.Fatalf("caller mutation leaked into store state")
	}
}
