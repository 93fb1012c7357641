package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"culturecore/internal/blob"
	"culturecore/pkg/domain"
)

func TestExportAuditBundleWritesCompleteRecord(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	culture, aggregate := startProcess(t, svc)
	sources := seedActiveContainers(t, svc, culture.ID, 1)
	if _, _, err := svc.Passage(ctx, culture.ID, containerIDs(sources), "1:2", "op.jones"); err != nil {
		t.Fatalf("passage: %v", err)
	}
	runStep(t, svc, aggregate.Process.ID, aggregate.Steps[0].ID, domain.ObservationRecording{Notes: "ok"})
	runStep(t, svc, aggregate.Process.ID, aggregate.Steps[1].ID, domain.CellCountingRecording{ViabilityPercent: 60})

	store := blob.NewMemory()
	info, err := svc.ExportAuditBundle(ctx, store, culture.ID, "qa.lee")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(info.Key, "audit/"+culture.Code+"/") {
		t.Fatalf("unexpected bundle key %q", info.Key)
	}
	if info.Metadata["exported_by"] != "qa.lee" {
		t.Fatalf("expected exporter metadata, got %+v", info.Metadata)
	}

	_, rc, err := store.Get(ctx, info.Key)
	if err != nil {
		t.Fatalf("get bundle: %v", err)
	}
	payload, _ := io.ReadAll(rc)
	_ = rc.Close()

	var bundle AuditBundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		t.Fatalf("unmarshal bundle: %v", err)
	}
	if bundle.Culture.ID != culture.ID || bundle.ExportedBy != "qa.lee" {
		t.Fatalf("unexpected bundle identity: %+v", bundle.Culture)
	}
	// 1 source + 2 passage children.
	if len(bundle.Containers) != 3 {
		t.Fatalf("expected 3 containers, got %d", len(bundle.Containers))
	}
	if len(bundle.History) != 1 || bundle.History[0].Operation != domain.OperationPassage {
		t.Fatalf("expected one passage history event, got %+v", bundle.History)
	}
	if len(bundle.Processes) != 1 || len(bundle.Processes[0].Steps) != 3 {
		t.Fatalf("expected one process with 3 steps, got %+v", bundle.Processes)
	}
	if len(bundle.Deviations) != 1 || len(bundle.Tasks) != 1 {
		t.Fatalf("expected deviation and task in bundle, got %d/%d", len(bundle.Deviations), len(bundle.Tasks))
	}
}

func TestExportAuditBundleUnknownCulture(t *testing.T) {
	svc := newTestService(t)
	var nerr ErrNotFound
	if _, err := svc.ExportAuditBundle(context.Background(), blob.NewMemory(), "missing", "qa"); !errors.As(err, &nerr) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
