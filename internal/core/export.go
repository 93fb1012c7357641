package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"culturecore/internal/blob"
	"culturecore/pkg/domain"
)

// AuditBundle is the retention export for one culture: the culture record,
// its full container lineage and history, every process run with its steps,
// and all deviations and tasks raised against it. Bundles are immutable once
// written.
type AuditBundle struct {
	Culture    Culture                 `json:"culture"`
	Containers []Container             `json:"containers"`
	History    []ContainerHistoryEvent `json:"history"`
	Processes  []ProcessAggregate      `json:"processes"`
	Deviations []Deviation             `json:"deviations"`
	Tasks      []Task                  `json:"tasks"`
	ExportedAt time.Time               `json:"exported_at"`
	ExportedBy string                  `json:"exported_by"`
}

// BuildAuditBundle assembles the bundle from one consistent store snapshot.
func (s *Service) BuildAuditBundle(ctx context.Context, cultureID, actor string) (AuditBundle, error) {
	var bundle AuditBundle
	err := s.store.View(ctx, func(view TransactionView) error {
		culture, ok := view.FindCulture(cultureID)
		if !ok {
			return notFound(domain.EntityCulture, cultureID)
		}
		bundle.Culture = culture
		bundle.Containers = view.ListCultureContainers(cultureID)
		bundle.History = view.ListCultureHistory(cultureID)
		for _, process := range view.ListExecutedProcesses() {
			if process.CultureID != cultureID {
				continue
			}
			bundle.Processes = append(bundle.Processes, ProcessAggregate{
				Process: process,
				Steps:   view.ListProcessSteps(process.ID),
			})
		}
		for _, deviation := range view.ListDeviations() {
			if deviation.CultureID == cultureID {
				bundle.Deviations = append(bundle.Deviations, deviation)
			}
		}
		for _, task := range view.ListTasks() {
			if task.CultureID == cultureID {
				bundle.Tasks = append(bundle.Tasks, task)
			}
		}
		return nil
	})
	if err != nil {
		return AuditBundle{}, err
	}
	bundle.ExportedAt = s.clock.Now()
	bundle.ExportedBy = actor
	return bundle, nil
}

// ExportAuditBundle writes the culture's bundle to the blob store as an
// indented JSON document keyed by culture code and export timestamp.
func (s *Service) ExportAuditBundle(ctx context.Context, store blob.Store, cultureID, actor string) (blob.Info, error) {
	bundle, err := s.BuildAuditBundle(ctx, cultureID, actor)
	if err != nil {
		return blob.Info{}, err
	}
	payload, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return blob.Info{}, err
	}
	key := fmt.Sprintf("audit/%s/%s.json", bundle.Culture.Code, bundle.ExportedAt.UTC().Format("20060102T150405Z"))
	info, err := store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"culture_id":  bundle.Culture.ID,
			"exported_by": actor,
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store audit bundle: %w", err)
	}
	s.logger.Info("audit bundle exported", "culture", bundle.Culture.Code, "key", info.Key, "size", info.Size)
	return info, nil
}
