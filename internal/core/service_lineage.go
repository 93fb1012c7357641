package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"culturecore/pkg/domain"
)

// LineageResult reports the outcome of a passage, bank, or thaw: the
// containers created by the operation and the culture as it stands after.
type LineageResult struct {
	Culture    Culture     `json:"culture"`
	Containers []Container `json:"containers"`
}

// parseSplitRatio parses the operator-facing "1:R" spelling into the number
// of child containers per source.
func parseSplitRatio(ratio string) (int, error) {
	parts := strings.SplitN(ratio, ":", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) != "1" {
		return 0, fmt.Errorf("split ratio %q must have the form 1:R", ratio)
	}
	r, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || r < 1 {
		return 0, fmt.Errorf("split ratio %q must have the form 1:R with R >= 1", ratio)
	}
	return r, nil
}

// Passage splits each active source container into R children at the next
// passage number, disposes the sources, and bumps the culture's passage by
// one regardless of how many sources took part.
func (s *Service) Passage(ctx context.Context, cultureID string, sourceContainerIDs []string, splitRatio, actor string) (LineageResult, Result, error) {
	ctx, finish := s.begin(ctx, "passage_culture")

	ratio, err := parseSplitRatio(splitRatio)
	if err != nil {
		err = ValidationError{Entity: domain.EntityContainer, ID: cultureID, Reason: err.Error()}
		finish(cultureID, err)
		return LineageResult{}, Result{}, err
	}

	lock := s.cultureLock(cultureID)
	lock.Lock()
	defer lock.Unlock()

	var outcome LineageResult
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		culture, sources, err := resolveLineageSources(tx, cultureID, sourceContainerIDs, domain.ContainerActive)
		if err != nil {
			return err
		}
		nextPassage := culture.CurrentPassage + 1
		now := tx.Now()

		for _, source := range sources {
			childVolume := source.VolumeML / float64(ratio)
			for split := 1; split <= ratio; split++ {
				parentID := source.ID
				child, err := tx.CreateContainer(Container{
					CultureID:     cultureID,
					ParentID:      &parentID,
					Status:        domain.ContainerActive,
					PassageNumber: nextPassage,
					SplitIndex:    split,
					ContainerType: source.ContainerType,
					Location:      source.Location,
					VolumeML:      childVolume,
				})
				if err != nil {
					return err
				}
				outcome.Containers = append(outcome.Containers, child)
			}
			if _, err := tx.UpdateContainer(source.ID, func(c *Container) error {
				c.Status = domain.ContainerDisposed
				c.VolumeML = 0
				return nil
			}); err != nil {
				return err
			}
			if _, err := tx.AppendContainerHistory(ContainerHistoryEvent{
				ContainerID: source.ID,
				CultureID:   cultureID,
				Operation:   domain.OperationPassage,
				Detail:      fmt.Sprintf("passaged %s into %d containers at passage %d", splitRatio, ratio, nextPassage),
				Parameters:  map[string]string{"split_ratio": splitRatio, "children": strconv.Itoa(ratio)},
				Actor:       actor,
				OccurredAt:  now,
			}); err != nil {
				return err
			}
		}

		outcome.Culture, err = tx.UpdateCulture(cultureID, func(c *Culture) error {
			c.CurrentPassage = nextPassage
			return nil
		})
		return err
	})
	finish(cultureID, err)
	if err != nil {
		return LineageResult{}, res, err
	}
	s.notify(ctx, fmt.Sprintf("culture %s passaged to passage %d (%d new containers)",
		outcome.Culture.Code, outcome.Culture.CurrentPassage, len(outcome.Containers)), NotificationInfo)
	return outcome, res, nil
}

// Bank freezes down the given active sources into vialCount cryovials at the
// culture's current passage. The culture itself moves to frozen when no
// active container remains afterwards.
func (s *Service) Bank(ctx context.Context, cultureID string, sourceContainerIDs []string, vialCount int, bankType, actor string) (LineageResult, Result, error) {
	ctx, finish := s.begin(ctx, "bank_culture")

	if vialCount < 1 {
		err := ValidationError{Entity: domain.EntityContainer, ID: cultureID, Reason: "vial count must be at least 1"}
		finish(cultureID, err)
		return LineageResult{}, Result{}, err
	}

	lock := s.cultureLock(cultureID)
	lock.Lock()
	defer lock.Unlock()

	var outcome LineageResult
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		culture, sources, err := resolveLineageSources(tx, cultureID, sourceContainerIDs, domain.ContainerActive)
		if err != nil {
			return err
		}
		now := tx.Now()
		primaryParent := sources[0].ID

		for vial := 1; vial <= vialCount; vial++ {
			parentID := primaryParent
			child, err := tx.CreateContainer(Container{
				CultureID:     cultureID,
				ParentID:      &parentID,
				Status:        domain.ContainerFrozen,
				PassageNumber: culture.CurrentPassage,
				SplitIndex:    vial,
				ContainerType: "cryovial",
				Location:      sources[0].Location,
			})
			if err != nil {
				return err
			}
			outcome.Containers = append(outcome.Containers, child)
		}
		for _, source := range sources {
			if _, err := tx.UpdateContainer(source.ID, func(c *Container) error {
				c.Status = domain.ContainerFrozen
				c.VolumeML = 0
				return nil
			}); err != nil {
				return err
			}
			if _, err := tx.AppendContainerHistory(ContainerHistoryEvent{
				ContainerID: source.ID,
				CultureID:   cultureID,
				Operation:   domain.OperationBank,
				Detail:      fmt.Sprintf("banked into %d vials (%s)", vialCount, bankType),
				Parameters:  map[string]string{"vial_count": strconv.Itoa(vialCount), "bank_type": bankType},
				Actor:       actor,
				OccurredAt:  now,
			}); err != nil {
				return err
			}
		}

		outcome.Culture = culture
		if !cultureHasActiveContainers(tx.Snapshot(), cultureID) {
			outcome.Culture, err = tx.UpdateCulture(cultureID, func(c *Culture) error {
				c.Status = domain.CultureFrozen
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	finish(cultureID, err)
	if err != nil {
		return LineageResult{}, res, err
	}
	s.notify(ctx, fmt.Sprintf("culture %s banked into %d vials", outcome.Culture.Code, len(outcome.Containers)), NotificationInfo)
	return outcome, res, nil
}

// Thaw revives the given frozen vials, each into one active container at the
// culture's current passage. Thawed vials are terminal and can never serve as
// a lineage source again; a frozen culture returns to active.
func (s *Service) Thaw(ctx context.Context, cultureID string, sourceContainerIDs []string, actor string) (LineageResult, Result, error) {
	ctx, finish := s.begin(ctx, "thaw_culture")

	lock := s.cultureLock(cultureID)
	lock.Lock()
	defer lock.Unlock()

	var outcome LineageResult
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		culture, sources, err := resolveLineageSources(tx, cultureID, sourceContainerIDs, domain.ContainerFrozen)
		if err != nil {
			return err
		}
		now := tx.Now()

		for _, source := range sources {
			parentID := source.ID
			child, err := tx.CreateContainer(Container{
				CultureID:     cultureID,
				ParentID:      &parentID,
				Status:        domain.ContainerActive,
				PassageNumber: culture.CurrentPassage,
				SplitIndex:    1,
				ContainerType: "flask",
				Location:      source.Location,
			})
			if err != nil {
				return err
			}
			outcome.Containers = append(outcome.Containers, child)

			if _, err := tx.UpdateContainer(source.ID, func(c *Container) error {
				c.Status = domain.ContainerThawed
				c.VolumeML = 0
				return nil
			}); err != nil {
				return err
			}
			if _, err := tx.AppendContainerHistory(ContainerHistoryEvent{
				ContainerID: source.ID,
				CultureID:   cultureID,
				Operation:   domain.OperationThaw,
				Detail:      fmt.Sprintf("thawed into container %s", child.ID),
				Actor:       actor,
				OccurredAt:  now,
			}); err != nil {
				return err
			}
		}

		outcome.Culture = culture
		if culture.Status == domain.CultureFrozen {
			outcome.Culture, err = tx.UpdateCulture(cultureID, func(c *Culture) error {
				c.Status = domain.CultureActive
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	finish(cultureID, err)
	if err != nil {
		return LineageResult{}, res, err
	}
	s.notify(ctx, fmt.Sprintf("culture %s thawed (%d containers revived)", outcome.Culture.Code, len(outcome.Containers)), NotificationInfo)
	return outcome, res, nil
}

// resolveLineageSources loads the culture and every named source container,
// checking each source belongs to the culture and sits in the required
// status. Terminal or mismatched sources conflict rather than validate: the
// caller is racing another operation, not submitting bad input.
func resolveLineageSources(tx Transaction, cultureID string, sourceIDs []string, required domain.ContainerStatus) (Culture, []Container, error) {
	view := tx.Snapshot()
	culture, ok := view.FindCulture(cultureID)
	if !ok {
		return Culture{}, nil, notFound(domain.EntityCulture, cultureID)
	}
	if len(sourceIDs) == 0 {
		return Culture{}, nil, ValidationError{Entity: domain.EntityContainer, ID: cultureID, Reason: "at least one source container is required"}
	}
	seen := make(map[string]bool, len(sourceIDs))
	sources := make([]Container, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		if seen[id] {
			return Culture{}, nil, ValidationError{Entity: domain.EntityContainer, ID: id, Reason: "duplicate source container"}
		}
		seen[id] = true
		container, ok := view.FindContainer(id)
		if !ok {
			return Culture{}, nil, notFound(domain.EntityContainer, id)
		}
		if container.CultureID != cultureID {
			return Culture{}, nil, ValidationError{Entity: domain.EntityContainer, ID: id, Reason: "container belongs to a different culture"}
		}
		if container.Status != required {
			return Culture{}, nil, ConflictError{Entity: domain.EntityContainer, ID: id,
				Reason: fmt.Sprintf("container is %s, operation requires %s sources", container.Status, required)}
		}
		sources = append(sources, container)
	}
	return culture, sources, nil
}

func cultureHasActiveContainers(view TransactionView, cultureID string) bool {
	for _, container := range view.ListCultureContainers(cultureID) {
		if container.Status == domain.ContainerActive {
			return true
		}
	}
	return false
}
