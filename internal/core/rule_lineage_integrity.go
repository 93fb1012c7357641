package core

import (
	"context"
	"fmt"

	"culturecore/pkg/domain"
)

// LineageIntegrityRule enforces the append-only container lineage graph:
// containers must reference an existing culture, a parent in the same culture,
// and a passage number no older than their parent's. It also blocks any
// decrease of a culture's generation counter.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return "lineage_integrity" }

func (lineageIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	containers := view.ListContainers()
	index := make(map[string]domain.Container, len(containers))
	for _, container := range containers {
		index[container.ID] = container
	}

	for _, container := range containers {
		if _, ok := view.FindCulture(container.CultureID); !ok {
			res.Violations = append(res.Violations, lineageViolation(container.ID,
				fmt.Sprintf("container %s references missing culture %s", container.ID, container.CultureID)))
		}
		if container.SplitIndex < 1 {
			res.Violations = append(res.Violations, lineageViolation(container.ID,
				fmt.Sprintf("container %s has invalid split index %d", container.ID, container.SplitIndex)))
		}
		if container.ParentID == nil {
			continue
		}
		parentID := *container.ParentID
		if parentID == container.ID {
			res.Violations = append(res.Violations, lineageViolation(container.ID,
				fmt.Sprintf("container %s references itself as a parent", container.ID)))
			continue
		}
		parent, ok := index[parentID]
		if !ok {
			res.Violations = append(res.Violations, lineageViolation(container.ID,
				fmt.Sprintf("container %s references missing parent %s", container.ID, parentID)))
			continue
		}
		if parent.CultureID != container.CultureID {
			res.Violations = append(res.Violations, lineageViolation(container.ID,
				fmt.Sprintf("container %s parent %s belongs to a different culture", container.ID, parentID)))
		}
		if container.PassageNumber < parent.PassageNumber {
			res.Violations = append(res.Violations, lineageViolation(container.ID,
				fmt.Sprintf("container %s passage %d is older than parent passage %d", container.ID, container.PassageNumber, parent.PassageNumber)))
		}
	}

	for _, change := range changes {
		if change.Entity != domain.EntityCulture {
			continue
		}
		before, okBefore := decodeChangePayload[domain.Culture](change.Before)
		after, okAfter := decodeChangePayload[domain.Culture](change.After)
		if !okBefore || !okAfter {
			continue
		}
		if after.CurrentPassage < before.CurrentPassage {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "lineage_integrity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("culture %s passage counter cannot decrease from %d to %d", after.ID, before.CurrentPassage, after.CurrentPassage),
				Entity:   domain.EntityCulture,
				EntityID: after.ID,
			})
		}
	}

	return res, nil
}

func lineageViolation(entityID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "lineage_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityContainer,
		EntityID: entityID,
	}
}
