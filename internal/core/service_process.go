package core

import (
	"context"
	"fmt"
	"sort"

	"culturecore/pkg/domain"
)

// ProcessAggregate is an executed process with its ordered steps, returned by
// the mutating operations so callers can re-render without a second query.
type ProcessAggregate struct {
	Process ExecutedProcess `json:"process"`
	Steps   []ExecutedStep  `json:"steps"`
}

// deviationSourceCCAFail tags deviations generated by a failing CCA
// evaluation. It doubles as the idempotency guard: a step carries at most one
// deviation from this source.
const deviationSourceCCAFail = "cca_fail"

// StartProcess instantiates a template run against a culture: one executed
// process in in_progress plus one pending executed step per template step, in
// step number order.
func (s *Service) StartProcess(ctx context.Context, templateID, cultureID, actor string) (ProcessAggregate, Result, error) {
	ctx, finish := s.begin(ctx, "start_process")

	lock := s.cultureLock(cultureID)
	lock.Lock()
	defer lock.Unlock()

	var aggregate ProcessAggregate
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		view := tx.Snapshot()
		template, ok := view.FindProcessTemplate(templateID)
		if !ok {
			return ValidationError{Entity: domain.EntityProcessTemplate, ID: templateID, Reason: "unknown template"}
		}
		if _, ok := view.FindCulture(cultureID); !ok {
			return ValidationError{Entity: domain.EntityCulture, ID: cultureID, Reason: "unknown culture"}
		}

		code, err := mintProcessCode(tx)
		if err != nil {
			return err
		}
		process, err := tx.CreateExecutedProcess(ExecutedProcess{
			Code:       code,
			TemplateID: template.ID,
			CultureID:  cultureID,
			Status:     domain.ProcessInProgress,
			StartedAt:  tx.Now(),
			StartedBy:  actor,
		})
		if err != nil {
			return err
		}

		steps := append([]TemplateStep(nil), template.Steps...)
		sortTemplateSteps(steps)
		for _, def := range steps {
			step, err := tx.CreateExecutedStep(ExecutedStep{
				ProcessID:               process.ID,
				TemplateStepID:          def.ID,
				StepNumber:              def.StepNumber,
				Name:                    def.Name,
				Type:                    def.Type,
				Critical:                def.Critical,
				ExpectedDurationMinutes: def.ExpectedDurationMinutes,
				RequiresEquipmentScan:   def.RequiresEquipmentScan,
				RequiresSOPConfirmation: def.RequiresSOPConfirmation,
				CCARules:                append([]CCARule(nil), def.CCARules...),
				Status:                  domain.StepPending,
			})
			if err != nil {
				return err
			}
			aggregate.Steps = append(aggregate.Steps, step)
		}
		aggregate.Process = process
		return nil
	})
	finish(aggregate.Process.ID, err)
	if err != nil {
		return ProcessAggregate{}, res, err
	}
	return aggregate, res, nil
}

// selectCurrentStep returns the first pending or in-progress step, scanning
// in step number order. ok is false once every step is terminal.
func selectCurrentStep(steps []ExecutedStep) (ExecutedStep, bool) {
	for _, step := range steps {
		if step.Status == domain.StepPending || step.Status == domain.StepInProgress {
			return step, true
		}
	}
	return ExecutedStep{}, false
}

func sortTemplateSteps(steps []TemplateStep) {
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })
}

// CurrentStep returns the step an operator should act on next.
func (s *Service) CurrentStep(processID string) (ExecutedStep, bool, error) {
	if _, ok := s.store.GetExecutedProcess(processID); !ok {
		return ExecutedStep{}, false, notFound(domain.EntityExecutedProcess, processID)
	}
	step, ok := selectCurrentStep(s.store.ListProcessSteps(processID))
	return step, ok, nil
}

// StartStep transitions the given pending step to in_progress and stamps its
// start time. Only the process's current step may start.
func (s *Service) StartStep(ctx context.Context, processID, stepID, actor string) (ExecutedStep, Result, error) {
	ctx, finish := s.begin(ctx, "start_step")
	var updated ExecutedStep
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		view := tx.Snapshot()
		process, ok := view.FindExecutedProcess(processID)
		if !ok {
			return notFound(domain.EntityExecutedProcess, processID)
		}
		if process.Status != domain.ProcessInProgress {
			return ConflictError{Entity: domain.EntityExecutedProcess, ID: processID,
				Reason: fmt.Sprintf("process is %s, steps may only start while in progress", process.Status)}
		}
		step, ok := view.FindExecutedStep(stepID)
		if !ok || step.ProcessID != processID {
			return notFound(domain.EntityExecutedStep, stepID)
		}
		if step.Status != domain.StepPending {
			return ConflictError{Entity: domain.EntityExecutedStep, ID: stepID,
				Reason: fmt.Sprintf("step is %s, only pending steps may start", step.Status)}
		}
		current, ok := selectCurrentStep(view.ListProcessSteps(processID))
		if !ok || current.ID != stepID {
			return ConflictError{Entity: domain.EntityExecutedStep, ID: stepID, Reason: "step is not the process's current step"}
		}

		now := tx.Now()
		var err error
		updated, err = tx.UpdateExecutedStep(stepID, func(st *ExecutedStep) error {
			st.Status = domain.StepInProgress
			st.StartedAt = &now
			st.StartedBy = actor
			return nil
		})
		return err
	})
	finish(stepID, err)
	return updated, res, err
}

// CompleteStepInput carries everything an operator submits when finishing a
// step. Recording is mandatory and must match the step's type; the equipment
// reference and SOP confirmation are mandatory only when the step's template
// definition requires them.
type CompleteStepInput struct {
	Recording    StepRecording
	EquipmentRef string
	SOPConfirmed bool
	Actor        string
}

// CompleteStep closes the given in-progress step: it persists the recorded
// parameters, runs CCA evaluation, marks the step completed or failed, raises
// a deviation and task on failure, and advances or finalizes the process. All
// of it commits in one transaction.
func (s *Service) CompleteStep(ctx context.Context, processID, stepID string, input CompleteStepInput) (ProcessAggregate, Result, error) {
	ctx, finish := s.begin(ctx, "complete_step")

	var (
		aggregate  ProcessAggregate
		ccaFailed  bool
		failedName string
	)
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		view := tx.Snapshot()
		process, ok := view.FindExecutedProcess(processID)
		if !ok {
			return notFound(domain.EntityExecutedProcess, processID)
		}
		step, ok := view.FindExecutedStep(stepID)
		if !ok || step.ProcessID != processID {
			return notFound(domain.EntityExecutedStep, stepID)
		}
		if step.Terminal() {
			return ConflictError{Entity: domain.EntityExecutedStep, ID: stepID,
				Reason: fmt.Sprintf("step is already %s, execution history is append-only", step.Status)}
		}
		if step.Status != domain.StepInProgress {
			return ConflictError{Entity: domain.EntityExecutedStep, ID: stepID, Reason: "step has not been started"}
		}
		if input.Recording == nil {
			return ValidationError{Entity: domain.EntityExecutedStep, ID: stepID, Reason: "a recording is required"}
		}
		if input.Recording.StepType() != step.Type {
			return ValidationError{Entity: domain.EntityExecutedStep, ID: stepID,
				Reason: fmt.Sprintf("recording type %s does not match step type %s", input.Recording.StepType(), step.Type)}
		}
		if err := input.Recording.Validate(); err != nil {
			return ValidationError{Entity: domain.EntityExecutedStep, ID: stepID, Reason: err.Error()}
		}
		if step.RequiresEquipmentScan && input.EquipmentRef == "" {
			return ValidationError{Entity: domain.EntityExecutedStep, ID: stepID, Reason: "equipment scan is required"}
		}
		if step.RequiresSOPConfirmation && !input.SOPConfirmed {
			return ValidationError{Entity: domain.EntityExecutedStep, ID: stepID, Reason: "sop confirmation is required"}
		}

		params := input.Recording.Parameters()
		evaluation := EvaluateCCA(step.CCARules, params)
		now := tx.Now()
		status := domain.StepCompleted
		if !evaluation.Passed {
			status = domain.StepFailed
			ccaFailed = true
			failedName = step.Name
		}

		updated, err := tx.UpdateExecutedStep(stepID, func(st *ExecutedStep) error {
			st.Status = status
			st.CompletedAt = &now
			st.CompletedBy = input.Actor
			st.Parameters = params
			st.Notes = domain.RecordingNotes(input.Recording)
			st.EquipmentRef = input.EquipmentRef
			if input.SOPConfirmed {
				st.SOPConfirmedAt = &now
			}
			passed := evaluation.Passed
			st.CCAPassed = &passed
			result := evaluation
			st.CCAResult = &result
			return nil
		})
		if err != nil {
			return err
		}

		if !evaluation.Passed {
			if err := s.raiseCCADeviation(tx, process, updated, evaluation); err != nil {
				return err
			}
		}

		if err := s.advance(tx, process, updated); err != nil {
			return err
		}

		finalView := tx.Snapshot()
		final, _ := finalView.FindExecutedProcess(processID)
		aggregate = ProcessAggregate{Process: final, Steps: finalView.ListProcessSteps(processID)}
		return nil
	})
	finish(stepID, err)
	if err != nil {
		return ProcessAggregate{}, res, err
	}

	if ccaFailed {
		s.notify(ctx, fmt.Sprintf("step %q failed CCA evaluation on process %s", failedName, aggregate.Process.Code), NotificationWarning)
	} else {
		s.notify(ctx, fmt.Sprintf("step completed on process %s", aggregate.Process.Code), NotificationInfo)
	}
	return aggregate, res, nil
}

// raiseCCADeviation creates the deviation/task pair for a failing step.
// Exactly one pair per step: a retry that somehow reaches this point finds
// the existing deviation and returns without creating duplicates.
func (s *Service) raiseCCADeviation(tx Transaction, process ExecutedProcess, step ExecutedStep, evaluation CCAResult) error {
	for _, existing := range tx.Snapshot().ListStepDeviations(step.ID) {
		if existing.Source == deviationSourceCCAFail {
			return nil
		}
	}

	severity := domain.DeviationMajor
	if step.Critical {
		severity = domain.DeviationCritical
	}
	code, err := mintDeviationCode(tx)
	if err != nil {
		return err
	}
	deviation, err := tx.CreateDeviation(Deviation{
		Code:             code,
		Severity:         severity,
		Status:           domain.DeviationOpen,
		Source:           deviationSourceCCAFail,
		Description:      fmt.Sprintf("step %q failed CCA evaluation: %s", step.Name, evaluation.Message),
		CultureID:        process.CultureID,
		ProcessID:        process.ID,
		StepID:           step.ID,
		QPReviewRequired: true,
	})
	if err != nil {
		return err
	}

	taskCode, err := mintTaskCode(tx)
	if err != nil {
		return err
	}
	_, err = tx.CreateTask(Task{
		Title:       fmt.Sprintf("%s: review deviation %s", taskCode, deviation.Code),
		Role:        "qp",
		Priority:    severity,
		Status:      domain.TaskOpen,
		CultureID:   process.CultureID,
		StepID:      step.ID,
		DeviationID: deviation.ID,
	})
	return err
}

// advance re-scans the process after a step reached a terminal status. When
// no pending step remains the process completes; a failed step does not by
// itself halt the run unless the quality-hold flag parks a critical failure.
func (s *Service) advance(tx Transaction, process ExecutedProcess, terminal ExecutedStep) error {
	if s.holdOnCriticalFailure && terminal.Status == domain.StepFailed && terminal.Critical {
		_, err := tx.UpdateExecutedProcess(process.ID, func(p *ExecutedProcess) error {
			p.Status = domain.ProcessPausedQualityHold
			return nil
		})
		return err
	}

	if _, remaining := selectCurrentStep(tx.Snapshot().ListProcessSteps(process.ID)); remaining {
		return nil
	}
	now := tx.Now()
	_, err := tx.UpdateExecutedProcess(process.ID, func(p *ExecutedProcess) error {
		p.Status = domain.ProcessCompleted
		p.CompletedAt = &now
		return nil
	})
	return err
}

// ResolveDeviation records the QP decision against an open deviation and
// applies its container/culture side effects. Decisions are final.
func (s *Service) ResolveDeviation(ctx context.Context, deviationID string, decision domain.QPDecision, actor string) (Deviation, Result, error) {
	ctx, finish := s.begin(ctx, "resolve_deviation")
	var resolved Deviation
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		view := tx.Snapshot()
		deviation, ok := findDeviation(view, deviationID)
		if !ok {
			return notFound(domain.EntityDeviation, deviationID)
		}
		if deviation.Decision != nil || deviation.Status != domain.DeviationOpen {
			return ConflictError{Entity: domain.EntityDeviation, ID: deviationID, Reason: "deviation is already decided"}
		}
		switch decision {
		case domain.DecisionContinue, domain.DecisionQuarantine, domain.DecisionDispose:
		default:
			return ValidationError{Entity: domain.EntityDeviation, ID: deviationID,
				Reason: fmt.Sprintf("unknown decision %q", decision)}
		}

		now := tx.Now()
		var err error
		resolved, err = tx.UpdateDeviation(deviationID, func(d *Deviation) error {
			d.Decision = &decision
			d.DecidedBy = actor
			d.DecidedAt = &now
			d.Status = domain.DeviationClosed
			return nil
		})
		if err != nil {
			return err
		}
		return s.applyQPDecision(tx, resolved, decision, actor)
	})
	finish(deviationID, err)
	return resolved, res, err
}

func findDeviation(view TransactionView, id string) (Deviation, bool) {
	for _, deviation := range view.ListDeviations() {
		if deviation.ID == id {
			return deviation, true
		}
	}
	return Deviation{}, false
}

// applyQPDecision mutates container, culture, and process state according to
// the recorded decision. continue releases a quality hold; quarantine places
// the culture on hold; dispose terminalizes the container and flags the
// culture.
func (s *Service) applyQPDecision(tx Transaction, deviation Deviation, decision domain.QPDecision, actor string) error {
	switch decision {
	case domain.DecisionContinue:
		return s.releaseQualityHold(tx, deviation.ProcessID)

	case domain.DecisionQuarantine:
		if _, err := tx.UpdateCulture(deviation.CultureID, func(c *Culture) error {
			c.Status = domain.CultureHold
			return nil
		}); err != nil {
			return err
		}
		if deviation.ContainerID != nil {
			containerID := *deviation.ContainerID
			if _, err := tx.UpdateContainer(containerID, func(c *Container) error {
				c.Status = domain.ContainerBlocked
				return nil
			}); err != nil {
				return err
			}
			if _, err := tx.AppendContainerHistory(ContainerHistoryEvent{
				ContainerID: containerID,
				CultureID:   deviation.CultureID,
				Operation:   domain.OperationQuarantine,
				Detail:      fmt.Sprintf("quarantined by QP decision on deviation %s", deviation.Code),
				Actor:       actor,
			}); err != nil {
				return err
			}
		}
		return nil

	case domain.DecisionDispose:
		if _, err := tx.UpdateCulture(deviation.CultureID, func(c *Culture) error {
			c.RiskFlag = true
			c.Status = domain.CultureContaminated
			return nil
		}); err != nil {
			return err
		}
		if deviation.ContainerID != nil {
			containerID := *deviation.ContainerID
			if _, err := tx.UpdateContainer(containerID, func(c *Container) error {
				c.Status = domain.ContainerDisposed
				c.VolumeML = 0
				return nil
			}); err != nil {
				return err
			}
			if _, err := tx.AppendContainerHistory(ContainerHistoryEvent{
				ContainerID: containerID,
				CultureID:   deviation.CultureID,
				Operation:   domain.OperationDispose,
				Detail:      fmt.Sprintf("disposed by QP decision on deviation %s", deviation.Code),
				Actor:       actor,
			}); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

// releaseQualityHold resumes a process parked by a critical failure.
func (s *Service) releaseQualityHold(tx Transaction, processID string) error {
	if processID == "" {
		return nil
	}
	process, ok := tx.Snapshot().FindExecutedProcess(processID)
	if !ok || process.Status != domain.ProcessPausedQualityHold {
		return nil
	}
	if _, err := tx.UpdateExecutedProcess(processID, func(p *ExecutedProcess) error {
		p.Status = domain.ProcessInProgress
		return nil
	}); err != nil {
		return err
	}
	// The parked process may already have run out of pending steps.
	resumed, _ := tx.Snapshot().FindExecutedProcess(processID)
	return s.advance(tx, resumed, ExecutedStep{Status: domain.StepCompleted})
}

// GetProcess returns a process with its ordered steps.
func (s *Service) GetProcess(processID string) (ProcessAggregate, bool) {
	process, ok := s.store.GetExecutedProcess(processID)
	if !ok {
		return ProcessAggregate{}, false
	}
	return ProcessAggregate{Process: process, Steps: s.store.ListProcessSteps(processID)}, true
}

// ListProcesses returns all executed processes.
func (s *Service) ListProcesses() []ExecutedProcess {
	return s.store.ListExecutedProcesses()
}

// ListDeviations returns all deviations.
func (s *Service) ListDeviations() []Deviation {
	return s.store.ListDeviations()
}

// ListTasks returns all tasks.
func (s *Service) ListTasks() []Task {
	return s.store.ListTasks()
}
