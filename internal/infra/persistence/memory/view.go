package memory

import (
	"sort"

	"culturecore/pkg/domain"
)

// transactionView exposes a read-only snapshot of the transactional state to
// rules and aggregate reads.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListCultures returns all cultures within the snapshot.
func (v transactionView) ListCultures() []Culture {
	out := make([]Culture, 0, len(v.state.cultures))
	for _, c := range v.state.cultures {
		out = append(out, cloneCulture(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListContainers returns all containers in the snapshot.
func (v transactionView) ListContainers() []Container {
	out := make([]Container, 0, len(v.state.containers))
	for _, c := range v.state.containers {
		out = append(out, cloneContainer(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListCultureContainers returns the containers belonging to one culture,
// ordered by passage number then split index.
func (v transactionView) ListCultureContainers(cultureID string) []Container {
	var out []Container
	for _, c := range v.state.containers {
		if c.CultureID == cultureID {
			out = append(out, cloneContainer(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PassageNumber != out[j].PassageNumber {
			return out[i].PassageNumber < out[j].PassageNumber
		}
		if out[i].SplitIndex != out[j].SplitIndex {
			return out[i].SplitIndex < out[j].SplitIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListProcessTemplates returns all template definitions.
func (v transactionView) ListProcessTemplates() []ProcessTemplate {
	out := make([]ProcessTemplate, 0, len(v.state.templates))
	for _, t := range v.state.templates {
		out = append(out, cloneTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListExecutedProcesses returns all process runs.
func (v transactionView) ListExecutedProcesses() []ExecutedProcess {
	out := make([]ExecutedProcess, 0, len(v.state.processes))
	for _, p := range v.state.processes {
		out = append(out, cloneProcess(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListProcessSteps returns the steps of one process ordered by step number,
// which equals creation order.
func (v transactionView) ListProcessSteps(processID string) []ExecutedStep {
	var out []ExecutedStep
	for _, st := range v.state.steps {
		if st.ProcessID == processID {
			out = append(out, cloneStep(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out
}

// ListDeviations returns all deviations in the snapshot.
func (v transactionView) ListDeviations() []Deviation {
	out := make([]Deviation, 0, len(v.state.deviations))
	for _, d := range v.state.deviations {
		out = append(out, cloneDeviation(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListStepDeviations returns the deviations linked to one executed step.
func (v transactionView) ListStepDeviations(stepID string) []Deviation {
	var out []Deviation
	for _, d := range v.state.deviations {
		if d.StepID == stepID {
			out = append(out, cloneDeviation(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListTasks returns all tasks in the snapshot.
func (v transactionView) ListTasks() []Task {
	out := make([]Task, 0, len(v.state.tasks))
	for _, t := range v.state.tasks {
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListContainerHistory returns the audit entries of one container in
// chronological order.
func (v transactionView) ListContainerHistory(containerID string) []ContainerHistoryEvent {
	var out []ContainerHistoryEvent
	for _, e := range v.state.history {
		if e.ContainerID == containerID {
			out = append(out, cloneHistory(e))
		}
	}
	sortHistory(out)
	return out
}

// ListCultureHistory returns all audit entries of one culture's containers in
// chronological order.
func (v transactionView) ListCultureHistory(cultureID string) []ContainerHistoryEvent {
	var out []ContainerHistoryEvent
	for _, e := range v.state.history {
		if e.CultureID == cultureID {
			out = append(out, cloneHistory(e))
		}
	}
	sortHistory(out)
	return out
}

func sortHistory(events []ContainerHistoryEvent) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].OccurredAt.Equal(events[j].OccurredAt) {
			return events[i].OccurredAt.Before(events[j].OccurredAt)
		}
		return events[i].ID < events[j].ID
	})
}

// FindCulture retrieves a culture by ID from the snapshot.
func (v transactionView) FindCulture(id string) (Culture, bool) {
	c, ok := v.state.cultures[id]
	if !ok {
		return Culture{}, false
	}
	return cloneCulture(c), true
}

// FindContainer retrieves a container by ID from the snapshot.
func (v transactionView) FindContainer(id string) (Container, bool) {
	c, ok := v.state.containers[id]
	if !ok {
		return Container{}, false
	}
	return cloneContainer(c), true
}

// FindProcessTemplate retrieves a template by ID from the snapshot.
func (v transactionView) FindProcessTemplate(id string) (ProcessTemplate, bool) {
	t, ok := v.state.templates[id]
	if !ok {
		return ProcessTemplate{}, false
	}
	return cloneTemplate(t), true
}

// FindExecutedProcess retrieves a process run by ID from the snapshot.
func (v transactionView) FindExecutedProcess(id string) (ExecutedProcess, bool) {
	p, ok := v.state.processes[id]
	if !ok {
		return ExecutedProcess{}, false
	}
	return cloneProcess(p), true
}

// FindExecutedStep retrieves an executed step by ID from the snapshot.
func (v transactionView) FindExecutedStep(id string) (ExecutedStep, bool) {
	st, ok := v.state.steps[id]
	if !ok {
		return ExecutedStep{}, false
	}
	return cloneStep(st), true
}

var _ domain.TransactionView = transactionView{}
