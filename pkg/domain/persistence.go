package domain

import (
	"context"
	"fmt"
	"time"
)

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Sequence counters live inside the
// transaction so display codes commit atomically with the rows that carry
// them.
type Transaction interface {
	Now() time.Time
	NextSequence(scope string) (int, error)
	Snapshot() TransactionView
	CreateCulture(Culture) (Culture, error)
	UpdateCulture(id string, mutator func(*Culture) error) (Culture, error)
	CreateContainer(Container) (Container, error)
	UpdateContainer(id string, mutator func(*Container) error) (Container, error)
	CreateProcessTemplate(ProcessTemplate) (ProcessTemplate, error)
	CreateExecutedProcess(ExecutedProcess) (ExecutedProcess, error)
	UpdateExecutedProcess(id string, mutator func(*ExecutedProcess) error) (ExecutedProcess, error)
	CreateExecutedStep(ExecutedStep) (ExecutedStep, error)
	UpdateExecutedStep(id string, mutator func(*ExecutedStep) error) (ExecutedStep, error)
	CreateDeviation(Deviation) (Deviation, error)
	UpdateDeviation(id string, mutator func(*Deviation) error) (Deviation, error)
	CreateTask(Task) (Task, error)
	UpdateTask(id string, mutator func(*Task) error) (Task, error)
	AppendContainerHistory(ContainerHistoryEvent) (ContainerHistoryEvent, error)
}

// TransactionView provides read-only access to snapshot data for rules and
// aggregate reads.
type TransactionView interface {
	RuleView
	ListProcessTemplates() []ProcessTemplate
	ListContainerHistory(containerID string) []ContainerHistoryEvent
	ListCultureHistory(cultureID string) []ContainerHistoryEvent
	ListCultureContainers(cultureID string) []Container
	ListStepDeviations(stepID string) []Deviation
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetCulture(id string) (Culture, bool)
	GetContainer(id string) (Container, bool)
	GetProcessTemplate(id string) (ProcessTemplate, bool)
	GetExecutedProcess(id string) (ExecutedProcess, bool)
	GetExecutedStep(id string) (ExecutedStep, bool)
	ListCultures() []Culture
	ListContainers() []Container
	ListProcessTemplates() []ProcessTemplate
	ListExecutedProcesses() []ExecutedProcess
	ListProcessSteps(processID string) []ExecutedStep
	ListDeviations() []Deviation
	ListTasks() []Task
	ListContainerHistory(containerID string) []ContainerHistoryEvent
	ListCultureHistory(cultureID string) []ContainerHistoryEvent
}

// RepositoryError wraps a storage backend failure surfaced at the store
// boundary, distinguishing infrastructure faults from rule violations and
// caller mistakes.
type RepositoryError struct {
	Op  string
	Err error
}

func (e RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e RepositoryError) Unwrap() error { return e.Err }
