// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"culturecore/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Culture aliases domain.Culture for in-memory persistence operations.
	Culture = domain.Culture
	// Container aliases domain.Container.
	Container = domain.Container
	// ProcessTemplate aliases domain.ProcessTemplate.
	ProcessTemplate = domain.ProcessTemplate
	// ExecutedProcess aliases domain.ExecutedProcess.
	ExecutedProcess = domain.ExecutedProcess
	// ExecutedStep aliases domain.ExecutedStep.
	ExecutedStep = domain.ExecutedStep
	// Deviation aliases domain.Deviation.
	Deviation = domain.Deviation
	// Task aliases domain.Task.
	Task = domain.Task
	// ContainerHistoryEvent aliases domain.ContainerHistoryEvent.
	ContainerHistoryEvent = domain.ContainerHistoryEvent
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	cultures   map[string]Culture
	containers map[string]Container
	templates  map[string]ProcessTemplate
	processes  map[string]ExecutedProcess
	steps      map[string]ExecutedStep
	deviations map[string]Deviation
	tasks      map[string]Task
	history    map[string]ContainerHistoryEvent
	sequences  map[string]int
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Cultures   map[string]Culture               `json:"cultures"`
	Containers map[string]Container             `json:"containers"`
	Templates  map[string]ProcessTemplate       `json:"templates"`
	Processes  map[string]ExecutedProcess       `json:"processes"`
	Steps      map[string]ExecutedStep          `json:"steps"`
	Deviations map[string]Deviation             `json:"deviations"`
	Tasks      map[string]Task                  `json:"tasks"`
	History    map[string]ContainerHistoryEvent `json:"history"`
	Sequences  map[string]int                   `json:"sequences"`
}

func newMemoryState() memoryState {
	return memoryState{
		cultures:   make(map[string]Culture),
		containers: make(map[string]Container),
		templates:  make(map[string]ProcessTemplate),
		processes:  make(map[string]ExecutedProcess),
		steps:      make(map[string]ExecutedStep),
		deviations: make(map[string]Deviation),
		tasks:      make(map[string]Task),
		history:    make(map[string]ContainerHistoryEvent),
		sequences:  make(map[string]int),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Cultures:   make(map[string]Culture, len(state.cultures)),
		Containers: make(map[string]Container, len(state.containers)),
		Templates:  make(map[string]ProcessTemplate, len(state.templates)),
		Processes:  make(map[string]ExecutedProcess, len(state.processes)),
		Steps:      make(map[string]ExecutedStep, len(state.steps)),
		Deviations: make(map[string]Deviation, len(state.deviations)),
		Tasks:      make(map[string]Task, len(state.tasks)),
		History:    make(map[string]ContainerHistoryEvent, len(state.history)),
		Sequences:  make(map[string]int, len(state.sequences)),
	}
	for k, v := range state.cultures {
		s.Cultures[k] = cloneCulture(v)
	}
	for k, v := range state.containers {
		s.Containers[k] = cloneContainer(v)
	}
	for k, v := range state.templates {
		s.Templates[k] = cloneTemplate(v)
	}
	for k, v := range state.processes {
		s.Processes[k] = cloneProcess(v)
	}
	for k, v := range state.steps {
		s.Steps[k] = cloneStep(v)
	}
	for k, v := range state.deviations {
		s.Deviations[k] = cloneDeviation(v)
	}
	for k, v := range state.tasks {
		s.Tasks[k] = cloneTask(v)
	}
	for k, v := range state.history {
		s.History[k] = cloneHistory(v)
	}
	for k, v := range state.sequences {
		s.Sequences[k] = v
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Cultures {
		state.cultures[k] = cloneCulture(v)
	}
	for k, v := range s.Containers {
		state.containers[k] = cloneContainer(v)
	}
	for k, v := range s.Templates {
		state.templates[k] = cloneTemplate(v)
	}
	for k, v := range s.Processes {
		state.processes[k] = cloneProcess(v)
	}
	for k, v := range s.Steps {
		state.steps[k] = cloneStep(v)
	}
	for k, v := range s.Deviations {
		state.deviations[k] = cloneDeviation(v)
	}
	for k, v := range s.Tasks {
		state.tasks[k] = cloneTask(v)
	}
	for k, v := range s.History {
		state.history[k] = cloneHistory(v)
	}
	for k, v := range s.Sequences {
		state.sequences[k] = v
	}
	return state
}

// migrateSnapshot drops rows whose owning aggregate vanished so that a stale
// snapshot cannot resurrect dangling references.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Cultures == nil {
		snapshot.Cultures = map[string]Culture{}
	}
	if snapshot.Containers == nil {
		snapshot.Containers = map[string]Container{}
	}
	if snapshot.Templates == nil {
		snapshot.Templates = map[string]ProcessTemplate{}
	}
	if snapshot.Processes == nil {
		snapshot.Processes = map[string]ExecutedProcess{}
	}
	if snapshot.Steps == nil {
		snapshot.Steps = map[string]ExecutedStep{}
	}
	if snapshot.Deviations == nil {
		snapshot.Deviations = map[string]Deviation{}
	}
	if snapshot.Tasks == nil {
		snapshot.Tasks = map[string]Task{}
	}
	if snapshot.History == nil {
		snapshot.History = map[string]ContainerHistoryEvent{}
	}
	if snapshot.Sequences == nil {
		snapshot.Sequences = map[string]int{}
	}

	cultureExists := func(id string) bool {
		_, ok := snapshot.Cultures[id]
		return ok
	}
	processExists := func(id string) bool {
		_, ok := snapshot.Processes[id]
		return ok
	}

	for id, container := range snapshot.Containers {
		if container.CultureID == "" || !cultureExists(container.CultureID) {
			delete(snapshot.Containers, id)
		}
	}
	for id, process := range snapshot.Processes {
		if process.CultureID == "" || !cultureExists(process.CultureID) {
			delete(snapshot.Processes, id)
		}
	}
	for id, step := range snapshot.Steps {
		if step.ProcessID == "" || !processExists(step.ProcessID) {
			delete(snapshot.Steps, id)
		}
	}
	for id, event := range snapshot.History {
		if event.CultureID == "" || !cultureExists(event.CultureID) {
			delete(snapshot.History, id)
		}
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.cultures {
		cloned.cultures[k] = cloneCulture(v)
	}
	for k, v := range s.containers {
		cloned.containers[k] = cloneContainer(v)
	}
	for k, v := range s.templates {
		cloned.templates[k] = cloneTemplate(v)
	}
	for k, v := range s.processes {
		cloned.processes[k] = cloneProcess(v)
	}
	for k, v := range s.steps {
		cloned.steps[k] = cloneStep(v)
	}
	for k, v := range s.deviations {
		cloned.deviations[k] = cloneDeviation(v)
	}
	for k, v := range s.tasks {
		cloned.tasks[k] = cloneTask(v)
	}
	for k, v := range s.history {
		cloned.history[k] = cloneHistory(v)
	}
	for k, v := range s.sequences {
		cloned.sequences[k] = v
	}
	return cloned
}

func cloneCulture(c Culture) Culture {
	cp := c
	if c.DonationID != nil {
		v := *c.DonationID
		cp.DonationID = &v
	}
	return cp
}

func cloneContainer(c Container) Container {
	cp := c
	if c.ParentID != nil {
		v := *c.ParentID
		cp.ParentID = &v
	}
	return cp
}

func cloneTemplate(t ProcessTemplate) ProcessTemplate {
	cp := t
	cp.Tags = append([]string(nil), t.Tags...)
	cp.Steps = make([]domain.TemplateStep, len(t.Steps))
	for i, step := range t.Steps {
		cp.Steps[i] = step
		cp.Steps[i].CCARules = append([]domain.CCARule(nil), step.CCARules...)
	}
	return cp
}

func cloneProcess(p ExecutedProcess) ExecutedProcess {
	cp := p
	if p.CompletedAt != nil {
		v := *p.CompletedAt
		cp.CompletedAt = &v
	}
	return cp
}

func cloneStep(s ExecutedStep) ExecutedStep {
	cp := s
	cp.CCARules = append([]domain.CCARule(nil), s.CCARules...)
	if s.Parameters != nil {
		cp.Parameters = make(map[string]float64, len(s.Parameters))
		for k, v := range s.Parameters {
			cp.Parameters[k] = v
		}
	}
	if s.StartedAt != nil {
		v := *s.StartedAt
		cp.StartedAt = &v
	}
	if s.CompletedAt != nil {
		v := *s.CompletedAt
		cp.CompletedAt = &v
	}
	if s.SOPConfirmedAt != nil {
		v := *s.SOPConfirmedAt
		cp.SOPConfirmedAt = &v
	}
	if s.CCAPassed != nil {
		v := *s.CCAPassed
		cp.CCAPassed = &v
	}
	if s.CCAResult != nil {
		res := *s.CCAResult
		res.Checks = append([]domain.CCACheck(nil), s.CCAResult.Checks...)
		cp.CCAResult = &res
	}
	return cp
}

func cloneDeviation(d Deviation) Deviation {
	cp := d
	if d.ContainerID != nil {
		v := *d.ContainerID
		cp.ContainerID = &v
	}
	if d.Decision != nil {
		v := *d.Decision
		cp.Decision = &v
	}
	if d.DecidedAt != nil {
		v := *d.DecidedAt
		cp.DecidedAt = &v
	}
	return cp
}

func cloneTask(t Task) Task { return t }

func cloneHistory(e ContainerHistoryEvent) ContainerHistoryEvent {
	cp := e
	if e.Parameters != nil {
		cp.Parameters = make(map[string]string, len(e.Parameters))
		for k, v := range e.Parameters {
			cp.Parameters[k] = v
		}
	}
	return cp
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine for integration points.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the time provider; tests pin it for deterministic stamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Registered rules evaluate against the mutated snapshot; blocking violations
// discard the whole mutation set.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) Now() time.Time { return tx.now }

// NextSequence increments and returns the named counter. Counters commit with
// the transaction, so minted display codes cannot collide or leak on rollback.
func (tx *transaction) NextSequence(scope string) (int, error) {
	if scope == "" {
		return 0, fmt.Errorf("sequence scope must not be empty")
	}
	tx.state.sequences[scope]++
	return tx.state.sequences[scope], nil
}

func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) recordChange(entity domain.EntityType, action domain.Action, before, after any) error {
	change := Change{Entity: entity, Action: action,
		Before: domain.UndefinedChangePayload(), After: domain.UndefinedChangePayload()}
	if before != nil {
		payload, err := domain.NewChangePayloadFromValue(before)
		if err != nil {
			return fmt.Errorf("encode %s before payload: %w", entity, err)
		}
		change.Before = payload
	}
	if after != nil {
		payload, err := domain.NewChangePayloadFromValue(after)
		if err != nil {
			return fmt.Errorf("encode %s after payload: %w", entity, err)
		}
		change.After = payload
	}
	tx.changes = append(tx.changes, change)
	return nil
}

// CreateCulture stores a new culture within the transaction.
func (tx *transaction) CreateCulture(c Culture) (Culture, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.cultures[c.ID]; exists {
		return Culture{}, fmt.Errorf("culture %q already exists", c.ID)
	}
	if c.Status == "" {
		c.Status = domain.CultureActive
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.cultures[c.ID] = cloneCulture(c)
	if err := tx.recordChange(domain.EntityCulture, domain.ActionCreate, nil, cloneCulture(c)); err != nil {
		return Culture{}, err
	}
	return cloneCulture(c), nil
}

// UpdateCulture mutates a culture using the provided mutator function.
func (tx *transaction) UpdateCulture(id string, mutator func(*Culture) error) (Culture, error) {
	current, ok := tx.state.cultures[id]
	if !ok {
		return Culture{}, fmt.Errorf("culture %q not found", id)
	}
	before := cloneCulture(current)
	if err := mutator(&current); err != nil {
		return Culture{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.cultures[id] = cloneCulture(current)
	if err := tx.recordChange(domain.EntityCulture, domain.ActionUpdate, before, cloneCulture(current)); err != nil {
		return Culture{}, err
	}
	return cloneCulture(current), nil
}

// CreateContainer stores a new container row.
func (tx *transaction) CreateContainer(c Container) (Container, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.containers[c.ID]; exists {
		return Container{}, fmt.Errorf("container %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.containers[c.ID] = cloneContainer(c)
	if err := tx.recordChange(domain.EntityContainer, domain.ActionCreate, nil, cloneContainer(c)); err != nil {
		return Container{}, err
	}
	return cloneContainer(c), nil
}

// UpdateContainer mutates an existing container.
func (tx *transaction) UpdateContainer(id string, mutator func(*Container) error) (Container, error) {
	current, ok := tx.state.containers[id]
	if !ok {
		return Container{}, fmt.Errorf("container %q not found", id)
	}
	before := cloneContainer(current)
	if err := mutator(&current); err != nil {
		return Container{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.containers[id] = cloneContainer(current)
	if err := tx.recordChange(domain.EntityContainer, domain.ActionUpdate, before, cloneContainer(current)); err != nil {
		return Container{}, err
	}
	return cloneContainer(current), nil
}

// CreateProcessTemplate stores a template definition. Templates are immutable
// once referenced; there is deliberately no update operation.
func (tx *transaction) CreateProcessTemplate(t ProcessTemplate) (ProcessTemplate, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.templates[t.ID]; exists {
		return ProcessTemplate{}, fmt.Errorf("process template %q already exists", t.ID)
	}
	if t.Version <= 0 {
		t.Version = 1
	}
	for i := range t.Steps {
		if t.Steps[i].ID == "" {
			t.Steps[i].ID = tx.store.newID()
		}
		if t.Steps[i].StepNumber == 0 {
			t.Steps[i].StepNumber = i + 1
		}
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.templates[t.ID] = cloneTemplate(t)
	if err := tx.recordChange(domain.EntityProcessTemplate, domain.ActionCreate, nil, cloneTemplate(t)); err != nil {
		return ProcessTemplate{}, err
	}
	return cloneTemplate(t), nil
}

// CreateExecutedProcess stores a process run.
func (tx *transaction) CreateExecutedProcess(p ExecutedProcess) (ExecutedProcess, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.processes[p.ID]; exists {
		return ExecutedProcess{}, fmt.Errorf("executed process %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.processes[p.ID] = cloneProcess(p)
	if err := tx.recordChange(domain.EntityExecutedProcess, domain.ActionCreate, nil, cloneProcess(p)); err != nil {
		return ExecutedProcess{}, err
	}
	return cloneProcess(p), nil
}

// UpdateExecutedProcess mutates a process run.
func (tx *transaction) UpdateExecutedProcess(id string, mutator func(*ExecutedProcess) error) (ExecutedProcess, error) {
	current, ok := tx.state.processes[id]
	if !ok {
		return ExecutedProcess{}, fmt.Errorf("executed process %q not found", id)
	}
	before := cloneProcess(current)
	if err := mutator(&current); err != nil {
		return ExecutedProcess{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.processes[id] = cloneProcess(current)
	if err := tx.recordChange(domain.EntityExecutedProcess, domain.ActionUpdate, before, cloneProcess(current)); err != nil {
		return ExecutedProcess{}, err
	}
	return cloneProcess(current), nil
}

// CreateExecutedStep stores an instantiated step.
func (tx *transaction) CreateExecutedStep(st ExecutedStep) (ExecutedStep, error) {
	if st.ID == "" {
		st.ID = tx.store.newID()
	}
	if _, exists := tx.state.steps[st.ID]; exists {
		return ExecutedStep{}, fmt.Errorf("executed step %q already exists", st.ID)
	}
	if st.Status == "" {
		st.Status = domain.StepPending
	}
	st.CreatedAt = tx.now
	st.UpdatedAt = tx.now
	tx.state.steps[st.ID] = cloneStep(st)
	if err := tx.recordChange(domain.EntityExecutedStep, domain.ActionCreate, nil, cloneStep(st)); err != nil {
		return ExecutedStep{}, err
	}
	return cloneStep(st), nil
}

// UpdateExecutedStep mutates an instantiated step.
func (tx *transaction) UpdateExecutedStep(id string, mutator func(*ExecutedStep) error) (ExecutedStep, error) {
	current, ok := tx.state.steps[id]
	if !ok {
		return ExecutedStep{}, fmt.Errorf("executed step %q not found", id)
	}
	before := cloneStep(current)
	if err := mutator(&current); err != nil {
		return ExecutedStep{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.steps[id] = cloneStep(current)
	if err := tx.recordChange(domain.EntityExecutedStep, domain.ActionUpdate, before, cloneStep(current)); err != nil {
		return ExecutedStep{}, err
	}
	return cloneStep(current), nil
}

// CreateDeviation stores a quality-event record.
func (tx *transaction) CreateDeviation(d Deviation) (Deviation, error) {
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.deviations[d.ID]; exists {
		return Deviation{}, fmt.Errorf("deviation %q already exists", d.ID)
	}
	if d.Status == "" {
		d.Status = domain.DeviationOpen
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.deviations[d.ID] = cloneDeviation(d)
	if err := tx.recordChange(domain.EntityDeviation, domain.ActionCreate, nil, cloneDeviation(d)); err != nil {
		return Deviation{}, err
	}
	return cloneDeviation(d), nil
}

// UpdateDeviation mutates a deviation record.
func (tx *transaction) UpdateDeviation(id string, mutator func(*Deviation) error) (Deviation, error) {
	current, ok := tx.state.deviations[id]
	if !ok {
		return Deviation{}, fmt.Errorf("deviation %q not found", id)
	}
	before := cloneDeviation(current)
	if err := mutator(&current); err != nil {
		return Deviation{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.deviations[id] = cloneDeviation(current)
	if err := tx.recordChange(domain.EntityDeviation, domain.ActionUpdate, before, cloneDeviation(current)); err != nil {
		return Deviation{}, err
	}
	return cloneDeviation(current), nil
}

// CreateTask stores a remediation task.
func (tx *transaction) CreateTask(t Task) (Task, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.tasks[t.ID]; exists {
		return Task{}, fmt.Errorf("task %q already exists", t.ID)
	}
	if t.Status == "" {
		t.Status = domain.TaskOpen
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.tasks[t.ID] = cloneTask(t)
	if err := tx.recordChange(domain.EntityTask, domain.ActionCreate, nil, cloneTask(t)); err != nil {
		return Task{}, err
	}
	return cloneTask(t), nil
}

// UpdateTask mutates a task record.
func (tx *transaction) UpdateTask(id string, mutator func(*Task) error) (Task, error) {
	current, ok := tx.state.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("task %q not found", id)
	}
	before := cloneTask(current)
	if err := mutator(&current); err != nil {
		return Task{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.tasks[id] = cloneTask(current)
	if err := tx.recordChange(domain.EntityTask, domain.ActionUpdate, before, cloneTask(current)); err != nil {
		return Task{}, err
	}
	return cloneTask(current), nil
}

// AppendContainerHistory stores an append-only lineage audit entry. History
// rows are never updated or deleted.
func (tx *transaction) AppendContainerHistory(e ContainerHistoryEvent) (ContainerHistoryEvent, error) {
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.history[e.ID]; exists {
		return ContainerHistoryEvent{}, fmt.Errorf("history event %q already exists", e.ID)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = tx.now
	}
	tx.state.history[e.ID] = cloneHistory(e)
	if err := tx.recordChange(domain.EntityContainerHistory, domain.ActionCreate, nil, cloneHistory(e)); err != nil {
		return ContainerHistoryEvent{}, err
	}
	return cloneHistory(e), nil
}
