package core

import (
	"context"
	"sync"
	"time"

	"culturecore/internal/infra/persistence/memory"
	"culturecore/pkg/domain"
)

// Service drives process execution and lineage operations against a
// persistent store. All mutations run inside a single store transaction so a
// step completion commits its status, recorded parameters, CCA verdict, and
// any generated deviation and task together or not at all.
type Service struct {
	store    PersistentStore
	logger   Logger
	audit    AuditRecorder
	metrics  MetricsRecorder
	tracer   Tracer
	notifier Notifier
	clock    Clock

	// holdOnCriticalFailure switches the orchestrator from "always advances"
	// to parking the process in paused_quality_hold when a critical step
	// fails its CCA evaluation.
	holdOnCriticalFailure bool

	mu           sync.Mutex
	cultureLocks map[string]*sync.Mutex
}

// ServiceOption customises service construction.
type ServiceOption func(*Service)

// WithLogger installs a logger; nil is ignored.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit recorder; nil is ignored.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithMetricsRecorder installs a metrics recorder; nil is ignored.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer installs a tracer; nil is ignored.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithNotifier installs a notifier; nil is ignored.
func WithNotifier(notifier Notifier) ServiceOption {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithClock overrides the service clock; nil is ignored.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithQualityHoldOnCriticalFailure makes a failing critical step park its
// process in paused_quality_hold instead of advancing.
func WithQualityHoldOnCriticalFailure(enabled bool) ServiceOption {
	return func(s *Service) {
		s.holdOnCriticalFailure = enabled
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:        store,
		logger:       noopLogger{},
		audit:        noopAuditRecorder{},
		metrics:      noopMetricsRecorder{},
		tracer:       noopTracer{},
		notifier:     noopNotifier{},
		clock:        ClockFunc(func() time.Time { return time.Now().UTC() }),
		cultureLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service with an in-memory store and the given
// rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// cultureLock returns the advisory mutex serializing process starts and
// lineage operations for one culture.
func (s *Service) cultureLock(cultureID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.cultureLocks[cultureID]
	if !ok {
		lock = &sync.Mutex{}
		s.cultureLocks[cultureID] = lock
	}
	return lock
}

type auditOperation struct {
	entity domain.EntityType
	action domain.Action
}

var auditOperations = map[string]auditOperation{
	"create_culture":          {domain.EntityCulture, domain.ActionCreate},
	"create_container":        {domain.EntityContainer, domain.ActionCreate},
	"create_process_template": {domain.EntityProcessTemplate, domain.ActionCreate},
	"start_process":           {domain.EntityExecutedProcess, domain.ActionCreate},
	"start_step":              {domain.EntityExecutedStep, domain.ActionUpdate},
	"complete_step":           {domain.EntityExecutedStep, domain.ActionUpdate},
	"resolve_deviation":       {domain.EntityDeviation, domain.ActionUpdate},
	"passage_culture":         {domain.EntityCulture, domain.ActionUpdate},
	"bank_culture":            {domain.EntityCulture, domain.ActionUpdate},
	"thaw_culture":            {domain.EntityCulture, domain.ActionUpdate},
}

func (s *Service) recordAuditSuccess(ctx context.Context, operation, entityID string, duration time.Duration) {
	meta, ok := auditOperations[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	})
}

func (s *Service) recordAuditError(ctx context.Context, operation, entityID string, duration time.Duration, opErr error) {
	meta, ok := auditOperations[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusError,
		Error:     opErr.Error(),
		Duration:  duration,
		Timestamp: s.clock.Now(),
	})
}

// begin opens an instrumented operation scope. The returned finish func must
// be called exactly once with the affected entity id and the final error.
func (s *Service) begin(ctx context.Context, operation string) (context.Context, func(entityID string, err error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	return ctx, func(entityID string, err error) {
		duration := time.Since(start)
		span.End(err)
		s.metrics.Observe(ctx, operation, err == nil, duration)
		if err != nil {
			s.recordAuditError(ctx, operation, entityID, duration, err)
			s.logger.Error("operation failed", "operation", operation, "entity_id", entityID, "error", err)
			return
		}
		s.recordAuditSuccess(ctx, operation, entityID, duration)
		s.logger.Debug("operation committed", "operation", operation, "entity_id", entityID)
	}
}

// CreateCulture persists a new culture record.
func (s *Service) CreateCulture(ctx context.Context, culture Culture) (Culture, Result, error) {
	ctx, finish := s.begin(ctx, "create_culture")
	var created Culture
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var txErr error
		created, txErr = tx.CreateCulture(culture)
		return txErr
	})
	finish(created.ID, err)
	return created, res, err
}

// CreateContainer persists a new container record after validating its
// culture reference.
func (s *Service) CreateContainer(ctx context.Context, container Container) (Container, Result, error) {
	ctx, finish := s.begin(ctx, "create_container")
	var created Container
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindCulture(container.CultureID); !ok {
			return ValidationError{Entity: domain.EntityCulture, ID: container.CultureID, Reason: "unknown culture"}
		}
		var txErr error
		created, txErr = tx.CreateContainer(container)
		return txErr
	})
	finish(created.ID, err)
	return created, res, err
}

// CreateProcessTemplate persists an immutable procedure definition.
func (s *Service) CreateProcessTemplate(ctx context.Context, template ProcessTemplate) (ProcessTemplate, Result, error) {
	ctx, finish := s.begin(ctx, "create_process_template")
	var created ProcessTemplate
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if len(template.Steps) == 0 {
			return ValidationError{Entity: domain.EntityProcessTemplate, Reason: "template requires at least one step"}
		}
		var txErr error
		created, txErr = tx.CreateProcessTemplate(template)
		return txErr
	})
	finish(created.ID, err)
	return created, res, err
}
