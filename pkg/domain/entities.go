// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by culturecore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityCulture identifies a biological culture lineage root.
	EntityCulture EntityType = "culture"
	// EntityContainer identifies a physical vessel record.
	EntityContainer EntityType = "container"
	// EntityProcessTemplate identifies an immutable procedure definition.
	EntityProcessTemplate EntityType = "process_template"
	// EntityExecutedProcess identifies one run of a template against a culture.
	EntityExecutedProcess EntityType = "executed_process"
	// EntityExecutedStep identifies one instantiated step of a process run.
	EntityExecutedStep EntityType = "executed_step"
	// EntityDeviation identifies a quality-event record.
	EntityDeviation EntityType = "deviation"
	// EntityTask identifies a remediation work item.
	EntityTask EntityType = "task"
	// EntityContainerHistory identifies an append-only lineage audit entry.
	EntityContainerHistory EntityType = "container_history"
)

// CultureStatus enumerates canonical culture lifecycle states.
type CultureStatus string

// Canonical culture statuses driven by lineage operations and QP decisions.
const (
	CultureActive       CultureStatus = "active"
	CultureFrozen       CultureStatus = "frozen"
	CultureHold         CultureStatus = "hold"
	CultureContaminated CultureStatus = "contaminated"
	CultureDisposed     CultureStatus = "disposed"
)

// ContainerStatus enumerates physical vessel states. Containers never revert:
// a lineage operation terminalizes its sources and creates new rows.
type ContainerStatus string

// Canonical container statuses.
const (
	ContainerActive   ContainerStatus = "active"
	ContainerFrozen   ContainerStatus = "frozen"
	ContainerThawed   ContainerStatus = "thawed"
	ContainerDisposed ContainerStatus = "disposed"
	ContainerBlocked  ContainerStatus = "blocked"
)

// ProcessStatus enumerates executed-process workflow states.
type ProcessStatus string

// Canonical process statuses.
const (
	ProcessInProgress        ProcessStatus = "in_progress"
	ProcessCompleted         ProcessStatus = "completed"
	ProcessPaused            ProcessStatus = "paused"
	ProcessAborted           ProcessStatus = "aborted"
	ProcessPausedQualityHold ProcessStatus = "paused_quality_hold"
)

// StepStatus enumerates executed-step states. completed and failed are
// terminal; corrections require a new process run.
type StepStatus string

// Canonical step statuses.
const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// StepType classifies a template step.
type StepType string

// Canonical step types recognised by recording validation.
const (
	StepMeasurement  StepType = "measurement"
	StepManipulation StepType = "manipulation"
	StepIncubation   StepType = "incubation"
	StepObservation  StepType = "observation"
	StepPassage      StepType = "passage"
	StepCellCounting StepType = "cell_counting"
	StepMediaChange  StepType = "media_change"
	StepBanking      StepType = "banking"
)

// DeviationSeverity grades a quality event.
type DeviationSeverity string

// Deviation severities. Critical template steps escalate minor findings.
const (
	DeviationMinor    DeviationSeverity = "minor"
	DeviationMajor    DeviationSeverity = "major"
	DeviationCritical DeviationSeverity = "critical"
)

// DeviationStatus enumerates deviation workflow states.
type DeviationStatus string

// Canonical deviation statuses.
const (
	DeviationOpen   DeviationStatus = "open"
	DeviationClosed DeviationStatus = "closed"
)

// QPDecision is the human adjudication recorded against a deviation.
type QPDecision string

// QP review decisions.
const (
	DecisionContinue   QPDecision = "continue"
	DecisionQuarantine QPDecision = "quarantine"
	DecisionDispose    QPDecision = "dispose"
)

// TaskStatus enumerates remediation task states. Tasks are never auto-resolved.
type TaskStatus string

// Canonical task statuses.
const (
	TaskOpen TaskStatus = "open"
	TaskDone TaskStatus = "done"
)

// LineageOperation classifies a container generation transition.
type LineageOperation string

// Lineage operations recorded in container history.
const (
	OperationPassage    LineageOperation = "passage"
	OperationBank       LineageOperation = "bank"
	OperationThaw       LineageOperation = "thaw"
	OperationDispose    LineageOperation = "dispose"
	OperationQuarantine LineageOperation = "quarantine"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CCARule is one Critical Control Attribute threshold attached to a template
// step: the recorded value of Parameter must not fall below Min.
type CCARule struct {
	Parameter string            `json:"parameter"`
	Min       *float64          `json:"min,omitempty"`
	Expected  *float64          `json:"expected,omitempty"`
	Severity  DeviationSeverity `json:"severity,omitempty"`
}

// CCACheck is the verdict for a single evaluated parameter.
type CCACheck struct {
	Parameter string  `json:"parameter"`
	Recorded  float64 `json:"recorded"`
	Minimum   float64 `json:"minimum"`
	Passed    bool    `json:"passed"`
	Detail    string  `json:"detail"`
}

// CCAResult aggregates all checks from one step evaluation. Evaluation is a
// pure function of rule set and recorded parameters; identical inputs yield
// identical results for audit reproducibility.
type CCAResult struct {
	Passed  bool       `json:"passed"`
	Message string     `json:"message"`
	Checks  []CCACheck `json:"checks"`
}

// TemplateStep is one ordered step definition inside a process template.
type TemplateStep struct {
	ID                      string    `json:"id"`
	StepNumber              int       `json:"step_number"`
	Name                    string    `json:"name"`
	Type                    StepType  `json:"type"`
	Critical                bool      `json:"critical"`
	ExpectedDurationMinutes int       `json:"expected_duration_minutes"`
	RequiresEquipmentScan   bool      `json:"requires_equipment_scan"`
	RequiresSOPConfirmation bool      `json:"requires_sop_confirmation"`
	SOPReference            string    `json:"sop_reference,omitempty"`
	CCARules                []CCARule `json:"cca_rules,omitempty"`
}

// ProcessTemplate is an immutable-versioned procedure definition. Once an
// ExecutedProcess references a template, new versions are new rows.
type ProcessTemplate struct {
	Base
	Code    string         `json:"code"`
	Name    string         `json:"name"`
	Version int            `json:"version"`
	Tags    []string       `json:"tags,omitempty"`
	Steps   []TemplateStep `json:"steps"`
}

// ExecutedProcess is one run of a template against one culture.
type ExecutedProcess struct {
	Base
	Code        string        `json:"code"`
	TemplateID  string        `json:"template_id"`
	CultureID   string        `json:"culture_id"`
	Status      ProcessStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	StartedBy   string        `json:"started_by"`
}

// ExecutedStep is one instantiated step of a process run, 1:1 with a template
// step at creation time. Template metadata is copied onto the step so the
// execution record stays self-contained when templates are versioned.
type ExecutedStep struct {
	Base
	ProcessID               string             `json:"process_id"`
	TemplateStepID          string             `json:"template_step_id"`
	StepNumber              int                `json:"step_number"`
	Name                    string             `json:"name"`
	Type                    StepType           `json:"type"`
	Critical                bool               `json:"critical"`
	ExpectedDurationMinutes int                `json:"expected_duration_minutes"`
	RequiresEquipmentScan   bool               `json:"requires_equipment_scan"`
	RequiresSOPConfirmation bool               `json:"requires_sop_confirmation"`
	CCARules                []CCARule          `json:"cca_rules,omitempty"`
	Status                  StepStatus         `json:"status"`
	StartedAt               *time.Time         `json:"started_at,omitempty"`
	CompletedAt             *time.Time         `json:"completed_at,omitempty"`
	StartedBy               string             `json:"started_by,omitempty"`
	CompletedBy             string             `json:"completed_by,omitempty"`
	Parameters              map[string]float64 `json:"parameters,omitempty"`
	Notes                   string             `json:"notes,omitempty"`
	EquipmentRef            string             `json:"equipment_ref,omitempty"`
	SOPConfirmedAt          *time.Time         `json:"sop_confirmed_at,omitempty"`
	CCAPassed               *bool              `json:"cca_passed,omitempty"`
	CCAResult               *CCAResult         `json:"cca_result,omitempty"`
}

// Elapsed returns the wall time since the step started, zero when pending.
// Display concern only; no transition is driven by elapsed time.
func (s ExecutedStep) Elapsed(now time.Time) time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	if s.CompletedAt != nil {
		return s.CompletedAt.Sub(*s.StartedAt)
	}
	return now.Sub(*s.StartedAt)
}

// Terminal reports whether the step reached completed or failed.
func (s ExecutedStep) Terminal() bool {
	return s.Status == StepCompleted || s.Status == StepFailed
}

// Culture is a biological lineage root.
type Culture struct {
	Base
	Code           string        `json:"code"`
	Name           string        `json:"name"`
	CellLine       string        `json:"cell_line"`
	DonationID     *string       `json:"donation_id,omitempty"`
	CurrentPassage int           `json:"current_passage"`
	Status         CultureStatus `json:"status"`
	RiskFlag       bool          `json:"risk_flag"`
}

// Container is one physical vessel belonging to a culture at a specific
// passage and split index. ParentID forms the lineage edge; rows are
// append-only and never mutated into a new generation.
type Container struct {
	Base
	CultureID         string          `json:"culture_id"`
	ParentID          *string         `json:"parent_container_id,omitempty"`
	Status            ContainerStatus `json:"status"`
	PassageNumber     int             `json:"passage_number"`
	SplitIndex        int             `json:"split_index"`
	ContainerType     string          `json:"container_type"`
	Location          string          `json:"location"`
	VolumeML          float64         `json:"volume_ml"`
	CellConcentration float64         `json:"cell_concentration,omitempty"`
	ViabilityPercent  float64         `json:"viability_percent,omitempty"`
}

// Terminal reports whether the container may no longer act as a lineage source.
func (c Container) Terminal() bool {
	return c.Status == ContainerThawed || c.Status == ContainerDisposed
}

// Deviation is a quality-event record raised automatically on CCA failure and
// resolved by a human QP decision.
type Deviation struct {
	Base
	Code             string            `json:"code"`
	Severity         DeviationSeverity `json:"severity"`
	Status           DeviationStatus   `json:"status"`
	Source           string            `json:"source"`
	Description      string            `json:"description"`
	CultureID        string            `json:"culture_id"`
	ProcessID        string            `json:"process_id,omitempty"`
	StepID           string            `json:"step_id,omitempty"`
	ContainerID      *string           `json:"container_id,omitempty"`
	QPReviewRequired bool              `json:"qp_review_required"`
	Decision         *QPDecision       `json:"decision,omitempty"`
	DecidedBy        string            `json:"decided_by,omitempty"`
	DecidedAt        *time.Time        `json:"decided_at,omitempty"`
}

// Task is a remediation work item generated alongside a deviation.
type Task struct {
	Base
	Title       string            `json:"title"`
	Role        string            `json:"role"`
	Priority    DeviationSeverity `json:"priority"`
	Status      TaskStatus        `json:"status"`
	CultureID   string            `json:"culture_id"`
	StepID      string            `json:"step_id,omitempty"`
	DeviationID string            `json:"deviation_id,omitempty"`
}

// ContainerHistoryEvent is an append-only audit entry describing one lineage
// operation applied to one container, attributable to the acting user.
type ContainerHistoryEvent struct {
	ID          string            `json:"id"`
	ContainerID string            `json:"container_id"`
	CultureID   string            `json:"culture_id"`
	Operation   LineageOperation  `json:"operation"`
	Detail      string            `json:"detail,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Actor       string            `json:"actor"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before ChangePayload
	After  ChangePayload
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
