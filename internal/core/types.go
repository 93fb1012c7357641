// Package core implements the process execution engine: process orchestration,
// step state transitions, critical control attribute evaluation, deviation
// generation, and container lineage operations.
package core

import "culturecore/pkg/domain"

type (
	// Culture aliases domain.Culture.
	Culture = domain.Culture
	// Container aliases domain.Container.
	Container = domain.Container
	// ProcessTemplate aliases domain.ProcessTemplate.
	ProcessTemplate = domain.ProcessTemplate
	// TemplateStep aliases domain.TemplateStep.
	TemplateStep = domain.TemplateStep
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
	// CCARule aliases domain.CCARule.
	CCARule = domain.CCARule
	// CCAResult aliases domain.CCAResult.
	CCAResult = domain.CCAResult
	// Change aliases domain.Change.
	Change = domain.Change
	// Result aliases domain.Result.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Rule aliases domain.Rule.
	Rule = domain.Rule
	// EntityType aliases domain.EntityType.
	EntityType = domain.EntityType
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
	// StepRecording aliases domain.StepRecording.
	StepRecording = domain.StepRecording
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(StepSequenceRule())
	engine.Register(LifecycleTransitionRule())
	engine.Register(LineageIntegrityRule())
	return engine
}
