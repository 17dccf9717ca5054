package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaconflow/beaconflow/internal/models"
)

// ErrWorkflowNotFound is returned for unknown workflow ids
var ErrWorkflowNotFound = errors.New("workflow not found")

// StepAction determines how a step query is built
type StepAction string

const (
	ActionAnalyze   StepAction = "analyze"
	ActionQuestion  StepAction = "question"
	ActionCompare   StepAction = "compare"
	ActionSummarize StepAction = "summarize"
)

// WorkflowStep is one ordered step of a workflow. DependsOn, when set,
// gates execution on earlier results: a false predicate skips the step
// without failing the workflow.
type WorkflowStep struct {
	ID          string
	AgentID     string
	Action      StepAction
	Description string
	DependsOn   func(results map[string]*models.AgentResponse) bool
}

// Workflow is a named, statically registered sequence of steps
type Workflow struct {
	ID          string
	Name        string
	Description string
	Steps       []WorkflowStep
}

// StepStatus represents the outcome of a single step
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepSkipped   StepStatus = "skipped"
	StepFailed    StepStatus = "failed"
)

// StepResult records the outcome of one step execution
type StepResult struct {
	StepID   string                `json:"stepId"`
	AgentID  string                `json:"agentId"`
	Status   StepStatus            `json:"status"`
	Response *models.AgentResponse `json:"response,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// OrchestrationStatus represents a workflow execution's state
type OrchestrationStatus string

const (
	OrchestrationRunning   OrchestrationStatus = "running"
	OrchestrationCompleted OrchestrationStatus = "completed"
	OrchestrationFailed    OrchestrationStatus = "failed"
)

// Orchestration is one execution of a workflow. StepResults holds one
// entry per executed step; skipped steps are absent from the list.
type Orchestration struct {
	ID              string              `json:"id"`
	WorkflowID      string              `json:"workflowId"`
	Status          OrchestrationStatus `json:"status"`
	StepResults     []StepResult        `json:"stepResults"`
	AgentInsights   map[string][]string `json:"agentInsights,omitempty"`
	Conclusions     []string            `json:"conclusions,omitempty"`
	Recommendations []string            `json:"recommendations,omitempty"`
	StartedAt       time.Time           `json:"startedAt"`
	CompletedAt     *time.Time          `json:"completedAt,omitempty"`
}

// Orchestrator executes named workflows over registered agents and
// bridges agents into the conversation manager.
type Orchestrator struct {
	resolver       AgentResolver
	conversations  *ConversationManager
	workflows      map[string]*Workflow
	orchestrations map[string]*Orchestration
	conclusions    map[string][]string // latest conclusions per workflow id
	logger         *zap.Logger
	mu             sync.RWMutex
}

// NewOrchestrator creates an orchestrator with the built-in workflows
// registered and agent message handlers installed.
func NewOrchestrator(resolver AgentResolver, conversations *ConversationManager, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		resolver:       resolver,
		conversations:  conversations,
		workflows:      make(map[string]*Workflow),
		orchestrations: make(map[string]*Orchestration),
		conclusions:    make(map[string][]string),
		logger:         logger.With(zap.String("component", "orchestrator")),
	}

	for _, wf := range builtinWorkflows() {
		o.workflows[wf.ID] = wf
	}

	o.setupAgentHandlers()

	return o
}

// setupAgentHandlers registers every agent as a conversation message
// handler that answers via ProcessQuery.
func (o *Orchestrator) setupAgentHandlers() {
	if o.conversations == nil {
		return
	}

	for _, ag := range o.resolver.All() {
		ag := ag
		o.conversations.RegisterHandler(ag.ID(), func(ctx context.Context, msg *models.Message) (*models.Message, error) {
			resp, err := ag.ProcessQuery(ctx, msg.Content, msg.Data)
			if err != nil {
				return nil, err
			}

			return &models.Message{
				FromAgent: ag.ID(),
				ToAgent:   msg.FromAgent,
				Type:      models.MessageResponse,
				Content:   resp.Content,
				Data:      map[string]interface{}{"response": resp},
			}, nil
		})
	}
}

// RegisterWorkflow adds or replaces a workflow definition
func (o *Orchestrator) RegisterWorkflow(wf *Workflow) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workflows[wf.ID] = wf
}

// Workflows returns the registered workflow definitions
func (o *Orchestrator) Workflows() []*Workflow {
	o.mu.RLock()
	defer o.mu.RUnlock()

	wfs := make([]*Workflow, 0, len(o.workflows))
	for _, wf := range o.workflows {
		wfs = append(wfs, wf)
	}
	return wfs
}

// ExecuteWorkflow runs a workflow's steps in order. A step whose
// dependency predicate is false is skipped; a step error fails the
// orchestration and is returned to the caller.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, workflowID string, params map[string]interface{}) (*Orchestration, error) {
	o.mu.RLock()
	wf, ok := o.workflows[workflowID]
	o.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}

	orch := &Orchestration{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     OrchestrationRunning,
		StartedAt:  time.Now(),
	}

	o.mu.Lock()
	o.orchestrations[orch.ID] = orch
	o.mu.Unlock()

	o.logger.Info("workflow started",
		zap.String("workflow", workflowID),
		zap.String("orchestration", orch.ID))

	results := make(map[string]*models.AgentResponse)
	insights := make(map[string][]string)

	for _, step := range wf.Steps {
		if step.DependsOn != nil && !step.DependsOn(results) {
			// Skipped steps leave no trace in the result list
			o.logger.Info("step skipped",
				zap.String("workflow", workflowID),
				zap.String("step", step.ID))
			continue
		}

		resp, err := o.executeStep(ctx, wf, step, results, params)
		if err != nil {
			o.appendResult(orch, StepResult{StepID: step.ID, AgentID: step.AgentID, Status: StepFailed, Error: err.Error()})
			o.finish(orch, OrchestrationFailed)
			return orch, fmt.Errorf("step %s failed: %w", step.ID, err)
		}

		results[step.ID] = resp
		if len(resp.Suggestions) > 0 {
			insights[step.AgentID] = append(insights[step.AgentID], resp.Suggestions...)
		} else if resp.Content != "" {
			insights[step.AgentID] = append(insights[step.AgentID], truncate(resp.Content, 200))
		}
		o.appendResult(orch, StepResult{StepID: step.ID, AgentID: step.AgentID, Status: StepCompleted, Response: resp})
	}

	o.mu.Lock()
	orch.AgentInsights = insights
	o.mu.Unlock()

	o.conclude(orch, wf, results)
	o.finish(orch, OrchestrationCompleted)

	return orch, nil
}

// executeStep resolves the step's agent and runs its query
func (o *Orchestrator) executeStep(ctx context.Context, wf *Workflow, step WorkflowStep, results map[string]*models.AgentResponse, params map[string]interface{}) (*models.AgentResponse, error) {
	ag, err := o.resolver.Get(step.AgentID)
	if err != nil {
		return nil, err
	}

	return ag.ProcessQuery(ctx, buildStepQuery(wf, step, results), params)
}

// buildStepQuery renders a step into an agent query, embedding prior
// results where the action calls for them. Prior results are walked in
// step declaration order so queries are stable across runs.
func buildStepQuery(wf *Workflow, step WorkflowStep, results map[string]*models.AgentResponse) string {
	switch step.Action {
	case ActionQuestion:
		// Embed a sample of the prior data so the agent can react to it
		var sample []models.Row
		for _, prior := range wf.Steps {
			resp, ok := results[prior.ID]
			if !ok {
				continue
			}
			for _, row := range resp.Data {
				if len(sample) >= 5 {
					break
				}
				sample = append(sample, row)
			}
		}
		if len(sample) > 0 {
			if data, err := json.Marshal(sample); err == nil {
				return fmt.Sprintf("%s\n\nEarlier findings (sample): %s", step.Description, data)
			}
		}
		return step.Description

	case ActionCompare, ActionSummarize:
		query := step.Description
		for _, prior := range wf.Steps {
			if resp, ok := results[prior.ID]; ok {
				query += fmt.Sprintf("\n\nResult of %s: %s", prior.ID, truncate(resp.Content, 300))
			}
		}
		return query

	default: // ActionAnalyze
		return step.Description
	}
}

// conclude derives conclusions and recommendations from step results,
// keyed by workflow id for later retrieval.
func (o *Orchestrator) conclude(orch *Orchestration, wf *Workflow, results map[string]*models.AgentResponse) {
	var conclusions []string
	for _, step := range wf.Steps {
		if resp, ok := results[step.ID]; ok && resp.Content != "" {
			conclusions = append(conclusions, fmt.Sprintf("%s: %s", step.Description, truncate(resp.Content, 200)))
		}
	}

	o.mu.Lock()
	orch.Conclusions = conclusions
	orch.Recommendations = recommendationsFor(wf.Name + " " + wf.Description)
	o.conclusions[wf.ID] = conclusions
	o.mu.Unlock()
}

func (o *Orchestrator) appendResult(orch *Orchestration, result StepResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	orch.StepResults = append(orch.StepResults, result)
}

func (o *Orchestrator) finish(orch *Orchestration, status OrchestrationStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()

	orch.Status = status
	now := time.Now()
	orch.CompletedAt = &now

	o.logger.Info("workflow finished",
		zap.String("orchestration", orch.ID),
		zap.String("status", string(status)))
}

// Get returns an orchestration by id
func (o *Orchestrator) Get(id string) (*Orchestration, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	orch, ok := o.orchestrations[id]
	if !ok {
		return nil, fmt.Errorf("orchestration not found: %s", id)
	}
	return orch, nil
}

// ConclusionsFor returns the latest conclusions for a workflow
func (o *Orchestrator) ConclusionsFor(workflowID string) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.conclusions[workflowID]
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// builtinWorkflows returns the statically registered workflows
func builtinWorkflows() []*Workflow {
	hasData := func(stepID string) func(map[string]*models.AgentResponse) bool {
		return func(results map[string]*models.AgentResponse) bool {
			resp, ok := results[stepID]
			return ok && len(resp.Data) > 0
		}
	}
	completed := func(stepID string) func(map[string]*models.AgentResponse) bool {
		return func(results map[string]*models.AgentResponse) bool {
			_, ok := results[stepID]
			return ok
		}
	}

	return []*Workflow{
		{
			ID:          "revenue-analysis",
			Name:        "Revenue Analysis",
			Description: "Analyze revenue performance and gaps across regions",
			Steps: []WorkflowStep{
				{
					ID:          "revenue-overview",
					AgentID:     "ncc-financial",
					Action:      ActionAnalyze,
					Description: "Summarize total NCC by region and system for the current year",
				},
				{
					ID:          "revenue-gaps",
					AgentID:     "ncc-financial",
					Action:      ActionQuestion,
					Description: "Identify the regions with the largest revenue gaps and explain likely causes",
					DependsOn:   hasData("revenue-overview"),
				},
				{
					ID:          "revenue-comparison",
					AgentID:     "ncc-financial",
					Action:      ActionCompare,
					Description: "Compare the findings and highlight where to focus next month",
					DependsOn:   completed("revenue-overview"),
				},
			},
		},
		{
			ID:          "performance-review",
			Name:        "Performance Review",
			Description: "Review office performance and attendance",
			Steps: []WorkflowStep{
				{
					ID:          "performance-overview",
					AgentID:     "office-performance",
					Action:      ActionAnalyze,
					Description: "Summarize office performance scores and attendance rates",
				},
				{
					ID:          "low-performers",
					AgentID:     "office-performance",
					Action:      ActionQuestion,
					Description: "Identify the three lowest performing offices and possible drivers",
					DependsOn:   hasData("performance-overview"),
				},
			},
		},
		{
			ID:          "cross-source-insights",
			Name:        "Cross Source Insights",
			Description: "Correlate revenue gaps with office performance",
			Steps: []WorkflowStep{
				{
					ID:          "financial-snapshot",
					AgentID:     "ncc-financial",
					Action:      ActionAnalyze,
					Description: "Summarize NCC per region for the last quarter",
				},
				{
					ID:          "performance-snapshot",
					AgentID:     "office-performance",
					Action:      ActionAnalyze,
					Description: "Summarize office performance per region for the last quarter",
				},
				{
					ID:          "correlation",
					AgentID:     "ncc-financial",
					Action:      ActionCompare,
					Description: "Correlate regional revenue with office performance and call out mismatches",
					DependsOn: func(results map[string]*models.AgentResponse) bool {
						_, a := results["financial-snapshot"]
						_, b := results["performance-snapshot"]
						return a && b
					},
				},
			},
		},
	}
}
