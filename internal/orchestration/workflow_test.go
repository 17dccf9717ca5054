package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/beaconflow/beaconflow/internal/models"
)

func sampleRows(n int) []models.Row {
	rows := make([]models.Row, n)
	for i := range rows {
		rows[i] = models.Row{"REGION": "EMEA", "NCC": float64(100 + i)}
	}
	return rows
}

// TestExecuteWorkflowUnknown tests the not-found error
func TestExecuteWorkflowUnknown(t *testing.T) {
	o := NewOrchestrator(newStubResolver(), nil, nil)

	_, err := o.ExecuteWorkflow(context.Background(), "no-such-workflow", nil)
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Fatalf("Expected ErrWorkflowNotFound, got %v", err)
	}
}

// TestExecuteWorkflowAllSteps tests a full run of the builtin revenue workflow
func TestExecuteWorkflowAllSteps(t *testing.T) {
	financial := newStubAgent("ncc-financial",
		stubResponse{content: "NCC summary by region", data: sampleRows(3)},
		stubResponse{content: "EMEA has the largest gap"},
		stubResponse{content: "Focus on EMEA next month"})
	o := NewOrchestrator(newStubResolver(financial), nil, nil)

	orch, err := o.ExecuteWorkflow(context.Background(), "revenue-analysis", nil)
	if err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}

	if orch.Status != OrchestrationCompleted {
		t.Errorf("Expected completed status, got %s", orch.Status)
	}
	if len(orch.StepResults) != 3 {
		t.Fatalf("Expected 3 step results, got %d", len(orch.StepResults))
	}
	for _, result := range orch.StepResults {
		if result.Status != StepCompleted {
			t.Errorf("Step %s: expected completed, got %s", result.StepID, result.Status)
		}
	}
	if orch.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}

	// The question step embeds sample rows from the overview
	if len(financial.queries) != 3 {
		t.Fatalf("Expected 3 queries, got %d", len(financial.queries))
	}
	if !strings.Contains(financial.queries[1], "Earlier findings (sample)") {
		t.Errorf("Expected sample data in question step query, got %q", financial.queries[1])
	}
	// The compare step embeds prior result content
	if !strings.Contains(financial.queries[2], "Result of") {
		t.Errorf("Expected prior results in compare step query, got %q", financial.queries[2])
	}
}

// TestExecuteWorkflowAgentInsights tests per-agent insight collection:
// suggestions when present, truncated content otherwise
func TestExecuteWorkflowAgentInsights(t *testing.T) {
	financial := newStubAgent("ncc-financial",
		stubResponse{content: "NCC summary", data: sampleRows(1), suggestions: []string{"check EMEA pipeline", "review Q3 targets"}},
		stubResponse{content: "EMEA gap detail"},
		stubResponse{content: "comparison"})
	o := NewOrchestrator(newStubResolver(financial), nil, nil)

	orch, err := o.ExecuteWorkflow(context.Background(), "revenue-analysis", nil)
	if err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}

	insights := orch.AgentInsights["ncc-financial"]
	if len(insights) != 4 {
		t.Fatalf("Expected 4 insights for ncc-financial, got %d: %v", len(insights), insights)
	}
	if insights[0] != "check EMEA pipeline" || insights[1] != "review Q3 targets" {
		t.Errorf("Expected suggestions first, got %v", insights[:2])
	}
	if insights[2] != "EMEA gap detail" {
		t.Errorf("Expected content fallback when no suggestions, got %q", insights[2])
	}
}

// TestBuildStepQueryDeclarationOrder tests that prior results are
// embedded in step declaration order regardless of map iteration
func TestBuildStepQueryDeclarationOrder(t *testing.T) {
	wf := &Workflow{
		ID: "ordered",
		Steps: []WorkflowStep{
			{ID: "first", AgentID: "a", Action: ActionAnalyze, Description: "one"},
			{ID: "second", AgentID: "a", Action: ActionAnalyze, Description: "two"},
			{ID: "third", AgentID: "a", Action: ActionAnalyze, Description: "three"},
			{ID: "final", AgentID: "a", Action: ActionCompare, Description: "compare everything"},
		},
	}
	results := map[string]*models.AgentResponse{
		"third":  {Content: "third content"},
		"first":  {Content: "first content"},
		"second": {Content: "second content"},
	}

	for i := 0; i < 20; i++ {
		query := buildStepQuery(wf, wf.Steps[3], results)
		a := strings.Index(query, "Result of first")
		b := strings.Index(query, "Result of second")
		c := strings.Index(query, "Result of third")
		if a == -1 || b == -1 || c == -1 || !(a < b && b < c) {
			t.Fatalf("Expected prior results in declaration order, got %q", query)
		}
	}
}

// TestExecuteWorkflowSummarizeStep tests the summarize action
func TestExecuteWorkflowSummarizeStep(t *testing.T) {
	ag := newStubAgent("custom",
		stubResponse{content: "raw findings"},
		stubResponse{content: "the summary"})
	o := NewOrchestrator(newStubResolver(ag), nil, nil)

	o.RegisterWorkflow(&Workflow{
		ID:   "wrap-up",
		Name: "Wrap Up",
		Steps: []WorkflowStep{
			{ID: "gather", AgentID: "custom", Action: ActionAnalyze, Description: "Gather findings"},
			{ID: "wrap", AgentID: "custom", Action: ActionSummarize, Description: "Summarize the findings"},
		},
	})

	orch, err := o.ExecuteWorkflow(context.Background(), "wrap-up", nil)
	if err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}
	if orch.Status != OrchestrationCompleted {
		t.Errorf("Expected completed status, got %s", orch.Status)
	}
	if len(ag.queries) != 2 {
		t.Fatalf("Expected 2 queries, got %d", len(ag.queries))
	}
	if !strings.Contains(ag.queries[1], "Result of gather: raw findings") {
		t.Errorf("Expected prior result in summarize query, got %q", ag.queries[1])
	}
}

// TestExecuteWorkflowSkipsOnFalsePredicate tests dependency gating
func TestExecuteWorkflowSkipsOnFalsePredicate(t *testing.T) {
	// Overview returns no rows, so the gap step's hasData predicate is false
	financial := newStubAgent("ncc-financial",
		stubResponse{content: "nothing to report"},
		stubResponse{content: "comparison"})
	o := NewOrchestrator(newStubResolver(financial), nil, nil)

	orch, err := o.ExecuteWorkflow(context.Background(), "revenue-analysis", nil)
	if err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}

	if orch.Status != OrchestrationCompleted {
		t.Errorf("Expected completed status despite skip, got %s", orch.Status)
	}

	// The skipped step leaves no entry in the result list
	if len(orch.StepResults) != 2 {
		t.Fatalf("Expected 2 step results, got %d", len(orch.StepResults))
	}
	for _, result := range orch.StepResults {
		if result.StepID == "revenue-gaps" {
			t.Errorf("Expected no result for skipped step, got status %s", result.Status)
		}
		if result.Status != StepCompleted {
			t.Errorf("Step %s: expected completed, got %s", result.StepID, result.Status)
		}
	}
	if orch.StepResults[0].StepID != "revenue-overview" || orch.StepResults[1].StepID != "revenue-comparison" {
		t.Errorf("Unexpected executed steps: %s, %s", orch.StepResults[0].StepID, orch.StepResults[1].StepID)
	}

	// The gap step's agent was never queried for it
	if financial.calls != 2 {
		t.Errorf("Expected 2 agent calls, got %d", financial.calls)
	}
}

// TestExecuteWorkflowStepFailure tests error propagation
func TestExecuteWorkflowStepFailure(t *testing.T) {
	financial := newStubAgent("ncc-financial", stubResponse{err: errors.New("warehouse unreachable")})
	o := NewOrchestrator(newStubResolver(financial), nil, nil)

	orch, err := o.ExecuteWorkflow(context.Background(), "revenue-analysis", nil)
	if err == nil {
		t.Fatal("Expected error from failing step")
	}
	if !strings.Contains(err.Error(), "warehouse unreachable") {
		t.Errorf("Expected step error in returned error, got %v", err)
	}

	if orch.Status != OrchestrationFailed {
		t.Errorf("Expected failed status, got %s", orch.Status)
	}
	if len(orch.StepResults) != 1 {
		t.Fatalf("Expected execution to stop at the failed step, got %d results", len(orch.StepResults))
	}
	if orch.StepResults[0].Status != StepFailed {
		t.Errorf("Expected failed step result, got %s", orch.StepResults[0].Status)
	}
	if orch.StepResults[0].Error == "" {
		t.Error("Expected step error message recorded")
	}
}

// TestExecuteWorkflowMissingAgent tests that an unresolvable step agent fails the run
func TestExecuteWorkflowMissingAgent(t *testing.T) {
	o := NewOrchestrator(newStubResolver(), nil, nil)

	orch, err := o.ExecuteWorkflow(context.Background(), "performance-review", nil)
	if err == nil {
		t.Fatal("Expected error for unregistered step agent")
	}
	if orch.Status != OrchestrationFailed {
		t.Errorf("Expected failed status, got %s", orch.Status)
	}
}

// TestConclusionsKeyedByWorkflow tests conclusion storage and retrieval
func TestConclusionsKeyedByWorkflow(t *testing.T) {
	financial := newStubAgent("ncc-financial",
		stubResponse{content: "overview content", data: sampleRows(1)},
		stubResponse{content: "gap content"},
		stubResponse{content: "comparison content"})
	performance := newStubAgent("office-performance",
		stubResponse{content: "performance content", data: sampleRows(1)},
		stubResponse{content: "low performer content"})
	o := NewOrchestrator(newStubResolver(financial, performance), nil, nil)

	ctx := context.Background()
	if _, err := o.ExecuteWorkflow(ctx, "revenue-analysis", nil); err != nil {
		t.Fatalf("revenue-analysis failed: %v", err)
	}
	if _, err := o.ExecuteWorkflow(ctx, "performance-review", nil); err != nil {
		t.Fatalf("performance-review failed: %v", err)
	}

	revenue := o.ConclusionsFor("revenue-analysis")
	if len(revenue) != 3 {
		t.Errorf("Expected 3 revenue conclusions, got %d", len(revenue))
	}
	performanceConcl := o.ConclusionsFor("performance-review")
	if len(performanceConcl) != 2 {
		t.Errorf("Expected 2 performance conclusions, got %d", len(performanceConcl))
	}
	for _, c := range revenue {
		if strings.Contains(c, "performance") {
			t.Errorf("Revenue conclusions contaminated by other workflow: %q", c)
		}
	}

	if o.ConclusionsFor("never-run") != nil {
		t.Error("Expected nil conclusions for workflow that never ran")
	}
}

// TestRegisterWorkflow tests custom workflow registration
func TestRegisterWorkflow(t *testing.T) {
	ag := newStubAgent("custom", stubResponse{content: "done"})
	o := NewOrchestrator(newStubResolver(ag), nil, nil)

	o.RegisterWorkflow(&Workflow{
		ID:   "custom-flow",
		Name: "Custom",
		Steps: []WorkflowStep{
			{ID: "only", AgentID: "custom", Action: ActionAnalyze, Description: "Do the thing"},
		},
	})

	orch, err := o.ExecuteWorkflow(context.Background(), "custom-flow", nil)
	if err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}
	if orch.Status != OrchestrationCompleted {
		t.Errorf("Expected completed status, got %s", orch.Status)
	}

	found := false
	for _, wf := range o.Workflows() {
		if wf.ID == "custom-flow" {
			found = true
		}
	}
	if !found {
		t.Error("Expected custom workflow in Workflows()")
	}
}

// TestAgentHandlersBridge tests that registered agents answer conversations
func TestAgentHandlersBridge(t *testing.T) {
	d := NewDispatcher(nil)
	defer d.Shutdown(5 * time.Second)

	cm := NewConversationManager(d, nil)
	ag := newStubAgent("ncc-financial", stubResponse{content: "bridged answer"})
	NewOrchestrator(newStubResolver(ag), cm, nil)

	conv, err := cm.StartConversation(context.Background(), "user", []string{"ncc-financial"}, "revenue", "How is revenue?")
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}
	d.Drain()

	got, _ := cm.Get(conv.ID)
	if got.Status != ConversationCompleted {
		t.Errorf("Expected completed conversation, got %s", got.Status)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(got.Messages))
	}
	reply := got.Messages[1]
	if reply.Content != "bridged answer" {
		t.Errorf("Expected agent content in reply, got %q", reply.Content)
	}
	if reply.Type != models.MessageResponse {
		t.Errorf("Expected response type, got %s", reply.Type)
	}
	if _, ok := reply.Data["response"]; !ok {
		t.Error("Expected full agent response in message data")
	}
}
