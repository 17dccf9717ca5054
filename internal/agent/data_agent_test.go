package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/beaconflow/beaconflow/internal/models"
)

// TestProcessQueryWithData tests the full query -> SQL -> rows path
func TestProcessQueryWithData(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"needsData": true, "sql": "SELECT REGION, SUM(NCC) FROM NCC_AGENT GROUP BY REGION", "explanation": "NCC by region", "confidence": 0.85, "suggestions": ["Compare to last month"]}`,
	}}
	connector := &fakeConnector{
		connected: true,
		rows:      []models.Row{{"REGION": "EMEA", "NCC": 100.0}},
	}

	agent, err := NewDataSourceAgent(&DataSourceAgentConfig{
		Model:     testModel("ncc-financial"),
		Completer: completer,
		Connector: connector,
	})
	if err != nil {
		t.Fatalf("Failed to create agent: %v", err)
	}

	resp, err := agent.ProcessQuery(context.Background(), "What is NCC by region?", nil)
	if err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}

	if resp.AgentID != "ncc-financial" {
		t.Errorf("Unexpected agent id: %s", resp.AgentID)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(resp.Data))
	}
	if resp.Confidence != 0.85 {
		t.Errorf("Expected confidence 0.85, got %f", resp.Confidence)
	}
	if len(connector.statements) != 1 {
		t.Errorf("Expected 1 executed statement, got %d", len(connector.statements))
	}
	if agent.Status() != models.StatusIdle {
		t.Errorf("Expected idle status after query, got %s", agent.Status())
	}
	if agent.LastActive().IsZero() {
		t.Error("Expected last active to be stamped by the query")
	}
}

// TestProcessQueryConceptual tests questions that need no data
func TestProcessQueryConceptual(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"needsData": false, "explanation": "NCC stands for net contribution to company.", "confidence": 0.9}`,
	}}
	connector := &fakeConnector{connected: true}

	agent, _ := NewDataSourceAgent(&DataSourceAgentConfig{
		Model:     testModel("ncc-financial"),
		Completer: completer,
		Connector: connector,
	})

	resp, err := agent.ProcessQuery(context.Background(), "What does NCC mean?", nil)
	if err != nil {
		t.Fatalf("ProcessQuery failed: %v", err)
	}

	if len(resp.Data) != 0 {
		t.Error("Expected no data for conceptual question")
	}
	if len(connector.statements) != 0 {
		t.Error("Expected no statements to be executed")
	}
}

// TestProcessQueryCompleterFailure tests degraded responses on LLM failure
func TestProcessQueryCompleterFailure(t *testing.T) {
	completer := &scriptedCompleter{err: errors.New("model unavailable")}

	agent, _ := NewDataSourceAgent(&DataSourceAgentConfig{
		Model:     testModel("ncc-financial"),
		Completer: completer,
	})

	resp, err := agent.ProcessQuery(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("Expected degraded response, got error: %v", err)
	}

	if resp.Confidence != 0 {
		t.Errorf("Expected zero confidence, got %f", resp.Confidence)
	}
	if resp.Metadata.Error == "" {
		t.Error("Expected error recorded in metadata")
	}
	if agent.Status() != models.StatusError {
		t.Errorf("Expected error status, got %s", agent.Status())
	}
}

// TestProcessQueryExecutionFailure tests degraded responses on SQL failure
func TestProcessQueryExecutionFailure(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"needsData": true, "sql": "SELECT bogus", "explanation": "x", "confidence": 0.8}`,
	}}
	connector := &fakeConnector{connected: true, execErr: errors.New("no such column")}

	agent, _ := NewDataSourceAgent(&DataSourceAgentConfig{
		Model:     testModel("ncc-financial"),
		Completer: completer,
		Connector: connector,
	})

	resp, err := agent.ProcessQuery(context.Background(), "broken query", nil)
	if err != nil {
		t.Fatalf("Expected degraded response, got error: %v", err)
	}

	if resp.Confidence != 0 {
		t.Errorf("Expected zero confidence, got %f", resp.Confidence)
	}
	if resp.SQL != "SELECT bogus" {
		t.Errorf("Expected failing SQL in response, got %q", resp.SQL)
	}
}

// TestProcessQueryCancelled tests that cancellation is a real error
func TestProcessQueryCancelled(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{"unused"}}

	agent, _ := NewDataSourceAgent(&DataSourceAgentConfig{
		Model:     testModel("ncc-financial"),
		Completer: completer,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.ProcessQuery(ctx, "anything", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

// TestHasCapability tests capability lookup
func TestHasCapability(t *testing.T) {
	agent, _ := NewDataSourceAgent(&DataSourceAgentConfig{
		Model:     testModel("ncc-financial"),
		Completer: &scriptedCompleter{responses: []string{"{}"}},
	})

	if !agent.HasCapability("query_data") {
		t.Error("Expected query_data capability")
	}
	if agent.HasCapability("teleportation") {
		t.Error("Did not expect unknown capability")
	}
}

// TestDispose tests resource cleanup
func TestDispose(t *testing.T) {
	connector := &fakeConnector{connected: true}
	agent, _ := NewDataSourceAgent(&DataSourceAgentConfig{
		Model:     testModel("ncc-financial"),
		Completer: &scriptedCompleter{responses: []string{"{}"}},
		Connector: connector,
	})

	if err := agent.Dispose(context.Background()); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}

	if agent.Status() != models.StatusDisposed {
		t.Errorf("Expected disposed status, got %s", agent.Status())
	}
	if connector.IsConnected() {
		t.Error("Expected connector to be disconnected")
	}
	if err := agent.Health(context.Background()); err == nil {
		t.Error("Expected health check to fail after dispose")
	}
}
