package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/beaconflow/beaconflow/internal/models"
	"github.com/beaconflow/beaconflow/internal/warehouse"
)

// scriptedCompleter returns canned responses in order, repeating the
// last one once the script runs out
type scriptedCompleter struct {
	responses []string
	err       error
	calls     int
	mu        sync.Mutex
}

func (s *scriptedCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return "", s.err
	}

	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	if idx < 0 {
		return "", fmt.Errorf("no scripted responses")
	}
	return s.responses[idx], nil
}

// fakeConnector serves fixed rows and records executed statements
type fakeConnector struct {
	rows       []models.Row
	execErr    error
	statements []string
	connected  bool
	mu         sync.Mutex
}

func (f *fakeConnector) Name() string               { return "fake" }
func (f *fakeConnector) Type() warehouse.SourceType { return warehouse.SourceTypeSQLite }

func (f *fakeConnector) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeConnector) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeConnector) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConnector) Execute(ctx context.Context, query string) ([]models.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statements = append(f.statements, query)
	if f.execErr != nil {
		return nil, f.execErr
	}
	return f.rows, nil
}

// testModel builds a minimal semantic model for tests
func testModel(id string) *models.SemanticModel {
	return &models.SemanticModel{
		ID:          id,
		Name:        id,
		Description: "Test data source",
		Tables: []models.TableSchema{
			{
				Name:        "NCC_AGENT",
				Description: "Monthly NCC per project",
				Columns: []models.Column{
					{Name: "REGION", Type: "TEXT", Description: "Delivery region"},
					{Name: "NCC", Type: "REAL", Description: "Net contribution"},
				},
			},
		},
	}
}
