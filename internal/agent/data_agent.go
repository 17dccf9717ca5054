package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beaconflow/beaconflow/internal/inference"
	"github.com/beaconflow/beaconflow/internal/knowledge"
	"github.com/beaconflow/beaconflow/internal/models"
	"github.com/beaconflow/beaconflow/internal/warehouse"
)

// DataSourceAgentConfig holds the dependencies of a data source agent
type DataSourceAgentConfig struct {
	Model     *models.SemanticModel
	Completer inference.Completer
	Connector warehouse.Connector // optional; conceptual agents answer without data
	Cache     *ResponseCache      // optional
	Knowledge *knowledge.Store    // optional
	Logger    *zap.Logger
}

// DataSourceAgent answers natural-language questions about one data
// source. The semantic model shapes the LLM prompt; generated SQL runs
// through the bound connector.
type DataSourceAgent struct {
	id           string
	name         string
	description  string
	capabilities []models.Capability
	model        *models.SemanticModel
	completer    inference.Completer
	connector    warehouse.Connector
	cache        *ResponseCache
	knowledge    *knowledge.Store
	logger       *zap.Logger

	status     models.AgentStatus
	lastActive time.Time
	mu         sync.RWMutex
}

// NewDataSourceAgent creates an agent bound to a semantic model
func NewDataSourceAgent(config *DataSourceAgentConfig) (*DataSourceAgent, error) {
	if config.Model == nil {
		return nil, fmt.Errorf("semantic model is required")
	}
	if config.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DataSourceAgent{
		id:          config.Model.ID,
		name:        config.Model.Name,
		description: config.Model.Description,
		capabilities: []models.Capability{
			{Name: "query_data", Description: "Translate questions into SQL and fetch results"},
			{Name: "generate_insights", Description: "Explain results in business terms"},
			{Name: "create_visualizations", Description: "Suggest chart specs for results"},
			{Name: "trend_analysis", Description: "Analyze metrics over time dimensions"},
		},
		model:     config.Model,
		completer: config.Completer,
		connector: config.Connector,
		cache:     config.Cache,
		knowledge: config.Knowledge,
		logger:    logger.With(zap.String("agent", config.Model.ID)),
		status:    models.StatusIdle,
	}, nil
}

func (a *DataSourceAgent) ID() string          { return a.id }
func (a *DataSourceAgent) Name() string        { return a.name }
func (a *DataSourceAgent) Description() string { return a.description }

// Capabilities returns the agent's declared capabilities
func (a *DataSourceAgent) Capabilities() []models.Capability {
	caps := make([]models.Capability, len(a.capabilities))
	copy(caps, a.capabilities)
	return caps
}

// HasCapability reports whether the agent declares a capability by name
func (a *DataSourceAgent) HasCapability(name string) bool {
	for _, c := range a.capabilities {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Status returns the agent's current lifecycle status
func (a *DataSourceAgent) Status() models.AgentStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// LastActive returns when the agent last processed a query
func (a *DataSourceAgent) LastActive() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastActive
}

func (a *DataSourceAgent) setStatus(s models.AgentStatus) {
	a.mu.Lock()
	a.status = s
	a.lastActive = time.Now()
	a.mu.Unlock()
}

// ProcessQuery answers a natural-language query against the bound data
// source. Internal failures produce a degraded low-confidence response;
// a non-nil error is returned only when the context is cancelled.
func (a *DataSourceAgent) ProcessQuery(ctx context.Context, query string, queryContext map[string]interface{}) (*models.AgentResponse, error) {
	startTime := time.Now()
	a.setStatus(models.StatusActive)

	if a.cache != nil {
		if resp, ok := a.cache.Get(ctx, a.id, query); ok {
			a.logger.Debug("cache hit", zap.String("query", query))
			a.setStatus(models.StatusIdle)
			return resp, nil
		}
	}

	knowledgeCtx := ""
	if a.knowledge != nil {
		kc, err := a.knowledge.ContextFor(ctx, query)
		if err != nil {
			a.logger.Warn("knowledge lookup failed", zap.Error(err))
		} else {
			knowledgeCtx = kc
		}
	}

	userPrompt := query
	if len(queryContext) > 0 {
		if ctxJSON, err := json.Marshal(queryContext); err == nil {
			userPrompt = fmt.Sprintf("%s\n\nAdditional context: %s", query, ctxJSON)
		}
	}

	raw, err := a.completer.Complete(ctx, buildSystemPrompt(a.model, knowledgeCtx), userPrompt)
	if err != nil {
		a.setStatus(models.StatusError)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn("completion failed", zap.Error(err))
		return a.degradedResponse(startTime, "", err), nil
	}

	analysis := parseAnalysis(raw)

	var rows []models.Row
	if analysis.NeedsData && analysis.SQL != "" && a.connector != nil {
		rows, err = a.connector.Execute(ctx, analysis.SQL)
		if err != nil {
			a.setStatus(models.StatusError)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Warn("query execution failed", zap.String("sql", analysis.SQL), zap.Error(err))
			return a.degradedResponse(startTime, analysis.SQL, err), nil
		}
	}

	resp := &models.AgentResponse{
		AgentID:       a.id,
		Content:       analysis.Explanation,
		Data:          rows,
		SQL:           analysis.SQL,
		Visualization: analysis.Visualization,
		Suggestions:   analysis.Suggestions,
		Confidence:    analysis.Confidence,
		Reasoning:     analysis.Reasoning,
		Metadata: models.ResponseMetadata{
			ProcessingTime: time.Since(startTime),
			DataSource:     a.model.ID,
			Timestamp:      time.Now(),
		},
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, a.id, query, resp); err != nil {
			a.logger.Warn("cache store failed", zap.Error(err))
		}
	}

	a.setStatus(models.StatusIdle)
	return resp, nil
}

// degradedResponse wraps an internal failure as an answerable response
func (a *DataSourceAgent) degradedResponse(startTime time.Time, sql string, err error) *models.AgentResponse {
	return &models.AgentResponse{
		AgentID:     a.id,
		Content:     fmt.Sprintf("I was unable to complete the analysis: %v", err),
		SQL:         sql,
		Suggestions: []string{"Try rephrasing the question", "Check that the data source is reachable"},
		Confidence:  0,
		Metadata: models.ResponseMetadata{
			ProcessingTime: time.Since(startTime),
			DataSource:     a.model.ID,
			Timestamp:      time.Now(),
			Error:          err.Error(),
		},
	}
}

// Health reports whether the agent can serve queries
func (a *DataSourceAgent) Health(ctx context.Context) error {
	if a.Status() == models.StatusDisposed {
		return fmt.Errorf("agent %s is disposed", a.id)
	}
	if a.connector != nil && !a.connector.IsConnected() {
		return fmt.Errorf("data source %s is not connected", a.connector.Name())
	}
	return nil
}

// Dispose releases the agent's resources
func (a *DataSourceAgent) Dispose(ctx context.Context) error {
	a.setStatus(models.StatusDisposed)

	if a.connector != nil {
		if err := a.connector.Disconnect(); err != nil {
			return fmt.Errorf("failed to disconnect %s: %w", a.connector.Name(), err)
		}
	}

	return nil
}
