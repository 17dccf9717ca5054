package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beaconflow/beaconflow/internal/inference"
	"github.com/beaconflow/beaconflow/internal/knowledge"
	"github.com/beaconflow/beaconflow/internal/models"
	"github.com/beaconflow/beaconflow/internal/warehouse"
)

// AgentConfig binds a semantic model to its data source connector
type AgentConfig struct {
	Model     *models.SemanticModel
	Connector warehouse.Connector // optional
}

// RegistryConfig holds the shared dependencies agents are built with
type RegistryConfig struct {
	Completer inference.Completer
	Cache     *ResponseCache   // optional
	Knowledge *knowledge.Store // optional
	Logger    *zap.Logger
}

// Registry owns the set of live agents. Initialization is idempotent
// and best-effort: a data source that fails to come up is logged and
// skipped, the rest of the system starts without it.
type Registry struct {
	completer inference.Completer
	cache     *ResponseCache
	knowledge *knowledge.Store
	logger    *zap.Logger

	agents      map[string]Agent
	order       []string
	initialized bool
	mu          sync.RWMutex
}

// NewRegistry creates an empty agent registry
func NewRegistry(config *RegistryConfig) *Registry {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		completer: config.Completer,
		cache:     config.Cache,
		knowledge: config.Knowledge,
		logger:    logger.With(zap.String("component", "registry")),
		agents:    make(map[string]Agent),
	}
}

// Initialize constructs one agent per config. Calling it again is a
// no-op. Individual construction failures are logged and skipped.
func (r *Registry) Initialize(ctx context.Context, configs []AgentConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	for _, cfg := range configs {
		agent, err := r.build(ctx, cfg)
		if err != nil {
			id := ""
			if cfg.Model != nil {
				id = cfg.Model.ID
			}
			r.logger.Warn("failed to create agent", zap.String("agent", id), zap.Error(err))
			continue
		}

		r.agents[agent.ID()] = agent
		r.order = append(r.order, agent.ID())
		r.logger.Info("agent registered", zap.String("agent", agent.ID()))
	}

	r.initialized = true
	return nil
}

// build constructs and connects a single agent
func (r *Registry) build(ctx context.Context, cfg AgentConfig) (Agent, error) {
	if cfg.Connector != nil && !cfg.Connector.IsConnected() {
		if err := cfg.Connector.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect data source: %w", err)
		}
	}

	return NewDataSourceAgent(&DataSourceAgentConfig{
		Model:     cfg.Model,
		Completer: r.completer,
		Connector: cfg.Connector,
		Cache:     r.cache,
		Knowledge: r.knowledge,
		Logger:    r.logger,
	})
}

// Get returns the agent with the given id
func (r *Registry) Get(id string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return agent, nil
}

// All returns every registered agent in registration order
func (r *Registry) All() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]Agent, 0, len(r.order))
	for _, id := range r.order {
		if agent, ok := r.agents[id]; ok {
			agents = append(agents, agent)
		}
	}
	return agents
}

// ByCapability returns agents declaring the named capability,
// in registration order
func (r *Registry) ByCapability(name string) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Agent
	for _, id := range r.order {
		agent, ok := r.agents[id]
		if ok && agent.HasCapability(name) {
			matched = append(matched, agent)
		}
	}
	return matched
}

// Create constructs and registers a new agent after initialization
func (r *Registry) Create(ctx context.Context, cfg AgentConfig) (Agent, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("semantic model is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[cfg.Model.ID]; exists {
		return nil, fmt.Errorf("agent already registered: %s", cfg.Model.ID)
	}

	agent, err := r.build(ctx, cfg)
	if err != nil {
		return nil, err
	}

	r.agents[agent.ID()] = agent
	r.order = append(r.order, agent.ID())
	r.logger.Info("agent created", zap.String("agent", agent.ID()))

	return agent, nil
}

// Remove disposes an agent and unregisters it. A dispose failure
// leaves the agent registered and is returned to the caller.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}

	if err := agent.Dispose(ctx); err != nil {
		return fmt.Errorf("failed to dispose agent %s: %w", id, err)
	}

	delete(r.agents, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return nil
}

// AgentHealth is one agent's entry in a health check report
type AgentHealth struct {
	Status     models.AgentStatus `json:"status"`
	Healthy    bool               `json:"healthy"`
	LastActive time.Time          `json:"lastActive"`
}

// HealthCheck reports per-agent health. One unhealthy agent never
// affects the result for the others.
func (r *Registry) HealthCheck(ctx context.Context) map[string]AgentHealth {
	r.mu.RLock()
	agents := make(map[string]Agent, len(r.agents))
	for id, agent := range r.agents {
		agents[id] = agent
	}
	r.mu.RUnlock()

	health := make(map[string]AgentHealth, len(agents))
	for id, agent := range agents {
		entry := AgentHealth{
			Status:     agent.Status(),
			Healthy:    true,
			LastActive: agent.LastActive(),
		}
		if err := agent.Health(ctx); err != nil {
			r.logger.Warn("agent unhealthy", zap.String("agent", id), zap.Error(err))
			entry.Healthy = false
		}
		health[id] = entry
	}
	return health
}

// Dispose tears down every agent best-effort and resets the registry
// so Initialize can run again.
func (r *Registry) Dispose(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, agent := range r.agents {
		if err := agent.Dispose(ctx); err != nil {
			r.logger.Warn("failed to dispose agent", zap.String("agent", id), zap.Error(err))
		}
	}

	r.agents = make(map[string]Agent)
	r.order = nil
	r.initialized = false

	return nil
}
