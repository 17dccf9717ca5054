package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beaconflow/beaconflow/internal/agent"
	"github.com/beaconflow/beaconflow/internal/models"
)

// stubResponse is one scripted ProcessQuery outcome
type stubResponse struct {
	content     string
	sql         string
	data        []models.Row
	suggestions []string
	err         error
}

// stubAgent is a scripted agent.Agent for orchestration tests
type stubAgent struct {
	id        string
	name      string
	responses []stubResponse
	calls     int
	queries   []string
	mu        sync.Mutex
}

func newStubAgent(id string, responses ...stubResponse) *stubAgent {
	return &stubAgent{id: id, name: id, responses: responses}
}

func (s *stubAgent) ID() string          { return s.id }
func (s *stubAgent) Name() string        { return s.name }
func (s *stubAgent) Description() string { return "stub agent" }

func (s *stubAgent) Capabilities() []models.Capability {
	return []models.Capability{{Name: "query_data"}}
}

func (s *stubAgent) HasCapability(name string) bool    { return name == "query_data" }
func (s *stubAgent) Status() models.AgentStatus        { return models.StatusIdle }
func (s *stubAgent) LastActive() time.Time             { return time.Time{} }
func (s *stubAgent) Health(ctx context.Context) error  { return nil }
func (s *stubAgent) Dispose(ctx context.Context) error { return nil }

func (s *stubAgent) ProcessQuery(ctx context.Context, query string, queryContext map[string]interface{}) (*models.AgentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = append(s.queries, query)

	idx := s.calls
	s.calls++
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	if idx < 0 {
		return &models.AgentResponse{AgentID: s.id, Content: "no script"}, nil
	}

	r := s.responses[idx]
	if r.err != nil {
		return nil, r.err
	}

	return &models.AgentResponse{
		AgentID:     s.id,
		Content:     r.content,
		SQL:         r.sql,
		Data:        r.data,
		Suggestions: r.suggestions,
	}, nil
}

// stubResolver resolves stub agents by id
type stubResolver struct {
	agents map[string]agent.Agent
	order  []string
}

func newStubResolver(agents ...agent.Agent) *stubResolver {
	r := &stubResolver{agents: make(map[string]agent.Agent)}
	for _, a := range agents {
		r.agents[a.ID()] = a
		r.order = append(r.order, a.ID())
	}
	return r
}

func (r *stubResolver) Get(id string) (agent.Agent, error) {
	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
	}
	return a, nil
}

func (r *stubResolver) All() []agent.Agent {
	out := make([]agent.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}
