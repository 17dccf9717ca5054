package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaconflow/beaconflow/internal/agent"
	"github.com/beaconflow/beaconflow/internal/models"
)

// AgentResolver looks up live agents. Satisfied by *agent.Registry.
type AgentResolver interface {
	Get(id string) (agent.Agent, error)
	All() []agent.Agent
}

// CollaborationStatus represents a collaboration's lifecycle state
type CollaborationStatus string

const (
	CollaborationActive    CollaborationStatus = "active"
	CollaborationCompleted CollaborationStatus = "completed"
	CollaborationExhausted CollaborationStatus = "exhausted"
	CollaborationFailed    CollaborationStatus = "failed"
)

// TurnRole classifies an agent's part in a collaboration turn
type TurnRole string

const (
	RoleInitiator    TurnRole = "initiator"
	RoleResponder    TurnRole = "responder"
	RoleCollaborator TurnRole = "collaborator"
)

// CollaborationTurn records one agent's contribution: its message and
// insights, the query it was given, any data it fetched, and the
// questions it raised for other agents.
type CollaborationTurn struct {
	ID        string          `json:"id"`
	AgentID   string          `json:"agentId"`
	AgentName string          `json:"agentName"`
	Role      TurnRole        `json:"role"`
	Query     string          `json:"query"`
	Message   string          `json:"message"`
	Insights  []string        `json:"insights"`
	SQL       string          `json:"sql,omitempty"`
	Data      []models.Row    `json:"data,omitempty"`
	Questions []AgentQuestion `json:"questionsForOthers,omitempty"`
	AskedBy   string          `json:"askedBy,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Collaboration is a multi-agent discussion of a topic led by one agent
type Collaboration struct {
	ID              string              `json:"id"`
	Topic           string              `json:"topic"`
	InitialQuery    string              `json:"initialQuery"`
	LeadID          string              `json:"leadId"`
	CollaboratorIDs []string            `json:"collaboratorIds"`
	Turns           []CollaborationTurn `json:"turns"`
	Status          CollaborationStatus `json:"status"`
	FinalInsights   []string            `json:"finalInsights,omitempty"`
	Recommendations []string            `json:"recommendations,omitempty"`
	StartedAt       time.Time           `json:"startedAt"`
	CompletedAt     *time.Time          `json:"completedAt,omitempty"`
}

// CollaborationSummary is a condensed view of a collaboration
type CollaborationSummary struct {
	ID              string              `json:"id"`
	Topic           string              `json:"topic"`
	Status          CollaborationStatus `json:"status"`
	Participants    int                 `json:"participants"`
	Turns           int                 `json:"turns"`
	Duration        time.Duration       `json:"duration"`
	FinalInsights   []string            `json:"finalInsights,omitempty"`
	Recommendations []string            `json:"recommendations,omitempty"`
}

// AgentQuestion is a follow-up question addressed to a specific agent
type AgentQuestion struct {
	AgentID  string `json:"agentId"`
	Question string `json:"question"`
}

// turnOutput is the structured contribution the LLM is asked to produce
type turnOutput struct {
	Message            string          `json:"message"`
	Insights           []string        `json:"insights"`
	QuestionsForOthers []AgentQuestion `json:"questionsForOthers"`
}

// CollaborationManager coordinates lead/responder discussions between
// agents. Follow-up questions fan out depth-first and sequentially, so
// a collaborator's own questions are answered before the lead's next
// question is dispatched. A turn budget bounds the recursion.
type CollaborationManager struct {
	resolver       AgentResolver
	collaborations map[string]*Collaboration
	maxTurns       int
	logger         *zap.Logger
	mu             sync.RWMutex
}

// DefaultMaxTurns bounds collaboration recursion
const DefaultMaxTurns = 16

// NewCollaborationManager creates a collaboration manager
func NewCollaborationManager(resolver AgentResolver, maxTurns int, logger *zap.Logger) *CollaborationManager {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CollaborationManager{
		resolver:       resolver,
		collaborations: make(map[string]*Collaboration),
		maxTurns:       maxTurns,
		logger:         logger.With(zap.String("component", "collaborations")),
	}
}

// StartCollaboration runs a full collaboration synchronously: the lead
// opens the discussion by analyzing the initial query, questions
// recurse through collaborators, and the finished collaboration
// carries aggregated insights and recommendations. Unknown lead or
// collaborator ids are fatal.
func (m *CollaborationManager) StartCollaboration(ctx context.Context, topic, initialQuery, leadID string, collaboratorIDs []string, extra map[string]interface{}) (*Collaboration, error) {
	lead, err := m.resolver.Get(leadID)
	if err != nil {
		return nil, fmt.Errorf("lead agent: %w", err)
	}

	names := make(map[string]string, len(collaboratorIDs)+1)
	names[leadID] = lead.Name()
	for _, id := range collaboratorIDs {
		collaborator, err := m.resolver.Get(id)
		if err != nil {
			return nil, fmt.Errorf("collaborator agent: %w", err)
		}
		names[id] = collaborator.Name()
	}

	collab := &Collaboration{
		ID:              uuid.NewString(),
		Topic:           topic,
		InitialQuery:    initialQuery,
		LeadID:          leadID,
		CollaboratorIDs: collaboratorIDs,
		Status:          CollaborationActive,
		StartedAt:       time.Now(),
	}

	m.mu.Lock()
	m.collaborations[collab.ID] = collab
	m.mu.Unlock()

	m.logger.Info("collaboration started",
		zap.String("collaboration", collab.ID),
		zap.String("topic", topic),
		zap.String("lead", leadID))

	if err := m.processTurn(ctx, collab, names, leadID, m.leadPrompt(topic, initialQuery, names, leadID), "", extra); err != nil {
		m.setStatus(collab, CollaborationFailed)
		return collab, err
	}

	m.finalize(collab, names)
	return collab, nil
}

// processTurn asks one agent for its contribution and recurses into
// the questions it raises, depth-first.
func (m *CollaborationManager) processTurn(ctx context.Context, collab *Collaboration, names map[string]string, agentID, prompt, askedBy string, extra map[string]interface{}) error {
	m.mu.RLock()
	turnCount := len(collab.Turns)
	m.mu.RUnlock()

	if turnCount >= m.maxTurns {
		m.logger.Warn("turn budget exhausted",
			zap.String("collaboration", collab.ID),
			zap.Int("maxTurns", m.maxTurns))
		m.setStatus(collab, CollaborationExhausted)
		return nil
	}

	ag, err := m.resolver.Get(agentID)
	if err != nil {
		return err
	}

	resp, err := ag.ProcessQuery(ctx, prompt, extra)
	if err != nil {
		return fmt.Errorf("agent %s turn failed: %w", agentID, err)
	}

	output := parseTurnOutput(resp.Content)

	role := RoleResponder
	if askedBy == "" {
		role = RoleInitiator
	}

	turn := CollaborationTurn{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		AgentName: names[agentID],
		Role:      role,
		Query:     prompt,
		Message:   output.Message,
		Insights:  output.Insights,
		SQL:       resp.SQL,
		Data:      resp.Data,
		Questions: output.QuestionsForOthers,
		AskedBy:   askedBy,
		Timestamp: time.Now(),
	}

	m.mu.Lock()
	collab.Turns = append(collab.Turns, turn)
	m.mu.Unlock()

	for _, q := range output.QuestionsForOthers {
		if q.AgentID == "" || q.AgentID == agentID {
			continue
		}
		if _, ok := names[q.AgentID]; !ok {
			m.logger.Warn("question addressed to non-participant",
				zap.String("collaboration", collab.ID),
				zap.String("target", q.AgentID))
			continue
		}

		if m.status(collab) == CollaborationExhausted {
			break
		}

		question := m.contextualQuestion(collab, agentID, names[agentID], q.Question)
		if err := m.processTurn(ctx, collab, names, q.AgentID, question, agentID, extra); err != nil {
			return err
		}
	}

	return nil
}

// leadPrompt asks the lead agent to open the discussion
func (m *CollaborationManager) leadPrompt(topic, initialQuery string, names map[string]string, leadID string) string {
	var others []string
	for id, name := range names {
		if id != leadID {
			others = append(others, fmt.Sprintf("%s (id: %s)", name, id))
		}
	}

	return fmt.Sprintf(`You are leading a collaboration between analytics agents on the topic: %s

Analyze this query from your data source's perspective: %s

Other participating agents: %s

Share your analysis and raise questions for other agents where their data could help.

Respond with ONLY a JSON object:
{
  "message": "your analysis of the query",
  "insights": ["key findings from your perspective"],
  "questionsForOthers": [{"agentId": "agent-id", "question": "what you want to know"}]
}

Leave questionsForOthers empty when you have everything you need.

JSON Response:`, topic, initialQuery, strings.Join(others, ", "))
}

// contextualQuestion embeds the asker's insights and the conversation
// history into a follow-up question for a collaborator
func (m *CollaborationManager) contextualQuestion(collab *Collaboration, askerID, askerName, question string) string {
	m.mu.RLock()
	var askerInsights []string
	var history []string
	for _, turn := range collab.Turns {
		if turn.AgentID == askerID {
			askerInsights = append(askerInsights, turn.Insights...)
		}
		history = append(history, fmt.Sprintf("%s: %s", turn.AgentName, turn.Message))
	}
	m.mu.RUnlock()

	return fmt.Sprintf(`You are contributing to a collaboration on the topic: %s

Conversation so far:
%s

%s asks you: %s

%s's insights: %s

Answer from your data source's perspective. Respond with ONLY a JSON object:
{
  "message": "your answer",
  "insights": ["key findings from your perspective"],
  "questionsForOthers": [{"agentId": "agent-id", "question": "what you want to know"}]
}

Leave questionsForOthers empty when you have everything you need.

JSON Response:`, collab.Topic, strings.Join(history, "\n"), askerName, question, askerName, strings.Join(askerInsights, "; "))
}

// finalize aggregates turn insights and derives recommendations
func (m *CollaborationManager) finalize(collab *Collaboration, names map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var insights []string
	participated := make(map[string]bool)
	for _, turn := range collab.Turns {
		participated[turn.AgentID] = true
		for _, insight := range turn.Insights {
			insights = append(insights, fmt.Sprintf("%s: %s", turn.AgentName, insight))
		}
	}
	insights = append(insights, fmt.Sprintf("Collaboration Summary: %d agents participated in analyzing %s", len(participated), collab.Topic))

	collab.FinalInsights = insights
	collab.Recommendations = recommendationsFor(collab.Topic)

	if collab.Status != CollaborationExhausted {
		collab.Status = CollaborationCompleted
	}
	now := time.Now()
	collab.CompletedAt = &now

	m.logger.Info("collaboration finished",
		zap.String("collaboration", collab.ID),
		zap.String("status", string(collab.Status)),
		zap.Int("turns", len(collab.Turns)))
}

// Get returns a collaboration by id
func (m *CollaborationManager) Get(id string) (*Collaboration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	collab, ok := m.collaborations[id]
	if !ok {
		return nil, fmt.Errorf("collaboration not found: %s", id)
	}
	return collab, nil
}

// All returns every collaboration, finished or not
func (m *CollaborationManager) All() []*Collaboration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*Collaboration, 0, len(m.collaborations))
	for _, collab := range m.collaborations {
		all = append(all, collab)
	}
	return all
}

// Active returns collaborations still in progress
func (m *CollaborationManager) Active() []*Collaboration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*Collaboration
	for _, collab := range m.collaborations {
		if collab.Status == CollaborationActive {
			active = append(active, collab)
		}
	}
	return active
}

// Summary returns a condensed view of a collaboration
func (m *CollaborationManager) Summary(id string) (*CollaborationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	collab, ok := m.collaborations[id]
	if !ok {
		return nil, fmt.Errorf("collaboration not found: %s", id)
	}

	duration := time.Since(collab.StartedAt)
	if collab.CompletedAt != nil {
		duration = collab.CompletedAt.Sub(collab.StartedAt)
	}

	return &CollaborationSummary{
		ID:              collab.ID,
		Topic:           collab.Topic,
		Status:          collab.Status,
		Participants:    1 + len(collab.CollaboratorIDs),
		Turns:           len(collab.Turns),
		Duration:        duration,
		FinalInsights:   collab.FinalInsights,
		Recommendations: collab.Recommendations,
	}, nil
}

func (m *CollaborationManager) status(collab *Collaboration) CollaborationStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return collab.Status
}

func (m *CollaborationManager) setStatus(collab *Collaboration, status CollaborationStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	collab.Status = status
}

// parseTurnOutput extracts a structured contribution from LLM output.
// Malformed output falls back to the raw text with no questions, so a
// collaboration always terminates.
func parseTurnOutput(content string) *turnOutput {
	cleaned := strings.TrimSpace(content)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return fallbackTurnOutput(content)
	}

	var output turnOutput
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &output); err != nil {
		return fallbackTurnOutput(content)
	}

	if output.Message == "" {
		output.Message = strings.TrimSpace(content)
	}
	if output.Insights == nil {
		output.Insights = []string{}
	}

	return &output
}

func fallbackTurnOutput(content string) *turnOutput {
	return &turnOutput{
		Message:  strings.TrimSpace(content),
		Insights: []string{},
	}
}

// recommendationsFor derives follow-up recommendations from topic keywords
func recommendationsFor(topic string) []string {
	lower := strings.ToLower(topic)
	var recs []string

	if strings.Contains(lower, "revenue") || strings.Contains(lower, "gap") {
		recs = append(recs,
			"Monitor revenue trends monthly and establish pipeline coverage ratios",
			"Implement cross-agent alerting when revenue gaps exceed pipeline capacity")
	}

	if strings.Contains(lower, "attendance") {
		recs = append(recs,
			"Investigate correlation between attendance and performance metrics",
			"Consider flexible work arrangements for underperforming offices")
	}

	recs = append(recs, "Continue regular agent collaborations for comprehensive business insights")
	return recs
}
