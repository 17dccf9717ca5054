package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/beaconflow/beaconflow/internal/agent"
	"github.com/beaconflow/beaconflow/internal/knowledge"
	"github.com/beaconflow/beaconflow/internal/models"
	"github.com/beaconflow/beaconflow/internal/orchestration"
)

// agentSummary is the list representation of an agent
type agentSummary struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Capabilities []models.Capability `json:"capabilities"`
	Status       models.AgentStatus  `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.registry.HealthCheck(r.Context())

	healthy := true
	for _, h := range health {
		if !h.Healthy {
			healthy = false
			break
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"healthy": healthy,
		"agents":  health,
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.registry.All()

	summaries := make([]agentSummary, 0, len(agents))
	for _, ag := range agents {
		summaries = append(summaries, agentSummary{
			ID:           ag.ID(),
			Name:         ag.Name(),
			Description:  ag.Description(),
			Capabilities: ag.Capabilities(),
			Status:       ag.Status(),
		})
	}

	writeJSON(w, http.StatusOK, summaries)
}

type queryRequest struct {
	AgentID string                 `json:"agentId"`
	Query   string                 `json:"query"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (s *Server) handleAgentQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" || req.Query == "" {
		writeError(w, http.StatusBadRequest, "agentId and query are required")
		return
	}

	ag, err := s.registry.Get(req.AgentID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	resp, err := ag.ProcessQuery(r.Context(), req.Query, req.Context)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type conversationRequest struct {
	Initiator string   `json:"initiator"`
	Targets   []string `json:"targets"`
	Topic     string   `json:"topic"`
	Content   string   `json:"content"`
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Initiator == "" || len(req.Targets) == 0 {
		writeError(w, http.StatusBadRequest, "initiator and targets are required")
		return
	}

	conv, err := s.conversations.StartConversation(r.Context(), req.Initiator, req.Targets, req.Topic, req.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversations.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type collaborationRequest struct {
	Topic           string                 `json:"topic"`
	InitialQuery    string                 `json:"initialQuery"`
	LeadID          string                 `json:"leadId"`
	CollaboratorIDs []string               `json:"collaboratorIds"`
	Context         map[string]interface{} `json:"context,omitempty"`
}

func (s *Server) handleStartCollaboration(w http.ResponseWriter, r *http.Request) {
	var req collaborationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Topic == "" || req.LeadID == "" {
		writeError(w, http.StatusBadRequest, "topic and leadId are required")
		return
	}
	if req.InitialQuery == "" {
		req.InitialQuery = req.Topic
	}

	collab, err := s.collaborations.StartCollaboration(r.Context(), req.Topic, req.InitialQuery, req.LeadID, req.CollaboratorIDs, req.Context)
	if err != nil {
		if errors.Is(err, agent.ErrAgentNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		// The partial collaboration is still useful to the caller
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":         err.Error(),
			"collaboration": collab,
		})
		return
	}

	writeJSON(w, http.StatusCreated, collab)
}

func (s *Server) handleGetCollaboration(w http.ResponseWriter, r *http.Request) {
	collab, err := s.collaborations.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, collab)
}

func (s *Server) handleListCollaborations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collaborations.All())
}

func (s *Server) handleCollaborationSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.collaborations.Summary(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// workflowSummary is the list representation of a workflow
type workflowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       int    `json:"steps"`
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows := s.orchestrator.Workflows()

	summaries := make([]workflowSummary, 0, len(workflows))
	for _, wf := range workflows {
		summaries = append(summaries, workflowSummary{
			ID:          wf.ID,
			Name:        wf.Name,
			Description: wf.Description,
			Steps:       len(wf.Steps),
		})
	}

	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var params map[string]interface{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	orch, err := s.orchestrator.ExecuteWorkflow(r.Context(), r.PathValue("id"), params)
	if err != nil {
		if errors.Is(err, orchestration.ErrWorkflowNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		// The failed orchestration carries the step-level detail
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":         err.Error(),
			"orchestration": orch,
		})
		return
	}

	writeJSON(w, http.StatusOK, orch)
}

func (s *Server) handleWorkflowConclusions(w http.ResponseWriter, r *http.Request) {
	conclusions := s.orchestrator.ConclusionsFor(r.PathValue("id"))
	if conclusions == nil {
		conclusions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conclusions": conclusions})
}

func (s *Server) handleGetOrchestration(w http.ResponseWriter, r *http.Request) {
	orch, err := s.orchestrator.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, orch)
}

func (s *Server) handleSearchKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		writeError(w, http.StatusNotFound, "knowledge base is not configured")
		return
	}

	docs, err := s.knowledge.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*knowledge.Document{}
	}

	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		writeError(w, http.StatusNotFound, "knowledge base is not configured")
		return
	}

	doc, err := s.knowledge.Get(r.Context(), r.PathValue("topic"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePutKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		writeError(w, http.StatusNotFound, "knowledge base is not configured")
		return
	}

	var doc knowledge.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doc.Topic = r.PathValue("topic")

	if err := s.knowledge.Put(r.Context(), &doc); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		writeError(w, http.StatusNotFound, "knowledge base is not configured")
		return
	}

	if err := s.knowledge.Delete(r.Context(), r.PathValue("topic")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
