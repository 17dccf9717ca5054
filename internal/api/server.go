package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/beaconflow/beaconflow/internal/agent"
	"github.com/beaconflow/beaconflow/internal/knowledge"
	"github.com/beaconflow/beaconflow/internal/orchestration"
)

// Server is the HTTP boundary over the agent system
type Server struct {
	registry       *agent.Registry
	conversations  *orchestration.ConversationManager
	collaborations *orchestration.CollaborationManager
	orchestrator   *orchestration.Orchestrator
	knowledge      *knowledge.Store
	logger         *zap.Logger
}

// ServerConfig holds the server's dependencies
type ServerConfig struct {
	Registry       *agent.Registry
	Conversations  *orchestration.ConversationManager
	Collaborations *orchestration.CollaborationManager
	Orchestrator   *orchestration.Orchestrator
	Knowledge      *knowledge.Store // optional
	Logger         *zap.Logger
}

// NewServer creates the API server
func NewServer(config *ServerConfig) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		registry:       config.Registry,
		conversations:  config.Conversations,
		collaborations: config.Collaborations,
		orchestrator:   config.Orchestrator,
		knowledge:      config.Knowledge,
		logger:         logger.With(zap.String("component", "api")),
	}
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/agents", s.handleListAgents)
	mux.HandleFunc("POST /api/agents/query", s.handleAgentQuery)

	mux.HandleFunc("POST /api/conversations", s.handleStartConversation)
	mux.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)

	mux.HandleFunc("POST /api/collaborations", s.handleStartCollaboration)
	mux.HandleFunc("GET /api/collaborations", s.handleListCollaborations)
	mux.HandleFunc("GET /api/collaborations/{id}", s.handleGetCollaboration)
	mux.HandleFunc("GET /api/collaborations/{id}/summary", s.handleCollaborationSummary)

	mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	mux.HandleFunc("POST /api/workflows/{id}/execute", s.handleExecuteWorkflow)
	mux.HandleFunc("GET /api/workflows/{id}/conclusions", s.handleWorkflowConclusions)
	mux.HandleFunc("GET /api/orchestrations/{id}", s.handleGetOrchestration)

	mux.HandleFunc("GET /api/knowledge", s.handleSearchKnowledge)
	mux.HandleFunc("GET /api/knowledge/{topic}", s.handleGetKnowledge)
	mux.HandleFunc("PUT /api/knowledge/{topic}", s.handlePutKnowledge)
	mux.HandleFunc("DELETE /api/knowledge/{topic}", s.handleDeleteKnowledge)

	return s.logRequests(mux)
}

// logRequests wraps the mux with zap request logging
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
