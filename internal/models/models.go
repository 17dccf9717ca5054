package models

import "time"

// AgentStatus represents the lifecycle state of an agent
type AgentStatus string

const (
	StatusIdle     AgentStatus = "idle"
	StatusActive   AgentStatus = "active"
	StatusError    AgentStatus = "error"
	StatusDisposed AgentStatus = "disposed"
)

// MessageType classifies inter-agent messages
type MessageType string

const (
	MessageQuestion        MessageType = "question"
	MessageResponse        MessageType = "response"
	MessageClarification   MessageType = "clarification"
	MessageAnalysisRequest MessageType = "analysis_request"
	MessageDataSharing     MessageType = "data_sharing"
)

// Capability describes something an agent can do
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Message represents a single message exchanged between agents
type Message struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversationId"`
	FromAgent      string                 `json:"fromAgent"`
	ToAgent        string                 `json:"toAgent"`
	Type           MessageType            `json:"type"`
	Content        string                 `json:"content"`
	Data           map[string]interface{} `json:"data,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// Row is a single result row from a data source query
type Row map[string]interface{}

// VisualizationSpec suggests how query results should be rendered
type VisualizationSpec struct {
	Type   string                 `json:"type"` // bar, line, pie, table
	Title  string                 `json:"title,omitempty"`
	XAxis  string                 `json:"xAxis,omitempty"`
	YAxis  string                 `json:"yAxis,omitempty"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// ResponseMetadata carries processing details alongside an agent response
type ResponseMetadata struct {
	ProcessingTime time.Duration `json:"processingTime"`
	DataSource     string        `json:"dataSource"`
	Timestamp      time.Time     `json:"timestamp"`
	Cached         bool          `json:"cached,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// AgentResponse is the result of an agent processing a query
type AgentResponse struct {
	AgentID       string             `json:"agentId"`
	Content       string             `json:"content"`
	Data          []Row              `json:"data,omitempty"`
	SQL           string             `json:"sql,omitempty"`
	Visualization *VisualizationSpec `json:"visualization,omitempty"`
	Suggestions   []string           `json:"suggestions,omitempty"`
	Confidence    float64            `json:"confidence"`
	Reasoning     string             `json:"reasoning,omitempty"`
	Metadata      ResponseMetadata   `json:"metadata"`
}
