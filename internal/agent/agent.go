package agent

import (
	"context"
	"errors"
	"time"

	"github.com/beaconflow/beaconflow/internal/models"
)

// ErrAgentNotFound is returned when a registry lookup misses
var ErrAgentNotFound = errors.New("agent not found")

// Agent is the contract every agent in the system fulfils. ProcessQuery
// degrades internal failures into low-confidence responses; a non-nil
// error is reserved for context cancellation.
type Agent interface {
	// ID returns the unique agent identifier
	ID() string

	// Name returns the human-readable agent name
	Name() string

	// Description returns what the agent does
	Description() string

	// Capabilities returns the agent's declared capabilities
	Capabilities() []models.Capability

	// HasCapability reports whether the agent declares a capability by name
	HasCapability(name string) bool

	// Status returns the agent's current lifecycle status
	Status() models.AgentStatus

	// LastActive returns when the agent last processed a query
	LastActive() time.Time

	// ProcessQuery answers a natural-language query, optionally using
	// extra context supplied by the caller
	ProcessQuery(ctx context.Context, query string, queryContext map[string]interface{}) (*models.AgentResponse, error)

	// Health reports whether the agent is able to serve queries
	Health(ctx context.Context) error

	// Dispose releases the agent's resources
	Dispose(ctx context.Context) error
}
