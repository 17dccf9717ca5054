package warehouse

import (
	"context"
	"time"

	"github.com/beaconflow/beaconflow/internal/models"
)

// Connector represents a connection to a tabular data source
type Connector interface {
	// Name returns the connector identifier
	Name() string

	// Type returns the source type
	Type() SourceType

	// Connect establishes the connection
	Connect(ctx context.Context) error

	// Disconnect closes the connection
	Disconnect() error

	// IsConnected returns connection status
	IsConnected() bool

	// Execute runs a SQL statement and returns the result rows
	Execute(ctx context.Context, query string) ([]models.Row, error)
}

// SourceType defines the type of data source
type SourceType string

const (
	SourceTypeSnowflake SourceType = "snowflake"
	SourceTypeSQLite    SourceType = "sqlite"
)

// Credentials holds data source authentication credentials
type Credentials struct {
	SourceType  SourceType
	AccessToken string
	Username    string
	Password    string
	Expiry      time.Time
	Metadata    map[string]string
}

// CredentialVault manages secure credential storage
type CredentialVault interface {
	// Store saves credentials securely
	Store(ctx context.Context, sourceName string, creds *Credentials) error

	// Retrieve gets stored credentials
	Retrieve(ctx context.Context, sourceName string) (*Credentials, error)

	// Delete removes stored credentials
	Delete(ctx context.Context, sourceName string) error

	// List returns all stored source names
	List(ctx context.Context) ([]string, error)
}

// RateLimiter manages per-source query rate limiting
type RateLimiter interface {
	// Allow checks if a request is allowed
	Allow(ctx context.Context, source string) (bool, error)

	// Wait blocks until a request is allowed
	Wait(ctx context.Context, source string) error

	// GetStatus returns current rate limit status
	GetStatus(source string) *RateLimitStatus
}

// RateLimitStatus holds rate limit information
type RateLimitStatus struct {
	Limit     int       // Maximum requests allowed
	Remaining int       // Requests remaining
	Reset     time.Time // When the limit resets
}

// AuditLogger records every statement executed against a data source
type AuditLogger interface {
	// Log records a query execution
	Log(ctx context.Context, entry *AuditEntry) error

	// Query retrieves audit entries
	Query(ctx context.Context, filter *AuditFilter) ([]*AuditEntry, error)
}

// AuditEntry represents a single executed statement
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Source    SourceType
	AgentID   string
	Statement string
	RowCount  int
	Duration  time.Duration
	Success   bool
	Error     string
}

// AuditFilter defines criteria for querying the audit log
type AuditFilter struct {
	Source    *SourceType
	AgentID   *string
	StartTime *time.Time
	EndTime   *time.Time
	Success   *bool
	Limit     int
	Offset    int
}
