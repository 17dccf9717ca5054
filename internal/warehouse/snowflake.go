package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/beaconflow/beaconflow/internal/models"
)

// SnowflakeConnector executes SQL against the Snowflake SQL REST API
type SnowflakeConnector struct {
	config      *SnowflakeConfig
	credentials *Credentials
	vault       CredentialVault
	rateLimiter RateLimiter
	auditor     AuditLogger
	httpClient  *http.Client
	connected   bool
	mu          sync.RWMutex
}

// SnowflakeConfig holds Snowflake-specific configuration
type SnowflakeConfig struct {
	AccountURL string // e.g. https://myaccount.snowflakecomputing.com
	Database   string
	Schema     string
	Warehouse  string
	Role       string
	TimeoutSec int
}

// NewSnowflakeConnector creates a new Snowflake connector
func NewSnowflakeConnector(
	config *SnowflakeConfig,
	vault CredentialVault,
	rateLimiter RateLimiter,
	auditor AuditLogger,
) *SnowflakeConnector {
	if config.TimeoutSec == 0 {
		config.TimeoutSec = 60
	}

	return &SnowflakeConnector{
		config:      config,
		vault:       vault,
		rateLimiter: rateLimiter,
		auditor:     auditor,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSec+10) * time.Second,
		},
	}
}

func (s *SnowflakeConnector) Name() string     { return "snowflake" }
func (s *SnowflakeConnector) Type() SourceType { return SourceTypeSnowflake }

// Connect retrieves credentials from the vault and marks the connector ready
func (s *SnowflakeConnector) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.vault.Retrieve(ctx, s.Name())
	if err != nil {
		return fmt.Errorf("failed to retrieve credentials: %w", err)
	}

	s.credentials = creds
	s.connected = true

	return nil
}

// Disconnect marks the connector as disconnected
func (s *SnowflakeConnector) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

// IsConnected returns connection status
func (s *SnowflakeConnector) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

type statementRequest struct {
	Statement string `json:"statement"`
	Timeout   int    `json:"timeout"`
	Database  string `json:"database,omitempty"`
	Schema    string `json:"schema,omitempty"`
	Warehouse string `json:"warehouse,omitempty"`
	Role      string `json:"role,omitempty"`
}

type statementResponse struct {
	ResultSetMetaData struct {
		NumRows int `json:"numRows"`
		RowType []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"rowType"`
	} `json:"resultSetMetaData"`
	Data    [][]interface{} `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

// Execute runs a SQL statement via the SQL API v2 and returns result rows
func (s *SnowflakeConnector) Execute(ctx context.Context, query string) ([]models.Row, error) {
	s.mu.RLock()
	connected := s.connected
	creds := s.credentials
	s.mu.RUnlock()

	if !connected {
		return nil, fmt.Errorf("snowflake connector is not connected")
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, s.Name()); err != nil {
			return nil, fmt.Errorf("rate limit exceeded: %w", err)
		}
	}

	startTime := time.Now()

	reqBody := statementRequest{
		Statement: query,
		Timeout:   s.config.TimeoutSec,
		Database:  s.config.Database,
		Schema:    s.config.Schema,
		Warehouse: s.config.Warehouse,
		Role:      s.config.Role,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal statement: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.config.AccountURL+"/api/v2/statements", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		s.logAudit(ctx, query, 0, time.Since(startTime), false, err.Error())
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var stmtResp statementResponse
	if err := json.NewDecoder(resp.Body).Decode(&stmtResp); err != nil {
		s.logAudit(ctx, query, 0, time.Since(startTime), false, err.Error())
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logAudit(ctx, query, 0, time.Since(startTime), false, stmtResp.Message)
		return nil, fmt.Errorf("snowflake error %d: %s", resp.StatusCode, stmtResp.Message)
	}

	rows := make([]models.Row, 0, len(stmtResp.Data))
	for _, raw := range stmtResp.Data {
		row := models.Row{}
		for i, col := range stmtResp.ResultSetMetaData.RowType {
			if i < len(raw) {
				row[col.Name] = raw[i]
			}
		}
		rows = append(rows, row)
	}

	s.logAudit(ctx, query, len(rows), time.Since(startTime), true, "")
	return rows, nil
}

func (s *SnowflakeConnector) logAudit(ctx context.Context, statement string, rowCount int, duration time.Duration, success bool, errorMsg string) {
	if s.auditor == nil {
		return
	}

	entry := &AuditEntry{
		Timestamp: time.Now(),
		Source:    SourceTypeSnowflake,
		Statement: statement,
		RowCount:  rowCount,
		Duration:  duration,
		Success:   success,
		Error:     errorMsg,
	}

	_ = s.auditor.Log(ctx, entry)
}
