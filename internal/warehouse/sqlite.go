package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/beaconflow/beaconflow/internal/models"
)

// SQLiteConnector executes SQL against a local SQLite database. Used
// for development data sources and tests.
type SQLiteConnector struct {
	path      string
	auditor   AuditLogger
	db        *sql.DB
	connected bool
	mu        sync.RWMutex
}

// NewSQLiteConnector creates a new SQLite connector for the given file
// path (":memory:" for an in-memory database).
func NewSQLiteConnector(path string, auditor AuditLogger) *SQLiteConnector {
	return &SQLiteConnector{
		path:    path,
		auditor: auditor,
	}
}

func (c *SQLiteConnector) Name() string     { return "sqlite" }
func (c *SQLiteConnector) Type() SourceType { return SourceTypeSQLite }

// Connect opens the database
func (c *SQLiteConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	db, err := sql.Open("sqlite3", c.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.db = db
	c.connected = true
	return nil
}

// Disconnect closes the database
func (c *SQLiteConnector) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	c.connected = false
	return c.db.Close()
}

// IsConnected returns connection status
func (c *SQLiteConnector) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Execute runs a SQL statement and returns the result rows
func (c *SQLiteConnector) Execute(ctx context.Context, query string) ([]models.Row, error) {
	c.mu.RLock()
	connected := c.connected
	db := c.db
	c.mu.RUnlock()

	if !connected {
		return nil, fmt.Errorf("sqlite connector is not connected")
	}

	startTime := time.Now()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		c.logAudit(ctx, query, 0, time.Since(startTime), false, err.Error())
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var result []models.Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := models.Row{}
		for i, col := range cols {
			v := values[i]
			// database/sql returns []byte for TEXT; normalize to string
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		c.logAudit(ctx, query, len(result), time.Since(startTime), false, err.Error())
		return nil, err
	}

	c.logAudit(ctx, query, len(result), time.Since(startTime), true, "")
	return result, nil
}

func (c *SQLiteConnector) logAudit(ctx context.Context, statement string, rowCount int, duration time.Duration, success bool, errorMsg string) {
	if c.auditor == nil {
		return
	}

	_ = c.auditor.Log(ctx, &AuditEntry{
		Timestamp: time.Now(),
		Source:    SourceTypeSQLite,
		Statement: statement,
		RowCount:  rowCount,
		Duration:  duration,
		Success:   success,
		Error:     errorMsg,
	})
}
