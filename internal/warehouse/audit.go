package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteAuditLogger records executed statements in a SQLite database
type SQLiteAuditLogger struct {
	db *sql.DB
}

// NewSQLiteAuditLogger creates a new SQLite audit logger
func NewSQLiteAuditLogger(dbPath string) (*SQLiteAuditLogger, error) {
	// Expand path
	if strings.HasPrefix(dbPath, "~/") {
		home, _ := os.UserHomeDir()
		dbPath = filepath.Join(home, dbPath[2:])
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger := &SQLiteAuditLogger{db: db}

	if err := logger.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return logger, nil
}

// initSchema creates the query audit table
func (a *SQLiteAuditLogger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		source TEXT NOT NULL,
		agent_id TEXT,
		statement TEXT NOT NULL,
		row_count INTEGER,
		duration_ms INTEGER,
		success BOOLEAN,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON query_audit(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_source ON query_audit(source);
	CREATE INDEX IF NOT EXISTS idx_audit_agent ON query_audit(agent_id);
	`

	_, err := a.db.Exec(schema)
	return err
}

// Log records a query execution
func (a *SQLiteAuditLogger) Log(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO query_audit (
			timestamp, source, agent_id, statement, row_count, duration_ms, success, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := a.db.ExecContext(ctx, query,
		entry.Timestamp,
		string(entry.Source),
		entry.AgentID,
		entry.Statement,
		entry.RowCount,
		entry.Duration.Milliseconds(),
		entry.Success,
		entry.Error,
	)

	return err
}

// Query retrieves audit entries matching the filter
func (a *SQLiteAuditLogger) Query(ctx context.Context, filter *AuditFilter) ([]*AuditEntry, error) {
	query := "SELECT id, timestamp, source, agent_id, statement, row_count, duration_ms, success, error FROM query_audit WHERE 1=1"
	args := []interface{}{}

	if filter.Source != nil {
		query += " AND source = ?"
		args = append(args, string(*filter.Source))
	}

	if filter.AgentID != nil {
		query += " AND agent_id = ?"
		args = append(args, *filter.AgentID)
	}

	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, *filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, *filter.EndTime)
	}

	if filter.Success != nil {
		query += " AND success = ?"
		args = append(args, *filter.Success)
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var id int64
		var durationMs int64
		var source string

		err := rows.Scan(
			&id,
			&entry.Timestamp,
			&source,
			&entry.AgentID,
			&entry.Statement,
			&entry.RowCount,
			&durationMs,
			&entry.Success,
			&entry.Error,
		)
		if err != nil {
			return nil, err
		}

		entry.ID = fmt.Sprintf("%d", id)
		entry.Source = SourceType(source)
		entry.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Stats returns aggregate execution statistics for a source
func (a *SQLiteAuditLogger) Stats(ctx context.Context, source SourceType, since time.Time) (*AuditStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END) as successful,
			AVG(duration_ms) as avg_duration_ms
		FROM query_audit
		WHERE source = ? AND timestamp >= ?
	`

	var stats AuditStats
	var successful sql.NullInt64
	var avgDuration sql.NullFloat64

	err := a.db.QueryRowContext(ctx, query, string(source), since).Scan(
		&stats.TotalQueries,
		&successful,
		&avgDuration,
	)
	if err != nil {
		return nil, err
	}

	if successful.Valid {
		stats.SuccessfulQueries = int(successful.Int64)
	}
	if avgDuration.Valid {
		stats.AverageDuration = time.Duration(avgDuration.Float64) * time.Millisecond
	}

	if stats.TotalQueries > 0 {
		stats.ErrorRate = float64(stats.TotalQueries-stats.SuccessfulQueries) / float64(stats.TotalQueries)
	}

	return &stats, nil
}

// Close closes the database connection
func (a *SQLiteAuditLogger) Close() error {
	return a.db.Close()
}

// AuditStats holds aggregate audit statistics
type AuditStats struct {
	TotalQueries      int
	SuccessfulQueries int
	ErrorRate         float64
	AverageDuration   time.Duration
}
