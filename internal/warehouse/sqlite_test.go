package warehouse

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// TestSQLiteConnectorExecute tests query execution against an in-memory database
func TestSQLiteConnectorExecute(t *testing.T) {
	conn := NewSQLiteConnector(":memory:", nil)
	ctx := context.Background()

	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Disconnect()

	if !conn.IsConnected() {
		t.Fatal("Expected connector to report connected")
	}

	if _, err := conn.Execute(ctx, "CREATE TABLE revenue (region TEXT, amount REAL)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	if _, err := conn.Execute(ctx, "INSERT INTO revenue VALUES ('EMEA', 100.5), ('APAC', 200.0)"); err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}

	rows, err := conn.Execute(ctx, "SELECT region, amount FROM revenue ORDER BY region")
	if err != nil {
		t.Fatalf("SELECT failed: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}

	if rows[0]["region"] != "APAC" {
		t.Errorf("Expected first region APAC, got %v", rows[0]["region"])
	}
}

// TestSQLiteConnectorNotConnected tests execution before Connect
func TestSQLiteConnectorNotConnected(t *testing.T) {
	conn := NewSQLiteConnector(":memory:", nil)

	_, err := conn.Execute(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("Expected error when not connected")
	}
}

// TestAuditLoggerRoundTrip tests logging and querying audit entries
func TestAuditLoggerRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	auditor, err := NewSQLiteAuditLogger(dbPath)
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	defer auditor.Close()

	ctx := context.Background()

	entry := &AuditEntry{
		Timestamp: time.Now(),
		Source:    SourceTypeSQLite,
		AgentID:   "ncc-financial",
		Statement: "SELECT * FROM revenue",
		RowCount:  42,
		Duration:  150 * time.Millisecond,
		Success:   true,
	}

	if err := auditor.Log(ctx, entry); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	source := SourceTypeSQLite
	entries, err := auditor.Query(ctx, &AuditFilter{Source: &source, Limit: 10})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}

	if entries[0].Statement != "SELECT * FROM revenue" {
		t.Errorf("Unexpected statement: %s", entries[0].Statement)
	}
	if entries[0].RowCount != 42 {
		t.Errorf("Expected 42 rows, got %d", entries[0].RowCount)
	}
}

// TestAuditLoggerStats tests aggregate statistics
func TestAuditLoggerStats(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	auditor, err := NewSQLiteAuditLogger(dbPath)
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	defer auditor.Close()

	ctx := context.Background()
	since := time.Now().Add(-time.Hour)

	for _, ok := range []bool{true, true, false} {
		auditor.Log(ctx, &AuditEntry{
			Timestamp: time.Now(),
			Source:    SourceTypeSnowflake,
			Statement: "SELECT 1",
			Duration:  100 * time.Millisecond,
			Success:   ok,
		})
	}

	stats, err := auditor.Stats(ctx, SourceTypeSnowflake, since)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.TotalQueries != 3 {
		t.Errorf("Expected 3 total queries, got %d", stats.TotalQueries)
	}
	if stats.SuccessfulQueries != 2 {
		t.Errorf("Expected 2 successful queries, got %d", stats.SuccessfulQueries)
	}
	if stats.ErrorRate == 0 {
		t.Error("Expected non-zero error rate")
	}
}
