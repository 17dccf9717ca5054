package warehouse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestSnowflakeExecute tests statement execution against a stub SQL API
func TestSnowflakeExecute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/statements" {
			t.Errorf("Expected /api/v2/statements, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sf-token" {
			t.Errorf("Unexpected authorization header: %s", auth)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"resultSetMetaData": map[string]interface{}{
				"numRows": 2,
				"rowType": []map[string]string{
					{"name": "REGION", "type": "TEXT"},
					{"name": "NCC", "type": "REAL"},
				},
			},
			"data": [][]interface{}{
				{"EMEA", 1250.5},
				{"APAC", 900.0},
			},
		})
	}))
	defer server.Close()

	vault := NewMemoryCredentialVault()
	vault.Store(context.Background(), "snowflake", &Credentials{
		SourceType:  SourceTypeSnowflake,
		AccessToken: "sf-token",
	})

	conn := NewSnowflakeConnector(&SnowflakeConfig{AccountURL: server.URL}, vault, nil, nil)

	ctx := context.Background()
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	rows, err := conn.Execute(ctx, "SELECT REGION, NCC FROM NCC_AGENT")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0]["REGION"] != "EMEA" {
		t.Errorf("Expected EMEA, got %v", rows[0]["REGION"])
	}
}

// TestSnowflakeExecuteNotConnected tests execution before Connect
func TestSnowflakeExecuteNotConnected(t *testing.T) {
	conn := NewSnowflakeConnector(&SnowflakeConfig{AccountURL: "http://localhost:9"}, NewMemoryCredentialVault(), nil, nil)

	_, err := conn.Execute(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("Expected error when not connected")
	}
}

// TestSnowflakeExecuteError tests API error propagation
func TestSnowflakeExecuteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "002003",
			"message": "SQL compilation error",
		})
	}))
	defer server.Close()

	vault := NewMemoryCredentialVault()
	vault.Store(context.Background(), "snowflake", &Credentials{AccessToken: "t"})

	conn := NewSnowflakeConnector(&SnowflakeConfig{AccountURL: server.URL}, vault, nil, nil)

	ctx := context.Background()
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	_, err := conn.Execute(ctx, "SELECT bogus")
	if err == nil {
		t.Fatal("Expected error for failed statement")
	}
}
