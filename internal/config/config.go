package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/beaconflow/beaconflow/internal/models"
)

// Config is the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Ollama        OllamaConfig        `yaml:"ollama"`
	Cache         CacheConfig         `yaml:"cache"`
	Knowledge     KnowledgeConfig     `yaml:"knowledge"`
	Audit         AuditConfig         `yaml:"audit"`
	Collaboration CollaborationConfig `yaml:"collaboration"`
	Conversations ConversationConfig  `yaml:"conversations"`
	DataSources   []DataSourceConfig  `yaml:"data_sources"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// OllamaConfig configures the inference backend
type OllamaConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	ContextSize int     `yaml:"context_size"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// CacheConfig configures the Redis response cache
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// KnowledgeConfig configures the knowledge base store
type KnowledgeConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// AuditConfig configures the query audit log
type AuditConfig struct {
	Path string `yaml:"path"`
}

// CollaborationConfig bounds agent collaborations
type CollaborationConfig struct {
	MaxTurns int `yaml:"max_turns"`
}

// ConversationConfig controls conversation cleanup
type ConversationConfig struct {
	MaxAgeMinutes          int `yaml:"max_age_minutes"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes"`
}

// DataSourceConfig binds a semantic model to a connector
type DataSourceConfig struct {
	Connector       ConnectorConfig      `yaml:"connector"`
	RequestsPerHour int                  `yaml:"requests_per_hour"`
	Model           models.SemanticModel `yaml:"model"`
}

// ConnectorConfig selects and configures the data source connector.
// Type is "sqlite" or "snowflake".
type ConnectorConfig struct {
	Type      string          `yaml:"type"`
	Path      string          `yaml:"path"` // sqlite database file
	Snowflake SnowflakeConfig `yaml:"snowflake"`
}

// SnowflakeConfig holds Snowflake connection settings. The access token
// is read from the environment variable named by TokenEnv, never from
// the config file.
type SnowflakeConfig struct {
	AccountURL string `yaml:"account_url"`
	Database   string `yaml:"database"`
	Schema     string `yaml:"schema"`
	Warehouse  string `yaml:"warehouse"`
	Role       string `yaml:"role"`
	TokenEnv   string `yaml:"token_env"`
}

// Load reads a YAML config file over the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration that runs entirely on local
// resources: SQLite-backed data sources, no Redis.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Ollama: OllamaConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.1:8b",
			ContextSize: 8192,
			Temperature: 0.2,
			TimeoutSec:  120,
		},
		Cache: CacheConfig{
			Addr:       "localhost:6379",
			TTLMinutes: 15,
		},
		Knowledge: KnowledgeConfig{Path: "~/.beaconflow/knowledge"},
		Audit:     AuditConfig{Path: "~/.beaconflow/audit.db"},
		Collaboration: CollaborationConfig{
			MaxTurns: 16,
		},
		Conversations: ConversationConfig{
			MaxAgeMinutes:          60,
			CleanupIntervalMinutes: 10,
		},
		DataSources: []DataSourceConfig{
			{
				Connector:       ConnectorConfig{Type: "sqlite", Path: "./data/ncc.db"},
				RequestsPerHour: 3600,
				Model:           nccFinancialModel(),
			},
			{
				Connector:       ConnectorConfig{Type: "sqlite", Path: "./data/performance.db"},
				RequestsPerHour: 3600,
				Model:           officePerformanceModel(),
			},
		},
	}
}

// nccFinancialModel is the built-in revenue data source
func nccFinancialModel() models.SemanticModel {
	return models.SemanticModel{
		ID:          "ncc-financial",
		Name:        "NCC Financial Agent",
		Description: "Net contribution to company revenue by sector, client, region and system",
		Tables: []models.TableSchema{
			{
				Name:        "NCC_AGENT",
				Description: "Monthly NCC figures per client project",
				Columns: []models.Column{
					{Name: "SECTOR", Type: "VARCHAR", Description: "Business sector of the client"},
					{Name: "MONTH", Type: "DATE", Description: "Reporting month"},
					{Name: "CLIENT", Type: "VARCHAR", Description: "Client name"},
					{Name: "PROJECT_ID", Type: "VARCHAR", Description: "Unique project identifier"},
					{Name: "NCC", Type: "NUMBER", Description: "Net contribution to company in USD"},
					{Name: "REGION", Type: "VARCHAR", Description: "Delivery region"},
					{Name: "SYSTEM", Type: "VARCHAR", Description: "Source booking system"},
					{Name: "REGION_STANDARD", Type: "VARCHAR", Description: "Normalized region name"},
				},
			},
		},
		Metrics: []models.Metric{
			{Name: "total_ncc", Description: "Total NCC", Formula: "SUM(NCC)", Aggregation: "sum"},
			{Name: "total_ncc_by_system", Description: "Total NCC per booking system", Formula: "SUM(NCC) GROUP BY SYSTEM", Aggregation: "sum"},
			{Name: "average_ncc", Description: "Average NCC per project", Formula: "AVG(NCC)", Aggregation: "avg"},
		},
		Dimensions: []models.Dimension{
			{Name: "system", Description: "Booking system", Table: "NCC_AGENT", Column: "SYSTEM"},
			{Name: "region", Description: "Delivery region", Table: "NCC_AGENT", Column: "REGION_STANDARD"},
			{Name: "sector", Description: "Client sector", Table: "NCC_AGENT", Column: "SECTOR"},
			{Name: "month", Description: "Reporting month", Table: "NCC_AGENT", Column: "MONTH"},
		},
	}
}

// officePerformanceModel is the built-in office performance data source
func officePerformanceModel() models.SemanticModel {
	return models.SemanticModel{
		ID:          "office-performance",
		Name:        "Office Performance Agent",
		Description: "Office performance scores, attendance and headcount",
		Tables: []models.TableSchema{
			{
				Name:        "OFFICE_PERFORMANCE",
				Description: "Monthly performance metrics per office",
				Columns: []models.Column{
					{Name: "OFFICE", Type: "VARCHAR", Description: "Office name"},
					{Name: "REGION", Type: "VARCHAR", Description: "Office region"},
					{Name: "MONTH", Type: "DATE", Description: "Reporting month"},
					{Name: "PERFORMANCE_SCORE", Type: "NUMBER", Description: "Composite performance score 0-100"},
					{Name: "ATTENDANCE_RATE", Type: "NUMBER", Description: "Attendance rate 0-1"},
					{Name: "HEADCOUNT", Type: "NUMBER", Description: "Employees in the office"},
				},
			},
		},
		Metrics: []models.Metric{
			{Name: "avg_performance", Description: "Average performance score", Formula: "AVG(PERFORMANCE_SCORE)", Aggregation: "avg"},
			{Name: "avg_attendance", Description: "Average attendance rate", Formula: "AVG(ATTENDANCE_RATE)", Aggregation: "avg"},
			{Name: "total_headcount", Description: "Total headcount", Formula: "SUM(HEADCOUNT)", Aggregation: "sum"},
		},
		Dimensions: []models.Dimension{
			{Name: "office", Description: "Office", Table: "OFFICE_PERFORMANCE", Column: "OFFICE"},
			{Name: "region", Description: "Office region", Table: "OFFICE_PERFORMANCE", Column: "REGION"},
			{Name: "month", Description: "Reporting month", Table: "OFFICE_PERFORMANCE", Column: "MONTH"},
		},
	}
}
