package models

// SemanticModel describes the business view of a data source: its
// tables, relationships, metrics and dimensions. Agents use it to
// build LLM prompts for SQL generation.
type SemanticModel struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	Description   string         `json:"description" yaml:"description"`
	Tables        []TableSchema  `json:"tables" yaml:"tables"`
	Relationships []Relationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Metrics       []Metric       `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Dimensions    []Dimension    `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
}

// TableSchema describes a single table in a semantic model
type TableSchema struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Columns     []Column `json:"columns" yaml:"columns"`
}

// Column describes a table column
type Column struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Nullable    bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
}

// Relationship links two tables in a semantic model
type Relationship struct {
	Name      string `json:"name" yaml:"name"`
	FromTable string `json:"fromTable" yaml:"from_table"`
	FromCol   string `json:"fromColumn" yaml:"from_column"`
	ToTable   string `json:"toTable" yaml:"to_table"`
	ToCol     string `json:"toColumn" yaml:"to_column"`
	Type      string `json:"type" yaml:"type"` // one_to_many, many_to_one, one_to_one
}

// Metric is a named business calculation over a semantic model
type Metric struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Formula     string `json:"formula" yaml:"formula"`
	Aggregation string `json:"aggregation" yaml:"aggregation"` // sum, avg, count, min, max
}

// Dimension is an axis along which metrics can be sliced
type Dimension struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Table       string   `json:"table" yaml:"table"`
	Column      string   `json:"column" yaml:"column"`
	Hierarchies []string `json:"hierarchies,omitempty" yaml:"hierarchies,omitempty"`
}

// Table looks up a table schema by name, returning nil when absent
func (m *SemanticModel) Table(name string) *TableSchema {
	for i := range m.Tables {
		if m.Tables[i].Name == name {
			return &m.Tables[i]
		}
	}
	return nil
}
