package agent

import (
	"fmt"
	"strings"

	"github.com/beaconflow/beaconflow/internal/models"
)

// buildSystemPrompt renders the semantic model into the system prompt
// that steers the LLM towards valid SQL over the bound data source.
func buildSystemPrompt(model *models.SemanticModel, knowledgeContext string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a data analyst agent for the %q data source.\n", model.Name)
	if model.Description != "" {
		fmt.Fprintf(&b, "%s\n", model.Description)
	}
	b.WriteString("\nAvailable tables:\n")

	for _, table := range model.Tables {
		fmt.Fprintf(&b, "\nTable %s: %s\n", table.Name, table.Description)
		for _, col := range table.Columns {
			fmt.Fprintf(&b, "  - %s (%s): %s\n", col.Name, col.Type, col.Description)
		}
	}

	if len(model.Relationships) > 0 {
		b.WriteString("\nRelationships:\n")
		for _, rel := range model.Relationships {
			fmt.Fprintf(&b, "  - %s.%s -> %s.%s (%s)\n", rel.FromTable, rel.FromCol, rel.ToTable, rel.ToCol, rel.Type)
		}
	}

	if len(model.Metrics) > 0 {
		b.WriteString("\nBusiness metrics:\n")
		for _, m := range model.Metrics {
			fmt.Fprintf(&b, "  - %s: %s (formula: %s, aggregation: %s)\n", m.Name, m.Description, m.Formula, m.Aggregation)
		}
	}

	if len(model.Dimensions) > 0 {
		b.WriteString("\nDimensions:\n")
		for _, d := range model.Dimensions {
			fmt.Fprintf(&b, "  - %s: %s.%s\n", d.Name, d.Table, d.Column)
		}
	}

	if knowledgeContext != "" {
		b.WriteString("\nBusiness context:\n")
		b.WriteString(knowledgeContext)
		b.WriteString("\n")
	}

	b.WriteString(`
Analyze the user's question and respond with ONLY a JSON object:
{
  "needsData": true|false,
  "sql": "SELECT ... (only when needsData is true; query only the tables above)",
  "analysisType": "aggregation|trend|comparison|lookup|general",
  "explanation": "plain-language answer or description of the analysis",
  "reasoning": "brief explanation of your approach",
  "confidence": 0.0-1.0,
  "suggestions": ["follow-up questions the user might ask"],
  "visualization": {"type": "bar|line|pie|table", "title": "...", "xAxis": "...", "yAxis": "..."}
}

Rules:
- Use only tables and columns listed above.
- Set needsData to false for conceptual questions that need no query.
- Never invent data; when unsure, lower the confidence.

JSON Response:`)

	return b.String()
}
