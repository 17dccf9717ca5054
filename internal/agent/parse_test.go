package agent

import (
	"testing"
)

// TestParseAnalysisValid tests parsing of well-formed structured output
func TestParseAnalysisValid(t *testing.T) {
	response := `{
		"needsData": true,
		"sql": "SELECT REGION, SUM(NCC) FROM NCC_AGENT GROUP BY REGION",
		"analysisType": "aggregation",
		"explanation": "Total NCC per region",
		"confidence": 0.9,
		"suggestions": ["Break down by month"]
	}`

	result := parseAnalysis(response)

	if !result.NeedsData {
		t.Error("Expected needsData true")
	}
	if result.SQL == "" {
		t.Error("Expected SQL to be extracted")
	}
	if result.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", result.Confidence)
	}
	if len(result.Suggestions) != 1 {
		t.Errorf("Expected 1 suggestion, got %d", len(result.Suggestions))
	}
}

// TestParseAnalysisMarkdownFence tests extraction from fenced code blocks
func TestParseAnalysisMarkdownFence(t *testing.T) {
	response := "```json\n{\"needsData\": false, \"explanation\": \"Conceptual answer\", \"confidence\": 0.8}\n```"

	result := parseAnalysis(response)

	if result.NeedsData {
		t.Error("Expected needsData false")
	}
	if result.Explanation != "Conceptual answer" {
		t.Errorf("Unexpected explanation: %q", result.Explanation)
	}
}

// TestParseAnalysisSurroundingProse tests extraction with prose around the JSON
func TestParseAnalysisSurroundingProse(t *testing.T) {
	response := `Here is my analysis:
{"needsData": true, "sql": "SELECT 1", "explanation": "ok", "confidence": 0.7}
Hope this helps!`

	result := parseAnalysis(response)

	if result.SQL != "SELECT 1" {
		t.Errorf("Expected SQL extraction, got %q", result.SQL)
	}
}

// TestParseAnalysisFallback tests that unparseable output never fails
func TestParseAnalysisFallback(t *testing.T) {
	response := "I think revenue is trending down in EMEA this quarter."

	result := parseAnalysis(response)

	if result.NeedsData {
		t.Error("Expected needsData false in fallback")
	}
	if result.Explanation != response {
		t.Errorf("Expected raw content as explanation, got %q", result.Explanation)
	}
	if result.Confidence != 0.5 {
		t.Errorf("Expected fallback confidence 0.5, got %f", result.Confidence)
	}
	if result.Suggestions == nil {
		t.Error("Expected empty, non-nil suggestions")
	}
}

// TestParseAnalysisMalformedJSON tests fallback for invalid JSON bodies
func TestParseAnalysisMalformedJSON(t *testing.T) {
	response := `{"needsData": true, "sql": "SELECT` // truncated

	result := parseAnalysis(response)

	if result.Confidence != 0.5 {
		t.Errorf("Expected fallback confidence, got %f", result.Confidence)
	}
}

// TestParseAnalysisConfidenceClamp tests clamping of out-of-range confidence
func TestParseAnalysisConfidenceClamp(t *testing.T) {
	result := parseAnalysis(`{"explanation": "x", "confidence": 1.7}`)
	if result.Confidence != 1 {
		t.Errorf("Expected confidence clamped to 1, got %f", result.Confidence)
	}

	result = parseAnalysis(`{"explanation": "x", "confidence": -0.3}`)
	if result.Confidence != 0 {
		t.Errorf("Expected confidence clamped to 0, got %f", result.Confidence)
	}
}
