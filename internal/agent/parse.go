package agent

import (
	"encoding/json"
	"strings"

	"github.com/beaconflow/beaconflow/internal/models"
)

// analysisResult is the structured output the LLM is asked to produce
// for a data query
type analysisResult struct {
	NeedsData     bool                      `json:"needsData"`
	SQL           string                    `json:"sql,omitempty"`
	AnalysisType  string                    `json:"analysisType,omitempty"`
	Explanation   string                    `json:"explanation"`
	Reasoning     string                    `json:"reasoning,omitempty"`
	Confidence    float64                   `json:"confidence"`
	Suggestions   []string                  `json:"suggestions,omitempty"`
	Visualization *models.VisualizationSpec `json:"visualization,omitempty"`
}

// parseAnalysis extracts a structured analysis from raw LLM output.
// Malformed output never fails: the raw text becomes the explanation
// with a 0.5 confidence and no data request.
func parseAnalysis(response string) *analysisResult {
	jsonStr, ok := extractJSON(response)
	if !ok {
		return fallbackAnalysis(response)
	}

	var result analysisResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return fallbackAnalysis(response)
	}

	// Clamp confidence
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}

	if result.Explanation == "" {
		result.Explanation = strings.TrimSpace(response)
	}
	if result.Suggestions == nil {
		result.Suggestions = []string{}
	}

	return &result
}

// fallbackAnalysis wraps unparseable output as a plain-text answer
func fallbackAnalysis(response string) *analysisResult {
	return &analysisResult{
		NeedsData:   false,
		Explanation: strings.TrimSpace(response),
		Confidence:  0.5,
		Suggestions: []string{},
	}
}

// extractJSON locates the outermost JSON object in LLM output,
// tolerating markdown code fences and surrounding prose.
func extractJSON(response string) (string, bool) {
	response = strings.TrimSpace(response)

	// Remove markdown code blocks
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
		response = strings.TrimSuffix(response, "```")
		response = strings.TrimSpace(response)
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
		response = strings.TrimSuffix(response, "```")
		response = strings.TrimSpace(response)
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")

	if start == -1 || end == -1 || end < start {
		return "", false
	}

	return response[start : end+1], true
}
