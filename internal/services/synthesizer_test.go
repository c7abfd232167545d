package services

import (
	"testing"
	"time"

	"synapse/internal/models"
)

func synthResponse(id string, response map[string]any) models.ModuleResponse {
	return models.ModuleResponse{
		ModuleID:   id,
		ModuleName: "Module " + id,
		Response:   response,
		Timestamp:  time.Now().UTC(),
	}
}

func TestSynthesizeInsights_EmptyMarker(t *testing.T) {
	got := SynthesizeInsights(nil, time.Millisecond)

	if got["message"] != "No modules processed this event" {
		t.Errorf("Expected the empty marker message, got %v", got["message"])
	}
	if got["modules_engaged"] != 0 {
		t.Errorf("Expected modules_engaged 0, got %v", got["modules_engaged"])
	}
	if _, ok := got["synthesized_insights"]; ok {
		t.Error("Empty marker should not carry synthesized_insights")
	}
}

func TestSynthesizeInsights_DedupeAndCap(t *testing.T) {
	responses := []models.ModuleResponse{
		synthResponse("a", map[string]any{
			"key_insights": []string{"one", "two", "one"},
			"confidence":   0.8,
		}),
		synthResponse("b", map[string]any{
			"key_insights": []string{"two", "three", "four", "five", "six", "seven"},
			"confidence":   0.8,
		}),
	}

	got := SynthesizeInsights(responses, time.Millisecond)

	insights := got["synthesized_insights"].([]string)
	want := []string{"one", "two", "three", "four", "five"}
	if len(insights) != len(want) {
		t.Fatalf("Expected %v, got %v", want, insights)
	}
	for i := range want {
		if insights[i] != want[i] {
			t.Errorf("Insight %d: expected %s, got %s", i, want[i], insights[i])
		}
	}
}

func TestSynthesizeInsights_AverageRounding(t *testing.T) {
	responses := []models.ModuleResponse{
		synthResponse("a", map[string]any{"confidence": 0.85}),
		synthResponse("b", map[string]any{"confidence": 0.78}),
	}

	got := SynthesizeInsights(responses, time.Millisecond)
	if avg := got["average_confidence"].(float64); avg != 0.82 {
		t.Errorf("Expected average 0.82, got %v", avg)
	}
}

func TestSynthesizeInsights_ConsensusBoundary(t *testing.T) {
	// An average of exactly 0.7 counts as high consensus.
	atBoundary := []models.ModuleResponse{
		synthResponse("a", map[string]any{"confidence": 0.6}),
		synthResponse("b", map[string]any{"confidence": 0.8}),
	}
	got := SynthesizeInsights(atBoundary, time.Millisecond)
	if got["consensus_level"] != "high" {
		t.Errorf("Average 0.70 should be high consensus, got %v", got["consensus_level"])
	}

	below := []models.ModuleResponse{
		synthResponse("a", map[string]any{"confidence": 0.6}),
	}
	got = SynthesizeInsights(below, time.Millisecond)
	if got["consensus_level"] != "medium" {
		t.Errorf("Average 0.60 should be medium consensus, got %v", got["consensus_level"])
	}
}

func TestSynthesizeInsights_MissingConfidenceSkipped(t *testing.T) {
	responses := []models.ModuleResponse{
		synthResponse("a", map[string]any{"confidence": 0.9}),
		synthResponse("b", map[string]any{"processed": true}),
	}

	got := SynthesizeInsights(responses, time.Millisecond)
	if avg := got["average_confidence"].(float64); avg != 0.9 {
		t.Errorf("Responses without confidence should not dilute the average, got %v", avg)
	}
	if got["modules_engaged"] != 2 {
		t.Errorf("All responses count as engaged, got %v", got["modules_engaged"])
	}
}

func TestSynthesizeInsights_DecodedJSONShapes(t *testing.T) {
	// Insights arriving through JSON decode as []any and confidences may be
	// bare ints.
	responses := []models.ModuleResponse{
		synthResponse("a", map[string]any{
			"key_insights": []any{"decoded", 42, "shapes"},
			"confidence":   1,
		}),
	}

	got := SynthesizeInsights(responses, time.Millisecond)

	insights := got["synthesized_insights"].([]string)
	if len(insights) != 2 || insights[0] != "decoded" || insights[1] != "shapes" {
		t.Errorf("Expected non-strings dropped, got %v", insights)
	}
	if avg := got["average_confidence"].(float64); avg != 1.0 {
		t.Errorf("Expected integer confidence coerced to 1.0, got %v", avg)
	}
	if got["consensus_level"] != "high" {
		t.Errorf("Expected high consensus, got %v", got["consensus_level"])
	}
}

func TestSynthesizeInsights_NoInsightsStillSummarizes(t *testing.T) {
	responses := []models.ModuleResponse{
		synthResponse("a", map[string]any{"processed": true, "confidence": 0.85}),
	}

	got := SynthesizeInsights(responses, 1500*time.Microsecond)

	insights := got["synthesized_insights"].([]string)
	if len(insights) != 0 {
		t.Errorf("Expected no insights, got %v", insights)
	}
	if got["modules_engaged"] != 1 {
		t.Errorf("Expected 1 module engaged, got %v", got["modules_engaged"])
	}
	if pt, ok := got["processing_time"].(string); !ok || pt == "" {
		t.Errorf("Expected a measured processing_time string, got %v", got["processing_time"])
	}
}
