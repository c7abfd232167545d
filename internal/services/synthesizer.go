package services

import (
	"math"
	"time"

	"synapse/internal/models"
)

// maxSynthesizedInsights caps how many distinct insights a synthesis keeps.
const maxSynthesizedInsights = 5

// consensusThreshold is the average confidence at which consensus reads high.
const consensusThreshold = 0.7

// SynthesizeInsights merges gathered module responses into a single summary
// map. With no responses it returns the empty marker, so consumers can tell
// "nobody engaged" apart from "engaged but found nothing".
//
// Insights keep their first-seen order across responses, deduplicated
// exactly. The average confidence only counts responses that reported one.
func SynthesizeInsights(responses []models.ModuleResponse, elapsed time.Duration) map[string]any {
	if len(responses) == 0 {
		return map[string]any{
			"message":         "No modules processed this event",
			"modules_engaged": 0,
		}
	}

	insights := make([]string, 0, maxSynthesizedInsights)
	seen := make(map[string]struct{})
	var confidences []float64

	for _, resp := range responses {
		if resp.Response == nil {
			continue
		}
		for _, insight := range stringList(resp.Response["key_insights"]) {
			if _, dup := seen[insight]; dup || len(insights) >= maxSynthesizedInsights {
				continue
			}
			seen[insight] = struct{}{}
			insights = append(insights, insight)
		}
		if confidence, ok := toFloat(resp.Response["confidence"]); ok {
			confidences = append(confidences, confidence)
		}
	}

	average := 0.0
	if len(confidences) > 0 {
		sum := 0.0
		for _, confidence := range confidences {
			sum += confidence
		}
		average = round2(sum / float64(len(confidences)))
	}

	consensus := "medium"
	if average >= consensusThreshold {
		consensus = "high"
	}

	return map[string]any{
		"synthesized_insights": insights,
		"average_confidence":   average,
		"modules_engaged":      len(responses),
		"consensus_level":      consensus,
		"processing_time":      elapsed.Round(time.Microsecond).String(),
	}
}

// stringList coerces a payload value into strings, tolerating the []any
// shape JSON decoding produces.
func stringList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// toFloat coerces the numeric types a confidence can arrive as.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// round2 rounds to two decimal places, half away from zero.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
