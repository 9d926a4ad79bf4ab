// Package verdict reduces per-frame predictions to one decision.
package verdict

import "github.com/kikiluvv/slopdetect/internal/ai"

// UnknownLabel is reported when there is nothing to vote on.
const UnknownLabel = "Unknown"

// Vote is one frame's label and confidence.
type Vote struct {
	Label      string
	Confidence float64
}

// Final is the aggregated decision.
type Final struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Aggregate picks the majority label, breaking ties in favour of the label
// seen first, and averages the confidence of the frames that voted for it.
func Aggregate(votes []Vote) Final {
	if len(votes) == 0 {
		return Final{Label: UnknownLabel, Confidence: 0.0}
	}

	counts := make(map[string]int, 2)
	order := make([]string, 0, 2)
	for _, v := range votes {
		if _, seen := counts[v.Label]; !seen {
			order = append(order, v.Label)
		}
		counts[v.Label]++
	}

	winner := order[0]
	for _, label := range order[1:] {
		if counts[label] > counts[winner] {
			winner = label
		}
	}

	var sum float64
	for _, v := range votes {
		if v.Label == winner {
			sum += v.Confidence
		}
	}

	return Final{
		Label:      winner,
		Confidence: ai.Round4(sum / float64(counts[winner])),
	}
}
