package safety

import "math"

// Signal sources.
const (
	SourceRules = "rules"
	SourceModel = "model"
	SourceFused = "fused"
)

// Verdict is a single hate/not-hate signal emitted by the rule detector, the
// statistical classifier or the fuser.
type Verdict struct {
	Hate       bool    `json:"hate"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	// Abstained marks a component that had no opinion (absent, failed).
	// An abstaining verdict is always (false, 0).
	Abstained bool `json:"abstained,omitempty"`
}

// Abstain returns the "no opinion" verdict for source.
func Abstain(source string) Verdict {
	return Verdict{Hate: false, Confidence: 0, Source: source, Abstained: true}
}

// Negative returns an explicit (false, 0) verdict.
func Negative(source string) Verdict {
	return Verdict{Hate: false, Confidence: 0, Source: source}
}

// Round3 clamps c to [0,1] and rounds it to three decimals.
func Round3(c float64) float64 {
	if math.IsNaN(c) || c <= 0 {
		return 0
	}
	if c >= 1 {
		return 1
	}
	return math.Round(c*1000) / 1000
}
