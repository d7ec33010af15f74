package safety

// Fusion thresholds.
const (
	// RuleThreshold is the minimum rule weight that flags on its own.
	RuleThreshold = 0.7
	// ModelOnlyThreshold is the stricter bar for model-only detections.
	ModelOnlyThreshold = 0.75
	// ModelOnlyPenalty scales the confidence of model-only detections.
	ModelOnlyPenalty = 0.8
)

// Fuse merges the rule-detector and classifier verdicts into the final
// verdict. Rows are evaluated in order, first match wins. An absent or failed
// classifier must be passed as Abstain(SourceModel).
func Fuse(rule, model Verdict) Verdict {
	switch {
	case !rule.Hate && rule.Confidence == 0:
		// Safe context or nothing matched: authoritative negative.
		return Negative(SourceFused)
	case rule.Hate && model.Hate:
		return Verdict{Hate: true, Confidence: max(rule.Confidence, model.Confidence), Source: SourceFused}
	case rule.Hate:
		if rule.Confidence >= RuleThreshold {
			return Verdict{Hate: true, Confidence: rule.Confidence, Source: SourceFused}
		}
		return Negative(SourceFused)
	case model.Hate:
		if model.Confidence >= ModelOnlyThreshold {
			return Verdict{Hate: true, Confidence: model.Confidence * ModelOnlyPenalty, Source: SourceFused}
		}
		return Negative(SourceFused)
	default:
		return Negative(SourceFused)
	}
}
