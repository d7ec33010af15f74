// Package detector is the rule-based hate-speech detector: weighted regex
// patterns and lexicon hits, with a safe-context allow-list that overrides
// everything else.
package detector

import (
	"strings"

	"github.com/straja-ai/hatescan/internal/lexicon"
	"github.com/straja-ai/hatescan/internal/rules"
	"github.com/straja-ai/hatescan/internal/safety"
)

// Result is the detector verdict plus the evidence behind it.
type Result struct {
	safety.Verdict
	// Matches lists the rule names and lexicon terms that fired, prefixed
	// with "rule:", "word:" or "phrase:".
	Matches []string
	// SafeContext names the allow-list pattern that suppressed the text.
	SafeContext string
}

// Detector is safe for concurrent use; the rule set is immutable and the
// lexicon store swaps atomically.
type Detector struct {
	rules   *rules.Set
	lexicon *lexicon.Store
}

// New builds a detector. A nil rule set uses rules.Default; a nil store means
// no lexicon.
func New(set *rules.Set, store *lexicon.Store) *Detector {
	if set == nil {
		set = rules.Default()
	}
	if store == nil {
		store = lexicon.NewStore()
	}
	return &Detector{rules: set, lexicon: store}
}

// Lexicon returns the store the detector reads from.
func (d *Detector) Lexicon() *lexicon.Store {
	return d.lexicon
}

// Detect scores text. Confidence is non-zero only when Hate is true.
func (d *Detector) Detect(text string) Result {
	lc := strings.ToLower(text)
	if strings.TrimSpace(lc) == "" {
		return Result{Verdict: safety.Negative(safety.SourceRules)}
	}

	for _, sc := range d.rules.SafeContexts {
		if sc.Pattern.MatchString(lc) {
			return Result{Verdict: safety.Negative(safety.SourceRules), SafeContext: sc.Name}
		}
	}

	var (
		best    float64
		matches []string
	)
	for _, p := range d.rules.Patterns {
		if !p.Pattern.MatchString(lc) {
			continue
		}
		matches = append(matches, "rule:"+p.Name)
		if p.Weight > best {
			best = p.Weight
		}
	}

	hits := d.lexicon.Match(lc)
	for _, w := range hits.Words {
		matches = append(matches, "word:"+w)
		if d.rules.LexiconWordWeight > best {
			best = d.rules.LexiconWordWeight
		}
	}
	for _, p := range hits.Phrases {
		matches = append(matches, "phrase:"+p)
		if d.rules.LexiconPhraseWeight > best {
			best = d.rules.LexiconPhraseWeight
		}
	}

	if best < d.rules.Threshold {
		return Result{Verdict: safety.Negative(safety.SourceRules), Matches: matches}
	}
	return Result{
		Verdict: safety.Verdict{Hate: true, Confidence: best, Source: safety.SourceRules},
		Matches: matches,
	}
}
