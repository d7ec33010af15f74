// Package events publishes moderation events (flagged analyses, lexicon
// changes) to file and webhook sinks without blocking the analysis path.
package events

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/straja-ai/hatescan/internal/redact"
)

const schemaVersion = "1"

// Kind names the event payload.
type Kind string

const (
	KindAnalysis Kind = "analysis"
	KindLexicon  Kind = "lexicon"
)

// Preview levels control how much of the analysed text an event carries.
const (
	PreviewMetadata = "metadata"
	PreviewRedacted = "redacted"
	PreviewFull     = "full"
)

const previewLimit = 280

// Analysis is the payload of a KindAnalysis event.
type Analysis struct {
	IsHateSpeech   bool     `json:"is_hate_speech"`
	Confidence     float64  `json:"confidence"`
	Category       string   `json:"category"`
	Language       string   `json:"language"`
	Translated     bool     `json:"translated"`
	RuleMatches    []string `json:"rule_matches,omitempty"`
	SafeContext    string   `json:"safe_context,omitempty"`
	ModelAbstained bool     `json:"model_abstained"`
	Preview        string   `json:"preview,omitempty"`
	LatencyMs      float64  `json:"latency_ms"`
}

// Lexicon is the payload of a KindLexicon event.
type Lexicon struct {
	Action  string `json:"action"` // reload | append | replace
	Path    string `json:"path"`
	Words   int    `json:"words"`
	Phrases int    `json:"phrases"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Event is the envelope delivered to sinks.
type Event struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Analysis  *Analysis `json:"analysis,omitempty"`
	Lexicon   *Lexicon  `json:"lexicon,omitempty"`
}

// NewAnalysisEvent wraps a. text is only carried as a preview, shaped by level.
func NewAnalysisEvent(a Analysis, text, level string) *Event {
	a.Preview = buildPreview(level, text)
	a.RuleMatches = cloneStrings(a.RuleMatches)
	return &Event{
		Version:   schemaVersion,
		Timestamp: time.Now().UTC(),
		ID:        newID(),
		Kind:      KindAnalysis,
		Analysis:  &a,
	}
}

// NewLexiconEvent wraps l.
func NewLexiconEvent(l Lexicon) *Event {
	l.Error = redact.String(l.Error)
	return &Event{
		Version:   schemaVersion,
		Timestamp: time.Now().UTC(),
		ID:        newID(),
		Kind:      KindLexicon,
		Lexicon:   &l,
	}
}

// ValidPreview reports whether level is a known preview level. Empty means metadata.
func ValidPreview(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", PreviewMetadata, PreviewRedacted, PreviewFull:
		return true
	}
	return false
}

func newID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

var (
	emailRegex  = regexp.MustCompile(`(?i)[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	handleRegex = regexp.MustCompile(`@[\pL\pN_]+`)
	tokenRegex  = regexp.MustCompile(`[A-Za-z0-9_\-]{20,}`)
)

func buildPreview(level, text string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case PreviewFull:
		return redact.String(redact.Snippet(text, previewLimit))
	case PreviewRedacted:
		return redact.String(redact.Snippet(simpleRedact(text), previewLimit))
	default:
		// metadata only
		return ""
	}
}

func simpleRedact(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = handleRegex.ReplaceAllString(s, "@user")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	return s
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
