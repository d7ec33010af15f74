package langid

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// DefaultWhatlangConfidence is the minimum confidence accepted from whatlanggo.
const DefaultWhatlangConfidence = 0.5

// Whatlang is a lightweight trigram identifier without preloaded models.
type Whatlang struct {
	minConfidence float64
}

func NewWhatlang(minConfidence float64) *Whatlang {
	return &Whatlang{minConfidence: minConfidence}
}

func (w *Whatlang) Detect(text string) string {
	if strings.TrimSpace(text) == "" {
		return Unknown
	}
	info := whatlanggo.Detect(text)
	if info.Confidence < w.minConfidence {
		return Unknown
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return Unknown
	}
	return strings.ToLower(code)
}
