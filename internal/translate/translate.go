// Package translate turns non-English text into the analysis language. Every
// failure is reported as data and falls back to the original text.
package translate

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/straja-ai/hatescan/internal/config"
	"github.com/straja-ai/hatescan/internal/langid"
)

// FailureKind explains why a Result is untranslated.
type FailureKind string

const (
	FailureNone        FailureKind = "none"
	FailureUnavailable FailureKind = "unavailable"  // no translator configured
	FailureSkipped     FailureKind = "skipped"      // source already in target or unknown
	FailureRateLimited FailureKind = "rate_limited" // local throttle denied the call
	FailureRequest     FailureKind = "request"      // transport, status or decode error
	FailureEmpty       FailureKind = "empty"        // service returned no text
)

// Result carries the analysis text. When Translated is false, Text is the
// original input.
type Result struct {
	Text       string
	Translated bool
	Failure    FailureKind
}

// Fallback returns the untranslated result for text.
func Fallback(text string, kind FailureKind) Result {
	return Result{Text: text, Failure: kind}
}

// Translator converts text from source into its target language.
type Translator interface {
	Translate(ctx context.Context, text, source string) Result
}

// Noop is used when translation is disabled.
type Noop struct{}

func (Noop) Translate(_ context.Context, text, _ string) Result {
	return Fallback(text, FailureUnavailable)
}

// New returns an HTTP translator when translation is enabled, Noop otherwise.
func New(cfg config.TranslationConfig, logger *zap.Logger) Translator {
	if !cfg.Enabled {
		return Noop{}
	}
	return NewHTTP(HTTPOptions{
		Endpoint:      cfg.Endpoint,
		APIKey:        cfg.APIKey(),
		Target:        cfg.Target,
		Timeout:       millis(cfg.TimeoutMs),
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		CacheSize:     cfg.CacheSize,
		CacheTTL:      seconds(cfg.CacheTTLSecond),
		Logger:        logger,
	})
}

// skip reports whether source needs no translation into target.
func skip(source, target string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	return s == "" || s == langid.Unknown || s == strings.ToLower(target)
}
