// Package langid identifies the language of a text snippet. Identification
// never fails loudly: an unidentifiable text reports Unknown.
package langid

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/straja-ai/hatescan/internal/config"
	"github.com/straja-ai/hatescan/internal/logging"
)

const (
	// English is reported by Unavailable for every input.
	English = "en"
	// Unknown is reported when identification fails.
	Unknown = "unknown"
)

// Identifier returns an ISO-639-1 code (lower case) or Unknown.
type Identifier interface {
	Detect(text string) string
}

// Unavailable stands in when no identifier is configured; everything is
// treated as English so translation is never attempted.
type Unavailable struct{}

func (Unavailable) Detect(string) string { return English }

// New selects an identifier from config: lingua, whatlang or none.
func New(cfg config.LanguageConfig, logger *zap.Logger) (Identifier, error) {
	logger = logging.OrNop(logger)
	switch strings.ToLower(strings.TrimSpace(cfg.Detector)) {
	case "", "lingua":
		l, err := NewLingua(cfg.Languages)
		if err != nil {
			return nil, err
		}
		return Guard(l, logger), nil
	case "whatlang":
		return Guard(NewWhatlang(DefaultWhatlangConfidence), logger), nil
	case "none":
		return Unavailable{}, nil
	default:
		return nil, fmt.Errorf("unknown language detector %q", cfg.Detector)
	}
}

type guarded struct {
	inner  Identifier
	logger *zap.Logger
}

// Guard wraps id so a panic inside it is logged and reported as Unknown.
func Guard(id Identifier, logger *zap.Logger) Identifier {
	return &guarded{inner: id, logger: logging.OrNop(logger)}
}

func (g *guarded) Detect(text string) (lang string) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("language identification panicked", zap.Any("panic", r))
			lang = Unknown
		}
	}()
	lang = strings.ToLower(strings.TrimSpace(g.inner.Detect(text)))
	if lang == "" {
		return Unknown
	}
	return lang
}
