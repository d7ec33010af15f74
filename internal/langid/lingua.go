package langid

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

var (
	lookupOnce sync.Once
	byIsoCode  map[string]lingua.Language
)

func languageByCode(code string) (lingua.Language, bool) {
	lookupOnce.Do(func() {
		all := lingua.AllLanguages()
		byIsoCode = make(map[string]lingua.Language, len(all))
		for _, lang := range all {
			byIsoCode[strings.ToLower(lang.IsoCode639_1().String())] = lang
		}
	})
	lang, ok := byIsoCode[strings.ToLower(strings.TrimSpace(code))]
	return lang, ok
}

// Lingua identifies languages with lingua-go's n-gram models.
type Lingua struct {
	detector lingua.LanguageDetector
}

// NewLingua builds a detector restricted to codes, or over every supported
// language when codes is empty. Models are preloaded, which is slow; build
// once per process.
func NewLingua(codes []string) (*Lingua, error) {
	builder := lingua.NewLanguageDetectorBuilder()
	if len(codes) == 0 {
		return &Lingua{detector: builder.FromAllLanguages().WithPreloadedLanguageModels().Build()}, nil
	}

	langs := make([]lingua.Language, 0, len(codes))
	seen := make(map[lingua.Language]struct{}, len(codes))
	for _, code := range codes {
		lang, ok := languageByCode(code)
		if !ok {
			return nil, fmt.Errorf("lingua does not support language %q", code)
		}
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}
		langs = append(langs, lang)
	}
	if len(langs) < 2 {
		return nil, fmt.Errorf("lingua needs at least two languages, got %d", len(langs))
	}
	return &Lingua{detector: builder.FromLanguages(langs...).WithPreloadedLanguageModels().Build()}, nil
}

func (l *Lingua) Detect(text string) string {
	lang, ok := l.detector.DetectLanguageOf(text)
	if !ok {
		return Unknown
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
