// Package preprocess normalises text before vectorisation. It must match the
// preprocessing the classifier was trained with, so each stage can be toggled
// and the active set is recorded in the model manifest.
package preprocess

import (
	"bufio"
	_ "embed"
	"regexp"
	"strings"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"
)

//go:embed stopwords_en.txt
var stopwordsEN string

var (
	urlRe     = regexp.MustCompile(`https?\S+|www\S+`)
	mentionRe = regexp.MustCompile(`[@#][\pL\pN_]+`)
	nonWordRe = regexp.MustCompile(`[^\pL\pN_\s]`)
	digitsRe  = regexp.MustCompile(`\p{Nd}+`)

	stopwords = loadStopwords(stopwordsEN)
)

// Options toggles preprocessing stages. Stages run in field order.
type Options struct {
	Lowercase        bool `yaml:"lowercase" json:"lowercase"`
	StripURLs        bool `yaml:"strip_urls" json:"strip_urls"`
	StripMentions    bool `yaml:"strip_mentions" json:"strip_mentions"`
	StripPunctuation bool `yaml:"strip_punctuation" json:"strip_punctuation"`
	StripDigits      bool `yaml:"strip_digits" json:"strip_digits"`
	RemoveStopwords  bool `yaml:"remove_stopwords" json:"remove_stopwords"`
	Lemmatize        bool `yaml:"lemmatize" json:"lemmatize"`
}

// DefaultOptions enables every stage.
func DefaultOptions() Options {
	return Options{
		Lowercase:        true,
		StripURLs:        true,
		StripMentions:    true,
		StripPunctuation: true,
		StripDigits:      true,
		RemoveStopwords:  true,
		Lemmatize:        true,
	}
}

// Preprocessor is stateless and safe for concurrent use.
type Preprocessor struct {
	opts Options
}

func New(opts Options) *Preprocessor {
	return &Preprocessor{opts: opts}
}

// Options returns the active stage set.
func (p *Preprocessor) Options() Options {
	return p.opts
}

// Process runs the enabled stages over text. Whitespace is always collapsed.
func (p *Preprocessor) Process(text string) string {
	out := norm.NFKC.String(text)
	if p.opts.Lowercase {
		out = strings.ToLower(out)
	}
	if p.opts.StripURLs {
		out = urlRe.ReplaceAllString(out, "")
	}
	if p.opts.StripMentions {
		out = mentionRe.ReplaceAllString(out, "")
	}
	if p.opts.StripPunctuation {
		out = nonWordRe.ReplaceAllString(out, " ")
	}
	if p.opts.StripDigits {
		out = digitsRe.ReplaceAllString(out, "")
	}

	tokens := strings.Fields(out)
	if !p.opts.RemoveStopwords && !p.opts.Lemmatize {
		return strings.Join(tokens, " ")
	}

	kept := tokens[:0]
	for _, tok := range tokens {
		if p.opts.RemoveStopwords && IsStopword(tok) {
			continue
		}
		if p.opts.Lemmatize {
			tok = english.Stem(tok, false)
		}
		if tok != "" {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// IsStopword reports whether tok is in the English stopword list.
func IsStopword(tok string) bool {
	_, ok := stopwords[strings.ToLower(tok)]
	return ok
}

func loadStopwords(list string) map[string]struct{} {
	m := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(list))
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			m[w] = struct{}{}
		}
	}
	return m
}
