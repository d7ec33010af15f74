// Package rules holds the data-driven pattern table used by the rule-based
// detector: weighted hate patterns, safe-context patterns and the weights
// given to lexicon hits.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultTable []byte

// PatternRule is one weighted hate pattern.
type PatternRule struct {
	Name    string
	Target  string
	Pattern *regexp.Regexp
	Weight  float64
}

// SafeContext is a pattern whose match suppresses every hate signal.
type SafeContext struct {
	Name    string
	Pattern *regexp.Regexp
}

// Set is a compiled rule table. It is immutable after construction.
type Set struct {
	Threshold           float64
	LexiconWordWeight   float64
	LexiconPhraseWeight float64
	Patterns            []PatternRule
	SafeContexts        []SafeContext
}

type fileTable struct {
	Threshold float64 `yaml:"threshold"`
	Lexicon   struct {
		WordWeight   float64 `yaml:"word_weight"`
		PhraseWeight float64 `yaml:"phrase_weight"`
	} `yaml:"lexicon"`
	SafeContexts []struct {
		Name    string `yaml:"name"`
		Pattern string `yaml:"pattern"`
	} `yaml:"safe_contexts"`
	Patterns []struct {
		Name    string  `yaml:"name"`
		Target  string  `yaml:"target"`
		Pattern string  `yaml:"pattern"`
		Weight  float64 `yaml:"weight"`
	} `yaml:"patterns"`
}

// Default returns the built-in rule table. It panics if the embedded table
// does not compile.
func Default() *Set {
	s, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("rules: embedded table: %v", err))
	}
	return s
}

// Load reads a rule table from path. An empty path returns the built-in table.
func Load(path string) (*Set, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultTable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return s, nil
}

// Parse compiles a YAML rule table.
func Parse(data []byte) (*Set, error) {
	var ft fileTable
	if err := yaml.Unmarshal(data, &ft); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	s := &Set{
		Threshold:           ft.Threshold,
		LexiconWordWeight:   ft.Lexicon.WordWeight,
		LexiconPhraseWeight: ft.Lexicon.PhraseWeight,
	}
	if s.Threshold == 0 {
		s.Threshold = 0.7
	}
	if s.LexiconWordWeight == 0 {
		s.LexiconWordWeight = 0.9
	}
	if s.LexiconPhraseWeight == 0 {
		s.LexiconPhraseWeight = 0.95
	}
	for name, w := range map[string]float64{
		"threshold":             s.Threshold,
		"lexicon.word_weight":   s.LexiconWordWeight,
		"lexicon.phrase_weight": s.LexiconPhraseWeight,
	} {
		if w <= 0 || w > 1 {
			return nil, fmt.Errorf("%s must be in (0,1], got %v", name, w)
		}
	}

	seen := make(map[string]struct{})
	for i, sc := range ft.SafeContexts {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			return nil, fmt.Errorf("safe_contexts[%d]: name is empty", i)
		}
		re, err := compile(sc.Pattern)
		if err != nil {
			return nil, fmt.Errorf("safe_contexts[%s]: %w", name, err)
		}
		s.SafeContexts = append(s.SafeContexts, SafeContext{Name: name, Pattern: re})
	}

	for i, p := range ft.Patterns {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("patterns[%d]: name is empty", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("patterns[%s]: duplicate name", name)
		}
		seen[name] = struct{}{}
		if p.Weight <= 0 || p.Weight > 1 {
			return nil, fmt.Errorf("patterns[%s]: weight must be in (0,1], got %v", name, p.Weight)
		}
		re, err := compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("patterns[%s]: %w", name, err)
		}
		s.Patterns = append(s.Patterns, PatternRule{
			Name:    name,
			Target:  strings.TrimSpace(p.Target),
			Pattern: re,
			Weight:  p.Weight,
		})
	}
	return s, nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("pattern is empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return re, nil
}
