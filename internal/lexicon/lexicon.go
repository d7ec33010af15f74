// Package lexicon holds the offensive word/phrase list used by the rule-based
// detector. The whole list is swapped atomically on reload.
package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// ResourceError reports an unreadable lexicon resource. The previously
// loaded lexicon stays active when it is returned.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("lexicon resource %s: %v", e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Stats describes the active lexicon.
type Stats struct {
	Path     string    `json:"path"`
	Words    int       `json:"words_count"`
	Phrases  int       `json:"phrases_count"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Hits lists the terms found in a text.
type Hits struct {
	Words   []string
	Phrases []string
}

// Empty reports whether nothing matched.
func (h Hits) Empty() bool {
	return len(h.Words) == 0 && len(h.Phrases) == 0
}

// snapshot is immutable once published.
type snapshot struct {
	words   map[string]struct{}
	phrases []string
	matcher *ahocorasick.Matcher
	stats   Stats
}

// Store is safe for concurrent use. Readers always observe a complete
// snapshot; Load builds the next one fully before publishing it.
type Store struct {
	current atomic.Pointer[snapshot]
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&snapshot{words: map[string]struct{}{}})
	return s
}

// Open creates a store and loads path into it.
func Open(path string) (*Store, error) {
	s := NewStore()
	if _, _, err := s.Load(path); err != nil {
		return s, err
	}
	return s, nil
}

// Load reads path and replaces the active lexicon. On error the previous
// lexicon is kept and a *ResourceError is returned.
func (s *Store) Load(path string) (words, phrases int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, &ResourceError{Path: path, Err: err}
	}
	defer f.Close()

	next, err := parse(f)
	if err != nil {
		return 0, 0, &ResourceError{Path: path, Err: err}
	}
	next.stats.Path = path
	s.publish(next)
	return next.stats.Words, next.stats.Phrases, nil
}

// Reload is Load under its administrative name.
func (s *Store) Reload(path string) (words, phrases int, err error) {
	return s.Load(path)
}

// Replace swaps in an in-memory term list (one term per element). On
// error the previous lexicon is kept.
func (s *Store) Replace(terms []string) (words, phrases int, err error) {
	next, err := parse(strings.NewReader(strings.Join(terms, "\n")))
	if err != nil {
		return 0, 0, err
	}
	s.publish(next)
	return next.stats.Words, next.stats.Phrases, nil
}

// Stats returns the active lexicon's counts.
func (s *Store) Stats() Stats {
	return s.current.Load().stats
}

// ContainsWord reports whether w is a single-word lexicon term.
func (s *Store) ContainsWord(w string) bool {
	_, ok := s.current.Load().words[normalizeTerm(w)]
	return ok
}

// ContainsPhrase reports whether p is a multi-word lexicon term.
func (s *Store) ContainsPhrase(p string) bool {
	norm := normalizeTerm(p)
	for _, ph := range s.current.Load().phrases {
		if ph == norm {
			return true
		}
	}
	return false
}

// Match returns every lexicon term present in text. Words are looked up per
// token; phrases are matched on whole-token boundaries.
func (s *Store) Match(text string) Hits {
	snap := s.current.Load()
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return Hits{}
	}

	var hits Hits
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		if _, ok := snap.words[tok]; !ok {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		hits.Words = append(hits.Words, tok)
	}

	if snap.matcher != nil {
		padded := " " + strings.Join(tokens, " ") + " "
		for _, idx := range snap.matcher.MatchThreadSafe([]byte(padded)) {
			if idx < len(snap.phrases) {
				hits.Phrases = append(hits.Phrases, snap.phrases[idx])
			}
		}
	}
	return hits
}

func (s *Store) publish(next *snapshot) {
	next.stats.LoadedAt = time.Now().UTC()
	s.current.Store(next)
}

func parse(r io.Reader) (*snapshot, error) {
	words := make(map[string]struct{})
	var phrases []string
	seenPhrase := make(map[string]struct{})

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		term := normalizeTerm(line)
		if term == "" {
			continue
		}
		if strings.Contains(term, " ") {
			if _, dup := seenPhrase[term]; dup {
				continue
			}
			seenPhrase[term] = struct{}{}
			phrases = append(phrases, term)
			continue
		}
		words[term] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan lexicon: %w", err)
	}

	snap := &snapshot{
		words:   words,
		phrases: phrases,
		stats:   Stats{Words: len(words), Phrases: len(phrases)},
	}
	if len(phrases) > 0 {
		padded := make([]string, len(phrases))
		for i, p := range phrases {
			padded[i] = " " + p + " "
		}
		snap.matcher = ahocorasick.NewStringMatcher(padded)
	}
	return snap, nil
}
