package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"
)

// tokenRe mirrors the usual "two or more word characters" token pattern.
var tokenRe = regexp.MustCompile(`[\pL\pN_]{2,}`)

// SparseVector holds the non-zero features of one document, sorted by index.
type SparseVector struct {
	Dim     int
	Indices []int
	Values  []float64
}

// At returns the value of feature i.
func (v SparseVector) At(i int) float64 {
	k := sort.SearchInts(v.Indices, i)
	if k < len(v.Indices) && v.Indices[k] == i {
		return v.Values[k]
	}
	return 0
}

// Dense expands v into a float32 slice of length Dim.
func (v SparseVector) Dense() []float32 {
	out := make([]float32, v.Dim)
	for k, i := range v.Indices {
		out[i] = float32(v.Values[k])
	}
	return out
}

// Vectorizer is a fitted TF-IDF transformer.
type Vectorizer struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	NgramRange  [2]int         `json:"ngram_range"`
	SublinearTF bool           `json:"sublinear_tf"`
	Norm        string         `json:"norm"` // "l2" or ""
	Lowercase   bool           `json:"lowercase"`
}

// LoadVectorizer reads a vectorizer.json artifact.
func LoadVectorizer(path string) (*Vectorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return nil, fmt.Errorf("read vectorizer: %w", err)
	}
	var v Vectorizer
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode vectorizer: %w", err)
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

func (v *Vectorizer) validate() error {
	if len(v.Vocabulary) == 0 {
		return errors.New("vectorizer vocabulary is empty")
	}
	if len(v.IDF) != len(v.Vocabulary) {
		return fmt.Errorf("vectorizer idf has %d entries for %d terms", len(v.IDF), len(v.Vocabulary))
	}
	for term, idx := range v.Vocabulary {
		if idx < 0 || idx >= len(v.IDF) {
			return fmt.Errorf("vectorizer term %q has index %d out of range", term, idx)
		}
	}
	if v.NgramRange == [2]int{} {
		v.NgramRange = [2]int{1, 1}
	}
	if v.NgramRange[0] < 1 || v.NgramRange[1] < v.NgramRange[0] {
		return fmt.Errorf("vectorizer ngram_range %v is invalid", v.NgramRange)
	}
	switch v.Norm {
	case "", "l2":
	default:
		return fmt.Errorf("vectorizer norm %q is not supported", v.Norm)
	}
	return nil
}

// Dim is the feature space size.
func (v *Vectorizer) Dim() int {
	return len(v.IDF)
}

// Transform maps text to its TF-IDF vector. Out-of-vocabulary n-grams are
// ignored.
func (v *Vectorizer) Transform(text string) SparseVector {
	if v.Lowercase {
		text = strings.ToLower(text)
	}
	tokens := tokenRe.FindAllString(text, -1)

	counts := make(map[int]float64)
	for n := v.NgramRange[0]; n <= v.NgramRange[1]; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			gram := tokens[i]
			if n > 1 {
				gram = strings.Join(tokens[i:i+n], " ")
			}
			if idx, ok := v.Vocabulary[gram]; ok {
				counts[idx]++
			}
		}
	}

	out := SparseVector{Dim: v.Dim()}
	if len(counts) == 0 {
		return out
	}
	out.Indices = make([]int, 0, len(counts))
	for idx := range counts {
		out.Indices = append(out.Indices, idx)
	}
	sort.Ints(out.Indices)

	out.Values = make([]float64, len(out.Indices))
	var sumSq float64
	for k, idx := range out.Indices {
		tf := counts[idx]
		if v.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		w := tf * v.IDF[idx]
		out.Values[k] = w
		sumSq += w * w
	}
	if v.Norm == "l2" && sumSq > 0 {
		norm := math.Sqrt(sumSq)
		for k := range out.Values {
			out.Values[k] /= norm
		}
	}
	return out
}
