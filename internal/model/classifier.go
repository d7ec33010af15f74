// Package model loads and runs the statistical hate-speech classifier: a
// TF-IDF vectorizer feeding either a native soft-voting ensemble or an ONNX
// graph.
package model

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/straja-ai/hatescan/internal/preprocess"
	"github.com/straja-ai/hatescan/internal/safety"
)

// ErrArtifactMissing is returned when a required artifact file is absent.
var ErrArtifactMissing = errors.New("model artifact missing")

// Classifier scores preprocessed text. Confidence is the probability of the
// positive class.
type Classifier interface {
	Predict(text string) (safety.Verdict, error)
}

// Abstaining is used when no model could be loaded. It always returns the
// abstain verdict.
type Abstaining struct{}

func (Abstaining) Predict(string) (safety.Verdict, error) {
	return safety.Abstain(safety.SourceModel), nil
}

// IsAbstaining reports whether c never produces an opinion.
func IsAbstaining(c Classifier) bool {
	_, ok := c.(Abstaining)
	return ok
}

type probabilityModel interface {
	Proba(x SparseVector) ([]float64, error)
}

type nativeModel struct{ *Ensemble }

func (n nativeModel) Proba(x SparseVector) ([]float64, error) {
	return n.Ensemble.Proba(x), nil
}

// Model is a loaded vectorizer plus probability model.
type Model struct {
	vectorizer *Vectorizer
	probs      probabilityModel
	positive   int
	classes    []string
}

// Predict vectorises text and returns the positive-class probability. The
// verdict is hate when the positive class is the most probable one. A model
// emitting a single probability reports that value directly.
func (m *Model) Predict(text string) (safety.Verdict, error) {
	x := m.vectorizer.Transform(text)
	p, err := m.probs.Proba(x)
	if err != nil {
		return safety.Abstain(safety.SourceModel), err
	}
	if len(p) == 0 {
		return safety.Abstain(safety.SourceModel), errors.New("model returned no probabilities")
	}
	if len(p) == 1 {
		hate := len(m.classes) == 1 && m.positive == 0
		return safety.Verdict{Hate: hate && p[0] > 0, Confidence: p[0], Source: safety.SourceModel}, nil
	}
	if m.positive >= len(p) {
		return safety.Abstain(safety.SourceModel), fmt.Errorf("positive class index %d outside %d probabilities", m.positive, len(p))
	}

	best := 0
	for i := range p {
		if p[i] > p[best] {
			best = i
		}
	}
	return safety.Verdict{Hate: best == m.positive, Confidence: p[m.positive], Source: safety.SourceModel}, nil
}

// Close releases backend resources.
func (m *Model) Close() error {
	if c, ok := m.probs.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// LoadOptions selects and configures the artifact directory.
type LoadOptions struct {
	Dir     string
	Backend string // used when the manifest does not name one
	OnnxLib string
	// Preprocess applies when the manifest does not record the options used
	// at training time.
	Preprocess preprocess.Options
}

// Loaded is the result of Load.
type Loaded struct {
	Model      *Model
	Preprocess preprocess.Options
	Manifest   Manifest
	Dir        string
	Version    string
}

// Load resolves the active artifact dir (state.json), reads the optional
// manifest, verifies pinned files and opens the backend.
func Load(opts LoadOptions) (*Loaded, error) {
	dir, version, err := ResolveArtifactDir(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve model dir: %w", err)
	}

	manifest, found, err := LoadManifest(dir, opts.Backend)
	if err != nil {
		return nil, err
	}
	if found {
		if err := manifest.Verify(dir); err != nil {
			return nil, fmt.Errorf("verify model artifacts: %w", err)
		}
		if manifest.Version != "" {
			version = manifest.Version
		}
	}

	vec, err := LoadVectorizer(filepath.Join(dir, manifest.Vectorizer))
	if err != nil {
		return nil, err
	}

	m := &Model{vectorizer: vec}
	modelPath := filepath.Join(dir, manifest.Model)
	switch manifest.Backend {
	case BackendONNX:
		classes := manifest.Classes
		if len(classes) == 0 {
			classes = []string{"0", "1"}
		}
		o, err := NewONNX(ONNXOptions{
			ModelPath:  modelPath,
			LibPath:    opts.OnnxLib,
			InputName:  manifest.ONNX.Input,
			OutputName: manifest.ONNX.Output,
			Dim:        vec.Dim(),
			Classes:    len(classes),
		})
		if err != nil {
			return nil, err
		}
		m.probs = o
		m.classes = classes
	default:
		e, err := LoadEnsemble(modelPath, vec.Dim())
		if err != nil {
			return nil, err
		}
		m.probs = nativeModel{e}
		m.classes = e.Classes
	}

	m.positive = -1
	for i, c := range m.classes {
		if c == manifest.PositiveClass {
			m.positive = i
		}
	}
	if m.positive < 0 {
		_ = m.Close()
		return nil, fmt.Errorf("positive class %q not among model classes %v", manifest.PositiveClass, m.classes)
	}

	pp := opts.Preprocess
	if manifest.Preprocess != nil {
		pp = *manifest.Preprocess
	}
	return &Loaded{Model: m, Preprocess: pp, Manifest: manifest, Dir: dir, Version: version}, nil
}
