package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// Estimator kinds accepted in model.json.
const (
	KindLogisticRegression = "logistic_regression"
	KindMultinomialNB      = "multinomial_nb"
	KindRandomForest       = "random_forest"
)

type estimator interface {
	proba(x SparseVector) []float64
}

// Ensemble averages class probabilities across its estimators (soft voting).
type Ensemble struct {
	Classes    []string
	estimators []estimator
	weights    []float64
}

type ensembleFile struct {
	Classes    []string          `json:"classes"`
	Weights    []float64         `json:"weights"`
	Estimators []json.RawMessage `json:"estimators"`
}

type estimatorHeader struct {
	Type string `json:"type"`
}

// LoadEnsemble reads a model.json artifact for a feature space of size dim.
func LoadEnsemble(path string, dim int) (*Ensemble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return nil, fmt.Errorf("read model: %w", err)
	}
	return ParseEnsemble(data, dim)
}

// ParseEnsemble decodes and validates a model.json document.
func ParseEnsemble(data []byte, dim int) (*Ensemble, error) {
	var f ensembleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if len(f.Classes) == 0 {
		return nil, errors.New("model has no classes")
	}
	if len(f.Estimators) == 0 {
		return nil, errors.New("model has no estimators")
	}
	if len(f.Weights) == 0 {
		f.Weights = make([]float64, len(f.Estimators))
		for i := range f.Weights {
			f.Weights[i] = 1
		}
	}
	if len(f.Weights) != len(f.Estimators) {
		return nil, fmt.Errorf("model has %d weights for %d estimators", len(f.Weights), len(f.Estimators))
	}

	e := &Ensemble{Classes: f.Classes, weights: f.Weights}
	nClasses := len(f.Classes)
	for i, raw := range f.Estimators {
		var h estimatorHeader
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, fmt.Errorf("estimator %d: %w", i, err)
		}
		var (
			est estimator
			err error
		)
		switch h.Type {
		case KindLogisticRegression:
			est, err = parseLogistic(raw, nClasses, dim)
		case KindMultinomialNB:
			est, err = parseNaiveBayes(raw, nClasses, dim)
		case KindRandomForest:
			est, err = parseForest(raw, nClasses, dim)
		default:
			err = fmt.Errorf("unknown estimator type %q", h.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("estimator %d (%s): %w", i, h.Type, err)
		}
		e.estimators = append(e.estimators, est)
	}
	return e, nil
}

// Proba returns the weighted mean of every estimator's class probabilities.
func (e *Ensemble) Proba(x SparseVector) []float64 {
	out := make([]float64, len(e.Classes))
	var total float64
	for i, est := range e.estimators {
		w := e.weights[i]
		for c, p := range est.proba(x) {
			out[c] += w * p
		}
		total += w
	}
	if total > 0 {
		for c := range out {
			out[c] /= total
		}
	}
	return out
}

// logistic is a fitted logistic regression. A single coefficient row is the
// binary form; several rows use a softmax.
type logistic struct {
	coef      [][]float64
	intercept []float64
}

func parseLogistic(raw json.RawMessage, nClasses, dim int) (*logistic, error) {
	var f struct {
		Coef      [][]float64 `json:"coef"`
		Intercept []float64   `json:"intercept"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	rows := len(f.Coef)
	if !(rows == 1 && nClasses == 2) && rows != nClasses {
		return nil, fmt.Errorf("coef has %d rows for %d classes", rows, nClasses)
	}
	if len(f.Intercept) != rows {
		return nil, fmt.Errorf("intercept has %d entries for %d rows", len(f.Intercept), rows)
	}
	for _, row := range f.Coef {
		if len(row) != dim {
			return nil, fmt.Errorf("coef row has %d features, want %d", len(row), dim)
		}
	}
	return &logistic{coef: f.Coef, intercept: f.Intercept}, nil
}

func (l *logistic) proba(x SparseVector) []float64 {
	scores := make([]float64, len(l.coef))
	for r, row := range l.coef {
		s := l.intercept[r]
		for k, idx := range x.Indices {
			s += row[idx] * x.Values[k]
		}
		scores[r] = s
	}
	if len(scores) == 1 {
		p := sigmoid(scores[0])
		return []float64{1 - p, p}
	}
	return softmax(scores)
}

// naiveBayes is a fitted multinomial naive Bayes model.
type naiveBayes struct {
	classLogPrior  []float64
	featureLogProb [][]float64
}

func parseNaiveBayes(raw json.RawMessage, nClasses, dim int) (*naiveBayes, error) {
	var f struct {
		ClassLogPrior  []float64   `json:"class_log_prior"`
		FeatureLogProb [][]float64 `json:"feature_log_prob"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if len(f.ClassLogPrior) != nClasses || len(f.FeatureLogProb) != nClasses {
		return nil, fmt.Errorf("expected %d classes, got prior=%d feature_log_prob=%d",
			nClasses, len(f.ClassLogPrior), len(f.FeatureLogProb))
	}
	for _, row := range f.FeatureLogProb {
		if len(row) != dim {
			return nil, fmt.Errorf("feature_log_prob row has %d features, want %d", len(row), dim)
		}
	}
	return &naiveBayes{classLogPrior: f.ClassLogPrior, featureLogProb: f.FeatureLogProb}, nil
}

func (nb *naiveBayes) proba(x SparseVector) []float64 {
	jll := make([]float64, len(nb.classLogPrior))
	for c := range jll {
		s := nb.classLogPrior[c]
		row := nb.featureLogProb[c]
		for k, idx := range x.Indices {
			s += x.Values[k] * row[idx]
		}
		jll[c] = s
	}
	return softmax(jll)
}

// tree is one exported decision tree in array form. A node whose left child
// is -1 is a leaf.
type tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

type forest struct {
	trees []tree
}

func parseForest(raw json.RawMessage, nClasses, dim int) (*forest, error) {
	var f struct {
		Trees []tree `json:"trees"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	for i, t := range f.Trees {
		if err := t.validate(nClasses, dim); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &forest{trees: f.Trees}, nil
}

func (t tree) validate(nClasses, dim int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("tree is empty")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("tree arrays differ in length")
	}
	for i := 0; i < n; i++ {
		if t.ChildrenLeft[i] == -1 {
			if len(t.Value[i]) != nClasses {
				return fmt.Errorf("leaf %d has %d class values, want %d", i, len(t.Value[i]), nClasses)
			}
			continue
		}
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d has invalid children", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= dim {
			return fmt.Errorf("node %d splits on feature %d out of range", i, t.Feature[i])
		}
	}
	return nil
}

func (t tree) leafProba(x SparseVector) []float64 {
	node := 0
	for t.ChildrenLeft[node] != -1 {
		if x.At(t.Feature[node]) <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	v := t.Value[node]
	out := make([]float64, len(v))
	var sum float64
	for _, c := range v {
		sum += c
	}
	if sum == 0 {
		return out
	}
	for i, c := range v {
		out[i] = c / sum
	}
	return out
}

func (f *forest) proba(x SparseVector) []float64 {
	var out []float64
	for _, t := range f.trees {
		p := t.leafProba(x)
		if out == nil {
			out = make([]float64, len(p))
		}
		for c := range p {
			out[c] += p[c]
		}
	}
	for c := range out {
		out[c] /= float64(len(f.trees))
	}
	return out
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func softmax(scores []float64) []float64 {
	max := math.Inf(-1)
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
