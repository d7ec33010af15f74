package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/hatescan/internal/category"
	"github.com/straja-ai/hatescan/internal/config"
	"github.com/straja-ai/hatescan/internal/detector"
	"github.com/straja-ai/hatescan/internal/events"
	"github.com/straja-ai/hatescan/internal/langid"
	"github.com/straja-ai/hatescan/internal/lexicon"
	"github.com/straja-ai/hatescan/internal/logging"
	"github.com/straja-ai/hatescan/internal/model"
	"github.com/straja-ai/hatescan/internal/rules"
	"github.com/straja-ai/hatescan/internal/safety"
	"github.com/straja-ai/hatescan/internal/translate"
)

type stubLang string

func (s stubLang) Detect(string) string { return string(s) }

type panicLang struct{}

func (panicLang) Detect(string) string { panic("detector blew up") }

type stubTranslator struct {
	mu    sync.Mutex
	out   string
	fail  translate.FailureKind
	calls []string
}

func (s *stubTranslator) Translate(_ context.Context, text, source string) translate.Result {
	s.mu.Lock()
	s.calls = append(s.calls, source)
	s.mu.Unlock()
	if s.fail != "" {
		return translate.Fallback(text, s.fail)
	}
	return translate.Result{Text: s.out, Translated: true, Failure: translate.FailureNone}
}

type stubClassifier struct {
	mu     sync.Mutex
	v      safety.Verdict
	err    error
	panics bool
	seen   []string
}

func (s *stubClassifier) Predict(text string) (safety.Verdict, error) {
	s.mu.Lock()
	s.seen = append(s.seen, text)
	s.mu.Unlock()
	if s.panics {
		panic("classifier exploded")
	}
	return s.v, s.err
}

const testLexicon = "# test lexicon\nfuck\nidiot\nyou are useless\n"

func writeLexicon(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hate_keywords.txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newAnalyzer(t *testing.T, opts Options) *Analyzer {
	t.Helper()
	if opts.Detector == nil {
		path := writeLexicon(t, testLexicon)
		store, err := lexicon.Open(path)
		require.NoError(t, err)
		opts.Detector = detector.New(rules.Default(), store)
		if opts.LexiconPath == "" {
			opts.LexiconPath = path
		}
	}
	return New(opts)
}

func TestScenarios(t *testing.T) {
	a := newAnalyzer(t, Options{})
	ctx := context.Background()

	t.Run("safe context", func(t *testing.T) {
		res := a.Analyze(ctx, "I love nature, it's beautiful")
		assert.False(t, res.IsHateSpeech)
		assert.Zero(t, res.Confidence)
		assert.Equal(t, category.None, res.Category)
	})

	t.Run("religious generalisation", func(t *testing.T) {
		res := a.Analyze(ctx, "All Muslims are terrorists")
		assert.True(t, res.IsHateSpeech)
		assert.GreaterOrEqual(t, res.Confidence, 0.7)
		assert.Equal(t, category.Religious, res.Category)
		assert.Equal(t, langid.English, res.Language)
	})

	t.Run("single profanity", func(t *testing.T) {
		res := a.Analyze(ctx, "fuck")
		assert.True(t, res.IsHateSpeech)
		assert.Equal(t, 0.9, res.Confidence)
		assert.Equal(t, category.General, res.Category)
	})

	t.Run("insult phrase", func(t *testing.T) {
		res := a.Analyze(ctx, "you are useless")
		assert.True(t, res.IsHateSpeech)
		assert.Equal(t, 0.95, res.Confidence)
	})

	t.Run("empty", func(t *testing.T) {
		for _, in := range []string{"", "   ", "\n\t"} {
			assert.Equal(t, EmptyResult(), a.Analyze(ctx, in))
		}
		res := a.Analyze(ctx, "")
		assert.Equal(t, Result{Category: "none", Language: "unknown"}, res)
	})

	t.Run("constructive criticism", func(t *testing.T) {
		res := a.Analyze(ctx, "Your work needs improvement")
		assert.False(t, res.IsHateSpeech)
		assert.Zero(t, res.Confidence)
		assert.Equal(t, category.None, res.Category)
	})
}

func TestTranslatedInput(t *testing.T) {
	tr := &stubTranslator{out: "All Muslims are terrorists"}
	a := newAnalyzer(t, Options{Language: stubLang("de"), Translator: tr})

	const original = "Alle Muslime sind Terroristen"
	res := a.Analyze(context.Background(), original)
	assert.True(t, res.Translated)
	require.NotNil(t, res.OriginalText)
	assert.Equal(t, original, *res.OriginalText)
	assert.Equal(t, "de", res.Language)
	assert.True(t, res.IsHateSpeech)
	assert.Equal(t, category.Religious, res.Category)
	assert.Equal(t, []string{"de"}, tr.calls)
}

func TestTranslationFallback(t *testing.T) {
	tr := &stubTranslator{fail: translate.FailureRequest}
	a := newAnalyzer(t, Options{Language: stubLang("es"), Translator: tr})

	res := a.Analyze(context.Background(), "hola idiot")
	assert.False(t, res.Translated)
	assert.Nil(t, res.OriginalText)
	assert.Equal(t, "es", res.Language)
	assert.True(t, res.IsHateSpeech, "decision runs on the original text")
}

func TestNoTranslationForEnglishOrUnknown(t *testing.T) {
	for _, lang := range []string{"en", "unknown", ""} {
		tr := &stubTranslator{out: "should not be used"}
		a := newAnalyzer(t, Options{Language: stubLang(lang), Translator: tr})
		res := a.Analyze(context.Background(), "hello friends")
		assert.False(t, res.Translated)
		assert.Empty(t, tr.calls, "language %q", lang)
	}
}

func TestLanguagePanicIsUnknown(t *testing.T) {
	tr := &stubTranslator{out: "x"}
	a := newAnalyzer(t, Options{Language: panicLang{}, Translator: tr})
	res := a.Analyze(context.Background(), "fuck")
	assert.Equal(t, langid.Unknown, res.Language)
	assert.True(t, res.IsHateSpeech)
	assert.Empty(t, tr.calls)
}

func TestSafeContextOverridesClassifier(t *testing.T) {
	clf := &stubClassifier{v: safety.Verdict{Hate: true, Confidence: 0.99, Source: safety.SourceModel}}
	a := newAnalyzer(t, Options{Classifier: clf})

	res := a.Analyze(context.Background(), "I love how all muslims are terrorists")
	assert.False(t, res.IsHateSpeech)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, category.None, res.Category)
}

func TestFusionWithClassifier(t *testing.T) {
	cases := []struct {
		name     string
		model    safety.Verdict
		text     string
		wantHate bool
		wantConf float64
	}{
		{"both agree takes max", safety.Verdict{Hate: true, Confidence: 0.93}, "All Muslims are terrorists", true, 0.93},
		{"both agree rule higher", safety.Verdict{Hate: true, Confidence: 0.6}, "All Muslims are terrorists", true, 0.85},
		{"model disagrees rule stands", safety.Verdict{Hate: false, Confidence: 0.2}, "All Muslims are terrorists", true, 0.85},
		{"model alone is not enough", safety.Verdict{Hate: true, Confidence: 0.97}, "they should be treated differently", false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clf := &stubClassifier{v: tc.model}
			a := newAnalyzer(t, Options{Classifier: clf})
			res := a.Analyze(context.Background(), tc.text)
			assert.Equal(t, tc.wantHate, res.IsHateSpeech)
			assert.InDelta(t, tc.wantConf, res.Confidence, 1e-9)
		})
	}
}

func TestClassifierReceivesPreprocessedText(t *testing.T) {
	clf := &stubClassifier{v: safety.Verdict{Source: safety.SourceModel}}
	a := newAnalyzer(t, Options{Classifier: clf})
	a.Analyze(context.Background(), "All Muslims are terrorists! http://x.co @someone")
	require.Len(t, clf.seen, 1)
	assert.Equal(t, "muslim terrorist", clf.seen[0])
}

func TestClassifierFailuresAbstain(t *testing.T) {
	for name, clf := range map[string]*stubClassifier{
		"error": {err: errors.New("backend gone")},
		"panic": {panics: true},
	} {
		t.Run(name, func(t *testing.T) {
			a := newAnalyzer(t, Options{Classifier: clf})
			res := a.Analyze(context.Background(), "All Muslims are terrorists")
			assert.True(t, res.IsHateSpeech)
			assert.Equal(t, 0.85, res.Confidence)

			res = a.Analyze(context.Background(), "Your work needs improvement")
			assert.False(t, res.IsHateSpeech)
		})
	}
}

func TestConfidenceRounding(t *testing.T) {
	set, err := rules.Parse([]byte(`
patterns:
  - {name: odd, target: general, pattern: '\bvermin\b', weight: 0.876543}
`))
	require.NoError(t, err)
	a := New(Options{Detector: detector.New(set, nil)})

	res := a.Analyze(context.Background(), "they are vermin")
	assert.True(t, res.IsHateSpeech)
	assert.Equal(t, 0.877, res.Confidence)
}

func TestInvariantsOverInputs(t *testing.T) {
	a := newAnalyzer(t, Options{Classifier: &stubClassifier{v: safety.Verdict{Hate: true, Confidence: 0.8}}})
	inputs := []string{
		"", "hi", "fuck", "idiot!!", "Women belong in the kitchen", "go back to your country",
		"I like pizza", "gay people are disgusting", "The weather is nice", "your kind is not welcome",
		"old people should die", "thank you, idiot", "12345", "@user #tag http://example.com",
	}
	for _, in := range inputs {
		first := a.Analyze(context.Background(), in)
		second := a.Analyze(context.Background(), in)
		assert.Equal(t, first, second, "idempotent for %q", in)
		assert.GreaterOrEqual(t, first.Confidence, 0.0)
		assert.LessOrEqual(t, first.Confidence, 1.0)
		assert.Equal(t, first.Confidence, safety.Round3(first.Confidence))
		if !first.IsHateSpeech {
			assert.Equal(t, category.None, first.Category, "input %q", in)
		} else {
			assert.NotEqual(t, category.None, first.Category, "input %q", in)
		}
	}
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(EmptyResult())
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_hate_speech":false,"confidence":0,"category":"none","language":"unknown","translated":false,"original_text":null}`, string(data))
}

func TestReloadLexiconRoundTrip(t *testing.T) {
	base := writeLexicon(t, testLexicon)
	extended := writeLexicon(t, testLexicon+"nincompoop\n")
	store, err := lexicon.Open(base)
	require.NoError(t, err)
	a := New(Options{Detector: detector.New(nil, store), LexiconPath: base})
	ctx := context.Background()

	before := a.Analyze(ctx, "what a nincompoop")
	assert.False(t, before.IsHateSpeech)

	words, phrases, err := a.ReloadLexicon(extended)
	require.NoError(t, err)
	assert.Equal(t, 3, words)
	assert.Equal(t, 1, phrases)
	assert.True(t, a.Analyze(ctx, "what a nincompoop").IsHateSpeech)

	_, _, err = a.ReloadLexicon("")
	require.NoError(t, err)
	assert.Equal(t, before, a.Analyze(ctx, "what a nincompoop"))
}

func TestReloadLexiconFailureKeepsPrevious(t *testing.T) {
	a := newAnalyzer(t, Options{})
	_, _, err := a.ReloadLexicon(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	var rerr *lexicon.ResourceError
	assert.True(t, errors.As(err, &rerr))
	assert.True(t, a.Analyze(context.Background(), "fuck").IsHateSpeech)
}

func TestUpdateLexicon(t *testing.T) {
	a := newAnalyzer(t, Options{})
	path := a.lexiconPath

	st, err := a.UpdateLexicon("", "  scumbag \n\n you people are trash\n", "append")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Words)
	assert.Equal(t, 2, st.Phrases)
	assert.True(t, a.Analyze(context.Background(), "scumbag").IsHateSpeech)

	st, err = a.UpdateLexicon(path, "dimwit", "replace")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Words)
	assert.Zero(t, st.Phrases)
	assert.False(t, a.Analyze(context.Background(), "scumbag").IsHateSpeech)

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Contains(t, string(backup), "scumbag")

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Hate/offensive keywords and phrases\n# One per line; lines starting with # are comments\ndimwit\n", string(current))

	_, err = a.UpdateLexicon(path, "x", "merge")
	assert.Error(t, err)
	_, err = a.UpdateLexicon(path, "  \n ", "append")
	assert.ErrorIs(t, err, lexicon.ErrEmptyContent)
}

func TestConcurrentAnalyzeDuringReload(t *testing.T) {
	a := newAnalyzer(t, Options{})
	other := writeLexicon(t, "fuck\nidiot\nyou are useless\nnincompoop\n")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				res := a.Analyze(context.Background(), "fuck")
				if !res.IsHateSpeech || res.Confidence != 0.9 {
					t.Errorf("unexpected result during reload: %+v", res)
					return
				}
			}
		}()
	}
	for j := 0; j < 20; j++ {
		path := other
		if j%2 == 0 {
			path = a.lexiconPath
		}
		_, _, err := a.ReloadLexicon(path)
		require.NoError(t, err)
	}
	wg.Wait()
}

func ruleOnlyConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	cfg.Lexicon.Path = writeLexicon(t, testLexicon)
	cfg.Model.Disabled = true
	cfg.Language.Detector = "none"
	return cfg
}

func readEvents(t *testing.T, path string) []events.Event {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []events.Event
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var ev events.Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		out = append(out, ev)
	}
	return out
}

func TestFromConfigRuleOnly(t *testing.T) {
	cfg := ruleOnlyConfig(t)
	a, err := FromConfig(cfg, logging.Nop(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, model.IsAbstaining(a.classifier))
	res := a.Analyze(context.Background(), "All Muslims are terrorists")
	assert.True(t, res.IsHateSpeech)
	assert.Equal(t, langid.English, res.Language)
	assert.Equal(t, 2, a.LexiconStats().Words)
}

func TestFromConfigMissingResourcesDegrade(t *testing.T) {
	cfg := ruleOnlyConfig(t)
	cfg.Lexicon.Path = filepath.Join(t.TempDir(), "missing.txt")
	cfg.Model.Disabled = false
	cfg.Model.Dir = filepath.Join(t.TempDir(), "no-model")

	a, err := FromConfig(cfg, logging.Nop(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, model.IsAbstaining(a.classifier))
	assert.False(t, a.Analyze(context.Background(), "fuck").IsHateSpeech)
	assert.True(t, a.Analyze(context.Background(), "go back to where you came from").IsHateSpeech)
}

func TestFromConfigBadRules(t *testing.T) {
	cfg := ruleOnlyConfig(t)
	cfg.Rules.Path = filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(cfg.Rules.Path, []byte("patterns:\n  - {name: x, pattern: '(', weight: 0.8}\n"), 0o644))

	_, err := FromConfig(cfg, logging.Nop(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load rules")
}

func TestEventFeed(t *testing.T) {
	cfg := ruleOnlyConfig(t)
	cfg.Events.Enabled = true
	cfg.Events.File = filepath.Join(t.TempDir(), "events.jsonl")

	a, err := FromConfig(cfg, logging.Nop(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	a.Analyze(ctx, "All Muslims are terrorists")
	a.Analyze(ctx, "The weather is nice")
	_, err = a.UpdateLexicon("", "nincompoop", "append")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	evs := readEvents(t, cfg.Events.File)
	require.Len(t, evs, 2)

	assert.Equal(t, events.KindAnalysis, evs[0].Kind)
	require.NotNil(t, evs[0].Analysis)
	assert.True(t, evs[0].Analysis.IsHateSpeech)
	assert.Equal(t, category.Religious, evs[0].Analysis.Category)
	assert.Contains(t, evs[0].Analysis.RuleMatches, "rule:all_named_faith")
	assert.True(t, evs[0].Analysis.ModelAbstained)
	assert.Empty(t, evs[0].Analysis.Preview, "metadata level carries no text")

	assert.Equal(t, events.KindLexicon, evs[1].Kind)
	require.NotNil(t, evs[1].Lexicon)
	assert.Equal(t, "append", evs[1].Lexicon.Action)
	assert.True(t, evs[1].Lexicon.OK)
	assert.Equal(t, 3, evs[1].Lexicon.Words)
}

func TestEventFeedEmitAll(t *testing.T) {
	cfg := ruleOnlyConfig(t)
	cfg.Events.Enabled = true
	cfg.Events.File = filepath.Join(t.TempDir(), "events.jsonl")
	onlyHate := false
	cfg.Events.OnlyHate = &onlyHate
	cfg.Events.Preview = events.PreviewFull

	a, err := FromConfig(cfg, logging.Nop(), nil)
	require.NoError(t, err)
	a.Analyze(context.Background(), "The weather is nice")
	a.Analyze(context.Background(), "")
	require.NoError(t, a.Close())

	evs := readEvents(t, cfg.Events.File)
	require.Len(t, evs, 1, "empty input short-circuits before the feed")
	assert.False(t, evs[0].Analysis.IsHateSpeech)
	assert.Equal(t, "The weather is nice", evs[0].Analysis.Preview)
}
