// Package analyzer runs the full hate-speech pipeline: language
// identification, optional translation, the rule-based detector, the
// statistical classifier, decision fusion and categorisation.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/straja-ai/hatescan/internal/category"
	"github.com/straja-ai/hatescan/internal/detector"
	"github.com/straja-ai/hatescan/internal/events"
	"github.com/straja-ai/hatescan/internal/langid"
	"github.com/straja-ai/hatescan/internal/lexicon"
	"github.com/straja-ai/hatescan/internal/logging"
	"github.com/straja-ai/hatescan/internal/model"
	"github.com/straja-ai/hatescan/internal/preprocess"
	"github.com/straja-ai/hatescan/internal/redact"
	"github.com/straja-ai/hatescan/internal/safety"
	"github.com/straja-ai/hatescan/internal/telemetry"
	"github.com/straja-ai/hatescan/internal/translate"
)

// Result is the outcome of one analysis.
type Result struct {
	IsHateSpeech bool    `json:"is_hate_speech"`
	Confidence   float64 `json:"confidence"`
	Category     string  `json:"category"`
	Language     string  `json:"language"`
	Translated   bool    `json:"translated"`
	OriginalText *string `json:"original_text"`
}

// EmptyResult is returned for empty or whitespace-only input.
func EmptyResult() Result {
	return Result{Category: category.None, Language: langid.Unknown}
}

// Options wires the analyzer's collaborators. Nil fields get safe defaults:
// the built-in rules with an empty lexicon, no language identification, no
// translation and an abstaining classifier.
type Options struct {
	Detector     *detector.Detector
	Language     langid.Identifier
	Translator   translate.Translator
	Classifier   model.Classifier
	Preprocessor *preprocess.Preprocessor
	Telemetry    *telemetry.Provider
	Logger       *zap.Logger
	// LexiconPath is reloaded when ReloadLexicon is called with an empty path.
	LexiconPath string
	// Events receives analysis and lexicon events; nil disables the feed.
	Events *events.Emitter
	// EventPreview is the events.Preview* level for analysis events.
	EventPreview string
	// EmitAll publishes every analysis, not only flagged ones.
	EmitAll bool
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	detector     *detector.Detector
	language     langid.Identifier
	translator   translate.Translator
	classifier   model.Classifier
	preprocessor *preprocess.Preprocessor
	telemetry    *telemetry.Provider
	logger       *zap.Logger
	lexiconPath  string
	events       *events.Emitter
	eventPreview string
	emitAll      bool
}

func New(opts Options) *Analyzer {
	a := &Analyzer{
		detector:     opts.Detector,
		language:     opts.Language,
		translator:   opts.Translator,
		classifier:   opts.Classifier,
		preprocessor: opts.Preprocessor,
		telemetry:    opts.Telemetry,
		logger:       logging.OrNop(opts.Logger),
		lexiconPath:  opts.LexiconPath,
		events:       opts.Events,
		eventPreview: opts.EventPreview,
		emitAll:      opts.EmitAll,
	}
	if a.detector == nil {
		a.detector = detector.New(nil, nil)
	}
	if a.language == nil {
		a.language = langid.Unavailable{}
	}
	if a.translator == nil {
		a.translator = translate.Noop{}
	}
	if a.classifier == nil {
		a.classifier = model.Abstaining{}
	}
	if a.preprocessor == nil {
		a.preprocessor = preprocess.New(preprocess.DefaultOptions())
	}
	if a.telemetry == nil {
		a.telemetry = telemetry.Noop()
	}
	return a
}

// Analyze classifies text. It never fails: component errors degrade to
// abstention or fallbacks.
func (a *Analyzer) Analyze(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return EmptyResult()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	ctx, span := a.telemetry.Tracer().Start(ctx, "analyzer.Analyze")
	defer span.End()

	lang := a.detectLanguage(text)
	analysisText := text
	translated := false
	if lang != langid.English && lang != langid.Unknown {
		tr := a.translate(ctx, text, lang)
		if tr.Translated {
			analysisText = tr.Text
			translated = true
		} else if tr.Failure != translate.FailureSkipped && tr.Failure != translate.FailureUnavailable {
			a.telemetry.RecordTranslationFallback(ctx, string(tr.Failure), lang)
		}
	}

	rule := a.detector.Detect(analysisText)
	modelVerdict, classifierMs := a.predict(analysisText)
	fused := safety.Fuse(rule.Verdict, modelVerdict)

	res := Result{
		IsHateSpeech: fused.Hate,
		Confidence:   safety.Round3(fused.Confidence),
		Category:     category.None,
		Language:     lang,
		Translated:   translated,
	}
	if fused.Hate {
		res.Category = category.Categorize(analysisText)
	}
	if translated {
		original := text
		res.OriginalText = &original
	}

	durMs := float64(time.Since(start).Microseconds()) / 1000
	span.SetAttributes(telemetry.SafeAttributes(map[string]interface{}{
		"hatescan.hate":         res.IsHateSpeech,
		"hatescan.confidence":   res.Confidence,
		"hatescan.category":     res.Category,
		"hatescan.language":     res.Language,
		"hatescan.translated":   res.Translated,
		"hatescan.rule_hits":    rule.Matches,
		"hatescan.safe_context": rule.SafeContext,
	})...)
	a.telemetry.RecordAnalysis(ctx, telemetry.AnalysisMetrics{
		Hate:         res.IsHateSpeech,
		Category:     res.Category,
		Language:     res.Language,
		Translated:   res.Translated,
		Abstained:    modelVerdict.Abstained,
		DurationMs:   durMs,
		ClassifierMs: classifierMs,
	})
	if a.events != nil && (res.IsHateSpeech || a.emitAll) {
		a.events.Emit(ctx, events.NewAnalysisEvent(events.Analysis{
			IsHateSpeech:   res.IsHateSpeech,
			Confidence:     res.Confidence,
			Category:       res.Category,
			Language:       res.Language,
			Translated:     res.Translated,
			RuleMatches:    rule.Matches,
			SafeContext:    rule.SafeContext,
			ModelAbstained: modelVerdict.Abstained,
			LatencyMs:      durMs,
		}, text, a.eventPreview))
	}

	if ce := a.logger.Check(zap.DebugLevel, "analysis complete"); ce != nil {
		ce.Write(
			zap.String("snippet", redact.Snippet(text, 48)),
			zap.String("language", lang),
			zap.Bool("translated", translated),
			zap.Bool("rule_hate", rule.Hate),
			zap.Float64("rule_confidence", rule.Confidence),
			zap.Strings("rule_hits", rule.Matches),
			zap.String("safe_context", rule.SafeContext),
			zap.Bool("model_hate", modelVerdict.Hate),
			zap.Float64("model_confidence", modelVerdict.Confidence),
			zap.Bool("model_abstained", modelVerdict.Abstained),
			zap.Bool("hate", res.IsHateSpeech),
			zap.Float64("confidence", res.Confidence),
			zap.String("category", res.Category),
			zap.Float64("duration_ms", durMs),
		)
	}
	return res
}

func (a *Analyzer) detectLanguage(text string) (lang string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("language identification panicked", zap.Any("panic", r))
			lang = langid.Unknown
		}
	}()
	lang = strings.ToLower(strings.TrimSpace(a.language.Detect(text)))
	if lang == "" {
		return langid.Unknown
	}
	return lang
}

func (a *Analyzer) translate(ctx context.Context, text, lang string) (res translate.Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("translator panicked", zap.Any("panic", r))
			res = translate.Fallback(text, translate.FailureRequest)
		}
	}()
	res = a.translator.Translate(ctx, text, lang)
	if !res.Translated {
		res.Text = text
	}
	return res
}

// predict preprocesses and scores text. Any classifier error or panic turns
// into an abstain verdict.
func (a *Analyzer) predict(text string) (v safety.Verdict, ms float64) {
	if model.IsAbstaining(a.classifier) {
		return safety.Abstain(safety.SourceModel), 0
	}
	start := time.Now()
	defer func() {
		ms = float64(time.Since(start).Microseconds()) / 1000
		if r := recover(); r != nil {
			a.logger.Error("classifier panicked", zap.Any("panic", r))
			v = safety.Abstain(safety.SourceModel)
		}
	}()

	out, err := a.classifier.Predict(a.preprocessor.Process(text))
	if err != nil {
		a.logger.Warn("classifier failed, abstaining", zap.String("error", redact.String(err.Error())))
		return safety.Abstain(safety.SourceModel), 0
	}
	return out, 0
}

// ReloadLexicon replaces the active lexicon from path (the configured path
// when empty). On failure the previous lexicon stays active.
func (a *Analyzer) ReloadLexicon(path string) (words, phrases int, err error) {
	return a.reloadLexicon(path, "reload")
}

func (a *Analyzer) reloadLexicon(path, action string) (words, phrases int, err error) {
	if strings.TrimSpace(path) == "" {
		path = a.lexiconPath
	}
	if path == "" {
		return 0, 0, errors.New("no lexicon path configured")
	}

	words, phrases, err = a.detector.Lexicon().Reload(path)
	a.telemetry.RecordLexiconReload(context.Background(), err == nil)
	a.emitLexicon(action, path, words, phrases, err)
	if err != nil {
		a.logger.Warn("lexicon reload failed, keeping previous lexicon",
			zap.String("path", path), zap.Error(err))
		return 0, 0, err
	}
	a.logger.Info("lexicon reloaded",
		zap.String("path", path), zap.Int("words", words), zap.Int("phrases", phrases))
	return words, phrases, nil
}

// UpdateLexicon appends to or replaces the lexicon file, then reloads it.
func (a *Analyzer) UpdateLexicon(path, content, mode string) (lexicon.Stats, error) {
	if strings.TrimSpace(path) == "" {
		path = a.lexiconPath
	}
	if path == "" {
		return lexicon.Stats{}, errors.New("no lexicon path configured")
	}
	m, err := lexicon.ParseMode(mode)
	if err != nil {
		return lexicon.Stats{}, err
	}
	if err := lexicon.WriteTerms(path, content, m); err != nil {
		err = fmt.Errorf("update lexicon: %w", err)
		a.emitLexicon(string(m), path, 0, 0, err)
		return lexicon.Stats{}, err
	}
	if _, _, err := a.reloadLexicon(path, string(m)); err != nil {
		return lexicon.Stats{}, err
	}
	return a.LexiconStats(), nil
}

func (a *Analyzer) emitLexicon(action, path string, words, phrases int, err error) {
	if a.events == nil {
		return
	}
	ev := events.Lexicon{Action: action, Path: path, Words: words, Phrases: phrases, OK: err == nil}
	if err != nil {
		ev.Error = err.Error()
	}
	a.events.Emit(context.Background(), events.NewLexiconEvent(ev))
}

// LexiconStats describes the active lexicon.
func (a *Analyzer) LexiconStats() lexicon.Stats {
	return a.detector.Lexicon().Stats()
}

// Close drains the event feed and releases classifier resources.
func (a *Analyzer) Close() error {
	a.events.Close(context.Background())
	if c, ok := a.classifier.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
