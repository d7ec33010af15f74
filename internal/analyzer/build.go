package analyzer

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/straja-ai/hatescan/internal/config"
	"github.com/straja-ai/hatescan/internal/detector"
	"github.com/straja-ai/hatescan/internal/events"
	"github.com/straja-ai/hatescan/internal/langid"
	"github.com/straja-ai/hatescan/internal/lexicon"
	"github.com/straja-ai/hatescan/internal/logging"
	"github.com/straja-ai/hatescan/internal/model"
	"github.com/straja-ai/hatescan/internal/preprocess"
	"github.com/straja-ai/hatescan/internal/redact"
	"github.com/straja-ai/hatescan/internal/rules"
	"github.com/straja-ai/hatescan/internal/telemetry"
	"github.com/straja-ai/hatescan/internal/translate"
)

// FromConfig builds an analyzer from cfg. A missing lexicon or model is
// logged and tolerated; a bad rule table or language detector setting is an
// error.
func FromConfig(cfg *config.Config, logger *zap.Logger, tp *telemetry.Provider) (*Analyzer, error) {
	logger = logging.OrNop(logger)

	set, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	store, err := lexicon.Open(cfg.Lexicon.Path)
	if err != nil {
		logger.Warn("lexicon not loaded, continuing with an empty lexicon",
			zap.String("path", cfg.Lexicon.Path), zap.Error(err))
	} else {
		st := store.Stats()
		logger.Info("lexicon loaded",
			zap.String("path", st.Path), zap.Int("words", st.Words), zap.Int("phrases", st.Phrases))
	}

	lang, err := langid.New(cfg.Language, logger)
	if err != nil {
		return nil, fmt.Errorf("language identifier: %w", err)
	}

	tr := translate.New(cfg.Translation, logger)
	if cfg.Translation.Enabled {
		logger.Info("translation enabled",
			zap.String("endpoint", redact.String(cfg.Translation.Endpoint)),
			zap.String("target", cfg.Translation.Target))
	}

	emitter, err := buildEmitter(cfg.Events, logger)
	if err != nil {
		return nil, fmt.Errorf("event feed: %w", err)
	}

	classifier, pp := loadClassifier(cfg.Model, logger)

	return New(Options{
		Detector:     detector.New(set, store),
		Language:     lang,
		Translator:   tr,
		Classifier:   classifier,
		Preprocessor: preprocess.New(pp),
		Telemetry:    tp,
		Logger:       logger,
		LexiconPath:  cfg.Lexicon.Path,
		Events:       emitter,
		EventPreview: cfg.Events.Preview,
		EmitAll:      cfg.Events.OnlyHate != nil && !*cfg.Events.OnlyHate,
	}), nil
}

// buildEmitter returns nil when the event feed is disabled.
func buildEmitter(ec config.EventsConfig, logger *zap.Logger) (*events.Emitter, error) {
	if !ec.Enabled {
		return nil, nil
	}
	var sinks []events.Sink
	if ec.File != "" {
		fs, err := events.NewFileSink(ec.File)
		if err != nil {
			return nil, fmt.Errorf("file sink: %w", err)
		}
		sinks = append(sinks, fs)
	}
	if ec.Webhook.URL != "" {
		ws, err := events.NewWebhookSink(events.WebhookOptions{
			URL:        ec.Webhook.URL,
			Headers:    ec.Webhook.Headers,
			Timeout:    time.Duration(ec.Webhook.TimeoutMs) * time.Millisecond,
			MaxRetries: ec.Webhook.MaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("webhook sink: %w", err)
		}
		sinks = append(sinks, ws)
	}
	if len(sinks) == 0 {
		return nil, errors.New("no sinks configured")
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	logger.Info("event feed enabled", zap.Strings("sinks", names), zap.String("preview", ec.Preview))

	return events.NewEmitter(events.EmitterConfig{
		QueueSize:       ec.QueueSize,
		Workers:         ec.Workers,
		ShutdownTimeout: time.Duration(ec.ShutdownTimeoutMs) * time.Millisecond,
		Logger:          logger,
	}, sinks), nil
}

// loadClassifier returns the configured model, or Abstaining when the model is
// disabled or cannot be loaded.
func loadClassifier(mc config.ModelConfig, logger *zap.Logger) (model.Classifier, preprocess.Options) {
	pp := preprocess.DefaultOptions()
	if mc.Stopwords != nil {
		pp.RemoveStopwords = *mc.Stopwords
	}
	if mc.Lemmatize != nil {
		pp.Lemmatize = *mc.Lemmatize
	}

	if mc.Disabled {
		logger.Info("statistical classifier disabled, running rule-based only")
		return model.Abstaining{}, pp
	}

	loaded, err := model.Load(model.LoadOptions{
		Dir:        mc.Dir,
		Backend:    mc.Backend,
		OnnxLib:    mc.OnnxLib,
		Preprocess: pp,
	})
	if err != nil {
		level := zap.WarnLevel
		if !errors.Is(err, model.ErrArtifactMissing) {
			level = zap.ErrorLevel
		}
		logger.Log(level, "statistical classifier unavailable, abstaining",
			zap.String("dir", mc.Dir), zap.Error(err))
		return model.Abstaining{}, pp
	}

	logger.Info("statistical classifier loaded",
		zap.String("dir", loaded.Dir),
		zap.String("version", loaded.Version),
		zap.String("backend", loaded.Manifest.Backend))
	return loaded.Model, loaded.Preprocess
}
