package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Lexicon.Path) == "" {
		return errors.New("lexicon.path must be set")
	}

	if err := validateModelConfig(cfg.Model); err != nil {
		return err
	}

	if err := validateLanguageConfig(cfg.Language); err != nil {
		return err
	}

	if err := validateTranslationConfig(cfg.Translation); err != nil {
		return err
	}

	if err := validateLoggingConfig(cfg.Logging); err != nil {
		return err
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	if err := validateEventsConfig(cfg.Events); err != nil {
		return err
	}

	return nil
}

func validateModelConfig(m ModelConfig) error {
	if m.Disabled {
		return nil
	}
	if strings.TrimSpace(m.Dir) == "" {
		return errors.New("model.dir must be set unless model.disabled is true")
	}
	switch strings.ToLower(strings.TrimSpace(m.Backend)) {
	case "", "native", "onnx":
		return nil
	default:
		return fmt.Errorf("model.backend must be native or onnx, got %q", m.Backend)
	}
}

func validateLanguageConfig(l LanguageConfig) error {
	switch strings.ToLower(strings.TrimSpace(l.Detector)) {
	case "", "lingua", "whatlang", "none":
	default:
		return fmt.Errorf("language.detector must be lingua, whatlang or none, got %q", l.Detector)
	}
	if len(l.Languages) == 1 {
		return errors.New("language.languages needs at least two codes or none")
	}
	for _, code := range l.Languages {
		if len(strings.TrimSpace(code)) != 2 {
			return fmt.Errorf("language.languages entry %q is not an ISO-639-1 code", code)
		}
	}
	return nil
}

func validateTranslationConfig(t TranslationConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("translation enabled but endpoint is empty")
	}
	u, err := url.Parse(t.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("translation.endpoint must be an absolute url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("translation.endpoint must be http or https")
	}
	if t.TimeoutMs > 30000 {
		return fmt.Errorf("translation.timeout_ms must be <= 30000, got %d", t.TimeoutMs)
	}
	return nil
}

func validateLoggingConfig(l LoggingConfig) error {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", l.Level)
	}
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}

func validateEventsConfig(e EventsConfig) error {
	switch strings.ToLower(strings.TrimSpace(e.Preview)) {
	case "", "metadata", "redacted", "full":
	default:
		return fmt.Errorf("events.preview must be metadata, redacted or full, got %q", e.Preview)
	}
	if !e.Enabled {
		return nil
	}
	if strings.TrimSpace(e.File) == "" && strings.TrimSpace(e.Webhook.URL) == "" {
		return errors.New("events enabled but neither events.file nor events.webhook.url is set")
	}
	if e.Webhook.URL != "" {
		u, err := url.Parse(e.Webhook.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("events.webhook.url is not a valid absolute URL")
		}
	}
	if e.Webhook.MaxRetries < 0 {
		return errors.New("events.webhook.max_retries must not be negative")
	}
	return nil
}
