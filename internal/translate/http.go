package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/straja-ai/hatescan/internal/logging"
	"github.com/straja-ai/hatescan/internal/redact"
)

const (
	defaultTimeout          = 3 * time.Second
	defaultMaxResponseBytes = 1 << 20
	defaultCacheTTL         = time.Hour
)

// HTTPOptions configures an HTTP translator.
type HTTPOptions struct {
	Endpoint         string // LibreTranslate base URL or full /translate URL
	APIKey           string
	Target           string
	Timeout          time.Duration
	RatePerSecond    float64 // <= 0 disables throttling
	Burst            int
	CacheSize        int // <= 0 disables caching
	CacheTTL         time.Duration
	MaxResponseBytes int64
	Logger           *zap.Logger
	Client           *http.Client
}

// HTTP calls a LibreTranslate-compatible service. Calls are bounded by the
// client timeout and never retried.
type HTTP struct {
	url              string
	apiKey           string
	target           string
	client           *http.Client
	limiter          *rate.Limiter
	cache            *expirable.LRU[string, string]
	maxResponseBytes int64
	logger           *zap.Logger
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
}

type libreErrorResponse struct {
	Error string `json:"error"`
}

// NewHTTP creates an HTTP translator.
func NewHTTP(opts HTTPOptions) *HTTP {
	if opts.Target == "" {
		opts.Target = "en"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = defaultMaxResponseBytes
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	burst := opts.Burst
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	h := &HTTP{
		url:              translateURL(opts.Endpoint),
		apiKey:           opts.APIKey,
		target:           strings.ToLower(opts.Target),
		client:           client,
		limiter:          rate.NewLimiter(limit, burst),
		maxResponseBytes: opts.MaxResponseBytes,
		logger:           logging.OrNop(opts.Logger),
	}
	if opts.CacheSize > 0 {
		ttl := opts.CacheTTL
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		h.cache = expirable.NewLRU[string, string](opts.CacheSize, nil, ttl)
	}
	return h
}

// Translate returns the translated text, or the original text with the
// reason translation did not happen.
func (h *HTTP) Translate(ctx context.Context, text, source string) Result {
	if skip(source, h.target) {
		return Fallback(text, FailureSkipped)
	}
	source = strings.ToLower(source)

	key := source + "\x00" + text
	if h.cache != nil {
		if cached, ok := h.cache.Get(key); ok {
			return Result{Text: cached, Translated: true, Failure: FailureNone}
		}
	}

	if !h.limiter.Allow() {
		h.logger.Debug("translation throttled", zap.String("source", source))
		return Fallback(text, FailureRateLimited)
	}

	translated, err := h.call(ctx, text, source)
	if err != nil {
		h.logger.Warn("translation failed, using original text",
			zap.String("source", source),
			zap.String("error", redact.String(err.Error())),
		)
		return Fallback(text, FailureRequest)
	}
	if strings.TrimSpace(translated) == "" {
		h.logger.Warn("translation returned empty text", zap.String("source", source))
		return Fallback(text, FailureEmpty)
	}

	if h.cache != nil {
		h.cache.Add(key, translated)
	}
	return Result{Text: translated, Translated: true, Failure: FailureNone}
}

func (h *HTTP) call(ctx context.Context, text, source string) (string, error) {
	body, err := json.Marshal(libreRequest{
		Q:      text,
		Source: source,
		Target: h.target,
		Format: "text",
		APIKey: h.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal translate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create translate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call translator %s: %w", h.url, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, h.maxResponseBytes+1)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return "", fmt.Errorf("read translate response: %w", err)
	}
	if int64(len(respBody)) > h.maxResponseBytes {
		return "", fmt.Errorf("translate response exceeded limit (%d bytes)", h.maxResponseBytes)
	}

	if resp.StatusCode >= 400 {
		var errBody libreErrorResponse
		if err := json.Unmarshal(respBody, &errBody); err == nil && errBody.Error != "" {
			return "", fmt.Errorf("translator error status %d: %s", resp.StatusCode, errBody.Error)
		}
		return "", fmt.Errorf("translator error status %d", resp.StatusCode)
	}

	var out libreResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	return out.TranslatedText, nil
}

func translateURL(endpoint string) string {
	u := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if strings.HasSuffix(u, "/translate") {
		return u
	}
	return u + "/translate"
}

func millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

func seconds(s int) time.Duration { return time.Duration(s) * time.Second }
