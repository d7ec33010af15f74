package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeAttributesFiltersUserText(t *testing.T) {
	kvs := map[string]interface{}{
		"text":             "all of them should leave",
		"original_text":    "alle sollen gehen",
		"translation_text": "x",
		"content":          "drop",
		"api_key":          "sk-123",
		"token":            "abc",
		"authorization":    "secret",
		"long_string":      string(make([]byte, 600)),
		"category":         "religious",
		"hate":             true,
		"confidence":       0.85,
		"rule_hits":        []string{"rule:go_back"},
		"words":            3,
	}

	attrs := SafeAttributes(kvs)
	keys := make(map[string]bool)
	for _, a := range attrs {
		keys[string(a.Key)] = true
	}
	for _, bad := range []string{"text", "original_text", "translation_text", "content", "api_key", "token", "authorization", "long_string"} {
		assert.False(t, keys[bad], "unexpected unsafe attribute %s", bad)
	}
	for _, good := range []string{"category", "hate", "confidence", "rule_hits", "words"} {
		assert.True(t, keys[good], "missing attribute %s", good)
	}
}

func TestNoopProvider(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, p.Enabled)

	ctx, span := p.Tracer().Start(context.Background(), "test")
	p.RecordAnalysis(ctx, AnalysisMetrics{Hate: true, Category: "general", Language: "en", DurationMs: 1.5, ClassifierMs: 0.3})
	p.RecordTranslationFallback(ctx, "rate_limited", "de")
	p.RecordLexiconReload(ctx, true)
	span.End()
	p.Shutdown(context.Background())

	var nilProvider *Provider
	nilProvider.RecordAnalysis(ctx, AnalysisMetrics{})
	assert.NotNil(t, nilProvider.Tracer())
}

func TestNewProviderRejectsUnknownProtocol(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, Protocol: "udp", Endpoint: "localhost:4317"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grpc or http")
}
