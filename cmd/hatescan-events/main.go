package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/straja-ai/hatescan/internal/config"
	"github.com/straja-ai/hatescan/internal/events"
	"github.com/straja-ai/hatescan/internal/logging"
)

func main() {
	addr := flag.String("addr", ":8099", "listen address for the event receiver")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := logging.New(config.LoggingConfig{Level: *level, OutputPaths: []string{"stdout"}})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	mux := http.NewServeMux()
	mux.Handle("/events", eventHandler(logger))
	mux.Handle("/", eventHandler(logger))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("event receiver listening (POST JSON to /events)", zap.String("addr", *addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("receiver error", zap.Error(err))
	}
}

func eventHandler(logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		_ = r.Body.Close()

		var ev events.Event
		if err := json.Unmarshal(body, &ev); err != nil {
			logger.Warn("malformed event", zap.Int("len", len(body)), zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		fields := []zap.Field{zap.String("id", ev.ID), zap.String("kind", string(ev.Kind)), zap.Time("timestamp", ev.Timestamp)}
		switch {
		case ev.Analysis != nil:
			fields = append(fields,
				zap.Bool("hate", ev.Analysis.IsHateSpeech),
				zap.Float64("confidence", ev.Analysis.Confidence),
				zap.String("category", ev.Analysis.Category),
				zap.String("language", ev.Analysis.Language),
				zap.Strings("rule_matches", ev.Analysis.RuleMatches),
			)
		case ev.Lexicon != nil:
			fields = append(fields,
				zap.String("action", ev.Lexicon.Action),
				zap.Int("words", ev.Lexicon.Words),
				zap.Int("phrases", ev.Lexicon.Phrases),
				zap.Bool("ok", ev.Lexicon.OK),
			)
		}
		logger.Info("received event", fields...)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintln(w, `{"status":"ok"}`)
	})
}
