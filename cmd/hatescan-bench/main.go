package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/straja-ai/hatescan/internal/analyzer"
	"github.com/straja-ai/hatescan/internal/config"
	"github.com/straja-ai/hatescan/internal/logging"
	"github.com/straja-ai/hatescan/internal/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "path to config yaml (required)")
	n := flag.Int("n", 200, "number of iterations")
	text := flag.String("text", "All members of that religion are dangerous and should go back to where they came from.", "text to analyze")
	flag.Parse()

	if *cfgPath == "" {
		log.Fatalf("config flag is required")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// Remote translation would dominate the numbers.
	cfg.Translation.Enabled = false

	a, err := analyzer.FromConfig(cfg, logging.Nop(), telemetry.Noop())
	if err != nil {
		log.Fatalf("build analyzer: %v", err)
	}
	defer a.Close()

	ctx := context.Background()

	// Warmup
	for i := 0; i < 5; i++ {
		a.Analyze(ctx, *text)
	}

	if *n <= 0 {
		*n = 1
	}

	durations := make([]time.Duration, 0, *n)
	var res analyzer.Result
	for i := 0; i < *n; i++ {
		start := time.Now()
		res = a.Analyze(ctx, *text)
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

	fmt.Printf("bench: n=%d avg_ms=%.3f p50_ms=%.3f p95_ms=%.3f hate=%t confidence=%.3f language=%s model_dir=%s\n",
		len(durations),
		avg,
		p50,
		p95,
		res.IsHateSpeech,
		res.Confidence,
		res.Language,
		cfg.Model.Dir,
	)
}
