package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/straja-ai/hatescan/internal/analyzer"
	"github.com/straja-ai/hatescan/internal/config"
	"github.com/straja-ai/hatescan/internal/logging"
	"github.com/straja-ai/hatescan/internal/model"
	"github.com/straja-ai/hatescan/internal/telemetry"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "hatescan.yaml", "Path to hatescan config file")
	text := flag.String("text", "", "analyze a single text and exit")
	lexiconUpdate := flag.String("lexicon-update", "", "file with terms to add to the lexicon (- for stdin)")
	lexiconMode := flag.String("lexicon-mode", "append", "lexicon update mode: append | replace")
	activate := flag.String("model-activate", "", "activate a versioned model directory under model.dir")
	rollback := flag.Bool("model-rollback", false, "switch model.dir back to the previous version")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	switch {
	case *activate != "":
		st, err := model.Activate(cfg.Model.Dir, *activate)
		if err != nil {
			logger.Fatal("model activation failed", zap.String("version", *activate), zap.Error(err))
		}
		logger.Info("model activated", zap.String("current", st.CurrentVersion), zap.String("previous", st.PreviousVersion))
		return
	case *rollback:
		st, err := model.Rollback(cfg.Model.Dir)
		if err != nil {
			logger.Fatal("model rollback failed", zap.Error(err))
		}
		logger.Info("model rolled back", zap.String("current", st.CurrentVersion), zap.String("previous", st.PreviousVersion))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewProvider(ctx, telemetry.FromConfig(cfg.Telemetry, version), logger)
	if err != nil {
		logger.Fatal("telemetry setup failed", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tp.Shutdown(shutdownCtx)
	}()

	a, err := analyzer.FromConfig(cfg, logger, tp)
	if err != nil {
		logger.Fatal("failed to build analyzer", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close analyzer", zap.Error(err))
		}
	}()

	if *lexiconUpdate != "" {
		if err := updateLexicon(a, *lexiconUpdate, *lexiconMode, cfg.Lexicon.Path); err != nil {
			logger.Fatal("lexicon update failed", zap.Error(err))
		}
		return
	}

	out := bufio.NewWriter(os.Stdout)
	defer func() { _ = out.Flush() }()
	enc := json.NewEncoder(out)

	if *text != "" {
		if err := enc.Encode(a.Analyze(ctx, *text)); err != nil {
			logger.Fatal("write result", zap.Error(err))
		}
		return
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				_, _, _ = a.ReloadLexicon("")
			}
		}
	}()

	logger.Info("reading texts from stdin, one per line", zap.String("version", version))
	if err := analyzeLines(ctx, a, os.Stdin, out, enc); err != nil {
		logger.Fatal("analyze stdin", zap.Error(err))
	}
}

func updateLexicon(a *analyzer.Analyzer, src, mode, path string) error {
	var r io.Reader = os.Stdin
	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read terms: %w", err)
	}
	st, err := a.UpdateLexicon(path, string(content), mode)
	if err != nil {
		return err
	}
	fmt.Printf("lexicon %s: words=%d phrases=%d\n", st.Path, st.Words, st.Phrases)
	return nil
}

func analyzeLines(ctx context.Context, a *analyzer.Analyzer, in io.Reader, out *bufio.Writer, enc *json.Encoder) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if err := enc.Encode(a.Analyze(ctx, sc.Text())); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}
	return sc.Err()
}
