package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/raaihank/text-pseudonymizer/internal/audit"
	"github.com/raaihank/text-pseudonymizer/internal/config"
	"github.com/raaihank/text-pseudonymizer/internal/entity"
	"github.com/raaihank/text-pseudonymizer/internal/logger"
	"github.com/raaihank/text-pseudonymizer/internal/privacy"
	"github.com/raaihank/text-pseudonymizer/internal/pseudonymizer"
	"github.com/raaihank/text-pseudonymizer/internal/recognizer"
	"github.com/raaihank/text-pseudonymizer/internal/rewriter"
)

func main() {
	var (
		configPath   = flag.String("config", "", "Configuration file path")
		inputFile    = flag.String("input", "", "Text file to pseudonymize")
		spansFile    = flag.String("spans", "", "JSON file with entity spans; the configured recognizer is used when empty")
		outputDir    = flag.String("output", "", "Output directory (defaults to the input file's directory)")
		placeholders = flag.Bool("placeholders", false, "Replace entities with [TYPE] placeholders")
	)
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input letter.txt --spans letter_spans.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config configs/lexicon.yaml --input letter.txt --placeholders\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *placeholders {
		cfg.Pseudonymization.UsePlaceholders = true
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, *inputFile, *spansFile, *outputDir); err != nil {
		log.Error("Pseudonymization failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, inputFile, spansFile, outputDir string) error {
	data, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	text := string(data)

	scanner, err := privacy.New(cfg.Pseudonymization.Detectors, log.WithComponent("privacy"))
	if err != nil {
		return fmt.Errorf("failed to create pattern scanner: %w", err)
	}

	var rec recognizer.Recognizer
	if spansFile == "" {
		rec, err = recognizer.FromConfig(cfg.Recognizer, log)
		if err != nil {
			return fmt.Errorf("failed to create recognizer: %w", err)
		}
	}

	p := pseudonymizer.New(rec, scanner, log)
	reg := pseudonymizer.NewRegistry(cfg.Pseudonymization)
	policy := pseudonymizer.PolicyFromConfig(cfg.Pseudonymization)

	var report *pseudonymizer.Report
	if spansFile != "" {
		spans, readErr := readSpans(spansFile)
		if readErr != nil {
			return readErr
		}
		report, err = p.ProcessSpans(text, spans, reg, policy)
	} else {
		report, err = p.Process(ctx, text, reg, policy)
	}
	if err != nil {
		var spanErr *rewriter.SpanError
		if errors.As(err, &spanErr) {
			return fmt.Errorf("invalid entity spans: %w", err)
		}
		return err
	}

	if outputDir == "" {
		outputDir = filepath.Dir(inputFile)
	}
	base := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))

	out, err := pseudonymizer.WriteOutputs(outputDir, base, report, cfg.Pseudonymization)
	if err != nil {
		return err
	}

	if cfg.Audit.Enabled {
		if err := recordAudit(ctx, cfg, log, base, report); err != nil {
			return err
		}
	}

	log.Info("Pseudonymization completed",
		zap.String("text_file", out.TextPath),
		zap.String("correspondence_file", out.CorrespondencesPath),
		zap.Int("entities", len(report.Entities)),
		zap.Int("pattern_matches", report.PatternMatches()))

	fmt.Printf("Pseudonymized text:  %s\n", out.TextPath)
	fmt.Printf("Correspondences:     %s\n", out.CorrespondencesPath)
	fmt.Printf("Entities replaced:   %d\n", len(report.Entities))
	fmt.Printf("Pattern matches:     %d\n", report.PatternMatches())

	return nil
}

func readSpans(path string) ([]entity.Span, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spans: %w", err)
	}
	var spans []entity.Span
	if err := json.Unmarshal(data, &spans); err != nil {
		return nil, fmt.Errorf("failed to decode spans %s: %w", path, err)
	}
	return spans, nil
}

// recordAudit stores the report under a session named after the input file
func recordAudit(ctx context.Context, cfg *config.Config, log *logger.Logger, sessionID string, report *pseudonymizer.Report) error {
	store, err := audit.NewStore(&audit.Config{
		DatabaseURL:     cfg.Audit.DatabaseURL,
		MaxOpenConns:    cfg.Audit.MaxOpenConns,
		MaxIdleConns:    cfg.Audit.MaxIdleConns,
		ConnMaxLifetime: cfg.Audit.ConnMaxLifetime,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer store.Close()

	docID, err := store.SaveReport(ctx, sessionID, report)
	if err != nil {
		return err
	}
	log.Info("Audit record stored", zap.String("document_id", docID))
	return nil
}
