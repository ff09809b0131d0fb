package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/lexredact/lexredact/internal/config"
	"github.com/lexredact/lexredact/internal/etl"
	"github.com/lexredact/lexredact/internal/logger"
	"github.com/lexredact/lexredact/internal/ner"
	"github.com/lexredact/lexredact/internal/pii"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		inputFile  = flag.String("input", "", "Input corpus file (CSV, Parquet, or JSON lines)")
		outputFile = flag.String("output", "", "Output file (defaults to <input>.anonymized.<ext>)")
		batchSize  = flag.Int("batch-size", 100, "Documents per batch")
		mode       = flag.String("mode", "", "Detection mode override (pattern, recognizer, hybrid)")
		language   = flag.String("language", "", "Language override (auto, en, de, nl, fr)")
		noValidate = flag.Bool("no-validate", false, "Skip record validation")
	)
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input corpus.csv --batch-size 500\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input filings.parquet --output redacted.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input dossier.jsonl --language auto\n", os.Args[0])
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting lexredact corpus pipeline",
		zap.String("input", *inputFile),
		zap.Int("batch_size", *batchSize))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	// Build the engine the same way the server does, minus the cache: a
	// one-shot batch job gains nothing from warming Redis.
	recognizer, err := ner.NewRecognizer(ner.ModelConfig{
		ModelPath:   cfg.Recognizer.ModelPath,
		MaxLength:   cfg.Recognizer.MaxLength,
		BatchSize:   cfg.Recognizer.BatchSize,
		Timeout:     cfg.Recognizer.Timeout,
		UseFallback: cfg.Recognizer.UseFallback,
	}, log.WithComponent("ner").Logger, nil)
	if err != nil {
		log.Fatal("Failed to create recognizer", zap.Error(err))
	}
	defer recognizer.Close()

	engineMode := cfg.Engine.Mode
	if *mode != "" {
		engineMode = *mode
	}
	if !pii.DetectionMode(engineMode).Valid() {
		log.Fatal("Invalid detection mode", zap.String("mode", engineMode))
	}

	engine := pii.NewEngine(log.WithComponent("engine").Logger,
		pii.WithRecognizer(recognizer),
		pii.WithMode(pii.DetectionMode(engineMode)),
	)

	settings := pii.DefaultSettings()
	settings.ConfidenceThreshold = cfg.Engine.Defaults.ConfidenceThreshold
	settings.PreserveLegalRefs = cfg.Engine.Defaults.PreserveLegalRefs
	settings.ConsistentReplace = cfg.Engine.Defaults.ConsistentReplace
	settings.Language = cfg.Engine.Defaults.Language
	if len(cfg.Engine.Defaults.EntityTypes) > 0 {
		settings.EntityTypes = nil
		for _, t := range cfg.Engine.Defaults.EntityTypes {
			settings.EntityTypes = append(settings.EntityTypes, pii.EntityType(t))
		}
	}
	if *language != "" {
		settings.Language = *language
	}
	if err := settings.Validate(); err != nil {
		log.Fatal("Invalid settings", zap.Error(err))
	}

	etlConfig := etl.DefaultConfig()
	etlConfig.BatchSize = *batchSize
	etlConfig.ValidateData = !*noValidate

	pipeline := etl.NewPipeline(engine, settings, etlConfig, log.WithComponent("etl").Logger)

	output := *outputFile
	if output == "" {
		output = defaultOutputPath(*inputFile)
	}

	result, err := pipeline.ProcessFile(ctx, *inputFile, output)
	if err != nil {
		log.Fatal("Corpus processing failed", zap.Error(err))
	}

	log.Info("Corpus pipeline completed successfully",
		zap.Int64("documents", result.TotalRecords),
		zap.Int64("entities", result.TotalEntities),
		zap.String("output", output))
}

// defaultOutputPath derives "corpus.anonymized.csv" from "corpus.csv".
func defaultOutputPath(input string) string {
	if dot := strings.LastIndex(input, "."); dot > 0 {
		return input[:dot] + ".anonymized" + input[dot:]
	}
	return input + ".anonymized"
}
