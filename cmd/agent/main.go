package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/KathenZK/research-agent/internal/analyzer"
	"github.com/KathenZK/research-agent/internal/config"
	"github.com/KathenZK/research-agent/internal/models"
	"github.com/KathenZK/research-agent/internal/notifications"
	"github.com/KathenZK/research-agent/internal/research"
	"github.com/KathenZK/research-agent/internal/sources"
	"github.com/KathenZK/research-agent/internal/storage"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// options are command-line overrides applied on top of the environment
type options struct {
	Test        bool   `long:"test" description:"Only collect a few items from hn and ph and print them"`
	Debug       bool   `long:"debug" description:"Enable debug logging"`
	Serve       bool   `long:"serve" description:"Run as a daemon with the scheduler and HTTP endpoints"`
	HNLimit     int    `long:"hn-limit" description:"Hacker News fetch limit"`
	PHLimit     int    `long:"ph-limit" description:"Product Hunt fetch limit"`
	MinScore    int    `long:"min-score" default:"-1" description:"Minimum opportunity score (0-100)"`
	Rubric      string `long:"rubric" choice:"general" choice:"solo" description:"Analysis rubric"`
	Concurrency int    `long:"concurrency" description:"Maximum concurrent LLM requests"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	if err := applyOptions(cfg, opts); err != nil {
		logrus.Fatalf("Invalid command-line options: %v", err)
	}

	logFile := setupLogging(cfg, opts.Serve)
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.Test {
		runCollectionTest(ctx, cfg)
		return
	}

	service, closeClient, err := buildService(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize: %v", err)
	}
	defer closeClient()

	if opts.Serve {
		if err := serve(ctx, cfg, service); err != nil {
			logrus.Fatalf("Server failed: %v", err)
		}
		return
	}

	result, err := service.Run(ctx)
	if err != nil {
		logrus.Fatalf("Research run failed: %v", err)
	}
	printResult(os.Stdout, result)
}

// applyOptions copies explicit flags onto cfg and validates the result
func applyOptions(cfg *config.Config, opts options) error {
	if opts.Debug {
		cfg.Debug = true
	}
	if opts.HNLimit > 0 {
		cfg.SourceLimits["hn"] = opts.HNLimit
	}
	if opts.PHLimit > 0 {
		cfg.SourceLimits["ph"] = opts.PHLimit
	}
	if opts.MinScore >= 0 {
		cfg.MinScore = opts.MinScore
	}
	if opts.Rubric != "" {
		rubric, err := analyzer.ParseRubric(opts.Rubric)
		if err != nil {
			return err
		}
		cfg.Rubric = rubric
	}
	if opts.Concurrency > 0 {
		cfg.Concurrency = opts.Concurrency
	}
	return cfg.Validate()
}

// setupLogging configures logrus and tees output into LOG_DIR when it is
// writable. The returned file, if any, must be closed by the caller.
func setupLogging(cfg *config.Config, daemon bool) *os.File {
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if daemon {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.LogDir == "" {
		return nil
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		logrus.Warnf("Log directory unavailable, logging to stderr only: %v", err)
		return nil
	}

	path := filepath.Join(cfg.LogDir, fmt.Sprintf("research_%s.log", time.Now().Format("20060102")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logrus.Warnf("Cannot open log file %s: %v", path, err)
		return nil
	}

	logrus.SetOutput(io.MultiWriter(os.Stderr, file))
	return file
}

func buildService(ctx context.Context, cfg *config.Config) (*research.Service, func(), error) {
	store, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: %w", err)
	}

	client, err := analyzer.NewClient(research.NewClientConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("LLM client: %w", err)
	}

	srcs := sources.FromConfig(cfg)
	if len(srcs) == 0 {
		client.Close()
		return nil, nil, fmt.Errorf("no enabled sources (SOURCES=%s)", strings.Join(cfg.EnabledSources, ","))
	}

	service := research.NewService(cfg, store, notifications.NewService(cfg), client, srcs)
	logrus.Infof("Research agent ready: sources=%v rubric=%s storage=%s", service.Sources(), cfg.Rubric, cfg.StorageBackend)

	return service, client.Close, nil
}

// runCollectionTest fetches a handful of items without calling the LLM
func runCollectionTest(ctx context.Context, cfg *config.Config) {
	logrus.Info("Test mode: collecting a few items from hn and ph")

	probes := []struct {
		name  string
		limit int
	}{
		{"hn", 5},
		{"ph", 3},
	}

	for _, probe := range probes {
		source := sources.New(probe.name, cfg)
		if source == nil || !source.IsEnabled() {
			logrus.Warnf("Source %s is not available", probe.name)
			continue
		}

		items, err := source.Fetch(ctx, probe.limit)
		if err != nil {
			logrus.Errorf("Fetching %s failed: %v", probe.name, err)
			continue
		}

		fmt.Printf("\n%s: %d items\n", probe.name, len(items))
		for i, item := range items {
			if i >= 3 {
				break
			}
			fmt.Printf("  - %s\n", item.Title)
		}
	}
}

func printResult(w io.Writer, result *research.RunResult) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "分析完成：%d 条内容，%d 个机会，用时 %s\n", result.TotalItems, len(result.Opportunities), result.Duration.Round(time.Second))
	fmt.Fprintln(w, strings.Repeat("=", 60))

	if len(result.Opportunities) == 0 {
		fmt.Fprintln(w, "未发现符合条件的机会")
		return
	}

	for i, opp := range result.Opportunities {
		if i >= 5 {
			break
		}
		fmt.Fprintf(w, "\n#%d [%s] 评分：%d\n", i+1, strings.ToUpper(opp.Source), opp.Score)
		fmt.Fprintf(w, "   %s\n", opp.Title)
		if opp.Summary != "" {
			fmt.Fprintf(w, "   %s\n", opp.Summary)
		}
		if suggestion := suggestionOf(&opp); suggestion != "" {
			fmt.Fprintf(w, "   建议：%s\n", suggestion)
		}
	}

	if result.ResultsFile != "" {
		fmt.Fprintf(w, "\n结果已保存：%s\n", result.ResultsFile)
	}
}

func suggestionOf(opp *models.Opportunity) string {
	switch {
	case opp.Market != nil:
		return opp.Market.Suggestion
	case opp.Solo != nil:
		return opp.Solo.ActionPlan
	}
	return ""
}
