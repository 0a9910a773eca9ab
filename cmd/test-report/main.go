package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/KathenZK/research-agent/internal/config"
	"github.com/KathenZK/research-agent/internal/models"
	"github.com/KathenZK/research-agent/internal/notifications"
	"github.com/KathenZK/research-agent/internal/storage"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type options struct {
	File string `long:"file" description:"Results snapshot to load instead of latest.json"`
	List bool   `long:"list" description:"List stored result snapshots and exit"`
	Send bool   `long:"send" description:"Send the report through the configured notification channels"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	fmt.Println("🤖 Research Agent - Report Replay")
	fmt.Println("=================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	if opts.List {
		names, err := storage.ListResults(ctx, store)
		if err != nil {
			log.Fatalf("Failed to list results: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	opportunities, err := loadOpportunities(ctx, store, opts.File)
	if err != nil {
		log.Fatalf("Failed to load results: %v", err)
	}

	report := &models.Report{
		GeneratedAt:   time.Now(),
		Rubric:        cfg.Rubric,
		TotalItems:    len(opportunities),
		Opportunities: opportunities,
		Summary:       map[string]interface{}{"replayed": true},
	}

	fmt.Printf("\n📊 %d opportunities loaded\n", len(opportunities))
	for i := range opportunities {
		fmt.Println("\n" + strings.Repeat("=", 60))
		fmt.Println(notifications.FormatOpportunity(&opportunities[i]))
	}

	if !opts.Send {
		fmt.Println("\n💡 Re-run with --send to deliver this report")
		return
	}

	if err := notifications.NewService(cfg).SendReport(ctx, report); err != nil {
		fmt.Printf("❌ Error sending report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\n✅ Report sent")
}

func loadOpportunities(ctx context.Context, store storage.StorageInterface, file string) ([]models.Opportunity, error) {
	if file == "" {
		return storage.LoadLatest(ctx, store)
	}

	data, err := store.Retrieve(ctx, file)
	if err != nil {
		return nil, err
	}

	var opportunities []models.Opportunity
	if err := json.Unmarshal(data, &opportunities); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", file, err)
	}
	return opportunities, nil
}
