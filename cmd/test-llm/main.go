package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/KathenZK/research-agent/internal/analyzer"
	"github.com/KathenZK/research-agent/internal/config"
	"github.com/KathenZK/research-agent/internal/models"
	"github.com/KathenZK/research-agent/internal/notifications"
	"github.com/KathenZK/research-agent/internal/research"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🧪 Research Agent - LLM Smoke Test")
	fmt.Println("==================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	client, err := analyzer.NewClient(research.NewClientConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}
	defer client.Close()

	item := models.Item{
		ID:          "smoke_1",
		Title:       "Show HN: An AI bookkeeper for freelancers that reconciles invoices automatically",
		Description: "Connects to bank feeds and invoicing tools, matches payments to invoices and drafts quarterly tax summaries. Solo founder, $2k MRR after three months.",
		URL:         "https://news.ycombinator.com/item?id=1",
		Source:      "hn",
		Score:       models.IntPtr(184),
		Descendants: models.IntPtr(67),
	}

	fmt.Printf("\n🔍 Analyzing with %s (%s rubric)...\n", cfg.BailianModel, client.Rubric())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	start := time.Now()
	opp, err := client.Analyze(ctx, item)
	if err != nil {
		log.Fatalf("❌ Analysis failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
	}

	fmt.Printf("✅ Analysis completed in %s\n\n", time.Since(start).Round(time.Millisecond))
	fmt.Println(notifications.FormatOpportunity(opp))
}
