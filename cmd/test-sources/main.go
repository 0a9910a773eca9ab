package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/KathenZK/research-agent/internal/config"
	"github.com/KathenZK/research-agent/internal/sources"
	"github.com/joho/godotenv"
)

// probeLimit keeps the check fast and friendly to rate limits
const probeLimit = 5

func main() {
	fmt.Println("🔍 Research Agent - Source Connectivity Test")
	fmt.Println("============================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Println("\n📡 Testing sources...")
	fmt.Println(strings.Repeat("-", 44))

	ok := 0
	for _, name := range sources.Names {
		if testSource(ctx, sources.New(name, cfg)) {
			ok++
		}
	}

	fmt.Printf("\n✅ %d/%d sources returned items\n", ok, len(sources.Names))
	fmt.Printf("   Enabled for runs: %s\n", strings.Join(cfg.EnabledSources, ", "))
}

func testSource(ctx context.Context, source sources.Source) bool {
	fmt.Printf("🔸 Testing %s... ", source.GetName())

	if !source.IsEnabled() {
		fmt.Printf("⚠️  DISABLED (missing API key or settings)\n")
		return false
	}

	start := time.Now()
	items, err := source.Fetch(ctx, probeLimit)
	if err != nil {
		fmt.Printf("❌ ERROR: %v\n", err)
		return false
	}

	fmt.Printf("✅ %d items in %s\n", len(items), time.Since(start).Round(time.Millisecond))

	if len(items) > 0 {
		fmt.Printf("   📝 Sample: %q\n", items[0].Title)
	}
	return len(items) > 0
}
