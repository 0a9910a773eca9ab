package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KathenZK/research-agent/internal/analyzer"
	"github.com/KathenZK/research-agent/internal/config"
	"github.com/KathenZK/research-agent/internal/models"
	"github.com/KathenZK/research-agent/internal/notifications"
	"github.com/KathenZK/research-agent/internal/sources"
	"github.com/KathenZK/research-agent/internal/storage"
	"github.com/sirupsen/logrus"
)

// ErrRunInProgress is returned when a run is requested while another is active
var ErrRunInProgress = errors.New("research run already in progress")

const runTimeout = 30 * time.Minute

// Service runs the collect -> analyze -> store -> notify pipeline
type Service struct {
	config              *config.Config
	storage             storage.StorageInterface
	notificationService notifications.NotificationInterface
	sources             []sources.Source
	batch               *analyzer.BatchAnalyzer
	enricher            *sources.Enricher
	metrics             *Metrics
	mu                  sync.RWMutex
	runMu               sync.Mutex
	now                 func() time.Time
}

// Metrics holds the outcome of the latest run
type Metrics struct {
	TotalItems            int            `json:"total_items"`
	TotalOpportunities    int            `json:"total_opportunities"`
	TopScore              int            `json:"top_score"`
	LastRun               time.Time      `json:"last_run"`
	LastRunDuration       string         `json:"last_run_duration"`
	LastResultsFile       string         `json:"last_results_file,omitempty"`
	SourceMetrics         map[string]int `json:"source_metrics"`
	OpportunitiesBySource map[string]int `json:"opportunities_by_source"`
	AlertsSent            int            `json:"alerts_sent"`
	ErrorCount            int            `json:"error_count"`
	Runs                  int            `json:"runs"`
}

// RunResult describes one completed run
type RunResult struct {
	TotalItems    int
	Opportunities []models.Opportunity
	ResultsFile   string
	Duration      time.Duration
}

// NewClientConfig maps the environment configuration onto the LLM client
func NewClientConfig(cfg *config.Config) analyzer.ClientConfig {
	return analyzer.ClientConfig{
		Endpoint:          cfg.BailianEndpoint,
		APIKey:            cfg.BailianAPIKey,
		Model:             cfg.BailianModel,
		Timeout:           cfg.BailianTimeout,
		Temperature:       cfg.Temperature,
		MaxTokens:         cfg.MaxTokens,
		Rubric:            cfg.Rubric,
		MaxRetryWait:      cfg.MaxRetryWait,
		RequestsPerMinute: cfg.LLMRequestsPerMinute,
	}
}

// NewService wires a research service. itemAnalyzer is usually an
// *analyzer.Client built from NewClientConfig.
func NewService(cfg *config.Config, store storage.StorageInterface, notificationService notifications.NotificationInterface, itemAnalyzer analyzer.ItemAnalyzer, srcs []sources.Source) *Service {
	service := &Service{
		config:              cfg,
		storage:             store,
		notificationService: notificationService,
		sources:             srcs,
		batch: analyzer.NewBatchAnalyzer(itemAnalyzer, analyzer.BatchOptions{
			MinScore:    cfg.MinScore,
			Concurrency: cfg.Concurrency,
		}),
		metrics: &Metrics{
			SourceMetrics:         make(map[string]int),
			OpportunitiesBySource: make(map[string]int),
		},
		now: time.Now,
	}

	if cfg.EnrichContent {
		service.enricher = sources.NewEnricher(cfg.Concurrency)
	}

	return service
}

// Sources returns the names of the configured sources
func (s *Service) Sources() []string {
	names := make([]string, 0, len(s.sources))
	for _, source := range s.sources {
		names = append(names, source.GetName())
	}
	return names
}

// Collect fetches every source concurrently and returns the deduplicated
// items in source order, plus the number of sources that failed
func (s *Service) Collect(ctx context.Context) ([]models.Item, int) {
	var wg sync.WaitGroup
	results := make([][]models.Item, len(s.sources))
	errorsChan := make(chan error, len(s.sources))

	for i, source := range s.sources {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()

			limit := s.config.SourceLimit(src.GetName())
			logrus.Infof("Fetching %s (limit=%d)...", src.GetName(), limit)

			items, err := src.Fetch(ctx, limit)
			if err != nil {
				logrus.Errorf("Error fetching from %s: %v", src.GetName(), err)
				errorsChan <- err
			}

			logrus.Infof("Got %d %s items", len(items), src.GetName())
			results[i] = items
		}(i, source)
	}

	wg.Wait()
	close(errorsChan)

	errorCount := 0
	for range errorsChan {
		errorCount++
	}

	var allItems []models.Item
	for _, items := range results {
		allItems = append(allItems, items...)
	}

	unique := sources.DeduplicateItems(allItems)
	logrus.Infof("Collected %d items from %d sources (%d duplicates removed)", len(unique), len(s.sources), len(allItems)-len(unique))

	return unique, errorCount
}

// Run performs one full research pass. Finding no opportunities is not an
// error. Notification failures and a failed latest.json update are logged
// and counted but do not fail the run.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	start := s.now()
	began := time.Now()
	logrus.Infof("Starting research run (rubric=%s, min_score=%d)", s.config.Rubric, s.config.MinScore)

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	items, errorCount := s.Collect(ctx)

	if s.enricher != nil && len(items) > 0 {
		items = s.enricher.Enrich(ctx, items)
	}

	opportunities, err := s.batch.Analyze(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("analysis aborted: %w", err)
	}

	result := &RunResult{
		TotalItems:    len(items),
		Opportunities: opportunities,
	}

	if len(opportunities) == 0 {
		logrus.Info("No opportunities met the minimum score")
		result.Duration = time.Since(began)
		s.updateMetrics(items, result, errorCount, 0)
		return result, nil
	}

	filename, err := storage.SaveResults(ctx, s.storage, opportunities, start)
	if err != nil {
		logrus.Errorf("Failed to store results: %v", err)
		errorCount++
		if filename == "" {
			// nothing was persisted
			result.Duration = time.Since(began)
			s.updateMetrics(items, result, errorCount, 0)
			return nil, err
		}
	}
	result.ResultsFile = filename

	report := s.GenerateReport(items, opportunities)
	if err := s.notificationService.SendReport(ctx, report); err != nil {
		logrus.Errorf("Failed to send report: %v", err)
		errorCount++
	}

	alertsSent, alertErrors := s.sendAlerts(ctx, opportunities)
	errorCount += alertErrors

	result.Duration = time.Since(began)
	s.updateMetrics(items, result, errorCount, alertsSent)

	logrus.Infof("Research run completed in %v: %d opportunities from %d items", result.Duration, len(opportunities), len(items))
	return result, nil
}

func (s *Service) sendAlerts(ctx context.Context, opportunities []models.Opportunity) (int, int) {
	sent, failed := 0, 0

	for i := range opportunities {
		opp := &opportunities[i]
		if opp.Score < s.config.AlertMinScore {
			// ranked, so nothing further qualifies
			break
		}

		alert := &models.Alert{
			ID:          "alert_" + opp.ID,
			Title:       fmt.Sprintf("[%d] %s", opp.Score, opp.Title),
			Message:     fmt.Sprintf("High-scoring opportunity from %s (%s rubric)", opp.Source, opp.Rubric),
			Opportunity: opp,
			CreatedAt:   s.now(),
		}

		if err := s.notificationService.SendAlert(ctx, alert); err != nil {
			logrus.Errorf("Failed to send alert for %s: %v", opp.ID, err)
			failed++
			continue
		}
		sent++
	}

	return sent, failed
}

// GenerateReport summarizes a run for the notification channels
func (s *Service) GenerateReport(items []models.Item, opportunities []models.Opportunity) *models.Report {
	report := &models.Report{
		GeneratedAt:   s.now(),
		Rubric:        s.config.Rubric,
		TotalItems:    len(items),
		Opportunities: opportunities,
		Summary:       make(map[string]interface{}),
	}

	itemCount := make(map[string]int)
	for _, item := range items {
		itemCount[item.Source]++
	}

	opportunityCount := make(map[string]int)
	for _, opp := range opportunities {
		opportunityCount[opp.Source]++
	}

	report.Summary["sources"] = itemCount
	report.Summary["opportunities_by_source"] = opportunityCount
	report.Summary["top_sources"] = getTopSources(opportunityCount)
	report.Summary["score_bands"] = scoreBands(opportunities)

	return report
}

func getTopSources(sourceCount map[string]int) []string {
	type sourceScore struct {
		source string
		count  int
	}

	scores := make([]sourceScore, 0, len(sourceCount))
	for source, count := range sourceCount {
		scores = append(scores, sourceScore{source, count})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].count != scores[j].count {
			return scores[i].count > scores[j].count
		}
		return scores[i].source < scores[j].source
	})

	var topSources []string
	for i, score := range scores {
		if i >= 5 {
			break
		}
		topSources = append(topSources, fmt.Sprintf("%s (%d)", score.source, score.count))
	}

	return topSources
}

// scoreBands buckets scores as 90+, 80-89, 70-79 and below 70
func scoreBands(opportunities []models.Opportunity) map[string]int {
	bands := map[string]int{"90+": 0, "80-89": 0, "70-79": 0, "<70": 0}
	for _, opp := range opportunities {
		switch {
		case opp.Score >= 90:
			bands["90+"]++
		case opp.Score >= 80:
			bands["80-89"]++
		case opp.Score >= 70:
			bands["70-79"]++
		default:
			bands["<70"]++
		}
	}
	return bands
}

func (s *Service) updateMetrics(items []models.Item, result *RunResult, errorCount, alertsSent int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Runs++
	s.metrics.TotalItems = len(items)
	s.metrics.TotalOpportunities = len(result.Opportunities)
	s.metrics.LastRun = s.now()
	s.metrics.LastRunDuration = result.Duration.String()
	s.metrics.LastResultsFile = result.ResultsFile
	s.metrics.ErrorCount = errorCount
	s.metrics.AlertsSent = alertsSent

	s.metrics.TopScore = 0
	if len(result.Opportunities) > 0 {
		s.metrics.TopScore = result.Opportunities[0].Score
	}

	s.metrics.SourceMetrics = make(map[string]int)
	for _, item := range items {
		s.metrics.SourceMetrics[item.Source]++
	}

	s.metrics.OpportunitiesBySource = make(map[string]int)
	for _, opp := range result.Opportunities {
		s.metrics.OpportunitiesBySource[opp.Source]++
	}
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
