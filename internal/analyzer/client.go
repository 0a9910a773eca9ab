package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	// ErrConfig is returned by NewClient when the configuration is unusable
	ErrConfig = errors.New("invalid LLM client configuration")
	// ErrRateLimited means every attempt was answered with HTTP 429
	ErrRateLimited = errors.New("LLM endpoint rate limited")
	// ErrTransport covers timeouts and connection failures
	ErrTransport = errors.New("LLM request failed")
	// ErrStatus is a non-retryable HTTP status from the endpoint
	ErrStatus = errors.New("LLM endpoint returned an error status")
	// ErrMalformedResponse means no JSON object could be read from the answer
	ErrMalformedResponse = errors.New("LLM response is not valid structured output")
)

// ClientConfig configures the LLM client. It is validated once by NewClient.
type ClientConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	Rubric      models.Rubric

	MaxAttempts  int
	BaseDelay    time.Duration
	MaxRetryWait time.Duration // 0 disables the ceiling on total backoff

	// RequestsPerMinute throttles attempts across all goroutines; 0 disables it
	RequestsPerMinute int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// Client sends one prompt per item to a chat-completion endpoint and maps
// the structured answer onto an Opportunity. It is safe for concurrent use.
type Client struct {
	cfg     ClientConfig
	http    *resty.Client
	limiter *rate.Limiter

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewClient validates cfg and creates a client with a pooled HTTP session
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrConfig)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrConfig)
	}
	if cfg.Rubric == "" {
		cfg.Rubric = models.RubricGeneral
	}
	if _, ok := rubricTemplates[cfg.Rubric]; !ok {
		return nil, fmt.Errorf("%w: unknown rubric %q", ErrConfig, cfg.Rubric)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}

	client := &Client{
		cfg: cfg,
		http: resty.New().
			SetTimeout(cfg.Timeout).
			SetAuthToken(cfg.APIKey).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "Research-Agent/1.0"),
		sleep: sleepContext,
		now:   time.Now,
	}

	if cfg.RequestsPerMinute > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	return client, nil
}

// Rubric returns the rubric this client scores with
func (c *Client) Rubric() models.Rubric {
	return c.cfg.Rubric
}

// Close releases idle connections held by the shared HTTP session
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

// Analyze scores one item. Any failure returns a nil Opportunity and an
// error wrapping one of the package sentinels.
func (c *Client) Analyze(ctx context.Context, item models.Item) (*models.Opportunity, error) {
	log := logrus.WithFields(logrus.Fields{"item": item.ID, "source": item.Source})

	prompt := BuildPrompt(item, c.cfg.Rubric)
	body, err := c.complete(ctx, log, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Debugf("Analysis stopped: %v", err)
		} else {
			log.Errorf("Analysis failed: %v", err)
		}
		return nil, err
	}

	content := unwrapContent(body)
	log.Debugf("LLM response: %s", content)

	analysis, ok := ExtractJSON(content)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrMalformedResponse, truncateRunes(content, 200))
		log.Errorf("Analysis failed: %v", err)
		return nil, err
	}

	return buildOpportunity(item, c.cfg.Rubric, analysis, c.now()), nil
}

// complete posts the prompt, retrying rate limits and transport failures
// with exponential backoff, and returns the raw response body.
func (c *Client) complete(ctx context.Context, log *logrus.Entry, prompt Prompt) ([]byte, error) {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	var lastErr error
	var waited time.Duration

	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(payload).
			Post(c.cfg.Endpoint)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", ErrTransport, err)
		case resp.StatusCode() == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode())
		case resp.StatusCode() != http.StatusOK:
			return nil, fmt.Errorf("%w: status %d: %s", ErrStatus, resp.StatusCode(), truncateRunes(string(resp.Body()), 500))
		default:
			return resp.Body(), nil
		}

		if attempt == c.cfg.MaxAttempts-1 {
			break
		}

		delay := c.cfg.BaseDelay * time.Duration(1<<attempt)
		if c.cfg.MaxRetryWait > 0 && waited+delay > c.cfg.MaxRetryWait {
			log.Warnf("Giving up after %v of backoff: %v", waited, lastErr)
			return nil, lastErr
		}

		log.Warnf("Attempt %d/%d failed (%v), retrying in %v", attempt+1, c.cfg.MaxAttempts, lastErr, delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		waited += delay
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
