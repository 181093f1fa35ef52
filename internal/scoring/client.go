// Package scoring calls the external video fraud-detection API.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"video-analysis-service/internal/entity"
)

// Failure taxonomy for scoring calls. Callers convert all of these into a
// failed job state; the distinction matters for logs and the job summary.
var (
	ErrTimeout           = errors.New("scoring request timed out")
	ErrQuotaExceeded     = errors.New("scoring quota exceeded")
	ErrUnauthorized      = errors.New("scoring credentials rejected")
	ErrMalformedResponse = errors.New("malformed scoring response")
)

// Config captures the subset of upstream API behaviour we need.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Client  *http.Client
}

// Client calls the fraud-detection API over HTTP. The timeout bounds every
// call so a hung upstream cannot keep a job in processing indefinitely.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("scoring base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		client:  hc,
		logger:  logger.With("component", "scoring_client"),
	}, nil
}

type analyzeRequest struct {
	VideoURL string `json:"video_url"`
}

type analyzeResponse struct {
	FraudScore float64                `json:"fraud_score"`
	Confidence float64                `json:"confidence"`
	Summary    string                 `json:"summary"`
	Timeline   []entity.TimelineEvent `json:"timeline_analysis"`
}

// AnalyzeVideo submits a video URL for fraud analysis and returns the
// structured result.
func (c *Client) AnalyzeVideo(ctx context.Context, videoURL string) (*entity.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(analyzeRequest{VideoURL: videoURL})
	if err != nil {
		return nil, fmt.Errorf("marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, time.Since(start).Round(time.Millisecond))
		}
		return nil, fmt.Errorf("call scoring service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrQuotaExceeded
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("scoring service returned status %d", resp.StatusCode)
	}

	var out analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.FraudScore < 0 || out.FraudScore > 1 || out.Confidence < 0 || out.Confidence > 1 {
		return nil, fmt.Errorf("%w: scores out of range", ErrMalformedResponse)
	}

	c.logger.DebugContext(ctx, "analysis completed",
		"fraud_score", out.FraudScore, "duration_ms", time.Since(start).Milliseconds())

	return &entity.AnalysisResult{
		FraudScore: out.FraudScore,
		Confidence: out.Confidence,
		Summary:    out.Summary,
		Timeline:   out.Timeline,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
