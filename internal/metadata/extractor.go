// Package metadata enriches analyses with descriptive video fields.
// Extraction is best-effort: callers log failures and move on.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"video-analysis-service/internal/entity"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// Extractor fetches video metadata from the enrichment service.
type Extractor struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) (*Extractor, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("metadata base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		baseURL: baseURL,
		client:  hc,
		logger:  logger.With("component", "metadata_extractor"),
	}, nil
}

type metadataResponse struct {
	Title         *string `json:"title"`
	VideoFormat   *string `json:"video_format"`
	Subscribers   *int64  `json:"subscribers"`
	Views         *int64  `json:"views"`
	PublishedDate *string `json:"published_date"`
}

// Extract fetches descriptive fields for the given video URL. Fields the
// service does not know stay nil.
func (e *Extractor) Extract(ctx context.Context, videoURL string) (*entity.VideoMetadata, error) {
	endpoint := e.baseURL + "/v1/metadata?url=" + url.QueryEscape(videoURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call metadata service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata service returned status %d", resp.StatusCode)
	}

	var out metadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode metadata response: %w", err)
	}

	meta := entity.VideoMetadata{
		Title:       out.Title,
		VideoFormat: out.VideoFormat,
		Subscribers: out.Subscribers,
		Views:       out.Views,
	}
	if out.PublishedDate != nil {
		if t, err := time.Parse(time.RFC3339, *out.PublishedDate); err == nil {
			meta.PublishedAt = &t
		} else {
			e.logger.DebugContext(ctx, "ignoring unparseable published date",
				"published_date", *out.PublishedDate)
		}
	}
	return &meta, nil
}
