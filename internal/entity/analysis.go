package entity

import (
	"time"

	"github.com/google/uuid"
)

type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "pending"
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
)

// IsTerminal reports whether the status is one a job can never leave.
func (s AnalysisStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s AnalysisStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// TimelineEvent is a single marker inside the analyzed video.
type TimelineEvent struct {
	Timestamp          int      `json:"timestamp"`
	TimestampFormatted string   `json:"timestamp_formatted"`
	Description        string   `json:"description"`
	Confidence         float64  `json:"confidence"`
	Severity           Severity `json:"severity"`
}

// Analysis is the job record for a single video fraud-risk analysis.
// Optional fields are pointers: metadata is filled at most once during
// processing, result fields only together with the completed status.
type Analysis struct {
	ID          uuid.UUID      `json:"id"`
	OwnerID     uuid.UUID      `json:"owner_id"`
	VideoURL    string         `json:"video_url"`
	Title       *string        `json:"title,omitempty"`
	Status      AnalysisStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`

	// Video metadata (best-effort enrichment)
	VideoFormat *string    `json:"video_format,omitempty"`
	Subscribers *int64     `json:"subscribers,omitempty"`
	Views       *int64     `json:"views,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	// Analysis results
	FraudScore *float64        `json:"fraud_score,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
	Summary    *string         `json:"summary,omitempty"`
	Timeline   []TimelineEvent `json:"timeline_analysis,omitempty"`
}

// VideoMetadata is the enrichment payload produced by the metadata
// extractor. Nil fields were not available for the video.
type VideoMetadata struct {
	Title       *string
	VideoFormat *string
	Subscribers *int64
	Views       *int64
	PublishedAt *time.Time
}

// AnalysisResult is the payload returned by the scoring service for a
// successfully analyzed video.
type AnalysisResult struct {
	FraudScore float64
	Confidence float64
	Summary    string
	Timeline   []TimelineEvent
}
