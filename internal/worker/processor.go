package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"video-analysis-service/internal/apperrors"
	"video-analysis-service/internal/entity"
)

// AnalysisStore is the store port the processor needs
// (implementation: postgresql.AnalysisRepository).
type AnalysisStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Analysis, error)
	UpdateMetadata(ctx context.Context, id uuid.UUID, meta entity.VideoMetadata) error
	Complete(ctx context.Context, id uuid.UUID, res entity.AnalysisResult) error
	Fail(ctx context.Context, id uuid.UUID, summary string) error
}

// Scorer is the fraud-detection port (implementation: scoring.Client).
type Scorer interface {
	AnalyzeVideo(ctx context.Context, videoURL string) (*entity.AnalysisResult, error)
}

// MetadataExtractor is the enrichment port (implementation:
// metadata.Extractor). May be nil when enrichment is disabled.
type MetadataExtractor interface {
	Extract(ctx context.Context, videoURL string) (*entity.VideoMetadata, error)
}

// Processor executes one claimed analysis end to end. Every analysis that
// enters Process with status processing leaves the store in a terminal
// state: completed with the full result set, or failed with a summary.
type Processor struct {
	store     AnalysisStore
	scorer    Scorer
	extractor MetadataExtractor
	logger    *slog.Logger
}

func NewProcessor(store AnalysisStore, scorer Scorer, extractor MetadataExtractor, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:     store,
		scorer:    scorer,
		extractor: extractor,
		logger:    logger.With("component", "processor"),
	}
}

// Process runs the execution body for one analysis id. Errors are returned
// for logging only; by then the job state already reflects the outcome.
func (p *Processor) Process(ctx context.Context, analysisID string) error {
	start := time.Now()

	id, err := uuid.Parse(analysisID)
	if err != nil {
		p.logger.Error("dropping unparseable analysis id", "analysis_id", analysisID, "error", err)
		return err
	}

	a, err := p.store.GetByID(ctx, id)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrCodeNotFound {
			p.logger.Error("analysis not found, dropping", "analysis_id", id)
			return nil
		}
		return err
	}

	// The queue is at-least-once; a redelivered id whose job is already
	// terminal (or was never claimed) is skipped here.
	if a.Status != entity.StatusProcessing {
		p.logger.Info("skipping analysis not in processing",
			"analysis_id", id, "status", a.Status)
		return nil
	}

	// Best-effort enrichment. Failure never fails the job.
	if p.extractor != nil {
		if meta, err := p.extractor.Extract(ctx, a.VideoURL); err != nil {
			p.logger.Warn("metadata extraction failed", "analysis_id", id, "error", err)
		} else if err := p.store.UpdateMetadata(ctx, id, *meta); err != nil {
			p.logger.Warn("metadata write failed", "analysis_id", id, "error", err)
		}
	}

	res, err := p.scorer.AnalyzeVideo(ctx, a.VideoURL)
	if err != nil {
		summary := "Analysis failed: " + err.Error()
		if failErr := p.store.Fail(ctx, id, summary); failErr != nil {
			p.logger.Error("failed-state write failed",
				"analysis_id", id, "error", failErr)
		}
		p.logger.Info("analysis failed",
			"analysis_id", id, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return err
	}

	if err := p.store.Complete(ctx, id, *res); err != nil {
		p.logger.Error("completed-state write failed", "analysis_id", id, "error", err)
		return err
	}

	p.logger.Info("analysis completed",
		"analysis_id", id,
		"fraud_score", res.FraudScore,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
