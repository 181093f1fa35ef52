package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"video-analysis-service/internal/apperrors"
	"video-analysis-service/internal/entity"
)

// AnalysisRepository is the store port used by the lifecycle engine
// (implementation: postgresql.AnalysisRepository).
type AnalysisRepository interface {
	Create(ctx context.Context, ownerID uuid.UUID, videoURL string) (*entity.Analysis, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Analysis, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]entity.Analysis, error)
	ClaimPending(ctx context.Context, id uuid.UUID) (bool, error)
	Fail(ctx context.Context, id uuid.UUID, summary string) error
}

// AnalysisQueue is the small queue port the engine needs for scheduling.
type AnalysisQueue interface {
	Enqueue(ctx context.Context, analysisID string) error
}

const (
	defaultHistoryLimit = 5
	maxHistoryLimit     = 50
)

// supportedDomains lists the video platforms the scoring service accepts.
// Subdomains match too (music.youtube.com, m.facebook.com, ...).
var supportedDomains = []string{
	"youtube.com", "youtu.be", "vimeo.com",
	"facebook.com", "fb.com", "instagram.com",
}

// AnalysisService is the job lifecycle engine. It owns submission,
// idempotent execution start and read access; the execution body itself
// runs in the worker package.
//
// Ownership is not checked here: the HTTP surface enforces it before
// calling in.
type AnalysisService struct {
	repo   AnalysisRepository
	queue  AnalysisQueue
	logger *slog.Logger
}

func NewAnalysisService(repo AnalysisRepository, queue AnalysisQueue, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		repo:   repo,
		queue:  queue,
		logger: logger.With("component", "analysis_service"),
	}
}

// ValidateVideoURL checks that raw is a well-formed http(s) URL whose host
// belongs to a supported platform.
func ValidateVideoURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.Validation("video URL is not valid")
	}

	host := strings.ToLower(u.Hostname())
	for _, d := range supportedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return nil
		}
	}
	return apperrors.Validation("only YouTube, Vimeo, Facebook, and Instagram videos are supported")
}

// Submit validates the target and creates a pending analysis. Execution is
// not started here; EnsureRunning does that on the first poll.
func (s *AnalysisService) Submit(ctx context.Context, ownerID uuid.UUID, videoURL string) (*entity.Analysis, error) {
	if err := ValidateVideoURL(videoURL); err != nil {
		return nil, err
	}

	a, err := s.repo.Create(ctx, ownerID, videoURL)
	if err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}

	s.logger.InfoContext(ctx, "analysis submitted",
		"analysis_id", a.ID, "owner_id", ownerID, "video_url", videoURL)
	return a, nil
}

// EnsureRunning starts background execution for a pending analysis and is a
// no-op otherwise. The pending->processing claim is a compare-and-set in the
// store, so concurrent callers race harmlessly: exactly one enqueues.
//
// A claim that cannot be enqueued would leave the job stuck in processing,
// so that path finalizes the job as failed instead.
func (s *AnalysisService) EnsureRunning(ctx context.Context, id uuid.UUID) (bool, error) {
	claimed, err := s.repo.ClaimPending(ctx, id)
	if err != nil {
		return false, fmt.Errorf("claim analysis %s: %w", id, err)
	}
	if !claimed {
		return false, nil
	}

	// The claim is committed. Scheduling and the failure finalize must not
	// die with the request context, or a caller disconnecting here would
	// strand the job in processing.
	ctx = context.WithoutCancel(ctx)

	if err := s.queue.Enqueue(ctx, id.String()); err != nil {
		if failErr := s.repo.Fail(ctx, id, "Analysis failed: could not be scheduled for execution"); failErr != nil {
			s.logger.ErrorContext(ctx, "failed to finalize unscheduled analysis",
				"analysis_id", id, "error", failErr)
		}
		return false, fmt.Errorf("enqueue analysis %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "analysis execution started", "analysis_id", id)
	return true, nil
}

// Get returns the current analysis snapshot. No side effects.
func (s *AnalysisService) Get(ctx context.Context, id uuid.UUID) (*entity.Analysis, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByOwner returns the owner's analyses, newest first.
func (s *AnalysisService) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]entity.Analysis, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.repo.ListByOwner(ctx, ownerID, limit)
}
