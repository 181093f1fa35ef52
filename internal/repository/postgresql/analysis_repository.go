package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"video-analysis-service/internal/apperrors"
	"video-analysis-service/internal/entity"
)

// AnalysisRepository is the Postgres-backed job record store.
//
// All status transitions go through conditional updates so the single-writer
// invariant holds even when a queue entry is delivered more than once.
type AnalysisRepository struct {
	pool *pgxpool.Pool
}

func NewAnalysisRepository(pool *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{pool: pool}
}

func (r *AnalysisRepository) Create(ctx context.Context, ownerID uuid.UUID, videoURL string) (*entity.Analysis, error) {
	const q = `
INSERT INTO analyses (owner_id, video_url, status)
VALUES ($1, $2, 'pending')
RETURNING id, created_at, updated_at;
`
	a := entity.Analysis{
		OwnerID:  ownerID,
		VideoURL: videoURL,
		Status:   entity.StatusPending,
	}
	if err := r.pool.QueryRow(ctx, q, ownerID, videoURL).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &a, nil
}

const analysisColumns = `
id, owner_id, video_url, title, status,
video_format, subscribers, views, published_at,
fraud_score, confidence, summary, timeline,
created_at, updated_at, completed_at`

func (r *AnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Analysis, error) {
	q := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1;`

	row := r.pool.QueryRow(ctx, q, id)
	a, err := scanAnalysis(row)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return a, nil
}

func (r *AnalysisRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]entity.Analysis, error) {
	q := `SELECT ` + analysisColumns + `
FROM analyses
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2;`

	rows, err := r.pool.Query(ctx, q, ownerID, limit)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	defer rows.Close()

	var out []entity.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, apperrors.MapDBError(err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}

// ClaimPending atomically moves a pending analysis to processing. It returns
// false when the analysis is absent or was already claimed; exactly one of
// any number of concurrent callers observes true.
func (r *AnalysisRepository) ClaimPending(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `
UPDATE analyses
SET status = 'processing', updated_at = now()
WHERE id = $1 AND status = 'pending';`

	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, apperrors.MapDBError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateMetadata stores enrichment fields on an analysis still in
// processing. Nil fields clear nothing because they were never set.
func (r *AnalysisRepository) UpdateMetadata(ctx context.Context, id uuid.UUID, meta entity.VideoMetadata) error {
	const q = `
UPDATE analyses
SET title = $2, video_format = $3, subscribers = $4, views = $5,
    published_at = $6, updated_at = now()
WHERE id = $1 AND status = 'processing';`

	tag, err := r.pool.Exec(ctx, q, id, meta.Title, meta.VideoFormat, meta.Subscribers, meta.Views, meta.PublishedAt)
	if err != nil {
		return apperrors.MapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundf("analysis %s is not processing", id)
	}
	return nil
}

// Complete writes the full result set and the terminal completed status in
// one statement. The status guard rejects the write unless the analysis is
// still processing.
func (r *AnalysisRepository) Complete(ctx context.Context, id uuid.UUID, res entity.AnalysisResult) error {
	timeline, err := json.Marshal(res.Timeline)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}

	const q = `
UPDATE analyses
SET status = 'completed', fraud_score = $2, confidence = $3, summary = $4,
    timeline = $5, completed_at = now(), updated_at = now()
WHERE id = $1 AND status = 'processing';`

	tag, err := r.pool.Exec(ctx, q, id, res.FraudScore, res.Confidence, res.Summary, timeline)
	if err != nil {
		return apperrors.MapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.InvalidState("analysis is not processing")
	}
	return nil
}

// Fail writes the terminal failed status with an explanatory summary.
// Result fields stay unset.
func (r *AnalysisRepository) Fail(ctx context.Context, id uuid.UUID, summary string) error {
	const q = `
UPDATE analyses
SET status = 'failed', summary = $2, completed_at = now(), updated_at = now()
WHERE id = $1 AND status = 'processing';`

	tag, err := r.pool.Exec(ctx, q, id, summary)
	if err != nil {
		return apperrors.MapDBError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.InvalidState("analysis is not processing")
	}
	return nil
}

func scanAnalysis(row pgx.Row) (*entity.Analysis, error) {
	var (
		a             entity.Analysis
		statusText    string
		timelineBytes []byte
	)

	if err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.VideoURL,
		&a.Title,
		&statusText,
		&a.VideoFormat,
		&a.Subscribers,
		&a.Views,
		&a.PublishedAt,
		&a.FraudScore,
		&a.Confidence,
		&a.Summary,
		&timelineBytes,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CompletedAt,
	); err != nil {
		return nil, err
	}

	status := entity.AnalysisStatus(statusText)
	if !status.Valid() {
		return nil, fmt.Errorf("unknown analysis status %q", statusText)
	}
	a.Status = status

	if len(timelineBytes) > 0 {
		if err := json.Unmarshal(timelineBytes, &a.Timeline); err != nil {
			return nil, fmt.Errorf("unmarshal timeline: %w", err)
		}
	}
	return &a, nil
}
