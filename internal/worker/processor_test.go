package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-analysis-service/internal/apperrors"
	"video-analysis-service/internal/entity"
	"video-analysis-service/internal/worker"
)

// ---- fakes ----

type fakeStore struct {
	analysis *entity.Analysis

	metadataCalls []entity.VideoMetadata
	completed     *entity.AnalysisResult
	failedSummary *string
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*entity.Analysis, error) {
	if s.analysis == nil || s.analysis.ID != id {
		return nil, apperrors.NotFound("analysis not found")
	}
	cp := *s.analysis
	return &cp, nil
}

func (s *fakeStore) UpdateMetadata(_ context.Context, _ uuid.UUID, meta entity.VideoMetadata) error {
	s.metadataCalls = append(s.metadataCalls, meta)
	return nil
}

func (s *fakeStore) Complete(_ context.Context, _ uuid.UUID, res entity.AnalysisResult) error {
	s.completed = &res
	s.analysis.Status = entity.StatusCompleted
	return nil
}

func (s *fakeStore) Fail(_ context.Context, _ uuid.UUID, summary string) error {
	s.failedSummary = &summary
	s.analysis.Status = entity.StatusFailed
	return nil
}

type fakeScorer struct {
	result *entity.AnalysisResult
	err    error
	calls  int
}

func (f *fakeScorer) AnalyzeVideo(_ context.Context, _ string) (*entity.AnalysisResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeExtractor struct {
	meta *entity.VideoMetadata
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (*entity.VideoMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.meta, nil
}

func processingAnalysis() *entity.Analysis {
	return &entity.Analysis{
		ID:       uuid.New(),
		OwnerID:  uuid.New(),
		VideoURL: "https://youtu.be/abc123",
		Status:   entity.StatusProcessing,
	}
}

func strPtr(s string) *string { return &s }

// ---- tests ----

func TestProcess_SuccessWritesAllResultFields(t *testing.T) {
	store := &fakeStore{analysis: processingAnalysis()}
	scorer := &fakeScorer{result: &entity.AnalysisResult{
		FraudScore: 0.82,
		Confidence: 0.9,
		Summary:    "High probability of deceptive content detected.",
		Timeline: []entity.TimelineEvent{
			{Timestamp: 90, TimestampFormatted: "1:30", Description: "Potential deceptive content detected", Confidence: 0.8, Severity: entity.SeverityHigh},
		},
	}}
	extractor := &fakeExtractor{meta: &entity.VideoMetadata{Title: strPtr("Some Video")}}

	p := worker.NewProcessor(store, scorer, extractor, nil)
	err := p.Process(context.Background(), store.analysis.ID.String())
	require.NoError(t, err)

	require.NotNil(t, store.completed)
	assert.Equal(t, 0.82, store.completed.FraudScore)
	assert.Equal(t, 0.9, store.completed.Confidence)
	assert.Len(t, store.completed.Timeline, 1)
	assert.Nil(t, store.failedSummary)

	require.Len(t, store.metadataCalls, 1)
	assert.Equal(t, "Some Video", *store.metadataCalls[0].Title)
}

func TestProcess_EnrichmentFailureNeverFailsTheJob(t *testing.T) {
	store := &fakeStore{analysis: processingAnalysis()}
	scorer := &fakeScorer{result: &entity.AnalysisResult{FraudScore: 0.1, Confidence: 0.7, Summary: "ok"}}
	extractor := &fakeExtractor{err: errors.New("metadata service unreachable")}

	p := worker.NewProcessor(store, scorer, extractor, nil)
	err := p.Process(context.Background(), store.analysis.ID.String())
	require.NoError(t, err)

	assert.Empty(t, store.metadataCalls)
	require.NotNil(t, store.completed)
	assert.Nil(t, store.failedSummary)
}

func TestProcess_ScoringFailureReachesFailedState(t *testing.T) {
	store := &fakeStore{analysis: processingAnalysis()}
	scorer := &fakeScorer{err: errors.New("scoring request timed out")}

	p := worker.NewProcessor(store, scorer, nil, nil)
	err := p.Process(context.Background(), store.analysis.ID.String())
	require.Error(t, err)

	require.NotNil(t, store.failedSummary)
	assert.Contains(t, *store.failedSummary, "Analysis failed:")
	assert.Contains(t, *store.failedSummary, "timed out")
	assert.Nil(t, store.completed, "result fields stay unset on failure")
}

func TestProcess_MissingAnalysisIsDroppedSilently(t *testing.T) {
	store := &fakeStore{}
	scorer := &fakeScorer{}

	p := worker.NewProcessor(store, scorer, nil, nil)
	err := p.Process(context.Background(), uuid.New().String())
	require.NoError(t, err)

	assert.Zero(t, scorer.calls)
}

func TestProcess_SkipsRedeliveredTerminalAnalysis(t *testing.T) {
	a := processingAnalysis()
	a.Status = entity.StatusCompleted
	store := &fakeStore{analysis: a}
	scorer := &fakeScorer{}

	p := worker.NewProcessor(store, scorer, nil, nil)
	err := p.Process(context.Background(), a.ID.String())
	require.NoError(t, err)

	assert.Zero(t, scorer.calls, "a terminal job must never be scored again")
	assert.Nil(t, store.completed)
	assert.Nil(t, store.failedSummary)
}

func TestProcess_UnparseableIDReturnsError(t *testing.T) {
	p := worker.NewProcessor(&fakeStore{}, &fakeScorer{}, nil, nil)
	err := p.Process(context.Background(), "not-a-uuid")
	assert.Error(t, err)
}
