package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-analysis-service/internal/apperrors"
	"video-analysis-service/internal/entity"
	"video-analysis-service/internal/service"
)

// ---- fakes ----

type fakeRepo struct {
	mu       sync.Mutex
	analyses map[uuid.UUID]*entity.Analysis
	created  []string
	failed   map[uuid.UUID]string

	createID  uuid.UUID
	createErr error

	listLimit int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		analyses: map[uuid.UUID]*entity.Analysis{},
		failed:   map[uuid.UUID]string{},
		createID: uuid.New(),
	}
}

func (r *fakeRepo) Create(_ context.Context, ownerID uuid.UUID, videoURL string) (*entity.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return nil, r.createErr
	}
	a := &entity.Analysis{
		ID:       r.createID,
		OwnerID:  ownerID,
		VideoURL: videoURL,
		Status:   entity.StatusPending,
	}
	r.analyses[a.ID] = a
	r.created = append(r.created, videoURL)
	return a, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.analyses[id]
	if !ok {
		return nil, apperrors.NotFound("analysis not found")
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, limit int) ([]entity.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listLimit = limit
	var out []entity.Analysis
	for _, a := range r.analyses {
		if a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeRepo) ClaimPending(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.analyses[id]
	if !ok || a.Status != entity.StatusPending {
		return false, nil
	}
	a.Status = entity.StatusProcessing
	return true, nil
}

func (r *fakeRepo) Fail(ctx context.Context, id uuid.UUID, summary string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.analyses[id]
	if !ok || a.Status != entity.StatusProcessing {
		return apperrors.InvalidState("analysis is not processing")
	}
	a.Status = entity.StatusFailed
	a.Summary = &summary
	r.failed[id] = summary
	return nil
}

type fakeQueue struct {
	mu         sync.Mutex
	enqueued   []string
	enqueueErr error
}

func (q *fakeQueue) Enqueue(ctx context.Context, analysisID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.enqueued = append(q.enqueued, analysisID)
	return nil
}

// disconnectingRepo cancels the caller's context as the claim commits,
// simulating a client that went away mid-request.
type disconnectingRepo struct {
	*fakeRepo
	cancel context.CancelFunc
}

func (r *disconnectingRepo) ClaimPending(ctx context.Context, id uuid.UUID) (bool, error) {
	claimed, err := r.fakeRepo.ClaimPending(ctx, id)
	r.cancel()
	return claimed, err
}

// ---- tests ----

func TestValidateVideoURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"youtube short link", "https://youtu.be/abc123", false},
		{"youtube watch link", "https://www.youtube.com/watch?v=abc123", false},
		{"youtube subdomain", "https://music.youtube.com/watch?v=abc123", false},
		{"vimeo", "https://vimeo.com/123456", false},
		{"facebook mobile", "http://m.facebook.com/watch/?v=1", false},
		{"unsupported host", "https://example.com/video", true},
		{"host suffix trick", "https://notyoutube.com/watch", true},
		{"missing scheme", "youtube.com/watch?v=abc", true},
		{"ftp scheme", "ftp://youtube.com/video", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.ValidateVideoURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubmit_CreatesPendingAnalysis(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeQueue{}
	svc := service.NewAnalysisService(repo, queue, nil)
	ownerID := uuid.New()

	a, err := svc.Submit(context.Background(), ownerID, "https://youtu.be/abc123")
	require.NoError(t, err)

	assert.Equal(t, entity.StatusPending, a.Status)
	assert.Equal(t, ownerID, a.OwnerID)
	assert.Equal(t, "https://youtu.be/abc123", a.VideoURL)
	// Submission never schedules execution.
	assert.Empty(t, queue.enqueued)
}

func TestSubmit_RejectsUnsupportedSourceWithoutRecord(t *testing.T) {
	repo := newFakeRepo()
	svc := service.NewAnalysisService(repo, &fakeQueue{}, nil)

	_, err := svc.Submit(context.Background(), uuid.New(), "https://dailymotion.com/video/x1")
	require.Error(t, err)

	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
	assert.Empty(t, repo.created, "no record may be created for a rejected target")
}

func TestEnsureRunning_ClaimsOnceAndEnqueues(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeQueue{}
	svc := service.NewAnalysisService(repo, queue, nil)

	a, err := svc.Submit(context.Background(), uuid.New(), "https://youtu.be/abc123")
	require.NoError(t, err)

	started, err := svc.EnsureRunning(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, started)

	// Second trigger is a no-op.
	started, err = svc.EnsureRunning(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, started)

	assert.Equal(t, []string{a.ID.String()}, queue.enqueued)

	got, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusProcessing, got.Status)
}

func TestEnsureRunning_ConcurrentTriggersStartExactlyOneRun(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeQueue{}
	svc := service.NewAnalysisService(repo, queue, nil)

	a, err := svc.Submit(context.Background(), uuid.New(), "https://youtu.be/abc123")
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	startedCount := make(chan bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started, err := svc.EnsureRunning(context.Background(), a.ID)
			assert.NoError(t, err)
			startedCount <- started
		}()
	}
	wg.Wait()
	close(startedCount)

	var started int
	for s := range startedCount {
		if s {
			started++
		}
	}
	assert.Equal(t, 1, started, "exactly one caller may win the claim")
	assert.Len(t, queue.enqueued, 1, "the job may be enqueued exactly once")
}

func TestEnsureRunning_NoopForUnknownOrTerminal(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeQueue{}
	svc := service.NewAnalysisService(repo, queue, nil)

	started, err := svc.EnsureRunning(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, started)

	done := uuid.New()
	repo.analyses[done] = &entity.Analysis{ID: done, Status: entity.StatusCompleted}
	started, err = svc.EnsureRunning(context.Background(), done)
	require.NoError(t, err)
	assert.False(t, started)

	assert.Empty(t, queue.enqueued)
}

func TestEnsureRunning_EnqueueFailureFinalizesJob(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeQueue{enqueueErr: errors.New("redis down")}
	svc := service.NewAnalysisService(repo, queue, nil)

	a, err := svc.Submit(context.Background(), uuid.New(), "https://youtu.be/abc123")
	require.NoError(t, err)

	started, err := svc.EnsureRunning(context.Background(), a.ID)
	require.Error(t, err)
	assert.False(t, started)

	// The claim succeeded but the job cannot run; it must still reach a
	// terminal state visible to the polling client.
	got, getErr := svc.Get(context.Background(), a.ID)
	require.NoError(t, getErr)
	assert.Equal(t, entity.StatusFailed, got.Status)
	require.NotNil(t, got.Summary)
	assert.NotEmpty(t, *got.Summary)
}

func TestEnsureRunning_ClientGoneAfterClaimStillEnqueues(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeQueue{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := service.NewAnalysisService(&disconnectingRepo{fakeRepo: repo, cancel: cancel}, queue, nil)

	a, err := svc.Submit(context.Background(), uuid.New(), "https://youtu.be/abc123")
	require.NoError(t, err)

	started, err := svc.EnsureRunning(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, []string{a.ID.String()}, queue.enqueued)
}

func TestEnsureRunning_ClientGoneAfterClaimStillReachesTerminalState(t *testing.T) {
	repo := newFakeRepo()
	queue := &fakeQueue{enqueueErr: errors.New("redis down")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := service.NewAnalysisService(&disconnectingRepo{fakeRepo: repo, cancel: cancel}, queue, nil)

	a, err := svc.Submit(context.Background(), uuid.New(), "https://youtu.be/abc123")
	require.NoError(t, err)

	started, err := svc.EnsureRunning(ctx, a.ID)
	require.Error(t, err)
	assert.False(t, started)

	// The caller's context is dead, but the job must not stay claimed
	// forever: the finalize has to land on the detached context.
	got, getErr := svc.Get(context.Background(), a.ID)
	require.NoError(t, getErr)
	assert.Equal(t, entity.StatusFailed, got.Status)
	require.NotNil(t, got.Summary)
	assert.NotEmpty(t, *got.Summary)
}

func TestListByOwner_ClampsLimit(t *testing.T) {
	repo := newFakeRepo()
	svc := service.NewAnalysisService(repo, &fakeQueue{}, nil)
	ownerID := uuid.New()

	_, err := svc.ListByOwner(context.Background(), ownerID, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, repo.listLimit, "zero limit falls back to the default")

	_, err = svc.ListByOwner(context.Background(), ownerID, 500)
	require.NoError(t, err)
	assert.Equal(t, 50, repo.listLimit, "oversized limit is capped")
}
