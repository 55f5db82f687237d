package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/metrics"
	"github.com/IlyaTsupryk/ggrc-core/internal/model"
)

// MockJobStore is a mock implementation of store.JobStore
type MockJobStore struct {
	mock.Mock
}

func (m *MockJobStore) ListActiveJobs(ctx context.Context) ([]*model.BackgroundJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.BackgroundJob), args.Error(1)
}

func (m *MockJobStore) MarkFailed(ctx context.Context, jobID int64) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// fakeLister serves a fixed task name set.
type fakeLister struct {
	tasks map[string]struct{}
	calls int
}

func (f *fakeLister) ListTaskNames(_ context.Context, _ string) (map[string]struct{}, error) {
	f.calls++
	return f.tasks, nil
}

// countingNotifier records which jobs were reported failed.
type countingNotifier struct {
	jobs []int64
}

func (n *countingNotifier) NotifyFailed(_ context.Context, job *model.BackgroundJob) error {
	n.jobs = append(n.jobs, job.ID)
	return nil
}

func newTestSweeper(jobs *MockJobStore, lister *fakeLister, notifier Notifier) *Sweeper {
	return NewSweeper(
		jobs, lister, notifier,
		"ggrcImport", time.Minute,
		metrics.NewWith(prometheus.NewRegistry()),
		zap.NewNop(),
	)
}

func TestSweepOnce_MarksVanishedJobsFailed(t *testing.T) {
	jobStore := new(MockJobStore)
	jobStore.On("ListActiveJobs", mock.Anything).Return([]*model.BackgroundJob{
		{ID: 1, TaskName: "task-alive", Status: model.JobStatusInProgress},
		{ID: 2, TaskName: "task-gone", Status: model.JobStatusAnalysis},
	}, nil)
	jobStore.On("MarkFailed", mock.Anything, int64(2)).Return(nil)

	lister := &fakeLister{tasks: map[string]struct{}{"task-alive": {}}}
	notifier := &countingNotifier{}

	sweeper := newTestSweeper(jobStore, lister, notifier)
	require.NoError(t, sweeper.SweepOnce(context.Background()))

	jobStore.AssertExpectations(t)
	jobStore.AssertNotCalled(t, "MarkFailed", mock.Anything, int64(1))
	assert.Equal(t, []int64{2}, notifier.jobs)
}

func TestSweepOnce_NoActiveJobsSkipsQueueCall(t *testing.T) {
	jobStore := new(MockJobStore)
	jobStore.On("ListActiveJobs", mock.Anything).Return([]*model.BackgroundJob{}, nil)

	lister := &fakeLister{}
	sweeper := newTestSweeper(jobStore, lister, &countingNotifier{})

	require.NoError(t, sweeper.SweepOnce(context.Background()))
	assert.Zero(t, lister.calls)
}

func TestSweepOnce_JobsWithoutTaskNameLeftAlone(t *testing.T) {
	jobStore := new(MockJobStore)
	jobStore.On("ListActiveJobs", mock.Anything).Return([]*model.BackgroundJob{
		{ID: 1, TaskName: "", Status: model.JobStatusInProgress},
	}, nil)

	lister := &fakeLister{tasks: map[string]struct{}{}}
	sweeper := newTestSweeper(jobStore, lister, &countingNotifier{})

	require.NoError(t, sweeper.SweepOnce(context.Background()))
	jobStore.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
}

func TestSweepOnce_MarkFailureDoesNotStopSweep(t *testing.T) {
	jobStore := new(MockJobStore)
	jobStore.On("ListActiveJobs", mock.Anything).Return([]*model.BackgroundJob{
		{ID: 1, TaskName: "gone-1", Status: model.JobStatusInProgress},
		{ID: 2, TaskName: "gone-2", Status: model.JobStatusInProgress},
	}, nil)
	jobStore.On("MarkFailed", mock.Anything, int64(1)).Return(assert.AnError)
	jobStore.On("MarkFailed", mock.Anything, int64(2)).Return(nil)

	notifier := &countingNotifier{}
	sweeper := newTestSweeper(jobStore, &fakeLister{tasks: map[string]struct{}{}}, notifier)

	require.NoError(t, sweeper.SweepOnce(context.Background()))
	// Only the successfully marked job is notified.
	assert.Equal(t, []int64{2}, notifier.jobs)
}

func TestSweepOnce_TerminalJobsLeftAlone(t *testing.T) {
	jobStore := new(MockJobStore)
	jobStore.On("ListActiveJobs", mock.Anything).Return([]*model.BackgroundJob{
		{ID: 1, TaskName: "gone-1", Status: model.JobStatusFinished},
		{ID: 2, TaskName: "gone-2", Status: model.JobStatusFailed},
	}, nil)

	notifier := &countingNotifier{}
	sweeper := newTestSweeper(jobStore, &fakeLister{tasks: map[string]struct{}{}}, notifier)

	require.NoError(t, sweeper.SweepOnce(context.Background()))
	jobStore.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
	assert.Empty(t, notifier.jobs)
}

func TestBackgroundJob_Active(t *testing.T) {
	assert.True(t, (&model.BackgroundJob{Status: model.JobStatusAnalysis}).Active())
	assert.True(t, (&model.BackgroundJob{Status: model.JobStatusInProgress}).Active())
	assert.False(t, (&model.BackgroundJob{Status: model.JobStatusFinished}).Active())
	assert.False(t, (&model.BackgroundJob{Status: model.JobStatusFailed}).Active())
}
