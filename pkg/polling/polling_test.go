package polling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func waitFor(t *testing.T, s *Scheduler, id string, want TaskState) Task {
	t.Helper()
	var task Task
	require.Eventually(t, func() bool {
		var ok bool
		task, ok = s.Task(id)
		return ok && task.State == want
	}, 2*time.Second, 5*time.Millisecond)
	return task
}

func TestTriggerRunsOneAtATime(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	s := New(Config{Job: func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}})
	defer s.Stop()

	first, err := s.Trigger("manual")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = s.Trigger("manual")
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.True(t, s.Status().Running)

	close(release)
	done := waitFor(t, s, first.ID, StateCompleted)
	assert.NotNil(t, done.FinishedAt)

	second, err := s.Trigger("manual")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	waitFor(t, s, second.ID, StateCompleted)
}

func TestFailedTask(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(Config{Job: func(ctx context.Context) error { return errors.New("cohorts: timeout") }})
	defer s.Stop()

	task, err := s.Trigger("manual")
	require.NoError(t, err)
	got := waitFor(t, s, task.ID, StateFailed)
	assert.Equal(t, "cohorts: timeout", got.Error)
	assert.Equal(t, got.ID, s.Status().LastTask.ID)

	_, ok := s.Task("missing")
	assert.False(t, ok)
}

func TestScheduledRuns(t *testing.T) {
	defer goleak.VerifyNone(t)

	runs := make(chan struct{}, 10)
	s := New(Config{
		Interval:   10 * time.Millisecond,
		RunOnStart: true,
		Job: func(ctx context.Context) error {
			select {
			case runs <- struct{}{}:
			default:
			}
			return nil
		},
	})
	s.Start()
	s.Start()

	for i := 0; i < 2; i++ {
		select {
		case <-runs:
		case <-time.After(2 * time.Second):
			t.Fatalf("refresh %d did not run", i)
		}
	}
	st := s.Status()
	assert.True(t, st.Started)
	assert.NotNil(t, st.NextRun)

	s.Stop()
	assert.False(t, s.Status().Started)
	_, err := s.Trigger("manual")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStopCancelsRunningJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	s := New(Config{Job: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}})
	task, err := s.Trigger("manual")
	require.NoError(t, err)
	<-started
	s.Stop()

	got, ok := s.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, StateFailed, got.State)
}

func TestDefaultInterval(t *testing.T) {
	s := New(Config{})
	defer s.Stop()
	assert.Equal(t, DefaultInterval, s.Status().Interval)
}
