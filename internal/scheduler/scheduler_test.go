package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsTaskAndReportsCompletion(t *testing.T) {
	s := NewScheduler(2)
	defer s.Shutdown()

	done := make(chan Status, 1)
	id := s.Submit(PriorityNormal, time.Time{}, func(context.Context) error {
		return nil
	}, func(_ TaskID, status Status, _ error) {
		done <- status
	})
	require.NotZero(t, id)

	select {
	case status := <-done:
		assert.Equal(t, StatusCompleted, status)
	case <-time.After(time.Second):
		t.Fatal("task never completed")
	}
}

func TestSubmitAfterShutdownReturnsZero(t *testing.T) {
	s := NewScheduler(1)
	s.Shutdown()
	id := s.Submit(PriorityLow, time.Time{}, func(context.Context) error { return nil }, nil)
	assert.Equal(t, TaskID(0), id)
}

func TestHigherPriorityClassRunsFirst(t *testing.T) {
	// Single worker so ordering is deterministic: block it until both
	// tasks are queued, then verify High is picked before Low.
	s := NewScheduler(1)
	defer s.Shutdown()

	gate := make(chan struct{})
	order := make(chan string, 2)

	blockID := s.Submit(PriorityRealtime, time.Time{}, func(context.Context) error {
		<-gate
		return nil
	}, nil)
	require.NotZero(t, blockID)

	s.Submit(PriorityLow, time.Time{}, func(context.Context) error {
		order <- "low"
		return nil
	}, nil)
	s.Submit(PriorityHigh, time.Time{}, func(context.Context) error {
		order <- "high"
		return nil
	}, nil)

	time.Sleep(20 * time.Millisecond)
	close(gate)

	first := <-order
	assert.Equal(t, "high", first)
}

func TestRealtimeOrdersByDeadline(t *testing.T) {
	s := NewScheduler(1)
	defer s.Shutdown()

	gate := make(chan struct{})
	var mu sync.Mutex
	var order []string

	blockID := s.Submit(PriorityRealtime, time.Now().Add(time.Hour), func(context.Context) error {
		<-gate
		return nil
	}, nil)
	require.NotZero(t, blockID)

	now := time.Now()
	s.Submit(PriorityRealtime, now.Add(200*time.Millisecond), func(context.Context) error {
		mu.Lock()
		order = append(order, "late")
		mu.Unlock()
		return nil
	}, nil)
	s.Submit(PriorityRealtime, now.Add(50*time.Millisecond), func(context.Context) error {
		mu.Lock()
		order = append(order, "early")
		mu.Unlock()
		return nil
	}, nil)

	close(gate)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestPastDeadlineRealtimeTaskIsCancelled(t *testing.T) {
	s := NewScheduler(1)
	defer s.Shutdown()

	gate := make(chan struct{})
	blockID := s.Submit(PriorityRealtime, time.Time{}, func(context.Context) error {
		<-gate
		return nil
	}, nil)
	require.NotZero(t, blockID)

	done := make(chan Status, 1)
	id := s.Submit(PriorityRealtime, time.Now().Add(-time.Second), func(context.Context) error {
		return nil
	}, func(_ TaskID, status Status, _ error) {
		done <- status
	})
	require.NotZero(t, id)

	close(gate)

	select {
	case status := <-done:
		assert.Equal(t, StatusCancelled, status)
	case <-time.After(time.Second):
		t.Fatal("past-deadline realtime task was not cancelled")
	}
	assert.Equal(t, uint64(1), s.CancelledCount())
}

func TestCancelBestEffortUpdatesStatus(t *testing.T) {
	s := NewScheduler(1)
	defer s.Shutdown()

	gate := make(chan struct{})
	blockID := s.Submit(PriorityRealtime, time.Time{}, func(context.Context) error {
		<-gate
		return nil
	}, nil)
	require.NotZero(t, blockID)

	id := s.Submit(PriorityNormal, time.Time{}, func(context.Context) error { return nil }, nil)
	s.Cancel(id)

	status, ok := s.Status(id)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, status)
	assert.Equal(t, uint64(1), s.CancelledCount())

	close(gate)
}

func TestPauseResumeWorker(t *testing.T) {
	s := NewScheduler(1)
	defer s.Shutdown()

	s.Pause(0)

	ran := make(chan struct{}, 1)
	s.Submit(PriorityNormal, time.Time{}, func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, nil)

	select {
	case <-ran:
		t.Fatal("paused worker must not dequeue")
	case <-time.After(30 * time.Millisecond):
	}

	s.Resume(0)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("resumed worker never ran the task")
	}
}
