package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberhollow/sessiond/internal/testutil"
)

func TestLoopSchedulerRunsTasksInOrder(t *testing.T) {
	s := NewLoopScheduler(testutil.NopLogger())
	go s.Run()
	defer s.Close()

	var order []int
	for i := range 5 {
		s.Submit(func() { order = append(order, i) })
	}

	done := make(chan struct{})
	s.Submit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks never ran")
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLoopSchedulerSubmitWaitBlocks(t *testing.T) {
	s := NewLoopScheduler(testutil.NopLogger())
	go s.Run()
	defer s.Close()

	ran := false
	s.SubmitWait(func() { ran = true })
	assert.True(t, ran)
}

func TestLoopSchedulerDrainsOnClose(t *testing.T) {
	s := NewLoopScheduler(testutil.NopLogger())

	var ran atomic.Int32
	for range 10 {
		s.Submit(func() { ran.Add(1) })
	}

	// Close before Run: the drain pass must still execute everything queued
	s.Close()
	finished := make(chan struct{})
	go func() {
		s.Run()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("run never returned after close")
	}
	assert.Equal(t, int32(10), ran.Load())
}

func TestLoopSchedulerSubmitWaitAfterCloseRunsInline(t *testing.T) {
	s := NewLoopScheduler(testutil.NopLogger())
	go s.Run()
	s.Close()

	// Closed scheduler still executes, on the caller's goroutine, so
	// shutdown-time captures are never lost
	ran := false
	s.SubmitWait(func() { ran = true })
	require.True(t, ran)
}

func TestLoopSchedulerRecoversTaskPanic(t *testing.T) {
	s := NewLoopScheduler(testutil.NopLogger())
	go s.Run()
	defer s.Close()

	s.SubmitWait(func() { panic("task blew up") })

	ran := false
	s.SubmitWait(func() { ran = true })
	assert.True(t, ran, "scheduler must survive a panicking task")
}

func TestImmediateSchedulerRunsInline(t *testing.T) {
	var s ImmediateScheduler
	ran := 0
	s.Submit(func() { ran++ })
	s.SubmitWait(func() { ran++ })
	assert.Equal(t, 2, ran)
}
