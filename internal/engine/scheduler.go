package engine

import (
	"log/slog"
	"sync"
)

// Scheduler serializes access to live session objects. All pipelines hop
// onto it before touching a live session; it is the only context allowed to
// mutate them directly.
type Scheduler interface {
	// Submit enqueues a task for asynchronous execution
	Submit(task func())

	// SubmitWait enqueues a task and blocks until it has run.
	// Must not be called from the scheduler's own context.
	SubmitWait(task func())
}

// LoopScheduler runs tasks on a single dedicated goroutine, in submission
// order. This models the game server's main thread.
type LoopScheduler struct {
	tasks  chan func()
	done   chan struct{}
	logger *slog.Logger
	once   sync.Once
}

// NewLoopScheduler creates a LoopScheduler. Run must be called to start it.
func NewLoopScheduler(logger *slog.Logger) *LoopScheduler {
	return &LoopScheduler{
		tasks:  make(chan func(), 256),
		done:   make(chan struct{}),
		logger: logger.With(slog.String("component", "scheduler")),
	}
}

// Run drains the task queue until Close is called
func (s *LoopScheduler) Run() {
	s.logger.Info("scheduler started")
	for {
		select {
		case task := <-s.tasks:
			s.run(task)
		case <-s.done:
			// Drain remaining tasks so nothing submitted before Close is lost
			for {
				select {
				case task := <-s.tasks:
					s.run(task)
				default:
					s.logger.Info("scheduler stopped")
					return
				}
			}
		}
	}
}

func (s *LoopScheduler) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in scheduled task", slog.Any("panic", r))
		}
	}()
	task()
}

// Submit enqueues a task; tasks submitted after Close are dropped
func (s *LoopScheduler) Submit(task func()) {
	select {
	case <-s.done:
	case s.tasks <- task:
	}
}

// SubmitWait enqueues a task and blocks until it completes.
// If the scheduler is already closed the task runs on the caller's goroutine,
// so shutdown-time saves still capture live state.
func (s *LoopScheduler) SubmitWait(task func()) {
	select {
	case <-s.done:
		s.run(task)
		return
	default:
	}

	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		task()
	}
	select {
	case s.tasks <- wrapped:
		// Queued before close; Run (or its drain) will execute it
		<-finished
	case <-s.done:
		s.run(task)
	}
}

// Close stops the scheduler after draining queued tasks
func (s *LoopScheduler) Close() {
	s.once.Do(func() { close(s.done) })
}

var _ Scheduler = (*LoopScheduler)(nil)

// ImmediateScheduler executes tasks inline on the calling goroutine.
// Used in tests and single-threaded tools where no main loop exists.
type ImmediateScheduler struct{}

func (ImmediateScheduler) Submit(task func())     { task() }
func (ImmediateScheduler) SubmitWait(task func()) { task() }

var _ Scheduler = ImmediateScheduler{}
