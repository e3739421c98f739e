// Package jobs runs background analyses on a fixed worker pool, one
// active job per session, with polled progress and popped-once
// results.
package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/pawprintlabs/pawprint/internal/logger"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 16
)

var (
	// ErrBusy means the session already has a queued or running job.
	ErrBusy = errors.New("jobs: session already has an active job")
	// ErrStopped means the manager is shutting down.
	ErrStopped = errors.New("jobs: manager stopped")
	// ErrQueueFull means the job queue has no room.
	ErrQueueFull = errors.New("jobs: queue full")
)

// Progress is the polled state of a session's job.
type Progress struct {
	Current  int     `json:"current"`
	Total    int     `json:"total"`
	Percent  float64 `json:"percent"`
	Message  string  `json:"message"`
	Complete bool    `json:"complete"`
	Error    string  `json:"error,omitempty"`
}

// Job is one unit of background work. Run receives a context canceled
// on Stop or session invalidation and a callback for progress updates;
// its return value becomes the session's poppable result.
type Job struct {
	SessionID string
	Run       func(ctx context.Context, report func(Progress)) (any, error)
}

// jobState tracks one session's queued or running job. cancel stays
// nil until a worker picks the job up.
type jobState struct {
	cancel context.CancelFunc
}

// Manager owns the worker pool. All maps are guarded by mu; the queue
// channel is closed exactly once by Stop.
type Manager struct {
	queue chan Job
	wg    sync.WaitGroup

	baseCtx   context.Context
	cancelAll context.CancelFunc
	stopOnce  sync.Once

	mu       sync.RWMutex
	stopped  bool
	active   map[string]*jobState
	progress map[string]Progress
	results  map[string]any
}

// NewManager starts workers consuming the job queue. Non-positive
// sizes fall back to the defaults.
func NewManager(workers, queueSize int) *Manager {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		queue:     make(chan Job, queueSize),
		baseCtx:   ctx,
		cancelAll: cancel,
		active:    make(map[string]*jobState),
		progress:  make(map[string]Progress),
		results:   make(map[string]any),
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	logger.L().Debug().Int("workers", workers).Int("queue", queueSize).Msg("job manager started")
	return m
}

// Submit queues a job. A session can hold one queued-or-running job at
// a time; submitting drops any previous result for the session.
func (m *Manager) Submit(job Job) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if _, ok := m.active[job.SessionID]; ok {
		m.mu.Unlock()
		return ErrBusy
	}
	m.active[job.SessionID] = &jobState{}
	delete(m.results, job.SessionID)
	m.progress[job.SessionID] = Progress{Message: "queued"}
	m.mu.Unlock()

	select {
	case m.queue <- job:
		return nil
	default:
		m.mu.Lock()
		delete(m.active, job.SessionID)
		delete(m.progress, job.SessionID)
		m.mu.Unlock()
		return ErrQueueFull
	}
}

// Progress returns the current progress for a session's job.
func (m *Manager) Progress(sessionID string) (Progress, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[sessionID]
	return p, ok
}

// Running reports whether the session has a queued or running job.
func (m *Manager) Running(sessionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[sessionID]
	return ok
}

// PopResult returns and removes a finished result. The second return
// is false when no result is waiting.
func (m *Manager) PopResult(sessionID string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.results[sessionID]
	if !ok {
		return nil, false
	}
	delete(m.results, sessionID)
	return result, true
}

// Cancel aborts the session's job if one is queued or running and
// drops its progress and any unclaimed result. Used when a session is
// deleted or its data changes under a job.
func (m *Manager) Cancel(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.active[sessionID]; ok {
		if st.cancel != nil {
			st.cancel()
		}
		delete(m.active, sessionID)
	}
	delete(m.progress, sessionID)
	delete(m.results, sessionID)
}

// Stop cancels running jobs, drains the queue and waits for the
// workers to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
		m.cancelAll()
		close(m.queue)
		m.wg.Wait()
		logger.L().Debug().Msg("job manager stopped")
	})
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for job := range m.queue {
		m.run(job)
	}
}

func (m *Manager) run(job Job) {
	m.mu.Lock()
	st, ok := m.active[job.SessionID]
	if !ok {
		// Canceled while still queued.
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	st.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	report := func(p Progress) {
		m.mu.Lock()
		// Ignore updates from a job that was canceled out from under
		// the session.
		if _, live := m.active[job.SessionID]; live {
			m.progress[job.SessionID] = p
		}
		m.mu.Unlock()
	}

	result, err := job.Run(ctx, report)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, live := m.active[job.SessionID]; !live {
		// Cancel already cleaned up; discard whatever the job
		// returned.
		return
	}
	delete(m.active, job.SessionID)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			delete(m.progress, job.SessionID)
			return
		}
		logger.L().Error().Err(err).Str("session", job.SessionID).Msg("analysis job failed")
		m.progress[job.SessionID] = Progress{Complete: true, Error: err.Error()}
		return
	}

	m.results[job.SessionID] = result
	p := m.progress[job.SessionID]
	p.Complete = true
	p.Percent = 100
	if p.Total > 0 {
		p.Current = p.Total
	}
	m.progress[job.SessionID] = p
}
