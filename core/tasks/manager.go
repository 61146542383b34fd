// Package tasks runs named units of background work under a concurrency cap,
// races each unit against a per-task deadline, and keeps a bounded registry
// of task lifecycles so callers can observe and cancel them.
//
// Admission is refused outright once the cap is reached; nothing queues.
// Callers must degrade on rejection (e.g. by speaking a busy notice).
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// State is the lifecycle state of a background task. Terminal states are
// sticky: once reached they never change.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateCancelled:
		return true
	}
	return false
}

// Result is the outcome of a finished task.
type Result struct {
	Success  bool
	Data     any
	Error    string
	Duration time.Duration
}

// Unit is the work a task executes. It must honor ctx cancellation to
// participate in cooperative shutdown; a unit that ignores ctx is abandoned
// on timeout rather than interrupted.
type Unit func(ctx context.Context) (any, error)

type task struct {
	id        string
	label     string
	state     State
	createdAt time.Time
	finished  time.Time
	result    *Result

	cancel context.CancelFunc
	done   chan struct{}
}

const (
	defaultMaxConcurrent = 3
	defaultTimeout       = 30 * time.Second
	defaultRetention     = 60 * time.Second
	defaultSweepInterval = 30 * time.Second
)

// Manager tracks background tasks. All registry mutation funnels through the
// manager's own mutex; callers interact only through methods.
type Manager struct {
	mu sync.Mutex

	tasks   map[string]*task
	counter int

	maxConcurrent int
	timeout       time.Duration
	retention     time.Duration
	sweepInterval time.Duration

	onStart    func(taskID, label string)
	onComplete func(taskID, label string, result Result)
	onError    func(taskID, label string, errMessage string)

	baseCtx   context.Context
	running   bool
	sweepStop chan struct{}
	sweepDone chan struct{}
}

type Option func(*Manager)

func WithMaxConcurrentTasks(max int) Option {
	return func(m *Manager) {
		if max > 0 {
			m.maxConcurrent = max
		}
	}
}

func WithDefaultTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithRetention sets how long terminal tasks stay in the registry before the
// periodic sweep removes them.
func WithRetention(retention time.Duration) Option {
	return func(m *Manager) {
		if retention > 0 {
			m.retention = retention
		}
	}
}

func WithSweepInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval > 0 {
			m.sweepInterval = interval
		}
	}
}

// WithStartCallback registers a callback fired synchronously inside Spawn,
// before Spawn returns.
func WithStartCallback(callback func(taskID, label string)) Option {
	return func(m *Manager) { m.onStart = callback }
}

func WithCompleteCallback(callback func(taskID, label string, result Result)) Option {
	return func(m *Manager) { m.onComplete = callback }
}

func WithErrorCallback(callback func(taskID, label, errMessage string)) Option {
	return func(m *Manager) { m.onError = callback }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		tasks:         map[string]*task{},
		maxConcurrent: defaultMaxConcurrent,
		timeout:       defaultTimeout,
		retention:     defaultRetention,
		sweepInterval: defaultSweepInterval,
		baseCtx:       context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start enables the retention sweep. Spawning works without Start; only the
// sweep needs it.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.baseCtx = ctx
	m.sweepStop = make(chan struct{})
	m.sweepDone = make(chan struct{})
	stop, done := m.sweepStop, m.sweepDone
	m.mu.Unlock()

	go m.sweepLoop(stop, done)
}

// PendingCount is the number of tasks in a non-terminal state.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingCountLocked()
}

func (m *Manager) pendingCountLocked() int {
	count := 0
	for _, t := range m.tasks {
		if !t.state.Terminal() {
			count++
		}
	}
	return count
}

// CanAccept reports whether Spawn would currently be admitted.
func (m *Manager) CanAccept() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingCountLocked() < m.maxConcurrent
}

// PendingLabels returns the labels of every non-terminal task.
func (m *Manager) PendingLabels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	labels := []string{}
	for _, t := range m.tasks {
		if !t.state.Terminal() {
			labels = append(labels, t.label)
		}
	}
	return labels
}

// TaskState returns the state of a tracked task.
func (m *Manager) TaskState(taskID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[taskID]; ok {
		return t.state, true
	}
	return "", false
}

// TaskResult returns the result of a finished task, nil while it is still
// running.
func (m *Manager) TaskResult(taskID string) (*Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[taskID]; ok {
		return t.result, true
	}
	return nil, false
}

// Spawn admits a new background task. It returns the task ID and true, or
// "" and false when the cap is reached. A zero timeout falls back to the
// manager default. The start callback fires synchronously before Spawn
// returns; complete/error callbacks fire from the task's own goroutine.
func (m *Manager) Spawn(label string, unit Unit, timeout time.Duration) (string, bool) {
	if timeout <= 0 {
		timeout = m.timeout
	}

	m.mu.Lock()
	if m.pendingCountLocked() >= m.maxConcurrent {
		pending := m.pendingCountLocked()
		m.mu.Unlock()
		logger.Warn("task admission refused: at capacity",
			"pending", pending, "cap", m.maxConcurrent, "label", label)
		return "", false
	}

	m.counter++
	taskID := fmt.Sprintf("task_%d_%s", m.counter, uuid.NewString()[:8])

	taskCtx, cancel := context.WithCancel(m.baseCtx)
	tracked := &task{
		id:        taskID,
		label:     label,
		state:     StatePending,
		createdAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.tasks[taskID] = tracked
	m.mu.Unlock()

	logger.Info("spawned background task", "task_id", taskID, "label", label, "timeout", timeout)

	if m.onStart != nil {
		invokeCallback("task start", func() { m.onStart(taskID, label) })
	}

	go m.run(taskCtx, tracked, unit, timeout)
	return taskID, true
}

// run races the unit against the deadline. The unit executes in its own
// goroutine so a unit that ignores ctx cannot keep the deadline from firing.
func (m *Manager) run(ctx context.Context, tracked *task, unit Unit, timeout time.Duration) {
	defer close(tracked.done)
	defer tracked.cancel()

	m.mu.Lock()
	if tracked.state.Terminal() {
		// Cancelled before the unit ever started.
		m.mu.Unlock()
		return
	}
	tracked.state = StateRunning
	m.mu.Unlock()

	ctx, cancelDeadline := context.WithTimeout(ctx, timeout)
	defer cancelDeadline()

	ctx, span := tracer.Start(ctx, "background task")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", tracked.id),
		attribute.String("task.label", tracked.label),
	)

	start := time.Now()
	type outcome struct {
		data any
		err  error
	}
	outcomeCh := make(chan outcome, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				outcomeCh <- outcome{err: fmt.Errorf("task panicked: %v", recovered)}
			}
		}()
		data, err := unit(ctx)
		outcomeCh <- outcome{data: data, err: err}
	}()

	var result Result
	var state State
	var errMessage string

	select {
	case finished := <-outcomeCh:
		duration := time.Since(start)
		switch {
		case finished.err == nil:
			state = StateCompleted
			result = Result{Success: true, Data: finished.data, Duration: duration}
		case ctx.Err() == context.Canceled:
			state = StateCancelled
			result = Result{Success: false, Error: finished.err.Error(), Duration: duration}
		case ctx.Err() == context.DeadlineExceeded:
			// A ctx-honoring unit can surface the deadline before the
			// select observes ctx.Done; that is still a timeout.
			state = StateTimedOut
			errMessage = fmt.Sprintf("timed out after %s", timeout)
			result = Result{Success: false, Error: errMessage, Duration: duration}
			span.SetStatus(codes.Error, errMessage)
		default:
			state = StateFailed
			errMessage = finished.err.Error()
			result = Result{Success: false, Error: errMessage, Duration: duration}
			span.RecordError(finished.err)
			span.SetStatus(codes.Error, finished.err.Error())
		}
	case <-ctx.Done():
		duration := time.Since(start)
		if ctx.Err() == context.DeadlineExceeded {
			state = StateTimedOut
			errMessage = fmt.Sprintf("timed out after %s", timeout)
			result = Result{Success: false, Error: errMessage, Duration: duration}
			span.SetStatus(codes.Error, errMessage)
		} else {
			state = StateCancelled
			result = Result{Success: false, Error: "cancelled", Duration: duration}
		}
	}

	m.mu.Lock()
	if tracked.state.Terminal() {
		// Cancellation won the race; the recorded outcome stands.
		m.mu.Unlock()
		return
	}
	tracked.state = state
	tracked.result = &result
	tracked.finished = time.Now()
	m.mu.Unlock()

	switch state {
	case StateCompleted:
		logger.Info("background task completed",
			"task_id", tracked.id, "label", tracked.label, "duration", result.Duration)
		if m.onComplete != nil {
			invokeCallback("task complete", func() { m.onComplete(tracked.id, tracked.label, result) })
		}
	case StateTimedOut, StateFailed:
		logger.Warn("background task did not complete",
			"task_id", tracked.id, "label", tracked.label, "state", string(state), "error", result.Error)
		if m.onError != nil {
			message := errMessage
			invokeCallback("task error", func() { m.onError(tracked.id, tracked.label, message) })
		}
	case StateCancelled:
		// Cancellation offers no callback guarantees.
	}
}

// CancelTask cancels a non-terminal task and waits for it to acknowledge.
func (m *Manager) CancelTask(taskID string) bool {
	m.mu.Lock()
	tracked, ok := m.tasks[taskID]
	if !ok || tracked.state.Terminal() {
		m.mu.Unlock()
		return false
	}
	tracked.state = StateCancelled
	tracked.finished = time.Now()
	m.mu.Unlock()

	tracked.cancel()
	<-tracked.done
	logger.Info("cancelled background task", "task_id", taskID)
	return true
}

// CancelAll cancels every non-terminal task and returns how many it cancelled.
func (m *Manager) CancelAll() int {
	m.mu.Lock()
	ids := make([]string, 0, len(m.tasks))
	for id, t := range m.tasks {
		if !t.state.Terminal() {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	cancelled := 0
	for _, id := range ids {
		if m.CancelTask(id) {
			cancelled++
		}
	}
	return cancelled
}

// Shutdown cancels all remaining work, waits for each task to acknowledge
// cancellation, and stops the retention sweep. The manager is reusable only
// after a new Start.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	running := m.running
	m.running = false
	stop, done := m.sweepStop, m.sweepDone
	m.mu.Unlock()

	if running && stop != nil {
		close(stop)
		<-done
	}

	m.CancelAll()

	m.mu.Lock()
	m.tasks = map[string]*task{}
	m.mu.Unlock()
	logger.Info("task manager shut down")
}

func (m *Manager) sweepLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.sweepTerminal()
		}
	}
}

func (m *Manager) sweepTerminal() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, t := range m.tasks {
		if t.state.Terminal() && !t.finished.IsZero() && now.Sub(t.finished) > m.retention {
			delete(m.tasks, id)
		}
	}
}

// invokeCallback shields the manager from subscriber panics; one misbehaving
// callback must not take down the task's goroutine.
func invokeCallback(name string, callback func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("callback panicked", "callback", name, "panic", fmt.Sprint(recovered))
		}
	}()
	callback()
}
