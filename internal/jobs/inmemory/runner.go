package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/budget-ledger/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Defaults for NewRunner.
const (
	DefaultLogBuffer    = 256
	DefaultResultBuffer = 64
	DefaultStopWait     = time.Second
)

// ErrStopTimeout is returned by Stop when the run did not wind down within
// the stop wait. The run is still cancelled and will finish on its own.
var ErrStopTimeout = errors.New("classification run did not stop in time")

// Runner executes at most one Work at a time on its own goroutine.
// It is safe for concurrent use.
type Runner struct {
	mu           sync.Mutex
	current      *Run
	store        jobs.JobStore
	logBuffer    int
	resultBuffer int
	stopWait     time.Duration
	log          zerolog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBuffers sets the log and result channel capacities.
func WithBuffers(logs, results int) RunnerOption {
	return func(r *Runner) {
		if logs > 0 {
			r.logBuffer = logs
		}
		if results > 0 {
			r.resultBuffer = results
		}
	}
}

// WithStopWait bounds how long Stop waits for the run to finish.
func WithStopWait(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.stopWait = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner creates a runner that records runs in store (which may be nil).
func NewRunner(store jobs.JobStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:        store,
		logBuffer:    DefaultLogBuffer,
		resultBuffer: DefaultResultBuffer,
		stopWait:     DefaultStopWait,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches work unless a run is already active, in which case the
// active run is returned with started == false. The run does not inherit
// ctx's cancellation; use Stop.
func (r *Runner) Start(ctx context.Context, work jobs.Work) (run *Run, started bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && !r.current.finished() {
		return r.current, false, nil
	}

	now := time.Now()
	job := &jobs.ClassifyJob{
		JobID:     uuid.New().String(),
		Type:      jobs.JobTypeClassifyUnassigned,
		Status:    jobs.JobStatusPending,
		CreatedAt: now,
	}
	if r.store != nil {
		if err := r.store.SaveJob(ctx, job); err != nil {
			return nil, false, fmt.Errorf("failed to save job: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run = &Run{
		job:     *job,
		cancel:  cancel,
		logs:    make(chan jobs.LogEntry, r.logBuffer),
		results: make(chan jobs.Suggestion, r.resultBuffer),
		done:    make(chan struct{}),
	}
	r.current = run

	run.job.Status = jobs.JobStatusRunning
	run.job.StartedAt = &now
	if r.store != nil {
		if err := r.store.UpdateJobStatus(ctx, job.JobID, jobs.JobStatusRunning, ""); err != nil {
			r.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to mark job running")
		}
	}

	go r.execute(runCtx, run, work)
	return run, true, nil
}

func (r *Runner) execute(ctx context.Context, run *Run, work jobs.Work) {
	defer close(run.done)
	defer close(run.logs)
	defer close(run.results)

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("classification run panicked: %v", p)
			}
		}()
		return work(ctx, run)
	}()

	run.mu.Lock()
	completedAt := time.Now()
	run.job.CompletedAt = &completedAt
	switch {
	case ctx.Err() != nil:
		run.job.Status = jobs.JobStatusCancelled
	case err != nil:
		run.job.Status = jobs.JobStatusFailed
		run.job.Error = err.Error()
	default:
		run.job.Status = jobs.JobStatusCompleted
	}
	run.mu.Unlock()

	r.save(context.WithoutCancel(ctx), run)
	job := run.Job()
	r.log.Info().
		Str("job_id", job.JobID).
		Str("status", string(job.Status)).
		Int("processed", job.Processed).
		Int("suggested", job.Suggested).
		Int("dropped_logs", job.DroppedLogs).
		Msg("Classification run finished")
}

func (r *Runner) save(ctx context.Context, run *Run) {
	if r.store == nil {
		return
	}
	job := run.Job()
	if err := r.store.SaveJob(ctx, &job); err != nil {
		r.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job")
	}
}

// Stop cancels the active run and waits up to the stop wait (or until ctx
// is done) for it to finish. Stopping with nothing active is a no-op.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	run := r.current
	r.mu.Unlock()

	if run == nil || run.finished() {
		return nil
	}
	run.cancel()

	timer := time.NewTimer(r.stopWait)
	defer timer.Stop()

	select {
	case <-run.done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active reports whether a run is in progress.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil && !r.current.finished()
}

// Current returns the most recent run, finished or not, or nil.
func (r *Runner) Current() *Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Run is one execution of a Work. Results arrive on Results in the order the
// work emitted them; narration arrives on Logs. Both channels are closed
// when the work returns, before Done is closed.
type Run struct {
	mu      sync.Mutex
	job     jobs.ClassifyJob
	seq     int
	cancel  context.CancelFunc
	logs    chan jobs.LogEntry
	results chan jobs.Suggestion
	done    chan struct{}
}

// ID returns the job id.
func (run *Run) ID() string { return run.Job().JobID }

// Job returns a snapshot of the run record.
func (run *Run) Job() jobs.ClassifyJob {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.job
}

// Logs returns the narration channel.
func (run *Run) Logs() <-chan jobs.LogEntry { return run.logs }

// Results returns the suggestion channel.
func (run *Run) Results() <-chan jobs.Suggestion { return run.results }

// Done is closed once the run has finished.
func (run *Run) Done() <-chan struct{} { return run.done }

func (run *Run) finished() bool {
	select {
	case <-run.done:
		return true
	default:
		return false
	}
}

// Log implements jobs.Sink.
func (run *Run) Log(message string) {
	entry := jobs.LogEntry{JobID: run.ID(), Time: time.Now(), Message: message}
	select {
	case run.logs <- entry:
	default:
		run.mu.Lock()
		run.job.DroppedLogs++
		run.mu.Unlock()
	}
}

// Suggest implements jobs.Sink.
func (run *Run) Suggest(ctx context.Context, s jobs.Suggestion) error {
	run.mu.Lock()
	run.seq++
	s.JobID = run.job.JobID
	s.Seq = run.seq
	run.mu.Unlock()

	select {
	case run.results <- s:
		run.mu.Lock()
		run.job.Suggested++
		run.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Progress implements jobs.Sink.
func (run *Run) Progress(processed, total int) {
	run.mu.Lock()
	defer run.mu.Unlock()
	run.job.Processed = processed
	run.job.Total = total
}

var _ jobs.Sink = (*Run)(nil)
