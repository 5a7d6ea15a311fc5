package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/orginsights/insights/pkg/engine"
	"github.com/orginsights/insights/pkg/jobstore"
	"github.com/orginsights/insights/pkg/probe"
)

var unsafeOwner = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Runner starts and cancels extraction jobs. At most one run per owner is
// active at a time, within the process and, when a lock directory is set,
// across processes.
type Runner struct {
	registry      *engine.Registry
	orchestrator  *engine.Orchestrator
	probe         probe.Probe
	store         jobstore.Store
	lockDir       string
	abortOnCancel bool
	logger        zerolog.Logger
	now           func() time.Time

	mu     sync.Mutex
	active map[string]*Job // by owner
	jobs   map[string]*Job // by id, while running
	locks  map[string]*flock.Flock
}

// NewRunner builds a runner over a registry, orchestrator and page probe.
func NewRunner(registry *engine.Registry, orchestrator *engine.Orchestrator, p probe.Probe, logger zerolog.Logger) *Runner {
	return &Runner{
		registry:     registry,
		orchestrator: orchestrator,
		probe:        p,
		store:        jobstore.NewMemory(),
		logger:       logger.With().Str("component", "job.runner").Logger(),
		now:          time.Now,
		active:       make(map[string]*Job),
		jobs:         make(map[string]*Job),
		locks:        make(map[string]*flock.Flock),
	}
}

// WithStore replaces the default in-memory job store.
func (r *Runner) WithStore(s jobstore.Store) *Runner {
	if s != nil {
		r.store = s
	}
	return r
}

// WithLockDir enables the cross-process owner lock under dir.
func (r *Runner) WithLockDir(dir string) *Runner {
	r.lockDir = dir
	return r
}

// WithAbortOnCancel makes a cancel also stop in-flight probe work. By
// default a cancelled job still lets the current module finish.
func (r *Runner) WithAbortOnCancel(enabled bool) *Runner {
	r.abortOnCancel = enabled
	return r
}

// Start validates req and reserves the owner's run slot. A request naming
// only unknown modules is rejected before the job is recorded.
func (r *Runner) Start(ctx context.Context, req Request) (*Job, error) {
	if err := req.check(); err != nil {
		return nil, err
	}
	if len(r.registry.Resolve(req.Modules)) == 0 {
		return nil, WithErrorCode(fmt.Errorf("%w: none of %v is a known module", ErrNoModules, req.Modules), errorCodeNoModules)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if j, ok := r.active[req.Owner]; ok {
		return nil, WithErrorCode(fmt.Errorf("%w: job %s", ErrRunActive, j.ID), errorCodeRunActive)
	}
	lock, err := r.lockOwner(req.Owner)
	if err != nil {
		return nil, err
	}

	j := newJob(req, r.now())
	rec := jobstore.Record{
		ID:        j.ID,
		Owner:     j.Owner,
		Customer:  j.Customer,
		Modules:   j.Modules,
		State:     jobstore.StateRunning,
		StartedAt: j.StartedAt,
	}
	if err := r.store.Put(ctx, rec); err != nil {
		r.unlock(lock)
		return nil, fmt.Errorf("record job: %w", err)
	}

	r.active[j.Owner] = j
	r.jobs[j.ID] = j
	if lock != nil {
		r.locks[j.ID] = lock
	}
	r.logger.Info().Str("job_id", j.ID).Str("owner", j.Owner).Str("customer", j.Customer).Strs("modules", j.Modules).Msg("Job started")
	return j, nil
}

// lockOwner takes the owner's lock file. It must be called with r.mu held.
func (r *Runner) lockOwner(owner string) (*flock.Flock, error) {
	if r.lockDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(r.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(filepath.Join(r.lockDir, unsafeOwner.ReplaceAllString(owner, "_")+".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock owner %s: %w", owner, err)
	}
	if !ok {
		return nil, WithErrorCode(fmt.Errorf("%w: held by another process", ErrRunActive), errorCodeRunActive)
	}
	return lock, nil
}

func (r *Runner) unlock(lock *flock.Flock) {
	if lock == nil {
		return
	}
	if err := lock.Unlock(); err != nil {
		r.logger.Warn().Err(err).Str("path", lock.Path()).Msg("Failed to release owner lock")
	}
}

// Execute runs a started job to the end and releases the owner slot. Events
// reach sink only until the job is cancelled.
func (r *Runner) Execute(ctx context.Context, j *Job, sink engine.EventSink) Outcome {
	defer r.release(j)

	if sink == nil {
		sink = engine.Discard
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	j.bindAbort(cancel)
	if r.abortOnCancel && j.Cancelled() {
		cancel()
	}

	modules := r.registry.Resolve(j.Modules)
	if len(modules) < len(j.Modules) {
		r.logger.Warn().Str("job_id", j.ID).Int("requested", len(j.Modules)).Int("known", len(modules)).Msg("Unknown or duplicate module ids skipped")
	}

	g := &gate{job: j, store: r.store, next: sink, logger: r.logger, abort: r.abortOnCancel}
	ec := engine.ExecutionContext{Probe: r.probe, Tab: j.Tab, Customer: j.Customer}
	results := r.orchestrator.Run(runCtx, ec, modules, g)

	out := Outcome{
		JobID:      j.ID,
		Customer:   j.Customer,
		Results:    results,
		Delivered:  len(g.delivered),
		Cancelled:  j.Cancelled(),
		StartedAt:  j.StartedAt,
		FinishedAt: r.now(),
	}
	out.Succeeded, out.Failed = engine.Tally(results)
	r.finish(ctx, j, out)
	return out
}

// Run is Start followed by Execute.
func (r *Runner) Run(ctx context.Context, req Request, sink engine.EventSink) (Outcome, error) {
	j, err := r.Start(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	return r.Execute(ctx, j, sink), nil
}

func (r *Runner) finish(ctx context.Context, j *Job, out Outcome) {
	state := jobstore.StateCompleted
	switch {
	case out.Cancelled:
		state = jobstore.StateCancelled
	case out.Succeeded == 0:
		state = jobstore.StateFailed
	}
	rec := jobstore.Record{
		ID:         j.ID,
		Owner:      j.Owner,
		Customer:   j.Customer,
		Modules:    j.Modules,
		State:      state,
		Cancelled:  out.Cancelled,
		Succeeded:  out.Succeeded,
		Failed:     out.Failed,
		StartedAt:  out.StartedAt,
		FinishedAt: out.FinishedAt,
	}
	// The run context may already be done; the record should still land.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.store.Put(storeCtx, rec); err != nil {
		r.logger.Warn().Err(err).Str("job_id", j.ID).Msg("Failed to record job outcome")
	}
	r.logger.Info().Str("job_id", j.ID).Str("state", string(state)).Int("succeeded", out.Succeeded).Int("failed", out.Failed).Msg("Job finished")
}

func (r *Runner) release(j *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[j.Owner] == j {
		delete(r.active, j.Owner)
	}
	delete(r.jobs, j.ID)
	if lock, ok := r.locks[j.ID]; ok {
		r.unlock(lock)
		delete(r.locks, j.ID)
	}
}

// Cancel raises the cancel flag of a job. A job running in this process is
// flagged directly; the store carries the flag to other processes. Calling
// it again is harmless.
func (r *Runner) Cancel(ctx context.Context, id string) error {
	r.mu.Lock()
	j, local := r.jobs[id]
	r.mu.Unlock()

	if local {
		j.Cancel()
		if r.abortOnCancel {
			j.stopInFlight()
		}
	}
	err := r.store.Cancel(ctx, id)
	switch {
	case err == nil:
	case jobstore.IsNotFound(err) && !local:
		return WithErrorCode(fmt.Errorf("%w: %s", ErrJobNotFound, id), errorCodeNotFound)
	case jobstore.IsNotFound(err):
	default:
		if !local {
			return fmt.Errorf("cancel job %s: %w", id, err)
		}
		r.logger.Warn().Err(err).Str("job_id", id).Msg("Cancel flag not stored")
	}
	r.logger.Info().Str("job_id", id).Bool("local", local).Msg("Job cancel requested")
	return nil
}

// Active returns the owner's running job.
func (r *Runner) Active(owner string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.active[owner]
	return j, ok
}

// Status returns the stored record of a job.
func (r *Runner) Status(ctx context.Context, id string) (jobstore.Record, error) {
	rec, err := r.store.Get(ctx, id)
	if jobstore.IsNotFound(err) {
		return rec, WithErrorCode(fmt.Errorf("%w: %s", ErrJobNotFound, id), errorCodeNotFound)
	}
	return rec, err
}
