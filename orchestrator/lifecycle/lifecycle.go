package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/callback"
	"mediaOrchestrator/orchestrator/kafka"
	"mediaOrchestrator/orchestrator/metrics"
	"mediaOrchestrator/orchestrator/models"
	"mediaOrchestrator/orchestrator/postprocess"
	"mediaOrchestrator/orchestrator/response"
	"mediaOrchestrator/orchestrator/segmenting"
	"mediaOrchestrator/orchestrator/trackstore"
)

var (
	ErrInvalidPipeline = errors.New("pipeline has no tasks")
	ErrNoMedia         = errors.New("job has no media")
	ErrAllMediaFailed  = errors.New("every medium failed validation")
	ErrUnknownJob      = errors.New("unknown job")
)

// JobStore is the external persistence collaborator: single-job reads and
// writes plus id allocation. No multi-record transactions are assumed.
type JobStore interface {
	NextJobID(ctx context.Context) (int64, error)
	NextMediaID(ctx context.Context) (int64, error)
	Persist(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id int64) (*models.Job, error)
}

// Purger withdraws a job's not-yet-processed work units from the bus.
// Workers answer each withdrawn unit with a CANCELLED response, so the
// job's outstanding work still drains through HandleResponse. Failures
// are best-effort: logged, never fatal to cancellation.
type Purger interface {
	PurgeJob(ctx context.Context, jobID int64) error
}

// PropertyValidator checks submission-time property constraints (storage,
// trigger, padding validators are supplied externally).
type PropertyValidator interface {
	Name() string
	Validate(job *models.Job) error
}

// Notifier delivers health and summary callbacks.
type Notifier interface {
	SendHealth(ctx context.Context, uri string, reports []callback.HealthReport) error
	SendSummary(ctx context.Context, method, uri string, report callback.SummaryReport) error
}

// StatusCache mirrors job status and streaming activity into the shared
// cache so the admin surface can read it without touching the store.
type StatusCache interface {
	SetStatus(ctx context.Context, jobID int64, status models.JobStatus) error
	SetActivity(ctx context.Context, jobID int64, frame int, ts time.Time) error
}

// SubmissionRequest is what a caller hands to Submit.
type SubmissionRequest struct {
	Pipeline       models.Pipeline
	Media          []*models.Media
	Priority       int
	Streaming      bool
	JobProps       map[string]string
	AlgorithmProps map[string]map[string]string
	OutputEnabled  bool
	CallbackURI    string
	CallbackMethod string
}

// jobState wraps one live job. Its mutex serializes every operation on the
// same job id; operations on distinct jobs never share a lock.
type jobState struct {
	mu          sync.Mutex
	job         *models.Job
	outstanding int
	stalled     bool

	// seen holds the correlation ids already absorbed for the current
	// task; the bus delivers at least once, so redeliveries must not
	// drain outstanding twice.
	seen map[string]struct{}
}

// Manager drives the batch and streaming job state machines: submission,
// cancellation, response absorption, task advancement and terminal-state
// bookkeeping.
type Manager struct {
	logger     *zap.Logger
	store      JobStore
	purger     Purger
	splitter   *segmenting.Splitter
	processor  *response.Processor
	chain      *postprocess.Chain
	tracks     *trackstore.Store
	inspector  response.MediaInspector
	validators []PropertyValidator
	notifier   Notifier
	cache      StatusCache
	system     func() models.SystemPropertySnapshot

	mu   sync.Mutex
	jobs map[int64]*jobState
}

func NewManager(
	logger *zap.Logger,
	store JobStore,
	purger Purger,
	splitter *segmenting.Splitter,
	processor *response.Processor,
	chain *postprocess.Chain,
	tracks *trackstore.Store,
	inspector response.MediaInspector,
	notifier Notifier,
	cache StatusCache,
	system func() models.SystemPropertySnapshot,
	validators ...PropertyValidator,
) *Manager {
	return &Manager{
		logger:     logger,
		store:      store,
		purger:     purger,
		splitter:   splitter,
		processor:  processor,
		chain:      chain,
		tracks:     tracks,
		inspector:  inspector,
		validators: validators,
		notifier:   notifier,
		cache:      cache,
		system:     system,
		jobs:       make(map[int64]*jobState),
	}
}

// Submit validates and starts a new job. Validation failures are returned
// synchronously and no job record is created; after the job exists, a
// medium failing inspection only downgrades the job to the with-errors
// status unless every medium failed.
func (m *Manager) Submit(ctx context.Context, req SubmissionRequest) (*models.Job, error) {
	if len(req.Pipeline.Tasks) == 0 {
		return nil, ErrInvalidPipeline
	}
	if len(req.Media) == 0 {
		return nil, ErrNoMedia
	}

	id, err := m.store.NextJobID(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate job id: %w", err)
	}

	job := &models.Job{
		ID:             id,
		Streaming:      req.Streaming,
		Pipeline:       req.Pipeline,
		Priority:       models.ClampPriority(req.Priority),
		Media:          req.Media,
		JobProps:       req.JobProps,
		AlgorithmProps: req.AlgorithmProps,
		SystemProps:    m.system().Snapshot(),
		OutputEnabled:  req.OutputEnabled,
		CallbackURI:    req.CallbackURI,
		CallbackMethod: req.CallbackMethod,
		CreatedAt:      time.Now(),
		Status:         models.StatusInitialized,
	}
	if req.Streaming {
		job.Status = models.StatusInitializing
		job.LastActivityTime = job.CreatedAt
	}

	for _, v := range m.validators {
		if err := v.Validate(job); err != nil {
			return nil, fmt.Errorf("%s validation: %w", v.Name(), err)
		}
	}

	failed := 0
	for _, medium := range job.Media {
		medium.CreationTask = -1
		if err := m.inspector.Inspect(ctx, medium); err != nil {
			medium.Fail(err.Error())
			job.AddError(medium.ID, -1, err.Error())
		}
		if medium.Failed {
			failed++
		}
	}
	if failed == len(job.Media) {
		job.Status = models.StatusCreationError
		m.persistBestEffort(ctx, job)
		return nil, ErrAllMediaFailed
	}

	if failed > 0 {
		job.Status = models.StatusInProgressErrors
	} else if !req.Streaming {
		// Streaming jobs stay INITIALIZING until their first response.
		job.Status = models.StatusInProgress
	}
	if err := m.store.Persist(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}
	m.cacheStatus(ctx, job)

	st := &jobState{job: job, seen: make(map[string]struct{})}
	m.mu.Lock()
	m.jobs[id] = st
	m.mu.Unlock()

	kind := "batch"
	if job.Streaming {
		kind = "streaming"
	}
	metrics.JobsSubmittedTotal.WithLabelValues(kind).Inc()
	metrics.ActiveJobs.Inc()
	m.logger.Info("Job submitted",
		zap.Int64("job_id", id),
		zap.String("pipeline", job.Pipeline.Name),
		zap.String("kind", kind),
		zap.Int("media", len(job.Media)),
		zap.Int("failed_media", failed),
	)

	st.mu.Lock()
	defer st.mu.Unlock()
	m.advanceTask(ctx, st)
	return job, nil
}

// Cancel requests cancellation of a job. It refuses (returning false) when
// the job is already terminal or already cancelling; duplicate concurrent
// requests transition the job to CANCELLING exactly once. In-flight work
// units still complete and their late responses are absorbed.
func (m *Manager) Cancel(ctx context.Context, jobID int64) (bool, error) {
	st := m.lookup(jobID)
	if st == nil {
		return false, ErrUnknownJob
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	job := st.job
	if job.Status.IsTerminal() || job.Status == models.StatusCancelling {
		return false, nil
	}

	// Two independent outcomes: a purge failure never blocks the state
	// transition.
	if err := m.purger.PurgeJob(ctx, jobID); err != nil {
		m.logger.Warn("Best-effort purge failed; in-flight units will complete",
			zap.Int64("job_id", jobID),
			zap.Error(err),
		)
	}

	job.Status = models.StatusCancelling
	m.persistBestEffort(ctx, job)
	m.cacheStatus(ctx, job)
	m.logger.Info("Job cancelling", zap.Int64("job_id", jobID))

	if st.outstanding == 0 {
		m.finish(ctx, st)
	}
	return true, nil
}

// Resubmit creates a brand-new job record from a terminal job's definition.
// The terminal record itself is never mutated.
func (m *Manager) Resubmit(ctx context.Context, jobID int64) (*models.Job, error) {
	old, err := m.terminalJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	media := make([]*models.Media, 0, len(old.Media))
	for _, src := range old.Media {
		if src.IsDerivative() {
			continue
		}
		media = append(media, &models.Media{
			ID:           src.ID,
			URI:          src.URI,
			Type:         src.Type,
			MediaProps:   src.MediaProps,
			Metadata:     make(map[string]string),
			CreationTask: -1,
		})
	}
	return m.Submit(ctx, SubmissionRequest{
		Pipeline:       old.Pipeline,
		Media:          media,
		Priority:       old.Priority,
		Streaming:      old.Streaming,
		JobProps:       old.JobProps,
		AlgorithmProps: old.AlgorithmProps,
		OutputEnabled:  old.OutputEnabled,
		CallbackURI:    old.CallbackURI,
		CallbackMethod: old.CallbackMethod,
	})
}

func (m *Manager) terminalJob(ctx context.Context, jobID int64) (*models.Job, error) {
	if st := m.lookup(jobID); st != nil {
		st.mu.Lock()
		defer st.mu.Unlock()
		if !st.job.Status.IsTerminal() {
			return nil, fmt.Errorf("job %d is still %s", jobID, st.job.Status)
		}
		return st.job, nil
	}
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", jobID, err)
	}
	if !job.Status.IsTerminal() {
		return nil, fmt.Errorf("job %d is still %s", jobID, job.Status)
	}
	return job, nil
}

// HandleResponse absorbs one worker response. Responses for terminal or
// unknown jobs are dropped without reactivating anything.
func (m *Manager) HandleResponse(ctx context.Context, resp *kafka.DetectionResponse) error {
	st := m.lookup(resp.JobID)
	if st == nil {
		m.logger.Debug("Dropping response for unknown job", zap.Int64("job_id", resp.JobID))
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	job := st.job
	if job.Status.IsTerminal() {
		m.logger.Debug("Absorbing late response for terminal job",
			zap.Int64("job_id", job.ID),
			zap.String("status", string(job.Status)),
		)
		return nil
	}

	if resp.TaskIdx != job.CurrentTask {
		m.logger.Debug("Dropping response for a task that is no longer current",
			zap.Int64("job_id", job.ID),
			zap.Int("task", resp.TaskIdx),
			zap.Int("current_task", job.CurrentTask),
		)
		return nil
	}
	if resp.CorrelationID != "" {
		if _, dup := st.seen[resp.CorrelationID]; dup {
			m.logger.Debug("Dropping redelivered response",
				zap.Int64("job_id", job.ID),
				zap.String("correlation_id", resp.CorrelationID),
			)
			return nil
		}
		st.seen[resp.CorrelationID] = struct{}{}
	}

	if err := m.processor.Process(ctx, job, resp); err != nil {
		job.AddWarning(resp.MediaID, resp.TaskIdx, err.Error())
		m.logger.Warn("Failed to process response",
			zap.Int64("job_id", job.ID),
			zap.Error(err),
		)
	}

	if job.Streaming {
		m.recordActivity(ctx, st, resp)
	}

	if st.outstanding > 0 {
		st.outstanding--
	}
	if st.outstanding == 0 {
		m.onTaskComplete(ctx, st)
	}
	return nil
}

// advanceTask splits and dispatches the current task; a task producing no
// work units completes immediately and the job moves on.
func (m *Manager) advanceTask(ctx context.Context, st *jobState) {
	job := st.job
	for {
		if job.Status == models.StatusCancelling {
			m.finish(ctx, st)
			return
		}
		st.seen = make(map[string]struct{})
		units, err := m.splitter.SplitTask(ctx, job)
		if err != nil {
			m.fail(ctx, st, err)
			return
		}
		// A medium failing mid-run downgrades the running status, same as
		// a failure at submission.
		if job.Status == models.StatusInProgress && anyMediaFailed(job) {
			job.Status = models.StatusInProgressErrors
			m.persistBestEffort(ctx, job)
			m.cacheStatus(ctx, job)
		}
		st.outstanding = units
		if units > 0 {
			return
		}
		m.chain.Run(ctx, job, job.CurrentTask)
		if job.CurrentTask+1 >= len(job.Pipeline.Tasks) {
			m.finish(ctx, st)
			return
		}
		job.CurrentTask++
	}
}

func (m *Manager) onTaskComplete(ctx context.Context, st *jobState) {
	job := st.job
	m.chain.Run(ctx, job, job.CurrentTask)

	if job.Status == models.StatusCancelling || job.CurrentTask+1 >= len(job.Pipeline.Tasks) {
		m.finish(ctx, st)
		return
	}
	job.CurrentTask++
	m.persistBestEffort(ctx, job)
	m.advanceTask(ctx, st)
}

// finish moves the job to its terminal status, persists it, delivers the
// summary callback and evicts the job's working state.
func (m *Manager) finish(ctx context.Context, st *jobState) {
	job := st.job
	switch {
	case job.Status == models.StatusCancelling:
		job.Status = models.StatusCancelled
	case len(job.Errors) > 0 || len(job.DetErrors) > 0 || anyMediaFailed(job):
		job.Status = models.StatusCompleteErrors
	default:
		job.Status = models.StatusComplete
	}
	now := time.Now()
	job.CompletedAt = &now

	m.persistBestEffort(ctx, job)
	m.cacheStatus(ctx, job)
	metrics.JobsFinishedTotal.WithLabelValues(string(job.Status)).Inc()
	metrics.ActiveJobs.Dec()

	if job.CallbackURI != "" {
		m.notifier.SendSummary(ctx, job.CallbackMethod, job.CallbackURI, callback.SummaryReport{
			JobID:          job.ID,
			Status:         string(job.Status),
			TrackCount:     m.tracks.TrackCount(job.ID),
			WarningCount:   len(job.Warnings),
			ErrorCount:     len(job.Errors),
			DetectionError: len(job.DetErrors),
			OutputEnabled:  job.OutputEnabled,
		})
	}

	m.logger.Info("Job finished",
		zap.Int64("job_id", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("warnings", len(job.Warnings)),
		zap.Int("errors", len(job.Errors)),
	)

	m.tracks.ClearJob(job.ID)
	m.mu.Lock()
	delete(m.jobs, job.ID)
	m.mu.Unlock()
}

// fail forces the job to the terminal ERROR status with best-effort
// persistence of the reason; if even that fails the state is dropped with
// only a log line.
func (m *Manager) fail(ctx context.Context, st *jobState, cause error) {
	job := st.job
	job.AddError(0, job.CurrentTask, cause.Error())
	job.Status = models.StatusError
	now := time.Now()
	job.CompletedAt = &now

	if err := m.store.Persist(ctx, job); err != nil {
		m.logger.Error("Could not persist failed job; dropping in-memory state",
			zap.Int64("job_id", job.ID),
			zap.NamedError("persist_error", err),
			zap.NamedError("cause", cause),
		)
	}
	m.cacheStatus(ctx, job)
	metrics.JobsFinishedTotal.WithLabelValues(string(job.Status)).Inc()
	metrics.ActiveJobs.Dec()

	m.tracks.ClearJob(job.ID)
	m.mu.Lock()
	delete(m.jobs, job.ID)
	m.mu.Unlock()
}

// Job returns a detached copy of a live job by id, or nil. The copy is
// safe to read concurrently with response handling.
func (m *Manager) Job(jobID int64) *models.Job {
	st := m.lookup(jobID)
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.job.Clone()
}

func (m *Manager) lookup(jobID int64) *jobState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[jobID]
}

func (m *Manager) persistBestEffort(ctx context.Context, job *models.Job) {
	if err := m.store.Persist(ctx, job); err != nil {
		m.logger.Error("Failed to persist job",
			zap.Int64("job_id", job.ID),
			zap.Error(err),
		)
	}
}

func (m *Manager) cacheStatus(ctx context.Context, job *models.Job) {
	if m.cache == nil {
		return
	}
	if err := m.cache.SetStatus(ctx, job.ID, job.Status); err != nil {
		m.logger.Warn("Failed to cache job status",
			zap.Int64("job_id", job.ID),
			zap.Error(err),
		)
	}
}

func anyMediaFailed(job *models.Job) bool {
	for _, medium := range job.Media {
		if medium.Failed {
			return true
		}
	}
	return false
}
