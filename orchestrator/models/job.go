package models

import (
	"time"
)

type JobStatus string

const (
	StatusInitializing     JobStatus = "INITIALIZING"
	StatusInitialized      JobStatus = "INITIALIZED"
	StatusInProgress       JobStatus = "IN_PROGRESS"
	StatusInProgressErrors JobStatus = "IN_PROGRESS_ERRORS"
	StatusCancelling       JobStatus = "CANCELLING"
	StatusComplete         JobStatus = "COMPLETE"
	StatusCompleteErrors   JobStatus = "COMPLETE_WITH_ERRORS"
	StatusCancelled        JobStatus = "CANCELLED"
	StatusError            JobStatus = "ERROR"
	StatusCreationError    JobStatus = "JOB_CREATION_ERROR"
)

// IsTerminal reports whether a job in this status can never change again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusCompleteErrors, StatusCancelled, StatusError, StatusCreationError:
		return true
	default:
		return false
	}
}

const (
	MinPriority = 0
	MaxPriority = 9
)

// ClampPriority forces a requested priority into the supported range.
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// ActionType classifies what kind of work an action dispatches.
type ActionType string

const (
	ActionTypeDetection ActionType = "DETECTION"
	ActionTypeMarkup    ActionType = "MARKUP"
)

// Algorithm describes one detection component registered with the system.
type Algorithm struct {
	Name            string
	ActionType      ActionType
	DefaultProps    map[string]string
	SupportedMedia  []MediaType
	SupportsFeedFwd bool
}

// Supports reports whether the algorithm can process the given medium type.
func (a Algorithm) Supports(mt MediaType) bool {
	for _, m := range a.SupportedMedia {
		if m == mt {
			return true
		}
	}
	return false
}

// Action is a named invocation of an algorithm with action-level properties.
type Action struct {
	Name      string
	Algorithm Algorithm
	Props     map[string]string
}

// Task is one pipeline stage: its actions run in parallel over the same input.
type Task struct {
	Name    string
	Actions []Action
}

// Pipeline is the ordered task list a job executes.
type Pipeline struct {
	Name  string
	Tasks []Task
}

// JobWarning is a non-fatal problem recorded against a job.
type JobWarning struct {
	MediaID int64
	TaskIdx int
	Message string
}

// JobError is a medium- or job-scoped failure recorded against a job.
type JobError struct {
	MediaID int64
	TaskIdx int
	Message string
}

// DetectionProcessingError records a worker-reported failure for one work unit.
type DetectionProcessingError struct {
	JobID      int64
	MediaID    int64
	TaskIdx    int
	ActionIdx  int
	StartFrame int
	StopFrame  int
	StartTime  int
	StopTime   int
	Code       string
	Message    string
}

// Job is the orchestrator's record of one submitted batch or streaming job.
// Status and CurrentTask are mutated only by the lifecycle layer; everything
// else is fixed at submission.
type Job struct {
	ID        int64
	Streaming bool
	Pipeline  Pipeline
	Priority  int

	// CurrentTask only ever increases.
	CurrentTask int
	Status      JobStatus

	Media []*Media

	// JobProps overrides action-level properties for every action.
	JobProps map[string]string

	// AlgorithmProps overrides, keyed by algorithm name, beat JobProps for
	// actions of that algorithm.
	AlgorithmProps map[string]map[string]string

	// SystemProps is the snapshot of global detection defaults taken at
	// submission. Later global config changes never reach a running job.
	SystemProps SystemPropertySnapshot

	OutputEnabled  bool
	CallbackURI    string
	CallbackMethod string

	Warnings  []JobWarning
	Errors    []JobError
	DetErrors []DetectionProcessingError

	CreatedAt   time.Time
	CompletedAt *time.Time

	// Streaming bookkeeping.
	LastActivityFrame int
	LastActivityTime  time.Time
}

// SystemPropertySnapshot is the immutable point-in-time copy of global
// detection defaults attached to a job at submission.
type SystemPropertySnapshot struct {
	TargetSegmentLength    int
	MinSegmentLength       int
	VfrTargetSegmentLength int
	VfrMinSegmentLength    int
	SamplingInterval       int
	FrameRateCap           float64
	MinGapBetweenSegments  int
	TrackMerging           bool
	Props                  map[string]string
}

// Snapshot copies the live defaults so the original can keep mutating.
func (s SystemPropertySnapshot) Snapshot() SystemPropertySnapshot {
	out := s
	out.Props = make(map[string]string, len(s.Props))
	for k, v := range s.Props {
		out.Props[k] = v
	}
	return out
}

// AddWarning appends a job-level warning.
func (j *Job) AddWarning(mediaID int64, taskIdx int, msg string) {
	j.Warnings = append(j.Warnings, JobWarning{MediaID: mediaID, TaskIdx: taskIdx, Message: msg})
}

// AddError appends a job-level error.
func (j *Job) AddError(mediaID int64, taskIdx int, msg string) {
	j.Errors = append(j.Errors, JobError{MediaID: mediaID, TaskIdx: taskIdx, Message: msg})
}

// AddDetectionError appends a worker-reported detection error.
func (j *Job) AddDetectionError(e DetectionProcessingError) {
	j.DetErrors = append(j.DetErrors, e)
}

// Clone returns a detached copy safe to read after the job lock is
// released. Warning/error slices are copied; media entries are shared and
// must not be read off-lock.
func (j *Job) Clone() *Job {
	out := *j
	out.Warnings = append([]JobWarning(nil), j.Warnings...)
	out.Errors = append([]JobError(nil), j.Errors...)
	out.DetErrors = append([]DetectionProcessingError(nil), j.DetErrors...)
	if j.CompletedAt != nil {
		done := *j.CompletedAt
		out.CompletedAt = &done
	}
	return &out
}

// Medium returns the job's medium with the given id, or nil.
func (j *Job) Medium(mediaID int64) *Media {
	for _, m := range j.Media {
		if m.ID == mediaID {
			return m
		}
	}
	return nil
}
