package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/dto"
	"mediaOrchestrator/orchestrator/lifecycle"
	"mediaOrchestrator/orchestrator/middleware"
	"mediaOrchestrator/orchestrator/models"
	"mediaOrchestrator/orchestrator/repository"
)

// JobService is the handler's view of the lifecycle manager.
type JobService interface {
	Submit(ctx context.Context, req lifecycle.SubmissionRequest) (*models.Job, error)
	Cancel(ctx context.Context, jobID int64) (bool, error)
	Resubmit(ctx context.Context, jobID int64) (*models.Job, error)
	Job(jobID int64) *models.Job
}

// StatusReader answers status queries from the shared cache; may be nil.
type StatusReader interface {
	GetStatus(ctx context.Context, jobID int64) (models.JobStatus, error)
}

// JobLoader loads persisted job records for jobs no longer live.
type JobLoader interface {
	GetJob(ctx context.Context, id int64) (*models.Job, error)
}

type JobHandler struct {
	service JobService
	cache   StatusReader
	store   JobLoader
	logger  *zap.Logger
}

func NewJobHandler(service JobService, cache StatusReader, store JobLoader, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		service: service,
		cache:   cache,
		store:   store,
		logger:  logger,
	}
}

// Register mounts the job routes on a mux.
func (h *JobHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/jobs", h.Submit)
	mux.HandleFunc("/jobs/status/", h.Status)
	mux.HandleFunc("/jobs/cancel/", h.Cancel)
	mux.HandleFunc("/jobs/resubmit/", h.Resubmit)
}

func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.handleError(w, r, "Method not allowed", nil, http.StatusMethodNotAllowed)
		return
	}

	var req dto.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleError(w, r, "Failed to parse request", err, http.StatusBadRequest)
		return
	}

	job, err := h.service.Submit(r.Context(), lifecycle.SubmissionRequest{
		Pipeline:       req.Pipeline,
		Media:          req.ToMedia(),
		Priority:       req.Priority,
		Streaming:      req.Streaming,
		JobProps:       req.JobProps,
		AlgorithmProps: req.AlgorithmProps,
		OutputEnabled:  req.OutputEnabled,
		CallbackURI:    req.CallbackURI,
		CallbackMethod: req.CallbackMethod,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, lifecycle.ErrInvalidPipeline) ||
			errors.Is(err, lifecycle.ErrNoMedia) ||
			errors.Is(err, lifecycle.ErrAllMediaFailed) {
			status = http.StatusBadRequest
		}
		h.handleError(w, r, "Failed to submit job", err, status)
		return
	}

	middleware.Logger(r.Context(), h.logger).Info("Job accepted", zap.Int64("job_id", job.ID))
	h.respondJSON(w, http.StatusCreated, dto.FromJob(job))
}

func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := h.jobID(w, r, "/jobs/status/")
	if !ok {
		return
	}

	if job := h.service.Job(id); job != nil {
		h.respondJSON(w, http.StatusOK, dto.FromJob(job))
		return
	}
	if h.cache != nil {
		if status, err := h.cache.GetStatus(r.Context(), id); err == nil {
			h.respondJSON(w, http.StatusOK, &dto.JobResponse{ID: id, Status: string(status)})
			return
		}
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			h.handleError(w, r, "Job not found", err, http.StatusNotFound)
			return
		}
		h.handleError(w, r, "Failed to load job", err, http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, dto.FromJob(job))
}

func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.handleError(w, r, "Method not allowed", nil, http.StatusMethodNotAllowed)
		return
	}
	id, ok := h.jobID(w, r, "/jobs/cancel/")
	if !ok {
		return
	}

	accepted, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		if errors.Is(err, lifecycle.ErrUnknownJob) {
			h.handleError(w, r, "Job not found", err, http.StatusNotFound)
			return
		}
		h.handleError(w, r, "Failed to cancel job", err, http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, dto.CancelResponse{ID: id, Accepted: accepted})
}

func (h *JobHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.handleError(w, r, "Method not allowed", nil, http.StatusMethodNotAllowed)
		return
	}
	id, ok := h.jobID(w, r, "/jobs/resubmit/")
	if !ok {
		return
	}

	job, err := h.service.Resubmit(r.Context(), id)
	if err != nil {
		h.handleError(w, r, "Failed to resubmit job", err, http.StatusBadRequest)
		return
	}
	h.respondJSON(w, http.StatusCreated, dto.FromJob(job))
}

func (h *JobHandler) jobID(w http.ResponseWriter, r *http.Request, prefix string) (int64, bool) {
	raw := strings.TrimPrefix(r.URL.Path, prefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.handleError(w, r, "Invalid job id", err, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *JobHandler) handleError(w http.ResponseWriter, r *http.Request, message string, err error, status int) {
	middleware.Logger(r.Context(), h.logger).Error(message, zap.Error(err))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		TraceID: middleware.GetTraceID(r.Context()),
	})
}

func (h *JobHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
