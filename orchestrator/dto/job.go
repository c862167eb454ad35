package dto

import (
	"mediaOrchestrator/orchestrator/models"
)

// MediaRequest describes one medium in a job submission.
type MediaRequest struct {
	ID         int64             `json:"id"`
	URI        string            `json:"uri"`
	Type       string            `json:"type,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	MediaProps map[string]string `json:"media_properties,omitempty"`
}

// SubmitJobRequest is the admin API's job submission body.
type SubmitJobRequest struct {
	Pipeline       models.Pipeline              `json:"pipeline"`
	Media          []MediaRequest               `json:"media"`
	Priority       int                          `json:"priority"`
	Streaming      bool                         `json:"streaming"`
	JobProps       map[string]string            `json:"job_properties,omitempty"`
	AlgorithmProps map[string]map[string]string `json:"algorithm_properties,omitempty"`
	OutputEnabled  bool                         `json:"output_enabled"`
	CallbackURI    string                       `json:"callback_uri,omitempty"`
	CallbackMethod string                       `json:"callback_method,omitempty"`
}

// JobResponse is what submission, resubmission and status queries return.
type JobResponse struct {
	ID          int64   `json:"id"`
	Status      string  `json:"status"`
	Priority    int     `json:"priority"`
	CurrentTask int     `json:"current_task"`
	Warnings    int     `json:"warnings"`
	Errors      int     `json:"errors"`
	CreatedAt   string  `json:"created_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// CancelResponse reports whether a cancellation request was accepted.
// Accepted is false when the job was already terminal or cancelling.
type CancelResponse struct {
	ID       int64 `json:"id"`
	Accepted bool  `json:"accepted"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id"`
}

// FromJob flattens a job into its API representation.
func FromJob(job *models.Job) *JobResponse {
	var completedAt *string
	if job.CompletedAt != nil {
		formatted := job.CompletedAt.Format("2006-01-02T15:04:05Z")
		completedAt = &formatted
	}
	return &JobResponse{
		ID:          job.ID,
		Status:      string(job.Status),
		Priority:    job.Priority,
		CurrentTask: job.CurrentTask,
		Warnings:    len(job.Warnings),
		Errors:      len(job.Errors),
		CreatedAt:   job.CreatedAt.Format("2006-01-02T15:04:05Z"),
		CompletedAt: completedAt,
	}
}

// ToMedia converts the submitted media descriptors into model form.
func (r *SubmitJobRequest) ToMedia() []*models.Media {
	out := make([]*models.Media, 0, len(r.Media))
	for _, m := range r.Media {
		medium := &models.Media{
			ID:         m.ID,
			URI:        m.URI,
			Type:       models.MediaType(m.Type),
			Metadata:   m.Metadata,
			MediaProps: m.MediaProps,
		}
		if medium.Metadata == nil {
			medium.Metadata = make(map[string]string)
		}
		if medium.MediaProps == nil {
			medium.MediaProps = make(map[string]string)
		}
		out = append(out, medium)
	}
	return out
}
