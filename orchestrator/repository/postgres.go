package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediaOrchestrator/orchestrator/models"
)

var ErrJobNotFound = errors.New("job not found")

// PostgresStore persists single job records. Only one row is ever written
// per call; no multi-record transactions.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func (s *PostgresStore) NextJobID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `SELECT nextval('job_id_seq')`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("next job id: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) NextMediaID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `SELECT nextval('media_id_seq')`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("next media id: %w", err)
	}
	return id, nil
}

// jobRecord is the persisted shape of a job; the structured parts travel
// as one JSON document.
type jobRecord struct {
	Streaming      bool                              `json:"streaming"`
	Pipeline       models.Pipeline                   `json:"pipeline"`
	Priority       int                               `json:"priority"`
	CurrentTask    int                               `json:"current_task"`
	Media          []*models.Media                   `json:"media"`
	JobProps       map[string]string                 `json:"job_props"`
	AlgorithmProps map[string]map[string]string      `json:"algorithm_props"`
	SystemProps    models.SystemPropertySnapshot     `json:"system_props"`
	OutputEnabled  bool                              `json:"output_enabled"`
	CallbackURI    string                            `json:"callback_uri"`
	CallbackMethod string                            `json:"callback_method"`
	Warnings       []models.JobWarning               `json:"warnings"`
	Errors         []models.JobError                 `json:"errors"`
	DetErrors      []models.DetectionProcessingError `json:"detection_errors"`
}

func (s *PostgresStore) Persist(ctx context.Context, job *models.Job) error {
	doc, err := json.Marshal(jobRecord{
		Streaming:      job.Streaming,
		Pipeline:       job.Pipeline,
		Priority:       job.Priority,
		CurrentTask:    job.CurrentTask,
		Media:          job.Media,
		JobProps:       job.JobProps,
		AlgorithmProps: job.AlgorithmProps,
		SystemProps:    job.SystemProps,
		OutputEnabled:  job.OutputEnabled,
		CallbackURI:    job.CallbackURI,
		CallbackMethod: job.CallbackMethod,
		Warnings:       job.Warnings,
		Errors:         job.Errors,
		DetErrors:      job.DetErrors,
	})
	if err != nil {
		return fmt.Errorf("marshal job %d: %w", job.ID, err)
	}

	query := `
		INSERT INTO jobs (id, status, record, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    record = EXCLUDED.record,
		    completed_at = EXCLUDED.completed_at,
		    updated_at = NOW()
	`
	_, err = s.db.Exec(ctx, query, job.ID, string(job.Status), doc, job.CreatedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("persist job %d: %w", job.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	query := `SELECT status, record, created_at, completed_at FROM jobs WHERE id = $1`

	var (
		status string
		doc    []byte
		job    models.Job
	)
	err := s.db.QueryRow(ctx, query, id).Scan(&status, &doc, &job.CreatedAt, &job.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}

	var rec jobRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("decode job %d: %w", id, err)
	}

	job.ID = id
	job.Status = models.JobStatus(status)
	job.Streaming = rec.Streaming
	job.Pipeline = rec.Pipeline
	job.Priority = rec.Priority
	job.CurrentTask = rec.CurrentTask
	job.Media = rec.Media
	job.JobProps = rec.JobProps
	job.AlgorithmProps = rec.AlgorithmProps
	job.SystemProps = rec.SystemProps
	job.OutputEnabled = rec.OutputEnabled
	job.CallbackURI = rec.CallbackURI
	job.CallbackMethod = rec.CallbackMethod
	job.Warnings = rec.Warnings
	job.Errors = rec.Errors
	job.DetErrors = rec.DetErrors
	return &job, nil
}
