package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"mediaOrchestrator/orchestrator/dto"
	"mediaOrchestrator/orchestrator/lifecycle"
	"mediaOrchestrator/orchestrator/models"
	"mediaOrchestrator/orchestrator/repository"
)

type mockJobService struct {
	submitFunc   func(ctx context.Context, req lifecycle.SubmissionRequest) (*models.Job, error)
	cancelFunc   func(ctx context.Context, jobID int64) (bool, error)
	resubmitFunc func(ctx context.Context, jobID int64) (*models.Job, error)
	jobFunc      func(jobID int64) *models.Job
}

func (m *mockJobService) Submit(ctx context.Context, req lifecycle.SubmissionRequest) (*models.Job, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, req)
	}
	return &models.Job{ID: 1, Status: models.StatusInProgress, CreatedAt: time.Now()}, nil
}

func (m *mockJobService) Cancel(ctx context.Context, jobID int64) (bool, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, jobID)
	}
	return true, nil
}

func (m *mockJobService) Resubmit(ctx context.Context, jobID int64) (*models.Job, error) {
	if m.resubmitFunc != nil {
		return m.resubmitFunc(ctx, jobID)
	}
	return &models.Job{ID: jobID + 1, Status: models.StatusInProgress, CreatedAt: time.Now()}, nil
}

func (m *mockJobService) Job(jobID int64) *models.Job {
	if m.jobFunc != nil {
		return m.jobFunc(jobID)
	}
	return nil
}

type mockStatusReader struct {
	getFunc func(ctx context.Context, jobID int64) (models.JobStatus, error)
}

func (m *mockStatusReader) GetStatus(ctx context.Context, jobID int64) (models.JobStatus, error) {
	return m.getFunc(ctx, jobID)
}

type mockJobLoader struct {
	getFunc func(ctx context.Context, id int64) (*models.Job, error)
}

func (m *mockJobLoader) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, repository.ErrJobNotFound
}

func newHandler(t *testing.T, service JobService, cache StatusReader, store JobLoader) *JobHandler {
	if store == nil {
		store = &mockJobLoader{}
	}
	return NewJobHandler(service, cache, store, zaptest.NewLogger(t))
}

func submitBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(dto.SubmitJobRequest{
		Pipeline: models.Pipeline{
			Name: "FACE PIPELINE",
			Tasks: []models.Task{{
				Name: "DETECT FACES",
				Actions: []models.Action{{
					Name:      "FACE ACTION",
					Algorithm: models.Algorithm{Name: "FACECV", ActionType: models.ActionTypeDetection},
				}},
			}},
		},
		Media:    []dto.MediaRequest{{ID: 1, URI: "file:///data/face.jpg"}},
		Priority: 4,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewBuffer(body)
}

func TestJobHandler_Submit_Success(t *testing.T) {
	var captured lifecycle.SubmissionRequest
	service := &mockJobService{
		submitFunc: func(ctx context.Context, req lifecycle.SubmissionRequest) (*models.Job, error) {
			captured = req
			return &models.Job{ID: 7, Status: models.StatusInProgress, Priority: req.Priority, CreatedAt: time.Now()}, nil
		},
	}
	handler := newHandler(t, service, nil, nil)

	req := httptest.NewRequest("POST", "/jobs", submitBody(t))
	rec := httptest.NewRecorder()
	handler.Submit(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rec.Code)
	}
	if len(captured.Media) != 1 || captured.Media[0].URI != "file:///data/face.jpg" {
		t.Errorf("Service received media %+v", captured.Media)
	}

	var resp dto.JobResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 7 || resp.Status != string(models.StatusInProgress) {
		t.Errorf("Response = %+v", resp)
	}
}

func TestJobHandler_Submit_InvalidBody(t *testing.T) {
	handler := newHandler(t, &mockJobService{}, nil, nil)

	req := httptest.NewRequest("POST", "/jobs", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	handler.Submit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestJobHandler_Submit_ValidationFailure(t *testing.T) {
	service := &mockJobService{
		submitFunc: func(ctx context.Context, req lifecycle.SubmissionRequest) (*models.Job, error) {
			return nil, lifecycle.ErrNoMedia
		},
	}
	handler := newHandler(t, service, nil, nil)

	req := httptest.NewRequest("POST", "/jobs", submitBody(t))
	rec := httptest.NewRecorder()
	handler.Submit(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestJobHandler_Submit_WrongMethod(t *testing.T) {
	handler := newHandler(t, &mockJobService{}, nil, nil)

	req := httptest.NewRequest("GET", "/jobs", nil)
	rec := httptest.NewRecorder()
	handler.Submit(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestJobHandler_Status_LiveJob(t *testing.T) {
	service := &mockJobService{
		jobFunc: func(jobID int64) *models.Job {
			return &models.Job{ID: jobID, Status: models.StatusInProgress, CurrentTask: 1, CreatedAt: time.Now()}
		},
	}
	handler := newHandler(t, service, nil, nil)

	req := httptest.NewRequest("GET", "/jobs/status/12", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	var resp dto.JobResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 12 || resp.CurrentTask != 1 {
		t.Errorf("Response = %+v", resp)
	}
}

func TestJobHandler_Status_FallsBackToCache(t *testing.T) {
	cache := &mockStatusReader{
		getFunc: func(ctx context.Context, jobID int64) (models.JobStatus, error) {
			return models.StatusComplete, nil
		},
	}
	handler := newHandler(t, &mockJobService{}, cache, nil)

	req := httptest.NewRequest("GET", "/jobs/status/12", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	var resp dto.JobResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(models.StatusComplete) {
		t.Errorf("Response = %+v", resp)
	}
}

func TestJobHandler_Status_NotFound(t *testing.T) {
	handler := newHandler(t, &mockJobService{}, nil, nil)

	req := httptest.NewRequest("GET", "/jobs/status/99", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestJobHandler_Status_InvalidID(t *testing.T) {
	handler := newHandler(t, &mockJobService{}, nil, nil)

	req := httptest.NewRequest("GET", "/jobs/status/abc", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestJobHandler_Cancel_ReportsAcceptance(t *testing.T) {
	accepted := true
	service := &mockJobService{
		cancelFunc: func(ctx context.Context, jobID int64) (bool, error) {
			return accepted, nil
		},
	}
	handler := newHandler(t, service, nil, nil)

	for _, want := range []bool{true, false} {
		accepted = want
		req := httptest.NewRequest("POST", "/jobs/cancel/5", nil)
		rec := httptest.NewRecorder()
		handler.Cancel(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rec.Code)
		}
		var resp dto.CancelResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Accepted != want {
			t.Errorf("Accepted = %v, want %v", resp.Accepted, want)
		}
	}
}

func TestJobHandler_Cancel_UnknownJob(t *testing.T) {
	service := &mockJobService{
		cancelFunc: func(ctx context.Context, jobID int64) (bool, error) {
			return false, lifecycle.ErrUnknownJob
		},
	}
	handler := newHandler(t, service, nil, nil)

	req := httptest.NewRequest("POST", "/jobs/cancel/5", nil)
	rec := httptest.NewRecorder()
	handler.Cancel(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestJobHandler_Resubmit_Success(t *testing.T) {
	handler := newHandler(t, &mockJobService{}, nil, nil)

	req := httptest.NewRequest("POST", "/jobs/resubmit/5", nil)
	rec := httptest.NewRecorder()
	handler.Resubmit(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", rec.Code)
	}
	var resp dto.JobResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 6 {
		t.Errorf("Response = %+v", resp)
	}
}
