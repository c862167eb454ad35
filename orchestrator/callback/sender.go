package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/metrics"
)

// HealthReport is one streaming job's entry in a periodic health batch.
type HealthReport struct {
	JobID             int64     `json:"job_id"`
	Status            string    `json:"status"`
	LastActivityFrame int       `json:"last_activity_frame"`
	LastActivityTime  time.Time `json:"last_activity_time"`
	Stalled           bool      `json:"stalled"`
}

// SummaryReport is the per-job completion notification.
type SummaryReport struct {
	JobID          int64  `json:"job_id"`
	Status         string `json:"status"`
	TrackCount     int    `json:"track_count"`
	WarningCount   int    `json:"warning_count"`
	ErrorCount     int    `json:"error_count"`
	DetectionError int    `json:"detection_error_count"`
	OutputEnabled  bool   `json:"output_enabled"`
}

const defaultTimeout = 10 * time.Second

// Sender delivers health and summary callbacks over HTTP. Delivery failure
// is logged and counted, never retried synchronously, and never blocks job
// progress.
type Sender struct {
	client *http.Client
	logger *zap.Logger
}

func NewSender(logger *zap.Logger) *Sender {
	return &Sender{
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger,
	}
}

// SendHealth posts one batch of health reports to a shared callback URI.
func (s *Sender) SendHealth(ctx context.Context, uri string, reports []HealthReport) error {
	if err := s.post(ctx, uri, reports); err != nil {
		metrics.CallbackFailuresTotal.Inc()
		s.logger.Warn("Health callback delivery failed",
			zap.String("uri", uri),
			zap.Int("reports", len(reports)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// SendSummary delivers a job's summary report. GET callbacks receive the
// job id as a query parameter; POST callbacks receive the full report body.
func (s *Sender) SendSummary(ctx context.Context, method, uri string, report SummaryReport) error {
	var err error
	if method == http.MethodGet {
		err = s.get(ctx, uri, report)
	} else {
		err = s.post(ctx, uri, report)
	}
	if err != nil {
		metrics.CallbackFailuresTotal.Inc()
		s.logger.Warn("Summary callback delivery failed",
			zap.String("uri", uri),
			zap.Int64("job_id", report.JobID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Sender) post(ctx context.Context, uri string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *Sender) get(ctx context.Context, uri string, report SummaryReport) error {
	u, err := url.Parse(uri)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("jobid", strconv.FormatInt(report.JobID, 10))
	q.Set("status", report.Status)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	return s.do(req)
}

func (s *Sender) do(req *http.Request) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned %s", resp.Status)
	}
	return nil
}
