package callback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestSendSummaryPostDeliversBody(t *testing.T) {
	var (
		gotMethod string
		gotType   string
		got       SummaryReport
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	s := NewSender(zaptest.NewLogger(t))
	report := SummaryReport{JobID: 12, Status: "COMPLETE", TrackCount: 3}
	if err := s.SendSummary(context.Background(), http.MethodPost, srv.URL, report); err != nil {
		t.Fatalf("send summary: %v", err)
	}
	if gotMethod != http.MethodPost || gotType != "application/json" {
		t.Fatalf("method/content-type = %s/%s", gotMethod, gotType)
	}
	if got != report {
		t.Fatalf("delivered report = %+v, want %+v", got, report)
	}
}

func TestSendSummaryGetAppendsQueryParams(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
	}))
	defer srv.Close()

	s := NewSender(zaptest.NewLogger(t))
	report := SummaryReport{JobID: 12, Status: "COMPLETE"}
	if err := s.SendSummary(context.Background(), http.MethodGet, srv.URL+"/done?source=test", report); err != nil {
		t.Fatalf("send summary: %v", err)
	}
	req, err := http.NewRequest(http.MethodGet, gotURL, nil)
	if err != nil {
		t.Fatalf("parse delivered url: %v", err)
	}
	q := req.URL.Query()
	if q.Get("jobid") != "12" || q.Get("status") != "COMPLETE" || q.Get("source") != "test" {
		t.Fatalf("query = %v", q)
	}
}

func TestSendHealthPostsBatch(t *testing.T) {
	var got []HealthReport
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	s := NewSender(zaptest.NewLogger(t))
	reports := []HealthReport{
		{JobID: 1, Status: "IN_PROGRESS", LastActivityFrame: 90},
		{JobID: 2, Status: "IN_PROGRESS", Stalled: true},
	}
	if err := s.SendHealth(context.Background(), srv.URL, reports); err != nil {
		t.Fatalf("send health: %v", err)
	}
	if len(got) != 2 || got[1].JobID != 2 || !got[1].Stalled {
		t.Fatalf("delivered batch = %+v", got)
	}
}

func TestNonSuccessStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewSender(zaptest.NewLogger(t))
	if err := s.SendSummary(context.Background(), http.MethodPost, srv.URL, SummaryReport{JobID: 1}); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestUnreachableEndpointIsAnError(t *testing.T) {
	s := NewSender(zaptest.NewLogger(t))
	err := s.SendHealth(context.Background(), "http://127.0.0.1:1/health", []HealthReport{{JobID: 1}})
	if err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}
