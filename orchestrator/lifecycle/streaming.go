package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/callback"
	"mediaOrchestrator/orchestrator/kafka"
	"mediaOrchestrator/orchestrator/models"
)

// recordActivity updates a streaming job's last-activity frame and
// timestamp from one absorbed response. Caller holds the job lock.
func (m *Manager) recordActivity(ctx context.Context, st *jobState, resp *kafka.DetectionResponse) {
	job := st.job
	frame := job.LastActivityFrame
	if resp.Video != nil && resp.Video.StopFrame > frame {
		frame = resp.Video.StopFrame
	}
	job.LastActivityFrame = frame
	job.LastActivityTime = time.Now()
	st.stalled = false

	if job.Status == models.StatusInitializing {
		job.Status = models.StatusInProgress
		m.persistBestEffort(ctx, job)
		m.cacheStatus(ctx, job)
	}
	if m.cache != nil {
		if err := m.cache.SetActivity(ctx, job.ID, frame, job.LastActivityTime); err != nil {
			m.logger.Debug("Failed to cache streaming activity",
				zap.Int64("job_id", job.ID),
				zap.Error(err),
			)
		}
	}
}

// RunHealthReporter periodically delivers grouped health reports for
// streaming jobs, one batch per distinct callback URI, until the context
// is done. A job with no activity inside stallWindow is flagged stalled in
// its report; its status is untouched.
func (m *Manager) RunHealthReporter(ctx context.Context, interval, stallWindow time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reportHealth(ctx, stallWindow)
		}
	}
}

func (m *Manager) reportHealth(ctx context.Context, stallWindow time.Duration) {
	byURI := make(map[string][]callback.HealthReport)

	m.mu.Lock()
	states := make([]*jobState, 0, len(m.jobs))
	for _, st := range m.jobs {
		states = append(states, st)
	}
	m.mu.Unlock()

	for _, st := range states {
		st.mu.Lock()
		job := st.job
		if !job.Streaming || job.Status.IsTerminal() || job.CallbackURI == "" {
			st.mu.Unlock()
			continue
		}
		stalled := time.Since(job.LastActivityTime) > stallWindow
		if stalled && !st.stalled {
			st.stalled = true
			m.logger.Warn("Streaming job stalled",
				zap.Int64("job_id", job.ID),
				zap.Time("last_activity", job.LastActivityTime),
			)
		}
		byURI[job.CallbackURI] = append(byURI[job.CallbackURI], callback.HealthReport{
			JobID:             job.ID,
			Status:            string(job.Status),
			LastActivityFrame: job.LastActivityFrame,
			LastActivityTime:  job.LastActivityTime,
			Stalled:           stalled,
		})
		st.mu.Unlock()
	}

	for uri, reports := range byURI {
		m.notifier.SendHealth(ctx, uri, reports)
	}
}
