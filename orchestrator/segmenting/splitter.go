package segmenting

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/kafka"
	"mediaOrchestrator/orchestrator/metrics"
	"mediaOrchestrator/orchestrator/models"
	"mediaOrchestrator/orchestrator/properties"
)

// TrackReader is the splitter's view of the track store.
type TrackReader interface {
	Tracks(jobID int64, taskIdx int, mediaID int64) []*models.Track
}

// Dispatcher sends work units to the message bus. Sending is
// fire-and-forget from the splitter's perspective; responses arrive as
// separate asynchronous events.
type Dispatcher interface {
	SendWorkUnit(ctx context.Context, topic string, unit *kafka.WorkUnit) error
}

// Splitter fans one task of a job out into work units: per medium it
// determines the feed-forward input, resolves per-action properties,
// computes the adaptive video sampling interval, asks the media-type
// segmenter for units and dispatches them.
type Splitter struct {
	resolver   *properties.Resolver
	planner    *Planner
	tracks     TrackReader
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewSplitter(resolver *properties.Resolver, planner *Planner, tracks TrackReader,
	dispatcher Dispatcher, logger *zap.Logger) *Splitter {
	return &Splitter{
		resolver:   resolver,
		planner:    planner,
		tracks:     tracks,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// SplitTask dispatches the job's current task. A failure on one medium is
// recorded against that medium and does not abort the rest of the job.
// Returns the number of work units sent.
func (s *Splitter) SplitTask(ctx context.Context, job *models.Job) (int, error) {
	taskIdx := job.CurrentTask
	if taskIdx < 0 || taskIdx >= len(job.Pipeline.Tasks) {
		return 0, fmt.Errorf("task index %d out of range for pipeline %q", taskIdx, job.Pipeline.Name)
	}
	task := job.Pipeline.Tasks[taskIdx]

	total := 0
	for _, medium := range job.Media {
		if medium.Failed {
			continue
		}
		n, err := s.splitMedium(ctx, job, task, taskIdx, medium)
		if err != nil {
			s.logger.Error("Failed to split medium",
				zap.Int64("job_id", job.ID),
				zap.Int64("media_id", medium.ID),
				zap.Int("task", taskIdx),
				zap.Error(err),
			)
			medium.Fail(err.Error())
			job.AddError(medium.ID, taskIdx, err.Error())
			continue
		}
		total += n
	}
	return total, nil
}

func (s *Splitter) splitMedium(ctx context.Context, job *models.Job, task models.Task, taskIdx int, medium *models.Media) (int, error) {
	prev := s.previousTracks(job, taskIdx, medium)

	sent := 0
	for actionIdx, action := range task.Actions {
		if !s.resolver.ActionAppliesTo(action, medium, taskIdx) {
			continue
		}

		combined, state := s.resolver.Resolve(job, action, medium)

		if medium.Type == models.MediaVideo {
			fps := metaFloat(medium, models.MetaFPS)
			interval := state.EffectiveFrameInterval(job.SystemProps, fps)
			combined[models.PropFrameInterval] = strconv.Itoa(interval)
		}

		plan := s.planner.Plan(job.SystemProps, medium, combined)

		segmenter, err := ForMediaType(medium.Type)
		if err != nil {
			return sent, err
		}
		units, err := segmenter.Segment(job, medium, taskIdx, actionIdx, combined, plan, prev)
		if err != nil {
			return sent, err
		}

		topic := kafka.DestinationTopic(string(action.Algorithm.ActionType), action.Algorithm.Name)
		for _, unit := range units {
			if err := s.dispatcher.SendWorkUnit(ctx, topic, unit); err != nil {
				return sent, fmt.Errorf("dispatch work unit: %w", err)
			}
			metrics.WorkUnitsDispatchedTotal.WithLabelValues(action.Algorithm.Name).Inc()
			sent++
		}
	}
	return sent, nil
}

// previousTracks finds the nearest earlier task applicable to the medium
// and returns its full track set; the first applicable detection task gets
// an empty set.
func (s *Splitter) previousTracks(job *models.Job, taskIdx int, medium *models.Media) []*models.Track {
	for prior := taskIdx - 1; prior >= 0; prior-- {
		if s.resolver.TaskAppliesTo(job.Pipeline.Tasks[prior], medium, prior) {
			return s.tracks.Tracks(job.ID, prior, medium.ID)
		}
	}
	return nil
}
