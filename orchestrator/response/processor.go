package response

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/kafka"
	"mediaOrchestrator/orchestrator/metrics"
	"mediaOrchestrator/orchestrator/models"
	"mediaOrchestrator/orchestrator/properties"
)

var (
	ErrUnknownMedia  = errors.New("response references unknown media")
	ErrUnknownAction = errors.New("response references unknown task or action")
	ErrEmptyResponse = errors.New("response carries no payload")
)

// TrackWriter is the processor's view of the track store.
type TrackWriter interface {
	Add(jobID int64, taskIdx int, mediaID int64, tracks []*models.Track)
}

// MediaInspector examines a medium's content and fills in its type and
// metadata. Derivative media is inspected before the enclosing response
// finishes processing.
type MediaInspector interface {
	Inspect(ctx context.Context, medium *models.Media) error
}

// MediaIDSource allocates ids for derivative media.
type MediaIDSource interface {
	NextMediaID(ctx context.Context) (int64, error)
}

// Processor converts one worker response into tracks and detections under
// quality filtering, spawning derivative media when a generic track
// signals one.
type Processor struct {
	resolver  *properties.Resolver
	store     TrackWriter
	inspector MediaInspector
	ids       MediaIDSource
	logger    *zap.Logger
}

func NewProcessor(resolver *properties.Resolver, store TrackWriter, inspector MediaInspector,
	ids MediaIDSource, logger *zap.Logger) *Processor {
	return &Processor{
		resolver:  resolver,
		store:     store,
		inspector: inspector,
		ids:       ids,
		logger:    logger,
	}
}

// Process absorbs one worker response. Errors building an individual track
// are recorded as job warnings and do not lose the rest of the response.
func (p *Processor) Process(ctx context.Context, job *models.Job, resp *kafka.DetectionResponse) error {
	medium := job.Medium(resp.MediaID)
	if medium == nil {
		return fmt.Errorf("%w: media %d", ErrUnknownMedia, resp.MediaID)
	}
	if resp.TaskIdx < 0 || resp.TaskIdx >= len(job.Pipeline.Tasks) {
		return fmt.Errorf("%w: task %d", ErrUnknownAction, resp.TaskIdx)
	}
	task := job.Pipeline.Tasks[resp.TaskIdx]
	if resp.ActionIdx < 0 || resp.ActionIdx >= len(task.Actions) {
		return fmt.Errorf("%w: action %d", ErrUnknownAction, resp.ActionIdx)
	}
	action := task.Actions[resp.ActionIdx]

	metrics.ActionProcessingSeconds.
		WithLabelValues(strconv.Itoa(resp.TaskIdx), action.Name).
		Observe(float64(resp.ProcessingTimeMs) / 1000)

	combined, _ := p.resolver.Resolve(job, action, medium)
	filter := NewQualityFilter(combined, p.logger)

	if resp.ErrorCode != "" {
		if resp.ErrorCode == kafka.ErrorCodeCancelled {
			p.logger.Debug("Work unit cancelled in flight",
				zap.Int64("job_id", job.ID),
				zap.String("correlation_id", resp.CorrelationID),
			)
		} else {
			job.AddDetectionError(models.DetectionProcessingError{
				JobID:     job.ID,
				MediaID:   resp.MediaID,
				TaskIdx:   resp.TaskIdx,
				ActionIdx: resp.ActionIdx,
				Code:      resp.ErrorCode,
				Message:   resp.ErrorMessage,
			})
		}
	}

	var (
		tracks  []*models.Track
		errored = resp.ErrorCode != "" && resp.ErrorCode != kafka.ErrorCodeCancelled
	)

	switch {
	case resp.Video != nil:
		tracks = p.videoTracks(job, resp, combined, filter)
	case resp.Audio != nil:
		tracks = p.audioTracks(job, resp, combined, filter)
	case resp.Image != nil:
		tracks = p.imageTracks(job, resp, combined, filter)
	case resp.Generic != nil:
		tracks = p.genericTracks(ctx, job, resp, combined, filter)
	default:
		// A cancelled or failed unit legitimately carries no payload.
		if resp.ErrorCode == "" {
			return ErrEmptyResponse
		}
	}

	if len(tracks) > 0 {
		p.store.Add(job.ID, resp.TaskIdx, resp.MediaID, tracks)
		metrics.TracksCreatedTotal.Add(float64(len(tracks)))
	}
	metrics.ResponsesProcessedTotal.
		WithLabelValues(string(medium.Type), strconv.FormatBool(errored)).Inc()
	return nil
}

func (p *Processor) videoTracks(job *models.Job, resp *kafka.DetectionResponse,
	combined map[string]string, filter *QualityFilter) []*models.Track {

	var out []*models.Track
	for _, tr := range resp.Video.Tracks {
		if _, ok := tr.Props[models.PropDerivativeMediaTempPath]; ok {
			job.AddWarning(resp.MediaID, resp.TaskIdx,
				"derivative media is not supported for video-sourced jobs; track discarded")
			continue
		}
		if !filter.AcceptTrack(tr.Confidence, tr.Props) {
			continue
		}

		kept := make([]models.Detection, 0, len(tr.Detections))
		for _, d := range tr.Detections {
			det := toDetection(d)
			if filter.AcceptDetection(det) {
				kept = append(kept, det)
			}
		}
		if len(kept) == 0 {
			continue
		}

		track, err := p.buildTrack(job, resp, combined, tr, kept)
		if err != nil {
			job.AddWarning(resp.MediaID, resp.TaskIdx, err.Error())
			continue
		}
		out = append(out, track)
	}
	return out
}

func (p *Processor) audioTracks(job *models.Job, resp *kafka.DetectionResponse,
	combined map[string]string, filter *QualityFilter) []*models.Track {

	var out []*models.Track
	for _, tr := range resp.Audio.Tracks {
		track, ok := p.singleDetectionTrack(job, resp, combined, filter, tr)
		if !ok {
			continue
		}
		out = append(out, track)
	}
	return out
}

func (p *Processor) imageTracks(job *models.Job, resp *kafka.DetectionResponse,
	combined map[string]string, filter *QualityFilter) []*models.Track {

	var out []*models.Track
	for _, d := range resp.Image.Detections {
		det := toDetection(d)
		if !filter.AcceptDetection(det) {
			continue
		}
		track, err := p.buildTrack(job, resp, combined, kafka.TrackResult{
			Confidence: det.Confidence,
			Props:      det.Props,
		}, []models.Detection{det})
		if err != nil {
			job.AddWarning(resp.MediaID, resp.TaskIdx, err.Error())
			continue
		}
		out = append(out, track)
	}
	return out
}

func (p *Processor) genericTracks(ctx context.Context, job *models.Job, resp *kafka.DetectionResponse,
	combined map[string]string, filter *QualityFilter) []*models.Track {

	var out []*models.Track
	for _, tr := range resp.Generic.Tracks {
		if path, ok := tr.Props[models.PropDerivativeMediaTempPath]; ok {
			id, err := p.spawnDerivativeMedia(ctx, job, resp, path)
			if err != nil {
				job.AddWarning(resp.MediaID, resp.TaskIdx,
					fmt.Sprintf("derivative media from %q not created: %v", path, err))
			} else {
				if tr.Props == nil {
					tr.Props = make(map[string]string)
				}
				tr.Props[models.PropDerivativeMediaID] = strconv.FormatInt(id, 10)
			}
		}
		track, ok := p.singleDetectionTrack(job, resp, combined, filter, tr)
		if !ok {
			continue
		}
		out = append(out, track)
	}
	return out
}

// singleDetectionTrack builds the single-detection-equivalent track used
// for audio and generic payloads.
func (p *Processor) singleDetectionTrack(job *models.Job, resp *kafka.DetectionResponse,
	combined map[string]string, filter *QualityFilter, tr kafka.TrackResult) (*models.Track, bool) {

	if !filter.AcceptTrack(tr.Confidence, tr.Props) {
		return nil, false
	}
	det := models.Detection{
		Confidence: tr.Confidence,
		TimeOffset: tr.StartTime,
		Props:      tr.Props,
	}
	if len(tr.Detections) > 0 {
		det = toDetection(tr.Detections[0])
	}
	if !filter.AcceptDetection(det) {
		return nil, false
	}
	track, err := p.buildTrack(job, resp, combined, tr, []models.Detection{det})
	if err != nil {
		job.AddWarning(resp.MediaID, resp.TaskIdx, err.Error())
		return nil, false
	}
	return track, true
}

func (p *Processor) buildTrack(job *models.Job, resp *kafka.DetectionResponse,
	combined map[string]string, tr kafka.TrackResult, dets []models.Detection) (*models.Track, error) {

	if len(dets) == 0 {
		return nil, errors.New("track has no detections")
	}
	policy := combined[models.PropExemplarPolicy]
	if policy == "" {
		policy = models.ExemplarMaxQuality
	}
	selector := models.ConfidenceSelector
	if s, ok := combined[models.PropQualitySelection]; ok && s != "" {
		selector = s
	}
	return models.NewTrack(models.Track{
		JobID:          job.ID,
		MediaID:        resp.MediaID,
		TaskIdx:        resp.TaskIdx,
		ActionIdx:      resp.ActionIdx,
		StartFrame:     tr.StartFrame,
		EndFrame:       tr.StopFrame,
		StartTime:      tr.StartTime,
		EndTime:        tr.StopTime,
		MergedTaskIdx:  resp.TaskIdx,
		Confidence:     tr.Confidence,
		Detections:     dets,
		Props:          tr.Props,
		ExemplarPolicy: policy,
		QualityProp:    selector,
	}), nil
}

// spawnDerivativeMedia creates, inspects and registers a new medium from a
// worker-supplied local path. The medium participates in all later tasks.
func (p *Processor) spawnDerivativeMedia(ctx context.Context, job *models.Job,
	resp *kafka.DetectionResponse, path string) (int64, error) {

	id, err := p.ids.NextMediaID(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate media id: %w", err)
	}
	medium := &models.Media{
		ID:           id,
		URI:          path,
		Type:         models.MediaUnknown,
		CreationTask: resp.TaskIdx,
		ParentID:     resp.MediaID,
		Metadata:     make(map[string]string),
		MediaProps:   make(map[string]string),
	}
	if err := p.inspector.Inspect(ctx, medium); err != nil {
		return 0, fmt.Errorf("inspect derivative media: %w", err)
	}
	job.Media = append(job.Media, medium)
	metrics.DerivativeMediaTotal.Inc()
	p.logger.Info("Spawned derivative media",
		zap.Int64("job_id", job.ID),
		zap.Int64("media_id", id),
		zap.Int64("parent_media_id", resp.MediaID),
		zap.String("type", string(medium.Type)),
	)
	return id, nil
}

func toDetection(d kafka.DetectionResult) models.Detection {
	return models.Detection{
		X: d.X, Y: d.Y, Width: d.Width, Height: d.Height,
		Confidence:  d.Confidence,
		FrameOffset: d.FrameOffset,
		TimeOffset:  d.TimeOffset,
		Props:       d.Props,
	}
}
