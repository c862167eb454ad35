package segmenting

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"mediaOrchestrator/orchestrator/kafka"
	"mediaOrchestrator/orchestrator/models"
)

var ErrUnsupportedMediaType = errors.New("unsupported media type")

// Segmenter turns one (medium, action) pair into bounded work units.
// Implementations are selected by medium type through ForMediaType; the
// switch there is the single place a new medium type must be added.
type Segmenter interface {
	Segment(job *models.Job, medium *models.Media, taskIdx, actionIdx int,
		props map[string]string, plan Plan, prev []*models.Track) ([]*kafka.WorkUnit, error)
}

// ForMediaType selects the segmenter for a medium type.
func ForMediaType(t models.MediaType) (Segmenter, error) {
	switch t {
	case models.MediaVideo:
		return videoSegmenter{}, nil
	case models.MediaImage:
		return imageSegmenter{}, nil
	case models.MediaAudio:
		return audioSegmenter{}, nil
	case models.MediaGeneric:
		return genericSegmenter{}, nil
	case models.MediaUnknown:
		return nil, ErrUnsupportedMediaType
	default:
		return nil, ErrUnsupportedMediaType
	}
}

func newUnit(job *models.Job, medium *models.Media, taskIdx, actionIdx int, props map[string]string) *kafka.WorkUnit {
	return &kafka.WorkUnit{
		CorrelationID: uuid.New().String(),
		JobID:         job.ID,
		MediaID:       medium.ID,
		TaskIdx:       taskIdx,
		ActionIdx:     actionIdx,
		Priority:      job.Priority,
		MediaURI:      medium.URI,
		MediaType:     string(medium.Type),
		Props:         props,
	}
}

type frameRange struct {
	begin int
	end   int
}

type videoSegmenter struct{}

// Segment partitions a video (or, in feed-forward mode, the prior tracks'
// frame ranges) into segments honoring the plan's target length, minimum
// length and minimum inter-segment gap.
func (videoSegmenter) Segment(job *models.Job, medium *models.Media, taskIdx, actionIdx int,
	props map[string]string, plan Plan, prev []*models.Track) ([]*kafka.WorkUnit, error) {

	fps := metaFloat(medium, models.MetaFPS)
	frameCount := metaInt(medium, models.MetaFrameCount)
	if frameCount <= 0 {
		return nil, fmt.Errorf("video medium %d has no %s metadata", medium.ID, models.MetaFrameCount)
	}

	var ranges []frameRange
	if len(prev) == 0 {
		ranges = []frameRange{{0, frameCount - 1}}
	} else {
		ranges = mergeTrackRanges(prev, plan.MinGap)
	}

	var units []*kafka.WorkUnit
	for _, r := range ranges {
		for _, seg := range chunkRange(r, plan.TargetLength, plan.MinLength) {
			u := newUnit(job, medium, taskIdx, actionIdx, props)
			u.StartFrame = seg.begin
			u.StopFrame = seg.end
			u.StartTime = frameToMs(seg.begin, fps)
			u.StopTime = frameToMs(seg.end, fps)
			if len(prev) > 0 {
				u.FeedForward = detectionsInRange(prev, seg)
			}
			units = append(units, u)
		}
	}
	return units, nil
}

// mergeTrackRanges collapses prior-track frame ranges separated by at most
// minGap frames into contiguous ranges, sorted ascending.
func mergeTrackRanges(tracks []*models.Track, minGap int) []frameRange {
	ranges := make([]frameRange, 0, len(tracks))
	for _, t := range tracks {
		ranges = append(ranges, frameRange{t.StartFrame, t.EndFrame})
	}
	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].begin != ranges[j].begin {
			return ranges[i].begin < ranges[j].begin
		}
		return ranges[i].end < ranges[j].end
	})

	merged := ranges[:1]
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.begin-last.end <= minGap {
			if r.end > last.end {
				last.end = r.end
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// chunkRange splits one range into target-length segments. A trailing
// segment shorter than minLength is absorbed into its predecessor.
func chunkRange(r frameRange, target, min int) []frameRange {
	if target < 1 {
		target = 1
	}
	var segs []frameRange
	for begin := r.begin; begin <= r.end; begin += target {
		end := begin + target - 1
		if end > r.end {
			end = r.end
		}
		segs = append(segs, frameRange{begin, end})
	}
	if len(segs) > 1 {
		last := segs[len(segs)-1]
		if last.end-last.begin+1 < min {
			segs[len(segs)-2].end = last.end
			segs = segs[:len(segs)-1]
		}
	}
	return segs
}

func detectionsInRange(tracks []*models.Track, seg frameRange) []kafka.FeedForwardDetection {
	var out []kafka.FeedForwardDetection
	for _, t := range tracks {
		for _, d := range t.Detections {
			if d.FrameOffset < seg.begin || d.FrameOffset > seg.end {
				continue
			}
			out = append(out, kafka.FeedForwardDetection{
				X: d.X, Y: d.Y, Width: d.Width, Height: d.Height,
				Confidence:  d.Confidence,
				FrameOffset: d.FrameOffset,
				TimeOffset:  d.TimeOffset,
				Props:       d.Props,
			})
		}
	}
	return out
}

type imageSegmenter struct{}

func (imageSegmenter) Segment(job *models.Job, medium *models.Media, taskIdx, actionIdx int,
	props map[string]string, plan Plan, prev []*models.Track) ([]*kafka.WorkUnit, error) {
	u := newUnit(job, medium, taskIdx, actionIdx, props)
	if len(prev) > 0 {
		u.FeedForward = detectionsInRange(prev, frameRange{0, 0})
	}
	return []*kafka.WorkUnit{u}, nil
}

type audioSegmenter struct{}

func (audioSegmenter) Segment(job *models.Job, medium *models.Media, taskIdx, actionIdx int,
	props map[string]string, plan Plan, prev []*models.Track) ([]*kafka.WorkUnit, error) {
	u := newUnit(job, medium, taskIdx, actionIdx, props)
	u.StartTime = 0
	if d := metaInt(medium, models.MetaDuration); d > 0 {
		u.StopTime = d
	} else {
		u.StopTime = -1
	}
	return []*kafka.WorkUnit{u}, nil
}

type genericSegmenter struct{}

func (genericSegmenter) Segment(job *models.Job, medium *models.Media, taskIdx, actionIdx int,
	props map[string]string, plan Plan, prev []*models.Track) ([]*kafka.WorkUnit, error) {
	return []*kafka.WorkUnit{newUnit(job, medium, taskIdx, actionIdx, props)}, nil
}

func frameToMs(frame int, fps float64) int {
	if fps <= 0 {
		return 0
	}
	return int(float64(frame) / fps * 1000)
}

func metaInt(m *models.Media, key string) int {
	v, err := strconv.Atoi(m.Meta(key))
	if err != nil {
		return 0
	}
	return v
}

func metaFloat(m *models.Media, key string) float64 {
	v, err := strconv.ParseFloat(m.Meta(key), 64)
	if err != nil {
		return 0
	}
	return v
}
