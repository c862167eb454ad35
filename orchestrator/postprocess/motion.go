package postprocess

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/models"
)

// MotionLabeler tags detections and tracks of a video medium by bounding-box
// motion relative to the track's mean box, and can drop non-moving tracks
// entirely.
type MotionLabeler struct {
	logger *zap.Logger
}

func NewMotionLabeler(logger *zap.Logger) *MotionLabeler {
	return &MotionLabeler{logger: logger}
}

func (m *MotionLabeler) Name() string { return "motion-labeler" }

func (m *MotionLabeler) Apply(ctx context.Context, job *models.Job, taskIdx int, medium *models.Media,
	props map[string]string, tracks []*models.Track) ([]*models.Track, error) {

	if medium.Type != models.MediaVideo || !boolProp(props, models.PropMovingLabelsEnabled) {
		return tracks, nil
	}

	maxIou := floatProp(props, models.PropMovingMaxIou, 0.1)
	minDetections := intProp(props, models.PropMovingMinDetections, 1)
	movingOnly := boolProp(props, models.PropMovingTracksOnly)

	out := make([]*models.Track, 0, len(tracks))
	for _, t := range tracks {
		labeled, moving := m.labelTrack(t, maxIou, minDetections)
		if movingOnly && !moving {
			continue
		}
		out = append(out, labeled)
	}
	return out, nil
}

// labelTrack tags each detection MOVING when its IoU with the track's mean
// box is at or below maxIou (inclusive boundary); a zero-area box never
// counts as moving. The track is MOVING when at least minDetections
// detections are.
func (m *MotionLabeler) labelTrack(t *models.Track, maxIou float64, minDetections int) (*models.Track, bool) {
	mean := meanBox(t.Detections)

	movingCount := 0
	dets := make([]models.Detection, len(t.Detections))
	for i, d := range t.Detections {
		moving := false
		if d.Width > 0 && d.Height > 0 {
			moving = iou(box{d.X, d.Y, d.Width, d.Height}, mean) <= maxIou
		}
		if moving {
			movingCount++
		}
		dets[i] = d
		dets[i].Props = withProp(d.Props, models.PropMoving, boolString(moving))
	}

	trackMoving := movingCount >= minDetections
	props := withProp(t.Props, models.PropMoving, boolString(trackMoving))
	return rebuildTrack(t, props, dets), trackMoving
}

type box struct {
	x, y, w, h int
}

func meanBox(dets []models.Detection) box {
	if len(dets) == 0 {
		return box{}
	}
	var sx, sy, sw, sh int
	for _, d := range dets {
		sx += d.X
		sy += d.Y
		sw += d.Width
		sh += d.Height
	}
	n := len(dets)
	return box{sx / n, sy / n, sw / n, sh / n}
}

func iou(a, b box) float64 {
	ix := max(a.x, b.x)
	iy := max(a.y, b.y)
	ix2 := min(a.x+a.w, b.x+b.w)
	iy2 := min(a.y+a.h, b.y+b.h)
	if ix2 <= ix || iy2 <= iy {
		return 0
	}
	inter := float64((ix2 - ix) * (iy2 - iy))
	union := float64(a.w*a.h+b.w*b.h) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func withProp(props map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	out[key] = value
	return out
}

func boolString(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func boolProp(props map[string]string, key string) bool {
	return strings.EqualFold(strings.TrimSpace(props[key]), "true")
}

func floatProp(props map[string]string, key string, def float64) float64 {
	raw, ok := props[key]
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return def
	}
	return v
}

func intProp(props map[string]string, key string, def int) int {
	raw, ok := props[key]
	if !ok {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}
