package postprocess

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"mediaOrchestrator/orchestrator/models"
)

func videoMedium() *models.Media {
	return &models.Media{ID: 1, Type: models.MediaVideo}
}

func movingTrack() *models.Track {
	return models.NewTrack(models.Track{
		Confidence: 0.9,
		Detections: []models.Detection{
			{FrameOffset: 0, X: 0, Y: 0, Width: 10, Height: 10, Confidence: 0.9},
			{FrameOffset: 30, X: 100, Y: 0, Width: 10, Height: 10, Confidence: 0.8},
		},
	})
}

func stationaryTrack() *models.Track {
	return models.NewTrack(models.Track{
		Confidence: 0.7,
		Detections: []models.Detection{
			{FrameOffset: 0, X: 5, Y: 5, Width: 10, Height: 10, Confidence: 0.7},
			{FrameOffset: 30, X: 5, Y: 5, Width: 10, Height: 10, Confidence: 0.6},
		},
	})
}

func TestMotionLabelerDisabledReturnsSameSlice(t *testing.T) {
	m := NewMotionLabeler(zaptest.NewLogger(t))
	in := []*models.Track{movingTrack()}

	out, err := m.Apply(context.Background(), &models.Job{}, 0, videoMedium(), nil, in)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !SameTracks(out, in) {
		t.Fatal("disabled labeler must return the input slice untouched")
	}
}

func TestMotionLabelerIgnoresNonVideo(t *testing.T) {
	m := NewMotionLabeler(zaptest.NewLogger(t))
	in := []*models.Track{movingTrack()}
	props := map[string]string{models.PropMovingLabelsEnabled: "TRUE"}

	out, err := m.Apply(context.Background(), &models.Job{}, 0,
		&models.Media{ID: 1, Type: models.MediaImage}, props, in)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !SameTracks(out, in) {
		t.Fatal("labeler applies to video media only")
	}
}

func TestMotionLabelerLabelsTracksAndDetections(t *testing.T) {
	m := NewMotionLabeler(zaptest.NewLogger(t))
	in := []*models.Track{movingTrack(), stationaryTrack()}
	props := map[string]string{models.PropMovingLabelsEnabled: "TRUE"}

	out, err := m.Apply(context.Background(), &models.Job{}, 0, videoMedium(), props, in)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d tracks, want 2", len(out))
	}
	if out[0].Props[models.PropMoving] != "TRUE" {
		t.Fatalf("displaced track labeled %q, want TRUE", out[0].Props[models.PropMoving])
	}
	if out[1].Props[models.PropMoving] != "FALSE" {
		t.Fatalf("stationary track labeled %q, want FALSE", out[1].Props[models.PropMoving])
	}
	for _, d := range out[0].Detections {
		if d.Props[models.PropMoving] != "TRUE" {
			t.Fatal("every displaced detection must carry MOVING=TRUE")
		}
	}
}

func TestMotionLabelerMaxIouBoundaryIsInclusive(t *testing.T) {
	m := NewMotionLabeler(zaptest.NewLogger(t))
	// Single detection coincides with its own mean box: IoU is exactly 1.
	track := models.NewTrack(models.Track{
		Detections: []models.Detection{{X: 0, Y: 0, Width: 10, Height: 10, Confidence: 1}},
	})
	props := map[string]string{
		models.PropMovingLabelsEnabled: "TRUE",
		models.PropMovingMaxIou:        "1.0",
	}

	out, err := m.Apply(context.Background(), &models.Job{}, 0, videoMedium(), props, []*models.Track{track})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out[0].Props[models.PropMoving] != "TRUE" {
		t.Fatal("detection at exactly the IoU threshold counts as moving")
	}

	props[models.PropMovingMaxIou] = "0.99"
	out, err = m.Apply(context.Background(), &models.Job{}, 0, videoMedium(), props, []*models.Track{track})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out[0].Props[models.PropMoving] != "FALSE" {
		t.Fatal("detection above the IoU threshold is not moving")
	}
}

func TestMotionLabelerZeroAreaNeverMoves(t *testing.T) {
	m := NewMotionLabeler(zaptest.NewLogger(t))
	track := models.NewTrack(models.Track{
		Detections: []models.Detection{{X: 0, Y: 0, Width: 0, Height: 10, Confidence: 1}},
	})
	props := map[string]string{
		models.PropMovingLabelsEnabled: "TRUE",
		models.PropMovingMaxIou:        "1.0",
	}

	out, err := m.Apply(context.Background(), &models.Job{}, 0, videoMedium(), props, []*models.Track{track})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out[0].Props[models.PropMoving] != "FALSE" {
		t.Fatal("a zero-area box never counts as moving")
	}
}

func TestMotionLabelerMovingOnlyDropsStationaryTracks(t *testing.T) {
	m := NewMotionLabeler(zaptest.NewLogger(t))
	in := []*models.Track{movingTrack(), stationaryTrack()}
	props := map[string]string{
		models.PropMovingLabelsEnabled: "TRUE",
		models.PropMovingTracksOnly:    "TRUE",
	}

	out, err := m.Apply(context.Background(), &models.Job{}, 0, videoMedium(), props, in)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d tracks, want only the moving one", len(out))
	}
	if out[0].Props[models.PropMoving] != "TRUE" {
		t.Fatal("surviving track must be the moving one")
	}
}

func TestMotionLabelerMinDetectionsControlsTrackLabel(t *testing.T) {
	m := NewMotionLabeler(zaptest.NewLogger(t))
	props := map[string]string{
		models.PropMovingLabelsEnabled: "TRUE",
		models.PropMovingMinDetections: "3",
	}

	out, err := m.Apply(context.Background(), &models.Job{}, 0, videoMedium(), props,
		[]*models.Track{movingTrack()})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out[0].Props[models.PropMoving] != "FALSE" {
		t.Fatal("track with fewer moving detections than the minimum is not moving")
	}
}

func TestMotionLabelerCarriesExemplarThroughRebuild(t *testing.T) {
	m := NewMotionLabeler(zaptest.NewLogger(t))
	in := movingTrack()
	wantFrame := in.Exemplar.FrameOffset
	props := map[string]string{models.PropMovingLabelsEnabled: "TRUE"}

	out, err := m.Apply(context.Background(), &models.Job{}, 0, videoMedium(), props,
		[]*models.Track{in})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	got := out[0].Exemplar
	if got.FrameOffset != wantFrame {
		t.Fatalf("exemplar frame = %d, want %d", got.FrameOffset, wantFrame)
	}
	if got.Props[models.PropMoving] == "" {
		t.Fatal("carried exemplar must be the rebuilt detection, not the original")
	}
}
