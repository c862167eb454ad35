package segmenting

import (
	"testing"

	"mediaOrchestrator/orchestrator/models"
)

func testJob() *models.Job {
	return &models.Job{ID: 1, Priority: 4}
}

func TestVideoSegmenterWholeMediumPartition(t *testing.T) {
	medium := cfrVideo() // 900 frames
	plan := Plan{TargetLength: 300, MinLength: 20, SamplingInterval: 1, MinGap: 10}

	units, err := videoSegmenter{}.Segment(testJob(), medium, 0, 0, map[string]string{}, plan, nil)
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	bounds := [][2]int{{0, 299}, {300, 599}, {600, 899}}
	for i, u := range units {
		if u.StartFrame != bounds[i][0] || u.StopFrame != bounds[i][1] {
			t.Errorf("unit %d = [%d,%d], want %v", i, u.StartFrame, u.StopFrame, bounds[i])
		}
	}
}

func TestVideoSegmenterMergesShortTrailingSegment(t *testing.T) {
	medium := cfrVideo()
	medium.Metadata[models.MetaFrameCount] = "310"
	plan := Plan{TargetLength: 300, MinLength: 20, SamplingInterval: 1}

	units, err := videoSegmenter{}.Segment(testJob(), medium, 0, 0, map[string]string{}, plan, nil)
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units, want trailing 10 frames merged into one", len(units))
	}
	if units[0].StopFrame != 309 {
		t.Fatalf("stop frame = %d, want 309", units[0].StopFrame)
	}
}

func TestVideoSegmenterMissingFrameCount(t *testing.T) {
	medium := &models.Media{ID: 2, Type: models.MediaVideo, Metadata: map[string]string{}, CreationTask: -1}

	_, err := videoSegmenter{}.Segment(testJob(), medium, 0, 0, map[string]string{}, Plan{TargetLength: 100}, nil)
	if err == nil {
		t.Fatal("expected error for video without frame count")
	}
}

func feedForwardTracks() []*models.Track {
	mk := func(start, end int) *models.Track {
		dets := []models.Detection{
			{FrameOffset: start, Confidence: 0.9},
			{FrameOffset: end, Confidence: 0.8},
		}
		return models.NewTrack(models.Track{
			JobID: 1, MediaID: 1, StartFrame: start, EndFrame: end, Detections: dets,
		})
	}
	return []*models.Track{mk(0, 50), mk(55, 90), mk(400, 450)}
}

func TestVideoSegmenterFeedForwardMergesByMinGap(t *testing.T) {
	medium := cfrVideo()
	plan := Plan{TargetLength: 300, MinLength: 20, SamplingInterval: 1, MinGap: 10}

	units, err := videoSegmenter{}.Segment(testJob(), medium, 1, 0, map[string]string{}, plan, feedForwardTracks())
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	// Gap 50->55 is within MinGap and merges; gap 90->400 does not.
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	if units[0].StartFrame != 0 || units[0].StopFrame != 90 {
		t.Errorf("unit 0 = [%d,%d], want [0,90]", units[0].StartFrame, units[0].StopFrame)
	}
	if units[1].StartFrame != 400 || units[1].StopFrame != 450 {
		t.Errorf("unit 1 = [%d,%d], want [400,450]", units[1].StartFrame, units[1].StopFrame)
	}
}

func TestVideoSegmenterFeedForwardCarriesOverlappingDetections(t *testing.T) {
	medium := cfrVideo()
	plan := Plan{TargetLength: 300, MinLength: 20, SamplingInterval: 1, MinGap: 10}

	units, _ := videoSegmenter{}.Segment(testJob(), medium, 1, 0, map[string]string{}, plan, feedForwardTracks())
	if len(units[0].FeedForward) != 4 {
		t.Fatalf("unit 0 carries %d detections, want 4", len(units[0].FeedForward))
	}
	if len(units[1].FeedForward) != 2 {
		t.Fatalf("unit 1 carries %d detections, want 2", len(units[1].FeedForward))
	}
}

func TestImageSegmenterSingleUnit(t *testing.T) {
	medium := &models.Media{ID: 3, Type: models.MediaImage, CreationTask: -1}

	units, err := imageSegmenter{}.Segment(testJob(), medium, 0, 0, map[string]string{"K": "v"}, Plan{}, nil)
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].Props["K"] != "v" {
		t.Fatal("unit must carry the combined property set")
	}
	if units[0].Priority != 4 {
		t.Fatalf("priority = %d, want job priority 4", units[0].Priority)
	}
}

func TestAudioSegmenterUsesDuration(t *testing.T) {
	medium := &models.Media{
		ID: 4, Type: models.MediaAudio,
		Metadata:     map[string]string{models.MetaDuration: "60000"},
		CreationTask: -1,
	}

	units, err := audioSegmenter{}.Segment(testJob(), medium, 0, 0, nil, Plan{}, nil)
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if units[0].StopTime != 60000 {
		t.Fatalf("stop time = %d, want 60000", units[0].StopTime)
	}
}

func TestForMediaTypeRejectsUnknown(t *testing.T) {
	if _, err := ForMediaType(models.MediaUnknown); err == nil {
		t.Fatal("unknown media type must not get a segmenter")
	}
	for _, mt := range []models.MediaType{models.MediaVideo, models.MediaImage, models.MediaAudio, models.MediaGeneric} {
		if _, err := ForMediaType(mt); err != nil {
			t.Errorf("media type %s: %v", mt, err)
		}
	}
}
