package models

import (
	"sort"
	"strconv"
	"strings"
)

// Detection is one localized result inside a track. All fields except the
// artifact pair are fixed at construction; the artifact path/status are set
// later by the artifact extractor and are excluded from ordering.
type Detection struct {
	X      int
	Y      int
	Width  int
	Height int

	Confidence float64

	FrameOffset int
	TimeOffset  int

	Props map[string]string

	ArtifactPath   string
	ArtifactStatus string
}

// Compare orders detections by frame, time, confidence, box and finally the
// sorted property map. Artifact fields do not participate.
func (d Detection) Compare(o Detection) int {
	if c := cmpInt(d.FrameOffset, o.FrameOffset); c != 0 {
		return c
	}
	if c := cmpInt(d.TimeOffset, o.TimeOffset); c != 0 {
		return c
	}
	if c := cmpFloat(d.Confidence, o.Confidence); c != 0 {
		return c
	}
	if c := cmpInt(d.X, o.X); c != 0 {
		return c
	}
	if c := cmpInt(d.Y, o.Y); c != 0 {
		return c
	}
	if c := cmpInt(d.Width, o.Width); c != 0 {
		return c
	}
	if c := cmpInt(d.Height, o.Height); c != 0 {
		return c
	}
	return CompareProps(d.Props, o.Props)
}

// QualityValue extracts the value used for quality selection. The second
// return is false when the named property is absent or not numeric.
func (d Detection) QualityValue(selector string) (float64, bool) {
	if selector == "" || strings.EqualFold(selector, ConfidenceSelector) {
		return d.Confidence, true
	}
	raw, ok := d.Props[selector]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Track is an immutable reassembled result for one (media, task, action).
// A modified track is a new Track built through NewTrack.
type Track struct {
	JobID     int64
	MediaID   int64
	TaskIdx   int
	ActionIdx int

	StartFrame int
	EndFrame   int
	StartTime  int
	EndTime    int

	// MergedTaskIdx is the task index reported after task merging; equals
	// TaskIdx when no merging applies.
	MergedTaskIdx int

	Confidence float64

	Detections []Detection
	Props      map[string]string

	ExemplarPolicy string
	QualityProp    string

	// Exemplar is chosen once at construction and never recomputed.
	Exemplar Detection
}

// NewTrack builds a track, sorting its detections and deriving the exemplar
// from the policy, the quality-selection property and the detection set.
func NewTrack(t Track) *Track {
	dets := make([]Detection, len(t.Detections))
	copy(dets, t.Detections)
	sort.Slice(dets, func(i, j int) bool { return dets[i].Compare(dets[j]) < 0 })
	t.Detections = dets
	if len(dets) > 0 {
		t.Exemplar = chooseExemplar(t.ExemplarPolicy, t.QualityProp, dets)
	}
	return &t
}

// WithProps returns a copy of the track with a replacement property map.
// Detections and exemplar are carried over untouched.
func (t *Track) WithProps(props map[string]string) *Track {
	out := *t
	out.Props = props
	return &out
}

func chooseExemplar(policy, qualityProp string, dets []Detection) Detection {
	switch policy {
	case ExemplarFirst:
		return dets[0]
	case ExemplarLast:
		return dets[len(dets)-1]
	case ExemplarMiddle:
		mid := (dets[0].FrameOffset + dets[len(dets)-1].FrameOffset) / 2
		best := dets[0]
		bestDist := abs(best.FrameOffset - mid)
		for _, d := range dets[1:] {
			if dist := abs(d.FrameOffset - mid); dist < bestDist {
				best, bestDist = d, dist
			}
		}
		return best
	default: // ExemplarMaxQuality
		best := dets[0]
		bestVal, bestOk := best.QualityValue(qualityProp)
		for _, d := range dets[1:] {
			v, ok := d.QualityValue(qualityProp)
			if !ok {
				continue
			}
			if !bestOk || v > bestVal {
				best, bestVal, bestOk = d, v, true
			}
		}
		return best
	}
}

// Compare defines the total order over all track fields used for
// deterministic dedup and diffing.
func (t *Track) Compare(o *Track) int {
	if c := cmpInt64(t.JobID, o.JobID); c != 0 {
		return c
	}
	if c := cmpInt64(t.MediaID, o.MediaID); c != 0 {
		return c
	}
	if c := cmpInt(t.TaskIdx, o.TaskIdx); c != 0 {
		return c
	}
	if c := cmpInt(t.ActionIdx, o.ActionIdx); c != 0 {
		return c
	}
	if c := cmpInt(t.StartFrame, o.StartFrame); c != 0 {
		return c
	}
	if c := cmpInt(t.EndFrame, o.EndFrame); c != 0 {
		return c
	}
	if c := cmpInt(t.StartTime, o.StartTime); c != 0 {
		return c
	}
	if c := cmpInt(t.EndTime, o.EndTime); c != 0 {
		return c
	}
	if c := cmpInt(t.MergedTaskIdx, o.MergedTaskIdx); c != 0 {
		return c
	}
	if c := cmpFloat(t.Confidence, o.Confidence); c != 0 {
		return c
	}
	if c := t.Exemplar.Compare(o.Exemplar); c != 0 {
		return c
	}
	if c := CompareProps(t.Props, o.Props); c != 0 {
		return c
	}
	if c := cmpInt(len(t.Detections), len(o.Detections)); c != 0 {
		return c
	}
	for i := range t.Detections {
		if c := t.Detections[i].Compare(o.Detections[i]); c != 0 {
			return c
		}
	}
	return 0
}

// SortTracks orders a track slice by the total track order, in place.
func SortTracks(tracks []*Track) {
	sort.SliceStable(tracks, func(i, j int) bool { return tracks[i].Compare(tracks[j]) < 0 })
}

// SortedKeys returns a property map's keys in ascending order.
func SortedKeys(props map[string]string) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CompareProps orders two property maps by their sorted key/value sequences.
func CompareProps(a, b map[string]string) int {
	ka, kb := SortedKeys(a), SortedKeys(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		if c := strings.Compare(ka[i], kb[i]); c != 0 {
			return c
		}
		if c := strings.Compare(a[ka[i]], b[kb[i]]); c != 0 {
			return c
		}
	}
	return cmpInt(len(ka), len(kb))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
