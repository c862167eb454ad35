package response

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/models"
)

// QualityFilter thresholds detections and tracks on confidence or a named
// numeric property. A filter without a configured threshold accepts
// everything. Filters are built per response; the flood guard allows at
// most one unparseable-value warning per filter.
type QualityFilter struct {
	threshold    float64
	hasThreshold bool
	selector     string
	warned       bool
	logger       *zap.Logger
}

// NewQualityFilter reads QUALITY_THRESHOLD and QUALITY_SELECTION_PROPERTY
// from a resolved property map.
func NewQualityFilter(props map[string]string, logger *zap.Logger) *QualityFilter {
	f := &QualityFilter{selector: models.ConfidenceSelector, logger: logger}
	if sel, ok := props[models.PropQualitySelection]; ok && strings.TrimSpace(sel) != "" {
		f.selector = strings.TrimSpace(sel)
	}
	raw, ok := props[models.PropQualityThreshold]
	if !ok || strings.TrimSpace(raw) == "" {
		return f
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		logger.Warn("Ignoring malformed quality threshold", zap.String("value", raw))
		return f
	}
	f.threshold = v
	f.hasThreshold = true
	return f
}

// Selector returns the quality-selection property name.
func (f *QualityFilter) Selector() string { return f.selector }

// UsesConfidence reports whether the selector is the literal confidence.
func (f *QualityFilter) UsesConfidence() bool {
	return strings.EqualFold(f.selector, models.ConfidenceSelector)
}

// AcceptDetection reports whether a detection passes. A value exactly equal
// to the threshold passes. A detection lacking a parseable value for a
// non-confidence selector fails.
func (f *QualityFilter) AcceptDetection(d models.Detection) bool {
	if !f.hasThreshold {
		return true
	}
	v, ok := d.QualityValue(f.selector)
	if !ok {
		f.warnOnce("detection")
		return false
	}
	return v >= f.threshold
}

// AcceptTrack applies the track-level rule: a track is dropped only when
// the selection property is actually present on the track, so an absent
// property never fails the filter. With the confidence selector the
// track's confidence is always present.
func (f *QualityFilter) AcceptTrack(confidence float64, props map[string]string) bool {
	if !f.hasThreshold {
		return true
	}
	if f.UsesConfidence() {
		return confidence >= f.threshold
	}
	raw, ok := props[f.selector]
	if !ok {
		return true
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		f.warnOnce("track")
		return false
	}
	return v >= f.threshold
}

func (f *QualityFilter) warnOnce(scope string) {
	if f.warned {
		return
	}
	f.warned = true
	f.logger.Warn("Quality selection property missing or not numeric; failing filter",
		zap.String("property", f.selector),
		zap.String("scope", scope),
	)
}
