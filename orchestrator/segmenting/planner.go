package segmenting

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/models"
)

// Plan is the segmenting decision for one (task, action, media): bounds in
// frames for video, in milliseconds otherwise.
type Plan struct {
	TargetLength     int
	MinLength        int
	SamplingInterval int
	MinGap           int
}

// Planner turns the system snapshot plus one resolved property map into a
// Plan. Constant- and variable-frame-rate video use distinct length
// properties.
type Planner struct {
	logger *zap.Logger
}

func NewPlanner(logger *zap.Logger) *Planner {
	return &Planner{logger: logger}
}

func (p *Planner) Plan(sys models.SystemPropertySnapshot, medium *models.Media, props map[string]string) Plan {
	plan := Plan{
		TargetLength:     sys.TargetSegmentLength,
		MinLength:        sys.MinSegmentLength,
		SamplingInterval: sys.SamplingInterval,
		MinGap:           sys.MinGapBetweenSegments,
	}

	targetKey, minKey := models.PropTargetSegmentLength, models.PropMinSegmentLength
	if medium.Type == models.MediaVideo && !hasConstantFrameRate(medium) {
		targetKey, minKey = models.PropVfrTargetSegmentLength, models.PropVfrMinSegmentLength
		plan.TargetLength = sys.VfrTargetSegmentLength
		plan.MinLength = sys.VfrMinSegmentLength
	}

	plan.TargetLength = p.intProp(props, targetKey, plan.TargetLength)
	plan.MinLength = p.intProp(props, minKey, plan.MinLength)
	plan.MinGap = p.intProp(props, models.PropMinGapBetweenSegments, plan.MinGap)

	interval := p.intProp(props, models.PropFrameInterval, plan.SamplingInterval)
	if interval < 1 {
		p.logger.Warn("Rejecting non-positive sampling interval",
			zap.Int("interval", interval),
			zap.Int("fallback", sys.SamplingInterval),
		)
		interval = sys.SamplingInterval
		if interval < 1 {
			interval = 1
		}
	}
	plan.SamplingInterval = interval

	if plan.TargetLength < 1 {
		plan.TargetLength = 1
	}
	if plan.MinLength < 0 {
		plan.MinLength = 0
	}
	if plan.MinGap < 0 {
		plan.MinGap = 0
	}
	return plan
}

func (p *Planner) intProp(props map[string]string, key string, def int) int {
	raw, ok := props[key]
	if !ok {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.logger.Warn("Falling back to system default for malformed property",
			zap.String("property", key),
			zap.String("value", raw),
			zap.Int("default", def),
		)
		return def
	}
	return v
}

func hasConstantFrameRate(medium *models.Media) bool {
	return strings.EqualFold(medium.Meta(models.MetaHasConstantRate), "true")
}
