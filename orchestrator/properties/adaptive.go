package properties

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/models"
)

// PropertyLevel ranks the cascade tier a frame property was asserted at.
type PropertyLevel int

const (
	LevelNone PropertyLevel = iota
	LevelAction
	LevelJob
	LevelAlgorithm
	LevelMedia
)

func (l PropertyLevel) String() string {
	switch l {
	case LevelAction:
		return "ACTION"
	case LevelJob:
		return "JOB"
	case LevelAlgorithm:
		return "ALGORITHM"
	case LevelMedia:
		return "MEDIA"
	default:
		return "NONE"
	}
}

// PropertyStatus records how a frame property was found at its tier. A
// property present with a non-positive numeric value is found-disabled.
type PropertyStatus int

const (
	StatusNotFound PropertyStatus = iota
	StatusFoundEnabled
	StatusFoundDisabled
)

type frameProperty struct {
	level  PropertyLevel
	status PropertyStatus
	value  float64
}

// AdaptiveFrameIntervalState tracks FRAME_INTERVAL and FRAME_RATE_CAP per
// cascade tier while the merge loop runs, then answers which of the two
// governs the effective video sampling interval.
type AdaptiveFrameIntervalState struct {
	interval frameProperty
	cap      frameProperty
	logger   *zap.Logger
}

func NewAdaptiveFrameIntervalState(logger *zap.Logger) *AdaptiveFrameIntervalState {
	return &AdaptiveFrameIntervalState{logger: logger}
}

// Observe inspects one cascade tier. Tiers must be applied in ascending
// rank; a property present at a later tier replaces the earlier state
// whether it arrives enabled or disabled. A malformed numeric value is
// logged and the previous state retained.
func (s *AdaptiveFrameIntervalState) Observe(level PropertyLevel, props map[string]string) {
	s.observeOne(&s.interval, models.PropFrameInterval, level, props)
	s.observeOne(&s.cap, models.PropFrameRateCap, level, props)
}

func (s *AdaptiveFrameIntervalState) observeOne(fp *frameProperty, key string, level PropertyLevel, props map[string]string) {
	raw, ok := props[key]
	if !ok {
		return
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		s.logger.Warn("Ignoring malformed frame property",
			zap.String("property", key),
			zap.String("value", raw),
			zap.String("level", level.String()),
		)
		return
	}
	fp.level = level
	fp.value = v
	if v > 0 {
		fp.status = StatusFoundEnabled
	} else {
		fp.status = StatusFoundDisabled
	}
}

// CapOverridesInterval reports whether the frame-rate cap beats an enabled
// frame interval: the cap must be found-enabled at a tier ranked at or
// above the interval's tier. The comparison is intentionally asymmetric; a
// cap asserted at the same tier as the interval still wins.
func (s *AdaptiveFrameIntervalState) CapOverridesInterval() bool {
	return s.cap.status == StatusFoundEnabled &&
		s.interval.status == StatusFoundEnabled &&
		s.cap.level >= s.interval.level
}

func (s *AdaptiveFrameIntervalState) IntervalEnabled() bool {
	return s.interval.status == StatusFoundEnabled
}

func (s *AdaptiveFrameIntervalState) CapEnabled() bool {
	return s.cap.status == StatusFoundEnabled
}

// EffectiveFrameInterval resolves the sampling interval for a video medium
// with the given native FPS, falling back to the system snapshot when
// neither property was asserted enabled in the cascade.
func (s *AdaptiveFrameIntervalState) EffectiveFrameInterval(sys models.SystemPropertySnapshot, fps float64) int {
	if s.CapEnabled() && (!s.IntervalEnabled() || s.cap.level >= s.interval.level) {
		return intervalFromCap(fps, s.cap.value)
	}
	if s.IntervalEnabled() {
		return int(s.interval.value)
	}
	if sys.FrameRateCap > 0 {
		return intervalFromCap(fps, sys.FrameRateCap)
	}
	if sys.SamplingInterval >= 1 {
		return sys.SamplingInterval
	}
	return 1
}

func intervalFromCap(fps, cap float64) int {
	if cap <= 0 || fps <= 0 {
		return 1
	}
	iv := int(math.Floor(fps / cap))
	if iv < 1 {
		return 1
	}
	return iv
}
