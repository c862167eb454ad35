package properties

import (
	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/models"
)

// Resolver computes the effective per-(action, media) property map by
// overlaying the five cascade tiers in ascending priority. It also threads
// the adaptive frame-interval state machine through the merge so video
// segmenting can reconcile FRAME_INTERVAL against FRAME_RATE_CAP.
type Resolver struct {
	logger *zap.Logger
}

func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve flattens algorithm defaults, action properties, job properties,
// per-algorithm job overrides and media properties into one map. Later
// tiers overwrite same-named keys from earlier tiers.
func (r *Resolver) Resolve(job *models.Job, action models.Action, medium *models.Media) (map[string]string, *AdaptiveFrameIntervalState) {
	state := NewAdaptiveFrameIntervalState(r.logger)
	combined := make(map[string]string)

	overlay(combined, job.SystemProps.Props)
	overlay(combined, action.Algorithm.DefaultProps)

	overlay(combined, action.Props)
	state.Observe(LevelAction, action.Props)

	overlay(combined, job.JobProps)
	state.Observe(LevelJob, job.JobProps)

	if algProps, ok := job.AlgorithmProps[action.Algorithm.Name]; ok {
		overlay(combined, algProps)
		state.Observe(LevelAlgorithm, algProps)
	}

	if medium != nil {
		overlay(combined, medium.MediaProps)
		state.Observe(LevelMedia, medium.MediaProps)
	}

	return combined, state
}

// ActionAppliesTo reports whether an action's algorithm can run against the
// given medium. Unknown media never matches; derivative media only
// participates in tasks at or after its creation task.
func (r *Resolver) ActionAppliesTo(action models.Action, medium *models.Media, taskIdx int) bool {
	if medium == nil || medium.Type == models.MediaUnknown {
		return false
	}
	if medium.IsDerivative() && taskIdx < medium.CreationTask {
		return false
	}
	return action.Algorithm.Supports(medium.Type)
}

// TaskAppliesTo reports whether any action of the task applies to the medium.
func (r *Resolver) TaskAppliesTo(task models.Task, medium *models.Media, taskIdx int) bool {
	for _, action := range task.Actions {
		if r.ActionAppliesTo(action, medium, taskIdx) {
			return true
		}
	}
	return false
}

func overlay(dst map[string]string, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}
