package postprocess

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/models"
	"mediaOrchestrator/orchestrator/properties"
)

// PostProcessor transforms one action's completed track set for a medium.
// Returning the input slice unchanged (same reference) signals that no
// persistence is needed.
type PostProcessor interface {
	Name() string
	Apply(ctx context.Context, job *models.Job, taskIdx int, medium *models.Media,
		props map[string]string, tracks []*models.Track) ([]*models.Track, error)
}

// TrackAccess is the chain's view of the track store.
type TrackAccess interface {
	Tracks(jobID int64, taskIdx int, mediaID int64) []*models.Track
	Replace(jobID int64, taskIdx int, mediaID int64, tracks []*models.Track)
}

// Chain runs the ordered post-processors over a task's track set after all
// its work units complete and before the next task starts.
type Chain struct {
	procs    []PostProcessor
	store    TrackAccess
	resolver *properties.Resolver
	logger   *zap.Logger
}

func NewChain(store TrackAccess, resolver *properties.Resolver, logger *zap.Logger, procs ...PostProcessor) *Chain {
	return &Chain{procs: procs, store: store, resolver: resolver, logger: logger}
}

// Run applies the chain per (medium, action) for one completed task. A
// post-processor failure keeps the unprocessed tracks and records a job
// warning; it never loses the track set.
func (c *Chain) Run(ctx context.Context, job *models.Job, taskIdx int) {
	if taskIdx < 0 || taskIdx >= len(job.Pipeline.Tasks) {
		return
	}
	task := job.Pipeline.Tasks[taskIdx]

	for _, medium := range job.Media {
		if medium.Failed {
			continue
		}
		all := c.store.Tracks(job.ID, taskIdx, medium.ID)
		if len(all) == 0 {
			continue
		}

		byAction := make(map[int][]*models.Track)
		for _, t := range all {
			byAction[t.ActionIdx] = append(byAction[t.ActionIdx], t)
		}
		actionIdxs := make([]int, 0, len(byAction))
		for idx := range byAction {
			actionIdxs = append(actionIdxs, idx)
		}
		sort.Ints(actionIdxs)

		changed := false
		var result []*models.Track
		for _, actionIdx := range actionIdxs {
			group := byAction[actionIdx]
			if actionIdx < len(task.Actions) {
				props, _ := c.resolver.Resolve(job, task.Actions[actionIdx], medium)
				for _, proc := range c.procs {
					out, err := proc.Apply(ctx, job, taskIdx, medium, props, group)
					if err != nil {
						c.logger.Warn("Post-processor failed; keeping unprocessed tracks",
							zap.String("processor", proc.Name()),
							zap.Int64("job_id", job.ID),
							zap.Int64("media_id", medium.ID),
							zap.Error(err),
						)
						job.AddWarning(medium.ID, taskIdx, proc.Name()+": "+err.Error())
						continue
					}
					if !SameTracks(out, group) {
						changed = true
					}
					group = out
				}
			}
			result = append(result, group...)
		}

		if changed {
			c.store.Replace(job.ID, taskIdx, medium.ID, result)
		}
	}
}

// SameTracks reports whether two track slices are the same slice, the
// no-op signal post-processors use.
func SameTracks(a, b []*models.Track) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}

// rebuildTrack clones a track with replacement detections and properties
// while carrying the already-chosen exemplar over to its rebuilt
// counterpart; the exemplar is never re-derived from the policy.
func rebuildTrack(t *models.Track, props map[string]string, dets []models.Detection) *models.Track {
	out := *t
	out.Props = props
	out.Detections = dets
	for i := range t.Detections {
		if t.Exemplar.Compare(t.Detections[i]) == 0 {
			out.Exemplar = dets[i]
			break
		}
	}
	return &out
}
