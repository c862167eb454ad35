package postprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"mediaOrchestrator/orchestrator/models"
)

// RollUpGroup maps member values to one canonical roll-up name.
type RollUpGroup struct {
	RollUp  string   `json:"rollUp"`
	Members []string `json:"members"`
}

// RollUpEntry declares the roll-up treatment of one property.
type RollUpEntry struct {
	PropertyToProcess    string        `json:"propertyToProcess"`
	OriginalPropertyCopy string        `json:"originalPropertyCopy,omitempty"`
	Groups               []RollUpGroup `json:"groups"`
}

type rollUpTable struct {
	entries []RollUpEntry
	// lookup[property][member] = canonical roll-up name
	lookup map[string]map[string]string
	copies map[string]string
}

const maxCachedTables = 32

// RollUpApplier canonicalizes detection and track property values through
// an externally loaded mapping table. Tables are cached by file path;
// concurrent loads of the same uncached path collapse to a single read.
type RollUpApplier struct {
	logger *zap.Logger

	flight singleflight.Group
	mu     sync.Mutex
	cache  map[string]*rollUpTable
}

func NewRollUpApplier(logger *zap.Logger) *RollUpApplier {
	return &RollUpApplier{
		logger: logger,
		cache:  make(map[string]*rollUpTable),
	}
}

func (r *RollUpApplier) Name() string { return "roll-up" }

// Apply rewrites matching property values to their group's roll-up name,
// optionally duplicating the original value under a second property. The
// original slice is returned unchanged (same reference) when nothing was
// rewritten.
func (r *RollUpApplier) Apply(ctx context.Context, job *models.Job, taskIdx int, medium *models.Media,
	props map[string]string, tracks []*models.Track) ([]*models.Track, error) {

	path := props[models.PropRollUpFile]
	if path == "" {
		return tracks, nil
	}
	table, err := r.load(path)
	if err != nil {
		return tracks, err
	}

	changedAny := false
	out := make([]*models.Track, len(tracks))
	for i, t := range tracks {
		rolled, changed := rollUpTrack(t, table)
		if changed {
			changedAny = true
		}
		out[i] = rolled
	}
	if !changedAny {
		return tracks, nil
	}
	return out, nil
}

func (r *RollUpApplier) load(path string) (*rollUpTable, error) {
	r.mu.Lock()
	if t, ok := r.cache[path]; ok {
		r.mu.Unlock()
		return t, nil
	}
	r.mu.Unlock()

	v, err, _ := r.flight.Do(path, func() (interface{}, error) {
		t, err := loadRollUpTable(path)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		if len(r.cache) >= maxCachedTables {
			for k := range r.cache {
				delete(r.cache, k)
				break
			}
		}
		r.cache[path] = t
		r.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rollUpTable), nil
}

// loadRollUpTable reads and validates a roll-up file. The two invariants:
// no property name may serve as both a roll-up target and a copy
// destination, and no two entries may copy into the same destination.
func loadRollUpTable(path string) (*rollUpTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roll-up file: %w", err)
	}
	var entries []RollUpEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse roll-up file %s: %w", path, err)
	}

	t := &rollUpTable{
		entries: entries,
		lookup:  make(map[string]map[string]string),
		copies:  make(map[string]string),
	}
	rollUpNames := make(map[string]bool)
	copyDests := make(map[string]string)

	for _, e := range entries {
		if e.PropertyToProcess == "" {
			return nil, fmt.Errorf("roll-up file %s: entry missing propertyToProcess", path)
		}
		if e.OriginalPropertyCopy != "" {
			if prior, ok := copyDests[e.OriginalPropertyCopy]; ok && prior != e.PropertyToProcess {
				return nil, fmt.Errorf("roll-up file %s: properties %s and %s both copy into %s",
					path, prior, e.PropertyToProcess, e.OriginalPropertyCopy)
			}
			copyDests[e.OriginalPropertyCopy] = e.PropertyToProcess
			t.copies[e.PropertyToProcess] = e.OriginalPropertyCopy
		}
		members := t.lookup[e.PropertyToProcess]
		if members == nil {
			members = make(map[string]string)
			t.lookup[e.PropertyToProcess] = members
		}
		for _, g := range e.Groups {
			rollUpNames[g.RollUp] = true
			for _, m := range g.Members {
				members[m] = g.RollUp
			}
		}
	}
	for dest := range copyDests {
		if rollUpNames[dest] {
			return nil, fmt.Errorf("roll-up file %s: %s is both a roll-up name and a copy destination", path, dest)
		}
	}
	return t, nil
}

func rollUpTrack(t *models.Track, table *rollUpTable) (*models.Track, bool) {
	props, propsChanged := rollUpProps(t.Props, table)

	detsChanged := false
	dets := make([]models.Detection, len(t.Detections))
	for i, d := range t.Detections {
		dets[i] = d
		if p, changed := rollUpProps(d.Props, table); changed {
			dets[i].Props = p
			detsChanged = true
		}
	}

	if !propsChanged && !detsChanged {
		return t, false
	}
	if !propsChanged {
		props = t.Props
	}
	return rebuildTrack(t, props, dets), true
}

// rollUpProps rewrites one property map. Returns the original map untouched
// when no value matched.
func rollUpProps(props map[string]string, table *rollUpTable) (map[string]string, bool) {
	var out map[string]string
	for prop, members := range table.lookup {
		v, ok := props[prop]
		if !ok {
			continue
		}
		rolled, ok := members[v]
		if !ok || rolled == v {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(props)+1)
			for k, val := range props {
				out[k] = val
			}
		}
		out[prop] = rolled
		if dest, hasCopy := table.copies[prop]; hasCopy {
			out[dest] = v
		}
	}
	if out == nil {
		return props, false
	}
	return out, true
}
