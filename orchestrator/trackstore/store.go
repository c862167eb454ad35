package trackstore

import (
	"sync"

	"mediaOrchestrator/orchestrator/models"
)

type key struct {
	jobID   int64
	taskIdx int
	mediaID int64
}

// Store holds the working set of tracks per (job, task, media). It is the
// only shared mutable structure in the execution engine: writes land one
// whole response at a time, and reads return a complete sorted snapshot.
type Store struct {
	mu     sync.RWMutex
	tracks map[key][]*models.Track
}

func New() *Store {
	return &Store{tracks: make(map[key][]*models.Track)}
}

// Add appends one response's tracks atomically and keeps the set ordered.
func (s *Store) Add(jobID int64, taskIdx int, mediaID int64, tracks []*models.Track) {
	if len(tracks) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{jobID, taskIdx, mediaID}
	merged := append(s.tracks[k], tracks...)
	models.SortTracks(merged)
	s.tracks[k] = merged
}

// Tracks returns a consistent snapshot of the set for one (job, task, media).
func (s *Store) Tracks(jobID int64, taskIdx int, mediaID int64) []*models.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.tracks[key{jobID, taskIdx, mediaID}]
	out := make([]*models.Track, len(src))
	copy(out, src)
	return out
}

// Replace swaps the whole set for one (job, task, media); post-processors
// use it after rewriting tracks.
func (s *Store) Replace(jobID int64, taskIdx int, mediaID int64, tracks []*models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := make([]*models.Track, len(tracks))
	copy(sorted, tracks)
	models.SortTracks(sorted)
	s.tracks[key{jobID, taskIdx, mediaID}] = sorted
}

// ClearJob evicts every track belonging to a job on terminal-state cleanup.
func (s *Store) ClearJob(jobID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.tracks {
		if k.jobID == jobID {
			delete(s.tracks, k)
		}
	}
}

// TrackCount reports how many tracks a job currently holds across all keys.
func (s *Store) TrackCount(jobID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k, v := range s.tracks {
		if k.jobID == jobID {
			n += len(v)
		}
	}
	return n
}
