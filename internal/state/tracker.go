package state

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harvestlab/reddit-harvester/internal/models"
)

// ProgressSink receives a snapshot after every state change. It is called with
// the tracker lock held and must not call back into the tracker.
type ProgressSink func(event models.ProgressEvent)

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// Tracker owns the progress counters of one run
type Tracker struct {
	mu     sync.Mutex
	state  models.ProgressState
	hits   map[string]struct{}
	active map[string]int
	sink   ProgressSink
}

// Bounds describes what a run keeps: a labelled time window or an item cap
type Bounds struct {
	Label string
	Start time.Time
	End   time.Time
	Cap   int
}

// NewTracker creates a running tracker and emits its first snapshot
func NewTracker(runID, mode string, bounds Bounds, totalGroups int, sink ProgressSink) *Tracker {
	t := &Tracker{
		state: models.ProgressState{
			RunID:       runID,
			Mode:        mode,
			Window:      bounds.Label,
			WindowStart: bounds.Start,
			WindowEnd:   bounds.End,
			PostCap:     bounds.Cap,
			TotalGroups: totalGroups,
			StartedAt:   time.Now(),
			Status:      models.StatusRunning,
			OutputFiles: []string{},
		},
		hits:   make(map[string]struct{}),
		active: make(map[string]int),
		sink:   sink,
	}

	t.mu.Lock()
	t.emitLocked()
	t.mu.Unlock()
	return t
}

func (t *Tracker) update(fn func(s *models.ProgressState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.state)
	t.emitLocked()
}

func (t *Tracker) emitLocked() {
	t.state.HitGroups = len(t.hits)
	if t.sink != nil {
		t.sink(models.ProgressEvent{Type: "state", State: t.snapshotLocked()})
	}
}

func (t *Tracker) snapshotLocked() models.ProgressState {
	s := t.state
	s.OutputFiles = append([]string{}, t.state.OutputFiles...)
	s.ActiveKeywords = make([]string, 0, len(t.active))
	for kw := range t.active {
		s.ActiveKeywords = append(s.ActiveKeywords, kw)
	}
	sort.Strings(s.ActiveKeywords)
	return s
}

// Snapshot returns a copy of the current state
func (t *Tracker) Snapshot() models.ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) PostFetched(group string) {
	t.update(func(s *models.ProgressState) {
		s.PostsFetched++
		t.hits[group] = struct{}{}
	})
}

func (t *Tracker) CommentsFetched(group string, n int) {
	if n <= 0 {
		return
	}
	t.update(func(s *models.ProgressState) {
		s.CommentsFetched += n
		t.hits[group] = struct{}{}
	})
}

// GroupHit reports whether any row was produced for group
func (t *Tracker) GroupHit(group string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.hits[group]
	return ok
}

func (t *Tracker) GroupProcessed() {
	t.update(func(s *models.ProgressState) {
		s.ProcessedGroups++
	})
}

// KeywordStarted registers a worker for kw. The same keyword may run once per target.
func (t *Tracker) KeywordStarted(kw string) {
	t.update(func(s *models.ProgressState) {
		t.active[kw]++
		s.CurrentKeyword = kw
	})
}

func (t *Tracker) KeywordFinished(kw string) {
	t.update(func(s *models.ProgressState) {
		if t.active[kw] <= 1 {
			delete(t.active, kw)
		} else {
			t.active[kw]--
		}
		if len(t.active) == 0 {
			s.CurrentKeyword = ""
		}
	})
}

func (t *Tracker) CommentsSaved(n int) {
	t.update(func(s *models.ProgressState) {
		s.CommentsSaved += n
	})
}

// SetStatus records a pause or resume. It has no effect once the run has finished.
func (t *Tracker) SetStatus(status string) {
	t.update(func(s *models.ProgressState) {
		if s.Status == models.StatusFinished || s.Status == models.StatusStopped {
			return
		}
		s.Status = status
	})
}

func (t *Tracker) SetOutputFiles(files []string) {
	t.update(func(s *models.ProgressState) {
		s.OutputFiles = append([]string(nil), files...)
	})
}

// Finish records the terminal status. Saved posts are the posts fetched during the run.
func (t *Tracker) Finish(status string) {
	t.update(func(s *models.ProgressState) {
		s.PostsSaved = s.PostsFetched
		s.FinishedAt = time.Now()
		s.Status = status
	})
}
