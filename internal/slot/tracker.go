package slot

import (
	"time"

	"github.com/google/uuid"

	"hud-tracker/pkg/geometry"
)

// TrackerParams controls cross-frame identity tracking.
type TrackerParams struct {
	// MatchTolerancePx is the maximum center distance between a tracked
	// slot and a raw detection for them to be considered the same slot.
	MatchTolerancePx float64

	// Smoothing is the exponential-moving-average weight toward the new
	// observation when merging positions.
	Smoothing float64

	// StabilityThreshold is how many consecutive sightings a slot needs
	// before it becomes visible to consumers.
	StabilityThreshold int

	// StabilityCap bounds the stability counter so a long-lived slot does
	// not take forever to evict after it disappears.
	StabilityCap int

	// RemovalTimeout evicts tracked slots not seen for this long.
	RemovalTimeout time.Duration
}

// DefaultTrackerParams returns the default tracking behavior.
func DefaultTrackerParams() TrackerParams {
	return TrackerParams{
		MatchTolerancePx:   20,
		Smoothing:          0.3,
		StabilityThreshold: 1,
		StabilityCap:       30,
		RemovalTimeout:     100 * time.Millisecond,
	}
}

// TrackedSlot is the tracker's per-slot state. It is owned exclusively by
// the Tracker and mutated only from Update.
type TrackedSlot struct {
	ID         uuid.UUID
	Rect       geometry.Rect // smoothed, frame-local
	Occupied   bool
	ItemName   string
	Confidence float64
	Candidates []Candidate
	Stability  int
	LastSeen   time.Time
	Visible    bool
}

// VisibleSlot is one stable slot reported to consumers, in screen
// coordinates, ready for overlay rendering.
type VisibleSlot struct {
	ID         uuid.UUID
	ScreenRect geometry.Rect
	Occupied   bool
	ItemName   string
	Confidence float64
	Candidates []Candidate
}

// Tracker converts noisy per-frame detections into stable tracked slots.
// Raw detection is too jittery to drive UI directly (border jitter,
// transient occlusion); this is a track-before-report filter.
type Tracker struct {
	params TrackerParams
	slots  []*TrackedSlot
}

// NewTracker creates a tracker.
func NewTracker(params TrackerParams) *Tracker {
	return &Tracker{params: params}
}

// Update advances the tracker with one frame's raw detections and returns
// the currently visible slots translated to screen coordinates. The result
// is re-emitted every call, even when empty, so downstream renderers clear
// stale overlays promptly when detection is lost.
func (t *Tracker) Update(dets []Detection, screenLeft, screenTop int, now time.Time) []VisibleSlot {
	matched := make([]bool, len(dets))

	// Merge: each existing slot takes the nearest unmatched detection
	// within tolerance.
	for _, ts := range t.slots {
		best := -1
		bestDist := t.params.MatchTolerancePx + 1
		center := ts.Rect.Center()
		for i := range dets {
			if matched[i] {
				continue
			}
			dist := center.Distance(dets[i].Rect.Center())
			if dist <= t.params.MatchTolerancePx && dist < bestDist {
				best = i
				bestDist = dist
			}
		}
		if best < 0 {
			continue
		}
		matched[best] = true
		t.merge(ts, &dets[best], now)
	}

	// Unmatched detections become brand-new tracked slots, not yet visible.
	for i := range dets {
		if matched[i] {
			continue
		}
		d := &dets[i]
		t.slots = append(t.slots, &TrackedSlot{
			ID:         uuid.New(),
			Rect:       d.Rect,
			Occupied:   d.Occupied,
			ItemName:   d.ItemName,
			Confidence: d.Confidence,
			Candidates: d.Candidates,
			Stability:  1,
			LastSeen:   now,
			Visible:    false,
		})
	}

	t.evict(now)

	return t.visible(screenLeft, screenTop)
}

// merge folds a raw detection into an existing tracked slot.
func (t *Tracker) merge(ts *TrackedSlot, d *Detection, now time.Time) {
	w := t.params.Smoothing
	ts.Rect = geometry.Rect{
		X:      ts.Rect.X*(1-w) + d.Rect.X*w,
		Y:      ts.Rect.Y*(1-w) + d.Rect.Y*w,
		Width:  ts.Rect.Width*(1-w) + d.Rect.Width*w,
		Height: ts.Rect.Height*(1-w) + d.Rect.Height*w,
	}

	ts.Occupied = d.Occupied
	if d.Occupied {
		ts.ItemName = d.ItemName
		ts.Confidence = d.Confidence
		ts.Candidates = d.Candidates
	} else {
		ts.ItemName = ""
		ts.Confidence = 0
		ts.Candidates = nil
	}

	if ts.Stability < t.params.StabilityCap {
		ts.Stability++
	}
	ts.LastSeen = now
	if ts.Stability >= t.params.StabilityThreshold {
		ts.Visible = true
	}
}

// evict drops slots not seen within the removal timeout.
func (t *Tracker) evict(now time.Time) {
	kept := t.slots[:0]
	for _, ts := range t.slots {
		if now.Sub(ts.LastSeen) <= t.params.RemovalTimeout {
			kept = append(kept, ts)
		}
	}
	// Clear the tail so evicted slots can be collected.
	for i := len(kept); i < len(t.slots); i++ {
		t.slots[i] = nil
	}
	t.slots = kept
}

// visible snapshots the visible slots in screen coordinates.
func (t *Tracker) visible(screenLeft, screenTop int) []VisibleSlot {
	out := make([]VisibleSlot, 0, len(t.slots))
	for _, ts := range t.slots {
		if !ts.Visible {
			continue
		}
		out = append(out, VisibleSlot{
			ID:         ts.ID,
			ScreenRect: ts.Rect.Translate(float64(screenLeft), float64(screenTop)),
			Occupied:   ts.Occupied,
			ItemName:   ts.ItemName,
			Confidence: ts.Confidence,
			Candidates: ts.Candidates,
		})
	}
	return out
}

// Len returns the number of tracked slots, visible or not.
func (t *Tracker) Len() int {
	return len(t.slots)
}
