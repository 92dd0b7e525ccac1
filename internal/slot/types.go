// Package slot implements the inventory-slot pipeline: per-frame template
// matching, occupancy and item identification, and cross-frame tracking
// with stability gating.
package slot

import (
	"hud-tracker/pkg/geometry"
)

// Candidate is one ranked item-identification candidate.
type Candidate struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Detection is one raw per-frame slot detection, in frame-local pixel
// coordinates. Detections carry no cross-frame identity; that is the
// tracker's job.
type Detection struct {
	Rect       geometry.Rect
	Score      float64 // border template match score
	Template   string  // which border template matched
	Occupied   bool
	ItemName   string // best item, "" when unidentified
	Confidence float64
	Candidates []Candidate // ranked, best first
}
