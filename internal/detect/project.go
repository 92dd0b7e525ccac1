package detect

import (
	"fmt"
	"log/slog"
	"time"

	"hud-tracker/internal/capture"
	"hud-tracker/internal/ocr"
	"hud-tracker/internal/screen"
	"hud-tracker/pkg/geometry"
)

// ProjectOptions configures the expedition project detector.
type ProjectOptions struct {
	Interval           time.Duration
	StabilityThreshold int

	// TitleRegion is OCRed and matched against the project name index.
	TitleRegion geometry.NormalizedRegion

	// PhaseBoxes are the progress indicator boxes under the title, in
	// phase order. A box counts as filled when PhaseFilled coverage
	// reaches PhaseMinCoverage.
	PhaseBoxes       []geometry.NormalizedRegion
	PhaseFilled      screen.ColorTest
	PhaseMinCoverage float64

	Gate screen.Predicate
}

// DefaultProjectOptions returns the default project detector tuning. The
// phase indicator is a row of five boxes that fill with the accent color
// as phases complete.
func DefaultProjectOptions() ProjectOptions {
	boxes := make([]geometry.NormalizedRegion, 0, 5)
	for i := 0; i < 5; i++ {
		boxes = append(boxes, geometry.NewNormalizedRegion(
			0.30+float64(i)*0.08, 0.30, 0.05, 0.04))
	}
	return ProjectOptions{
		Interval:           3 * time.Second,
		StabilityThreshold: 2,
		TitleRegion:        geometry.NewNormalizedRegion(0.25, 0.15, 0.50, 0.10),
		PhaseBoxes:         boxes,
		PhaseFilled:        screen.Saturated(60),
		PhaseMinCoverage:   0.5,
	}
}

// NewProjectDetector builds the expedition project detector: the title is
// OCRed and matched by name, the current phase is read by counting filled
// progress boxes. Level carries the phase count, so a phase change debounces
// independently of earlier phases.
func NewProjectDetector(engine *ocr.Engine, index IndexProvider, opts ProjectOptions, sink Sink, log *slog.Logger) *Detector {
	analyze := func(frame *capture.Frame) ([]Candidate, error) {
		idx := index()
		if idx == nil || idx.Len() == 0 {
			return nil, fmt.Errorf("project index empty")
		}

		lines, err := engine.RecognizeLines(frame, opts.TitleRegion)
		if err != nil {
			return nil, fmt.Errorf("title region OCR: %w", err)
		}

		results := idx.MatchLines(lines)
		if len(results) == 0 {
			return nil, nil
		}

		phase := countFilledBoxes(frame, opts.PhaseBoxes, opts.PhaseFilled, opts.PhaseMinCoverage)

		// Only the best title match gets the phase reading: the project
		// screen shows a single project at a time.
		r := results[0]
		for _, other := range results[1:] {
			if other.Confidence > r.Confidence {
				r = other
			}
		}
		return []Candidate{{
			EntityID:    r.EntityID,
			DisplayName: r.DisplayName,
			Level:       phase,
			RawText:     r.RawText,
			Confidence:  r.Confidence,
		}}, nil
	}

	return New(Config{
		Name:               "projects",
		Interval:           opts.Interval,
		Gate:               opts.Gate,
		Analyze:            analyze,
		StabilityThreshold: opts.StabilityThreshold,
		Sink:               sink,
		Log:                log,
	})
}

// countFilledBoxes counts leading phase boxes whose filled-color coverage
// reaches the minimum. Counting stops at the first unfilled box: phases
// complete in order, so a filled box after a gap is a misread.
func countFilledBoxes(frame *capture.Frame, boxes []geometry.NormalizedRegion, filled screen.ColorTest, minCoverage float64) int {
	count := 0
	for _, box := range boxes {
		if screen.Coverage(frame, box, filled) < minCoverage {
			break
		}
		count++
	}
	return count
}
