package detect

import (
	"fmt"
	"log/slog"
	"time"

	"hud-tracker/internal/capture"
	"hud-tracker/internal/match"
	"hud-tracker/internal/ocr"
	"hud-tracker/internal/screen"
	"hud-tracker/pkg/geometry"
)

// IndexProvider returns the current entity name index. Detectors call it on
// every pass so a catalog refresh takes effect without restarting them.
type IndexProvider func() *match.Index

// QuestOptions configures the quest-log detector.
type QuestOptions struct {
	Interval           time.Duration
	StabilityThreshold int

	// Regions are the quest-log list areas to OCR.
	Regions []geometry.NormalizedRegion

	Gate screen.Predicate
}

// DefaultQuestOptions returns the default quest detector tuning. The region
// covers the quest list panel on the right-hand side of the journal screen.
func DefaultQuestOptions() QuestOptions {
	return QuestOptions{
		Interval:           2 * time.Second,
		StabilityThreshold: 2,
		Regions: []geometry.NormalizedRegion{
			geometry.NewNormalizedRegion(0.55, 0.12, 0.40, 0.75),
		},
	}
}

// NewQuestDetector builds the quest detector: gate, OCR of the quest-log
// regions, fuzzy matching of each line against the quest name index.
func NewQuestDetector(engine *ocr.Engine, index IndexProvider, opts QuestOptions, sink Sink, log *slog.Logger) *Detector {
	analyze := func(frame *capture.Frame) ([]Candidate, error) {
		idx := index()
		if idx == nil || idx.Len() == 0 {
			return nil, fmt.Errorf("quest index empty")
		}

		var cands []Candidate
		for _, region := range opts.Regions {
			lines, err := engine.RecognizeLines(frame, region)
			if err != nil {
				return nil, fmt.Errorf("quest region OCR: %w", err)
			}
			for _, r := range idx.MatchLines(lines) {
				cands = append(cands, Candidate{
					EntityID:    r.EntityID,
					DisplayName: r.DisplayName,
					RawText:     r.RawText,
					Confidence:  r.Confidence,
				})
			}
		}
		return cands, nil
	}

	return New(Config{
		Name:               "quests",
		Interval:           opts.Interval,
		Gate:               opts.Gate,
		Analyze:            analyze,
		StabilityThreshold: opts.StabilityThreshold,
		Sink:               sink,
		Log:                log,
	})
}
