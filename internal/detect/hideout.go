package detect

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hud-tracker/internal/capture"
	"hud-tracker/internal/match"
	"hud-tracker/internal/ocr"
	"hud-tracker/internal/screen"
	"hud-tracker/pkg/geometry"
)

// benchLineRe extracts "NAME — LEVEL n" style bench captions. The dash is
// optional and may be any of the common dash glyphs OCR produces.
var benchLineRe = regexp.MustCompile(`(?i)^(.+?)[\s]*[-—–]?[\s]*LEVEL[\s]+(\d+)$`)

// HideoutOptions configures the hideout detector.
type HideoutOptions struct {
	Interval           time.Duration
	StabilityThreshold int

	// BenchRegions are OCRed for per-module "NAME — LEVEL n" captions.
	BenchRegions []geometry.NormalizedRegion

	// OverviewRegion is the module strip on the overview screen, scanned
	// for roman-numeral levels left to right.
	OverviewRegion geometry.NormalizedRegion

	// OverviewOrder maps left-to-right ordinal positions on the overview
	// screen to module entity ids. This is a positional heuristic with no
	// textual confirmation: if the game ever reorders the strip, detections
	// will mis-assign until this list is updated.
	OverviewOrder []string

	Gate screen.Predicate
}

// DefaultHideoutOptions returns the default hideout detector tuning.
func DefaultHideoutOptions() HideoutOptions {
	return HideoutOptions{
		Interval:           3 * time.Second,
		StabilityThreshold: 2,
		BenchRegions: []geometry.NormalizedRegion{
			geometry.NewNormalizedRegion(0.30, 0.08, 0.40, 0.10),
		},
		OverviewRegion: geometry.NewNormalizedRegion(0.05, 0.78, 0.90, 0.14),
	}
}

// NewHideoutDetector builds the hideout detector. Bench captions carry the
// module name and level together; the overview strip only shows roman
// numerals, assigned to modules by position.
func NewHideoutDetector(engine *ocr.Engine, index IndexProvider, opts HideoutOptions, sink Sink, log *slog.Logger) *Detector {
	analyze := func(frame *capture.Frame) ([]Candidate, error) {
		idx := index()
		if idx == nil || idx.Len() == 0 {
			return nil, fmt.Errorf("hideout index empty")
		}

		var cands []Candidate

		for _, region := range opts.BenchRegions {
			lines, err := engine.RecognizeLines(frame, region)
			if err != nil {
				return nil, fmt.Errorf("bench region OCR: %w", err)
			}
			cands = append(cands, extractBenchLevels(lines, idx)...)
		}

		if len(opts.OverviewOrder) > 0 {
			lines, err := engine.RecognizeLines(frame, opts.OverviewRegion)
			if err != nil {
				return nil, fmt.Errorf("overview region OCR: %w", err)
			}
			cands = append(cands, extractOverviewLevels(lines, opts.OverviewOrder)...)
		}

		return cands, nil
	}

	return New(Config{
		Name:               "hideout",
		Interval:           opts.Interval,
		Gate:               opts.Gate,
		Analyze:            analyze,
		StabilityThreshold: opts.StabilityThreshold,
		Sink:               sink,
		Log:                log,
	})
}

// indexMatcher is the subset of the name index the extractors need;
// *match.Index satisfies it.
type indexMatcher interface {
	Match(line string) (match.Result, bool)
}

// extractBenchLevels parses "NAME — LEVEL n" lines and resolves the name
// part against the module index.
func extractBenchLevels(lines []string, idx indexMatcher) []Candidate {
	var cands []Candidate
	for _, line := range lines {
		m := benchLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		level, err := strconv.Atoi(m[2])
		if err != nil || level <= 0 {
			continue
		}
		r, ok := idx.Match(m[1])
		if !ok {
			continue
		}
		cands = append(cands, Candidate{
			EntityID:    r.EntityID,
			DisplayName: r.DisplayName,
			Level:       level,
			RawText:     line,
			Confidence:  r.Confidence,
		})
	}
	return cands
}

// extractOverviewLevels scans OCR tokens left to right for roman numerals
// and maps the i-th numeral to the i-th module in the configured order.
func extractOverviewLevels(lines []string, order []string) []Candidate {
	var cands []Candidate
	pos := 0
	for _, line := range lines {
		for _, token := range strings.Fields(line) {
			level, ok := parseRoman(token)
			if !ok {
				continue
			}
			if pos >= len(order) {
				return cands
			}
			cands = append(cands, Candidate{
				EntityID:   order[pos],
				Level:      level,
				RawText:    token,
				Confidence: 1, // positional, no textual confirmation
			})
			pos++
		}
	}
	return cands
}

// parseRoman parses a small roman numeral (I..XX, the range hideout levels
// use). OCR commonly reads "I" as "1" or "l"; those are accepted.
func parseRoman(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "1", "I")
	s = strings.ReplaceAll(s, "L", "I") // lowercase l misread
	if s == "" || len(s) > 5 {
		return 0, false
	}

	values := map[byte]int{'I': 1, 'V': 5, 'X': 10}
	total := 0
	prev := 0
	for i := len(s) - 1; i >= 0; i-- {
		v, ok := values[s[i]]
		if !ok {
			return 0, false
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	if total <= 0 || total > 20 {
		return 0, false
	}
	return total, true
}
