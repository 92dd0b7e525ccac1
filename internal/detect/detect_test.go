package detect

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"hud-tracker/internal/capture"
	"hud-tracker/internal/match"
	"hud-tracker/internal/screen"
	"hud-tracker/pkg/geometry"
)

func testFrame(w, h int, c color.RGBA) *capture.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return capture.NewFrame(img, image.Point{}, time.Now())
}

type recordedEvents struct {
	events []Event
}

func (r *recordedEvents) sink(e Event) { r.events = append(r.events, e) }

func passDetector(rec *recordedEvents, threshold int) *Detector {
	return New(Config{
		Name:               "test",
		Interval:           time.Millisecond,
		Analyze:            func(*capture.Frame) ([]Candidate, error) { return nil, nil },
		StabilityThreshold: threshold,
		Sink:               rec.sink,
	})
}

func TestDebounceFiresOnceAtThreshold(t *testing.T) {
	rec := &recordedEvents{}
	d := passDetector(rec, 2)

	c := Candidate{EntityID: "Q1", DisplayName: "Deliver Scrap", Confidence: 0.9}

	// Three consecutive passes with the same candidate and threshold 2 must
	// fire exactly one event, on the second pass.
	d.debounce([]Candidate{c})
	if len(rec.events) != 0 {
		t.Fatalf("event fired on first pass: %+v", rec.events)
	}
	d.debounce([]Candidate{c})
	if len(rec.events) != 1 {
		t.Fatalf("got %d events after second pass, want 1", len(rec.events))
	}
	d.debounce([]Candidate{c})
	if len(rec.events) != 1 {
		t.Fatalf("third pass re-fired immediately after reset: %d events", len(rec.events))
	}

	e := rec.events[0]
	if e.EntityID != "Q1" || e.Detector != "test" || e.Confidence != 0.9 {
		t.Errorf("event = %+v", e)
	}
}

func TestDebounceDifferingObservationResets(t *testing.T) {
	rec := &recordedEvents{}
	d := passDetector(rec, 3)

	a := Candidate{EntityID: "Q1"}
	b := Candidate{EntityID: "Q2"}

	d.debounce([]Candidate{a})
	d.debounce([]Candidate{a})
	d.debounce([]Candidate{b}) // Q1 absent: its counter is discarded
	d.debounce([]Candidate{a})
	d.debounce([]Candidate{a})
	if len(rec.events) != 0 {
		t.Fatalf("counter survived a differing observation: %+v", rec.events)
	}
	d.debounce([]Candidate{a})
	if len(rec.events) != 1 || rec.events[0].EntityID != "Q1" {
		t.Errorf("events = %+v", rec.events)
	}
}

func TestDebounceKeyIncludesLevel(t *testing.T) {
	rec := &recordedEvents{}
	d := passDetector(rec, 2)

	// Same module observed at level 2 then level 3: levels debounce
	// independently, so neither sequence reaches the threshold.
	d.debounce([]Candidate{{EntityID: "workbench", Level: 2}})
	d.debounce([]Candidate{{EntityID: "workbench", Level: 3}})
	d.debounce([]Candidate{{EntityID: "workbench", Level: 2}})
	if len(rec.events) != 0 {
		t.Fatalf("level change did not reset debounce: %+v", rec.events)
	}

	d.debounce([]Candidate{{EntityID: "workbench", Level: 2}})
	if len(rec.events) != 1 || rec.events[0].Level != 2 {
		t.Errorf("events = %+v", rec.events)
	}
}

func TestOnFrameRespectsInterval(t *testing.T) {
	var passes int
	done := make(chan struct{}, 8)
	d := New(Config{
		Name:     "test",
		Interval: time.Hour,
		Analyze: func(*capture.Frame) ([]Candidate, error) {
			passes++
			done <- struct{}{}
			return nil, nil
		},
		StabilityThreshold: 1,
	})

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	now := time.Now()
	d.OnFrame(capture.NewFrame(img, image.Point{}, now))
	<-done
	// Second frame arrives well inside the interval: dropped, not queued.
	d.OnFrame(capture.NewFrame(img, image.Point{}, now.Add(time.Second)))

	select {
	case <-done:
		t.Fatal("frame inside the polling interval was analyzed")
	case <-time.After(50 * time.Millisecond):
	}
	if passes != 1 {
		t.Errorf("passes = %d, want 1", passes)
	}
}

func TestAnalyzeGateRejectsWrongScreen(t *testing.T) {
	rec := &recordedEvents{}
	analyzed := false
	d := New(Config{
		Name: "test",
		Gate: func(*capture.Frame) bool { return false },
		Analyze: func(*capture.Frame) ([]Candidate, error) {
			analyzed = true
			return nil, nil
		},
		StabilityThreshold: 1,
		Sink:               rec.sink,
	})

	d.analyze(testFrame(16, 16, color.RGBA{A: 255}))
	if analyzed {
		t.Error("analyzer ran on a gated-out frame")
	}
}

type stubIndex map[string]match.Result

func (s stubIndex) Match(line string) (match.Result, bool) {
	r, ok := s[match.Normalize(line)]
	return r, ok
}

func TestExtractBenchLevels(t *testing.T) {
	idx := stubIndex{
		"WORKBENCH": {EntityID: "workbench", DisplayName: "Workbench", Confidence: 1},
		"MED BAY":   {EntityID: "medbay", DisplayName: "Med Bay", Confidence: 1},
	}

	lines := []string{
		"Workbench — LEVEL 3",
		"Med Bay - level 2",
		"Generator LEVEL 1", // parses, but the name is not in the index
		"Storage",           // no level suffix: skipped
		"Workbench — LEVEL 0",
	}
	cands := extractBenchLevels(lines, idx)
	if len(cands) != 2 {
		t.Fatalf("got %d candidates, want 2: %+v", len(cands), cands)
	}
	if cands[0].EntityID != "workbench" || cands[0].Level != 3 {
		t.Errorf("first candidate = %+v", cands[0])
	}
	if cands[1].EntityID != "medbay" || cands[1].Level != 2 {
		t.Errorf("second candidate = %+v", cands[1])
	}
}

func TestParseRoman(t *testing.T) {
	cases := []struct {
		in    string
		level int
		ok    bool
	}{
		{"I", 1, true},
		{"II", 2, true},
		{"IV", 4, true},
		{"V", 5, true},
		{"IX", 9, true},
		{"X", 10, true},
		{"XIV", 14, true},
		{"XX", 20, true},
		{"1", 1, true},   // OCR digit misread of I
		{"ll", 2, true},  // OCR lowercase-L misread of II
		{"vll", 7, true},
		{"", 0, false},
		{"ABC", 0, false},
		{"XXX", 0, false}, // above the level range
		{"IIIIII", 0, false},
	}
	for _, tc := range cases {
		level, ok := parseRoman(tc.in)
		if ok != tc.ok || level != tc.level {
			t.Errorf("parseRoman(%q) = (%d, %v), want (%d, %v)", tc.in, level, ok, tc.level, tc.ok)
		}
	}
}

func TestExtractOverviewLevelsPositional(t *testing.T) {
	order := []string{"workbench", "medbay", "generator"}
	lines := []string{"III I", "V"}

	cands := extractOverviewLevels(lines, order)
	if len(cands) != 3 {
		t.Fatalf("got %d candidates, want 3: %+v", len(cands), cands)
	}
	want := []struct {
		id    string
		level int
	}{
		{"workbench", 3},
		{"medbay", 1},
		{"generator", 5},
	}
	for i, w := range want {
		if cands[i].EntityID != w.id || cands[i].Level != w.level {
			t.Errorf("position %d = %+v, want %s level %d", i, cands[i], w.id, w.level)
		}
	}
}

func TestExtractOverviewLevelsExtraNumeralsIgnored(t *testing.T) {
	cands := extractOverviewLevels([]string{"I II III"}, []string{"workbench"})
	if len(cands) != 1 {
		t.Errorf("numerals beyond the configured order produced candidates: %+v", cands)
	}
}

func TestCountFilledBoxes(t *testing.T) {
	// Left two thirds saturated red, right third neutral gray.
	img := image.NewRGBA(image.Rect(0, 0, 90, 30))
	draw.Draw(img, image.Rect(0, 0, 60, 30), image.NewUniform(color.RGBA{R: 200, G: 20, B: 20, A: 255}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(60, 0, 90, 30), image.NewUniform(color.RGBA{R: 120, G: 120, B: 120, A: 255}), image.Point{}, draw.Src)
	frame := capture.NewFrame(img, image.Point{}, time.Now())

	boxes := []geometry.NormalizedRegion{
		geometry.NewNormalizedRegion(0.05, 0.2, 0.22, 0.6),
		geometry.NewNormalizedRegion(0.38, 0.2, 0.22, 0.6),
		geometry.NewNormalizedRegion(0.71, 0.2, 0.22, 0.6),
	}
	got := countFilledBoxes(frame, boxes, screen.Saturated(60), 0.5)
	if got != 2 {
		t.Errorf("countFilledBoxes = %d, want 2", got)
	}
}

func TestCountFilledBoxesStopsAtGap(t *testing.T) {
	// Filled, unfilled, filled: the gap ends the count at 1.
	img := image.NewRGBA(image.Rect(0, 0, 90, 30))
	red := image.NewUniform(color.RGBA{R: 200, G: 20, B: 20, A: 255})
	gray := image.NewUniform(color.RGBA{R: 120, G: 120, B: 120, A: 255})
	draw.Draw(img, image.Rect(0, 0, 30, 30), red, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(30, 0, 60, 30), gray, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(60, 0, 90, 30), red, image.Point{}, draw.Src)
	frame := capture.NewFrame(img, image.Point{}, time.Now())

	boxes := []geometry.NormalizedRegion{
		geometry.NewNormalizedRegion(0.05, 0.2, 0.22, 0.6),
		geometry.NewNormalizedRegion(0.38, 0.2, 0.22, 0.6),
		geometry.NewNormalizedRegion(0.71, 0.2, 0.22, 0.6),
	}
	if got := countFilledBoxes(frame, boxes, screen.Saturated(60), 0.5); got != 1 {
		t.Errorf("countFilledBoxes = %d, want 1", got)
	}
}
