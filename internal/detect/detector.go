// Package detect orchestrates the polling OCR detectors: screen-state gate,
// region OCR, entity matching, and debounce. One generic detector is
// parameterized by its regions, gate predicate, extraction function, and
// stability threshold; the quest, hideout, and project detectors are
// configuration instances of it.
package detect

import (
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"hud-tracker/internal/capture"
	"hud-tracker/internal/screen"
)

// Candidate is one extraction result from a single analysis pass. Level
// carries the hideout module level or project phase; it is zero for
// detectors without a level notion and participates in the debounce key.
type Candidate struct {
	EntityID    string
	DisplayName string
	Level       int
	RawText     string
	Confidence  float64
}

// Event is one debounced, confirmed detection.
type Event struct {
	Detector    string
	EntityID    string
	DisplayName string
	Level       int
	Confidence  float64
}

// Analyzer extracts candidates from a frame that already passed the gate.
// It is invoked at most once at a time per detector.
type Analyzer func(*capture.Frame) ([]Candidate, error)

// Sink receives confirmed events. Sinks must apply updates idempotently:
// a confirmed value can be re-emitted while it stays on screen.
type Sink func(Event)

// Config parameterizes one polling detector.
type Config struct {
	Name string

	// Interval is the minimum time between analysis passes; frames arriving
	// earlier are dropped, never queued.
	Interval time.Duration

	// Gate cheaply rejects frames not showing this detector's screen.
	Gate screen.Predicate

	// Analyze extracts candidates (OCR + parsing) from a gated frame.
	Analyze Analyzer

	// StabilityThreshold is how many consecutive successful passes must
	// observe an identical candidate before one confirmation is emitted.
	StabilityThreshold int

	Sink Sink
	Log  *slog.Logger
}

// missLogEvery rate-limits diagnostic logging of recurring negative
// outcomes under continuous polling.
const missLogEvery = 50

// Detector is one polling OCR detector instance.
type Detector struct {
	cfg  Config
	gate capture.Gate

	lastRun atomic.Int64 // UnixNano of the last accepted pass

	// stability state is only touched from the analysis path, which the
	// busy gate serializes.
	stability map[string]int

	gateMisses  atomic.Int64
	matchMisses atomic.Int64
}

// New creates a polling detector from its configuration.
func New(cfg Config) *Detector {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.StabilityThreshold <= 0 {
		cfg.StabilityThreshold = 2
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	cfg.Log = cfg.Log.With("detector", cfg.Name)
	return &Detector{
		cfg:       cfg,
		stability: make(map[string]int),
	}
}

// OnFrame is the capture subscriber. It never blocks the capture loop: if
// the polling interval has not elapsed or an earlier analysis is still
// running, the frame is dropped.
func (d *Detector) OnFrame(frame *capture.Frame) {
	last := d.lastRun.Load()
	now := frame.CapturedAt.UnixNano()
	if now-last < int64(d.cfg.Interval) {
		return
	}
	if !d.gate.TryAcquire() {
		return
	}
	if !d.lastRun.CompareAndSwap(last, now) {
		// Another frame won the interval race.
		d.gate.Release()
		return
	}

	go func() {
		defer d.gate.Release()
		d.analyze(frame)
	}()
}

// WaitIdle blocks until no analysis pass is in flight, so shared resources
// (the OCR engine) can be released safely during shutdown.
func (d *Detector) WaitIdle() {
	for d.gate.Held() {
		time.Sleep(10 * time.Millisecond)
	}
}

// analyze runs one pass: gate, extraction, debounce.
func (d *Detector) analyze(frame *capture.Frame) {
	if d.cfg.Gate != nil && !d.cfg.Gate(frame) {
		if n := d.gateMisses.Add(1); n%missLogEvery == 1 {
			d.cfg.Log.Debug("screen not detected", "misses", n)
		}
		return
	}

	cands, err := d.cfg.Analyze(frame)
	if err != nil {
		// A failed pass must not corrupt the stability counters beyond the
		// missed increment.
		d.cfg.Log.Warn("analysis pass failed", "error", err)
		return
	}
	if len(cands) == 0 {
		if n := d.matchMisses.Add(1); n%missLogEvery == 1 {
			d.cfg.Log.Debug("no matches on detected screen", "misses", n)
		}
	}

	d.debounce(cands)
}

// debounce maintains per-candidate hit counters. A candidate must be
// observed for StabilityThreshold consecutive successful passes before one
// confirmation fires; the counter then resets. Candidates absent from the
// current pass lose their counters, so a single differing observation
// starts over. This suppresses one-off OCR misreads.
func (d *Detector) debounce(cands []Candidate) {
	current := make(map[string]bool, len(cands))

	for _, c := range cands {
		key := debounceKey(c)
		current[key] = true
		d.stability[key]++

		if d.stability[key] >= d.cfg.StabilityThreshold {
			d.stability[key] = 0
			d.cfg.Log.Info("detection confirmed",
				"entity", c.EntityID, "level", c.Level, "confidence", c.Confidence)
			if d.cfg.Sink != nil {
				d.cfg.Sink(Event{
					Detector:    d.cfg.Name,
					EntityID:    c.EntityID,
					DisplayName: c.DisplayName,
					Level:       c.Level,
					Confidence:  c.Confidence,
				})
			}
		}
	}

	for key := range d.stability {
		if !current[key] {
			delete(d.stability, key)
		}
	}
}

func debounceKey(c Candidate) string {
	if c.Level == 0 {
		return c.EntityID
	}
	return c.EntityID + "#" + strconv.Itoa(c.Level)
}
