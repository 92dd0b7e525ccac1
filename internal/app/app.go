// Package app wires the pipeline: capture source, slot analyzer, polling
// detectors, catalog indexes, template hot-reload, and the progress store.
package app

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"hud-tracker/internal/capture"
	"hud-tracker/internal/catalog"
	"hud-tracker/internal/config"
	"hud-tracker/internal/detect"
	"hud-tracker/internal/match"
	"hud-tracker/internal/ocr"
	"hud-tracker/internal/progress"
	"hud-tracker/internal/slot"
	"hud-tracker/internal/template"
)

// SlotConsumer receives the stable slot list after each slot analysis pass.
// It is invoked from the analysis goroutine and must return promptly.
type SlotConsumer func([]slot.VisibleSlot)

// App owns the full detection pipeline.
type App struct {
	cfg config.Config
	log *slog.Logger

	source  *capture.Source
	engine  *ocr.Engine
	store   *progress.Store
	watcher *template.Watcher

	library      atomic.Pointer[template.Library]
	slotDetector *slot.Detector
	tracker      *slot.Tracker
	slotGate     capture.Gate
	onSlots      SlotConsumer

	questIndex   atomic.Pointer[match.Index]
	hideoutIndex atomic.Pointer[match.Index]
	projectIndex atomic.Pointer[match.Index]

	detectors []*detect.Detector
}

// New builds the pipeline from the configuration. Nothing runs until Start.
func New(cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	store, err := progress.Open(cfg.ProgressPath, log)
	if err != nil {
		return nil, fmt.Errorf("opening progress store: %w", err)
	}
	a.store = store

	snap, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	a.rebuildIndexes(snap)

	lib, err := template.Load(cfg.SlotTemplateDir, cfg.ItemTemplateDirs, log)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	a.library.Store(lib)

	params := slot.DefaultParams()
	params.SlotThreshold = cfg.SlotThreshold
	params.ItemThreshold = cfg.ItemThreshold
	a.slotDetector = slot.NewDetector(lib, params, log)
	a.tracker = slot.NewTracker(slot.DefaultTrackerParams())

	a.engine, err = ocr.NewEngine(cfg.OCRLanguage)
	if err != nil {
		lib.Close()
		return nil, fmt.Errorf("starting OCR engine: %w", err)
	}

	sink := func(e detect.Event) { a.store.ApplyEvent(e) }

	questOpts := detect.DefaultQuestOptions()
	questOpts.Interval = cfg.QuestInterval()
	questOpts.StabilityThreshold = cfg.StabilityThreshold

	hideoutOpts := detect.DefaultHideoutOptions()
	hideoutOpts.Interval = cfg.HideoutInterval()
	hideoutOpts.StabilityThreshold = cfg.StabilityThreshold
	hideoutOpts.OverviewOrder = moduleOrder(snap)

	projectOpts := detect.DefaultProjectOptions()
	projectOpts.Interval = cfg.ProjectInterval()
	projectOpts.StabilityThreshold = cfg.StabilityThreshold

	a.detectors = []*detect.Detector{
		detect.NewQuestDetector(a.engine, a.questIndex.Load, questOpts, sink, log),
		detect.NewHideoutDetector(a.engine, a.hideoutIndex.Load, hideoutOpts, sink, log),
		detect.NewProjectDetector(a.engine, a.projectIndex.Load, projectOpts, sink, log),
	}

	a.source = capture.NewSource(cfg.ProcessName, cfg.CaptureInterval(), log)
	a.source.Subscribe(a.onSlotFrame)
	for _, d := range a.detectors {
		a.source.Subscribe(d.OnFrame)
	}

	watchDirs := append([]string{cfg.SlotTemplateDir}, cfg.ItemTemplateDirs...)
	a.watcher, err = template.Watch(watchDirs, a.reloadTemplates, log)
	if err != nil {
		// Hot reload is a convenience; run without it.
		log.Warn("template watch unavailable", "error", err)
		a.watcher = nil
	}

	return a, nil
}

// OnSlots registers the stable-slot consumer. Must be called before Start.
func (a *App) OnSlots(fn SlotConsumer) {
	a.onSlots = fn
}

// Store exposes the progress store for UI consumers.
func (a *App) Store() *progress.Store {
	return a.store
}

// Start begins capturing and analyzing.
func (a *App) Start() {
	a.source.Start()
}

// Stop shuts the pipeline down: capture stops first and is awaited, so no
// new analyses begin; in-flight ones drain against the gates before the
// engine and templates are released.
func (a *App) Stop() {
	a.source.Stop()
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	a.waitSlotIdle()
	for _, d := range a.detectors {
		d.WaitIdle()
	}
	a.engine.Close()
	if lib := a.library.Swap(nil); lib != nil {
		lib.Close()
	}
	a.log.Info("pipeline stopped")
}

// RefreshCatalog reloads the catalog and swaps in fresh name indexes. Safe
// to call while running; detectors pick the new indexes up on their next
// pass.
func (a *App) RefreshCatalog() error {
	snap, err := catalog.Load(a.cfg.CatalogDir)
	if err != nil {
		return fmt.Errorf("reloading catalog: %w", err)
	}
	a.rebuildIndexes(snap)
	a.log.Info("catalog refreshed",
		"quests", len(snap.Quests), "hideout", len(snap.Hideout),
		"projects", len(snap.Projects), "items", len(snap.Items))
	return nil
}

func (a *App) rebuildIndexes(snap *catalog.Snapshot) {
	locale := a.cfg.Locale
	a.questIndex.Store(match.NewIndex(snap.Quests, locale, match.MinConfidence))
	a.hideoutIndex.Store(match.NewIndex(snap.Hideout, locale, match.MinConfidence))
	a.projectIndex.Store(match.NewIndex(snap.Projects, locale, match.MinConfidence))
}

// moduleOrder lists hideout module ids in catalog order, which is the
// left-to-right order of the overview strip.
func moduleOrder(snap *catalog.Snapshot) []string {
	ids := make([]string, 0, len(snap.Hideout))
	for _, e := range snap.Hideout {
		ids = append(ids, e.ID)
	}
	return ids
}

// onSlotFrame is the slot pipeline's capture subscriber: gate, detect,
// track, publish. Frames arriving while a pass runs are shed.
func (a *App) onSlotFrame(frame *capture.Frame) {
	if !a.slotGate.TryAcquire() {
		return
	}
	go func() {
		defer a.slotGate.Release()

		dets, err := a.slotDetector.Detect(frame)
		if err != nil {
			a.log.Warn("slot detection failed", "error", err)
			return
		}
		visible := a.tracker.Update(dets, frame.Left, frame.Top, frame.CapturedAt)
		for _, v := range visible {
			if v.Occupied {
				a.store.MarkItemSeen(v.ItemName)
			}
		}
		if a.onSlots != nil {
			a.onSlots(visible)
		}
	}()
}

// reloadTemplates rebuilds the template library after the reference images
// change on disk. The old library is closed only once no analysis holds it.
func (a *App) reloadTemplates() {
	lib, err := template.Load(a.cfg.SlotTemplateDir, a.cfg.ItemTemplateDirs, a.log)
	if err != nil {
		a.log.Error("template reload failed", "error", err)
		return
	}
	a.slotDetector.SetLibrary(lib)
	old := a.library.Swap(lib)
	if old != nil {
		a.waitSlotIdle()
		old.Close()
	}
}

// waitSlotIdle waits for any in-flight slot analysis to finish.
func (a *App) waitSlotIdle() {
	for !a.slotGate.TryAcquire() {
		time.Sleep(10 * time.Millisecond)
	}
	a.slotGate.Release()
}
