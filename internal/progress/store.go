// Package progress persists confirmed detections as a player progress
// document. Detectors report observations; the store applies them
// idempotently, so re-confirmation of an unchanged value (a screen that
// stays open) writes nothing and notifies nobody.
package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hud-tracker/internal/detect"
)

const documentFile = "progress.json"

// Document is the persisted progress state.
type Document struct {
	// Quests holds quest ids confirmed in the quest log.
	Quests map[string]bool `json:"quests"`

	// HideoutLevels maps module id to its highest confirmed level.
	HideoutLevels map[string]int `json:"hideout_levels"`

	// ProjectPhases maps project id to its highest confirmed phase.
	ProjectPhases map[string]int `json:"project_phases"`

	// SeenItems holds item names confirmed in inventory slots.
	SeenItems map[string]bool `json:"seen_items"`

	UpdatedAt time.Time `json:"updated_at"`
}

func newDocument() *Document {
	return &Document{
		Quests:        make(map[string]bool),
		HideoutLevels: make(map[string]int),
		ProjectPhases: make(map[string]int),
		SeenItems:     make(map[string]bool),
	}
}

// Store owns the progress document and its file.
type Store struct {
	mu       sync.Mutex
	path     string
	doc      *Document
	onChange func(Document)
	log      *slog.Logger
}

// DefaultPath returns ~/.config/hud-tracker/progress.json (or the platform
// equivalent).
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "hud-tracker", documentFile)
}

// Open loads the document at path, or starts an empty one if the file does
// not exist. A corrupt file is an error: silently discarding progress is
// worse than refusing to start.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{path: path, doc: newDocument(), log: log}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading progress document: %w", err)
	}
	if err := json.Unmarshal(data, s.doc); err != nil {
		return nil, fmt.Errorf("parsing progress document %s: %w", path, err)
	}
	// Maps can come back nil from a hand-edited file.
	if s.doc.Quests == nil {
		s.doc.Quests = make(map[string]bool)
	}
	if s.doc.HideoutLevels == nil {
		s.doc.HideoutLevels = make(map[string]int)
	}
	if s.doc.ProjectPhases == nil {
		s.doc.ProjectPhases = make(map[string]int)
	}
	if s.doc.SeenItems == nil {
		s.doc.SeenItems = make(map[string]bool)
	}
	return s, nil
}

// OnChange registers a callback invoked with a snapshot of the document
// after every persisted change. The callback runs on the caller's
// goroutine while no store lock is held.
func (s *Store) OnChange(fn func(Document)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.clone()
}

func (d *Document) clone() Document {
	out := Document{
		Quests:        make(map[string]bool, len(d.Quests)),
		HideoutLevels: make(map[string]int, len(d.HideoutLevels)),
		ProjectPhases: make(map[string]int, len(d.ProjectPhases)),
		SeenItems:     make(map[string]bool, len(d.SeenItems)),
		UpdatedAt:     d.UpdatedAt,
	}
	for k, v := range d.Quests {
		out.Quests[k] = v
	}
	for k, v := range d.HideoutLevels {
		out.HideoutLevels[k] = v
	}
	for k, v := range d.ProjectPhases {
		out.ProjectPhases[k] = v
	}
	for k, v := range d.SeenItems {
		out.SeenItems[k] = v
	}
	return out
}

// ApplyEvent applies one confirmed detection. Returns true when the
// document changed (and was saved).
func (s *Store) ApplyEvent(e detect.Event) bool {
	switch e.Detector {
	case "quests":
		return s.MarkQuestSeen(e.EntityID)
	case "hideout":
		return s.SetHideoutLevel(e.EntityID, e.Level)
	case "projects":
		return s.SetProjectPhase(e.EntityID, e.Level)
	default:
		s.log.Warn("event from unknown detector", "detector", e.Detector)
		return false
	}
}

// MarkQuestSeen records a quest as confirmed in the quest log.
func (s *Store) MarkQuestSeen(questID string) bool {
	return s.apply(func(d *Document) bool {
		if d.Quests[questID] {
			return false
		}
		d.Quests[questID] = true
		return true
	})
}

// SetHideoutLevel records a module level. Levels only advance: a lower
// observation is a misread or a stale screen, not a downgrade.
func (s *Store) SetHideoutLevel(moduleID string, level int) bool {
	return s.apply(func(d *Document) bool {
		if level <= d.HideoutLevels[moduleID] {
			return false
		}
		d.HideoutLevels[moduleID] = level
		return true
	})
}

// SetProjectPhase records a project phase. Phases only advance.
func (s *Store) SetProjectPhase(projectID string, phase int) bool {
	return s.apply(func(d *Document) bool {
		if phase <= d.ProjectPhases[projectID] {
			return false
		}
		d.ProjectPhases[projectID] = phase
		return true
	})
}

// MarkItemSeen records an inventory item sighting.
func (s *Store) MarkItemSeen(itemName string) bool {
	if itemName == "" {
		return false
	}
	return s.apply(func(d *Document) bool {
		if d.SeenItems[itemName] {
			return false
		}
		d.SeenItems[itemName] = true
		return true
	})
}

// apply runs a mutation under the lock; if it reports a change the document
// is saved and the change callback fired.
func (s *Store) apply(mutate func(*Document) bool) bool {
	s.mu.Lock()
	if !mutate(s.doc) {
		s.mu.Unlock()
		return false
	}
	s.doc.UpdatedAt = time.Now().UTC()
	snapshot := s.doc.clone()
	onChange := s.onChange
	err := s.save()
	s.mu.Unlock()

	if err != nil {
		s.log.Error("saving progress document", "path", s.path, "error", err)
	}
	if onChange != nil {
		onChange(snapshot)
	}
	return true
}

// save writes the document. Caller holds the lock.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
