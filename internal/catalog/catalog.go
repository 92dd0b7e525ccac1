// Package catalog exposes the read-only content snapshot: quest, hideout
// module, expedition project, and item definitions keyed by stable string
// ids. The snapshot is replaceable on refresh; consumers rebuild their name
// indexes and template libraries when handed a new one.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Entity is one catalog entry with its localized display names.
type Entity struct {
	ID    string            `json:"id"`
	Names map[string]string `json:"names"` // locale -> display name
}

// DisplayName returns the name for the given locale, falling back to "en"
// and then the id itself.
func (e Entity) DisplayName(locale string) string {
	if n, ok := e.Names[locale]; ok && n != "" {
		return n
	}
	if n, ok := e.Names["en"]; ok && n != "" {
		return n
	}
	return e.ID
}

// Item is one inventory item definition. The icon basename links it to a
// reference image in the item template directories.
type Item struct {
	ID    string            `json:"id"`
	Names map[string]string `json:"names"`
	Icon  string            `json:"icon,omitempty"`
}

// Snapshot is one immutable view of the content catalog.
type Snapshot struct {
	Quests   []Entity `json:"quests"`
	Hideout  []Entity `json:"hideout_modules"`
	Projects []Entity `json:"projects"`
	Items    []Item   `json:"items"`
}

// Load reads a catalog snapshot from dir. Each section lives in its own
// JSON file; missing files yield an empty section rather than an error, so
// a partial content drop still produces a usable snapshot.
func Load(dir string) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := loadSection(filepath.Join(dir, "quests.json"), &snap.Quests); err != nil {
		return nil, err
	}
	if err := loadSection(filepath.Join(dir, "hideout_modules.json"), &snap.Hideout); err != nil {
		return nil, err
	}
	if err := loadSection(filepath.Join(dir, "projects.json"), &snap.Projects); err != nil {
		return nil, err
	}
	if err := loadSection(filepath.Join(dir, "items.json"), &snap.Items); err != nil {
		return nil, err
	}

	return snap, nil
}

func loadSection(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
