package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPartialCatalog(t *testing.T) {
	dir := t.TempDir()
	quests := `[{"id": "q_scrap", "names": {"en": "Deliver 3 Scrap Metal", "de": "Liefere 3 Altmetall"}}]`
	if err := os.WriteFile(filepath.Join(dir, "quests.json"), []byte(quests), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Quests) != 1 || snap.Quests[0].ID != "q_scrap" {
		t.Errorf("quests = %+v", snap.Quests)
	}
	// Missing section files yield empty sections, not errors.
	if len(snap.Hideout) != 0 || len(snap.Projects) != 0 || len(snap.Items) != 0 {
		t.Errorf("missing sections not empty: %+v", snap)
	}
}

func TestLoadRejectsMalformedSection(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "items.json"), []byte("[{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("malformed section loaded without error")
	}
}

func TestDisplayNameFallback(t *testing.T) {
	e := Entity{ID: "q1", Names: map[string]string{"en": "English", "de": "Deutsch"}}
	if got := e.DisplayName("de"); got != "Deutsch" {
		t.Errorf("DisplayName(de) = %q", got)
	}
	if got := e.DisplayName("fr"); got != "English" {
		t.Errorf("DisplayName(fr) = %q, want en fallback", got)
	}
	bare := Entity{ID: "q2"}
	if got := bare.DisplayName("en"); got != "q2" {
		t.Errorf("DisplayName with no names = %q, want id", got)
	}
}
