package match

import (
	"testing"

	"hud-tracker/internal/catalog"
)

func TestNormalizeBasics(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Deliver 3 Scrap Metal", "DELIVER 3 SCRAP METAL"},
		{"  spaced   out \t text ", "SPACED OUT TEXT"},
		{"Électricité", "ELECTRICITE"},
		{"punct!@#uation...", "PUNCTUATION"},
		{"", ""},
		{"---", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Deliver 3 Scrap Metal",
		"Électricité  générale",
		"MIXED case 42 — things",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestSimilarityBounds(t *testing.T) {
	if s := Similarity("ABC", "ABC"); s != 1 {
		t.Errorf("identical similarity = %f", s)
	}
	if s := Similarity("ABC", "XYZ"); s != 0 {
		t.Errorf("disjoint similarity = %f", s)
	}
	if s := Similarity("", ""); s != 1 {
		t.Errorf("empty similarity = %f", s)
	}
}

func testIndex() *Index {
	entities := []catalog.Entity{
		{ID: "quest_scrap", Names: map[string]string{"en": "Deliver 3 Scrap Metal"}},
		{ID: "quest_water", Names: map[string]string{"en": "Purify the Water Supply", "de": "Wasserversorgung reinigen"}},
		{ID: "quest_signal", Names: map[string]string{"en": "Restore the Signal Tower"}},
	}
	return NewIndex(entities, "en", 0)
}

func TestExactMatchConfidenceOne(t *testing.T) {
	idx := testIndex()
	r, ok := idx.Match("Deliver 3 Scrap Metal")
	if !ok {
		t.Fatal("exact match not found")
	}
	if r.EntityID != "quest_scrap" {
		t.Errorf("matched %q", r.EntityID)
	}
	if r.Confidence != 1.0 {
		t.Errorf("exact confidence = %f, want 1.0", r.Confidence)
	}
}

func TestTypoStillMatches(t *testing.T) {
	idx := testIndex()
	// One-character OCR typo: "Scrap" -> "Scrab".
	r, ok := idx.Match("Deliver 3 Scrab Metal")
	if !ok {
		t.Fatal("typo match not found")
	}
	if r.EntityID != "quest_scrap" {
		t.Errorf("matched %q", r.EntityID)
	}
	if r.Confidence >= 1.0 || r.Confidence < MinConfidence {
		t.Errorf("typo confidence = %f, want [%f, 1.0)", r.Confidence, MinConfidence)
	}
}

func TestLocalizedVariantMatches(t *testing.T) {
	idx := testIndex()
	r, ok := idx.Match("Wasserversorgung reinigen")
	if !ok {
		t.Fatal("localized name not matched")
	}
	if r.EntityID != "quest_water" {
		t.Errorf("matched %q", r.EntityID)
	}
}

func TestGarbageRejected(t *testing.T) {
	idx := testIndex()
	if r, ok := idx.Match("qqqqq zzzzz 00000 xxxxx"); ok {
		t.Errorf("garbage matched %q with confidence %f", r.EntityID, r.Confidence)
	}
	if _, ok := idx.Match(""); ok {
		t.Error("empty line matched")
	}
}

func TestTieBreaksFirstSeen(t *testing.T) {
	entities := []catalog.Entity{
		{ID: "first", Names: map[string]string{"en": "Common Name A"}},
		{ID: "second", Names: map[string]string{"en": "Common Name B"}},
	}
	idx := NewIndex(entities, "en", 0)
	// Equidistant from both variants; must deterministically pick the first.
	r, ok := idx.Match("Common Name C")
	if !ok {
		t.Fatal("no match")
	}
	if r.EntityID != "first" {
		t.Errorf("tie resolved to %q, want first-seen", r.EntityID)
	}
}

func TestMatchLines(t *testing.T) {
	idx := testIndex()
	lines := []string{
		"Deliver 3 Scrap Metal",
		"complete garbage zz",
		"Restore the Signal Tower",
	}
	results := idx.MatchLines(lines)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].EntityID != "quest_scrap" || results[1].EntityID != "quest_signal" {
		t.Errorf("unexpected results %+v", results)
	}
}
