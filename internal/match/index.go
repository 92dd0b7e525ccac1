package match

import (
	"hud-tracker/internal/catalog"
)

// MinConfidence is the default minimum similarity an OCR line must reach
// against some name variant before the entity is accepted.
const MinConfidence = 0.52

// Result is one accepted entity match for an OCR line.
type Result struct {
	EntityID    string
	DisplayName string
	RawText     string
	Confidence  float64
}

// entry is one entity with its precomputed normalized name variants.
type entry struct {
	id          string
	displayName string
	variants    []string
}

// Index is the entity name index: for each known entity, the set of
// normalized name strings (id plus every localized name) used for exact and
// fuzzy lookup. Build a fresh Index whenever the catalog snapshot changes; a
// stale index silently fails to match new entities.
type Index struct {
	entries []entry
	exact   map[string]int // normalized variant -> entry position
	minConf float64
}

// NewIndex builds an index over the given entities. Entity order is
// preserved: ties in fuzzy scoring resolve to the first-seen entity, which
// keeps matching deterministic across runs.
func NewIndex(entities []catalog.Entity, locale string, minConfidence float64) *Index {
	if minConfidence <= 0 {
		minConfidence = MinConfidence
	}
	idx := &Index{
		exact:   make(map[string]int),
		minConf: minConfidence,
	}

	for _, e := range entities {
		en := entry{
			id:          e.ID,
			displayName: e.DisplayName(locale),
		}
		seen := make(map[string]bool)
		add := func(name string) {
			n := Normalize(name)
			if n == "" || seen[n] {
				return
			}
			seen[n] = true
			en.variants = append(en.variants, n)
			if _, taken := idx.exact[n]; !taken {
				idx.exact[n] = len(idx.entries)
			}
		}
		add(e.ID)
		for _, name := range e.Names {
			add(name)
		}
		idx.entries = append(idx.entries, en)
	}

	return idx
}

// Len returns the number of indexed entities.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Match finds the best entity for one OCR text line. An exact normalized
// match returns confidence 1.0 immediately; otherwise every name variant of
// every entity is scored by edit-distance similarity and the best entity is
// returned if it clears the minimum confidence. Returns ok=false when
// nothing qualifies.
func (idx *Index) Match(line string) (Result, bool) {
	n := Normalize(line)
	if n == "" {
		return Result{}, false
	}

	if pos, ok := idx.exact[n]; ok {
		e := idx.entries[pos]
		return Result{
			EntityID:    e.id,
			DisplayName: e.displayName,
			RawText:     line,
			Confidence:  1.0,
		}, true
	}

	bestPos := -1
	bestScore := 0.0
	for pos, e := range idx.entries {
		for _, v := range e.variants {
			score := Similarity(n, v)
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}
	}

	if bestPos < 0 || bestScore < idx.minConf {
		return Result{}, false
	}
	e := idx.entries[bestPos]
	return Result{
		EntityID:    e.id,
		DisplayName: e.displayName,
		RawText:     line,
		Confidence:  bestScore,
	}, true
}

// MatchLines runs Match over a set of OCR lines and collects the accepted
// results, at most one per line.
func (idx *Index) MatchLines(lines []string) []Result {
	var results []Result
	for _, line := range lines {
		if r, ok := idx.Match(line); ok {
			results = append(results, r)
		}
	}
	return results
}
