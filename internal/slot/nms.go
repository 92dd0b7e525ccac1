package slot

import "sort"

// Deduplicate applies detection-level non-maximum suppression across all
// templates' hits. Multiple border templates can match the same physical
// slot; candidates are sorted by score descending and greedily kept only
// when their rectangle overlaps no already-kept rectangle by more than the
// IoU threshold.
func Deduplicate(dets []Detection, iouThreshold float64) []Detection {
	if len(dets) <= 1 {
		return dets
	}

	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Score > sorted[b].Score
	})

	kept := make([]Detection, 0, len(sorted))
	for _, cand := range sorted {
		overlaps := false
		for _, k := range kept {
			if cand.Rect.IoU(k.Rect) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, cand)
		}
	}
	return kept
}
