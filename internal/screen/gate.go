// Package screen classifies which game screen a frame is showing using
// cheap pixel-color heuristics. OCR is expensive; these gates reject the
// common case (wrong screen) in microseconds using only arithmetic over
// sampled pixels. A false positive costs one wasted OCR pass; a false
// negative costs a missed detection, so thresholds lean permissive.
package screen

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"hud-tracker/internal/capture"
	"hud-tracker/pkg/geometry"
)

// sampleStep subsamples the region grid. Gates only need aggregate color,
// not every pixel.
const sampleStep = 4

// Predicate decides whether a frame plausibly shows a particular screen.
type Predicate func(*capture.Frame) bool

// ColorTest classifies a single RGB pixel.
type ColorTest func(r, g, b uint8) bool

// Stats holds aggregate color statistics over a sampled region.
type Stats struct {
	MeanR, MeanG, MeanB float64
	MeanLuma            float64
	StdLuma             float64
	Samples             int
}

// SampleStats computes color statistics over a normalized region of a frame.
func SampleStats(f *capture.Frame, region geometry.NormalizedRegion) Stats {
	rect := f.Resolve(region)
	if rect.Empty() {
		return Stats{}
	}

	var sumR, sumG, sumB float64
	lumas := make([]float64, 0, (rect.Width/sampleStep+1)*(rect.Height/sampleStep+1))

	for y := rect.Y; y < rect.Y+rect.Height; y += sampleStep {
		for x := rect.X; x < rect.X+rect.Width; x += sampleStep {
			r, g, b, _ := f.RGBAAt(x, y)
			sumR += float64(r)
			sumG += float64(g)
			sumB += float64(b)
			lumas = append(lumas, luma(r, g, b))
		}
	}

	n := float64(len(lumas))
	if n == 0 {
		return Stats{}
	}
	s := Stats{
		MeanR:    sumR / n,
		MeanG:    sumG / n,
		MeanB:    sumB / n,
		MeanLuma: stat.Mean(lumas, nil),
		Samples:  len(lumas),
	}
	if len(lumas) > 1 {
		s.StdLuma = stat.StdDev(lumas, nil)
	}
	return s
}

// Coverage returns the fraction of sampled pixels in the region satisfying
// the color test.
func Coverage(f *capture.Frame, region geometry.NormalizedRegion, test ColorTest) float64 {
	rect := f.Resolve(region)
	if rect.Empty() {
		return 0
	}

	hits, total := 0, 0
	for y := rect.Y; y < rect.Y+rect.Height; y += sampleStep {
		for x := rect.X; x < rect.X+rect.Width; x += sampleStep {
			r, g, b, _ := f.RGBAAt(x, y)
			total++
			if test(r, g, b) {
				hits++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// AvgColorNear builds a predicate that accepts when the region's average
// color is within tolerance (Euclidean RGB distance) of the target.
func AvgColorNear(region geometry.NormalizedRegion, r, g, b uint8, tolerance float64) Predicate {
	return func(f *capture.Frame) bool {
		s := SampleStats(f, region)
		if s.Samples == 0 {
			return false
		}
		dr := s.MeanR - float64(r)
		dg := s.MeanG - float64(g)
		db := s.MeanB - float64(b)
		return math.Sqrt(dr*dr+dg*dg+db*db) <= tolerance
	}
}

// MinCoverage builds a predicate that accepts when at least minFraction of
// the region's sampled pixels pass the color test.
func MinCoverage(region geometry.NormalizedRegion, test ColorTest, minFraction float64) Predicate {
	return func(f *capture.Frame) bool {
		return Coverage(f, region, test) >= minFraction
	}
}

// BrightnessBetween builds a predicate on the region's mean luminance.
func BrightnessBetween(region geometry.NormalizedRegion, lo, hi float64) Predicate {
	return func(f *capture.Frame) bool {
		s := SampleStats(f, region)
		return s.Samples > 0 && s.MeanLuma >= lo && s.MeanLuma <= hi
	}
}

// And combines predicates; all must accept.
func And(preds ...Predicate) Predicate {
	return func(f *capture.Frame) bool {
		for _, p := range preds {
			if !p(f) {
				return false
			}
		}
		return true
	}
}

// Or combines predicates; any may accept.
func Or(preds ...Predicate) Predicate {
	return func(f *capture.Frame) bool {
		for _, p := range preds {
			if p(f) {
				return true
			}
		}
		return false
	}
}

// luma is the Rec. 601 luminance of an RGB pixel.
func luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// Saturated is a ColorTest helper: the pixel has a dominant channel at
// least delta above the weakest one. Useful for "characteristic button
// color" style gates.
func Saturated(delta uint8) ColorTest {
	return func(r, g, b uint8) bool {
		maxC, minC := r, r
		for _, c := range []uint8{g, b} {
			if c > maxC {
				maxC = c
			}
			if c < minC {
				minC = c
			}
		}
		return maxC-minC >= delta
	}
}
