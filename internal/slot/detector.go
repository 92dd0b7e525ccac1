package slot

import (
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"

	"hud-tracker/internal/capture"
	"hud-tracker/internal/template"
	"hud-tracker/pkg/geometry"
)

// DetectorParams controls slot detection behavior.
type DetectorParams struct {
	// SlotThreshold is the minimum normalized cross-correlation score for a
	// border template hit.
	SlotThreshold float64

	// ItemThreshold is the minimum full-resolution score at which an item
	// identification is considered unambiguous and collapses to a single
	// candidate.
	ItemThreshold float64
}

// DefaultParams returns the default detection thresholds.
func DefaultParams() DetectorParams {
	return DetectorParams{
		SlotThreshold: 0.70,
		ItemThreshold: 0.80,
	}
}

const (
	// maxMatchesPerTemplate caps greedy peak extraction per border template.
	maxMatchesPerTemplate = 50

	// suppressFraction of the template footprint is zeroed around each
	// accepted peak so the same slot is not re-detected.
	suppressFraction = 0.6

	// occupancyMargin is trimmed from each side of a slot before edge
	// counting, leaving the inner 60%.
	occupancyMargin = 0.2

	// occupancyEdgeDensity is the minimum fraction of edge pixels in the
	// inner crop for a slot to count as occupied.
	occupancyEdgeDensity = 0.05

	// coarseTopK item candidates survive half-resolution scoring and are
	// re-scored at full resolution.
	coarseTopK = 10

	// ambiguousCandidates are kept when no item clears ItemThreshold.
	ambiguousCandidates = 5

	// nmsIoU is the overlap above which two detections are considered the
	// same physical slot.
	nmsIoU = 0.5
)

// Detector runs per-frame slot detection. It keeps no per-frame state, so
// feeding the same frame twice yields identical results and per-template
// matching can run in parallel.
type Detector struct {
	params DetectorParams
	lib    atomic.Pointer[template.Library]
	log    *slog.Logger

	emptyWarned atomic.Bool
}

// NewDetector creates a detector over the given template library.
func NewDetector(lib *template.Library, params DetectorParams, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	d := &Detector{
		params: params,
		log:    log.With("component", "slot-detector"),
	}
	d.lib.Store(lib)
	return d
}

// SetLibrary swaps the template library. Safe to call while detection is
// running; in-flight analyses finish with the library they started with.
func (d *Detector) SetLibrary(lib *template.Library) {
	d.lib.Store(lib)
	d.emptyWarned.Store(false)
}

// Detect runs the full per-frame pipeline and returns deduplicated,
// occupied slot detections in frame-local coordinates.
func (d *Detector) Detect(frame *capture.Frame) ([]Detection, error) {
	lib := d.lib.Load()
	if lib.Empty() {
		// No templates is a configuration state, not an error; the analyzer
		// degrades to a no-op. Logged once per library.
		if d.emptyWarned.CompareAndSwap(false, true) {
			d.log.Warn("no slot templates loaded, detection disabled")
		}
		return nil, nil
	}

	// Luminance + 3x3 Gaussian blur suppresses shimmer/flicker, then a
	// half-resolution copy serves coarse matching.
	gray, err := frameGray(frame)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(3, 3), 0, 0, gocv.BorderDefault)

	half := gocv.NewMat()
	defer half.Close()
	gocv.Resize(blurred, &half, image.Point{}, 0.5, 0.5, gocv.InterpolationArea)

	hits := d.matchAllTemplates(half, lib)

	var occupied []Detection
	for _, hit := range hits {
		det, ok := d.classifyHit(blurred, half, lib, hit)
		if !ok {
			continue // unoccupied slots carry no information
		}
		occupied = append(occupied, det)
	}

	return Deduplicate(occupied, nmsIoU), nil
}

// rawHit is one greedy template-match peak before occupancy testing.
type rawHit struct {
	rect     geometry.Rect
	score    float64
	template string
}

// matchAllTemplates runs masked NCC for every border template against the
// half-resolution frame. Templates are independent, so they run in
// parallel.
func (d *Detector) matchAllTemplates(half gocv.Mat, lib *template.Library) []rawHit {
	var mu sync.Mutex
	var all []rawHit

	var wg sync.WaitGroup
	for i := range lib.Slots {
		st := &lib.Slots[i]
		if half.Cols() < st.Half.Cols() || half.Rows() < st.Half.Rows() {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits := d.matchOneTemplate(half, st)
			if len(hits) == 0 {
				return
			}
			mu.Lock()
			all = append(all, hits...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return all
}

// matchOneTemplate greedily extracts peaks from one template's correlation
// map: take the global maximum, record it if above threshold, zero out the
// surrounding footprint, repeat.
func (d *Detector) matchOneTemplate(half gocv.Mat, st *template.SlotTemplate) []rawHit {
	result := gocv.NewMat()
	defer result.Close()

	gocv.MatchTemplate(half, st.Half, &result, gocv.TmCcorrNormed, st.MaskHalf)

	tw, th := st.Half.Cols(), st.Half.Rows()
	supW := int(float64(tw) * suppressFraction)
	supH := int(float64(th) * suppressFraction)

	var hits []rawHit
	for len(hits) < maxMatchesPerTemplate {
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
		if float64(maxVal) < d.params.SlotThreshold {
			break
		}

		// Scale the half-res location back up; the hit takes the template's
		// native size.
		hits = append(hits, rawHit{
			rect: geometry.Rect{
				X:      float64(maxLoc.X * 2),
				Y:      float64(maxLoc.Y * 2),
				Width:  float64(st.Width),
				Height: float64(st.Height),
			},
			score:    float64(maxVal),
			template: st.Name,
		})

		suppress := image.Rect(
			maxLoc.X-supW/2, maxLoc.Y-supH/2,
			maxLoc.X+supW/2+1, maxLoc.Y+supH/2+1,
		).Intersect(image.Rect(0, 0, result.Cols(), result.Rows()))
		if suppress.Empty() {
			break
		}
		region := result.Region(suppress)
		region.SetTo(gocv.NewScalar(0, 0, 0, 0))
		region.Close()
	}

	return hits
}

// classifyHit tests occupancy and identifies the contained item. Returns
// ok=false for unoccupied slots.
func (d *Detector) classifyHit(blurred, half gocv.Mat, lib *template.Library, hit rawHit) (Detection, bool) {
	inner := innerRect(hit.rect, blurred.Cols(), blurred.Rows())
	if inner.Empty() {
		return Detection{}, false
	}

	if !isOccupied(blurred, inner) {
		return Detection{}, false
	}

	det := Detection{
		Rect:     hit.rect,
		Score:    hit.score,
		Template: hit.template,
		Occupied: true,
	}

	name, conf, candidates := d.identifyItem(blurred, half, lib, hit.rect)
	det.ItemName = name
	det.Confidence = conf
	det.Candidates = candidates
	return det, true
}

// innerRect crops a slot rect to its inner 60% (1/5 margin on each side),
// clipped to the frame.
func innerRect(r geometry.Rect, frameW, frameH int) image.Rectangle {
	mx := r.Width * occupancyMargin
	my := r.Height * occupancyMargin
	inner := image.Rect(
		int(r.X+mx), int(r.Y+my),
		int(r.X+r.Width-mx), int(r.Y+r.Height-my),
	)
	return inner.Intersect(image.Rect(0, 0, frameW, frameH))
}

// isOccupied classifies occupancy by edge-pixel density over the inner
// crop. An empty slot is a flat border fill; an item icon produces edges.
func isOccupied(blurred gocv.Mat, inner image.Rectangle) bool {
	crop := blurred.Region(inner)
	defer crop.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(crop, &edges, 50, 150)

	total := edges.Rows() * edges.Cols()
	if total == 0 {
		return false
	}
	density := float64(gocv.CountNonZero(edges)) / float64(total)
	return density > occupancyEdgeDensity
}

// identifyItem runs the two-tier item search: score every item template at
// half resolution, keep the top K, re-score those at full resolution, and
// rank. A best score above ItemThreshold is unambiguous and collapses to a
// single candidate; otherwise the top candidates are kept for UI display
// and debugging.
func (d *Detector) identifyItem(blurred, half gocv.Mat, lib *template.Library, slotRect geometry.Rect) (string, float64, []Candidate) {
	if len(lib.Items) == 0 {
		return "", 0, nil
	}

	fullCrop, ok := cropMat(blurred, slotRect, 1)
	if !ok {
		return "", 0, nil
	}
	defer fullCrop.Close()

	halfCrop, ok := cropMat(half, slotRect, 0.5)
	if !ok {
		return "", 0, nil
	}
	defer halfCrop.Close()

	// Tier 1: cheap half-resolution scoring of every item.
	type scored struct {
		idx   int
		score float64
	}
	coarse := make([]scored, 0, len(lib.Items))
	for i := range lib.Items {
		s := scoreTemplate(halfCrop, lib.Items[i].Half)
		coarse = append(coarse, scored{idx: i, score: s})
	}
	sort.Slice(coarse, func(a, b int) bool { return coarse[a].score > coarse[b].score })
	if len(coarse) > coarseTopK {
		coarse = coarse[:coarseTopK]
	}

	// Tier 2: full-resolution re-scoring of the survivors.
	fine := make([]Candidate, 0, len(coarse))
	for _, c := range coarse {
		it := &lib.Items[c.idx]
		fine = append(fine, Candidate{
			Name:  it.Name,
			Score: scoreTemplate(fullCrop, it.Full),
		})
	}
	sort.SliceStable(fine, func(a, b int) bool { return fine[a].Score > fine[b].Score })

	best := fine[0]
	if best.Score >= d.params.ItemThreshold {
		return best.Name, best.Score, []Candidate{best}
	}
	if len(fine) > ambiguousCandidates {
		fine = fine[:ambiguousCandidates]
	}
	return best.Name, best.Score, fine
}

// cropMat extracts the slot rect (scaled by factor) from a Mat, clipped to
// bounds. Returns ok=false when the clipped rect is degenerate.
func cropMat(m gocv.Mat, r geometry.Rect, factor float64) (gocv.Mat, bool) {
	rect := image.Rect(
		int(r.X*factor), int(r.Y*factor),
		int((r.X+r.Width)*factor), int((r.Y+r.Height)*factor),
	).Intersect(image.Rect(0, 0, m.Cols(), m.Rows()))
	if rect.Dx() < 4 || rect.Dy() < 4 {
		return gocv.Mat{}, false
	}
	return m.Region(rect), true
}

// scoreTemplate computes the NCC score between a slot crop and an item
// template. The crop is resized to the template's dimensions so the
// correlation map is a single value.
func scoreTemplate(crop, tmpl gocv.Mat) float64 {
	if tmpl.Cols() < 4 || tmpl.Rows() < 4 {
		return 0
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(crop, &resized, image.Pt(tmpl.Cols(), tmpl.Rows()), 0, 0, gocv.InterpolationArea)

	result := gocv.NewMat()
	defer result.Close()
	noMask := gocv.NewMat()
	defer noMask.Close()
	gocv.MatchTemplate(resized, tmpl, &result, gocv.TmCcorrNormed, noMask)

	_, maxVal, _, _ := gocv.MinMaxLoc(result)
	return float64(maxVal)
}

// frameGray converts a frame to a single-channel luminance Mat.
func frameGray(frame *capture.Frame) (gocv.Mat, error) {
	rgba, err := gocv.ImageToMatRGBA(frame.ToImage())
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("convert frame: %w", err)
	}
	defer rgba.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(rgba, &gray, gocv.ColorRGBAToGray)
	return gray, nil
}
