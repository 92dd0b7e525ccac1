package slot

import (
	"math"
	"testing"
	"time"

	"hud-tracker/pkg/geometry"
)

func itemDet(x, y float64, name string) Detection {
	return Detection{
		Rect:       geometry.NewRect(x, y, 64, 64),
		Score:      0.9,
		Occupied:   true,
		ItemName:   name,
		Confidence: 0.85,
		Candidates: []Candidate{{Name: name, Score: 0.85}},
	}
}

func TestNewSlotNotVisibleUntilStable(t *testing.T) {
	tr := NewTracker(DefaultTrackerParams())
	now := time.Now()

	vis := tr.Update([]Detection{itemDet(100, 100, "wire")}, 0, 0, now)
	if len(vis) != 0 {
		t.Fatalf("brand-new slot visible immediately: %+v", vis)
	}
	if tr.Len() != 1 {
		t.Fatalf("tracked %d slots, want 1", tr.Len())
	}

	vis = tr.Update([]Detection{itemDet(101, 100, "wire")}, 0, 0, now.Add(30*time.Millisecond))
	if len(vis) != 1 {
		t.Fatalf("slot not visible after reaching stability: %+v", vis)
	}
	if vis[0].ItemName != "wire" {
		t.Errorf("item = %q", vis[0].ItemName)
	}
}

func TestTrackerSmoothingConverges(t *testing.T) {
	tr := NewTracker(DefaultTrackerParams())
	now := time.Now()

	tr.Update([]Detection{itemDet(100, 100, "wire")}, 0, 0, now)

	// Feed a drifted observation repeatedly: the smoothed X must move
	// monotonically toward 110 and each step must be bounded by the EMA
	// weight times the remaining gap.
	prevX := 100.0
	for i := 1; i <= 20; i++ {
		now = now.Add(30 * time.Millisecond)
		vis := tr.Update([]Detection{itemDet(110, 100, "wire")}, 0, 0, now)
		if len(vis) != 1 {
			t.Fatalf("pass %d: %d visible slots", i, len(vis))
		}
		x := vis[0].ScreenRect.X
		if x < prevX {
			t.Fatalf("pass %d: X moved away from target (%f -> %f)", i, prevX, x)
		}
		step := x - prevX
		maxStep := 0.3*(110-prevX) + 1e-9
		if step > maxStep {
			t.Fatalf("pass %d: step %f exceeds EMA bound %f", i, step, maxStep)
		}
		prevX = x
	}
	if math.Abs(prevX-110) > 1 {
		t.Errorf("X did not converge: %f", prevX)
	}
}

func TestTrackerEviction(t *testing.T) {
	tr := NewTracker(DefaultTrackerParams())
	now := time.Now()

	tr.Update([]Detection{itemDet(100, 100, "wire")}, 0, 0, now)
	tr.Update([]Detection{itemDet(100, 100, "wire")}, 0, 0, now.Add(30*time.Millisecond))

	// No detections for longer than the removal timeout: slot evicted and
	// the output list is empty (re-emitted so renderers clear overlays).
	vis := tr.Update(nil, 0, 0, now.Add(300*time.Millisecond))
	if len(vis) != 0 {
		t.Errorf("evicted slot still visible: %+v", vis)
	}
	if tr.Len() != 0 {
		t.Errorf("tracker still holds %d slots", tr.Len())
	}
}

func TestTrackerKeepsIdentityAcrossJitter(t *testing.T) {
	tr := NewTracker(DefaultTrackerParams())
	now := time.Now()

	tr.Update([]Detection{itemDet(100, 100, "wire")}, 0, 0, now)
	vis := tr.Update([]Detection{itemDet(105, 103, "wire")}, 0, 0, now.Add(30*time.Millisecond))
	if len(vis) != 1 {
		t.Fatal("jittered detection not matched")
	}
	id := vis[0].ID

	vis = tr.Update([]Detection{itemDet(98, 101, "wire")}, 0, 0, now.Add(60*time.Millisecond))
	if len(vis) != 1 || vis[0].ID != id {
		t.Error("identity lost across jitter within tolerance")
	}
}

func TestTrackerFarDetectionIsNewSlot(t *testing.T) {
	tr := NewTracker(DefaultTrackerParams())
	now := time.Now()

	tr.Update([]Detection{itemDet(100, 100, "wire")}, 0, 0, now)
	// 50px away exceeds the 20px tolerance: must become a second slot.
	tr.Update([]Detection{itemDet(150, 100, "bolt")}, 0, 0, now.Add(30*time.Millisecond))
	if tr.Len() != 2 {
		t.Errorf("tracked %d slots, want 2", tr.Len())
	}
}

func TestTrackerScreenTranslation(t *testing.T) {
	tr := NewTracker(DefaultTrackerParams())
	now := time.Now()

	tr.Update([]Detection{itemDet(100, 100, "wire")}, 640, 480, now)
	vis := tr.Update([]Detection{itemDet(100, 100, "wire")}, 640, 480, now.Add(30*time.Millisecond))
	if len(vis) != 1 {
		t.Fatal("no visible slot")
	}
	if vis[0].ScreenRect.X != 740 || vis[0].ScreenRect.Y != 580 {
		t.Errorf("screen rect = %+v, want origin (740,580)", vis[0].ScreenRect)
	}
}

func TestTrackerUnoccupiedClearsItem(t *testing.T) {
	params := DefaultTrackerParams()
	tr := NewTracker(params)
	now := time.Now()

	tr.Update([]Detection{itemDet(100, 100, "wire")}, 0, 0, now)

	empty := Detection{
		Rect:     geometry.NewRect(100, 100, 64, 64),
		Score:    0.9,
		Occupied: false,
	}
	vis := tr.Update([]Detection{empty}, 0, 0, now.Add(30*time.Millisecond))
	if len(vis) != 1 {
		t.Fatal("slot not visible")
	}
	if vis[0].Occupied || vis[0].ItemName != "" || len(vis[0].Candidates) != 0 {
		t.Errorf("unoccupied observation did not clear item state: %+v", vis[0])
	}
}
