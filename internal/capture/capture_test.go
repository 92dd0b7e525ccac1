package capture

import (
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"hud-tracker/pkg/geometry"
)

func testFrame(w, h int) *Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = byte(i % 251)
	}
	return NewFrame(img, image.Pt(100, 200), time.Now())
}

func TestFramePixelAccess(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(2, 3, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	f := NewFrame(img, image.Point{}, time.Now())

	r, g, b, a := f.RGBAAt(2, 3)
	if r != 10 || g != 20 || b != 30 || a != 255 {
		t.Errorf("RGBAAt(2,3) = (%d,%d,%d,%d)", r, g, b, a)
	}

	// Out of bounds reads return black rather than panicking.
	if r, _, _, _ := f.RGBAAt(-1, 0); r != 0 {
		t.Error("out-of-bounds read not black")
	}
	if r, _, _, _ := f.RGBAAt(4, 4); r != 0 {
		t.Error("out-of-bounds read not black")
	}
}

func TestFrameResolveClipped(t *testing.T) {
	f := testFrame(640, 480)
	r := f.Resolve(geometry.NewNormalizedRegion(0.9, 0.9, 0.5, 0.5))
	if r.X+r.Width > 640 || r.Y+r.Height > 480 {
		t.Errorf("resolved region %+v exceeds frame", r)
	}
}

func TestGateShedding(t *testing.T) {
	var g Gate
	if !g.TryAcquire() {
		t.Fatal("first acquire failed")
	}
	if g.TryAcquire() {
		t.Fatal("second acquire succeeded while held")
	}
	g.Release()
	if !g.TryAcquire() {
		t.Fatal("acquire after release failed")
	}
}

func TestGateConcurrentSingleWinner(t *testing.T) {
	var g Gate
	var wg sync.WaitGroup
	winners := make(chan int, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if g.TryAcquire() {
				winners <- n
			}
		}(i)
	}
	wg.Wait()
	close(winners)
	count := 0
	for range winners {
		count++
	}
	if count != 1 {
		t.Errorf("%d goroutines acquired the gate, want 1", count)
	}
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	s := NewSource("", time.Second, nil)
	var got []int
	for i := 0; i < 3; i++ {
		n := i
		s.Subscribe(func(f *Frame) { got = append(got, n) })
	}
	s.publish(testFrame(8, 8))
	if len(got) != 3 {
		t.Errorf("delivered to %d subscribers, want 3", len(got))
	}
}
