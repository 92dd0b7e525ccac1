package template

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestTemplateName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/a/b/Scrap_Metal.PNG", "scrap_metal"},
		{"icon.png", "icon"},
		{"/x/WIRE.png", "wire"},
	}
	for _, c := range cases {
		if got := TemplateName(c.in); got != c.want {
			t.Errorf("TemplateName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestScanImagesDedupFirstWins(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()

	// Same basename in both directories, different case. dirA is scanned
	// first so its copy must win.
	writePNG(t, filepath.Join(dirA, "Wire.png"), 16, 16)
	writePNG(t, filepath.Join(dirB, "wire.PNG"), 16, 16)
	writePNG(t, filepath.Join(dirB, "nested", "bolt.png"), 16, 16)
	// Non-png files are ignored.
	if err := os.WriteFile(filepath.Join(dirB, "readme.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	paths := scanImages([]string{dirA, dirB})
	if len(paths) != 2 {
		t.Fatalf("got %d paths, want 2: %v", len(paths), paths)
	}

	byName := make(map[string]string)
	for _, p := range paths {
		byName[TemplateName(p)] = p
	}
	if p, ok := byName["wire"]; !ok || filepath.Dir(p) != dirA {
		t.Errorf("wire resolved to %q, want copy under %q", p, dirA)
	}
	if _, ok := byName["bolt"]; !ok {
		t.Error("nested bolt.png not found by recursive scan")
	}
}

func TestScanImagesMissingDir(t *testing.T) {
	paths := scanImages([]string{"/nonexistent/path", ""})
	if len(paths) != 0 {
		t.Errorf("missing dirs produced %v", paths)
	}
}

func TestBorderThickness(t *testing.T) {
	cases := []struct{ w, h, want int }{
		{64, 64, 4},
		{64, 32, 2},
		{128, 96, 6},
		{8, 8, 1}, // floor at one pixel
	}
	for _, c := range cases {
		if got := BorderThickness(c.w, c.h); got != c.want {
			t.Errorf("BorderThickness(%d,%d) = %d, want %d", c.w, c.h, got, c.want)
		}
	}
}
