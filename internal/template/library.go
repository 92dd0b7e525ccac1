// Package template loads the reference images used by the slot pipeline:
// slot-border templates with a geometric border/center mask, and per-item
// icon templates. Everything is kept at full and half resolution for
// two-tier matching.
package template

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "image/png" // register PNG decoder

	xdraw "golang.org/x/image/draw"
	"gocv.io/x/gocv"
)

// SlotTemplate is a slot-border reference image with its border mask.
// The mask is white on the border band and black in the interior, so item
// art inside an occupied slot cannot corrupt border matching.
type SlotTemplate struct {
	Name   string
	Width  int
	Height int

	Full gocv.Mat // grayscale, native resolution
	Half gocv.Mat // grayscale, half resolution

	MaskFull gocv.Mat // 8UC1: 255 border band, 0 interior
	MaskHalf gocv.Mat
}

// ItemTemplate is one item icon reference image.
type ItemTemplate struct {
	Name string
	Full gocv.Mat // grayscale
	Half gocv.Mat
}

// Library holds the loaded templates. A Library is immutable once built;
// rebuild by calling Load again and swapping the pointer, then Close the
// old one after in-flight analyses drain.
type Library struct {
	Slots []SlotTemplate
	Items []ItemTemplate
}

// Load scans the slot-border directory and the item icon directories
// (recursively) and builds the template library. Images are de-duplicated
// by case-insensitive basename, first match wins. Missing directories
// produce an empty section, not an error: the pipeline degrades to a no-op.
func Load(slotDir string, itemDirs []string, log *slog.Logger) (*Library, error) {
	if log == nil {
		log = slog.Default()
	}

	lib := &Library{}

	for _, path := range scanImages([]string{slotDir}) {
		st, err := loadSlotTemplate(path)
		if err != nil {
			log.Warn("skipping slot template", "path", path, "error", err)
			continue
		}
		lib.Slots = append(lib.Slots, st)
	}

	for _, path := range scanImages(itemDirs) {
		it, err := loadItemTemplate(path)
		if err != nil {
			log.Warn("skipping item template", "path", path, "error", err)
			continue
		}
		lib.Items = append(lib.Items, it)
	}

	log.Info("template library loaded",
		"slots", len(lib.Slots), "items", len(lib.Items))
	return lib, nil
}

// Empty reports whether the library holds no slot templates. An empty
// library turns the slot detector into a no-op.
func (l *Library) Empty() bool {
	return l == nil || len(l.Slots) == 0
}

// Close releases all template Mats.
func (l *Library) Close() {
	if l == nil {
		return
	}
	for i := range l.Slots {
		s := &l.Slots[i]
		s.Full.Close()
		s.Half.Close()
		s.MaskFull.Close()
		s.MaskHalf.Close()
	}
	for i := range l.Items {
		it := &l.Items[i]
		it.Full.Close()
		it.Half.Close()
	}
}

// TemplateName derives the template key from an image path: the basename
// without extension, lowercased.
func TemplateName(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// scanImages walks the given directories recursively and returns png paths
// de-duplicated by case-insensitive basename, first match wins. Directories
// are scanned in the order given; within one directory, walk order is
// lexical, so dedup is deterministic.
func scanImages(dirs []string) []string {
	seen := make(map[string]bool)
	var paths []string

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil // unreadable entries are skipped, not fatal
			}
			if !strings.EqualFold(filepath.Ext(path), ".png") {
				return nil
			}
			key := TemplateName(path)
			if seen[key] {
				return nil
			}
			seen[key] = true
			paths = append(paths, path)
			return nil
		})
	}

	sort.Strings(paths)
	return paths
}

// loadSlotTemplate loads one border reference image and synthesizes its
// border mask at both resolutions.
func loadSlotTemplate(path string) (SlotTemplate, error) {
	full, half, w, h, err := loadGrayPair(path)
	if err != nil {
		return SlotTemplate{}, err
	}

	maskFull, err := borderMask(w, h)
	if err != nil {
		full.Close()
		half.Close()
		return SlotTemplate{}, err
	}
	maskHalf, err := borderMask(w/2, h/2)
	if err != nil {
		full.Close()
		half.Close()
		maskFull.Close()
		return SlotTemplate{}, err
	}

	return SlotTemplate{
		Name:     TemplateName(path),
		Width:    w,
		Height:   h,
		Full:     full,
		Half:     half,
		MaskFull: maskFull,
		MaskHalf: maskHalf,
	}, nil
}

func loadItemTemplate(path string) (ItemTemplate, error) {
	full, half, _, _, err := loadGrayPair(path)
	if err != nil {
		return ItemTemplate{}, err
	}
	return ItemTemplate{
		Name: TemplateName(path),
		Full: full,
		Half: half,
	}, nil
}

// loadGrayPair decodes a png and returns grayscale Mats at full and half
// resolution plus the full-resolution dimensions.
func loadGrayPair(path string) (full, half gocv.Mat, w, h int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return gocv.Mat{}, gocv.Mat{}, 0, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return gocv.Mat{}, gocv.Mat{}, 0, 0, fmt.Errorf("decode %s: %w", path, err)
	}

	b := src.Bounds()
	w, h = b.Dx(), b.Dy()
	if w < 4 || h < 4 {
		return gocv.Mat{}, gocv.Mat{}, 0, 0, fmt.Errorf("template %s too small (%dx%d)", path, w, h)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)

	halfImg := image.NewRGBA(image.Rect(0, 0, w/2, h/2))
	xdraw.ApproxBiLinear.Scale(halfImg, halfImg.Bounds(), rgba, rgba.Bounds(), xdraw.Src, nil)

	full, err = grayMat(rgba)
	if err != nil {
		return gocv.Mat{}, gocv.Mat{}, 0, 0, err
	}
	half, err = grayMat(halfImg)
	if err != nil {
		full.Close()
		return gocv.Mat{}, gocv.Mat{}, 0, 0, err
	}
	return full, half, w, h, nil
}

func grayMat(img *image.RGBA) (gocv.Mat, error) {
	rgba, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("convert image: %w", err)
	}
	defer rgba.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(rgba, &gray, gocv.ColorRGBAToGray)
	return gray, nil
}

// BorderThickness returns the mask border band width for a template of the
// given size: min(width, height)/16, at least one pixel.
func BorderThickness(w, h int) int {
	t := w
	if h < t {
		t = h
	}
	t /= 16
	if t < 1 {
		t = 1
	}
	return t
}

// borderMask builds an 8UC1 mask: 255 on the border band, 0 in the
// interior. The interior cut-out must exclude enough of the icon art that
// item-color bleed does not corrupt border matching.
func borderMask(w, h int) (gocv.Mat, error) {
	if w < 2 || h < 2 {
		return gocv.Mat{}, fmt.Errorf("mask size %dx%d too small", w, h)
	}
	t := BorderThickness(w, h)

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < t || y < t || x >= w-t || y >= h-t {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	m, err := gocv.ImageGrayToMatGray(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("convert mask: %w", err)
	}
	return m, nil
}
