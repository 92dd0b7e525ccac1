// ocrscan OCRs a region of a saved screenshot and optionally matches the
// recognized lines against a catalog section. Useful for tuning detector
// regions and checking OCR quality on new game builds.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strconv"
	"strings"
	"time"

	"hud-tracker/internal/capture"
	"hud-tracker/internal/catalog"
	"hud-tracker/internal/match"
	"hud-tracker/internal/ocr"
	"hud-tracker/pkg/geometry"
)

func main() {
	regionSpec := flag.String("region", "0,0,1,1", "normalized region left,top,width,height")
	lang := flag.String("lang", "eng", "tesseract language")
	catalogDir := flag.String("catalog", "", "catalog directory to match lines against")
	section := flag.String("section", "quests", "catalog section: quests, hideout, projects")
	locale := flag.String("locale", "en", "display-name locale")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] screenshot.png\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	region, err := parseRegion(*regionSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing region: %v\n", err)
		os.Exit(2)
	}

	frame, err := loadFrame(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading screenshot: %v\n", err)
		os.Exit(1)
	}

	engine, err := ocr.NewEngine(*lang)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting OCR engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	lines, err := engine.RecognizeLines(frame, region)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error recognizing: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%d lines:\n", len(lines))
	for _, line := range lines {
		fmt.Printf("  %q\n", line)
	}

	if *catalogDir == "" {
		return
	}

	idx, err := buildIndex(*catalogDir, *section, *locale)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building index: %v\n", err)
		os.Exit(1)
	}

	results := idx.MatchLines(lines)
	fmt.Printf("%d matches:\n", len(results))
	for _, r := range results {
		fmt.Printf("  %-32s %.3f  (from %q)\n", r.EntityID, r.Confidence, r.RawText)
	}
}

func buildIndex(dir, section, locale string) (*match.Index, error) {
	snap, err := catalog.Load(dir)
	if err != nil {
		return nil, err
	}
	var entities []catalog.Entity
	switch section {
	case "quests":
		entities = snap.Quests
	case "hideout":
		entities = snap.Hideout
	case "projects":
		entities = snap.Projects
	default:
		return nil, fmt.Errorf("unknown section %q", section)
	}
	return match.NewIndex(entities, locale, match.MinConfidence), nil
}

func parseRegion(spec string) (geometry.NormalizedRegion, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return geometry.NormalizedRegion{}, fmt.Errorf("want left,top,width,height, got %q", spec)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.NormalizedRegion{}, err
		}
		vals[i] = v
	}
	return geometry.NewNormalizedRegion(vals[0], vals[1], vals[2], vals[3]), nil
}

func loadFrame(path string) (*capture.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}
	return capture.NewFrame(rgba, image.Point{}, time.Now()), nil
}
