// slotscan runs the slot detection pipeline over a saved screenshot and
// prints the raw detections. Useful for tuning thresholds and checking new
// reference images without the game running.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"hud-tracker/internal/capture"
	"hud-tracker/internal/slot"
	"hud-tracker/internal/template"
)

func main() {
	slotDir := flag.String("slots", "templates/slots", "slot-border reference image directory")
	itemDirs := flag.String("items", "templates/items", "comma-separated item icon directories")
	slotThreshold := flag.Float64("slot-threshold", 0.70, "slot match score floor")
	itemThreshold := flag.Float64("item-threshold", 0.80, "item match score floor")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] screenshot.png\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))

	frame, err := loadFrame(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading screenshot: %v\n", err)
		os.Exit(1)
	}

	lib, err := template.Load(*slotDir, strings.Split(*itemDirs, ","), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading templates: %v\n", err)
		os.Exit(1)
	}
	defer lib.Close()

	params := slot.DefaultParams()
	params.SlotThreshold = *slotThreshold
	params.ItemThreshold = *itemThreshold
	detector := slot.NewDetector(lib, params, logger)

	start := time.Now()
	dets, err := detector.Detect(frame)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error detecting: %v\n", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	fmt.Printf("%d detections in %v\n", len(dets), elapsed.Round(time.Millisecond))
	for _, d := range dets {
		fmt.Printf("  %s at (%.0f,%.0f) %gx%g score=%.3f occupied=%v",
			d.Template, d.Rect.X, d.Rect.Y, d.Rect.Width, d.Rect.Height, d.Score, d.Occupied)
		if d.ItemName != "" {
			fmt.Printf(" item=%s conf=%.3f", d.ItemName, d.Confidence)
		}
		fmt.Println()
		for _, c := range d.Candidates {
			fmt.Printf("      candidate %-24s %.3f\n", c.Name, c.Score)
		}
	}
}

// loadFrame reads a png or jpeg screenshot into a frame at screen origin.
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
