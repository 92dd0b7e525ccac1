// Package ocr provides OCR (Optical Character Recognition) for game HUD
// text regions.
package ocr

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"

	"hud-tracker/internal/capture"
	"hud-tracker/pkg/geometry"
)

// Engine wraps a Tesseract client. The underlying C client is not
// reentrant, so all recognition goes through one mutex; polling detectors
// already serialize per-detector via their busy gates, the mutex only
// covers cross-detector overlap.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewEngine creates a new OCR engine for the given language ("eng" etc.).
func NewEngine(language string) (*Engine, error) {
	if language == "" {
		language = "eng"
	}
	client := gosseract.NewClient()

	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR language: %w", err)
	}

	// Quest and module names are proper nouns and invented words; dictionary
	// correction turns them into something else.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	_ = client.SetVariable("language_model_penalty_non_dict_word", "0")

	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		return err
	}
	return nil
}

// RecognizeRegion runs OCR over one normalized region of a frame and
// returns the recognized text with whitespace runs collapsed.
func (e *Engine) RecognizeRegion(frame *capture.Frame, region geometry.NormalizedRegion) (string, error) {
	rect := frame.Resolve(region)
	if rect.Empty() {
		return "", fmt.Errorf("region resolves to empty rect")
	}

	buf, err := preprocessRegion(frame, rect)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return "", fmt.Errorf("engine closed")
	}

	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("set PSM: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return text, nil
}

// RecognizeLines runs OCR over a region and splits the result into
// non-empty trimmed lines.
func (e *Engine) RecognizeLines(frame *capture.Frame, region geometry.NormalizedRegion) ([]string, error) {
	text, err := e.RecognizeRegion(frame, region)
	if err != nil {
		return nil, err
	}
	return SplitLines(text), nil
}

// SplitLines splits OCR output into trimmed, non-empty lines with interior
// whitespace runs collapsed.
func SplitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// preprocessRegion crops the region from the frame and prepares it for
// Tesseract: grayscale, upscale small crops, Otsu binarization, and invert
// when the text is light-on-dark, the common case for game HUDs. Tesseract
// wants dark text on a light background. Returns PNG bytes.
func preprocessRegion(frame *capture.Frame, rect geometry.RectInt) ([]byte, error) {
	rgba, err := gocv.ImageToMatRGBA(frame.ToImage())
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer rgba.Close()

	crop := rgba.Region(image.Rect(rect.X, rect.Y, rect.X+rect.Width, rect.Y+rect.Height))
	defer crop.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(crop, &gray, gocv.ColorRGBAToGray)

	// Upscale small crops; Tesseract degrades sharply below ~30px glyphs.
	scaled := gocv.NewMat()
	defer scaled.Close()
	minDim := rect.Width
	if rect.Height < minDim {
		minDim = rect.Height
	}
	if minDim > 0 && minDim < 120 {
		scale := 120.0 / float64(minDim)
		gocv.Resize(gray, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)
	} else {
		gray.CopyTo(&scaled)
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(scaled, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	whiteCount := gocv.CountNonZero(binary)
	totalPixels := binary.Rows() * binary.Cols()
	if totalPixels > 0 && float64(whiteCount)/float64(totalPixels) < 0.5 {
		// Mostly black with white glyphs: light text on dark panel.
		gocv.BitwiseNot(binary, &binary)
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, binary)
	if err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
