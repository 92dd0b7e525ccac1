package geometry

// NormalizedRegion is a resolution-independent rectangle expressed as
// fractions of the frame dimensions, each component in [0,1]. It is resolved
// to a pixel rectangle per frame so fixed UI regions can be addressed at any
// game resolution.
type NormalizedRegion struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewNormalizedRegion creates a NormalizedRegion. Components are clamped
// to [0,1].
func NewNormalizedRegion(left, top, width, height float64) NormalizedRegion {
	return NormalizedRegion{
		Left:   clamp01(left),
		Top:    clamp01(top),
		Width:  clamp01(width),
		Height: clamp01(height),
	}
}

// ToPixelRect resolves the region against a frame of the given pixel
// dimensions. The result is always fully contained within [0,w) x [0,h).
func (n NormalizedRegion) ToPixelRect(frameWidth, frameHeight int) RectInt {
	if frameWidth <= 0 || frameHeight <= 0 {
		return RectInt{}
	}

	x := int(clamp01(n.Left) * float64(frameWidth))
	y := int(clamp01(n.Top) * float64(frameHeight))
	w := int(clamp01(n.Width) * float64(frameWidth))
	h := int(clamp01(n.Height) * float64(frameHeight))

	if x >= frameWidth {
		x = frameWidth - 1
	}
	if y >= frameHeight {
		y = frameHeight - 1
	}
	if x+w > frameWidth {
		w = frameWidth - x
	}
	if y+h > frameHeight {
		h = frameHeight - y
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}

	return RectInt{X: x, Y: y, Width: w, Height: h}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
