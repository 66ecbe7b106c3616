package vision

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/claimprint/pkg/geometry"
)

// PaperDetector finds the bright paper region of a receipt photo so a crop
// session can start on the receipt instead of the image center
type PaperDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for paper detection
type DetectionConfig struct {
	// Luminance (0-255) a pixel needs to count as paper
	BrightThreshold uint8
	// Fraction of a row or column that must be paper for it to belong to the receipt
	LineCoverage float64
	// Longest side of the working copy; larger images are downscaled first
	WorkSize int
	// Smallest accepted region as a fraction of the image area
	MinAreaRatio float64
}

// New creates a new PaperDetector with default configuration
func New() *PaperDetector {
	return &PaperDetector{
		config: DetectionConfig{
			BrightThreshold: 170,
			LineCoverage:    0.3,
			WorkSize:        400,
			MinAreaRatio:    0.05,
		},
	}
}

// NewWithConfig creates a new PaperDetector with custom configuration
func NewWithConfig(config DetectionConfig) *PaperDetector {
	return &PaperDetector{config: config}
}

// FindPaper returns the bounds of the receipt in source pixels. ok is false
// when no region large enough stands out from the background.
func (d *PaperDetector) FindPaper(img image.Image) (geometry.Rect, bool) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return geometry.Rect{}, false
	}

	work := imaging.Grayscale(img)
	if d.config.WorkSize > 0 && (width > d.config.WorkSize || height > d.config.WorkSize) {
		if width >= height {
			work = imaging.Resize(work, d.config.WorkSize, 0, imaging.Box)
		} else {
			work = imaging.Resize(work, 0, d.config.WorkSize, imaging.Box)
		}
	}
	ww, wh := work.Bounds().Dx(), work.Bounds().Dy()

	rows := make([]int, wh)
	cols := make([]int, ww)
	for y := 0; y < wh; y++ {
		for x := 0; x < ww; x++ {
			// grayscale: R == G == B
			if work.Pix[y*work.Stride+x*4] >= d.config.BrightThreshold {
				rows[y]++
				cols[x]++
			}
		}
	}

	y0, y1, okY := span(rows, int(d.config.LineCoverage*float64(ww)))
	x0, x1, okX := span(cols, int(d.config.LineCoverage*float64(wh)))
	if !okX || !okY {
		return geometry.Rect{}, false
	}

	sx := float64(width) / float64(ww)
	sy := float64(height) / float64(wh)
	r := geometry.Rect{
		X: float64(x0) * sx,
		Y: float64(y0) * sy,
		W: float64(x1-x0+1) * sx,
		H: float64(y1-y0+1) * sy,
	}
	r.W = geometry.Clamp(r.W, 0, float64(width)-r.X)
	r.H = geometry.Clamp(r.H, 0, float64(height)-r.Y)

	if r.W*r.H < d.config.MinAreaRatio*float64(width*height) {
		return geometry.Rect{}, false
	}
	return r, true
}

// span returns the first and last index whose count reaches min
func span(counts []int, min int) (int, int, bool) {
	if min < 1 {
		min = 1
	}
	first, last := -1, -1
	for i, c := range counts {
		if c >= min {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return first, last, first >= 0
}
