// Package cropper implements the interactive receipt crop session: a crop
// rectangle over a decoded photo, edited by pointer drags and committed as a
// new encoded image at native resolution.
package cropper

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/claimprint/pkg/geometry"
	"github.com/menta2k/claimprint/pkg/processing"
	"github.com/menta2k/claimprint/pkg/vision"
)

var (
	// ErrDecode wraps any failure to decode the source bytes
	ErrDecode = errors.New("cropper: cannot decode source image")
	// ErrDragInProgress is returned when committing while a drag is active
	ErrDragInProgress = errors.New("cropper: drag in progress")
	// ErrClosed is returned after the session was cancelled
	ErrClosed = errors.New("cropper: session closed")
)

// Policy selects the initial crop rectangle
type Policy int

const (
	// PolicyCentered starts at half the image size, centered
	PolicyCentered Policy = iota
	// PolicyFull starts at the full image extent
	PolicyFull
	// PolicyDetected starts at the detected paper region, else centered
	PolicyDetected
)

// ParsePolicy maps a config or flag value to a Policy
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "centered", "":
		return PolicyCentered, nil
	case "full":
		return PolicyFull, nil
	case "detected":
		return PolicyDetected, nil
	}
	return PolicyCentered, fmt.Errorf("unknown crop policy %q (use centered, full or detected)", s)
}

// CropConfig holds configuration for crop sessions
type CropConfig struct {
	Policy            Policy
	MinSize           float64
	HandleZoneMin     float64
	HandleZoneDivisor float64
	Format            string
	Quality           int
	Lossless          bool
}

// DefaultConfig returns the default crop configuration
func DefaultConfig() CropConfig {
	return CropConfig{
		Policy:            PolicyCentered,
		MinSize:           20,
		HandleZoneMin:     16,
		HandleZoneDivisor: 40,
		Format:            "jpg",
		Quality:           80,
	}
}

// Session owns a source image and its crop rectangle for one crop interaction
type Session struct {
	img       image.Image
	bounds    geometry.Size
	config    CropConfig
	state     State
	processor *processing.Processor
	closed    bool
}

// Load decodes data and starts a session on it. No session exists on failure.
func Load(data []byte, config CropConfig) (*Session, error) {
	p := processing.NewProcessor()
	img, err := p.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	s := New(img, config)
	s.processor = p
	return s, nil
}

// New starts a session on an already decoded image
func New(img image.Image, config CropConfig) *Session {
	bounds := geometry.SizeOf(img.Bounds())
	s := &Session{
		img:       img,
		bounds:    bounds,
		config:    config,
		processor: processing.NewProcessor(),
	}
	s.state = State{Rect: initialRect(img, bounds, config)}
	return s
}

func initialRect(img image.Image, bounds geometry.Size, config CropConfig) geometry.Rect {
	switch config.Policy {
	case PolicyFull:
		return geometry.Rect{W: bounds.W, H: bounds.H}
	case PolicyDetected:
		if r, ok := vision.New().FindPaper(img); ok {
			return clampRect(r, bounds, config.MinSize)
		}
	}
	w, h := bounds.W/2, bounds.H/2
	return clampRect(geometry.Rect{X: (bounds.W - w) / 2, Y: (bounds.H - h) / 2, W: w, H: h}, bounds, config.MinSize)
}

// Bounds returns the source image size in pixels
func (s *Session) Bounds() geometry.Size { return s.bounds }

// Image returns the source image
func (s *Session) Image() image.Image { return s.img }

// Rect returns the current crop rectangle in source pixels
func (s *Session) Rect() geometry.Rect { return s.state.Rect }

// State returns a snapshot of the session state
func (s *Session) State() State { return s.state }

// Dragging returns the active handle, if a drag is in progress
func (s *Session) Dragging() (Handle, bool) {
	if s.state.Idle() {
		return HandleNone, false
	}
	return s.state.Drag.Handle, true
}

// HandleZone returns the side length of the corner hit zones in source pixels
func (s *Session) HandleZone() float64 {
	return handleZone(s.bounds, s.config)
}

// SetRect replaces the crop rectangle, clamped into the image. Ignored while dragging.
func (s *Session) SetRect(r geometry.Rect) {
	if s.closed || !s.state.Idle() {
		return
	}
	s.state.Rect = clampRect(r, s.bounds, s.config.MinSize)
}

// Dispatch feeds one pointer event through the reducer
func (s *Session) Dispatch(e Event) {
	if s.closed {
		return
	}
	s.state = Reduce(s.bounds, s.config, s.state, e)
}

// PointerDown starts a drag if p hits a handle or the rectangle interior.
// view is where the image is rendered on screen.
func (s *Session) PointerDown(view geometry.Rect, p geometry.Point) bool {
	s.Dispatch(Event{Kind: PointerDown, Pos: p, View: view})
	return !s.state.Idle()
}

// PointerMove applies the pointer delta since the previous event
func (s *Session) PointerMove(view geometry.Rect, p geometry.Point) {
	s.Dispatch(Event{Kind: PointerMove, Pos: p, View: view})
}

// PointerUp ends the drag
func (s *Session) PointerUp() {
	s.Dispatch(Event{Kind: PointerUp})
}

// PointerLeave ends the drag the same way PointerUp does
func (s *Session) PointerLeave() {
	s.Dispatch(Event{Kind: PointerLeave})
}

// Crop returns the current crop region at native resolution
func (s *Session) Crop() (image.Image, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if !s.state.Idle() {
		return nil, ErrDragInProgress
	}
	b := s.img.Bounds()
	r := s.state.Rect.Round()
	w, h := min(r.Dx(), b.Dx()), min(r.Dy(), b.Dy())
	x0 := max(0, min(r.Min.X, b.Dx()-w))
	y0 := max(0, min(r.Min.Y, b.Dy()-h))
	r = image.Rect(x0, y0, x0+w, y0+h).Add(b.Min)
	return imaging.Crop(s.img, r), nil
}

// Finalize encodes the current crop region. Session state is unchanged.
func (s *Session) Finalize() ([]byte, error) {
	cropped, err := s.Crop()
	if err != nil {
		return nil, err
	}
	data, err := s.processor.Encode(cropped, s.config.Format, s.config.Quality, s.config.Lossless)
	if err != nil {
		return nil, fmt.Errorf("encoding crop: %w", err)
	}
	return data, nil
}

// Overlay renders the editor view of the current rectangle
func (s *Session) Overlay() image.Image {
	return s.processor.CropOverlay(s.img, s.state.Rect, s.HandleZone())
}

// Cancel discards the session. It is safe to call more than once.
func (s *Session) Cancel() {
	s.closed = true
	s.state.Drag = nil
}

// Closed reports whether the session was cancelled
func (s *Session) Closed() bool { return s.closed }
