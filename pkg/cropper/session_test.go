package cropper

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"testing"

	"github.com/menta2k/claimprint/pkg/geometry"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	return img
}

// identity renders the image at native size at the viewport origin
func identity(s *Session) geometry.Rect {
	return geometry.Rect{W: s.Bounds().W, H: s.Bounds().H}
}

func newSession(t *testing.T, width, height int, r geometry.Rect) *Session {
	t.Helper()
	s := New(createTestImage(width, height), DefaultConfig())
	s.SetRect(r)
	if s.Rect() != r {
		t.Fatalf("SetRect(%+v) clamped to %+v", r, s.Rect())
	}
	return s
}

func drag(s *Session, view geometry.Rect, from, to geometry.Point) {
	s.PointerDown(view, from)
	s.PointerMove(view, to)
	s.PointerUp()
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MinSize != 20 {
		t.Errorf("Expected min size 20, got %f", cfg.MinSize)
	}
	if cfg.Quality != 80 {
		t.Errorf("Expected quality 80, got %d", cfg.Quality)
	}
}

func TestInitialPolicies(t *testing.T) {
	img := createTestImage(400, 600)

	centered := New(img, DefaultConfig()).Rect()
	if centered != (geometry.Rect{X: 100, Y: 150, W: 200, H: 300}) {
		t.Errorf("Expected centered half-size rect, got %+v", centered)
	}

	cfg := DefaultConfig()
	cfg.Policy = PolicyFull
	full := New(img, cfg).Rect()
	if full != (geometry.Rect{W: 400, H: 600}) {
		t.Errorf("Expected full image rect, got %+v", full)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyCentered, "full": PolicyFull, "detected": PolicyDetected} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("diagonal"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestLoadDecodeFailure(t *testing.T) {
	s, err := Load([]byte("not an image"), DefaultConfig())
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
	if s != nil {
		t.Error("Expected no session on decode failure")
	}
}

func TestFinalizeDimensions(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, createTestImage(400, 600), nil); err != nil {
		t.Fatal(err)
	}

	s, err := Load(buf.Bytes(), DefaultConfig())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	s.SetRect(geometry.Rect{X: 50, Y: 50, W: 200, H: 300})

	data, err := s.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	out, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Finalize output is not a jpeg: %v", err)
	}
	if out.Bounds().Dx() != 200 || out.Bounds().Dy() != 300 {
		t.Errorf("Expected 200x300, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}

	// committing leaves the session untouched
	if s.Rect() != (geometry.Rect{X: 50, Y: 50, W: 200, H: 300}) {
		t.Errorf("Finalize changed the rectangle to %+v", s.Rect())
	}
}

func TestCropSamplesRegion(t *testing.T) {
	src := createTestImage(300, 300)
	s := New(src, DefaultConfig())
	s.SetRect(geometry.Rect{X: 10, Y: 20, W: 50, H: 60})

	out, err := s.Crop()
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	r, g, _, _ := out.At(0, 0).RGBA()
	sr, sg, _, _ := src.At(10, 20).RGBA()
	if r != sr || g != sg {
		t.Error("Expected crop origin to sample source pixel (10,20)")
	}
}

func TestMoveClampsAtOrigin(t *testing.T) {
	s := newSession(t, 400, 400, geometry.Rect{W: 100, H: 100})

	drag(s, identity(s), geometry.Point{X: 50, Y: 50}, geometry.Point{X: 0, Y: 0})

	if s.Rect() != (geometry.Rect{W: 100, H: 100}) {
		t.Errorf("Expected rect to stay at origin, got %+v", s.Rect())
	}
}

func TestMoveClampsAtFarEdge(t *testing.T) {
	s := newSession(t, 400, 400, geometry.Rect{X: 250, Y: 250, W: 100, H: 100})

	drag(s, identity(s), geometry.Point{X: 300, Y: 300}, geometry.Point{X: 500, Y: 450})

	if s.Rect() != (geometry.Rect{X: 300, Y: 300, W: 100, H: 100}) {
		t.Errorf("Expected rect flush with bottom-right, got %+v", s.Rect())
	}
}

func TestBottomRightResizeKeepsTopLeft(t *testing.T) {
	s := newSession(t, 400, 400, geometry.Rect{X: 10, Y: 10, W: 100, H: 100})

	drag(s, identity(s), geometry.Point{X: 110, Y: 110}, geometry.Point{X: 130, Y: 130})

	if s.Rect() != (geometry.Rect{X: 10, Y: 10, W: 120, H: 120}) {
		t.Errorf("Expected (10,10,120,120), got %+v", s.Rect())
	}
}

func TestTopLeftResizeKeepsBottomRight(t *testing.T) {
	s := newSession(t, 400, 400, geometry.Rect{X: 100, Y: 100, W: 100, H: 100})

	drag(s, identity(s), geometry.Point{X: 100, Y: 100}, geometry.Point{X: 80, Y: 60})

	if s.Rect() != (geometry.Rect{X: 80, Y: 60, W: 120, H: 140}) {
		t.Errorf("Expected (80,60,120,140), got %+v", s.Rect())
	}
}

func TestCornerResizeNoFlip(t *testing.T) {
	tests := []struct {
		name     string
		from, to geometry.Point
		want     geometry.Rect
	}{
		{"top-left past bottom-right", geometry.Point{X: 100, Y: 100}, geometry.Point{X: 390, Y: 390}, geometry.Rect{X: 180, Y: 180, W: 20, H: 20}},
		{"top-right past bottom-left", geometry.Point{X: 200, Y: 100}, geometry.Point{X: 0, Y: 390}, geometry.Rect{X: 100, Y: 180, W: 20, H: 20}},
		{"bottom-left past top-right", geometry.Point{X: 100, Y: 200}, geometry.Point{X: 390, Y: 0}, geometry.Rect{X: 180, Y: 100, W: 20, H: 20}},
		{"bottom-right past top-left", geometry.Point{X: 200, Y: 200}, geometry.Point{X: 0, Y: 0}, geometry.Rect{X: 100, Y: 100, W: 20, H: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, 400, 400, geometry.Rect{X: 100, Y: 100, W: 100, H: 100})
			drag(s, identity(s), tt.from, tt.to)
			if s.Rect() != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, s.Rect())
			}
		})
	}
}

func TestResizeClampsToImage(t *testing.T) {
	s := newSession(t, 400, 400, geometry.Rect{X: 300, Y: 300, W: 50, H: 50})

	drag(s, identity(s), geometry.Point{X: 350, Y: 350}, geometry.Point{X: 900, Y: 900})

	if s.Rect() != (geometry.Rect{X: 300, Y: 300, W: 100, H: 100}) {
		t.Errorf("Expected resize to stop at image edge, got %+v", s.Rect())
	}
}

func TestScaledView(t *testing.T) {
	s := newSession(t, 800, 800, geometry.Rect{X: 100, Y: 100, W: 200, H: 200})
	// rendered at quarter size, offset inside the page
	view := geometry.Rect{X: 50, Y: 20, W: 200, H: 200}

	drag(s, view, geometry.Point{X: 100, Y: 70}, geometry.Point{X: 110, Y: 75})

	if s.Rect() != (geometry.Rect{X: 140, Y: 120, W: 200, H: 200}) {
		t.Errorf("Expected screen delta scaled by 4, got %+v", s.Rect())
	}
}

func TestMoveIsIncremental(t *testing.T) {
	s := newSession(t, 400, 400, geometry.Rect{X: 100, Y: 100, W: 100, H: 100})
	view := identity(s)

	s.PointerDown(view, geometry.Point{X: 150, Y: 150})
	s.PointerMove(view, geometry.Point{X: 160, Y: 150})
	s.PointerMove(view, geometry.Point{X: 170, Y: 150})
	s.PointerUp()

	if s.Rect().X != 120 {
		t.Errorf("Expected x=120 after two 10px steps, got %f", s.Rect().X)
	}
}

func TestPointerDownMiss(t *testing.T) {
	s := newSession(t, 400, 400, geometry.Rect{X: 100, Y: 100, W: 100, H: 100})

	if s.PointerDown(identity(s), geometry.Point{X: 5, Y: 5}) {
		t.Error("Expected miss outside rectangle")
	}
	if _, dragging := s.Dragging(); dragging {
		t.Error("Expected session to stay idle")
	}

	// moves without a drag are ignored
	s.PointerMove(identity(s), geometry.Point{X: 300, Y: 300})
	if s.Rect() != (geometry.Rect{X: 100, Y: 100, W: 100, H: 100}) {
		t.Errorf("Idle move changed rect to %+v", s.Rect())
	}
}

func TestHitTestPriority(t *testing.T) {
	r := geometry.Rect{X: 100, Y: 100, W: 100, H: 100}
	tests := []struct {
		p    geometry.Point
		want Handle
	}{
		{geometry.Point{X: 100, Y: 100}, HandleTopLeft},
		{geometry.Point{X: 205, Y: 95}, HandleTopRight},
		{geometry.Point{X: 96, Y: 204}, HandleBottomLeft},
		{geometry.Point{X: 200, Y: 200}, HandleBottomRight},
		{geometry.Point{X: 150, Y: 150}, HandleMove},
		{geometry.Point{X: 250, Y: 150}, HandleNone},
	}
	for _, tt := range tests {
		if got := HitTest(r, tt.p, 16); got != tt.want {
			t.Errorf("HitTest(%+v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestPointerLeaveEndsDrag(t *testing.T) {
	s := newSession(t, 400, 400, geometry.Rect{X: 100, Y: 100, W: 100, H: 100})
	view := identity(s)

	s.PointerDown(view, geometry.Point{X: 150, Y: 150})
	if h, ok := s.Dragging(); !ok || h != HandleMove {
		t.Fatalf("Expected move drag, got %v %v", h, ok)
	}

	s.PointerLeave()
	s.PointerMove(view, geometry.Point{X: 250, Y: 250})

	if s.Rect() != (geometry.Rect{X: 100, Y: 100, W: 100, H: 100}) {
		t.Errorf("Move after leave changed rect to %+v", s.Rect())
	}
}

func TestFinalizeDuringDrag(t *testing.T) {
	s := newSession(t, 400, 400, geometry.Rect{X: 100, Y: 100, W: 100, H: 100})
	s.PointerDown(identity(s), geometry.Point{X: 150, Y: 150})

	if _, err := s.Finalize(); !errors.Is(err, ErrDragInProgress) {
		t.Errorf("Expected ErrDragInProgress, got %v", err)
	}
}

func TestCropFractionalRectAtFarEdge(t *testing.T) {
	tests := []struct {
		name  string
		rect  geometry.Rect
		wantW int
		wantH int
	}{
		{"right edge", geometry.Rect{X: 200.5, Y: 0, W: 199.5, H: 100}, 200, 100},
		{"bottom edge", geometry.Rect{X: 0, Y: 400.5, W: 100, H: 199.5}, 100, 200},
		{"corner", geometry.Rect{X: 300.5, Y: 500.5, W: 99.5, H: 99.5}, 100, 100},
		{"integral", geometry.Rect{X: 50, Y: 50, W: 200, H: 300}, 200, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t, 400, 600, tt.rect)
			out, err := s.Crop()
			if err != nil {
				t.Fatalf("Crop() error = %v", err)
			}
			if out.Bounds().Dx() != tt.wantW || out.Bounds().Dy() != tt.wantH {
				t.Errorf("Crop() = %dx%d, want %dx%d", out.Bounds().Dx(), out.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s := newSession(t, 400, 400, geometry.Rect{X: 100, Y: 100, W: 100, H: 100})

	s.Cancel()
	s.Cancel()

	if !s.Closed() {
		t.Error("Expected session to be closed")
	}
	if _, err := s.Finalize(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if s.PointerDown(identity(s), geometry.Point{X: 150, Y: 150}) {
		t.Error("Expected closed session to ignore input")
	}
}

func TestContainmentUnderRandomDrags(t *testing.T) {
	const width, height = 640.0, 480.0
	rng := rand.New(rand.NewSource(7))
	s := New(createTestImage(int(width), int(height)), DefaultConfig())
	bounds := s.Bounds()
	view := geometry.Rect{X: 13, Y: 7, W: 320, H: 240}

	for i := 0; i < 2000; i++ {
		r := s.Rect()
		// aim at a handle or the interior half of the time
		var start geometry.Point
		switch rng.Intn(6) {
		case 0:
			start = geometry.Point{X: r.X, Y: r.Y}
		case 1:
			start = geometry.Point{X: r.Right(), Y: r.Y}
		case 2:
			start = geometry.Point{X: r.X, Y: r.Bottom()}
		case 3:
			start = geometry.Point{X: r.Right(), Y: r.Bottom()}
		case 4:
			start = geometry.Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
		default:
			start = geometry.Point{X: rng.Float64() * width, Y: rng.Float64() * height}
		}
		screen := geometry.Point{X: view.X + start.X*view.W/width, Y: view.Y + start.Y*view.H/height}

		s.PointerDown(view, screen)
		for j := 0; j < 5; j++ {
			screen.X += rng.Float64()*400 - 200
			screen.Y += rng.Float64()*400 - 200
			s.PointerMove(view, screen)

			got := s.Rect()
			if !contained(got, bounds, 1e-9) || got.W < 20-1e-9 || got.H < 20-1e-9 {
				t.Fatalf("step %d/%d: rect %+v violates containment in %+v", i, j, got, bounds)
			}
		}
		s.PointerUp()
	}
}

// contained is Rect.Within with room for float rounding
func contained(r geometry.Rect, b geometry.Size, eps float64) bool {
	return r.X >= -eps && r.Y >= -eps && r.Right() <= b.W+eps && r.Bottom() <= b.H+eps
}

func BenchmarkReduceMove(b *testing.B) {
	bounds := geometry.Size{W: 4000, H: 3000}
	cfg := DefaultConfig()
	view := geometry.Rect{W: 1000, H: 750}
	s := State{Rect: geometry.Rect{X: 1000, Y: 1000, W: 500, H: 500}}
	s = Reduce(bounds, cfg, s, Event{Kind: PointerDown, Pos: geometry.Point{X: 300, Y: 300}, View: view})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s = Reduce(bounds, cfg, s, Event{Kind: PointerMove, Pos: geometry.Point{X: float64(300 + i%50), Y: 300}, View: view})
	}
}
