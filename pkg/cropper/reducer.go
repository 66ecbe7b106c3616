package cropper

import (
	"math"

	"github.com/menta2k/claimprint/pkg/geometry"
)

// Handle identifies which part of the crop rectangle a drag manipulates
type Handle int

const (
	HandleNone Handle = iota
	HandleMove
	HandleTopLeft
	HandleTopRight
	HandleBottomLeft
	HandleBottomRight
)

func (h Handle) String() string {
	switch h {
	case HandleMove:
		return "move"
	case HandleTopLeft:
		return "top-left"
	case HandleTopRight:
		return "top-right"
	case HandleBottomLeft:
		return "bottom-left"
	case HandleBottomRight:
		return "bottom-right"
	}
	return "none"
}

// DragState exists only between pointer-down and pointer-up
type DragState struct {
	Handle Handle
	// Last processed pointer position, in source pixels
	Anchor geometry.Point
	// Rectangle when the drag started
	Start geometry.Rect
}

// State is the crop rectangle plus the active drag, if any
type State struct {
	Rect geometry.Rect
	Drag *DragState
}

// Idle reports whether no drag is in progress
func (s State) Idle() bool { return s.Drag == nil }

// EventKind enumerates pointer input
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	PointerLeave
)

// Event is a pointer event in viewport coordinates together with the
// rectangle the source image is currently rendered into
type Event struct {
	Kind EventKind
	Pos  geometry.Point
	View geometry.Rect
}

// Reduce applies one pointer event to the crop state. bounds is the source
// image size. The returned rectangle always lies inside bounds.
func Reduce(bounds geometry.Size, cfg CropConfig, s State, e Event) State {
	switch e.Kind {
	case PointerDown:
		if !s.Idle() {
			return s
		}
		p := geometry.Transform(e.Pos, e.View, bounds)
		h := HitTest(s.Rect, p, handleZone(bounds, cfg))
		if h == HandleNone {
			return s
		}
		return State{Rect: s.Rect, Drag: &DragState{Handle: h, Anchor: p, Start: s.Rect}}

	case PointerMove:
		if s.Idle() {
			return s
		}
		p := geometry.Transform(e.Pos, e.View, bounds)
		d := p.Sub(s.Drag.Anchor)
		drag := *s.Drag
		drag.Anchor = p
		return State{Rect: applyDelta(s.Rect, drag.Handle, d, bounds, cfg.MinSize), Drag: &drag}

	case PointerUp, PointerLeave:
		return State{Rect: s.Rect}
	}
	return s
}

// HitTest returns the handle under p. Corners win over the interior.
func HitTest(r geometry.Rect, p geometry.Point, zone float64) Handle {
	half := zone / 2
	corners := []struct {
		h    Handle
		x, y float64
	}{
		{HandleBottomRight, r.Right(), r.Bottom()},
		{HandleBottomLeft, r.X, r.Bottom()},
		{HandleTopRight, r.Right(), r.Y},
		{HandleTopLeft, r.X, r.Y},
	}
	for _, c := range corners {
		if math.Abs(p.X-c.x) <= half && math.Abs(p.Y-c.y) <= half {
			return c.h
		}
	}
	if r.Contains(p) {
		return HandleMove
	}
	return HandleNone
}

func handleZone(bounds geometry.Size, cfg CropConfig) float64 {
	if cfg.HandleZoneDivisor <= 0 {
		return cfg.HandleZoneMin
	}
	return math.Max(cfg.HandleZoneMin, bounds.W/cfg.HandleZoneDivisor)
}

// applyDelta edits r for one drag step. Resizes pin the corner opposite the
// handle; an edge dragged past the minimum size stops there.
func applyDelta(r geometry.Rect, h Handle, d geometry.Point, bounds geometry.Size, minSize float64) geometry.Rect {
	minW := math.Min(minSize, bounds.W)
	minH := math.Min(minSize, bounds.H)

	switch h {
	case HandleMove:
		r.X = geometry.Clamp(r.X+d.X, 0, bounds.W-r.W)
		r.Y = geometry.Clamp(r.Y+d.Y, 0, bounds.H-r.H)
		return r
	case HandleTopLeft, HandleBottomLeft:
		right := r.Right()
		r.X = geometry.Clamp(r.X+d.X, 0, right-minW)
		r.W = right - r.X
	case HandleTopRight, HandleBottomRight:
		r.W = geometry.Clamp(r.W+d.X, minW, bounds.W-r.X)
	}

	switch h {
	case HandleTopLeft, HandleTopRight:
		bottom := r.Bottom()
		r.Y = geometry.Clamp(r.Y+d.Y, 0, bottom-minH)
		r.H = bottom - r.Y
	case HandleBottomLeft, HandleBottomRight:
		r.H = geometry.Clamp(r.H+d.Y, minH, bounds.H-r.Y)
	}
	return r
}

// clampRect fits an arbitrary rectangle inside bounds with at least the minimum size
func clampRect(r geometry.Rect, bounds geometry.Size, minSize float64) geometry.Rect {
	r.W = geometry.Clamp(r.W, math.Min(minSize, bounds.W), bounds.W)
	r.H = geometry.Clamp(r.H, math.Min(minSize, bounds.H), bounds.H)
	r.X = geometry.Clamp(r.X, 0, bounds.W-r.W)
	r.Y = geometry.Clamp(r.Y, 0, bounds.H-r.H)
	return r
}
