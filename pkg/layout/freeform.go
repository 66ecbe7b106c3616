package layout

import (
	"math"
	"sort"

	"github.com/menta2k/claimprint/pkg/geometry"
	"github.com/menta2k/claimprint/pkg/types"
)

// FreeformConfig holds limits and defaults for user-placed receipts, in mm
type FreeformConfig struct {
	Page       PageSize `json:"page"`
	MinWidth   float64  `json:"min_width"`
	MinHeight  float64  `json:"min_height"`
	HandleSize float64  `json:"handle_size"`
	Margin     float64  `json:"margin"`
	Gap        float64  `json:"gap"`
	// Size of a freshly added receipt
	InitialWidth  float64 `json:"initial_width"`
	InitialHeight float64 `json:"initial_height"`
}

// DefaultFreeformConfig returns the default free-form limits
func DefaultFreeformConfig() FreeformConfig {
	return FreeformConfig{
		Page:          DefaultPageSize,
		MinWidth:      20,
		MinHeight:     15,
		HandleSize:    6,
		Margin:        10,
		Gap:           5,
		InitialWidth:  90,
		InitialHeight: 60,
	}
}

// InitialPlacement places the index-th receipt in two columns, filling rows
// top to bottom and continuing on the next page when a page is full. No two
// indices share a position.
func InitialPlacement(index int, cfg FreeformConfig) types.Placement {
	rowPitch := cfg.InitialHeight + cfg.Gap
	perPage := 1
	if rowPitch > 0 {
		perPage = max(1, int(math.Floor((cfg.Page.Height-2*cfg.Margin+cfg.Gap)/rowPitch)))
	}

	col := index % 2
	row := index / 2
	p := types.Placement{
		X:    cfg.Margin + float64(col)*(cfg.InitialWidth+cfg.Gap),
		Y:    cfg.Margin + float64(row%perPage)*rowPitch,
		W:    cfg.InitialWidth,
		H:    cfg.InitialHeight,
		Page: row / perPage,
	}
	return ClampPlacement(p, cfg)
}

// ClampPlacement fits p on the page and enforces the minimum size
func ClampPlacement(p types.Placement, cfg FreeformConfig) types.Placement {
	p.W = geometry.Clamp(p.W, math.Min(cfg.MinWidth, cfg.Page.Width), cfg.Page.Width)
	p.H = geometry.Clamp(p.H, math.Min(cfg.MinHeight, cfg.Page.Height), cfg.Page.Height)
	p.X = geometry.Clamp(p.X, 0, cfg.Page.Width-p.W)
	p.Y = geometry.Clamp(p.Y, 0, cfg.Page.Height-p.H)
	if p.Page < 0 {
		p.Page = 0
	}
	return p
}

// PlacementHandle is the part of a placed receipt being dragged
type PlacementHandle int

const (
	PlacementNone PlacementHandle = iota
	PlacementMove
	PlacementResize
)

func (h PlacementHandle) String() string {
	switch h {
	case PlacementMove:
		return "move"
	case PlacementResize:
		return "resize"
	}
	return "none"
}

type placementDrag struct {
	receiptID string
	handle    PlacementHandle
	start     geometry.Point
	origin    types.Placement
}

// Controller owns the placement rectangles of one free-form canvas. At most
// one drag is active at a time.
type Controller struct {
	config     FreeformConfig
	placements map[string]types.Placement
	drag       *placementDrag
}

// NewController seeds placements from receipts, assigning the initial
// placement to any receipt that has none
func NewController(cfg FreeformConfig, receipts []types.Receipt) *Controller {
	c := &Controller{
		config:     cfg,
		placements: make(map[string]types.Placement, len(receipts)),
	}
	for i, r := range receipts {
		c.Add(r, i)
	}
	return c
}

// Add registers a receipt at its stored placement or at InitialPlacement(index)
func (c *Controller) Add(r types.Receipt, index int) types.Placement {
	p := InitialPlacement(index, c.config)
	if r.Placement != nil {
		p = ClampPlacement(*r.Placement, c.config)
	}
	c.placements[r.ID] = p
	return p
}

// Remove forgets a receipt, ending its drag if one is active
func (c *Controller) Remove(id string) {
	delete(c.placements, id)
	if c.drag != nil && c.drag.receiptID == id {
		c.drag = nil
	}
}

// Placement returns the current rectangle of a receipt
func (c *Controller) Placement(id string) (types.Placement, bool) {
	p, ok := c.placements[id]
	return p, ok
}

// Active returns the receipt and handle of the drag in progress
func (c *Controller) Active() (string, PlacementHandle, bool) {
	if c.drag == nil {
		return "", PlacementNone, false
	}
	return c.drag.receiptID, c.drag.handle, true
}

// PointerDown starts a drag on receipt id when p falls on its resize handle
// or inside it. view is the on-screen box of the receipt's page.
func (c *Controller) PointerDown(id string, view geometry.Rect, p geometry.Point) bool {
	if c.drag != nil {
		return false
	}
	rect, ok := c.placements[id]
	if !ok {
		return false
	}

	local := geometry.Transform(p, view, c.config.Page.Size())
	box := geometry.Rect{X: rect.X, Y: rect.Y, W: rect.W, H: rect.H}

	handle := PlacementNone
	switch {
	case inResizeHandle(box, local, c.config.HandleSize):
		handle = PlacementResize
	case box.Contains(local):
		handle = PlacementMove
	default:
		return false
	}

	c.drag = &placementDrag{receiptID: id, handle: handle, start: p, origin: rect}
	return true
}

// inResizeHandle reports whether p is within size of the bottom-right corner
// on the inside of box
func inResizeHandle(box geometry.Rect, p geometry.Point, size float64) bool {
	dx, dy := box.Right()-p.X, box.Bottom()-p.Y
	return dx >= 0 && dy >= 0 && dx <= size && dy <= size
}

// PointerMove recomputes the dragged rectangle from the drag-start snapshot
func (c *Controller) PointerMove(view geometry.Rect, p geometry.Point) {
	if c.drag == nil {
		return
	}
	scale := c.config.Page.Width / view.W
	dx := (p.X - c.drag.start.X) * scale
	dy := (p.Y - c.drag.start.Y) * scale

	r := c.drag.origin
	page := c.config.Page
	switch c.drag.handle {
	case PlacementMove:
		r.X = geometry.Clamp(r.X+dx, 0, page.Width-r.W)
		r.Y = geometry.Clamp(r.Y+dy, 0, page.Height-r.H)
	case PlacementResize:
		r.W = geometry.Clamp(r.W+dx, math.Min(c.config.MinWidth, page.Width-r.X), page.Width-r.X)
		r.H = geometry.Clamp(r.H+dy, math.Min(c.config.MinHeight, page.Height-r.Y), page.Height-r.Y)
	}
	c.placements[c.drag.receiptID] = r
}

// PointerUp ends the drag and returns the receipt's final placement
func (c *Controller) PointerUp() (string, types.Placement, bool) {
	if c.drag == nil {
		return "", types.Placement{}, false
	}
	id := c.drag.receiptID
	c.drag = nil
	return id, c.placements[id], true
}

// PointerLeave ends the drag like PointerUp
func (c *Controller) PointerLeave() {
	c.PointerUp()
}

// Apply returns a copy of receipts carrying the controller's placements
func (c *Controller) Apply(receipts []types.Receipt) []types.Receipt {
	out := make([]types.Receipt, len(receipts))
	for i, r := range receipts {
		if p, ok := c.placements[r.ID]; ok {
			p := p
			r.Placement = &p
		}
		out[i] = r
	}
	return out
}

// FreeformPages groups receipts with images by their placement page. Receipts
// without a placement use InitialPlacement of their list position.
func FreeformPages(receipts []types.Receipt, cfg FreeformConfig) []Page {
	byPage := map[int][]Cell{}
	for i, r := range receipts {
		if !r.HasImage() {
			continue
		}
		p := InitialPlacement(i, cfg)
		if r.Placement != nil {
			p = ClampPlacement(*r.Placement, cfg)
		}
		byPage[p.Page] = append(byPage[p.Page], Cell{
			Receipt: r,
			Rect:    geometry.Rect{X: p.X, Y: p.Y, W: p.W, H: p.H},
		})
	}

	indices := make([]int, 0, len(byPage))
	for idx := range byPage {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	pages := make([]Page, 0, len(indices))
	for _, idx := range indices {
		pages = append(pages, Page{Index: idx, Cells: byPage[idx]})
	}
	return pages
}
