package layout

import (
	"github.com/menta2k/claimprint/pkg/geometry"
	"github.com/menta2k/claimprint/pkg/types"
)

// GridConfig holds the fixed-grid document template
type GridConfig struct {
	Page              PageSize `json:"page"`
	FirstPageCapacity int      `json:"first_page_capacity"`
	FullPageCapacity  int      `json:"full_page_capacity"`
	Columns           int      `json:"columns"`
	Margin            float64  `json:"margin"`
	Gap               float64  `json:"gap"`
	// Height of the claim form block at the top of the first page
	FormHeight float64 `json:"form_height"`
	// Heading strip above each receipt grid
	BandHeight float64 `json:"band_height"`
}

// DefaultGridConfig returns a half-page 2x3 grid under the form and 4x3 full pages
func DefaultGridConfig() GridConfig {
	return GridConfig{
		Page:              DefaultPageSize,
		FirstPageCapacity: 6,
		FullPageCapacity:  12,
		Columns:           3,
		Margin:            6,
		Gap:               3,
		FormHeight:        DefaultPageSize.Height / 2,
		BandHeight:        8,
	}
}

func (c GridConfig) normalized() GridConfig {
	if c.FirstPageCapacity < 0 {
		c.FirstPageCapacity = 0
	}
	if c.FullPageCapacity < 1 {
		c.FullPageCapacity = 1
	}
	if c.Columns < 1 {
		c.Columns = 1
	}
	return c
}

// Paginate assigns receipts with images to pages in list order. The first
// page shares the sheet with the claim form; the rest are chunked by
// FullPageCapacity. There is always at least one page.
func Paginate(receipts []types.Receipt, cfg GridConfig) []Page {
	cfg = cfg.normalized()
	items := withImages(receipts)

	n := min(len(items), cfg.FirstPageCapacity)
	pages := []Page{{
		Index:     0,
		ClaimForm: true,
		Cells:     placeCells(items[:n], cfg, cfg.FormHeight+cfg.BandHeight, cfg.FirstPageCapacity),
	}}

	rest := items[n:]
	top := cfg.Margin + cfg.BandHeight
	for i := 0; i < len(rest); i += cfg.FullPageCapacity {
		end := min(i+cfg.FullPageCapacity, len(rest))
		pages = append(pages, Page{
			Index: len(pages),
			Cells: placeCells(rest[i:end], cfg, top, cfg.FullPageCapacity),
		})
	}
	return pages
}

// placeCells lays batch out row-major in a grid sized for capacity, inside
// the region from top down to the bottom margin
func placeCells(batch []types.Receipt, cfg GridConfig, top float64, capacity int) []Cell {
	if len(batch) == 0 {
		return nil
	}
	rows := (capacity + cfg.Columns - 1) / cfg.Columns
	cols := float64(cfg.Columns)

	cellW := (cfg.Page.Width - 2*cfg.Margin - (cols-1)*cfg.Gap) / cols
	cellH := (cfg.Page.Height - cfg.Margin - top - float64(rows-1)*cfg.Gap) / float64(rows)

	cells := make([]Cell, len(batch))
	for i, r := range batch {
		row, col := i/cfg.Columns, i%cfg.Columns
		cells[i] = Cell{
			Receipt: r,
			Row:     row,
			Col:     col,
			Rect: geometry.Rect{
				X: cfg.Margin + float64(col)*(cellW+cfg.Gap),
				Y: top + float64(row)*(cellH+cfg.Gap),
				W: cellW,
				H: cellH,
			},
		}
	}
	return cells
}
