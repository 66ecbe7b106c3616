// Package layout arranges receipts on printable claim pages.
//
// Two policies exist. Fixed-grid pagination (Paginate) places receipts into
// uniform cells: up to six below the claim form on the first page, then
// twelve per full page. Free-form placement (Controller) lets the user drag
// and resize each receipt's placement rectangle, in millimeters, clamped to
// the page.
//
// Every page is DefaultPageSize unless a config overrides it.
package layout

import (
	"github.com/menta2k/claimprint/pkg/geometry"
	"github.com/menta2k/claimprint/pkg/types"
)

// PageSize is a physical page size in millimeters
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Size returns the page as a geometry.Size
func (p PageSize) Size() geometry.Size {
	return geometry.Size{W: p.Width, H: p.Height}
}

// A4 is ISO 216 A4 portrait
var A4 = PageSize{Width: 210, Height: 297}

// DefaultPageSize is the page every layout uses unless configured otherwise
var DefaultPageSize = A4

// Cell is one receipt's slot on a page
type Cell struct {
	Receipt types.Receipt `json:"receipt"`
	Rect    geometry.Rect `json:"rect"`
	Row     int           `json:"row"`
	Col     int           `json:"col"`
}

// Page is a derived view of the receipts printed on one sheet
type Page struct {
	Index     int    `json:"index"`
	ClaimForm bool   `json:"claim_form"`
	Cells     []Cell `json:"cells"`
}

// Number is the 1-based page number printed in headings
func (p Page) Number() int { return p.Index + 1 }

// Plan is everything needed to print a claim
type Plan struct {
	Page PageSize  `json:"page"`
	Form ClaimForm `json:"form"`
	// Height of the claim form block on the claim form page
	FormHeight float64 `json:"form_height"`
	Pages      []Page  `json:"pages"`
}

// BuildPlan lays out a claim with fixed-grid pagination
func BuildPlan(header ClaimHeader, categories []string, receipts []types.Receipt, cfg GridConfig) Plan {
	return Plan{
		Page:       cfg.Page,
		Form:       BuildClaimForm(header, categories, receipts),
		FormHeight: cfg.FormHeight,
		Pages:      Paginate(receipts, cfg),
	}
}

// BuildFreeformPlan lays out a claim from the receipts' placement rectangles.
// The claim form gets its own first page.
func BuildFreeformPlan(header ClaimHeader, categories []string, receipts []types.Receipt, cfg FreeformConfig) Plan {
	pages := []Page{{Index: 0, ClaimForm: true}}
	for _, p := range FreeformPages(receipts, cfg) {
		p.Index++
		pages = append(pages, p)
	}
	return Plan{
		Page:       cfg.Page,
		Form:       BuildClaimForm(header, categories, receipts),
		FormHeight: cfg.Page.Height,
		Pages:      pages,
	}
}

func withImages(receipts []types.Receipt) []types.Receipt {
	out := make([]types.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if r.HasImage() {
			out = append(out, r)
		}
	}
	return out
}
