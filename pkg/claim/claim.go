// Package claim holds the receipts of one monthly expense claim.
package claim

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/claimprint/pkg/layout"
	"github.com/menta2k/claimprint/pkg/types"
)

// DefaultTitle is printed above the claim table
const DefaultTitle = "STAFF MONTHLY CLAIM FORM"

// DefaultCategories are offered to the user and the vision model
var DefaultCategories = []string{
	"Travel",
	"Meals",
	"Parking",
	"Toll",
	"Fuel",
	"Accommodation",
	"Office Supplies",
	"Telephone",
	"Entertainment",
	"Misc",
}

// Claim is an ordered receipt list plus the header printed on the form
type Claim struct {
	Company    string           `json:"company"`
	Title      string           `json:"title"`
	Name       string           `json:"name"`
	Month      string           `json:"month"`
	Categories []string         `json:"categories"`
	Receipts   []*types.Receipt `json:"receipts"`

	freeform layout.FreeformConfig
	added    int
}

// New starts an empty claim for the month containing now
func New(now time.Time) *Claim {
	return &Claim{
		Title:      DefaultTitle,
		Month:      fmt.Sprintf("%s %d", now.Month(), now.Year()),
		Categories: append([]string(nil), DefaultCategories...),
		freeform:   layout.DefaultFreeformConfig(),
	}
}

// SetFreeformConfig changes the limits used for initial placements
func (c *Claim) SetFreeformConfig(cfg layout.FreeformConfig) {
	c.freeform = cfg
}

// AddReceipt appends a receipt awaiting analysis. Every receipt gets a fresh
// id and its own initial placement.
func (c *Claim) AddReceipt(image, cropped []byte) *types.Receipt {
	p := layout.InitialPlacement(c.added, c.freeform)
	c.added++

	r := &types.Receipt{
		ID:           uuid.NewString(),
		Image:        image,
		CroppedImage: cropped,
		Merchant:     "Analyzing...",
		Category:     "Misc",
		Status:       types.StatusProcessing,
		Placement:    &p,
	}
	c.Receipts = append(c.Receipts, r)
	return r
}

// Receipt returns the receipt with id
func (c *Claim) Receipt(id string) (*types.Receipt, bool) {
	for _, r := range c.Receipts {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// Update applies fn to the receipt with id and reports whether it exists
func (c *Claim) Update(id string, fn func(*types.Receipt)) bool {
	r, ok := c.Receipt(id)
	if !ok {
		return false
	}
	fn(r)
	return true
}

// Remove deletes the receipt with id, keeping the order of the rest
func (c *Claim) Remove(id string) bool {
	for i, r := range c.Receipts {
		if r.ID == id {
			c.Receipts = append(c.Receipts[:i], c.Receipts[i+1:]...)
			return true
		}
	}
	return false
}

// AddCategory appends a category unless it is blank or already listed
func (c *Claim) AddCategory(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, existing := range c.Categories {
		if strings.EqualFold(existing, name) {
			return false
		}
	}
	c.Categories = append(c.Categories, name)
	return true
}

// Total sums every receipt amount
func (c *Claim) Total() float64 {
	total := 0.0
	for _, r := range c.Receipts {
		total += r.Amount
	}
	return total
}

// Header returns the text printed above the claim table
func (c *Claim) Header() layout.ClaimHeader {
	return layout.ClaimHeader{
		Company: c.Company,
		Title:   c.Title,
		Name:    c.Name,
		Month:   c.Month,
	}
}

// Snapshot copies the receipts in order for layout
func (c *Claim) Snapshot() []types.Receipt {
	out := make([]types.Receipt, len(c.Receipts))
	for i, r := range c.Receipts {
		out[i] = *r
	}
	return out
}

// GridPlan lays out the claim with fixed-grid pagination
func (c *Claim) GridPlan(cfg layout.GridConfig) layout.Plan {
	return layout.BuildPlan(c.Header(), c.Categories, c.Snapshot(), cfg)
}

// FreeformPlan lays out the claim from the receipts' placements
func (c *Claim) FreeformPlan() layout.Plan {
	return layout.BuildFreeformPlan(c.Header(), c.Categories, c.Snapshot(), c.freeform)
}
