// Package claimprint turns receipt photos into a printable monthly expense
// claim: a claim form summarizing amounts per category, followed by pages of
// cropped receipt images.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"time"
//
//		"github.com/menta2k/claimprint"
//		"github.com/menta2k/claimprint/pkg/claim"
//	)
//
//	func main() {
//		c := claim.New(time.Now())
//		c.Name = "Aina"
//
//		p := claimprint.NewPrinter(c, claimprint.DefaultOptions())
//		for _, path := range []string{"parking.jpg", "lunch.heic"} {
//			if _, err := p.AddFile(path); err != nil {
//				log.Fatal(err)
//			}
//		}
//		p.Analyze(context.Background())
//
//		out, err := p.Write("./claim")
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("wrote %d pages", len(out.Pages))
//	}
//
// The package consists of these components:
//
//  1. Cropper (pkg/cropper): interactive crop session over a decoded photo
//  2. Layout (pkg/layout): fixed-grid pagination, free-form placement and the claim form
//  3. Analysis (pkg/analysis): fills receipt fields from a vision model backend
//  4. Render (pkg/render): rasterizes layout pages into previews
package claimprint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/menta2k/claimprint/pkg/analysis"
	"github.com/menta2k/claimprint/pkg/claim"
	"github.com/menta2k/claimprint/pkg/cropper"
	"github.com/menta2k/claimprint/pkg/geometry"
	"github.com/menta2k/claimprint/pkg/layout"
	"github.com/menta2k/claimprint/pkg/processing"
	"github.com/menta2k/claimprint/pkg/render"
	"github.com/menta2k/claimprint/pkg/types"
)

// Version of the claimprint library
const Version = "1.0.0"

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

// Layout names accepted in Options.Layout
const (
	LayoutGrid     = "grid"
	LayoutFreeform = "freeform"
)

// PlanFile is the name of the layout plan written next to the page previews
const PlanFile = "plan.json"

// Options configures a Printer
type Options struct {
	Crop     cropper.CropConfig
	Grid     layout.GridConfig
	Freeform layout.FreeformConfig
	Layout   string

	DPI         float64
	PageFormat  string
	PageQuality int

	// Nil skips analysis
	Analyzer *analysis.Service
	// Nil discards output
	Logger *log.Logger
}

// DefaultOptions crops to the full photo and lays receipts out on a grid
func DefaultOptions() Options {
	crop := cropper.DefaultConfig()
	crop.Policy = cropper.PolicyFull
	return Options{
		Crop:        crop,
		Grid:        layout.DefaultGridConfig(),
		Freeform:    layout.DefaultFreeformConfig(),
		Layout:      LayoutGrid,
		DPI:         150,
		PageFormat:  "png",
		PageQuality: 90,
	}
}

// Output lists the files written by Printer.Write
type Output struct {
	PlanPath string
	Pages    []string
}

// Printer collects receipts into a claim and prints it
type Printer struct {
	claim     *claim.Claim
	opts      Options
	processor *processing.Processor
	logger    *log.Logger
}

// NewPrinter creates a Printer adding receipts to c
func NewPrinter(c *claim.Claim, opts Options) *Printer {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c.SetFreeformConfig(opts.Freeform)
	return &Printer{
		claim:     c,
		opts:      opts,
		processor: processing.NewProcessor(),
		logger:    logger,
	}
}

// Claim returns the claim receipts are added to
func (p *Printer) Claim() *claim.Claim { return p.claim }

// AddFile reads a receipt from a path or URL and adds it
func (p *Printer) AddFile(source string) (*types.Receipt, error) {
	data, err := p.processor.ReadSource(source)
	if err != nil {
		return nil, err
	}
	r, err := p.AddImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	p.logger.Info("receipt added", "source", filepath.Base(source), "id", r.ID)
	return r, nil
}

// AddImage crops data with the configured initial policy and adds it
func (p *Printer) AddImage(data []byte) (*types.Receipt, error) {
	cropped, err := CropImage(data, p.opts.Crop, nil)
	if err != nil {
		return nil, err
	}
	return p.claim.AddReceipt(data, cropped), nil
}

// Analyze runs the configured analyzer over every receipt still processing
// and returns the number of failures
func (p *Printer) Analyze(ctx context.Context) int {
	if p.opts.Analyzer == nil {
		for _, r := range p.claim.Receipts {
			if r.Status == types.StatusProcessing {
				r.Merchant = ""
				r.Status = types.StatusReady
			}
		}
		return 0
	}

	var pending []*types.Receipt
	for _, r := range p.claim.Receipts {
		if r.Status == types.StatusProcessing {
			pending = append(pending, r)
		}
	}
	return p.opts.Analyzer.AnnotateAll(ctx, pending, p.claim.Categories)
}

// Plan lays out the claim with the configured policy
func (p *Printer) Plan() layout.Plan {
	if p.opts.Layout == LayoutFreeform {
		return p.claim.FreeformPlan()
	}
	return p.claim.GridPlan(p.opts.Grid)
}

// Write writes plan.json and one preview image per page into dir
func (p *Printer) Write(dir string) (Output, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Output{}, fmt.Errorf("creating output directory: %w", err)
	}

	plan := p.Plan()
	out := Output{PlanPath: filepath.Join(dir, PlanFile)}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return out, fmt.Errorf("encoding plan: %w", err)
	}
	if err := os.WriteFile(out.PlanPath, data, 0644); err != nil {
		return out, fmt.Errorf("writing plan: %w", err)
	}

	renderer := render.New(p.opts.DPI, p.logger)
	out.Pages, err = renderer.WritePlan(plan, dir, p.opts.PageFormat, p.opts.PageQuality)
	return out, err
}

// CropImage runs a non-interactive crop session over data. When rect is
// non-nil it replaces the policy's initial rectangle (clamped to the image).
func CropImage(data []byte, cfg cropper.CropConfig, rect *geometry.Rect) ([]byte, error) {
	s, err := cropper.Load(data, cfg)
	if err != nil {
		return nil, err
	}
	defer s.Cancel()

	if rect != nil {
		s.SetRect(*rect)
	}
	return s.Finalize()
}
