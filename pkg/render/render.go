// Package render rasterizes layout pages into preview images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/claimprint/pkg/geometry"
	"github.com/menta2k/claimprint/pkg/layout"
	"github.com/menta2k/claimprint/pkg/processing"
)

const mmPerInch = 25.4

var (
	white  = color.NRGBA{255, 255, 255, 255}
	black  = color.NRGBA{0, 0, 0, 255}
	grey   = color.NRGBA{160, 160, 160, 255}
	shade  = color.NRGBA{242, 242, 242, 255}
	broken = color.NRGBA{220, 60, 60, 255}
)

// Renderer draws pages at a fixed resolution
type Renderer struct {
	DPI float64
	// Inner margin of the claim form block, in mm
	FormPadding float64

	processor *processing.Processor
	logger    *log.Logger
}

// New creates a Renderer. A nil logger discards output.
func New(dpi float64, logger *log.Logger) *Renderer {
	if dpi <= 0 {
		dpi = 96
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Renderer{
		DPI:         dpi,
		FormPadding: 8,
		processor:   processing.NewProcessor(),
		logger:      logger,
	}
}

// Px converts millimeters to pixels
func (r *Renderer) Px(mm float64) int {
	return int(math.Round(mm * r.DPI / mmPerInch))
}

func (r *Renderer) pxRect(g geometry.Rect) image.Rectangle {
	x0, y0 := r.Px(g.X), r.Px(g.Y)
	return image.Rect(x0, y0, x0+r.Px(g.W), y0+r.Px(g.H))
}

// RenderPage draws one page of plan: a white sheet, the claim form block
// when the page carries it, and each receipt fitted into its cell.
// Receipts that fail to decode are drawn as a crossed box.
func (r *Renderer) RenderPage(plan layout.Plan, page layout.Page) *image.NRGBA {
	canvas := imaging.New(r.Px(plan.Page.Width), r.Px(plan.Page.Height), white)

	if page.ClaimForm {
		r.drawForm(canvas, plan)
	}

	for _, cell := range page.Cells {
		box := r.pxRect(cell.Rect)
		if box.Dx() < 1 || box.Dy() < 1 {
			continue
		}

		img, err := r.processor.DecodeImage(cell.Receipt.DisplayImage())
		if err != nil {
			r.logger.Warn("cannot draw receipt", "id", cell.Receipt.ID, "page", page.Number(), "err", err)
			processing.StrokeRect(canvas, box, broken, 2)
			drawLine(canvas, box.Min, box.Max, broken)
			continue
		}

		fitted := imaging.Fit(img, box.Dx(), box.Dy(), imaging.Lanczos)
		pos := image.Pt(
			box.Min.X+(box.Dx()-fitted.Bounds().Dx())/2,
			box.Min.Y+(box.Dy()-fitted.Bounds().Dy())/2,
		)
		canvas = imaging.Paste(canvas, fitted, pos)
		processing.StrokeRect(canvas, box, grey, 1)
	}

	footer := fmt.Sprintf("Page %d", page.Number())
	r.text(canvas, footer, plan.Page.Width/2-6, plan.Page.Height-3, black)
	return canvas
}

// RenderPlan draws every page of plan in order
func (r *Renderer) RenderPlan(plan layout.Plan) []*image.NRGBA {
	pages := make([]*image.NRGBA, len(plan.Pages))
	for i, p := range plan.Pages {
		pages[i] = r.RenderPage(plan, p)
	}
	return pages
}

// WritePlan renders plan into dir as page_001.<format>, page_002.<format>, ...
// and returns the written paths
func (r *Renderer) WritePlan(plan layout.Plan, dir, format string, quality int) ([]string, error) {
	if format == "" {
		format = "png"
	}

	var paths []string
	for _, p := range plan.Pages {
		path := filepath.Join(dir, fmt.Sprintf("page_%03d.%s", p.Number(), format))
		if err := r.processor.SaveImage(r.RenderPage(plan, p), path, format, quality, false); err != nil {
			return paths, fmt.Errorf("writing page %d: %w", p.Number(), err)
		}
		r.logger.Debug("page written", "path", path, "receipts", len(p.Cells))
		paths = append(paths, path)
	}
	return paths, nil
}

// drawForm draws the claim table inside the top plan.FormHeight mm of the page
func (r *Renderer) drawForm(canvas *image.NRGBA, plan layout.Plan) {
	pad := r.FormPadding
	width := plan.Page.Width - 2*pad
	block := geometry.Rect{X: pad, Y: pad, W: width, H: plan.FormHeight - 2*pad}
	if block.H <= 0 {
		return
	}
	processing.StrokeRect(canvas, r.pxRect(block), black, 2)

	form := plan.Form
	y := block.Y + 6
	if form.Header.Company != "" {
		r.text(canvas, form.Header.Company, block.X+4, y, black)
		y += 5
	}
	r.text(canvas, form.Header.Title, block.X+4, y, black)
	y += 6
	r.text(canvas, "Name: "+orBlank(form.Header.Name), block.X+4, y, black)
	r.text(canvas, "Month: "+orBlank(form.Header.Month), block.X+width/2, y, black)
	y += 3

	// header row, item rows, total row
	rowsTop := y
	rowH := (block.Bottom() - rowsTop - 2) / float64(len(form.Rows)+2)
	itemX := block.X + 2
	descX := itemX + 14
	amountX := block.Right() - 30

	table := geometry.Rect{X: itemX, Y: rowsTop, W: block.W - 4, H: rowH * float64(len(form.Rows)+2)}
	processing.FillRect(canvas, r.pxRect(geometry.Rect{X: table.X, Y: rowsTop, W: table.W, H: rowH}), shade)
	processing.StrokeRect(canvas, r.pxRect(table), black, 1)

	for i := 1; i < len(form.Rows)+2; i++ {
		ly := r.Px(rowsTop + float64(i)*rowH)
		processing.FillRect(canvas, image.Rect(r.Px(table.X), ly, r.Px(table.Right()), ly+1), grey)
	}
	for _, x := range []float64{descX, amountX} {
		lx := r.Px(x)
		processing.FillRect(canvas, image.Rect(lx, r.Px(table.Y), lx+1, r.Px(table.Bottom())), grey)
	}

	baseline := func(row int) float64 { return rowsTop + float64(row+1)*rowH - rowH/4 }
	r.text(canvas, "Items", itemX+1, baseline(0), black)
	r.text(canvas, "Descriptions", descX+1, baseline(0), black)
	r.text(canvas, "Amount", amountX+1, baseline(0), black)

	for i, row := range form.Rows {
		r.text(canvas, fmt.Sprint(row.Item), itemX+1, baseline(i+1), black)
		r.text(canvas, row.Description, descX+1, baseline(i+1), black)
		r.text(canvas, row.AmountText(), amountX+1, baseline(i+1), black)
	}

	last := len(form.Rows) + 1
	r.text(canvas, "Total:", amountX-14, baseline(last), black)
	r.text(canvas, form.TotalText(), amountX+1, baseline(last), black)
}

// text draws s with its baseline at (x, y) mm. basicfont is fixed-size, so
// text does not scale with DPI.
func (r *Renderer) text(canvas *image.NRGBA, s string, x, y float64, c color.Color) {
	if s == "" {
		return
	}
	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(r.Px(x), r.Px(y)),
	}
	d.DrawString(s)
}

func orBlank(s string) string {
	if s == "" {
		return "____________________"
	}
	return s
}

// drawLine draws a 1px line from a to b
func drawLine(img *image.NRGBA, a, b image.Point, c color.NRGBA) {
	dx, dy := b.X-a.X, b.Y-a.Y
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		img.SetNRGBA(a.X, a.Y, c)
		return
	}
	for i := 0; i <= steps; i++ {
		img.SetNRGBA(a.X+dx*i/steps, a.Y+dy*i/steps, c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
