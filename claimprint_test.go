package claimprint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/menta2k/claimprint/pkg/analysis"
	"github.com/menta2k/claimprint/pkg/claim"
	"github.com/menta2k/claimprint/pkg/cropper"
	"github.com/menta2k/claimprint/pkg/geometry"
	"github.com/menta2k/claimprint/pkg/layout"
	"github.com/menta2k/claimprint/pkg/types"
)

// createTestImage creates a PNG with a white receipt on a dark background
func createTestImage(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{40, 40, 40, 255}
			if x > width/4 && x < 3*width/4 && y > height/8 && y < 7*height/8 {
				c = color.RGBA{250, 250, 250, 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

type stubClient struct{}

func (stubClient) AnalyzeReceipt(context.Context, string, []string) (*types.ReceiptFields, error) {
	return &types.ReceiptFields{Amount: 4.2, Merchant: "Stub", Date: "2026-10-01", SuggestedCategory: "Parking"}, nil
}

func TestVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("GetVersion() = %q, want %q", GetVersion(), Version)
	}
}

func TestCropImage(t *testing.T) {
	data := createTestImage(t, 200, 100)

	out, err := CropImage(data, cropper.DefaultConfig(), &geometry.Rect{X: 10, Y: 10, W: 80, H: 40})
	if err != nil {
		t.Fatalf("CropImage() error = %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding crop: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 80 || b.Dy() != 40 {
		t.Errorf("Expected 80x40 crop, got %dx%d", b.Dx(), b.Dy())
	}

	out, _ = CropImage(data, cropper.DefaultConfig(), nil)
	img, _ = jpeg.Decode(bytes.NewReader(out))
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("Expected centered half-size crop, got %dx%d", b.Dx(), b.Dy())
	}

	if _, err := CropImage([]byte("nope"), cropper.DefaultConfig(), nil); !errors.Is(err, cropper.ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestPrinterWrite(t *testing.T) {
	dir := t.TempDir()
	var sources []string
	for i := 0; i < 7; i++ {
		path := filepath.Join(dir, "r"+string(rune('0'+i))+".png")
		if err := os.WriteFile(path, createTestImage(t, 60, 90), 0644); err != nil {
			t.Fatal(err)
		}
		sources = append(sources, path)
	}

	c := claim.New(time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC))
	opts := DefaultOptions()
	opts.DPI = 40
	opts.Analyzer = analysis.New(stubClient{}, nil)
	p := NewPrinter(c, opts)

	for _, s := range sources {
		if _, err := p.AddFile(s); err != nil {
			t.Fatalf("AddFile(%s) error = %v", s, err)
		}
	}
	if _, err := p.AddFile(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("Expected error for missing file")
	}

	if failed := p.Analyze(context.Background()); failed != 0 {
		t.Errorf("Expected no failures, got %d", failed)
	}
	if c.Receipts[0].Category != "Parking" || c.Total() < 29.39 || c.Total() > 29.41 {
		t.Errorf("Expected analyzed receipts, got %+v total %.2f", c.Receipts[0], c.Total())
	}

	out, err := p.Write(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if len(out.Pages) != 2 {
		t.Errorf("Expected 2 pages, got %v", out.Pages)
	}

	data, err := os.ReadFile(out.PlanPath)
	if err != nil {
		t.Fatalf("reading plan: %v", err)
	}
	var plan layout.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("decoding plan: %v", err)
	}
	if len(plan.Pages) != 2 || len(plan.Pages[0].Cells) != 6 {
		t.Errorf("Unexpected plan pages %+v", plan.Pages)
	}
}

func TestCancelledCropLeavesClaimUntouched(t *testing.T) {
	p := NewPrinter(claim.New(time.Now()), DefaultOptions())
	data := createTestImage(t, 120, 160)
	for i := 0; i < 2; i++ {
		if _, err := p.AddImage(data); err != nil {
			t.Fatalf("AddImage() error = %v", err)
		}
	}
	before := p.Claim().Snapshot()

	s, err := cropper.Load(p.Claim().Receipts[0].Image, p.opts.Crop)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s.PointerDown(geometry.Rect{W: 120, H: 160}, geometry.Point{X: 60, Y: 80})
	s.PointerMove(geometry.Rect{W: 120, H: 160}, geometry.Point{X: 70, Y: 90})
	s.Cancel()
	s.Cancel()

	if !reflect.DeepEqual(p.Claim().Snapshot(), before) {
		t.Error("Cancelling a crop session changed the claim")
	}
}

func TestPrinterFreeformWithoutAnalyzer(t *testing.T) {
	opts := DefaultOptions()
	opts.Layout = LayoutFreeform
	p := NewPrinter(claim.New(time.Now()), opts)

	if _, err := p.AddImage(createTestImage(t, 50, 50)); err != nil {
		t.Fatalf("AddImage() error = %v", err)
	}
	p.Analyze(context.Background())
	if r := p.Claim().Receipts[0]; r.Status != types.StatusReady {
		t.Errorf("Expected receipt ready for manual entry, got %s", r.Status)
	}

	plan := p.Plan()
	if len(plan.Pages) != 2 || !plan.Pages[0].ClaimForm || len(plan.Pages[1].Cells) != 1 {
		t.Errorf("Unexpected freeform plan %+v", plan.Pages)
	}
}
