package vision

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// createReceiptPhoto draws a white receipt on a dark table
func createReceiptPhoto(width, height int, paper image.Rectangle) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (image.Point{x, y}).In(paper) {
				img.Set(x, y, color.RGBA{245, 245, 240, 255})
			} else {
				img.Set(x, y, color.RGBA{40, 30, 20, 255})
			}
		}
	}
	return img
}

func TestNew(t *testing.T) {
	d := New()
	if d == nil {
		t.Fatal("New() returned nil")
	}
	if d.config.BrightThreshold != 170 {
		t.Errorf("Expected bright threshold 170, got %d", d.config.BrightThreshold)
	}
}

func TestFindPaper(t *testing.T) {
	paper := image.Rect(100, 50, 300, 550)
	img := createReceiptPhoto(400, 600, paper)

	r, ok := New().FindPaper(img)
	if !ok {
		t.Fatal("Expected paper to be found")
	}

	// work copy is downscaled, allow a couple of source pixels of slack
	const tol = 4.0
	if math.Abs(r.X-100) > tol || math.Abs(r.Y-50) > tol {
		t.Errorf("Expected origin near (100,50), got (%.1f,%.1f)", r.X, r.Y)
	}
	if math.Abs(r.W-200) > tol || math.Abs(r.H-500) > tol {
		t.Errorf("Expected size near 200x500, got %.1fx%.1f", r.W, r.H)
	}
}

func TestFindPaperNoReceipt(t *testing.T) {
	img := createReceiptPhoto(300, 300, image.Rectangle{})
	if _, ok := New().FindPaper(img); ok {
		t.Error("Expected no paper on a uniformly dark image")
	}
}

func TestFindPaperTooSmall(t *testing.T) {
	img := createReceiptPhoto(400, 400, image.Rect(10, 10, 30, 30))
	if _, ok := New().FindPaper(img); ok {
		t.Error("Expected tiny bright spot to be rejected")
	}
}
