package editor

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/uhuru-arts/pixelgarden/internal/grid"
)

func imagingDecode(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data))
}

// pngImage renders a solid-colored PNG of the given dimensions.
func pngImage(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeImage_SquareCanvas(t *testing.T) {
	data := pngImage(t, 200, 100, color.RGBA{R: 255, A: 255})

	normalized, dominant, err := NormalizeImage(data, 5*1024*1024, 512)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	img, err := imagingDecode(normalized)
	if err != nil {
		t.Fatalf("decode normalized: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 512 || b.Dy() != 512 {
		t.Errorf("canvas: got %dx%d, want 512x512", b.Dx(), b.Dy())
	}
	if dominant != "#FF0000" {
		t.Errorf("dominant color: got %q, want #FF0000", dominant)
	}
}

func TestNormalizeImage_TooLarge(t *testing.T) {
	// 6 MB of bytes must be rejected before any decode attempt.
	data := make([]byte, 6*1024*1024)

	_, _, err := NormalizeImage(data, 5*1024*1024, 512)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("got %v, want ErrImageTooLarge", err)
	}
}

func TestNormalizeImage_NotAnImage(t *testing.T) {
	_, _, err := NormalizeImage([]byte("definitely not an image"), 5*1024*1024, 512)
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("got %v, want ErrInvalidImage", err)
	}
}

func TestAttachImage_FailureLeavesAppearanceUntouched(t *testing.T) {
	g, err := grid.New(10, 10)
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}
	e := New(g, testConfig())
	e.Open(0, 0)
	e.SetColor("#ABCDEF")

	oversized := make([]byte, 6*1024*1024)
	if err := e.AttachImage(oversized); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("got %v, want ErrImageTooLarge", err)
	}

	d, _ := e.Draft()
	if d.Color != "#ABCDEF" || d.Image != nil {
		t.Errorf("appearance changed by failed attach: color %q, image %d bytes", d.Color, len(d.Image))
	}
}

func TestAttachImage_SupersedesColor(t *testing.T) {
	g, _ := grid.New(10, 10)
	e := New(g, testConfig())
	e.Open(0, 0)
	e.SetColor("#ABCDEF")

	if err := e.AttachImage(pngImage(t, 64, 64, color.RGBA{G: 255, A: 255})); err != nil {
		t.Fatalf("attach: %v", err)
	}

	d, _ := e.Draft()
	if len(d.Image) == 0 {
		t.Fatal("no image attached")
	}
	if d.Appearance() != d.DominantColor {
		t.Errorf("appearance: got %q, want dominant %q", d.Appearance(), d.DominantColor)
	}

	// Picking a color again removes the image.
	e.SetColor("#000000")
	d, _ = e.Draft()
	if d.Image != nil {
		t.Error("image survived SetColor")
	}
}
