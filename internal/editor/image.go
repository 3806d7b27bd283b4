package editor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var (
	// ErrImageTooLarge is returned for uploads over the size limit.
	ErrImageTooLarge = errors.New("image too large")

	// ErrInvalidImage is returned for uploads that do not decode.
	ErrInvalidImage = errors.New("invalid image")
)

const jpegQuality = 80

// NormalizeImage validates an uploaded image and renders it onto a
// square canvas, preserving aspect ratio with letterbox centering;
// the same treatment every pixel image gets before texturing a cell.
// Returns the normalized JPEG bytes and the image's dominant color.
func NormalizeImage(data []byte, maxBytes int64, canvasSize int) ([]byte, string, error) {
	if int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("%w: %d bytes (max %d)", ErrImageTooLarge, len(data), maxBytes)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	fitted := imaging.Fit(img, canvasSize, canvasSize, imaging.Lanczos)
	canvas := imaging.New(canvasSize, canvasSize, color.White)
	canvas = imaging.PasteCenter(canvas, fitted)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, "", fmt.Errorf("encode normalized image: %w", err)
	}

	return buf.Bytes(), DominantColor(img), nil
}

// DominantColor approximates an image's dominant color by collapsing
// it to a single pixel, mirroring how the cell is tinted when the
// texture is too small to see.
func DominantColor(img image.Image) string {
	one := imaging.Resize(img, 1, 1, imaging.Box)
	r, g, b, _ := one.At(0, 0).RGBA()
	return fmt.Sprintf("#%02X%02X%02X", uint8(r>>8), uint8(g>>8), uint8(b>>8))
}
