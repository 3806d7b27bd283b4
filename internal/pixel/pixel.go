package pixel

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"
)

// MaxMessageLen caps the optional message stored with a pixel.
const MaxMessageLen = 100

// DefaultOwner is used when a buyer leaves the owner field blank.
const DefaultOwner = "Anonymous"

// DefaultColor is the color a fresh draft starts with.
const DefaultColor = "#4CAF50"

// Coord addresses one cell of the grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pixel is one committed cell of the garden. A cell is either absent or
// fully populated; there is no partially committed pixel.
type Pixel struct {
	AddedID          int64     `json:"added_id"`
	X                int       `json:"x"`
	Y                int       `json:"y"`
	Color            string    `json:"color,omitempty"`
	Image            []byte    `json:"image,omitempty"`
	Height           int       `json:"height"`
	Message          string    `json:"message,omitempty"`
	Owner            string    `json:"owner"`
	Email            string    `json:"-"`
	PurchasedAt      time.Time `json:"purchased_at"`
	TransactionID    string    `json:"transaction_id"`
	PaymentReference string    `json:"payment_reference"`
}

// HasImage reports whether the pixel is image-filled rather than a flat color.
func (p *Pixel) HasImage() bool {
	return len(p.Image) > 0
}

// Pricing holds the price formula constants.
type Pricing struct {
	Base     int64
	PerLevel int64
}

// For returns the token price of a pixel at the given height level:
// base plus one surcharge per level above the first.
func (pr Pricing) For(height int) int64 {
	return pr.Base + int64(height-1)*pr.PerLevel
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidColor reports whether s is a #rrggbb hex color.
func ValidColor(s string) bool {
	return colorPattern.MatchString(s)
}

// Validate checks that a pixel record is internally consistent for the
// given grid dimensions and height ceiling.
func (p *Pixel) Validate(width, height, maxHeight int) error {
	if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
		return fmt.Errorf("coordinates (%d,%d) outside %dx%d grid", p.X, p.Y, width, height)
	}
	if p.Height < 1 || p.Height > maxHeight {
		return fmt.Errorf("height %d outside [1,%d]", p.Height, maxHeight)
	}
	if len(p.Image) == 0 && !ValidColor(p.Color) {
		return fmt.Errorf("invalid color %q", p.Color)
	}
	if utf8.RuneCountInString(p.Message) > MaxMessageLen {
		return fmt.Errorf("message exceeds %d characters", MaxMessageLen)
	}
	return nil
}
