// Package editor holds the pending-purchase draft a buyer is working
// on. A user session has at most one draft; opening a new one silently
// discards the previous draft.
package editor

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/uhuru-arts/pixelgarden/internal/grid"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

var (
	// ErrCellOccupied is returned when opening an editor on a sold cell.
	ErrCellOccupied = errors.New("cell already owned")

	// ErrNoActiveDraft is returned by operations that need an open draft.
	ErrNoActiveDraft = errors.New("no active draft")

	// ErrOutOfRange is returned for height levels outside [1, max].
	ErrOutOfRange = errors.New("height level out of range")

	// ErrInvalidColor is returned for colors that are not #rrggbb.
	ErrInvalidColor = errors.New("invalid color")

	// ErrMessageTooLong is returned when the message exceeds the cap.
	ErrMessageTooLong = errors.New("message too long")
)

// Config holds editor limits and the price formula.
type Config struct {
	Pricing       pixel.Pricing
	MaxHeight     int
	MaxImageBytes int64
	CanvasSize    int
}

// Draft is an uncommitted, editable purchase proposal for one cell.
type Draft struct {
	X             int
	Y             int
	Color         string
	Image         []byte
	DominantColor string
	Height        int
	Message       string
	Owner         string
	Email         string
}

// Appearance returns the flat color standing in for the draft: the
// image's dominant color when an image is attached, else the chosen one.
func (d *Draft) Appearance() string {
	if len(d.Image) > 0 && d.DominantColor != "" {
		return d.DominantColor
	}
	return d.Color
}

// Editor edits the single pending purchase of one user session.
type Editor struct {
	grid  *grid.Grid
	cfg   Config
	draft *Draft
}

// New creates an editor over the given grid.
func New(g *grid.Grid, cfg Config) *Editor {
	return &Editor{grid: g, cfg: cfg}
}

// Open starts a draft for the empty cell at (x,y), discarding any
// previous draft. Defaults: green, height 1, everything else blank.
func (e *Editor) Open(x, y int) (*Draft, error) {
	occupied, err := e.grid.Occupied(x, y)
	if err != nil {
		return nil, err
	}
	if occupied {
		return nil, fmt.Errorf("%w: (%d,%d)", ErrCellOccupied, x, y)
	}
	e.draft = &Draft{
		X:      x,
		Y:      y,
		Color:  pixel.DefaultColor,
		Height: 1,
	}
	return e.snapshot()
}

// Draft returns a copy of the current draft.
func (e *Editor) Draft() (*Draft, error) {
	return e.snapshot()
}

func (e *Editor) snapshot() (*Draft, error) {
	if e.draft == nil {
		return nil, ErrNoActiveDraft
	}
	cp := *e.draft
	return &cp, nil
}

// Price returns the token price of the draft at its current height.
func (e *Editor) Price() (int64, error) {
	if e.draft == nil {
		return 0, ErrNoActiveDraft
	}
	return e.cfg.Pricing.For(e.draft.Height), nil
}

// UpdateHeight sets the draft's height level and returns the
// recomputed price.
func (e *Editor) UpdateHeight(level int) (int64, error) {
	if e.draft == nil {
		return 0, ErrNoActiveDraft
	}
	if level < 1 || level > e.cfg.MaxHeight {
		return 0, fmt.Errorf("%w: %d not in [1,%d]", ErrOutOfRange, level, e.cfg.MaxHeight)
	}
	e.draft.Height = level
	return e.cfg.Pricing.For(level), nil
}

// SetColor sets a flat color fill, removing any attached image.
func (e *Editor) SetColor(hex string) error {
	if e.draft == nil {
		return ErrNoActiveDraft
	}
	if !pixel.ValidColor(hex) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}
	e.draft.Color = hex
	e.draft.Image = nil
	e.draft.DominantColor = ""
	return nil
}

// SetMessage sets the optional message, trimmed, capped at 100 chars.
func (e *Editor) SetMessage(msg string) error {
	if e.draft == nil {
		return ErrNoActiveDraft
	}
	msg = strings.TrimSpace(msg)
	// The cap counts characters, not bytes, so multi-byte messages
	// get the full hundred.
	if n := utf8.RuneCountInString(msg); n > pixel.MaxMessageLen {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLong, n, pixel.MaxMessageLen)
	}
	e.draft.Message = msg
	return nil
}

// SetOwner sets the display name shown on the pixel.
func (e *Editor) SetOwner(name string) error {
	if e.draft == nil {
		return ErrNoActiveDraft
	}
	e.draft.Owner = strings.TrimSpace(name)
	return nil
}

// SetEmail sets the contact email. It is never rendered, only used
// for purchase notifications.
func (e *Editor) SetEmail(email string) error {
	if e.draft == nil {
		return ErrNoActiveDraft
	}
	e.draft.Email = strings.TrimSpace(email)
	return nil
}

// AttachImage validates, normalizes and attaches an uploaded image,
// superseding any flat-color choice. On failure the draft's previous
// appearance is left untouched.
func (e *Editor) AttachImage(data []byte) error {
	if e.draft == nil {
		return ErrNoActiveDraft
	}
	normalized, dominant, err := NormalizeImage(data, e.cfg.MaxImageBytes, e.cfg.CanvasSize)
	if err != nil {
		return err
	}
	e.draft.Image = normalized
	e.draft.DominantColor = dominant
	return nil
}

// RemoveImage detaches the image; the draft falls back to its color.
func (e *Editor) RemoveImage() error {
	if e.draft == nil {
		return ErrNoActiveDraft
	}
	e.draft.Image = nil
	e.draft.DominantColor = ""
	return nil
}

// Cancel discards the draft. Safe to call with none open.
func (e *Editor) Cancel() {
	e.draft = nil
}

// Submit hands the draft off for payment and closes the editor. The
// returned copy is what the payment session carries through rejection
// and retry.
func (e *Editor) Submit() (*Draft, error) {
	d, err := e.snapshot()
	if err != nil {
		return nil, err
	}
	if d.Owner == "" {
		d.Owner = pixel.DefaultOwner
	}
	e.draft = nil
	return d, nil
}
