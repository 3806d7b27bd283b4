package storage

import (
	"context"
	"errors"

	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

// ErrPixelNotFound is returned when a lookup finds no matching pixel.
var ErrPixelNotFound = errors.New("pixel not found")

// ErrCellOccupied is returned when an insert loses the race for a
// coordinate: some other transaction committed that cell first.
var ErrCellOccupied = errors.New("cell already occupied")

// ErrDuplicateTransaction is returned when the ledger transaction id
// already backs a committed pixel. A transaction buys at most one cell.
var ErrDuplicateTransaction = errors.New("transaction already used")

// Page is one page of a cursor-paginated pixel listing.
type Page struct {
	Pixels     []pixel.Pixel
	NextCursor string
	HasMore    bool
}

// PixelStore is the persistent system of record for committed pixels.
// Uniqueness of (x,y) and of transaction_id is enforced here; the
// verification service relies on it to arbitrate concurrent purchases.
type PixelStore interface {
	// InsertPixel persists a fully populated pixel record. Returns
	// ErrCellOccupied or ErrDuplicateTransaction on constraint conflicts.
	InsertPixel(ctx context.Context, p pixel.Pixel) (*pixel.Pixel, error)

	// GetPixel returns the committed pixel at (x,y).
	GetPixel(ctx context.Context, x, y int) (*pixel.Pixel, error)

	// GetByTransaction returns the pixel backed by a ledger transaction id.
	GetByTransaction(ctx context.Context, txID string) (*pixel.Pixel, error)

	// ListPixels returns committed pixels ordered by added_id, starting
	// after the given cursor. An empty cursor starts from the beginning.
	ListPixels(ctx context.Context, cursor string, limit int) (*Page, error)

	// ListAllPixels returns every committed pixel. Used to warm-load the
	// in-memory grid at startup.
	ListAllPixels(ctx context.Context) ([]pixel.Pixel, error)
}
