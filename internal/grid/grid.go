package grid

import (
	"errors"
	"fmt"
	"sync"

	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

// ErrOutOfBounds is returned for coordinates outside [0,width)x[0,height).
var ErrOutOfBounds = errors.New("coordinates out of bounds")

// EventKind distinguishes a single-cell write from a full reload.
type EventKind int

const (
	EventSet EventKind = iota
	EventReload
)

// Event describes a change to the grid. For EventSet, Old is the prior
// record at the cell (nil when it was empty) and New the written one.
// For EventReload both are nil; observers should resync from the grid.
type Event struct {
	Kind EventKind
	Old  *pixel.Pixel
	New  *pixel.Pixel
}

// Grid is the in-memory store of committed pixels. Writers hold the
// lock for the whole mutation, so readers never observe a half-written
// cell or a partially loaded grid.
type Grid struct {
	mu        sync.RWMutex
	width     int
	height    int
	cells     []*pixel.Pixel
	observers []func(Event)
}

// New creates an empty grid of the given dimensions.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions %dx%d", width, height)
	}
	return &Grid{
		width:  width,
		height: height,
		cells:  make([]*pixel.Pixel, width*height),
	}, nil
}

// Width returns the grid width in cells.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height in cells.
func (g *Grid) Height() int { return g.height }

// Observe registers fn to be called after every mutation. Observers are
// invoked in registration order while the write lock is held, so they
// see each change exactly once and in order.
func (g *Grid) Observe(fn func(Event)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, fn)
}

func (g *Grid) index(x, y int) (int, error) {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}
	return y*g.width + x, nil
}

// Get returns the pixel at (x,y), or nil when the cell is empty.
func (g *Grid) Get(x, y int) (*pixel.Pixel, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i, err := g.index(x, y)
	if err != nil {
		return nil, err
	}
	if g.cells[i] == nil {
		return nil, nil
	}
	cp := *g.cells[i]
	return &cp, nil
}

// Occupied reports whether the cell at (x,y) holds a record.
func (g *Grid) Occupied(x, y int) (bool, error) {
	p, err := g.Get(x, y)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// Set stores a copy of p at (x,y), overwriting any existing record.
// Callers are expected to have checked emptiness before opening an
// editor; Set itself does not reject occupied cells.
func (g *Grid) Set(x, y int, p pixel.Pixel) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	i, err := g.index(x, y)
	if err != nil {
		return err
	}
	p.X, p.Y = x, y
	old := g.cells[i]
	cp := p
	g.cells[i] = &cp
	g.notify(Event{Kind: EventSet, Old: old, New: &cp})
	return nil
}

// LoadAll replaces the entire grid with the given records. The swap is
// atomic from a reader's perspective: a concurrent Get sees either the
// old grid or the new one, never a mix. Records outside the bounds are
// rejected and nothing is replaced.
func (g *Grid) LoadAll(pixels []pixel.Pixel) error {
	fresh := make([]*pixel.Pixel, g.width*g.height)
	for i := range pixels {
		p := pixels[i]
		if p.X < 0 || p.X >= g.width || p.Y < 0 || p.Y >= g.height {
			return fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, p.X, p.Y)
		}
		fresh[p.Y*g.width+p.X] = &p
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cells = fresh
	g.notify(Event{Kind: EventReload})
	return nil
}

// Snapshot returns a copy of all occupied cells.
func (g *Grid) Snapshot() []pixel.Pixel {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []pixel.Pixel
	for _, c := range g.cells {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// Sold returns the number of occupied cells.
func (g *Grid) Sold() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, c := range g.cells {
		if c != nil {
			n++
		}
	}
	return n
}

func (g *Grid) notify(ev Event) {
	for _, fn := range g.observers {
		fn(ev)
	}
}
