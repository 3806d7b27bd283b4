package render

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/uhuru-arts/pixelgarden/internal/grid"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

const (
	backgroundColor = "#FFFFFF"
	gridLineColor   = "#E0E0E0"
	selectionColor  = "#FF5722"
)

// drawable is a cell's decoded image, cached between frames. Entries
// are dropped the moment the backing cell changes so a replaced
// appearance never leaks its old decode.
type drawable struct {
	img image.Image
}

// Raster renders the grid to a PNG surface. Occupied cells are filled
// squares; cells with an image get the image at near zoom and its
// dominant color when zoomed out.
type Raster struct {
	mu       sync.Mutex
	grid     *grid.Grid
	cellSize int
	images   map[pixel.Coord]*drawable
}

// NewRaster creates a rasterizer over the grid. It subscribes to grid
// changes to keep the decoded-image index in sync.
func NewRaster(g *grid.Grid, cellSize int) *Raster {
	r := &Raster{
		grid:     g,
		cellSize: cellSize,
		images:   make(map[pixel.Coord]*drawable),
	}
	g.Observe(r.onGridEvent)
	return r
}

func (r *Raster) onGridEvent(ev grid.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Kind {
	case grid.EventSet:
		delete(r.images, pixel.Coord{X: ev.New.X, Y: ev.New.Y})
	case grid.EventReload:
		r.images = make(map[pixel.Coord]*drawable)
	}
}

func (r *Raster) imageFor(p *pixel.Pixel) image.Image {
	key := pixel.Coord{X: p.X, Y: p.Y}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.images[key]; ok {
		return d.img
	}
	img, err := imaging.Decode(bytes.NewReader(p.Image))
	if err != nil {
		return nil
	}
	r.images[key] = &drawable{img: img}
	return img
}

// Options controls one 2D frame.
type Options struct {
	Zoom     float64
	Selected *pixel.Coord
}

// Render draws the whole grid as a PNG to w. Zoom scales the surface;
// it never changes which cell a coordinate refers to.
func (r *Raster) Render(w io.Writer, opts Options) error {
	zoom := opts.Zoom
	if zoom == 0 {
		zoom = 1.0
	}
	cell := float64(r.cellSize)
	gw, gh := r.grid.Width(), r.grid.Height()

	dc := gg.NewContext(int(float64(gw)*cell*zoom), int(float64(gh)*cell*zoom))
	dc.Scale(zoom, zoom)

	dc.SetHexColor(backgroundColor)
	dc.Clear()

	// Image detail is wasted below full zoom; fall back to the flat
	// dominant color extracted at upload time.
	drawImages := zoom >= 1.0

	for _, p := range r.grid.Snapshot() {
		px, py := float64(p.X)*cell, float64(p.Y)*cell
		if p.HasImage() && drawImages {
			if img := r.imageFor(&p); img != nil {
				drawScaled(dc, img, px, py, cell)
				continue
			}
		}
		color := p.Color
		if color == "" {
			color = pixel.DefaultColor
		}
		dc.SetHexColor(color)
		dc.DrawRectangle(px, py, cell, cell)
		dc.Fill()
	}

	dc.SetHexColor(gridLineColor)
	dc.SetLineWidth(0.5)
	for x := 0; x <= gw; x++ {
		fx := float64(x) * cell
		dc.DrawLine(fx, 0, fx, float64(gh)*cell)
	}
	for y := 0; y <= gh; y++ {
		fy := float64(y) * cell
		dc.DrawLine(0, fy, float64(gw)*cell, fy)
	}
	dc.Stroke()

	if s := opts.Selected; s != nil {
		dc.SetHexColor(selectionColor)
		dc.SetLineWidth(2)
		dc.DrawRectangle(float64(s.X)*cell, float64(s.Y)*cell, cell, cell)
		dc.Stroke()
	}

	return dc.EncodePNG(w)
}

// drawScaled paints img into the cell-sized square at (x,y).
func drawScaled(dc *gg.Context, img image.Image, x, y, cell float64) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	dc.Push()
	dc.Translate(x, y)
	dc.Scale(cell/float64(b.Dx()), cell/float64(b.Dy()))
	dc.DrawImage(img, 0, 0)
	dc.Pop()
}

// HitTest maps surface coordinates back to a grid cell under the given
// zoom.
func (r *Raster) HitTest(px, py, zoom float64) (pixel.Coord, error) {
	if zoom == 0 {
		zoom = 1.0
	}
	scale := float64(r.cellSize) * zoom
	if px < 0 || py < 0 {
		return pixel.Coord{}, fmt.Errorf("pointer (%.1f,%.1f): %w", px, py, grid.ErrOutOfBounds)
	}
	c := pixel.Coord{X: int(px / scale), Y: int(py / scale)}
	if c.X >= r.grid.Width() || c.Y >= r.grid.Height() {
		return pixel.Coord{}, fmt.Errorf("pointer (%.1f,%.1f): %w", px, py, grid.ErrOutOfBounds)
	}
	return c, nil
}
