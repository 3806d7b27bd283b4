// Package render draws the pixel grid and maps pointer positions back
// to cells. Two presentation modes share one grid and one
// selection/zoom state: a 2D PNG raster and a 3D scene model with
// ray-cast picking. When the 3D model is unavailable the renderer
// degrades to 2D-only operation.
package render

import (
	"io"
	"math"
	"sync"

	"github.com/uhuru-arts/pixelgarden/internal/grid"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

// Mode selects the presentation.
type Mode string

const (
	Mode2D Mode = "2d"
	Mode3D Mode = "3d"
)

// Zoom bounds, applied in both modes.
const (
	MinZoom  = 0.5
	MaxZoom  = 2.0
	ZoomStep = 0.1
)

// Config holds the rendering constants, fixed at startup.
type Config struct {
	CellSize       int
	CameraDistance float64
	HeightUnit     float64
	BoxInset       float64
	FOV            float64
	Lighting       Lighting
	Enable3D       bool
}

// ClickEvent is delivered to observers whenever a pointer position
// resolves to a cell. Record is nil for an empty cell.
type ClickEvent struct {
	X, Y   int
	Record *pixel.Pixel
}

// Renderer is the mode facade. Selection and zoom survive mode
// switches and resizes.
type Renderer struct {
	mu        sync.Mutex
	grid      *grid.Grid
	raster    *Raster
	scene     *Scene // nil when 3D is unavailable
	mode      Mode
	zoom      float64
	selected  *pixel.Coord
	viewW     int
	viewH     int
	observers []func(ClickEvent)
}

// New creates a renderer over the grid. With Enable3D false no scene
// model is built and requests for 3D mode stay in 2D.
func New(g *grid.Grid, cfg Config) *Renderer {
	r := &Renderer{
		grid:   g,
		raster: NewRaster(g, cfg.CellSize),
		mode:   Mode2D,
		zoom:   1.0,
		viewW:  g.Width() * cfg.CellSize,
		viewH:  g.Height() * cfg.CellSize,
	}
	if cfg.Enable3D {
		r.scene = NewScene(g, SceneConfig{
			CellSize:       float64(cfg.CellSize),
			HeightUnit:     cfg.HeightUnit,
			BoxInset:       cfg.BoxInset,
			CameraDistance: cfg.CameraDistance,
			FOV:            cfg.FOV,
			Lighting:       cfg.Lighting,
		})
	}
	return r
}

// Observe registers a cell-click observer. Observers fire in
// registration order.
func (r *Renderer) Observe(fn func(ClickEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Mode returns the active presentation mode.
func (r *Renderer) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// SetMode switches presentation. Grid, selection and zoom state carry
// over; an unavailable 3D model leaves the renderer in 2D. Returns the
// mode actually in effect.
func (r *Renderer) SetMode(m Mode) Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m == Mode3D && r.scene == nil {
		r.mode = Mode2D
		return r.mode
	}
	r.mode = m
	if r.scene != nil {
		r.scene.SetZoom(r.zoom)
	}
	return r.mode
}

// Zoom returns the current zoom factor.
func (r *Renderer) Zoom() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zoom
}

// ZoomIn steps the zoom up one notch.
func (r *Renderer) ZoomIn() float64 { return r.SetZoom(r.Zoom() + ZoomStep) }

// ZoomOut steps the zoom down one notch.
func (r *Renderer) ZoomOut() float64 { return r.SetZoom(r.Zoom() - ZoomStep) }

// SetZoom clamps z into [MinZoom, MaxZoom] on a 0.1 lattice and
// applies it. In 3D the zoom adjusts camera distance; logical grid
// coordinates are unaffected either way.
func (r *Renderer) SetZoom(z float64) float64 {
	z = math.Round(z*10) / 10
	z = math.Max(MinZoom, math.Min(MaxZoom, z))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zoom = z
	if r.scene != nil {
		r.scene.SetZoom(z)
	}
	return z
}

// Select highlights a cell.
func (r *Renderer) Select(x, y int) error {
	if _, err := r.grid.Get(x, y); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = &pixel.Coord{X: x, Y: y}
	return nil
}

// Selection returns the highlighted cell, if any.
func (r *Renderer) Selection() *pixel.Coord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return nil
	}
	c := *r.selected
	return &c
}

// ClearSelection removes the highlight.
func (r *Renderer) ClearSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = nil
}

// Resize refits the output surface. Selection and zoom are preserved.
func (r *Renderer) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewW, r.viewH = w, h
}

// Snapshot writes the current 2D frame as PNG. Available in either
// mode; the 3D view picks through Click instead of rendering
// server-side.
func (r *Renderer) Snapshot(w io.Writer) error {
	r.mu.Lock()
	opts := Options{Zoom: r.zoom, Selected: r.selected}
	if opts.Selected != nil {
		c := *opts.Selected
		opts.Selected = &c
	}
	r.mu.Unlock()
	return r.raster.Render(w, opts)
}

// Render writes a PNG of the board with explicit options, leaving the
// renderer's own zoom and selection untouched.
func (r *Renderer) Render(w io.Writer, opts Options) error {
	return r.raster.Render(w, opts)
}

// Click resolves a pointer position to a grid cell in the active mode,
// selects it, and notifies observers with the cell's record (nil when
// empty). Returns false when the pointer hits nothing.
func (r *Renderer) Click(px, py float64) (pixel.Coord, bool) {
	r.mu.Lock()
	mode, zoom := r.mode, r.zoom
	viewW, viewH := r.viewW, r.viewH
	r.mu.Unlock()

	var c pixel.Coord
	switch mode {
	case Mode3D:
		// Pointer pixels to normalized device coordinates, +y up.
		nx := 2*px/float64(viewW) - 1
		ny := 1 - 2*py/float64(viewH)
		var ok bool
		c, ok = r.scene.Pick(nx, ny, float64(viewW)/float64(viewH))
		if !ok {
			return pixel.Coord{}, false
		}
	default:
		var err error
		c, err = r.raster.HitTest(px, py, zoom)
		if err != nil {
			return pixel.Coord{}, false
		}
	}

	record, err := r.grid.Get(c.X, c.Y)
	if err != nil {
		return pixel.Coord{}, false
	}

	r.mu.Lock()
	r.selected = &pixel.Coord{X: c.X, Y: c.Y}
	observers := make([]func(ClickEvent), len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	ev := ClickEvent{X: c.X, Y: c.Y, Record: record}
	for _, fn := range observers {
		fn(ev)
	}
	return c, true
}

// Lighting returns the 3D view's light intensities. ok is false when
// no 3D model is available.
func (r *Renderer) Lighting() (Lighting, bool) {
	if r.scene == nil {
		return Lighting{}, false
	}
	return r.scene.Lighting(), true
}

// Orbit rotates the 3D camera. A no-op in 2D-only operation.
func (r *Renderer) Orbit(dyaw, dpitch float64) {
	if r.scene != nil {
		r.scene.Orbit(dyaw, dpitch)
	}
}

// Pan slides the 3D camera target. A no-op in 2D-only operation.
func (r *Renderer) Pan(dx, dz float64) {
	if r.scene != nil {
		r.scene.Pan(dx, dz)
	}
}
