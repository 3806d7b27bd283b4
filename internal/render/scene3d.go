package render

import (
	"math"
	"sync"

	"github.com/uhuru-arts/pixelgarden/internal/grid"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

// Vec3 is a point or direction in scene space.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64   { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

func (v Vec3) Norm() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Camera orbits a target point at a distance. Yaw spins around the
// vertical axis, pitch tilts toward the ground plane.
type Camera struct {
	Target   Vec3
	Distance float64
	Yaw      float64
	Pitch    float64
	FOV      float64
}

// pitch limits keep the camera above the ground and off the pole.
const (
	minPitch = 0.05
	maxPitch = math.Pi/2 - 0.05
)

// Position derives the camera's location from its orbit parameters.
func (c *Camera) Position() Vec3 {
	cp := math.Cos(c.Pitch)
	return c.Target.Add(Vec3{
		X: c.Distance * cp * math.Sin(c.Yaw),
		Y: c.Distance * math.Sin(c.Pitch),
		Z: c.Distance * cp * math.Cos(c.Yaw),
	})
}

// Orbit rotates the camera around its target.
func (c *Camera) Orbit(dyaw, dpitch float64) {
	c.Yaw += dyaw
	c.Pitch = math.Max(minPitch, math.Min(maxPitch, c.Pitch+dpitch))
}

// Pan slides the target across the ground plane in view-relative
// directions.
func (c *Camera) Pan(dx, dz float64) {
	sy, cy := math.Sin(c.Yaw), math.Cos(c.Yaw)
	c.Target.X += dx*cy - dz*sy
	c.Target.Z += -dx*sy - dz*cy
}

// ray issues a view ray through normalized device coordinates
// (nx, ny in [-1,1], +ny up).
func (c *Camera) ray(nx, ny, aspect float64) (origin, dir Vec3) {
	origin = c.Position()
	forward := c.Target.Sub(origin).Norm()
	right := forward.Cross(Vec3{Y: 1}).Norm()
	up := right.Cross(forward)

	t := math.Tan(c.FOV / 2)
	dir = forward.
		Add(right.Scale(nx * t * aspect)).
		Add(up.Scale(ny * t)).
		Norm()
	return origin, dir
}

// Lighting carries the light intensities the 3D view renders with.
type Lighting struct {
	AmbientIntensity     float64
	DirectionalIntensity float64
}

// box is one cell's extrusion, an axis-aligned volume keyed back to its
// grid coordinates.
type box struct {
	min, max Vec3
	coord    pixel.Coord
}

// SceneConfig sizes the 3D model.
type SceneConfig struct {
	CellSize       float64
	HeightUnit     float64
	BoxInset       float64
	CameraDistance float64
	FOV            float64
	Lighting       Lighting
}

// Scene is the 3D model of the grid: one extruded box per sold cell on
// a ground plane, with an orbit camera and ray-cast picking. It tracks
// grid changes, replacing a cell's box when the cell is overwritten.
type Scene struct {
	mu     sync.Mutex
	grid   *grid.Grid
	cfg    SceneConfig
	camera Camera
	boxes  map[pixel.Coord]box
}

// NewScene builds the model from the grid's current state and
// subscribes to changes.
func NewScene(g *grid.Grid, cfg SceneConfig) *Scene {
	s := &Scene{
		grid: g,
		cfg:  cfg,
		camera: Camera{
			Distance: cfg.CameraDistance,
			Yaw:      math.Pi / 4,
			Pitch:    math.Pi / 4,
			FOV:      cfg.FOV,
		},
		boxes: make(map[pixel.Coord]box),
	}
	s.rebuildFrom(g.Snapshot())
	g.Observe(s.onGridEvent)
	return s
}

func (s *Scene) onGridEvent(ev grid.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Kind {
	case grid.EventSet:
		// A nil index means a reload is pending resync; the rebuild
		// snapshots the grid and will include this cell.
		if s.boxes == nil {
			return
		}
		s.boxes[pixel.Coord{X: ev.New.X, Y: ev.New.Y}] = s.boxFor(ev.New)
	case grid.EventReload:
		// Resync lazily: the grid is still write-locked here.
		s.boxes = nil
	}
}

func (s *Scene) rebuildFrom(pixels []pixel.Pixel) {
	s.boxes = make(map[pixel.Coord]box)
	for i := range pixels {
		p := &pixels[i]
		s.boxes[pixel.Coord{X: p.X, Y: p.Y}] = s.boxFor(p)
	}
}

// sync rebuilds the box index after a reload. The grid snapshot is
// taken outside the scene lock; taking it inside would invert the
// lock order against onGridEvent.
func (s *Scene) sync() {
	s.mu.Lock()
	stale := s.boxes == nil
	s.mu.Unlock()
	if !stale {
		return
	}
	snap := s.grid.Snapshot()
	s.mu.Lock()
	if s.boxes == nil {
		s.rebuildFrom(snap)
	}
	s.mu.Unlock()
}

// boxFor centers cell (x,y) on the ground plane with the grid's middle
// at the origin, extruded by height level.
func (s *Scene) boxFor(p *pixel.Pixel) box {
	cell := s.cfg.CellSize
	cx := (float64(p.X)-float64(s.grid.Width())/2)*cell + cell/2
	cz := (float64(p.Y)-float64(s.grid.Height())/2)*cell + cell/2
	half := (cell - s.cfg.BoxInset) / 2
	h := float64(p.Height) * s.cfg.HeightUnit
	return box{
		min:   Vec3{X: cx - half, Y: 0, Z: cz - half},
		max:   Vec3{X: cx + half, Y: h, Z: cz + half},
		coord: pixel.Coord{X: p.X, Y: p.Y},
	}
}

// Camera returns a copy of the current camera.
func (s *Scene) Camera() Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

// Orbit rotates the view.
func (s *Scene) Orbit(dyaw, dpitch float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.Orbit(dyaw, dpitch)
}

// Pan slides the view target.
func (s *Scene) Pan(dx, dz float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.Pan(dx, dz)
}

// SetZoom moves the camera along its view axis. Zoom 1 is the
// configured distance; larger zoom moves closer.
func (s *Scene) SetZoom(zoom float64) {
	if zoom <= 0 {
		zoom = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.Distance = s.cfg.CameraDistance / zoom
}

// Lighting returns the scene's light parameters.
func (s *Scene) Lighting() Lighting {
	return s.cfg.Lighting
}

// Pick casts a ray through normalized device coordinates and returns
// the grid cell of the nearest box it hits.
func (s *Scene) Pick(nx, ny, aspect float64) (pixel.Coord, bool) {
	s.sync()

	s.mu.Lock()
	origin, dir := s.camera.ray(nx, ny, aspect)
	best := math.Inf(1)
	var hit pixel.Coord
	found := false
	for _, b := range s.boxes {
		if t, ok := intersect(origin, dir, b); ok && t < best {
			best, hit, found = t, b.coord, true
		}
	}
	s.mu.Unlock()

	if found {
		return hit, true
	}
	// Miss every box; fall through to the ground plane so empty cells
	// stay clickable in 3D.
	return s.pickGround(origin, dir)
}

// pickGround intersects the ray with the y=0 plane and maps the point
// back to grid coordinates.
func (s *Scene) pickGround(origin, dir Vec3) (pixel.Coord, bool) {
	if dir.Y >= -1e-9 {
		return pixel.Coord{}, false
	}
	t := -origin.Y / dir.Y
	p := origin.Add(dir.Scale(t))

	cell := s.cfg.CellSize
	x := int(math.Floor(p.X/cell + float64(s.grid.Width())/2))
	y := int(math.Floor(p.Z/cell + float64(s.grid.Height())/2))
	if x < 0 || x >= s.grid.Width() || y < 0 || y >= s.grid.Height() {
		return pixel.Coord{}, false
	}
	return pixel.Coord{X: x, Y: y}, true
}

// intersect is the slab test of ray vs axis-aligned box. Returns the
// entry distance when the ray hits in front of the origin.
func intersect(origin, dir Vec3, b box) (float64, bool) {
	tmin, tmax := math.Inf(-1), math.Inf(1)
	if !slab(origin.X, dir.X, b.min.X, b.max.X, &tmin, &tmax) ||
		!slab(origin.Y, dir.Y, b.min.Y, b.max.Y, &tmin, &tmax) ||
		!slab(origin.Z, dir.Z, b.min.Z, b.max.Z, &tmin, &tmax) {
		return 0, false
	}
	if tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		tmin = 0
	}
	return tmin, true
}

// slab narrows [tmin,tmax] to one axis' interval. A zero direction
// component hits only if the origin already lies inside the slab.
func slab(o, d, lo, hi float64, tmin, tmax *float64) bool {
	if d == 0 {
		return o >= lo && o <= hi
	}
	t1, t2 := (lo-o)/d, (hi-o)/d
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	*tmin = math.Max(*tmin, t1)
	*tmax = math.Min(*tmax, t2)
	return *tmin <= *tmax
}
