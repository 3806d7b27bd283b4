package grid

import (
	"sync"

	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

// Totals is a point-in-time stats snapshot.
type Totals struct {
	TotalPixels int
	PixelsSold  int
	FundsRaised int64
}

// Aggregator maintains sold-count and funds-raised incrementally from
// grid events. Funds are valued with the same price formula the editor
// uses, evaluated at each cell's height level, so the incremental
// counters always match a full recomputation over the grid.
type Aggregator struct {
	mu      sync.Mutex
	grid    *Grid
	pricing pixel.Pricing
	sold    int
	funds   int64
	dirty   bool
	// gen counts grid events. A rebuild tallied from a snapshot is
	// only installed if gen has not moved since the snapshot was
	// taken; otherwise the snapshot misses a concurrent commit and
	// the rebuild is retried.
	gen uint64
}

// NewAggregator creates an aggregator bound to g and subscribes it to
// grid changes. The counters are built on first read.
func NewAggregator(g *Grid, pricing pixel.Pricing) *Aggregator {
	a := &Aggregator{grid: g, pricing: pricing, dirty: true}
	g.Observe(a.apply)
	return a
}

// apply runs under the grid's write lock. A reload cannot snapshot the
// grid here without deadlocking, so it only marks the counters stale;
// they are rebuilt on the next read.
func (a *Aggregator) apply(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	switch ev.Kind {
	case EventSet:
		if ev.Old != nil {
			a.sold--
			a.funds -= a.pricing.For(ev.Old.Height)
		}
		a.sold++
		a.funds += a.pricing.For(ev.New.Height)
	case EventReload:
		a.dirty = true
	}
}

// Totals returns the current stats, rebuilding the counters from a grid
// snapshot if a full reload has happened since the last read.
func (a *Aggregator) Totals() Totals {
	for {
		a.mu.Lock()
		if !a.dirty {
			t := Totals{
				TotalPixels: a.grid.Width() * a.grid.Height(),
				PixelsSold:  a.sold,
				FundsRaised: a.funds,
			}
			a.mu.Unlock()
			return t
		}
		gen := a.gen
		a.mu.Unlock()

		// The snapshot is taken without a.mu held; taking it under
		// a.mu would deadlock against apply, which runs under the
		// grid's write lock.
		snap := a.grid.Snapshot()
		sold, funds := a.tally(snap)
		a.install(gen, sold, funds)
	}
}

// Recompute forces a full pass over the grid before reading. Exists so
// callers (and tests) can cross-check the incremental path.
func (a *Aggregator) Recompute() Totals {
	a.mu.Lock()
	a.dirty = true
	a.mu.Unlock()
	return a.Totals()
}

// install publishes a rebuild tallied at generation gen. It reports
// false, leaving the counters dirty, when the grid has moved past the
// snapshot the tally was taken from.
func (a *Aggregator) install(gen uint64, sold int, funds int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		return false
	}
	a.sold = sold
	a.funds = funds
	a.dirty = false
	return true
}

func (a *Aggregator) tally(snap []pixel.Pixel) (int, int64) {
	var funds int64
	for i := range snap {
		funds += a.pricing.For(snap[i].Height)
	}
	return len(snap), funds
}
