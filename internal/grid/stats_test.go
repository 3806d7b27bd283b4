package grid

import (
	"testing"

	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

var testPricing = pixel.Pricing{Base: 10000, PerLevel: 10000}

func TestAggregator_EmptyGrid(t *testing.T) {
	g, _ := New(100, 100)
	a := NewAggregator(g, testPricing)

	got := a.Totals()
	if got.TotalPixels != 10000 {
		t.Errorf("total: got %d, want 10000", got.TotalPixels)
	}
	if got.PixelsSold != 0 || got.FundsRaised != 0 {
		t.Errorf("expected zero sold/funds, got %+v", got)
	}
}

func TestAggregator_IncrementalMatchesFormula(t *testing.T) {
	g, _ := New(100, 100)
	a := NewAggregator(g, testPricing)

	g.Set(1, 1, testPixel(1, 1, 3)) // 10000 + 2*10000 = 30000
	g.Set(2, 2, testPixel(2, 2, 1)) // 10000

	got := a.Totals()
	if got.PixelsSold != 2 {
		t.Errorf("sold: got %d, want 2", got.PixelsSold)
	}
	if got.FundsRaised != 40000 {
		t.Errorf("funds: got %d, want 40000", got.FundsRaised)
	}
}

func TestAggregator_OverwriteDoesNotDoubleCount(t *testing.T) {
	g, _ := New(10, 10)
	a := NewAggregator(g, testPricing)

	g.Set(0, 0, testPixel(0, 0, 1))
	g.Set(0, 0, testPixel(0, 0, 5))

	got := a.Totals()
	if got.PixelsSold != 1 {
		t.Errorf("sold: got %d, want 1", got.PixelsSold)
	}
	if want := testPricing.For(5); got.FundsRaised != want {
		t.Errorf("funds: got %d, want %d", got.FundsRaised, want)
	}
}

func TestAggregator_ReloadResyncs(t *testing.T) {
	g, _ := New(10, 10)
	a := NewAggregator(g, testPricing)

	g.Set(0, 0, testPixel(0, 0, 2))
	if err := g.LoadAll([]pixel.Pixel{
		testPixel(1, 1, 1),
		testPixel(2, 2, 4),
		testPixel(3, 3, 10),
	}); err != nil {
		t.Fatalf("load all: %v", err)
	}

	got := a.Totals()
	if got.PixelsSold != 3 {
		t.Errorf("sold: got %d, want 3", got.PixelsSold)
	}
	want := testPricing.For(1) + testPricing.For(4) + testPricing.For(10)
	if got.FundsRaised != want {
		t.Errorf("funds: got %d, want %d", got.FundsRaised, want)
	}
}

// The central invariant: the incremental counters must always agree
// with a full recomputation over the grid.
func TestAggregator_IncrementalNeverDivergesFromRecompute(t *testing.T) {
	g, _ := New(20, 20)
	a := NewAggregator(g, testPricing)

	heights := []int{1, 3, 5, 10, 2, 7, 1, 1, 9, 4}
	for i, h := range heights {
		g.Set(i, i, testPixel(i, i, h))

		inc := a.Totals()
		full := a.Recompute()
		if inc != full {
			t.Fatalf("step %d: incremental %+v != recompute %+v", i, inc, full)
		}
	}
}

func TestAggregator_StaleRebuildDiscarded(t *testing.T) {
	g, _ := New(10, 10)
	a := NewAggregator(g, testPricing)

	if err := g.LoadAll([]pixel.Pixel{testPixel(1, 1, 2)}); err != nil {
		t.Fatalf("load all: %v", err)
	}

	// Replay the interleaving Totals guards against: a commit lands
	// after the rebuild's snapshot is taken but before its tally is
	// installed.
	a.mu.Lock()
	gen := a.gen
	a.mu.Unlock()
	snap := g.Snapshot()
	g.Set(2, 2, testPixel(2, 2, 3))

	sold, funds := a.tally(snap)
	if a.install(gen, sold, funds) {
		t.Fatal("rebuild from a superseded snapshot must not be installed")
	}

	got := a.Totals()
	if got.PixelsSold != 2 {
		t.Errorf("sold: got %d, want 2", got.PixelsSold)
	}
	want := testPricing.For(2) + testPricing.For(3)
	if got.FundsRaised != want {
		t.Errorf("funds: got %d, want %d", got.FundsRaised, want)
	}
	if full := a.Recompute(); got != full {
		t.Errorf("incremental %+v != recompute %+v", got, full)
	}
}

func TestPricing_MonotonicInHeight(t *testing.T) {
	for h := 1; h < 10; h++ {
		if testPricing.For(h+1) < testPricing.For(h) {
			t.Errorf("price(%d)=%d < price(%d)=%d", h+1, testPricing.For(h+1), h, testPricing.For(h))
		}
	}
	if got := testPricing.For(3); got != 30000 {
		t.Errorf("price(3): got %d, want 30000", got)
	}
}
