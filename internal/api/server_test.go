package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/uhuru-arts/pixelgarden/internal/editor"
	"github.com/uhuru-arts/pixelgarden/internal/grid"
	"github.com/uhuru-arts/pixelgarden/internal/ledger"
	"github.com/uhuru-arts/pixelgarden/internal/notify"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
	"github.com/uhuru-arts/pixelgarden/internal/render"
	"github.com/uhuru-arts/pixelgarden/internal/session"
	"github.com/uhuru-arts/pixelgarden/internal/storage"
	"github.com/uhuru-arts/pixelgarden/internal/verify"
)

const (
	testBurnAddress = "1111111111111111111111111111111111111111111"
	testToken       = "POT"
)

var testPricing = pixel.Pricing{Base: 10000, PerLevel: 10000}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mock store ---

type memStore struct {
	mu     sync.Mutex
	nextID int64
	byPos  map[pixel.Coord]pixel.Pixel
	byTx   map[string]pixel.Coord
}

func newMemStore() *memStore {
	return &memStore{
		byPos: make(map[pixel.Coord]pixel.Pixel),
		byTx:  make(map[string]pixel.Coord),
	}
}

func (s *memStore) InsertPixel(_ context.Context, p pixel.Pixel) (*pixel.Pixel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := pixel.Coord{X: p.X, Y: p.Y}
	if _, ok := s.byTx[p.TransactionID]; ok {
		return nil, storage.ErrDuplicateTransaction
	}
	if _, ok := s.byPos[c]; ok {
		return nil, storage.ErrCellOccupied
	}
	s.nextID++
	p.AddedID = s.nextID
	s.byPos[c] = p
	s.byTx[p.TransactionID] = c
	return &p, nil
}

func (s *memStore) GetPixel(_ context.Context, x, y int) (*pixel.Pixel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byPos[pixel.Coord{X: x, Y: y}]
	if !ok {
		return nil, storage.ErrPixelNotFound
	}
	return &p, nil
}

func (s *memStore) GetByTransaction(_ context.Context, txID string) (*pixel.Pixel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byTx[txID]
	if !ok {
		return nil, storage.ErrPixelNotFound
	}
	p := s.byPos[c]
	return &p, nil
}

func (s *memStore) ListPixels(_ context.Context, cursor string, limit int) (*storage.Page, error) {
	all, err := s.ListAllPixels(context.Background())
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1000
	}
	start := int64(0)
	if cursor != "" {
		c, err := storage.DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		start = c.AddedID
	}
	page := &storage.Page{}
	for _, p := range all {
		if p.AddedID <= start {
			continue
		}
		if len(page.Pixels) == limit {
			page.HasMore = true
			break
		}
		page.Pixels = append(page.Pixels, p)
	}
	if n := len(page.Pixels); n > 0 {
		c := storage.Cursor{AddedID: page.Pixels[n-1].AddedID}
		next, err := c.Encode()
		if err != nil {
			return nil, err
		}
		page.NextCursor = next
	}
	return page, nil
}

func (s *memStore) ListAllPixels(_ context.Context) ([]pixel.Pixel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]pixel.Pixel, 0, len(s.byPos))
	for id := int64(1); id <= s.nextID; id++ {
		for _, p := range s.byPos {
			if p.AddedID == id {
				all = append(all, p)
			}
		}
	}
	return all, nil
}

// --- Mock ledger ---

type memLedger struct {
	mu  sync.Mutex
	txs map[string]*ledger.Transaction
	err error
}

func newMemLedger() *memLedger {
	return &memLedger{txs: make(map[string]*ledger.Transaction)}
}

func (l *memLedger) GetTransaction(_ context.Context, signature string) (*ledger.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	tx, ok := l.txs[signature]
	if !ok {
		return nil, ledger.ErrTxNotFound
	}
	return tx, nil
}

// addPayment registers a confirmed burn payment under the signature.
func (l *memLedger) addPayment(signature string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs[signature] = &ledger.Transaction{
		Signature: signature,
		Slot:      100,
		BlockTime: time.Now().Unix(),
		Transfers: []ledger.Transfer{{
			Source:      "buyer",
			Destination: testBurnAddress,
			Token:       testToken,
			Amount:      amount,
		}},
	}
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Fixture ---

func newFixture(t *testing.T) (http.Handler, *memStore, *memLedger, *grid.Grid) {
	t.Helper()

	store := newMemStore()
	led := newMemLedger()

	g, err := grid.New(100, 100)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	stats := grid.NewAggregator(g, testPricing)

	svc := verify.NewService(store, led, g, verify.Config{
		BurnAddress: testBurnAddress,
		Token:       testToken,
		Pricing:     testPricing,
		GridWidth:   100,
		GridHeight:  100,
		MaxHeight:   10,
	}, testLogger(), nil)

	manager := session.NewManager(g, svc, session.ManagerConfig{
		Editor: editor.Config{
			Pricing:       testPricing,
			MaxHeight:     10,
			MaxImageBytes: 5 << 20,
			CanvasSize:    64,
		},
		Pricing:     testPricing,
		BurnAddress: testBurnAddress,
	})

	renderer := render.New(g, render.Config{
		CellSize:       10,
		CameraDistance: 400,
		HeightUnit:     10,
		BoxInset:       1,
		FOV:            0.9,
		Lighting: render.Lighting{
			AmbientIntensity:     0.5,
			DirectionalIntensity: 0.8,
		},
		Enable3D: true,
	})

	server := NewServer(testLogger(), Deps{
		Store:       store,
		Grid:        g,
		Stats:       stats,
		Verifier:    svc,
		Sessions:    manager,
		Renderer:    renderer,
		Subscribers: notify.NewRegistry(),
		DB:          &mockPinger{},
	}, ServerConfig{
		Pricing:       testPricing,
		USDPerToken:   0.01,
		TokenSymbol:   testToken,
		VerifyTimeout: 5 * time.Second,
		Client: ClientConfig{
			GridWidth:        100,
			GridHeight:       100,
			PixelSize:        10,
			BasePrice:        testPricing.Base,
			MaxHeight:        10,
			TokenSymbol:      testToken,
			BurnAddress:      testBurnAddress,
			AmbientLight:     0.5,
			DirectionalLight: 0.8,
		},
	})

	return server, store, led, g
}

// seedPixel commits a pixel directly through the store and grid, as if
// a past purchase had completed.
func seedPixel(t *testing.T, store *memStore, g *grid.Grid, x, y int, color string, height int) pixel.Pixel {
	t.Helper()
	p := pixel.Pixel{
		X:                x,
		Y:                y,
		Color:            color,
		Height:           height,
		Owner:            "seed",
		PurchasedAt:      time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC),
		TransactionID:    fmt.Sprintf("seedtx-%d-%d", x, y),
		PaymentReference: fmt.Sprintf("PIXEL-SEED-%d%d", x, y),
	}
	stored, err := store.InsertPixel(context.Background(), p)
	if err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	if err := g.Set(x, y, *stored); err != nil {
		t.Fatalf("seed grid: %v", err)
	}
	return *stored
}
