package editor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/uhuru-arts/pixelgarden/internal/grid"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

func testConfig() Config {
	return Config{
		Pricing:       pixel.Pricing{Base: 10000, PerLevel: 10000},
		MaxHeight:     10,
		MaxImageBytes: 5 * 1024 * 1024,
		CanvasSize:    512,
	}
}

func testEditor(t *testing.T) (*Editor, *grid.Grid) {
	t.Helper()
	g, err := grid.New(100, 100)
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}
	return New(g, testConfig()), g
}

func soldPixel(x, y int) pixel.Pixel {
	return pixel.Pixel{
		X: x, Y: y,
		Color:            "#123456",
		Height:           1,
		Owner:            "taken",
		PurchasedAt:      time.Now(),
		TransactionID:    "tx-sold",
		PaymentReference: "PIXEL-SOLD",
	}
}

func TestOpen_Defaults(t *testing.T) {
	e, _ := testEditor(t)

	d, err := e.Open(5, 9)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if d.X != 5 || d.Y != 9 {
		t.Errorf("coords: got (%d,%d)", d.X, d.Y)
	}
	if d.Color != pixel.DefaultColor || d.Height != 1 {
		t.Errorf("defaults: got color %q height %d", d.Color, d.Height)
	}
	if d.Message != "" || d.Owner != "" || d.Email != "" || d.Image != nil {
		t.Errorf("defaults not blank: %+v", d)
	}

	price, err := e.Price()
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price != 10000 {
		t.Errorf("price: got %d, want 10000", price)
	}
}

func TestOpen_OccupiedCell(t *testing.T) {
	e, g := testEditor(t)
	g.Set(2, 2, soldPixel(2, 2))

	if _, err := e.Open(2, 2); !errors.Is(err, ErrCellOccupied) {
		t.Errorf("got %v, want ErrCellOccupied", err)
	}
	if _, err := e.Draft(); !errors.Is(err, ErrNoActiveDraft) {
		t.Error("failed open left a draft behind")
	}
}

func TestOpen_OutOfBounds(t *testing.T) {
	e, _ := testEditor(t)
	if _, err := e.Open(100, 0); !errors.Is(err, grid.ErrOutOfBounds) {
		t.Errorf("got %v, want ErrOutOfBounds", err)
	}
}

func TestOpen_DiscardsPreviousDraft(t *testing.T) {
	e, _ := testEditor(t)

	e.Open(1, 1)
	e.SetMessage("first draft")
	e.Open(2, 2)

	d, err := e.Draft()
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if d.X != 2 || d.Message != "" {
		t.Errorf("previous draft leaked into new one: %+v", d)
	}
}

func TestUpdateHeight_RecomputesPrice(t *testing.T) {
	e, _ := testEditor(t)
	e.Open(0, 0)

	price, err := e.UpdateHeight(3)
	if err != nil {
		t.Fatalf("update height: %v", err)
	}
	if price != 30000 {
		t.Errorf("price: got %d, want 30000", price)
	}
}

func TestUpdateHeight_OutOfRange(t *testing.T) {
	e, _ := testEditor(t)
	e.Open(0, 0)

	for _, level := range []int{0, -1, 11, 100} {
		if _, err := e.UpdateHeight(level); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("UpdateHeight(%d): got %v, want ErrOutOfRange", level, err)
		}
	}

	// Failed update leaves the draft unchanged.
	d, _ := e.Draft()
	if d.Height != 1 {
		t.Errorf("height mutated by rejected update: %d", d.Height)
	}
}

func TestSetColor(t *testing.T) {
	e, _ := testEditor(t)
	e.Open(0, 0)

	if err := e.SetColor("#FF8800"); err != nil {
		t.Fatalf("set color: %v", err)
	}
	d, _ := e.Draft()
	if d.Color != "#FF8800" {
		t.Errorf("color: got %q", d.Color)
	}

	for _, bad := range []string{"", "red", "#FFF", "#GGGGGG", "FF8800"} {
		if err := e.SetColor(bad); !errors.Is(err, ErrInvalidColor) {
			t.Errorf("SetColor(%q): got %v, want ErrInvalidColor", bad, err)
		}
	}
}

func TestSetMessage_TrimAndCap(t *testing.T) {
	e, _ := testEditor(t)
	e.Open(0, 0)

	if err := e.SetMessage("  hello garden  "); err != nil {
		t.Fatalf("set message: %v", err)
	}
	d, _ := e.Draft()
	if d.Message != "hello garden" {
		t.Errorf("message: got %q", d.Message)
	}

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	if err := e.SetMessage(string(long)); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("got %v, want ErrMessageTooLong", err)
	}

	// The cap is 100 characters, not bytes: 100 three-byte runes fit.
	wide := strings.Repeat("界", 100)
	if err := e.SetMessage(wide); err != nil {
		t.Errorf("100-rune message rejected: %v", err)
	}
	if err := e.SetMessage(wide + "界"); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("101 runes: got %v, want ErrMessageTooLong", err)
	}
}

func TestSubmit_ClosesDraftAndDefaultsOwner(t *testing.T) {
	e, _ := testEditor(t)
	e.Open(7, 7)
	e.UpdateHeight(2)

	d, err := e.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if d.Owner != pixel.DefaultOwner {
		t.Errorf("owner: got %q, want %q", d.Owner, pixel.DefaultOwner)
	}
	if d.Height != 2 {
		t.Errorf("height: got %d", d.Height)
	}

	if _, err := e.Submit(); !errors.Is(err, ErrNoActiveDraft) {
		t.Errorf("second submit: got %v, want ErrNoActiveDraft", err)
	}
}

func TestCancel(t *testing.T) {
	e, _ := testEditor(t)
	e.Open(1, 1)
	e.Cancel()

	if _, err := e.Draft(); !errors.Is(err, ErrNoActiveDraft) {
		t.Errorf("got %v, want ErrNoActiveDraft", err)
	}

	// Cancel with no draft is a no-op.
	e.Cancel()
}

func TestOperationsWithoutDraft(t *testing.T) {
	e, _ := testEditor(t)

	if _, err := e.UpdateHeight(2); !errors.Is(err, ErrNoActiveDraft) {
		t.Errorf("UpdateHeight: got %v", err)
	}
	if err := e.SetColor("#112233"); !errors.Is(err, ErrNoActiveDraft) {
		t.Errorf("SetColor: got %v", err)
	}
	if err := e.AttachImage([]byte{1}); !errors.Is(err, ErrNoActiveDraft) {
		t.Errorf("AttachImage: got %v", err)
	}
}
