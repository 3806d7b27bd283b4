package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16",
		postgres.WithDatabase("pixelgarden"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic(fmt.Sprintf("start postgres container: %v", err))
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(fmt.Sprintf("get connection string: %v", err))
	}

	testPool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		panic(fmt.Sprintf("create pool: %v", err))
	}

	if err := RunMigrations(ctx, testPool); err != nil {
		panic(fmt.Sprintf("run migrations: %v", err))
	}

	code := m.Run()

	testPool.Close()
	_ = testcontainers.TerminateContainer(ctr)

	os.Exit(code)
}

// freshStore truncates the pixels table and returns a store over it.
func freshStore(t *testing.T) *PostgresStore {
	t.Helper()
	if _, err := testPool.Exec(context.Background(), "TRUNCATE pixels RESTART IDENTITY"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewPostgresStore(testPool, 5*time.Second)
}

func storedPixel(x, y, height int, txID string) pixel.Pixel {
	return pixel.Pixel{
		X:                x,
		Y:                y,
		Color:            "#4CAF50",
		Height:           height,
		Message:          "hello",
		Owner:            "Anonymous",
		Email:            "buyer@example.com",
		PurchasedAt:      time.Now().UTC(),
		TransactionID:    txID,
		PaymentReference: "PIXEL-TEST-" + txID,
	}
}

func TestInsertPixel_RoundTrip(t *testing.T) {
	store := freshStore(t)
	ctx := context.Background()

	stored, err := store.InsertPixel(ctx, storedPixel(3, 7, 4, "tx-roundtrip"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if stored.AddedID == 0 {
		t.Error("added_id not assigned")
	}

	got, err := store.GetPixel(ctx, 3, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Height != 4 || got.TransactionID != "tx-roundtrip" || got.Owner != "Anonymous" {
		t.Errorf("got %+v", got)
	}
}

func TestInsertPixel_CoordConflict(t *testing.T) {
	store := freshStore(t)
	ctx := context.Background()

	if _, err := store.InsertPixel(ctx, storedPixel(1, 1, 1, "tx-first")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := store.InsertPixel(ctx, storedPixel(1, 1, 2, "tx-second"))
	if !errors.Is(err, ErrCellOccupied) {
		t.Errorf("got %v, want ErrCellOccupied", err)
	}
}

func TestInsertPixel_TransactionConflict(t *testing.T) {
	store := freshStore(t)
	ctx := context.Background()

	if _, err := store.InsertPixel(ctx, storedPixel(2, 2, 1, "tx-reused")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := store.InsertPixel(ctx, storedPixel(3, 3, 1, "tx-reused"))
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Errorf("got %v, want ErrDuplicateTransaction", err)
	}
}

func TestGetPixel_NotFound(t *testing.T) {
	store := freshStore(t)

	_, err := store.GetPixel(context.Background(), 99, 99)
	if !errors.Is(err, ErrPixelNotFound) {
		t.Errorf("got %v, want ErrPixelNotFound", err)
	}
}

func TestGetByTransaction(t *testing.T) {
	store := freshStore(t)
	ctx := context.Background()

	if _, err := store.InsertPixel(ctx, storedPixel(5, 5, 2, "tx-lookup")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.GetByTransaction(ctx, "tx-lookup")
	if err != nil {
		t.Fatalf("get by transaction: %v", err)
	}
	if got.X != 5 || got.Y != 5 {
		t.Errorf("got (%d,%d), want (5,5)", got.X, got.Y)
	}

	if _, err := store.GetByTransaction(ctx, "tx-absent"); !errors.Is(err, ErrPixelNotFound) {
		t.Errorf("got %v, want ErrPixelNotFound", err)
	}
}

func TestInsertPixel_ImageFill(t *testing.T) {
	store := freshStore(t)
	ctx := context.Background()

	p := storedPixel(6, 6, 1, "tx-image")
	p.Color = ""
	p.Image = []byte{0xff, 0xd8, 0xff, 0xe0}

	if _, err := store.InsertPixel(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.GetPixel(ctx, 6, 6)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.HasImage() {
		t.Error("image fill not persisted")
	}
}

func TestListPixels_Pagination(t *testing.T) {
	store := freshStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.InsertPixel(ctx, storedPixel(i, 0, 1, fmt.Sprintf("tx-page-%d", i))); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	page, err := store.ListPixels(ctx, "", 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page.Pixels) != 2 || !page.HasMore {
		t.Fatalf("first page: got %d pixels, hasMore=%v", len(page.Pixels), page.HasMore)
	}

	var all []pixel.Pixel
	all = append(all, page.Pixels...)
	cursor := page.NextCursor
	for cursor != "" {
		page, err = store.ListPixels(ctx, cursor, 2)
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		all = append(all, page.Pixels...)
		cursor = page.NextCursor
	}

	if len(all) != 5 {
		t.Fatalf("total: got %d, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].AddedID <= all[i-1].AddedID {
			t.Errorf("listing not ordered by added_id: %d before %d", all[i-1].AddedID, all[i].AddedID)
		}
	}
}

func TestListAllPixels(t *testing.T) {
	store := freshStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.InsertPixel(ctx, storedPixel(i, 1, i+1, fmt.Sprintf("tx-all-%d", i))); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	all, err := store.ListAllPixels(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d pixels, want 3", len(all))
	}
}
