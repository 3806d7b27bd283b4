package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

const uniqueViolation = "23505"

// PostgresStore implements PixelStore on PostgreSQL.
type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresStore creates a PixelStore backed by the pixels table.
// queryTimeout sets the per-query context deadline; zero means no timeout.
func NewPostgresStore(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, queryTimeout: queryTimeout}
}

// withTimeout derives a child context with the configured query timeout.
// If queryTimeout is zero, the parent context is returned unchanged.
func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return ctx, func() {}
}

const pixelColumns = `added_id, x, y, color, image, height, message, owner_name, email, purchased_at, transaction_id, payment_reference`

func scanPixel(row pgx.Row) (*pixel.Pixel, error) {
	var p pixel.Pixel
	err := row.Scan(&p.AddedID, &p.X, &p.Y, &p.Color, &p.Image, &p.Height,
		&p.Message, &p.Owner, &p.Email, &p.PurchasedAt, &p.TransactionID, &p.PaymentReference)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) InsertPixel(ctx context.Context, p pixel.Pixel) (*pixel.Pixel, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO pixels (x, y, color, image, height, message, owner_name, email, purchased_at, transaction_id, payment_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + pixelColumns

	stored, err := scanPixel(s.pool.QueryRow(ctx, query,
		p.X, p.Y, p.Color, p.Image, p.Height, p.Message, p.Owner, p.Email,
		p.PurchasedAt, p.TransactionID, p.PaymentReference,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case "uq_pixels_coord":
				return nil, ErrCellOccupied
			case "uq_pixels_tx":
				return nil, ErrDuplicateTransaction
			}
		}
		return nil, fmt.Errorf("insert pixel: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) GetPixel(ctx context.Context, x, y int) (*pixel.Pixel, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + pixelColumns + ` FROM pixels WHERE x = $1 AND y = $2`
	p, err := scanPixel(s.pool.QueryRow(ctx, query, x, y))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPixelNotFound
		}
		return nil, fmt.Errorf("get pixel: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetByTransaction(ctx context.Context, txID string) (*pixel.Pixel, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + pixelColumns + ` FROM pixels WHERE transaction_id = $1`
	p, err := scanPixel(s.pool.QueryRow(ctx, query, txID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPixelNotFound
		}
		return nil, fmt.Errorf("get pixel by transaction: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPixels(ctx context.Context, cursor string, limit int) (*Page, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 1000
	}

	var afterAddedID int64
	if cursor != "" {
		c, err := DecodeCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		afterAddedID = c.AddedID
	}

	query := `
		SELECT ` + pixelColumns + `
		FROM pixels
		WHERE added_id > $1
		ORDER BY added_id ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, afterAddedID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pixels: %w", err)
	}
	defer rows.Close()

	var pixels []pixel.Pixel
	for rows.Next() {
		p, err := scanPixel(rows)
		if err != nil {
			return nil, fmt.Errorf("list pixels scan: %w", err)
		}
		pixels = append(pixels, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pixels rows: %w", err)
	}

	page := &Page{Pixels: pixels}
	if len(pixels) == limit {
		next := Cursor{AddedID: pixels[len(pixels)-1].AddedID}
		encoded, err := next.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode next cursor: %w", err)
		}
		page.NextCursor = encoded
		page.HasMore = true
	}
	return page, nil
}

func (s *PostgresStore) ListAllPixels(ctx context.Context) ([]pixel.Pixel, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + pixelColumns + ` FROM pixels ORDER BY added_id ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all pixels: %w", err)
	}
	defer rows.Close()

	var pixels []pixel.Pixel
	for rows.Next() {
		p, err := scanPixel(rows)
		if err != nil {
			return nil, fmt.Errorf("list all pixels scan: %w", err)
		}
		pixels = append(pixels, *p)
	}
	return pixels, rows.Err()
}
