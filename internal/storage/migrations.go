package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations creates the pixels table. The two unique constraints
// are load-bearing: uq_pixels_coord makes the first verified purchase
// of a cell win, uq_pixels_tx makes a ledger transaction spendable on
// at most one pixel.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS pixels (
			added_id          BIGSERIAL PRIMARY KEY,
			x                 INT NOT NULL,
			y                 INT NOT NULL,
			color             TEXT NOT NULL DEFAULT '',
			image             BYTEA,
			height            INT NOT NULL DEFAULT 1,
			message           TEXT NOT NULL DEFAULT '',
			owner_name        TEXT NOT NULL DEFAULT 'Anonymous',
			email             TEXT NOT NULL DEFAULT '',
			purchased_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			transaction_id    TEXT NOT NULL,
			payment_reference TEXT NOT NULL,

			CONSTRAINT uq_pixels_coord UNIQUE (x, y),
			CONSTRAINT uq_pixels_tx UNIQUE (transaction_id)
		);

		CREATE INDEX IF NOT EXISTS idx_pixels_added ON pixels (added_id);
	`

	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate pixels: %w", err)
	}
	return nil
}
