// Package verify implements the trust boundary of the pixel garden:
// everything the client claims about a purchase is re-derived or
// re-checked here before a pixel is committed.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uhuru-arts/pixelgarden/internal/grid"
	"github.com/uhuru-arts/pixelgarden/internal/ledger"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
	"github.com/uhuru-arts/pixelgarden/internal/storage"
)

// Reason classifies why a verification was rejected.
type Reason string

const (
	ReasonDuplicate      Reason = "duplicate"
	ReasonNotFound       Reason = "not_found"
	ReasonAmountMismatch Reason = "amount_mismatch"
	ReasonCellOccupied   Reason = "cell_occupied"
	ReasonInvalidPixel   Reason = "invalid_pixel"
	ReasonServerError    Reason = "server_error"
)

// Error is a verification rejection. The session returns to awaiting a
// transaction id; the draft is preserved so the buyer can retry.
type Error struct {
	Reason Reason
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("verification failed (%s): %s", e.Reason, e.Msg)
}

func rejected(reason Reason, format string, args ...any) *Error {
	return &Error{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// ErrUnavailable is returned when the ledger or the database cannot be
// reached. No partial commit occurs; the same transaction id may be
// resubmitted.
var ErrUnavailable = errors.New("verification service unavailable")

// LedgerReader is the subset of the ledger client verification needs.
type LedgerReader interface {
	GetTransaction(ctx context.Context, signature string) (*ledger.Transaction, error)
}

// Request is a purchase submitted for verification. All fields are
// client-supplied and therefore advisory.
type Request struct {
	TransactionID    string
	PaymentReference string
	Pixel            pixel.Pixel
}

// Config holds the server-side truths purchases are checked against.
type Config struct {
	BurnAddress string
	Token       string
	Pricing     pixel.Pricing
	GridWidth   int
	GridHeight  int
	MaxHeight   int
}

// Outcome is reported after every verification attempt.
type Outcome string

const (
	OutcomeCommitted   Outcome = "committed"
	OutcomeRejected    Outcome = "rejected"
	OutcomeUnavailable Outcome = "unavailable"
)

// Service validates purchases against the ledger and persists them.
// The database's unique constraints arbitrate races: of two concurrent
// purchases of the same cell, only the first insert wins.
type Service struct {
	store    storage.PixelStore
	ledger   LedgerReader
	grid     *grid.Grid
	cfg      Config
	logger   *slog.Logger
	onResult func(Outcome, Reason)
	onCommit func(p *pixel.Pixel, price int64)
}

// NewService creates a verification service. onResult, if non-nil, is
// called after every attempt (used for metrics).
func NewService(store storage.PixelStore, lr LedgerReader, g *grid.Grid, cfg Config, logger *slog.Logger, onResult func(Outcome, Reason)) *Service {
	return &Service{store: store, ledger: lr, grid: g, cfg: cfg, logger: logger, onResult: onResult}
}

// OnCommit registers a hook called with every committed pixel and its
// price. Set before serving; not safe to change concurrently.
func (s *Service) OnCommit(fn func(p *pixel.Pixel, price int64)) {
	s.onCommit = fn
}

// VerifyAndCommit checks a purchase end to end and, on success, persists
// it and updates the in-memory grid. Returns the committed record.
//
// Rejections come back as *Error with a reason code; infrastructure
// failures as ErrUnavailable, after which a retry is safe because the
// insert either happened or it did not; there is no partial state.
func (s *Service) VerifyAndCommit(ctx context.Context, req Request) (*pixel.Pixel, error) {
	p, err := s.verify(ctx, req)
	s.report(err)
	return p, err
}

func (s *Service) verify(ctx context.Context, req Request) (*pixel.Pixel, error) {
	if req.TransactionID == "" || req.PaymentReference == "" {
		return nil, rejected(ReasonInvalidPixel, "missing transaction id or payment reference")
	}

	p := req.Pixel
	if p.Owner == "" {
		p.Owner = pixel.DefaultOwner
	}
	if err := p.Validate(s.cfg.GridWidth, s.cfg.GridHeight, s.cfg.MaxHeight); err != nil {
		return nil, rejected(ReasonInvalidPixel, "%v", err)
	}

	// Fast duplicate check. The unique constraint catches races this
	// read misses.
	switch _, err := s.store.GetByTransaction(ctx, req.TransactionID); {
	case err == nil:
		return nil, rejected(ReasonDuplicate, "transaction %s already purchased a pixel", req.TransactionID)
	case !errors.Is(err, storage.ErrPixelNotFound):
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	tx, err := s.ledger.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		if errors.Is(err, ledger.ErrTxNotFound) {
			return nil, rejected(ReasonNotFound, "transaction %s not found on the ledger", req.TransactionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// The price is re-derived from the submitted height; whatever the
	// client displayed is ignored.
	price := s.cfg.Pricing.For(p.Height)
	transfer := tx.TransferTo(s.cfg.BurnAddress, s.cfg.Token)
	if transfer == nil {
		return nil, rejected(ReasonAmountMismatch, "no %s transfer to %s in transaction", s.cfg.Token, s.cfg.BurnAddress)
	}
	if transfer.Amount < price {
		return nil, rejected(ReasonAmountMismatch, "paid %d, pixel at height %d costs %d", transfer.Amount, p.Height, price)
	}

	p.PurchasedAt = time.Now().UTC()
	p.TransactionID = req.TransactionID
	p.PaymentReference = req.PaymentReference

	stored, err := s.store.InsertPixel(ctx, p)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrCellOccupied):
			return nil, rejected(ReasonCellOccupied, "cell (%d,%d) was purchased first by someone else", p.X, p.Y)
		case errors.Is(err, storage.ErrDuplicateTransaction):
			return nil, rejected(ReasonDuplicate, "transaction %s already purchased a pixel", req.TransactionID)
		default:
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if err := s.grid.Set(stored.X, stored.Y, *stored); err != nil {
		// The record is durable; only the warm cache missed it. A
		// restart or reload heals this.
		s.logger.Error("grid update after commit failed", "x", stored.X, "y", stored.Y, "error", err)
	}

	s.logger.Info("pixel committed",
		"x", stored.X, "y", stored.Y,
		"height", stored.Height,
		"price", price,
		"transaction_id", stored.TransactionID,
		"payment_reference", stored.PaymentReference,
	)
	if s.onCommit != nil {
		s.onCommit(stored, price)
	}
	return stored, nil
}

func (s *Service) report(err error) {
	if s.onResult == nil {
		return
	}
	switch {
	case err == nil:
		s.onResult(OutcomeCommitted, "")
	case errors.Is(err, ErrUnavailable):
		s.onResult(OutcomeUnavailable, ReasonServerError)
	default:
		var vErr *Error
		if errors.As(err, &vErr) {
			s.onResult(OutcomeRejected, vErr.Reason)
		} else {
			s.onResult(OutcomeRejected, ReasonServerError)
		}
	}
}
