// Package session tracks a purchase from "awaiting off-band payment"
// to commit or rejection. A user session has at most one live payment
// session; starting a new draft invalidates a pending one.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uhuru-arts/pixelgarden/internal/editor"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
	"github.com/uhuru-arts/pixelgarden/internal/verify"
)

// State of a payment session.
type State int

const (
	Created State = iota
	AwaitingTransactionID
	Verifying
	Committed
	Invalidated
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case AwaitingTransactionID:
		return "awaiting_transaction_id"
	case Verifying:
		return "verifying"
	case Committed:
		return "committed"
	case Invalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptyTransactionID is returned for a blank transaction id.
	ErrEmptyTransactionID = errors.New("transaction id is empty")

	// ErrVerifying is returned when a submission arrives while a
	// verification for this session is already in flight.
	ErrVerifying = errors.New("verification already in progress")

	// ErrAlreadyCommitted is returned after a successful commit.
	ErrAlreadyCommitted = errors.New("session already committed")

	// ErrInvalidated is returned when the session was superseded by a
	// newer draft.
	ErrInvalidated = errors.New("session invalidated")
)

// Instructions tells the buyer how to pay: send amount tokens to the
// destination and keep the reference for correlation.
type Instructions struct {
	Destination string
	Amount      int64
	Reference   string
}

// Session is the payment state machine for one submitted draft.
type Session struct {
	mu         sync.Mutex
	state      State
	draft      editor.Draft
	price      int64
	reference  string
	createdAt  time.Time
	lastReason verify.Reason
}

// New creates a session for a submitted draft. The price is computed
// once here; the reference is generated once and never changes.
func New(draft editor.Draft, pricing pixel.Pricing) *Session {
	s := &Session{
		state:     Created,
		draft:     draft,
		price:     pricing.For(draft.Height),
		reference: NewReference(),
		createdAt: time.Now(),
	}
	// Presenting the instructions is what moves the session to
	// awaiting; there is no user action between the two.
	s.state = AwaitingTransactionID
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reference returns the payment reference code.
func (s *Session) Reference() string {
	return s.reference
}

// Draft returns a copy of the draft the session is paying for.
func (s *Session) Draft() editor.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// LastReason returns the reason of the most recent rejection, if any.
func (s *Session) LastReason() verify.Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReason
}

// Instructions returns the payment instructions for this session.
func (s *Session) Instructions(destination string) Instructions {
	return Instructions{
		Destination: destination,
		Amount:      s.price,
		Reference:   s.reference,
	}
}

// Invalidate retires the session without committing. Pending
// verifications still finish, but their result no longer matters to
// the buyer; a duplicate-spend is impossible either way because the
// store's constraints do not care which session asked.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Committed {
		s.state = Invalidated
	}
}

// SubmitTransaction runs a submitted transaction id through the
// verifier. On success the session is committed and the persisted
// record returned. On a verification rejection the session returns to
// AwaitingTransactionID with the draft intact so the buyer can retry
// with a corrected id.
func (s *Session) SubmitTransaction(ctx context.Context, txID string, svc *verify.Service) (*pixel.Pixel, error) {
	if txID == "" {
		return nil, ErrEmptyTransactionID
	}

	s.mu.Lock()
	switch s.state {
	case Verifying:
		s.mu.Unlock()
		return nil, ErrVerifying
	case Committed:
		s.mu.Unlock()
		return nil, ErrAlreadyCommitted
	case Invalidated:
		s.mu.Unlock()
		return nil, ErrInvalidated
	}
	s.state = Verifying
	draft := s.draft
	ref := s.reference
	s.mu.Unlock()

	req := verify.Request{
		TransactionID:    txID,
		PaymentReference: ref,
		Pixel: pixel.Pixel{
			X:       draft.X,
			Y:       draft.Y,
			Color:   draft.Appearance(),
			Image:   draft.Image,
			Height:  draft.Height,
			Message: draft.Message,
			Owner:   draft.Owner,
			Email:   draft.Email,
		},
	}

	stored, err := svc.VerifyAndCommit(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Invalidated {
		// Superseded while verifying. If the commit landed it is
		// durable regardless; report it.
		if err == nil {
			s.state = Committed
			return stored, nil
		}
		return nil, ErrInvalidated
	}
	if err != nil {
		s.state = AwaitingTransactionID
		var vErr *verify.Error
		if errors.As(err, &vErr) {
			s.lastReason = vErr.Reason
		}
		return nil, fmt.Errorf("verify transaction: %w", err)
	}
	s.state = Committed
	return stored, nil
}
