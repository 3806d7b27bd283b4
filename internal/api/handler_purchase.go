package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/uhuru-arts/pixelgarden/internal/editor"
	"github.com/uhuru-arts/pixelgarden/internal/grid"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
	"github.com/uhuru-arts/pixelgarden/internal/session"
)

// --- Huma Input/Output types ---

type OpenDraftBody struct {
	X int `json:"x" doc:"Column coordinate" minimum:"0"`
	Y int `json:"y" doc:"Row coordinate" minimum:"0"`
}

type OpenDraftInput struct {
	SessionID string `header:"X-Session-ID" doc:"Purchase session id; omit to start a new one" required:"false"`
	Body      OpenDraftBody
}

type DraftResponse struct {
	X             int    `json:"x"`
	Y             int    `json:"y"`
	Color         string `json:"color" doc:"Flat fill color"`
	HasImage      bool   `json:"has_image"`
	DominantColor string `json:"dominant_color,omitempty" doc:"Flat stand-in color derived from the image"`
	Height        int    `json:"height"`
	Message       string `json:"message,omitempty"`
	Owner         string `json:"owner,omitempty"`
	Price         int64  `json:"price" doc:"Current price in tokens"`
}

type OpenDraftOutput struct {
	Body struct {
		SessionID string        `json:"session_id" doc:"Pass back in X-Session-ID"`
		Draft     DraftResponse `json:"draft"`
	}
}

type UpdateDraftBody struct {
	Color   *string `json:"color,omitempty" doc:"Flat fill color (#rrggbb); removes any image"`
	Height  *int    `json:"height,omitempty" doc:"Extrusion level"`
	Message *string `json:"message,omitempty" doc:"Owner's message, 100 chars max"`
	Owner   *string `json:"owner,omitempty" doc:"Display name"`
	Email   *string `json:"email,omitempty" doc:"Notification address"`
}

type UpdateDraftInput struct {
	SessionID string `header:"X-Session-ID" required:"true"`
	Body      UpdateDraftBody
}

type DraftOutput struct {
	Body DraftResponse
}

type AttachImageInput struct {
	SessionID string `header:"X-Session-ID" required:"true"`
	Body      struct {
		Image []byte `json:"image" doc:"Raw upload, base64-encoded, 5 MB max" required:"true"`
	}
}

type CancelDraftInput struct {
	SessionID string `header:"X-Session-ID" required:"true"`
}

type SubmitDraftInput struct {
	SessionID string `header:"X-Session-ID" required:"true"`
}

type InstructionsResponse struct {
	Destination string  `json:"destination" doc:"Burn address to send tokens to"`
	Token       string  `json:"token" doc:"Token symbol"`
	Amount      int64   `json:"amount" doc:"Price in tokens"`
	AmountUSD   float64 `json:"amount_usd" doc:"Price converted to USD"`
	Reference   string  `json:"reference" doc:"Quote this code with your payment"`
}

type SubmitDraftOutput struct {
	Body InstructionsResponse
}

type SessionStateOutput struct {
	Body SessionStateResponse
}

type SessionStateResponse struct {
	State      string `json:"state" doc:"Payment session state"`
	Reference  string `json:"reference"`
	LastReason string `json:"last_reason,omitempty" doc:"Reason of the most recent rejection"`
}

type SubmitTransactionInput struct {
	SessionID string `header:"X-Session-ID" required:"true"`
	Body      struct {
		TransactionID string `json:"transactionId" doc:"Ledger transaction id of your payment" required:"true"`
	}
}

type SubmitTransactionOutput struct {
	Body VerifyResult
}

// --- Handler ---

type PurchaseHandler struct {
	manager     *session.Manager
	pricing     pixel.Pricing
	usdPerToken float64
	token       string
	timeout     time.Duration
	logger      *slog.Logger
}

func NewPurchaseHandler(manager *session.Manager, pricing pixel.Pricing, usdPerToken float64, token string, timeout time.Duration, logger *slog.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		manager:     manager,
		pricing:     pricing,
		usdPerToken: usdPerToken,
		token:       token,
		timeout:     timeout,
		logger:      logger,
	}
}

func registerPurchaseRoutes(api huma.API, h *PurchaseHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "open-draft",
		Method:        http.MethodPost,
		Path:          "/v1/purchases",
		Summary:       "Start editing an empty cell",
		Tags:          []string{"purchases"},
		DefaultStatus: http.StatusCreated,
	}, h.OpenDraft)

	huma.Register(api, huma.Operation{
		OperationID: "get-draft",
		Method:      http.MethodGet,
		Path:        "/v1/purchases/current",
		Summary:     "Get the current draft",
		Tags:        []string{"purchases"},
	}, h.GetDraft)

	huma.Register(api, huma.Operation{
		OperationID: "update-draft",
		Method:      http.MethodPatch,
		Path:        "/v1/purchases/current",
		Summary:     "Update the current draft",
		Tags:        []string{"purchases"},
	}, h.UpdateDraft)

	huma.Register(api, huma.Operation{
		OperationID: "attach-image",
		Method:      http.MethodPut,
		Path:        "/v1/purchases/current/image",
		Summary:     "Attach an image to the current draft",
		Tags:        []string{"purchases"},
	}, h.AttachImage)

	huma.Register(api, huma.Operation{
		OperationID: "remove-image",
		Method:      http.MethodDelete,
		Path:        "/v1/purchases/current/image",
		Summary:     "Remove the draft's image",
		Tags:        []string{"purchases"},
	}, h.RemoveImage)

	huma.Register(api, huma.Operation{
		OperationID:   "cancel-draft",
		Method:        http.MethodDelete,
		Path:          "/v1/purchases/current",
		Summary:       "Discard the current draft",
		Tags:          []string{"purchases"},
		DefaultStatus: http.StatusNoContent,
	}, h.CancelDraft)

	huma.Register(api, huma.Operation{
		OperationID: "submit-draft",
		Method:      http.MethodPost,
		Path:        "/v1/purchases/current/submit",
		Summary:     "Submit the draft and get payment instructions",
		Tags:        []string{"purchases"},
	}, h.SubmitDraft)

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/v1/purchases/current/session",
		Summary:     "Get the payment session state",
		Tags:        []string{"purchases"},
	}, h.GetSession)

	huma.Register(api, huma.Operation{
		OperationID: "submit-transaction",
		Method:      http.MethodPost,
		Path:        "/v1/purchases/current/transaction",
		Summary:     "Submit the payment's transaction id for verification",
		Tags:        []string{"purchases"},
	}, h.SubmitTransaction)
}

func (h *PurchaseHandler) OpenDraft(ctx context.Context, input *OpenDraftInput) (*OpenDraftOutput, error) {
	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	draft, err := h.manager.OpenDraft(sessionID, input.Body.X, input.Body.Y)
	if err != nil {
		switch {
		case errors.Is(err, editor.ErrCellOccupied):
			return nil, huma.Error409Conflict("cell already owned")
		case errors.Is(err, grid.ErrOutOfBounds):
			return nil, huma.Error422UnprocessableEntity("coordinates outside the grid")
		default:
			h.logger.Error("failed to open draft", "x", input.Body.X, "y", input.Body.Y, "error", err)
			return nil, huma.Error500InternalServerError("failed to open draft")
		}
	}

	out := &OpenDraftOutput{}
	out.Body.SessionID = sessionID
	out.Body.Draft = h.toDraftResponse(draft)
	return out, nil
}

func (h *PurchaseHandler) GetDraft(ctx context.Context, input *CancelDraftInput) (*DraftOutput, error) {
	draft, err := h.manager.Draft(input.SessionID)
	if err != nil {
		return nil, huma.Error404NotFound("no active draft")
	}
	return &DraftOutput{Body: h.toDraftResponse(draft)}, nil
}

func (h *PurchaseHandler) UpdateDraft(ctx context.Context, input *UpdateDraftInput) (*DraftOutput, error) {
	err := h.manager.Edit(input.SessionID, func(e *editor.Editor) error {
		if input.Body.Color != nil {
			if err := e.SetColor(*input.Body.Color); err != nil {
				return err
			}
		}
		if input.Body.Height != nil {
			if _, err := e.UpdateHeight(*input.Body.Height); err != nil {
				return err
			}
		}
		if input.Body.Message != nil {
			if err := e.SetMessage(*input.Body.Message); err != nil {
				return err
			}
		}
		if input.Body.Owner != nil {
			if err := e.SetOwner(*input.Body.Owner); err != nil {
				return err
			}
		}
		if input.Body.Email != nil {
			if err := e.SetEmail(*input.Body.Email); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, draftError(err, h.logger)
	}

	draft, err := h.manager.Draft(input.SessionID)
	if err != nil {
		return nil, huma.Error404NotFound("no active draft")
	}
	return &DraftOutput{Body: h.toDraftResponse(draft)}, nil
}

func (h *PurchaseHandler) AttachImage(ctx context.Context, input *AttachImageInput) (*DraftOutput, error) {
	err := h.manager.Edit(input.SessionID, func(e *editor.Editor) error {
		return e.AttachImage(input.Body.Image)
	})
	if err != nil {
		return nil, draftError(err, h.logger)
	}

	draft, err := h.manager.Draft(input.SessionID)
	if err != nil {
		return nil, huma.Error404NotFound("no active draft")
	}
	return &DraftOutput{Body: h.toDraftResponse(draft)}, nil
}

func (h *PurchaseHandler) RemoveImage(ctx context.Context, input *CancelDraftInput) (*DraftOutput, error) {
	err := h.manager.Edit(input.SessionID, func(e *editor.Editor) error {
		return e.RemoveImage()
	})
	if err != nil {
		return nil, draftError(err, h.logger)
	}

	draft, err := h.manager.Draft(input.SessionID)
	if err != nil {
		return nil, huma.Error404NotFound("no active draft")
	}
	return &DraftOutput{Body: h.toDraftResponse(draft)}, nil
}

func (h *PurchaseHandler) CancelDraft(ctx context.Context, input *CancelDraftInput) (*struct{}, error) {
	h.manager.CancelDraft(input.SessionID)
	return &struct{}{}, nil
}

func (h *PurchaseHandler) SubmitDraft(ctx context.Context, input *SubmitDraftInput) (*SubmitDraftOutput, error) {
	ins, err := h.manager.Submit(input.SessionID)
	if err != nil {
		if errors.Is(err, editor.ErrNoActiveDraft) {
			return nil, huma.Error404NotFound("no active draft")
		}
		h.logger.Error("failed to submit draft", "error", err)
		return nil, huma.Error500InternalServerError("failed to submit draft")
	}

	usd := float64(ins.Amount) * h.usdPerToken
	return &SubmitDraftOutput{Body: InstructionsResponse{
		Destination: ins.Destination,
		Token:       h.token,
		Amount:      ins.Amount,
		AmountUSD:   math.Round(usd*100) / 100,
		Reference:   ins.Reference,
	}}, nil
}

func (h *PurchaseHandler) GetSession(ctx context.Context, input *CancelDraftInput) (*SessionStateOutput, error) {
	s, err := h.manager.Session(input.SessionID)
	if err != nil {
		return nil, huma.Error404NotFound("no payment session")
	}
	return &SessionStateOutput{Body: SessionStateResponse{
		State:      s.State().String(),
		Reference:  s.Reference(),
		LastReason: string(s.LastReason()),
	}}, nil
}

func (h *PurchaseHandler) SubmitTransaction(ctx context.Context, input *SubmitTransactionInput) (*SubmitTransactionOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	stored, err := h.manager.SubmitTransaction(ctx, input.SessionID, input.Body.TransactionID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrEmptyTransactionID):
			return nil, huma.Error400BadRequest("transaction id is empty")
		case errors.Is(err, session.ErrVerifying):
			return nil, huma.Error409Conflict("verification already in progress")
		case errors.Is(err, session.ErrAlreadyCommitted):
			return nil, huma.Error409Conflict("session already committed")
		case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrInvalidated):
			return nil, huma.Error404NotFound("no live payment session")
		}
	}

	result, herr := verifyResult(stored, err, h.pricing, h.logger)
	if herr != nil {
		return nil, herr
	}
	return &SubmitTransactionOutput{Body: result}, nil
}

func (h *PurchaseHandler) toDraftResponse(d *editor.Draft) DraftResponse {
	return DraftResponse{
		X:             d.X,
		Y:             d.Y,
		Color:         d.Color,
		HasImage:      len(d.Image) > 0,
		DominantColor: d.DominantColor,
		Height:        d.Height,
		Message:       d.Message,
		Owner:         d.Owner,
		Price:         h.pricing.For(d.Height),
	}
}

// draftError maps editor validation errors to client errors.
func draftError(err error, logger *slog.Logger) error {
	switch {
	case errors.Is(err, editor.ErrNoActiveDraft):
		return huma.Error404NotFound("no active draft")
	case errors.Is(err, editor.ErrOutOfRange):
		return huma.Error422UnprocessableEntity("height level out of range")
	case errors.Is(err, editor.ErrInvalidColor):
		return huma.Error422UnprocessableEntity("color must be #rrggbb")
	case errors.Is(err, editor.ErrMessageTooLong):
		return huma.Error422UnprocessableEntity("message too long")
	case errors.Is(err, editor.ErrImageTooLarge):
		return huma.NewError(http.StatusRequestEntityTooLarge, "image exceeds the size limit")
	case errors.Is(err, editor.ErrInvalidImage):
		return huma.Error422UnprocessableEntity("image does not decode")
	default:
		logger.Error("draft edit failed", "error", err)
		return huma.Error500InternalServerError("draft edit failed")
	}
}
