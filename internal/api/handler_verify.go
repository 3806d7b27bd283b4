package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/uhuru-arts/pixelgarden/internal/pixel"
	"github.com/uhuru-arts/pixelgarden/internal/verify"
)

// --- Huma Input/Output types ---

type PixelDetails struct {
	X            int    `json:"x" doc:"Column coordinate" minimum:"0"`
	Y            int    `json:"y" doc:"Row coordinate" minimum:"0"`
	Color        string `json:"color,omitempty" doc:"Flat fill color (#rrggbb)"`
	Image        []byte `json:"image,omitempty" doc:"Normalized JPEG, base64-encoded"`
	Height       int    `json:"height" doc:"Extrusion level" minimum:"1"`
	Message      string `json:"message,omitempty" doc:"Owner's message"`
	Owner        string `json:"owner,omitempty" doc:"Display name"`
	ContactEmail string `json:"contactEmail,omitempty" doc:"Notification address, never rendered"`
}

type VerifyPaymentBody struct {
	TransactionID    string       `json:"transactionId" doc:"Ledger transaction id" required:"true" minLength:"1"`
	PaymentReference string       `json:"paymentReference" doc:"Reference code from the purchase session" required:"true" minLength:"1"`
	PixelDetails     PixelDetails `json:"pixelDetails" doc:"The purchased cell" required:"true"`
}

type VerifyPaymentInput struct {
	Body VerifyPaymentBody
}

// VerifyResult reports a verification attempt. Status is "committed"
// or "rejected"; rejected results carry a reason code.
type VerifyResult struct {
	Status string        `json:"status" doc:"committed or rejected" enum:"committed,rejected"`
	Reason string        `json:"reason,omitempty" doc:"Rejection reason code" enum:",duplicate,not_found,amount_mismatch,cell_occupied,invalid_pixel,server_error"`
	Detail string        `json:"detail,omitempty" doc:"Human-readable rejection detail"`
	Pixel  *PixelSummary `json:"pixel,omitempty" doc:"The committed record"`
}

type VerifyPaymentOutput struct {
	Body VerifyResult
}

// --- Handler ---

type VerifyHandler struct {
	svc     *verify.Service
	pricing pixel.Pricing
	timeout time.Duration
	logger  *slog.Logger
}

func NewVerifyHandler(svc *verify.Service, pricing pixel.Pricing, timeout time.Duration, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{svc: svc, pricing: pricing, timeout: timeout, logger: logger}
}

func registerVerifyRoutes(api huma.API, h *VerifyHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "verify-payment",
		Method:      http.MethodPost,
		Path:        "/v1/verify-payment",
		Summary:     "Verify a payment and commit the pixel",
		Tags:        []string{"payments"},
	}, h.VerifyPayment)
}

func (h *VerifyHandler) VerifyPayment(ctx context.Context, input *VerifyPaymentInput) (*VerifyPaymentOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	req := verify.Request{
		TransactionID:    input.Body.TransactionID,
		PaymentReference: input.Body.PaymentReference,
		Pixel: pixel.Pixel{
			X:       input.Body.PixelDetails.X,
			Y:       input.Body.PixelDetails.Y,
			Color:   input.Body.PixelDetails.Color,
			Image:   input.Body.PixelDetails.Image,
			Height:  input.Body.PixelDetails.Height,
			Message: input.Body.PixelDetails.Message,
			Owner:   input.Body.PixelDetails.Owner,
			Email:   input.Body.PixelDetails.ContactEmail,
		},
	}

	stored, err := h.svc.VerifyAndCommit(ctx, req)
	result, herr := verifyResult(stored, err, h.pricing, h.logger)
	if herr != nil {
		return nil, herr
	}
	return &VerifyPaymentOutput{Body: result}, nil
}

// verifyResult maps a verification outcome to the wire result shared
// by the verify and purchase surfaces. Infrastructure failures become
// a retryable 503.
func verifyResult(stored *pixel.Pixel, err error, pricing pixel.Pricing, logger *slog.Logger) (VerifyResult, error) {
	if err == nil {
		summary := pixelSummary(stored, pricing)
		return VerifyResult{Status: "committed", Pixel: &summary}, nil
	}

	var vErr *verify.Error
	if errors.As(err, &vErr) {
		return VerifyResult{
			Status: "rejected",
			Reason: string(vErr.Reason),
			Detail: vErr.Msg,
		}, nil
	}
	if errors.Is(err, verify.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return VerifyResult{}, huma.Error503ServiceUnavailable("verification temporarily unavailable, retry with the same transaction id")
	}
	logger.Error("verification failed", "error", err)
	return VerifyResult{}, huma.Error500InternalServerError("verification failed")
}

func pixelSummary(p *pixel.Pixel, pricing pixel.Pricing) PixelSummary {
	return PixelSummary{
		X:                p.X,
		Y:                p.Y,
		Color:            p.Color,
		HasImage:         p.HasImage(),
		Height:           p.Height,
		Message:          p.Message,
		Owner:            p.Owner,
		Price:            pricing.For(p.Height),
		PurchasedAt:      p.PurchasedAt,
		TransactionID:    p.TransactionID,
		PaymentReference: p.PaymentReference,
	}
}
