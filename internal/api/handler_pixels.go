package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/uhuru-arts/pixelgarden/internal/pixel"
	"github.com/uhuru-arts/pixelgarden/internal/storage"
)

// --- Huma Input/Output types ---

// PixelSummary is one committed cell in the listing. Image bytes are
// left out of the listing payload; fetch the single cell for them.
type PixelSummary struct {
	X                int       `json:"x" doc:"Column coordinate"`
	Y                int       `json:"y" doc:"Row coordinate"`
	Color            string    `json:"color" doc:"Flat fill color (#rrggbb)"`
	HasImage         bool      `json:"has_image" doc:"Whether the cell has an uploaded image"`
	Height           int       `json:"height" doc:"Extrusion level"`
	Message          string    `json:"message,omitempty" doc:"Owner's message"`
	Owner            string    `json:"owner" doc:"Display name"`
	Price            int64     `json:"price" doc:"Price paid, in tokens, derived from height"`
	PurchasedAt      time.Time `json:"purchased_at" doc:"Commit timestamp"`
	TransactionID    string    `json:"transaction_id" doc:"Ledger transaction id"`
	PaymentReference string    `json:"payment_reference" doc:"Reference code of the purchase"`
}

// PixelDetail is a single cell with its image payload.
type PixelDetail struct {
	PixelSummary
	Image []byte `json:"image,omitempty" doc:"Normalized JPEG, base64-encoded"`
}

type ListPixelsInput struct {
	Cursor string `query:"cursor" doc:"Opaque pagination cursor" required:"false"`
	Limit  int    `query:"limit" doc:"Maximum records to return" required:"false" minimum:"0" maximum:"10000"`
}

type ListPixelsOutput struct {
	Body ListPixelsResponse
}

type ListPixelsResponse struct {
	Pixels     []PixelSummary `json:"pixels" doc:"Committed cells in commit order"`
	NextCursor string         `json:"next_cursor,omitempty" doc:"Cursor for the next page"`
	HasMore    bool           `json:"has_more" doc:"Whether another page exists"`
}

type GetPixelInput struct {
	X int `path:"x" doc:"Column coordinate" minimum:"0"`
	Y int `path:"y" doc:"Row coordinate" minimum:"0"`
}

type GetPixelOutput struct {
	Body PixelDetail
}

// --- Handler ---

type PixelHandler struct {
	store   storage.PixelStore
	pricing pixel.Pricing
	logger  *slog.Logger
}

func NewPixelHandler(store storage.PixelStore, pricing pixel.Pricing, logger *slog.Logger) *PixelHandler {
	return &PixelHandler{store: store, pricing: pricing, logger: logger}
}

func registerPixelRoutes(api huma.API, h *PixelHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pixels",
		Method:      http.MethodGet,
		Path:        "/v1/pixels",
		Summary:     "List committed pixels",
		Tags:        []string{"pixels"},
	}, h.ListPixels)

	huma.Register(api, huma.Operation{
		OperationID: "get-pixel",
		Method:      http.MethodGet,
		Path:        "/v1/pixels/{x}/{y}",
		Summary:     "Get one pixel",
		Tags:        []string{"pixels"},
	}, h.GetPixel)
}

func (h *PixelHandler) ListPixels(ctx context.Context, input *ListPixelsInput) (*ListPixelsOutput, error) {
	page, err := h.store.ListPixels(ctx, input.Cursor, input.Limit)
	if err != nil {
		if errors.Is(err, storage.ErrBadCursor) {
			return nil, huma.Error400BadRequest("invalid cursor")
		}
		h.logger.Error("failed to list pixels", "error", err)
		return nil, huma.Error500InternalServerError("failed to list pixels")
	}

	resp := ListPixelsResponse{
		Pixels:     make([]PixelSummary, len(page.Pixels)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for i := range page.Pixels {
		resp.Pixels[i] = h.toSummary(&page.Pixels[i])
	}
	return &ListPixelsOutput{Body: resp}, nil
}

func (h *PixelHandler) GetPixel(ctx context.Context, input *GetPixelInput) (*GetPixelOutput, error) {
	p, err := h.store.GetPixel(ctx, input.X, input.Y)
	if err != nil {
		if errors.Is(err, storage.ErrPixelNotFound) {
			return nil, huma.Error404NotFound("pixel not found")
		}
		h.logger.Error("failed to get pixel", "x", input.X, "y", input.Y, "error", err)
		return nil, huma.Error500InternalServerError("failed to get pixel")
	}

	return &GetPixelOutput{Body: PixelDetail{
		PixelSummary: h.toSummary(p),
		Image:        p.Image,
	}}, nil
}

func (h *PixelHandler) toSummary(p *pixel.Pixel) PixelSummary {
	return pixelSummary(p, h.pricing)
}
