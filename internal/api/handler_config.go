package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// ClientConfig is everything a front end needs to draw the board and
// walk a visitor through a purchase.
type ClientConfig struct {
	GridWidth        int     `json:"grid_width"`
	GridHeight       int     `json:"grid_height"`
	PixelSize        int     `json:"pixel_size" doc:"Cell edge in screen pixels at zoom 1.0"`
	BasePrice        int64   `json:"base_price" doc:"Price of a height-1 pixel in tokens"`
	HeightSurcharge  int64   `json:"height_surcharge" doc:"Extra tokens per height level"`
	MaxHeight        int     `json:"max_height"`
	MaxMessageLen    int     `json:"max_message_len"`
	MaxImageBytes    int64   `json:"max_image_bytes"`
	CanvasSize       int     `json:"canvas_size" doc:"Uploaded images are resized to this square"`
	BurnAddress      string  `json:"burn_address"`
	TokenSymbol      string  `json:"token_symbol"`
	USDPerToken      float64 `json:"usd_per_token"`
	Enable3D         bool    `json:"enable_3d"`
	CameraDistance   float64 `json:"camera_distance"`
	HeightUnit       float64 `json:"height_unit" doc:"World units per height level"`
	AmbientLight     float64 `json:"ambient_light" doc:"3D ambient light intensity"`
	DirectionalLight float64 `json:"directional_light" doc:"3D directional light intensity"`
	MinZoom          float64 `json:"min_zoom"`
	MaxZoom          float64 `json:"max_zoom"`
	ZoomStep         float64 `json:"zoom_step"`
}

type ConfigOutput struct {
	Body ClientConfig
}

type ConfigHandler struct {
	cfg ClientConfig
}

func NewConfigHandler(cfg ClientConfig) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

func registerConfigRoutes(api huma.API, h *ConfigHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-config",
		Method:      http.MethodGet,
		Path:        "/v1/config",
		Summary:     "Get the public garden configuration",
		Tags:        []string{"config"},
	}, h.Get)
}

func (h *ConfigHandler) Get(ctx context.Context, _ *struct{}) (*ConfigOutput, error) {
	return &ConfigOutput{Body: h.cfg}, nil
}
