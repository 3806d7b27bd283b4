package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/uhuru-arts/pixelgarden/internal/grid"
	"github.com/uhuru-arts/pixelgarden/internal/pixel"
	"github.com/uhuru-arts/pixelgarden/internal/render"
)

type PickInput struct {
	Body struct {
		PX float64 `json:"px" doc:"Pointer x in viewport pixels"`
		PY float64 `json:"py" doc:"Pointer y in viewport pixels"`
	}
}

type PickResponse struct {
	Hit    bool          `json:"hit" doc:"Whether the pointer resolved to a cell"`
	X      int           `json:"x,omitempty"`
	Y      int           `json:"y,omitempty"`
	Record *PixelSummary `json:"record,omitempty" doc:"The cell's record; absent for an empty cell"`
}

type PickOutput struct {
	Body PickResponse
}

type ViewResponse struct {
	Mode     string           `json:"mode"`
	Zoom     float64          `json:"zoom"`
	Selected *CoordPayload    `json:"selected,omitempty"`
	Lighting *LightingPayload `json:"lighting,omitempty" doc:"3D light intensities; absent when 3D is unavailable"`
}

type LightingPayload struct {
	Ambient     float64 `json:"ambient"`
	Directional float64 `json:"directional"`
}

type CoordPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type ViewOutput struct {
	Body ViewResponse
}

type UpdateViewInput struct {
	Body struct {
		Mode       *string  `json:"mode,omitempty" doc:"Presentation mode, 2d or 3d" enum:"2d,3d"`
		Zoom       *float64 `json:"zoom,omitempty" doc:"Zoom factor, clamped to [0.5, 2.0]"`
		OrbitYaw   float64  `json:"orbit_yaw,omitempty" doc:"3D camera yaw delta, radians"`
		OrbitPitch float64  `json:"orbit_pitch,omitempty" doc:"3D camera pitch delta, radians"`
		PanX       float64  `json:"pan_x,omitempty" doc:"3D camera pan along x, world units"`
		PanZ       float64  `json:"pan_z,omitempty" doc:"3D camera pan along z, world units"`
	}
}

type RenderHandler struct {
	renderer *render.Renderer
	grid     *grid.Grid
	pricing  pixel.Pricing
	logger   *slog.Logger
}

func NewRenderHandler(r *render.Renderer, g *grid.Grid, pricing pixel.Pricing, logger *slog.Logger) *RenderHandler {
	return &RenderHandler{renderer: r, grid: g, pricing: pricing, logger: logger}
}

func registerRenderRoutes(api huma.API, h *RenderHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "pick-cell",
		Method:      http.MethodPost,
		Path:        "/v1/pick",
		Summary:     "Resolve a pointer position to a cell",
		Tags:        []string{"render"},
	}, h.Pick)

	huma.Register(api, huma.Operation{
		OperationID: "get-view",
		Method:      http.MethodGet,
		Path:        "/v1/view",
		Summary:     "Get the presentation state",
		Tags:        []string{"render"},
	}, h.GetView)

	huma.Register(api, huma.Operation{
		OperationID: "update-view",
		Method:      http.MethodPatch,
		Path:        "/v1/view",
		Summary:     "Switch mode or zoom",
		Tags:        []string{"render"},
	}, h.UpdateView)
}

func (h *RenderHandler) Pick(ctx context.Context, input *PickInput) (*PickOutput, error) {
	c, ok := h.renderer.Click(input.Body.PX, input.Body.PY)
	out := &PickOutput{}
	if !ok {
		return out, nil
	}
	out.Body.Hit = true
	out.Body.X = c.X
	out.Body.Y = c.Y
	if p, err := h.grid.Get(c.X, c.Y); err == nil && p != nil {
		s := pixelSummary(p, h.pricing)
		out.Body.Record = &s
	}
	return out, nil
}

func (h *RenderHandler) GetView(ctx context.Context, _ *struct{}) (*ViewOutput, error) {
	out := &ViewOutput{Body: ViewResponse{
		Mode: string(h.renderer.Mode()),
		Zoom: h.renderer.Zoom(),
	}}
	if sel := h.renderer.Selection(); sel != nil {
		out.Body.Selected = &CoordPayload{X: sel.X, Y: sel.Y}
	}
	if l, ok := h.renderer.Lighting(); ok {
		out.Body.Lighting = &LightingPayload{
			Ambient:     l.AmbientIntensity,
			Directional: l.DirectionalIntensity,
		}
	}
	return out, nil
}

func (h *RenderHandler) UpdateView(ctx context.Context, input *UpdateViewInput) (*ViewOutput, error) {
	if input.Body.Mode != nil {
		h.renderer.SetMode(render.Mode(*input.Body.Mode))
	}
	if input.Body.Zoom != nil {
		h.renderer.SetZoom(*input.Body.Zoom)
	}
	if input.Body.OrbitYaw != 0 || input.Body.OrbitPitch != 0 {
		h.renderer.Orbit(input.Body.OrbitYaw, input.Body.OrbitPitch)
	}
	if input.Body.PanX != 0 || input.Body.PanZ != 0 {
		h.renderer.Pan(input.Body.PanX, input.Body.PanZ)
	}
	return h.GetView(ctx, nil)
}

// queryError rejects a malformed query parameter. The PNG route is the
// one handler mounted outside huma, so it writes its own error body.
func queryError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// BoardPNG serves the rasterized board. Zoom and selection come from
// the query string so a frame can be fetched without touching the
// shared presentation state.
func (h *RenderHandler) BoardPNG(w http.ResponseWriter, r *http.Request) {
	opts := render.Options{Zoom: h.renderer.Zoom()}

	if raw := r.URL.Query().Get("zoom"); raw != "" {
		z, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			queryError(w, "invalid zoom")
			return
		}
		if z < render.MinZoom {
			z = render.MinZoom
		}
		if z > render.MaxZoom {
			z = render.MaxZoom
		}
		opts.Zoom = z
	}

	sx, sy := r.URL.Query().Get("selected_x"), r.URL.Query().Get("selected_y")
	if sx != "" && sy != "" {
		x, errX := strconv.Atoi(sx)
		y, errY := strconv.Atoi(sy)
		if errX != nil || errY != nil {
			queryError(w, "invalid selection coordinates")
			return
		}
		opts.Selected = &pixel.Coord{X: x, Y: y}
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.renderer.Render(w, opts); err != nil {
		h.logger.Error("failed to render board", "error", err)
	}
}

// RegisterBoardPNG mounts the PNG route directly on the router; huma
// stays out of the binary response path.
func RegisterBoardPNG(mux chi.Router, h *RenderHandler) {
	mux.Get("/v1/grid.png", h.BoardPNG)
}
