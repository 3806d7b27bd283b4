package api

import (
	"context"
	"math"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/uhuru-arts/pixelgarden/internal/grid"
)

type StatsOutput struct {
	Body StatsResponse
}

type StatsResponse struct {
	TotalPixels    int     `json:"totalPixels" doc:"Number of cells in the grid"`
	PixelsSold     int     `json:"pixelsSold" doc:"Number of sold cells"`
	FundsRaised    int64   `json:"fundsRaised" doc:"Sum of all sale prices, in tokens"`
	FundsRaisedUSD float64 `json:"fundsRaisedUsd" doc:"Funds raised converted to USD"`
}

type StatsHandler struct {
	stats       *grid.Aggregator
	usdPerToken float64
}

func NewStatsHandler(stats *grid.Aggregator, usdPerToken float64) *StatsHandler {
	return &StatsHandler{stats: stats, usdPerToken: usdPerToken}
}

func registerStatsRoutes(api huma.API, h *StatsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/v1/stats",
		Summary:     "Garden totals",
		Tags:        []string{"stats"},
	}, h.GetStats)
}

func (h *StatsHandler) GetStats(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	t := h.stats.Totals()
	usd := float64(t.FundsRaised) * h.usdPerToken
	return &StatsOutput{Body: StatsResponse{
		TotalPixels:    t.TotalPixels,
		PixelsSold:     t.PixelsSold,
		FundsRaised:    t.FundsRaised,
		FundsRaisedUSD: math.Round(usd*100) / 100,
	}}, nil
}
