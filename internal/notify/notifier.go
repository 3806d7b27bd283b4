// Package notify fans purchase commits out to external JSON-RPC
// subscribers. Delivery is fire-and-forget with per-endpoint retries;
// a slow or broken subscriber never blocks a purchase.
package notify

import (
	"context"
	"log/slog"

	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

// Notifier dispatches pixel.committed notifications to subscribers.
type Notifier struct {
	registry  *Registry
	rpcClient *RPCClient
	logger    *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(registry *Registry, rpcClient *RPCClient, logger *slog.Logger) *Notifier {
	return &Notifier{
		registry:  registry,
		rpcClient: rpcClient,
		logger:    logger,
	}
}

// PixelCommitted fires a goroutine per subscriber to deliver the
// commit. Errors are logged, not propagated.
func (n *Notifier) PixelCommitted(p *pixel.Pixel, price int64) {
	subs := n.registry.ForEvent(EventPixelCommitted)
	if len(subs) == 0 {
		return
	}

	params := PixelCommittedParams{
		X:                p.X,
		Y:                p.Y,
		Color:            p.Color,
		HasImage:         p.HasImage(),
		Height:           p.Height,
		Message:          p.Message,
		Owner:            p.Owner,
		ContactEmail:     p.Email,
		Price:            price,
		PurchasedAt:      p.PurchasedAt,
		TransactionID:    p.TransactionID,
		PaymentReference: p.PaymentReference,
	}

	for _, s := range subs {
		go func(endpoint, name string) {
			resp, err := n.rpcClient.Call(context.Background(), endpoint, EventPixelCommitted, params)
			if err != nil {
				n.logger.Error("notify rpc failed", "subscriber", name, "endpoint", endpoint, "error", err)
				return
			}
			if resp.Error != nil {
				n.logger.Error("notify rpc returned error", "subscriber", name, "endpoint", endpoint, "error", resp.Error)
			}
		}(s.Endpoint, s.Name)
	}
}
