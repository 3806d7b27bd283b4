package notify

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uhuru-arts/pixelgarden/internal/pixel"
)

func committedPixel() *pixel.Pixel {
	return &pixel.Pixel{
		AddedID: 1,
		X:       12, Y: 34,
		Color:            "#4CAF50",
		Height:           3,
		Message:          "hello",
		Owner:            "Anonymous",
		Email:            "buyer@example.com",
		PurchasedAt:      time.Now(),
		TransactionID:    "tx-1",
		PaymentReference: "PIXEL-TEST-ABC123",
	}
}

func okRPCServer(t *testing.T, received *atomic.Int32, lastParams *PixelCommittedParams) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		var req JSONRPCRequest
		json.NewDecoder(r.Body).Decode(&req)
		if lastParams != nil {
			raw, _ := json.Marshal(req.Params)
			mu.Lock()
			json.Unmarshal(raw, lastParams)
			mu.Unlock()
		}
		resp := JSONRPCResponse{JSONRPC: "2.0", Result: json.RawMessage(`"ok"`), ID: req.ID}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestNotifier_DispatchesToSubscribers(t *testing.T) {
	var received atomic.Int32
	var params PixelCommittedParams
	srv := okRPCServer(t, &received, &params)
	defer srv.Close()

	registry := NewRegistry()
	registry.Register(&Subscriber{
		Name:             "mailer",
		Endpoint:         srv.URL,
		SubscribedEvents: []string{EventPixelCommitted},
	})
	registry.Register(&Subscriber{
		Name:             "webhook",
		Endpoint:         srv.URL,
		SubscribedEvents: []string{EventPixelCommitted, "other.event"},
	})

	notifier := NewNotifier(registry, NewRPCClient(0, time.Millisecond, 5*time.Second), slog.New(slog.DiscardHandler))
	notifier.PixelCommitted(committedPixel(), 30000)

	// Wait for goroutines to complete
	time.Sleep(200 * time.Millisecond)

	if received.Load() != 2 {
		t.Errorf("received: got %d, want 2", received.Load())
	}
	if params.X != 12 || params.Y != 34 {
		t.Errorf("params coordinates: got (%d,%d), want (12,34)", params.X, params.Y)
	}
	if params.Price != 30000 {
		t.Errorf("params price: got %d, want 30000", params.Price)
	}
	if params.ContactEmail != "buyer@example.com" {
		t.Errorf("contact email: got %q", params.ContactEmail)
	}
}

func TestNotifier_SkipsUnsubscribed(t *testing.T) {
	var received atomic.Int32
	srv := okRPCServer(t, &received, nil)
	defer srv.Close()

	registry := NewRegistry()
	registry.Register(&Subscriber{
		Name:             "other-events-only",
		Endpoint:         srv.URL,
		SubscribedEvents: []string{"other.event"},
	})
	registry.Register(&Subscriber{
		Name:             "inactive",
		Endpoint:         srv.URL,
		SubscribedEvents: []string{EventPixelCommitted},
		Status:           SubscriberStatusInactive,
	})

	notifier := NewNotifier(registry, NewRPCClient(0, time.Millisecond, 5*time.Second), slog.New(slog.DiscardHandler))
	notifier.PixelCommitted(committedPixel(), 10000)

	time.Sleep(100 * time.Millisecond)

	if received.Load() != 0 {
		t.Errorf("received: got %d, want 0", received.Load())
	}
}

func TestNotifier_LogsRPCErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var logged bool
	handler := slog.NewTextHandler(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		logged = true
		return len(p), nil
	}), nil)

	registry := NewRegistry()
	registry.Register(&Subscriber{
		Name:             "failing",
		Endpoint:         srv.URL,
		SubscribedEvents: []string{EventPixelCommitted},
	})

	notifier := NewNotifier(registry, NewRPCClient(0, time.Millisecond, 5*time.Second), slog.New(handler))
	notifier.PixelCommitted(committedPixel(), 10000)

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if !logged {
		t.Error("expected error to be logged")
	}
}

func TestNotifier_NoSubscribers(t *testing.T) {
	notifier := NewNotifier(NewRegistry(), NewRPCClient(0, time.Millisecond, 5*time.Second), slog.New(slog.DiscardHandler))

	// Should not panic
	notifier.PixelCommitted(committedPixel(), 10000)
}

// writerFunc adapts a function to the io.Writer interface.
type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}
