package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/uhuru-arts/pixelgarden/internal/notify"
)

// --- Huma Input/Output types ---

type SubscriberPayload struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Endpoint         string    `json:"endpoint"`
	SubscribedEvents []string  `json:"subscribed_events"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

type RegisterSubscriberInput struct {
	Body struct {
		Name             string   `json:"name" doc:"Display name" required:"true" minLength:"1"`
		Endpoint         string   `json:"endpoint" doc:"JSON-RPC endpoint URL" required:"true" minLength:"1"`
		SubscribedEvents []string `json:"subscribed_events" doc:"Event names to deliver" required:"true" minItems:"1"`
	}
}

type SubscriberOutput struct {
	Body SubscriberPayload
}

type ListSubscribersOutput struct {
	Body struct {
		Subscribers []SubscriberPayload `json:"subscribers"`
	}
}

type SubscriberIDInput struct {
	ID string `path:"id" doc:"Subscriber id" format:"uuid"`
}

// --- Handler ---

type SubscriberHandler struct {
	registry *notify.Registry
}

func NewSubscriberHandler(registry *notify.Registry) *SubscriberHandler {
	return &SubscriberHandler{registry: registry}
}

func registerSubscriberRoutes(api huma.API, h *SubscriberHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-subscriber",
		Method:        http.MethodPost,
		Path:          "/v1/subscribers",
		Summary:       "Register a notification subscriber",
		Tags:          []string{"subscribers"},
		DefaultStatus: http.StatusCreated,
	}, h.Register)

	huma.Register(api, huma.Operation{
		OperationID: "list-subscribers",
		Method:      http.MethodGet,
		Path:        "/v1/subscribers",
		Summary:     "List notification subscribers",
		Tags:        []string{"subscribers"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "get-subscriber",
		Method:      http.MethodGet,
		Path:        "/v1/subscribers/{id}",
		Summary:     "Get one subscriber",
		Tags:        []string{"subscribers"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-subscriber",
		Method:        http.MethodDelete,
		Path:          "/v1/subscribers/{id}",
		Summary:       "Remove a subscriber",
		Tags:          []string{"subscribers"},
		DefaultStatus: http.StatusNoContent,
	}, h.Delete)
}

func (h *SubscriberHandler) Register(ctx context.Context, input *RegisterSubscriberInput) (*SubscriberOutput, error) {
	s := &notify.Subscriber{
		Name:             input.Body.Name,
		Endpoint:         input.Body.Endpoint,
		SubscribedEvents: input.Body.SubscribedEvents,
	}
	h.registry.Register(s)
	return &SubscriberOutput{Body: toSubscriberPayload(s)}, nil
}

func (h *SubscriberHandler) List(ctx context.Context, _ *struct{}) (*ListSubscribersOutput, error) {
	subs := h.registry.List()
	out := &ListSubscribersOutput{}
	out.Body.Subscribers = make([]SubscriberPayload, len(subs))
	for i, s := range subs {
		out.Body.Subscribers[i] = toSubscriberPayload(s)
	}
	sort.Slice(out.Body.Subscribers, func(i, j int) bool {
		return out.Body.Subscribers[i].CreatedAt.Before(out.Body.Subscribers[j].CreatedAt)
	})
	return out, nil
}

func (h *SubscriberHandler) Get(ctx context.Context, input *SubscriberIDInput) (*SubscriberOutput, error) {
	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("malformed subscriber id")
	}
	s, err := h.registry.Get(id)
	if err != nil {
		return nil, huma.Error404NotFound("subscriber not found")
	}
	return &SubscriberOutput{Body: toSubscriberPayload(s)}, nil
}

func (h *SubscriberHandler) Delete(ctx context.Context, input *SubscriberIDInput) (*struct{}, error) {
	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("malformed subscriber id")
	}
	if err := h.registry.Delete(id); err != nil {
		return nil, huma.Error404NotFound("subscriber not found")
	}
	return &struct{}{}, nil
}

func toSubscriberPayload(s *notify.Subscriber) SubscriberPayload {
	return SubscriberPayload{
		ID:               s.ID.String(),
		Name:             s.Name,
		Endpoint:         s.Endpoint,
		SubscribedEvents: s.SubscribedEvents,
		Status:           string(s.Status),
		CreatedAt:        s.CreatedAt,
	}
}
