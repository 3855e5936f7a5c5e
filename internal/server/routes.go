package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/agentboard/internal/api/v1"
	"github.com/gosuda/agentboard/internal/api/ws"
	"github.com/gosuda/agentboard/internal/ingest"
	"github.com/gosuda/agentboard/internal/stream"
)

func registerAPIRoutes(api huma.API, svc *ingest.Service, store Store, broker stream.Broker) {
	v1.RegisterHookEventRoutes(api, svc, store.HookEvents())
	v1.RegisterActivityRoutes(api, svc)
	v1.RegisterBoardEventRoutes(api, broker)
}

func registerStreamRoutes(r chi.Router, emitter *stream.Emitter) {
	r.Get("/events/{projectID}", emitter.ServeSSE)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/events/{projectID}", hub.ServeEvents)
}
