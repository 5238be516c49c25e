package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/geostyle/internal/humastar"
	"github.com/joeblew999/geostyle/internal/mapengine"
	"github.com/joeblew999/geostyle/internal/service"
)

// StreamHandler streams engine operations and map lifecycle events to a
// Datastar viewer via SSE.
type StreamHandler struct {
	engine *mapengine.Memory
	bus    *service.EventBus
}

func NewStreamHandler(svc *Services) *StreamHandler {
	return &StreamHandler{engine: svc.Engine, bus: svc.Bus}
}

func (h *StreamHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/map/ops", h.Ops,
		huma.OperationTags("stream"),
	)
}

// Ops sends every engine operation as an "engine-op" event and patches the
// lastOp signal; lifecycle events arrive as "map-event".
func (h *StreamHandler) Ops(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	if h.engine == nil {
		return nil, huma.Error503ServiceUnavailable("map engine not streamable")
	}
	return humastar.Stream(func(sse humastar.SSE) {
		ops := h.engine.Subscribe()
		defer h.engine.Unsubscribe(ops)
		var events chan service.Event
		if h.bus != nil {
			events = h.bus.Subscribe()
			defer h.bus.Unsubscribe(events)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case op, ok := <-ops:
				if !ok {
					return
				}
				sse.Event("engine-op", op)
				sse.Signals(map[string]any{"lastOp": op.Kind, "lastOpId": op.ID, "opSeq": op.Seq})
			case ev, ok := <-events:
				if !ok {
					return
				}
				sse.Event("map-event", ev)
			}
		}
	}), nil
}
