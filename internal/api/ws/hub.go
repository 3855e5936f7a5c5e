package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentboard/internal/domain"
	"github.com/gosuda/agentboard/internal/stream"
)

const writeTimeout = 10 * time.Second

// Hub serves the event stream over WebSocket for clients that cannot use
// server-sent events.
type Hub struct {
	emitter        *stream.Emitter
	originPatterns []string
}

// NewHub creates a hub. originPatterns are passed to websocket.Accept; an
// empty list only allows same-origin upgrades.
func NewHub(emitter *stream.Emitter, originPatterns []string) *Hub {
	return &Hub{emitter: emitter, originPatterns: originPatterns}
}

// wsSink writes each message as one JSON text frame.
type wsSink struct {
	ctx  context.Context
	conn *websocket.Conn
}

func (s wsSink) Send(msg domain.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, raw)
}

func (s wsSink) Heartbeat() error {
	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()
	return s.conn.Ping(ctx)
}

// ServeEvents handles GET /ws/events/{projectID}. It carries the same
// messages as the SSE endpoint with the same per-connection cursors.
func (h *Hub) ServeEvents(w http.ResponseWriter, r *http.Request) {
	projectID := stream.ProjectFromRequest(r)
	if projectID == "" {
		http.Error(w, "missing project", http.StatusBadRequest)
		return
	}

	session := h.emitter.Open(projectID)

	// The hijacked conn keeps the server's deadlines unless cleared here.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// Clients never send data frames; CloseRead handles control frames and
	// cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	if err := session.Run(ctx, wsSink{ctx: ctx, conn: conn}); err != nil {
		log.Debug().Err(err).Str("project_id", projectID).Msg("websocket write")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
}
