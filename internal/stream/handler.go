package stream

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentboard/internal/domain"
	"github.com/gosuda/agentboard/internal/sse"
)

type sseSink struct {
	w *sse.Writer
}

func (s sseSink) Send(msg domain.Message) error { return s.w.WriteEvent(msg) }
func (s sseSink) Heartbeat() error              { return s.w.Comment("ping") }

// ProjectFromRequest resolves the project scope of a stream request from the
// {projectID} path parameter, the projectId query parameter or the
// X-Project-ID header, in that order.
func ProjectFromRequest(r *http.Request) string {
	if id := chi.URLParam(r, "projectID"); id != "" {
		return id
	}
	if id := r.URL.Query().Get("projectId"); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get("X-Project-ID"))
}

// ServeSSE handles GET /events/{projectID} as a text/event-stream.
func (e *Emitter) ServeSSE(w http.ResponseWriter, r *http.Request) {
	projectID := ProjectFromRequest(r)
	if projectID == "" {
		http.Error(w, ErrMissingProject.Error(), http.StatusBadRequest)
		return
	}

	// The baseline is taken before the response starts, so anything stored
	// after the client sees the stream open is delivered.
	session := e.Open(projectID)

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	writer := sse.NewWriter(w)
	w.WriteHeader(http.StatusOK)
	if err := writer.Comment("connected"); err != nil {
		return
	}

	if err := session.Run(r.Context(), sseSink{w: writer}); err != nil {
		log.Debug().Err(err).Str("project_id", projectID).Msg("stream: sse write")
	}
}
