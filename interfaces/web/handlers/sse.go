package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"vulnwatch/domain/audits"
	"vulnwatch/domain/contracts"
	domainevents "vulnwatch/domain/events"
	"vulnwatch/logging"
	"vulnwatch/platform/events"
)

// keepAliveInterval is how often an idle SSE stream emits a comment so
// intermediaries do not drop the connection.
const keepAliveInterval = 15 * time.Second

// SSEGateway streams audit events to observers over Server-Sent Events, one
// connection per audit topic.
type SSEGateway struct {
	broker *events.TopicBroker
	logger *logging.Logger
}

// NewSSEGateway creates the SSE streaming endpoint.
func NewSSEGateway(broker *events.TopicBroker) *SSEGateway {
	return &SSEGateway{
		broker: broker,
		logger: logging.Default().WithComponent("sse_gateway"),
	}
}

// StreamAuditEvents handles GET /api/audits/{auditID}/events. It attaches the
// client to the audit's topic, emits a transient FETCHING event, then the
// current snapshot, then live events until the client disconnects or the
// broker shuts down.
func (g *SSEGateway) StreamAuditEvents(w http.ResponseWriter, r *http.Request) {
	auditID := chi.URLParam(r, "auditID")

	observerID := r.URL.Query().Get("client_id")
	if observerID == "" {
		observerID = uuid.NewString()
	}

	// Subscribe before committing to the stream so an unknown audit can still
	// get a clean 404. The snapshot is already buffered on the channel when
	// Subscribe returns, so it goes out right after the FETCHING event.
	sub, err := g.broker.Subscribe(auditID, observerID)
	if err != nil {
		switch {
		case errors.Is(err, contracts.ErrUnknownAudit):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, events.ErrBrokerClosed):
			writeError(w, http.StatusServiceUnavailable, "server shutting down")
		default:
			g.logger.AuditError("SSE subscribe failed", err, auditID)
			writeError(w, http.StatusInternalServerError, "failed to subscribe")
		}
		return
	}
	defer g.broker.Unsubscribe(sub)

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("Response writer does not support flushing")
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	g.logger.Audit("SSE observer attached", auditID)

	// FETCHING is a transient gateway-level label: the client sees it while
	// the snapshot is on its way. It is never a stored audit status.
	if err := g.send(w, flusher, domainevents.ProgressEvent{
		AuditID: auditID,
		Status:  audits.StatusFetching,
		Message: "Fetching current audit state",
	}); err != nil {
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			g.logger.Audit("SSE observer disconnected", auditID)
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-sub.Events():
			if !open {
				// Unsubscribed, shed as a slow consumer, or broker shutdown.
				g.logger.Audit("SSE subscription closed", auditID)
				return
			}
			if err := g.send(w, flusher, event); err != nil {
				return
			}
		}
	}
}

// send writes one event in SSE wire format, named by its variant.
func (g *SSEGateway) send(w http.ResponseWriter, flusher http.Flusher, event domainevents.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		g.logger.Error("Failed to marshal event", "error", err, "audit_id", event.TopicID())
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType(), data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
