package api

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"linkgate/internal/gate"
	"linkgate/internal/geoip"
	"linkgate/internal/models"
)

// Gate decides the outcome of one request.
type Gate interface {
	Handle(ctx context.Context, d models.Descriptor) gate.Outcome
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains the HTTP handlers of the gate
type Handlers struct {
	gate    Gate
	config  *models.Config
	page    *template.Template
	geoip   *geoip.Resolver
	storage Pinger
	version string
}

// HandlerOption configures optional dependencies.
type HandlerOption func(*Handlers)

// WithStorage reports the storage backend in health checks.
func WithStorage(p Pinger) HandlerOption {
	return func(h *Handlers) { h.storage = p }
}

// WithGeoIP enables GeoIP lookups for clients without platform metadata.
func WithGeoIP(r *geoip.Resolver) HandlerOption {
	return func(h *Handlers) { h.geoip = r }
}

// WithVersion sets the version reported by the health check.
func WithVersion(v string) HandlerOption {
	return func(h *Handlers) { h.version = v }
}

// NewHandlers creates a new handlers instance
func NewHandlers(g Gate, config *models.Config, opts ...HandlerOption) (*Handlers, error) {
	page, err := ParseChallengeTemplate()
	if err != nil {
		return nil, err
	}
	h := &Handlers{
		gate:    g,
		config:  config,
		page:    page,
		version: "dev",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Gate handles every request to the protected link
// GET|HEAD|POST /{path}
func (h *Handlers) Gate(w http.ResponseWriter, r *http.Request) {
	d := h.buildDescriptor(w, r)
	h.writeOutcome(w, r, h.gate.Handle(r.Context(), d))
}

// writeOutcome translates a gate outcome into a response. Denials carry no
// body; the destination only ever appears in a redirect's Location header.
func (h *Handlers) writeOutcome(w http.ResponseWriter, r *http.Request, out gate.Outcome) {
	status := out.StatusCode()

	switch out.Kind {
	case gate.KindRateLimited, gate.KindDenied, gate.KindPreview:
		w.WriteHeader(status)

	case gate.KindRedirect:
		if out.Cookie != nil {
			http.SetCookie(w, out.Cookie)
		}
		w.Header().Set("Location", out.Location)
		w.WriteHeader(status)

	case gate.KindRejected:
		h.writeJSONResponse(w, status, models.NewErrorResponse(models.MessageInvalidOrExpired))

	case gate.KindTokenIssued:
		h.writeJSONResponse(w, status, out.Token)

	case gate.KindChallenge:
		body, err := renderChallenge(h.page, out.Challenge)
		if err != nil {
			slog.Error("Challenge page failed", "error", err, "request_id", GetRequestID(r.Context()))
			h.writeJSONResponse(w, http.StatusInternalServerError, models.NewErrorResponse(models.MessageInternalError))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write(body)

	default:
		h.writeJSONResponse(w, http.StatusInternalServerError, models.NewErrorResponse(models.MessageInternalError))
	}
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version

	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			response.AddComponent("storage", models.StatusUnhealthy, "Storage is unreachable")
		} else {
			response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
		}
	}
	if h.geoip.Enabled() {
		response.AddComponent("geoip", models.StatusHealthy, "GeoIP databases loaded")
	}
	response.AddComponent("gate", models.StatusHealthy, "Gate is operational")

	status := http.StatusOK
	if response.Status == models.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSONResponse(w, status, response)
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more can be sent.
		slog.Error("Error encoding JSON response", "error", err)
	}
}
