package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloudbank/tandem"
	"github.com/cloudbank/tandem/classify"
	"github.com/cloudbank/tandem/internal/logging"
	"github.com/cloudbank/tandem/lag"
	"github.com/cloudbank/tandem/types"
)

// retryAfterSeconds is the Retry-After hint sent with 503 responses.
const retryAfterSeconds = 1

// Option configures the handler.
type Option func(*handler)

// WithLogger sets the logger for request handling errors.
//
// Default: no-op logger.
//
// Parameters:
//   - logger: The logger to use
//
// Returns:
//   - Option: A configuration option
func WithLogger(logger types.Logger) Option {
	return func(h *handler) {
		h.logger = logger
	}
}

// WithMetricsRegistry exposes the given Prometheus registry at GET /metrics.
//
// Parameters:
//   - reg: The registry to expose
//
// Returns:
//   - Option: A configuration option
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(h *handler) {
		h.registry = reg
	}
}

// WithRequestLogging enables chi's request logging middleware.
//
// Returns:
//   - Option: A configuration option
func WithRequestLogging() Option {
	return func(h *handler) {
		h.requestLogging = true
	}
}

type handler struct {
	client         *tandem.Client
	logger         types.Logger
	registry       *prometheus.Registry
	requestLogging bool
}

// New builds the operational HTTP surface for a routing client.
//
// Routes:
//   - GET  /health                       - liveness
//   - GET  /health/db                    - primary connectivity
//   - GET  /health/db/check-replica      - forced replica probe
//   - GET  /api/db/replication-status    - lag-tracking state
//   - GET  /api/db/replica-health        - cached replica availability
//   - POST /api/db/replication-reset     - clear lag tracking
//   - GET  /metrics                      - Prometheus registry, when configured
//
// Parameters:
//   - client: The routing client to expose
//   - opts: Configuration options (e.g., WithLogger)
//
// Returns:
//   - http.Handler: The assembled router
//
// Example:
//
//	mux := httpapi.New(client,
//	    httpapi.WithLogger(logger),
//	    httpapi.WithMetricsRegistry(collector.Registry()),
//	)
//	http.ListenAndServe(":8080", mux)
func New(client *tandem.Client, opts ...Option) http.Handler {
	h := &handler{
		client: client,
		logger: logging.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if h.requestLogging {
		r.Use(middleware.Logger)
	}

	h.routes(r)

	return r
}

// Attach registers the operational routes on an existing chi router.
//
// Use this to serve the operational surface alongside application routes
// on a single router. Middleware is left to the caller, so
// WithRequestLogging has no effect here.
//
// Parameters:
//   - r: The router to register routes on
//   - client: The routing client to expose
//   - opts: Configuration options (e.g., WithLogger)
//
// Example:
//
//	r := chi.NewRouter()
//	r.Use(middleware.Recoverer)
//	httpapi.Attach(r, client, httpapi.WithLogger(logger))
//	r.Route("/api/accounts", registerAccountRoutes)
func Attach(r chi.Router, client *tandem.Client, opts ...Option) {
	h := &handler{
		client: client,
		logger: logging.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.routes(r)
}

// routes registers all operational endpoints on r.
func (h *handler) routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Route("/health/db", func(r chi.Router) {
		r.Get("/", h.handleHealthDB)
		r.Get("/check-replica", h.handleCheckReplica)
	})
	r.Route("/api/db", func(r chi.Router) {
		r.Get("/replication-status", h.handleReplicationStatus)
		r.Get("/replica-health", h.handleReplicaHealth)
		r.Post("/replication-reset", h.handleReplicationReset)
	})

	if h.registry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
	}
}

// handleHealth handles GET /health.
func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "UP"})
}

// handleHealthDB handles GET /health/db.
func (h *handler) handleHealthDB(w http.ResponseWriter, r *http.Request) {
	if err := h.client.PingPrimary(r.Context()); err != nil {
		h.logger.Error("primary health check failed", "error", err.Error())
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "DOWN",
			"error":  err.Error(),
		})

		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "UP"})
}

// handleCheckReplica handles GET /health/db/check-replica.
func (h *handler) handleCheckReplica(w http.ResponseWriter, r *http.Request) {
	state := h.client.ForceReplicaHealthCheck(r.Context())

	status := http.StatusOK
	if state != types.HealthAvailable {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, map[string]any{
		"replicaState": state.String(),
		"primaryOnly":  h.client.IsPrimaryOnly(),
	})
}

// handleReplicationStatus handles GET /api/db/replication-status.
func (h *handler) handleReplicationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sinceMs := int64(-1)
	if since := h.client.TimeSinceLastWrite(ctx); since != lag.Forever {
		sinceMs = since.Milliseconds()
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"replicaReady":         h.client.IsReplicaReady(ctx),
		"timeSinceLastWriteMs": sinceMs,
		"thresholdMs":          h.client.LagThreshold().Milliseconds(),
		"activeSessions":       h.client.ActiveSessions(),
	})
}

// handleReplicaHealth handles GET /api/db/replica-health.
func (h *handler) handleReplicaHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"available":   h.client.IsReplicaAvailable(),
		"primaryOnly": h.client.IsPrimaryOnly(),
	}

	if last := h.client.ReplicaLastChecked(); !last.IsZero() {
		body["lastChecked"] = last.UTC().Format(time.RFC3339Nano)
	}

	h.writeJSON(w, http.StatusOK, body)
}

// handleReplicationReset handles POST /api/db/replication-reset.
func (h *handler) handleReplicationReset(w http.ResponseWriter, r *http.Request) {
	h.client.ResetLagTracking(r.Context())
	h.logger.Info("replication lag tracking reset")

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}

// writeJSON writes a JSON response body with the given status.
func (h *handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err.Error())
	}
}

// WriteError maps a database error onto an HTTP response.
//
// Transient errors become 503 with a Retry-After hint so clients and load
// balancers back off; everything else becomes 500. The response body is
// JSON with an "error" field.
//
// Parameters:
//   - w: The response writer
//   - err: The error to map
//
// Example:
//
//	balance, err := tandem.Read(ctx, client, true, fetchBalance)
//	if err != nil {
//	    httpapi.WriteError(w, err)
//	    return
//	}
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if classify.Transient(err) {
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
}
