package http

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/circuitbreaker"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/degradation"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/healthmonitor"
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/log"
)

// Handler wires the health monitor, the degradation service, and the circuit
// breaker registry to Fiber routes.
type Handler struct {
	monitor   *healthmonitor.Monitor
	service   *degradation.Service
	breakers  *circuitbreaker.Registry
	auth      BasicAuthFunc
	authRealm string
	logger    log.Logger
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithAuth sets the credential validator guarding detailed health output and
// the administrative endpoints. Without it, detailed output is denied and the
// admin routes are not registered.
func WithAuth(auth BasicAuthFunc, realm string) HandlerOption {
	return func(h *Handler) {
		h.auth = auth
		h.authRealm = realm
	}
}

// NewHandler creates a Handler over the given components. Logger must not be
// nil; pass a log.NoneLogger to discard output.
func NewHandler(
	monitor *healthmonitor.Monitor,
	service *degradation.Service,
	breakers *circuitbreaker.Registry,
	logger log.Logger,
	opts ...HandlerOption,
) *Handler {
	h := &Handler{
		monitor:   monitor,
		service:   service,
		breakers:  breakers,
		authRealm: "health",
		logger:    logger,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// RegisterRoutes mounts the health and admin endpoints on the app.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/health/live", h.Livez)
	app.Get("/health/ready", h.Readyz)
	app.Get("/health", h.Health)
	app.Post("/health/check", h.ForceCheck)

	if h.auth == nil {
		return
	}

	admin := app.Group("/admin", WithBasicAuth(h.auth, h.authRealm))
	admin.Get("/breakers", h.ListBreakers)
	admin.Post("/breakers/:service/reset", h.ResetBreaker)
	admin.Post("/breakers/:service/force-open", h.ForceOpenBreaker)
	admin.Post("/breakers/:service/force-close", h.ForceCloseBreaker)
	admin.Put("/services/:service/state", h.OverrideServiceState)
	admin.Post("/services/:service/maintenance", h.EnterMaintenance)
	admin.Delete("/services/:service/maintenance", h.ExitMaintenance)
}

// Livez reports process liveness. It never consults downstream dependencies.
func (h *Handler) Livez(c *fiber.Ctx) error {
	return OK(c, h.monitor.CheckLiveness())
}

// Readyz reports readiness to serve traffic. Critical dependency failures
// produce a 503 so load balancers stop routing here.
func (h *Handler) Readyz(c *fiber.Ctx) error {
	readiness := h.monitor.CheckReadiness(c.UserContext())
	if readiness.Status != healthmonitor.ReadinessReady {
		return ServiceUnavailable(c, readiness)
	}

	return OK(c, readiness)
}

// minimalHealth is what anonymous callers see on the health endpoint.
type minimalHealth struct {
	Status    degradation.State `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}

// Health returns the latest system snapshot. Callers presenting valid basic
// auth credentials get per-service detail; everyone else gets only the
// overall status and timestamp.
func (h *Handler) Health(c *fiber.Ctx) error {
	snapshot := h.monitor.GetSystemHealth(c.UserContext())

	if h.authenticated(c) {
		return OK(c, snapshot)
	}

	return OK(c, minimalHealth{
		Status:    snapshot.OverallStatus,
		Timestamp: snapshot.Timestamp,
	})
}

// forcedCheckResponse is the body returned by ForceCheck.
type forcedCheckResponse struct {
	Forced     bool                  `json:"forced"`
	Timestamp  time.Time             `json:"timestamp"`
	Overall    degradation.State     `json:"overall"`
	Services   []healthmonitor.Check `json:"services"`
	DurationMs int64                 `json:"duration_ms"`
}

// ForceCheck runs an immediate health cycle outside the periodic schedule and
// returns its outcome.
func (h *Handler) ForceCheck(c *fiber.Ctx) error {
	snapshot := h.monitor.ForceHealthCheck(c.UserContext())

	h.logger.Infof("forced health check completed: overall=%s duration=%dms",
		snapshot.OverallStatus, snapshot.DurationMs)

	return OK(c, forcedCheckResponse{
		Forced:     true,
		Timestamp:  snapshot.Timestamp,
		Overall:    snapshot.OverallStatus,
		Services:   snapshot.Checks,
		DurationMs: snapshot.DurationMs,
	})
}

// breakerListResponse pairs the aggregate summary with per-breaker status.
type breakerListResponse struct {
	Summary  circuitbreaker.HealthSummary `json:"summary"`
	Breakers []circuitbreaker.Status      `json:"breakers"`
}

// ListBreakers returns the status of every registered circuit breaker.
func (h *Handler) ListBreakers(c *fiber.Ctx) error {
	services := h.breakers.Services()

	statuses := make([]circuitbreaker.Status, 0, len(services))

	for _, service := range services {
		status, err := h.breakers.GetStatus(service)
		if err != nil {
			continue
		}

		statuses = append(statuses, status)
	}

	return OK(c, breakerListResponse{
		Summary:  h.breakers.GetHealthSummary(),
		Breakers: statuses,
	})
}

// ResetBreaker returns the named breaker to the closed state with cleared
// counters.
func (h *Handler) ResetBreaker(c *fiber.Ctx) error {
	service := c.Params("service")

	if _, err := h.breakers.GetStatus(service); err != nil {
		return NotFound(c, "BREAKER_NOT_FOUND", "Breaker Not Found",
			"No circuit breaker is registered for service "+service+".")
	}

	h.breakers.Reset(service)
	h.logger.Infof("circuit breaker reset via admin API: service=%s", service)

	return c.SendStatus(http.StatusNoContent)
}

// ForceOpenBreaker latches the named breaker open until force-closed.
func (h *Handler) ForceOpenBreaker(c *fiber.Ctx) error {
	service := c.Params("service")

	h.breakers.ForceOpen(service)
	h.logger.Warnf("circuit breaker forced open via admin API: service=%s", service)

	return c.SendStatus(http.StatusNoContent)
}

// ForceCloseBreaker lifts a forced-open latch and resets the breaker.
func (h *Handler) ForceCloseBreaker(c *fiber.Ctx) error {
	service := c.Params("service")

	h.breakers.ForceClose(service)
	h.logger.Infof("circuit breaker force-closed via admin API: service=%s", service)

	return c.SendStatus(http.StatusNoContent)
}

// stateOverrideRequest is the body accepted by OverrideServiceState.
type stateOverrideRequest struct {
	State string `json:"state"`
}

// OverrideServiceState manually pins a service to the given degradation state.
func (h *Handler) OverrideServiceState(c *fiber.Ctx) error {
	var req stateOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "INVALID_BODY", "Invalid Request Body",
			"Request body must be JSON with a state field.")
	}

	state, err := degradation.ParseState(req.State)
	if err != nil {
		return BadRequest(c, "INVALID_STATE", "Invalid State",
			"State must be one of healthy, degraded, unavailable.")
	}

	service := c.Params("service")

	h.service.SetServiceState(service, state)
	h.logger.Warnf("service state overridden via admin API: service=%s state=%s", service, state)

	return c.SendStatus(http.StatusNoContent)
}

// EnterMaintenance places a service into planned maintenance so its failures
// stop raising alerts.
func (h *Handler) EnterMaintenance(c *fiber.Ctx) error {
	service := c.Params("service")

	h.service.EnterMaintenance(service)
	h.logger.Infof("service entered maintenance via admin API: service=%s", service)

	return c.SendStatus(http.StatusNoContent)
}

// ExitMaintenance takes a service out of planned maintenance.
func (h *Handler) ExitMaintenance(c *fiber.Ctx) error {
	service := c.Params("service")

	h.service.ExitMaintenance(service)
	h.logger.Infof("service exited maintenance via admin API: service=%s", service)

	return c.SendStatus(http.StatusNoContent)
}

// authenticated reports whether the request carries credentials accepted by
// the configured validator.
func (h *Handler) authenticated(c *fiber.Ctx) bool {
	if h.auth == nil {
		return false
	}

	user, pass, ok := parseBasicAuth(c)

	return ok && h.auth(user, pass)
}
