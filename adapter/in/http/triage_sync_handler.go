package http

import (
	"strconv"

	"triage_server/core/port/out"
	"triage_server/core/service/auth"
	"triage_server/core/service/sync"
	"triage_server/infra/middleware"
	"triage_server/pkg/apperr"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SyncHandler exposes mailbox connections and sync runs.
type SyncHandler struct {
	syncService *sync.Service
	credentials *auth.CredentialService
	reports     out.SyncReportRepository
}

// NewSyncHandler creates a new sync handler. reports may be nil when no
// report store is configured.
func NewSyncHandler(syncService *sync.Service, credentials *auth.CredentialService, reports out.SyncReportRepository) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		credentials: credentials,
		reports:     reports,
	}
}

// Register registers connection and sync routes.
func (h *SyncHandler) Register(router fiber.Router) {
	connections := router.Group("/connections")

	connections.Get("/", h.ListConnections)
	connections.Get("/:id", h.GetConnection)
	connections.Post("/:id/sync", h.RunSync)
	connections.Get("/:id/reports", h.ListReports)
}

// =============================================================================
// Handlers
// =============================================================================

// ListConnections returns the caller's mailbox connections.
func (h *SyncHandler) ListConnections(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	connections, err := h.credentials.ListConnections(c.Context(), userID)
	if err != nil {
		return err
	}

	return response.OK(c, connections)
}

// GetConnection returns a single connection with its last sync state.
func (h *SyncHandler) GetConnection(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	connectionID, err := parseConnectionID(c)
	if err != nil {
		return err
	}

	conn, err := h.credentials.GetConnection(c.Context(), connectionID)
	if err != nil {
		return err
	}
	if conn.UserID != userID {
		return apperr.NotFound("connection not found")
	}

	return response.OK(c, conn)
}

// RunSync runs one full sync pass for a connection and returns the result.
// A concurrent run on the same connection is rejected with a conflict.
func (h *SyncHandler) RunSync(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	connectionID, err := parseConnectionID(c)
	if err != nil {
		return err
	}

	result, err := h.syncService.Run(c.Context(), userID, connectionID)
	if err != nil {
		return err
	}

	return response.OK(c, result)
}

// ListReports returns recent sync run reports for a connection, newest first.
func (h *SyncHandler) ListReports(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	if h.reports == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "report store not configured")
	}

	connectionID, err := parseConnectionID(c)
	if err != nil {
		return err
	}

	conn, err := h.credentials.GetConnection(c.Context(), connectionID)
	if err != nil {
		return err
	}
	if conn.UserID != userID {
		return apperr.NotFound("connection not found")
	}

	limit := c.QueryInt("limit", 20)
	reports, err := h.reports.ListByConnection(c.Context(), connectionID, limit)
	if err != nil {
		return err
	}

	return response.OK(c, reports)
}

func parseConnectionID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.BadRequest("invalid connection ID")
	}
	return id, nil
}
