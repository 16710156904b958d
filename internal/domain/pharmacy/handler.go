package pharmacy

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/pharmacy", auth.RequireRole("pharmacist", "doctor"))
	g.GET("/queue", h.ListActive)
	g.GET("/queue/prepared", h.ListPrepared)
	g.GET("/queue/billed", h.ListBilled)
	g.POST("/queue", h.Admit)
	g.POST("/queue/:id/start", h.StartPreparing)
	g.POST("/queue/:id/prepared", h.MarkPrepared)
	g.POST("/queue/:id/reopen", h.Reopen)
	g.POST("/queue/:id/stop", h.Stop)
	g.POST("/queue/:id/delivered", h.MarkDelivered)
	g.POST("/queue/:id/priority", h.SetPriority)
	g.POST("/queue/:id/ack", h.AcknowledgeUpdates)
}

func (h *Handler) Admit(c echo.Context) error {
	var req struct {
		VisitID uuid.UUID `json:"visit_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.VisitID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "visit_id is required")
	}
	item, err := h.svc.Admit(c.Request().Context(), req.VisitID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) ListActive(c echo.Context) error {
	entries, err := h.svc.ListActive(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) ListPrepared(c echo.Context) error {
	entries, err := h.svc.ListPrepared(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) ListBilled(c echo.Context) error {
	entries, err := h.svc.ListBilled(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) StartPreparing(c echo.Context) error {
	return h.transition(c, h.svc.StartPreparing)
}

func (h *Handler) MarkPrepared(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.MarkPrepared(c.Request().Context(), id, auth.UserName(c)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Reopen(c echo.Context) error {
	return h.transition(c, h.svc.Reopen)
}

func (h *Handler) Stop(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Stop(c.Request().Context(), id, req.Reason); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) MarkDelivered(c echo.Context) error {
	return h.transition(c, h.svc.MarkDelivered)
}

func (h *Handler) SetPriority(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req struct {
		Priority bool `json:"priority"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetPriority(c.Request().Context(), id, req.Priority); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AcknowledgeUpdates(c echo.Context) error {
	return h.transition(c, h.svc.AcknowledgeUpdates)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, id uuid.UUID) error) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := fn(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
