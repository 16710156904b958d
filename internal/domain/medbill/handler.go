package medbill

import (
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
	g := api.Group("", auth.RequireRole("billing", "pharmacist"))
	g.POST("/medicine-bills/calculate", h.Calculate)
	g.PUT("/billing/queue/:id/medicine-bill", h.Save)
	g.GET("/billing/queue/:id/medicine-bill", h.Get)
	g.POST("/billing/queue/:id/medicine-bill/paid", h.MarkPaid)
	g.GET("/medicine-amounts", h.Suggest)
}

type billRequest struct {
	Items           []LineItem `json:"items"`
	DiscountPercent float64    `json:"discount_percent"`
	TaxPercent      float64    `json:"tax_percent"`
}

// Calculate previews totals without persisting anything.
func (h *Handler) Calculate(c echo.Context) error {
	var req billRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, Calculate(req.Items, req.DiscountPercent, req.TaxPercent))
}

func (h *Handler) Save(c echo.Context) error {
	queueItemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req billRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	bill, err := h.svc.Save(c.Request().Context(), queueItemID, req.Items, req.DiscountPercent, req.TaxPercent)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, bill)
}

func (h *Handler) Get(c echo.Context) error {
	queueItemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	bill, err := h.svc.GetByQueueItem(c.Request().Context(), queueItemID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "medicine bill not found")
	}
	return c.JSON(http.StatusOK, bill)
}

func (h *Handler) MarkPaid(c echo.Context) error {
	queueItemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.MarkPaid(c.Request().Context(), queueItemID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Suggest(c echo.Context) error {
	suggestions, err := h.svc.Suggest(c.Request().Context(), c.QueryParam("medicine"), c.QueryParam("potency"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, suggestions)
}
