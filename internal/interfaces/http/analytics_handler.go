package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rafiq-567/eagle3d-dashboard/internal/application/analytics"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/dto"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/products"
	"github.com/rafiq-567/eagle3d-dashboard/internal/application/state"
)

// AnalyticsHandler deriva las métricas del dashboard desde la colección en
// caché. Consumidor puro: no muta la caché ni habla con el backend.
type AnalyticsHandler struct {
	uc *products.UseCase
}

// NewAnalyticsHandler construye el handler.
func NewAnalyticsHandler(uc *products.UseCase) *AnalyticsHandler {
	return &AnalyticsHandler{uc: uc}
}

// Dashboard godoc
// @Summary      Métricas agregadas del inventario
// @Tags         analytics
// @Produce      json
// @Success      200  {object}  dto.DashboardDTO
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/analytics/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *fiber.Ctx) error {
	snap := h.uc.List(c.UserContext())
	if snap.State == state.StateError && len(snap.Products) == 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Code: "FETCH_FAILED", Message: "no se pudo cargar la colección", Retryable: true,
		})
	}
	return c.JSON(analytics.BuildDashboard(snap.Products))
}
