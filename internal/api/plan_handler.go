package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warungtech/restopos/internal/models"
	"github.com/warungtech/restopos/internal/repository"
)

type PlanHandler struct {
	registry TenantDirectory
	logger   *zap.Logger
}

func NewPlanHandler(registry TenantDirectory, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{
		registry: registry,
		logger:   logger,
	}
}

// AssignPlan godoc
// @Summary Assign a subscription plan to a tenant
// @Description Supersede the tenant's live plan assignment and replace its module entitlements with the new plan's list
// @Tags admin
// @Accept json
// @Produce json
// @Param restaurantId path int true "Tenant identifier"
// @Param plan body models.AssignPlanRequest true "Plan assignment request"
// @Success 200 {object} models.PlanAssignment
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/tenants/{restaurantId}/plan [post]
func (h *PlanHandler) AssignPlan(c *gin.Context) {
	restaurantID, err := strconv.ParseInt(c.Param("restaurantId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid restaurant id"})
		return
	}

	var req models.AssignPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	tenant, err := h.registry.GetByRestaurantID(c.Request.Context(), restaurantID)
	if err != nil {
		if errors.Is(err, repository.ErrTenantNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "tenant not found"})
			return
		}
		h.logger.Error("Plan assignment tenant lookup failed", zap.Error(err), zap.Int64("restaurant_id", restaurantID))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to assign plan"})
		return
	}

	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid plan id"})
		return
	}

	plan, err := h.registry.GetPlan(c.Request.Context(), planID)
	if err != nil || !plan.Active {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "selected plan does not exist or is not active"})
		return
	}

	status := models.AssignmentStatusActive
	if req.Status != "" {
		status = models.AssignmentStatus(req.Status)
		if !status.IsLive() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "status must be trial, active or grace"})
			return
		}
	}

	assignment, err := h.registry.AssignPlan(c.Request.Context(), tenant.ID, plan, status, time.Now().AddDate(0, 1, 0))
	if err != nil {
		h.logger.Error("Plan assignment failed", zap.Error(err), zap.String("tenant_id", tenant.ID.String()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to assign plan"})
		return
	}

	tenantStatus := models.TenantStatusActive
	if status == models.AssignmentStatusTrial {
		tenantStatus = models.TenantStatusTrial
	}
	if err := h.registry.UpdateTenantPlanMeta(c.Request.Context(), tenant.ID, tenantStatus, req.POSType); err != nil {
		h.logger.Error("Failed to update tenant plan metadata", zap.Error(err), zap.String("tenant_id", tenant.ID.String()))
	}

	c.JSON(http.StatusOK, assignment)
}
