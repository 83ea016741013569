package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/warungtech/restopos/internal/models"
	"github.com/warungtech/restopos/internal/services/provisioning"
)

// SignupService is what the handler needs from the provisioning workflow.
type SignupService interface {
	Signup(ctx context.Context, req *models.SignupRequest) (*models.SignupResult, error)
}

type SignupHandler struct {
	provisioner SignupService
	logger      *zap.Logger
}

func NewSignupHandler(provisioner SignupService, logger *zap.Logger) *SignupHandler {
	return &SignupHandler{
		provisioner: provisioner,
		logger:      logger,
	}
}

// Signup godoc
// @Summary Provision a new tenant
// @Description Create an isolated database, credentials, schema and seed data for a new restaurant
// @Tags signup
// @Accept json
// @Produce json
// @Param signup body models.SignupRequest true "Signup request"
// @Success 201 {object} models.SignupResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /signup [post]
func (h *SignupHandler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.provisioner.Signup(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, provisioning.ErrDuplicateEmail),
			errors.Is(err, provisioning.ErrInvalidPlanSelection):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			// Compensation already ran inside the workflow; callers get one
			// coarse failure without step detail.
			h.logger.Error("Signup failed", zap.Error(err), zap.String("email", req.Email))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to provision tenant"})
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}
