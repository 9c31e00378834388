package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/das-api/internal/dto"
	"github.com/noah-isme/das-api/internal/models"
	appErrors "github.com/noah-isme/das-api/pkg/errors"
	"github.com/noah-isme/das-api/pkg/response"
)

type approvalService interface {
	Create(ctx context.Context, req dto.CreateApprovalRequest, actor models.Actor) (*models.Approval, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateApprovalStatusRequest, actor models.Actor) (*models.Approval, error)
	Reset(ctx context.Context, req dto.ResetApprovalsRequest, actor models.Actor) (*models.ApprovalResetResult, error)
	Check(ctx context.Context, req dto.CheckApprovalRequest, actor models.Actor) (*dto.CheckApprovalResponse, error)
	Get(ctx context.Context, id string, actor models.Actor) (*models.Approval, error)
	List(ctx context.Context, query dto.ApprovalListQuery, actor models.Actor) ([]models.Approval, *models.Pagination, error)
	Stats(ctx context.Context, actor models.Actor) (*models.ApprovalStats, error)
}

// ApprovalHandler exposes the approval engine. A handler built with a fixed
// type forces that type on create and list, and only decides approvals of
// that type.
type ApprovalHandler struct {
	approvals approvalService
	fixedType models.ApprovalType
}

// NewApprovalHandler constructs the generic approval handler.
func NewApprovalHandler(approvals approvalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

// NewRTUTrackerApprovalHandler constructs the /rtu-tracker-approvals alias.
func NewRTUTrackerApprovalHandler(approvals approvalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals, fixedType: models.ApprovalTypeRTU}
}

// Create godoc
// @Summary Submit a site record for approval
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.CreateApprovalRequest true "Approval"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals [post]
func (h *ApprovalHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateApprovalRequest
	if !bindJSON(c, &req) {
		return
	}
	if h.fixedType != "" {
		req.ApprovalType = h.fixedType
	}
	approval, err := h.approvals.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, approval)
}

// List godoc
// @Summary Approvals the caller submitted or must decide
// @Tags Approvals
// @Produce json
// @Param status query string false "Status"
// @Param approvalType query string false "Approval type"
// @Success 200 {object} response.Envelope
// @Router /approvals [get]
func (h *ApprovalHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ApprovalListQuery
	if !bindQuery(c, &query) {
		return
	}
	if h.fixedType != "" {
		query.ApprovalType = h.fixedType
	}
	items, pagination, err := h.approvals.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Stats godoc
// @Summary Approval counts per status and type
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /approvals/stats [get]
func (h *ApprovalHandler) Stats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	stats, err := h.approvals.Stats(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Get godoc
// @Summary Approval detail
// @Tags Approvals
// @Produce json
// @Param id path string true "Approval ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /approvals/{id} [get]
func (h *ApprovalHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	approval, err := h.approvals.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// UpdateStatus godoc
// @Summary Decide a pending approval
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Approval ID"
// @Param payload body dto.UpdateApprovalStatusRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals/{id}/status [put]
func (h *ApprovalHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateApprovalStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	if h.fixedType != "" {
		existing, err := h.approvals.Get(c.Request.Context(), c.Param("id"), actor)
		if err != nil {
			response.Error(c, err)
			return
		}
		if existing.ApprovalType != h.fixedType {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "approval not found"))
			return
		}
	}
	approval, err := h.approvals.UpdateStatus(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, approval, nil)
}

// Check godoc
// @Summary Whether a pending approval exists for a row
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.CheckApprovalRequest true "Row"
// @Success 200 {object} response.Envelope
// @Router /approvals/check [post]
func (h *ApprovalHandler) Check(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CheckApprovalRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.approvals.Check(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reset godoc
// @Summary Delete approvals and clear their outcome on site records
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.ResetApprovalsRequest false "Filter"
// @Success 200 {object} response.Envelope
// @Router /approvals/reset [post]
func (h *ApprovalHandler) Reset(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ResetApprovalsRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	result, err := h.approvals.Reset(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
