package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/das-api/internal/dto"
	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/pkg/response"
)

type actionService interface {
	Submit(ctx context.Context, req dto.SubmitActionRequest, actor models.Actor) (*dto.SubmitActionResponse, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateActionStatusRequest, actor models.Actor) (*models.Action, error)
	Reroute(ctx context.Context, id string, req dto.RerouteActionRequest, actor models.Actor) (*dto.RerouteActionResponse, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
	ListMine(ctx context.Context, query dto.ActionListQuery, actor models.Actor) ([]models.Action, *models.Pagination, error)
	ListRoutedByMe(ctx context.Context, query dto.ActionListQuery, actor models.Actor) ([]models.Action, *models.Pagination, error)
	ListAll(ctx context.Context, query dto.ActionListQuery, actor models.Actor) ([]models.Action, *models.Pagination, error)
}

// ActionHandler exposes the routing endpoints.
type ActionHandler struct {
	actions actionService
}

// NewActionHandler constructs handler.
func NewActionHandler(actions actionService) *ActionHandler {
	return &ActionHandler{actions: actions}
}

// Submit godoc
// @Summary Route a site row to a team
// @Description Creates the action and the routed copy of the row owned by the assignee.
// @Tags Actions
// @Accept json
// @Produce json
// @Param payload body dto.SubmitActionRequest true "Routing decision"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /actions/submit [post]
func (h *ActionHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitActionRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.actions.Submit(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// MyActions godoc
// @Summary Actions assigned to the caller
// @Tags Actions
// @Produce json
// @Param status query string false "Pending, In Progress or Completed"
// @Success 200 {object} response.Envelope
// @Router /actions/my-actions [get]
func (h *ActionHandler) MyActions(c *gin.Context) {
	h.list(c, h.actions.ListMine)
}

// MyRoutedActions godoc
// @Summary Actions the caller routed
// @Tags Actions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /actions/my-routed-actions [get]
func (h *ActionHandler) MyRoutedActions(c *gin.Context) {
	h.list(c, h.actions.ListRoutedByMe)
}

// All godoc
// @Summary Every action
// @Tags Actions
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /actions [get]
func (h *ActionHandler) All(c *gin.Context) {
	h.list(c, h.actions.ListAll)
}

type actionLister func(ctx context.Context, query dto.ActionListQuery, actor models.Actor) ([]models.Action, *models.Pagination, error)

func (h *ActionHandler) list(c *gin.Context, fn actionLister) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ActionListQuery
	if !bindQuery(c, &query) {
		return
	}
	items, pagination, err := fn(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// UpdateStatus godoc
// @Summary Move an action forward
// @Tags Actions
// @Accept json
// @Produce json
// @Param actionId path string true "Action ID"
// @Param payload body dto.UpdateActionStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /actions/{actionId}/status [put]
func (h *ActionHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateActionStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	action, err := h.actions.UpdateStatus(c.Request.Context(), c.Param("actionId"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, action, nil)
}

// Reroute godoc
// @Summary Hand an open action to another team
// @Tags Actions
// @Accept json
// @Produce json
// @Param actionId path string true "Action ID"
// @Param payload body dto.RerouteActionRequest true "New target"
// @Success 200 {object} response.Envelope
// @Router /actions/{actionId}/reroute [put]
func (h *ActionHandler) Reroute(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RerouteActionRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.actions.Reroute(c.Request.Context(), c.Param("actionId"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Delete godoc
// @Summary Delete an action
// @Tags Actions
// @Param actionId path string true "Action ID"
// @Success 204
// @Router /actions/{actionId} [delete]
func (h *ActionHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.actions.Delete(c.Request.Context(), c.Param("actionId"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
