package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/das-api/internal/dto"
	"github.com/noah-isme/das-api/internal/middleware"
	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/internal/service"
	"github.com/noah-isme/das-api/pkg/response"
)

type siteService interface {
	Upsert(ctx context.Context, collection models.Collection, req dto.SiteRecordRequest, actor models.Actor) (*models.SiteRecord, bool, error)
	BulkUpsert(ctx context.Context, collection models.Collection, req dto.BulkSiteRecordRequest, actor models.Actor) (*dto.BulkSiteRecordResponse, error)
	ListByFile(ctx context.Context, collection models.Collection, fileID string, actor models.Actor) ([]models.SiteRecord, error)
	UpdateDaysOffline(ctx context.Context, collection models.Collection, req dto.UpdateDaysOfflineRequest) (*dto.UpdateDaysOfflineResponse, error)
	Delete(ctx context.Context, collection models.Collection, fileID, rowKey string, actor models.Actor) error
}

type reportService interface {
	Reports(ctx context.Context, collection models.Collection, query dto.ReportQuery, actor models.Actor) (*dto.ReportListResponse, bool, error)
	LocalRemote(ctx context.Context, collection models.Collection, query dto.ReportQuery, actor models.Actor) (*models.LocalRemoteReport, bool, error)
	Details(ctx context.Context, collection models.Collection, siteCode string, actor models.Actor) (*models.SiteDetails, error)
	Filters(ctx context.Context, collection models.Collection, actor models.Actor) (*models.ReportFilterOptions, bool, error)
	Export(ctx context.Context, collection models.Collection, query dto.ReportQuery, actor models.Actor) (*service.ExportFile, error)
}

// SiteHandler serves the site record endpoints of one collection.
type SiteHandler struct {
	collection models.Collection
	sites      siteService
	reports    reportService
}

// NewSiteHandler constructs a handler bound to collection.
func NewSiteHandler(collection models.Collection, sites siteService, reports reportService) *SiteHandler {
	return &SiteHandler{collection: collection, sites: sites, reports: reports}
}

// Upsert godoc
// @Summary Create or merge a site record
// @Tags Sites
// @Accept json
// @Produce json
// @Param payload body dto.SiteRecordRequest true "Site record"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /equipment-offline-sites [post]
func (h *SiteHandler) Upsert(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SiteRecordRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, created, err := h.sites.Upsert(c.Request.Context(), h.collection, req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, rec)
		return
	}
	response.JSON(c, http.StatusOK, rec, nil)
}

// Bulk godoc
// @Summary Upsert many rows of one file atomically
// @Tags Sites
// @Accept json
// @Produce json
// @Param payload body dto.BulkSiteRecordRequest true "Rows"
// @Success 200 {object} response.Envelope
// @Router /equipment-offline-sites/bulk [post]
func (h *SiteHandler) Bulk(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.BulkSiteRecordRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.sites.BulkUpsert(c.Request.Context(), h.collection, req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListByFile godoc
// @Summary List the caller's records of a file
// @Tags Sites
// @Produce json
// @Param fileId path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /equipment-offline-sites/file/{fileId} [get]
func (h *SiteHandler) ListByFile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	records, err := h.sites.ListByFile(c.Request.Context(), h.collection, c.Param("fileId"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Reports godoc
// @Summary Visible site records, optionally exported
// @Tags Reports
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param userId query string false "User whose records to report (Admin/CCR)"
// @Param status query string false "Site observations"
// @Param ccrStatus query string false "CCR status"
// @Param siteCode query string false "Site code"
// @Param division query string false "Division"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {object} response.Envelope
// @Router /equipment-offline-sites/reports [get]
func (h *SiteHandler) Reports(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ReportQuery
	if !bindQuery(c, &query) {
		return
	}
	if query.Format != "" && query.Format != models.ReportFormatJSON {
		file, err := h.reports.Export(c.Request.Context(), h.collection, query, actor)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.File(c, file.Filename, file.ContentType, file.Body)
		return
	}
	result, hit, err := h.reports.Reports(c.Request.Context(), h.collection, query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result.Records, &result.Pagination, middleware.ExtractMeta(c))
}

// LocalRemote godoc
// @Summary Device status cross-reference
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /equipment-offline-sites/reports/local-remote [get]
func (h *SiteHandler) LocalRemote(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ReportQuery
	if !bindQuery(c, &query) {
		return
	}
	report, hit, err := h.reports.LocalRemote(c.Request.Context(), h.collection, query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, report, nil, middleware.ExtractMeta(c))
}

// Details godoc
// @Summary Every visible record of a site with its actions and approvals
// @Tags Reports
// @Produce json
// @Param siteCode query string true "Site code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /equipment-offline-sites/reports/details [get]
func (h *SiteHandler) Details(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	details, err := h.reports.Details(c.Request.Context(), h.collection, c.Query("siteCode"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// Filters godoc
// @Summary Distinct report filter values
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /equipment-offline-sites/reports/filters [get]
func (h *SiteHandler) Filters(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	opts, hit, err := h.reports.Filters(c.Request.Context(), h.collection, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, opts, nil, middleware.ExtractMeta(c))
}

// UpdateDaysOffline godoc
// @Summary Set days offline for rows of a file
// @Tags Sites
// @Accept json
// @Produce json
// @Param payload body dto.UpdateDaysOfflineRequest true "Updates"
// @Success 200 {object} response.Envelope
// @Router /equipment-offline-sites/update-days-offline [put]
func (h *SiteHandler) UpdateDaysOffline(c *gin.Context) {
	if _, ok := actorFromContext(c); !ok {
		return
	}
	var req dto.UpdateDaysOfflineRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.sites.UpdateDaysOffline(c.Request.Context(), h.collection, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a site record
// @Tags Sites
// @Param fileId path string true "File ID"
// @Param rowKey path string true "Row key"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /equipment-offline-sites/{fileId}/{rowKey} [delete]
func (h *SiteHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.sites.Delete(c.Request.Context(), h.collection, c.Param("fileId"), c.Param("rowKey"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
