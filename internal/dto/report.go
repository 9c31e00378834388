package dto

import "github.com/noah-isme/das-api/internal/models"

// ReportQuery captures the query string of the report endpoints.
type ReportQuery struct {
	UserID     string              `form:"userId"`
	FileID     string              `form:"fileId"`
	Status     string              `form:"status"`
	CCRStatus  string              `form:"ccrStatus"`
	TaskStatus string              `form:"taskStatus"`
	SiteCode   string              `form:"siteCode"`
	Division   string              `form:"division"`
	From       string              `form:"from"`
	To         string              `form:"to"`
	Page       int                 `form:"page"`
	PageSize   int                 `form:"page_size"`
	Format     models.ReportFormat `form:"format"`
}

// ReportListResponse is the cached payload of a report page.
type ReportListResponse struct {
	Records    []models.SiteRecord `json:"records"`
	Pagination models.Pagination   `json:"pagination"`
}
