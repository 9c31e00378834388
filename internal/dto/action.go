package dto

import "github.com/noah-isme/das-api/internal/models"

// SubmitActionRequest routes one site row to a team.
type SubmitActionRequest struct {
	Collection       models.Collection     `json:"collection"`
	FileID           string                `json:"fileId" validate:"required,max=255"`
	RowKey           string                `json:"rowKey" validate:"required,max=255"`
	SiteCode         string                `json:"siteCode" validate:"required,max=64"`
	RowIndex         *int                  `json:"rowIndex" validate:"omitempty,gte=0"`
	RowData          models.RowData        `json:"rowData" validate:"required"`
	Headers          []string              `json:"headers"`
	Routing          string                `json:"routing" validate:"required"`
	TypeOfIssue      string                `json:"typeOfIssue" validate:"required"`
	Remarks          string                `json:"remarks" validate:"max=4000"`
	Photo            string                `json:"photo"`
	Photos           []string              `json:"photos" validate:"omitempty,max=50"`
	Priority         models.ActionPriority `json:"priority"`
	AssignedToUserID string                `json:"assignedToUserId"`
	Division         string                `json:"division"`
}

// AllPhotos merges the single photo field into the photo list.
func (r SubmitActionRequest) AllPhotos() []string {
	photos := append([]string(nil), r.Photos...)
	if r.Photo != "" {
		photos = append(photos, r.Photo)
	}
	return photos
}

// SubmitActionResponse returns the created action and its routed record.
type SubmitActionResponse struct {
	Action           *models.Action     `json:"action"`
	SourceRecord     *models.SiteRecord `json:"sourceRecord"`
	RoutedSiteRecord *models.SiteRecord `json:"routedSiteRecord"`
}

// UpdateActionStatusRequest moves an action forward.
type UpdateActionStatusRequest struct {
	Status models.ActionStatus `json:"status" validate:"required"`
}

// RerouteActionRequest hands an open action to another team.
type RerouteActionRequest struct {
	Routing          string                `json:"routing" validate:"required"`
	AssignedToUserID string                `json:"assignedToUserId"`
	Remarks          *string               `json:"remarks" validate:"omitempty,max=4000"`
	Priority         models.ActionPriority `json:"priority"`
}

// RerouteActionResponse returns both sides of the hand-off.
type RerouteActionResponse struct {
	Previous         *models.Action     `json:"previous"`
	Action           *models.Action     `json:"action"`
	RoutedSiteRecord *models.SiteRecord `json:"routedSiteRecord"`
}

// ActionListQuery mirrors the list filters of the action endpoints.
type ActionListQuery struct {
	Status     models.ActionStatus `form:"status"`
	Collection models.Collection   `form:"collection"`
	SiteCode   string              `form:"siteCode"`
	Page       int                 `form:"page"`
	PageSize   int                 `form:"page_size"`
}
