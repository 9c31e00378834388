package dto

import "github.com/noah-isme/das-api/internal/models"

// SiteRecordRequest is the upsert payload for one site row. Omitted fields
// are left untouched on existing records.
type SiteRecordRequest struct {
	FileID           string         `json:"fileId" validate:"required,max=255"`
	RowKey           string         `json:"rowKey" validate:"required,max=255"`
	SiteCode         *string        `json:"siteCode" validate:"omitempty,max=64"`
	Division         *string        `json:"division"`
	OriginalRowData  models.RowData `json:"originalRowData"`
	SiteObservations *string        `json:"siteObservations"`
	CCRStatus        *string        `json:"ccrStatus"`
	TaskStatus       *string        `json:"taskStatus"`
	TypeOfIssue      *string        `json:"typeOfIssue"`
	Photos           []string       `json:"photos" validate:"omitempty,max=50"`
	PhotoMetadata    models.RowData `json:"photoMetadata"`
	Remarks          *string        `json:"remarks" validate:"omitempty,max=4000"`
	SupportDocuments []string       `json:"supportDocuments" validate:"omitempty,max=50"`
	DaysOffline      *int           `json:"daysOffline" validate:"omitempty,gte=0"`
	SavedFrom        *string        `json:"savedFrom"`
}

// Patch projects the request onto the store merge patch.
func (r SiteRecordRequest) Patch() models.SitePatch {
	return models.SitePatch{
		SiteCode:         r.SiteCode,
		Division:         r.Division,
		OriginalRowData:  r.OriginalRowData,
		SiteObservations: r.SiteObservations,
		CCRStatus:        r.CCRStatus,
		TaskStatus:       r.TaskStatus,
		TypeOfIssue:      r.TypeOfIssue,
		Photos:           r.Photos,
		PhotoMetadata:    r.PhotoMetadata,
		Remarks:          r.Remarks,
		SupportDocuments: r.SupportDocuments,
		DaysOffline:      r.DaysOffline,
		SavedFrom:        r.SavedFrom,
	}
}

// BulkSiteRecordRequest upserts many rows of one file. Items without a
// fileId inherit the top-level one.
type BulkSiteRecordRequest struct {
	FileID  string              `json:"fileId"`
	Records []SiteRecordRequest `json:"records" validate:"required,min=1,max=5000"`
}

// BulkSiteRecordResponse summarises a bulk upsert.
type BulkSiteRecordResponse struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// UpdateDaysOfflineRequest sets days_offline for rows of one file.
type UpdateDaysOfflineRequest struct {
	FileID  string                     `json:"fileId" validate:"required"`
	Updates []models.DaysOfflineUpdate `json:"updates" validate:"required,min=1,dive"`
}

// UpdateDaysOfflineResponse reports how many rows changed.
type UpdateDaysOfflineResponse struct {
	Updated int64 `json:"updated"`
}
