package dto

import (
	"time"

	"github.com/noah-isme/das-api/internal/models"
)

// CreateApprovalRequest submits a site record for sign-off.
type CreateApprovalRequest struct {
	ActionID               *string             `json:"actionId"`
	EquipmentOfflineSiteID *string             `json:"equipmentOfflineSiteId"`
	RTUTrackerSiteID       *string             `json:"rtuTrackerSiteId"`
	ApprovalType           models.ApprovalType `json:"approvalType" validate:"required"`
	AssignedToUserID       string              `json:"assignedToUserId"`
	SubmissionRemarks      string              `json:"submissionRemarks" validate:"max=4000"`
	Photos                 []string            `json:"photos" validate:"omitempty,max=50"`
	SupportDocuments       []string            `json:"supportDocuments" validate:"omitempty,max=50"`
}

// UpdateApprovalStatusRequest resolves a pending approval.
type UpdateApprovalStatusRequest struct {
	Status  models.ApprovalStatus `json:"status" validate:"required"`
	Remarks *string               `json:"remarks" validate:"omitempty,max=4000"`
}

// CheckApprovalRequest asks whether a pending approval exists for a row.
type CheckApprovalRequest struct {
	FileID       string              `json:"fileId" validate:"required"`
	RowKey       string              `json:"rowKey" validate:"required"`
	ApprovalType models.ApprovalType `json:"approvalType" validate:"required"`
}

// CheckApprovalResponse is the answer to CheckApprovalRequest.
type CheckApprovalResponse struct {
	Exists   bool             `json:"exists"`
	Approval *models.Approval `json:"approval,omitempty"`
}

// ResetApprovalsRequest selects approvals to wipe in the admin reset.
type ResetApprovalsRequest struct {
	From         *time.Time          `json:"from"`
	To           *time.Time          `json:"to"`
	SiteCode     string              `json:"siteCode"`
	ApprovalType models.ApprovalType `json:"approvalType"`
}

// Filter converts the request to the repository filter.
func (r ResetApprovalsRequest) Filter() models.ApprovalResetFilter {
	return models.ApprovalResetFilter{From: r.From, To: r.To, SiteCode: r.SiteCode, ApprovalType: r.ApprovalType}
}

// ApprovalListQuery mirrors the list filters of the approval endpoints.
type ApprovalListQuery struct {
	Status       models.ApprovalStatus `form:"status"`
	ApprovalType models.ApprovalType   `form:"approvalType"`
	SiteCode     string                `form:"siteCode"`
	Page         int                   `form:"page"`
	PageSize     int                   `form:"page_size"`
}
