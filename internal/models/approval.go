package models

import (
	"time"

	"github.com/lib/pq"
)

// ApprovalType enumerates the three fixed sign-off workflows.
type ApprovalType string

const (
	ApprovalTypeAMC ApprovalType = "AMC Resolution Approval"
	ApprovalTypeCCR ApprovalType = "CCR Resolution Approval"
	ApprovalTypeRTU ApprovalType = "RTU Tracker Approval"
)

// Valid reports whether t is one of the fixed workflows.
func (t ApprovalType) Valid() bool {
	return t == ApprovalTypeAMC || t == ApprovalTypeCCR || t == ApprovalTypeRTU
}

// SiteCollection returns the store an approval of this type must reference.
func (t ApprovalType) SiteCollection() Collection {
	if t == ApprovalTypeRTU {
		return CollectionRTUTracker
	}
	return CollectionEquipmentOffline
}

// ApproverRole is the role that signs off an approval of this type.
func (t ApprovalType) ApproverRole() UserRole {
	switch t {
	case ApprovalTypeAMC:
		return RoleEquipment
	default:
		return RoleCCR
	}
}

// ApprovalStatus is the state of one approval instance.
type ApprovalStatus string

const (
	ApprovalStatusPending           ApprovalStatus = "Pending"
	ApprovalStatusApproved          ApprovalStatus = "Approved"
	ApprovalStatusKeptForMonitoring ApprovalStatus = "Kept for Monitoring"
	ApprovalStatusRecheckRequested  ApprovalStatus = "Recheck Requested"
)

// Valid reports whether s is a known status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusKeptForMonitoring, ApprovalStatusRecheckRequested:
		return true
	}
	return false
}

// IsTerminal reports whether s closes an approval instance.
func (s ApprovalStatus) IsTerminal() bool {
	return s.Valid() && s != ApprovalStatusPending
}

// SiteEffect returns the ccrStatus and siteObservations written back to
// the referenced site records when an approval resolves to s.
func (s ApprovalStatus) SiteEffect() (ccrStatus, observation string) {
	switch s {
	case ApprovalStatusApproved:
		return string(ApprovalStatusApproved), ObservationResolved
	case ApprovalStatusKeptForMonitoring:
		return string(ApprovalStatusKeptForMonitoring), ObservationPending
	case ApprovalStatusRecheckRequested:
		return string(ApprovalStatusRecheckRequested), ObservationPending
	default:
		return "", ObservationPending
	}
}

// AwaitingTaskStatus is the site task status while an approval is open.
func AwaitingTaskStatus(t ApprovalType) string {
	return "Awaiting " + string(t)
}

// Approval is a submission awaiting sign-off.
type Approval struct {
	ID                     string         `db:"id" json:"id"`
	ActionID               *string        `db:"action_id" json:"actionId,omitempty"`
	EquipmentOfflineSiteID *string        `db:"equipment_offline_site_id" json:"equipmentOfflineSiteId,omitempty"`
	RTUTrackerSiteID       *string        `db:"rtu_tracker_site_id" json:"rtuTrackerSiteId,omitempty"`
	SiteCode               string         `db:"site_code" json:"siteCode"`
	ApprovalType           ApprovalType   `db:"approval_type" json:"approvalType"`
	Status                 ApprovalStatus `db:"status" json:"status"`
	SubmittedByUserID      string         `db:"submitted_by_user_id" json:"submittedByUserId"`
	SubmittedByRole        UserRole       `db:"submitted_by_role" json:"submittedByRole"`
	AssignedToUserID       string         `db:"assigned_to_user_id" json:"assignedToUserId"`
	AssignedToRole         UserRole       `db:"assigned_to_role" json:"assignedToRole"`
	ApprovedByUserID       *string        `db:"approved_by_user_id" json:"approvedByUserId,omitempty"`
	ApprovedByRole         *UserRole      `db:"approved_by_role" json:"approvedByRole,omitempty"`
	ApprovedAt             *time.Time     `db:"approved_at" json:"approvedAt,omitempty"`
	ApprovalRemarks        string         `db:"approval_remarks" json:"approvalRemarks"`
	SubmissionRemarks      string         `db:"submission_remarks" json:"submissionRemarks"`
	Photos                 pq.StringArray `db:"photos" json:"photos"`
	SupportDocuments       pq.StringArray `db:"support_documents" json:"supportDocuments"`
	OriginalRowData        RowData        `db:"original_row_data" json:"originalRowData"`
	FileID                 string         `db:"file_id" json:"fileId"`
	RowKey                 string         `db:"row_key" json:"rowKey"`
	PreviousApprovalID     *string        `db:"previous_approval_id" json:"previousApprovalId,omitempty"`
	CreatedAt              time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updatedAt"`
}

// SiteRecordID returns whichever site reference is set.
func (a Approval) SiteRecordID() string {
	if a.EquipmentOfflineSiteID != nil {
		return *a.EquipmentOfflineSiteID
	}
	if a.RTUTrackerSiteID != nil {
		return *a.RTUTrackerSiteID
	}
	return ""
}

// ApprovalFilter constrains approval listings. Participant limits results to
// approvals submitted by or assigned to that user.
type ApprovalFilter struct {
	Participant  string
	Status       ApprovalStatus
	ApprovalType ApprovalType
	SiteCode     string
	Page         int
	PageSize     int
}

// ApprovalStats aggregates approvals per status and per type.
type ApprovalStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
	ByType   map[string]int `json:"byType"`
}

// ApprovalResetFilter selects approvals for the admin reset utility.
type ApprovalResetFilter struct {
	From         *time.Time
	To           *time.Time
	SiteCode     string
	ApprovalType ApprovalType
}

// ApprovalResetResult summarises a reset run.
type ApprovalResetResult struct {
	ApprovalsDeleted int `json:"approvalsDeleted"`
	SitesReverted    int `json:"sitesReverted"`
}
