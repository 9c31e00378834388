package models

import (
	"time"

	"github.com/lib/pq"
)

// ActionStatus tracks the progress of a routing assignment.
type ActionStatus string

const (
	ActionStatusPending    ActionStatus = "Pending"
	ActionStatusInProgress ActionStatus = "In Progress"
	ActionStatusCompleted  ActionStatus = "Completed"
)

var actionStatusRank = map[ActionStatus]int{
	ActionStatusPending:    0,
	ActionStatusInProgress: 1,
	ActionStatusCompleted:  2,
}

// Valid reports whether s is a known status.
func (s ActionStatus) Valid() bool {
	_, ok := actionStatusRank[s]
	return ok
}

// CanTransitionTo allows forward moves only.
func (s ActionStatus) CanTransitionTo(next ActionStatus) bool {
	from, ok := actionStatusRank[s]
	if !ok {
		return false
	}
	to, ok := actionStatusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// ActionPriority is the urgency attached by the assigner.
type ActionPriority string

const (
	PriorityLow    ActionPriority = "Low"
	PriorityMedium ActionPriority = "Medium"
	PriorityHigh   ActionPriority = "High"
)

// Valid reports whether p is a known priority.
func (p ActionPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Action is one routing decision.
type Action struct {
	ID                 string         `db:"id" json:"id"`
	Collection         Collection     `db:"collection" json:"collection"`
	SiteRecordID       string         `db:"site_record_id" json:"siteRecordId"`
	RoutedSiteRecordID *string        `db:"routed_site_record_id" json:"routedSiteRecordId,omitempty"`
	SourceFileID       string         `db:"source_file_id" json:"sourceFileId"`
	OriginalRowKey     string         `db:"original_row_key" json:"originalRowKey"`
	RoutedRowKey       *string        `db:"routed_row_key" json:"routedRowKey,omitempty"`
	OriginalRowIndex   *int           `db:"original_row_index" json:"originalRowIndex,omitempty"`
	SiteCode           string         `db:"site_code" json:"siteCode"`
	RowData            RowData        `db:"row_data" json:"rowData"`
	Headers            pq.StringArray `db:"headers" json:"headers"`
	Routing            string         `db:"routing" json:"routing"`
	TypeOfIssue        string         `db:"type_of_issue" json:"typeOfIssue"`
	Remarks            string         `db:"remarks" json:"remarks"`
	Photos             pq.StringArray `db:"photos" json:"photos"`
	AssignedToUserID   string         `db:"assigned_to_user_id" json:"assignedToUserId"`
	AssignedToRole     UserRole       `db:"assigned_to_role" json:"assignedToRole"`
	AssignedToDivision string         `db:"assigned_to_division" json:"assignedToDivision"`
	AssignedToVendor   string         `db:"assigned_to_vendor" json:"assignedToVendor"`
	AssignedByUserID   string         `db:"assigned_by_user_id" json:"assignedByUserId"`
	AssignedByRole     UserRole       `db:"assigned_by_role" json:"assignedByRole"`
	Status             ActionStatus   `db:"status" json:"status"`
	Priority           ActionPriority `db:"priority" json:"priority"`
	SupersededBy       *string        `db:"superseded_by" json:"supersededBy,omitempty"`
	AssignedDate       time.Time      `db:"assigned_date" json:"assignedDate"`
	CompletedDate      *time.Time     `db:"completed_date" json:"completedDate,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updatedAt"`
}

// Assignee bundles the identity an action is handed to.
type Assignee struct {
	UserID   string
	Role     UserRole
	Division string
	Vendor   string
}

// ActionFilter constrains action listings.
type ActionFilter struct {
	AssignedTo string
	AssignedBy string
	Status     ActionStatus
	Collection Collection
	SiteCode   string
	Page       int
	PageSize   int
}
