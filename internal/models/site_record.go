package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// Collection names the logical store a site record belongs to.
type Collection string

const (
	CollectionEquipmentOffline Collection = "EQUIPMENT_OFFLINE"
	CollectionRTUTracker       Collection = "RTU_TRACKER"
)

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	return c == CollectionEquipmentOffline || c == CollectionRTUTracker
}

// RecordKind discriminates originals from routed copies.
type RecordKind string

const (
	KindOriginal RecordKind = "ORIGINAL"
	KindRouted   RecordKind = "ROUTED"
)

// Site observation values.
const (
	ObservationNone     = ""
	ObservationPending  = "Pending"
	ObservationResolved = "Resolved"
)

// RoutedMarker separates a source row key from the fork suffix.
const RoutedMarker = "-routed-"

// RoutedRowKey derives the row key of a fork.
func RoutedRowKey(sourceRowKey, suffix string) string {
	return sourceRowKey + RoutedMarker + suffix
}

// NormalizeSiteCode upper-cases and trims a site code.
func NormalizeSiteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SiteRecord is one inspected site row per (collection, file, row key).
type SiteRecord struct {
	ID                  string         `db:"id" json:"id"`
	Collection          Collection     `db:"collection" json:"collection"`
	FileID              string         `db:"file_id" json:"fileId"`
	RowKey              string         `db:"row_key" json:"rowKey"`
	Kind                RecordKind     `db:"kind" json:"kind"`
	ParentID            *string        `db:"parent_id" json:"parentId,omitempty"`
	RootID              *string        `db:"root_id" json:"rootId,omitempty"`
	SiteCode            string         `db:"site_code" json:"siteCode"`
	OwnerUserID         string         `db:"owner_user_id" json:"userId"`
	OriginalOwnerUserID *string        `db:"original_owner_user_id" json:"originalUserId,omitempty"`
	Division            string         `db:"division" json:"division"`
	OriginalRowData     RowData        `db:"original_row_data" json:"originalRowData"`
	SiteObservations    string         `db:"site_observations" json:"siteObservations"`
	CCRStatus           string         `db:"ccr_status" json:"ccrStatus"`
	TaskStatus          string         `db:"task_status" json:"taskStatus"`
	TypeOfIssue         string         `db:"type_of_issue" json:"typeOfIssue"`
	Photos              pq.StringArray `db:"photos" json:"photos"`
	PhotoMetadata       RowData        `db:"photo_metadata" json:"photoMetadata,omitempty"`
	Remarks             string         `db:"remarks" json:"remarks"`
	SupportDocuments    pq.StringArray `db:"support_documents" json:"supportDocuments"`
	DaysOffline         *int           `db:"days_offline" json:"daysOffline,omitempty"`
	SavedFrom           string         `db:"saved_from" json:"savedFrom"`
	LastSyncedAt        *time.Time     `db:"last_synced_at" json:"lastSyncedAt,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updatedAt"`
}

// IsRouted reports whether the record is a fork.
func (s SiteRecord) IsRouted() bool {
	return s.Kind == KindRouted
}

// FirstOwner resolves the very first owner in the fork chain.
func (s SiteRecord) FirstOwner() string {
	if s.OriginalOwnerUserID != nil && *s.OriginalOwnerUserID != "" {
		return *s.OriginalOwnerUserID
	}
	return s.OwnerUserID
}

// RootRecordID returns the id of the original this record descends from.
func (s SiteRecord) RootRecordID() string {
	if s.RootID != nil && *s.RootID != "" {
		return *s.RootID
	}
	return s.ID
}

// VisibleTo implements the dual-key visibility rule.
func (s SiteRecord) VisibleTo(userID string) bool {
	if userID == "" {
		return false
	}
	return s.OwnerUserID == userID || (s.OriginalOwnerUserID != nil && *s.OriginalOwnerUserID == userID)
}

// Fork derives the routed copy handed to newOwner. The first owner and the
// root original survive any number of hops.
func (s SiteRecord) Fork(newOwner, suffix string) SiteRecord {
	firstOwner := s.FirstOwner()
	rootID := s.RootRecordID()
	parentID := s.ID

	fork := s
	fork.ID = ""
	fork.Kind = KindRouted
	fork.RowKey = RoutedRowKey(s.RowKey, suffix)
	fork.ParentID = &parentID
	fork.RootID = &rootID
	fork.OwnerUserID = newOwner
	fork.OriginalOwnerUserID = &firstOwner
	fork.Photos = append([]string(nil), s.Photos...)
	fork.SupportDocuments = append([]string(nil), s.SupportDocuments...)
	fork.OriginalRowData = cloneRow(s.OriginalRowData)
	fork.PhotoMetadata = cloneRow(s.PhotoMetadata)
	fork.CreatedAt = time.Time{}
	fork.UpdatedAt = time.Time{}
	return fork
}

func cloneRow(row RowData) RowData {
	if row == nil {
		return nil
	}
	out := make(RowData, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// SitePatch carries the optional fields of an upsert. Nil fields are left
// untouched on existing records.
type SitePatch struct {
	SiteCode         *string
	Division         *string
	OriginalRowData  RowData
	SiteObservations *string
	CCRStatus        *string
	TaskStatus       *string
	TypeOfIssue      *string
	Photos           []string
	PhotoMetadata    RowData
	Remarks          *string
	SupportDocuments []string
	DaysOffline      *int
	SavedFrom        *string
}

// StatusPatch is the partial update applied by the workflow engines.
type StatusPatch struct {
	SiteObservations *string
	CCRStatus        *string
	TaskStatus       *string
	TypeOfIssue      *string
	Remarks          *string
	Photos           []string
}

// IsEmpty reports whether no field is set.
func (p StatusPatch) IsEmpty() bool {
	return p.SiteObservations == nil && p.CCRStatus == nil && p.TaskStatus == nil && p.TypeOfIssue == nil && p.Remarks == nil && p.Photos == nil
}

// SiteFilter constrains site record listings.
type SiteFilter struct {
	Collection  Collection
	FileID      string
	VisibleTo   string
	OwnerUserID string
	SiteCode    string
	Division    string
	Observation string
	CCRStatus   string
	TaskStatus  string
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}

// DaysOfflineUpdate sets days_offline for one row.
type DaysOfflineUpdate struct {
	RowKey      string `json:"rowKey" validate:"required"`
	DaysOffline int    `json:"daysOffline" validate:"gte=0"`
}
