package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/internal/repository"
	appErrors "github.com/noah-isme/das-api/pkg/errors"
)

type siteStore interface {
	GetByID(ctx context.Context, id string) (*models.SiteRecord, error)
	FindByKey(ctx context.Context, collection models.Collection, fileID, rowKey string) (*models.SiteRecord, error)
	FindByKeyForUpdate(ctx context.Context, collection models.Collection, fileID, rowKey string) (*models.SiteRecord, error)
	Insert(ctx context.Context, rec *models.SiteRecord) error
	ForkForRouting(ctx context.Context, source *models.SiteRecord, newOwner, suffix string) (*models.SiteRecord, error)
	ApplyPatch(ctx context.Context, id string, patch models.SitePatch) error
	UpdateStatusFieldsByID(ctx context.Context, id string, patch models.StatusPatch) error
	RevertApprovalFields(ctx context.Context, ids []string) (int64, error)
	UpdateDaysOffline(ctx context.Context, collection models.Collection, fileID string, updates []models.DaysOfflineUpdate) (int64, error)
	Delete(ctx context.Context, collection models.Collection, fileID, rowKey string) error
	ListByOwner(ctx context.Context, collection models.Collection, ownerUserID, fileID string) ([]models.SiteRecord, error)
	ListByOriginalOwner(ctx context.Context, collection models.Collection, ownerUserID string) ([]models.SiteRecord, error)
	List(ctx context.Context, filter models.SiteFilter) ([]models.SiteRecord, int, error)
	ListAll(ctx context.Context, filter models.SiteFilter) ([]models.SiteRecord, error)
	FilterOptions(ctx context.Context, collection models.Collection, visibleTo string) (*models.ReportFilterOptions, error)
}

type actionStore interface {
	Create(ctx context.Context, action *models.Action) error
	GetByID(ctx context.Context, id string) (*models.Action, error)
	LinkRoutedRecord(ctx context.Context, id, routedID, routedRowKey string) error
	UpdateStatus(ctx context.Context, id string, from, to models.ActionStatus, completedAt *time.Time) error
	MarkSuperseded(ctx context.Context, id, supersededBy string, at time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.ActionFilter) ([]models.Action, int, error)
	ListBySiteRecords(ctx context.Context, ids []string) ([]models.Action, error)
}

type approvalStore interface {
	Create(ctx context.Context, approval *models.Approval) error
	GetByID(ctx context.Context, id string) (*models.Approval, error)
	Latest(ctx context.Context, fileID, rowKey string, approvalType models.ApprovalType, pendingOnly bool) (*models.Approval, error)
	Resolve(ctx context.Context, params repository.ResolveApprovalParams) error
	List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, int, error)
	Stats(ctx context.Context, participant string) (*models.ApprovalStats, error)
	ListForReset(ctx context.Context, filter models.ApprovalResetFilter) ([]models.Approval, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	ListBySiteRecords(ctx context.Context, ids []string) ([]models.Approval, error)
}

type directoryReader interface {
	FindByID(ctx context.Context, id string) (*models.DirectoryUser, error)
	FindAssignee(ctx context.Context, role models.UserRole, division, excludeID string) (*models.DirectoryUser, error)
}

// resolveAssignee picks the user a routing or approval is handed to. An
// explicit id must exist and hold role; otherwise the directory is asked for
// an active user of role, preferring division.
func resolveAssignee(ctx context.Context, dir directoryReader, explicitID string, role models.UserRole, division, excludeID string) (*models.DirectoryUser, error) {
	if explicitID = strings.TrimSpace(explicitID); explicitID != "" {
		user, err := dir.FindByID(ctx, explicitID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assigned user not found")
		}
		if err != nil {
			return nil, err
		}
		if role != "" && !strings.EqualFold(string(user.Role), string(role)) && user.Role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assigned user does not hold role "+string(role))
		}
		return user, nil
	}
	user, err := dir.FindAssignee(ctx, role, division, excludeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no active user available for role "+string(role))
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// writeAudit records an audit entry in the caller's transaction.
func writeAudit(ctx context.Context, w auditWriter, actor models.Actor, action, resource, resourceID string, oldValues, newValues interface{}) error {
	if w == nil {
		return nil
	}
	entry := &models.AuditLog{
		Action:   action,
		Resource: resource,
	}
	if actor.UserID != "" {
		entry.UserID = strPtr(actor.UserID)
	}
	if resourceID != "" {
		entry.ResourceID = strPtr(resourceID)
	}
	var err error
	if oldValues != nil {
		if entry.OldValues, err = json.Marshal(oldValues); err != nil {
			return err
		}
	}
	if newValues != nil {
		if entry.NewValues, err = json.Marshal(newValues); err != nil {
			return err
		}
	}
	return w.CreateAuditLog(ctx, entry)
}
