package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/das-api/internal/dto"
	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/internal/repository"
	appErrors "github.com/noah-isme/das-api/pkg/errors"
)

// ApprovalService runs the three sign-off workflows.
type ApprovalService struct {
	sites     siteStore
	actions   actionStore
	approvals approvalStore
	directory directoryReader
	tx        TxRunner
	audit     auditWriter
	cache     *CacheService
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewApprovalService constructs an ApprovalService.
func NewApprovalService(sites siteStore, actions actionStore, approvals approvalStore, directory directoryReader, tx TxRunner, audit auditWriter, cache *CacheService, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApprovalService{
		sites:     sites,
		actions:   actions,
		approvals: approvals,
		directory: directory,
		tx:        tx,
		audit:     audit,
		cache:     cache,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func nonEmpty(ptr *string) bool {
	return ptr != nil && strings.TrimSpace(*ptr) != ""
}

// siteReference checks the site reference rules of an approval type and
// returns the referenced id.
func siteReference(req dto.CreateApprovalRequest) (string, error) {
	eq, rtu := nonEmpty(req.EquipmentOfflineSiteID), nonEmpty(req.RTUTrackerSiteID)
	if eq == rtu {
		return "", appErrors.Clone(appErrors.ErrInvalidReference, "exactly one of equipmentOfflineSiteId or rtuTrackerSiteId is required")
	}
	switch req.ApprovalType.SiteCollection() {
	case models.CollectionRTUTracker:
		if !rtu {
			return "", appErrors.Clone(appErrors.ErrInvalidReference, string(req.ApprovalType)+" requires rtuTrackerSiteId")
		}
		return strings.TrimSpace(*req.RTUTrackerSiteID), nil
	default:
		if !eq {
			return "", appErrors.Clone(appErrors.ErrInvalidReference, string(req.ApprovalType)+" requires equipmentOfflineSiteId")
		}
		return strings.TrimSpace(*req.EquipmentOfflineSiteID), nil
	}
}

// Create submits a site record for approval. A second Pending approval of the
// same type for the same row is rejected with a conflict.
func (s *ApprovalService) Create(ctx context.Context, req dto.CreateApprovalRequest, actor models.Actor) (*models.Approval, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid approval payload")
	}
	if !req.ApprovalType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown approval type "+string(req.ApprovalType))
	}
	siteID, err := siteReference(req)
	if err != nil {
		return nil, err
	}

	var approval *models.Approval
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		site, err := s.sites.GetByID(ctx, siteID)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidReference, "referenced site record does not exist")
		}
		if err != nil {
			return err
		}
		if site.Collection != req.ApprovalType.SiteCollection() {
			return appErrors.Clone(appErrors.ErrInvalidReference, "referenced site record belongs to another collection")
		}
		if !actor.IsAdmin() && !site.VisibleTo(actor.UserID) {
			return appErrors.Clone(appErrors.ErrForbidden, "record belongs to another user")
		}
		if nonEmpty(req.ActionID) {
			if _, err := s.actions.GetByID(ctx, *req.ActionID); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrInvalidReference, "referenced action does not exist")
				}
				return err
			}
		}

		assignee, err := resolveAssignee(ctx, s.directory, req.AssignedToUserID, req.ApprovalType.ApproverRole(), site.Division, actor.UserID)
		if err != nil {
			return err
		}

		approval = &models.Approval{
			ActionID:          req.ActionID,
			SiteCode:          site.SiteCode,
			ApprovalType:      req.ApprovalType,
			Status:            models.ApprovalStatusPending,
			SubmittedByUserID: actor.UserID,
			SubmittedByRole:   actor.Role,
			AssignedToUserID:  assignee.ID,
			AssignedToRole:    req.ApprovalType.ApproverRole(),
			SubmissionRemarks: req.SubmissionRemarks,
			Photos:            req.Photos,
			SupportDocuments:  req.SupportDocuments,
			OriginalRowData:   site.OriginalRowData,
			FileID:            site.FileID,
			RowKey:            site.RowKey,
		}
		if site.Collection == models.CollectionRTUTracker {
			approval.RTUTrackerSiteID = strPtr(site.ID)
		} else {
			approval.EquipmentOfflineSiteID = strPtr(site.ID)
		}

		prev, err := s.approvals.Latest(ctx, site.FileID, site.RowKey, req.ApprovalType, false)
		switch {
		case err == nil && prev.Status == models.ApprovalStatusRecheckRequested:
			approval.PreviousApprovalID = strPtr(prev.ID)
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return err
		}

		if err := s.approvals.Create(ctx, approval); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return appErrors.Clone(appErrors.ErrConflict, "an approval of this type is already pending for this record")
			}
			return err
		}
		return s.sites.UpdateStatusFieldsByID(ctx, site.ID, models.StatusPatch{TaskStatus: strPtr(models.AwaitingTaskStatus(req.ApprovalType))})
	})
	if err != nil {
		return nil, writeFailure(s.logger, "create approval", err, zap.String("site_record_id", siteID), zap.String("approval_type", string(req.ApprovalType)))
	}
	s.cache.InvalidateReports(ctx, req.ApprovalType.SiteCollection())
	return approval, nil
}

func canDecide(approval *models.Approval, actor models.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	if approval.AssignedToUserID != actor.UserID {
		return false
	}
	return approval.AssignedToRole == "" || actor.HasRole(approval.AssignedToRole)
}

// DecisionTaskStatus is the task status left on a record after a decision.
func DecisionTaskStatus(t models.ApprovalType, status models.ApprovalStatus) string {
	return string(t) + ": " + string(status)
}

// UpdateStatus resolves a Pending approval and writes the outcome onto the
// referenced record and, for routed copies, onto the root original.
func (s *ApprovalService) UpdateStatus(ctx context.Context, id string, req dto.UpdateApprovalStatusRequest, actor models.Actor) (*models.Approval, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid approval status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown approval status "+string(req.Status))
	}
	if !req.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "approvals can only move from Pending to a final status")
	}

	var approval *models.Approval
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		approval, err = s.approvals.GetByID(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "approval not found")
		}
		if err != nil {
			return err
		}
		if approval.Status != models.ApprovalStatusPending {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "approval is already "+string(approval.Status))
		}
		if !canDecide(approval, actor) {
			return appErrors.Clone(appErrors.ErrForbidden, "only the assigned approver or an admin can decide this approval")
		}

		now := s.now()
		params := repository.ResolveApprovalParams{
			ID:       approval.ID,
			Status:   req.Status,
			UserID:   actor.UserID,
			Role:     actor.Role,
			Remarks:  deref(req.Remarks),
			Resolved: now,
		}
		if err := s.approvals.Resolve(ctx, params); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "approval was decided concurrently")
			}
			return err
		}
		approval.Status = req.Status
		approval.ApprovedByUserID = strPtr(actor.UserID)
		role := actor.Role
		approval.ApprovedByRole = &role
		approval.ApprovedAt = &now
		approval.ApprovalRemarks = params.Remarks

		if err := s.propagate(ctx, approval, req.Remarks); err != nil {
			return err
		}
		return writeAudit(ctx, s.audit, actor, models.AuditActionApprovalDecision, models.AuditResourceApprovals, approval.ID,
			map[string]string{"status": string(models.ApprovalStatusPending)},
			map[string]string{"status": string(req.Status), "remarks": params.Remarks})
	})
	if err != nil {
		return nil, writeFailure(s.logger, "update approval status", err, zap.String("approval_id", id), zap.String("status", string(req.Status)))
	}
	s.metrics.RecordApprovalTransition(string(req.Status))
	s.cache.InvalidateReports(ctx, approval.ApprovalType.SiteCollection())
	return approval, nil
}

func (s *ApprovalService) propagate(ctx context.Context, approval *models.Approval, remarks *string) error {
	site, err := s.sites.GetByID(ctx, approval.SiteRecordID())
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrInvalidReference, "referenced site record no longer exists")
	}
	if err != nil {
		return err
	}
	ccr, observation := approval.Status.SiteEffect()
	patch := models.StatusPatch{
		CCRStatus:        strPtr(ccr),
		SiteObservations: strPtr(observation),
		TaskStatus:       strPtr(DecisionTaskStatus(approval.ApprovalType, approval.Status)),
	}
	if remarks != nil {
		patch.Remarks = remarks
	}
	if err := s.sites.UpdateStatusFieldsByID(ctx, site.ID, patch); err != nil {
		return err
	}
	if root := site.RootRecordID(); site.IsRouted() && root != site.ID {
		if err := s.sites.UpdateStatusFieldsByID(ctx, root, patch); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	return nil
}

// Reset deletes the matching approvals and clears the approval outcome of
// the records they touched. Admin only.
func (s *ApprovalService) Reset(ctx context.Context, req dto.ResetApprovalsRequest, actor models.Actor) (*models.ApprovalResetResult, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can reset approvals")
	}
	if req.ApprovalType != "" && !req.ApprovalType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown approval type "+string(req.ApprovalType))
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}

	result := &models.ApprovalResetResult{}
	touched := map[models.Collection]bool{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		matches, err := s.approvals.ListForReset(ctx, req.Filter())
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(matches))
		siteIDs := make([]string, 0, len(matches))
		seen := map[string]bool{}
		addSite := func(id string) {
			if id != "" && !seen[id] {
				seen[id] = true
				siteIDs = append(siteIDs, id)
			}
		}
		for _, a := range matches {
			ids = append(ids, a.ID)
			touched[a.ApprovalType.SiteCollection()] = true
			siteID := a.SiteRecordID()
			if seen[siteID] {
				continue
			}
			addSite(siteID)
			site, err := s.sites.GetByID(ctx, siteID)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			if site.IsRouted() {
				addSite(site.RootRecordID())
			}
		}

		deleted, err := s.approvals.DeleteByIDs(ctx, ids)
		if err != nil {
			return err
		}
		reverted, err := s.sites.RevertApprovalFields(ctx, siteIDs)
		if err != nil {
			return err
		}
		result.ApprovalsDeleted, result.SitesReverted = int(deleted), int(reverted)
		return writeAudit(ctx, s.audit, actor, models.AuditActionApprovalReset, models.AuditResourceApprovals, "", nil, map[string]interface{}{
			"filter":           req,
			"approvalsDeleted": result.ApprovalsDeleted,
			"sitesReverted":    result.SitesReverted,
		})
	})
	if err != nil {
		return nil, writeFailure(s.logger, "reset approvals", err, zap.String("admin", actor.UserID))
	}
	for collection := range touched {
		s.cache.InvalidateReports(ctx, collection)
	}
	s.logger.Info("approvals reset",
		zap.String("admin", actor.UserID),
		zap.Int("approvals_deleted", result.ApprovalsDeleted),
		zap.Int("sites_reverted", result.SitesReverted))
	return result, nil
}

// Check reports whether a Pending approval exists for the row. Admin only.
func (s *ApprovalService) Check(ctx context.Context, req dto.CheckApprovalRequest, actor models.Actor) (*dto.CheckApprovalResponse, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can check approvals")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid check payload")
	}
	if !req.ApprovalType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown approval type "+string(req.ApprovalType))
	}
	approval, err := readRetry(ctx, s.metrics, "approval_check", func(ctx context.Context) (*models.Approval, error) {
		return s.approvals.Latest(ctx, req.FileID, req.RowKey, req.ApprovalType, true)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return &dto.CheckApprovalResponse{Exists: false}, nil
	}
	if err != nil {
		return nil, readFailure(s.logger, "check approval", err)
	}
	return &dto.CheckApprovalResponse{Exists: true, Approval: approval}, nil
}

// Get returns an approval visible to the actor.
func (s *ApprovalService) Get(ctx context.Context, id string, actor models.Actor) (*models.Approval, error) {
	approval, err := readRetry(ctx, s.metrics, "approval_get", func(ctx context.Context) (*models.Approval, error) {
		return s.approvals.GetByID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
		}
		return nil, readFailure(s.logger, "get approval", err)
	}
	if !actor.IsAdmin() && approval.SubmittedByUserID != actor.UserID && approval.AssignedToUserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "approval belongs to other users")
	}
	return approval, nil
}

// List returns approvals the actor takes part in; admins see all.
func (s *ApprovalService) List(ctx context.Context, query dto.ApprovalListQuery, actor models.Actor) ([]models.Approval, *models.Pagination, error) {
	if query.Status != "" && !query.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown approval status "+string(query.Status))
	}
	if query.ApprovalType != "" && !query.ApprovalType.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown approval type "+string(query.ApprovalType))
	}
	page, size := models.NormalizePage(query.Page, query.PageSize)
	filter := models.ApprovalFilter{
		Status:       query.Status,
		ApprovalType: query.ApprovalType,
		SiteCode:     query.SiteCode,
		Page:         page,
		PageSize:     size,
	}
	if !actor.IsAdmin() {
		filter.Participant = actor.UserID
	}
	type result struct {
		items []models.Approval
		total int
	}
	out, err := readRetry(ctx, s.metrics, "approval_list", func(ctx context.Context) (result, error) {
		items, total, err := s.approvals.List(ctx, filter)
		return result{items: items, total: total}, err
	})
	if err != nil {
		return nil, nil, readFailure(s.logger, "list approvals", err)
	}
	if out.items == nil {
		out.items = []models.Approval{}
	}
	return out.items, &models.Pagination{Page: page, PageSize: size, TotalCount: out.total}, nil
}

// Stats counts approvals per status and per type within the actor's scope.
func (s *ApprovalService) Stats(ctx context.Context, actor models.Actor) (*models.ApprovalStats, error) {
	participant := actor.UserID
	if actor.IsAdmin() {
		participant = ""
	}
	stats, err := readRetry(ctx, s.metrics, "approval_stats", func(ctx context.Context) (*models.ApprovalStats, error) {
		return s.approvals.Stats(ctx, participant)
	})
	if err != nil {
		return nil, readFailure(s.logger, "approval stats", err)
	}
	return stats, nil
}
