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

// RoutingConfig tunes fork creation.
type RoutingConfig struct {
	// ForkRetries is how many fresh suffixes are tried after a collision.
	ForkRetries int
	Suffix      SuffixFunc
}

// ActionService routes site rows to teams by forking them.
type ActionService struct {
	sites     siteStore
	actions   actionStore
	directory directoryReader
	tx        TxRunner
	audit     auditWriter
	cache     *CacheService
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       RoutingConfig
	now       func() time.Time
}

// NewActionService constructs an ActionService.
func NewActionService(sites siteStore, actions actionStore, directory directoryReader, tx TxRunner, audit auditWriter, cache *CacheService, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg RoutingConfig) *ActionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.Suffix == nil {
		cfg.Suffix = RandomSuffix(3)
	}
	if cfg.ForkRetries < 0 {
		cfg.ForkRetries = 0
	}
	return &ActionService{
		sites:     sites,
		actions:   actions,
		directory: directory,
		tx:        tx,
		audit:     audit,
		cache:     cache,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RoutedTaskStatus is the task status shown while a team holds a record.
func RoutedTaskStatus(team string) string {
	return "Routed to " + team
}

func actionTaskStatus(action *models.Action) string {
	switch action.Status {
	case models.ActionStatusInProgress:
		return "In Progress with " + action.Routing
	case models.ActionStatusCompleted:
		return "Completed by " + action.Routing
	default:
		return RoutedTaskStatus(action.Routing)
	}
}

// Submit records a routing decision: it creates the Action and the routed
// copy of the source record in one transaction.
func (s *ActionService) Submit(ctx context.Context, req dto.SubmitActionRequest, actor models.Actor) (*dto.SubmitActionResponse, error) {
	if req.Collection == "" {
		req.Collection = models.CollectionEquipmentOffline
	}
	role, err := s.validateSubmit(req)
	if err != nil {
		s.metrics.RecordSubmission(SubmissionRejected)
		return nil, err
	}

	resp := &dto.SubmitActionResponse{}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		source, err := s.loadOrCreateSource(ctx, req, actor)
		if err != nil {
			return err
		}
		if !canRoute(source, actor) {
			return appErrors.Clone(appErrors.ErrForbidden, "only the record owner can route it")
		}

		division := req.Division
		if division == "" {
			division = source.Division
		}
		assignee, err := resolveAssignee(ctx, s.directory, req.AssignedToUserID, role, division, actor.UserID)
		if err != nil {
			return err
		}
		if assignee.ID == actor.UserID {
			return appErrors.Clone(appErrors.ErrValidation, "an action cannot be assigned to its submitter")
		}

		action := &models.Action{
			Collection:         req.Collection,
			SiteRecordID:       source.ID,
			SourceFileID:       source.FileID,
			OriginalRowKey:     source.RowKey,
			OriginalRowIndex:   req.RowIndex,
			SiteCode:           models.NormalizeSiteCode(req.SiteCode),
			RowData:            req.RowData,
			Headers:            req.Headers,
			Routing:            req.Routing,
			TypeOfIssue:        req.TypeOfIssue,
			Remarks:            req.Remarks,
			Photos:             req.AllPhotos(),
			AssignedToUserID:   assignee.ID,
			AssignedToRole:     assignee.Role,
			AssignedToDivision: assignee.Division,
			AssignedToVendor:   assignee.Vendor,
			AssignedByUserID:   actor.UserID,
			AssignedByRole:     actor.Role,
			Status:             models.ActionStatusPending,
			Priority:           req.Priority,
			AssignedDate:       s.now(),
		}
		if err := s.actions.Create(ctx, action); err != nil {
			return err
		}

		source.TaskStatus = RoutedTaskStatus(req.Routing)
		if req.TypeOfIssue != "" {
			source.TypeOfIssue = req.TypeOfIssue
		}
		fork, err := s.fork(ctx, source, assignee.ID)
		if err != nil {
			return err
		}
		if err := s.actions.LinkRoutedRecord(ctx, action.ID, fork.ID, fork.RowKey); err != nil {
			return err
		}
		action.RoutedSiteRecordID = strPtr(fork.ID)
		action.RoutedRowKey = strPtr(fork.RowKey)

		patch := models.StatusPatch{TaskStatus: strPtr(source.TaskStatus)}
		if req.TypeOfIssue != "" {
			patch.TypeOfIssue = strPtr(source.TypeOfIssue)
		}
		if err := s.sites.UpdateStatusFieldsByID(ctx, source.ID, patch); err != nil {
			return err
		}
		resp.Action, resp.SourceRecord, resp.RoutedSiteRecord = action, source, fork
		return nil
	})
	if err != nil {
		if appErrors.IsCode(err, appErrors.ErrValidation) || appErrors.IsCode(err, appErrors.ErrForbidden) {
			s.metrics.RecordSubmission(SubmissionRejected)
		} else {
			s.metrics.RecordSubmission(SubmissionFailed)
		}
		return nil, writeFailure(s.logger, "submit routing", err,
			zap.String("file_id", req.FileID), zap.String("row_key", req.RowKey), zap.String("routing", req.Routing), zap.String("actor", actor.UserID))
	}
	s.metrics.RecordSubmission(SubmissionRouted)
	s.cache.InvalidateReports(ctx, req.Collection)
	s.logger.Info("site record routed",
		zap.String("action_id", resp.Action.ID),
		zap.String("routed_row_key", resp.RoutedSiteRecord.RowKey),
		zap.String("assigned_to", resp.Action.AssignedToUserID))
	return resp, nil
}

func (s *ActionService) validateSubmit(req dto.SubmitActionRequest) (models.UserRole, error) {
	if !req.Collection.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown collection")
	}
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.WrapAs(appErrors.ErrValidation, err, "invalid routing payload")
	}
	if strings.TrimSpace(req.SiteCode) == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "siteCode is required")
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, "priority must be Low, Medium or High")
	}
	role, ok := models.RoleForTeam(req.Routing)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown routing team "+req.Routing)
	}
	return role, nil
}

// loadOrCreateSource locks the source record, creating it from the submitted
// row when the client routes a row that was never saved.
func (s *ActionService) loadOrCreateSource(ctx context.Context, req dto.SubmitActionRequest, actor models.Actor) (*models.SiteRecord, error) {
	source, err := s.sites.FindByKeyForUpdate(ctx, req.Collection, req.FileID, req.RowKey)
	if err == nil {
		if source.SiteCode != "" && models.NormalizeSiteCode(source.SiteCode) != models.NormalizeSiteCode(req.SiteCode) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "site code does not match the existing record")
		}
		return source, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	division := req.Division
	if division == "" {
		division = actor.Division
	}
	rec := &models.SiteRecord{
		Collection:       req.Collection,
		FileID:           req.FileID,
		RowKey:           req.RowKey,
		Kind:             models.KindOriginal,
		SiteCode:         req.SiteCode,
		OwnerUserID:      actor.UserID,
		Division:         division,
		OriginalRowData:  req.RowData,
		SiteObservations: models.ObservationPending,
		TypeOfIssue:      req.TypeOfIssue,
		Photos:           req.AllPhotos(),
		Remarks:          req.Remarks,
		SavedFrom:        "routing",
	}
	if err := s.sites.Insert(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "record was created concurrently, please retry")
		}
		return nil, err
	}
	return rec, nil
}

func canRoute(source *models.SiteRecord, actor models.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	return source.OwnerUserID == actor.UserID || source.FirstOwner() == actor.UserID
}

// fork inserts the routed copy, drawing a fresh suffix on collision.
func (s *ActionService) fork(ctx context.Context, source *models.SiteRecord, owner string) (*models.SiteRecord, error) {
	for attempt := 0; attempt <= s.cfg.ForkRetries; attempt++ {
		suffix, err := s.cfg.Suffix()
		if err != nil {
			return nil, err
		}
		fork, err := s.sites.ForkForRouting(ctx, source, owner, suffix)
		if err == nil {
			return fork, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, err
		}
		s.metrics.RecordForkCollision()
		s.logger.Warn("routed row key collision", zap.String("row_key", models.RoutedRowKey(source.RowKey, suffix)))
	}
	return nil, appErrors.Clone(appErrors.ErrConflict, "could not allocate a routed record key, please retry")
}

func (s *ActionService) lockAction(ctx context.Context, id string) (*models.Action, error) {
	action, err := s.actions.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "action not found")
	}
	return action, err
}

func canManageAction(action *models.Action, actor models.Actor) bool {
	return actor.IsAdmin() || action.AssignedToUserID == actor.UserID || action.AssignedByUserID == actor.UserID
}

// UpdateStatus moves an action forward and refreshes the task status of the
// records it touches.
func (s *ActionService) UpdateStatus(ctx context.Context, id string, req dto.UpdateActionStatusRequest, actor models.Actor) (*models.Action, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be Pending, In Progress or Completed")
	}

	var updated *models.Action
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		action, err := s.lockAction(ctx, id)
		if err != nil {
			return err
		}
		if !canManageAction(action, actor) {
			return appErrors.Clone(appErrors.ErrForbidden, "only the assignee, the assigner or an admin can update this action")
		}
		if !action.Status.CanTransitionTo(req.Status) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move action from "+string(action.Status)+" to "+string(req.Status))
		}
		var completedAt *time.Time
		if req.Status == models.ActionStatusCompleted {
			now := s.now()
			completedAt = &now
		}
		if err := s.actions.UpdateStatus(ctx, id, action.Status, req.Status, completedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "action status changed concurrently")
			}
			return err
		}
		action.Status = req.Status
		action.CompletedDate = completedAt

		patch := models.StatusPatch{TaskStatus: strPtr(actionTaskStatus(action))}
		if err := s.sites.UpdateStatusFieldsByID(ctx, action.SiteRecordID, patch); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if action.RoutedSiteRecordID != nil {
			if err := s.sites.UpdateStatusFieldsByID(ctx, *action.RoutedSiteRecordID, patch); err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}
		updated = action
		return nil
	})
	if err != nil {
		return nil, writeFailure(s.logger, "update action status", err, zap.String("action_id", id))
	}
	s.cache.InvalidateReports(ctx, updated.Collection)
	return updated, nil
}

// Reroute hands an open action to another team. The old action is closed
// and points at its successor.
func (s *ActionService) Reroute(ctx context.Context, id string, req dto.RerouteActionRequest, actor models.Actor) (*dto.RerouteActionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid reroute payload")
	}
	role, ok := models.RoleForTeam(req.Routing)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown routing team "+req.Routing)
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "priority must be Low, Medium or High")
	}

	resp := &dto.RerouteActionResponse{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		old, err := s.lockAction(ctx, id)
		if err != nil {
			return err
		}
		if !canManageAction(old, actor) {
			return appErrors.Clone(appErrors.ErrForbidden, "only the assignee, the assigner or an admin can reroute this action")
		}
		if old.Status == models.ActionStatusCompleted {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "completed actions cannot be rerouted")
		}

		holder, err := s.currentHolder(ctx, old)
		if err != nil {
			return err
		}
		assignee, err := resolveAssignee(ctx, s.directory, req.AssignedToUserID, role, holder.Division, actor.UserID)
		if err != nil {
			return err
		}
		if assignee.ID == actor.UserID {
			return appErrors.Clone(appErrors.ErrValidation, "an action cannot be assigned to its submitter")
		}

		next := *old
		next.ID = ""
		next.RoutedSiteRecordID = nil
		next.RoutedRowKey = nil
		next.Routing = req.Routing
		next.AssignedToUserID = assignee.ID
		next.AssignedToRole = assignee.Role
		next.AssignedToDivision = assignee.Division
		next.AssignedToVendor = assignee.Vendor
		next.AssignedByUserID = actor.UserID
		next.AssignedByRole = actor.Role
		next.Status = models.ActionStatusPending
		next.SupersededBy = nil
		next.AssignedDate = s.now()
		next.CompletedDate = nil
		if req.Remarks != nil {
			next.Remarks = *req.Remarks
		}
		if req.Priority != "" {
			next.Priority = req.Priority
		}
		if err := s.actions.Create(ctx, &next); err != nil {
			return err
		}

		holder.TaskStatus = RoutedTaskStatus(req.Routing)
		fork, err := s.fork(ctx, holder, assignee.ID)
		if err != nil {
			return err
		}
		if err := s.actions.LinkRoutedRecord(ctx, next.ID, fork.ID, fork.RowKey); err != nil {
			return err
		}
		next.RoutedSiteRecordID = strPtr(fork.ID)
		next.RoutedRowKey = strPtr(fork.RowKey)

		now := s.now()
		if err := s.actions.MarkSuperseded(ctx, old.ID, next.ID, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidTransition, "action was completed concurrently")
			}
			return err
		}
		old.Status = models.ActionStatusCompleted
		old.SupersededBy = strPtr(next.ID)
		old.CompletedDate = &now

		patch := models.StatusPatch{TaskStatus: strPtr(RoutedTaskStatus(req.Routing))}
		if err := s.sites.UpdateStatusFieldsByID(ctx, old.SiteRecordID, patch); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err := writeAudit(ctx, s.audit, actor, models.AuditActionActionReroute, models.AuditResourceActions, old.ID,
			map[string]string{"routing": old.Routing, "assignedToUserId": old.AssignedToUserID},
			map[string]string{"routing": next.Routing, "assignedToUserId": next.AssignedToUserID, "actionId": next.ID}); err != nil {
			return err
		}
		resp.Previous, resp.Action, resp.RoutedSiteRecord = old, &next, fork
		return nil
	})
	if err != nil {
		return nil, writeFailure(s.logger, "reroute action", err, zap.String("action_id", id), zap.String("routing", req.Routing))
	}
	s.cache.InvalidateReports(ctx, resp.Action.Collection)
	return resp, nil
}

// currentHolder is the routed record of the action, or its source when the
// routed copy no longer exists.
func (s *ActionService) currentHolder(ctx context.Context, action *models.Action) (*models.SiteRecord, error) {
	if action.RoutedSiteRecordID != nil {
		rec, err := s.sites.GetByID(ctx, *action.RoutedSiteRecordID)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	rec, err := s.sites.GetByID(ctx, action.SiteRecordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrInvalidReference, "the site record of this action no longer exists")
	}
	return rec, err
}

// Delete removes an action. The routed record it produced is kept.
func (s *ActionService) Delete(ctx context.Context, id string, actor models.Actor) error {
	var collection models.Collection
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		action, err := s.lockAction(ctx, id)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && action.AssignedByUserID != actor.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the assigner or an admin can delete this action")
		}
		if err := s.actions.Delete(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "action not found")
			}
			return err
		}
		collection = action.Collection
		return writeAudit(ctx, s.audit, actor, models.AuditActionActionDelete, models.AuditResourceActions, id, action, nil)
	})
	if err != nil {
		return writeFailure(s.logger, "delete action", err, zap.String("action_id", id))
	}
	s.cache.InvalidateReports(ctx, collection)
	return nil
}

// ListMine lists actions assigned to the actor.
func (s *ActionService) ListMine(ctx context.Context, query dto.ActionListQuery, actor models.Actor) ([]models.Action, *models.Pagination, error) {
	filter := actionFilter(query)
	filter.AssignedTo = actor.UserID
	return s.list(ctx, "action_list_mine", filter)
}

// ListRoutedByMe lists actions the actor assigned.
func (s *ActionService) ListRoutedByMe(ctx context.Context, query dto.ActionListQuery, actor models.Actor) ([]models.Action, *models.Pagination, error) {
	filter := actionFilter(query)
	filter.AssignedBy = actor.UserID
	return s.list(ctx, "action_list_routed", filter)
}

// ListAll lists every action. Restricted to Admin, CCR and Equipment.
func (s *ActionService) ListAll(ctx context.Context, query dto.ActionListQuery, actor models.Actor) ([]models.Action, *models.Pagination, error) {
	if !actor.HasRole(models.RoleAdmin, models.RoleCCR, models.RoleEquipment) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient role to list all actions")
	}
	return s.list(ctx, "action_list_all", actionFilter(query))
}

func actionFilter(query dto.ActionListQuery) models.ActionFilter {
	page, size := models.NormalizePage(query.Page, query.PageSize)
	return models.ActionFilter{
		Status:     query.Status,
		Collection: query.Collection,
		SiteCode:   query.SiteCode,
		Page:       page,
		PageSize:   size,
	}
}

func (s *ActionService) list(ctx context.Context, label string, filter models.ActionFilter) ([]models.Action, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown action status")
	}
	type page struct {
		items []models.Action
		total int
	}
	out, err := readRetry(ctx, s.metrics, label, func(ctx context.Context) (page, error) {
		items, total, err := s.actions.List(ctx, filter)
		return page{items: items, total: total}, err
	})
	if err != nil {
		return nil, nil, readFailure(s.logger, label, err)
	}
	if out.items == nil {
		out.items = []models.Action{}
	}
	return out.items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: out.total}, nil
}
