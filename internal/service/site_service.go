package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/das-api/internal/dto"
	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/internal/repository"
	appErrors "github.com/noah-isme/das-api/pkg/errors"
)

// SiteService owns the site record store of both collections.
type SiteService struct {
	sites     siteStore
	tx        TxRunner
	audit     auditWriter
	cache     *CacheService
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewSiteService constructs a SiteService.
func NewSiteService(sites siteStore, tx TxRunner, audit auditWriter, cache *CacheService, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *SiteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SiteService{sites: sites, tx: tx, audit: audit, cache: cache, validator: validate, metrics: metrics, logger: logger}
}

// Upsert inserts the row when absent, otherwise merges the provided fields.
// The boolean reports whether a record was created.
func (s *SiteService) Upsert(ctx context.Context, collection models.Collection, req dto.SiteRecordRequest, actor models.Actor) (*models.SiteRecord, bool, error) {
	if err := s.validateRequest(collection, req); err != nil {
		return nil, false, err
	}
	var (
		rec     *models.SiteRecord
		created bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		rec, created, err = s.upsert(ctx, collection, req, actor)
		return err
	})
	if err != nil {
		return nil, false, writeFailure(s.logger, "upsert site record", err,
			zap.String("collection", string(collection)), zap.String("file_id", req.FileID), zap.String("row_key", req.RowKey))
	}
	s.cache.InvalidateReports(ctx, collection)
	return rec, created, nil
}

// BulkUpsert applies many upserts atomically.
func (s *SiteService) BulkUpsert(ctx context.Context, collection models.Collection, req dto.BulkSiteRecordRequest, actor models.Actor) (*dto.BulkSiteRecordResponse, error) {
	if !collection.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown collection")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid bulk payload")
	}
	for i := range req.Records {
		if req.Records[i].FileID == "" {
			req.Records[i].FileID = req.FileID
		}
		if err := s.validateRequest(collection, req.Records[i]); err != nil {
			return nil, appErrors.Clone(appErrors.FromError(err), fmt.Sprintf("record %d: %s", i, appErrors.FromError(err).Message))
		}
	}

	result := &dto.BulkSiteRecordResponse{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		result.Created, result.Updated = 0, 0
		for _, item := range req.Records {
			_, created, err := s.upsert(ctx, collection, item, actor)
			if err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, writeFailure(s.logger, "bulk upsert site records", err,
			zap.String("collection", string(collection)), zap.Int("records", len(req.Records)))
	}
	s.cache.InvalidateReports(ctx, collection)
	return result, nil
}

func (s *SiteService) validateRequest(collection models.Collection, req dto.SiteRecordRequest) error {
	if !collection.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown collection")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.WrapAs(appErrors.ErrValidation, err, "invalid site record payload")
	}
	if req.SiteObservations != nil {
		switch *req.SiteObservations {
		case models.ObservationNone, models.ObservationPending, models.ObservationResolved:
		default:
			return appErrors.Clone(appErrors.ErrValidation, "siteObservations must be Pending or Resolved")
		}
	}
	return nil
}

func (s *SiteService) upsert(ctx context.Context, collection models.Collection, req dto.SiteRecordRequest, actor models.Actor) (*models.SiteRecord, bool, error) {
	existing, err := s.sites.FindByKeyForUpdate(ctx, collection, req.FileID, req.RowKey)
	if errors.Is(err, sql.ErrNoRows) {
		rec := newSiteRecord(collection, req, actor)
		if err := s.sites.Insert(ctx, rec); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return nil, false, appErrors.Clone(appErrors.ErrConflict, "record was created concurrently, please retry")
			}
			return nil, false, err
		}
		return rec, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	if !actor.IsAdmin() && !existing.VisibleTo(actor.UserID) {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "record belongs to another user")
	}
	if implied := impliedSiteCode(req); implied != "" && existing.SiteCode != "" && models.NormalizeSiteCode(implied) != models.NormalizeSiteCode(existing.SiteCode) {
		return nil, false, appErrors.Clone(appErrors.ErrConflict, "site code does not match the existing record")
	}
	if err := s.sites.ApplyPatch(ctx, existing.ID, req.Patch()); err != nil {
		return nil, false, err
	}
	rec, err := s.sites.GetByID(ctx, existing.ID)
	if err != nil {
		return nil, false, err
	}
	return rec, false, nil
}

func newSiteRecord(collection models.Collection, req dto.SiteRecordRequest, actor models.Actor) *models.SiteRecord {
	rec := &models.SiteRecord{
		Collection:       collection,
		FileID:           req.FileID,
		RowKey:           req.RowKey,
		Kind:             models.KindOriginal,
		SiteCode:         deref(req.SiteCode),
		OwnerUserID:      actor.UserID,
		Division:         actor.Division,
		OriginalRowData:  req.OriginalRowData,
		SiteObservations: deref(req.SiteObservations),
		CCRStatus:        deref(req.CCRStatus),
		TaskStatus:       deref(req.TaskStatus),
		TypeOfIssue:      deref(req.TypeOfIssue),
		Photos:           req.Photos,
		PhotoMetadata:    req.PhotoMetadata,
		Remarks:          deref(req.Remarks),
		SupportDocuments: req.SupportDocuments,
		DaysOffline:      req.DaysOffline,
		SavedFrom:        deref(req.SavedFrom),
	}
	if req.Division != nil {
		rec.Division = *req.Division
	}
	rec.SiteCode = impliedSiteCode(req)
	return rec
}

// impliedSiteCode is the explicit site code, else the one in the row snapshot.
func impliedSiteCode(req dto.SiteRecordRequest) string {
	if code := deref(req.SiteCode); code != "" {
		return code
	}
	if v, ok := req.OriginalRowData.Lookup("Site Code", "SiteCode", "site_code"); ok {
		return v.String()
	}
	return ""
}

// ListByFile returns the caller's records of one file, including copies
// routed away from the caller. Admins see every record of the file.
func (s *SiteService) ListByFile(ctx context.Context, collection models.Collection, fileID string, actor models.Actor) ([]models.SiteRecord, error) {
	if !collection.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown collection")
	}
	if fileID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fileId is required")
	}
	records, err := readRetry(ctx, s.metrics, "site_list_by_file", func(ctx context.Context) ([]models.SiteRecord, error) {
		if actor.IsAdmin() {
			return s.sites.ListAll(ctx, models.SiteFilter{Collection: collection, FileID: fileID})
		}
		owned, err := s.sites.ListByOwner(ctx, collection, actor.UserID, fileID)
		if err != nil {
			return nil, err
		}
		routedAway, err := s.sites.ListByOriginalOwner(ctx, collection, actor.UserID)
		if err != nil {
			return nil, err
		}
		return mergeOwned(owned, routedAway, fileID), nil
	})
	if err != nil {
		return nil, readFailure(s.logger, "list site records by file", err)
	}
	if records == nil {
		records = []models.SiteRecord{}
	}
	return records, nil
}

func mergeOwned(owned, routedAway []models.SiteRecord, fileID string) []models.SiteRecord {
	seen := make(map[string]struct{}, len(owned))
	for _, rec := range owned {
		seen[rec.ID] = struct{}{}
	}
	for _, rec := range routedAway {
		if _, dup := seen[rec.ID]; dup || rec.FileID != fileID {
			continue
		}
		seen[rec.ID] = struct{}{}
		owned = append(owned, rec)
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].RowKey < owned[j].RowKey })
	return owned
}

// UpdateDaysOffline sets days_offline on a batch of rows of one file.
func (s *SiteService) UpdateDaysOffline(ctx context.Context, collection models.Collection, req dto.UpdateDaysOfflineRequest) (*dto.UpdateDaysOfflineResponse, error) {
	if !collection.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown collection")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid days offline payload")
	}
	var updated int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.sites.UpdateDaysOffline(ctx, collection, req.FileID, req.Updates)
		return err
	})
	if err != nil {
		return nil, writeFailure(s.logger, "update days offline", err, zap.String("file_id", req.FileID))
	}
	s.cache.InvalidateReports(ctx, collection)
	return &dto.UpdateDaysOfflineResponse{Updated: updated}, nil
}

// Delete removes one record. Only its owner or an admin may delete it.
func (s *SiteService) Delete(ctx context.Context, collection models.Collection, fileID, rowKey string, actor models.Actor) error {
	if !collection.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown collection")
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rec, err := s.sites.FindByKeyForUpdate(ctx, collection, fileID, rowKey)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "site record not found")
		}
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && rec.OwnerUserID != actor.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the owner or an admin can delete this record")
		}
		if err := s.sites.Delete(ctx, collection, fileID, rowKey); err != nil {
			return err
		}
		return writeAudit(ctx, s.audit, actor, models.AuditActionSiteDelete, models.AuditResourceSiteRecords, rec.ID, rec, nil)
	})
	if err != nil {
		return writeFailure(s.logger, "delete site record", err, zap.String("file_id", fileID), zap.String("row_key", rowKey))
	}
	s.cache.InvalidateReports(ctx, collection)
	return nil
}
