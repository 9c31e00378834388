package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/pkg/database"
)

const siteColumns = `id, collection, file_id, row_key, kind, parent_id, root_id, site_code, owner_user_id,
       original_owner_user_id, division, original_row_data, site_observations, ccr_status, task_status,
       type_of_issue, photos, photo_metadata, remarks, support_documents, days_offline, saved_from,
       last_synced_at, created_at, updated_at`

// SiteRecordRepository persists equipment offline and RTU tracker site rows.
type SiteRecordRepository struct {
	db *sqlx.DB
}

// NewSiteRecordRepository constructs the repository.
func NewSiteRecordRepository(db *sqlx.DB) *SiteRecordRepository {
	return &SiteRecordRepository{db: db}
}

// GetByID fetches a record by identifier.
func (r *SiteRecordRepository) GetByID(ctx context.Context, id string) (*models.SiteRecord, error) {
	query := `SELECT ` + siteColumns + ` FROM site_records WHERE id = $1`
	var rec models.SiteRecord
	if err := conn(ctx, r.db).GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get site record: %w", err)
	}
	return &rec, nil
}

// FindByKey fetches a record by its (collection, file, row key) identity.
func (r *SiteRecordRepository) FindByKey(ctx context.Context, collection models.Collection, fileID, rowKey string) (*models.SiteRecord, error) {
	return r.findByKey(ctx, collection, fileID, rowKey, false)
}

// FindByKeyForUpdate locks the row for the rest of the transaction.
func (r *SiteRecordRepository) FindByKeyForUpdate(ctx context.Context, collection models.Collection, fileID, rowKey string) (*models.SiteRecord, error) {
	return r.findByKey(ctx, collection, fileID, rowKey, InTx(ctx))
}

func (r *SiteRecordRepository) findByKey(ctx context.Context, collection models.Collection, fileID, rowKey string, lock bool) (*models.SiteRecord, error) {
	query := `SELECT ` + siteColumns + ` FROM site_records WHERE collection = $1 AND file_id = $2 AND row_key = $3`
	if lock {
		query += ` FOR UPDATE`
	}
	var rec models.SiteRecord
	if err := conn(ctx, r.db).GetContext(ctx, &rec, query, collection, fileID, rowKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find site record: %w", err)
	}
	return &rec, nil
}

// Insert stores a new record. ErrDuplicateKey is returned when the
// (collection, file, row key) identity is taken.
func (r *SiteRecordRepository) Insert(ctx context.Context, rec *models.SiteRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Kind == "" {
		rec.Kind = models.KindOriginal
	}
	if rec.OriginalRowData == nil {
		rec.OriginalRowData = models.RowData{}
	}
	if rec.Photos == nil {
		rec.Photos = pq.StringArray{}
	}
	if rec.SupportDocuments == nil {
		rec.SupportDocuments = pq.StringArray{}
	}
	rec.SiteCode = models.NormalizeSiteCode(rec.SiteCode)
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	const insert = `INSERT INTO site_records (` + siteColumns + `)
	VALUES (:id, :collection, :file_id, :row_key, :kind, :parent_id, :root_id, :site_code, :owner_user_id,
	        :original_owner_user_id, :division, :original_row_data, :site_observations, :ccr_status, :task_status,
	        :type_of_issue, :photos, :photo_metadata, :remarks, :support_documents, :days_offline, :saved_from,
	        :last_synced_at, :created_at, :updated_at)
	ON CONFLICT (collection, file_id, row_key) DO NOTHING
	RETURNING id`

	e := conn(ctx, r.db)
	query, args, err := e.BindNamed(insert, rec)
	if err != nil {
		return fmt.Errorf("bind site record insert: %w", err)
	}
	var id string
	if err := e.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || database.IsUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert site record: %w", err)
	}
	return nil
}

// ForkForRouting inserts the routed copy of source owned by newOwner.
func (r *SiteRecordRepository) ForkForRouting(ctx context.Context, source *models.SiteRecord, newOwner, suffix string) (*models.SiteRecord, error) {
	fork := source.Fork(newOwner, suffix)
	if err := r.Insert(ctx, &fork); err != nil {
		return nil, err
	}
	return &fork, nil
}

// ApplyPatch merges the provided fields into an existing record.
func (r *SiteRecordRepository) ApplyPatch(ctx context.Context, id string, patch models.SitePatch) error {
	sets := make([]string, 0, 12)
	args := make([]interface{}, 0, 13)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.SiteCode != nil {
		add("site_code", models.NormalizeSiteCode(*patch.SiteCode))
	}
	if patch.Division != nil {
		add("division", *patch.Division)
	}
	if patch.OriginalRowData != nil {
		add("original_row_data", patch.OriginalRowData)
	}
	if patch.SiteObservations != nil {
		add("site_observations", *patch.SiteObservations)
	}
	if patch.CCRStatus != nil {
		add("ccr_status", *patch.CCRStatus)
	}
	if patch.TaskStatus != nil {
		add("task_status", *patch.TaskStatus)
	}
	if patch.TypeOfIssue != nil {
		add("type_of_issue", *patch.TypeOfIssue)
	}
	if patch.Photos != nil {
		add("photos", pq.StringArray(patch.Photos))
	}
	if patch.PhotoMetadata != nil {
		add("photo_metadata", patch.PhotoMetadata)
	}
	if patch.Remarks != nil {
		add("remarks", *patch.Remarks)
	}
	if patch.SupportDocuments != nil {
		add("support_documents", pq.StringArray(patch.SupportDocuments))
	}
	if patch.DaysOffline != nil {
		add("days_offline", *patch.DaysOffline)
	}
	if patch.SavedFrom != nil {
		add("saved_from", *patch.SavedFrom)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id)
	query := fmt.Sprintf("UPDATE site_records SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return execOne(ctx, conn(ctx, r.db), "patch site record", query, args...)
}

func statusSets(patch models.StatusPatch) ([]string, []interface{}) {
	sets := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.SiteObservations != nil {
		add("site_observations", *patch.SiteObservations)
	}
	if patch.CCRStatus != nil {
		add("ccr_status", *patch.CCRStatus)
	}
	if patch.TaskStatus != nil {
		add("task_status", *patch.TaskStatus)
	}
	if patch.TypeOfIssue != nil {
		add("type_of_issue", *patch.TypeOfIssue)
	}
	if patch.Remarks != nil {
		add("remarks", *patch.Remarks)
	}
	if patch.Photos != nil {
		add("photos", pq.StringArray(patch.Photos))
	}
	add("updated_at", time.Now().UTC())
	return sets, args
}

// UpdateStatusFieldsByID applies a partial status update addressed by id.
func (r *SiteRecordRepository) UpdateStatusFieldsByID(ctx context.Context, id string, patch models.StatusPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	sets, args := statusSets(patch)
	args = append(args, id)
	query := fmt.Sprintf("UPDATE site_records SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return execOne(ctx, conn(ctx, r.db), "update site status fields", query, args...)
}

// RevertApprovalFields clears approval outcomes on the given records.
func (r *SiteRecordRepository) RevertApprovalFields(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE site_records SET ccr_status = '', site_observations = $2, task_status = '', updated_at = $3
	WHERE id = ANY($1)`
	result, err := conn(ctx, r.db).ExecContext(ctx, query, pq.Array(ids), models.ObservationPending, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revert site approval fields: %w", err)
	}
	return result.RowsAffected()
}

// UpdateDaysOffline sets days_offline for rows of one file.
func (r *SiteRecordRepository) UpdateDaysOffline(ctx context.Context, collection models.Collection, fileID string, updates []models.DaysOfflineUpdate) (int64, error) {
	const query = `UPDATE site_records SET days_offline = $4, updated_at = $5
	WHERE collection = $1 AND file_id = $2 AND row_key = $3`
	e := conn(ctx, r.db)
	var total int64
	now := time.Now().UTC()
	for _, u := range updates {
		result, err := e.ExecContext(ctx, query, collection, fileID, u.RowKey, u.DaysOffline, now)
		if err != nil {
			return total, fmt.Errorf("update days offline: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("check days offline rows: %w", err)
		}
		total += n
	}
	return total, nil
}

// Delete removes one record by identity.
func (r *SiteRecordRepository) Delete(ctx context.Context, collection models.Collection, fileID, rowKey string) error {
	const query = `DELETE FROM site_records WHERE collection = $1 AND file_id = $2 AND row_key = $3`
	return execOne(ctx, conn(ctx, r.db), "delete site record", query, collection, fileID, rowKey)
}

// ListByOwner returns records owned by userID, optionally within one file.
func (r *SiteRecordRepository) ListByOwner(ctx context.Context, collection models.Collection, ownerUserID, fileID string) ([]models.SiteRecord, error) {
	args := []interface{}{collection, ownerUserID}
	query := `SELECT ` + siteColumns + ` FROM site_records WHERE collection = $1 AND owner_user_id = $2`
	if fileID != "" {
		args = append(args, fileID)
		query += ` AND file_id = $3`
	}
	query += ` ORDER BY file_id, row_key`
	var records []models.SiteRecord
	if err := conn(ctx, r.db).SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list site records by owner: %w", err)
	}
	return records, nil
}

// ListByOriginalOwner returns routed records whose first owner is userID.
func (r *SiteRecordRepository) ListByOriginalOwner(ctx context.Context, collection models.Collection, ownerUserID string) ([]models.SiteRecord, error) {
	query := `SELECT ` + siteColumns + ` FROM site_records WHERE collection = $1 AND original_owner_user_id = $2 ORDER BY file_id, row_key`
	var records []models.SiteRecord
	if err := conn(ctx, r.db).SelectContext(ctx, &records, query, collection, ownerUserID); err != nil {
		return nil, fmt.Errorf("list site records by original owner: %w", err)
	}
	return records, nil
}

func siteConditions(filter models.SiteFilter) ([]string, []interface{}) {
	conditions := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)
	if filter.Collection != "" {
		args = append(args, filter.Collection)
		conditions = append(conditions, fmt.Sprintf("collection = $%d", len(args)))
	}
	if filter.VisibleTo != "" {
		args = append(args, filter.VisibleTo)
		conditions = append(conditions, fmt.Sprintf("(owner_user_id = $%d OR original_owner_user_id = $%d)", len(args), len(args)))
	}
	if filter.OwnerUserID != "" {
		args = append(args, filter.OwnerUserID)
		conditions = append(conditions, fmt.Sprintf("owner_user_id = $%d", len(args)))
	}
	if filter.FileID != "" {
		args = append(args, filter.FileID)
		conditions = append(conditions, fmt.Sprintf("file_id = $%d", len(args)))
	}
	if filter.SiteCode != "" {
		args = append(args, models.NormalizeSiteCode(filter.SiteCode))
		conditions = append(conditions, fmt.Sprintf("site_code = $%d", len(args)))
	}
	if filter.Division != "" {
		args = append(args, filter.Division)
		conditions = append(conditions, fmt.Sprintf("LOWER(division) = LOWER($%d)", len(args)))
	}
	if filter.Observation != "" {
		args = append(args, filter.Observation)
		conditions = append(conditions, fmt.Sprintf("site_observations = $%d", len(args)))
	}
	if filter.CCRStatus != "" {
		args = append(args, filter.CCRStatus)
		conditions = append(conditions, fmt.Sprintf("ccr_status = $%d", len(args)))
	}
	if filter.TaskStatus != "" {
		args = append(args, filter.TaskStatus)
		conditions = append(conditions, fmt.Sprintf("task_status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	return conditions, args
}

// List returns one page of records matching filter plus the total count.
func (r *SiteRecordRepository) List(ctx context.Context, filter models.SiteFilter) ([]models.SiteRecord, int, error) {
	conditions, args := siteConditions(filter)
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	e := conn(ctx, r.db)
	var total int
	if err := e.GetContext(ctx, &total, "SELECT COUNT(*) FROM site_records"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count site records: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM site_records%s ORDER BY updated_at DESC, row_key LIMIT %d OFFSET %d", siteColumns, where, limit, offset)
	var records []models.SiteRecord
	if err := e.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list site records: %w", err)
	}
	return records, total, nil
}

// ListAll returns every record matching filter without paging. Used by
// exports and the local-remote report.
func (r *SiteRecordRepository) ListAll(ctx context.Context, filter models.SiteFilter) ([]models.SiteRecord, error) {
	conditions, args := siteConditions(filter)
	query := "SELECT " + siteColumns + " FROM site_records"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY site_code, file_id, row_key"
	var records []models.SiteRecord
	if err := conn(ctx, r.db).SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list all site records: %w", err)
	}
	return records, nil
}

// FilterOptions returns the distinct filter values among visible records.
func (r *SiteRecordRepository) FilterOptions(ctx context.Context, collection models.Collection, visibleTo string) (*models.ReportFilterOptions, error) {
	conditions, args := siteConditions(models.SiteFilter{Collection: collection, VisibleTo: visibleTo})
	where := " WHERE " + strings.Join(conditions, " AND ")
	e := conn(ctx, r.db)
	distinct := func(column string) ([]string, error) {
		query := fmt.Sprintf("SELECT DISTINCT %[1]s FROM site_records%[2]s AND %[1]s <> '' ORDER BY %[1]s", column, where)
		values := []string{}
		if err := e.SelectContext(ctx, &values, query, args...); err != nil {
			return nil, fmt.Errorf("distinct %s: %w", column, err)
		}
		return values, nil
	}

	opts := &models.ReportFilterOptions{}
	var err error
	if opts.Divisions, err = distinct("division"); err != nil {
		return nil, err
	}
	if opts.SiteCodes, err = distinct("site_code"); err != nil {
		return nil, err
	}
	if opts.Observations, err = distinct("site_observations"); err != nil {
		return nil, err
	}
	if opts.CCRStatuses, err = distinct("ccr_status"); err != nil {
		return nil, err
	}
	if opts.TaskStatuses, err = distinct("task_status"); err != nil {
		return nil, err
	}
	return opts, nil
}

func execOne(ctx context.Context, e executor, op, query string, args ...interface{}) error {
	result, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
