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
)

const actionColumns = `id, collection, site_record_id, routed_site_record_id, source_file_id, original_row_key,
       routed_row_key, original_row_index, site_code, row_data, headers, routing, type_of_issue, remarks, photos,
       assigned_to_user_id, assigned_to_role, assigned_to_division, assigned_to_vendor, assigned_by_user_id,
       assigned_by_role, status, priority, superseded_by, assigned_date, completed_date, created_at, updated_at`

// ActionRepository persists routing decisions.
type ActionRepository struct {
	db *sqlx.DB
}

// NewActionRepository constructs the repository.
func NewActionRepository(db *sqlx.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// Create inserts a new action row.
func (r *ActionRepository) Create(ctx context.Context, action *models.Action) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.Status == "" {
		action.Status = models.ActionStatusPending
	}
	if action.Priority == "" {
		action.Priority = models.PriorityMedium
	}
	if action.RowData == nil {
		action.RowData = models.RowData{}
	}
	if action.Headers == nil {
		action.Headers = pq.StringArray{}
	}
	if action.Photos == nil {
		action.Photos = pq.StringArray{}
	}
	now := time.Now().UTC()
	if action.AssignedDate.IsZero() {
		action.AssignedDate = now
	}
	action.CreatedAt = now
	action.UpdatedAt = now

	const query = `INSERT INTO actions (` + actionColumns + `)
	VALUES (:id, :collection, :site_record_id, :routed_site_record_id, :source_file_id, :original_row_key,
	        :routed_row_key, :original_row_index, :site_code, :row_data, :headers, :routing, :type_of_issue, :remarks, :photos,
	        :assigned_to_user_id, :assigned_to_role, :assigned_to_division, :assigned_to_vendor, :assigned_by_user_id,
	        :assigned_by_role, :status, :priority, :superseded_by, :assigned_date, :completed_date, :created_at, :updated_at)`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, action); err != nil {
		return fmt.Errorf("create action: %w", err)
	}
	return nil
}

// GetByID fetches an action by identifier.
func (r *ActionRepository) GetByID(ctx context.Context, id string) (*models.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE id = $1`
	if InTx(ctx) {
		query += ` FOR UPDATE`
	}
	var action models.Action
	if err := conn(ctx, r.db).GetContext(ctx, &action, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get action: %w", err)
	}
	return &action, nil
}

// LinkRoutedRecord stores the fork produced for an action.
func (r *ActionRepository) LinkRoutedRecord(ctx context.Context, id, routedID, routedRowKey string) error {
	const query = `UPDATE actions SET routed_site_record_id = $2, routed_row_key = $3, updated_at = $4 WHERE id = $1`
	return execOne(ctx, conn(ctx, r.db), "link routed record", query, id, routedID, routedRowKey, time.Now().UTC())
}

// UpdateStatus moves an action from one status to another. sql.ErrNoRows
// means the action was not in the expected status.
func (r *ActionRepository) UpdateStatus(ctx context.Context, id string, from, to models.ActionStatus, completedAt *time.Time) error {
	const query = `UPDATE actions SET status = $3, completed_date = COALESCE($4, completed_date), updated_at = $5
	WHERE id = $1 AND status = $2`
	return execOne(ctx, conn(ctx, r.db), "update action status", query, id, from, to, completedAt, time.Now().UTC())
}

// MarkSuperseded completes an open action in favour of its replacement.
func (r *ActionRepository) MarkSuperseded(ctx context.Context, id, supersededBy string, at time.Time) error {
	const query = `UPDATE actions SET status = $2, superseded_by = $3, completed_date = $4, updated_at = $4
	WHERE id = $1 AND status <> $2`
	return execOne(ctx, conn(ctx, r.db), "supersede action", query, id, models.ActionStatusCompleted, supersededBy, at)
}

// Delete removes an action. Routed site records are kept.
func (r *ActionRepository) Delete(ctx context.Context, id string) error {
	return execOne(ctx, conn(ctx, r.db), "delete action", `DELETE FROM actions WHERE id = $1`, id)
}

// List returns one page of actions matching filter plus the total count.
func (r *ActionRepository) List(ctx context.Context, filter models.ActionFilter) ([]models.Action, int, error) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_to_user_id = $%d", len(args)))
	}
	if filter.AssignedBy != "" {
		args = append(args, filter.AssignedBy)
		conditions = append(conditions, fmt.Sprintf("assigned_by_user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Collection != "" {
		args = append(args, filter.Collection)
		conditions = append(conditions, fmt.Sprintf("collection = $%d", len(args)))
	}
	if filter.SiteCode != "" {
		args = append(args, models.NormalizeSiteCode(filter.SiteCode))
		conditions = append(conditions, fmt.Sprintf("site_code = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	e := conn(ctx, r.db)
	var total int
	if err := e.GetContext(ctx, &total, "SELECT COUNT(*) FROM actions"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count actions: %w", err)
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM actions%s ORDER BY assigned_date DESC LIMIT %d OFFSET %d", actionColumns, where, limit, offset)
	var actions []models.Action
	if err := e.SelectContext(ctx, &actions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list actions: %w", err)
	}
	return actions, total, nil
}

// ListBySiteRecords returns actions raised on or forked into the given records.
func (r *ActionRepository) ListBySiteRecords(ctx context.Context, ids []string) ([]models.Action, error) {
	if len(ids) == 0 {
		return []models.Action{}, nil
	}
	query := `SELECT ` + actionColumns + ` FROM actions
	WHERE site_record_id = ANY($1) OR routed_site_record_id = ANY($1) ORDER BY assigned_date`
	var actions []models.Action
	if err := conn(ctx, r.db).SelectContext(ctx, &actions, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list actions by site records: %w", err)
	}
	return actions, nil
}

// RoutingCheck pairs an action with the state of its routed record.
type RoutingCheck struct {
	ActionID         string  `db:"action_id"`
	SourceFileID     string  `db:"source_file_id"`
	OriginalRowKey   string  `db:"original_row_key"`
	RoutedRowKey     *string `db:"routed_row_key"`
	AssignedToUserID string  `db:"assigned_to_user_id"`
	RoutedRecordID   *string `db:"routed_record_id"`
	RoutedOwnerID    *string `db:"routed_owner_user_id"`
}

// Consistent reports whether the routed record exists and is owned by the assignee.
func (c RoutingCheck) Consistent() bool {
	if c.RoutedRecordID == nil || c.RoutedOwnerID == nil {
		return false
	}
	return *c.RoutedOwnerID == c.AssignedToUserID
}

// RoutingChecks lists every action with its routed record for consistency
// verification, optionally within one file.
func (r *ActionRepository) RoutingChecks(ctx context.Context, fileID string) ([]RoutingCheck, error) {
	args := []interface{}{}
	query := `SELECT a.id AS action_id, a.source_file_id, a.original_row_key, a.routed_row_key, a.assigned_to_user_id,
	       s.id AS routed_record_id, s.owner_user_id AS routed_owner_user_id
	FROM actions a
	LEFT JOIN site_records s ON s.id = a.routed_site_record_id`
	if fileID != "" {
		args = append(args, fileID)
		query += ` WHERE a.source_file_id = $1`
	}
	query += ` ORDER BY a.assigned_date`
	var checks []RoutingCheck
	if err := conn(ctx, r.db).SelectContext(ctx, &checks, query, args...); err != nil {
		return nil, fmt.Errorf("list routing checks: %w", err)
	}
	return checks, nil
}
