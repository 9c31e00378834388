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

const approvalColumns = `id, action_id, equipment_offline_site_id, rtu_tracker_site_id, site_code, approval_type, status,
       submitted_by_user_id, submitted_by_role, assigned_to_user_id, assigned_to_role, approved_by_user_id,
       approved_by_role, approved_at, approval_remarks, submission_remarks, photos, support_documents,
       original_row_data, file_id, row_key, previous_approval_id, created_at, updated_at`

// ApprovalRepository persists approval workflow rows.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create inserts a Pending approval. ErrDuplicateKey is returned when a
// Pending approval already exists for the same file, row key and type.
func (r *ApprovalRepository) Create(ctx context.Context, approval *models.Approval) error {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	approval.Status = models.ApprovalStatusPending
	if approval.Photos == nil {
		approval.Photos = pq.StringArray{}
	}
	if approval.SupportDocuments == nil {
		approval.SupportDocuments = pq.StringArray{}
	}
	if approval.OriginalRowData == nil {
		approval.OriginalRowData = models.RowData{}
	}
	now := time.Now().UTC()
	approval.CreatedAt = now
	approval.UpdatedAt = now

	const insert = `INSERT INTO approvals (` + approvalColumns + `)
	VALUES (:id, :action_id, :equipment_offline_site_id, :rtu_tracker_site_id, :site_code, :approval_type, :status,
	        :submitted_by_user_id, :submitted_by_role, :assigned_to_user_id, :assigned_to_role, :approved_by_user_id,
	        :approved_by_role, :approved_at, :approval_remarks, :submission_remarks, :photos, :support_documents,
	        :original_row_data, :file_id, :row_key, :previous_approval_id, :created_at, :updated_at)
	ON CONFLICT (file_id, row_key, approval_type) WHERE status = 'Pending' DO NOTHING
	RETURNING id`

	e := conn(ctx, r.db)
	query, args, err := e.BindNamed(insert, approval)
	if err != nil {
		return fmt.Errorf("bind approval insert: %w", err)
	}
	var id string
	if err := e.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || database.IsUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create approval: %w", err)
	}
	return nil
}

// GetByID fetches an approval by identifier.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = $1`
	var approval models.Approval
	if err := conn(ctx, r.db).GetContext(ctx, &approval, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get approval: %w", err)
	}
	return &approval, nil
}

// Latest returns the most recent approval for a key and type, or
// sql.ErrNoRows. When pendingOnly is set only a Pending row matches.
func (r *ApprovalRepository) Latest(ctx context.Context, fileID, rowKey string, approvalType models.ApprovalType, pendingOnly bool) (*models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE file_id = $1 AND row_key = $2 AND approval_type = $3`
	if pendingOnly {
		query += ` AND status = 'Pending'`
	}
	query += ` ORDER BY created_at DESC LIMIT 1`
	var approval models.Approval
	if err := conn(ctx, r.db).GetContext(ctx, &approval, query, fileID, rowKey, approvalType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("latest approval: %w", err)
	}
	return &approval, nil
}

// ResolveApprovalParams groups the columns written when an approval closes.
type ResolveApprovalParams struct {
	ID       string
	Status   models.ApprovalStatus
	UserID   string
	Role     models.UserRole
	Remarks  string
	Resolved time.Time
}

// Resolve closes a Pending approval. sql.ErrNoRows means it was no longer Pending.
func (r *ApprovalRepository) Resolve(ctx context.Context, params ResolveApprovalParams) error {
	query := fmt.Sprintf(`UPDATE approvals SET status = :status, approved_by_user_id = :user_id, approved_by_role = :role,
	approved_at = :resolved, approval_remarks = :remarks, updated_at = :resolved
	WHERE id = :id AND status = '%s'`, models.ApprovalStatusPending)
	result, err := conn(ctx, r.db).NamedExecContext(ctx, query, map[string]interface{}{
		"id":       params.ID,
		"status":   params.Status,
		"user_id":  params.UserID,
		"role":     params.Role,
		"remarks":  params.Remarks,
		"resolved": params.Resolved,
	})
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check approval update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func approvalConditions(filter models.ApprovalFilter) ([]string, []interface{}) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	if filter.Participant != "" {
		args = append(args, filter.Participant)
		conditions = append(conditions, fmt.Sprintf("(submitted_by_user_id = $%d OR assigned_to_user_id = $%d)", len(args), len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ApprovalType != "" {
		args = append(args, filter.ApprovalType)
		conditions = append(conditions, fmt.Sprintf("approval_type = $%d", len(args)))
	}
	if filter.SiteCode != "" {
		args = append(args, models.NormalizeSiteCode(filter.SiteCode))
		conditions = append(conditions, fmt.Sprintf("site_code = $%d", len(args)))
	}
	return conditions, args
}

// List returns one page of approvals plus the total count.
func (r *ApprovalRepository) List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, int, error) {
	conditions, args := approvalConditions(filter)
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	e := conn(ctx, r.db)
	var total int
	if err := e.GetContext(ctx, &total, "SELECT COUNT(*) FROM approvals"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count approvals: %w", err)
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM approvals%s ORDER BY created_at DESC LIMIT %d OFFSET %d", approvalColumns, where, limit, offset)
	var approvals []models.Approval
	if err := e.SelectContext(ctx, &approvals, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list approvals: %w", err)
	}
	return approvals, total, nil
}

type approvalCount struct {
	Status       string `db:"status"`
	ApprovalType string `db:"approval_type"`
	Count        int    `db:"count"`
}

// Stats counts approvals per status and per type.
func (r *ApprovalRepository) Stats(ctx context.Context, participant string) (*models.ApprovalStats, error) {
	conditions, args := approvalConditions(models.ApprovalFilter{Participant: participant})
	query := "SELECT status, approval_type, COUNT(*) AS count FROM approvals"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " GROUP BY status, approval_type"
	var rows []approvalCount
	if err := conn(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("approval stats: %w", err)
	}
	stats := &models.ApprovalStats{ByStatus: map[string]int{}, ByType: map[string]int{}}
	for _, s := range []models.ApprovalStatus{models.ApprovalStatusPending, models.ApprovalStatusApproved, models.ApprovalStatusKeptForMonitoring, models.ApprovalStatusRecheckRequested} {
		stats.ByStatus[string(s)] = 0
	}
	for _, row := range rows {
		stats.Total += row.Count
		stats.ByStatus[row.Status] += row.Count
		stats.ByType[row.ApprovalType] += row.Count
	}
	return stats, nil
}

// ListForReset returns approvals matching the reset filter.
func (r *ApprovalRepository) ListForReset(ctx context.Context, filter models.ApprovalResetFilter) ([]models.Approval, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SiteCode != "" {
		args = append(args, models.NormalizeSiteCode(filter.SiteCode))
		conditions = append(conditions, fmt.Sprintf("site_code = $%d", len(args)))
	}
	if filter.ApprovalType != "" {
		args = append(args, filter.ApprovalType)
		conditions = append(conditions, fmt.Sprintf("approval_type = $%d", len(args)))
	}
	query := "SELECT " + approvalColumns + " FROM approvals"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at FOR UPDATE"
	var approvals []models.Approval
	if err := conn(ctx, r.db).SelectContext(ctx, &approvals, query, args...); err != nil {
		return nil, fmt.Errorf("list approvals for reset: %w", err)
	}
	return approvals, nil
}

// DeleteByIDs removes the given approvals.
func (r *ApprovalRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	// Later cycles point at earlier ones; clear links into the deleted set first.
	const unlink = `UPDATE approvals SET previous_approval_id = NULL WHERE previous_approval_id = ANY($1)`
	e := conn(ctx, r.db)
	if _, err := e.ExecContext(ctx, unlink, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("unlink approvals: %w", err)
	}
	result, err := e.ExecContext(ctx, `DELETE FROM approvals WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete approvals: %w", err)
	}
	return result.RowsAffected()
}

// ListBySiteRecords returns approvals referencing any of the given records.
func (r *ApprovalRepository) ListBySiteRecords(ctx context.Context, ids []string) ([]models.Approval, error) {
	if len(ids) == 0 {
		return []models.Approval{}, nil
	}
	query := `SELECT ` + approvalColumns + ` FROM approvals
	WHERE equipment_offline_site_id = ANY($1) OR rtu_tracker_site_id = ANY($1) ORDER BY created_at`
	var approvals []models.Approval
	if err := conn(ctx, r.db).SelectContext(ctx, &approvals, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list approvals by site records: %w", err)
	}
	return approvals, nil
}
