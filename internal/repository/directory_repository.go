package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/das-api/internal/models"
)

// DirectoryRepository reads the user directory synced from the auth service.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs the repository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// FindByID returns an active directory user.
func (r *DirectoryRepository) FindByID(ctx context.Context, id string) (*models.DirectoryUser, error) {
	const query = `SELECT id, full_name, role, division, vendor, active FROM directory_users WHERE id = $1 AND active`
	var user models.DirectoryUser
	if err := conn(ctx, r.db).GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find directory user: %w", err)
	}
	return &user, nil
}

// FindAssignee picks an active user holding role, preferring the given
// division, excluding excludeID.
func (r *DirectoryRepository) FindAssignee(ctx context.Context, role models.UserRole, division, excludeID string) (*models.DirectoryUser, error) {
	const query = `SELECT id, full_name, role, division, vendor, active FROM directory_users
	WHERE active AND role = $1 AND id <> $3
	ORDER BY (LOWER(division) = LOWER($2)) DESC, id
	LIMIT 1`
	var user models.DirectoryUser
	if err := conn(ctx, r.db).GetContext(ctx, &user, query, role, division, excludeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignee: %w", err)
	}
	return &user, nil
}
