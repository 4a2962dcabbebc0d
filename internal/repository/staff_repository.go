package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// StaffRepository handles persistence for staff members.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.StaffMember) error
	GetByID(ctx context.Context, id string) (*domain.StaffMember, error)
	List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error)
}

// StaffFilter defines query params for staff listing. Results are ordered by
// creation time, oldest first, then id.
type StaffFilter struct {
	Role   *domain.StaffRole
	Active *bool
	Limit  int
	Offset int
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

func (r *staffRepository) Create(ctx context.Context, staff *domain.StaffMember) error {
	const query = `
        INSERT INTO staff_members (id, name, email, role, active_flag)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		staff.ID,
		staff.Name,
		staff.Email,
		staff.Role,
		staff.Active,
	).Scan(&staff.CreatedAt, &staff.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("staff email %q: %w", staff.Email, ErrDuplicate)
	}
	return err
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	const query = `
        SELECT id, name, email, role, active_flag, created_at, updated_at
        FROM staff_members WHERE id=$1`

	staff, err := scanStaff(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return staff, nil
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	query := `
        SELECT id, name, email, role, active_flag, created_at, updated_at
        FROM staff_members`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	limit, offset := clampPage(filter.Limit, filter.Offset, 50)
	query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffMember
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *staff)
	}
	return result, rows.Err()
}

func scanStaff(row pgx.Row) (*domain.StaffMember, error) {
	var staff domain.StaffMember
	if err := row.Scan(
		&staff.ID,
		&staff.Name,
		&staff.Email,
		&staff.Role,
		&staff.Active,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}
