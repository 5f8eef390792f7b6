package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-duty-api/internal/models"
)

// FacultyRepository provides persistence for the faculty roster.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository creates a new faculty repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// List returns faculty with optional filtering and pagination.
func (r *FacultyRepository) List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error) {
	base := "FROM faculty WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Cadre != nil {
		conditions = append(conditions, fmt.Sprintf("cadre = $%d", len(args)+1))
		args = append(args, *filter.Cadre)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d OR initials ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"full_name":  true,
		"email":      true,
		"cadre":      true,
		"department": true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "full_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, email, full_name, cadre, department, initials, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", base, sortBy, order, size, offset)
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list faculty: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count faculty: %w", err)
	}

	return faculty, total, nil
}

// FindByID loads a faculty member by id.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	const query = `SELECT id, email, full_name, cadre, department, initials, created_at, updated_at FROM faculty WHERE id = $1`
	var f models.Faculty
	if err := r.db.GetContext(ctx, &f, query, id); err != nil {
		return nil, err
	}
	return &f, nil
}

// FindByEmail loads a faculty member by email.
func (r *FacultyRepository) FindByEmail(ctx context.Context, email string) (*models.Faculty, error) {
	const query = `SELECT id, email, full_name, cadre, department, initials, created_at, updated_at FROM faculty WHERE email = $1`
	var f models.Faculty
	if err := r.db.GetContext(ctx, &f, query, email); err != nil {
		return nil, err
	}
	return &f, nil
}

// ListAll returns the whole roster ordered by id for deterministic
// allocation passes.
func (r *FacultyRepository) ListAll(ctx context.Context) ([]models.Faculty, error) {
	const query = `SELECT id, email, full_name, cadre, department, initials, created_at, updated_at FROM faculty ORDER BY id ASC`
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query); err != nil {
		return nil, fmt.Errorf("list all faculty: %w", err)
	}
	return faculty, nil
}

// Create stores a new faculty member.
func (r *FacultyRepository) Create(ctx context.Context, f *models.Faculty) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	const query = `INSERT INTO faculty (id, email, full_name, cadre, department, initials, created_at, updated_at) VALUES (:id, :email, :full_name, :cadre, :department, :initials, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, f); err != nil {
		return fmt.Errorf("create faculty: %w", err)
	}
	return nil
}

// Update modifies a faculty member.
func (r *FacultyRepository) Update(ctx context.Context, f *models.Faculty) error {
	f.UpdatedAt = time.Now().UTC()
	const query = `UPDATE faculty SET email = :email, full_name = :full_name, cadre = :cadre, department = :department, initials = :initials, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, f); err != nil {
		return fmt.Errorf("update faculty: %w", err)
	}
	return nil
}

// CountDuties returns the number of slots currently held by the faculty.
func (r *FacultyRepository) CountDuties(ctx context.Context, facultyID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM room_slots WHERE faculty_id = $1`, facultyID); err != nil {
		return 0, fmt.Errorf("count faculty duties: %w", err)
	}
	return count, nil
}

// Delete removes a faculty member by id. Callers must ensure no duties
// remain bound; see CountDuties.
func (r *FacultyRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM faculty WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete faculty: %w", err)
	}
	return nil
}
