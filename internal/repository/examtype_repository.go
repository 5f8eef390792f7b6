package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-duty-api/internal/models"
)

// ExamTypeRepository provides persistence for duty-selection campaigns.
type ExamTypeRepository struct {
	db *sqlx.DB
}

// NewExamTypeRepository creates a new exam type repository.
func NewExamTypeRepository(db *sqlx.DB) *ExamTypeRepository {
	return &ExamTypeRepository{db: db}
}

// List returns all exam types, newest first.
func (r *ExamTypeRepository) List(ctx context.Context) ([]models.ExamType, error) {
	const query = `SELECT id, type_name, selection_start, selection_deadline, is_active, created_at, updated_at FROM exam_types ORDER BY created_at DESC`
	var examTypes []models.ExamType
	if err := r.db.SelectContext(ctx, &examTypes, query); err != nil {
		return nil, fmt.Errorf("list exam types: %w", err)
	}
	return examTypes, nil
}

// FindByID loads an exam type by id.
func (r *ExamTypeRepository) FindByID(ctx context.Context, id string) (*models.ExamType, error) {
	const query = `SELECT id, type_name, selection_start, selection_deadline, is_active, created_at, updated_at FROM exam_types WHERE id = $1`
	var examType models.ExamType
	if err := r.db.GetContext(ctx, &examType, query, id); err != nil {
		return nil, err
	}
	return &examType, nil
}

// Create stores a new exam type.
func (r *ExamTypeRepository) Create(ctx context.Context, examType *models.ExamType) error {
	if examType.ID == "" {
		examType.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if examType.CreatedAt.IsZero() {
		examType.CreatedAt = now
	}
	examType.UpdatedAt = now

	const query = `INSERT INTO exam_types (id, type_name, selection_start, selection_deadline, is_active, created_at, updated_at) VALUES (:id, :type_name, :selection_start, :selection_deadline, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, examType); err != nil {
		return fmt.Errorf("create exam type: %w", err)
	}
	return nil
}

// Update modifies an exam type.
func (r *ExamTypeRepository) Update(ctx context.Context, examType *models.ExamType) error {
	examType.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exam_types SET type_name = :type_name, selection_start = :selection_start, selection_deadline = :selection_deadline, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, examType); err != nil {
		return fmt.Errorf("update exam type: %w", err)
	}
	return nil
}

// Delete removes an exam type; owned sessions, requirements and
// restrictions cascade at the schema level.
func (r *ExamTypeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM exam_types WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete exam type: %w", err)
	}
	return nil
}
