package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-duty-api/internal/models"
)

// RequirementRepository persists cadre requirements and per-faculty duty
// exceptions for exam types.
type RequirementRepository struct {
	db *sqlx.DB
}

// NewRequirementRepository creates a new requirement repository.
func NewRequirementRepository(db *sqlx.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

// ListByExamType returns the cadre requirements for an exam type.
func (r *RequirementRepository) ListByExamType(ctx context.Context, examTypeID string) ([]models.CadreRequirement, error) {
	const query = `SELECT id, exam_type_id, cadre, min_duties, created_at FROM cadre_requirements WHERE exam_type_id = $1 ORDER BY cadre ASC`
	var requirements []models.CadreRequirement
	if err := r.db.SelectContext(ctx, &requirements, query, examTypeID); err != nil {
		return nil, fmt.Errorf("list cadre requirements: %w", err)
	}
	return requirements, nil
}

// FindByExamTypeAndCadre loads the requirement for one cadre.
func (r *RequirementRepository) FindByExamTypeAndCadre(ctx context.Context, examTypeID string, cadre models.Cadre) (*models.CadreRequirement, error) {
	const query = `SELECT id, exam_type_id, cadre, min_duties, created_at FROM cadre_requirements WHERE exam_type_id = $1 AND cadre = $2`
	var requirement models.CadreRequirement
	if err := r.db.GetContext(ctx, &requirement, query, examTypeID, cadre); err != nil {
		return nil, err
	}
	return &requirement, nil
}

// Upsert inserts or replaces the requirement for (exam_type, cadre).
func (r *RequirementRepository) Upsert(ctx context.Context, requirement *models.CadreRequirement) error {
	if requirement.ID == "" {
		requirement.ID = uuid.NewString()
	}
	if requirement.CreatedAt.IsZero() {
		requirement.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO cadre_requirements (id, exam_type_id, cadre, min_duties, created_at)
		VALUES (:id, :exam_type_id, :cadre, :min_duties, :created_at)
		ON CONFLICT (exam_type_id, cadre) DO UPDATE SET min_duties = EXCLUDED.min_duties`
	if _, err := r.db.NamedExecContext(ctx, query, requirement); err != nil {
		return fmt.Errorf("upsert cadre requirement: %w", err)
	}
	return nil
}

// ListExceptionsByExamType returns every duty exception for an exam type.
func (r *RequirementRepository) ListExceptionsByExamType(ctx context.Context, examTypeID string) ([]models.FacultyDutyException, error) {
	const query = `SELECT id, faculty_id, exam_type_id, min_duties, max_duties, reason, created_at FROM faculty_duty_exceptions WHERE exam_type_id = $1 ORDER BY created_at ASC`
	var exceptions []models.FacultyDutyException
	if err := r.db.SelectContext(ctx, &exceptions, query, examTypeID); err != nil {
		return nil, fmt.Errorf("list duty exceptions: %w", err)
	}
	return exceptions, nil
}

// FindException loads the exception for (faculty, exam_type) if any.
func (r *RequirementRepository) FindException(ctx context.Context, facultyID, examTypeID string) (*models.FacultyDutyException, error) {
	const query = `SELECT id, faculty_id, exam_type_id, min_duties, max_duties, reason, created_at FROM faculty_duty_exceptions WHERE faculty_id = $1 AND exam_type_id = $2`
	var exception models.FacultyDutyException
	if err := r.db.GetContext(ctx, &exception, query, facultyID, examTypeID); err != nil {
		return nil, err
	}
	return &exception, nil
}

// UpsertException inserts or replaces an exception for (faculty, exam_type).
func (r *RequirementRepository) UpsertException(ctx context.Context, exception *models.FacultyDutyException) error {
	if exception.ID == "" {
		exception.ID = uuid.NewString()
	}
	if exception.CreatedAt.IsZero() {
		exception.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO faculty_duty_exceptions (id, faculty_id, exam_type_id, min_duties, max_duties, reason, created_at)
		VALUES (:id, :faculty_id, :exam_type_id, :min_duties, :max_duties, :reason, :created_at)
		ON CONFLICT (faculty_id, exam_type_id) DO UPDATE SET min_duties = EXCLUDED.min_duties, max_duties = EXCLUDED.max_duties, reason = EXCLUDED.reason`
	if _, err := r.db.NamedExecContext(ctx, query, exception); err != nil {
		return fmt.Errorf("upsert duty exception: %w", err)
	}
	return nil
}
