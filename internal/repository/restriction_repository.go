package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-duty-api/internal/models"
)

// RestrictionRepository persists priority time restrictions and their
// per-faculty exemptions.
type RestrictionRepository struct {
	db *sqlx.DB
}

// NewRestrictionRepository creates a new restriction repository.
func NewRestrictionRepository(db *sqlx.DB) *RestrictionRepository {
	return &RestrictionRepository{db: db}
}

// ListByExamType returns the restrictions for an exam type.
func (r *RestrictionRepository) ListByExamType(ctx context.Context, examTypeID string) ([]models.TimeRestriction, error) {
	const query = `SELECT id, exam_type_id, cadre, priority_start_time, priority_end_time, priority_days, min_slots_required, created_at FROM time_restrictions WHERE exam_type_id = $1 ORDER BY cadre ASC`
	var restrictions []models.TimeRestriction
	if err := r.db.SelectContext(ctx, &restrictions, query, examTypeID); err != nil {
		return nil, fmt.Errorf("list time restrictions: %w", err)
	}
	return restrictions, nil
}

// FindByExamTypeAndCadre loads the restriction applying to a cadre, if any.
func (r *RestrictionRepository) FindByExamTypeAndCadre(ctx context.Context, examTypeID string, cadre models.Cadre) (*models.TimeRestriction, error) {
	const query = `SELECT id, exam_type_id, cadre, priority_start_time, priority_end_time, priority_days, min_slots_required, created_at FROM time_restrictions WHERE exam_type_id = $1 AND cadre = $2`
	var restriction models.TimeRestriction
	if err := r.db.GetContext(ctx, &restriction, query, examTypeID, cadre); err != nil {
		return nil, err
	}
	return &restriction, nil
}

// Upsert inserts or replaces the restriction for (exam_type, cadre).
func (r *RestrictionRepository) Upsert(ctx context.Context, restriction *models.TimeRestriction) error {
	if restriction.ID == "" {
		restriction.ID = uuid.NewString()
	}
	if restriction.CreatedAt.IsZero() {
		restriction.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO time_restrictions (id, exam_type_id, cadre, priority_start_time, priority_end_time, priority_days, min_slots_required, created_at)
		VALUES (:id, :exam_type_id, :cadre, :priority_start_time, :priority_end_time, :priority_days, :min_slots_required, :created_at)
		ON CONFLICT (exam_type_id, cadre) DO UPDATE SET priority_start_time = EXCLUDED.priority_start_time, priority_end_time = EXCLUDED.priority_end_time, priority_days = EXCLUDED.priority_days, min_slots_required = EXCLUDED.min_slots_required`
	if _, err := r.db.NamedExecContext(ctx, query, restriction); err != nil {
		return fmt.Errorf("upsert time restriction: %w", err)
	}
	return nil
}

// IsExempt reports whether the faculty email is exempted from time
// restrictions for the exam type.
func (r *RestrictionRepository) IsExempt(ctx context.Context, examTypeID, facultyEmail string) (bool, error) {
	const query = `SELECT id FROM restriction_exemptions WHERE exam_type_id = $1 AND faculty_email = $2`
	var id string
	err := r.db.GetContext(ctx, &id, query, examTypeID, facultyEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup restriction exemption: %w", err)
	}
	return true, nil
}

// ListExemptionsByExamType returns every exemption for an exam type.
func (r *RestrictionRepository) ListExemptionsByExamType(ctx context.Context, examTypeID string) ([]models.RestrictionExemption, error) {
	const query = `SELECT id, exam_type_id, faculty_email, reason, granted_by, created_at FROM restriction_exemptions WHERE exam_type_id = $1 ORDER BY created_at ASC`
	var exemptions []models.RestrictionExemption
	if err := r.db.SelectContext(ctx, &exemptions, query, examTypeID); err != nil {
		return nil, fmt.Errorf("list restriction exemptions: %w", err)
	}
	return exemptions, nil
}

// CreateExemption grants an exemption to a faculty email.
func (r *RestrictionRepository) CreateExemption(ctx context.Context, exemption *models.RestrictionExemption) error {
	if exemption.ID == "" {
		exemption.ID = uuid.NewString()
	}
	if exemption.CreatedAt.IsZero() {
		exemption.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO restriction_exemptions (id, exam_type_id, faculty_email, reason, granted_by, created_at)
		VALUES (:id, :exam_type_id, :faculty_email, :reason, :granted_by, :created_at)
		ON CONFLICT (exam_type_id, faculty_email) DO UPDATE SET reason = EXCLUDED.reason, granted_by = EXCLUDED.granted_by`
	if _, err := r.db.NamedExecContext(ctx, query, exemption); err != nil {
		return fmt.Errorf("create restriction exemption: %w", err)
	}
	return nil
}
