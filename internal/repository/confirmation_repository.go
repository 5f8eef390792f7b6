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

// ConfirmationRepository persists per (faculty, exam_type) duty
// confirmations.
type ConfirmationRepository struct {
	db *sqlx.DB
}

// NewConfirmationRepository creates a new confirmation repository.
func NewConfirmationRepository(db *sqlx.DB) *ConfirmationRepository {
	return &ConfirmationRepository{db: db}
}

// Find loads the confirmation row for (faculty, exam_type). Missing rows
// return nil without error; absence means not confirmed.
func (r *ConfirmationRepository) Find(ctx context.Context, facultyID, examTypeID string) (*models.DutyConfirmation, error) {
	const query = `SELECT id, faculty_id, exam_type_id, confirmed, confirmed_at FROM duty_confirmations WHERE faculty_id = $1 AND exam_type_id = $2`
	var confirmation models.DutyConfirmation
	if err := r.db.GetContext(ctx, &confirmation, query, facultyID, examTypeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find duty confirmation: %w", err)
	}
	return &confirmation, nil
}

// SetConfirmed marks the faculty's duties confirmed for the exam type and
// returns the stored row. Confirming twice is a no-op on the timestamp.
func (r *ConfirmationRepository) SetConfirmed(ctx context.Context, facultyID, examTypeID string) (*models.DutyConfirmation, error) {
	now := time.Now().UTC()
	confirmation := models.DutyConfirmation{
		ID:          uuid.NewString(),
		FacultyID:   facultyID,
		ExamTypeID:  examTypeID,
		Confirmed:   true,
		ConfirmedAt: &now,
	}
	const query = `INSERT INTO duty_confirmations (id, faculty_id, exam_type_id, confirmed, confirmed_at)
		VALUES (:id, :faculty_id, :exam_type_id, :confirmed, :confirmed_at)
		ON CONFLICT (faculty_id, exam_type_id) DO UPDATE SET confirmed = TRUE, confirmed_at = COALESCE(duty_confirmations.confirmed_at, EXCLUDED.confirmed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, &confirmation); err != nil {
		return nil, fmt.Errorf("set duty confirmation: %w", err)
	}
	return &confirmation, nil
}

// ListConfirmedByExamType returns the faculty ids that have confirmed for
// the exam type; the auto-assignment engine skips these members.
func (r *ConfirmationRepository) ListConfirmedByExamType(ctx context.Context, examTypeID string) ([]string, error) {
	const query = `SELECT faculty_id FROM duty_confirmations WHERE exam_type_id = $1 AND confirmed = TRUE ORDER BY faculty_id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, examTypeID); err != nil {
		return nil, fmt.Errorf("list confirmed faculty: %w", err)
	}
	return ids, nil
}
