package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-duty-api/internal/models"
)

// SessionRepository provides persistence for exam sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionDetailColumns = `s.id, s.exam_type_id, s.course_id, s.session_date, s.start_time, s.end_time, s.rooms_required, s.status, s.created_at, s.updated_at, c.code AS course_code, c.name AS course_name`

// FindByID loads a session joined with its course identity.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.ExamSessionDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM exam_sessions s JOIN courses c ON c.id = s.course_id WHERE s.id = $1`, sessionDetailColumns)
	var session models.ExamSessionDetail
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByExamType returns the sessions of an exam type in calendar order.
func (r *SessionRepository) ListByExamType(ctx context.Context, examTypeID string) ([]models.ExamSessionDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM exam_sessions s JOIN courses c ON c.id = s.course_id WHERE s.exam_type_id = $1 ORDER BY s.session_date ASC, s.start_time ASC, c.code ASC`, sessionDetailColumns)
	var sessions []models.ExamSessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, examTypeID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Exists reports whether a session already exists for (exam type, course,
// date, start time); used for duplicate detection during import.
func (r *SessionRepository) Exists(ctx context.Context, exec sqlx.ExtContext, examTypeID, courseID string, date time.Time, startTime string) (bool, error) {
	const query = `SELECT COUNT(*) FROM exam_sessions WHERE exam_type_id = $1 AND course_id = $2 AND session_date = $3 AND start_time = $4`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, examTypeID, courseID, date, startTime); err != nil {
		return false, fmt.Errorf("check session exists: %w", err)
	}
	return count > 0, nil
}

// CreateWithSlots stores the session and its rooms_required slots in the
// caller's transaction. Slot rows are created free, one per room needed.
func (r *SessionRepository) CreateWithSlots(ctx context.Context, exec sqlx.ExtContext, session *models.ExamSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = models.SessionOpen
	}

	const insertSession = `INSERT INTO exam_sessions (id, exam_type_id, course_id, session_date, start_time, end_time, rooms_required, status, created_at, updated_at)
		VALUES (:id, :exam_type_id, :course_id, :session_date, :start_time, :end_time, :rooms_required, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, insertSession, session); err != nil {
		return fmt.Errorf("create exam session: %w", err)
	}

	const insertSlot = `INSERT INTO room_slots (id, session_id, room, status, faculty_id, updated_at) VALUES ($1, $2, $3, 'free', NULL, $4)`
	for i := 0; i < session.RoomsRequired; i++ {
		room := fmt.Sprintf("R%d", i+1)
		if _, err := exec.ExecContext(ctx, insertSlot, uuid.NewString(), session.ID, room, now); err != nil {
			return fmt.Errorf("create room slot: %w", err)
		}
	}
	return nil
}

// UpdateStatus flips a session between open and closed.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE exam_sessions SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// Delete removes a session; its slots cascade at the schema level.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM exam_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete exam session: %w", err)
	}
	return nil
}
