package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-duty-api/internal/models"
)

// SlotRepository provides persistence for room slots, the unit of duty
// allocation.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository creates a new slot repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

const slotViewColumns = `rs.id AS slot_id, rs.session_id, s.exam_type_id, c.code AS course_code, c.name AS course_name, s.session_date, s.start_time, s.end_time, rs.room, rs.status, rs.faculty_id`

const slotViewFrom = `FROM room_slots rs JOIN exam_sessions s ON s.id = rs.session_id JOIN courses c ON c.id = s.course_id`

// ListByExamType returns every slot of an exam type joined with session
// and course identity, in deterministic calendar order.
func (r *SlotRepository) ListByExamType(ctx context.Context, examTypeID string) ([]models.SlotWithSession, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE s.exam_type_id = $1 ORDER BY s.session_date ASC, s.start_time ASC, c.code ASC, rs.id ASC`, slotViewColumns, slotViewFrom)
	var slots []models.SlotWithSession
	if err := r.db.SelectContext(ctx, &slots, query, examTypeID); err != nil {
		return nil, fmt.Errorf("list slots by exam type: %w", err)
	}
	return slots, nil
}

// ListBySession returns the slots of one session.
func (r *SlotRepository) ListBySession(ctx context.Context, sessionID string) ([]models.RoomSlot, error) {
	const query = `SELECT id, session_id, room, status, faculty_id, updated_at FROM room_slots WHERE session_id = $1 ORDER BY room ASC`
	var slots []models.RoomSlot
	if err := r.db.SelectContext(ctx, &slots, query, sessionID); err != nil {
		return nil, fmt.Errorf("list slots by session: %w", err)
	}
	return slots, nil
}

// ListHeldByFaculty returns the slots a faculty member holds within an
// exam type.
func (r *SlotRepository) ListHeldByFaculty(ctx context.Context, facultyID, examTypeID string) ([]models.SlotWithSession, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE rs.faculty_id = $1 AND s.exam_type_id = $2 ORDER BY s.session_date ASC, s.start_time ASC, rs.id ASC`, slotViewColumns, slotViewFrom)
	var slots []models.SlotWithSession
	if err := r.db.SelectContext(ctx, &slots, query, facultyID, examTypeID); err != nil {
		return nil, fmt.Errorf("list held slots: %w", err)
	}
	return slots, nil
}

// ListHeldByFacultyOnDate returns the slots a faculty member holds on a
// calendar date across all exam types; the conflict checker compares the
// candidate session against these.
func (r *SlotRepository) ListHeldByFacultyOnDate(ctx context.Context, facultyID string, date time.Time) ([]models.SlotWithSession, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE rs.faculty_id = $1 AND s.session_date = $2 ORDER BY s.start_time ASC, rs.id ASC`, slotViewColumns, slotViewFrom)
	var slots []models.SlotWithSession
	if err := r.db.SelectContext(ctx, &slots, query, facultyID, date); err != nil {
		return nil, fmt.Errorf("list held slots on date: %w", err)
	}
	return slots, nil
}

// Claim atomically binds one free slot of the session to the faculty. The
// inner select takes a row lock skipping locked rows, so two concurrent
// picks of the last free slot resolve to one winner; the loser sees
// sql.ErrNoRows.
func (r *SlotRepository) Claim(ctx context.Context, exec sqlx.ExtContext, sessionID, facultyID string) (*models.RoomSlot, error) {
	const query = `UPDATE room_slots SET faculty_id = $2, status = 'assigned', updated_at = $3
		WHERE id = (
			SELECT id FROM room_slots
			WHERE session_id = $1 AND status = 'free'
			ORDER BY room ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, session_id, room, status, faculty_id, updated_at`
	var slot models.RoomSlot
	if err := sqlx.GetContext(ctx, exec, &slot, query, sessionID, facultyID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &slot, nil
}

// AssignSlot binds a specific slot to a faculty member if it is still
// free; used by the auto-assignment batch within its transaction.
func (r *SlotRepository) AssignSlot(ctx context.Context, exec sqlx.ExtContext, slotID, facultyID string) error {
	result, err := exec.ExecContext(ctx, `UPDATE room_slots SET faculty_id = $2, status = 'assigned', updated_at = $3 WHERE id = $1 AND status = 'free'`, slotID, facultyID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("assign slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign slot rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("slot %s no longer free", slotID)
	}
	return nil
}

// Reassign moves an assigned slot from one faculty to another; used by
// the reallocation pass.
func (r *SlotRepository) Reassign(ctx context.Context, exec sqlx.ExtContext, slotID, fromFacultyID, toFacultyID string) error {
	result, err := exec.ExecContext(ctx, `UPDATE room_slots SET faculty_id = $3, updated_at = $4 WHERE id = $1 AND faculty_id = $2 AND status = 'assigned'`, slotID, fromFacultyID, toFacultyID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reassign slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reassign slot rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("slot %s not held by donor", slotID)
	}
	return nil
}

// Release unbinds the slot if the faculty still holds it. Returns the
// number of rows affected so callers can distinguish "not held" from
// success without a prior read.
func (r *SlotRepository) Release(ctx context.Context, exec sqlx.ExtContext, slotID, facultyID string) (int64, error) {
	result, err := exec.ExecContext(ctx, `UPDATE room_slots SET faculty_id = NULL, status = 'free', updated_at = $3 WHERE id = $1 AND faculty_id = $2 AND status = 'assigned'`, slotID, facultyID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("release slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("release slot rows affected: %w", err)
	}
	return affected, nil
}

// CountFreeBySession returns the number of free slots in a session.
func (r *SlotRepository) CountFreeBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM room_slots WHERE session_id = $1 AND status = 'free'`, sessionID); err != nil {
		return 0, fmt.Errorf("count free slots: %w", err)
	}
	return count, nil
}
