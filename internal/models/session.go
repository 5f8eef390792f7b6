package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SessionStatus marks whether a session still accepts picks.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// SlotStatus is the assignment state of a room slot.
type SlotStatus string

const (
	SlotFree     SlotStatus = "free"
	SlotAssigned SlotStatus = "assigned"
)

// ExamSession is a single sitting of a course exam. Times of day are stored
// as "HH:MM" strings and compared as minutes of day; start must precede end.
type ExamSession struct {
	ID            string        `db:"id" json:"id"`
	ExamTypeID    string        `db:"exam_type_id" json:"exam_type_id"`
	CourseID      string        `db:"course_id" json:"course_id"`
	SessionDate   time.Time     `db:"session_date" json:"session_date"`
	StartTime     string        `db:"start_time" json:"start_time"`
	EndTime       string        `db:"end_time" json:"end_time"`
	RoomsRequired int           `db:"rooms_required" json:"rooms_required"`
	Status        SessionStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// ExamSessionDetail joins a session with its course identity.
type ExamSessionDetail struct {
	ExamSession
	CourseCode string `db:"course_code" json:"course_code"`
	CourseName string `db:"course_name" json:"course_name"`
}

// RoomSlot is the unit of allocation: picking a duty binds a slot to a
// faculty member. A slot holds at most one faculty at a time.
type RoomSlot struct {
	ID        string     `db:"id" json:"id"`
	SessionID string     `db:"session_id" json:"session_id"`
	Room      string     `db:"room" json:"room"`
	Status    SlotStatus `db:"status" json:"status"`
	FacultyID *string    `db:"faculty_id" json:"faculty_id,omitempty"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// SlotWithSession is the flattened slot view the allocation and quota logic
// operates on: one row per slot joined with session and course identity.
type SlotWithSession struct {
	SlotID      string     `db:"slot_id" json:"slot_id"`
	SessionID   string     `db:"session_id" json:"session_id"`
	ExamTypeID  string     `db:"exam_type_id" json:"exam_type_id"`
	CourseCode  string     `db:"course_code" json:"course_code"`
	CourseName  string     `db:"course_name" json:"course_name"`
	SessionDate time.Time  `db:"session_date" json:"session_date"`
	StartTime   string     `db:"start_time" json:"start_time"`
	EndTime     string     `db:"end_time" json:"end_time"`
	Room        string     `db:"room" json:"room"`
	Status      SlotStatus `db:"status" json:"status"`
	FacultyID   *string    `db:"faculty_id" json:"faculty_id,omitempty"`
}

// MinuteOfDay parses an "HH:MM" clock value into minutes since midnight.
func MinuteOfDay(clock string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", clock)
	}
	return hour*60 + minute, nil
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect. Touching endpoints do not overlap.
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// SessionOverlaps reports whether two sessions on the same date overlap in
// time. Unparseable times count as no overlap.
func SessionOverlaps(aStart, aEnd, bStart, bEnd string) bool {
	s1, err := MinuteOfDay(aStart)
	if err != nil {
		return false
	}
	e1, err := MinuteOfDay(aEnd)
	if err != nil {
		return false
	}
	s2, err := MinuteOfDay(bStart)
	if err != nil {
		return false
	}
	e2, err := MinuteOfDay(bEnd)
	if err != nil {
		return false
	}
	return Overlaps(s1, e1, s2, e2)
}

// InWindow reports whether the session interval [start,end) intersects the
// priority window [wStart,wEnd).
func InWindow(start, end, wStart, wEnd string) bool {
	return SessionOverlaps(start, end, wStart, wEnd)
}
