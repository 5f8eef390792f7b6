package models

import (
	"strings"
	"time"
)

// ExamType is a named duty-selection campaign. Its selection window gates
// picks and confirmations.
type ExamType struct {
	ID                string    `db:"id" json:"id"`
	TypeName          string    `db:"type_name" json:"type_name"`
	SelectionStart    time.Time `db:"selection_start" json:"selection_start"`
	SelectionDeadline time.Time `db:"selection_deadline" json:"selection_deadline"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// CadreRequirement sets the minimum slots a faculty of a cadre must pick
// for an exam type. Unique per (exam_type, cadre).
type CadreRequirement struct {
	ID         string    `db:"id" json:"id"`
	ExamTypeID string    `db:"exam_type_id" json:"exam_type_id"`
	Cadre      Cadre     `db:"cadre" json:"cadre"`
	MinDuties  int       `db:"min_duties" json:"min_duties"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// FacultyDutyException overrides the cadre requirement for one faculty
// member within one exam type. Nil fields inherit the cadre values.
type FacultyDutyException struct {
	ID         string    `db:"id" json:"id"`
	FacultyID  string    `db:"faculty_id" json:"faculty_id"`
	ExamTypeID string    `db:"exam_type_id" json:"exam_type_id"`
	MinDuties  *int      `db:"min_duties" json:"min_duties,omitempty"`
	MaxDuties  *int      `db:"max_duties" json:"max_duties,omitempty"`
	Reason     string    `db:"reason" json:"reason"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

/// TimeRestriction declares a priority time window for a cadre: faculty must
// pick MinSlotsRequired duties inside the window (on PriorityDays, when
// set) before picking outside it.
type TimeRestriction struct {
	ID                string    `db:"id" json:"id"`
	ExamTypeID        string    `db:"exam_type_id" json:"exam_type_id"`
	Cadre             Cadre     `db:"cadre" json:"cadre"`
	PriorityStartTime string    `db:"priority_start_time" json:"priority_start_time"`
	PriorityEndTime   string    `db:"priority_end_time" json:"priority_end_time"`
	PriorityDays      string    `db:"priority_days" json:"priority_days"`
	MinSlotsRequired  int       `db:"min_slots_required" json:"min_slots_required"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Days returns the restriction's weekday filter as upper-cased day names.
// An empty filter means every day qualifies.
func (r TimeRestriction) Days() []string {
	if strings.TrimSpace(r.PriorityDays) == "" {
		return nil
	}
	parts := strings.Split(r.PriorityDays, ",")
	days := make([]string, 0, len(parts))
	for _, part := range parts {
		day := strings.ToUpper(strings.TrimSpace(part))
		if day != "" {
			days = append(days, day)
		}
	}
	return days
}

// AppliesOn reports whether the restriction's day filter matches the date.
func (r TimeRestriction) AppliesOn(date time.Time) bool {
	days := r.Days()
	if len(days) == 0 {
		return true
	}
	name := strings.ToUpper(date.Weekday().String())
	for _, day := range days {
		if day == name {
			return true
		}
	}
	return false
}

// RestrictionExemption waives time-restriction enforcement for one faculty
// member within one exam type.
type RestrictionExemption struct {
	ID           string    `db:"id" json:"id"`
	ExamTypeID   string    `db:"exam_type_id" json:"exam_type_id"`
	FacultyEmail string    `db:"faculty_email" json:"faculty_email"`
	Reason       string    `db:"reason" json:"reason"`
	GrantedBy    string    `db:"granted_by" json:"granted_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DutyConfirmation is the per (faculty, exam_type) confirmation state.
// Once confirmed, no release is permitted for that exam type.
type DutyConfirmation struct {
	ID          string     `db:"id" json:"id"`
	FacultyID   string     `db:"faculty_id" json:"faculty_id"`
	ExamTypeID  string     `db:"exam_type_id" json:"exam_type_id"`
	Confirmed   bool       `db:"confirmed" json:"confirmed"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
}
