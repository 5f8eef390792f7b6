package models

import "time"

// DutyConflict describes an existing duty that overlaps a candidate session.
type DutyConflict struct {
	CourseCode  string    `json:"course_code"`
	CourseName  string    `json:"course_name"`
	SessionDate time.Time `json:"session_date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
}

// ConflictResult is the outcome of a conflict check.
type ConflictResult struct {
	HasConflict bool           `json:"has_conflict"`
	Conflicts   []DutyConflict `json:"conflicts,omitempty"`
}

// RestrictionDetail explains an active priority-time restriction so callers
// can render a specific message when a pick or release is blocked.
type RestrictionDetail struct {
	PriorityStartTime string   `json:"priority_start_time"`
	PriorityEndTime   string   `json:"priority_end_time"`
	PriorityDays      []string `json:"priority_days,omitempty"`
	MinSlotsRequired  int      `json:"min_slots_required"`
	PriorityPicked    int      `json:"priority_picked"`
}

// PickEligibility is the outcome of the priority-quota eligibility check.
type PickEligibility struct {
	CanPick     bool               `json:"can_pick"`
	Reason      string             `json:"reason,omitempty"`
	Restriction *RestrictionDetail `json:"restriction,omitempty"`
}

// PickResult reports a successful pick.
type PickResult struct {
	SlotID    string               `json:"slot_id"`
	SessionID string               `json:"session_id"`
	Room      string               `json:"room,omitempty"`
	Progress  *RequirementProgress `json:"progress,omitempty"`
}

// ReleaseResult reports a successful release along with the faculty's
// updated requirement progress for immediate UI feedback.
type ReleaseResult struct {
	SlotID    string               `json:"slot_id"`
	SessionID string               `json:"session_id"`
	Progress  *RequirementProgress `json:"progress"`
}

// RequirementProgress is a faculty's standing against the effective
// requirement for one exam type. Duty counts are always recomputed from
// the persisted slot bindings.
type RequirementProgress struct {
	FacultyEmail     string `json:"faculty_email"`
	ExamTypeID       string `json:"exam_type_id"`
	Cadre            Cadre  `json:"cadre"`
	CurrentDuties    int    `json:"current_duties"`
	EffectiveMin     int    `json:"effective_min"`
	EffectiveMax     int    `json:"effective_max,omitempty"`
	PriorityPicked   int    `json:"priority_picked"`
	PriorityRequired int    `json:"priority_required"`
	Confirmed        bool   `json:"confirmed"`
	MeetsMinimum     bool   `json:"meets_minimum"`
}

// HeldDuty is one duty a faculty member currently holds.
type HeldDuty struct {
	SlotID      string    `json:"slot_id"`
	SessionID   string    `json:"session_id"`
	CourseCode  string    `json:"course_code"`
	CourseName  string    `json:"course_name"`
	SessionDate time.Time `json:"session_date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Room        string    `json:"room,omitempty"`
}
