package models

import "time"

// CadreAllocation is one row of the per-cadre allocation table in an
// auto-assignment report.
type CadreAllocation struct {
	Cadre         Cadre   `json:"cadre"`
	Weight        float64 `json:"weight"`
	TargetDuties  int     `json:"target_duties"`
	MinPerFaculty int     `json:"min_per_faculty"`
	FacultyCount  int     `json:"faculty_count"`
}

// FacultyAllocation is the per-faculty before/after view of an
// auto-assignment run.
type FacultyAllocation struct {
	FacultyID    string `json:"faculty_id"`
	Email        string `json:"email"`
	Initials     string `json:"initials"`
	Cadre        Cadre  `json:"cadre"`
	Before       int    `json:"before"`
	Assigned     int    `json:"assigned"`
	Reallocated  int    `json:"reallocated"`
	After        int    `json:"after"`
	EffectiveMin int    `json:"effective_min"`
	MeetsMinimum bool   `json:"meets_minimum"`
	MeetsTarget  bool   `json:"meets_target"`
}

// Reallocation records a duty moved from an over-allocated faculty member
// to an under-allocated one.
type Reallocation struct {
	SlotID      string    `json:"slot_id"`
	FromEmail   string    `json:"from"`
	ToEmail     string    `json:"to"`
	CourseCode  string    `json:"course_code"`
	SessionDate time.Time `json:"session_date"`
}

// AssignmentFailure records a slot the engine could not fill.
type AssignmentFailure struct {
	SlotID      string    `json:"slot_id"`
	SessionID   string    `json:"session_id"`
	CourseCode  string    `json:"course_code"`
	SessionDate time.Time `json:"session_date"`
	Reason      string    `json:"reason"`
}

// AssignmentReport summarises an auto-assignment pass. Dry runs produce the
// identical shape without persisting anything.
type AssignmentReport struct {
	ExamTypeID     string              `json:"exam_type_id"`
	DryRun         bool                `json:"dry_run"`
	GeneratedAt    time.Time           `json:"generated_at"`
	TotalFreeSlots int                 `json:"total_free_slots"`
	AssignedCount  int                 `json:"assigned_count"`
	Cadres         []CadreAllocation   `json:"cadres"`
	Faculty        []FacultyAllocation `json:"faculty"`
	Reallocations  []Reallocation      `json:"reallocations,omitempty"`
	Failures       []AssignmentFailure `json:"failures,omitempty"`
}
