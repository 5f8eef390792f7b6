package dto

import "time"

// CreateExamTypeRequest opens a new duty-selection campaign.
type CreateExamTypeRequest struct {
	TypeName          string    `json:"type_name" validate:"required"`
	SelectionStart    time.Time `json:"selection_start" validate:"required"`
	SelectionDeadline time.Time `json:"selection_deadline" validate:"required,gtfield=SelectionStart"`
	IsActive          bool      `json:"is_active"`
}

// UpdateExamTypeRequest edits an existing campaign.
type UpdateExamTypeRequest struct {
	TypeName          string    `json:"type_name" validate:"required"`
	SelectionStart    time.Time `json:"selection_start" validate:"required"`
	SelectionDeadline time.Time `json:"selection_deadline" validate:"required,gtfield=SelectionStart"`
	IsActive          bool      `json:"is_active"`
}

// UpsertRequirementRequest sets the minimum duties for a cadre.
type UpsertRequirementRequest struct {
	Cadre     string `json:"cadre" validate:"required"`
	MinDuties int    `json:"min_duties" validate:"min=0"`
}

// UpsertRestrictionRequest sets the priority time window for a cadre.
// PriorityDays is a comma-separated list of upper-case day names; empty
// means every day.
type UpsertRestrictionRequest struct {
	Cadre             string `json:"cadre" validate:"required"`
	PriorityStartTime string `json:"priority_start_time" validate:"required"`
	PriorityEndTime   string `json:"priority_end_time" validate:"required"`
	PriorityDays      string `json:"priority_days"`
	MinSlotsRequired  int    `json:"min_slots_required" validate:"min=0"`
}

// UpsertExceptionRequest overrides the cadre requirement for one faculty
// member. Nil fields inherit the cadre values.
type UpsertExceptionRequest struct {
	FacultyID string `json:"faculty_id" validate:"required"`
	MinDuties *int   `json:"min_duties" validate:"omitempty,min=0"`
	MaxDuties *int   `json:"max_duties" validate:"omitempty,min=0"`
	Reason    string `json:"reason" validate:"required"`
}

// CreateExemptionRequest waives time-restriction enforcement for a faculty
// email.
type CreateExemptionRequest struct {
	FacultyEmail string `json:"faculty_email" validate:"required,email"`
	Reason       string `json:"reason" validate:"required"`
}

// AutoAssignRequest triggers an allocation pass. When Report is set the
// response is the rendered report file instead of the JSON payload.
type AutoAssignRequest struct {
	DryRun             bool   `json:"dry_run"`
	EnableReallocation bool   `json:"enable_reallocation"`
	Report             string `json:"report" validate:"omitempty,oneof=csv pdf"`
}
