package dto

// CreateSessionRequest creates one exam session plus its room slots.
type CreateSessionRequest struct {
	ExamTypeID    string `json:"exam_type_id" validate:"required"`
	CourseID      string `json:"course_id" validate:"required"`
	SessionDate   string `json:"session_date" validate:"required,datetime=2006-01-02"`
	StartTime     string `json:"start_time" validate:"required"`
	EndTime       string `json:"end_time" validate:"required"`
	RoomsRequired int    `json:"rooms_required" validate:"required,min=1"`
}

// SessionImportRow is one parsed row of a bulk session upload. Parsing the
// source file happens upstream; the import consumes structured rows only.
type SessionImportRow struct {
	Branch        string `json:"branch"`
	CourseCode    string `json:"course_code" validate:"required"`
	CourseName    string `json:"course_name" validate:"required"`
	Semester      int    `json:"semester" validate:"omitempty,min=1"`
	StudentCount  int    `json:"student_count" validate:"omitempty,min=0"`
	SessionDate   string `json:"session_date" validate:"required"`
	StartTime     string `json:"start_time" validate:"required"`
	EndTime       string `json:"end_time" validate:"required"`
	RoomsRequired int    `json:"rooms_required" validate:"required"`
}

// ImportSessionsRequest bulk-creates courses and sessions for an exam type.
type ImportSessionsRequest struct {
	ExamTypeID string             `json:"exam_type_id" validate:"required"`
	Rows       []SessionImportRow `json:"rows" validate:"required,min=1,dive"`
}
