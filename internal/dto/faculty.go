package dto

// CreateFacultyRequest registers a faculty member on the roster.
type CreateFacultyRequest struct {
	Email      string `json:"email" validate:"required,email"`
	FullName   string `json:"full_name" validate:"required"`
	Cadre      string `json:"cadre" validate:"required"`
	Department string `json:"department"`
	Initials   string `json:"initials" validate:"required,max=8"`
}

// UpdateFacultyRequest edits a roster entry.
type UpdateFacultyRequest struct {
	Email      string `json:"email" validate:"required,email"`
	FullName   string `json:"full_name" validate:"required"`
	Cadre      string `json:"cadre" validate:"required"`
	Department string `json:"department"`
	Initials   string `json:"initials" validate:"required,max=8"`
}
