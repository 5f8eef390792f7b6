package models

// ImportRowError captures a single failed row in a bulk import.
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportSummary reports the outcome of a bulk session import. The batch is
// all-or-nothing: any row error rolls the whole transaction back and
// Committed stays false.
type ImportSummary struct {
	TotalRows       int              `json:"total_rows"`
	SessionsCreated int              `json:"sessions_created"`
	SlotsCreated    int              `json:"slots_created"`
	CoursesUpserted int              `json:"courses_upserted"`
	Committed       bool             `json:"committed"`
	Errors          []ImportRowError `json:"errors,omitempty"`
}
