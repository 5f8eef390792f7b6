package models

import "time"

// Course is an examinable course; rows are upserted by code during import.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Branch       string    `db:"branch" json:"branch"`
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	Semester     int       `db:"semester" json:"semester"`
	StudentCount int       `db:"student_count" json:"student_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
