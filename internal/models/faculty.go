package models

import "time"

// Cadre is the faculty rank category keying duty quotas and priority rules.
type Cadre string

const (
	CadreProfessor          Cadre = "Professor"
	CadreAssociateProfessor Cadre = "Associate Professor"
	CadreAssistantProfessor Cadre = "Assistant Professor"
	CadreOthers             Cadre = "Others"
)

// Cadres lists every recognised cadre in display order.
var Cadres = []Cadre{CadreProfessor, CadreAssociateProfessor, CadreAssistantProfessor, CadreOthers}

// ValidCadre reports whether the value is a recognised cadre.
func ValidCadre(c Cadre) bool {
	for _, known := range Cadres {
		if known == c {
			return true
		}
	}
	return false
}

// Faculty is a staff member eligible for invigilation duties.
type Faculty struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	FullName   string    `db:"full_name" json:"full_name"`
	Cadre      Cadre     `db:"cadre" json:"cadre"`
	Department string    `db:"department" json:"department"`
	Initials   string    `db:"initials" json:"initials"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// FacultyFilter captures filtering criteria for listing faculty.
type FacultyFilter struct {
	Cadre      *Cadre
	Department string
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
