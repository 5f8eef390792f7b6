package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-duty-api/internal/models"
)

// CourseRepository provides persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns all courses ordered by code.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	const query = `SELECT id, branch, code, name, semester, student_count, created_at, updated_at FROM courses ORDER BY code ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindByCode loads a course by its unique code.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	const query = `SELECT id, branch, code, name, semester, student_count, created_at, updated_at FROM courses WHERE code = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}

// UpsertByCode inserts the course or refreshes an existing row with the
// same code, returning the id either way. Import rows for a known code
// update name/branch/semester/student count in place.
func (r *CourseRepository) UpsertByCode(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, branch, code, name, semester, student_count, created_at, updated_at)
		VALUES (:id, :branch, :code, :name, :semester, :student_count, :created_at, :updated_at)
		ON CONFLICT (code) DO UPDATE SET branch = EXCLUDED.branch, name = EXCLUDED.name, semester = EXCLUDED.semester, student_count = EXCLUDED.student_count, updated_at = EXCLUDED.updated_at
		RETURNING id`
	rows, err := sqlx.NamedQueryContext(ctx, exec, query, course)
	if err != nil {
		return fmt.Errorf("upsert course %s: %w", course.Code, err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&course.ID); err != nil {
			return fmt.Errorf("scan upserted course id: %w", err)
		}
	}
	return rows.Err()
}
