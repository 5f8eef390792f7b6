// Command seed prepares a development database: it creates the schema if
// missing, provisions the admin account, and optionally loads a small demo
// campaign for manual testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/exam-duty-api/internal/models"
	"github.com/noah-isme/exam-duty-api/pkg/config"
	"github.com/noah-isme/exam-duty-api/pkg/database"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ,
		ip_address TEXT,
		user_agent TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		user_id UUID,
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		resource_id TEXT,
		new_values JSONB,
		ip_address TEXT,
		user_agent TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS faculty (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		cadre TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		initials TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS courses (
		id UUID PRIMARY KEY,
		branch TEXT NOT NULL DEFAULT '',
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		semester INTEGER NOT NULL DEFAULT 0,
		student_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS exam_types (
		id UUID PRIMARY KEY,
		type_name TEXT NOT NULL UNIQUE,
		selection_start TIMESTAMPTZ NOT NULL,
		selection_deadline TIMESTAMPTZ NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cadre_requirements (
		id UUID PRIMARY KEY,
		exam_type_id UUID NOT NULL REFERENCES exam_types(id) ON DELETE CASCADE,
		cadre TEXT NOT NULL,
		min_duties INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (exam_type_id, cadre)
	)`,
	`CREATE TABLE IF NOT EXISTS faculty_duty_exceptions (
		id UUID PRIMARY KEY,
		faculty_id UUID NOT NULL REFERENCES faculty(id) ON DELETE CASCADE,
		exam_type_id UUID NOT NULL REFERENCES exam_types(id) ON DELETE CASCADE,
		min_duties INTEGER,
		max_duties INTEGER,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (faculty_id, exam_type_id)
	)`,
	`CREATE TABLE IF NOT EXISTS time_restrictions (
		id UUID PRIMARY KEY,
		exam_type_id UUID NOT NULL REFERENCES exam_types(id) ON DELETE CASCADE,
		cadre TEXT NOT NULL,
		priority_start_time TEXT NOT NULL,
		priority_end_time TEXT NOT NULL,
		priority_days TEXT NOT NULL DEFAULT '',
		min_slots_required INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (exam_type_id, cadre)
	)`,
	`CREATE TABLE IF NOT EXISTS restriction_exemptions (
		id UUID PRIMARY KEY,
		exam_type_id UUID NOT NULL REFERENCES exam_types(id) ON DELETE CASCADE,
		faculty_email TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		granted_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (exam_type_id, faculty_email)
	)`,
	`CREATE TABLE IF NOT EXISTS exam_sessions (
		id UUID PRIMARY KEY,
		exam_type_id UUID NOT NULL REFERENCES exam_types(id) ON DELETE CASCADE,
		course_id UUID NOT NULL REFERENCES courses(id),
		session_date DATE NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		rooms_required INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS room_slots (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES exam_sessions(id) ON DELETE CASCADE,
		room TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'free',
		faculty_id UUID REFERENCES faculty(id),
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS duty_confirmations (
		id UUID PRIMARY KEY,
		faculty_id UUID NOT NULL REFERENCES faculty(id) ON DELETE CASCADE,
		exam_type_id UUID NOT NULL REFERENCES exam_types(id) ON DELETE CASCADE,
		confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		confirmed_at TIMESTAMPTZ,
		UNIQUE (faculty_id, exam_type_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_room_slots_session ON room_slots (session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_room_slots_faculty ON room_slots (faculty_id)`,
	`CREATE INDEX IF NOT EXISTS idx_exam_sessions_type ON exam_sessions (exam_type_id)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id)`,
}

func main() {
	var (
		adminEmail    string
		adminPassword string
		demo          bool
	)
	flag.StringVar(&adminEmail, "admin-email", "admin@example.edu", "admin account email")
	flag.StringVar(&adminPassword, "admin-password", "changeme", "admin account password")
	flag.BoolVar(&demo, "demo", false, "load a demo campaign with faculty, sessions and rules")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Fatalf("failed to apply schema: %v", err)
		}
	}
	log.Println("schema ready")

	if err := seedAdmin(ctx, db, adminEmail, adminPassword); err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}

	if demo {
		if err := seedDemo(ctx, db); err != nil {
			log.Fatalf("failed to seed demo data: %v", err)
		}
		log.Println("demo campaign loaded")
	}
}

func seedAdmin(ctx context.Context, db *sqlx.DB, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	const query = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
		ON CONFLICT (email) DO NOTHING`
	res, err := db.ExecContext(ctx, query, uuid.NewString(), email, string(hash), "Administrator", models.RoleAdmin, now)
	if err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Printf("admin account created: %s", email)
	} else {
		log.Printf("admin account already present: %s", email)
	}
	return nil
}

type demoFaculty struct {
	email    string
	name     string
	initials string
	cadre    models.Cadre
}

func seedDemo(ctx context.Context, db *sqlx.DB) error {
	now := time.Now().UTC()

	roster := []demoFaculty{
		{"a.rao@example.edu", "Anita Rao", "AR", models.CadreProfessor},
		{"b.iyer@example.edu", "Balaji Iyer", "BI", models.CadreAssociateProfessor},
		{"c.mehta@example.edu", "Chirag Mehta", "CM", models.CadreAssistantProfessor},
		{"d.nair@example.edu", "Divya Nair", "DN", models.CadreAssistantProfessor},
	}
	facultyIDs := make(map[string]string, len(roster))
	for _, f := range roster {
		id := uuid.NewString()
		const q = `INSERT INTO faculty (id, email, full_name, cadre, department, initials, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'CSE', $5, $6, $6)
			ON CONFLICT (email) DO UPDATE SET full_name = EXCLUDED.full_name
			RETURNING id`
		if err := db.GetContext(ctx, &id, q, id, f.email, f.name, f.cadre, f.initials, now); err != nil {
			return fmt.Errorf("seed faculty %s: %w", f.email, err)
		}
		facultyIDs[f.email] = id

		hash, err := bcrypt.GenerateFromPassword([]byte("faculty123"), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		const uq = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
			ON CONFLICT (email) DO NOTHING`
		if _, err := db.ExecContext(ctx, uq, uuid.NewString(), f.email, string(hash), f.name, models.RoleFaculty, now); err != nil {
			return fmt.Errorf("seed faculty login %s: %w", f.email, err)
		}
	}

	examTypeID := uuid.NewString()
	const etq = `INSERT INTO exam_types (id, type_name, selection_start, selection_deadline, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
		ON CONFLICT (type_name) DO UPDATE SET selection_deadline = EXCLUDED.selection_deadline
		RETURNING id`
	if err := db.GetContext(ctx, &examTypeID, etq, examTypeID, "Midsem Demo", now.Add(-24*time.Hour), now.Add(14*24*time.Hour), now); err != nil {
		return fmt.Errorf("seed exam type: %w", err)
	}

	requirements := map[models.Cadre]int{
		models.CadreProfessor:          1,
		models.CadreAssociateProfessor: 2,
		models.CadreAssistantProfessor: 3,
	}
	for cadre, min := range requirements {
		const rq = `INSERT INTO cadre_requirements (id, exam_type_id, cadre, min_duties, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (exam_type_id, cadre) DO UPDATE SET min_duties = EXCLUDED.min_duties`
		if _, err := db.ExecContext(ctx, rq, uuid.NewString(), examTypeID, cadre, min, now); err != nil {
			return fmt.Errorf("seed requirement for %s: %w", cadre, err)
		}
	}

	const trq = `INSERT INTO time_restrictions (id, exam_type_id, cadre, priority_start_time, priority_end_time, priority_days, min_slots_required, created_at)
		VALUES ($1, $2, $3, '16:30', '18:00', '', 1, $4)
		ON CONFLICT (exam_type_id, cadre) DO NOTHING`
	if _, err := db.ExecContext(ctx, trq, uuid.NewString(), examTypeID, models.CadreProfessor, now); err != nil {
		return fmt.Errorf("seed restriction: %w", err)
	}

	courseID := uuid.NewString()
	const cq = `INSERT INTO courses (id, branch, code, name, semester, student_count, created_at, updated_at)
		VALUES ($1, 'CSE', 'CS301', 'Operating Systems', 5, 120, $2, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`
	if err := db.GetContext(ctx, &courseID, cq, courseID, now); err != nil {
		return fmt.Errorf("seed course: %w", err)
	}

	sessions := []struct {
		date       time.Time
		start, end string
		rooms      int
	}{
		{now.AddDate(0, 0, 7).Truncate(24 * time.Hour), "10:00", "12:00", 3},
		{now.AddDate(0, 0, 7).Truncate(24 * time.Hour), "16:30", "18:00", 2},
	}
	for _, s := range sessions {
		sessionID := uuid.NewString()
		const sq = `INSERT INTO exam_sessions (id, exam_type_id, course_id, session_date, start_time, end_time, rooms_required, status, created_at, updated_at)
			SELECT $1, $2, $3, $4, $5, $6, $7, 'open', $8, $8
			WHERE NOT EXISTS (
				SELECT 1 FROM exam_sessions WHERE exam_type_id = $2 AND course_id = $3 AND session_date = $4 AND start_time = $5
			)`
		res, err := db.ExecContext(ctx, sq, sessionID, examTypeID, courseID, s.date, s.start, s.end, s.rooms, now)
		if err != nil {
			return fmt.Errorf("seed session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		for i := 0; i < s.rooms; i++ {
			room := fmt.Sprintf("R-%d", 101+i)
			const slq = `INSERT INTO room_slots (id, session_id, room, status, updated_at) VALUES ($1, $2, $3, 'free', $4)`
			if _, err := db.ExecContext(ctx, slq, uuid.NewString(), sessionID, room, now); err != nil {
				return fmt.Errorf("seed slot %s: %w", room, err)
			}
		}
	}

	return nil
}
