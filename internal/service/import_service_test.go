package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-duty-api/internal/dto"
	"github.com/noah-isme/exam-duty-api/internal/models"
)

type stubCourseUpserter struct {
	upserts int
}

func (s *stubCourseUpserter) UpsertByCode(_ context.Context, _ sqlx.ExtContext, course *models.Course) error {
	s.upserts++
	if course.ID == "" {
		course.ID = "course-" + course.Code
	}
	return nil
}

type stubSessionImporter struct {
	existing map[string]bool
	created  []*models.ExamSession
}

func (s *stubSessionImporter) Exists(_ context.Context, _ sqlx.ExtContext, _, courseID string, date time.Time, startTime string) (bool, error) {
	return s.existing[courseID+date.Format("2006-01-02")+startTime], nil
}

func (s *stubSessionImporter) CreateWithSlots(_ context.Context, _ sqlx.ExtContext, session *models.ExamSession) error {
	session.ID = "sess-" + session.CourseID
	s.created = append(s.created, session)
	return nil
}

type importFixture struct {
	svc      *ImportService
	courses  *stubCourseUpserter
	sessions *stubSessionImporter
	mock     sqlmock.Sqlmock
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := sqlx.NewDb(rawDB, "sqlmock")

	examTypes := &stubExamTypes{examType: &models.ExamType{ID: "et-1", TypeName: "Midsem 2026"}}
	courses := &stubCourseUpserter{}
	sessions := &stubSessionImporter{existing: map[string]bool{}}
	svc := NewImportService(examTypes, courses, sessions, db, nil, nil)
	return &importFixture{svc: svc, courses: courses, sessions: sessions, mock: mock}
}

func importRow(code, date, start, end string, rooms int) dto.SessionImportRow {
	return dto.SessionImportRow{
		Branch:        "CSE",
		CourseCode:    code,
		CourseName:    "Course " + code,
		Semester:      4,
		StudentCount:  120,
		SessionDate:   date,
		StartTime:     start,
		EndTime:       end,
		RoomsRequired: rooms,
	}
}

func TestImportSessionsCommitsCleanBatch(t *testing.T) {
	f := newImportFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	summary, err := f.svc.ImportSessions(context.Background(), dto.ImportSessionsRequest{
		ExamTypeID: "et-1",
		Rows: []dto.SessionImportRow{
			importRow("CS101", "2026-03-16", "10:00", "12:00", 3),
			importRow("CS101", "2026-03-18", "10:00", "12:00", 2),
			importRow("CS202", "2026-03-17", "14:00", "16:00", 4),
		},
	})
	require.NoError(t, err)
	require.True(t, summary.Committed)
	require.Equal(t, 3, summary.TotalRows)
	require.Equal(t, 3, summary.SessionsCreated)
	require.Equal(t, 9, summary.SlotsCreated)
	require.Equal(t, 2, summary.CoursesUpserted, "repeat course codes upsert once")
	require.Empty(t, summary.Errors)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestImportSessionsRollsBackOnRowError(t *testing.T) {
	f := newImportFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	summary, err := f.svc.ImportSessions(context.Background(), dto.ImportSessionsRequest{
		ExamTypeID: "et-1",
		Rows: []dto.SessionImportRow{
			importRow("CS101", "2026-03-16", "10:00", "12:00", 3),
			importRow("CS202", "2026-03-17", "16:00", "14:00", 2),
		},
	})
	require.NoError(t, err)
	require.False(t, summary.Committed)
	require.Len(t, summary.Errors, 1)
	require.Equal(t, 2, summary.Errors[0].Row)
	require.Contains(t, summary.Errors[0].Message, "before end time")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestImportSessionsReportsDuplicates(t *testing.T) {
	f := newImportFixture(t)
	f.sessions.existing["course-CS1012026-03-1610:00"] = true
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	summary, err := f.svc.ImportSessions(context.Background(), dto.ImportSessionsRequest{
		ExamTypeID: "et-1",
		Rows: []dto.SessionImportRow{
			importRow("CS101", "2026-03-16", "10:00", "12:00", 3),
		},
	})
	require.NoError(t, err)
	require.False(t, summary.Committed)
	require.Len(t, summary.Errors, 1)
	require.Contains(t, summary.Errors[0].Message, "duplicate session")
}

func TestImportSessionsRejectsEmptyBatch(t *testing.T) {
	f := newImportFixture(t)

	_, err := f.svc.ImportSessions(context.Background(), dto.ImportSessionsRequest{ExamTypeID: "et-1"})
	require.Error(t, err)
}

func TestImportSessionsRejectsUnknownExamType(t *testing.T) {
	f := newImportFixture(t)

	_, err := f.svc.ImportSessions(context.Background(), dto.ImportSessionsRequest{
		ExamTypeID: "et-missing",
		Rows:       []dto.SessionImportRow{importRow("CS101", "2026-03-16", "10:00", "12:00", 1)},
	})
	require.Error(t, err)
}

func TestImportSessionsValidatesRoomCount(t *testing.T) {
	f := newImportFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	summary, err := f.svc.ImportSessions(context.Background(), dto.ImportSessionsRequest{
		ExamTypeID: "et-1",
		Rows: []dto.SessionImportRow{
			importRow("CS101", "2026-03-16", "10:00", "12:00", -1),
		},
	})
	require.NoError(t, err)
	require.False(t, summary.Committed)
	require.Len(t, summary.Errors, 1)
	require.Contains(t, summary.Errors[0].Message, "rooms_required")
}
