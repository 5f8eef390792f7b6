package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-duty-api/internal/models"
)

type stubHeldReader struct {
	slots []models.SlotWithSession
	err   error
}

func (s *stubHeldReader) ListHeldByFacultyOnDate(_ context.Context, _ string, _ time.Time) ([]models.SlotWithSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.slots, nil
}

func newConflictService(held *stubHeldReader) *ConflictService {
	sessionDate := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	sessions := &stubSessions{sessions: map[string]*models.ExamSessionDetail{
		"sess-1": {
			ExamSession: models.ExamSession{
				ID: "sess-1", ExamTypeID: "et-1", SessionDate: sessionDate,
				StartTime: "10:00", EndTime: "12:00", Status: models.SessionOpen,
			},
			CourseCode: "CS101", CourseName: "Algorithms",
		},
	}}
	faculty := &stubFaculty{byEmail: map[string]*models.Faculty{
		"prof@univ.edu": {ID: "fac-1", Email: "prof@univ.edu", Cadre: models.CadreProfessor},
	}}
	return NewConflictService(sessions, faculty, held, nil)
}

func dutyAt(sessionID, start, end string) models.SlotWithSession {
	return models.SlotWithSession{
		SlotID:      "slot-" + sessionID,
		SessionID:   sessionID,
		CourseCode:  "CS" + sessionID,
		SessionDate: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		StartTime:   start,
		EndTime:     end,
		Status:      models.SlotAssigned,
	}
}

func TestConflictCheckDetectsOverlap(t *testing.T) {
	svc := newConflictService(&stubHeldReader{slots: []models.SlotWithSession{
		dutyAt("sess-9", "11:00", "13:00"),
	}})

	result, err := svc.Check(context.Background(), "prof@univ.edu", "sess-1")
	require.NoError(t, err)
	require.True(t, result.HasConflict)
	require.Len(t, result.Conflicts, 1)
	require.Equal(t, "11:00", result.Conflicts[0].StartTime)
}

func TestConflictCheckTouchingEndpointsDoNotOverlap(t *testing.T) {
	svc := newConflictService(&stubHeldReader{slots: []models.SlotWithSession{
		dutyAt("sess-before", "08:00", "10:00"),
		dutyAt("sess-after", "12:00", "14:00"),
	}})

	result, err := svc.Check(context.Background(), "prof@univ.edu", "sess-1")
	require.NoError(t, err)
	require.False(t, result.HasConflict)
	require.Empty(t, result.Conflicts)
}

func TestConflictCheckContainedIntervalOverlaps(t *testing.T) {
	svc := newConflictService(&stubHeldReader{slots: []models.SlotWithSession{
		dutyAt("sess-9", "10:30", "11:30"),
	}})

	result, err := svc.Check(context.Background(), "prof@univ.edu", "sess-1")
	require.NoError(t, err)
	require.True(t, result.HasConflict)
}

func TestConflictCheckDedupesMultiRoomSessions(t *testing.T) {
	first := dutyAt("sess-9", "11:00", "13:00")
	second := dutyAt("sess-9", "11:00", "13:00")
	second.SlotID = "slot-sess-9-b"
	svc := newConflictService(&stubHeldReader{slots: []models.SlotWithSession{first, second}})

	result, err := svc.Check(context.Background(), "prof@univ.edu", "sess-1")
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
}

func TestConflictCheckUnknownFacultyFailsOpen(t *testing.T) {
	svc := newConflictService(&stubHeldReader{})

	result, err := svc.Check(context.Background(), "ghost@univ.edu", "sess-1")
	require.NoError(t, err)
	require.False(t, result.HasConflict)
}

func TestConflictCheckUnknownSessionRejected(t *testing.T) {
	svc := newConflictService(&stubHeldReader{})

	_, err := svc.Check(context.Background(), "prof@univ.edu", "sess-missing")
	require.Error(t, err)
}

func TestSessionOverlapsSymmetry(t *testing.T) {
	require.True(t, models.SessionOverlaps("10:00", "12:00", "11:00", "13:00"))
	require.True(t, models.SessionOverlaps("11:00", "13:00", "10:00", "12:00"))
	require.False(t, models.SessionOverlaps("10:00", "12:00", "12:00", "14:00"))
	require.False(t, models.SessionOverlaps("12:00", "14:00", "10:00", "12:00"))
}
