package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-duty-api/internal/models"
)

func newExportFixture(t *testing.T) (*ExportService, *stubAssignSlots, *stubRoster) {
	t.Helper()
	examTypes := &stubExamTypes{examType: &models.ExamType{ID: "et-1", TypeName: "Midsem 2026"}}
	slots := &stubAssignSlots{}
	roster := &stubRoster{}
	svc := NewExportService(examTypes, slots, roster, nil, nil, nil)
	return svc, slots, roster
}

func TestDutyRosterCSVListsEverySlot(t *testing.T) {
	svc, slots, roster := newExportFixture(t)
	facultyID := "fac-1"
	roster.faculty = []models.Faculty{
		{ID: facultyID, Email: "prof@univ.edu", FullName: "Asha Rao", Initials: "AR", Cadre: models.CadreProfessor},
	}
	slots.slots = []models.SlotWithSession{
		{
			SlotID: "slot-1", SessionID: "sess-1", ExamTypeID: "et-1",
			CourseCode: "CS101", CourseName: "Algorithms",
			SessionDate: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
			StartTime:   "10:00", EndTime: "12:00", Room: "R1",
			Status: models.SlotAssigned, FacultyID: &facultyID,
		},
		{
			SlotID: "slot-2", SessionID: "sess-1", ExamTypeID: "et-1",
			CourseCode: "CS101", CourseName: "Algorithms",
			SessionDate: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
			StartTime:   "10:00", EndTime: "12:00", Room: "R2",
			Status: models.SlotFree,
		},
	}

	payload, filename, err := svc.DutyRoster(context.Background(), "et-1", FormatCSV)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(filename, ".csv"))
	require.Contains(t, filename, "duty_roster_midsem_2026")

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Date,Time,Course,Room,Status,Faculty,Initials", lines[0])
	require.Contains(t, lines[1], "Asha Rao")
	require.Contains(t, lines[1], "AR")
	require.Contains(t, lines[2], "free")
}

func TestDutyRosterPDFRenders(t *testing.T) {
	svc, slots, _ := newExportFixture(t)
	slots.slots = []models.SlotWithSession{
		{
			SlotID: "slot-1", SessionID: "sess-1", CourseCode: "CS101", CourseName: "Algorithms",
			SessionDate: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
			StartTime:   "10:00", EndTime: "12:00", Room: "R1", Status: models.SlotFree,
		},
	}

	payload, filename, err := svc.DutyRoster(context.Background(), "et-1", FormatPDF)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(filename, ".pdf"))
	require.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestDutyRosterUnknownExamType(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	_, _, err := svc.DutyRoster(context.Background(), "et-missing", FormatCSV)
	require.Error(t, err)
}

func TestDutyRosterRejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	_, _, err := svc.DutyRoster(context.Background(), "et-1", ExportFormat("xlsx"))
	require.Error(t, err)
}

func TestAssignmentReportCSV(t *testing.T) {
	svc, _, _ := newExportFixture(t)
	report := &models.AssignmentReport{
		ExamTypeID: "et-1",
		Faculty: []models.FacultyAllocation{
			{Email: "a@univ.edu", Cadre: models.CadreProfessor, Before: 1, Assigned: 2, After: 3, EffectiveMin: 2, MeetsMinimum: true},
		},
	}

	payload, filename, err := svc.AssignmentReport(report, FormatCSV)
	require.NoError(t, err)
	require.Contains(t, filename, "assignment_report")
	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "a@univ.edu")
	require.Contains(t, lines[1], "true")
}

func TestAssignmentReportRequiresReport(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	_, _, err := svc.AssignmentReport(nil, FormatCSV)
	require.Error(t, err)
}
