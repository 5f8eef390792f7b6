package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-duty-api/internal/models"
)

type stubRoster struct {
	faculty []models.Faculty
}

func (s *stubRoster) ListAll(_ context.Context) ([]models.Faculty, error) {
	return s.faculty, nil
}

type stubAssignSlots struct {
	slots      []models.SlotWithSession
	assigned   []slotAssignment
	reassigned []reallocationMove
}

func (s *stubAssignSlots) ListByExamType(_ context.Context, _ string) ([]models.SlotWithSession, error) {
	return s.slots, nil
}

func (s *stubAssignSlots) AssignSlot(_ context.Context, _ sqlx.ExtContext, slotID, facultyID string) error {
	s.assigned = append(s.assigned, slotAssignment{SlotID: slotID, FacultyID: facultyID})
	return nil
}

func (s *stubAssignSlots) Reassign(_ context.Context, _ sqlx.ExtContext, slotID, fromID, toID string) error {
	s.reassigned = append(s.reassigned, reallocationMove{SlotID: slotID, FromID: fromID, ToID: toID})
	return nil
}

type stubRules struct {
	requirements []models.CadreRequirement
	exceptions   []models.FacultyDutyException
}

func (s *stubRules) ListByExamType(_ context.Context, _ string) ([]models.CadreRequirement, error) {
	return s.requirements, nil
}

func (s *stubRules) ListExceptionsByExamType(_ context.Context, _ string) ([]models.FacultyDutyException, error) {
	return s.exceptions, nil
}

type assignFixture struct {
	svc    *AutoAssignService
	slots  *stubAssignSlots
	roster *stubRoster
	rules  *stubRules
	mock   sqlmock.Sqlmock
}

func newAssignFixture(t *testing.T, cfg AutoAssignConfig) *assignFixture {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := sqlx.NewDb(rawDB, "sqlmock")

	examTypes := &stubExamTypes{examType: &models.ExamType{
		ID:                "et-1",
		TypeName:          "Endsem 2026",
		SelectionStart:    testNow.Add(-96 * time.Hour),
		SelectionDeadline: testNow.Add(-24 * time.Hour),
	}}
	roster := &stubRoster{}
	slots := &stubAssignSlots{}
	rules := &stubRules{}

	svc := NewAutoAssignService(examTypes, roster, slots, rules, db, nil, nil, nil, cfg, nil)
	svc.now = func() time.Time { return testNow }
	return &assignFixture{svc: svc, slots: slots, roster: roster, rules: rules, mock: mock}
}

func freeSlot(slotID, sessionID, date, start, end string) models.SlotWithSession {
	day, _ := time.Parse("2006-01-02", date)
	return models.SlotWithSession{
		SlotID:      slotID,
		SessionID:   sessionID,
		ExamTypeID:  "et-1",
		CourseCode:  "CS" + slotID,
		SessionDate: day,
		StartTime:   start,
		EndTime:     end,
		Room:        "R1",
		Status:      models.SlotFree,
	}
}

func heldSlot(slotID, sessionID, date, start, end, facultyID string) models.SlotWithSession {
	slot := freeSlot(slotID, sessionID, date, start, end)
	slot.Status = models.SlotAssigned
	slot.FacultyID = &facultyID
	return slot
}

func TestAutoAssignDryRunFillsDeficits(t *testing.T) {
	f := newAssignFixture(t, AutoAssignConfig{})
	f.roster.faculty = []models.Faculty{
		{ID: "fac-a", Email: "a@univ.edu", Cadre: models.CadreProfessor},
		{ID: "fac-b", Email: "b@univ.edu", Cadre: models.CadreProfessor},
		{ID: "fac-c", Email: "c@univ.edu", Cadre: models.CadreAssistantProfessor},
		{ID: "fac-d", Email: "d@univ.edu", Cadre: models.CadreAssistantProfessor},
	}
	f.rules.requirements = []models.CadreRequirement{
		{Cadre: models.CadreProfessor, MinDuties: 1},
		{Cadre: models.CadreAssistantProfessor, MinDuties: 2},
	}
	f.slots.slots = []models.SlotWithSession{
		freeSlot("s1", "sess-1", "2026-03-16", "09:00", "11:00"),
		freeSlot("s2", "sess-2", "2026-03-16", "12:00", "14:00"),
		freeSlot("s3", "sess-3", "2026-03-17", "09:00", "11:00"),
		freeSlot("s4", "sess-4", "2026-03-17", "12:00", "14:00"),
		freeSlot("s5", "sess-5", "2026-03-18", "09:00", "11:00"),
		freeSlot("s6", "sess-6", "2026-03-18", "12:00", "14:00"),
	}

	report, err := f.svc.Run(context.Background(), "et-1", true, false)
	require.NoError(t, err)
	require.True(t, report.DryRun)
	require.Equal(t, 6, report.TotalFreeSlots)
	require.Equal(t, 6, report.AssignedCount)
	require.Empty(t, report.Failures)
	require.Empty(t, f.slots.assigned, "dry run must not persist")

	byID := make(map[string]models.FacultyAllocation)
	for _, row := range report.Faculty {
		byID[row.FacultyID] = row
	}
	require.Equal(t, 1, byID["fac-a"].After)
	require.Equal(t, 1, byID["fac-b"].After)
	require.Equal(t, 2, byID["fac-c"].After)
	require.Equal(t, 2, byID["fac-d"].After)
	for _, row := range report.Faculty {
		require.True(t, row.MeetsMinimum)
	}
}

func TestAutoAssignProportionalCadreTargets(t *testing.T) {
	f := newAssignFixture(t, AutoAssignConfig{})
	f.roster.faculty = []models.Faculty{
		{ID: "fac-a", Email: "a@univ.edu", Cadre: models.CadreProfessor},
		{ID: "fac-b", Email: "b@univ.edu", Cadre: models.CadreAssistantProfessor},
	}
	f.rules.requirements = []models.CadreRequirement{
		{Cadre: models.CadreProfessor, MinDuties: 1},
		{Cadre: models.CadreAssistantProfessor, MinDuties: 2},
	}
	f.slots.slots = []models.SlotWithSession{
		freeSlot("s1", "sess-1", "2026-03-16", "09:00", "11:00"),
		freeSlot("s2", "sess-2", "2026-03-16", "12:00", "14:00"),
		freeSlot("s3", "sess-3", "2026-03-17", "09:00", "11:00"),
	}

	report, err := f.svc.Run(context.Background(), "et-1", true, false)
	require.NoError(t, err)
	require.Len(t, report.Cadres, 2)
	targets := make(map[models.Cadre]int)
	for _, row := range report.Cadres {
		targets[row.Cadre] = row.TargetDuties
	}
	// Weights default to the requirement minimums: 1 and 2 over 3 free slots.
	require.Equal(t, 1, targets[models.CadreProfessor])
	require.Equal(t, 2, targets[models.CadreAssistantProfessor])
}

func TestAutoAssignIdempotentWhenMinimumsMet(t *testing.T) {
	f := newAssignFixture(t, AutoAssignConfig{})
	f.roster.faculty = []models.Faculty{
		{ID: "fac-a", Email: "a@univ.edu", Cadre: models.CadreProfessor},
	}
	f.rules.requirements = []models.CadreRequirement{
		{Cadre: models.CadreProfessor, MinDuties: 1},
	}
	f.slots.slots = []models.SlotWithSession{
		heldSlot("s1", "sess-1", "2026-03-16", "09:00", "11:00", "fac-a"),
		freeSlot("s2", "sess-2", "2026-03-16", "12:00", "14:00"),
	}

	report, err := f.svc.Run(context.Background(), "et-1", true, false)
	require.NoError(t, err)
	require.Zero(t, report.AssignedCount)
	require.Len(t, report.Failures, 1)
	require.Equal(t, "no faculty below effective minimum", report.Failures[0].Reason)
}

func TestAutoAssignSkipsOverlappingDuties(t *testing.T) {
	f := newAssignFixture(t, AutoAssignConfig{})
	f.roster.faculty = []models.Faculty{
		{ID: "fac-a", Email: "a@univ.edu", Cadre: models.CadreProfessor},
	}
	f.rules.requirements = []models.CadreRequirement{
		{Cadre: models.CadreProfessor, MinDuties: 2},
	}
	f.slots.slots = []models.SlotWithSession{
		freeSlot("s1", "sess-1", "2026-03-16", "09:00", "11:00"),
		freeSlot("s2", "sess-2", "2026-03-16", "10:00", "12:00"),
	}

	report, err := f.svc.Run(context.Background(), "et-1", true, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.AssignedCount)
	require.Len(t, report.Failures, 1)
	require.Contains(t, report.Failures[0].Reason, "no eligible faculty without conflict")
}

func TestAutoAssignDeterministicTieBreak(t *testing.T) {
	f := newAssignFixture(t, AutoAssignConfig{})
	f.roster.faculty = []models.Faculty{
		{ID: "fac-b", Email: "b@univ.edu", Cadre: models.CadreProfessor},
		{ID: "fac-a", Email: "a@univ.edu", Cadre: models.CadreProfessor},
	}
	f.rules.requirements = []models.CadreRequirement{
		{Cadre: models.CadreProfessor, MinDuties: 1},
	}
	f.slots.slots = []models.SlotWithSession{
		freeSlot("s1", "sess-1", "2026-03-16", "09:00", "11:00"),
	}

	report, err := f.svc.Run(context.Background(), "et-1", true, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.AssignedCount)
	byID := make(map[string]models.FacultyAllocation)
	for _, row := range report.Faculty {
		byID[row.FacultyID] = row
	}
	require.Equal(t, 1, byID["fac-a"].Assigned, "equal deficit resolves to the smaller faculty id")
	require.Zero(t, byID["fac-b"].Assigned)
}

func TestAutoAssignRespectsMaxDuties(t *testing.T) {
	f := newAssignFixture(t, AutoAssignConfig{DefaultMaxDuties: 1})
	f.roster.faculty = []models.Faculty{
		{ID: "fac-a", Email: "a@univ.edu", Cadre: models.CadreProfessor},
	}
	f.rules.requirements = []models.CadreRequirement{
		{Cadre: models.CadreProfessor, MinDuties: 3},
	}
	f.slots.slots = []models.SlotWithSession{
		freeSlot("s1", "sess-1", "2026-03-16", "09:00", "11:00"),
		freeSlot("s2", "sess-2", "2026-03-17", "09:00", "11:00"),
	}

	report, err := f.svc.Run(context.Background(), "et-1", true, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.AssignedCount)
	require.Len(t, report.Failures, 1)
}

func TestAutoAssignReallocatesFromOverTarget(t *testing.T) {
	f := newAssignFixture(t, AutoAssignConfig{})
	f.roster.faculty = []models.Faculty{
		{ID: "fac-donor", Email: "donor@univ.edu", Cadre: models.CadreProfessor},
		{ID: "fac-needy", Email: "needy@univ.edu", Cadre: models.CadreAssistantProfessor},
	}
	f.rules.requirements = []models.CadreRequirement{
		{Cadre: models.CadreProfessor, MinDuties: 1},
		{Cadre: models.CadreAssistantProfessor, MinDuties: 2},
	}
	f.slots.slots = []models.SlotWithSession{
		heldSlot("s1", "sess-1", "2026-03-16", "09:00", "11:00", "fac-donor"),
		heldSlot("s2", "sess-2", "2026-03-17", "09:00", "11:00", "fac-donor"),
		heldSlot("s3", "sess-3", "2026-03-18", "09:00", "11:00", "fac-donor"),
	}

	report, err := f.svc.Run(context.Background(), "et-1", true, true)
	require.NoError(t, err)
	require.Len(t, report.Reallocations, 2)
	for _, move := range report.Reallocations {
		require.Equal(t, "donor@univ.edu", move.FromEmail)
		require.Equal(t, "needy@univ.edu", move.ToEmail)
	}

	byID := make(map[string]models.FacultyAllocation)
	for _, row := range report.Faculty {
		byID[row.FacultyID] = row
	}
	require.Equal(t, 1, byID["fac-donor"].After)
	require.Equal(t, 2, byID["fac-needy"].After)
	require.True(t, byID["fac-needy"].MeetsMinimum)
}

func TestAutoAssignCommitsInOneTransaction(t *testing.T) {
	f := newAssignFixture(t, AutoAssignConfig{})
	f.roster.faculty = []models.Faculty{
		{ID: "fac-a", Email: "a@univ.edu", Cadre: models.CadreProfessor},
	}
	f.rules.requirements = []models.CadreRequirement{
		{Cadre: models.CadreProfessor, MinDuties: 2},
	}
	f.slots.slots = []models.SlotWithSession{
		freeSlot("s1", "sess-1", "2026-03-16", "09:00", "11:00"),
		freeSlot("s2", "sess-2", "2026-03-17", "09:00", "11:00"),
	}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	report, err := f.svc.Run(context.Background(), "et-1", false, false)
	require.NoError(t, err)
	require.False(t, report.DryRun)
	require.Equal(t, 2, report.AssignedCount)
	require.Len(t, f.slots.assigned, 2)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAutoAssignRerunAfterCommitIsStable(t *testing.T) {
	f := newAssignFixture(t, AutoAssignConfig{})
	f.roster.faculty = []models.Faculty{
		{ID: "fac-a", Email: "a@univ.edu", Cadre: models.CadreProfessor},
	}
	f.rules.requirements = []models.CadreRequirement{
		{Cadre: models.CadreProfessor, MinDuties: 1},
	}
	f.slots.slots = []models.SlotWithSession{
		heldSlot("s1", "sess-1", "2026-03-16", "09:00", "11:00", "fac-a"),
	}

	report, err := f.svc.Run(context.Background(), "et-1", false, false)
	require.NoError(t, err)
	require.Zero(t, report.AssignedCount)
	require.Empty(t, f.slots.assigned, "a satisfied roster yields no writes")
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAutoAssignExceptionOverridesBounds(t *testing.T) {
	f := newAssignFixture(t, AutoAssignConfig{})
	minOverride := 0
	f.roster.faculty = []models.Faculty{
		{ID: "fac-a", Email: "a@univ.edu", Cadre: models.CadreProfessor},
		{ID: "fac-b", Email: "b@univ.edu", Cadre: models.CadreProfessor},
	}
	f.rules.requirements = []models.CadreRequirement{
		{Cadre: models.CadreProfessor, MinDuties: 1},
	}
	f.rules.exceptions = []models.FacultyDutyException{
		{FacultyID: "fac-a", ExamTypeID: "et-1", MinDuties: &minOverride, Reason: "medical leave"},
	}
	f.slots.slots = []models.SlotWithSession{
		freeSlot("s1", "sess-1", "2026-03-16", "09:00", "11:00"),
	}

	report, err := f.svc.Run(context.Background(), "et-1", true, false)
	require.NoError(t, err)
	byID := make(map[string]models.FacultyAllocation)
	for _, row := range report.Faculty {
		byID[row.FacultyID] = row
	}
	require.Zero(t, byID["fac-a"].Assigned, "excepted faculty owes no duties")
	require.Equal(t, 1, byID["fac-b"].Assigned)
}
