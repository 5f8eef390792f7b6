package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-duty-api/internal/models"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

type stubSessions struct {
	sessions map[string]*models.ExamSessionDetail
}

func (s *stubSessions) FindByID(_ context.Context, id string) (*models.ExamSessionDetail, error) {
	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	return nil, sql.ErrNoRows
}

type stubFaculty struct {
	byEmail map[string]*models.Faculty
}

func (s *stubFaculty) FindByEmail(_ context.Context, email string) (*models.Faculty, error) {
	if faculty, ok := s.byEmail[email]; ok {
		return faculty, nil
	}
	return nil, sql.ErrNoRows
}

type stubExamTypes struct {
	examType *models.ExamType
}

func (s *stubExamTypes) FindByID(_ context.Context, id string) (*models.ExamType, error) {
	if s.examType != nil && s.examType.ID == id {
		return s.examType, nil
	}
	return nil, sql.ErrNoRows
}

type stubSlots struct {
	held            []models.SlotWithSession
	all             []models.SlotWithSession
	claimed         *models.RoomSlot
	claimErr        error
	releaseAffected int64
	releaseErr      error
	claimCalls      int
	releaseCalls    int
}

func (s *stubSlots) Claim(_ context.Context, _ sqlx.ExtContext, sessionID, facultyID string) (*models.RoomSlot, error) {
	s.claimCalls++
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	return s.claimed, nil
}

func (s *stubSlots) Release(_ context.Context, _ sqlx.ExtContext, slotID, facultyID string) (int64, error) {
	s.releaseCalls++
	if s.releaseErr != nil {
		return 0, s.releaseErr
	}
	return s.releaseAffected, nil
}

func (s *stubSlots) ListHeldByFaculty(_ context.Context, _, _ string) ([]models.SlotWithSession, error) {
	return s.held, nil
}

func (s *stubSlots) ListByExamType(_ context.Context, _ string) ([]models.SlotWithSession, error) {
	return s.all, nil
}

type stubRestrictions struct {
	restriction *models.TimeRestriction
	exempt      bool
}

func (s *stubRestrictions) FindByExamTypeAndCadre(_ context.Context, _ string, _ models.Cadre) (*models.TimeRestriction, error) {
	if s.restriction == nil {
		return nil, sql.ErrNoRows
	}
	return s.restriction, nil
}

func (s *stubRestrictions) IsExempt(_ context.Context, _, _ string) (bool, error) {
	return s.exempt, nil
}

type stubRequirements struct {
	requirement *models.CadreRequirement
	exception   *models.FacultyDutyException
}

func (s *stubRequirements) FindByExamTypeAndCadre(_ context.Context, _ string, _ models.Cadre) (*models.CadreRequirement, error) {
	if s.requirement == nil {
		return nil, sql.ErrNoRows
	}
	return s.requirement, nil
}

func (s *stubRequirements) FindException(_ context.Context, _, _ string) (*models.FacultyDutyException, error) {
	if s.exception == nil {
		return nil, sql.ErrNoRows
	}
	return s.exception, nil
}

type stubConfirmations struct {
	confirmation *models.DutyConfirmation
	setCalls     int
}

func (s *stubConfirmations) Find(_ context.Context, _, _ string) (*models.DutyConfirmation, error) {
	return s.confirmation, nil
}

func (s *stubConfirmations) SetConfirmed(_ context.Context, facultyID, examTypeID string) (*models.DutyConfirmation, error) {
	s.setCalls++
	now := testNow
	s.confirmation = &models.DutyConfirmation{FacultyID: facultyID, ExamTypeID: examTypeID, Confirmed: true, ConfirmedAt: &now}
	return s.confirmation, nil
}

type stubConflicts struct {
	result *models.ConflictResult
}

func (s *stubConflicts) Check(_ context.Context, _, _ string) (*models.ConflictResult, error) {
	if s.result == nil {
		return &models.ConflictResult{}, nil
	}
	return s.result, nil
}

type dutyFixture struct {
	svc           *DutyService
	slots         *stubSlots
	confirmations *stubConfirmations
	conflicts     *stubConflicts
	restrictions  *stubRestrictions
	mock          sqlmock.Sqlmock
}

func newDutyFixture(t *testing.T) *dutyFixture {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := sqlx.NewDb(rawDB, "sqlmock")

	sessionDate := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	sessions := &stubSessions{sessions: map[string]*models.ExamSessionDetail{
		"sess-morning": {
			ExamSession: models.ExamSession{
				ID: "sess-morning", ExamTypeID: "et-1", SessionDate: sessionDate,
				StartTime: "10:00", EndTime: "12:00", Status: models.SessionOpen,
			},
			CourseCode: "CS101", CourseName: "Algorithms",
		},
		"sess-evening": {
			ExamSession: models.ExamSession{
				ID: "sess-evening", ExamTypeID: "et-1", SessionDate: sessionDate,
				StartTime: "16:30", EndTime: "18:00", Status: models.SessionOpen,
			},
			CourseCode: "CS202", CourseName: "Databases",
		},
	}}
	faculty := &stubFaculty{byEmail: map[string]*models.Faculty{
		"prof@univ.edu": {ID: "fac-1", Email: "prof@univ.edu", Cadre: models.CadreProfessor, Initials: "PR"},
	}}
	examTypes := &stubExamTypes{examType: &models.ExamType{
		ID:                "et-1",
		TypeName:          "Midsem 2026",
		SelectionStart:    testNow.Add(-48 * time.Hour),
		SelectionDeadline: testNow.Add(48 * time.Hour),
		IsActive:          true,
	}}
	slots := &stubSlots{
		claimed:         &models.RoomSlot{ID: "slot-new", SessionID: "sess-morning", Room: "R1", Status: models.SlotAssigned},
		releaseAffected: 1,
	}
	restrictions := &stubRestrictions{}
	requirements := &stubRequirements{}
	confirmations := &stubConfirmations{}
	conflicts := &stubConflicts{}

	svc := NewDutyService(sessions, faculty, examTypes, slots, restrictions, requirements, confirmations, conflicts, db, nil, nil, nil, DutyServiceConfig{}, nil)
	svc.now = func() time.Time { return testNow }

	return &dutyFixture{
		svc:           svc,
		slots:         slots,
		confirmations: confirmations,
		conflicts:     conflicts,
		restrictions:  restrictions,
		mock:          mock,
	}
}

func professorRestriction(min int) *models.TimeRestriction {
	return &models.TimeRestriction{
		ExamTypeID:        "et-1",
		Cadre:             models.CadreProfessor,
		PriorityStartTime: "16:30",
		PriorityEndTime:   "18:00",
		MinSlotsRequired:  min,
	}
}

func prioritySlot(slotID string, status models.SlotStatus, facultyID *string) models.SlotWithSession {
	return models.SlotWithSession{
		SlotID:      slotID,
		SessionID:   "sess-evening",
		ExamTypeID:  "et-1",
		CourseCode:  "CS202",
		SessionDate: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		StartTime:   "16:30",
		EndTime:     "18:00",
		Room:        "R1",
		Status:      status,
		FacultyID:   facultyID,
	}
}

func requireErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, code, appErr.Code)
}

func TestCanPickSlotBlockedOutsidePriorityWindow(t *testing.T) {
	f := newDutyFixture(t)
	f.restrictions.restriction = professorRestriction(2)
	f.slots.all = []models.SlotWithSession{prioritySlot("slot-p1", models.SlotFree, nil)}

	eligibility, err := f.svc.CanPickSlot(context.Background(), "prof@univ.edu", "sess-morning")
	require.NoError(t, err)
	require.False(t, eligibility.CanPick)
	require.Equal(t, "quota_not_met", eligibility.Reason)
	require.NotNil(t, eligibility.Restriction)
	require.Equal(t, 2, eligibility.Restriction.MinSlotsRequired)
	require.Equal(t, 0, eligibility.Restriction.PriorityPicked)
}

func TestCanPickSlotInsidePriorityWindow(t *testing.T) {
	f := newDutyFixture(t)
	f.restrictions.restriction = professorRestriction(2)
	f.slots.all = []models.SlotWithSession{prioritySlot("slot-p1", models.SlotFree, nil)}

	eligibility, err := f.svc.CanPickSlot(context.Background(), "prof@univ.edu", "sess-evening")
	require.NoError(t, err)
	require.True(t, eligibility.CanPick)
}

func TestCanPickSlotQuotaAlreadyMet(t *testing.T) {
	f := newDutyFixture(t)
	f.restrictions.restriction = professorRestriction(2)
	f.slots.held = []models.SlotWithSession{
		prioritySlot("slot-h1", models.SlotAssigned, strPtr("fac-1")),
		prioritySlot("slot-h2", models.SlotAssigned, strPtr("fac-1")),
	}

	eligibility, err := f.svc.CanPickSlot(context.Background(), "prof@univ.edu", "sess-morning")
	require.NoError(t, err)
	require.True(t, eligibility.CanPick)
}

func TestCanPickSlotNoFreePrioritySlotsRemain(t *testing.T) {
	f := newDutyFixture(t)
	f.restrictions.restriction = professorRestriction(2)
	f.slots.all = []models.SlotWithSession{prioritySlot("slot-p1", models.SlotAssigned, strPtr("fac-2"))}

	eligibility, err := f.svc.CanPickSlot(context.Background(), "prof@univ.edu", "sess-morning")
	require.NoError(t, err)
	require.True(t, eligibility.CanPick)
}

func TestCanPickSlotExemptFacultyUnrestricted(t *testing.T) {
	f := newDutyFixture(t)
	f.restrictions.restriction = professorRestriction(2)
	f.restrictions.exempt = true
	f.slots.all = []models.SlotWithSession{prioritySlot("slot-p1", models.SlotFree, nil)}

	eligibility, err := f.svc.CanPickSlot(context.Background(), "prof@univ.edu", "sess-morning")
	require.NoError(t, err)
	require.True(t, eligibility.CanPick)
}

func TestPickSucceeds(t *testing.T) {
	f := newDutyFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.Pick(context.Background(), "prof@univ.edu", "sess-morning")
	require.NoError(t, err)
	require.Equal(t, "slot-new", result.SlotID)
	require.Equal(t, "sess-morning", result.SessionID)
	require.Equal(t, "R1", result.Room)
	require.Equal(t, 1, f.slots.claimCalls)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPickRejectsWhenNoFreeSlot(t *testing.T) {
	f := newDutyFixture(t)
	f.slots.claimErr = sql.ErrNoRows
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Pick(context.Background(), "prof@univ.edu", "sess-morning")
	requireErrorCode(t, err, appErrors.ErrSlotUnavailable.Code)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestPickRejectsTimeConflict(t *testing.T) {
	f := newDutyFixture(t)
	f.conflicts.result = &models.ConflictResult{
		HasConflict: true,
		Conflicts:   []models.DutyConflict{{CourseCode: "CS303", StartTime: "10:00", EndTime: "13:00"}},
	}

	_, err := f.svc.Pick(context.Background(), "prof@univ.edu", "sess-morning")
	requireErrorCode(t, err, appErrors.ErrTimeConflict.Code)
	require.Zero(t, f.slots.claimCalls)
}

func TestPickRejectsQuotaNotMet(t *testing.T) {
	f := newDutyFixture(t)
	f.restrictions.restriction = professorRestriction(2)
	f.slots.all = []models.SlotWithSession{prioritySlot("slot-p1", models.SlotFree, nil)}

	_, err := f.svc.Pick(context.Background(), "prof@univ.edu", "sess-morning")
	requireErrorCode(t, err, appErrors.ErrQuotaNotMet.Code)
	require.Zero(t, f.slots.claimCalls)
}

func TestPickRejectsAfterConfirmation(t *testing.T) {
	f := newDutyFixture(t)
	f.confirmations.confirmation = &models.DutyConfirmation{FacultyID: "fac-1", ExamTypeID: "et-1", Confirmed: true}

	_, err := f.svc.Pick(context.Background(), "prof@univ.edu", "sess-morning")
	requireErrorCode(t, err, appErrors.ErrAlreadyConfirmed.Code)
	require.Zero(t, f.slots.claimCalls)
}

func TestPickRejectsClosedSession(t *testing.T) {
	f := newDutyFixture(t)
	f.svc.now = func() time.Time { return testNow }
	session := &models.ExamSessionDetail{
		ExamSession: models.ExamSession{
			ID: "sess-closed", ExamTypeID: "et-1",
			SessionDate: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
			StartTime:   "10:00", EndTime: "12:00", Status: models.SessionClosed,
		},
	}
	f.svc.sessions.(*stubSessions).sessions["sess-closed"] = session

	_, err := f.svc.Pick(context.Background(), "prof@univ.edu", "sess-closed")
	requireErrorCode(t, err, appErrors.ErrConflict.Code)
}

func TestReleaseSucceeds(t *testing.T) {
	f := newDutyFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.Release(context.Background(), "prof@univ.edu", "slot-h1", "sess-morning")
	require.NoError(t, err)
	require.Equal(t, "slot-h1", result.SlotID)
	require.Equal(t, 1, f.slots.releaseCalls)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReleaseRejectsSlotNotHeld(t *testing.T) {
	f := newDutyFixture(t)
	f.slots.releaseAffected = 0
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Release(context.Background(), "prof@univ.edu", "slot-h1", "sess-morning")
	requireErrorCode(t, err, appErrors.ErrNotFound.Code)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestReleaseRejectsAfterConfirmation(t *testing.T) {
	f := newDutyFixture(t)
	f.confirmations.confirmation = &models.DutyConfirmation{FacultyID: "fac-1", ExamTypeID: "et-1", Confirmed: true}

	_, err := f.svc.Release(context.Background(), "prof@univ.edu", "slot-h1", "sess-morning")
	requireErrorCode(t, err, appErrors.ErrAlreadyConfirmed.Code)
	require.Zero(t, f.slots.releaseCalls)
}

func TestReleaseBlockedBelowPriorityQuota(t *testing.T) {
	f := newDutyFixture(t)
	f.restrictions.restriction = professorRestriction(2)
	f.slots.held = []models.SlotWithSession{
		prioritySlot("slot-h1", models.SlotAssigned, strPtr("fac-1")),
		prioritySlot("slot-h2", models.SlotAssigned, strPtr("fac-1")),
	}
	f.slots.all = []models.SlotWithSession{prioritySlot("slot-p1", models.SlotFree, nil)}

	_, err := f.svc.Release(context.Background(), "prof@univ.edu", "slot-h1", "sess-evening")
	requireErrorCode(t, err, appErrors.ErrQuotaViolation.Code)
	require.Zero(t, f.slots.releaseCalls)
}

func TestReleaseAllowedWhenNoFreePrioritySlots(t *testing.T) {
	f := newDutyFixture(t)
	f.restrictions.restriction = professorRestriction(2)
	f.slots.held = []models.SlotWithSession{
		prioritySlot("slot-h1", models.SlotAssigned, strPtr("fac-1")),
		prioritySlot("slot-h2", models.SlotAssigned, strPtr("fac-1")),
	}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.svc.Release(context.Background(), "prof@univ.edu", "slot-h1", "sess-evening")
	require.NoError(t, err)
	require.Equal(t, 1, f.slots.releaseCalls)
}

func TestConfirmSucceedsWhenRequirementMet(t *testing.T) {
	f := newDutyFixture(t)
	f.svc.requirements.(*stubRequirements).requirement = &models.CadreRequirement{Cadre: models.CadreProfessor, MinDuties: 2}
	f.slots.held = []models.SlotWithSession{
		prioritySlot("slot-h1", models.SlotAssigned, strPtr("fac-1")),
		prioritySlot("slot-h2", models.SlotAssigned, strPtr("fac-1")),
	}

	require.NoError(t, f.svc.Confirm(context.Background(), "prof@univ.edu", "et-1"))
	require.Equal(t, 1, f.confirmations.setCalls)
}

func TestConfirmRejectsBelowMinimum(t *testing.T) {
	f := newDutyFixture(t)
	f.svc.requirements.(*stubRequirements).requirement = &models.CadreRequirement{Cadre: models.CadreProfessor, MinDuties: 2}
	f.slots.held = []models.SlotWithSession{prioritySlot("slot-h1", models.SlotAssigned, strPtr("fac-1"))}

	err := f.svc.Confirm(context.Background(), "prof@univ.edu", "et-1")
	requireErrorCode(t, err, appErrors.ErrRequirementNotMet.Code)
	require.Zero(t, f.confirmations.setCalls)
}

func TestConfirmRejectsUnmetPriorityQuota(t *testing.T) {
	f := newDutyFixture(t)
	f.restrictions.restriction = professorRestriction(2)
	morning := prioritySlot("slot-h1", models.SlotAssigned, strPtr("fac-1"))
	morning.StartTime, morning.EndTime = "10:00", "12:00"
	second := prioritySlot("slot-h2", models.SlotAssigned, strPtr("fac-1"))
	second.StartTime, second.EndTime = "10:00", "12:00"
	f.slots.held = []models.SlotWithSession{morning, second}
	f.slots.all = []models.SlotWithSession{prioritySlot("slot-p1", models.SlotFree, nil)}

	err := f.svc.Confirm(context.Background(), "prof@univ.edu", "et-1")
	requireErrorCode(t, err, appErrors.ErrQuotaNotMet.Code)
	require.Zero(t, f.confirmations.setCalls)
}

func TestConfirmIdempotent(t *testing.T) {
	f := newDutyFixture(t)
	f.confirmations.confirmation = &models.DutyConfirmation{FacultyID: "fac-1", ExamTypeID: "et-1", Confirmed: true}

	require.NoError(t, f.svc.Confirm(context.Background(), "prof@univ.edu", "et-1"))
	require.Zero(t, f.confirmations.setCalls)
}

func TestConfirmRejectsPastDeadline(t *testing.T) {
	f := newDutyFixture(t)
	f.svc.now = func() time.Time { return testNow.Add(96 * time.Hour) }

	err := f.svc.Confirm(context.Background(), "prof@univ.edu", "et-1")
	requireErrorCode(t, err, appErrors.ErrPastDeadline.Code)
}

func TestProgressRecomputesFromSlots(t *testing.T) {
	f := newDutyFixture(t)
	f.restrictions.restriction = professorRestriction(2)
	f.svc.requirements.(*stubRequirements).requirement = &models.CadreRequirement{Cadre: models.CadreProfessor, MinDuties: 3}
	morning := prioritySlot("slot-h1", models.SlotAssigned, strPtr("fac-1"))
	morning.StartTime, morning.EndTime = "10:00", "12:00"
	f.slots.held = []models.SlotWithSession{
		morning,
		prioritySlot("slot-h2", models.SlotAssigned, strPtr("fac-1")),
	}

	progress, err := f.svc.Progress(context.Background(), "prof@univ.edu", "et-1")
	require.NoError(t, err)
	require.Equal(t, 2, progress.CurrentDuties)
	require.Equal(t, 3, progress.EffectiveMin)
	require.Equal(t, 1, progress.PriorityPicked)
	require.Equal(t, 2, progress.PriorityRequired)
	require.False(t, progress.MeetsMinimum)
	require.False(t, progress.Confirmed)
}

func TestProgressAppliesExceptionBounds(t *testing.T) {
	f := newDutyFixture(t)
	minOverride, maxOverride := 1, 4
	f.svc.requirements.(*stubRequirements).requirement = &models.CadreRequirement{Cadre: models.CadreProfessor, MinDuties: 3}
	f.svc.requirements.(*stubRequirements).exception = &models.FacultyDutyException{
		FacultyID: "fac-1", ExamTypeID: "et-1", MinDuties: &minOverride, MaxDuties: &maxOverride,
	}
	f.slots.held = []models.SlotWithSession{prioritySlot("slot-h1", models.SlotAssigned, strPtr("fac-1"))}

	progress, err := f.svc.Progress(context.Background(), "prof@univ.edu", "et-1")
	require.NoError(t, err)
	require.Equal(t, 1, progress.EffectiveMin)
	require.Equal(t, 4, progress.EffectiveMax)
	require.True(t, progress.MeetsMinimum)
}

func TestListHeldMapsSlots(t *testing.T) {
	f := newDutyFixture(t)
	f.slots.held = []models.SlotWithSession{prioritySlot("slot-h1", models.SlotAssigned, strPtr("fac-1"))}

	duties, err := f.svc.ListHeld(context.Background(), "prof@univ.edu", "et-1")
	require.NoError(t, err)
	require.Len(t, duties, 1)
	require.Equal(t, "slot-h1", duties[0].SlotID)
	require.Equal(t, "CS202", duties[0].CourseCode)
	require.Equal(t, "16:30", duties[0].StartTime)
}

func TestPickUnknownFacultyRejected(t *testing.T) {
	f := newDutyFixture(t)

	_, err := f.svc.Pick(context.Background(), "ghost@univ.edu", "sess-morning")
	requireErrorCode(t, err, appErrors.ErrNotFound.Code)
}
