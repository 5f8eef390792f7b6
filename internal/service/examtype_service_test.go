package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-duty-api/internal/dto"
	"github.com/noah-isme/exam-duty-api/internal/models"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
)

type stubExamTypeAdmin struct {
	examTypes map[string]*models.ExamType
	created   *models.ExamType
	deleted   []string
}

func (s *stubExamTypeAdmin) List(_ context.Context) ([]models.ExamType, error) {
	out := make([]models.ExamType, 0, len(s.examTypes))
	for _, et := range s.examTypes {
		out = append(out, *et)
	}
	return out, nil
}

func (s *stubExamTypeAdmin) FindByID(_ context.Context, id string) (*models.ExamType, error) {
	if et, ok := s.examTypes[id]; ok {
		return et, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubExamTypeAdmin) Create(_ context.Context, examType *models.ExamType) error {
	examType.ID = "et-new"
	s.created = examType
	return nil
}

func (s *stubExamTypeAdmin) Update(_ context.Context, _ *models.ExamType) error { return nil }

func (s *stubExamTypeAdmin) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubRequirementAdmin struct {
	upserted          *models.CadreRequirement
	exception         *models.FacultyDutyException
	listedExceptions  []models.FacultyDutyException
	listedRequirement []models.CadreRequirement
}

func (s *stubRequirementAdmin) ListByExamType(_ context.Context, _ string) ([]models.CadreRequirement, error) {
	return s.listedRequirement, nil
}

func (s *stubRequirementAdmin) Upsert(_ context.Context, requirement *models.CadreRequirement) error {
	s.upserted = requirement
	return nil
}

func (s *stubRequirementAdmin) ListExceptionsByExamType(_ context.Context, _ string) ([]models.FacultyDutyException, error) {
	return s.listedExceptions, nil
}

func (s *stubRequirementAdmin) UpsertException(_ context.Context, exception *models.FacultyDutyException) error {
	s.exception = exception
	return nil
}

type stubRestrictionAdmin struct {
	upserted  *models.TimeRestriction
	exemption *models.RestrictionExemption
}

func (s *stubRestrictionAdmin) ListByExamType(_ context.Context, _ string) ([]models.TimeRestriction, error) {
	return nil, nil
}

func (s *stubRestrictionAdmin) Upsert(_ context.Context, restriction *models.TimeRestriction) error {
	s.upserted = restriction
	return nil
}

func (s *stubRestrictionAdmin) ListExemptionsByExamType(_ context.Context, _ string) ([]models.RestrictionExemption, error) {
	return nil, nil
}

func (s *stubRestrictionAdmin) CreateExemption(_ context.Context, exemption *models.RestrictionExemption) error {
	s.exemption = exemption
	return nil
}

type stubFacultyByID struct {
	faculty map[string]*models.Faculty
}

func (s *stubFacultyByID) FindByID(_ context.Context, id string) (*models.Faculty, error) {
	if f, ok := s.faculty[id]; ok {
		return f, nil
	}
	return nil, sql.ErrNoRows
}

type examTypeFixture struct {
	svc          *ExamTypeService
	examTypes    *stubExamTypeAdmin
	requirements *stubRequirementAdmin
	restrictions *stubRestrictionAdmin
}

func newExamTypeFixture(t *testing.T) *examTypeFixture {
	t.Helper()
	examTypes := &stubExamTypeAdmin{examTypes: map[string]*models.ExamType{
		"et-1": {
			ID:                "et-1",
			TypeName:          "Midsem 2026",
			SelectionStart:    testNow.Add(-48 * time.Hour),
			SelectionDeadline: testNow.Add(48 * time.Hour),
			IsActive:          true,
		},
	}}
	requirements := &stubRequirementAdmin{}
	restrictions := &stubRestrictionAdmin{}
	faculty := &stubFacultyByID{faculty: map[string]*models.Faculty{
		"fac-1": {ID: "fac-1", Email: "prof@univ.edu", Cadre: models.CadreProfessor},
	}}
	svc := NewExamTypeService(examTypes, requirements, restrictions, faculty, nil, nil)
	return &examTypeFixture{svc: svc, examTypes: examTypes, requirements: requirements, restrictions: restrictions}
}

func TestCreateExamTypeRejectsInvertedWindow(t *testing.T) {
	f := newExamTypeFixture(t)
	_, err := f.svc.Create(context.Background(), dto.CreateExamTypeRequest{
		TypeName:          "Backwards",
		SelectionStart:    testNow,
		SelectionDeadline: testNow.Add(-time.Hour),
	})
	requireErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestUpsertRequirementUnknownCadre(t *testing.T) {
	f := newExamTypeFixture(t)
	_, err := f.svc.UpsertRequirement(context.Background(), "et-1", dto.UpsertRequirementRequest{
		Cadre:     "Dean",
		MinDuties: 2,
	})
	requireErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestUpsertRequirementUnknownExamType(t *testing.T) {
	f := newExamTypeFixture(t)
	_, err := f.svc.UpsertRequirement(context.Background(), "et-missing", dto.UpsertRequirementRequest{
		Cadre:     string(models.CadreProfessor),
		MinDuties: 2,
	})
	requireErrorCode(t, err, appErrors.ErrNotFound.Code)
}

func TestUpsertRestrictionRejectsBadTimeOrder(t *testing.T) {
	f := newExamTypeFixture(t)
	_, err := f.svc.UpsertRestriction(context.Background(), "et-1", dto.UpsertRestrictionRequest{
		Cadre:             string(models.CadreProfessor),
		PriorityStartTime: "18:00",
		PriorityEndTime:   "16:30",
		MinSlotsRequired:  1,
	})
	requireErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestUpsertRestrictionRejectsUnknownDay(t *testing.T) {
	f := newExamTypeFixture(t)
	_, err := f.svc.UpsertRestriction(context.Background(), "et-1", dto.UpsertRestrictionRequest{
		Cadre:             string(models.CadreProfessor),
		PriorityStartTime: "16:30",
		PriorityEndTime:   "18:00",
		PriorityDays:      "MONDAY,FUNDAY",
		MinSlotsRequired:  1,
	})
	requireErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestUpsertRestrictionNormalizesDays(t *testing.T) {
	f := newExamTypeFixture(t)
	restriction, err := f.svc.UpsertRestriction(context.Background(), "et-1", dto.UpsertRestrictionRequest{
		Cadre:             string(models.CadreProfessor),
		PriorityStartTime: "16:30",
		PriorityEndTime:   "18:00",
		PriorityDays:      " monday , Friday ",
		MinSlotsRequired:  1,
	})
	require.NoError(t, err)
	require.Equal(t, "MONDAY,FRIDAY", restriction.PriorityDays)
	require.Same(t, restriction, f.restrictions.upserted)
}

func TestUpsertExceptionRejectsMaxBelowMin(t *testing.T) {
	f := newExamTypeFixture(t)
	minDuties, maxDuties := 3, 1
	_, err := f.svc.UpsertException(context.Background(), "et-1", dto.UpsertExceptionRequest{
		FacultyID: "fac-1",
		MinDuties: &minDuties,
		MaxDuties: &maxDuties,
		Reason:    "medical",
	})
	requireErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestUpsertExceptionUnknownFaculty(t *testing.T) {
	f := newExamTypeFixture(t)
	_, err := f.svc.UpsertException(context.Background(), "et-1", dto.UpsertExceptionRequest{
		FacultyID: "fac-missing",
		Reason:    "medical",
	})
	requireErrorCode(t, err, appErrors.ErrNotFound.Code)
}

func TestUpsertExceptionSucceeds(t *testing.T) {
	f := newExamTypeFixture(t)
	maxDuties := 1
	exception, err := f.svc.UpsertException(context.Background(), "et-1", dto.UpsertExceptionRequest{
		FacultyID: "fac-1",
		MaxDuties: &maxDuties,
		Reason:    "sabbatical leave",
	})
	require.NoError(t, err)
	require.Nil(t, exception.MinDuties)
	require.Equal(t, 1, *exception.MaxDuties)
	require.Same(t, exception, f.requirements.exception)
}

func TestGrantExemptionLowercasesEmail(t *testing.T) {
	f := newExamTypeFixture(t)
	exemption, err := f.svc.GrantExemption(context.Background(), "et-1", "admin-1", dto.CreateExemptionRequest{
		FacultyEmail: "Prof@Univ.EDU",
		Reason:       "evening clinic",
	})
	require.NoError(t, err)
	require.Equal(t, "prof@univ.edu", exemption.FacultyEmail)
	require.Equal(t, "admin-1", exemption.GrantedBy)
	require.Same(t, exemption, f.restrictions.exemption)
}
