package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-duty-api/internal/dto"
	"github.com/noah-isme/exam-duty-api/internal/models"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
)

type stubRosterAdmin struct {
	faculty    map[string]*models.Faculty
	total      int
	duties     int
	createErr  error
	deleted    []string
	lastFilter models.FacultyFilter
}

func (s *stubRosterAdmin) List(_ context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error) {
	s.lastFilter = filter
	out := make([]models.Faculty, 0, len(s.faculty))
	for _, f := range s.faculty {
		out = append(out, *f)
	}
	return out, s.total, nil
}

func (s *stubRosterAdmin) FindByID(_ context.Context, id string) (*models.Faculty, error) {
	if f, ok := s.faculty[id]; ok {
		return f, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubRosterAdmin) Create(_ context.Context, f *models.Faculty) error {
	if s.createErr != nil {
		return s.createErr
	}
	f.ID = "fac-new"
	return nil
}

func (s *stubRosterAdmin) Update(_ context.Context, _ *models.Faculty) error { return nil }

func (s *stubRosterAdmin) Delete(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubRosterAdmin) CountDuties(_ context.Context, _ string) (int, error) {
	return s.duties, nil
}

func newRosterFixture() (*RosterService, *stubRosterAdmin) {
	store := &stubRosterAdmin{faculty: map[string]*models.Faculty{
		"fac-1": {ID: "fac-1", Email: "prof@univ.edu", FullName: "A Professor", Cadre: models.CadreProfessor, Initials: "AP"},
	}}
	return NewRosterService(store, nil, nil), store
}

func TestRosterListDefaultsPagination(t *testing.T) {
	svc, store := newRosterFixture()
	store.total = 1

	_, pagination, err := svc.List(context.Background(), models.FacultyFilter{Page: 0, PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 1, pagination.Page)
	require.Equal(t, 20, pagination.PageSize)
	require.Equal(t, 1, pagination.TotalCount)
}

func TestRosterCreateUnknownCadre(t *testing.T) {
	svc, _ := newRosterFixture()
	_, err := svc.Create(context.Background(), dto.CreateFacultyRequest{
		Email:    "new@univ.edu",
		FullName: "New Faculty",
		Cadre:    "Lecturer Emeritus",
		Initials: "NF",
	})
	requireErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestRosterCreateDuplicateMapsToConflict(t *testing.T) {
	svc, store := newRosterFixture()
	store.createErr = errors.New("pq: duplicate key value violates unique constraint")

	_, err := svc.Create(context.Background(), dto.CreateFacultyRequest{
		Email:    "prof@univ.edu",
		FullName: "A Professor",
		Cadre:    string(models.CadreProfessor),
		Initials: "AP",
	})
	requireErrorCode(t, err, appErrors.ErrConflict.Code)
}

func TestRosterDeleteBlockedWhileHoldingDuties(t *testing.T) {
	svc, store := newRosterFixture()
	store.duties = 2

	err := svc.Delete(context.Background(), "fac-1")
	requireErrorCode(t, err, appErrors.ErrConflict.Code)
	require.Empty(t, store.deleted)
}

func TestRosterDeleteSucceedsWithoutDuties(t *testing.T) {
	svc, store := newRosterFixture()

	require.NoError(t, svc.Delete(context.Background(), "fac-1"))
	require.Equal(t, []string{"fac-1"}, store.deleted)
}

func TestRosterDeleteUnknownFaculty(t *testing.T) {
	svc, _ := newRosterFixture()
	err := svc.Delete(context.Background(), "fac-missing")
	requireErrorCode(t, err, appErrors.ErrNotFound.Code)
}
