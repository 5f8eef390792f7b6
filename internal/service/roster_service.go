package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-duty-api/internal/dto"
	"github.com/noah-isme/exam-duty-api/internal/models"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
)

type facultyStore interface {
	List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, int, error)
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
	Create(ctx context.Context, f *models.Faculty) error
	Update(ctx context.Context, f *models.Faculty) error
	Delete(ctx context.Context, id string) error
	CountDuties(ctx context.Context, facultyID string) (int, error)
}

// RosterService manages the faculty roster.
type RosterService struct {
	faculty   facultyStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService wires roster management.
func NewRosterService(faculty facultyStore, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{faculty: faculty, validator: validate, logger: logger}
}

// List returns roster entries with pagination metadata.
func (s *RosterService) List(ctx context.Context, filter models.FacultyFilter) ([]models.Faculty, *models.Pagination, error) {
	faculty, total, err := s.faculty.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return faculty, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one roster entry.
func (s *RosterService) Get(ctx context.Context, id string) (*models.Faculty, error) {
	faculty, err := s.faculty.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	return faculty, nil
}

// Create registers a faculty member.
func (s *RosterService) Create(ctx context.Context, req dto.CreateFacultyRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	cadre := models.Cadre(req.Cadre)
	if !models.ValidCadre(cadre) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown cadre")
	}
	faculty := &models.Faculty{
		Email:      req.Email,
		FullName:   req.FullName,
		Cadre:      cadre,
		Department: req.Department,
		Initials:   req.Initials,
	}
	if err := s.faculty.Create(ctx, faculty); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "failed to create faculty; email and initials must be unique")
	}
	return faculty, nil
}

// Update edits a roster entry.
func (s *RosterService) Update(ctx context.Context, id string, req dto.UpdateFacultyRequest) (*models.Faculty, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	cadre := models.Cadre(req.Cadre)
	if !models.ValidCadre(cadre) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown cadre")
	}
	faculty, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	faculty.Email = req.Email
	faculty.FullName = req.FullName
	faculty.Cadre = cadre
	faculty.Department = req.Department
	faculty.Initials = req.Initials
	if err := s.faculty.Update(ctx, faculty); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update faculty")
	}
	return faculty, nil
}

// Delete removes a roster entry. Faculty holding duties cannot be removed.
func (s *RosterService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	duties, err := s.faculty.CountDuties(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count duties")
	}
	if duties > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "faculty still holds duties; release them first")
	}
	if err := s.faculty.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete faculty")
	}
	return nil
}
