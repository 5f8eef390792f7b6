package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-duty-api/internal/dto"
	"github.com/noah-isme/exam-duty-api/internal/models"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
)

type examTypeStore interface {
	List(ctx context.Context) ([]models.ExamType, error)
	FindByID(ctx context.Context, id string) (*models.ExamType, error)
	Create(ctx context.Context, examType *models.ExamType) error
	Update(ctx context.Context, examType *models.ExamType) error
	Delete(ctx context.Context, id string) error
}

type requirementAdminStore interface {
	ListByExamType(ctx context.Context, examTypeID string) ([]models.CadreRequirement, error)
	Upsert(ctx context.Context, requirement *models.CadreRequirement) error
	ListExceptionsByExamType(ctx context.Context, examTypeID string) ([]models.FacultyDutyException, error)
	UpsertException(ctx context.Context, exception *models.FacultyDutyException) error
}

type restrictionAdminStore interface {
	ListByExamType(ctx context.Context, examTypeID string) ([]models.TimeRestriction, error)
	Upsert(ctx context.Context, restriction *models.TimeRestriction) error
	ListExemptionsByExamType(ctx context.Context, examTypeID string) ([]models.RestrictionExemption, error)
	CreateExemption(ctx context.Context, exemption *models.RestrictionExemption) error
}

type facultyFinder interface {
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
}

// ExamTypeService administers campaigns and their allocation rules:
// cadre requirements, priority time restrictions, per-faculty exceptions
// and restriction exemptions.
type ExamTypeService struct {
	examTypes    examTypeStore
	requirements requirementAdminStore
	restrictions restrictionAdminStore
	faculty      facultyFinder
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewExamTypeService wires campaign administration.
func NewExamTypeService(examTypes examTypeStore, requirements requirementAdminStore, restrictions restrictionAdminStore, faculty facultyFinder, validate *validator.Validate, logger *zap.Logger) *ExamTypeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamTypeService{
		examTypes:    examTypes,
		requirements: requirements,
		restrictions: restrictions,
		faculty:      faculty,
		validator:    validate,
		logger:       logger,
	}
}

// List returns all campaigns, newest first.
func (s *ExamTypeService) List(ctx context.Context) ([]models.ExamType, error) {
	examTypes, err := s.examTypes.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam types")
	}
	return examTypes, nil
}

// Get loads one campaign.
func (s *ExamTypeService) Get(ctx context.Context, id string) (*models.ExamType, error) {
	examType, err := s.examTypes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam type")
	}
	return examType, nil
}

// Create opens a new campaign.
func (s *ExamTypeService) Create(ctx context.Context, req dto.CreateExamTypeRequest) (*models.ExamType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam type payload")
	}
	examType := &models.ExamType{
		TypeName:          req.TypeName,
		SelectionStart:    req.SelectionStart,
		SelectionDeadline: req.SelectionDeadline,
		IsActive:          req.IsActive,
	}
	if err := s.examTypes.Create(ctx, examType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam type")
	}
	s.logger.Info("exam type created", zap.String("exam_type_id", examType.ID), zap.String("type_name", examType.TypeName))
	return examType, nil
}

// Update edits a campaign, including moving its selection window.
func (s *ExamTypeService) Update(ctx context.Context, id string, req dto.UpdateExamTypeRequest) (*models.ExamType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam type payload")
	}
	examType, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	examType.TypeName = req.TypeName
	examType.SelectionStart = req.SelectionStart
	examType.SelectionDeadline = req.SelectionDeadline
	examType.IsActive = req.IsActive
	if err := s.examTypes.Update(ctx, examType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam type")
	}
	return examType, nil
}

// Delete removes a campaign and, via schema cascades, everything under it.
func (s *ExamTypeService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.examTypes.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam type")
	}
	s.logger.Info("exam type deleted", zap.String("exam_type_id", id))
	return nil
}

// ListRequirements returns the cadre requirements of a campaign.
func (s *ExamTypeService) ListRequirements(ctx context.Context, examTypeID string) ([]models.CadreRequirement, error) {
	if _, err := s.Get(ctx, examTypeID); err != nil {
		return nil, err
	}
	requirements, err := s.requirements.ListByExamType(ctx, examTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requirements")
	}
	return requirements, nil
}

// UpsertRequirement sets the minimum duties for a cadre.
func (s *ExamTypeService) UpsertRequirement(ctx context.Context, examTypeID string, req dto.UpsertRequirementRequest) (*models.CadreRequirement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid requirement payload")
	}
	cadre := models.Cadre(req.Cadre)
	if !models.ValidCadre(cadre) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown cadre")
	}
	if _, err := s.Get(ctx, examTypeID); err != nil {
		return nil, err
	}
	requirement := &models.CadreRequirement{
		ExamTypeID: examTypeID,
		Cadre:      cadre,
		MinDuties:  req.MinDuties,
	}
	if err := s.requirements.Upsert(ctx, requirement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert requirement")
	}
	return requirement, nil
}

// ListRestrictions returns the priority time restrictions of a campaign.
func (s *ExamTypeService) ListRestrictions(ctx context.Context, examTypeID string) ([]models.TimeRestriction, error) {
	if _, err := s.Get(ctx, examTypeID); err != nil {
		return nil, err
	}
	restrictions, err := s.restrictions.ListByExamType(ctx, examTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list restrictions")
	}
	return restrictions, nil
}

// UpsertRestriction sets the priority time window for a cadre.
func (s *ExamTypeService) UpsertRestriction(ctx context.Context, examTypeID string, req dto.UpsertRestrictionRequest) (*models.TimeRestriction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid restriction payload")
	}
	cadre := models.Cadre(req.Cadre)
	if !models.ValidCadre(cadre) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown cadre")
	}
	start, err := models.MinuteOfDay(req.PriorityStartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid priority start time %q", req.PriorityStartTime))
	}
	end, err := models.MinuteOfDay(req.PriorityEndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid priority end time %q", req.PriorityEndTime))
	}
	if start >= end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "priority start time must be before end time")
	}
	days, err := normalizeDayFilter(req.PriorityDays)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if _, err := s.Get(ctx, examTypeID); err != nil {
		return nil, err
	}
	restriction := &models.TimeRestriction{
		ExamTypeID:        examTypeID,
		Cadre:             cadre,
		PriorityStartTime: req.PriorityStartTime,
		PriorityEndTime:   req.PriorityEndTime,
		PriorityDays:      days,
		MinSlotsRequired:  req.MinSlotsRequired,
	}
	if err := s.restrictions.Upsert(ctx, restriction); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert restriction")
	}
	return restriction, nil
}

// ListExceptions returns the per-faculty duty exceptions of a campaign.
func (s *ExamTypeService) ListExceptions(ctx context.Context, examTypeID string) ([]models.FacultyDutyException, error) {
	if _, err := s.Get(ctx, examTypeID); err != nil {
		return nil, err
	}
	exceptions, err := s.requirements.ListExceptionsByExamType(ctx, examTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exceptions")
	}
	return exceptions, nil
}

// UpsertException overrides the cadre bounds for one faculty member.
func (s *ExamTypeService) UpsertException(ctx context.Context, examTypeID string, req dto.UpsertExceptionRequest) (*models.FacultyDutyException, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exception payload")
	}
	if req.MinDuties != nil && req.MaxDuties != nil && *req.MaxDuties < *req.MinDuties {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max_duties must not be below min_duties")
	}
	if _, err := s.Get(ctx, examTypeID); err != nil {
		return nil, err
	}
	if _, err := s.faculty.FindByID(ctx, req.FacultyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	exception := &models.FacultyDutyException{
		FacultyID:  req.FacultyID,
		ExamTypeID: examTypeID,
		MinDuties:  req.MinDuties,
		MaxDuties:  req.MaxDuties,
		Reason:     req.Reason,
	}
	if err := s.requirements.UpsertException(ctx, exception); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert exception")
	}
	return exception, nil
}

// ListExemptions returns the restriction exemptions of a campaign.
func (s *ExamTypeService) ListExemptions(ctx context.Context, examTypeID string) ([]models.RestrictionExemption, error) {
	if _, err := s.Get(ctx, examTypeID); err != nil {
		return nil, err
	}
	exemptions, err := s.restrictions.ListExemptionsByExamType(ctx, examTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exemptions")
	}
	return exemptions, nil
}

// GrantExemption waives time-restriction enforcement for a faculty email.
func (s *ExamTypeService) GrantExemption(ctx context.Context, examTypeID, grantedBy string, req dto.CreateExemptionRequest) (*models.RestrictionExemption, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exemption payload")
	}
	if _, err := s.Get(ctx, examTypeID); err != nil {
		return nil, err
	}
	exemption := &models.RestrictionExemption{
		ExamTypeID:   examTypeID,
		FacultyEmail: strings.ToLower(req.FacultyEmail),
		Reason:       req.Reason,
		GrantedBy:    grantedBy,
	}
	if err := s.restrictions.CreateExemption(ctx, exemption); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant exemption")
	}
	s.logger.Info("restriction exemption granted",
		zap.String("exam_type_id", examTypeID),
		zap.String("faculty_email", exemption.FacultyEmail),
		zap.String("granted_by", grantedBy))
	return exemption, nil
}

var weekdayNames = map[string]struct{}{
	"MONDAY": {}, "TUESDAY": {}, "WEDNESDAY": {}, "THURSDAY": {},
	"FRIDAY": {}, "SATURDAY": {}, "SUNDAY": {},
}

// normalizeDayFilter upper-cases and validates a comma-separated day list.
// An empty input stays empty, meaning the window applies every day.
func normalizeDayFilter(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	parts := strings.Split(raw, ",")
	days := make([]string, 0, len(parts))
	for _, part := range parts {
		day := strings.ToUpper(strings.TrimSpace(part))
		if day == "" {
			continue
		}
		if _, ok := weekdayNames[day]; !ok {
			return "", fmt.Errorf("unknown day name %q", day)
		}
		days = append(days, day)
	}
	return strings.Join(days, ","), nil
}
