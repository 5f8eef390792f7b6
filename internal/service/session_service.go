package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-duty-api/internal/dto"
	"github.com/noah-isme/exam-duty-api/internal/models"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
)

type sessionAdminStore interface {
	FindByID(ctx context.Context, id string) (*models.ExamSessionDetail, error)
	ListByExamType(ctx context.Context, examTypeID string) ([]models.ExamSessionDetail, error)
	Exists(ctx context.Context, exec sqlx.ExtContext, examTypeID, courseID string, date time.Time, startTime string) (bool, error)
	CreateWithSlots(ctx context.Context, exec sqlx.ExtContext, session *models.ExamSession) error
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
	Delete(ctx context.Context, id string) error
}

type courseReader interface {
	List(ctx context.Context) ([]models.Course, error)
	FindByCode(ctx context.Context, code string) (*models.Course, error)
}

type sessionSlotReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.RoomSlot, error)
}

// SessionService manages individual exam sessions and their room slots.
// Bulk creation lives in ImportService; this covers the one-at-a-time
// admin operations.
type SessionService struct {
	examTypes dutyExamTypeReader
	sessions  sessionAdminStore
	courses   courseReader
	slots     sessionSlotReader
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService wires session administration.
func NewSessionService(examTypes dutyExamTypeReader, sessions sessionAdminStore, courses courseReader, slots sessionSlotReader, tx txProvider, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		examTypes: examTypes,
		sessions:  sessions,
		courses:   courses,
		slots:     slots,
		tx:        tx,
		validator: validate,
		logger:    logger,
	}
}

// ListByExamType returns the sessions of a campaign in calendar order.
func (s *SessionService) ListByExamType(ctx context.Context, examTypeID string) ([]models.ExamSessionDetail, error) {
	if _, err := s.examTypes.FindByID(ctx, examTypeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam type")
	}
	sessions, err := s.sessions.ListByExamType(ctx, examTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Get loads one session with its slots.
func (s *SessionService) Get(ctx context.Context, id string) (*models.ExamSessionDetail, []models.RoomSlot, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	slots, err := s.slots.ListBySession(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
	}
	return session, slots, nil
}

// Create stores one session plus its room slots, rejecting duplicates for
// the same (course, date, start time) within the campaign.
func (s *SessionService) Create(ctx context.Context, req dto.CreateSessionRequest) (*models.ExamSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	date, err := time.Parse("2006-01-02", req.SessionDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session date")
	}
	start, err := models.MinuteOfDay(req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start time")
	}
	end, err := models.MinuteOfDay(req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end time")
	}
	if start >= end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}
	if _, err := s.examTypes.FindByID(ctx, req.ExamTypeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam type")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	exists, err := s.sessions.Exists(ctx, tx, req.ExamTypeID, req.CourseID, date, req.StartTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check for duplicates")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a session for this course, date and start time already exists")
	}

	session := &models.ExamSession{
		ExamTypeID:    req.ExamTypeID,
		CourseID:      req.CourseID,
		SessionDate:   date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		RoomsRequired: req.RoomsRequired,
		Status:        models.SessionOpen,
	}
	if err := s.sessions.CreateWithSlots(ctx, tx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit session")
	}
	committed = true
	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("exam_type_id", session.ExamTypeID),
		zap.Int("rooms", session.RoomsRequired))
	return session, nil
}

// Close stops further picks for a session.
func (s *SessionService) Close(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.SessionClosed)
}

// Reopen allows picks again.
func (s *SessionService) Reopen(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.SessionOpen)
}

func (s *SessionService) setStatus(ctx context.Context, id string, status models.SessionStatus) error {
	if _, err := s.sessions.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if err := s.sessions.UpdateStatus(ctx, id, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session status")
	}
	return nil
}

// Delete removes a session and its slots. Sessions with picked slots
// cannot be removed; release or reassign the duties first.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	_, slots, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if slot.Status == models.SlotAssigned {
			return appErrors.Clone(appErrors.ErrConflict, "session has picked slots; release them first")
		}
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	return nil
}

// ListCourses returns the course catalogue.
func (s *SessionService) ListCourses(ctx context.Context) ([]models.Course, error) {
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}
