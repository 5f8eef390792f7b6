package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-duty-api/internal/dto"
	"github.com/noah-isme/exam-duty-api/internal/models"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
)

type courseUpserter interface {
	UpsertByCode(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
}

type sessionImporter interface {
	Exists(ctx context.Context, exec sqlx.ExtContext, examTypeID, courseID string, date time.Time, startTime string) (bool, error)
	CreateWithSlots(ctx context.Context, exec sqlx.ExtContext, session *models.ExamSession) error
}

// ImportService bulk-creates courses and exam sessions from parsed rows.
// The batch is all-or-nothing: every row is validated and attempted inside
// one transaction, and any row error rolls the whole batch back while the
// summary still reports each offending row.
type ImportService struct {
	examTypes dutyExamTypeReader
	courses   courseUpserter
	sessions  sessionImporter
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewImportService wires the bulk importer.
func NewImportService(examTypes dutyExamTypeReader, courses courseUpserter, sessions sessionImporter, tx txProvider, validate *validator.Validate, logger *zap.Logger) *ImportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{examTypes: examTypes, courses: courses, sessions: sessions, tx: tx, validator: validate, logger: logger}
}

// ImportSessions processes the batch. Row numbering in errors is 1-based to
// match the uploaded sheet.
func (s *ImportService) ImportSessions(ctx context.Context, req dto.ImportSessionsRequest) (*models.ImportSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}
	if _, err := s.examTypes.FindByID(ctx, req.ExamTypeID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam type not found")
	}

	summary := &models.ImportSummary{TotalRows: len(req.Rows)}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if !summary.Committed {
			_ = tx.Rollback()
		}
	}()

	courseIDs := make(map[string]string)
	for i, row := range req.Rows {
		rowNum := i + 1
		date, rowErr := s.validateRow(row)
		if rowErr != "" {
			summary.Errors = append(summary.Errors, models.ImportRowError{Row: rowNum, Message: rowErr})
			continue
		}

		courseID, ok := courseIDs[row.CourseCode]
		if !ok {
			course := &models.Course{
				Branch:       row.Branch,
				Code:         row.CourseCode,
				Name:         row.CourseName,
				Semester:     row.Semester,
				StudentCount: row.StudentCount,
			}
			if err := s.courses.UpsertByCode(ctx, tx, course); err != nil {
				summary.Errors = append(summary.Errors, models.ImportRowError{Row: rowNum, Message: fmt.Sprintf("course upsert failed: %v", err)})
				continue
			}
			courseID = course.ID
			courseIDs[row.CourseCode] = courseID
			summary.CoursesUpserted++
		}

		exists, err := s.sessions.Exists(ctx, tx, req.ExamTypeID, courseID, date, row.StartTime)
		if err != nil {
			summary.Errors = append(summary.Errors, models.ImportRowError{Row: rowNum, Message: fmt.Sprintf("duplicate check failed: %v", err)})
			continue
		}
		if exists {
			summary.Errors = append(summary.Errors, models.ImportRowError{Row: rowNum, Message: fmt.Sprintf("duplicate session for course %s on %s at %s", row.CourseCode, row.SessionDate, row.StartTime)})
			continue
		}

		session := &models.ExamSession{
			ExamTypeID:    req.ExamTypeID,
			CourseID:      courseID,
			SessionDate:   date,
			StartTime:     row.StartTime,
			EndTime:       row.EndTime,
			RoomsRequired: row.RoomsRequired,
			Status:        models.SessionOpen,
		}
		if err := s.sessions.CreateWithSlots(ctx, tx, session); err != nil {
			summary.Errors = append(summary.Errors, models.ImportRowError{Row: rowNum, Message: fmt.Sprintf("session create failed: %v", err)})
			continue
		}
		summary.SessionsCreated++
		summary.SlotsCreated += row.RoomsRequired
	}

	if len(summary.Errors) > 0 {
		s.logger.Info("session import rolled back",
			zap.String("exam_type_id", req.ExamTypeID),
			zap.Int("rows", summary.TotalRows),
			zap.Int("errors", len(summary.Errors)))
		return summary, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit import")
	}
	summary.Committed = true
	s.logger.Info("session import committed",
		zap.String("exam_type_id", req.ExamTypeID),
		zap.Int("sessions", summary.SessionsCreated),
		zap.Int("slots", summary.SlotsCreated))
	return summary, nil
}

// validateRow enforces the engine's entry contract: parseable date and
// times, start before end, positive room count.
func (s *ImportService) validateRow(row dto.SessionImportRow) (time.Time, string) {
	date, err := time.Parse("2006-01-02", row.SessionDate)
	if err != nil {
		return time.Time{}, fmt.Sprintf("invalid session date %q", row.SessionDate)
	}
	start, err := models.MinuteOfDay(row.StartTime)
	if err != nil {
		return time.Time{}, fmt.Sprintf("invalid start time %q", row.StartTime)
	}
	end, err := models.MinuteOfDay(row.EndTime)
	if err != nil {
		return time.Time{}, fmt.Sprintf("invalid end time %q", row.EndTime)
	}
	if start >= end {
		return time.Time{}, fmt.Sprintf("start time %s must be before end time %s", row.StartTime, row.EndTime)
	}
	if row.RoomsRequired <= 0 {
		return time.Time{}, "rooms_required must be positive"
	}
	return date, ""
}
