package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-duty-api/internal/models"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
)

type conflictSessionReader interface {
	FindByID(ctx context.Context, id string) (*models.ExamSessionDetail, error)
}

type conflictFacultyReader interface {
	FindByEmail(ctx context.Context, email string) (*models.Faculty, error)
}

type heldDutyReader interface {
	ListHeldByFacultyOnDate(ctx context.Context, facultyID string, date time.Time) ([]models.SlotWithSession, error)
}

// ConflictService answers whether a faculty member already holds a duty
// overlapping a candidate session. It is read-only.
type ConflictService struct {
	sessions conflictSessionReader
	faculty  conflictFacultyReader
	held     heldDutyReader
	logger   *zap.Logger
}

// NewConflictService wires the conflict checker.
func NewConflictService(sessions conflictSessionReader, faculty conflictFacultyReader, held heldDutyReader, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{sessions: sessions, faculty: faculty, held: held, logger: logger}
}

// Check compares the candidate session against every duty the faculty holds
// on the same date. Intervals are half-open: a session ending exactly when
// another starts does not conflict. An unknown faculty email yields no
// conflict; the pick is evaluated as if no prior duties exist.
func (s *ConflictService) Check(ctx context.Context, facultyEmail, sessionID string) (*models.ConflictResult, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam session")
	}

	faculty, err := s.faculty.FindByEmail(ctx, facultyEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("conflict check for unknown faculty", zap.String("email", facultyEmail))
			return &models.ConflictResult{HasConflict: false}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}

	held, err := s.held.ListHeldByFacultyOnDate(ctx, faculty.ID, session.SessionDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load held duties")
	}

	result := &models.ConflictResult{}
	seen := make(map[string]bool, len(held))
	for _, duty := range held {
		if seen[duty.SessionID] {
			continue
		}
		if !models.SessionOverlaps(session.StartTime, session.EndTime, duty.StartTime, duty.EndTime) {
			continue
		}
		seen[duty.SessionID] = true
		result.Conflicts = append(result.Conflicts, models.DutyConflict{
			CourseCode:  duty.CourseCode,
			CourseName:  duty.CourseName,
			SessionDate: duty.SessionDate,
			StartTime:   duty.StartTime,
			EndTime:     duty.EndTime,
		})
	}
	result.HasConflict = len(result.Conflicts) > 0
	return result, nil
}
