package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-duty-api/internal/models"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
	"github.com/noah-isme/exam-duty-api/pkg/events"
)

type dutyExamTypeReader interface {
	FindByID(ctx context.Context, id string) (*models.ExamType, error)
}

type slotStore interface {
	Claim(ctx context.Context, exec sqlx.ExtContext, sessionID, facultyID string) (*models.RoomSlot, error)
	Release(ctx context.Context, exec sqlx.ExtContext, slotID, facultyID string) (int64, error)
	ListHeldByFaculty(ctx context.Context, facultyID, examTypeID string) ([]models.SlotWithSession, error)
	ListByExamType(ctx context.Context, examTypeID string) ([]models.SlotWithSession, error)
}

type restrictionReader interface {
	FindByExamTypeAndCadre(ctx context.Context, examTypeID string, cadre models.Cadre) (*models.TimeRestriction, error)
	IsExempt(ctx context.Context, examTypeID, facultyEmail string) (bool, error)
}

type requirementReader interface {
	FindByExamTypeAndCadre(ctx context.Context, examTypeID string, cadre models.Cadre) (*models.CadreRequirement, error)
	FindException(ctx context.Context, facultyID, examTypeID string) (*models.FacultyDutyException, error)
}

type confirmationStore interface {
	Find(ctx context.Context, facultyID, examTypeID string) (*models.DutyConfirmation, error)
	SetConfirmed(ctx context.Context, facultyID, examTypeID string) (*models.DutyConfirmation, error)
}

type conflictChecker interface {
	Check(ctx context.Context, facultyEmail, sessionID string) (*models.ConflictResult, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type dutyCounters interface {
	RecordPick()
	RecordRelease()
	RecordConfirmation()
}

// DutyService enforces the pick/release rules: time-overlap conflicts,
// priority-slot quotas, the confirmation state machine and the atomic slot
// claim. Successful mutations emit best-effort duty events.
type DutyService struct {
	sessions      conflictSessionReader
	faculty       conflictFacultyReader
	examTypes     dutyExamTypeReader
	slots         slotStore
	restrictions  restrictionReader
	requirements  requirementReader
	confirmations confirmationStore
	conflicts     conflictChecker
	tx            txProvider
	publisher     events.Publisher
	cache         cacheInvalidator
	metrics       dutyCounters
	defaultMax    int
	logger        *zap.Logger
	now           func() time.Time
}

// DutyServiceConfig carries engine tunables.
type DutyServiceConfig struct {
	DefaultMaxDuties int
}

// NewDutyService wires the pick/release validator.
func NewDutyService(
	sessions conflictSessionReader,
	faculty conflictFacultyReader,
	examTypes dutyExamTypeReader,
	slots slotStore,
	restrictions restrictionReader,
	requirements requirementReader,
	confirmations confirmationStore,
	conflicts conflictChecker,
	tx txProvider,
	publisher events.Publisher,
	cache cacheInvalidator,
	metrics dutyCounters,
	cfg DutyServiceConfig,
	logger *zap.Logger,
) *DutyService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DutyService{
		sessions:      sessions,
		faculty:       faculty,
		examTypes:     examTypes,
		slots:         slots,
		restrictions:  restrictions,
		requirements:  requirements,
		confirmations: confirmations,
		conflicts:     conflicts,
		tx:            tx,
		publisher:     publisher,
		cache:         cache,
		metrics:       metrics,
		defaultMax:    cfg.DefaultMaxDuties,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CanPickSlot evaluates the priority-quota rule for a candidate session.
// Faculty whose cadre carries an unmet priority quota may only pick inside
// the priority window, unless no free priority slot remains anywhere in the
// exam type.
func (s *DutyService) CanPickSlot(ctx context.Context, facultyEmail, sessionID string) (*models.PickEligibility, error) {
	session, faculty, err := s.loadSessionAndFaculty(ctx, facultyEmail, sessionID)
	if err != nil {
		return nil, err
	}

	restriction, err := s.activeRestriction(ctx, session.ExamTypeID, faculty)
	if err != nil {
		return nil, err
	}
	if restriction == nil {
		return &models.PickEligibility{CanPick: true}, nil
	}

	held, err := s.slots.ListHeldByFaculty(ctx, faculty.ID, session.ExamTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load held duties")
	}
	priorityPicked := countPriority(held, restriction)
	if priorityPicked >= restriction.MinSlotsRequired {
		return &models.PickEligibility{CanPick: true}, nil
	}

	if sessionInPriorityWindow(session, restriction) {
		return &models.PickEligibility{CanPick: true}, nil
	}

	freePriority, err := s.freePrioritySlots(ctx, session.ExamTypeID, restriction)
	if err != nil {
		return nil, err
	}
	if freePriority == 0 {
		return &models.PickEligibility{CanPick: true}, nil
	}

	return &models.PickEligibility{
		CanPick:     false,
		Reason:      "quota_not_met",
		Restriction: restrictionDetail(restriction, priorityPicked),
	}, nil
}

// Pick binds one free slot of the session to the faculty member. The claim
// is atomic: two faculty racing for the last slot resolve to one winner and
// one SLOT_UNAVAILABLE rejection.
func (s *DutyService) Pick(ctx context.Context, facultyEmail, sessionID string) (*models.PickResult, error) {
	session, faculty, err := s.loadSessionAndFaculty(ctx, facultyEmail, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionOpen {
		return nil, appErrors.Clone(appErrors.ErrConflict, "exam session is closed")
	}
	if err := s.ensureSelectionOpen(ctx, session.ExamTypeID); err != nil {
		return nil, err
	}

	confirmation, err := s.confirmations.Find(ctx, faculty.ID, session.ExamTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load confirmation state")
	}
	if confirmation != nil && confirmation.Confirmed {
		return nil, appErrors.Clone(appErrors.ErrAlreadyConfirmed, "duty selection already confirmed; picks are closed")
	}

	conflict, err := s.conflicts.Check(ctx, facultyEmail, sessionID)
	if err != nil {
		return nil, err
	}
	if conflict.HasConflict {
		return nil, appErrors.Detailed(appErrors.ErrTimeConflict, "", conflict.Conflicts)
	}

	eligibility, err := s.CanPickSlot(ctx, facultyEmail, sessionID)
	if err != nil {
		return nil, err
	}
	if !eligibility.CanPick {
		return nil, appErrors.Detailed(appErrors.ErrQuotaNotMet, "", eligibility.Restriction)
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	slot, err := s.slots.Claim(ctx, tx, sessionID, faculty.ID)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim slot")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit pick")
	}

	s.afterMutation(ctx, events.ActionPick, sessionID, session.ExamTypeID)
	if s.metrics != nil {
		s.metrics.RecordPick()
	}

	progress, err := s.Progress(ctx, facultyEmail, session.ExamTypeID)
	if err != nil {
		s.logger.Warn("progress snapshot after pick failed", zap.Error(err))
		progress = nil
	}
	return &models.PickResult{SlotID: slot.ID, SessionID: sessionID, Room: slot.Room, Progress: progress}, nil
}

// Release unbinds a held slot. Blocked once the faculty has confirmed, and
// blocked when dropping the duty would fall below the priority quota while
// free priority slots still exist elsewhere.
func (s *DutyService) Release(ctx context.Context, facultyEmail, slotID, sessionID string) (*models.ReleaseResult, error) {
	session, faculty, err := s.loadSessionAndFaculty(ctx, facultyEmail, sessionID)
	if err != nil {
		return nil, err
	}

	confirmation, err := s.confirmations.Find(ctx, faculty.ID, session.ExamTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load confirmation state")
	}
	if confirmation != nil && confirmation.Confirmed {
		return nil, appErrors.Clone(appErrors.ErrAlreadyConfirmed, "")
	}

	restriction, err := s.activeRestriction(ctx, session.ExamTypeID, faculty)
	if err != nil {
		return nil, err
	}
	if restriction != nil {
		held, err := s.slots.ListHeldByFaculty(ctx, faculty.ID, session.ExamTypeID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load held duties")
		}
		priorityPicked := countPriority(held, restriction)
		releasingPriority := false
		for _, duty := range held {
			if duty.SlotID == slotID && slotInPriorityWindow(duty, restriction) {
				releasingPriority = true
				break
			}
		}
		if releasingPriority && priorityPicked-1 < restriction.MinSlotsRequired {
			freePriority, err := s.freePrioritySlots(ctx, session.ExamTypeID, restriction)
			if err != nil {
				return nil, err
			}
			if freePriority > 0 {
				return nil, appErrors.Detailed(appErrors.ErrQuotaViolation, "", restrictionDetail(restriction, priorityPicked))
			}
		}
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	affected, err := s.slots.Release(ctx, tx, slotID, faculty.ID)
	if err != nil {
		_ = tx.Rollback()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release slot")
	}
	if affected == 0 {
		_ = tx.Rollback()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "duty not held by this faculty")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit release")
	}

	s.afterMutation(ctx, events.ActionRelease, sessionID, session.ExamTypeID)
	if s.metrics != nil {
		s.metrics.RecordRelease()
	}

	progress, err := s.Progress(ctx, facultyEmail, session.ExamTypeID)
	if err != nil {
		s.logger.Warn("progress snapshot after release failed", zap.Error(err))
		progress = nil
	}
	return &models.ReleaseResult{SlotID: slotID, SessionID: sessionID, Progress: progress}, nil
}

// Confirm finalises the faculty's duty selection for the exam type. Allowed
// only before the selection deadline, with the effective minimum met, and
// with the priority quota satisfied unless no free priority slot remains.
// Confirming an already confirmed selection is a no-op.
func (s *DutyService) Confirm(ctx context.Context, facultyEmail, examTypeID string) error {
	faculty, err := s.findFaculty(ctx, facultyEmail)
	if err != nil {
		return err
	}
	examType, err := s.examTypes.FindByID(ctx, examTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "exam type not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam type")
	}
	if s.now().After(examType.SelectionDeadline) {
		return appErrors.Clone(appErrors.ErrPastDeadline, "")
	}

	confirmation, err := s.confirmations.Find(ctx, faculty.ID, examTypeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load confirmation state")
	}
	if confirmation != nil && confirmation.Confirmed {
		return nil
	}

	progress, err := s.progressFor(ctx, faculty, examTypeID)
	if err != nil {
		return err
	}
	if progress.CurrentDuties < progress.EffectiveMin {
		return appErrors.Detailed(appErrors.ErrRequirementNotMet, "", progress)
	}

	restriction, err := s.activeRestriction(ctx, examTypeID, faculty)
	if err != nil {
		return err
	}
	if restriction != nil && progress.PriorityPicked < restriction.MinSlotsRequired {
		freePriority, err := s.freePrioritySlots(ctx, examTypeID, restriction)
		if err != nil {
			return err
		}
		if freePriority > 0 {
			return appErrors.Detailed(appErrors.ErrQuotaNotMet, "priority slot quota must be met before confirming", restrictionDetail(restriction, progress.PriorityPicked))
		}
	}

	if _, err := s.confirmations.SetConfirmed(ctx, faculty.ID, examTypeID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store confirmation")
	}
	if s.metrics != nil {
		s.metrics.RecordConfirmation()
	}
	s.invalidate(ctx)
	return nil
}

// Progress reports the faculty's standing against the effective requirement
// for an exam type. Duty counts are recomputed from slot rows on each call.
func (s *DutyService) Progress(ctx context.Context, facultyEmail, examTypeID string) (*models.RequirementProgress, error) {
	faculty, err := s.findFaculty(ctx, facultyEmail)
	if err != nil {
		return nil, err
	}
	return s.progressFor(ctx, faculty, examTypeID)
}

// ListHeld returns the duties a faculty member currently holds for an exam
// type in calendar order.
func (s *DutyService) ListHeld(ctx context.Context, facultyEmail, examTypeID string) ([]models.HeldDuty, error) {
	faculty, err := s.findFaculty(ctx, facultyEmail)
	if err != nil {
		return nil, err
	}
	held, err := s.slots.ListHeldByFaculty(ctx, faculty.ID, examTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load held duties")
	}
	duties := make([]models.HeldDuty, 0, len(held))
	for _, slot := range held {
		duties = append(duties, models.HeldDuty{
			SlotID:      slot.SlotID,
			SessionID:   slot.SessionID,
			CourseCode:  slot.CourseCode,
			CourseName:  slot.CourseName,
			SessionDate: slot.SessionDate,
			StartTime:   slot.StartTime,
			EndTime:     slot.EndTime,
			Room:        slot.Room,
		})
	}
	return duties, nil
}

func (s *DutyService) progressFor(ctx context.Context, faculty *models.Faculty, examTypeID string) (*models.RequirementProgress, error) {
	held, err := s.slots.ListHeldByFaculty(ctx, faculty.ID, examTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load held duties")
	}

	effectiveMin, effectiveMax, err := s.effectiveBounds(ctx, faculty, examTypeID)
	if err != nil {
		return nil, err
	}

	progress := &models.RequirementProgress{
		FacultyEmail:  faculty.Email,
		ExamTypeID:    examTypeID,
		Cadre:         faculty.Cadre,
		CurrentDuties: len(held),
		EffectiveMin:  effectiveMin,
		EffectiveMax:  effectiveMax,
	}

	restriction, err := s.activeRestriction(ctx, examTypeID, faculty)
	if err != nil {
		return nil, err
	}
	if restriction != nil {
		progress.PriorityRequired = restriction.MinSlotsRequired
		progress.PriorityPicked = countPriority(held, restriction)
	}

	confirmation, err := s.confirmations.Find(ctx, faculty.ID, examTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load confirmation state")
	}
	progress.Confirmed = confirmation != nil && confirmation.Confirmed
	progress.MeetsMinimum = progress.CurrentDuties >= progress.EffectiveMin
	return progress, nil
}

// effectiveBounds resolves the per-faculty minimum and maximum: exception
// overrides first, then the cadre requirement, then the configured default
// cap (zero meaning unbounded).
func (s *DutyService) effectiveBounds(ctx context.Context, faculty *models.Faculty, examTypeID string) (int, int, error) {
	min, max := 0, s.defaultMax

	requirement, err := s.requirements.FindByExamTypeAndCadre(ctx, examTypeID, faculty.Cadre)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cadre requirement")
	}
	if requirement != nil {
		min = requirement.MinDuties
	}

	exception, err := s.requirements.FindException(ctx, faculty.ID, examTypeID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load duty exception")
	}
	if exception != nil {
		if exception.MinDuties != nil {
			min = *exception.MinDuties
		}
		if exception.MaxDuties != nil {
			max = *exception.MaxDuties
		}
	}
	return min, max, nil
}

// activeRestriction resolves the time restriction binding the faculty, or
// nil when none applies: no restriction row, a zero quota, or an exemption.
func (s *DutyService) activeRestriction(ctx context.Context, examTypeID string, faculty *models.Faculty) (*models.TimeRestriction, error) {
	restriction, err := s.restrictions.FindByExamTypeAndCadre(ctx, examTypeID, faculty.Cadre)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time restriction")
	}
	if restriction.MinSlotsRequired <= 0 {
		return nil, nil
	}
	exempt, err := s.restrictions.IsExempt(ctx, examTypeID, faculty.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check restriction exemption")
	}
	if exempt {
		return nil, nil
	}
	return restriction, nil
}

func (s *DutyService) freePrioritySlots(ctx context.Context, examTypeID string, restriction *models.TimeRestriction) (int, error) {
	slots, err := s.slots.ListByExamType(ctx, examTypeID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam type slots")
	}
	count := 0
	for _, slot := range slots {
		if slot.Status == models.SlotFree && slotInPriorityWindow(slot, restriction) {
			count++
		}
	}
	return count, nil
}

func (s *DutyService) loadSessionAndFaculty(ctx context.Context, facultyEmail, sessionID string) (*models.ExamSessionDetail, *models.Faculty, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "exam session not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam session")
	}
	faculty, err := s.findFaculty(ctx, facultyEmail)
	if err != nil {
		return nil, nil, err
	}
	return session, faculty, nil
}

func (s *DutyService) findFaculty(ctx context.Context, email string) (*models.Faculty, error) {
	faculty, err := s.faculty.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	return faculty, nil
}

func (s *DutyService) ensureSelectionOpen(ctx context.Context, examTypeID string) error {
	examType, err := s.examTypes.FindByID(ctx, examTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "exam type not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam type")
	}
	now := s.now()
	if now.Before(examType.SelectionStart) {
		return appErrors.Clone(appErrors.ErrValidation, "duty selection has not opened yet")
	}
	if now.After(examType.SelectionDeadline) {
		return appErrors.Clone(appErrors.ErrPastDeadline, "")
	}
	return nil
}

func (s *DutyService) afterMutation(ctx context.Context, action events.Action, sessionID, examTypeID string) {
	_ = s.publisher.Publish(ctx, events.DutyEvent{Action: action, SessionID: sessionID, ExamTypeID: examTypeID, Timestamp: s.now()})
	s.invalidate(ctx)
}

func (s *DutyService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "duty:*"); err != nil {
		s.logger.Warn("duty cache invalidation failed", zap.Error(err))
	}
}

func restrictionDetail(restriction *models.TimeRestriction, priorityPicked int) *models.RestrictionDetail {
	return &models.RestrictionDetail{
		PriorityStartTime: restriction.PriorityStartTime,
		PriorityEndTime:   restriction.PriorityEndTime,
		PriorityDays:      restriction.Days(),
		MinSlotsRequired:  restriction.MinSlotsRequired,
		PriorityPicked:    priorityPicked,
	}
}

func countPriority(held []models.SlotWithSession, restriction *models.TimeRestriction) int {
	count := 0
	for _, slot := range held {
		if slotInPriorityWindow(slot, restriction) {
			count++
		}
	}
	return count
}

func slotInPriorityWindow(slot models.SlotWithSession, restriction *models.TimeRestriction) bool {
	return restriction.AppliesOn(slot.SessionDate) &&
		models.InWindow(slot.StartTime, slot.EndTime, restriction.PriorityStartTime, restriction.PriorityEndTime)
}

func sessionInPriorityWindow(session *models.ExamSessionDetail, restriction *models.TimeRestriction) bool {
	return restriction.AppliesOn(session.SessionDate) &&
		models.InWindow(session.StartTime, session.EndTime, restriction.PriorityStartTime, restriction.PriorityEndTime)
}
