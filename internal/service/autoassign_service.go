package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-duty-api/internal/models"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
	"github.com/noah-isme/exam-duty-api/pkg/events"
)

type rosterLister interface {
	ListAll(ctx context.Context) ([]models.Faculty, error)
}

type assignSlotStore interface {
	ListByExamType(ctx context.Context, examTypeID string) ([]models.SlotWithSession, error)
	AssignSlot(ctx context.Context, exec sqlx.ExtContext, slotID, facultyID string) error
	Reassign(ctx context.Context, exec sqlx.ExtContext, slotID, fromFacultyID, toFacultyID string) error
}

type allocationRuleReader interface {
	ListByExamType(ctx context.Context, examTypeID string) ([]models.CadreRequirement, error)
	ListExceptionsByExamType(ctx context.Context, examTypeID string) ([]models.FacultyDutyException, error)
}

type assignMetrics interface {
	RecordAutoAssigned(count int)
}

// AutoAssignConfig tunes the allocation engine.
type AutoAssignConfig struct {
	// CadreWeights maps cadre names to explicit ratio weights. Cadres
	// without an entry fall back to their requirement minimum, then to 1.
	CadreWeights map[string]float64
	// DefaultMaxDuties caps per-faculty assignments when no exception
	// overrides it; zero means unbounded.
	DefaultMaxDuties int
	// ReallocationLimit bounds how many duties one pass may move.
	ReallocationLimit int
}

// AutoAssignService distributes remaining free slots across the roster:
// proportional per-cadre targets, a largest-deficit assignment pass, and an
// optional reallocation pass from over-target to under-minimum faculty. The
// computation runs over an in-memory snapshot; commits happen in a single
// transaction unless dry-run is requested.
type AutoAssignService struct {
	examTypes dutyExamTypeReader
	roster    rosterLister
	slots     assignSlotStore
	rules     allocationRuleReader
	tx        txProvider
	publisher events.Publisher
	cache     cacheInvalidator
	metrics   assignMetrics
	cfg       AutoAssignConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewAutoAssignService wires the allocation engine.
func NewAutoAssignService(
	examTypes dutyExamTypeReader,
	roster rosterLister,
	slots assignSlotStore,
	rules allocationRuleReader,
	tx txProvider,
	publisher events.Publisher,
	cache cacheInvalidator,
	metrics assignMetrics,
	cfg AutoAssignConfig,
	logger *zap.Logger,
) *AutoAssignService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReallocationLimit <= 0 {
		cfg.ReallocationLimit = 64
	}
	return &AutoAssignService{
		examTypes: examTypes,
		roster:    roster,
		slots:     slots,
		rules:     rules,
		tx:        tx,
		publisher: publisher,
		cache:     cache,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one allocation pass for the exam type. Dry runs compute the
// identical report without persisting anything. The pass is deterministic:
// the same snapshot always yields the same assignments.
func (s *AutoAssignService) Run(ctx context.Context, examTypeID string, dryRun, enableReallocation bool) (*models.AssignmentReport, error) {
	if _, err := s.examTypes.FindByID(ctx, examTypeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam type")
	}

	snapshot, err := s.loadSnapshot(ctx, examTypeID)
	if err != nil {
		return nil, err
	}

	report := &models.AssignmentReport{
		ExamTypeID:     examTypeID,
		DryRun:         dryRun,
		GeneratedAt:    s.now(),
		TotalFreeSlots: len(snapshot.freeSlots),
		Cadres:         snapshot.cadreTable(),
	}

	assignments := snapshot.assignmentPass(report)
	report.AssignedCount = len(assignments)

	var moves []reallocationMove
	if enableReallocation {
		moves = snapshot.reallocationPass(report, s.cfg.ReallocationLimit)
	}

	report.Faculty = snapshot.facultyTable()

	if !dryRun && (len(assignments) > 0 || len(moves) > 0) {
		if err := s.commit(ctx, assignments, moves); err != nil {
			return nil, err
		}
		_ = s.publisher.Publish(ctx, events.DutyEvent{Action: events.ActionAssign, ExamTypeID: examTypeID, Timestamp: s.now()})
		if s.cache != nil {
			if err := s.cache.DeleteByPattern(ctx, "duty:*"); err != nil {
				s.logger.Warn("duty cache invalidation failed", zap.Error(err))
			}
		}
		if s.metrics != nil {
			s.metrics.RecordAutoAssigned(len(assignments))
		}
	}

	s.logger.Info("auto-assignment pass complete",
		zap.String("exam_type_id", examTypeID),
		zap.Bool("dry_run", dryRun),
		zap.Int("free_slots", report.TotalFreeSlots),
		zap.Int("assigned", report.AssignedCount),
		zap.Int("reallocated", len(report.Reallocations)),
		zap.Int("failures", len(report.Failures)))
	return report, nil
}

func (s *AutoAssignService) commit(ctx context.Context, assignments []slotAssignment, moves []reallocationMove) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	for _, a := range assignments {
		if err := s.slots.AssignSlot(ctx, tx, a.SlotID, a.FacultyID); err != nil {
			_ = tx.Rollback()
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "slot state changed during assignment; re-run the pass")
		}
	}
	for _, m := range moves {
		if err := s.slots.Reassign(ctx, tx, m.SlotID, m.FromID, m.ToID); err != nil {
			_ = tx.Rollback()
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "slot state changed during reallocation; re-run the pass")
		}
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit assignment transaction")
	}
	return nil
}

func (s *AutoAssignService) loadSnapshot(ctx context.Context, examTypeID string) (*allocationSnapshot, error) {
	roster, err := s.roster.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	slots, err := s.slots.ListByExamType(ctx, examTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
	}
	requirements, err := s.rules.ListByExamType(ctx, examTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cadre requirements")
	}
	exceptions, err := s.rules.ListExceptionsByExamType(ctx, examTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load duty exceptions")
	}
	return newAllocationSnapshot(roster, slots, requirements, exceptions, s.cfg), nil
}

// --- In-memory allocation state ---

type slotAssignment struct {
	SlotID    string
	FacultyID string
}

type reallocationMove struct {
	SlotID string
	FromID string
	ToID   string
}

type busyInterval struct {
	date  string
	start int
	end   int
}

type facultyState struct {
	faculty     models.Faculty
	before      int
	current     int
	assigned    int
	reallocated int
	min         int
	max         int
	target      int
	busy        []busyInterval
	heldSlots   []models.SlotWithSession
}

func (f *facultyState) deficit() int {
	if d := f.min - f.current; d > 0 {
		return d
	}
	return 0
}

func (f *facultyState) atMax() bool {
	return f.max > 0 && f.current >= f.max
}

func (f *facultyState) conflictsWith(slot models.SlotWithSession) bool {
	start, err := models.MinuteOfDay(slot.StartTime)
	if err != nil {
		return false
	}
	end, err := models.MinuteOfDay(slot.EndTime)
	if err != nil {
		return false
	}
	date := slot.SessionDate.Format("2006-01-02")
	for _, b := range f.busy {
		if b.date == date && models.Overlaps(start, end, b.start, b.end) {
			return true
		}
	}
	return false
}

func (f *facultyState) occupy(slot models.SlotWithSession) {
	start, err1 := models.MinuteOfDay(slot.StartTime)
	end, err2 := models.MinuteOfDay(slot.EndTime)
	if err1 != nil || err2 != nil {
		return
	}
	f.busy = append(f.busy, busyInterval{date: slot.SessionDate.Format("2006-01-02"), start: start, end: end})
}

func (f *facultyState) vacate(slot models.SlotWithSession) {
	start, err1 := models.MinuteOfDay(slot.StartTime)
	end, err2 := models.MinuteOfDay(slot.EndTime)
	if err1 != nil || err2 != nil {
		return
	}
	date := slot.SessionDate.Format("2006-01-02")
	for i, b := range f.busy {
		if b.date == date && b.start == start && b.end == end {
			f.busy = append(f.busy[:i], f.busy[i+1:]...)
			return
		}
	}
}

type cadreInfo struct {
	cadre        models.Cadre
	weight       float64
	minDuties    int
	target       int
	facultyCount int
}

type allocationSnapshot struct {
	faculty   []*facultyState
	byID      map[string]*facultyState
	freeSlots []models.SlotWithSession
	cadres    []cadreInfo
}

func newAllocationSnapshot(
	roster []models.Faculty,
	slots []models.SlotWithSession,
	requirements []models.CadreRequirement,
	exceptions []models.FacultyDutyException,
	cfg AutoAssignConfig,
) *allocationSnapshot {
	minByCadre := make(map[models.Cadre]int, len(requirements))
	for _, req := range requirements {
		minByCadre[req.Cadre] = req.MinDuties
	}
	exceptionByFaculty := make(map[string]models.FacultyDutyException, len(exceptions))
	for _, exc := range exceptions {
		exceptionByFaculty[exc.FacultyID] = exc
	}

	snap := &allocationSnapshot{byID: make(map[string]*facultyState, len(roster))}
	countByCadre := make(map[models.Cadre]int)
	for _, member := range roster {
		state := &facultyState{
			faculty: member,
			min:     minByCadre[member.Cadre],
			max:     cfg.DefaultMaxDuties,
		}
		if exc, ok := exceptionByFaculty[member.ID]; ok {
			if exc.MinDuties != nil {
				state.min = *exc.MinDuties
			}
			if exc.MaxDuties != nil {
				state.max = *exc.MaxDuties
			}
		}
		snap.faculty = append(snap.faculty, state)
		snap.byID[member.ID] = state
		countByCadre[member.Cadre]++
	}

	for _, slot := range slots {
		if slot.Status == models.SlotFree {
			snap.freeSlots = append(snap.freeSlots, slot)
			continue
		}
		if slot.FacultyID == nil {
			continue
		}
		if state, ok := snap.byID[*slot.FacultyID]; ok {
			state.before++
			state.current++
			state.heldSlots = append(state.heldSlots, slot)
			state.occupy(slot)
		}
	}

	// Cadre weights: explicit config first, requirement minimum next, 1 last.
	var sumWeights float64
	for _, cadre := range models.Cadres {
		if countByCadre[cadre] == 0 {
			continue
		}
		weight := cfg.CadreWeights[string(cadre)]
		if weight <= 0 {
			weight = float64(minByCadre[cadre])
		}
		if weight <= 0 {
			weight = 1
		}
		snap.cadres = append(snap.cadres, cadreInfo{
			cadre:        cadre,
			weight:       weight,
			minDuties:    minByCadre[cadre],
			facultyCount: countByCadre[cadre],
		})
		sumWeights += weight
	}
	totalFree := len(snap.freeSlots)
	for i := range snap.cadres {
		info := &snap.cadres[i]
		if sumWeights > 0 {
			info.target = int(math.Round(float64(totalFree) * info.weight / sumWeights))
		}
		perFaculty := 0
		if info.facultyCount > 0 {
			perFaculty = int(math.Round(float64(info.target) / float64(info.facultyCount)))
		}
		for _, state := range snap.faculty {
			if state.faculty.Cadre == info.cadre {
				state.target = perFaculty
			}
		}
	}
	return snap
}

// assignmentPass walks the free slots in calendar order and gives each one
// to the eligible faculty member with the largest deficit below the
// effective minimum. Ties break on fewest current duties, then faculty id.
func (s *allocationSnapshot) assignmentPass(report *models.AssignmentReport) []slotAssignment {
	var assignments []slotAssignment
	for _, slot := range s.freeSlots {
		candidate := s.pickCandidate(slot)
		if candidate == nil {
			report.Failures = append(report.Failures, models.AssignmentFailure{
				SlotID:      slot.SlotID,
				SessionID:   slot.SessionID,
				CourseCode:  slot.CourseCode,
				SessionDate: slot.SessionDate,
				Reason:      s.failureReason(slot),
			})
			continue
		}
		candidate.current++
		candidate.assigned++
		assigned := slot
		assigned.Status = models.SlotAssigned
		assigned.FacultyID = &candidate.faculty.ID
		candidate.heldSlots = append(candidate.heldSlots, assigned)
		candidate.occupy(slot)
		assignments = append(assignments, slotAssignment{SlotID: slot.SlotID, FacultyID: candidate.faculty.ID})
	}
	return assignments
}

func (s *allocationSnapshot) pickCandidate(slot models.SlotWithSession) *facultyState {
	var best *facultyState
	for _, state := range s.faculty {
		if state.deficit() == 0 || state.atMax() || state.conflictsWith(slot) {
			continue
		}
		if best == nil {
			best = state
			continue
		}
		switch {
		case state.deficit() > best.deficit():
			best = state
		case state.deficit() == best.deficit() && state.current < best.current:
			best = state
		case state.deficit() == best.deficit() && state.current == best.current && state.faculty.ID < best.faculty.ID:
			best = state
		}
	}
	return best
}

func (s *allocationSnapshot) failureReason(slot models.SlotWithSession) string {
	anyBelow := false
	for _, state := range s.faculty {
		if state.deficit() > 0 && !state.atMax() {
			anyBelow = true
			break
		}
	}
	if !anyBelow {
		return "no faculty below effective minimum"
	}
	return fmt.Sprintf("no eligible faculty without conflict at %s %s-%s", slot.SessionDate.Format("2006-01-02"), slot.StartTime, slot.EndTime)
}

// reallocationPass moves duties from over-target faculty to those still
// under their effective minimum, recording each move in the report.
func (s *allocationSnapshot) reallocationPass(report *models.AssignmentReport, limit int) []reallocationMove {
	var moves []reallocationMove
	for _, recipient := range s.faculty {
		for recipient.deficit() > 0 && len(moves) < limit {
			move, slot, donor := s.findDonorSlot(recipient)
			if move == nil {
				break
			}
			moves = append(moves, *move)
			report.Reallocations = append(report.Reallocations, models.Reallocation{
				SlotID:      slot.SlotID,
				FromEmail:   donor.faculty.Email,
				ToEmail:     recipient.faculty.Email,
				CourseCode:  slot.CourseCode,
				SessionDate: slot.SessionDate,
			})
		}
		if len(moves) >= limit {
			break
		}
	}
	return moves
}

func (s *allocationSnapshot) findDonorSlot(recipient *facultyState) (*reallocationMove, models.SlotWithSession, *facultyState) {
	for _, donor := range s.faculty {
		if donor == recipient || donor.current <= donor.target || donor.current <= donor.min {
			continue
		}
		for i, slot := range donor.heldSlots {
			if recipient.atMax() || recipient.conflictsWith(slot) {
				continue
			}
			donor.heldSlots = append(donor.heldSlots[:i], donor.heldSlots[i+1:]...)
			donor.vacate(slot)
			donor.current--
			donor.reallocated--

			moved := slot
			moved.FacultyID = &recipient.faculty.ID
			recipient.heldSlots = append(recipient.heldSlots, moved)
			recipient.occupy(slot)
			recipient.current++
			recipient.reallocated++

			return &reallocationMove{SlotID: slot.SlotID, FromID: donor.faculty.ID, ToID: recipient.faculty.ID}, slot, donor
		}
	}
	return nil, models.SlotWithSession{}, nil
}

func (s *allocationSnapshot) cadreTable() []models.CadreAllocation {
	table := make([]models.CadreAllocation, 0, len(s.cadres))
	for _, info := range s.cadres {
		table = append(table, models.CadreAllocation{
			Cadre:         info.cadre,
			Weight:        info.weight,
			TargetDuties:  info.target,
			MinPerFaculty: info.minDuties,
			FacultyCount:  info.facultyCount,
		})
	}
	return table
}

func (s *allocationSnapshot) facultyTable() []models.FacultyAllocation {
	table := make([]models.FacultyAllocation, 0, len(s.faculty))
	for _, state := range s.faculty {
		table = append(table, models.FacultyAllocation{
			FacultyID:    state.faculty.ID,
			Email:        state.faculty.Email,
			Initials:     state.faculty.Initials,
			Cadre:        state.faculty.Cadre,
			Before:       state.before,
			Assigned:     state.assigned,
			Reallocated:  state.reallocated,
			After:        state.current,
			EffectiveMin: state.min,
			MeetsMinimum: state.current >= state.min,
			MeetsTarget:  state.current >= state.target,
		})
	}
	sort.Slice(table, func(i, j int) bool { return table[i].FacultyID < table[j].FacultyID })
	return table
}
