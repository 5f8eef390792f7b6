package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-duty-api/internal/models"
	appErrors "github.com/noah-isme/exam-duty-api/pkg/errors"
	"github.com/noah-isme/exam-duty-api/pkg/export"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportSlotReader interface {
	ListByExamType(ctx context.Context, examTypeID string) ([]models.SlotWithSession, error)
}

// ExportService renders duty rosters and assignment reports as CSV or PDF.
type ExportService struct {
	examTypes dutyExamTypeReader
	slots     exportSlotReader
	roster    rosterLister
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(examTypes dutyExamTypeReader, slots exportSlotReader, roster rosterLister, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{examTypes: examTypes, slots: slots, roster: roster, csv: csv, pdf: pdf, logger: logger}
}

// DutyRoster renders the full slot table of an exam type: one row per slot
// with its session, course and current holder.
func (s *ExportService) DutyRoster(ctx context.Context, examTypeID string, format ExportFormat) ([]byte, string, error) {
	examType, err := s.examTypes.FindByID(ctx, examTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "exam type not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam type")
	}

	slots, err := s.slots.ListByExamType(ctx, examTypeID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
	}
	roster, err := s.roster.ListAll(ctx)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	byID := make(map[string]models.Faculty, len(roster))
	for _, member := range roster {
		byID[member.ID] = member
	}

	rows := make([]map[string]string, 0, len(slots))
	for _, slot := range slots {
		holder, initials := "", ""
		if slot.FacultyID != nil {
			if member, ok := byID[*slot.FacultyID]; ok {
				holder = member.FullName
				initials = member.Initials
			}
		}
		rows = append(rows, map[string]string{
			"Date":     slot.SessionDate.Format("2006-01-02"),
			"Time":     fmt.Sprintf("%s-%s", slot.StartTime, slot.EndTime),
			"Course":   fmt.Sprintf("%s %s", slot.CourseCode, slot.CourseName),
			"Room":     slot.Room,
			"Status":   string(slot.Status),
			"Faculty":  holder,
			"Initials": initials,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Time", "Course", "Room", "Status", "Faculty", "Initials"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Duty Roster %s", examType.TypeName)
	payload, err := s.render(dataset, title, format)
	if err != nil {
		return nil, "", err
	}
	return payload, s.filename("duty_roster", examType.TypeName, format), nil
}

// AssignmentReport renders an already-computed allocation report.
func (s *ExportService) AssignmentReport(report *models.AssignmentReport, format ExportFormat) ([]byte, string, error) {
	if report == nil {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "assignment report is required")
	}
	rows := make([]map[string]string, 0, len(report.Faculty))
	for _, row := range report.Faculty {
		rows = append(rows, map[string]string{
			"Faculty":       row.Email,
			"Cadre":         string(row.Cadre),
			"Before":        fmt.Sprintf("%d", row.Before),
			"Assigned":      fmt.Sprintf("%d", row.Assigned),
			"Reallocated":   fmt.Sprintf("%d", row.Reallocated),
			"After":         fmt.Sprintf("%d", row.After),
			"Effective Min": fmt.Sprintf("%d", row.EffectiveMin),
			"Meets Minimum": fmt.Sprintf("%t", row.MeetsMinimum),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Faculty", "Cadre", "Before", "Assigned", "Reallocated", "After", "Effective Min", "Meets Minimum"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Assignment Report %s", report.ExamTypeID)
	payload, err := s.render(dataset, title, format)
	if err != nil {
		return nil, "", err
	}
	return payload, s.filename("assignment_report", report.ExamTypeID, format), nil
}

func (s *ExportService) render(dataset export.Dataset, title string, format ExportFormat) ([]byte, error) {
	switch format {
	case FormatCSV:
		return s.csv.Render(dataset)
	case FormatPDF:
		return s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *ExportService) filename(kind, label string, format ExportFormat) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-")
	safe := strings.ToLower(replacer.Replace(label))
	if len(safe) > 64 {
		safe = safe[:64]
	}
	return fmt.Sprintf("%s_%s_%s.%s", kind, safe, time.Now().UTC().Format("20060102_150405"), format)
}
