package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
	"github.com/noah-isme/study-companion-api/pkg/export"
)

var studyPlanColumns = []export.Column{
	{Header: "Date", Width: 2},
	{Header: "Start"},
	{Header: "End"},
	{Header: "Focus", Width: 1.5},
	{Header: "Topics", Width: 4},
	{Header: "Status", Width: 1.5},
}

type studyPlanSource interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

type studyPlanSessions interface {
	List(ctx context.Context, assignmentID string) ([]models.StudySession, error)
}

type tableRenderer interface {
	Render(t export.Table) ([]byte, error)
}

// ExportService renders an assignment's study plan as CSV or PDF.
type ExportService struct {
	assignments studyPlanSource
	sessions    studyPlanSessions
	csv         tableRenderer
	pdf         tableRenderer
	loc         *time.Location
	logger      *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the default exporters.
func NewExportService(assignments studyPlanSource, sessions studyPlanSessions, loc *time.Location, logger *zap.Logger, csv, pdf tableRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{assignments: assignments, sessions: sessions, csv: csv, pdf: pdf, loc: loc, logger: logger}
}

// StudyPlan renders the stored sessions of an assignment.
func (s *ExportService) StudyPlan(ctx context.Context, assignmentID string, format models.ExportFormat) (*models.ExportFile, error) {
	if format == "" {
		format = models.ExportFormatCSV
	}
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	sessions, err := s.sessions.List(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load assignment")
	}

	table := s.buildTable(assignment, sessions)
	var payload []byte
	switch format {
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(table)
	default:
		payload, err = s.csv.Render(table)
	}
	if err != nil {
		s.logger.Error("render study plan", zap.String("assignment_id", assignmentID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to render study plan")
	}

	return &models.ExportFile{
		Filename:    fmt.Sprintf("study_plan_%s.%s", sanitizeFilename(assignment.Title), format),
		ContentType: format.ContentType(),
		Data:        payload,
	}, nil
}

func (s *ExportService) buildTable(assignment *models.Assignment, sessions []models.StudySession) export.Table {
	rows := make([][]string, 0, len(sessions))
	for _, session := range sessions {
		start := session.ScheduledAt.In(s.loc)
		rows = append(rows, []string{
			start.Format("Mon 02 Jan 2006"),
			start.Format("15:04"),
			session.EndsAt().In(s.loc).Format("15:04"),
			string(session.Focus),
			strings.Join(session.Topics, ", "),
			string(session.Status),
		})
	}
	return export.Table{
		Title:    "Study plan: " + assignment.Title,
		Subtitle: fmt.Sprintf("%s due %s, %d sessions", assignment.Type, assignment.DueAt.In(s.loc).Format("Mon 02 Jan 2006 15:04"), len(sessions)),
		Columns:  studyPlanColumns,
		Rows:     rows,
	}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_", "\"", "")
	result := strings.ToLower(replacer.Replace(raw))
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
