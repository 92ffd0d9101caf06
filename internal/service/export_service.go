package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/drivehq/selection-api/internal/models"
	appErrors "github.com/drivehq/selection-api/pkg/errors"
	"github.com/drivehq/selection-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// exportHeaders is the wire contract of the report: column names and order
// are preserved from the legacy system ("List" is the stage column).
var exportHeaders = []string{
	"Name", "Unique Code", "Contact Number", "Gender", "College", "Branch",
	"Year", "Physical Marks", "GD Marks", "Interview Marks", "Total Marks",
	"Round", "List", "Notes", "Created At",
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered report.
type ExportResult struct {
	Payload     []byte
	Filename    string
	ContentType string
	Count       int
}

// ExportService flattens applicant records into tabular reports.
type ExportService struct {
	repo   applicantRepository
	sink   systemAuditSink
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(repo applicantRepository, sink systemAuditSink, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{repo: repo, sink: sink, csv: csv, pdf: pdf, logger: logger}
}

// Generate renders the report for the optionally stage-filtered record set,
// newest first. Read-only for applicants; one EXPORT system audit entry
// records the result count.
func (s *ExportService) Generate(ctx context.Context, stage, format string, principal Principal) (*ExportResult, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}

	applicants, err := s.repo.Search(ctx, models.ApplicantFilter{Stage: stage})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicants for export")
	}

	dataset := buildDataset(applicants)

	var payload []byte
	contentType := "text/csv"
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Applicants")
		contentType = "application/pdf"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	entityID := stage
	if entityID == "" {
		entityID = "ALL"
	}
	if s.sink != nil {
		s.sink.Record(models.SystemAuditLog{
			Action:      models.SystemAuditExport,
			Entity:      models.EntityApplicant,
			EntityID:    entityID,
			PerformedBy: principal.Name,
			IP:          principal.IP,
			Meta:        map[string]interface{}{"count": len(applicants)},
		})
	}

	return &ExportResult{
		Payload:     payload,
		Filename:    fmt.Sprintf("applicants_%s_%d.%s", sanitizeName(entityID), time.Now().Unix(), format),
		ContentType: contentType,
		Count:       len(applicants),
	}, nil
}

func buildDataset(applicants []models.Applicant) export.Dataset {
	rows := make([]map[string]string, 0, len(applicants))
	for _, a := range applicants {
		year := ""
		if a.Year != 0 {
			year = strconv.Itoa(a.Year)
		}
		rows = append(rows, map[string]string{
			"Name":            a.Name,
			"Unique Code":     a.UniqueCode,
			"Contact Number":  a.ContactNumber,
			"Gender":          a.Gender,
			"College":         a.College,
			"Branch":          a.Branch,
			"Year":            year,
			"Physical Marks":  strconv.Itoa(a.Scores.Physical),
			"GD Marks":        strconv.Itoa(a.Scores.GD),
			"Interview Marks": strconv.Itoa(a.Scores.Interview),
			"Total Marks":     strconv.Itoa(a.Scores.Total()),
			"Round":           strconv.Itoa(a.Round),
			"List":            a.Stage,
			"Notes":           a.Notes,
			"Created At":      a.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
