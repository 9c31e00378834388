package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/pkg/export"
	appErrors "github.com/noah-isme/das-api/pkg/errors"
)

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ExportFile is a rendered report ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders site record reports into downloadable documents.
type ExportService struct {
	renderers map[models.ReportFormat]datasetRenderer
	now       func() time.Time
}

// NewExportService constructs an ExportService with the CSV, PDF and XLSX
// renderers.
func NewExportService() *ExportService {
	return &ExportService{
		renderers: map[models.ReportFormat]datasetRenderer{
			models.ReportFormatCSV:  export.NewCSVExporter(),
			models.ReportFormatPDF:  export.NewPDFExporter(),
			models.ReportFormatXLSX: export.NewXLSXExporter(),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Supports reports whether format can be rendered.
func (s *ExportService) Supports(format models.ReportFormat) bool {
	_, ok := s.renderers[format]
	return ok
}

// Render builds the dataset of records and renders it in format.
func (s *ExportService) Render(collection models.Collection, format models.ReportFormat, records []models.SiteRecord) (*ExportFile, error) {
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format "+string(format))
	}
	data := buildSiteDataset(collection, records)
	body, err := renderer.Render(data)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to render report")
	}
	return &ExportFile{
		Filename:    s.buildFilename(collection, format),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func (s *ExportService) buildFilename(collection models.Collection, format models.ReportFormat) string {
	timestamp := s.now().Format("20060102_150405")
	return fmt.Sprintf("%s_report_%s.%s", sanitizeFilename(strings.ToLower(string(collection))), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

var siteReportHeaders = []string{
	"File ID", "Row Key", "Kind", "Site Code", "Division", "Owner", "First Owner",
	"Site Observations", "CCR Status", "Task Status", "Type of Issue", "Days Offline", "Remarks", "Updated At",
}

func buildSiteDataset(collection models.Collection, records []models.SiteRecord) export.Dataset {
	title := "Equipment offline sites"
	if collection == models.CollectionRTUTracker {
		title = "RTU tracker sites"
	}
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		days := ""
		if rec.DaysOffline != nil {
			days = strconv.Itoa(*rec.DaysOffline)
		}
		rows = append(rows, map[string]string{
			"File ID":           rec.FileID,
			"Row Key":           rec.RowKey,
			"Kind":              string(rec.Kind),
			"Site Code":         rec.SiteCode,
			"Division":          rec.Division,
			"Owner":             rec.OwnerUserID,
			"First Owner":       rec.FirstOwner(),
			"Site Observations": rec.SiteObservations,
			"CCR Status":        rec.CCRStatus,
			"Task Status":       rec.TaskStatus,
			"Type of Issue":     rec.TypeOfIssue,
			"Days Offline":      days,
			"Remarks":           rec.Remarks,
			"Updated At":        formatReportTime(rec.UpdatedAt),
		})
	}
	return export.Dataset{Title: title, Headers: siteReportHeaders, Rows: rows}
}

func formatReportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
