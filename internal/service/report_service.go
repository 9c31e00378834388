package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/das-api/internal/dto"
	"github.com/noah-isme/das-api/internal/models"
	appErrors "github.com/noah-isme/das-api/pkg/errors"
)

// DefaultLocalRemoteHeaders are the row headers searched for the device
// status column.
var DefaultLocalRemoteHeaders = []string{"Local/Remote", "Local / Remote", "LocalRemote", "Device Status"}

// ReportService answers the read-side queries over site records.
type ReportService struct {
	sites     siteStore
	actions   actionStore
	approvals approvalStore
	cache     *CacheService
	exporter  *ExportService
	metrics   *MetricsService
	logger    *zap.Logger
	headers   []string
}

// NewReportService constructs a ReportService.
func NewReportService(sites siteStore, actions actionStore, approvals approvalStore, cache *CacheService, exporter *ExportService, metrics *MetricsService, logger *zap.Logger, localRemoteHeaders []string) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = NewExportService()
	}
	if len(localRemoteHeaders) == 0 {
		localRemoteHeaders = DefaultLocalRemoteHeaders
	}
	return &ReportService{
		sites:     sites,
		actions:   actions,
		approvals: approvals,
		cache:     cache,
		exporter:  exporter,
		metrics:   metrics,
		logger:    logger,
		headers:   localRemoteHeaders,
	}
}

// scope resolves whose records a report covers. An empty result means every
// record, which only Admin and CCR may request.
func scope(userID string, actor models.Actor) (string, error) {
	privileged := actor.HasRole(models.RoleAdmin, models.RoleCCR)
	switch {
	case userID == "" && privileged:
		return "", nil
	case userID == "" || userID == actor.UserID:
		return actor.UserID, nil
	case privileged:
		return userID, nil
	default:
		return "", appErrors.Clone(appErrors.ErrForbidden, "cannot query reports of another user")
	}
}

func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dates must be YYYY-MM-DD or RFC3339")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (s *ReportService) filter(collection models.Collection, query dto.ReportQuery, actor models.Actor) (models.SiteFilter, error) {
	if !collection.Valid() {
		return models.SiteFilter{}, appErrors.Clone(appErrors.ErrValidation, "unknown collection")
	}
	visibleTo, err := scope(query.UserID, actor)
	if err != nil {
		return models.SiteFilter{}, err
	}
	from, err := parseDate(query.From, false)
	if err != nil {
		return models.SiteFilter{}, err
	}
	to, err := parseDate(query.To, true)
	if err != nil {
		return models.SiteFilter{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return models.SiteFilter{}, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	page, size := models.NormalizePage(query.Page, query.PageSize)
	return models.SiteFilter{
		Collection:  collection,
		FileID:      query.FileID,
		VisibleTo:   visibleTo,
		SiteCode:    query.SiteCode,
		Division:    query.Division,
		Observation: query.Status,
		CCRStatus:   query.CCRStatus,
		TaskStatus:  query.TaskStatus,
		From:        from,
		To:          to,
		Page:        page,
		PageSize:    size,
	}, nil
}

// Reports returns one page of visible records. The boolean reports a cache hit.
func (s *ReportService) Reports(ctx context.Context, collection models.Collection, query dto.ReportQuery, actor models.Actor) (*dto.ReportListResponse, bool, error) {
	filter, err := s.filter(collection, query, actor)
	if err != nil {
		return nil, false, err
	}
	var out dto.ReportListResponse
	hit, err := s.cache.Remember(ctx, reportCacheKey(collection, "list", actor.UserID, filter), &out, func(ctx context.Context) (interface{}, error) {
		type page struct {
			records []models.SiteRecord
			total   int
		}
		res, err := readRetry(ctx, s.metrics, "report_list", func(ctx context.Context) (page, error) {
			records, total, err := s.sites.List(ctx, filter)
			return page{records: records, total: total}, err
		})
		if err != nil {
			return nil, err
		}
		if res.records == nil {
			res.records = []models.SiteRecord{}
		}
		return dto.ReportListResponse{
			Records:    res.records,
			Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: res.total},
		}, nil
	})
	if err != nil {
		return nil, false, readFailure(s.logger, "site report", err)
	}
	return &out, hit, nil
}

func (s *ReportService) listAll(ctx context.Context, label string, filter models.SiteFilter) ([]models.SiteRecord, error) {
	records, err := readRetry(ctx, s.metrics, label, func(ctx context.Context) ([]models.SiteRecord, error) {
		return s.sites.ListAll(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.SiteRecord{}
	}
	return records, nil
}

// classifyDevice buckets a raw Local/Remote cell.
func classifyDevice(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(value, "local"):
		return models.DeviceLocal
	case strings.HasPrefix(value, "remote"):
		return models.DeviceRemote
	default:
		return models.DeviceUnknown
	}
}

// LocalRemote cross-references the device status column of every visible
// record.
func (s *ReportService) LocalRemote(ctx context.Context, collection models.Collection, query dto.ReportQuery, actor models.Actor) (*models.LocalRemoteReport, bool, error) {
	filter, err := s.filter(collection, query, actor)
	if err != nil {
		return nil, false, err
	}
	var out models.LocalRemoteReport
	hit, err := s.cache.Remember(ctx, reportCacheKey(collection, "local-remote", actor.UserID, filter), &out, func(ctx context.Context) (interface{}, error) {
		records, err := s.listAll(ctx, "report_local_remote", filter)
		if err != nil {
			return nil, err
		}
		report := models.LocalRemoteReport{Rows: make([]models.LocalRemoteRow, 0, len(records))}
		for _, rec := range records {
			raw := ""
			if v, ok := rec.OriginalRowData.Lookup(s.headers...); ok && !v.IsNull() {
				raw = v.String()
			}
			status := classifyDevice(raw)
			switch status {
			case models.DeviceLocal:
				report.Totals.Local++
			case models.DeviceRemote:
				report.Totals.Remote++
			default:
				report.Totals.Unknown++
			}
			report.Rows = append(report.Rows, models.LocalRemoteRow{
				SiteRecordID:     rec.ID,
				FileID:           rec.FileID,
				RowKey:           rec.RowKey,
				SiteCode:         rec.SiteCode,
				Division:         rec.Division,
				Kind:             rec.Kind,
				DeviceStatus:     status,
				RawDeviceStatus:  raw,
				SiteObservations: rec.SiteObservations,
				CCRStatus:        rec.CCRStatus,
			})
		}
		return report, nil
	})
	if err != nil {
		return nil, false, readFailure(s.logger, "local-remote report", err)
	}
	return &out, hit, nil
}

// Details groups every visible record of a site code with its actions and
// approvals.
func (s *ReportService) Details(ctx context.Context, collection models.Collection, siteCode string, actor models.Actor) (*models.SiteDetails, error) {
	siteCode = models.NormalizeSiteCode(siteCode)
	if siteCode == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "siteCode is required")
	}
	filter, err := s.filter(collection, dto.ReportQuery{SiteCode: siteCode}, actor)
	if err != nil {
		return nil, err
	}
	records, err := s.listAll(ctx, "report_details", filter)
	if err != nil {
		return nil, readFailure(s.logger, "site details", err)
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no records for site code "+siteCode)
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	actions, err := readRetry(ctx, s.metrics, "report_details_actions", func(ctx context.Context) ([]models.Action, error) {
		return s.actions.ListBySiteRecords(ctx, ids)
	})
	if err != nil {
		return nil, readFailure(s.logger, "site details actions", err)
	}
	approvals, err := readRetry(ctx, s.metrics, "report_details_approvals", func(ctx context.Context) ([]models.Approval, error) {
		return s.approvals.ListBySiteRecords(ctx, ids)
	})
	if err != nil {
		return nil, readFailure(s.logger, "site details approvals", err)
	}
	if actions == nil {
		actions = []models.Action{}
	}
	if approvals == nil {
		approvals = []models.Approval{}
	}
	return &models.SiteDetails{SiteCode: siteCode, Records: records, Actions: actions, Approvals: approvals}, nil
}

// Filters lists the distinct filter values among visible records.
func (s *ReportService) Filters(ctx context.Context, collection models.Collection, actor models.Actor) (*models.ReportFilterOptions, bool, error) {
	filter, err := s.filter(collection, dto.ReportQuery{}, actor)
	if err != nil {
		return nil, false, err
	}
	var out models.ReportFilterOptions
	hit, err := s.cache.Remember(ctx, reportCacheKey(collection, "filters", actor.UserID, filter.VisibleTo), &out, func(ctx context.Context) (interface{}, error) {
		return readRetry(ctx, s.metrics, "report_filters", func(ctx context.Context) (*models.ReportFilterOptions, error) {
			return s.sites.FilterOptions(ctx, collection, filter.VisibleTo)
		})
	})
	if err != nil {
		return nil, false, readFailure(s.logger, "report filters", err)
	}
	return &out, hit, nil
}

// Export renders every record matching query in the requested format.
func (s *ReportService) Export(ctx context.Context, collection models.Collection, query dto.ReportQuery, actor models.Actor) (*ExportFile, error) {
	if !s.exporter.Supports(query.Format) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv, pdf or xlsx")
	}
	filter, err := s.filter(collection, query, actor)
	if err != nil {
		return nil, err
	}
	records, err := s.listAll(ctx, "report_export", filter)
	if err != nil {
		return nil, readFailure(s.logger, "export report", err)
	}
	return s.exporter.Render(collection, query.Format, records)
}
