package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/das-api/internal/dto"
	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/internal/service"
	appErrors "github.com/noah-isme/das-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type siteServiceMock struct {
	created    bool
	collection models.Collection
	err        error
}

func (m *siteServiceMock) Upsert(ctx context.Context, collection models.Collection, req dto.SiteRecordRequest, actor models.Actor) (*models.SiteRecord, bool, error) {
	m.collection = collection
	if m.err != nil {
		return nil, false, m.err
	}
	return &models.SiteRecord{ID: "s1", FileID: req.FileID, RowKey: req.RowKey, OwnerUserID: actor.UserID}, m.created, nil
}

func (m *siteServiceMock) BulkUpsert(ctx context.Context, collection models.Collection, req dto.BulkSiteRecordRequest, actor models.Actor) (*dto.BulkSiteRecordResponse, error) {
	return &dto.BulkSiteRecordResponse{Created: len(req.Records)}, m.err
}

func (m *siteServiceMock) ListByFile(ctx context.Context, collection models.Collection, fileID string, actor models.Actor) ([]models.SiteRecord, error) {
	return []models.SiteRecord{{ID: "s1", FileID: fileID}}, m.err
}

func (m *siteServiceMock) UpdateDaysOffline(ctx context.Context, collection models.Collection, req dto.UpdateDaysOfflineRequest) (*dto.UpdateDaysOfflineResponse, error) {
	return &dto.UpdateDaysOfflineResponse{Updated: int64(len(req.Updates))}, m.err
}

func (m *siteServiceMock) Delete(ctx context.Context, collection models.Collection, fileID, rowKey string, actor models.Actor) error {
	return m.err
}

type reportServiceMock struct {
	hit   bool
	query dto.ReportQuery
}

func (m *reportServiceMock) Reports(ctx context.Context, collection models.Collection, query dto.ReportQuery, actor models.Actor) (*dto.ReportListResponse, bool, error) {
	m.query = query
	return &dto.ReportListResponse{
		Records:    []models.SiteRecord{{ID: "s1"}},
		Pagination: models.Pagination{Page: 1, PageSize: 20, TotalCount: 1},
	}, m.hit, nil
}

func (m *reportServiceMock) LocalRemote(ctx context.Context, collection models.Collection, query dto.ReportQuery, actor models.Actor) (*models.LocalRemoteReport, bool, error) {
	return &models.LocalRemoteReport{Totals: models.LocalRemoteTotals{Local: 1}}, m.hit, nil
}

func (m *reportServiceMock) Details(ctx context.Context, collection models.Collection, siteCode string, actor models.Actor) (*models.SiteDetails, error) {
	if siteCode == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "siteCode is required")
	}
	return &models.SiteDetails{SiteCode: siteCode}, nil
}

func (m *reportServiceMock) Filters(ctx context.Context, collection models.Collection, actor models.Actor) (*models.ReportFilterOptions, bool, error) {
	return &models.ReportFilterOptions{}, m.hit, nil
}

func (m *reportServiceMock) Export(ctx context.Context, collection models.Collection, query dto.ReportQuery, actor models.Actor) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "equipment_offline_report.csv", ContentType: "text/csv; charset=utf-8", Body: []byte("File ID\n")}, nil
}

type actionServiceMock struct {
	submitErr error
	actor     models.Actor
}

func (m *actionServiceMock) Submit(ctx context.Context, req dto.SubmitActionRequest, actor models.Actor) (*dto.SubmitActionResponse, error) {
	m.actor = actor
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &dto.SubmitActionResponse{Action: &models.Action{ID: "a1", Routing: req.Routing}}, nil
}

func (m *actionServiceMock) UpdateStatus(ctx context.Context, id string, req dto.UpdateActionStatusRequest, actor models.Actor) (*models.Action, error) {
	return &models.Action{ID: id, Status: req.Status}, nil
}

func (m *actionServiceMock) Reroute(ctx context.Context, id string, req dto.RerouteActionRequest, actor models.Actor) (*dto.RerouteActionResponse, error) {
	return &dto.RerouteActionResponse{}, nil
}

func (m *actionServiceMock) Delete(ctx context.Context, id string, actor models.Actor) error {
	return nil
}

func (m *actionServiceMock) ListMine(ctx context.Context, query dto.ActionListQuery, actor models.Actor) ([]models.Action, *models.Pagination, error) {
	return []models.Action{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *actionServiceMock) ListRoutedByMe(ctx context.Context, query dto.ActionListQuery, actor models.Actor) ([]models.Action, *models.Pagination, error) {
	return []models.Action{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *actionServiceMock) ListAll(ctx context.Context, query dto.ActionListQuery, actor models.Actor) ([]models.Action, *models.Pagination, error) {
	return []models.Action{{ID: "a1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

type approvalServiceMock struct {
	created dto.CreateApprovalRequest
	listed  dto.ApprovalListQuery
	stored  map[string]models.ApprovalType
	decided []string
}

func (m *approvalServiceMock) Create(ctx context.Context, req dto.CreateApprovalRequest, actor models.Actor) (*models.Approval, error) {
	m.created = req
	return &models.Approval{ID: "ap1", ApprovalType: req.ApprovalType}, nil
}

func (m *approvalServiceMock) UpdateStatus(ctx context.Context, id string, req dto.UpdateApprovalStatusRequest, actor models.Actor) (*models.Approval, error) {
	m.decided = append(m.decided, id)
	return &models.Approval{ID: id, Status: req.Status}, nil
}

func (m *approvalServiceMock) Reset(ctx context.Context, req dto.ResetApprovalsRequest, actor models.Actor) (*models.ApprovalResetResult, error) {
	return &models.ApprovalResetResult{ApprovalsDeleted: 2}, nil
}

func (m *approvalServiceMock) Check(ctx context.Context, req dto.CheckApprovalRequest, actor models.Actor) (*dto.CheckApprovalResponse, error) {
	return &dto.CheckApprovalResponse{Exists: false}, nil
}

func (m *approvalServiceMock) Get(ctx context.Context, id string, actor models.Actor) (*models.Approval, error) {
	if kind, ok := m.stored[id]; ok {
		return &models.Approval{ID: id, ApprovalType: kind}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
}

func (m *approvalServiceMock) List(ctx context.Context, query dto.ApprovalListQuery, actor models.Actor) ([]models.Approval, *models.Pagination, error) {
	m.listed = query
	return []models.Approval{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *approvalServiceMock) Stats(ctx context.Context, actor models.Actor) (*models.ApprovalStats, error) {
	return &models.ApprovalStats{Total: 3}, nil
}

type healthStub bool

func (h healthStub) Healthy() bool { return bool(h) }

type testServer struct {
	engine    *gin.Engine
	sites     *siteServiceMock
	reports   *reportServiceMock
	actions   *actionServiceMock
	approvals *approvalServiceMock
}

func newTestServer(healthy bool) *testServer {
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		sites:     &siteServiceMock{},
		reports:   &reportServiceMock{},
		actions:   &actionServiceMock{},
		approvals: &approvalServiceMock{},
	}
	ts.engine = NewRouter(RouterDeps{
		Auth: tokenStub{
			"amc":   {UserID: "je1", Role: models.RoleAMC, Division: "North"},
			"admin": {UserID: "root", Role: models.RoleAdmin},
		},
		Sites:     ts.sites,
		Reports:   ts.reports,
		Actions:   ts.actions,
		Approvals: ts.approvals,
		Metrics:   service.NewMetricsService(),
		DB:        healthStub(healthy),
	})
	return ts
}

func (ts *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAPIRequiresBearerToken(t *testing.T) {
	ts := newTestServer(true)

	w := ts.do(http.MethodGet, "/api/actions/my-actions", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
	assert.NotContains(t, body, "data")

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/actions/my-actions", "forged", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/actions/my-actions", "amc", nil).Code)
}

func TestSubmitRoute(t *testing.T) {
	ts := newTestServer(true)

	w := ts.do(http.MethodPost, "/api/actions/submit", "amc", map[string]interface{}{"fileId": "fileX", "rowKey": "row7", "routing": "Equipment Team"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "je1", ts.actions.actor.UserID)
	assert.Equal(t, "North", ts.actions.actor.Division)

	ts.actions.submitErr = appErrors.Clone(appErrors.ErrConflict, "could not allocate a routed record key, please retry")
	w = ts.do(http.MethodPost, "/api/actions/submit", "amc", map[string]interface{}{"fileId": "fileX"})
	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, "CONFLICT", body["code"])
	assert.Equal(t, "could not allocate a routed record key, please retry", body["error"])

	ts.actions.submitErr = appErrors.WrapAs(appErrors.ErrTransaction, assert.AnError, "")
	w = ts.do(http.MethodPost, "/api/actions/submit", "amc", map[string]interface{}{"fileId": "fileX"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "action could not be completed, please retry", decodeEnvelope(t, w)["error"])
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())

	w = ts.do(http.MethodPost, "/api/actions/submit", "amc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminOnlyRoutes(t *testing.T) {
	ts := newTestServer(true)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/approvals/reset", "amc", nil).Code)
	w := ts.do(http.MethodPost, "/api/approvals/reset", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"approvalsDeleted":2`)

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/approvals/check", "amc", dto.CheckApprovalRequest{}).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodGet, "/api/actions", "amc", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/actions", "admin", nil).Code)
}

func TestRTUTrackerApprovalAliasForcesType(t *testing.T) {
	ts := newTestServer(true)

	w := ts.do(http.MethodPost, "/api/rtu-tracker-approvals", "amc", map[string]interface{}{"rtuTrackerSiteId": "s9", "approvalType": "CCR Resolution Approval"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.ApprovalTypeRTU, ts.approvals.created.ApprovalType)

	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/rtu-tracker-approvals?status=Pending", "amc", nil).Code)
	assert.Equal(t, models.ApprovalTypeRTU, ts.approvals.listed.ApprovalType)
	assert.Equal(t, models.ApprovalStatusPending, ts.approvals.listed.Status)

	w = ts.do(http.MethodGet, "/api/approvals/unknown", "amc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRTUTrackerApprovalAliasDecidesOnlyRTUApprovals(t *testing.T) {
	ts := newTestServer(true)
	ts.approvals.stored = map[string]models.ApprovalType{
		"ccr-1": models.ApprovalTypeCCR,
		"rtu-1": models.ApprovalTypeRTU,
	}
	decision := dto.UpdateApprovalStatusRequest{Status: models.ApprovalStatusApproved}

	w := ts.do(http.MethodPut, "/api/rtu-tracker-approvals/ccr-1/status", "amc", decision)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, ts.approvals.decided)

	w = ts.do(http.MethodPut, "/api/rtu-tracker-approvals/missing/status", "amc", decision)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, ts.approvals.decided)

	w = ts.do(http.MethodPut, "/api/rtu-tracker-approvals/rtu-1/status", "amc", decision)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"rtu-1"}, ts.approvals.decided)

	w = ts.do(http.MethodPut, "/api/approvals/ccr-1/status", "amc", decision)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"rtu-1", "ccr-1"}, ts.approvals.decided)
}

func TestSiteRoutesPerCollection(t *testing.T) {
	ts := newTestServer(true)

	ts.sites.created = true
	w := ts.do(http.MethodPost, "/api/rtu-tracker-sites", "amc", dto.SiteRecordRequest{FileID: "f", RowKey: "r"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.CollectionRTUTracker, ts.sites.collection)

	ts.sites.created = false
	w = ts.do(http.MethodPost, "/api/equipment-offline-sites", "amc", dto.SiteRecordRequest{FileID: "f", RowKey: "r"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CollectionEquipmentOffline, ts.sites.collection)

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/equipment-offline-sites/file/f", "amc", nil).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/equipment-offline-sites/f/r", "amc", nil).Code)

	ts.sites.err = appErrors.Clone(appErrors.ErrForbidden, "only the owner or an admin can delete this record")
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodDelete, "/api/equipment-offline-sites/f/r", "amc", nil).Code)
}

func TestReportRoutes(t *testing.T) {
	ts := newTestServer(true)
	ts.reports.hit = true

	w := ts.do(http.MethodGet, "/api/equipment-offline-sites/reports?siteCode=3W1575&page=2", "amc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "3W1575", ts.reports.query.SiteCode)
	assert.Equal(t, 2, ts.reports.query.Page)
	body := decodeEnvelope(t, w)
	assert.Equal(t, true, body["meta"].(map[string]interface{})["cache_hit"])
	assert.EqualValues(t, 1, body["pagination"].(map[string]interface{})["total_count"])

	w = ts.do(http.MethodGet, "/api/equipment-offline-sites/reports?format=csv", "amc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "equipment_offline_report.csv")

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/equipment-offline-sites/reports/local-remote", "amc", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/equipment-offline-sites/reports/filters", "amc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/equipment-offline-sites/reports/details", "amc", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/equipment-offline-sites/reports/details?siteCode=3W1575", "amc", nil).Code)
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(false)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodGet, "/ready", "", nil).Code)

	ready := newTestServer(true)
	assert.Equal(t, http.StatusOK, ready.do(http.MethodGet, "/ready", "", nil).Code)
	w := ready.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "das_datastore_healthy 1")
}
