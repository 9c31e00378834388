package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/das-api/internal/models"
	"github.com/noah-isme/das-api/internal/repository"
)

// memDB is an in-memory datastore shared by the fake repositories. The fake
// transaction runner serializes units of work and restores the previous
// state when one fails, which is what the Postgres transaction guarantees.
type memDB struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	seq       int
	sites     map[string]models.SiteRecord
	actions   map[string]models.Action
	approvals map[string]models.Approval
	users     map[string]models.DirectoryUser
	audits    []models.AuditLog
	fail      map[string]error
	commits   int
	rollbacks int
}

func newMemDB() *memDB {
	return &memDB{
		sites:     map[string]models.SiteRecord{},
		actions:   map[string]models.Action{},
		approvals: map[string]models.Approval{},
		users:     map[string]models.DirectoryUser{},
		fail:      map[string]error{},
	}
}

func (db *memDB) addUser(id string, role models.UserRole, division string) {
	db.users[id] = models.DirectoryUser{ID: id, Role: role, Division: division, Active: true}
}

func (db *memDB) failOn(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.fail[op] = err
}

// injected must be called with mu held.
func (db *memDB) injected(op string) error {
	return db.fail[op]
}

func (db *memDB) next() time.Time {
	db.seq++
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(db.seq) * time.Second)
}

type memSnapshot struct {
	sites     map[string]models.SiteRecord
	actions   map[string]models.Action
	approvals map[string]models.Approval
	audits    []models.AuditLog
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := memSnapshot{
		sites:     make(map[string]models.SiteRecord, len(db.sites)),
		actions:   make(map[string]models.Action, len(db.actions)),
		approvals: make(map[string]models.Approval, len(db.approvals)),
		audits:    append([]models.AuditLog(nil), db.audits...),
	}
	for k, v := range db.sites {
		s.sites[k] = v
	}
	for k, v := range db.actions {
		s.actions[k] = v
	}
	for k, v := range db.approvals {
		s.approvals[k] = v
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.sites, db.actions, db.approvals, db.audits = s.sites, s.actions, s.approvals, s.audits
}

type memTx struct{ db *memDB }

func (t memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()
	snap := t.db.snapshot()
	if err := fn(ctx); err != nil {
		t.db.restore(snap)
		t.db.mu.Lock()
		t.db.rollbacks++
		t.db.mu.Unlock()
		return err
	}
	t.db.mu.Lock()
	t.db.commits++
	t.db.mu.Unlock()
	return nil
}

type memSites struct{ db *memDB }

func (r memSites) GetByID(ctx context.Context, id string) (*models.SiteRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.injected("sites.GetByID"); err != nil {
		return nil, err
	}
	rec, ok := r.db.sites[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &rec, nil
}

func (r memSites) find(collection models.Collection, fileID, rowKey string) (*models.SiteRecord, error) {
	for _, rec := range r.db.sites {
		if rec.Collection == collection && rec.FileID == fileID && rec.RowKey == rowKey {
			out := rec
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memSites) FindByKey(ctx context.Context, collection models.Collection, fileID, rowKey string) (*models.SiteRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.find(collection, fileID, rowKey)
}

func (r memSites) FindByKeyForUpdate(ctx context.Context, collection models.Collection, fileID, rowKey string) (*models.SiteRecord, error) {
	return r.FindByKey(ctx, collection, fileID, rowKey)
}

func (r memSites) Insert(ctx context.Context, rec *models.SiteRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.injected("sites.Insert"); err != nil {
		return err
	}
	if _, err := r.find(rec.Collection, rec.FileID, rec.RowKey); err == nil {
		return repository.ErrDuplicateKey
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Kind == "" {
		rec.Kind = models.KindOriginal
	}
	rec.SiteCode = models.NormalizeSiteCode(rec.SiteCode)
	now := r.db.next()
	rec.CreatedAt, rec.UpdatedAt = now, now
	r.db.sites[rec.ID] = *rec
	return nil
}

func (r memSites) ForkForRouting(ctx context.Context, source *models.SiteRecord, newOwner, suffix string) (*models.SiteRecord, error) {
	fork := source.Fork(newOwner, suffix)
	if err := r.Insert(ctx, &fork); err != nil {
		return nil, err
	}
	return &fork, nil
}

func (r memSites) ApplyPatch(ctx context.Context, id string, patch models.SitePatch) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rec, ok := r.db.sites[id]
	if !ok {
		return sql.ErrNoRows
	}
	if patch.SiteCode != nil {
		rec.SiteCode = models.NormalizeSiteCode(*patch.SiteCode)
	}
	if patch.Division != nil {
		rec.Division = *patch.Division
	}
	if patch.OriginalRowData != nil {
		rec.OriginalRowData = patch.OriginalRowData
	}
	if patch.SiteObservations != nil {
		rec.SiteObservations = *patch.SiteObservations
	}
	if patch.CCRStatus != nil {
		rec.CCRStatus = *patch.CCRStatus
	}
	if patch.TaskStatus != nil {
		rec.TaskStatus = *patch.TaskStatus
	}
	if patch.TypeOfIssue != nil {
		rec.TypeOfIssue = *patch.TypeOfIssue
	}
	if patch.Photos != nil {
		rec.Photos = patch.Photos
	}
	if patch.Remarks != nil {
		rec.Remarks = *patch.Remarks
	}
	if patch.DaysOffline != nil {
		rec.DaysOffline = patch.DaysOffline
	}
	rec.UpdatedAt = r.db.next()
	r.db.sites[id] = rec
	return nil
}

func (r memSites) UpdateStatusFieldsByID(ctx context.Context, id string, patch models.StatusPatch) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.injected("sites.UpdateStatusFieldsByID"); err != nil {
		return err
	}
	rec, ok := r.db.sites[id]
	if !ok {
		return sql.ErrNoRows
	}
	if patch.SiteObservations != nil {
		rec.SiteObservations = *patch.SiteObservations
	}
	if patch.CCRStatus != nil {
		rec.CCRStatus = *patch.CCRStatus
	}
	if patch.TaskStatus != nil {
		rec.TaskStatus = *patch.TaskStatus
	}
	if patch.TypeOfIssue != nil {
		rec.TypeOfIssue = *patch.TypeOfIssue
	}
	if patch.Remarks != nil {
		rec.Remarks = *patch.Remarks
	}
	if patch.Photos != nil {
		rec.Photos = patch.Photos
	}
	rec.UpdatedAt = r.db.next()
	r.db.sites[id] = rec
	return nil
}

func (r memSites) RevertApprovalFields(ctx context.Context, ids []string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, id := range ids {
		rec, ok := r.db.sites[id]
		if !ok {
			continue
		}
		rec.CCRStatus, rec.SiteObservations, rec.TaskStatus = "", models.ObservationPending, ""
		r.db.sites[id] = rec
		n++
	}
	return n, nil
}

func (r memSites) UpdateDaysOffline(ctx context.Context, collection models.Collection, fileID string, updates []models.DaysOfflineUpdate) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, u := range updates {
		rec, err := r.find(collection, fileID, u.RowKey)
		if err != nil {
			continue
		}
		days := u.DaysOffline
		rec.DaysOffline = &days
		r.db.sites[rec.ID] = *rec
		n++
	}
	return n, nil
}

func (r memSites) Delete(ctx context.Context, collection models.Collection, fileID, rowKey string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rec, err := r.find(collection, fileID, rowKey)
	if err != nil {
		return err
	}
	for _, a := range r.db.actions {
		if a.SiteRecordID == rec.ID {
			return &pq.Error{Code: "23503", Message: "actions_site_record_id_fkey"}
		}
	}
	for _, a := range r.db.approvals {
		if a.SiteRecordID() == rec.ID {
			return &pq.Error{Code: "23503", Message: "approvals_site_fkey"}
		}
	}
	for id, a := range r.db.actions {
		if a.RoutedSiteRecordID != nil && *a.RoutedSiteRecordID == rec.ID {
			a.RoutedSiteRecordID = nil
			r.db.actions[id] = a
		}
	}
	delete(r.db.sites, rec.ID)
	return nil
}

func (r memSites) ListByOwner(ctx context.Context, collection models.Collection, ownerUserID, fileID string) ([]models.SiteRecord, error) {
	return r.ListAll(ctx, models.SiteFilter{Collection: collection, OwnerUserID: ownerUserID, FileID: fileID})
}

func (r memSites) ListByOriginalOwner(ctx context.Context, collection models.Collection, ownerUserID string) ([]models.SiteRecord, error) {
	all, err := r.ListAll(ctx, models.SiteFilter{Collection: collection})
	if err != nil {
		return nil, err
	}
	var out []models.SiteRecord
	for _, rec := range all {
		if rec.OriginalOwnerUserID != nil && *rec.OriginalOwnerUserID == ownerUserID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func matchSite(rec models.SiteRecord, f models.SiteFilter) bool {
	switch {
	case f.Collection != "" && rec.Collection != f.Collection:
		return false
	case f.VisibleTo != "" && !rec.VisibleTo(f.VisibleTo):
		return false
	case f.OwnerUserID != "" && rec.OwnerUserID != f.OwnerUserID:
		return false
	case f.FileID != "" && rec.FileID != f.FileID:
		return false
	case f.SiteCode != "" && rec.SiteCode != models.NormalizeSiteCode(f.SiteCode):
		return false
	case f.Division != "" && !strings.EqualFold(rec.Division, f.Division):
		return false
	case f.Observation != "" && rec.SiteObservations != f.Observation:
		return false
	case f.CCRStatus != "" && rec.CCRStatus != f.CCRStatus:
		return false
	case f.TaskStatus != "" && rec.TaskStatus != f.TaskStatus:
		return false
	}
	return true
}

func (r memSites) ListAll(ctx context.Context, filter models.SiteFilter) ([]models.SiteRecord, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.injected("sites.List"); err != nil {
		return nil, err
	}
	var out []models.SiteRecord
	for _, rec := range r.db.sites {
		if matchSite(rec, filter) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowKey < out[j].RowKey })
	return out, nil
}

func (r memSites) List(ctx context.Context, filter models.SiteFilter) ([]models.SiteRecord, int, error) {
	all, err := r.ListAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (r memSites) FilterOptions(ctx context.Context, collection models.Collection, visibleTo string) (*models.ReportFilterOptions, error) {
	records, err := r.ListAll(ctx, models.SiteFilter{Collection: collection, VisibleTo: visibleTo})
	if err != nil {
		return nil, err
	}
	distinct := func(get func(models.SiteRecord) string) []string {
		seen := map[string]bool{}
		out := []string{}
		for _, rec := range records {
			if v := get(rec); v != "" && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
		sort.Strings(out)
		return out
	}
	return &models.ReportFilterOptions{
		Divisions:    distinct(func(r models.SiteRecord) string { return r.Division }),
		SiteCodes:    distinct(func(r models.SiteRecord) string { return r.SiteCode }),
		Observations: distinct(func(r models.SiteRecord) string { return r.SiteObservations }),
		CCRStatuses:  distinct(func(r models.SiteRecord) string { return r.CCRStatus }),
		TaskStatuses: distinct(func(r models.SiteRecord) string { return r.TaskStatus }),
	}, nil
}

type memActions struct{ db *memDB }

func (r memActions) Create(ctx context.Context, action *models.Action) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.injected("actions.Create"); err != nil {
		return err
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.Status == "" {
		action.Status = models.ActionStatusPending
	}
	if action.Priority == "" {
		action.Priority = models.PriorityMedium
	}
	now := r.db.next()
	action.CreatedAt, action.UpdatedAt = now, now
	r.db.actions[action.ID] = *action
	return nil
}

func (r memActions) GetByID(ctx context.Context, id string) (*models.Action, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	action, ok := r.db.actions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &action, nil
}

func (r memActions) LinkRoutedRecord(ctx context.Context, id, routedID, routedRowKey string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	action, ok := r.db.actions[id]
	if !ok {
		return sql.ErrNoRows
	}
	action.RoutedSiteRecordID = &routedID
	action.RoutedRowKey = &routedRowKey
	r.db.actions[id] = action
	return nil
}

func (r memActions) UpdateStatus(ctx context.Context, id string, from, to models.ActionStatus, completedAt *time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	action, ok := r.db.actions[id]
	if !ok || action.Status != from {
		return sql.ErrNoRows
	}
	action.Status = to
	if completedAt != nil {
		action.CompletedDate = completedAt
	}
	r.db.actions[id] = action
	return nil
}

func (r memActions) MarkSuperseded(ctx context.Context, id, supersededBy string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	action, ok := r.db.actions[id]
	if !ok || action.Status == models.ActionStatusCompleted {
		return sql.ErrNoRows
	}
	action.Status = models.ActionStatusCompleted
	action.SupersededBy = &supersededBy
	action.CompletedDate = &at
	r.db.actions[id] = action
	return nil
}

func (r memActions) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.actions[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.db.actions, id)
	return nil
}

func (r memActions) List(ctx context.Context, filter models.ActionFilter) ([]models.Action, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []models.Action{}
	for _, a := range r.db.actions {
		if filter.AssignedTo != "" && a.AssignedToUserID != filter.AssignedTo {
			continue
		}
		if filter.AssignedBy != "" && a.AssignedByUserID != filter.AssignedBy {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, len(out), nil
}

func (r memActions) ListBySiteRecords(ctx context.Context, ids []string) ([]models.Action, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Action
	for _, a := range r.db.actions {
		if want[a.SiteRecordID] || (a.RoutedSiteRecordID != nil && want[*a.RoutedSiteRecordID]) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memActions) all() []models.Action {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.Action, 0, len(r.db.actions))
	for _, a := range r.db.actions {
		out = append(out, a)
	}
	return out
}

type memApprovals struct{ db *memDB }

func (r memApprovals) Create(ctx context.Context, approval *models.Approval) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.approvals {
		if a.Status == models.ApprovalStatusPending && a.FileID == approval.FileID && a.RowKey == approval.RowKey && a.ApprovalType == approval.ApprovalType {
			return repository.ErrDuplicateKey
		}
	}
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	if approval.Status == "" {
		approval.Status = models.ApprovalStatusPending
	}
	now := r.db.next()
	approval.CreatedAt, approval.UpdatedAt = now, now
	r.db.approvals[approval.ID] = *approval
	return nil
}

func (r memApprovals) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.approvals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (r memApprovals) Latest(ctx context.Context, fileID, rowKey string, approvalType models.ApprovalType, pendingOnly bool) (*models.Approval, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var latest *models.Approval
	for _, a := range r.db.approvals {
		if a.FileID != fileID || a.RowKey != rowKey || a.ApprovalType != approvalType {
			continue
		}
		if pendingOnly && a.Status != models.ApprovalStatusPending {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			found := a
			latest = &found
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (r memApprovals) Resolve(ctx context.Context, params repository.ResolveApprovalParams) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.approvals[params.ID]
	if !ok || a.Status != models.ApprovalStatusPending {
		return sql.ErrNoRows
	}
	role := params.Role
	a.Status = params.Status
	a.ApprovedByUserID = &params.UserID
	a.ApprovedByRole = &role
	a.ApprovedAt = &params.Resolved
	a.ApprovalRemarks = params.Remarks
	r.db.approvals[params.ID] = a
	return nil
}

func (r memApprovals) List(ctx context.Context, filter models.ApprovalFilter) ([]models.Approval, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []models.Approval{}
	for _, a := range r.db.approvals {
		if filter.Participant != "" && a.SubmittedByUserID != filter.Participant && a.AssignedToUserID != filter.Participant {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.ApprovalType != "" && a.ApprovalType != filter.ApprovalType {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (r memApprovals) Stats(ctx context.Context, participant string) (*models.ApprovalStats, error) {
	items, _, err := r.List(ctx, models.ApprovalFilter{Participant: participant})
	if err != nil {
		return nil, err
	}
	stats := &models.ApprovalStats{ByStatus: map[string]int{}, ByType: map[string]int{}}
	for _, a := range items {
		stats.Total++
		stats.ByStatus[string(a.Status)]++
		stats.ByType[string(a.ApprovalType)]++
	}
	return stats, nil
}

func (r memApprovals) ListForReset(ctx context.Context, filter models.ApprovalResetFilter) ([]models.Approval, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Approval
	for _, a := range r.db.approvals {
		if filter.ApprovalType != "" && a.ApprovalType != filter.ApprovalType {
			continue
		}
		if filter.SiteCode != "" && a.SiteCode != models.NormalizeSiteCode(filter.SiteCode) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r memApprovals) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.db.approvals[id]; ok {
			delete(r.db.approvals, id)
			n++
		}
	}
	return n, nil
}

func (r memApprovals) ListBySiteRecords(ctx context.Context, ids []string) ([]models.Approval, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Approval
	for _, a := range r.db.approvals {
		if want[a.SiteRecordID()] {
			out = append(out, a)
		}
	}
	return out, nil
}

type memDirectory struct{ db *memDB }

func (r memDirectory) FindByID(ctx context.Context, id string) (*models.DirectoryUser, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok || !u.Active {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (r memDirectory) FindAssignee(ctx context.Context, role models.UserRole, division, excludeID string) (*models.DirectoryUser, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var candidates []models.DirectoryUser
	for _, u := range r.db.users {
		if u.Active && u.Role == role && u.ID != excludeID {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return nil, sql.ErrNoRows
	}
	sort.Slice(candidates, func(i, j int) bool {
		iSame := strings.EqualFold(candidates[i].Division, division)
		jSame := strings.EqualFold(candidates[j].Division, division)
		if iSame != jSame {
			return iSame
		}
		return candidates[i].ID < candidates[j].ID
	})
	return &candidates[0], nil
}

type memAudit struct{ db *memDB }

func (r memAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	r.db.audits = append(r.db.audits, *log)
	return nil
}

// fixture wires every service over one memDB.
type fixture struct {
	db        *memDB
	sites     memSites
	actions   memActions
	approvals memApprovals
	metrics   *MetricsService
	cache     *CacheService
	site      *SiteService
	router    *ActionService
	engine    *ApprovalService
	reports   *ReportService
}

func newFixture(suffixes ...string) *fixture {
	db := newMemDB()
	db.addUser("je1", models.RoleAMC, "North")
	db.addUser("eq1", models.RoleEquipment, "North")
	db.addUser("eq2", models.RoleEquipment, "South")
	db.addUser("ccr1", models.RoleCCR, "North")
	db.addUser("rtu1", models.RoleRTU, "North")
	db.addUser("admin", models.RoleAdmin, "")

	f := &fixture{db: db, sites: memSites{db}, actions: memActions{db}, approvals: memApprovals{db}}
	f.metrics = NewMetricsService()
	f.cache = NewCacheService(repository.NewMemoryCacheRepository(time.Minute, time.Minute), f.metrics, time.Minute, nil, true)
	tx := memTx{db}
	audit := memAudit{db}

	cfg := RoutingConfig{ForkRetries: 1}
	if len(suffixes) > 0 {
		var mu sync.Mutex
		queue := append([]string(nil), suffixes...)
		cfg.Suffix = func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			s := queue[0]
			if len(queue) > 1 {
				queue = queue[1:]
			}
			return s, nil
		}
	}

	f.site = NewSiteService(f.sites, tx, audit, f.cache, nil, f.metrics, nil)
	f.router = NewActionService(f.sites, f.actions, memDirectory{db}, tx, audit, f.cache, nil, f.metrics, nil, cfg)
	f.engine = NewApprovalService(f.sites, f.actions, f.approvals, memDirectory{db}, tx, audit, f.cache, nil, f.metrics, nil)
	f.reports = NewReportService(f.sites, f.actions, f.approvals, f.cache, nil, f.metrics, nil, nil)
	return f
}

func (f *fixture) siteByKey(fileID, rowKey string) *models.SiteRecord {
	rec, err := f.sites.FindByKey(context.Background(), models.CollectionEquipmentOffline, fileID, rowKey)
	if err != nil {
		return nil
	}
	return rec
}

func actorOf(id string, role models.UserRole) models.Actor {
	return models.Actor{UserID: id, Role: role, Division: "North"}
}
