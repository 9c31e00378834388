package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/das-api/internal/dto"
	"github.com/noah-isme/das-api/internal/models"
	appErrors "github.com/noah-isme/das-api/pkg/errors"
)

func siteRequest(fileID, rowKey string) dto.SiteRecordRequest {
	return dto.SiteRecordRequest{
		FileID:          fileID,
		RowKey:          rowKey,
		OriginalRowData: models.RowData{"Site Code": models.StringValue("3w1575"), "Local/Remote": models.StringValue("Local")},
	}
}

func TestUpsertCreatesThenMerges(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	je1 := actorOf("je1", models.RoleAMC)

	rec, created, err := f.site.Upsert(ctx, models.CollectionEquipmentOffline, siteRequest("fileX", "row1"), je1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "3W1575", rec.SiteCode)
	assert.Equal(t, "je1", rec.OwnerUserID)
	assert.Equal(t, "North", rec.Division)
	assert.Equal(t, models.KindOriginal, rec.Kind)

	remarks := "fan noisy"
	req := dto.SiteRecordRequest{FileID: "fileX", RowKey: "row1", Remarks: &remarks}
	merged, created, err := f.site.Upsert(ctx, models.CollectionEquipmentOffline, req, je1)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, rec.ID, merged.ID)
	assert.Equal(t, "fan noisy", merged.Remarks)
	assert.Equal(t, "Local", merged.OriginalRowData["Local/Remote"].String(), "omitted fields are kept")
}

func TestUpsertRejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	je1 := actorOf("je1", models.RoleAMC)
	_, _, err := f.site.Upsert(ctx, models.CollectionEquipmentOffline, siteRequest("fileX", "row1"), je1)
	require.NoError(t, err)

	other := "3W9999"
	req := siteRequest("fileX", "row1")
	req.SiteCode = &other
	_, _, err = f.site.Upsert(ctx, models.CollectionEquipmentOffline, req, je1)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict))

	snapshot := dto.SiteRecordRequest{FileID: "fileX", RowKey: "row1", OriginalRowData: models.RowData{"Site Code": models.StringValue("9Z9999")}}
	_, _, err = f.site.Upsert(ctx, models.CollectionEquipmentOffline, snapshot, je1)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict), "site code implied by the row snapshot")
	assert.Equal(t, "3w1575", f.siteByKey("fileX", "row1").OriginalRowData["Site Code"].String())

	sameCode := dto.SiteRecordRequest{FileID: "fileX", RowKey: "row1", OriginalRowData: models.RowData{"site code": models.StringValue(" 3W1575 ")}}
	_, _, err = f.site.Upsert(ctx, models.CollectionEquipmentOffline, sameCode, je1)
	assert.NoError(t, err)

	_, _, err = f.site.Upsert(ctx, models.CollectionEquipmentOffline, siteRequest("fileX", "row1"), actorOf("eq1", models.RoleEquipment))
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden))

	bad := "Closed"
	req = siteRequest("fileX", "row2")
	req.SiteObservations = &bad
	_, _, err = f.site.Upsert(ctx, models.CollectionEquipmentOffline, req, je1)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation))

	_, _, err = f.site.Upsert(ctx, "PAYROLL", siteRequest("fileX", "row2"), je1)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation))

	_, _, err = f.site.Upsert(ctx, models.CollectionEquipmentOffline, dto.SiteRecordRequest{FileID: "fileX"}, je1)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation))
}

func TestBulkUpsertIsAtomic(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	je1 := actorOf("je1", models.RoleAMC)

	resp, err := f.site.BulkUpsert(ctx, models.CollectionRTUTracker, dto.BulkSiteRecordRequest{
		FileID:  "rtu-file",
		Records: []dto.SiteRecordRequest{{RowKey: "r1"}, {RowKey: "r2"}},
	}, je1)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Created)

	f.db.failOn("sites.Insert", errors.New("disk full"))
	_, err = f.site.BulkUpsert(ctx, models.CollectionRTUTracker, dto.BulkSiteRecordRequest{
		FileID:  "rtu-file",
		Records: []dto.SiteRecordRequest{{RowKey: "r1", Remarks: strPtr("updated")}, {RowKey: "r3"}},
	}, je1)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrTransaction))

	records, err := f.site.ListByFile(ctx, models.CollectionRTUTracker, "rtu-file", je1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "", records[0].Remarks, "update of r1 rolled back with the failed insert")

	_, err = f.site.BulkUpsert(ctx, models.CollectionRTUTracker, dto.BulkSiteRecordRequest{
		Records: []dto.SiteRecordRequest{{FileID: "f", RowKey: "ok"}, {FileID: "f"}},
	}, je1)
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "record 1")
}

func TestListByFileScopesToOwner(t *testing.T) {
	f := newFixture("abc123")
	seedOriginal(t, f, "je1", "fileX", "row7", "3W1575")
	seedOriginal(t, f, "je2", "fileX", "row8", "3W1576")
	ctx := context.Background()

	mine, err := f.site.ListByFile(ctx, models.CollectionEquipmentOffline, "fileX", actorOf("je1", models.RoleAMC))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "row7", mine[0].RowKey)

	all, err := f.site.ListByFile(ctx, models.CollectionEquipmentOffline, "fileX", actorOf("admin", models.RoleAdmin))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.site.ListByFile(ctx, models.CollectionEquipmentOffline, "", actorOf("je1", models.RoleAMC))
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation))
}

func TestListByFileKeepsRoutedCopiesVisibleToFirstOwner(t *testing.T) {
	f := newFixture("abc123")
	seedOriginal(t, f, "je1", "fileX", "row7", "3W1575")
	seedOriginal(t, f, "je1", "fileY", "row1", "3W1600")
	ctx := context.Background()
	_, err := f.router.Submit(ctx, submitRequest("fileX", "row7", "3W1575", "Equipment Team"), actorOf("je1", models.RoleAMC))
	require.NoError(t, err)

	mine, err := f.site.ListByFile(ctx, models.CollectionEquipmentOffline, "fileX", actorOf("je1", models.RoleAMC))
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "row7", mine[0].RowKey)
	assert.Equal(t, "row7-routed-abc123", mine[1].RowKey)

	assignee, err := f.site.ListByFile(ctx, models.CollectionEquipmentOffline, "fileX", actorOf("eq1", models.RoleEquipment))
	require.NoError(t, err)
	require.Len(t, assignee, 1)
	assert.Equal(t, "row7-routed-abc123", assignee[0].RowKey)

	other, err := f.site.ListByFile(ctx, models.CollectionEquipmentOffline, "fileY", actorOf("je1", models.RoleAMC))
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "row1", other[0].RowKey)
}

func TestUpdateDaysOffline(t *testing.T) {
	f := newFixture()
	seedOriginal(t, f, "je1", "fileX", "row7", "3W1575")
	seedOriginal(t, f, "je1", "fileX", "row8", "3W1576")

	resp, err := f.site.UpdateDaysOffline(context.Background(), models.CollectionEquipmentOffline, dto.UpdateDaysOfflineRequest{
		FileID:  "fileX",
		Updates: []models.DaysOfflineUpdate{{RowKey: "row7", DaysOffline: 4}, {RowKey: "missing", DaysOffline: 1}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp.Updated)
	require.NotNil(t, f.siteByKey("fileX", "row7").DaysOffline)
	assert.Equal(t, 4, *f.siteByKey("fileX", "row7").DaysOffline)
	assert.Nil(t, f.siteByKey("fileX", "row8").DaysOffline)

	_, err = f.site.UpdateDaysOffline(context.Background(), models.CollectionEquipmentOffline, dto.UpdateDaysOfflineRequest{
		FileID:  "fileX",
		Updates: []models.DaysOfflineUpdate{{RowKey: "row7", DaysOffline: -1}},
	})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation))
}

func TestDeleteSiteRecord(t *testing.T) {
	f := newFixture()
	seedOriginal(t, f, "je1", "fileX", "row7", "3W1575")
	ctx := context.Background()

	err := f.site.Delete(ctx, models.CollectionEquipmentOffline, "fileX", "row7", actorOf("eq1", models.RoleEquipment))
	assert.True(t, appErrors.IsCode(err, appErrors.ErrForbidden))
	assert.Empty(t, f.db.audits)

	require.NoError(t, f.site.Delete(ctx, models.CollectionEquipmentOffline, "fileX", "row7", actorOf("je1", models.RoleAMC)))
	assert.Nil(t, f.siteByKey("fileX", "row7"))
	require.Len(t, f.db.audits, 1)
	assert.Equal(t, models.AuditActionSiteDelete, f.db.audits[0].Action)
	assert.NotEmpty(t, f.db.audits[0].OldValues)

	err = f.site.Delete(ctx, models.CollectionEquipmentOffline, "fileX", "row7", actorOf("je1", models.RoleAMC))
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound))
}

func TestDeleteSiteRecordKeepsRoutingHistory(t *testing.T) {
	f, source, fork := routedFixture(t)
	ctx := context.Background()
	je1 := actorOf("je1", models.RoleAMC)

	err := f.site.Delete(ctx, models.CollectionEquipmentOffline, "fileX", source.RowKey, je1)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict))
	assert.Equal(t, 409, appErrors.FromError(err).Status)
	assert.NotNil(t, f.siteByKey("fileX", source.RowKey))
	assert.Len(t, f.db.actions, 1)
	assert.Empty(t, f.db.audits)

	_, err = f.engine.Create(ctx, ccrApproval(fork.ID), actorOf("eq1", models.RoleEquipment))
	require.NoError(t, err)
	err = f.site.Delete(ctx, models.CollectionEquipmentOffline, "fileX", fork.RowKey, actorOf("eq1", models.RoleEquipment))
	assert.True(t, appErrors.IsCode(err, appErrors.ErrConflict))
	assert.NotNil(t, f.siteByKey("fileX", fork.RowKey))
}
