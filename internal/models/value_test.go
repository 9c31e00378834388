package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowDataJSONRoundTrip(t *testing.T) {
	inspected := time.Date(2024, 3, 9, 7, 30, 0, 0, time.UTC)
	row := RowData{
		"Site Code":    StringValue("3W1575"),
		"Days Offline": NumberValue(12.5),
		"Energized":    BoolValue(true),
		"Inspected":    DateValue(inspected),
		"Notes":        NullValue(),
	}

	raw, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"Inspected":{"$date":"2024-03-09T07:30:00Z"}`)

	var decoded RowData
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, len(row))
	for key, want := range row {
		assert.Truef(t, want.Equal(decoded[key]), "value for %q changed", key)
	}
	assert.Equal(t, ValueDate, decoded["Inspected"].Kind())
	assert.True(t, decoded["Inspected"].Time().Equal(inspected))
}

func TestValueRejectsNestedShapes(t *testing.T) {
	var v Value
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"a":"b"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"$date":"yesterday"}`), &v))
}

func TestRowDataScanValue(t *testing.T) {
	row := RowData{"Local/Remote": StringValue("Remote"), "Count": NumberValue(3)}
	stored, err := row.Value()
	require.NoError(t, err)

	var scanned RowData
	require.NoError(t, scanned.Scan(stored))
	assert.Equal(t, "Remote", scanned["Local/Remote"].String())
	assert.Equal(t, "3", scanned["Count"].String())

	var empty RowData
	require.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)
	assert.Error(t, empty.Scan(42))
}

func TestRowDataLookupIgnoresCase(t *testing.T) {
	row := RowData{" LOCAL/REMOTE STATUS ": StringValue("Local")}
	v, ok := row.Lookup("Local/Remote", "local/remote status")
	require.True(t, ok)
	assert.Equal(t, "Local", v.String())

	_, ok = row.Lookup("Device Status")
	assert.False(t, ok)
}

func TestActionStatusForwardOnly(t *testing.T) {
	assert.True(t, ActionStatusPending.CanTransitionTo(ActionStatusInProgress))
	assert.True(t, ActionStatusPending.CanTransitionTo(ActionStatusCompleted))
	assert.True(t, ActionStatusInProgress.CanTransitionTo(ActionStatusCompleted))
	assert.False(t, ActionStatusInProgress.CanTransitionTo(ActionStatusPending))
	assert.False(t, ActionStatusCompleted.CanTransitionTo(ActionStatusInProgress))
	assert.False(t, ActionStatusPending.CanTransitionTo(ActionStatusPending))
	assert.False(t, ActionStatusPending.CanTransitionTo("Cancelled"))
}

func TestApprovalStatusSiteEffect(t *testing.T) {
	ccr, obs := ApprovalStatusApproved.SiteEffect()
	assert.Equal(t, "Approved", ccr)
	assert.Equal(t, ObservationResolved, obs)

	ccr, obs = ApprovalStatusRecheckRequested.SiteEffect()
	assert.Equal(t, "Recheck Requested", ccr)
	assert.Equal(t, ObservationPending, obs)

	assert.False(t, ApprovalStatusPending.IsTerminal())
	assert.True(t, ApprovalStatusKeptForMonitoring.IsTerminal())
	assert.Equal(t, CollectionRTUTracker, ApprovalTypeRTU.SiteCollection())
	assert.Equal(t, RoleEquipment, ApprovalTypeAMC.ApproverRole())
}

func TestSiteRecordFirstOwnerAndVisibility(t *testing.T) {
	je1 := "je1"
	fork := SiteRecord{ID: "r2", OwnerUserID: "eq1", OriginalOwnerUserID: &je1, Kind: KindRouted}
	assert.Equal(t, "je1", fork.FirstOwner())
	assert.True(t, fork.VisibleTo("je1"))
	assert.True(t, fork.VisibleTo("eq1"))
	assert.False(t, fork.VisibleTo("ccr1"))

	original := SiteRecord{ID: "r1", OwnerUserID: "je1"}
	assert.Equal(t, "je1", original.FirstOwner())
	assert.Equal(t, "r1", original.RootRecordID())
	assert.Equal(t, "row7-routed-abc123", RoutedRowKey("row7", "abc123"))

	team, ok := RoleForTeam("RTU/Communication Team")
	require.True(t, ok)
	assert.Equal(t, RoleRTU, team)
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" ccr ")
	require.True(t, ok)
	assert.Equal(t, RoleCCR, role)

	role, ok = ParseRole("o&m")
	require.True(t, ok)
	assert.Equal(t, RoleOM, role)

	_, ok = ParseRole("Supervisor")
	assert.False(t, ok)
}

func TestActorIsAdminIgnoresCase(t *testing.T) {
	assert.True(t, Actor{Role: "admin"}.IsAdmin())
	assert.True(t, Actor{Role: RoleAdmin}.IsAdmin())
	assert.False(t, Actor{Role: RoleCCR}.IsAdmin())
}
