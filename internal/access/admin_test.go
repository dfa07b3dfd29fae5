package access

import (
	"context"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazruxenginering/doclocker/internal/store"
)

func TestGrantIndividual_UpsertAndRevoke(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	admin := NewAdmin(st, testLogger(t))

	pid, err := st.CreateParticipant(ctx, &store.Participant{Name: "p"})
	require.NoError(t, err)

	expiry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	res, err := admin.GrantIndividual(ctx, GrantRequest{
		TargetID: pid, Enabled: true, ExpiresAt: &expiry, Note: "paid", CreatedBy: "ops",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Affected)
	assert.True(t, res.Grant.Enabled)

	revoked, err := admin.GrantIndividual(ctx, GrantRequest{TargetID: pid, Enabled: false, CreatedBy: "other"})
	require.NoError(t, err)
	assert.Equal(t, res.Grant.ID, revoked.Grant.ID)
	assert.False(t, revoked.Grant.Enabled)
	assert.Nil(t, revoked.Grant.ExpiresAt)
	assert.Equal(t, "ops", revoked.Grant.CreatedBy)

	grants, err := admin.ListGrants(ctx, store.ScopeIndividual)
	require.NoError(t, err)
	assert.Len(t, grants, 1)
}

func TestGrantIndividual_UnknownParticipant(t *testing.T) {
	t.Parallel()

	admin := NewAdmin(newTestStore(t), testLogger(t))

	_, err := admin.GrantIndividual(context.Background(), GrantRequest{TargetID: 9, Enabled: true})
	assert.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestGrantBatch_ReportsMembers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	admin := NewAdmin(st, testLogger(t))

	batchID, err := st.CreateBatch(ctx, "B-3", false)
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		_, err := st.CreateParticipant(ctx, &store.Participant{Name: name, BatchName: "B-3"})
		require.NoError(t, err)
	}

	res, err := admin.GrantBatch(ctx, GrantRequest{TargetID: batchID, Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Affected)
	assert.Equal(t, store.ScopeGroup, res.Grant.Scope)

	_, err = admin.GrantBatch(ctx, GrantRequest{TargetID: batchID + 1, Enabled: true})
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestGrantRequest_Validate(t *testing.T) {
	t.Parallel()

	longNote := make([]byte, maxNoteLength+1)
	for i := range longNote {
		longNote[i] = 'x'
	}

	tests := []struct {
		name  string
		req   GrantRequest
		field string
	}{
		{"missing target", GrantRequest{}, "TargetID"},
		{"negative target", GrantRequest{TargetID: -1}, "TargetID"},
		{"pre-epoch expiry", GrantRequest{TargetID: 1, ExpiresAt: at(time.Date(1969, 1, 1, 0, 0, 0, 0, time.UTC))}, "ExpiresAt"},
		{"expiry past year 9999", GrantRequest{TargetID: 1, ExpiresAt: at(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC))}, "ExpiresAt"},
		{"long note", GrantRequest{TargetID: 1, Note: string(longNote)}, "Note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.req.Validate()
			require.Error(t, err)

			var errs validation.Errors
			require.ErrorAs(t, err, &errs)
			assert.Contains(t, errs, tt.field)
		})
	}

	for _, ok := range []GrantRequest{
		{TargetID: 1, ExpiresAt: at(evalNow)},
		{TargetID: 1},
		{TargetID: 1, ExpiresAt: at(time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC))},
		{TargetID: 1, ExpiresAt: at(time.Date(9999, 12, 31, 23, 59, 59, 0, time.FixedZone("UTC-5", -5*3600)))},
	} {
		assert.NoError(t, ok.Validate())
	}
}

func TestGrantIndividual_FarFutureExpiryStaysActive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	admin := NewAdmin(st, testLogger(t))

	pid, err := st.CreateParticipant(ctx, &store.Participant{Name: "p"})
	require.NoError(t, err)

	expiry := time.Date(2999, 12, 31, 23, 59, 59, 0, time.UTC)

	_, err = admin.GrantIndividual(ctx, GrantRequest{TargetID: pid, Enabled: true, ExpiresAt: &expiry})
	require.NoError(t, err)

	g, err := st.GrantFor(ctx, store.ScopeIndividual, pid)
	require.NoError(t, err)
	require.NotNil(t, g.ExpiresAt)
	assert.True(t, g.ExpiresAt.Equal(expiry), "stored expiry %s", g.ExpiresAt)

	d, err := newTestEvaluator(t, st, evalNow).HasAccess(ctx, pid)
	require.NoError(t, err)
	assert.True(t, d.Granted)
	assert.Equal(t, TierIndividual, d.Tier)
}

func TestGrant_InvalidRequestNeverTouchesStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	admin := NewAdmin(st, testLogger(t))

	_, err := admin.GrantBatch(ctx, GrantRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid grant request")

	grants, err := st.ListGrants(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestToggleBatchDefaultAndLegacy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newTestStore(t)
	admin := NewAdmin(st, testLogger(t))

	batchID, err := st.CreateBatch(ctx, "B-1", false)
	require.NoError(t, err)

	pid, err := st.CreateParticipant(ctx, &store.Participant{Name: "p", BatchName: "B-1"})
	require.NoError(t, err)

	def, affected, err := admin.ToggleBatchDefault(ctx, batchID)
	require.NoError(t, err)
	assert.True(t, def)
	assert.Equal(t, 1, affected)

	_, _, err = admin.ToggleBatchDefault(ctx, 999)
	assert.ErrorIs(t, err, ErrBatchNotFound)

	require.NoError(t, admin.SetLegacyAccess(ctx, pid, true))

	p, err := st.Participant(ctx, pid)
	require.NoError(t, err)
	assert.True(t, p.LegacyAccess)
	assert.True(t, p.QuickAccess)

	assert.ErrorIs(t, admin.SetLegacyAccess(ctx, 999, true), ErrSubjectNotFound)
}
