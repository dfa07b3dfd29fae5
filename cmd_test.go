package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazruxenginering/doclocker/internal/access"
	"github.com/gazruxenginering/doclocker/internal/browse"
	"github.com/gazruxenginering/doclocker/internal/config"
	"github.com/gazruxenginering/doclocker/internal/store"
)

// ebooks is the first default root; commands run against the default roots.
var ebooks = config.DefaultRoots()[0]

// runCLI executes the root command against dataDir with no config file and
// returns what the command wrote to stdout.
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{
		"--config", filepath.Join(dataDir, "none.toml"),
		"--data-dir", dataDir,
		"--env-file", "",
		"--quiet",
	}, args...))

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedDataDir creates a mirror with one folder and two files under the
// EBOOKS root, and returns the data dir.
func seedDataDir(t *testing.T, seed func(ctx context.Context, st *store.Store)) string {
	t.Helper()

	dir := t.TempDir()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(dir, "doclocker.db"), slogDiscard())
	require.NoError(t, err)

	for _, n := range []store.Node{
		{ID: "d1", Name: "manuals", Kind: store.KindDirectory, ParentID: ebooks.ID, RootKey: ebooks.Key},
		{ID: "f1", Name: "Engine Overhaul.pdf", Kind: store.KindFile, Size: 1536, ParentID: ebooks.ID, RootKey: ebooks.Key},
		{ID: "f2", Name: "engine torque table.pdf", Kind: store.KindFile, Size: 2048, ParentID: "d1", RootKey: ebooks.Key},
	} {
		require.NoError(t, st.UpsertNode(ctx, &n))
	}

	if seed != nil {
		seed(ctx, st)
	}

	require.NoError(t, st.Close())

	return dir
}

func TestCLI_Roots(t *testing.T) {
	t.Parallel()

	dir := seedDataDir(t, nil)

	out, err := runCLI(t, dir, "--json", "roots")
	require.NoError(t, err)

	var roots []rootJSON
	require.NoError(t, json.Unmarshal([]byte(out), &roots))
	require.Len(t, roots, len(config.DefaultRoots()))
	assert.Equal(t, ebooks.Key, roots[0].Key)
	assert.Equal(t, 3, roots[0].Count)
	assert.Equal(t, 0, roots[1].Count)
}

func TestCLI_LsAndStat(t *testing.T) {
	t.Parallel()

	dir := seedDataDir(t, nil)

	out, err := runCLI(t, dir, "ls", ebooks.ID)
	require.NoError(t, err)
	assert.Contains(t, out, ebooks.Label+" (2 entries)")
	assert.Contains(t, out, "manuals/")
	assert.Contains(t, out, "1.5 KB")

	out, err = runCLI(t, dir, "--json", "stat", "f2")
	require.NoError(t, err)

	var file fileJSON
	require.NoError(t, json.Unmarshal([]byte(out), &file))
	assert.Equal(t, "engine torque table.pdf", file.Name)
	assert.Equal(t, ebooks.Label, file.RootLabel)
	assert.Empty(t, file.Siblings)

	_, err = runCLI(t, dir, "stat", "d1")
	assert.ErrorIs(t, err, browse.ErrNotFound)

	_, err = runCLI(t, dir, "ls", "nope")
	assert.ErrorIs(t, err, browse.ErrNotFound)
}

func TestCLI_SearchCompleteCatalog(t *testing.T) {
	t.Parallel()

	dir := seedDataDir(t, nil)

	out, err := runCLI(t, dir, "--json", "search", "ENGINE")
	require.NoError(t, err)

	var items []itemJSON
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)

	out, err = runCLI(t, dir, "complete", "e")
	require.NoError(t, err)
	assert.Contains(t, out, "No matches.")

	out, err = runCLI(t, dir, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, ebooks.Label+" (1 files)")
	assert.Contains(t, out, "Engine Overhaul.pdf")
	assert.NotContains(t, out, "torque")
}

func TestCLI_AccessFlow(t *testing.T) {
	t.Parallel()

	var subjectID, batchID int64

	dir := seedDataDir(t, func(ctx context.Context, st *store.Store) {
		var err error

		batchID, err = st.CreateBatch(ctx, "B1", false)
		require.NoError(t, err)

		subjectID, err = st.CreateParticipant(ctx, &store.Participant{Name: "Ana", BatchName: "B1"})
		require.NoError(t, err)
	})

	subject := strconv.FormatInt(subjectID, 10)
	batch := strconv.FormatInt(batchID, 10)

	check := func() decisionJSON {
		t.Helper()

		out, err := runCLI(t, dir, "--json", "access", "check", subject)
		require.NoError(t, err)

		var d decisionJSON
		require.NoError(t, json.Unmarshal([]byte(out), &d))

		return d
	}

	assert.Equal(t, decisionJSON{SubjectID: subjectID, Tier: "none"}, check())

	out, err := runCLI(t, dir, "--json", "access", "grant", "--batch", batch, "--note", "cohort")
	require.NoError(t, err)

	var res grantResultJSON
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Affected)
	assert.Equal(t, "cli", res.Grant.CreatedBy)

	d := check()
	assert.True(t, d.Granted)
	assert.Equal(t, "Batch: B1", d.Reason)

	// A disabled individual grant falls through to the batch grant.
	_, err = runCLI(t, dir, "access", "revoke", "--subject", subject)
	require.NoError(t, err)
	assert.Equal(t, "group", check().Tier)

	_, err = runCLI(t, dir, "access", "revoke", "--batch", batch, "--note", "cohort ended")
	require.NoError(t, err)
	assert.False(t, check().Granted)

	_, err = runCLI(t, dir, "access", "legacy", subject, "on")
	require.NoError(t, err)
	assert.Equal(t, "Legacy", check().Reason)

	out, err = runCLI(t, dir, "--json", "access", "list", "--scope", "group")
	require.NoError(t, err)

	var grants []grantJSON
	require.NoError(t, json.Unmarshal([]byte(out), &grants))
	require.Len(t, grants, 1)
	assert.False(t, grants[0].Enabled)
	assert.Equal(t, "cohort ended", grants[0].Note)
}

func TestCLI_GrantFarFutureExpiryStaysActive(t *testing.T) {
	t.Parallel()

	var subjectID int64

	dir := seedDataDir(t, func(ctx context.Context, st *store.Store) {
		var err error

		subjectID, err = st.CreateParticipant(ctx, &store.Participant{Name: "Dewi"})
		require.NoError(t, err)
	})

	subject := strconv.FormatInt(subjectID, 10)

	_, err := runCLI(t, dir, "access", "grant", "--subject", subject, "--expires", "9999-12-31")
	require.NoError(t, err)

	out, err := runCLI(t, dir, "--json", "access", "check", subject)
	require.NoError(t, err)

	var d decisionJSON
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.True(t, d.Granted)
	assert.Equal(t, "Individual", d.Reason)
}

func TestCLI_AccessGrantFlagErrors(t *testing.T) {
	t.Parallel()

	dir := seedDataDir(t, nil)

	_, err := runCLI(t, dir, "access", "grant")
	require.Error(t, err)

	_, err = runCLI(t, dir, "access", "grant", "--subject", "1", "--batch", "1")
	require.Error(t, err)

	_, err = runCLI(t, dir, "access", "grant", "--subject", "99")
	assert.ErrorIs(t, err, access.ErrSubjectNotFound)

	_, err = runCLI(t, dir, "access", "grant", "--batch", "99")
	assert.ErrorIs(t, err, access.ErrBatchNotFound)

	_, err = runCLI(t, dir, "access", "list", "--scope", "everyone")
	require.Error(t, err)

	_, err = runCLI(t, dir, "access", "legacy", "1", "maybe")
	require.Error(t, err)
}

func TestCLI_BatchToggle(t *testing.T) {
	t.Parallel()

	var batchID int64

	dir := seedDataDir(t, func(ctx context.Context, st *store.Store) {
		var err error

		batchID, err = st.CreateBatch(ctx, "B2", false)
		require.NoError(t, err)

		for _, name := range []string{"a", "b"} {
			_, err = st.CreateParticipant(ctx, &store.Participant{Name: name, BatchName: "B2"})
			require.NoError(t, err)
		}
	})

	out, err := runCLI(t, dir, "batch", "toggle", strconv.FormatInt(batchID, 10))
	require.NoError(t, err)
	assert.Contains(t, out, "is now true (2 member(s) updated)")

	_, err = runCLI(t, dir, "batch", "toggle", "404")
	assert.ErrorIs(t, err, access.ErrBatchNotFound)
}

func TestCLI_GetDeniedBeforeDownload(t *testing.T) {
	t.Parallel()

	var subjectID int64

	dir := seedDataDir(t, func(ctx context.Context, st *store.Store) {
		var err error

		subjectID, err = st.CreateParticipant(ctx, &store.Participant{Name: "Budi"})
		require.NoError(t, err)
	})

	// No credentials are configured, so reaching the download would fail
	// differently.
	_, err := runCLI(t, dir, "get", "f1", "--as", strconv.FormatInt(subjectID, 10))
	assert.ErrorIs(t, err, access.ErrDenied)
}

func TestCLI_RunsAndSyncWithoutCredentials(t *testing.T) {
	t.Parallel()

	dir := seedDataDir(t, nil)

	out, err := runCLI(t, dir, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "No sync runs recorded yet.")

	_, err = runCLI(t, dir, "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvServiceAccountJSON)
}

func TestCLI_TriggerWithoutDaemon(t *testing.T) {
	t.Parallel()

	_, err := runCLI(t, t.TempDir(), "trigger")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no running daemon")
}
