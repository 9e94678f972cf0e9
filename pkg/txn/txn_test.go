package txn

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/s4/pkg/cond"
	"github.com/cuemby/s4/pkg/errs"
	"github.com/cuemby/s4/pkg/fetch"
	"github.com/cuemby/s4/pkg/store"
	"github.com/cuemby/s4/pkg/value"
	"github.com/cuemby/s4/pkg/walog"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	l, err := walog.Open(filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return NewManager(store.New(), l)
}

func TestCommitAppliesWritesAndReleasesIntents(t *testing.T) {
	mgr := newTestManager(t)

	tx := mgr.Begin(0)
	require.NoError(t, tx.Add("song_id", value.NewInt(1), "artist", value.NewString("Four Tet"), "plugin/id3"))
	require.NoError(t, tx.Commit())

	assert.Equal(t, 1, mgr.store.Len())

	// A later transaction touching the same key pair must not block,
	// proving the committing transaction's intent was released.
	tx2 := mgr.Begin(0)
	require.NoError(t, tx2.Add("song_id", value.NewInt(2), "artist", value.NewString("Caribou"), "plugin/id3"))
	require.NoError(t, tx2.Commit())
	assert.Equal(t, 2, mgr.store.Len())
}

func TestReadOnlyTxnRejectsWrites(t *testing.T) {
	mgr := newTestManager(t)
	tx := mgr.Begin(ReadOnly)

	err := tx.Add("song_id", value.NewInt(1), "artist", value.NewString("Four Tet"), "plugin/id3")
	require.Error(t, err)

	var serr *errs.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, errs.ReadOnly, serr.Code)
}

func TestAbortDiscardsBuffer(t *testing.T) {
	mgr := newTestManager(t)

	tx := mgr.Begin(0)
	require.NoError(t, tx.Add("song_id", value.NewInt(1), "artist", value.NewString("Four Tet"), "plugin/id3"))
	tx.Abort()

	assert.Equal(t, 0, mgr.store.Len())

	err := tx.Add("song_id", value.NewInt(2), "artist", value.NewString("Caribou"), "plugin/id3")
	require.Error(t, err)
}

func queryExists(t *testing.T, tx *Txn, key string) []fetch.Row {
	t.Helper()
	f := cond.NewFilter(cond.Exists, key, nil, nil, value.Binary, 0)
	fs := fetch.NewFetchSpec(fetch.NewColumn(key, nil, fetch.Data))
	rows, err := tx.Query(f, fs)
	require.NoError(t, err)
	return rows
}

func TestQuerySeesOwnPendingWritesButNotOthers(t *testing.T) {
	mgr := newTestManager(t)

	writer := mgr.Begin(0)
	require.NoError(t, writer.Add("song_id", value.NewInt(1), "artist", value.NewString("Four Tet"), "plugin/id3"))

	assert.Len(t, queryExists(t, writer, "song_id"), 1)

	reader := mgr.Begin(ReadOnly)
	assert.Len(t, queryExists(t, reader, "song_id"), 0)

	require.NoError(t, writer.Commit())
	assert.Len(t, queryExists(t, reader, "song_id"), 1)
}

func TestDelOfAbsentQuintupleFailsCommit(t *testing.T) {
	mgr := newTestManager(t)

	tx := mgr.Begin(0)
	require.NoError(t, tx.Del("song_id", value.NewInt(1), "artist", value.NewString("Four Tet"), "plugin/id3"))

	err := tx.Commit()
	require.Error(t, err)
	var serr *errs.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, errs.Execute, serr.Code)

	assert.Equal(t, 0, mgr.store.Len())
}

func TestDelOfOwnPendingInsertSucceeds(t *testing.T) {
	mgr := newTestManager(t)

	tx := mgr.Begin(0)
	require.NoError(t, tx.Add("song_id", value.NewInt(1), "artist", value.NewString("Four Tet"), "plugin/id3"))
	require.NoError(t, tx.Del("song_id", value.NewInt(1), "artist", value.NewString("Four Tet"), "plugin/id3"))

	require.NoError(t, tx.Commit())
	assert.Equal(t, 0, mgr.store.Len())
}

func TestDeadlockAbortsYoungestInCycle(t *testing.T) {
	mgr := newTestManager(t)

	t1 := mgr.Begin(0)
	t2 := mgr.Begin(0)

	require.NoError(t, t1.Add("x", value.NewInt(1), "v", value.NewInt(1), "src"))
	require.NoError(t, t2.Add("y", value.NewInt(1), "v", value.NewInt(1), "src"))

	t1Started := make(chan struct{})
	t1Err := make(chan error, 1)
	go func() {
		close(t1Started)
		t1Err <- t1.Add("y", value.NewInt(2), "v", value.NewInt(1), "src")
	}()

	<-t1Started
	time.Sleep(20 * time.Millisecond) // let t1 reach cond.Wait inside acquireIntent

	err2 := t2.Add("x", value.NewInt(2), "v", value.NewInt(1), "src")
	require.Error(t, err2)
	var serr *errs.Error
	require.ErrorAs(t, err2, &serr)
	assert.Equal(t, errs.Deadlock, serr.Code)

	require.NoError(t, <-t1Err)
}
