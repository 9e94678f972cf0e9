package walog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/s4/pkg/store"
	"github.com/cuemby/s4/pkg/value"
)

func TestSnapshotRoundTrip(t *testing.T) {
	s := store.New()
	s.Add("song_id", value.NewInt(1), "artist", value.NewString("Four Tet"), "plugin/id3")
	s.Add("song_id", value.NewInt(1), "title", value.NewString("Baby"), "plugin/id3")

	path := filepath.Join(t.TempDir(), "snapshot.s4db")
	require.NoError(t, Snapshot(path, s))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)

	assert.Equal(t, s.Len(), loaded.Len())

	songID := loaded.InternKey("song_id")
	entries := loaded.AIndex(songID).Lookup(value.NewInt(1))
	assert.Len(t, entries, 2)
}

func TestLoadSnapshotMissingFileIsEmpty(t *testing.T) {
	s, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.s4db"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestLoadSnapshotRejectsUnsupportedVersion(t *testing.T) {
	s := store.New()
	s.Add("song_id", value.NewInt(1), "artist", value.NewString("Four Tet"), "plugin/id3")

	path := filepath.Join(t.TempDir(), "snapshot.s4db")
	require.NoError(t, Snapshot(path, s))

	db, err := bolt.Open(path, 0o644, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte("version"), uint32Bytes(snapshotVersion+1))
	}))
	require.NoError(t, db.Close())

	_, err = LoadSnapshot(path)
	require.ErrorIs(t, err, ErrVersion)
}
