package storage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ptgott/e2ekit/user"
)

// All BadgerDB operations go through the same helpers the suites use rather
// than ones defined just for tests.
func TestSimpleBadgerDBReadWrite(t *testing.T) {
	dir := t.TempDir()
	db, err := NewBadgerDB(dir)
	require.NoError(t, err)

	want := []user.RecordedTestUser{
		recorded("staging", "a@x.io", "1"),
		recorded("prod", "b@x.io", "2"),
	}
	for _, u := range want {
		require.NoError(t, db.Append(u))
	}
	require.NoError(t, db.Close())

	// Reopening must keep the records and their order.
	db, err = NewBadgerDB(dir)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Append(recorded("staging", "c@x.io", "3")))
	want = append(want, recorded("staging", "c@x.io", "3"))

	got, err := db.Users()
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}
}

func TestBadgerDBLocksDirectory(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(KindBadger, dir)
	require.NoError(t, err)
	defer db.Close()

	_, err = Open(KindBadger, dir)
	require.Error(t, err)
}

func TestInMemoryBadgerDB(t *testing.T) {
	db, err := NewInMemoryBadgerDB()
	require.NoError(t, err)
	defer db.Close()

	users, err := db.Users()
	require.NoError(t, err)
	require.Empty(t, users)
}
