package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"labdevices/pkg/registry"
	"labdevices/pkg/store"

	_ "labdevices/pkg/drivers"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "labdevices.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	st, err := store.NewStore(db)
	require.NoError(t, err)
	return st
}

func TestSeedsRegisteredDefaults(t *testing.T) {
	st := newTestStore(t)

	names, err := st.Devices()
	require.NoError(t, err)
	assert.Equal(t, registry.Names(), names)

	p, err := st.GetParams("srs.dg645")
	require.NoError(t, err)
	assert.Equal(t, registry.Params{Address: "10.0.0.34", Port: 5025}, p)
}

func TestSetGetParams(t *testing.T) {
	st := newTestStore(t)

	want := registry.Params{Address: "192.168.7.12", Port: 5555}
	require.NoError(t, st.SetParams("rohdeschwarz.fpc1000", want))

	got, err := st.GetParams("rohdeschwarz.fpc1000")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGetParamsUnknown(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetParams("nonexistent.device")
	assert.ErrorContains(t, err, "no saved parameters")
}

func TestSetParamsEmptyName(t *testing.T) {
	st := newTestStore(t)

	err := st.SetParams("", registry.Params{Address: "10.0.0.1"})
	assert.Error(t, err)
}

func TestSeedDoesNotOverwrite(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "labdevices.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	st, err := store.NewStore(db)
	require.NoError(t, err)

	want := registry.Params{Address: "172.16.0.9"}
	require.NoError(t, st.SetParams("thorlabs.tsp01", want))

	// A second NewStore over the same file must keep the saved value.
	st2, err := store.NewStore(db)
	require.NoError(t, err)

	got, err := st2.GetParams("thorlabs.tsp01")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
