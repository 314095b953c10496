package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spc2mqtt/internal/spc"
)

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	status := &spc.Status{
		Zones: []spc.Zone{{ID: "3", Name: "3 Cuisine", Input: spc.InputClosed}},
		Areas: []spc.Area{{ID: "1", Name: "Maison", Status: spc.AreaDisarmed}},
	}

	require.NoError(t, Save(dir, status))

	snap, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, status, snap.Status)
	require.WithinDuration(t, time.Now(), snap.LastUpdate, 2*time.Second)
}

func TestLoadMissingReturnsNil(t *testing.T) {
	snap, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(dir, &spc.Status{}))
	require.NoError(t, Delete(dir))

	snap, err := Load(dir)
	require.NoError(t, err)
	require.Nil(t, snap)

	// Deleting an absent snapshot is fine.
	require.NoError(t, Delete(dir))
}
