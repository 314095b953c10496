package spc

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testHost = "http://192.168.1.10"

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), testHost)
	require.NoError(t, err)
	return s
}

func TestStoreRoundtrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save("T0K3N"))

	rec, ok := s.Load()
	require.True(t, ok)
	require.Equal(t, "T0K3N", rec.Session)
	require.Equal(t, testHost, rec.Host)
	require.WithinDuration(t, time.Now(), rec.AcquiredAt(), 2*time.Second)
}

func TestStoreFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	s := newStore(t)
	require.NoError(t, s.Save("T0K3N"))

	info, err := os.Stat(s.path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreLoadMissingFile(t *testing.T) {
	s := newStore(t)
	_, ok := s.Load()
	require.False(t, ok)
}

func TestStoreLoadCorruptFile(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0o600))

	_, ok := s.Load()
	require.False(t, ok)
}

func TestStoreLoadRejectsOtherHost(t *testing.T) {
	dir := t.TempDir()
	a, err := NewStore(dir, "http://panel-a")
	require.NoError(t, err)
	require.NoError(t, a.Save("T0K3N"))

	b, err := NewStore(dir, "http://panel-b")
	require.NoError(t, err)
	_, ok := b.Load()
	require.False(t, ok)

	// Same host in a second process sees the record.
	a2, err := NewStore(dir, "http://panel-a")
	require.NoError(t, err)
	rec, ok := a2.Load()
	require.True(t, ok)
	require.Equal(t, "T0K3N", rec.Session)
}

func TestStoreSaveEmptyTokenIsNoop(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save("KEEP"))
	require.NoError(t, s.Save(""))

	rec, ok := s.Load()
	require.True(t, ok)
	require.Equal(t, "KEEP", rec.Session)
}

func TestStoreReset(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save("T0K3N"))
	require.NoError(t, os.WriteFile(s.CookiePath(), []byte("# Netscape HTTP Cookie File\n"), 0o600))

	s.Reset()

	_, ok := s.Load()
	require.False(t, ok)
	_, err := os.Stat(s.CookiePath())
	require.True(t, os.IsNotExist(err))
}

func TestStoreConcurrentSavesNeverTear(t *testing.T) {
	s := newStore(t)

	var wg sync.WaitGroup
	tokens := map[string]bool{}
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		token := fmt.Sprintf("TOKEN%d", i)
		tokens[token] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Save(token)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rec, ok := s.Load()
	require.True(t, ok)
	require.True(t, tokens[rec.Session], "got %q", rec.Session)
}

func TestRecordAcquiredAt(t *testing.T) {
	rec := Record{Time: 1700000000.5}
	at := rec.AcquiredAt()
	require.Equal(t, int64(1700000000), at.Unix())
	require.InDelta(t, 500*time.Millisecond, at.Nanosecond(), float64(time.Millisecond))
}

func TestStoreSharesDirectoryLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, testHost)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "spc_session.json"), s.path)
	require.Equal(t, filepath.Join(dir, "spc_cookies.jar"), s.CookiePath())
}
