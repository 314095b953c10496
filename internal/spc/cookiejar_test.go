package spc

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func jarPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cookies.jar")
}

func panelURL(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse("http://192.168.1.10/")
	require.NoError(t, err)
	return u
}

func TestPersistentJarRoundtrip(t *testing.T) {
	path := jarPath(t)
	u := panelURL(t)

	jar, err := newPersistentJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{
		{Name: "SPCSESSIONID", Value: "abc123", Path: "/"},
	})
	require.NoError(t, jar.save())

	// A second process opens the same jar and sends the cookie back.
	reloaded, err := newPersistentJar(path)
	require.NoError(t, err)
	cookies := reloaded.Cookies(u)
	require.Len(t, cookies, 1)
	require.Equal(t, "SPCSESSIONID", cookies[0].Name)
	require.Equal(t, "abc123", cookies[0].Value)
}

func TestPersistentJarKeepsExpiry(t *testing.T) {
	path := jarPath(t)
	u := panelURL(t)
	expires := time.Now().Add(time.Hour).Truncate(time.Second)

	jar, err := newPersistentJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{
		{Name: "SPCSESSIONID", Value: "abc123", Path: "/", Expires: expires},
	})
	require.NoError(t, jar.save())

	reloaded, err := newPersistentJar(path)
	require.NoError(t, err)
	require.Len(t, reloaded.Cookies(u), 1)
	require.Equal(t, expires.Unix(), reloaded.seen[u.Hostname()+"\tSPCSESSIONID"].Expires.Unix())
}

func TestPersistentJarDeletesOnNegativeMaxAge(t *testing.T) {
	path := jarPath(t)
	u := panelURL(t)

	jar, err := newPersistentJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "SPCSESSIONID", Value: "abc123", Path: "/"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "SPCSESSIONID", Value: "", Path: "/", MaxAge: -1}})
	require.NoError(t, jar.save())

	reloaded, err := newPersistentJar(path)
	require.NoError(t, err)
	require.Empty(t, reloaded.Cookies(u))
}

func TestPersistentJarCorruptFileStartsFresh(t *testing.T) {
	path := jarPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not\ta\tcookie\tfile\n"), 0o600))

	jar, err := newPersistentJar(path)
	require.NoError(t, err)
	require.Empty(t, jar.Cookies(panelURL(t)))

	// The corrupt file was discarded so the next save starts clean.
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestPersistentJarMissingFileIsFine(t *testing.T) {
	jar, err := newPersistentJar(jarPath(t))
	require.NoError(t, err)
	require.Empty(t, jar.Cookies(panelURL(t)))
}
