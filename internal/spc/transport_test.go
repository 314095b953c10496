package spc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spc2mqtt/internal/log"
)

func newTransport(t *testing.T) *Transport {
	t.Helper()
	tr, err := NewTransport(filepath.Join(t.TempDir(), "cookies.jar"), 5*time.Second, log.NewLogger("error"))
	require.NoError(t, err)
	return tr
}

func TestTransportRetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "finally")
	}))
	defer srv.Close()

	resp, err := newTransport(t).Get(srv.URL, "")
	require.NoError(t, err)
	require.Equal(t, "finally", resp.Body)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTransportDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTransport(t).Get(srv.URL, "")
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTransportGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTransport(t).Get(srv.URL, "")
	require.Error(t, err)
	// Initial attempt plus the configured retries.
	require.Equal(t, int32(transportRetries+1), atomic.LoadInt32(&calls))
}

func TestTransportSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	_, err := newTransport(t).Get(srv.URL, "http://panel/login.htm")
	require.NoError(t, err)
	require.Contains(t, gotUA, "Mozilla/5.0")
	require.Equal(t, "http://panel/login.htm", gotReferer)
}

func TestTransportPostForm(t *testing.T) {
	var gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	form := url.Values{"userid": {"admin"}, "password": {"1234"}}
	_, err := newTransport(t).Post(srv.URL, form, "")
	require.NoError(t, err)
	require.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	require.Equal(t, form.Encode(), gotBody)
}

func TestTransportReportsFinalURLAfterRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/secure.htm?session=R3D1R&page=home", http.StatusFound)
	})
	mux.HandleFunc("/secure.htm", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "landed")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := newTransport(t).Get(srv.URL+"/start", "")
	require.NoError(t, err)
	require.Equal(t, "landed", resp.Body)
	require.True(t, strings.Contains(resp.URL, "session=R3D1R"))
	require.Equal(t, "R3D1R", ExtractToken(resp.URL))
}

func TestTransportPersistsCookies(t *testing.T) {
	jarFile := filepath.Join(t.TempDir(), "cookies.jar")
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("SPCSESSIONID"); err == nil {
			gotCookie = c.Value
		}
		http.SetCookie(w, &http.Cookie{Name: "SPCSESSIONID", Value: "abc123", Path: "/"})
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	logger := log.NewLogger("error")
	tr, err := NewTransport(jarFile, 5*time.Second, logger)
	require.NoError(t, err)
	_, err = tr.Get(srv.URL, "")
	require.NoError(t, err)

	// A new transport on the same jar file replays the cookie.
	tr2, err := NewTransport(jarFile, 5*time.Second, logger)
	require.NoError(t, err)
	_, err = tr2.Get(srv.URL, "")
	require.NoError(t, err)
	require.Equal(t, "abc123", gotCookie)
}
