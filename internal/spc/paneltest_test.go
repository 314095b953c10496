package spc

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spc2mqtt/internal/config"
	"spc2mqtt/internal/log"
)

// fakeClock replaces wall time in the session backoff logic; Sleep
// advances it instead of blocking.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

const loginFormHTML = `<html><body>
<form action="login.htm?action=login" method="post">
<input type="text" name="userid">
<input type="password" name="password">
</form>
</body></html>`

const emptyDataPage = `<html><body><table class="gridtable"></table></body></html>`

// fakePanel emulates the panel's web interface: a login form at
// login.htm and token-gated pages at secure.htm. An unknown token gets
// the login form back with HTTP 200, like the real firmware.
type fakePanel struct {
	mu sync.Mutex

	loginOK   bool
	nextToken string
	evictNew  bool
	valid     map[string]bool
	pages     map[string]string

	loginPosts int
	secureGets int
	lastQuery  url.Values
	lastForm   url.Values
	lastPage   string
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		valid: map[string]bool{},
		pages: map[string]string{},
	}
}

func (p *fakePanel) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(srv.Close)
	return srv
}

func (p *fakePanel) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.URL.Path {
	case "/login.htm":
		if r.Method == http.MethodPost {
			p.loginPosts++
			p.lastQuery = r.URL.Query()
			r.ParseForm()
			p.lastForm = r.PostForm
			if p.loginOK {
				if !p.evictNew {
					p.valid[p.nextToken] = true
				}
				fmt.Fprintf(w, `<html><body><a href="secure.htm?session=%s&page=controller_status">Status</a></body></html>`, p.nextToken)
				return
			}
		}
		io.WriteString(w, loginFormHTML)

	case "/secure.htm":
		token := r.URL.Query().Get("session")
		if !p.valid[token] {
			io.WriteString(w, loginFormHTML)
			return
		}
		p.secureGets++
		p.lastPage = r.URL.Query().Get("page")
		if r.Method == http.MethodPost {
			r.ParseForm()
			p.lastForm = r.PostForm
		}
		if body, ok := p.pages[p.lastPage]; ok {
			io.WriteString(w, body)
			return
		}
		io.WriteString(w, emptyDataPage)

	default:
		http.NotFound(w, r)
	}
}

func (p *fakePanel) allowLogin(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginOK = true
	p.nextToken = token
}

func (p *fakePanel) allowToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.valid[token] = true
}

func (p *fakePanel) setPage(page, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages[page] = body
}

func (p *fakePanel) stats() (loginPosts, secureGets int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loginPosts, p.secureGets
}

func newTestSession(t *testing.T, host string) (*Session, *Store, *fakeClock) {
	t.Helper()
	store, err := NewStore(t.TempDir(), strings.TrimRight(host, "/"))
	require.NoError(t, err)
	logger := log.NewLogger("error")
	transport, err := NewTransport(store.CookiePath(), 5*time.Second, logger)
	require.NoError(t, err)

	s := NewSession(host, "admin", "1234", 253, time.Minute, store, transport, logger)
	clock := &fakeClock{now: time.Now()}
	s.clock = clock
	s.rand = func() float64 { return 0 }
	return s, store, clock
}

func newTestClient(t *testing.T, host string) *Client {
	t.Helper()
	cfg := &config.SPCConfig{
		Host:                host,
		User:                "admin",
		Pin:                 "1234",
		Language:            253,
		SessionCacheDir:     t.TempDir(),
		MinLoginIntervalSec: 60,
		HTTPTimeoutSec:      5,
	}
	c, err := New(cfg, log.NewLogger("error"))
	require.NoError(t, err)
	c.session.clock = &fakeClock{now: time.Now()}
	c.session.rand = func() float64 { return 0 }
	return c
}

// backdate makes subsequent Save calls write a record old enough that
// the minimum-login-interval collapse does not kick in.
func backdate(s *Store, age time.Duration) {
	s.now = func() time.Time { return time.Now().Add(-age) }
}
