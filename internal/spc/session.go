package spc

import (
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"spc2mqtt/internal/log"
	"spc2mqtt/internal/metrics"
	"spc2mqtt/internal/util"
)

// Session decides whether the cached token is usable, performs a login
// when it is not, and protects the panel from login storms: the firmware
// tolerates very few concurrent logins before it starts evicting
// sessions, including the ones other processes are using. The discipline
// is the one the panel has been observed to absorb: exponential backoff
// after failures (2s doubling, capped at 60s) and a minimum interval with
// 20% random jitter between logins, with a validity recheck after every
// wait in case another process logged in meanwhile.

const (
	maxBackoff     = 60 * time.Second
	initialBackoff = 2 * time.Second
	collapseWait   = 2 * time.Second

	// validationPage is a lightweight authenticated page used to probe a
	// token; a stale token gets the login page back instead.
	validationPage = "controller_status"

	// resetAfterFailures rules out local cache corruption once a login
	// streak keeps failing.
	resetAfterFailures = 3
)

var (
	tokenQueryPattern = regexp.MustCompile(`[?&]session=([0-9A-Za-z]+)`)
	tokenLinkPattern  = regexp.MustCompile(`secure\.htm\?[^"'>]*session=([0-9A-Za-z]+)`)

	useridInputPattern   = regexp.MustCompile(`(?i)<input[^>]*name=["']?userid`)
	passwordInputPattern = regexp.MustCompile(`(?i)<input[^>]*name=["']?password`)
)

// Phrases the panel uses when it has evicted a session; matched on folded
// (lowercased, unaccented) body text.
var disconnectPhrases = []string{
	"utilisateur deconnecte",
	"user disconnected",
	"mot de passe",
	"identifiant",
}

// ExtractToken pulls the session token out of a URL or a response body.
// The panel embeds it as a query parameter in every authenticated link
// and may rotate it at any time.
func ExtractToken(s string) string {
	if s == "" {
		return ""
	}
	if m := tokenQueryPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := tokenLinkPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// IsLoginPage classifies a response as the panel's login page. The panel
// never returns an error status for an expired session; it silently
// serves the login form, so this heuristic has to run after every
// authenticated fetch, not just at login time.
func IsLoginPage(finalURL, body string) bool {
	if strings.Contains(strings.ToLower(finalURL), "login.htm") {
		return true
	}
	if useridInputPattern.MatchString(body) && passwordInputPattern.MatchString(body) {
		return true
	}
	folded := strings.ToLower(util.StripDiacritics(body))
	for _, phrase := range disconnectPhrases {
		if strings.Contains(folded, phrase) {
			return true
		}
	}
	return false
}

// Clock abstracts wall time and the deliberate sleeps in the backoff
// logic so tests can simulate elapsed time.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

type Session struct {
	host             string
	user             string
	pin              string
	lang             int
	minLoginInterval time.Duration

	store *Store
	http  *Transport
	log   *log.Logger
	clock Clock
	rand  func() float64

	mu            sync.Mutex
	lastLoginFail time.Time
	backoff       time.Duration
	failures      int
}

func NewSession(host, user, pin string, lang int, minLoginInterval time.Duration, store *Store, transport *Transport, logger *log.Logger) *Session {
	return &Session{
		host:             strings.TrimRight(host, "/"),
		user:             user,
		pin:              pin,
		lang:             lang,
		minLoginInterval: minLoginInterval,
		store:            store,
		http:             transport,
		log:              logger,
		clock:            realClock{},
		rand:             rand.Float64,
	}
}

func (s *Session) loginURL() string {
	return s.host + "/login.htm"
}

// SecureURL builds an authenticated page URL.
func (s *Session) SecureURL(token, page string) string {
	return fmt.Sprintf("%s/secure.htm?session=%s&page=%s", s.host, token, page)
}

// GetOrLogin returns a usable token. Reuse is optimistic: a cached token
// is returned without probing, and a caller whose fetch turns out to be a
// login page comes back through Relogin. This keeps routine polling at
// one request per cycle.
func (s *Session) GetOrLogin() (string, error) {
	if rec, ok := s.store.Load(); ok {
		return rec.Session, nil
	}
	return s.obtain("")
}

// Relogin is the lazy-invalidation path: stale is a token that just came
// back as a login page. Another process may already have replaced it, so
// the cache is consulted (and probed) before any login attempt.
func (s *Session) Relogin(stale string) (string, error) {
	if rec, ok := s.store.Load(); ok && rec.Session != stale && s.Validate(rec.Session) {
		return rec.Session, nil
	}
	return s.obtain(stale)
}

// Validate probes a token with a lightweight authenticated request.
func (s *Session) Validate(token string) bool {
	if token == "" {
		return false
	}
	resp, err := s.http.Get(s.SecureURL(token, validationPage), s.host+"/")
	if err != nil {
		return false
	}
	return !IsLoginPage(resp.URL, resp.Body)
}

func (s *Session) obtain(stale string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	// After a recent failure, wait out the backoff, then recheck once:
	// another process may have logged in while we slept.
	if s.backoff > 0 && now.Sub(s.lastLoginFail) < s.backoff {
		s.clock.Sleep(min(s.backoff, maxBackoff))
		if token := s.recheck(); token != "" {
			return token, nil
		}
	}

	// Collapse concurrent callers: if a login happened (or was attempted)
	// too recently, wait briefly and recheck rather than piling on.
	if s.lastLoginTooRecent() {
		s.clock.Sleep(collapseWait)
		if token := s.recheck(); token != "" {
			return token, nil
		}
	}

	if s.failures >= resetAfterFailures {
		s.log.Warning("%d consecutive login failures, resetting session cache", s.failures)
		s.store.Reset()
		s.failures = 0
	}

	token, err := s.login()
	if err == nil {
		s.lastLoginFail = time.Time{}
		s.backoff = 0
		s.failures = 0
		return token, nil
	}

	s.log.Warning("Login failed: %v", err)
	s.lastLoginFail = s.clock.Now()
	if s.backoff == 0 {
		s.backoff = initialBackoff
	} else {
		s.backoff = min(s.backoff*2, maxBackoff)
	}
	s.failures++

	// A stale-but-possibly-still-working session beats none at all.
	if stale != "" {
		return stale, nil
	}
	return "", fmt.Errorf("%w: %v", ErrNoSession, err)
}

func (s *Session) recheck() string {
	rec, ok := s.store.Load()
	if !ok {
		return ""
	}
	if s.Validate(rec.Session) {
		return rec.Session
	}
	return ""
}

func (s *Session) lastLoginTooRecent() bool {
	rec, ok := s.store.Load()
	if !ok {
		return false
	}
	jitter := time.Duration(s.rand() * 0.2 * float64(s.minLoginInterval))
	return s.clock.Now().Sub(rec.AcquiredAt()) < s.minLoginInterval+jitter
}

// login performs the HTML form login and extracts the new token from the
// redirect URL or, failing that, from a link in the response body.
func (s *Session) login() (string, error) {
	// Prime cookies; the panel may set one on the login page. Failures
	// here are ignored, the POST is what matters.
	if _, err := s.http.Get(s.loginURL(), ""); err != nil {
		s.log.Debug("Login page fetch failed (ignored): %v", err)
	}

	postURL := fmt.Sprintf("%s?action=login&language=%d", s.loginURL(), s.lang)
	form := url.Values{
		"userid":   {s.user},
		"password": {s.pin},
	}
	resp, err := s.http.Post(postURL, form, s.loginURL())
	if err != nil {
		metrics.LoginFailures.Inc()
		return "", fmt.Errorf("login POST failed: %w", err)
	}

	token := ExtractToken(resp.URL)
	if token == "" {
		token = ExtractToken(resp.Body)
	}
	if token == "" {
		metrics.LoginFailures.Inc()
		return "", ErrLoginRejected
	}

	if err := s.store.Save(token); err != nil {
		s.log.Warning("Failed to persist session: %v", err)
	}
	metrics.Logins.Inc()
	s.log.Info("Logged in to panel, new session obtained")
	return token, nil
}

// SaveRotated persists a token the panel rotated mid-session. No-op when
// unchanged.
func (s *Session) SaveRotated(old, rotated string) {
	if rotated == "" || rotated == old {
		return
	}
	s.log.Debug("Panel rotated session token")
	if err := s.store.Save(rotated); err != nil {
		s.log.Warning("Failed to persist rotated session: %v", err)
	}
}
