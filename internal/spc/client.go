package spc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"spc2mqtt/internal/config"
	"spc2mqtt/internal/log"
)

// Status pages. controller_status carries both the zone grid and the
// secteur rows, which halves the polling cost; doors, outputs, and the
// controller diagnostics each have their own page.
const (
	pageControllerStatus = "controller_status"
	pageDoors            = "status_doors"
	pageOutputs          = "status_outputs"
	pageControllerInfo   = "controller_info"
)

// Client is the facade over the session manager, transport, and
// interpreter. It retains the last fetched Status so command references
// ("Zone 3", "salon") can be resolved without another round trip.
type Client struct {
	host    string
	log     *log.Logger
	store   *Store
	http    *Transport
	session *Session

	mu   sync.Mutex
	last *Status
}

func New(cfg *config.SPCConfig, logger *log.Logger) (*Client, error) {
	host := strings.TrimRight(cfg.Host, "/")
	store, err := NewStore(cfg.SessionCacheDir, host)
	if err != nil {
		return nil, err
	}
	transport, err := NewTransport(store.CookiePath(), time.Duration(cfg.HTTPTimeoutSec)*time.Second, logger)
	if err != nil {
		return nil, err
	}
	session := NewSession(
		host, cfg.User, cfg.Pin, cfg.Language,
		time.Duration(cfg.MinLoginIntervalSec)*time.Second,
		store, transport, logger,
	)
	return &Client{
		host:    host,
		log:     logger,
		store:   store,
		http:    transport,
		session: session,
	}, nil
}

// Session exposes the lifecycle manager, mainly for eager validation.
func (c *Client) Session() *Session {
	return c.session
}

// Fetch retrieves and interprets all status pages. A response that turns
// out to be a login page triggers exactly one re-login per page; a fetch
// failure for one page fails the whole cycle (the poller treats that as a
// skipped cycle, not a fatal error).
func (c *Client) Fetch() (*Status, error) {
	token, err := c.session.GetOrLogin()
	if err != nil {
		return nil, err
	}

	ctrl, token, err := c.fetchPage(token, pageControllerStatus)
	if err != nil {
		return nil, err
	}
	doors, token, err := c.fetchPage(token, pageDoors)
	if err != nil {
		return nil, err
	}
	outputs, token, err := c.fetchPage(token, pageOutputs)
	if err != nil {
		return nil, err
	}
	info, _, err := c.fetchPage(token, pageControllerInfo)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Zones:      ParseZones(ctrl),
		Areas:      ParseAreas(ctrl),
		Doors:      ParseDoors(doors),
		Outputs:    ParseOutputs(outputs),
		Controller: ParseController(info),
	}

	c.mu.Lock()
	c.last = status
	c.mu.Unlock()
	return status, nil
}

// Prime seeds the command-resolution snapshot, e.g. from a warm-start
// cache, before the first fetch completes.
func (c *Client) Prime(status *Status) {
	if status == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		c.last = status
	}
}

func (c *Client) snapshot() *Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return &Status{}
	}
	return c.last
}

func (c *Client) refererFor(token, page string) string {
	return c.session.SecureURL(token, page)
}

// fetchPage gets one authenticated page, applying the login-page
// heuristic to the response (the panel can evict a session at any time)
// and re-extracting the token in case the panel rotated it.
func (c *Client) fetchPage(token, page string) (string, string, error) {
	resp, err := c.http.Get(c.session.SecureURL(token, page), c.host+"/")
	if err != nil {
		return "", token, fmt.Errorf("failed to fetch %s: %w", page, err)
	}

	if IsLoginPage(resp.URL, resp.Body) {
		c.log.Debug("Page %s came back as login page, re-authenticating", page)
		token, err = c.session.Relogin(token)
		if err != nil {
			return "", token, err
		}
		resp, err = c.http.Get(c.session.SecureURL(token, page), c.host+"/")
		if err != nil {
			return "", token, fmt.Errorf("failed to fetch %s after re-login: %w", page, err)
		}
		if IsLoginPage(resp.URL, resp.Body) {
			return "", token, fmt.Errorf("%w: %s still served the login page", ErrSessionExpired, page)
		}
	}

	if rotated := ExtractToken(resp.Body); rotated != "" && rotated != token {
		c.session.SaveRotated(token, rotated)
		token = rotated
	}
	return resp.Body, token, nil
}
