package spc

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"spc2mqtt/internal/log"
)

// The panel's embedded server is single-threaded and slow; transient 5xx
// and 429 responses are normal under load and are retried here with an
// exponential delay so they never bubble up as false login triggers.
// Anything else surfaces immediately.

const (
	transportRetries  = 3
	retryBaseInterval = 500 * time.Millisecond

	// Some firmware builds branch on the client identity and serve a
	// stripped page to anything that does not look like a browser.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Response is a completed exchange. URL is the final URL after redirects,
// which is where the panel hides the session token on login.
type Response struct {
	URL        string
	StatusCode int
	Body       string
}

type Transport struct {
	client *http.Client
	jar    *persistentJar
	log    *log.Logger
}

func NewTransport(cookiePath string, timeout time.Duration, logger *log.Logger) (*Transport, error) {
	jar, err := newPersistentJar(cookiePath)
	if err != nil {
		return nil, err
	}
	return &Transport{
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		jar: jar,
		log: logger,
	}, nil
}

func (t *Transport) Get(rawURL, referer string) (*Response, error) {
	return t.do(func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, rawURL, nil)
	}, referer)
}

func (t *Transport) Post(rawURL string, form url.Values, referer string) (*Response, error) {
	body := form.Encode()
	return t.do(func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, rawURL, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, referer)
}

func (t *Transport) do(newReq func() (*http.Request, error), referer string) (*Response, error) {
	var resp *Response

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(retryBaseInterval),
	), transportRetries)

	err := backoff.Retry(func() error {
		req, err := newReq()
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Connection", "keep-alive")
		if referer != "" {
			req.Header.Set("Referer", referer)
		}

		r, err := t.client.Do(req)
		if err != nil {
			t.log.Debug("HTTP request failed, will retry: %v", err)
			return err
		}
		defer r.Body.Close()

		if retryableStatus[r.StatusCode] {
			t.log.Debug("HTTP %d from panel, will retry", r.StatusCode)
			return fmt.Errorf("panel returned HTTP %d", r.StatusCode)
		}
		if r.StatusCode < 200 || r.StatusCode > 299 {
			return backoff.Permanent(fmt.Errorf("panel returned HTTP %d", r.StatusCode))
		}

		data, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		resp = &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       string(data),
		}
		return nil
	}, bo)
	if err != nil {
		return nil, err
	}

	// Cookies accumulate session-linking state the token alone does not
	// carry; persist after every successful exchange.
	if err := t.jar.save(); err != nil {
		t.log.Warning("Failed to save cookie jar: %v", err)
	}
	return resp, nil
}
