package spc

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// persistentJar is an http.CookieJar that mirrors every cookie it sees
// into a Netscape-format file, the same layout the panel's earlier
// clients kept, so a jar written by one process is readable by another.
// The inner cookiejar.Jar does the matching; the mirror map exists only
// because the stdlib jar cannot enumerate its contents.
type persistentJar struct {
	mu    sync.Mutex
	inner *cookiejar.Jar
	path  string
	seen  map[string]*http.Cookie // keyed by domain + "\t" + name
}

func newPersistentJar(path string) (*persistentJar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	jar := &persistentJar{
		inner: inner,
		path:  path,
		seen:  make(map[string]*http.Cookie),
	}
	if err := jar.load(); err != nil {
		// A corrupt jar is recoverable: start fresh.
		os.Remove(path)
	}
	return jar, nil
}

func (j *persistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	for _, c := range cookies {
		domain := c.Domain
		if domain == "" {
			domain = u.Hostname()
		}
		key := domain + "\t" + c.Name
		if c.MaxAge < 0 {
			delete(j.seen, key)
			continue
		}
		cc := *c
		cc.Domain = domain
		j.seen[key] = &cc
	}
	j.mu.Unlock()
	j.inner.SetCookies(u, cookies)
}

func (j *persistentJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// save writes the jar in Netscape format with an atomic replace.
func (j *persistentJar) save() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString("# Netscape HTTP Cookie File\n")
	for _, c := range j.seen {
		includeSub := "FALSE"
		if strings.HasPrefix(c.Domain, ".") {
			includeSub = "TRUE"
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		secure := "FALSE"
		if c.Secure {
			secure = "TRUE"
		}
		var expires int64
		if !c.Expires.IsZero() {
			expires = c.Expires.Unix()
		}
		fmt.Fprintf(&buf, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			c.Domain, includeSub, path, secure, expires, c.Name, c.Value)
	}
	return atomicWrite(j.path, buf.Bytes(), 0o600)
}

func (j *persistentJar) load() error {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return fmt.Errorf("malformed cookie line")
		}
		expires, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return fmt.Errorf("malformed cookie expiry: %w", err)
		}
		c := &http.Cookie{
			Domain: fields[0],
			Path:   fields[2],
			Secure: fields[3] == "TRUE",
			Name:   fields[5],
			Value:  fields[6],
		}
		if expires > 0 {
			c.Expires = time.Unix(expires, 0)
		}
		j.seen[c.Domain+"\t"+c.Name] = c

		// Feed the inner jar via a synthetic URL on the cookie's domain.
		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		host := strings.TrimPrefix(c.Domain, ".")
		u := &url.URL{Scheme: scheme, Host: host, Path: c.Path}
		j.inner.SetCookies(u, []*http.Cookie{c})
	}
	return scanner.Err()
}
