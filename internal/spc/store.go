package spc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	sessionFileName = "spc_session.json"
	cookieFileName  = "spc_cookies.jar"

	// How long to wait on the advisory lock before failing soft. A writer
	// holds it only for the duration of one small write.
	lockTimeout   = 2 * time.Second
	lockRetryStep = 50 * time.Millisecond
)

// Record is the durable session record, one per (cache dir, host). The
// field names and the float unix timestamp match the on-disk format the
// panel's earlier clients wrote, so existing caches keep working.
type Record struct {
	Host    string  `json:"host"`
	Session string  `json:"session"`
	Time    float64 `json:"time"`
}

// AcquiredAt converts the stored timestamp.
func (r Record) AcquiredAt() time.Time {
	sec := int64(r.Time)
	nsec := int64((r.Time - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// Store persists the session record under the cache directory. Multiple
// processes share it; writes are atomic (temp file, fsync, rename) under
// an exclusive flock so a reader observes either the old or the new
// complete record, never a torn one.
type Store struct {
	dir  string
	host string
	path string
	now  func() time.Time
}

func NewStore(dir, host string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session cache dir: %w", err)
	}
	return &Store{
		dir:  dir,
		host: host,
		path: filepath.Join(dir, sessionFileName),
		now:  time.Now,
	}, nil
}

// CookiePath is where the Transport keeps the companion cookie jar.
func (s *Store) CookiePath() string {
	return filepath.Join(s.dir, cookieFileName)
}

// Load reads the cached record. It fails soft: a missing file, unreadable
// JSON, a record for a different host, or a lock timeout all yield an
// empty record, never an error.
func (s *Store) Load() (Record, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryRLockContext(ctx, lockRetryStep)
	if err != nil || !locked {
		return Record{}, false
	}
	defer lock.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false
	}
	if rec.Session == "" || (rec.Host != "" && rec.Host != s.host) {
		return Record{}, false
	}
	return rec, true
}

// Save writes {host, token, now} atomically. Empty tokens are a no-op so
// a failed login can never erase a possibly still-working record.
func (s *Store) Save(token string) error {
	if token == "" {
		return nil
	}
	rec := Record{
		Host:    s.host,
		Session: token,
		Time:    float64(s.now().UnixNano()) / float64(time.Second),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryStep)
	if err != nil {
		return fmt.Errorf("failed to lock session file: %w", err)
	}
	if !locked {
		return fmt.Errorf("timed out locking session file")
	}
	defer lock.Unlock()

	return atomicWrite(s.path, data, 0o600)
}

// Reset removes the session and cookie files, best effort. Used after
// repeated login failures to rule out local corruption.
func (s *Store) Reset() {
	os.Remove(s.path)
	os.Remove(s.path + ".lock")
	os.Remove(s.CookiePath())
}

// atomicWrite writes data to a temp file in the same directory, syncs it,
// and renames it over path.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp_*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
