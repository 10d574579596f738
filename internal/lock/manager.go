// Package lock guards a server's staging directory so two deployments of the
// same source never export into it at once.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/fsutil"
)

// DefaultTTL bounds how long a lock left by a crashed run blocks others.
const DefaultTTL = time.Hour

const suffix = ".lock"

// State is the state of a server's lock.
type State string

const (
	StateFree    State = "free"
	StateHeld    State = "held"
	StateExpired State = "expired"
)

// Record is the content of a lock file.
type Record struct {
	Server     string    `json:"server"`
	RunID      string    `json:"run_id"`
	Holder     string    `json:"holder"`
	Hostname   string    `json:"hostname,omitempty"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsExpired reports whether the lease has run out at now.
func (r *Record) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Manager hands out per-server locks under a staging root.
type Manager struct {
	root string
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
}

// NewManager creates a manager for locks under root. A non-positive ttl
// means DefaultTTL.
func NewManager(root string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{root: root, ttl: ttl, now: time.Now}
}

// Acquire takes the lock for server. An expired lock is taken over; a live
// one yields ErrLocked naming its holder.
func (m *Manager) Acquire(server, runID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.root, 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	rec := m.newRecord(server, runID)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal lock: %w", err)
	}

	path := m.path(server)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		defer file.Close()
		if _, err := file.Write(data); err != nil {
			os.Remove(path)
			return nil, fmt.Errorf("write lock: %w", err)
		}
		if err := file.Sync(); err != nil {
			os.Remove(path)
			return nil, fmt.Errorf("sync lock: %w", err)
		}
		return rec, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("create lock: %w", err)
	}

	existing, err := readRecord(path)
	if err != nil {
		return nil, fmt.Errorf("read existing lock: %w", err)
	}
	if !existing.IsExpired(m.now()) {
		return nil, errclass.ErrLocked.WithMessagef("server %s is being deployed by run %s (pid %d on %s) since %s",
			server, existing.RunID, existing.PID, existing.Hostname, existing.AcquiredAt.Format(time.RFC3339))
	}
	if err := fsutil.AtomicWrite(path, data, 0644); err != nil {
		return nil, fmt.Errorf("take over lock: %w", err)
	}
	return rec, nil
}

// Release frees server's lock if holder still owns it.
func (m *Manager) Release(server, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.path(server)
	rec, err := readRecord(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read lock: %w", err)
	}
	if rec.Holder != holder {
		return errclass.ErrLocked.WithMessagef("cannot release lock on %s: held by run %s", server, rec.RunID)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

// Status returns the state of server's lock and its record when one exists.
func (m *Manager) Status(server string) (State, *Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := readRecord(m.path(server))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return StateFree, nil, nil
		}
		return StateFree, nil, fmt.Errorf("read lock: %w", err)
	}
	if rec.IsExpired(m.now()) {
		return StateExpired, rec, nil
	}
	return StateHeld, rec, nil
}

// List returns every lock record under the root, sorted by server.
// Unreadable lock files are skipped.
func (m *Manager) List() ([]*Record, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list locks: %w", err)
	}

	var out []*Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		rec, err := readRecord(filepath.Join(m.root, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Server < out[j].Server })
	return out, nil
}

// Expired reports whether rec has expired by the manager's clock.
func (m *Manager) Expired(rec *Record) bool {
	return rec.IsExpired(m.now())
}

func (m *Manager) newRecord(server, runID string) *Record {
	now := m.now().UTC()
	host, _ := os.Hostname()
	return &Record{
		Server:     server,
		RunID:      runID,
		Holder:     uuid.NewString(),
		Hostname:   host,
		PID:        os.Getpid(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}
}

func (m *Manager) path(server string) string {
	return filepath.Join(m.root, server+suffix)
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse lock: %w", err)
	}
	return &rec, nil
}
