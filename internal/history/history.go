// Package history keeps an append-only, hash-chained record of deployments
// in a JSONL file.
package history

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/jsonutil"
)

// FileName is the history file name under the staging root.
const FileName = "history.jsonl"

// Status is how a deployment ended.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Entry is one deployment of one server.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Server    string         `json:"server"`
	Ref       string         `json:"ref"`
	Revision  string         `json:"revision,omitempty"`
	Deployer  string         `json:"deployer,omitempty"`
	DryRun    bool           `json:"dry_run,omitempty"`
	Status    Status         `json:"status"`
	Error     string         `json:"error,omitempty"`
	Totals    map[string]int `json:"totals,omitempty"`
	PrevHash  string         `json:"prev_hash"`
	Hash      string         `json:"hash"`
}

// Log appends to and reads a history file.
type Log struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// Open returns the log stored at path. The file is created on first append.
func Open(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Path returns the file backing the log.
func (l *Log) Path() string {
	return l.path
}

// Append chains e onto the log, filling in Timestamp, PrevHash and Hash.
func (l *Log) Append(e Entry) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return nil, fmt.Errorf("lock history: %w", err)
	}
	defer unlockFile(file)

	entries, err := readEntries(file)
	if err != nil {
		return nil, err
	}
	if n := len(entries); n > 0 {
		e.PrevHash = entries[n-1].Hash
	} else {
		e.PrevHash = ""
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	if e.Hash, err = entryHash(e); err != nil {
		return nil, err
	}

	line, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal history entry: %w", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("seek history: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("write history: %w", err)
	}
	if err := file.Sync(); err != nil {
		return nil, fmt.Errorf("sync history: %w", err)
	}
	return &e, nil
}

// Entries returns the recorded entries, newest first. server filters by
// server name when non-empty; limit caps the count when positive.
func (l *Log) Entries(server string, limit int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer file.Close()

	entries, err := readEntries(file)
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	if server != "" {
		entries = slices.DeleteFunc(entries, func(e Entry) bool { return e.Server != server })
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Verify walks the chain and returns an error naming the first entry whose
// hash or link does not match.
func (l *Log) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open history: %w", err)
	}
	defer file.Close()

	entries, err := readEntries(file)
	if err != nil {
		return err
	}
	prev := ""
	for i, e := range entries {
		if e.PrevHash != prev {
			return fmt.Errorf("history entry %d (run %s): broken chain", i+1, e.RunID)
		}
		want, err := entryHash(e)
		if err != nil {
			return err
		}
		if e.Hash != want {
			return fmt.Errorf("history entry %d (run %s): hash mismatch", i+1, e.RunID)
		}
		prev = e.Hash
	}
	return nil
}

// readEntries decodes every well-formed line of r from the start.
func readEntries(r io.ReadSeeker) ([]Entry, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek history: %w", err)
	}
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return entries, nil
}

func entryHash(e Entry) (string, error) {
	e.Hash = ""
	data, err := jsonutil.CanonicalMarshal(e)
	if err != nil {
		return "", fmt.Errorf("hash history entry: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
