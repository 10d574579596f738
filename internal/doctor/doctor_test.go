package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/history"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/lock"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/config"
)

type stubVCS struct{ exists bool }

func (s stubVCS) CurrentBranch(context.Context) (string, error)       { return "master", nil }
func (s stubVCS) AvailableBranches(context.Context) ([]string, error) { return nil, nil }
func (s stubVCS) Exists() bool                                        { return s.exists }
func (s stubVCS) ExportRef(context.Context, string, string) error     { return nil }
func (s stubVCS) UpdateBranch(context.Context, string) error          { return nil }
func (s stubVCS) Log(context.Context, string) (string, error)         { return "", nil }
func (s stubVCS) IsRemote(string) bool                                { return false }
func (s stubVCS) IsValidRef(context.Context, string) bool             { return true }

func newDoctor(t *testing.T, exists bool) (*Doctor, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.StagingDir = t.TempDir()
	cfg.Servers = map[string]*config.Server{
		"live": {User: "deploy", Host: "example.com", Webroot: "/var/www"},
	}
	d := New(cfg, t.TempDir(), stubVCS{exists: exists})
	d.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	return d, cfg
}

func categories(r *Result) []string {
	var out []string
	for _, f := range r.Findings {
		out = append(out, f.Category)
	}
	return out
}

func TestDoctor_Healthy(t *testing.T) {
	d, _ := newDoctor(t, true)
	result := d.Check()
	assert.True(t, result.Healthy)
	assert.Empty(t, result.Findings)
}

func TestDoctor_MissingRepository(t *testing.T) {
	d, _ := newDoctor(t, false)
	result := d.Check()
	assert.False(t, result.Healthy)
	assert.Equal(t, []string{"vcs"}, categories(result))
}

func TestDoctor_InvalidConfig(t *testing.T) {
	d, cfg := newDoctor(t, true)
	cfg.Servers["live"].Webroot = ""
	result := d.Check()
	assert.False(t, result.Healthy)
	assert.Contains(t, categories(result), "config")
}

func TestDoctor_MissingTools(t *testing.T) {
	d, _ := newDoctor(t, true)
	var looked []string
	d.lookPath = func(name string) (string, error) {
		looked = append(looked, name)
		if name == "rsync" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}
	result := d.Check()
	assert.False(t, result.Healthy)
	assert.ElementsMatch(t, []string{"rsync", "git", "tar", "ssh"}, looked)
	require.Len(t, result.Findings, 1)
	assert.Contains(t, result.Findings[0].Description, "rsync")
}

func TestDoctor_UnsafeStaging(t *testing.T) {
	d, cfg := newDoctor(t, true)
	// staging for "live" is the source tree itself
	parent := t.TempDir()
	d.sourceDir = filepath.Join(parent, "live")
	require.NoError(t, os.MkdirAll(d.sourceDir, 0755))
	cfg.StagingDir = ".."

	result := d.Check()
	assert.False(t, result.Healthy)
	assert.Contains(t, categories(result), "staging")
}

func TestDoctor_Locks(t *testing.T) {
	d, cfg := newDoctor(t, true)
	_, err := lock.NewManager(cfg.StagingDir, lock.DefaultTTL).Acquire("live", "run-1")
	require.NoError(t, err)

	result := d.Check()
	assert.True(t, result.Healthy)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, SeverityWarning, result.Findings[0].Severity)
	assert.Contains(t, result.Findings[0].Description, "run-1")
}

func TestDoctor_TamperedHistory(t *testing.T) {
	d, cfg := newDoctor(t, true)
	path := filepath.Join(cfg.StagingDir, history.FileName)
	_, err := history.Open(path).Append(history.Entry{RunID: "r1", Server: "live"})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append([]byte(`{"run_id":"forged","hash":"x"}`+"\n"), data...), 0644))

	result := d.Check()
	assert.False(t, result.Healthy)
	assert.Contains(t, categories(result), "history")
}

func TestDoctor_OrphanTmp(t *testing.T) {
	d, cfg := newDoctor(t, true)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.StagingDir, ".beam-tmp-123"), nil, 0644))

	result := d.Check()
	assert.True(t, result.Healthy)
	assert.Equal(t, []string{"tmp"}, categories(result))
	assert.Equal(t, filepath.Join(cfg.StagingDir, ".beam-tmp-123"), result.Findings[0].Path)
}
