// Package doctor checks that a source tree is ready to deploy.
package doctor

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/history"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/lock"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/vcs"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/config"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/fsutil"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/pathutil"
)

// Severities, from least to most serious. Error and critical findings make
// the result unhealthy.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == SeverityError || f.Severity == SeverityCritical {
		r.Healthy = false
	}
}

// Doctor performs deployment readiness checks.
type Doctor struct {
	cfg       *config.Config
	sourceDir string
	vcs       vcs.Provider
	lookPath  func(string) (string, error)
}

// New creates a doctor for sourceDir. provider may be nil when the VCS
// backend could not be opened.
func New(cfg *config.Config, sourceDir string, provider vcs.Provider) *Doctor {
	return &Doctor{cfg: cfg, sourceDir: sourceDir, vcs: provider, lookPath: exec.LookPath}
}

// Check runs all diagnostic checks.
func (d *Doctor) Check() *Result {
	result := &Result{Healthy: true, Findings: []Finding{}}

	d.checkConfig(result)
	d.checkTools(result)
	d.checkRepository(result)
	d.checkStaging(result)
	d.checkLocks(result)
	d.checkHistory(result)
	d.checkOrphanTmp(result)

	return result
}

func (d *Doctor) checkConfig(result *Result) {
	if err := d.cfg.Validate(); err != nil {
		result.add(Finding{Category: "config", Description: err.Error(), Severity: SeverityCritical})
	}
}

func (d *Doctor) checkTools(result *Result) {
	tools := []string{"rsync"}
	if d.cfg.VCS == "" || d.cfg.VCS == "git" {
		tools = append(tools, "git", "tar")
	}
	for _, name := range d.cfg.ServerNames() {
		if s := d.cfg.Servers[name]; s != nil && s.Remote() {
			tools = append(tools, "ssh")
			break
		}
	}
	for _, tool := range tools {
		if _, err := d.lookPath(tool); err != nil {
			result.add(Finding{
				Category:    "tools",
				Description: fmt.Sprintf("%s not found on PATH", tool),
				Severity:    SeverityError,
			})
		}
	}
}

func (d *Doctor) checkRepository(result *Result) {
	if d.vcs == nil || !d.vcs.Exists() {
		result.add(Finding{
			Category:    "vcs",
			Description: fmt.Sprintf("%s is not a %s repository", d.sourceDir, d.cfg.VCS),
			Severity:    SeverityCritical,
			Path:        d.sourceDir,
		})
	}
}

func (d *Doctor) checkStaging(result *Result) {
	root := d.cfg.StagingPath(d.sourceDir)
	for _, name := range d.cfg.ServerNames() {
		staging := filepath.Join(root, name)
		if err := pathutil.ValidateStagingPath(d.sourceDir, staging); err != nil {
			result.add(Finding{
				Category:    "staging",
				Description: fmt.Sprintf("server %s: %v", name, err),
				Severity:    SeverityCritical,
				Path:        staging,
			})
		}
	}
}

func (d *Doctor) checkLocks(result *Result) {
	mgr := lock.NewManager(d.cfg.StagingPath(d.sourceDir), lock.DefaultTTL)
	recs, err := mgr.List()
	if err != nil {
		result.add(Finding{Category: "lock", Description: err.Error(), Severity: SeverityWarning})
		return
	}
	for _, rec := range recs {
		if mgr.Expired(rec) {
			result.add(Finding{
				Category:    "lock",
				Description: fmt.Sprintf("expired lock on server '%s' (since %s)", rec.Server, rec.ExpiresAt.Format(time.RFC3339)),
				Severity:    SeverityInfo,
			})
			continue
		}
		result.add(Finding{
			Category:    "lock",
			Description: fmt.Sprintf("server '%s' is locked by run %s (pid %d on %s)", rec.Server, rec.RunID, rec.PID, rec.Hostname),
			Severity:    SeverityWarning,
		})
	}
}

func (d *Doctor) checkHistory(result *Result) {
	path := filepath.Join(d.cfg.StagingPath(d.sourceDir), history.FileName)
	if err := history.Open(path).Verify(); err != nil {
		result.add(Finding{
			Category:    "history",
			Description: err.Error(),
			Severity:    SeverityError,
			Path:        path,
		})
	}
}

func (d *Doctor) checkOrphanTmp(result *Result) {
	orphans, err := fsutil.Orphans(d.cfg.StagingPath(d.sourceDir))
	if err != nil {
		return
	}
	for _, path := range orphans {
		result.add(Finding{
			Category:    "tmp",
			Description: fmt.Sprintf("orphan temp file: %s", filepath.Base(path)),
			Severity:    SeverityInfo,
			Path:        path,
		})
	}
}
