// Package deploy drives a deployment: it resolves the ref to ship, exports
// a clean snapshot of it, runs the configured commands around the transfer,
// and collects what the transfer changed on each server.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/history"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/lock"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/result"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/shell"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/transfer"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/vcs"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/config"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/fsutil"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/logging"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/pathutil"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/progress"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/webhook"
)

// Options select what a run deploys.
type Options struct {
	// Servers to deploy to, in order.
	Servers []string
	// Ref overrides the server's pinned branch and the current branch.
	Ref string
	// DryRun asks the engine to report without changing the target.
	DryRun bool
	// UpdateRemote refreshes remote-tracking refs before exporting.
	UpdateRemote bool
	// Progress receives per-server step updates.
	Progress progress.Callback
}

// Outcome is what happened on one server.
type Outcome struct {
	RunID    string         `json:"run_id"`
	Server   string         `json:"server"`
	Ref      string         `json:"ref"`
	Revision string         `json:"revision,omitempty"`
	Deployer string         `json:"deployer,omitempty"`
	DryRun   bool           `json:"dry_run"`
	Duration time.Duration  `json:"duration_ns"`
	Result   *result.Result `json:"result"`
}

// Notifier receives deployment events.
type Notifier interface {
	Send(ctx context.Context, event webhook.Event) error
}

// Deps are the collaborators a Driver works through. VCS is required; the
// rest default to rsync over the exec runner, a lock manager under the
// staging root and the global logger. Nil History and Notifier disable
// those features.
type Deps struct {
	VCS      vcs.Provider
	Engine   transfer.Engine
	Runner   shell.Runner
	Logger   *logging.Logger
	Locks    *lock.Manager
	History  *history.Log
	Notifier Notifier
}

// Driver runs deployments for one source tree.
type Driver struct {
	cfg       *config.Config
	sourceDir string
	vcs       vcs.Provider
	engine    transfer.Engine
	runner    shell.Runner
	logger    *logging.Logger
	locks     *lock.Manager
	history   *history.Log
	notifier  Notifier
	newRunID  func() string
}

// New creates a Driver for sourceDir.
func New(cfg *config.Config, sourceDir string, deps Deps) *Driver {
	d := &Driver{
		cfg:       cfg,
		sourceDir: sourceDir,
		vcs:       deps.VCS,
		engine:    deps.Engine,
		runner:    deps.Runner,
		logger:    deps.Logger,
		locks:     deps.Locks,
		history:   deps.History,
		notifier:  deps.Notifier,
		newRunID:  func() string { return uuid.New().String() },
	}
	if d.runner == nil {
		d.runner = shell.NewExec()
	}
	if d.engine == nil {
		d.engine = transfer.NewRsync(d.runner)
	}
	if d.logger == nil {
		d.logger = logging.Global()
	}
	if d.locks == nil {
		d.locks = lock.NewManager(cfg.StagingPath(sourceDir), lock.DefaultTTL)
	}
	return d
}

const stepsPerServer = 5

// Run deploys to each server in opts.Servers in turn. It stops at the first
// failing server and returns the outcomes of the servers that completed.
func (d *Driver) Run(ctx context.Context, opts Options) ([]*Outcome, error) {
	if len(opts.Servers) == 0 {
		return nil, errclass.ErrConfiguration.WithMessage("no server given")
	}
	if d.vcs == nil || !d.vcs.Exists() {
		return nil, errclass.ErrVcs.WithMessagef("%s is not under version control", d.sourceDir)
	}

	runID := d.newRunID()
	log := d.logger.WithFields(map[string]any{"run_id": runID})
	log.Info("deployment started", map[string]any{"servers": opts.Servers, "dry_run": opts.DryRun})

	var deployer string
	if gl, ok := d.vcs.(vcs.GitLikeProvider); ok {
		deployer = gl.UserIdentity(ctx)
	}

	var outcomes []*Outcome
	for _, name := range opts.Servers {
		d.notify(ctx, log, webhook.Event{
			Event: webhook.EventDeployStarted, RunID: runID, Server: name,
			Ref: opts.Ref, Deployer: deployer, DryRun: opts.DryRun,
		})
		out, err := d.deployServer(ctx, runID, deployer, name, opts, log)
		if err != nil {
			log.ErrorErr("deployment failed", err, map[string]any{"server": name})
			d.record(ctx, log, history.Entry{
				RunID: runID, Server: name, Ref: opts.Ref, Deployer: deployer,
				DryRun: opts.DryRun, Status: history.StatusFailed, Error: err.Error(),
			})
			return outcomes, fmt.Errorf("deploy %s: %w", name, err)
		}
		d.record(ctx, log, history.Entry{
			RunID: runID, Server: out.Server, Ref: out.Ref, Revision: out.Revision, Deployer: deployer,
			DryRun: out.DryRun, Status: history.StatusSucceeded, Totals: totalsMap(out.Result.Summarize()),
		})
		outcomes = append(outcomes, out)
	}

	log.Info("deployment finished", map[string]any{"servers": len(outcomes)})
	return outcomes, nil
}

func (d *Driver) deployServer(ctx context.Context, runID, deployer, name string, opts Options, log *logging.Logger) (*Outcome, error) {
	start := time.Now()
	server, err := d.cfg.Server(name)
	if err != nil {
		return nil, err
	}
	name = pathutil.NormalizeName(name)

	ref, err := d.ResolveRef(ctx, server, opts.Ref)
	if err != nil {
		return nil, err
	}
	log = log.WithFields(map[string]any{"server": name, "ref": ref})
	p := progress.New("deploy "+name, stepsPerServer, opts.Progress)

	held, err := d.locks.Acquire(name, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := d.locks.Release(name, held.Holder); err != nil {
			log.Warn("release staging lock", map[string]any{"error": err.Error()})
		}
	}()

	if opts.UpdateRemote && d.vcs.IsRemote(ref) {
		log.Info("updating remote branch")
		if err := d.vcs.UpdateBranch(ctx, ref); err != nil {
			return nil, err
		}
	}
	if !d.vcs.IsValidRef(ctx, ref) {
		return nil, errclass.ErrVcs.WithMessagef("%s is not a valid reference", ref)
	}
	var revision string
	if gl, ok := d.vcs.(vcs.GitLikeProvider); ok {
		if revision, err = gl.ResolveReference(ctx, ref, true); err != nil {
			return nil, err
		}
	}
	p.Increment("resolved " + ref)

	staging := filepath.Join(d.cfg.StagingPath(d.sourceDir), name)
	if err := d.export(ctx, ref, staging); err != nil {
		return nil, err
	}
	log.Info("exported snapshot", map[string]any{"revision": revision, "location": staging})
	p.Increment("exported")

	vars := map[string]string{
		"server":   name,
		"ref":      ref,
		"revision": revision,
		"webroot":  server.Webroot,
		"staging":  staging,
		"deployer": deployer,
		"run_id":   runID,
	}
	if err := d.runCommands(ctx, config.PhasePre, name, server, staging, opts.DryRun, vars, log); err != nil {
		return nil, err
	}
	p.Increment("pre commands")

	res, err := d.engine.Sync(ctx, transfer.Request{
		Source:      staging,
		Destination: server.Destination(),
		Excludes:    d.cfg.ExcludesFor(name),
		DryRun:      opts.DryRun,
		Delete:      true,
	})
	if err != nil {
		return nil, err
	}
	totals := res.Summarize()
	log.Info("transfer complete", map[string]any{
		"sent":       totals[result.Sent],
		"created":    totals[result.Created],
		"deleted":    totals[result.Deleted],
		"attributes": totals[result.Attributes],
	})
	p.Increment("synced")

	if opts.DryRun {
		log.Info("dry run: skipping post commands")
	} else if err := d.runCommands(ctx, config.PhasePost, name, server, staging, false, vars, log); err != nil {
		return nil, err
	}
	p.Done("done")

	return &Outcome{
		RunID:    runID,
		Server:   name,
		Ref:      ref,
		Revision: revision,
		Deployer: deployer,
		DryRun:   opts.DryRun,
		Duration: time.Since(start),
		Result:   res,
	}, nil
}

// ResolveRef picks the ref to deploy to server: the explicit ref, else the
// server's pinned branch, else the current branch. A pinned server only
// accepts refs that belong to its branch.
func (d *Driver) ResolveRef(ctx context.Context, server *config.Server, ref string) (string, error) {
	if ref == "" {
		ref = server.Branch
	}
	if ref == "" {
		current, err := d.vcs.CurrentBranch(ctx)
		if err != nil {
			return "", err
		}
		ref = current
	}
	if server.Branch == "" || ref == server.Branch {
		return ref, nil
	}

	gl, ok := d.vcs.(vcs.GitLikeProvider)
	if !ok {
		return "", errclass.ErrConfiguration.WithMessagef("server only accepts %s, got %s", server.Branch, ref)
	}
	// same commit under another name
	if want, err := gl.ResolveReference(ctx, server.Branch, false); err == nil {
		if got, err := gl.ResolveReference(ctx, ref, false); err == nil && got == want {
			return ref, nil
		}
	}
	branch, err := gl.BranchForReference(ctx, ref)
	if err != nil && !errors.Is(err, errclass.ErrVcs) {
		return "", err
	}
	if branch != server.Branch {
		return "", errclass.ErrConfiguration.WithMessagef("server only accepts %s, but %s belongs to %q", server.Branch, ref, branch)
	}
	return ref, nil
}

func (d *Driver) export(ctx context.Context, ref, staging string) error {
	if err := pathutil.ValidateStagingPath(d.sourceDir, staging); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(staging), 0755); err != nil {
		return fmt.Errorf("create staging parent: %w", err)
	}
	if err := d.vcs.ExportRef(ctx, ref, staging); err != nil {
		return err
	}
	if d.cfg.LogFile == "" {
		return nil
	}
	entry, err := d.vcs.Log(ctx, ref)
	if err != nil {
		return err
	}
	if err := fsutil.AtomicWrite(filepath.Join(staging, d.cfg.LogFile), []byte(entry), 0644); err != nil {
		return fmt.Errorf("write deploy log: %w", err)
	}
	return nil
}

// record appends e to the deploy history and sends the matching webhook
// event. Neither failure aborts the run.
func (d *Driver) record(ctx context.Context, log *logging.Logger, e history.Entry) {
	if d.history != nil {
		if _, err := d.history.Append(e); err != nil {
			log.Warn("append deploy history", map[string]any{"error": err.Error()})
		}
	}
	event := webhook.EventDeployCompleted
	if e.Status == history.StatusFailed {
		event = webhook.EventDeployFailed
	}
	d.notify(ctx, log, webhook.Event{
		Event: event, RunID: e.RunID, Server: e.Server, Ref: e.Ref, Revision: e.Revision,
		Deployer: e.Deployer, DryRun: e.DryRun, Error: e.Error, Totals: e.Totals,
	})
}

func (d *Driver) notify(ctx context.Context, log *logging.Logger, event webhook.Event) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Send(ctx, event); err != nil {
		log.Warn("webhook delivery failed", map[string]any{"event": string(event.Event), "error": err.Error()})
	}
}

func totalsMap(t result.Totals) map[string]int {
	out := make(map[string]int, len(t))
	for k, v := range t {
		out[string(k)] = v
	}
	return out
}
