// Package git implements vcs.GitLikeProvider by shelling out to the git
// binary inside the source directory.
package git

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/shell"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/vcs"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/logging"
)

// Name is the backend name used in configuration.
const Name = "git"

func init() {
	vcs.Register(Name, func(dir string, runner shell.Runner) vcs.Provider {
		return New(dir, runner)
	})
}

var _ vcs.GitLikeProvider = (*Git)(nil)

// Git is a provider for a git working copy at Dir.
type Git struct {
	dir    string
	runner shell.Runner

	// accountName supplies the identity used when git has no user.name.
	accountName func() string
}

// New returns a Git provider for dir. A nil runner runs commands locally.
func New(dir string, runner shell.Runner) *Git {
	if runner == nil {
		runner = shell.NewExec()
	}
	return &Git{
		dir:         dir,
		runner:      runner,
		accountName: osAccountName,
	}
}

// Dir returns the source directory.
func (g *Git) Dir() string {
	return g.dir
}

// CurrentBranch returns the checked-out branch ("HEAD" when detached).
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	return g.run(ctx, "git rev-parse --abbrev-ref HEAD")
}

// AvailableBranches lists branches as printed by "git branch -a".
func (g *Git) AvailableBranches(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "git branch -a")
	if err != nil {
		return nil, err
	}
	lines := parseBranches(out)
	branches := make([]string, 0, len(lines))
	for _, l := range lines {
		branches = append(branches, l.name)
	}
	return branches, nil
}

// Exists reports whether dir contains a .git directory or gitfile.
func (g *Git) Exists() bool {
	_, err := os.Stat(filepath.Join(g.dir, ".git"))
	return err == nil
}

// IsValidRef reports whether ref names a commit.
func (g *Git) IsValidRef(ctx context.Context, ref string) bool {
	_, err := g.run(ctx, "git rev-parse --verify --quiet "+shell.Quote(ref+"^{commit}"))
	return err == nil
}

// ExportRef replaces location with the tree of ref.
func (g *Git) ExportRef(ctx context.Context, ref, location string) error {
	abs, err := filepath.Abs(location)
	if err != nil {
		return errclass.ErrVcs.WithMessagef("resolve export location %s: %v", location, err)
	}
	if err := os.RemoveAll(abs); err != nil {
		return errclass.ErrVcs.WithMessagef("clear export location %s: %v", abs, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return errclass.ErrVcs.WithMessagef("create export location %s: %v", abs, err)
	}

	archive, err := os.CreateTemp("", "beam-export-*.tar")
	if err != nil {
		return errclass.ErrVcs.WithMessagef("create export archive: %v", err)
	}
	archivePath := archive.Name()
	archive.Close()
	defer os.Remove(archivePath)

	if _, err := g.run(ctx, fmt.Sprintf("git archive --format=tar --output=%s %s",
		shell.Quote(archivePath), shell.Quote(ref))); err != nil {
		return err
	}
	if _, err := g.run(ctx, fmt.Sprintf("tar -x -f %s -C %s",
		shell.Quote(archivePath), shell.Quote(abs))); err != nil {
		return err
	}

	logging.Debug("exported ref", map[string]any{"ref": ref, "location": abs})
	return nil
}

// UpdateBranch fetches and prunes the remote that branch tracks.
func (g *Git) UpdateBranch(ctx context.Context, branch string) error {
	remote, _, ok := vcs.RemoteName(branch)
	if !ok {
		return errclass.ErrConfiguration.WithMessagef("branch %q is not a remote branch and cannot be updated", branch)
	}
	_, err := g.run(ctx, "git remote update --prune "+shell.Quote(remote))
	return err
}

// Log returns the deployer, the ref and the last commit at ref.
func (g *Git) Log(ctx context.Context, ref string) (string, error) {
	identity := g.UserIdentity(ctx)
	out, err := g.run(ctx, "git log -1 --format=medium "+shell.Quote(ref))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Deployer: %s\nRef: %s\n%s\n", identity, ref, out), nil
}

// IsRemote reports whether branch is remotes/<remote>/<branch>.
func (g *Git) IsRemote(branch string) bool {
	return vcs.IsRemote(branch)
}

// ResolveReference returns the commit id ref points at.
func (g *Git) ResolveReference(ctx context.Context, ref string, abbreviated bool) (string, error) {
	short := ""
	if abbreviated {
		short = "--short "
	}
	return g.run(ctx, "git rev-parse --verify "+short+shell.Quote(ref+"^{commit}"))
}

// BranchForReference returns a branch containing ref, preferring the
// checked-out branch and otherwise the first one git lists. When ref is
// reachable from several branches this is a guess.
func (g *Git) BranchForReference(ctx context.Context, ref string) (string, error) {
	out, err := g.run(ctx, "git branch -a --contains "+shell.Quote(ref))
	if err != nil {
		return "", err
	}
	lines := parseBranches(out)
	if len(lines) == 0 {
		return "", errclass.ErrVcs.WithMessagef("no branch contains %s", ref)
	}
	for _, l := range lines {
		if l.current {
			return l.name, nil
		}
	}
	return lines[0].name, nil
}

// UserIdentity returns "Name <email>" from git config. A missing name falls
// back to the OS account; a missing email yields the name alone.
func (g *Git) UserIdentity(ctx context.Context) string {
	name := g.configValue(ctx, "user.name")
	if name == "" {
		return g.accountName()
	}
	email := g.configValue(ctx, "user.email")
	if email == "" {
		return name
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

// configValue reads a git config key. Unset keys make git exit 1, which is
// reported as an empty value.
func (g *Git) configValue(ctx context.Context, key string) string {
	out, err := g.run(ctx, "git config "+shell.Quote(key))
	if err != nil {
		logging.Debug("git config lookup failed", map[string]any{"key": key, "error": err.Error()})
		return ""
	}
	return strings.TrimSpace(out)
}

// run is the only path to the subprocess layer. Any failure becomes
// errclass.ErrVcs with git's stderr attached.
func (g *Git) run(ctx context.Context, command string) (string, error) {
	logging.Debug("vcs command", map[string]any{"dir": g.dir, "command": command})

	res, err := g.runner.Run(ctx, g.dir, command)
	if err != nil {
		var exitErr *shell.ExitError
		if errors.As(err, &exitErr) {
			return "", errclass.ErrVcs.
				WithMessagef("%s: exit code %d", command, exitErr.ExitCode).
				WithOutput(exitErr.Stderr)
		}
		return "", errclass.ErrVcs.WithMessagef("%s: %v", command, err)
	}
	return strings.TrimRight(res.Stdout, "\r\n"), nil
}

type branchLine struct {
	name    string
	current bool
}

// parseBranches reads "git branch" output. The current branch is marked
// with a leading "*"; symbolic refs print as "name -> target" and are
// reported by name. Detached-HEAD placeholders such as
// "(HEAD detached at 1a2b3c)" are not branches and are skipped.
func parseBranches(out string) []branchLine {
	var lines []branchLine
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		current := false
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, "*"); ok {
			current = true
			trimmed = strings.TrimSpace(rest)
		} else if rest, ok := strings.CutPrefix(trimmed, "+"); ok {
			// checked out in another worktree
			trimmed = strings.TrimSpace(rest)
		}
		if name, _, ok := strings.Cut(trimmed, " -> "); ok {
			trimmed = strings.TrimSpace(name)
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "(") {
			continue
		}
		lines = append(lines, branchLine{name: trimmed, current: current})
	}
	return lines
}

func osAccountName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, key := range []string{"USER", "USERNAME", "LOGNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}
