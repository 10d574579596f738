package transfer

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/result"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/shell"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/logging"
)

var _ Engine = (*Rsync)(nil)

// Rsync is an Engine backed by the rsync binary.
type Rsync struct {
	runner shell.Runner

	// Binary is the rsync executable; defaults to "rsync".
	Binary string
	// Flags replace the default transfer flags.
	Flags []string
}

// DefaultFlags recurse, keep links, permissions, times and special files,
// compress, and compare by checksum rather than size+mtime.
var DefaultFlags = []string{"-rlptDz", "--checksum"}

// NewRsync returns an rsync engine that runs through runner.
func NewRsync(runner shell.Runner) *Rsync {
	if runner == nil {
		runner = shell.NewExec()
	}
	return &Rsync{runner: runner, Binary: "rsync"}
}

// Command builds the rsync command line for req.
func (r *Rsync) Command(req Request) string {
	bin := r.Binary
	if bin == "" {
		bin = "rsync"
	}
	flags := r.Flags
	if flags == nil {
		flags = DefaultFlags
	}

	words := []string{shell.Quote(bin)}
	for _, f := range flags {
		words = append(words, shell.Quote(f))
	}
	words = append(words, "--itemize-changes")
	if req.Delete {
		words = append(words, "--delete")
	}
	if req.DryRun {
		words = append(words, "--dry-run")
	}
	for _, p := range req.Excludes {
		words = append(words, "--exclude="+shell.Quote(p))
	}
	src := strings.TrimRight(req.Source, "/") + "/"
	words = append(words, shell.Quote(src), shell.Quote(req.Destination))
	return strings.Join(words, " ")
}

// Sync runs rsync and parses its itemized output.
func (r *Rsync) Sync(ctx context.Context, req Request) (*result.Result, error) {
	if req.Source == "" || req.Destination == "" {
		return nil, errclass.ErrTransfer.WithMessage("source and destination are required")
	}

	cmd := r.Command(req)
	logging.Debug("transfer command", map[string]any{"command": cmd})

	res, err := r.runner.Run(ctx, req.Source, cmd)
	if err != nil {
		var exitErr *shell.ExitError
		if errors.As(err, &exitErr) {
			return nil, errclass.ErrTransfer.
				WithMessagef("rsync to %s failed with exit code %d", req.Destination, exitErr.ExitCode).
				WithOutput(exitErr.Stderr)
		}
		return nil, errclass.ErrTransfer.WithMessagef("rsync to %s: %v", req.Destination, err)
	}

	return ParseItemized(res.Stdout), nil
}

// ParseItemized converts "rsync --itemize-changes" output into a Result.
// Lines that are not itemized changes (headers, statistics) are skipped.
func ParseItemized(out string) *result.Result {
	var b result.Builder
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if rec, ok := ParseLine(sc.Text()); ok {
			b.Add(rec)
		}
	}
	return b.Result()
}

// ParseLine parses one itemize line of the form "YXcstpoguax name" or
// "*deleting name".
func ParseLine(line string) (result.ChangeRecord, bool) {
	line = strings.TrimRight(line, "\r")

	if rest, ok := strings.CutPrefix(line, "*deleting"); ok {
		name := strings.TrimLeft(rest, " ")
		if name == "" {
			return result.ChangeRecord{}, false
		}
		ft := result.File
		if strings.HasSuffix(name, "/") {
			ft = result.Directory
		}
		return result.ChangeRecord{Filename: name, FileType: ft, Update: result.Deleted}, true
	}

	flags, name, ok := strings.Cut(line, " ")
	if !ok || len(flags) < 2 || name == "" {
		return result.ChangeRecord{}, false
	}

	update, ok := updateKinds[flags[0]]
	if !ok {
		return result.ChangeRecord{}, false
	}
	ft, ok := fileTypes[flags[1]]
	if !ok {
		return result.ChangeRecord{}, false
	}

	// symlinks print "name -> target", hard links "name => target"
	switch {
	case ft == result.Symlink:
		name, _, _ = strings.Cut(name, " -> ")
	case flags[0] == 'h':
		name, _, _ = strings.Cut(name, " => ")
	}

	return result.ChangeRecord{
		Filename: name,
		FileType: ft,
		Update:   update,
		Reason:   reasons(flags[2:]),
	}, true
}

var updateKinds = map[byte]result.UpdateKind{
	'<': result.Sent,
	'>': result.Received,
	'c': result.Created,
	'h': result.Created,
	'.': result.Attributes,
}

var fileTypes = map[byte]result.FileType{
	'f': result.File,
	'd': result.Directory,
	'L': result.Symlink,
	'D': result.Device,
	'S': result.Special,
}

// attribute letters by position within the "cstpoguax" suffix
var attributeReasons = []struct {
	letters string
	reason  result.Reason
}{
	{"c", result.ReasonChecksum},
	{"s", result.ReasonSize},
	{"tT", result.ReasonTime},
	{"p", result.ReasonPermissions},
	{"o", result.ReasonOwner},
	{"g", result.ReasonGroupOwner},
	{"", ""}, // u/n/b: access/create time, not reported
	{"a", result.ReasonACL},
	{"x", result.ReasonXattr},
}

func reasons(attrs string) result.Reasons {
	if attrs == "" {
		return nil
	}
	if strings.Trim(attrs, "+") == "" {
		return result.Reasons{result.ReasonNew}
	}
	var out result.Reasons
	for i := 0; i < len(attrs) && i < len(attributeReasons); i++ {
		ar := attributeReasons[i]
		if ar.letters != "" && strings.IndexByte(ar.letters, attrs[i]) >= 0 {
			out = append(out, ar.reason)
		}
	}
	return out
}
