package shell

import (
	"context"
	"strings"
	"sync"
)

// Response is a canned reply for Fake.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Call records one invocation seen by Fake.
type Call struct {
	Dir     string
	Command string
}

// Fake is a Runner that returns canned responses instead of starting
// processes. Responses are matched by exact command line first, then by the
// longest registered prefix. Unmatched commands succeed with empty output.
type Fake struct {
	mu        sync.Mutex
	exact     map[string]Response
	prefixes  map[string]Response
	calls     []Call
	OnCommand func(dir, command string)
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{
		exact:    make(map[string]Response),
		prefixes: make(map[string]Response),
	}
}

// On registers a response for an exact command line.
func (f *Fake) On(command string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exact[command] = resp
	return f
}

// OnPrefix registers a response for any command starting with prefix.
func (f *Fake) OnPrefix(prefix string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes[prefix] = resp
	return f
}

// Calls returns the commands run so far, in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Commands returns just the command lines run so far.
func (f *Fake) Commands() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Command
	}
	return out
}

// Run implements Runner.
func (f *Fake) Run(ctx context.Context, dir, command string) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Dir: dir, Command: command})
	resp, ok := f.exact[command]
	if !ok {
		best := -1
		for p, r := range f.prefixes {
			if strings.HasPrefix(command, p) && len(p) > best {
				best = len(p)
				resp = r
			}
		}
	}
	hook := f.OnCommand
	f.mu.Unlock()

	if hook != nil {
		hook(dir, command)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}
	if resp.ExitCode != 0 {
		return res, &ExitError{Command: command, Result: *res}
	}
	return res, nil
}
