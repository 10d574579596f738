// Package shell is the single place beam starts external processes.
//
// Every command is a shell command line executed with "sh -c" in a given
// working directory. Callers that interpolate user input must pass it
// through Quote first.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExitError is returned when a command ran but exited non-zero, or could not
// be started at all (ExitCode -1).
type ExitError struct {
	Command string
	Result
	Err error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Runner runs shell command lines.
type Runner interface {
	Run(ctx context.Context, dir, command string) (*Result, error)
}

// Exec runs commands through /bin/sh on the local machine.
type Exec struct {
	// Shell is the interpreter used for "-c"; defaults to "sh".
	Shell string

	// Env, when non-nil, replaces the process environment.
	Env []string

	// Stdout and Stderr receive a live copy of the output in addition to
	// the captured Result. Used for streaming deploy commands to the terminal.
	Stdout io.Writer
	Stderr io.Writer
}

// NewExec returns a Runner backed by sh.
func NewExec() *Exec {
	return &Exec{Shell: "sh"}
}

// Run executes command in dir and waits for it to finish.
func (e *Exec) Run(ctx context.Context, dir, command string) (*Result, error) {
	sh := e.Shell
	if sh == "" {
		sh = "sh"
	}

	cmd := exec.CommandContext(ctx, sh, "-c", command)
	cmd.Dir = dir
	if e.Env != nil {
		cmd.Env = e.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if e.Stdout != nil {
		cmd.Stdout = io.MultiWriter(&stdout, e.Stdout)
	}
	if e.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, e.Stderr)
	}

	err := cmd.Run()
	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return res, nil
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return res, &ExitError{Command: command, Result: *res, Err: err}
}

// Quote wraps s in single quotes, escaping any embedded single quotes, so it
// is passed to the shell as exactly one literal word.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Join quotes each word and joins them into a command line.
func Join(words ...string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = Quote(w)
	}
	return strings.Join(quoted, " ")
}
