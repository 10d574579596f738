package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
)

// promptInput is where confirmations are read from.
var promptInput io.Reader = os.Stdin

// stdinIsTerminal reports whether a person can answer a prompt.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// confirm asks question on out and waits for a yes/no answer. It refuses
// with ErrAborted when nobody can answer or the answer is not yes.
func confirm(out io.Writer, question string) error {
	if !stdinIsTerminal() {
		return errclass.ErrAborted.WithMessage("refusing to deploy without confirmation; pass --yes to run non-interactively")
	}
	fmt.Fprintf(out, "%s [y/N] ", question)

	answer, err := bufio.NewReader(promptInput).ReadString('\n')
	if err != nil && answer == "" {
		return errclass.ErrAborted.WithMessage("no answer")
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	default:
		return errclass.ErrAborted.WithMessage("deployment cancelled")
	}
}
