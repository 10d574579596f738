package deploy

import (
	"context"
	"errors"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/shell"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/config"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/logging"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/template"
)

// runCommands runs the commands of phase for server. Local commands run in
// the staging directory. Target commands run in the webroot, over ssh for
// remote servers, and are skipped on dry runs. Placeholders such as {ref}
// are expanded from vars first. A failing required command aborts; any
// other failure is logged.
func (d *Driver) runCommands(ctx context.Context, phase config.Phase, name string, server *config.Server, staging string, dryRun bool, vars map[string]string, log *logging.Logger) error {
	for _, c := range d.cfg.CommandsFor(phase, name) {
		c.Command = template.Expand(c.Command, vars)
		fields := map[string]any{"phase": string(phase), "location": string(c.Location), "command": c.Command}
		if c.Location == config.LocationTarget && dryRun {
			log.Info("dry run: skipping target command", fields)
			continue
		}

		dir, line := commandLine(c, server, staging)
		log.Info("running command", fields)
		if _, err := d.runner.Run(ctx, dir, line); err != nil {
			var output string
			var exitErr *shell.ExitError
			if errors.As(err, &exitErr) {
				output = exitErr.Stderr
			}
			if c.Required {
				return errclass.ErrCommand.
					WithMessagef("%s command %q failed on %s: %v", phase, c.Command, name, err).
					WithOutput(output)
			}
			log.Warn("command failed", mergeFields(fields, map[string]any{"error": err.Error()}))
		}
	}
	return nil
}

// commandLine returns the working directory and shell line for c.
func commandLine(c config.Command, server *config.Server, staging string) (dir, line string) {
	if c.Location != config.LocationTarget {
		return staging, c.Command
	}
	if !server.Remote() {
		return server.Webroot, c.Command
	}
	remote := "cd " + shell.Quote(server.Webroot) + " && " + c.Command
	return staging, "ssh " + shell.Quote(server.SSHTarget()) + " " + shell.Quote(remote)
}

func mergeFields(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
