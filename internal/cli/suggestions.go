package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/color"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/config"
)

// suggestServers provides a hint for an unknown server name.
func suggestServers(name string, cfg *config.Config) string {
	names := cfg.ServerNames()
	if len(names) == 0 {
		return "No servers are configured."
	}

	var matches []string
	lower := strings.ToLower(name)
	for _, n := range names {
		if strings.HasPrefix(strings.ToLower(n), lower) {
			matches = append(matches, color.Server(n))
		}
	}
	if len(matches) == 0 {
		for _, n := range names {
			if strings.Contains(strings.ToLower(n), lower) || strings.Contains(lower, strings.ToLower(n)) {
				matches = append(matches, color.Server(n))
			}
		}
	}

	if len(matches) > 0 {
		hint := "Did you mean"
		if len(matches) > 1 {
			hint += " one of"
		}
		return fmt.Sprintf("%s: %s?", hint, strings.Join(matches, ", "))
	}

	all := make([]string, len(names))
	for i, n := range names {
		all[i] = color.Server(n)
	}
	return fmt.Sprintf("Available servers: %s", strings.Join(all, ", "))
}

// completeServers completes configured server names.
func completeServers(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	p, err := loadProject(false)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, n := range p.cfg.ServerNames() {
		if strings.HasPrefix(n, toComplete) {
			out = append(out, n)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
