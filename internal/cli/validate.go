package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/color"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration",
	Long: `Check that the configuration file parses and is valid, and that every
branch a server is pinned to exists in the repository.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(true)
		if err != nil {
			return err
		}

		var problems []string
		for _, name := range p.cfg.ServerNames() {
			s := p.cfg.Servers[name]
			if s.Branch != "" && !p.vcs.IsValidRef(cmd.Context(), s.Branch) {
				problems = append(problems, fmt.Sprintf("server %s: branch %s does not exist", name, s.Branch))
			}
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := outputJSON(out, map[string]any{
				"config":   p.configFile,
				"valid":    len(problems) == 0,
				"servers":  p.cfg.ServerNames(),
				"problems": append([]string{}, problems...),
			}); err != nil {
				return err
			}
		} else {
			for _, problem := range problems {
				fmt.Fprintln(out, color.Warning(problem))
			}
			if len(problems) == 0 {
				fmt.Fprintf(out, "%s %s (%d servers)\n", color.Success("Configuration is valid:"), p.configFile, len(p.cfg.Servers))
			}
		}
		if len(problems) > 0 {
			return errclass.ErrConfiguration.WithMessagef("%d problem(s) found", len(problems))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
