package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/doctor"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that deployments can run",
	Long: `Check that deployments can run.

Looks for the tools beam shells out to, checks the configuration, the
repository and the staging directories, and reports stale locks, temp files
and a damaged deploy history.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(false)
		if err != nil {
			return err
		}

		result := doctor.New(p.cfg, p.sourceDir, p.vcs).Check()

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := outputJSON(out, result); err != nil {
				return err
			}
		} else if len(result.Findings) == 0 {
			fmt.Fprintln(out, "Everything looks ready to deploy.")
		} else {
			fmt.Fprintf(out, "Findings (%d):\n", len(result.Findings))
			for _, f := range result.Findings {
				fmt.Fprintf(out, "  [%s] %s: %s\n", f.Severity, f.Category, f.Description)
			}
		}

		if !result.Healthy {
			return errclass.ErrConfiguration.WithMessage("not ready to deploy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
