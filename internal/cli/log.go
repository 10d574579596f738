package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
)

var logCmd = &cobra.Command{
	Use:   "log [ref]",
	Short: "Show the deploy log entry for a ref",
	Long: `Show the deploy log entry that a deployment of ref would write: the
deployer, the ref and its most recent commit. The ref defaults to the
current branch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(true)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var ref string
		if len(args) == 1 {
			ref = args[0]
		} else if ref, err = p.vcs.CurrentBranch(ctx); err != nil {
			return err
		}
		if !p.vcs.IsValidRef(ctx, ref) {
			return errclass.ErrVcs.WithMessagef("%s is not a valid reference", ref)
		}

		entry, err := p.vcs.Log(ctx, ref)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]string{"ref": ref, "log": entry})
		}
		fmt.Fprint(cmd.OutOrStdout(), entry)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
}
