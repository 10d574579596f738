package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/color"
)

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List local and remote-tracking branches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(true)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		current, err := p.vcs.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		branches, err := p.vcs.AvailableBranches(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, map[string]any{"current": current, "branches": branches})
		}
		for _, b := range branches {
			switch {
			case b == current:
				fmt.Fprintf(out, "* %s\n", color.Success(b))
			case p.vcs.IsRemote(b):
				fmt.Fprintf(out, "  %s\n", color.Ref(b))
			default:
				fmt.Fprintf(out, "  %s\n", b)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(branchesCmd)
}
