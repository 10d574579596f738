package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/history"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/color"
)

var (
	historyLimit  int
	historyVerify bool
)

var historyCmd = &cobra.Command{
	Use:   "history [server]",
	Short: "Show past deployments",
	Long: `Show past deployments, newest first.

Use --verify to check that the history file has not been edited.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeServers,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(false)
		if err != nil {
			return err
		}
		log := history.Open(filepath.Join(p.cfg.StagingPath(p.sourceDir), history.FileName))
		out := cmd.OutOrStdout()

		if historyVerify {
			if err := log.Verify(); err != nil {
				return err
			}
			fmt.Fprintln(out, color.Success("History is intact."))
			return nil
		}

		var server string
		if len(args) == 1 {
			server = args[0]
		}
		entries, err := log.Entries(server, historyLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			if entries == nil {
				entries = []history.Entry{}
			}
			return outputJSON(out, entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No deployments recorded.")
			return nil
		}
		for _, e := range entries {
			status := color.Success(string(e.Status))
			if e.Status == history.StatusFailed {
				status = color.Error(string(e.Status))
			}
			ref := color.Ref(e.Ref)
			if e.Revision != "" {
				ref += " (" + e.Revision + ")"
			}
			line := fmt.Sprintf("%s  %-9s %s %s", e.Timestamp.Local().Format(time.DateTime), status, color.Server(e.Server), ref)
			if e.Deployer != "" {
				line += " " + color.Dim("by "+e.Deployer)
			}
			if e.DryRun {
				line += " " + color.Warning("[dry run]")
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "show at most n entries (0 for all)")
	historyCmd.Flags().BoolVar(&historyVerify, "verify", false, "verify the history hash chain")
	rootCmd.AddCommand(historyCmd)
}
