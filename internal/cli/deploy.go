package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/deploy"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/history"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/report"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/result"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/color"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/progress"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/webhook"
)

var (
	deployRef    string
	deployDryRun bool
	deployYes    bool
	deployUpdate bool
	deployFilter string
)

var deployCmd = &cobra.Command{
	Use:   "deploy <server>...",
	Short: "Deploy a ref to one or more servers",
	Long: `Deploy a ref to one or more servers.

The ref defaults to the server's configured branch, or the current branch
when the server has none. Servers that pin a branch only accept refs on that
branch. Servers are deployed in the order given; the first failure stops
the run.

Use --dry-run to see what would change without touching the servers.`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeServers,
	RunE:              runDeploy,
}

func runDeploy(cmd *cobra.Command, args []string) error {
	kind, err := result.ParseUpdateKind(deployFilter)
	if err != nil {
		return errclass.ErrConfiguration.WithMessage(err.Error())
	}

	p, err := loadProject(true)
	if err != nil {
		return err
	}
	for _, name := range args {
		if _, err := p.cfg.Server(name); err != nil {
			return fmt.Errorf("%w\n%s", err, color.Dim("  "+suggestServers(name, p.cfg)))
		}
	}

	if !deployDryRun && !deployYes {
		ref := deployRef
		if ref == "" {
			ref = "the configured branch"
		}
		question := fmt.Sprintf("Deploy %s to %s?", color.Ref(ref), color.Server(strings.Join(args, ", ")))
		if err := confirm(cmd.ErrOrStderr(), question); err != nil {
			return err
		}
	}

	deps := deploy.Deps{
		VCS:     p.vcs,
		Runner:  p.runner,
		History: history.Open(filepath.Join(p.cfg.StagingPath(p.sourceDir), history.FileName)),
	}
	if client := webhook.NewClient(p.cfg.Webhooks); client.Enabled() {
		deps.Notifier = client
	}

	bar := progress.NewTerminal(cmd.ErrOrStderr(), !jsonOutput && progress.StderrIsTerminal())
	outcomes, runErr := deploy.New(p.cfg, p.sourceDir, deps).Run(cmd.Context(), deploy.Options{
		Servers:      args,
		Ref:          deployRef,
		DryRun:       deployDryRun,
		UpdateRemote: deployUpdate,
		Progress:     bar.Callback(),
	})

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := report.WriteJSON(out, outcomes); err != nil {
			return err
		}
	} else if err := report.WriteText(out, outcomes, kind); err != nil {
		return err
	}
	return runErr
}

func init() {
	deployCmd.Flags().StringVarP(&deployRef, "ref", "r", "", "branch, tag or commit to deploy")
	deployCmd.Flags().BoolVarP(&deployDryRun, "dry-run", "n", false, "show what would change without changing it")
	deployCmd.Flags().BoolVarP(&deployYes, "yes", "y", false, "do not ask for confirmation")
	deployCmd.Flags().BoolVarP(&deployUpdate, "update", "u", false, "fetch the remote before deploying a remote branch")
	deployCmd.Flags().StringVar(&deployFilter, "filter", "", "only list changes of one kind: sent, received, created, deleted, attributes")
	rootCmd.AddCommand(deployCmd)
}
