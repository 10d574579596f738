package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/color"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/logging"
)

var (
	jsonOutput bool
	noColor    bool
	configPath string
	logLevel   string
	sourceFlag string

	rootCmd = &cobra.Command{
		Use:   "beam",
		Short: "beam - deploy a version-controlled site with rsync",
		Long: `beam exports a clean snapshot of a branch, tag or commit from the
project's repository and synchronises it to one or more servers with rsync.
Servers, excludes and pre/post commands are configured in beam.yaml.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&jsonOutput, "json", false, "output in JSON format")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.StringVarP(&configPath, "config", "c", "", "config file (default: beam.yaml in the source directory)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVarP(&sourceFlag, "source", "s", "", "source directory (default: current directory)")
}

func setup(cmd *cobra.Command, args []string) error {
	color.Init(noColor)
	if logLevel == "" {
		return nil
	}
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return errclass.ErrConfiguration.WithMessage(err.Error())
	}
	logging.Global().SetLevel(level)
	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context, which stops any running subprocess.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmtErr("%v", err)
		os.Exit(1)
	}
}

// outputJSON writes v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
