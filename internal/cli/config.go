package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Inspect beam configuration",
	Long: `Inspect the beam configuration of the source directory.

Available commands:
  show              - Show the effective configuration`,
	DisableFlagsInUseLine: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  "Show the configuration with defaults applied, as YAML (or JSON with --json). Webhook secrets are masked.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(false)
		if err != nil {
			return err
		}

		cfg := p.cfg.Redacted()
		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, cfg)
		}
		data, err := cfg.Marshal()
		if err != nil {
			return fmt.Errorf("render config: %w", err)
		}
		fmt.Fprintln(out, "# beam configuration")
		fmt.Fprintf(out, "# Location: %s\n\n", p.configFile)
		_, err = out.Write(data)
		return err
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
