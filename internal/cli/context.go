package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/shell"
	"github.com/WPP-Public/akqa-nz-beam-sub001/internal/vcs"
	_ "github.com/WPP-Public/akqa-nz-beam-sub001/internal/vcs/git"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/color"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/config"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/logging"
)

// newRunner builds the subprocess runner every command uses.
var newRunner = func() shell.Runner { return shell.NewExec() }

// project is the source tree a command operates on.
type project struct {
	sourceDir  string
	configFile string
	cfg        *config.Config
	runner     shell.Runner
	vcs        vcs.Provider
}

// loadProject resolves the source directory, reads its config and opens
// the VCS backend. With validate false a structurally invalid config is
// still returned, for commands that report on it.
func loadProject(validate bool) (*project, error) {
	source := sourceFlag
	if source == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("cannot get current directory: %w", err)
		}
		source = cwd
	}
	source, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolve source directory: %w", err)
	}

	path := configPath
	if path == "" {
		if path, err = config.Find(source); err != nil {
			return nil, err
		}
	}

	var cfg *config.Config
	if validate {
		cfg, err = config.Load(path)
	} else {
		cfg, err = parseConfig(path)
	}
	if err != nil {
		return nil, err
	}
	if err := configureLogging(cfg); err != nil {
		return nil, err
	}

	runner := newRunner()
	provider, err := vcs.Open(cfg.VCS, source, runner)
	if err != nil {
		return nil, err
	}
	return &project{sourceDir: source, configFile: path, cfg: cfg, runner: runner, vcs: provider}, nil
}

func parseConfig(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errclass.ErrConfiguration.WithMessagef("read config: %v", err)
	}
	return config.Parse(data, filepath.Ext(path))
}

// configureLogging applies the config's logging block. --log-level wins
// over the configured level.
func configureLogging(cfg *config.Config) error {
	logger := logging.Global()
	if logLevel == "" && cfg.Logging.Level != "" {
		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return errclass.ErrConfiguration.WithMessage(err.Error())
		}
		logger.SetLevel(level)
	}
	if cfg.Logging.Format != "" {
		format, err := logging.ParseFormat(cfg.Logging.Format)
		if err != nil {
			return errclass.ErrConfiguration.WithMessage(err.Error())
		}
		logger.SetFormat(format)
	}
	return nil
}

func fmtErr(format string, args ...any) {
	prefix := "beam: "
	if color.Enabled() {
		prefix = color.Error("beam:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
