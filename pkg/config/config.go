// Package config provides configuration file support for beam.
//
// A project is configured by a beam.yaml (or .yml, .json, .toml) file at the
// root of the source tree. JSON files are read with the YAML decoder, which
// accepts them as-is.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/errclass"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/pathutil"
	"github.com/WPP-Public/akqa-nz-beam-sub001/pkg/webhook"
)

// FileNames are the config file names looked up in the source directory,
// in order of preference.
var FileNames = []string{"beam.yaml", "beam.yml", "beam.json", "beam.toml"}

// Phase is when a command runs relative to the transfer.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// Location is where a command runs.
type Location string

const (
	LocationLocal  Location = "local"
	LocationTarget Location = "target"
)

// Config represents the beam configuration.
type Config struct {
	VCS        string             `json:"vcs,omitempty" yaml:"vcs,omitempty" toml:"vcs"`
	StagingDir string             `json:"staging_dir,omitempty" yaml:"staging_dir,omitempty" toml:"staging_dir"`
	LogFile    string             `json:"log_file,omitempty" yaml:"log_file,omitempty" toml:"log_file"`
	Exclude    []string           `json:"exclude,omitempty" yaml:"exclude,omitempty" toml:"exclude"`
	Servers    map[string]*Server `json:"servers,omitempty" yaml:"servers" toml:"servers"`
	Commands   []Command          `json:"commands,omitempty" yaml:"commands,omitempty" toml:"commands"`
	Logging    LoggingConfig      `json:"logging,omitempty" yaml:"logging" toml:"logging"`
	Webhooks   webhook.Config     `json:"webhooks,omitempty" yaml:"webhooks,omitempty" toml:"webhooks"`
}

// Server is a deployment target.
type Server struct {
	User    string   `json:"user,omitempty" yaml:"user,omitempty" toml:"user"`
	Host    string   `json:"host,omitempty" yaml:"host,omitempty" toml:"host"`
	Webroot string   `json:"webroot,omitempty" yaml:"webroot" toml:"webroot"`
	Branch  string   `json:"branch,omitempty" yaml:"branch,omitempty" toml:"branch"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty" toml:"exclude"`
}

// Command is a shell command run before or after the transfer.
type Command struct {
	Command  string   `json:"command,omitempty" yaml:"command" toml:"command"`
	Phase    Phase    `json:"phase,omitempty" yaml:"phase" toml:"phase"`
	Location Location `json:"location,omitempty" yaml:"location" toml:"location"`
	Servers  []string `json:"servers,omitempty" yaml:"servers,omitempty" toml:"servers"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty" toml:"required"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level" toml:"level"`
	Format string `json:"format,omitempty" yaml:"format" toml:"format"` // json, text
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		VCS:     "git",
		LogFile: ".beamlog",
		Servers: map[string]*Server{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Find returns the path of the first config file present in dir.
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errclass.ErrConfiguration.WithMessagef("no config file found in %s (looked for %s)",
		dir, strings.Join(FileNames, ", "))
}

// Load reads, decodes and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errclass.ErrConfiguration.WithMessagef("read config: %v", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".yaml", ".yml", ".json"
// or ".toml") over the defaults. It does not validate.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Default()

	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errclass.ErrConfiguration.WithMessagef("parse config: %v", err)
		}
	case ".yaml", ".yml", ".json", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errclass.ErrConfiguration.WithMessagef("parse config: %v", err)
		}
	default:
		return nil, errclass.ErrConfiguration.WithMessagef("unsupported config format %q", ext)
	}

	normalized := make(map[string]*Server, len(cfg.Servers))
	for name, s := range cfg.Servers {
		normalized[pathutil.NormalizeName(name)] = s
	}
	cfg.Servers = normalized

	return cfg, nil
}

// Validate checks the configuration for structural errors.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return errclass.ErrConfiguration.WithMessage("at least one server must be configured")
	}

	for _, name := range c.ServerNames() {
		if err := pathutil.ValidateName(name); err != nil {
			return err
		}
		s := c.Servers[name]
		if s == nil {
			return errclass.ErrConfiguration.WithMessagef("server %s: empty definition", name)
		}
		if strings.TrimSpace(s.Webroot) == "" {
			return errclass.ErrConfiguration.WithMessagef("server %s: webroot is required", name)
		}
		if s.User != "" && s.Host == "" {
			return errclass.ErrConfiguration.WithMessagef("server %s: user given without host", name)
		}
	}

	for i, cmd := range c.Commands {
		if strings.TrimSpace(cmd.Command) == "" {
			return errclass.ErrConfiguration.WithMessagef("command %d: command is required", i)
		}
		switch cmd.Phase {
		case PhasePre, PhasePost:
		default:
			return errclass.ErrConfiguration.WithMessagef("command %d: phase must be pre or post, got %q", i, cmd.Phase)
		}
		switch cmd.Location {
		case LocationLocal, LocationTarget:
		default:
			return errclass.ErrConfiguration.WithMessagef("command %d: location must be local or target, got %q", i, cmd.Location)
		}
		for _, s := range cmd.Servers {
			if _, ok := c.Servers[pathutil.NormalizeName(s)]; !ok {
				return errclass.ErrConfiguration.WithMessagef("command %d: unknown server %q", i, s)
			}
		}
	}

	for i, hook := range c.Webhooks.Hooks {
		u, err := url.Parse(hook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errclass.ErrConfiguration.WithMessagef("webhook %d: url must be http(s), got %q", i, hook.URL)
		}
	}

	return nil
}

// ServerNames returns configured server names in sorted order.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for n := range c.Servers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Server looks up a server by name.
func (c *Config) Server(name string) (*Server, error) {
	s, ok := c.Servers[pathutil.NormalizeName(name)]
	if !ok || s == nil {
		return nil, errclass.ErrConfiguration.WithMessagef("unknown server %q (configured: %s)",
			name, strings.Join(c.ServerNames(), ", "))
	}
	return s, nil
}

// CommandsFor returns the commands of phase that apply to server, in
// configuration order.
func (c *Config) CommandsFor(phase Phase, server string) []Command {
	server = pathutil.NormalizeName(server)
	var out []Command
	for _, cmd := range c.Commands {
		if cmd.Phase != phase {
			continue
		}
		if len(cmd.Servers) > 0 && !slices.ContainsFunc(cmd.Servers, func(s string) bool {
			return pathutil.NormalizeName(s) == server
		}) {
			continue
		}
		out = append(out, cmd)
	}
	return out
}

// ExcludesFor merges global and per-server exclude patterns.
func (c *Config) ExcludesFor(server string) []string {
	out := slices.Clone(c.Exclude)
	if s, ok := c.Servers[pathutil.NormalizeName(server)]; ok && s != nil {
		for _, p := range s.Exclude {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// StagingPath returns where snapshots of sourceDir are exported.
func (c *Config) StagingPath(sourceDir string) string {
	if c.StagingDir != "" {
		if filepath.IsAbs(c.StagingDir) {
			return c.StagingDir
		}
		return filepath.Join(sourceDir, c.StagingDir)
	}
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		abs = sourceDir
	}
	return filepath.Join(os.TempDir(), "beam", filepath.Base(abs))
}

// Remote reports whether the server is reached over ssh.
func (s *Server) Remote() bool {
	return s.Host != ""
}

// SSHTarget returns "user@host" or "host".
func (s *Server) SSHTarget() string {
	if s.User == "" {
		return s.Host
	}
	return s.User + "@" + s.Host
}

// Destination returns the rsync destination for the server's webroot.
func (s *Server) Destination() string {
	root := strings.TrimRight(s.Webroot, "/") + "/"
	if !s.Remote() {
		return root
	}
	return fmt.Sprintf("%s:%s", s.SSHTarget(), root)
}

// Redacted returns a copy of c safe to print: webhook secrets are masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Webhooks.Hooks = slices.Clone(c.Webhooks.Hooks)
	for i := range out.Webhooks.Hooks {
		if out.Webhooks.Hooks[i].Secret != "" {
			out.Webhooks.Hooks[i].Secret = "********"
		}
	}
	return &out
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
