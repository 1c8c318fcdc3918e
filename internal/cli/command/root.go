// Package command provides CLI command definitions for pairmesh-cli.
package command

import (
	"crypto/tls"
	"errors"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pairmesh-go/internal/cli/config"
	"github.com/yndnr/pairmesh-go/internal/cli/connection"
	"github.com/yndnr/pairmesh-go/internal/cli/output"
	"github.com/yndnr/pairmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/pairmesh-go/internal/infra/tlsroots"
)

// Metadata keys set by the Before hook.
const (
	metaFileConfig = "fileConfig"
	metaConfig     = "config"
	metaTLS        = "tls"
)

// ErrNoSession is returned by commands that need a paired session.
var ErrNoSession = errors.New("no session: pass --session, set PAIRMESH_SESSION or run exchange --save")

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "pairmesh-cli",
		Usage:   "PairMesh pairing, realtime and administration client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			PairCommand(),
			ExchangeCommand(),
			SessionCommand(),
			ListenCommand(),
			UploadCommand(),
			AdminCommand(),
		},
		Before: loadConfig,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "PairMesh server address, overrides $" + config.EnvServer + " and the config file",
		},
		&cli.StringFlag{
			Name:    "session",
			Usage:   "Session token of a paired client",
			EnvVars: []string{"PAIRMESH_SESSION"},
		},
		&cli.StringFlag{
			Name:    "admin-key",
			Aliases: []string{"K"},
			Usage:   "Operator admin key for /admin routes",
			EnvVars: []string{"PAIRMESH_ADMIN_KEY"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress progress output on stderr",
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "PEM file of extra CA certificates to trust for https and wss",
			EnvVars: []string{"PAIRMESH_CA_FILE"},
		},
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file",
			EnvVars: []string{"PAIRMESH_CLI_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
	}
}

// loadConfig reads the CLI config file and merges environment and flags
// over it.
func loadConfig(c *cli.Context) error {
	fileCfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	flags := make(map[string]string, 2)
	for _, name := range []string{"server", "output"} {
		if c.IsSet(name) {
			flags[name] = c.String(name)
		}
	}
	merged := config.Merge(fileCfg, config.Environ(), flags)
	if _, err := output.ParseFormat(merged.DefaultOutput); err != nil {
		return err
	}

	tlsCfg, err := tlsroots.LoadClientConfig(c.String("ca-file"))
	if err != nil {
		return err
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[metaFileConfig] = fileCfg
	c.App.Metadata[metaConfig] = merged
	c.App.Metadata[metaTLS] = tlsCfg
	return nil
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server   string
	Session  string
	AdminKey string

	Output output.Format
	Wide   bool
	Quiet  bool

	ConfigPath string
	TLS        *tls.Config
}

// ParseGlobalFlags resolves the global flags against the loaded config.
// Without an explicit session, a saved session for the same server is used.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	cfg := mergedConfig(c)
	format, _ := output.ParseFormat(cfg.DefaultOutput)

	flags := &GlobalFlags{
		Server:     cfg.DefaultServer,
		Session:    c.String("session"),
		AdminKey:   c.String("admin-key"),
		Output:     format,
		Wide:       c.Bool("wide"),
		Quiet:      c.Bool("quiet"),
		ConfigPath: c.String("config"),
	}
	flags.TLS, _ = c.App.Metadata[metaTLS].(*tls.Config)
	if flags.Session == "" && cfg.Session.Usable(cfg.DefaultServer, time.Now()) {
		flags.Session = cfg.Session.Value
	}
	return flags
}

func mergedConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

func fileConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[metaFileConfig].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// newClient returns an HTTP client carrying the resolved credentials.
func newClient(c *cli.Context) (*connection.HTTPClient, *GlobalFlags) {
	flags := ParseGlobalFlags(c)
	return connection.NewHTTPClient(flags.Server, flags.Session, flags.AdminKey, flags.transport()...), flags
}

// transport returns the connection options for the resolved flags.
func (f *GlobalFlags) transport() []connection.Option {
	if f.TLS == nil {
		return nil
	}
	return []connection.Option{connection.WithTLSConfig(f.TLS)}
}

// printResult writes data to stdout in the selected format.
func printResult(c *cli.Context, flags *GlobalFlags, data any) error {
	return output.NewFormatter(flags.Output, flags.Wide).Format(c.App.Writer, data)
}

// notices returns where progress and notices go, io.Discard with --quiet.
func notices(c *cli.Context, flags *GlobalFlags) io.Writer {
	if flags.Quiet || c.App.ErrWriter == nil {
		return io.Discard
	}
	return c.App.ErrWriter
}
