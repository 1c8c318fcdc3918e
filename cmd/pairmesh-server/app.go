package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pairmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/pairmesh-go/internal/infra/confloader"
	"github.com/yndnr/pairmesh-go/internal/infra/shutdown"
	"github.com/yndnr/pairmesh-go/internal/server/config"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"addr":        "server.http.addr",
	"public-host": "server.http.public_host",
	"blob-dir":    "storage.blob_dir",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "pairmesh-server",
		Usage:   "Pair secondary devices with an editor and push events to it",
		Version: buildinfo.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"PAIRMESH_CONFIG"},
			},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "public-host", Usage: "Host advertised in pairing URLs"},
			&cli.StringFlag{Name: "blob-dir", Usage: "Directory for uploaded artifacts"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level (debug, info, warn, error)"},
			&cli.StringFlag{Name: "log-format", Usage: "Log format (json, text)"},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:  "check-config",
				Usage: "Load and validate the configuration, then exit",
				Action: func(c *cli.Context) error {
					if _, _, err := loadConfig(c.String("config"), flagOverrides(c)); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "configuration OK")
					return nil
				},
			},
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "pairmesh-server %s\n", buildinfo.String())
					return nil
				},
			},
		},
	}
}

// flagOverrides returns the explicitly set flags as configuration keys.
func flagOverrides(c *cli.Context) map[string]any {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}
	return overrides
}

// loadConfig loads defaults, file, environment and flags, then validates.
func loadConfig(path string, overrides map[string]any) (*config.ServerConfig, *confloader.Loader, error) {
	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithOverrides(overrides),
	)
	cfg, err := applyConfig(loader)
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

// applyConfig builds a fresh configuration from every source.
func applyConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  os.Stdout,
		Service: "pairmesh-server",
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

func serveAction(c *cli.Context) error {
	overrides := flagOverrides(c)
	cfg, loader, err := loadConfig(c.String("config"), overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting pairmesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", loader.FilePath(),
		"admin_api", cfg.Security.AdminKeyHash != "",
	)
	log.Debug("effective configuration", "config", config.Sanitize(cfg), "sources", loader.Keys())

	reg := metric.NewRegistry()
	reg.SetBuildInfo(info.Version, info.Commit, info.GoVersion)

	srv, err := newServer(cfg, log, reg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.HTTP.Addr, err)
	}

	sh := shutdown.NewHandler(cfg.Server.ShutdownTimeout, log)
	srv.registerShutdown(sh)

	if stop := watchConfig(loader, log); stop != nil {
		sh.OnShutdown("config-watcher", func(context.Context) error { return stop() })
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening",
			"addr", ln.Addr().String(),
			"tls", cfg.Server.HTTP.TLSEnabled(),
		)
		if err := srv.serve(ln); err != nil {
			serveErr <- err
			cancel()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	shutdownErr := sh.WaitContext(ctx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
	}
	if shutdownErr != nil {
		log.Error("shutdown error", "error", shutdownErr)
		return shutdownErr
	}

	log.Info("server stopped gracefully")
	return nil
}

// watchConfig applies log level changes from the configuration file
// without a restart. Other settings need a restart.
func watchConfig(loader *confloader.Loader, log logger.Logger) func() error {
	if loader.FilePath() == "" {
		return nil
	}

	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		log.Warn("config watcher disabled", "error", err)
		return nil
	}
	if err := w.Watch(loader.FilePath()); err != nil {
		log.Warn("config watcher disabled", "error", err)
		w.Stop()
		return nil
	}

	w.OnChange(func(string) {
		fresh, err := applyConfig(loader)
		if err != nil {
			log.Warn("ignoring invalid configuration change", "error", err)
			return
		}
		if fresh.Log.Level != logger.GetLevel() {
			logger.SetLevel(fresh.Log.Level)
			log.Info("log level changed", "level", fresh.Log.Level)
		}
	})
	w.StartAsync()
	return w.Stop
}
