package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/trellis/internal/config"
	"github.com/muurk/trellis/internal/discovery"
	"github.com/muurk/trellis/internal/logging"
	"github.com/muurk/trellis/internal/metrics"
	"github.com/muurk/trellis/internal/server"
	"github.com/muurk/trellis/internal/ui"
	"github.com/muurk/trellis/internal/version"
)

// Serve command flags
var (
	listenAddr string
	workers    int
	rootDir    string
	logLevel   string
	monitor    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Start the server with the handlers from the configuration file.

Flags override the file. With --root and no configuration file, the server
serves static files from that directory at /.

The server stops gracefully on SIGINT, SIGTERM or SIGQUIT: the listener is
closed, open connections are closed and the workers exit.`,
	Example: `  # Serve ./public on port 8080 without a configuration file
  trellis-server serve --root ./public

  # Use a configuration file, overriding the port
  trellis-server serve --config trellis.yaml --listen :9000

  # Watch connections and sessions live
  trellis-server serve --root ./public --monitor`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address as host:port (overrides server.address and server.port)")
	serveCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Worker count, 0 for one per CPU")
	serveCmd.Flags().StringVar(&rootDir, "root", "", "Serve static files from this directory at /")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&monitor, "monitor", false, "Show a live view of server counters")
}

// flagOverrides applies the serve flags that were set on the command line.
func flagOverrides(flags *pflag.FlagSet) config.Override {
	return func(cfg *config.Config) error {
		if flags.Changed("listen") {
			host, portStr, err := net.SplitHostPort(listenAddr)
			if err != nil {
				return fmt.Errorf("invalid --listen %q: %w", listenAddr, err)
			}
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return fmt.Errorf("invalid --listen port %q", portStr)
			}
			cfg.Server.Address = host
			cfg.Server.Port = port
		}
		if flags.Changed("workers") {
			cfg.Server.Workers = workers
		}
		if flags.Changed("log-level") {
			cfg.Logging.Level = logLevel
		}
		if flags.Changed("root") {
			return setFilesRoot(cfg, rootDir)
		}
		return nil
	}
}

// setFilesRoot points the files handler mounted at / at dir, adding one if
// nothing is mounted there.
func setFilesRoot(cfg *config.Config, dir string) error {
	for i, h := range cfg.Handlers {
		for _, loc := range splitLocations(h.Location) {
			if loc != "/" {
				continue
			}
			if h.Type != "files" {
				return fmt.Errorf("--root: / is served by a %s handler", h.Type)
			}
			if cfg.Handlers[i].Options == nil {
				cfg.Handlers[i].Options = make(map[string]any)
			}
			cfg.Handlers[i].Options["root"] = dir
			return nil
		}
	}
	cfg.Handlers = append(cfg.Handlers, config.HandlerConfig{
		Type:     "files",
		Location: "/",
		Options:  map[string]any{"root": dir},
	})
	return nil
}

// statsView is what the admin /stats endpoint reports.
type statsView struct {
	server.Stats
	Build version.Info `json:"build"`
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	if monitor && !ui.IsTerminal() {
		return fmt.Errorf("--monitor needs a terminal")
	}

	cfg, err := config.Load(configPath, flagOverrides(cmd.Flags()))
	if err != nil {
		return err
	}

	if err := logging.Initialize(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}
	defer logging.Sync()
	log := logging.Named(cfg.Logging.Namespace)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	built, err := config.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, built.Close()) }()

	srv, err := server.New(built.Server)
	if err != nil {
		return err
	}

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	if cfg.Metrics.Enabled {
		stats := func() any { return statsView{Stats: srv.Stats(), Build: version.Get()} }
		admin, err := metrics.ListenAdmin(cfg.Metrics.Listen,
			metrics.NewAdminRouter(built.Registry, stats, srv.Running), log.Named("admin"))
		if err != nil {
			return err
		}
		closers = append(closers, admin)
	}

	if cfg.Discovery.Enabled {
		ad, err := discovery.Advertise(discovery.Advertisement{
			Instance: cfg.Discovery.Instance,
			ServerID: cfg.Server.ID,
			Port:     srv.Addr().(*net.TCPAddr).Port,
			TLS:      built.Server.TLS != nil,
		}, log.Named("mdns"))
		if err != nil {
			// Advertising is a convenience; serve without it.
			log.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			closers = append(closers, ad)
		}
	}

	if monitor {
		return serveWithMonitor(ctx, cancel, srv)
	}

	ui.NewPrinter(cmd.OutOrStdout()).PrintHeader("Trellis Server", "trellis-server serve", serveParams(cfg, srv))
	return srv.Run()
}

// serveWithMonitor runs the workers in the background and the monitor in
// the foreground. Quitting the monitor stops the server; a signal stopping
// the server closes the monitor.
func serveWithMonitor(ctx context.Context, cancel context.CancelFunc, srv *server.Server) error {
	if err := srv.Start(); err != nil {
		return err
	}
	go func() {
		select {
		case <-srv.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	err := ui.RunMonitor(ctx, "Trellis Server", srv.Stats, nil)
	return multierr.Append(err, srv.Stop(false))
}

func serveParams(cfg *config.Config, srv *server.Server) map[string]string {
	params := map[string]string{
		"Listen":   srv.Addr().String(),
		"Handlers": strconv.Itoa(len(cfg.Handlers)),
		"Workers":  strconv.Itoa(srv.Stats().Workers),
		"Sessions": cfg.Sessions.Store,
	}
	if cfg.Metrics.Enabled {
		params["Metrics"] = "http://" + cfg.Metrics.Listen + "/metrics"
	}
	if cfg.TLS.Cert != "" {
		params["TLS"] = cfg.TLS.Cert
	}
	return params
}
