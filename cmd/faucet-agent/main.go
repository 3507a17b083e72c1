// Package main provides the CLI entry point for the FAUCET gNMI
// configuration agent.
//
// The agent exposes a gNMI/gRPC interface for replacing and retrieving the
// configuration file of a running FAUCET controller. The file must be
// accessible to both FAUCET and the agent. By default a HUP signal is sent to
// FAUCET to trigger a config reload; with --nohup the controller is assumed
// to stat-poll the file itself (FAUCET_CONFIG_STAT_RELOAD=1).
//
// # Basic Usage
//
// Start the agent:
//
//	faucet-agent serve --cert agent.crt --key agent.key \
//	    --config-file /etc/faucet.yaml
//
// Talk to it with standard gNMI utilities:
//
//	gnmi_capabilities -ca ca.crt -cert client.crt -key client.key -target_name localhost
//	gnmi_get $AUTH -xpath=/
//	gnmi_set $AUTH -replace=/:"$(<faucet.yaml)"
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opennetsys/faucet-agent/internal/config"
	"github.com/opennetsys/faucet-agent/internal/controller"
	"github.com/opennetsys/faucet-agent/internal/coordinator"
	"github.com/opennetsys/faucet-agent/internal/gnmi"
	"github.com/opennetsys/faucet-agent/internal/observability"
	"github.com/opennetsys/faucet-agent/internal/store"
)

// Build information - populated by ldflags during build.
var (
	version = "0.1.0"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:          "faucet-agent",
		Short:        "gNMI configuration agent for the FAUCET SDN controller",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("faucet-agent %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gNMI configuration agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "optional YAML config file (flags override it)")
	flags.String("cert", "", "server TLS certificate file")
	flags.String("key", "", "server TLS private key file")
	flags.String("config-file", "", "FAUCET config file shared with the controller")
	flags.String("listen-addr", "[::]", "gNMI address to listen on")
	flags.Int("listen-port", 9339, "gNMI port")
	flags.String("status-addr", "http://localhost", "FAUCET prometheus address")
	flags.Int("status-port", 9302, "FAUCET prometheus port")
	flags.Float64("dp-wait", 0, "fraction of datapath updates to wait for")
	flags.Duration("timeout", 120*time.Second, "max time to wait for a config reload")
	flags.Duration("poll-interval", time.Second, "controller status poll cadence")
	flags.Bool("nohup", false, "do not send HUP on Set; controller self-polls the file")
	flags.String("metrics-addr", "", "serve agent metrics on this address (empty disables)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	return cmd
}

// resolveConfig layers CLI flags over the optional config file over the
// defaults. Only flags the user actually set override the file.
func resolveConfig(cmd *cobra.Command, configPath string) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	stringInto := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	stringInto("cert", &cfg.TLS.CertFile)
	stringInto("key", &cfg.TLS.KeyFile)
	stringInto("config-file", &cfg.Controller.ConfigFile)
	stringInto("listen-addr", &cfg.Listen.Addr)
	stringInto("status-addr", &cfg.Controller.StatusAddr)
	stringInto("metrics-addr", &cfg.Metrics.Addr)
	stringInto("log-level", &cfg.Log.Level)
	stringInto("log-format", &cfg.Log.Format)
	if flags.Changed("listen-port") {
		cfg.Listen.Port, _ = flags.GetInt("listen-port")
	}
	if flags.Changed("status-port") {
		cfg.Controller.StatusPort, _ = flags.GetInt("status-port")
	}
	if flags.Changed("dp-wait") {
		cfg.Reload.DPWaitFraction, _ = flags.GetFloat64("dp-wait")
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Reload.Timeout = config.Duration(d)
	}
	if flags.Changed("poll-interval") {
		d, _ := flags.GetDuration("poll-interval")
		cfg.Reload.PollInterval = config.Duration(d)
	}
	if flags.Changed("nohup") {
		cfg.Reload.NoHUP, _ = flags.GetBool("nohup")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	var trigger controller.ReloadTrigger
	if cfg.Reload.NoHUP {
		trigger = controller.WatchTrigger{}
	} else {
		if err := controller.CheckDeps(); err != nil {
			return err
		}
		trigger = &controller.SignalTrigger{Port: cfg.Controller.StatusPort, Logger: logger}
	}

	st, err := store.New(cfg.Controller.ConfigFile, logger)
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()
	client := controller.NewClient(cfg.Controller.StatusURL(), logger)
	coord := coordinator.New(st, client, trigger, coordinator.Options{
		Timeout:        cfg.Reload.Timeout.Std(),
		PollInterval:   cfg.Reload.PollInterval.Std(),
		DPWaitFraction: cfg.Reload.DPWaitFraction,
	}, logger, metrics)
	service := gnmi.NewService(st, coord, version, logger)

	server, err := gnmi.NewServer(gnmi.ServerConfig{
		Addr:     cfg.Listen.HostPort(),
		CertFile: cfg.TLS.CertFile,
		KeyFile:  cfg.TLS.KeyFile,
	}, service, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		go serveMetrics(ctx, cfg.Metrics.Addr, metrics, logger)
	}
	go func() {
		<-ctx.Done()
		server.Stop()
	}()

	logger.Info("starting FAUCET gNMI configuration agent",
		"addr", cfg.Listen.HostPort(),
		"config_file", st.Path(),
		"controller", cfg.Controller.StatusURL(),
	)
	if err := server.Serve(); err != nil {
		return err
	}
	logger.Info("FAUCET gNMI configuration agent exiting")
	return nil
}

func serveMetrics(ctx context.Context, addr string, metrics *observability.Metrics, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving agent metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}
