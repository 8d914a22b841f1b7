package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/gfhanger/internal/bridge"
	"github.com/muurk/gfhanger/internal/logging"
	"github.com/muurk/gfhanger/internal/mqtt"
)

var metricsAddr string

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
}

// bridgeCmd runs the MQTT bridge
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Bridge hangers to MQTT",
	Long: `Run as a service that mirrors hanger state to MQTT and executes
commands received from it.

Topics (prefix from mqtt.topic_prefix):
  <prefix>/state/<id>      retained JSON state
  <prefix>/command/<id>    raise | lower | stop
  <prefix>/ack/<id>        command result
  <prefix>/bridge/status   online | offline`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig("info")
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	creds, err := credentials(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := newGatewayClient(cfg, reg)
	defer shutdownClient(client)

	broker, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return err
	}
	defer broker.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv := startMetricsServer(cfg.Metrics.Addr, cfg.Metrics.Path, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	b := bridge.New(client, broker, bridge.Config{
		Topics:      broker.Topics(),
		Credentials: creds,
		Registerer:  reg,
	})
	broker.SetOnConnect(b.PublishAll)

	go keepSession(ctx, client, creds, 30*time.Second)

	fmt.Fprintf(os.Stderr, "Bridging %s to %s (prefix %q)\n", client.Addr(), cfg.MQTT.Broker, broker.Topics().Prefix)
	return b.Run(ctx)
}

func startMetricsServer(addr, path string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("Serving metrics", zap.String("addr", addr), zap.String("path", path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
