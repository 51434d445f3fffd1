// Command geofence-monitor wires the Scheduler, AlertBus, GeofenceProbe,
// OK probe and ControlSurface into a running process, then blocks on an OS
// signal or a /kill request. This file's job is construction and wiring,
// not business logic.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skurt/geofence-monitor/internal/alertbus"
	"github.com/skurt/geofence-monitor/internal/clock"
	"github.com/skurt/geofence-monitor/internal/config"
	"github.com/skurt/geofence-monitor/internal/control"
	"github.com/skurt/geofence-monitor/internal/geofence"
	"github.com/skurt/geofence-monitor/internal/logging"
	"github.com/skurt/geofence-monitor/internal/metrics"
	"github.com/skurt/geofence-monitor/internal/notifier"
	"github.com/skurt/geofence-monitor/internal/okprobe"
	"github.com/skurt/geofence-monitor/internal/render"
	"github.com/skurt/geofence-monitor/internal/scheduler"
)

// shutdownGrace bounds how long the control surface gets to drain
// in-flight requests on both a signal and a /kill request.
const shutdownGrace = 5 * time.Second

func main() {
	configPath := flag.String("config", "geofence_monitor.yaml", "path to the YAML configuration file")
	dumpConfig := flag.Bool("dump-config", false, "print an example configuration to stdout and exit")
	flag.Parse()

	if *dumpConfig {
		var sb strings.Builder
		if err := config.DumpExample(&sb); err != nil {
			log.Fatalf("failed to dump example config: %v", err)
		}
		fmt.Print(sb.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger, logFiles, err := logging.New(cfg.LogFilePrefix, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
	logger.Info("starting geofence monitor", "monitor_name", cfg.MonitorName, "port", cfg.ListenPort)

	clk := clock.New()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	renderer, err := render.New()
	if err != nil {
		log.Fatalf("failed to load alert templates: %v", err)
	}

	mailgun := notifier.NewMailgun(cfg.Notifier.MessagesEndpoint, cfg.Notifier.APIKey)

	bus := &alertbus.AlertBus{
		MonitorName: cfg.MonitorName,
		MonitorURL:  cfg.MonitorURL,
		Sender:      cfg.SenderEmail,
		Recipients:  cfg.AlertEmails,
		Notifier:    mailgun,
		Renderer:    renderer,
		Logger:      logger,
		OnAlert: func(templateID string) {
			m.AlertsTotal.WithLabelValues(templateID).Inc()
		},
	}

	sched := scheduler.New(clk, bus, logger, m, cfg.MonitorName, cfg.PollPeriodSeconds, cfg.MinPollPaddingSeconds)
	sched.OnFatal = func(err error) {
		logger.Error("scheduler cannot continue", "error", err)
	}

	geofenceProbe, err := geofence.New(cfg.Geofence, clk, bus, logger.With("probe", "geofence_monitor"))
	if err != nil {
		log.Fatalf("failed to build geofence probe: %v", err)
	}
	if err := sched.Register(scheduler.Probe{Name: "geofence_monitor", Run: geofenceProbe.Run}); err != nil {
		log.Fatalf("failed to register geofence probe: %v", err)
	}

	if cfg.OKProbe.HealthURL != "" {
		ok := okprobe.New(cfg.OKProbe.HealthURL)
		if err := sched.Register(scheduler.Probe{Name: "ok_monitor", Run: ok.Run}); err != nil {
			log.Fatalf("failed to register ok probe: %v", err)
		}
	}

	controlSurface := control.New(sched, cfg, logFiles, renderer, logger)
	router := controlSurface.Router()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ListenPort),
		Handler: router,
	}

	shutdown := make(chan struct{})
	controlSurface.Kill = func() {
		logger.Error("received /kill request, shutting down")
		close(shutdown)
	}

	go func() {
		logger.Info("control surface listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("control surface stopped unexpectedly", "error", err)
		}
	}()

	sched.Start()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-signals:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-shutdown:
		exitCode = -1
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("error during control surface shutdown", "error", err)
	}

	os.Exit(exitCode)
}
