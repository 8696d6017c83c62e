package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/donmikel/extractrelay/applications/relay/adapters/downstream"
	"github.com/donmikel/extractrelay/applications/relay/config"
	"github.com/donmikel/extractrelay/applications/relay/handlers/http"
	"github.com/donmikel/extractrelay/applications/relay/metrics"
	"github.com/donmikel/extractrelay/applications/relay/services"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// Load balancers may keep routing to the pod for a moment after SIGTERM.
const preStopWait = 5 * time.Second

const shutdownTimeout = 5 * time.Second

// version is set from the git tag at build time.
var version = ""

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "path to the config file")
	showVersion := fs.Bool("v", false, "Show version")
	debugLogs := fs.Bool("debug", false, "Enable debug logs")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return exitFailure
	}

	logger := newLogger(*debugLogs)

	if *showVersion {
		level.Info(logger).Log("version", version)
		return exitSuccess
	}

	cfg, err := config.Parse(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		level.Error(logger).Log("msg", "invalid config", "path", *configPath, "err", err)
		return exitFailure
	}

	defer monitorPanic(logger)

	srv, err := newServer(cfg, logger)
	if err != nil {
		level.Error(logger).Log("msg", "cannot build http server", "err", err)
		return exitFailure
	}

	level.Info(logger).Log("msg", "starting relay",
		"addr", cfg.API.HTTPAddr,
		"downstream", cfg.Downstream.URL,
		"timeout", cfg.Downstream.Timeout,
	)

	if err = serve(srv, logger); err != nil {
		level.Error(logger).Log("msg", "relay stopped", "err", err)
		return exitFailure
	}

	return exitSuccess
}

func newLogger(debugLogs bool) log.Logger {
	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	if debugLogs {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

// newServer wires the downstream processor, the extract service and the
// metrics registry into the HTTP server.
func newServer(cfg config.Server, logger log.Logger) (*nethttp.Server, error) {
	collector := metrics.NewCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := &nethttp.Client{Timeout: cfg.Downstream.Timeout}
	processor := downstream.NewProcessor(cfg.Downstream.URL, client, logger)
	extractService := services.NewService(processor, collector, logger)

	return http.NewHTTPServer(cfg.API, extractService, collector, registry, logger)
}

// serve runs the server until a termination signal arrives or it fails.
func serve(srv *nethttp.Server, logger log.Logger) error {
	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)

		select {
		case <-ctx.Done():
			return nil
		case s := <-sig:
			level.Info(logger).Log("msg", "signal received", "signal", s, "wait", preStopWait)
			time.Sleep(preStopWait)
			return errShutdown
		}
	})

	group.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()

		level.Info(logger).Log("msg", "shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}

	level.Info(logger).Log("msg", "relay stopped")
	return nil
}

// errShutdown stops the actor group on a termination signal.
var errShutdown = errors.New("shutdown requested")

func monitorPanic(logger log.Logger) {
	if rec := recover(); rec != nil {
		err := fmt.Sprintf("panic: %v \n stack trace: %s", rec, debug.Stack())
		level.Error(logger).Log("err", err)
		panic(err)
	}
}
