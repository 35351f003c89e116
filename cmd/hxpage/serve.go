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

	"github.com/getsentry/sentry-go"
	"github.com/klauspost/compress/gzhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/hxpage"
	"github.com/pthm/hxpage/internal/demo"
	"github.com/pthm/hxpage/internal/tracing"
)

var (
	serveAddr         string
	serveDB           string
	serveSentryDSN    string
	serveEnvironment  string
	serveOTLPEndpoint string
	serveGzip         bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo article site",
	Long: `Serve the demo article site over HTTP.

Pages are assembled from widgets backed by a SQLite store. Widget
failures degrade to error fragments and are reported to Sentry when a
DSN is configured. Spans are exported over OTLP when an endpoint is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDB, "db", ":memory:", "SQLite database path")
	serveCmd.Flags().StringVar(&serveSentryDSN, "sentry-dsn", os.Getenv("SENTRY_DSN"), "Sentry DSN for widget error reporting")
	serveCmd.Flags().StringVar(&serveEnvironment, "environment", "development", "Deployment environment reported to Sentry and tracing")
	serveCmd.Flags().StringVar(&serveOTLPEndpoint, "otlp-endpoint", "", "OTLP HTTP endpoint (host:port); empty disables tracing")
	serveCmd.Flags().BoolVar(&serveGzip, "gzip", true, "Compress responses for clients that accept gzip")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := hxpage.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.DefaultLayout == "" {
		cfg.DefaultLayout = demo.LayoutMain
	}

	logger, err := hxpage.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveOTLPEndpoint != "" {
		tcfg := tracing.DefaultConfig("hxpage")
		tcfg.ServiceVersion = version
		tcfg.Environment = serveEnvironment
		tcfg.OTLPEndpoint = serveOTLPEndpoint
		shutdown, err := tracing.Setup(ctx, tcfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = tracing.Shutdown(shutdown, logger) }()
	}

	opts := []hxpage.Option{hxpage.WithLogger(logger)}
	if serveSentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         serveSentryDSN,
			Environment: serveEnvironment,
			Release:     "hxpage@" + version,
		})
		if err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		opts = append(opts, hxpage.WithWidgetErrorHook(reportWidgetError))
	}

	store, err := demo.OpenStore(ctx, serveDB)
	if err != nil {
		return err
	}
	defer store.Close()

	p := hxpage.NewPipeline(demo.Registry(store), cfg, opts...)
	demo.Routes(p, store)

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           newHandler(p, serveGzip),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", serveAddr), zap.String("db", serveDB))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newHandler wraps the pipeline for serving. Pages are mostly repeated
// markup, so they compress well.
func newHandler(p *hxpage.Pipeline, compress bool) http.Handler {
	if !compress {
		return p
	}
	return gzhttp.GzipHandler(p)
}

// reportWidgetError sends a degraded widget to Sentry. The page itself is
// still served.
func reportWidgetError(ctx context.Context, werr *hxpage.WidgetError) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("widget", werr.Widget)
		scope.SetTag("widget_phase", string(werr.Phase))
		scope.SetExtra("path", werr.Path)
		hub.CaptureException(werr)
	})
}
