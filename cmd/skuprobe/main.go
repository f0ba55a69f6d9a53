// CLAUDE:SUMMARY CLI entry point for skuprobe — one-shot page collection, config-driven daemon with HTTP API, uploader, MCP server.
// Command skuprobe collects product analytics from live e-commerce
// pages.
//
// Usage:
//
//	skuprobe -config skuprobe.yaml          # collect pages from YAML config, serve API
//	skuprobe -url https://.../12345.html    # collect a single page and print the record
//	skuprobe -config skuprobe.yaml -mcp     # additionally serve MCP tools on stdio
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/skuwatch/skuprobe/api"
	"github.com/skuwatch/skuprobe/browser"
	"github.com/skuwatch/skuprobe/capture"
	"github.com/skuwatch/skuprobe/collector"
	"github.com/skuwatch/skuprobe/config"
	"github.com/skuwatch/skuprobe/inspect"
	"github.com/skuwatch/skuprobe/mcptool"
	"github.com/skuwatch/skuprobe/queue"
	"github.com/skuwatch/skuprobe/store"
)

func main() {
	configPath := flag.String("config", "", "path to skuprobe.yaml config file")
	singleURL := flag.String("url", "", "collect a single URL and print the record")
	serveMCP := flag.Bool("mcp", false, "serve MCP tools on stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *serveMCP); err != nil {
		logger.Error("skuprobe: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL string, serveMCP bool) error {
	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else if singleURL != "" {
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	} else {
		fmt.Fprintln(os.Stderr, "usage: skuprobe -config <file> | -url <url>")
		os.Exit(1)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	mgr := browser.NewManager(browser.Config{
		RemoteURL:   cfg.Browser.Remote,
		Stealth:     cfg.Browser.Stealth,
		NavTimeout:  cfg.Browser.NavTimeout,
		XvfbDisplay: cfg.Browser.XvfbDisplay,
		Logger:      logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	defer mgr.Close()

	extractor := inspect.New(
		inspect.NewCDPAttacher(mgr.Browser()),
		inspect.Config{
			PanelSelector: cfg.Inspect.PanelSelector,
			PanelMarker:   cfg.Inspect.PanelMarker,
			SettleDelay:   cfg.Inspect.SettleDelay,
			Sampler: inspect.SamplerConfig{
				ChartSelector:    cfg.Inspect.ChartSelector,
				OverlaySelectors: cfg.Inspect.OverlaySelectors,
			},
		},
		inspect.WithPolicy(inspect.Policy{
			MaxAttempts: cfg.Inspect.MaxAttempts,
			Backoff:     cfg.Inspect.Backoff,
		}),
		inspect.WithTelemetry(inspect.SlogTelemetry{Logger: logger}),
		inspect.WithLogger(logger),
	)

	var spool *queue.Spool
	if cfg.Uploader.Endpoint != "" {
		spool = queue.NewSpool(st.DB, queue.SpoolOptions{Logger: logger})
		if err := spool.EnsureTable(ctx); err != nil {
			return fmt.Errorf("spool: %w", err)
		}
	}

	var images *capture.ImageDownloader
	if cfg.Images.Dir != "" {
		images = capture.NewImageDownloader(capture.ImageDownloaderOptions{
			Dir:       cfg.Images.Dir,
			MaxImages: cfg.Images.Max,
			Logger:    logger,
		})
	}

	coll := collector.New(collector.NewBrowserOpener(mgr), extractor, st, collector.Options{
		AnalyticsDelay: cfg.Inspect.AnalyticsDelay,
		Spool:          spool,
		Images:         images,
		Logger:         logger,
	})

	if singleURL != "" {
		return runSingle(ctx, coll, singleURL)
	}

	return runDaemon(ctx, logger, cfg, st, spool, coll, serveMCP)
}

func runSingle(ctx context.Context, coll *collector.Collector, url string) error {
	rec, err := coll.CollectPage(ctx, url)
	if err != nil {
		return err
	}
	data, _ := json.MarshalIndent(rec, "", "  ")
	os.Stdout.Write(data)
	os.Stdout.Write([]byte("\n"))
	return nil
}

func runDaemon(ctx context.Context, logger *slog.Logger, cfg *config.Config, st *store.Store, spool *queue.Spool, coll *collector.Collector, serveMCP bool) error {
	if spool != nil {
		uploader := queue.NewUploader(spool, queue.UploaderOptions{
			Endpoint:  cfg.Uploader.Endpoint,
			Token:     cfg.Uploader.Token,
			Interval:  cfg.Uploader.Interval,
			BatchSize: cfg.Uploader.BatchSize,
			Logger:    logger,
		})
		go uploader.Run(ctx)
	}

	svc := api.New(st, coll.CollectPage, logger)
	srv := &http.Server{Addr: cfg.API.Addr, Handler: svc.Router()}
	go func() {
		logger.Info("skuprobe: API listening", "addr", cfg.API.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("skuprobe: API server", "error", err)
		}
	}()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	if serveMCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "skuprobe", Version: "1.0.0"}, nil)
		mcptool.New(st, coll.CollectPage, logger).RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil {
				logger.Error("skuprobe: MCP server", "error", err)
			}
		}()
	}

	if len(cfg.Pages) > 0 {
		urls := make([]string, 0, len(cfg.Pages))
		for _, p := range cfg.Pages {
			urls = append(urls, p.URL)
		}
		if failed := coll.Run(ctx, urls); failed > 0 {
			logger.Warn("skuprobe: initial sweep finished with failures", "failed", failed)
		}
	}

	<-ctx.Done()
	logger.Info("skuprobe: shutting down")
	return nil
}
