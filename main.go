// Command gridiron-odds starts the NFL matchup client.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing the REST API, page WebSocket, /metrics and an /mcp endpoint
//  2. "stdio-mcp" – runs an MCP stdio server over the same backend connection
//
// Flags control host/port, the YAML config file, debug logging, version
// output, and optional ngrok tunneling for easy external access during
// development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/gridiron-odds/api"
	"github.com/wricardo/gridiron-odds/matchup/config"
	"github.com/wricardo/gridiron-odds/matchup/protocol"
	"github.com/wricardo/gridiron-odds/matchup/router"
	"github.com/wricardo/gridiron-odds/matchup/service"
	"github.com/wricardo/gridiron-odds/matchup/session"
	"github.com/wricardo/gridiron-odds/matchup/teams"
	"github.com/wricardo/gridiron-odds/metrics"
	"github.com/wricardo/gridiron-odds/transport/mcp"
	"github.com/wricardo/gridiron-odds/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Gridiron Odds"
)

// Configuration flags control how the server starts and which services are enabled.
var (
	port         = flag.Int("port", 0, "HTTP server port (overrides config)")
	host         = flag.String("host", "localhost", "HTTP server host")
	configFile   = flag.String("config", getConfigFileDefault(), "YAML configuration file (optional)")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	version      = flag.Bool("version", false, "Show version information")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

// getConfigFileDefault honors MATCHUP_CONFIG and otherwise runs on built-in
// defaults.
func getConfigFileDefault() string {
	return os.Getenv(config.EnvPrefix + "CONFIG")
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, metrics and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio        Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                              # Run HTTP server on default port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config configs/matchup.yaml # Run with a config file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp                    # Run MCP stdio server\n", os.Args[0])
	}
}

// main parses flags and exits with the status of run.
func main() {
	os.Exit(run())
}

// run initializes services and starts the selected mode. Everything it
// opens is closed before it returns.
func run() int {
	// Load .env file if it exists (ignore error if not found)
	envErr := godotenv.Load()

	flag.Parse()

	// Show version if requested
	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		return 0
	}

	cfg, err := loadConfig(*configFile, *port, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := newLogger(cfg.LogLevel, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if envErr == nil {
		logger.Info("loaded environment variables from .env file")
	} else if !os.IsNotExist(envErr) {
		logger.Warn("error loading .env file", zap.Error(envErr))
	}

	// Determine mode from command
	args := flag.Args()
	mode := "server" // default
	if len(args) > 0 {
		mode = args[0]
	}

	logger.Info("starting",
		zap.String("app", AppName),
		zap.String("version", Version),
		zap.String("mode", mode),
		zap.String("backend", cfg.Backend.URL),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	app, err := initializeServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize services", zap.Error(err))
		return 1
	}
	defer app.Close()

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		err = runStdioMCP(app)

	case "server", "http":
		// Handle shutdown signals
		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = runHTTPServer(sigCtx, cfg, app)

	default:
		logger.Error("unknown mode, use 'server' (default) or 'stdio-mcp'", zap.String("mode", mode))
		return 2
	}

	if err != nil {
		logger.Error("server stopped with error", zap.String("mode", mode), zap.Error(err))
		return 1
	}
	return 0
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(path string, portOverride int, debugFlag bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if portOverride > 0 {
		cfg.Server.Port = portOverride
	}
	if debugFlag {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

// newLogger builds a production logger, or a development one with -debug.
func newLogger(level string, development bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if development {
		zcfg = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zcfg.Level = lvl
	return zcfg.Build()
}

// application holds the wired services shared by both modes.
type application struct {
	logger  *zap.Logger
	conn    *websocket.Conn
	pages   *session.Manager
	hub     *websocket.Hub
	service service.MatchupService
	mcp     *mcp.Server
}

// initializeServices opens the backend connection and wires the router, page
// manager, browser hub, service facade and MCP tools. It also starts a
// background routine pruning idle pages.
func initializeServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	catalog := teams.Default()
	if cfg.TeamsFile != "" {
		c, err := teams.Load(cfg.TeamsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load team catalog: %w", err)
		}
		catalog = c
	}

	m := metrics.New()
	r := router.New(router.WithLogger(logger), router.WithMetrics(m))

	conn := websocket.Open(ctx, websocket.Options{
		URL:               cfg.Backend.URL,
		HeartbeatInterval: cfg.Backend.HeartbeatInterval,
		HandshakeTimeout:  cfg.Backend.HandshakeTimeout,
		WriteWait:         cfg.Backend.WriteWait,
		Reconnect: websocket.ReconnectOptions{
			Enabled:     cfg.Backend.Reconnect.Enabled,
			Min:         cfg.Backend.Reconnect.Min,
			Max:         cfg.Backend.Reconnect.Max,
			Factor:      cfg.Backend.Reconnect.Factor,
			MaxAttempts: cfg.Backend.Reconnect.MaxAttempts,
		},
		Logger:    logger,
		Metrics:   m,
		OnMessage: r.HandleMessage,
	})

	pages := session.NewManager(session.Deps{
		Sender:        conn,
		Router:        r,
		Catalog:       catalog,
		Logger:        logger,
		Metrics:       m,
		DefaultScope:  protocol.Scope(cfg.History.DefaultScope),
		DefaultSeason: cfg.History.DefaultSeason,
	})

	// Push every view change to the browsers watching that page
	hub := websocket.NewHub(logger, websocket.WithHubMetrics(m))
	go hub.Run()
	pages.OnChange(func(pageID, view string, snapshot any) {
		hub.BroadcastToPage(pageID, view, snapshot)
	})

	svc := service.NewMatchupService(pages, conn, service.Options{
		Catalog: catalog,
		Backend: cfg.Backend.URL,
		Logger:  logger,
	})

	if cfg.Server.PageTTL > 0 {
		go pageCleanupRoutine(ctx, pages, cfg.Server.PageTTL, logger)
	}

	return &application{
		logger:  logger,
		conn:    conn,
		pages:   pages,
		hub:     hub,
		service: svc,
		mcp:     mcp.NewServer(svc, Version, mcp.WithLogger(logger)),
	}, nil
}

// Close releases pages, stops the hub and closes the backend connection.
func (a *application) Close() {
	a.pages.Close()
	a.hub.Stop()
	a.conn.Close()
}

// handler builds the HTTP surface: REST API, page WebSocket, metrics and MCP.
func (a *application) handler() http.Handler {
	return api.NewServer(a.service, a.hub,
		api.WithLogger(a.logger),
		api.WithMetricsHandler(promhttp.Handler()),
		api.WithMCPHandler(a.mcp.Handler()),
	)
}

// pageCleanupRoutine periodically removes pages that have not been accessed
// within ttl.
func pageCleanupRoutine(ctx context.Context, pages *session.Manager, ttl time.Duration, logger *zap.Logger) {
	interval := time.Hour
	if ttl < interval {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := pages.CleanupExpired(ttl); removed > 0 {
				logger.Info("cleaned up expired pages", zap.Int("removed", removed))
			}
		}
	}
}

// runHTTPServer serves until ctx ends or the listener fails. If ngrok is
// enabled (via flag or environment), it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, cfg *config.Config, app *application) error {
	logger := app.logger
	mainRouter := app.handler()

	addr := fmt.Sprintf("%s:%d", *host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	// Start regular HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening",
			zap.String("api", fmt.Sprintf("http://%s/api", addr)),
			zap.String("websocket", fmt.Sprintf("ws://%s/ws?page=<page_id>", addr)),
			zap.String("metrics", fmt.Sprintf("http://%s/metrics", addr)),
			zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)),
		)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	// Check if ngrok should be enabled (from flag or environment)
	ngrokShouldRun := *ngrokEnabled
	if !ngrokShouldRun {
		if envEnabled := os.Getenv("NGROK_ENABLED"); envEnabled == "true" || envEnabled == "1" {
			ngrokShouldRun = true
		}
	}

	// Start ngrok tunnel if enabled
	if ngrokShouldRun {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, mainRouter, logger)
		}()
	}

	var err error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Error("HTTP server shutdown error", zap.Error(serr))
	}

	wg.Wait()
	logger.Info("server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx ends.
func runNgrok(ctx context.Context, cfg *config.Config, handler http.Handler, logger *zap.Logger) {
	// Get auth token from flag or environment (support both naming conventions)
	authToken := *ngrokAuth
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
		if authToken == "" {
			authToken = os.Getenv("NGROK_AUTH_TOKEN")
		}
	}

	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	logger.Info("starting ngrok tunnel")

	// Flag, then environment, then config file
	domain := *ngrokDomain
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}
	if domain == "" {
		domain = cfg.Server.NgrokDomain
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		logger.Info("using custom ngrok domain", zap.String("domain", domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx,
		tunnel,
		ngrok.WithAuthtoken(authToken),
	)
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return
	}
	defer tun.Close()

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", ngrokURL),
		zap.String("api", ngrokURL+"/api"),
		zap.String("mcp", ngrokURL+"/mcp"),
	)

	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		// Closing the server closes tun and unblocks Serve.
		srv.Close()
	}()

	if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
}

// runStdioMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func runStdioMCP(app *application) error {
	app.logger.Info("MCP stdio server ready")

	if err := server.ServeStdio(app.mcp.MCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
