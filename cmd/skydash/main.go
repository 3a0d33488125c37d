// Skydash: client for the customer query analytics backend.
// Upload an export, follow the analysis, and view the results in the
// terminal, the browser dashboard, or over MCP.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/config"
	"github.com/jaakkos/skydash/internal/dashboard"
	"github.com/jaakkos/skydash/internal/jobclient"
	"github.com/jaakkos/skydash/internal/repository"
)

// Version is set by -ldflags at build time.
var Version = "dev"

const logPrefix = "[skydash] "

const usage = `Usage: skydash <command> [flags]

Commands:
  analyze <file>   upload a query export and print the results
  tui [file]       interactive terminal dashboard
  serve            browser dashboard, drop folder and scheduled runs
  mcp              MCP server on stdio (dashboard on the HTTP port)
  history          list past analyses
  show <id>        print a past analysis
  health           check the backend connection
  version          print the version

Environment:
  SKYDASH_CONFIG   path to a YAML config file
  SKYDASH_API_URL  backend API root (overrides api_base_url)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "analyze":
		err = runAnalyze(args)
	case "tui":
		err = runTUI(args)
	case "serve":
		err = runServe(args)
	case "mcp":
		err = runMCP(args)
	case "history":
		err = runHistory(args)
	case "show":
		err = runShow(args)
	case "health":
		err = runHealth(args)
	case "--version", "-v", "version":
		fmt.Println("skydash " + Version)
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		if err != errReported {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// env is the shared wiring for every command that talks to the backend.
type env struct {
	settings *config.Settings
	logger   *log.Logger
	client   *jobclient.Client
	history  app.HistoryRepository
}

// newEnv loads config and opens the history store. When stderr is false
// the logger never writes to the terminal (the TUI owns it). A history
// store that fails to open is logged and left nil.
func newEnv(apiURL string, stderr bool) *env {
	tmpLogger := log.New(os.Stderr, logPrefix, log.LstdFlags|log.Lshortfile)
	if !stderr {
		tmpLogger.SetOutput(io.Discard)
	}
	settings := config.New(loadConfig(tmpLogger))
	settings.SetAPIBaseURL(os.Getenv("SKYDASH_API_URL"))
	settings.SetAPIBaseURL(apiURL)

	logger := setupLogger(settings.LogFile(), stderr)
	logger.Printf("skydash %s, backend %s", Version, settings.APIBaseURL())

	e := &env{
		settings: settings,
		logger:   logger,
		client:   jobclient.New(settings.APIBaseURL(), jobclient.WithTimeout(settings.RequestTimeout())),
	}
	hist, err := repository.NewHistoryRepository(settings.StateFile())
	if err != nil {
		logger.Printf("Warning: history disabled: %v", err)
	} else {
		e.history = hist
	}
	return e
}

func (e *env) newSession(obs ...app.Observer) *app.Session {
	maxCount, maxAgeDays := e.settings.HistoryRetention()
	opts := []app.SessionOption{
		app.WithObserver(app.Observers(obs...)),
		app.WithSessionPollInterval(e.settings.PollInterval()),
		app.WithHistoryRetention(maxCount, maxAgeDays),
		app.WithLogger(e.logger),
	}
	if e.history != nil {
		opts = append(opts, app.WithHistory(e.history))
	}
	return app.NewSession(e.client, opts...)
}

func (e *env) close() {
	if e.history == nil {
		return
	}
	if c, ok := e.history.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			e.logger.Printf("Warning: close history: %v", err)
		}
	}
}

// setupLogger creates a logger that writes to a log file and optionally stderr.
// With stderr allowed, logs go to stderr when it is a terminal or when no
// log file could be opened.
func setupLogger(logFilePath string, stderr bool) *log.Logger {
	var writers []io.Writer

	stderrIsTerminal := false
	if info, err := os.Stderr.Stat(); err == nil {
		stderrIsTerminal = (info.Mode() & os.ModeCharDevice) != 0
	}

	hasLogFile := false
	lower := strings.ToLower(logFilePath)
	if lower != "none" && lower != "off" && logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err == nil {
			f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				writers = append(writers, f)
				hasLogFile = true
			} else if stderr {
				fmt.Fprintf(os.Stderr, logPrefix+"Warning: cannot open log file %s: %v\n", logFilePath, err)
			}
		} else if stderr {
			fmt.Fprintf(os.Stderr, logPrefix+"Warning: cannot create log dir %s: %v\n", filepath.Dir(logFilePath), err)
		}
	}

	if stderr && (stderrIsTerminal || !hasLogFile) {
		writers = append(writers, os.Stderr)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	return log.New(io.MultiWriter(writers...), logPrefix, log.LstdFlags|log.Lshortfile)
}

// loadConfig loads configuration from SKYDASH_CONFIG or defaults.
func loadConfig(logger *log.Logger) *config.Config {
	cfg := config.DefaultConfig()
	if configPath := os.Getenv("SKYDASH_CONFIG"); configPath != "" {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			logger.Printf("Warning: failed to load config %s: %v, using defaults", configPath, err)
			cfg = config.DefaultConfig()
		}
	}
	return cfg
}

// startHTTPServer serves the dashboard in the background and returns its
// address and a shutdown function. Port 0 picks a free port.
func startHTTPServer(port int, session dashboard.SessionController, history app.HistoryRepository, logger *log.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return "", nil, fmt.Errorf("HTTP listen: %w", err)
	}
	actualPort := ln.Addr().(*net.TCPAddr).Port
	baseURL := fmt.Sprintf("http://localhost:%d", actualPort)

	logger.Printf("HTTP server on :%d", actualPort)
	logger.Printf("  Dashboard: %s/dashboard", baseURL)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","port":%d}`, actualPort)
	})

	var dashOpts []dashboard.HandlerOption
	if history != nil {
		dashOpts = append(dashOpts, dashboard.WithHistory(history))
	}
	dashboard.NewHandler(session, dashOpts...).RegisterRoutes(mux)

	httpServer := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpServer.Serve(ln); err != http.ErrServerClosed {
			logger.Printf("HTTP server error: %v", err)
		}
	}()

	return baseURL, func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
	}, nil
}
