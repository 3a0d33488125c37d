package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/jobclient"
	"github.com/jaakkos/skydash/internal/render"
	"github.com/jaakkos/skydash/internal/tools/analysis"
	"github.com/jaakkos/skydash/internal/tui"
)

// errReported means the problem was already printed.
var errReported = errors.New("already reported")

func newFlagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: skydash %s %s\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses flags that may appear before or after positional
// arguments and returns the positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, errReported
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// reportPath resolves where to save a report: target may be a .pdf file
// path or a directory.
func reportPath(target string, rep jobclient.Report) string {
	if strings.EqualFold(filepath.Ext(target), ".pdf") {
		return target
	}
	return filepath.Join(target, rep.Filename)
}

func saveReport(target string, rep jobclient.Report) (string, error) {
	path := reportPath(target, rep)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, rep.Data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func runAnalyze(args []string) error {
	fs := newFlagSet("analyze", "<file> [flags]")
	apiURL := fs.String("api", "", "backend API root")
	report := fs.Bool("report", false, "download the PDF report when the analysis completes")
	reportTo := fs.String("o", "", "report file or directory (default: report_dir)")
	charts := fs.String("charts", "", "export chart PNGs to this directory (default: charts_dir)")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		fs.Usage()
		return errReported
	}

	e := newEnv(*apiURL, false)
	defer e.close()

	chartsDir := e.settings.ChartsDir()
	if *charts != "" {
		chartsDir = *charts
	}
	console := render.NewConsole(os.Stdout, render.WithChartsDir(chartsDir))
	session := e.newSession(console)
	defer session.Close()

	ctx, cancel := signalContext()
	defer cancel()

	f, err := jobclient.OpenFile(pos[0])
	if err != nil {
		return err
	}
	if err := session.StartUpload(f); err != nil {
		// the console already printed the reason
		if jobclient.IsValidation(err) {
			return errReported
		}
		return err
	}

	snap, err := session.Wait(ctx)
	if err != nil {
		return fmt.Errorf("interrupted while %s", snap.Phase)
	}
	if snap.Phase != domain.PhaseCompleted {
		return fmt.Errorf("analysis %s", snap.Phase)
	}

	if !*report && *reportTo == "" {
		return nil
	}
	target := *reportTo
	if target == "" {
		target = e.settings.ReportDir()
	}
	rep, err := session.DownloadReport(ctx)
	if err != nil {
		return err
	}
	path, err := saveReport(target, rep)
	if err != nil {
		return err
	}
	fmt.Printf("Report saved to %s (%s)\n", path, humanize.Bytes(uint64(len(rep.Data))))
	return nil
}

func runTUI(args []string) error {
	fs := newFlagSet("tui", "[file] [flags]")
	apiURL := fs.String("api", "", "backend API root")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) > 1 {
		fs.Usage()
		return errReported
	}

	e := newEnv(*apiURL, false)
	defer e.close()

	obs := tui.NewObserver()
	session := e.newSession(obs)
	defer session.Close()

	opts := []tui.Option{tui.WithReportDir(e.settings.ReportDir())}
	if len(pos) == 1 {
		opts = append(opts, tui.WithInitialFile(pos[0]))
	}
	p := tea.NewProgram(tui.New(session, opts...), tea.WithAltScreen())
	obs.Attach(p)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

func runServe(args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	return serve(ctx, args, os.Stdout)
}

// serve runs the dashboard, drop folder and schedule until ctx is done.
func serve(ctx context.Context, args []string, out io.Writer) error {
	fs := newFlagSet("serve", "[flags]")
	apiURL := fs.String("api", "", "backend API root")
	port := fs.Int("port", -1, "dashboard port (default: http_port, 0 picks a free port)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	e := newEnv(*apiURL, true)
	defer e.close()
	logger := e.logger

	maxCount, maxAgeDays := e.settings.HistoryRetention()
	app.PruneHistory(e.history, maxCount, maxAgeDays, logger)

	console := render.NewConsole(out, render.WithChartsDir(e.settings.ChartsDir()))
	session := e.newSession(console)
	defer session.Close()

	httpPort := e.settings.HTTPPort()
	if *port >= 0 {
		httpPort = *port
	}
	baseURL, httpShutdown, err := startHTTPServer(httpPort, session, e.history, logger)
	if err != nil {
		return err
	}
	defer httpShutdown()
	fmt.Fprintf(out, "Dashboard: %s/dashboard\n", baseURL)

	if w := e.settings.Watch(); w != nil {
		if err := os.MkdirAll(w.Dir, 0o755); err != nil {
			logger.Printf("Warning: drop folder disabled: %v", err)
		} else {
			dw := app.NewDropWatcher(w.Dir, session,
				app.WithDebounce(time.Duration(w.DebounceMS)*time.Millisecond),
				app.WithDropLogger(logger),
			)
			go func() {
				if err := dw.Start(ctx); err != nil {
					logger.Printf("Warning: drop folder stopped: %v", err)
				}
			}()
			defer dw.Stop()
			fmt.Fprintf(out, "Watching %s for new exports\n", w.Dir)
		}
	}

	if sc := e.settings.Schedule(); sc != nil {
		sched, err := app.NewSchedule(sc.Cron, sc.File, session, logger)
		if err != nil {
			logger.Printf("Warning: schedule disabled: %v", err)
		} else {
			sched.Start()
			defer sched.Stop()
			fmt.Fprintf(out, "Scheduled %s (%s), next run %s\n", sc.File, sc.Cron, humanize.Time(sched.Next()))
		}
	}

	go session.CheckHealth(ctx)

	<-ctx.Done()
	logger.Println("Shutting down...")
	return nil
}

func runMCP(args []string) error {
	fs := newFlagSet("mcp", "[flags]")
	apiURL := fs.String("api", "", "backend API root")
	noDashboard := fs.Bool("no-dashboard", false, "do not serve the browser dashboard")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	e := newEnv(*apiURL, true)
	defer e.close()
	logger := e.logger
	logger.Println("Starting MCP server...")

	session := e.newSession()
	defer session.Close()

	hooks := &server.Hooks{}
	hooks.AddAfterCallTool(func(ctx context.Context, id any, message *mcp.CallToolRequest, result *mcp.CallToolResult) {
		if message != nil {
			logger.Printf("Calling tool: %s", message.Params.Name)
		}
	})
	mcpServer := server.NewMCPServer("skydash", Version, server.WithHooks(hooks))

	regOpts := []analysis.RegisterOption{analysis.WithReportDir(e.settings.ReportDir())}
	if e.history != nil {
		regOpts = append(regOpts, analysis.WithHistory(e.history))
	}
	analysis.Register(mcpServer, session, logger, regOpts...)

	ctx, cancel := signalContext()
	defer cancel()

	if !*noDashboard {
		_, httpShutdown, err := startHTTPServer(e.settings.HTTPPort(), session, e.history, logger)
		if err != nil {
			logger.Printf("Warning: dashboard disabled: %v", err)
		} else {
			defer httpShutdown()
		}
	}

	logger.Println("Stdio ready")
	stdioSrv := server.NewStdioServer(mcpServer)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("Stdio server stopped: %v", err)
	}
	logger.Println("Server stopped")
	return nil
}

func openHistory(apiURL string) (*env, error) {
	e := newEnv(apiURL, false)
	if e.history == nil {
		e.close()
		return nil, fmt.Errorf("history store %s is not available", e.settings.StateFile())
	}
	return e, nil
}

func runHistory(args []string) error {
	fs := newFlagSet("history", "[flags]")
	limit := fs.Int("limit", 20, "number of analyses to list")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if *limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}

	e, err := openHistory("")
	if err != nil {
		return err
	}
	defer e.close()

	recs, err := e.history.ListAnalyses(*limit)
	if err != nil {
		return err
	}
	fmt.Println(render.HistoryTable(recs, time.Now()))
	return nil
}

func runShow(args []string) error {
	fs := newFlagSet("show", "<id>")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		fs.Usage()
		return errReported
	}

	e, err := openHistory("")
	if err != nil {
		return err
	}
	defer e.close()

	rec, err := e.history.GetAnalysis(pos[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s  %s  (%s, took %s)\n", rec.ID, rec.Filename, rec.Phase,
		humanize.Time(rec.FinishedAt), rec.Duration().Round(time.Second))
	if rec.Error != "" {
		fmt.Println(render.LevelStyle("error").Render("✗ " + rec.Error))
	}
	if len(rec.Result) == 0 {
		return nil
	}
	res, err := domain.ParseResult(rec.Result)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(render.Dashboard(res))
	return nil
}

func runHealth(args []string) error {
	fs := newFlagSet("health", "[flags]")
	apiURL := fs.String("api", "", "backend API root")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	e := newEnv(*apiURL, false)
	defer e.close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session := e.newSession(render.NewConsole(os.Stdout))
	defer session.Close()
	if !session.CheckHealth(ctx) {
		return fmt.Errorf("backend %s did not respond", e.settings.APIBaseURL())
	}
	return nil
}
