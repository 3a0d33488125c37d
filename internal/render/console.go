package render

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jaakkos/skydash/internal/app"
	"github.com/jaakkos/skydash/internal/domain"
	"github.com/jaakkos/skydash/internal/jobclient"
)

// Console is an app.Observer that prints session events as lines of text.
type Console struct {
	out       io.Writer
	chartsDir string

	mu      sync.Mutex
	percent int
	step    string
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithChartsDir exports chart PNGs to dir when a run completes.
func WithChartsDir(dir string) ConsoleOption {
	return func(c *Console) { c.chartsDir = dir }
}

// NewConsole prints to w.
func NewConsole(w io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{out: w, percent: -1}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ app.Observer = (*Console)(nil)

func (c *Console) OnUploadStart(filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.percent, c.step = -1, ""
	fmt.Fprintf(c.out, "Uploading %s...\n", filename)
}

// OnProgress prints only when the percentage or step changed.
func (c *Console) OnProgress(percent int, step string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if percent == c.percent && step == c.step {
		return
	}
	c.percent, c.step = percent, step
	line := fmt.Sprintf("[%3d%%]", percent)
	if step != "" {
		line += " " + step
	}
	fmt.Fprintln(c.out, MutedStyle.Render(line))
}

func (c *Console) OnCompleted(result *domain.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, Dashboard(result))
	if c.chartsDir == "" {
		return
	}
	paths, err := WriteCharts(c.chartsDir, result)
	if err != nil {
		fmt.Fprintln(c.out, LevelStyle("error").Render("✗ Chart export failed: "+err.Error()))
	}
	for _, p := range paths {
		fmt.Fprintln(c.out, MutedStyle.Render("chart: "+p))
	}
}

func (c *Console) OnFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, MutedStyle.Render("  "+err.Error()))
}

func (c *Console) OnValidationError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := err.Error()
	var ve *jobclient.ValidationError
	if errors.As(err, &ve) {
		msg = ve.Reason
	}
	fmt.Fprintln(c.out, LevelStyle("error").Render("✗ "+msg))
}

func (c *Console) OnNotice(n app.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	level := string(n.Level)
	fmt.Fprintln(c.out, LevelStyle(level).Render(LevelIcon(level)+" "+n.Message))
}

func (c *Console) OnReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.percent, c.step = -1, ""
	fmt.Fprintln(c.out, MutedStyle.Render("Session reset"))
}
