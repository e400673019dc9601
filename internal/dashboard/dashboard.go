package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/ratebench/internal/metrics"
)

// RunConfig holds the run parameters shown in the summary panel.
type RunConfig struct {
	TargetURL     string
	Rate          uint
	Timeout       time.Duration
	IgnoreReasons []string
	ConfigFile    string
	RunID         string
}

// Dashboard renders a live terminal UI for a running load test.
type Dashboard struct {
	collector *metrics.Collector
	ctx       context.Context
	cancel    context.CancelFunc
	interrupt func()
	wg        sync.WaitGroup
	mu        sync.Mutex
	stopOnce  sync.Once

	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	rpsGauge       *widgets.Gauge
	reasonList     *widgets.List
	summaryPara    *widgets.Paragraph
	metricsPara    *widgets.Paragraph
	latencyHistory []float64
	cfg            RunConfig
}

// New initializes the terminal. interrupt is invoked when the user presses q or Ctrl-C,
// since the terminal is in raw mode and no SIGINT is delivered.
func New(collector *metrics.Collector, cfg RunConfig, interrupt func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:      collector,
		ctx:            ctx,
		cancel:         cancel,
		interrupt:      interrupt,
		latencyHistory: make([]float64, 0, 100),
		cfg:            cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Average latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = latencyText(metrics.Stats{})
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.rpsGauge = widgets.NewGauge()
	d.rpsGauge.Title = "Achieved Rate"
	d.rpsGauge.Percent = 0
	d.rpsGauge.BarColor = ui.ColorBlue
	d.rpsGauge.BorderStyle.Fg = ui.ColorCyan
	d.rpsGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.reasonList = widgets.NewList()
	d.reasonList.Title = "Failure Reasons"
	d.reasonList.Rows = formatReasonRows(nil)
	d.reasonList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.reasonList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Counters"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.22,
			ui.NewCol(0.5, d.rpsGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.32,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.30,
			ui.NewCol(1.0, d.reasonList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop ends the update loop and restores the terminal. It is safe to call more than once.
func (d *Dashboard) Stop() {
	d.stopOnce.Do(func() {
		d.cancel()
		d.wg.Wait()
		ui.Close()
		// Give terminal time to restore
		time.Sleep(100 * time.Millisecond)
	})
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				if d.interrupt != nil {
					d.interrupt()
				}
				// Stop() ends the loop once the run has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.mu.Lock()
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				d.mu.Unlock()
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := d.collector.Elapsed()
	stats := d.collector.Stats(elapsed)

	if stats.Requests > 0 {
		d.latencyHistory = append(d.latencyHistory, float64(stats.AvgLatencyMs))
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf("Latency | Average: %dms | Min: %dms | Max: %dms",
			stats.AvgLatencyMs, stats.MinLatencyMs, stats.MaxLatencyMs)
	}

	d.rpsGauge.Percent = gaugePercent(stats.RequestsPerSec, d.cfg.Rate)
	d.rpsGauge.Label = fmt.Sprintf("%.1f / %d RPS", stats.RequestsPerSec, d.cfg.Rate)

	d.summaryPara.Text = summaryText(d.cfg, stats)
	d.metricsPara.Text = countersText(stats)
	d.latencyPara.Text = latencyText(stats)
	d.reasonList.Rows = formatReasonRows(stats.ErrorsByReason)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

// gaugePercent is the achieved rate as a share of the configured rate, capped at 100.
func gaugePercent(achieved float64, target uint) int {
	if target == 0 {
		target = 1
	}
	pct := int(achieved / float64(target) * 100)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

func summaryText(cfg RunConfig, stats metrics.Stats) string {
	return fmt.Sprintf("Target: %s\n%s\nElapsed: %s | Requests: %d | Errors: %.2f%%",
		cfg.TargetURL,
		formatRunParams(cfg),
		stats.Duration.Round(time.Second),
		stats.Requests,
		stats.ErrorPercent,
	)
}

func countersText(stats metrics.Stats) string {
	return fmt.Sprintf(
		"Requests:        %d\nSuccessful:      %d\nErrors:          %d\nIgnored errors:  %d\nRequests/sec:    %.2f",
		stats.Requests,
		stats.Successes,
		stats.Errors,
		stats.Ignored,
		stats.RequestsPerSec,
	)
}

func latencyText(stats metrics.Stats) string {
	return fmt.Sprintf(
		"Min:      %dms\nMax:      %dms\nAverage:  %dms\nP50:      %.2fms\nP90:      %.2fms\nP99:      %.2fms",
		stats.MinLatencyMs,
		stats.MaxLatencyMs,
		stats.AvgLatencyMs,
		stats.P50LatencyMs,
		stats.P90LatencyMs,
		stats.P99LatencyMs,
	)
}

func formatReasonRows(byReason map[string]uint64) []string {
	rows := metrics.FlattenReasons(byReason)
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	if len(rows) > 10 {
		rows = rows[:10]
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", metrics.FriendlyReason(row.Reason), row.Count))
	}
	return formatted
}

func formatRunParams(cfg RunConfig) string {
	parts := []string{fmt.Sprintf("Rate: %d/s", cfg.Rate)}

	if cfg.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", cfg.Timeout))
	}
	if len(cfg.IgnoreReasons) > 0 {
		parts = append(parts, fmt.Sprintf("Ignoring: %s", strings.Join(cfg.IgnoreReasons, ",")))
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}
	if cfg.RunID != "" {
		parts = append(parts, fmt.Sprintf("Run: %s", cfg.RunID))
	}

	return strings.Join(parts, " | ")
}
