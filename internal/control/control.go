// Package control implements the embedded operator HTTP surface: /ok,
// /silence, /unsilence, /args, /logs, /kill. Handlers are thin delegates
// to the Scheduler; bad input comes back as a 200 page carrying the
// message, never a 5xx. The /logs/stream websocket endpoint is the
// exception: before upgrading it answers an invalid level with 400 and an
// unreadable log file with 500.
package control

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skurt/geofence-monitor/internal/config"
	"github.com/skurt/geofence-monitor/internal/logging"
	"github.com/skurt/geofence-monitor/internal/render"
)

// durationPattern accepts day/hour/minute/second groups, all optional but
// only in this order; an empty string must fail.
var durationPattern = regexp.MustCompile(`^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// Scheduler is the subset of *scheduler.Scheduler the ControlSurface
// delegates to; declared as an interface here so this package does not
// import scheduler directly, keeping the dependency direction leaf-ward.
type Scheduler interface {
	Silence(durationSeconds float64)
	Unsilence() bool
}

// ControlSurface is the embedded HTTP server. Kill is nil in tests, in
// which case /kill answers 404.
type ControlSurface struct {
	router    *chi.Mux
	scheduler Scheduler
	cfg       *config.Config
	logFiles  *logging.Files
	renderer  render.Renderer
	logger    logging.Logger
	Kill      func()
}

// New assembles the ControlSurface's router. The shutdown hook is wired
// separately via the Kill field so tests can leave it nil.
func New(sched Scheduler, cfg *config.Config, logFiles *logging.Files, renderer render.Renderer, logger logging.Logger) *ControlSurface {
	c := &ControlSurface{
		scheduler: sched,
		cfg:       cfg,
		logFiles:  logFiles,
		renderer:  renderer,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ok", c.handleOK)
	r.Get("/silence", c.handleSilenceDefault)
	r.Get("/silence/{duration}", c.handleSilence)
	r.Get("/unsilence", c.handleUnsilence)
	r.Get("/args", c.handleArgs)
	r.Get("/logs", c.handleLogs)
	r.Get("/logs/{level}", c.handleLogs)
	r.Get("/logs/stream", c.handleLogStreamDefault)
	r.Get("/logs/stream/{level}", c.handleLogStream)
	r.Get("/kill", c.handleKill)

	c.router = r
	return c
}

// Router exposes the assembled chi.Mux, e.g. for http.ListenAndServe or
// httptest.NewServer in tests.
func (c *ControlSurface) Router() *chi.Mux {
	return c.router
}

func (c *ControlSurface) handleOK(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

func (c *ControlSurface) handleSilenceDefault(w http.ResponseWriter, r *http.Request) {
	c.silence(w, "1h")
}

func (c *ControlSurface) handleSilence(w http.ResponseWriter, r *http.Request) {
	c.silence(w, chi.URLParam(r, "duration"))
}

func (c *ControlSurface) silence(w http.ResponseWriter, duration string) {
	seconds, err := parseDuration(duration)
	if err != nil {
		c.renderPage(w, "control_invalid_silence", map[string]any{"duration": duration})
		return
	}
	c.scheduler.Silence(seconds)
	c.renderPage(w, "control_silenced", map[string]any{"duration": duration})
}

func (c *ControlSurface) handleUnsilence(w http.ResponseWriter, r *http.Request) {
	if c.scheduler.Unsilence() {
		c.renderPage(w, "control_unsilenced", nil)
		return
	}
	c.renderPage(w, "control_already_unsilenced", nil)
}

func (c *ControlSurface) handleArgs(w http.ResponseWriter, r *http.Request) {
	c.renderPage(w, "control_args", map[string]any{"entries": c.cfg.SortedEntries()})
}

func (c *ControlSurface) handleLogs(w http.ResponseWriter, r *http.Request) {
	level := chi.URLParam(r, "level")
	if level == "" {
		level = "info"
	}
	switch strings.ToLower(level) {
	case "info", "warning", "error":
	default:
		c.renderPage(w, "control_invalid_log_level", map[string]any{"level": level})
		return
	}
	content, err := c.logFiles.Content(level)
	if err != nil {
		c.renderPage(w, "control_invalid_log_level", map[string]any{"level": level})
		return
	}
	c.renderPage(w, "control_logs", map[string]any{"content": string(content)})
}

func (c *ControlSurface) handleKill(w http.ResponseWriter, r *http.Request) {
	if c.Kill == nil {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "shutting down")
	go c.Kill()
}

func (c *ControlSurface) renderPage(w http.ResponseWriter, templateID string, values map[string]any) {
	body, err := c.renderer.Render(templateID, values)
	if err != nil {
		c.logger.Error("failed to render control page", "template", templateID, "error", err)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "internal rendering error")
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, body)
}

// parseDuration parses the silence duration grammar into total seconds.
// An empty string, or one that does not fully match the grammar, is an
// error; a string that matches but captures nothing (only possible for "")
// is also rejected.
func parseDuration(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var total float64
	units := [4]float64{86400, 3600, 60, 1}
	for i, group := range m[1:] {
		if group == "" {
			continue
		}
		n, err := strconv.ParseFloat(group, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration component %q: %w", group, err)
		}
		total += n * units[i]
	}
	return total, nil
}
