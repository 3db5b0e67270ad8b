package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/waitforme/internal/config"
	"github.com/loykin/waitforme/internal/events"
	"github.com/loykin/waitforme/internal/metrics"
	"github.com/loykin/waitforme/internal/supervisor"
	"github.com/loykin/waitforme/internal/ui"
)

// Controller is the running launcher as seen by the API.
type Controller interface {
	ui.Commands
	Snapshot() supervisor.Snapshot
	Config() config.AppConfig
}

// Options configure a Router.
type Options struct {
	BasePath string
	// Metrics mounts GET {basePath}/metrics.
	Metrics bool
	// Images are sampled by GET {basePath}/processes.
	Images []string
	Logger *slog.Logger
}

// Router provides embeddable HTTP handlers for controlling the launcher.
// Endpoints:
//
//	GET  {basePath}/status      supervisor snapshot
//	GET  {basePath}/config      config snapshot
//	GET  {basePath}/processes   resource usage of running komorebi images
//	POST {basePath}/retry       start a new attempt
//	POST {basePath}/logs        open the log file
//	POST {basePath}/minimize    minimize the splash
//	POST {basePath}/close       close the splash and stop the launcher
//	GET  {basePath}/events      websocket event stream and command channel
//	GET  {basePath}/metrics     Prometheus exposition (when enabled)
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	ctrl     Controller
	bus      *events.Bus
	basePath string
	opts     Options
	logger   *slog.Logger
}

func NewRouter(ctrl Controller, bus *events.Bus, opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{ctrl: ctrl, bus: bus, basePath: sanitizeBase(opts.BasePath), opts: opts, logger: logger}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/config", r.handleConfig)
	group.GET("/processes", r.handleProcesses)
	group.POST("/retry", r.handleRetry)
	group.POST("/logs", r.handleCommand(ui.CmdShowLogs))
	group.POST("/minimize", r.handleCommand(ui.CmdMinimize))
	group.POST("/close", r.handleCommand(ui.CmdClose))
	group.GET("/events", r.handleEvents)
	if r.opts.Metrics {
		group.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer wraps h in an http.Server with the usual timeouts. The caller
// owns Serve and Shutdown.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.ctrl.Snapshot())
}

func (r *Router) handleConfig(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.ctrl.Config())
}

func (r *Router) handleProcesses(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	samples, err := metrics.SampleImages(ctx, r.opts.Images)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if samples == nil {
		samples = []metrics.ProcessSample{}
	}
	writeJSON(c, http.StatusOK, samples)
}

func (r *Router) handleRetry(c *gin.Context) {
	r.ctrl.Retry()
	writeJSON(c, http.StatusAccepted, okResp{OK: true})
}

func (r *Router) handleCommand(cmd ui.Command) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ui.Dispatch(r.ctrl, cmd); err != nil {
			r.logger.Error("command failed", "command", string(cmd), "error", err)
			writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
			return
		}
		writeJSON(c, http.StatusAccepted, okResp{OK: true})
	}
}
