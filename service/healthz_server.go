package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/exitcodes"
	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

// RunStatus is what the healthz endpoint knows about the latest test run
type RunStatus struct {
	RunID    string    `json:"runId"`
	ExitCode int       `json:"exitCode"`
	Summary  string    `json:"summary"`
	Finished time.Time `json:"finished"`
}

// healthzResponse is the body served on /healthz
type healthzResponse struct {
	Status  string     `json:"status"`
	Runs    int        `json:"runs"`
	LastRun *RunStatus `json:"lastRun,omitempty"`
}

const (
	healthStarting  = "starting"
	healthOK        = "ok"
	healthUnhealthy = "unhealthy"
)

// HealthzServer reports whether the harness is able to run tests. It is not
// ready until the first run finishes, and unhealthy while the latest run could
// not execute or report. Failing tests do not make the harness unhealthy.
type HealthzServer struct {
	ctx    context.Context
	server *http.Server
	log    log.Logger

	mu   sync.RWMutex
	runs int
	last *RunStatus
}

func (h *HealthzServer) Handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(hdlr)
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Handler: h.Handler(),
		Addr:    addr,
	}
	h.server = server
	h.ctx = ctx
	return h.server.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(h.ctx)
}

// RecordRun stores the status of a finished run
func (h *HealthzServer) RecordRun(status RunStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs++
	s := status
	h.last = &s
}

func (h *HealthzServer) snapshot() (healthzResponse, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	resp := healthzResponse{Runs: h.runs}
	switch {
	case h.last == nil:
		resp.Status = healthStarting
		return resp, http.StatusServiceUnavailable
	case h.last.ExitCode == exitcodes.RuntimeErr || h.last.ExitCode == exitcodes.ReportErr:
		resp.Status = healthUnhealthy
	default:
		resp.Status = healthOK
	}
	last := *h.last
	resp.LastRun = &last
	if resp.Status == healthUnhealthy {
		return resp, http.StatusServiceUnavailable
	}
	return resp, http.StatusOK
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	resp, code := h.snapshot()
	if h.log != nil {
		h.log.Debug("Received health check request", "path", r.URL.Path, "status", resp.Status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil && h.log != nil {
		h.log.Warn("Failed to write health check response", "err", err)
	}
}
