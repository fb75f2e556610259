package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports database reachability. *database.DB implements it.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionStatus reports a broker connection. *mqttclient.Client implements it.
type ConnectionStatus interface {
	IsConnected() bool
}

// ModelInfo identifies the configured language model. llm.Provider implements it.
type ModelInfo interface {
	Name() string
	Model() string
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	LLM           *LLMInfo          `json:"llm,omitempty"`
}

type LLMInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// HealthOptions wires the health checks. Nil dependencies are reported as
// not_configured.
type HealthOptions struct {
	DB         Pinger
	MQTT       ConnectionStatus
	Live       LiveFeed
	LLM        ModelInfo
	Recordings string // storage backend type
	Version    string
	StartTime  time.Time
}

type HealthHandler struct {
	opts HealthOptions
}

func NewHealthHandler(opts HealthOptions) *HealthHandler {
	return &HealthHandler{opts: opts}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK
	degrade := func() {
		if status == "healthy" {
			status = "degraded"
		}
	}

	// Database check
	if h.opts.DB == nil {
		checks["database"] = "not_configured"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.opts.DB.HealthCheck(ctx)
		cancel()
		if err != nil {
			checks["database"] = "error"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	// Live change feed check
	if h.opts.Live != nil {
		if s := h.opts.Live.Status(); s == "listening" {
			checks["live"] = "ok"
		} else {
			checks["live"] = s
			degrade()
		}
	} else {
		checks["live"] = "not_configured"
	}

	// MQTT check
	if h.opts.MQTT != nil {
		if h.opts.MQTT.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			degrade()
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	var llmInfo *LLMInfo
	if h.opts.LLM != nil {
		checks["llm"] = "ok"
		llmInfo = &LLMInfo{Provider: h.opts.LLM.Name(), Model: h.opts.LLM.Model()}
	} else {
		checks["llm"] = "not_configured"
		degrade()
	}

	if h.opts.Recordings != "" {
		checks["recordings"] = h.opts.Recordings
	} else {
		checks["recordings"] = "not_configured"
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.opts.Version,
		UptimeSeconds: int64(time.Since(h.opts.StartTime).Seconds()),
		Checks:        checks,
		LLM:           llmInfo,
	})
}
