package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Pinger is satisfied by both stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BrokerState is satisfied by *amqp091.Connection.
type BrokerState interface {
	IsClosed() bool
}

type HealthHandler struct {
	Store     Pinger
	Broker    BrokerState
	Source    string
	Version   string
	StartTime time.Time
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]string `json:"dependencies"`
}

// NewHealthHandler takes a nil broker when messaging is disabled. source
// describes the extraction mode, e.g. "live" or "fixture".
func NewHealthHandler(store Pinger, broker BrokerState, source, version string) *HealthHandler {
	return &HealthHandler{
		Store:     store,
		Broker:    broker,
		Source:    source,
		Version:   version,
		StartTime: time.Now(),
	}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	deps := make(map[string]string)
	degraded := false

	if h.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.Store.Ping(ctx)
		cancel()
		if err != nil {
			deps["database"] = fmt.Sprintf("unhealthy: %v", err)
			degraded = true
		} else {
			deps["database"] = "healthy"
		}
	} else {
		deps["database"] = "not configured"
	}

	if h.Broker != nil {
		if h.Broker.IsClosed() {
			deps["rabbitmq"] = "unhealthy: connection closed"
			degraded = true
		} else {
			deps["rabbitmq"] = "healthy"
		}
	} else {
		deps["rabbitmq"] = "not configured"
	}

	if h.Source != "" {
		deps["source"] = h.Source
	} else {
		deps["source"] = "not configured"
	}

	status := "healthy"
	code := http.StatusOK
	if degraded {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		Status:       status,
		Version:      h.Version,
		Uptime:       time.Since(h.StartTime).Round(time.Second).String(),
		Dependencies: deps,
	})
}
