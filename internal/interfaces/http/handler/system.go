package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/barn/onboarding/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Pinger checks a dependency's liveness
type Pinger interface {
	Ping() error
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	db        Pinger
}

// NewSystemHandler creates a new SystemHandler. db may be nil, in which case
// the health endpoint only reports process liveness.
func NewSystemHandler(db Pinger) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		db:        db,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo returns basic system information including version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      "Onboarding API",
		Version:   "1.0.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// Healthz reports process and database health. Returns 503 when the
// database is unreachable so load balancers stop routing traffic here.
func (h *SystemHandler) Healthz(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
	}

	c.JSON(http.StatusOK, resp)
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping is a simple endpoint to check if the API is responsive
func (h *SystemHandler) Ping(c *gin.Context) {
	response := PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(response))
}

// RegisterRoutes registers system routes on the versioned API group
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	system := rg.Group("/system")
	{
		system.GET("/info", h.GetSystemInfo)
		system.GET("/ping", h.Ping)
	}
}
