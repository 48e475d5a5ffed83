package handlers

import (
	"net/http"
	"os"
	"time"

	"uniconnect-chat/internal/utils"

	"github.com/shirou/gopsutil/process"
)

// HealthResponse reports liveness plus a few process and engine figures
type HealthResponse struct {
	Status         string                `json:"status"`
	Store          string                `json:"store"`
	ConnectedUsers int                   `json:"connectedUsers"`
	ServerTime     time.Time             `json:"serverTime"`
	Process        *ProcessStats         `json:"process,omitempty"`
	Metrics        utils.MetricsSnapshot `json:"metrics"`
}

type ProcessStats struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpuPercent"`
	MemPercent float32 `json:"memPercent"`
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Only allow GET requests
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}

		writeJSON(w, http.StatusOK, HealthResponse{
			Status:         "healthy",
			Store:          s.StoreType,
			ConnectedUsers: s.Hub.ConnectedUsers(),
			ServerTime:     time.Now(),
			Process:        s.processStats(),
			Metrics:        s.Metrics.Snapshot(),
		})
	}
}

// processStats is best effort; a platform without process accounting just omits it.
func (s *Server) processStats() *ProcessStats {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		s.log.WithError(err).Debug("Error while retrieving process")
		return nil
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		s.log.WithError(err).Debug("Error while finding process cpu usage")
		return nil
	}
	ram, err := p.MemoryPercent()
	if err != nil {
		s.log.WithError(err).Debug("Error while finding process ram usage")
		return nil
	}
	return &ProcessStats{PID: p.Pid, CPUPercent: cpu, MemPercent: ram}
}
