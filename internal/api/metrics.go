package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	Links         LinkMetrics      `json:"links"`
	Catalog       CatalogMetrics   `json:"catalog"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// LinkMetrics reports the optional outbound links; a link that is not
// configured reads as disconnected.
type LinkMetrics struct {
	MQTT       bool `json:"mqtt"`
	InfluxDB   bool `json:"influxdb"`
	Controller bool `json:"controller"`
}

// CatalogMetrics describes the state document.
type CatalogMetrics struct {
	Available bool `json:"available"`
	Rooms     int  `json:"rooms"`
	Devices   int  `json:"devices"`
	Scenes    int  `json:"scenes"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Links: LinkMetrics{
			MQTT:       connected(s.mqtt),
			InfluxDB:   connected(s.influx),
			Controller: connected(s.controller),
		},
	}
	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	err := s.store.View(r.Context(), func(doc *catalog.Document, _ catalog.AliasTable) error {
		metrics.Catalog = CatalogMetrics{
			Available: true,
			Devices:   doc.Catalog.DeviceCount(),
			Scenes:    len(doc.Scenes),
		}
		if doc.Catalog != nil {
			metrics.Catalog.Rooms = len(doc.Catalog.Rooms)
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("catalog unavailable for metrics", "error", err)
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

func connected(c ConnectionChecker) bool {
	return c != nil && c.IsConnected()
}
