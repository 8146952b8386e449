// Package server exposes a trimmed HTTP status and metrics surface over
// the registry, grounded in the teacher's gin-based router but reduced to
// the two endpoints this core actually needs: a read-only subsystem status
// dump and the Prometheus exposition path.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loykin/rover-supervisor/internal/metrics"
	"github.com/loykin/rover-supervisor/internal/subsystem"
)

// Server serves /status and /metrics over the configured listen address.
type Server struct {
	reg    *subsystem.Registry
	engine *gin.Engine
}

type subsystemStatus struct {
	Name                  string `json:"name"`
	Running               bool   `json:"running"`
	IntentionallyStopped  bool   `json:"intentionally_stopped"`
	RestartPending        bool   `json:"restart_pending"`
	LastHeartbeatUnixNano int64  `json:"last_heartbeat_unix_nano"`
}

// New builds the server around reg. Call Handler().ServeHTTP or Serve to
// run it.
func New(reg *subsystem.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	s := &Server{reg: reg, engine: e}
	e.GET("/status", s.status)
	e.GET("/metrics", gin.WrapH(metrics.Handler()))
	return s
}

// Handler returns the underlying http.Handler, e.g. for use with a
// caller-owned http.Server and graceful shutdown.
func (s *Server) Handler() http.Handler { return s.engine }

// Serve blocks, listening on addr.
func (s *Server) Serve(addr string) error {
	return http.ListenAndServe(addr, s.engine) // #nosec G114 -- internal status endpoint, no external exposure expected
}

func (s *Server) status(c *gin.Context) {
	out := make([]subsystemStatus, 0)
	for _, sub := range s.reg.All() {
		running := false
		if child := sub.Process(); child != nil {
			if exited, _ := child.Exited(); !exited {
				running = true
			}
		}
		out = append(out, subsystemStatus{
			Name:                  sub.Name,
			Running:               running,
			IntentionallyStopped:  sub.IntentionallyStopped(),
			RestartPending:        sub.RestartPending(),
			LastHeartbeatUnixNano: sub.LastHeartbeat(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"subsystems": out})
}
