package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soham10i/stf-hw/internal/executor"
	"github.com/soham10i/stf-hw/internal/types"
)

// GET /health
func (s *Server) healthCheck(c *gin.Context) {
	deps := gin.H{
		"database": "ok",
		"bus":      "ok",
	}
	ok := true

	if err := s.store.Ping(c.Request.Context()); err != nil {
		deps["database"] = err.Error()
		ok = false
	}
	if s.busHealth != nil && !s.busHealth.Connected() {
		deps["bus"] = "disconnected"
		ok = false
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ok": ok, "deps": deps})
}

// GET /inventory
func (s *Server) getInventory(c *gin.Context) {
	slots, err := s.store.GetSlots(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// GET /hardware/states
func (s *Server) getHardwareStates(c *gin.Context) {
	states, err := s.store.GetHardwareStates(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, states)
}

// GET /commands
func (s *Server) listCommands(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	commands, err := s.store.ListCommands(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, commands)
}

// GET /commands/:id
func (s *Server) getCommand(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("CMD_400", "Invalid command id", c.Param("id")))
		return
	}
	cmd, err := s.store.GetCommand(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			c.JSON(http.StatusNotFound, types.NewErrorResponse("CMD_404", "Command not found", id))
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, cmd)
}

// GET /alerts
func (s *Server) listAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	alerts, err := s.store.ListAlerts(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// POST /alerts/:id/acknowledge
func (s *Server) acknowledgeAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("ALERT_400", "Invalid alert id", c.Param("id")))
		return
	}
	who := c.DefaultQuery("by", "operator")
	if err := s.store.AcknowledgeAlert(c.Request.Context(), id, who); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			c.JSON(http.StatusNotFound, types.NewErrorResponse("ALERT_404", "Alert not found or already acknowledged", id))
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": id})
}

// GET /telemetry/:device?from=&to=&limit=
func (s *Server) getTelemetry(c *gin.Context) {
	device, from, to, limit, ok := s.historyQuery(c)
	if !ok {
		return
	}
	samples, err := s.store.ListTelemetry(c.Request.Context(), device, from, to, limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, samples)
}

// GET /energy/:device?from=&to=&limit=
func (s *Server) getEnergy(c *gin.Context) {
	device, from, to, limit, ok := s.historyQuery(c)
	if !ok {
		return
	}
	samples, err := s.store.ListEnergy(c.Request.Context(), device, from, to, limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, samples)
}

func (s *Server) historyQuery(c *gin.Context) (types.DeviceID, time.Time, time.Time, int, bool) {
	device, err := types.ParseDevice(c.Param("device"))
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("HIST_400", "Unknown device", c.Param("device")))
		return "", time.Time{}, time.Time{}, 0, false
	}

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "1000"))
	return device, from, to, limit, true
}

// POST /maintenance/reset — queued at the highest priority so it preempts
// waiting orders.
func (s *Server) maintenanceReset(c *gin.Context) {
	s.enqueue(c, &types.Command{
		Kind:     types.KindReset,
		Priority: types.PriorityReset,
		Devices:  executor.DeviceSet(types.KindReset, nil),
	})
}

// POST /maintenance/emergency-stop — immediate, not queued: every in-flight
// command fails and claims stay blocked until resume.
func (s *Server) emergencyStop(c *gin.Context) {
	s.controller.EmergencyStop(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{})
}

// POST /maintenance/resume
func (s *Server) resume(c *gin.Context) {
	if err := s.controller.Resume(c.Request.Context()); err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
