package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"github.com/danmuck/drivectl/internal/auth"
	"github.com/danmuck/drivectl/internal/bridge"
	"github.com/danmuck/drivectl/internal/drive"
	logs "github.com/danmuck/drivectl/internal/logging"
)

// Snapshot is the JSON view of the drive served by /status and /ws/status.
type Snapshot struct {
	drive.Status
	Jogging    bool   `json:"jogging"`
	StatusLine string `json:"status_line"`
}

type jogRequest struct {
	Direction int `json:"direction"`
}

type stepsRequest struct {
	Steps *int64 `json:"steps"`
}

type positionRequest struct {
	Position *int64 `json:"position"`
}

type relayCommandRequest struct {
	Command string `json:"command"`
}

type velocityRequest struct {
	Velocity *float64 `json:"velocity"`
}

func (s *Server) snapshot() Snapshot {
	ctl := s.opts.Controller
	return Snapshot{
		Status:     ctl.Status(),
		Jogging:    ctl.Jogging(),
		StatusLine: bridge.StatusLine(ctl),
	}
}

func (s *Server) registerRoutes() {
	r := s.router
	ctl := s.opts.Controller

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.started).String(),
			"connected": ctl.Status().Connected,
			"version":   Version,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.snapshot())
	})
	r.GET("/faults", s.handleFaults)
	r.GET("/ports", s.handlePorts)
	r.GET("/ws/status", gin.WrapH(websocket.Handler(s.streamStatus)))
	r.GET("/relays", s.handleRelays)

	// Stops are never gated by the token.
	r.POST("/stop", s.action(ctl.Stop))
	r.POST("/stop/kill", s.action(ctl.StopKill))

	w := r.Group("", s.requireToken())
	w.POST("/relays/:name/command", s.handleRelayCommand)
	w.POST("/jog/start", func(c *gin.Context) {
		var req jogRequest
		if !bind(c, &req) {
			return
		}
		if req.Direction != 1 && req.Direction != -1 {
			badRequest(c, "direction must be 1 or -1")
			return
		}
		s.result(c, ctl.JogStart(req.Direction))
	})
	w.POST("/jog/stop", s.action(ctl.JogStop))
	w.POST("/move/relative", func(c *gin.Context) {
		var req stepsRequest
		if !bind(c, &req) {
			return
		}
		if req.Steps == nil {
			badRequest(c, "steps is required")
			return
		}
		s.result(c, ctl.MoveRelative(*req.Steps))
	})
	w.POST("/move/absolute", func(c *gin.Context) {
		var req positionRequest
		if !bind(c, &req) {
			return
		}
		if req.Position == nil {
			badRequest(c, "position is required")
			return
		}
		s.result(c, ctl.MoveToPosition(*req.Position))
	})
	w.POST("/home/save", s.action(ctl.SaveHome))
	w.POST("/home/go", s.action(ctl.GoHome))
	w.POST("/well/save", s.action(ctl.SaveWell))
	w.POST("/well/go", s.action(ctl.GoWell))
	w.POST("/velocity/jog", s.velocity(ctl.SetJogVelocity))
	w.POST("/velocity/move", s.velocity(ctl.SetMoveVelocity))
	w.POST("/alarm/reset", s.action(ctl.AlarmReset))
	w.POST("/motor/enable", s.action(ctl.MotorEnable))
	w.POST("/motor/disable", s.action(ctl.MotorDisable))
	w.POST("/encoder/zero", s.action(ctl.ZeroEncoder))
}

// requireToken rejects control requests without a valid bearer token. It is
// a no-op when Options.Auth is nil.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.Auth == nil {
			c.Next()
			return
		}
		if err := s.opts.Auth.Validate(auth.FromHeader(c.GetHeader("Authorization"))); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.Next()
	}
}

func (s *Server) action(fn func() bool) gin.HandlerFunc {
	return func(c *gin.Context) { s.result(c, fn()) }
}

func (s *Server) velocity(set func(float64) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req velocityRequest
		if !bind(c, &req) {
			return
		}
		if req.Velocity == nil {
			badRequest(c, "velocity is required")
			return
		}
		s.result(c, set(*req.Velocity))
	}
}

func (s *Server) result(c *gin.Context, ok bool) {
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": s.snapshot()})
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, err.Error())
		return false
	}
	return true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg})
}

func (s *Server) handleFaults(c *gin.Context) {
	if s.opts.Faults == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fault journal disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := s.opts.Faults.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"faults": entries})
}

func (s *Server) handlePorts(c *gin.Context) {
	ports, err := s.opts.ListPorts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ports": ports})
}

func (s *Server) findRelay(name string) RelayLink {
	for _, r := range s.opts.Relays {
		if r.Name() == name {
			return r
		}
	}
	return nil
}

func (s *Server) handleRelays(c *gin.Context) {
	out := make([]gin.H, 0, len(s.opts.Relays))
	for _, r := range s.opts.Relays {
		out = append(out, gin.H{"name": r.Name(), "state": r.State()})
	}
	c.JSON(http.StatusOK, gin.H{"relays": out})
}

func (s *Server) handleRelayCommand(c *gin.Context) {
	link := s.findRelay(c.Param("name"))
	if link == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "unknown relay"})
		return
	}
	var req relayCommandRequest
	if !bind(c, &req) {
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		badRequest(c, "command is required")
		return
	}
	if err := link.Send(req.Command); err != nil {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// streamStatus writes one JSON snapshot per StreamInterval until the peer
// goes away.
func (s *Server) streamStatus(ws *websocket.Conn) {
	defer ws.Close()
	remote := ws.Request().RemoteAddr
	logs.Infof("server.ws client connected remote=%q", remote)
	defer logs.Infof("server.ws client disconnected remote=%q", remote)

	ticker := time.NewTicker(s.opts.StreamInterval)
	defer ticker.Stop()
	ctx := ws.Request().Context()
	for {
		payload, err := json.Marshal(s.snapshot())
		if err != nil {
			logs.Errorf("server.ws marshal err=%v", err)
			return
		}
		if err := websocket.Message.Send(ws, string(payload)); err != nil {
			logs.Debugf("server.ws send remote=%q err=%v", remote, err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
