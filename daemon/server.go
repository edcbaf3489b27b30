package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"meshgate"
	"meshgate/bridge"
	"meshgate/internal/buildinfo"
	"meshgate/internal/telemetry"
)

// Bridge is the surface the control API needs from the bridge layer.
type Bridge interface {
	Validate(text string) error
	Start(ctx context.Context, text string) (uuid.UUID, error)
	Stop(ctx context.Context, names []string) (skipped []string, err error)
	Running() []uuid.UUID
	IsRunning(text string) bool
	CollectStatus(ctx context.Context) ([]meshgate.StatusEntry, error)
	SetTunFD(fd int)
}

// Server exposes the host-facing operations over a local unix socket.
type Server struct {
	bridge Bridge
	log    *slog.Logger
	router *gin.Engine
}

func NewServer(b Bridge) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		bridge: b,
		log:    slog.With("component", "control-api"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests)

	v1 := r.Group("/v1")
	v1.GET("/health", s.health)
	v1.POST("/config/validate", s.validateConfig)
	v1.POST("/instances", s.startInstance)
	v1.DELETE("/instances", s.stopInstances)
	v1.GET("/instances", s.listRunning)
	v1.GET("/instances/:id", s.queryRunning)
	v1.GET("/status", s.collectStatus)
	v1.PUT("/tun", s.setTunFD)

	s.router = r
	return s
}

// ServeHTTP makes the server usable as a plain handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves the control API on a unix socket and blocks until
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, socketPath string) error {
	// Remove stale socket from a previous run (may not exist).
	_ = os.Remove(socketPath)
	defer func() { _ = os.Remove(socketPath) }()

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", socketPath, err)
	}

	srv := &http.Server{Handler: s.router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("control api listening", "socket", socketPath)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug("request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start))
}

type configRequest struct {
	Config string `json:"config" binding:"required"`
}

type stopRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type tunRequest struct {
	FD int `json:"fd" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "version": buildinfo.Version})
}

func (s *Server) validateConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.bridge.Validate(req.Config); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (s *Server) startInstance(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op := telemetry.StartOperation(c.Request.Context(), "instance.start")
	id, err := s.bridge.Start(op.Context(), req.Config)
	op.End(err)
	if err != nil {
		c.JSON(startStatusCode(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id.String()})
}

func startStatusCode(err error) int {
	switch {
	case errors.Is(err, bridge.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, bridge.ErrAlreadyRunning), errors.Is(err, bridge.ErrDuplicateInstance):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) stopInstances(c *gin.Context) {
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	op := telemetry.StartOperation(c.Request.Context(), "instance.stop",
		attribute.Int("instances", len(req.IDs)))
	skipped, err := s.bridge.Stop(op.Context(), req.IDs)
	op.End(err)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "skipped": skipped})
		return
	}
	c.JSON(http.StatusOK, gin.H{"skipped": skipped})
}

func (s *Server) listRunning(c *gin.Context) {
	ids := s.bridge.Running()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	c.JSON(http.StatusOK, gin.H{"ids": out})
}

func (s *Server) queryRunning(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"running": s.bridge.IsRunning(c.Param("id"))})
}

func (s *Server) collectStatus(c *gin.Context) {
	entries, err := s.bridge.CollectStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": entries})
}

func (s *Server) setTunFD(c *gin.Context) {
	var req tunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.bridge.SetTunFD(req.FD)
	c.Status(http.StatusNoContent)
}
