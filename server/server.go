package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khaledhikmat/cctv-bridge/driver"
	"github.com/khaledhikmat/cctv-bridge/service/config"
	"github.com/khaledhikmat/cctv-bridge/service/lgr"
)

// StatusProvider is the slice of the driver the status server reads.
type StatusProvider interface {
	Status() driver.Status
	CameraByName(name string) (driver.CameraStatus, bool)
}

// Server exposes a small operational API next to the integration: health,
// overall status and the configured camera list. It never serves images.
type Server struct {
	cfgSvc     config.IService
	provider   StatusProvider
	httpServer *http.Server
}

func New(cfgsvc config.IService, provider StatusProvider) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	srv := &Server{
		cfgSvc:   cfgsvc,
		provider: provider,
		httpServer: &http.Server{
			Addr:        cfgsvc.GetStatusServerAddress(),
			Handler:     engine,
			ReadTimeout: 10 * time.Second,
		},
	}

	engine.GET("/health", srv.handleHealth)
	engine.GET("/api/status", srv.handleStatus)
	engine.GET("/api/cameras", srv.handleCameras)
	engine.GET("/api/cameras/:name", srv.handleCamera)

	return srv
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := s.provider.Status()

	c.JSON(http.StatusOK, gin.H{
		"deviceState": status.DeviceState,
		"initialized": status.Initialized,
		"state":       status.State,
		"source":      status.Source,
		"streaming":   status.Streaming,
		"cameras":     len(status.Cameras),
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleCameras(c *gin.Context) {
	status := s.provider.Status()

	c.JSON(http.StatusOK, gin.H{
		"cameras": status.Cameras,
	})
}

func (s *Server) handleCamera(c *gin.Context) {
	camera, found := s.provider.CameraByName(c.Param("name"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "camera not found",
		})
		return
	}

	c.JSON(http.StatusOK, camera)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(canxCtx context.Context) error {
	serverResult := make(chan error, 1)

	go func() {
		lgr.Logger.Info("status server starting on " + s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverResult <- err
		}
	}()

	select {
	case <-canxCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-serverResult:
		return err
	}
}
