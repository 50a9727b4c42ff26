package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/modelgate/modelgate/internal/config"
	"github.com/modelgate/modelgate/internal/optimization"
	"github.com/modelgate/modelgate/internal/store"
)

// Server hosts the routing decision endpoint and the rule admin API
type Server struct {
	store      *store.Store
	httpServer *http.Server
	engine     *gin.Engine

	mu  sync.RWMutex
	cfg *config.Config
}

// New creates a server over the given configuration and rule store
func New(cfg *config.Config, st *store.Store) *Server {
	s := &Server{
		store: st,
		cfg:   cfg,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	s.registerRoutes(engine)
	s.engine = engine

	return s
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.POST("/v1/route", s.handleRoute)

	api := engine.Group("/api")
	{
		api.POST("/orgs", s.handleCreateOrganization)
		api.GET("/orgs", s.handleListOrganizations)
		api.GET("/orgs/:uuid", s.handleGetOrganization)
		api.DELETE("/orgs/:uuid", s.handleDeleteOrganization)
		api.POST("/orgs/:uuid/teams", s.handleCreateTeam)
		api.GET("/orgs/:uuid/teams", s.handleListTeams)
		api.DELETE("/teams/:uuid", s.handleDeleteTeam)

		api.POST("/rules", s.handleCreateRule)
		api.GET("/rules", s.handleListRules)
		api.GET("/rules/:uuid", s.handleGetRule)
		api.PUT("/rules/:uuid", s.handleUpdateRule)
		api.DELETE("/rules/:uuid", s.handleDeleteRule)
	}
}

// ApplyConfig swaps in a reloaded configuration. Only routing defaults and
// log level take effect without a restart.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	logrus.Debug("Server picked up new config")
}

func (s *Server) defaultModel(provider optimization.Provider) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.DefaultModel(provider)
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithField("port", port).Info("Starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
