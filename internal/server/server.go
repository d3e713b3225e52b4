package server

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/AlFontal/jpinfect/internal/api"
	"github.com/AlFontal/jpinfect/internal/config"
	"github.com/AlFontal/jpinfect/internal/importer"
	"github.com/AlFontal/jpinfect/internal/store"
)

// Server is the HTTP query server over the unified table.
type Server struct {
	router *gin.Engine
	store  *store.Store
	api    *api.Handler
}

// NewServer wires the store and API handler. The coordinator may be nil for
// a query-only deployment.
func NewServer(cfg *config.AppConfig, coordinator *importer.Coordinator) (*Server, error) {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "jpinfect.db")

	sqliteStore, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	s := &Server{
		router: gin.Default(),
		store:  sqliteStore,
		api:    api.NewHandler(sqliteStore, coordinator),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := s.router.Group("/api")
	{
		s.api.RegisterRoutes(apiGroup)
	}
}

// Run starts the server and blocks.
func (s *Server) Run(addr string) error {
	log.Printf("listening on %s", addr)
	return s.router.Run(addr)
}

// Close releases the underlying store.
func (s *Server) Close() error {
	return s.store.Close()
}

// GetStore exposes the store for tests.
func (s *Server) GetStore() *store.Store {
	return s.store
}
