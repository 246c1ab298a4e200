// Package api handles HTTP and WebSocket API endpoints
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereceipt/printbridge/internal/command"
	"github.com/thereceipt/printbridge/internal/logger"
	"github.com/thereceipt/printbridge/internal/metrics"
	"go.uber.org/zap"
)

// Server is the API server
type Server struct {
	router       *gin.Engine
	profiles     command.ProfileRegistry
	orchestrator *command.Orchestrator
	executor     *command.Executor
	metrics      *metrics.Metrics
	hub          *Hub
	log          *zap.Logger
	upgrader     websocket.Upgrader
	unsubscribe  func()

	mu         sync.Mutex
	httpServer *http.Server

	// baseCtx bounds prints started from websocket messages; Shutdown cancels it
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewServer creates a new API server. m may be nil.
func NewServer(profiles command.ProfileRegistry, orchestrator *command.Orchestrator, m *metrics.Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(log))
	router.Use(m.GinMiddleware())
	router.Use(corsMiddleware())

	baseCtx, cancelBase := context.WithCancel(context.Background())

	server := &Server{
		baseCtx:      baseCtx,
		cancelBase:   cancelBase,
		router:       router,
		profiles:     profiles,
		orchestrator: orchestrator,
		executor:     command.NewExecutor(profiles, orchestrator),
		metrics:      m,
		hub:          NewHub(log),
		log:          log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
	}

	// Print events go out on the websocket feed
	server.unsubscribe = orchestrator.Subscribe(func(ev command.Event) {
		server.hub.Broadcast(string(ev.Type), map[string]interface{}{
			"job": ev.Job,
		})
	})

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	// Printer profiles
	s.router.GET("/printers", s.handleListPrinters)
	s.router.POST("/printers", s.handleCreatePrinter)
	s.router.GET("/printers/default", s.handleGetDefaultPrinter)
	s.router.GET("/printers/:id", s.handleGetPrinter)
	s.router.PUT("/printers/:id", s.handleUpdatePrinter)
	s.router.DELETE("/printers/:id", s.handleDeletePrinter)
	s.router.POST("/printers/:id/default", s.handleSetDefaultPrinter)

	// Printing
	s.router.POST("/print-receipt", s.handlePrintReceipt)
	s.router.POST("/test-print", s.handleTestPrint)
	s.router.POST("/receipts/preview", s.handlePreview)
	s.router.GET("/jobs", s.handleGetJobs)
	s.router.GET("/job/:id", s.handleGetJob)

	// Command endpoint
	s.router.POST("/command", s.handleCommand)

	// WebSocket
	s.router.GET("/ws", s.handleWebSocket)

	// Health check and metrics
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Handler returns the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run starts the API server and blocks until it stops
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.log.Info("api listening", zap.String("addr", addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, waits for in-flight ones and drops websocket clients
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.cancelBase()
	s.hub.CloseAll()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// handleCommand handles command execution requests
func (s *Server) handleCommand(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "command is required"})
		return
	}

	result := s.executor.Execute(c.Request.Context(), req.Command)

	if result.Success {
		if changesProfiles(req.Command) {
			s.hub.Broadcast(EventProfileChanged, map[string]interface{}{
				"action":  "command",
				"command": req.Command,
			})
		}

		response := gin.H{
			"success": true,
		}
		if result.Message != "" {
			response["message"] = result.Message
		}
		for k, v := range result.Data {
			response[k] = v
		}
		c.JSON(200, response)
	} else {
		c.JSON(400, gin.H{
			"success": false,
			"error":   result.Error,
		})
	}
}

// changesProfiles reports whether a text command writes printer profiles
func changesProfiles(cmd string) bool {
	fields := strings.Fields(cmd)
	if len(fields) < 2 || fields[0] != "printer" {
		return false
	}
	switch fields[1] {
	case "list", "get", "probe":
		return false
	}
	// "printer default" without an id only reads
	return !(fields[1] == "default" && len(fields) == 2)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+logger.RequestIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
