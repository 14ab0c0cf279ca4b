package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/kode4food/quarry/internal/config"
	"github.com/kode4food/quarry/internal/engine"
	"github.com/kode4food/quarry/internal/notify"
	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/util"
)

type (
	// Server implements the HTTP API of the flow engine
	Server struct {
		engine  *engine.Engine
		hub     *notify.Hub
		clients ClientIndex
		config  config.InterrogateConfig
		sockets util.Set[*Client]
		mu      sync.Mutex
	}

	// ClientIndex looks up the discovery summaries of enrolled clients
	ClientIndex interface {
		Get(context.Context, api.ClientID) (*api.ClientSummary, error)
		List(context.Context) ([]api.ClientID, error)
	}
)

var (
	ErrGetIndexState = errors.New("failed to get engine state")
	ErrInvalidJSON   = errors.New("invalid JSON")
)

// NewServer creates a new HTTP API server
func NewServer(
	eng *engine.Engine, hub *notify.Hub, clients ClientIndex,
	cfg config.InterrogateConfig,
) *Server {
	return &Server{
		engine:  eng,
		hub:     hub,
		clients: clients,
		config:  cfg,
		sockets: util.Set[*Client]{},
	}
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(s.engine.Metrics().Handler()))

	eng := router.Group("/engine")
	{
		eng.GET("", s.handleEngine)
		eng.GET("/", s.handleEngine)

		// Flow endpoints
		eng.GET("/flow", s.listFlows)
		eng.POST("/flow", s.startFlow)
		eng.GET("/flow/:flowID", s.getFlow)
		eng.POST("/flow/:flowID/cancel", s.cancelFlow)

		// Agent message intake
		eng.POST("/message", s.handleMessages)

		// Client endpoints
		eng.GET("/client", s.listClients)
		eng.GET("/client/:clientID", s.getClient)
		eng.POST("/client/:clientID/enroll", s.enrollClient)

		// WebSocket
		eng.GET("/ws", s.handleWebSocket)
	}

	return router
}

func (s *Server) handleEngine(c *gin.Context) {
	idx, err := s.engine.GetIndexState()
	if err != nil {
		writeError(c, http.StatusInternalServerError,
			fmt.Sprintf("%s: %v", ErrGetIndexState, err))
		return
	}

	c.JSON(http.StatusOK, api.EngineResponse{
		LastUpdated: idx.LastUpdated,
		FlowTypes:   s.engine.Registry().Types(),
		Active:      len(idx.Active),
		Finished:    idx.Finished,
	})
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Add(c)
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets.Remove(c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, api.ErrorResponse{
		Error:  msg,
		Status: status,
	})
}
