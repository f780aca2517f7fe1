package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	ws "github.com/soham10i/stf-hw/internal/api/websocket"
	"github.com/soham10i/stf-hw/internal/broadcast"
	"github.com/soham10i/stf-hw/internal/config"
	"github.com/soham10i/stf-hw/internal/types"
)

// Store is the persistence surface the edge reads and the only places it
// writes: new PENDING command rows and alert acknowledgements.
type Store interface {
	CreateCommand(ctx context.Context, cmd *types.Command) error
	GetCommand(ctx context.Context, id int64) (*types.Command, error)
	ListCommands(ctx context.Context, limit int) ([]types.Command, error)

	GetSlots(ctx context.Context) ([]types.Slot, error)
	GetSlot(ctx context.Context, name types.SlotName) (*types.Slot, error)
	FindEmptySlot(ctx context.Context) (types.SlotName, error)
	FindRawDoughSlot(ctx context.Context) (types.SlotName, error)
	CookieAtSlot(ctx context.Context, name types.SlotName) (*types.Cookie, error)

	GetHardwareStates(ctx context.Context) ([]types.DeviceSnapshot, error)
	ListAlerts(ctx context.Context, limit int) ([]types.Alert, error)
	AcknowledgeAlert(ctx context.Context, id int64, who string) error
	ListTelemetry(ctx context.Context, device types.DeviceID, from, to time.Time, limit int) ([]types.TelemetrySample, error)
	ListEnergy(ctx context.Context, device types.DeviceID, from, to time.Time, limit int) ([]types.EnergySample, error)

	Ping(ctx context.Context) error
}

// Controller is the executor surface the maintenance endpoints drive.
type Controller interface {
	EmergencyStop(ctx context.Context)
	Resume(ctx context.Context) error
}

// BusHealth reports broker reachability for the health endpoint.
type BusHealth interface {
	Connected() bool
}

type Server struct {
	router     *gin.Engine
	store      Store
	controller Controller
	busHealth  BusHealth
	hub        *broadcast.Hub
	logger     *zap.Logger
	server     *http.Server
	apiKey     string
}

func NewServer(cfg config.ServerConfig, store Store, controller Controller,
	busHealth BusHealth, hub *broadcast.Hub, logger *zap.Logger) *Server {

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:     gin.New(),
		store:      store,
		controller: controller,
		busHealth:  busHealth,
		hub:        hub,
		logger:     logger,
		apiKey:     cfg.APIKey,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

// Router exposes the gin engine for handler tests.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	orders := s.router.Group("/order")
	{
		orders.POST("/store", s.orderStore)
		orders.POST("/retrieve", s.orderRetrieve)
		orders.POST("/process", s.orderProcess)
	}

	maintenance := s.router.Group("/maintenance")
	maintenance.Use(APIKeyMiddleware(s.apiKey))
	{
		maintenance.POST("/reset", s.maintenanceReset)
		maintenance.POST("/emergency-stop", s.emergencyStop)
		maintenance.POST("/resume", s.resume)
	}

	s.router.GET("/inventory", s.getInventory)
	s.router.GET("/hardware/states", s.getHardwareStates)
	s.router.GET("/commands", s.listCommands)
	s.router.GET("/commands/:id", s.getCommand)
	s.router.GET("/alerts", s.listAlerts)
	s.router.POST("/alerts/:id/acknowledge", s.acknowledgeAlert)
	s.router.GET("/telemetry/:device", s.getTelemetry)
	s.router.GET("/energy/:device", s.getEnergy)

	s.router.GET("/ws", func(c *gin.Context) {
		ws.Serve(s.hub, s.logger, c.Writer, c.Request)
	})
}
