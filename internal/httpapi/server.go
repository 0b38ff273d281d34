package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rfid-attendance/tracker/internal/config"
	"rfid-attendance/tracker/internal/metrics"
	"rfid-attendance/tracker/internal/services/attendance"
)

type Server struct {
	cfg     config.Config
	svc     *attendance.Service
	engine  *gin.Engine
	bus     *eventBus
	tokens  *deviceTokens
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func NewServer(cfg config.Config, svc *attendance.Service, m *metrics.Metrics, log logrus.FieldLogger) *Server {
	registerValidators()

	s := &Server{
		cfg:     cfg,
		svc:     svc,
		engine:  gin.New(),
		bus:     newEventBus(),
		tokens:  newDeviceTokens(cfg.JWTSecret, cfg.DeviceTokenTTL),
		metrics: m,
		log:     log,
	}
	s.engine.HandleMethodNotAllowed = true
	s.engine.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", "route not found")
	})
	s.engine.NoMethod(func(c *gin.Context) {
		writeError(c, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	s.engine.Use(
		s.requestIDMiddleware(),
		s.loggingMiddleware(),
		s.recoverMiddleware(),
	)
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.engine.Group("/v1", s.authMiddleware())

	// Routes a scanner device token may call.
	v1.GET("/scanners/:name/pending", s.handleScannerPending)
	v1.POST("/scans", s.handleScans)
	v1.POST("/attendance", s.handleAttendanceRecord)

	op := v1.Group("", operatorOnly())
	op.POST("/users", s.handleUsersCreate)
	op.GET("/users", s.handleUsersList)
	op.GET("/users/:code", s.handleUserGet)
	op.PATCH("/users/:code", s.handleUserRename)
	op.DELETE("/users/:code", s.handleUserDelete)

	op.POST("/scanners", s.handleScannersCreate)
	op.GET("/scanners", s.handleScannersList)
	op.DELETE("/scanners/:name", s.handleScannerDelete)

	op.POST("/queue", s.handleQueueCreate)
	op.GET("/queue", s.handleQueueList)
	op.DELETE("/queue/:id", s.handleQueueResolve)

	op.GET("/attendance", s.handleAttendanceList)

	op.GET("/stream", s.handleStream)
}
