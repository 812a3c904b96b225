package http

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/piclane/DropboxAutomation/internal/config"
)

// Notifier starts one folder-scan pass. The HTTP layer only triggers it;
// serialization of overlapping triggers is the workflow's concern.
type Notifier interface {
	HandleNotification()
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
}

func NewServer(cfg config.Config, notifier Notifier) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger())
	engine.Use(CORS())

	api := NewAPI(notifier)
	registerRoutes(engine, api)

	return &Server{engine: engine, cfg: cfg}
}

func (s *Server) Run() error {
	slog.Info("starting application", "port", s.cfg.Port)
	return s.engine.Run(fmt.Sprintf(":%s", s.cfg.Port))
}
