package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/shareledger/internal/api/handler"
	"github.com/timmy/shareledger/internal/api/middleware"
	"github.com/timmy/shareledger/internal/jobstore"
	"github.com/timmy/shareledger/internal/logger"
	"github.com/timmy/shareledger/internal/metrics"
	"github.com/timmy/shareledger/internal/service"
)

// Dependencies are the collaborators the HTTP layer calls into.
type Dependencies struct {
	Uploads   *service.UploadService
	Jobs      jobstore.Store
	Positions service.PositionReader
	Export    *service.ExportService
	Tokens    middleware.TokenVerifier
	Metrics   *metrics.Metrics
	DB        handler.Pinger // optional, used by /health
	Logger    *logger.Logger
}

// RouterConfig holds HTTP settings.
type RouterConfig struct {
	Mode           string
	MaxUploadBytes int64
	CORS           middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Dependencies, cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	// multipart parts beyond this are spooled to disk
	r.MaxMultipartMemory = 8 << 20

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(cfg.CORS))

	healthHandler := handler.NewHealthHandler(deps.DB)
	ingestHandler := handler.NewIngestHandler(deps.Uploads, deps.Jobs, cfg.MaxUploadBytes)
	positionsHandler := handler.NewPositionsHandler(deps.Positions, deps.Export)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	authed := r.Group("/", middleware.Auth(deps.Tokens))
	{
		authed.GET("/", handler.Dashboard)

		// paths kept for existing clients
		authed.POST("/upload", ingestHandler.Upload)
		authed.GET("/task_status/:id", ingestHandler.Status)
	}

	v1 := r.Group("/api/v1", middleware.Auth(deps.Tokens))
	{
		v1.POST("/uploads", ingestHandler.Upload)
		v1.GET("/jobs/:id", ingestHandler.Status)

		v1.GET("/positions", positionsHandler.List)
		v1.GET("/positions/export", positionsHandler.Export)
	}

	return r
}
