package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/api/handlers"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/api/middleware"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/config"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/services"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Router struct {
	engine           *gin.Engine
	logger           *zap.Logger
	metrics          *metrics.MetricsCollector
	authHandler      *handlers.AuthHandler
	docHandler       *handlers.DocumentoHandler
	firmaHandler     *handlers.FirmaHandler
	retencionHandler *handlers.RetencionHandler
	expHandler       *handlers.ExpedienteHandler
	usuarioHandler   *handlers.UsuarioHandler
	authMiddleware   *middleware.AuthMiddleware
	reqMiddleware    *middleware.RequestMiddleware
}

func NewRouter(
	cfg *config.Configuration,
	logger *zap.Logger,
	metrics *metrics.MetricsCollector,
	keyService *services.KeyService,
	docService *services.DocumentoService,
	versionService *services.VersionService,
	firmaService *services.FirmaService,
	retencionService *services.RetencionService,
	db *gorm.DB,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	reqMiddleware := middleware.NewRequestMiddleware(logger)
	authMiddleware := middleware.NewAuthMiddleware(keyService, db)

	engine.Use(reqMiddleware.ProcessRequest())
	engine.Use(reqMiddleware.RecoverPanic())
	engine.Use(reqMiddleware.LoginAttemptMiddleware())

	return &Router{
		engine:           engine,
		logger:           logger,
		metrics:          metrics,
		authHandler:      handlers.NewAuthHandler(keyService, db, &cfg.Security, logger),
		docHandler:       handlers.NewDocumentoHandler(docService, versionService, firmaService, cfg.Almacenamiento.ExtensionesPermitidas, logger),
		firmaHandler:     handlers.NewFirmaHandler(firmaService, db, logger),
		retencionHandler: handlers.NewRetencionHandler(retencionService, logger),
		expHandler:       handlers.NewExpedienteHandler(db, logger),
		usuarioHandler:   handlers.NewUsuarioHandler(keyService, db, logger),
		authMiddleware:   authMiddleware,
		reqMiddleware:    reqMiddleware,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up", "name": "archivey-cloud"})
	})

	r.engine.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"counters":  r.metrics.GetCounters(),
			"latencies": r.metrics.GetLatencies(),
			"sizes":     r.metrics.GetSizes(),
		})
	})

	r.engine.POST("/login", r.authHandler.Login)
	r.engine.GET("/logout", r.authHandler.Logout)

	authorized := r.engine.Group("/")
	authorized.Use(r.authMiddleware.RequireAuth())
	{
		authorized.GET("/perfil", r.usuarioHandler.Profile)
		authorized.POST("/perfil", r.usuarioHandler.UpdateProfile)

		authorized.GET("/expedientes", r.expHandler.List)
		authorized.POST("/expedientes", r.expHandler.Create)
		authorized.GET("/expedientes/:id", r.expHandler.Get)

		authorized.GET("/ccd/nodos", r.expHandler.ListNodos)
		authorized.POST("/ccd/nodos", r.expHandler.CreateNodo)

		authorized.GET("/documentos", r.docHandler.List)
		authorized.POST("/documentos", r.docHandler.Create)
		authorized.GET("/documentos/:id", r.docHandler.Get)
		authorized.PUT("/documentos/:id", r.docHandler.Update)
		authorized.POST("/documentos/:id/transicion", r.docHandler.Transition)
		authorized.POST("/documentos/carga-masiva", r.docHandler.BulkUpload)

		authorized.GET("/documentos/:id/versiones", r.docHandler.ListVersions)
		authorized.POST("/documentos/:id/versiones", r.docHandler.AddVersion)
		authorized.GET("/documentos/:id/versiones/:numero/descargar", r.docHandler.DownloadVersion)

		authorized.GET("/documentos/:id/firmas", r.firmaHandler.List)
		authorized.POST("/documentos/:id/firmas", r.firmaHandler.Sign)
		authorized.POST("/documentos/:id/verificar-firmas", r.firmaHandler.VerifyDocument)
		authorized.POST("/firmas/:id/verificar", r.firmaHandler.Verify)

		authorized.GET("/trd/nodos/:id/retencion", r.retencionHandler.Get)
		authorized.GET("/documentos/:id/retencion", r.retencionHandler.ResolveForDocument)
	}

	admin := authorized.Group("/")
	admin.Use(r.authMiddleware.RequireRole(models.RolAdmin))
	{
		admin.GET("/usuarios", r.usuarioHandler.List)
		admin.POST("/usuarios/:id/rol", r.usuarioHandler.SetRole)
		admin.POST("/usuarios/:id/clave/revocar", r.usuarioHandler.RevokeKey)

		admin.PUT("/trd/nodos/:id/retencion", r.retencionHandler.Set)
		admin.DELETE("/trd/nodos/:id/retencion", r.retencionHandler.Remove)
		admin.POST("/trd/importar", r.retencionHandler.Import)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

func (r *Router) Run(addr string) error {
	r.logger.Info("Starting HTTP server", zap.String("address", addr))
	return r.engine.Run(addr)
}
