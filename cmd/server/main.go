package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/api"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/config"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/services"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/utils"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/pkg/logger"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	var cfg *config.Configuration
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		cfg, err = config.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else {
		cfg = config.InitializeDefaultConfig()
	}

	zapLogger, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	config.LogConfig(zapLogger)

	database, err := db.Initialize(cfg)
	if err != nil {
		zapLogger.Fatal("Failed to initialize database", zap.Error(err))
	}

	metricsCollector := metrics.NewMetricsCollector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := seedDatabase(ctx, database, cfg, zapLogger); err != nil {
		zapLogger.Fatal("Failed to seed database", zap.Error(err))
	}

	keyService := services.NewKeyService(database, cfg.Security.SessionTimeout, zapLogger, metricsCollector)
	documentoService := services.NewDocumentoService(database, cfg.Almacenamiento.MaxFileBytes, zapLogger, metricsCollector)
	versionService := services.NewVersionService(database, zapLogger, metricsCollector)
	firmaService := services.NewFirmaService(database, keyService, cfg.Firma.VigenciaFirma, zapLogger, metricsCollector)
	retencionService := services.NewRetencionService(database, zapLogger, metricsCollector)

	router := api.NewRouter(cfg, zapLogger, metricsCollector,
		keyService, documentoService, versionService, firmaService, retencionService, database)
	router.SetupRoutes()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}
	go func() {
		if err := router.Run(":" + port); err != nil {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	zapLogger.Info("Server started", zap.String("port", port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	keyService.Close()

	sqlDB, err := db.DB.DB()
	if err == nil {
		sqlDB.Close()
	}
	zapLogger.Info("Server gracefully stopped")
}

func seedDatabase(ctx context.Context, database *gorm.DB, cfg *config.Configuration, logger *zap.Logger) error {
	var count int64
	database.Model(&models.Usuario{}).Count(&count)
	if count > 0 {
		logger.Info("Database already seeded, skipping")
		return nil
	}
	logger.Info("Seeding database with initial data")

	adminHash, err := utils.EncryptPassword("cambiar-al-ingresar")
	if err != nil {
		return err
	}

	usuarios := []models.Usuario{
		{Username: "admin", Email: "admin@archiveycloud.local", PasswordHash: adminHash, Rol: models.RolAdmin, Nombre: "Administrador", Apellido: "General", Dependencia: "Gestión Documental", Activo: true},
		{Username: "gestor1", Email: "gestor1@archiveycloud.local", PasswordHash: adminHash, Rol: models.RolGestor, Nombre: "Gestor", Apellido: "Uno", Dependencia: "Archivo Central", Activo: true},
		{Username: "consulta1", Email: "consulta1@archiveycloud.local", PasswordHash: adminHash, Rol: models.RolConsulta, Nombre: "Consulta", Apellido: "Uno", Dependencia: "Atención al Ciudadano", Activo: true},
	}

	if err := database.Create(&usuarios).Error; err != nil {
		return err
	}
	logger.Info("Created initial users", zap.Int("count", len(usuarios)))

	for _, u := range usuarios {
		priv, err := rsa.GenerateKey(rand.Reader, cfg.Firma.KeyBits)
		if err != nil {
			return err
		}

		privBytes := x509.MarshalPKCS1PrivateKey(priv)
		privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes})

		clave := models.ClaveUsuario{
			UsuarioID: u.ID,
			ClavePEM:  privPEM,
			Version:   1,
			Estado:    "activa",
		}
		if err := database.Create(&clave).Error; err != nil {
			return err
		}
		logger.Info("Stored signing key for user", zap.String("username", u.Username), zap.Uint("user_id", u.ID))
	}

	fondo := models.NodoCCD{Nivel: models.NivelFondo, Codigo: "100", Nombre: "Fondo Documental Institucional", Activo: true}
	if err := database.Create(&fondo).Error; err != nil {
		return err
	}
	serie := models.NodoCCD{PadreID: &fondo.ID, Nivel: models.NivelSerie, Codigo: "100.01", Nombre: "Actas", Activo: true}
	if err := database.Create(&serie).Error; err != nil {
		return err
	}

	expediente := models.Expediente{
		ID:        uuid.New().String(),
		Codigo:    "EXP-100.01-001",
		Titulo:    "Actas de comité",
		NodoCCDID: serie.ID,
		Estado:    "abierto",
	}
	if err := database.Create(&expediente).Error; err != nil {
		return err
	}

	logger.Info("Database seeding completed successfully")
	return nil
}
