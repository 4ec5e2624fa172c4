package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/config"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/services"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AuthHandler struct {
	keyService *services.KeyService
	db         *gorm.DB
	cfg        *config.SecurityConfig
	logger     *zap.Logger
}

func NewAuthHandler(keyService *services.KeyService, db *gorm.DB, cfg *config.SecurityConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		keyService: keyService,
		db:         db,
		cfg:        cfg,
		logger:     logger.With(zap.String("handler", "auth")),
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (ah *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "usuario y contraseña son obligatorios"})
		return
	}

	var user models.Usuario
	if res := ah.db.Where("username = ?", req.Username).First(&user); res.Error != nil {
		ah.logger.Warn("Invalid username", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "usuario o contraseña inválidos"})
		return
	}

	if !user.Activo {
		c.JSON(http.StatusForbidden, gin.H{"error": "cuenta inactiva"})
		return
	}

	if time.Now().Before(user.LockoutUntil) {
		c.JSON(http.StatusForbidden, gin.H{"error": "cuenta bloqueada temporalmente"})
		return
	}

	ok, _ := utils.VerifyPassword(user.PasswordHash, req.Password)
	if !ok {
		updates := map[string]interface{}{"failed_attempts": user.FailedAttempts + 1}
		if user.FailedAttempts+1 >= ah.cfg.MaxFailedAttempts {
			updates["lockout_until"] = time.Now().Add(ah.cfg.LockoutDuration)
			updates["failed_attempts"] = 0
		}
		ah.db.Model(&user).Updates(updates)
		ah.logger.Warn("Failed login", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "usuario o contraseña inválidos"})
		return
	}

	ah.db.Model(&user).Updates(map[string]interface{}{
		"failed_attempts": 0,
		"last_login":      time.Now(),
	})

	token, err := ah.keyService.CreateSessionToken(c.Request.Context(), user.ID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		ah.logger.Error("create session failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}

	c.SetCookie("session_token", token, int(ah.cfg.SessionTimeout.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"usuario": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"rol":      user.Rol,
			"nombre":   user.Nombre,
			"apellido": user.Apellido,
		},
	})
}

func (ah *AuthHandler) Logout(c *gin.Context) {
	token, err := c.Cookie("session_token")
	if err == nil {
		ah.keyService.InvalidateSession(token)
	}
	c.SetCookie("session_token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "sesión cerrada"})
}
