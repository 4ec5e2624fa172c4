package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/api/middleware"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UsuarioHandler struct {
	keyService *services.KeyService
	db         *gorm.DB
	logger     *zap.Logger
}

func NewUsuarioHandler(keyService *services.KeyService, db *gorm.DB, logger *zap.Logger) *UsuarioHandler {
	return &UsuarioHandler{
		keyService: keyService,
		db:         db,
		logger:     logger.With(zap.String("handler", "usuario")),
	}
}

func (uh *UsuarioHandler) Profile(c *gin.Context) {
	usuario := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{
		"id":          usuario.ID,
		"username":    usuario.Username,
		"email":       usuario.Email,
		"rol":         usuario.Rol,
		"nombre":      usuario.Nombre,
		"apellido":    usuario.Apellido,
		"dependencia": usuario.Dependencia,
		"last_login":  usuario.LastLogin,
	})
}

type actualizarPerfilRequest struct {
	Nombre      string `json:"nombre"`
	Apellido    string `json:"apellido"`
	Dependencia string `json:"dependencia"`
}

func (uh *UsuarioHandler) UpdateProfile(c *gin.Context) {
	usuario := middleware.CurrentUser(c)

	var req actualizarPerfilRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cuerpo de la petición inválido"})
		return
	}

	updates := map[string]interface{}{
		"nombre":      req.Nombre,
		"apellido":    req.Apellido,
		"dependencia": req.Dependencia,
	}
	if err := uh.db.Model(usuario).Updates(updates).Error; err != nil {
		uh.logger.Error("update profile failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "perfil actualizado"})
}

func (uh *UsuarioHandler) List(c *gin.Context) {
	var usuarios []models.Usuario
	if err := uh.db.Order("username ASC").Find(&usuarios).Error; err != nil {
		uh.logger.Error("list users failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}

	items := make([]gin.H, 0, len(usuarios))
	for _, u := range usuarios {
		items = append(items, gin.H{
			"id":          u.ID,
			"username":    u.Username,
			"email":       u.Email,
			"rol":         u.Rol,
			"nombre":      u.Nombre,
			"apellido":    u.Apellido,
			"dependencia": u.Dependencia,
			"activo":      u.Activo,
			"last_login":  u.LastLogin,
		})
	}

	c.JSON(http.StatusOK, gin.H{"usuarios": items})
}

type cambiarRolRequest struct {
	Rol string `json:"rol" binding:"required"`
}

func (uh *UsuarioHandler) SetRole(c *gin.Context) {
	usuario := middleware.CurrentUser(c)

	var req cambiarRolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "el rol es obligatorio"})
		return
	}

	rol := models.RolUsuario(req.Rol)
	if rol != models.RolAdmin && rol != models.RolGestor && rol != models.RolConsulta {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"errores": gin.H{"rol": "el rol debe ser admin, gestor o consulta"},
		})
		return
	}

	var objetivo models.Usuario
	if err := uh.db.First(&objetivo, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "usuario no encontrado"})
		return
	}

	if err := uh.db.Model(&objetivo).Update("rol", rol).Error; err != nil {
		uh.logger.Error("set role failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}

	uh.logger.Info("User role changed",
		zap.Uint("user_id", objetivo.ID),
		zap.String("rol", string(rol)),
		zap.Uint("changed_by", usuario.ID))

	c.JSON(http.StatusOK, gin.H{"message": "rol actualizado"})
}

// RevokeKey marks the target user's active signing key revoked. Existing
// signatures keep verifying because they pin the key pair version they
// were made under.
func (uh *UsuarioHandler) RevokeKey(c *gin.Context) {
	admin := middleware.CurrentUser(c)

	var objetivo models.Usuario
	if err := uh.db.First(&objetivo, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "usuario no encontrado"})
		return
	}

	if err := uh.keyService.RevokeKey(c.Request.Context(), objetivo.ID); err != nil {
		uh.logger.Error("revoke key failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}

	uh.logger.Info("Signing key revoked by admin",
		zap.Uint("user_id", objetivo.ID),
		zap.Uint("revoked_by", admin.ID))

	c.JSON(http.StatusOK, gin.H{"message": "clave de firma revocada"})
}
