package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/services"
	"gorm.io/gorm"
)

type AuthMiddleware struct {
	keyService *services.KeyService
	db         *gorm.DB
}

func NewAuthMiddleware(keyService *services.KeyService, db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{
		keyService: keyService,
		db:         db,
	}
}

// RequireAuth resolves the session cookie into the full user record and
// stores it in the request context for handlers.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionToken, err := c.Cookie("session_token")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sesión requerida"})
			return
		}

		userID, valid := am.keyService.IsValidSession(sessionToken)
		if !valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sesión inválida o expirada"})
			return
		}

		var user models.Usuario
		if err := am.db.First(&user, userID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "usuario no encontrado"})
			return
		}
		if !user.Activo {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "cuenta inactiva"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("username", user.Username)
		c.Set("usuario", &user)
		c.Next()
	}
}

// RequireRole gates a route group to the given roles. Must run after
// RequireAuth.
func (am *AuthMiddleware) RequireRole(roles ...models.RolUsuario) gin.HandlerFunc {
	return func(c *gin.Context) {
		usuario := CurrentUser(c)
		if usuario == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sesión requerida"})
			return
		}
		for _, rol := range roles {
			if usuario.Rol == rol {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permisos insuficientes"})
	}
}

// CurrentUser returns the authenticated user placed by RequireAuth, or nil.
func CurrentUser(c *gin.Context) *models.Usuario {
	v, exists := c.Get("usuario")
	if !exists {
		return nil
	}
	usuario, ok := v.(*models.Usuario)
	if !ok {
		return nil
	}
	return usuario
}
