package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/api/middleware"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FirmaHandler struct {
	firmaService *services.FirmaService
	db           *gorm.DB
	logger       *zap.Logger
}

func NewFirmaHandler(firmaService *services.FirmaService, db *gorm.DB, logger *zap.Logger) *FirmaHandler {
	return &FirmaHandler{
		firmaService: firmaService,
		db:           db,
		logger:       logger.With(zap.String("handler", "firma")),
	}
}

type firmarRequest struct {
	Motivo     string `json:"motivo"`
	Tipo       string `json:"tipo"`
	Confirmado bool   `json:"confirmado"`
}

// Sign requires the explicit confirmation flag from the UI dialog; the
// signature is permanent once created. A missing motivo comes back from
// the service as a field-keyed validation error.
func (h *FirmaHandler) Sign(c *gin.Context) {
	usuario := middleware.CurrentUser(c)
	docID := c.Param("id")

	var req firmarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cuerpo de la petición inválido"})
		return
	}
	if !req.Confirmado {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"errores": gin.H{"confirmado": "debe confirmar la firma explícitamente"},
		})
		return
	}

	firma, err := h.firmaService.Sign(c.Request.Context(), usuario, docID, req.Motivo, models.TipoFirma(req.Tipo))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":             firma.ID,
		"documento_id":   firma.DocumentoID,
		"version_id":     firma.VersionID,
		"usuario_id":     firma.UsuarioID,
		"motivo":         firma.Motivo,
		"tipo":           firma.Tipo,
		"hash_contenido": firma.HashContenido,
		"firma":          base64.StdEncoding.EncodeToString(firma.Firma),
		"vigente_hasta":  firma.VigenteHasta,
		"created_at":     firma.CreatedAt,
	})
}

func (h *FirmaHandler) Verify(c *gin.Context) {
	firmaID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identificador de firma inválido"})
		return
	}

	resultado, err := h.firmaService.Verify(c.Request.Context(), uint(firmaID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resultado)
}

func (h *FirmaHandler) VerifyDocument(c *gin.Context) {
	resultados, err := h.firmaService.VerifyDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"resultados": resultados})
}

func (h *FirmaHandler) List(c *gin.Context) {
	docID := c.Param("id")

	firmas, err := h.firmaService.ListSignatures(c.Request.Context(), docID)
	if err != nil {
		respondError(c, err)
		return
	}

	userMap := make(map[uint]string)
	var usuarios []models.Usuario
	if err := h.db.Find(&usuarios).Error; err == nil {
		for _, u := range usuarios {
			userMap[u.ID] = u.Username
		}
	}

	items := make([]gin.H, 0, len(firmas))
	for _, f := range firmas {
		firmante := userMap[f.UsuarioID]
		if firmante == "" {
			firmante = "usuario desconocido"
		}
		items = append(items, gin.H{
			"id":                  f.ID,
			"firmante":            firmante,
			"usuario_id":          f.UsuarioID,
			"motivo":              f.Motivo,
			"tipo":                f.Tipo,
			"valida":              f.Valida,
			"vigente_hasta":       f.VigenteHasta,
			"ultima_verificacion": f.UltimaVerificacion,
			"created_at":          f.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"firmas":       items,
		"total_firmas": len(items),
	})
}
