package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/api/middleware"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExpedienteHandler covers case files and CCD nodes. Both are plain CRUD
// with no lifecycle of their own, so the handler talks to gorm directly.
type ExpedienteHandler struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewExpedienteHandler(db *gorm.DB, logger *zap.Logger) *ExpedienteHandler {
	return &ExpedienteHandler{
		db:     db,
		logger: logger.With(zap.String("handler", "expediente")),
	}
}

type crearExpedienteRequest struct {
	Codigo    string `json:"codigo" binding:"required"`
	Titulo    string `json:"titulo" binding:"required"`
	NodoCCDID uint   `json:"nodo_ccd_id" binding:"required"`
}

func (h *ExpedienteHandler) Create(c *gin.Context) {
	usuario := middleware.CurrentUser(c)
	if !usuario.Rol.PuedeEscribir() {
		c.JSON(http.StatusForbidden, gin.H{"error": "permisos insuficientes"})
		return
	}

	var req crearExpedienteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"errores": gin.H{"codigo": "código, título y nodo CCD son obligatorios"},
		})
		return
	}

	var nodo models.NodoCCD
	if err := h.db.First(&nodo, req.NodoCCDID).Error; err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"errores": gin.H{"nodo_ccd_id": "el nodo CCD no existe"},
		})
		return
	}

	exp := &models.Expediente{
		ID:        uuid.New().String(),
		Codigo:    strings.TrimSpace(req.Codigo),
		Titulo:    req.Titulo,
		NodoCCDID: req.NodoCCDID,
		Estado:    "abierto",
	}
	if err := h.db.Create(exp).Error; err != nil {
		h.logger.Error("create expediente failed", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "no se pudo crear el expediente (¿código duplicado?)"})
		return
	}

	c.JSON(http.StatusCreated, exp)
}

func (h *ExpedienteHandler) List(c *gin.Context) {
	var expedientes []models.Expediente
	query := h.db.Order("codigo ASC")
	if estado := c.Query("estado"); estado != "" {
		query = query.Where("estado = ?", estado)
	}
	if err := query.Find(&expedientes).Error; err != nil {
		h.logger.Error("list expedientes failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expedientes": expedientes})
}

func (h *ExpedienteHandler) Get(c *gin.Context) {
	var exp models.Expediente
	if err := h.db.First(&exp, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "expediente no encontrado"})
		return
	}
	c.JSON(http.StatusOK, exp)
}

type crearNodoRequest struct {
	PadreID *uint  `json:"padre_id"`
	Nivel   string `json:"nivel" binding:"required"`
	Codigo  string `json:"codigo" binding:"required"`
	Nombre  string `json:"nombre" binding:"required"`
}

func (h *ExpedienteHandler) CreateNodo(c *gin.Context) {
	usuario := middleware.CurrentUser(c)
	if usuario.Rol != models.RolAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "permisos insuficientes"})
		return
	}

	var req crearNodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"errores": gin.H{"codigo": "nivel, código y nombre son obligatorios"},
		})
		return
	}

	if req.PadreID != nil {
		var padre models.NodoCCD
		if err := h.db.First(&padre, *req.PadreID).Error; err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"errores": gin.H{"padre_id": "el nodo padre no existe"},
			})
			return
		}
	}

	nodo := &models.NodoCCD{
		PadreID: req.PadreID,
		Nivel:   models.NivelCCD(req.Nivel),
		Codigo:  strings.TrimSpace(req.Codigo),
		Nombre:  req.Nombre,
		Activo:  true,
	}
	if err := h.db.Create(nodo).Error; err != nil {
		h.logger.Error("create nodo failed", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "no se pudo crear el nodo (¿código duplicado?)"})
		return
	}

	c.JSON(http.StatusCreated, nodo)
}

func (h *ExpedienteHandler) ListNodos(c *gin.Context) {
	var nodos []models.NodoCCD
	query := h.db.Order("codigo ASC")
	if padre := c.Query("padre_id"); padre != "" {
		padreID, err := strconv.ParseUint(padre, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "padre_id inválido"})
			return
		}
		query = query.Where("padre_id = ?", uint(padreID))
	}
	if err := query.Find(&nodos).Error; err != nil {
		h.logger.Error("list nodos failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodos": nodos})
}
