package handlers

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/api/middleware"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/importer"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/services"
	"go.uber.org/zap"
)

type RetencionHandler struct {
	retencionService *services.RetencionService
	logger           *zap.Logger
}

func NewRetencionHandler(retencionService *services.RetencionService, logger *zap.Logger) *RetencionHandler {
	return &RetencionHandler{
		retencionService: retencionService,
		logger:           logger.With(zap.String("handler", "retencion")),
	}
}

type retencionRequest struct {
	RetencionGestion   int    `json:"retencion_gestion"`
	RetencionCentral   int    `json:"retencion_central"`
	Disposicion        string `json:"disposicion"`
	SoporteFisico      bool   `json:"soporte_fisico"`
	SoporteElectronico bool   `json:"soporte_electronico"`
	Procedimiento      string `json:"procedimiento"`
}

func (h *RetencionHandler) Set(c *gin.Context) {
	usuario := middleware.CurrentUser(c)

	nodoID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identificador de nodo inválido"})
		return
	}

	var req retencionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cuerpo de la petición inválido"})
		return
	}

	entrada, err := h.retencionService.SetRetention(c.Request.Context(), usuario, uint(nodoID), services.CamposRetencion{
		RetencionGestion:   req.RetencionGestion,
		RetencionCentral:   req.RetencionCentral,
		Disposicion:        models.DisposicionFinal(req.Disposicion),
		SoporteFisico:      req.SoporteFisico,
		SoporteElectronico: req.SoporteElectronico,
		Procedimiento:      req.Procedimiento,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entrada)
}

// Remove deletes a node's retention entry. The confirmation flag mirrors
// the UI's delete dialog; removal without it is rejected.
func (h *RetencionHandler) Remove(c *gin.Context) {
	usuario := middleware.CurrentUser(c)

	nodoID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identificador de nodo inválido"})
		return
	}

	if c.Query("confirmado") != "true" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"errores": gin.H{"confirmado": "debe confirmar la eliminación explícitamente"},
		})
		return
	}

	if err := h.retencionService.RemoveRetention(c.Request.Context(), usuario, uint(nodoID)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "entrada de retención eliminada"})
}

func (h *RetencionHandler) Get(c *gin.Context) {
	nodoID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identificador de nodo inválido"})
		return
	}

	entrada, err := h.retencionService.GetRetention(c.Request.Context(), uint(nodoID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entrada)
}

func (h *RetencionHandler) ResolveForDocument(c *gin.Context) {
	entrada, err := h.retencionService.ResolveForDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entrada)
}

// Import accepts a CSV or XLSX file of retention rows. Parse errors and
// apply errors are reported per row.
func (h *RetencionHandler) Import(c *gin.Context) {
	usuario := middleware.CurrentUser(c)

	fileHeader, err := c.FormFile("archivo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "debe adjuntar un archivo"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("open import file failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}
	defer f.Close()

	var filas []importer.FilaTRD
	var erroresParse []importer.ErrorFila

	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".csv":
		filas, erroresParse, err = importer.ParseCSV(f)
	case ".xlsx":
		filas, erroresParse, err = importer.ParseXLSX(f)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "solo se admiten archivos CSV o XLSX"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resultado, err := h.retencionService.ImportRows(c.Request.Context(), usuario, filas)
	if err != nil {
		respondError(c, err)
		return
	}

	for _, pe := range erroresParse {
		resultado.Errores++
		resultado.Detalle = append(resultado.Detalle, services.ErrorImportado{
			Fila:    pe.Fila,
			Mensaje: pe.Mensaje,
		})
	}

	c.JSON(http.StatusOK, gin.H{"resultados": resultado})
}
