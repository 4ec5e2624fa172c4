package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/api/middleware"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/services"
	"go.uber.org/zap"
)

type DocumentoHandler struct {
	documentoService *services.DocumentoService
	versionService   *services.VersionService
	firmaService     *services.FirmaService
	extensiones      map[string]bool
	logger           *zap.Logger
}

func NewDocumentoHandler(
	documentoService *services.DocumentoService,
	versionService *services.VersionService,
	firmaService *services.FirmaService,
	extensionesPermitidas []string,
	logger *zap.Logger,
) *DocumentoHandler {
	extensiones := make(map[string]bool, len(extensionesPermitidas))
	for _, ext := range extensionesPermitidas {
		extensiones[strings.ToLower(ext)] = true
	}
	return &DocumentoHandler{
		documentoService: documentoService,
		versionService:   versionService,
		firmaService:     firmaService,
		extensiones:      extensiones,
		logger:           logger.With(zap.String("handler", "documento")),
	}
}

type crearDocumentoRequest struct {
	Titulo           string `json:"titulo"`
	Descripcion      string `json:"descripcion"`
	ExpedienteID     string `json:"expediente_id"`
	Tipologia        string `json:"tipologia"`
	Soporte          string `json:"soporte"`
	Confidencialidad string `json:"confidencialidad"`
}

func (h *DocumentoHandler) Create(c *gin.Context) {
	usuario := middleware.CurrentUser(c)

	var req crearDocumentoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cuerpo de la petición inválido"})
		return
	}

	doc, err := h.documentoService.Create(c.Request.Context(), usuario, services.CamposDocumento{
		Titulo:           req.Titulo,
		Descripcion:      req.Descripcion,
		ExpedienteID:     req.ExpedienteID,
		Tipologia:        req.Tipologia,
		Soporte:          models.SoporteDocumental(req.Soporte),
		Confidencialidad: req.Confidencialidad,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *DocumentoHandler) Get(c *gin.Context) {
	doc, err := h.documentoService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	total, err := h.firmaService.CountSignatures(c.Request.Context(), doc.ID)
	if err != nil {
		h.logger.Error("count signatures failed", zap.Error(err))
		total = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"documento":    doc,
		"total_firmas": total,
	})
}

func (h *DocumentoHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	pagina, err := h.documentoService.List(c.Request.Context(), services.FiltroDocumentos{
		ExpedienteID: c.Query("expediente_id"),
		Estado:       models.EstadoDocumento(c.Query("estado")),
		Soporte:      models.SoporteDocumental(c.Query("soporte")),
		Busqueda:     c.Query("q"),
		Page:         page,
		PerPage:      perPage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     pagina.Items,
		"page":     pagina.Page,
		"per_page": pagina.PerPage,
		"total":    pagina.Total,
		"from":     pagina.From,
		"to":       pagina.To,
	})
}

type actualizarDocumentoRequest struct {
	crearDocumentoRequest
	LockVersion int `json:"lock_version"`
}

func (h *DocumentoHandler) Update(c *gin.Context) {
	usuario := middleware.CurrentUser(c)

	var req actualizarDocumentoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cuerpo de la petición inválido"})
		return
	}

	doc, err := h.documentoService.Update(c.Request.Context(), usuario, c.Param("id"), services.CamposDocumento{
		Titulo:           req.Titulo,
		Descripcion:      req.Descripcion,
		Tipologia:        req.Tipologia,
		Soporte:          models.SoporteDocumental(req.Soporte),
		Confidencialidad: req.Confidencialidad,
	}, req.LockVersion)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

type transicionRequest struct {
	Estado      string `json:"estado" binding:"required"`
	LockVersion int    `json:"lock_version"`
}

func (h *DocumentoHandler) Transition(c *gin.Context) {
	usuario := middleware.CurrentUser(c)

	var req transicionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "el estado destino es obligatorio"})
		return
	}

	doc, err := h.documentoService.Transition(c.Request.Context(), usuario, c.Param("id"),
		models.EstadoDocumento(req.Estado), req.LockVersion)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *DocumentoHandler) AddVersion(c *gin.Context) {
	usuario := middleware.CurrentUser(c)
	docID := c.Param("id")

	fileHeader, err := c.FormFile("archivo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "debe adjuntar un archivo"})
		return
	}

	if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); !h.extensiones[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tipo de archivo no permitido"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}
	defer f.Close()

	contenido, err := io.ReadAll(f)
	if err != nil {
		h.logger.Error("read file failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error interno"})
		return
	}

	version, err := h.versionService.AddVersion(c.Request.Context(), usuario, docID, contenido, c.PostForm("notas"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":             version.ID,
		"numero":         version.Numero,
		"etiqueta":       version.Etiqueta,
		"hash_contenido": version.HashContenido,
		"tamano":         version.Tamano,
		"notas_cambio":   version.NotasCambio,
		"created_at":     version.CreatedAt,
	})
}

func (h *DocumentoHandler) ListVersions(c *gin.Context) {
	docID := c.Param("id")

	if _, err := h.documentoService.Get(c.Request.Context(), docID); err != nil {
		respondError(c, err)
		return
	}

	it := h.versionService.ListVersions(docID)
	versiones := make([]gin.H, 0)
	for {
		batch, err := it.Next(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if batch == nil {
			break
		}
		for _, v := range batch {
			versiones = append(versiones, gin.H{
				"id":             v.ID,
				"numero":         v.Numero,
				"etiqueta":       v.Etiqueta,
				"hash_contenido": v.HashContenido,
				"tamano":         v.Tamano,
				"notas_cambio":   v.NotasCambio,
				"autor_id":       v.AutorID,
				"created_at":     v.CreatedAt,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{"versiones": versiones})
}

// DownloadVersion streams a stored snapshot. "ultima" selects the most
// recent version.
func (h *DocumentoHandler) DownloadVersion(c *gin.Context) {
	docID := c.Param("id")

	var version *models.VersionDocumento
	if c.Param("numero") == "ultima" {
		v, err := h.versionService.UltimaVersion(c.Request.Context(), docID)
		if err != nil {
			respondError(c, err)
			return
		}
		version = v
	} else {
		numero, err := strconv.Atoi(c.Param("numero"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "número de versión inválido"})
			return
		}
		v, err := h.versionService.GetVersion(c.Request.Context(), docID, numero)
		if err != nil {
			respondError(c, err)
			return
		}
		version = v
	}

	c.Header("Content-Disposition", `attachment; filename="version-`+version.Etiqueta+`"`)
	c.Data(http.StatusOK, "application/octet-stream", version.Contenido)
}

func (h *DocumentoHandler) BulkUpload(c *gin.Context) {
	usuario := middleware.CurrentUser(c)
	expedienteID := c.PostForm("expediente_id")

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "formulario multipart inválido"})
		return
	}

	files := form.File["archivos"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "debe adjuntar al menos un archivo"})
		return
	}

	archivos := make([]services.ArchivoCarga, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			h.logger.Error("open bulk file failed", zap.String("archivo", fh.Filename), zap.Error(err))
			archivos = append(archivos, services.ArchivoCarga{Nombre: fh.Filename})
			continue
		}
		contenido, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.logger.Error("read bulk file failed", zap.String("archivo", fh.Filename), zap.Error(err))
			archivos = append(archivos, services.ArchivoCarga{Nombre: fh.Filename})
			continue
		}
		archivos = append(archivos, services.ArchivoCarga{Nombre: fh.Filename, Contenido: contenido})
	}

	resultado, err := h.documentoService.BulkUpload(c.Request.Context(), usuario, expedienteID, archivos)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"resultados": resultado})
}
