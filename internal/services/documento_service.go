package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// transicionesPermitidas is the lifecycle edge set. obsoleto is reachable
// from every state and handled separately in Transition.
var transicionesPermitidas = map[models.EstadoDocumento]models.EstadoDocumento{
	models.EstadoBorrador:  models.EstadoPendiente,
	models.EstadoPendiente: models.EstadoAprobado,
	models.EstadoAprobado:  models.EstadoActivo,
	models.EstadoActivo:    models.EstadoArchivado,
}

type DocumentoService struct {
	db           *gorm.DB
	logger       *zap.Logger
	metrics      *metrics.MetricsCollector
	maxFileBytes int64
}

type CamposDocumento struct {
	Titulo           string
	Descripcion      string
	ExpedienteID     string
	Tipologia        string
	Soporte          models.SoporteDocumental
	Confidencialidad string
}

type FiltroDocumentos struct {
	ExpedienteID string
	Estado       models.EstadoDocumento
	Soporte      models.SoporteDocumental
	Busqueda     string
	Page         int
	PerPage      int
}

type PaginaDocumentos struct {
	Items   []models.Documento
	Page    int
	PerPage int
	Total   int64
	From    int
	To      int
}

type ArchivoCarga struct {
	Nombre    string
	Titulo    string
	Contenido []byte
}

type DetalleCarga struct {
	Archivo     string `json:"archivo"`
	DocumentoID string `json:"documento_id,omitempty"`
	Mensaje     string `json:"mensaje"`
	Error       bool   `json:"error"`
}

type ResultadoCarga struct {
	Exitosos int            `json:"exitosos"`
	Errores  int            `json:"errores"`
	Detalle  []DetalleCarga `json:"detalle"`
}

func NewDocumentoService(db *gorm.DB, maxFileBytes int64, logger *zap.Logger, metrics *metrics.MetricsCollector) *DocumentoService {
	return &DocumentoService{
		db:           db,
		logger:       logger.With(zap.String("service", "documento_service")),
		metrics:      metrics,
		maxFileBytes: maxFileBytes,
	}
}

func (ds *DocumentoService) Create(ctx context.Context, usuario *models.Usuario, campos CamposDocumento) (*models.Documento, error) {
	if !usuario.Rol.PuedeEscribir() {
		return nil, &PermissionError{Accion: "crear documento"}
	}

	verr := NewValidationError()
	if strings.TrimSpace(campos.Titulo) == "" {
		verr.Add("titulo", "el título es obligatorio")
	}
	if campos.ExpedienteID == "" {
		verr.Add("expediente_id", "el expediente es obligatorio")
	}
	if !campos.Soporte.Valido() {
		verr.Add("soporte", "el soporte debe ser fisico, electronico o hibrido")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	var exp models.Expediente
	if err := ds.db.WithContext(ctx).First(&exp, "id = ?", campos.ExpedienteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError().Add("expediente_id", "el expediente no existe")
		}
		return nil, err
	}

	confidencialidad := campos.Confidencialidad
	if confidencialidad == "" {
		confidencialidad = "interna"
	}

	doc := &models.Documento{
		ID:               uuid.New().String(),
		Codigo:           ds.generarCodigo(exp.Codigo),
		Titulo:           campos.Titulo,
		Descripcion:      campos.Descripcion,
		ExpedienteID:     exp.ID,
		Tipologia:        campos.Tipologia,
		Soporte:          campos.Soporte,
		Confidencialidad: confidencialidad,
		Estado:           models.EstadoBorrador,
		EstadoFirma:      models.FirmaSinFirmar,
		CreadorID:        usuario.ID,
		ModificadorID:    usuario.ID,
	}

	if err := ds.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}

	ds.metrics.IncrementCounter("documentos_creados", nil)
	ds.logger.Info("Document created",
		zap.String("doc_id", doc.ID),
		zap.String("codigo", doc.Codigo),
		zap.Uint("user_id", usuario.ID))

	return doc, nil
}

func (ds *DocumentoService) generarCodigo(expedienteCodigo string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("%s-DOC-%s", expedienteCodigo, suffix)
}

func (ds *DocumentoService) Get(ctx context.Context, docID string) (*models.Documento, error) {
	var doc models.Documento
	if err := ds.db.WithContext(ctx).First(&doc, "id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entidad: "documento", ID: docID}
		}
		return nil, err
	}
	return &doc, nil
}

// Transition moves a document along the lifecycle graph. lockVersion must
// match the stored row or the call fails with ConflictError; the state
// change and audit fields commit in one transaction.
func (ds *DocumentoService) Transition(ctx context.Context, usuario *models.Usuario, docID string, destino models.EstadoDocumento, lockVersion int) (*models.Documento, error) {
	if !usuario.Rol.PuedeEscribir() {
		return nil, &PermissionError{Accion: "cambiar estado"}
	}

	var doc models.Documento
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&doc, "id = ?", docID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entidad: "documento", ID: docID}
			}
			return err
		}

		if doc.LockVersion != lockVersion {
			return &ConflictError{DocumentoID: docID, Esperada: doc.LockVersion, Recibida: lockVersion}
		}

		if !transicionValida(doc.Estado, destino) {
			return &InvalidTransitionError{Desde: doc.Estado, Hacia: destino}
		}

		res := tx.Model(&doc).
			Where("lock_version = ?", lockVersion).
			Updates(map[string]interface{}{
				"estado":         destino,
				"modificador_id": usuario.ID,
				"lock_version":   lockVersion + 1,
				"updated_at":     time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{DocumentoID: docID, Esperada: doc.LockVersion, Recibida: lockVersion}
		}

		doc.Estado = destino
		doc.ModificadorID = usuario.ID
		doc.LockVersion = lockVersion + 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	ds.metrics.IncrementCounter("documentos_transiciones", map[string]string{"estado": string(destino)})
	ds.logger.Info("Document state changed",
		zap.String("doc_id", docID),
		zap.String("estado", string(destino)),
		zap.Uint("user_id", usuario.ID))

	return &doc, nil
}

func transicionValida(desde, hacia models.EstadoDocumento) bool {
	if hacia == models.EstadoObsoleto {
		return desde != models.EstadoObsoleto
	}
	return transicionesPermitidas[desde] == hacia
}

// Update edits descriptive metadata under the same optimistic-lock
// discipline as Transition. Lifecycle state is not editable here.
func (ds *DocumentoService) Update(ctx context.Context, usuario *models.Usuario, docID string, campos CamposDocumento, lockVersion int) (*models.Documento, error) {
	if !usuario.Rol.PuedeEscribir() {
		return nil, &PermissionError{Accion: "editar documento"}
	}

	verr := NewValidationError()
	if strings.TrimSpace(campos.Titulo) == "" {
		verr.Add("titulo", "el título es obligatorio")
	}
	if campos.Soporte != "" && !campos.Soporte.Valido() {
		verr.Add("soporte", "el soporte debe ser fisico, electronico o hibrido")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	var doc models.Documento
	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&doc, "id = ?", docID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entidad: "documento", ID: docID}
			}
			return err
		}

		if doc.LockVersion != lockVersion {
			return &ConflictError{DocumentoID: docID, Esperada: doc.LockVersion, Recibida: lockVersion}
		}

		updates := map[string]interface{}{
			"titulo":         campos.Titulo,
			"descripcion":    campos.Descripcion,
			"tipologia":      campos.Tipologia,
			"modificador_id": usuario.ID,
			"lock_version":   lockVersion + 1,
			"updated_at":     time.Now(),
		}
		if campos.Soporte != "" {
			updates["soporte"] = campos.Soporte
		}
		if campos.Confidencialidad != "" {
			updates["confidencialidad"] = campos.Confidencialidad
		}

		res := tx.Model(&doc).Where("lock_version = ?", lockVersion).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &ConflictError{DocumentoID: docID, Esperada: doc.LockVersion, Recibida: lockVersion}
		}
		return tx.First(&doc, "id = ?", docID).Error
	})
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (ds *DocumentoService) List(ctx context.Context, filtro FiltroDocumentos) (*PaginaDocumentos, error) {
	if filtro.Page < 1 {
		filtro.Page = 1
	}
	if filtro.PerPage < 1 || filtro.PerPage > 100 {
		filtro.PerPage = 20
	}

	query := ds.db.WithContext(ctx).Model(&models.Documento{})
	if filtro.ExpedienteID != "" {
		query = query.Where("expediente_id = ?", filtro.ExpedienteID)
	}
	if filtro.Estado != "" {
		query = query.Where("estado = ?", filtro.Estado)
	}
	if filtro.Soporte != "" {
		query = query.Where("soporte = ?", filtro.Soporte)
	}
	if filtro.Busqueda != "" {
		like := "%" + filtro.Busqueda + "%"
		query = query.Where("titulo ILIKE ? OR codigo ILIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var docs []models.Documento
	offset := (filtro.Page - 1) * filtro.PerPage
	if err := query.Order("created_at DESC").Offset(offset).Limit(filtro.PerPage).Find(&docs).Error; err != nil {
		return nil, err
	}

	pagina := &PaginaDocumentos{
		Items:   docs,
		Page:    filtro.Page,
		PerPage: filtro.PerPage,
		Total:   total,
	}
	if len(docs) > 0 {
		pagina.From = offset + 1
		pagina.To = offset + len(docs)
	}
	return pagina, nil
}

// BulkUpload creates one document with an initial version per file. Files
// are processed independently: a failure on one is reported in the detail
// list and never aborts the rest.
func (ds *DocumentoService) BulkUpload(ctx context.Context, usuario *models.Usuario, expedienteID string, archivos []ArchivoCarga) (*ResultadoCarga, error) {
	if !usuario.Rol.PuedeEscribir() {
		return nil, &PermissionError{Accion: "carga masiva"}
	}

	var exp models.Expediente
	if err := ds.db.WithContext(ctx).First(&exp, "id = ?", expedienteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError().Add("expediente_id", "el expediente no existe")
		}
		return nil, err
	}

	resultado := &ResultadoCarga{Detalle: make([]DetalleCarga, 0, len(archivos))}
	start := time.Now()

	for _, archivo := range archivos {
		detalle := ds.cargarArchivo(ctx, usuario, &exp, archivo)
		if detalle.Error {
			resultado.Errores++
		} else {
			resultado.Exitosos++
		}
		resultado.Detalle = append(resultado.Detalle, detalle)
	}

	ds.metrics.ObserveLatency("carga_masiva", time.Since(start))
	ds.metrics.IncrementCounter("cargas_masivas", nil)
	ds.logger.Info("Bulk upload finished",
		zap.String("expediente_id", expedienteID),
		zap.Int("exitosos", resultado.Exitosos),
		zap.Int("errores", resultado.Errores))

	return resultado, nil
}

func (ds *DocumentoService) cargarArchivo(ctx context.Context, usuario *models.Usuario, exp *models.Expediente, archivo ArchivoCarga) DetalleCarga {
	if int64(len(archivo.Contenido)) > ds.maxFileBytes {
		return DetalleCarga{
			Archivo: archivo.Nombre,
			Mensaje: fmt.Sprintf("el archivo supera el límite de %d bytes", ds.maxFileBytes),
			Error:   true,
		}
	}
	if len(archivo.Contenido) == 0 {
		return DetalleCarga{Archivo: archivo.Nombre, Mensaje: "el archivo está vacío", Error: true}
	}

	titulo := archivo.Titulo
	if titulo == "" {
		titulo = archivo.Nombre
	}

	hash := sha256.Sum256(archivo.Contenido)
	doc := &models.Documento{
		ID:               uuid.New().String(),
		Codigo:           ds.generarCodigo(exp.Codigo),
		Titulo:           titulo,
		ExpedienteID:     exp.ID,
		Soporte:          models.SoporteElectronico,
		Confidencialidad: "interna",
		Estado:           models.EstadoBorrador,
		EstadoFirma:      models.FirmaSinFirmar,
		CreadorID:        usuario.ID,
		ModificadorID:    usuario.ID,
	}

	err := ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		version := &models.VersionDocumento{
			DocumentoID:   doc.ID,
			Numero:        1,
			Etiqueta:      "1.0",
			Contenido:     archivo.Contenido,
			HashContenido: hex.EncodeToString(hash[:]),
			Tamano:        int64(len(archivo.Contenido)),
			NotasCambio:   "Carga masiva",
			AutorID:       usuario.ID,
		}
		return tx.Create(version).Error
	})
	if err != nil {
		ds.logger.Warn("Bulk upload item failed",
			zap.String("archivo", archivo.Nombre), zap.Error(err))
		return DetalleCarga{Archivo: archivo.Nombre, Mensaje: "no se pudo guardar el documento", Error: true}
	}

	ds.metrics.ObserveSize("documento_size", float64(len(archivo.Contenido)))
	return DetalleCarga{
		Archivo:     archivo.Nombre,
		DocumentoID: doc.ID,
		Mensaje:     "documento creado",
	}
}
