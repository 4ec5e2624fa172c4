package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/importer"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RetencionService struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

type CamposRetencion struct {
	RetencionGestion   int
	RetencionCentral   int
	Disposicion        models.DisposicionFinal
	SoporteFisico      bool
	SoporteElectronico bool
	Procedimiento      string
}

type ResultadoImportacion struct {
	Exitosos int              `json:"exitosos"`
	Errores  int              `json:"errores"`
	Detalle  []ErrorImportado `json:"detalle"`
}

type ErrorImportado struct {
	Fila    int    `json:"fila"`
	Mensaje string `json:"mensaje"`
}

func NewRetencionService(db *gorm.DB, logger *zap.Logger, metrics *metrics.MetricsCollector) *RetencionService {
	return &RetencionService{
		db:      db,
		logger:  logger.With(zap.String("service", "retencion_service")),
		metrics: metrics,
	}
}

// SetRetention validates and upserts the single retention entry for a
// classification node, replacing any prior entry for that node.
func (rs *RetencionService) SetRetention(ctx context.Context, usuario *models.Usuario, nodoID uint, campos CamposRetencion) (*models.EntradaTRD, error) {
	if usuario.Rol != models.RolAdmin {
		return nil, &PermissionError{Accion: "editar retención"}
	}

	verr := NewValidationError()
	if campos.RetencionGestion < 0 {
		verr.Add("retencion_gestion", "los años en archivo de gestión no pueden ser negativos")
	}
	if campos.RetencionCentral < 0 {
		verr.Add("retencion_central", "los años en archivo central no pueden ser negativos")
	}
	if !campos.Disposicion.Valida() {
		verr.Add("disposicion", "la disposición final debe ser CT, E, D, S o M")
	}
	if !campos.SoporteFisico && !campos.SoporteElectronico {
		verr.Add("soportes", "debe aplicar al menos a un soporte")
	}
	if verr.HasErrors() {
		return nil, verr
	}

	var nodo models.NodoCCD
	if err := rs.db.WithContext(ctx).First(&nodo, nodoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entidad: "nodo CCD", ID: strconv.FormatUint(uint64(nodoID), 10)}
		}
		return nil, err
	}

	entrada := &models.EntradaTRD{
		NodoCCDID:          nodoID,
		RetencionGestion:   campos.RetencionGestion,
		RetencionCentral:   campos.RetencionCentral,
		Disposicion:        campos.Disposicion,
		SoporteFisico:      campos.SoporteFisico,
		SoporteElectronico: campos.SoporteElectronico,
		Procedimiento:      campos.Procedimiento,
	}

	err := rs.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "nodo_ccd_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"retencion_gestion", "retencion_central", "disposicion",
			"soporte_fisico", "soporte_electronico", "procedimiento", "updated_at",
		}),
	}).Create(entrada).Error
	if err != nil {
		return nil, err
	}

	rs.metrics.IncrementCounter("retenciones_actualizadas", nil)
	rs.logger.Info("Retention entry set",
		zap.Uint("nodo_id", nodoID),
		zap.String("disposicion", string(campos.Disposicion)),
		zap.Uint("user_id", usuario.ID))

	return entrada, nil
}

// RemoveRetention deletes the node's entry. Historical documents are not
// touched; the caller is responsible for upstream confirmation.
func (rs *RetencionService) RemoveRetention(ctx context.Context, usuario *models.Usuario, nodoID uint) error {
	if usuario.Rol != models.RolAdmin {
		return &PermissionError{Accion: "eliminar retención"}
	}

	res := rs.db.WithContext(ctx).Where("nodo_ccd_id = ?", nodoID).Delete(&models.EntradaTRD{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Entidad: "entrada TRD", ID: strconv.FormatUint(uint64(nodoID), 10)}
	}

	rs.logger.Info("Retention entry removed",
		zap.Uint("nodo_id", nodoID),
		zap.Uint("user_id", usuario.ID))
	return nil
}

func (rs *RetencionService) GetRetention(ctx context.Context, nodoID uint) (*models.EntradaTRD, error) {
	var entrada models.EntradaTRD
	err := rs.db.WithContext(ctx).Where("nodo_ccd_id = ?", nodoID).First(&entrada).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entidad: "entrada TRD", ID: strconv.FormatUint(uint64(nodoID), 10)}
		}
		return nil, err
	}
	return &entrada, nil
}

// ResolveForDocument walks the document's classification node up through
// its CCD ancestors (inclusive) and returns the nearest retention entry.
// The walk tracks visited nodes so a corrupted parent chain cannot loop.
func (rs *RetencionService) ResolveForDocument(ctx context.Context, docID string) (*models.EntradaTRD, error) {
	var doc models.Documento
	if err := rs.db.WithContext(ctx).First(&doc, "id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entidad: "documento", ID: docID}
		}
		return nil, err
	}

	var exp models.Expediente
	if err := rs.db.WithContext(ctx).First(&exp, "id = ?", doc.ExpedienteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entidad: "expediente", ID: doc.ExpedienteID}
		}
		return nil, err
	}

	visitados := make(map[uint]bool)
	nodoID := exp.NodoCCDID

	for {
		if visitados[nodoID] {
			return nil, fmt.Errorf("ciclo detectado en la jerarquía CCD en el nodo %d", nodoID)
		}
		visitados[nodoID] = true

		var entrada models.EntradaTRD
		err := rs.db.WithContext(ctx).Where("nodo_ccd_id = ?", nodoID).First(&entrada).Error
		if err == nil {
			return &entrada, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		var nodo models.NodoCCD
		if err := rs.db.WithContext(ctx).First(&nodo, nodoID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &NotFoundError{Entidad: "nodo CCD", ID: strconv.FormatUint(uint64(nodoID), 10)}
			}
			return nil, err
		}
		if nodo.PadreID == nil {
			return nil, &NotFoundError{Entidad: "política de retención", ID: docID}
		}
		nodoID = *nodo.PadreID
	}
}

// ImportRows applies parsed TRD rows. Row failures are collected
// individually and never abort the batch.
func (rs *RetencionService) ImportRows(ctx context.Context, usuario *models.Usuario, filas []importer.FilaTRD) (*ResultadoImportacion, error) {
	if usuario.Rol != models.RolAdmin {
		return nil, &PermissionError{Accion: "importar TRD"}
	}

	resultado := &ResultadoImportacion{Detalle: []ErrorImportado{}}

	for _, fila := range filas {
		var nodo models.NodoCCD
		err := rs.db.WithContext(ctx).Where("codigo = ?", fila.CodigoNodo).First(&nodo).Error
		if err != nil {
			resultado.Errores++
			resultado.Detalle = append(resultado.Detalle, ErrorImportado{
				Fila:    fila.Fila,
				Mensaje: fmt.Sprintf("no existe un nodo CCD con código %q", fila.CodigoNodo),
			})
			continue
		}

		_, err = rs.SetRetention(ctx, usuario, nodo.ID, CamposRetencion{
			RetencionGestion:   fila.RetencionGestion,
			RetencionCentral:   fila.RetencionCentral,
			Disposicion:        models.DisposicionFinal(fila.Disposicion),
			SoporteFisico:      fila.SoporteFisico,
			SoporteElectronico: fila.SoporteElectronico,
			Procedimiento:      fila.Procedimiento,
		})
		if err != nil {
			resultado.Errores++
			resultado.Detalle = append(resultado.Detalle, ErrorImportado{Fila: fila.Fila, Mensaje: err.Error()})
			continue
		}
		resultado.Exitosos++
	}

	rs.logger.Info("TRD import finished",
		zap.Int("exitosos", resultado.Exitosos),
		zap.Int("errores", resultado.Errores))

	return resultado, nil
}
