package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const versionBatchSize = 50

type VersionService struct {
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewVersionService(db *gorm.DB, logger *zap.Logger, metrics *metrics.MetricsCollector) *VersionService {
	return &VersionService{
		db:      db,
		logger:  logger.With(zap.String("service", "version_service")),
		metrics: metrics,
	}
}

// AddVersion appends a new immutable snapshot. Prior rows are never
// touched; the new label is derived from the highest existing number.
func (vs *VersionService) AddVersion(ctx context.Context, usuario *models.Usuario, docID string, contenido []byte, notas string) (*models.VersionDocumento, error) {
	if !usuario.Rol.PuedeEscribir() {
		return nil, &PermissionError{Accion: "agregar versión"}
	}
	if len(contenido) == 0 {
		return nil, NewValidationError().Add("contenido", "el contenido no puede estar vacío")
	}

	hash := sha256.Sum256(contenido)
	var version *models.VersionDocumento

	err := vs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Documento
		if err := tx.First(&doc, "id = ?", docID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entidad: "documento", ID: docID}
			}
			return err
		}

		var ultimo int
		row := tx.Model(&models.VersionDocumento{}).
			Where("documento_id = ?", docID).
			Select("COALESCE(MAX(numero), 0)").
			Row()
		if err := row.Scan(&ultimo); err != nil {
			return err
		}

		version = &models.VersionDocumento{
			DocumentoID:   docID,
			Numero:        ultimo + 1,
			Etiqueta:      fmt.Sprintf("%d.0", ultimo+1),
			Contenido:     contenido,
			HashContenido: hex.EncodeToString(hash[:]),
			Tamano:        int64(len(contenido)),
			NotasCambio:   notas,
			AutorID:       usuario.ID,
		}
		return tx.Create(version).Error
	})
	if err != nil {
		return nil, err
	}

	vs.metrics.IncrementCounter("versiones_creadas", nil)
	vs.metrics.ObserveSize("version_size", float64(len(contenido)))
	vs.logger.Info("Version added",
		zap.String("doc_id", docID),
		zap.String("etiqueta", version.Etiqueta),
		zap.Uint("user_id", usuario.ID))

	return version, nil
}

func (vs *VersionService) GetVersion(ctx context.Context, docID string, numero int) (*models.VersionDocumento, error) {
	var version models.VersionDocumento
	err := vs.db.WithContext(ctx).
		Where("documento_id = ? AND numero = ?", docID, numero).
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entidad: "versión", ID: fmt.Sprintf("%s/%d", docID, numero)}
		}
		return nil, err
	}
	return &version, nil
}

func (vs *VersionService) UltimaVersion(ctx context.Context, docID string) (*models.VersionDocumento, error) {
	var version models.VersionDocumento
	err := vs.db.WithContext(ctx).
		Where("documento_id = ?", docID).
		Order("numero DESC").
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entidad: "versión", ID: docID}
		}
		return nil, err
	}
	return &version, nil
}

// ListVersions returns a restartable iterator over a document's versions
// in ascending creation order. Batches are fetched lazily by version
// number, so the full history never has to fit in memory at once.
func (vs *VersionService) ListVersions(docID string) *VersionIterator {
	return &VersionIterator{
		db:    vs.db,
		docID: docID,
		batch: versionBatchSize,
	}
}

type VersionIterator struct {
	db     *gorm.DB
	docID  string
	cursor int
	batch  int
	done   bool
}

// Next returns the next batch of versions, or nil once exhausted.
func (it *VersionIterator) Next(ctx context.Context) ([]models.VersionDocumento, error) {
	if it.done {
		return nil, nil
	}

	var versiones []models.VersionDocumento
	err := it.db.WithContext(ctx).
		Where("documento_id = ? AND numero > ?", it.docID, it.cursor).
		Order("numero ASC").
		Limit(it.batch).
		Find(&versiones).Error
	if err != nil {
		return nil, err
	}

	if len(versiones) == 0 {
		it.done = true
		return nil, nil
	}

	it.cursor = versiones[len(versiones)-1].Numero
	if len(versiones) < it.batch {
		it.done = true
	}
	return versiones, nil
}

// Reset rewinds the iterator to the beginning of the sequence.
func (it *VersionIterator) Reset() {
	it.cursor = 0
	it.done = false
}
