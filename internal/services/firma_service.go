package services

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FirmaService struct {
	db         *gorm.DB
	keyService *KeyService
	logger     *zap.Logger
	metrics    *metrics.MetricsCollector
	vigencia   time.Duration
}

type ResultadoVerificacion struct {
	FirmaID uint     `json:"firma_id"`
	Valida  bool     `json:"valida"`
	Errores []string `json:"errores"`
}

func NewFirmaService(db *gorm.DB, keyService *KeyService, vigencia time.Duration, logger *zap.Logger, metrics *metrics.MetricsCollector) *FirmaService {
	return &FirmaService{
		db:         db,
		keyService: keyService,
		logger:     logger.With(zap.String("service", "firma_service")),
		metrics:    metrics,
		vigencia:   vigencia,
	}
}

// Sign produces an immutable signature over the document's latest version.
// The signature row and the document's estado_firma update commit in one
// transaction.
func (fs *FirmaService) Sign(ctx context.Context, usuario *models.Usuario, docID, motivo string, tipo models.TipoFirma) (*models.FirmaDocumento, error) {
	if !usuario.Rol.PuedeFirmar() {
		return nil, &PermissionError{Accion: "firmar documento"}
	}
	if strings.TrimSpace(motivo) == "" {
		return nil, NewValidationError().Add("motivo", "el motivo de la firma es obligatorio")
	}
	if tipo == "" {
		tipo = models.FirmaElectronica
	}

	var doc models.Documento
	if err := fs.db.WithContext(ctx).First(&doc, "id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entidad: "documento", ID: docID}
		}
		return nil, err
	}

	var version models.VersionDocumento
	err := fs.db.WithContext(ctx).
		Where("documento_id = ?", docID).
		Order("numero DESC").
		First(&version).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError().Add("version", "el documento no tiene versiones para firmar")
		}
		return nil, err
	}

	var existente models.FirmaDocumento
	err = fs.db.WithContext(ctx).
		Where("documento_id = ? AND usuario_id = ?", docID, usuario.ID).
		First(&existente).Error
	if err == nil {
		return nil, &DuplicateSignatureError{DocumentoID: docID, UsuarioID: usuario.ID}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	priv, claveVersion, err := fs.keyService.UsePrivateKey(usuario.ID)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256(version.Contenido)
	sigBytes, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, hash[:])
	if err != nil {
		fs.logger.Error("signing failed", zap.Error(err), zap.String("doc_id", docID))
		return nil, err
	}

	now := time.Now()
	firma := &models.FirmaDocumento{
		DocumentoID:   docID,
		VersionID:     version.ID,
		UsuarioID:     usuario.ID,
		Motivo:        motivo,
		Tipo:          tipo,
		HashContenido: hex.EncodeToString(hash[:]),
		Firma:         sigBytes,
		ClaveVersion:  claveVersion,
		VigenteHasta:  now.Add(fs.vigencia),
		Valida:        true,
		Errores:       datatypes.JSON([]byte("[]")),
	}
	firma.UltimaVerificacion = &now

	err = fs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(firma).Error; err != nil {
			return err
		}
		if doc.EstadoFirma == models.FirmaSinFirmar {
			return tx.Model(&models.Documento{}).
				Where("id = ?", docID).
				Update("estado_firma", models.FirmaFirmado).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fs.metrics.IncrementCounter("documentos_firmados", nil)
	fs.logger.Info("Document signed",
		zap.String("doc_id", docID),
		zap.Uint("user_id", usuario.ID),
		zap.String("motivo", motivo))

	return firma, nil
}

// Verify recomputes the content hash of the signed version as stored now,
// checks the RSA signature against the signer's key and the vigency
// window, and returns the result. The immutable signature fields are never
// written; only the derived verification snapshot is refreshed.
func (fs *FirmaService) Verify(ctx context.Context, firmaID uint) (*ResultadoVerificacion, error) {
	var firma models.FirmaDocumento
	if err := fs.db.WithContext(ctx).First(&firma, firmaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entidad: "firma", ID: itoa(firmaID)}
		}
		return nil, err
	}

	resultado := fs.evaluar(ctx, &firma)

	erroresJSON, _ := json.Marshal(resultado.Errores)
	now := time.Now()
	err := fs.db.WithContext(ctx).Model(&firma).Updates(map[string]interface{}{
		"valida":              resultado.Valida,
		"errores":             datatypes.JSON(erroresJSON),
		"ultima_verificacion": now,
	}).Error
	if err != nil {
		return nil, err
	}

	fs.metrics.IncrementCounter("firmas_verificadas", map[string]string{"valida": boolLabel(resultado.Valida)})
	return resultado, nil
}

// evaluar is the pure verification check; it never writes.
func (fs *FirmaService) evaluar(ctx context.Context, firma *models.FirmaDocumento) *ResultadoVerificacion {
	resultado := &ResultadoVerificacion{FirmaID: firma.ID, Errores: []string{}}

	var version models.VersionDocumento
	if err := fs.db.WithContext(ctx).First(&version, firma.VersionID).Error; err != nil {
		resultado.Errores = append(resultado.Errores, "la versión firmada ya no existe")
		return resultado
	}

	hash := sha256.Sum256(version.Contenido)
	hashActual := hex.EncodeToString(hash[:])
	if hashActual != firma.HashContenido {
		resultado.Errores = append(resultado.Errores,
			(&IntegrityError{DocumentoID: firma.DocumentoID, Detalle: "el contenido fue modificado después de la firma"}).Error())
	}

	var firmante models.Usuario
	if err := fs.db.WithContext(ctx).First(&firmante, firma.UsuarioID).Error; err != nil {
		resultado.Errores = append(resultado.Errores, "el firmante no existe")
		return resultado
	}
	if !firmante.Activo {
		resultado.Errores = append(resultado.Errores, "la cuenta del firmante está inactiva")
	}

	pub, err := fs.keyService.PublicKeyFor(ctx, firma.UsuarioID, firma.ClaveVersion)
	if err != nil {
		resultado.Errores = append(resultado.Errores, "no se encontró la clave del firmante")
	} else if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, hash[:], firma.Firma); err != nil {
		resultado.Errores = append(resultado.Errores, "la firma criptográfica no corresponde al firmante")
	}

	if !firma.Vigente(time.Now()) {
		resultado.Errores = append(resultado.Errores, "la firma está fuera de su ventana de vigencia")
	}

	resultado.Valida = len(resultado.Errores) == 0
	return resultado
}

// VerifyDocument sweeps every signature on the document and derives the
// aggregate estado_firma: any failure yields firma_invalida; all passing
// restores firmado; no signatures leaves sin_firmar.
func (fs *FirmaService) VerifyDocument(ctx context.Context, docID string) ([]ResultadoVerificacion, error) {
	var doc models.Documento
	if err := fs.db.WithContext(ctx).First(&doc, "id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entidad: "documento", ID: docID}
		}
		return nil, err
	}

	var firmas []models.FirmaDocumento
	if err := fs.db.WithContext(ctx).Where("documento_id = ?", docID).Order("created_at ASC").Find(&firmas).Error; err != nil {
		return nil, err
	}

	resultados := make([]ResultadoVerificacion, 0, len(firmas))
	todasValidas := true
	for i := range firmas {
		r, err := fs.Verify(ctx, firmas[i].ID)
		if err != nil {
			return nil, err
		}
		if !r.Valida {
			todasValidas = false
		}
		resultados = append(resultados, *r)
	}

	estado := models.FirmaSinFirmar
	if len(firmas) > 0 {
		if todasValidas {
			estado = models.FirmaFirmado
		} else {
			estado = models.FirmaInvalida
		}
	}

	if estado != doc.EstadoFirma {
		if err := fs.db.WithContext(ctx).Model(&models.Documento{}).
			Where("id = ?", docID).
			Update("estado_firma", estado).Error; err != nil {
			return nil, err
		}
		fs.logger.Info("Signature status changed",
			zap.String("doc_id", docID),
			zap.String("estado_firma", string(estado)))
	}

	return resultados, nil
}

func (fs *FirmaService) CountSignatures(ctx context.Context, docID string) (int64, error) {
	var total int64
	err := fs.db.WithContext(ctx).Model(&models.FirmaDocumento{}).
		Where("documento_id = ?", docID).
		Count(&total).Error
	return total, err
}

func (fs *FirmaService) ListSignatures(ctx context.Context, docID string) ([]models.FirmaDocumento, error) {
	var firmas []models.FirmaDocumento
	err := fs.db.WithContext(ctx).
		Where("documento_id = ?", docID).
		Order("created_at ASC").
		Find(&firmas).Error
	return firmas, err
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
