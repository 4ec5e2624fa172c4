package models

import (
	"time"

	"gorm.io/datatypes"
)

type TipoFirma string

const (
	FirmaElectronica TipoFirma = "electronica"
	FirmaDigital     TipoFirma = "digital"
)

// FirmaDocumento is a signing attestation over one version of a document.
// Motivo, HashContenido, Firma and CreatedAt are immutable once written;
// only the verification snapshot fields (Valida, Errores,
// UltimaVerificacion) change, and only through re-verification. The
// composite unique index holds one signature per user per document.
type FirmaDocumento struct {
	ID            uint      `gorm:"primaryKey"`
	DocumentoID   string    `gorm:"not null;uniqueIndex:idx_firma_doc_usuario"`
	VersionID     uint      `gorm:"index;not null"`
	UsuarioID     uint      `gorm:"not null;uniqueIndex:idx_firma_doc_usuario"`
	Motivo        string    `gorm:"not null"`
	Tipo          TipoFirma `gorm:"not null;default:'electronica'"`
	HashContenido string    `gorm:"not null"`
	Firma         []byte    `gorm:"type:bytea;not null"`
	// ClaveVersion pins the signer key pair used, so verification keeps
	// working after key rotation.
	ClaveVersion  int       `gorm:"not null;default:1"`
	VigenteHasta  time.Time `gorm:"not null"`
	CreatedAt     time.Time

	Valida             bool
	Errores            datatypes.JSON `gorm:"type:json"`
	UltimaVerificacion *time.Time
}

// Vigente reports whether the signature's validity window covers t.
func (f *FirmaDocumento) Vigente(t time.Time) bool {
	return !t.After(f.VigenteHasta)
}
