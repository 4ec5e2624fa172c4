package models

import "time"

// VersionDocumento is an immutable content snapshot. Rows are append-only:
// nothing in the service layer updates or deletes one after creation.
type VersionDocumento struct {
	ID            uint   `gorm:"primaryKey"`
	DocumentoID   string `gorm:"index:idx_version_doc_numero,unique;not null"`
	Numero        int    `gorm:"index:idx_version_doc_numero,unique;not null"`
	Etiqueta      string `gorm:"not null"`
	Contenido     []byte `gorm:"type:bytea"`
	HashContenido string `gorm:"not null"`
	Tamano        int64
	NotasCambio   string
	AutorID       uint `gorm:"index"`
	CreatedAt     time.Time
}
