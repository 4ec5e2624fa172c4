package models

import (
	"time"

	"gorm.io/datatypes"
)

type SoporteDocumental string

const (
	SoporteFisico      SoporteDocumental = "fisico"
	SoporteElectronico SoporteDocumental = "electronico"
	SoporteHibrido     SoporteDocumental = "hibrido"
)

func (s SoporteDocumental) Valido() bool {
	switch s {
	case SoporteFisico, SoporteElectronico, SoporteHibrido:
		return true
	}
	return false
}

type EstadoDocumento string

const (
	EstadoBorrador  EstadoDocumento = "borrador"
	EstadoPendiente EstadoDocumento = "pendiente"
	EstadoAprobado  EstadoDocumento = "aprobado"
	EstadoActivo    EstadoDocumento = "activo"
	EstadoArchivado EstadoDocumento = "archivado"
	EstadoObsoleto  EstadoDocumento = "obsoleto"
)

type EstadoFirma string

const (
	FirmaSinFirmar EstadoFirma = "sin_firmar"
	FirmaFirmado   EstadoFirma = "firmado"
	FirmaInvalida  EstadoFirma = "firma_invalida"
)

// Documento is the metadata record for a managed document. File content
// lives in VersionDocumento rows; a Documento with no versions is legal
// (physical-support records carry no electronic content).
type Documento struct {
	ID               string            `gorm:"primaryKey"`
	Codigo           string            `gorm:"uniqueIndex;not null"`
	Titulo           string            `gorm:"not null"`
	Descripcion      string
	ExpedienteID     string            `gorm:"index;not null"`
	Tipologia        string
	Soporte          SoporteDocumental `gorm:"not null"`
	Confidencialidad string            `gorm:"not null;default:'interna'"`
	Estado           EstadoDocumento   `gorm:"not null;default:'borrador'"`
	EstadoFirma      EstadoFirma       `gorm:"not null;default:'sin_firmar'"`
	CreadorID        uint              `gorm:"index"`
	ModificadorID    uint
	// LockVersion backs the optimistic-concurrency check on updates and
	// state transitions.
	LockVersion int            `gorm:"not null;default:0"`
	Metadata    datatypes.JSON `gorm:"type:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Versiones []VersionDocumento `gorm:"foreignKey:DocumentoID"`
	Firmas    []FirmaDocumento   `gorm:"foreignKey:DocumentoID"`
}
