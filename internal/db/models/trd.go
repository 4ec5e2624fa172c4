package models

import "time"

type DisposicionFinal string

const (
	DisposicionConservacionTotal DisposicionFinal = "CT"
	DisposicionEliminacion       DisposicionFinal = "E"
	DisposicionDigitalizacion    DisposicionFinal = "D"
	DisposicionSeleccion         DisposicionFinal = "S"
	DisposicionMicrofilmacion    DisposicionFinal = "M"
)

func (d DisposicionFinal) Valida() bool {
	switch d {
	case DisposicionConservacionTotal, DisposicionEliminacion,
		DisposicionDigitalizacion, DisposicionSeleccion, DisposicionMicrofilmacion:
		return true
	}
	return false
}

// EntradaTRD is the retention policy for one classification node. The
// unique index on NodoCCDID keeps at most one active entry per node;
// SetRetention replaces rather than accumulates.
type EntradaTRD struct {
	ID                 uint             `gorm:"primaryKey"`
	NodoCCDID          uint             `gorm:"uniqueIndex;not null"`
	RetencionGestion   int              `gorm:"not null"` // years in archivo de gestión
	RetencionCentral   int              `gorm:"not null"` // years in archivo central
	Disposicion        DisposicionFinal `gorm:"not null"`
	SoporteFisico      bool             `gorm:"not null;default:false"`
	SoporteElectronico bool             `gorm:"not null;default:false"`
	Procedimiento      string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
