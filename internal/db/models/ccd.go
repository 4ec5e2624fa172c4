package models

import "time"

type NivelCCD string

const (
	NivelFondo      NivelCCD = "fondo"
	NivelSeccion    NivelCCD = "seccion"
	NivelSubseccion NivelCCD = "subseccion"
	NivelSerie      NivelCCD = "serie"
	NivelSubserie   NivelCCD = "subserie"
)

// NodoCCD is one node of the hierarchical classification chart. PadreID is
// nil for root (fondo) nodes.
type NodoCCD struct {
	ID        uint     `gorm:"primaryKey"`
	PadreID   *uint    `gorm:"index"`
	Nivel     NivelCCD `gorm:"not null"`
	Codigo    string   `gorm:"uniqueIndex;not null"`
	Nombre    string   `gorm:"not null"`
	Activo    bool     `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
