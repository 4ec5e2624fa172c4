package models

import "time"

// Expediente groups related documents under one classification node.
type Expediente struct {
	ID        string `gorm:"primaryKey"`
	Codigo    string `gorm:"uniqueIndex;not null"`
	Titulo    string `gorm:"not null"`
	NodoCCDID uint   `gorm:"index;not null"`
	Estado    string `gorm:"not null;default:'abierto'"` // "abierto", "cerrado"
	CreatedAt time.Time
	UpdatedAt time.Time

	Documentos []Documento `gorm:"foreignKey:ExpedienteID"`
}
