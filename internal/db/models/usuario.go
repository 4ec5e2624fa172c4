package models

import "time"

type RolUsuario string

const (
	RolAdmin    RolUsuario = "admin"
	RolGestor   RolUsuario = "gestor"
	RolConsulta RolUsuario = "consulta"
)

// PuedeFirmar reports whether the role is allowed to sign documents.
func (r RolUsuario) PuedeFirmar() bool {
	return r == RolAdmin || r == RolGestor
}

// PuedeEscribir reports whether the role may create or modify records.
func (r RolUsuario) PuedeEscribir() bool {
	return r == RolAdmin || r == RolGestor
}

type Usuario struct {
	ID             uint       `gorm:"primaryKey"`
	Username       string     `gorm:"unique;not null"`
	Email          string     `gorm:"unique;not null"`
	PasswordHash   string     `gorm:"not null"`
	Rol            RolUsuario `gorm:"not null;default:'consulta'"`
	Nombre         string
	Apellido       string
	Dependencia    string
	Activo         bool `gorm:"not null;default:true"`
	LastLogin      time.Time
	FailedAttempts int `gorm:"not null;default:0"`
	LockoutUntil   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Claves []ClaveUsuario `gorm:"foreignKey:UsuarioID"`
}

// ClaveUsuario holds a user's PEM-encoded RSA signing key. Estado moves to
// "revocada" on rotation; signatures made under a revoked key stay verifiable
// because the public half is derivable from the stored PEM.
type ClaveUsuario struct {
	ID         uint   `gorm:"primaryKey"`
	UsuarioID  uint   `gorm:"index;not null"`
	ClavePEM   []byte `gorm:"type:bytea;not null"`
	Version    int    `gorm:"not null;default:1"`
	Estado     string `gorm:"not null;default:'activa'"` // "activa", "revocada"
	CreatedAt  time.Time
	LastAccess time.Time
}
