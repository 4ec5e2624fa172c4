package services

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/pkg/metrics"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testMaxFileBytes = 2 << 20

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.New().String()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Usuario{},
		&models.ClaveUsuario{},
		&models.NodoCCD{},
		&models.EntradaTRD{},
		&models.Expediente{},
		&models.Documento{},
		&models.VersionDocumento{},
		&models.FirmaDocumento{},
	)
	require.NoError(t, err)

	return db
}

func seedUsuario(t *testing.T, db *gorm.DB, username string, rol models.RolUsuario) *models.Usuario {
	t.Helper()

	usuario := &models.Usuario{
		Username:     username,
		Email:        username + "@test.local",
		PasswordHash: "x",
		Rol:          rol,
		Activo:       true,
	}
	require.NoError(t, db.Create(usuario).Error)
	seedClave(t, db, usuario.ID, 1)

	return usuario
}

func seedClave(t *testing.T, db *gorm.DB, usuarioID uint, version int) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
	require.NoError(t, db.Create(&models.ClaveUsuario{
		UsuarioID: usuarioID,
		ClavePEM:  privPEM,
		Version:   version,
		Estado:    "activa",
	}).Error)
}

// seedExpediente creates a fondo>serie chain and one case file under the
// serie, returning the expediente and the serie node.
func seedExpediente(t *testing.T, db *gorm.DB) (*models.Expediente, *models.NodoCCD) {
	t.Helper()

	fondo := &models.NodoCCD{Nivel: models.NivelFondo, Codigo: "F-" + uuid.New().String()[:8], Nombre: "Fondo", Activo: true}
	require.NoError(t, db.Create(fondo).Error)
	serie := &models.NodoCCD{PadreID: &fondo.ID, Nivel: models.NivelSerie, Codigo: "S-" + uuid.New().String()[:8], Nombre: "Serie", Activo: true}
	require.NoError(t, db.Create(serie).Error)

	exp := &models.Expediente{
		ID:        uuid.New().String(),
		Codigo:    fmt.Sprintf("EXP-%s", uuid.New().String()[:8]),
		Titulo:    "Expediente de prueba",
		NodoCCDID: serie.ID,
		Estado:    "abierto",
	}
	require.NoError(t, db.Create(exp).Error)

	return exp, serie
}

func newTestServices(t *testing.T) (*gorm.DB, *DocumentoService, *VersionService, *FirmaService, *RetencionService) {
	t.Helper()

	db := setupTestDB(t)
	log := zap.NewNop()
	mc := metrics.NewMetricsCollector()

	ks := NewKeyService(db, time.Hour, log, mc)
	t.Cleanup(ks.Close)

	ds := NewDocumentoService(db, testMaxFileBytes, log, mc)
	vs := NewVersionService(db, log, mc)
	fs := NewFirmaService(db, ks, 5*365*24*time.Hour, log, mc)
	rs := NewRetencionService(db, log, mc)

	return db, ds, vs, fs, rs
}
