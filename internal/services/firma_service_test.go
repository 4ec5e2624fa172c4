package services

import (
	"context"
	"testing"
	"time"

	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignThenVerifyValida(t *testing.T) {
	db, ds, vs, fs, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)
	doc := crearDocumento(t, ds, gestor, exp.ID)

	ctx := context.Background()
	payload := make([]byte, 1024)
	_, err := vs.AddVersion(ctx, gestor, doc.ID, payload, "1.0")
	require.NoError(t, err)

	firma, err := fs.Sign(ctx, gestor, doc.ID, "Revisión inicial", models.FirmaElectronica)
	require.NoError(t, err)
	assert.Equal(t, "Revisión inicial", firma.Motivo)
	assert.NotEmpty(t, firma.HashContenido)
	assert.NotEmpty(t, firma.Firma)

	total, err := fs.CountSignatures(ctx, doc.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	recargado, err := ds.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FirmaFirmado, recargado.EstadoFirma)

	resultado, err := fs.Verify(ctx, firma.ID)
	require.NoError(t, err)
	assert.True(t, resultado.Valida)
	assert.Empty(t, resultado.Errores)
}

func TestVerifyDetectaContenidoAlterado(t *testing.T) {
	db, ds, vs, fs, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)
	doc := crearDocumento(t, ds, gestor, exp.ID)

	ctx := context.Background()
	version, err := vs.AddVersion(ctx, gestor, doc.ID, []byte("contenido original"), "1.0")
	require.NoError(t, err)

	firma, err := fs.Sign(ctx, gestor, doc.ID, "Aprobación", models.FirmaElectronica)
	require.NoError(t, err)

	// tamper with the stored bytes behind the service's back
	require.NoError(t, db.Model(&models.VersionDocumento{}).
		Where("id = ?", version.ID).
		Update("contenido", []byte("contenido alterado")).Error)

	resultado, err := fs.Verify(ctx, firma.ID)
	require.NoError(t, err)
	assert.False(t, resultado.Valida)
	assert.NotEmpty(t, resultado.Errores)
}

func TestSignMotivoObligatorio(t *testing.T) {
	db, ds, vs, fs, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)
	doc := crearDocumento(t, ds, gestor, exp.ID)

	ctx := context.Background()
	_, err := vs.AddVersion(ctx, gestor, doc.ID, []byte("x"), "")
	require.NoError(t, err)

	_, err = fs.Sign(ctx, gestor, doc.ID, "   ", models.FirmaElectronica)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "motivo")
}

func TestSignSinVersiones(t *testing.T) {
	db, ds, _, fs, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)
	doc := crearDocumento(t, ds, gestor, exp.ID)

	_, err := fs.Sign(context.Background(), gestor, doc.ID, "motivo", models.FirmaElectronica)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "version")
}

func TestSignDuplicada(t *testing.T) {
	db, ds, vs, fs, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)
	doc := crearDocumento(t, ds, gestor, exp.ID)

	ctx := context.Background()
	_, err := vs.AddVersion(ctx, gestor, doc.ID, []byte("x"), "")
	require.NoError(t, err)

	_, err = fs.Sign(ctx, gestor, doc.ID, "primera", models.FirmaElectronica)
	require.NoError(t, err)

	_, err = fs.Sign(ctx, gestor, doc.ID, "segunda", models.FirmaElectronica)
	var derr *DuplicateSignatureError
	require.ErrorAs(t, err, &derr)

	// the failed second attempt must not add a row
	total, err := fs.CountSignatures(ctx, doc.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestSignRolConsultaSinPermiso(t *testing.T) {
	db, ds, vs, fs, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	consulta := seedUsuario(t, db, "consulta", models.RolConsulta)
	exp, _ := seedExpediente(t, db)
	doc := crearDocumento(t, ds, gestor, exp.ID)

	ctx := context.Background()
	_, err := vs.AddVersion(ctx, gestor, doc.ID, []byte("x"), "")
	require.NoError(t, err)

	_, err = fs.Sign(ctx, consulta, doc.ID, "motivo", models.FirmaElectronica)
	var perr *PermissionError
	require.ErrorAs(t, err, &perr)
}

func TestVerifyDocumentActualizaEstadoFirma(t *testing.T) {
	db, ds, vs, fs, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	admin := seedUsuario(t, db, "admin", models.RolAdmin)
	exp, _ := seedExpediente(t, db)
	doc := crearDocumento(t, ds, gestor, exp.ID)

	ctx := context.Background()
	version, err := vs.AddVersion(ctx, gestor, doc.ID, []byte("contenido"), "")
	require.NoError(t, err)

	_, err = fs.Sign(ctx, gestor, doc.ID, "gestor firma", models.FirmaElectronica)
	require.NoError(t, err)
	_, err = fs.Sign(ctx, admin, doc.ID, "admin firma", models.FirmaElectronica)
	require.NoError(t, err)

	// all valid: stays firmado
	resultados, err := fs.VerifyDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, resultados, 2)
	recargado, err := ds.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FirmaFirmado, recargado.EstadoFirma)

	// tamper: sweep must flip the aggregate to firma_invalida
	require.NoError(t, db.Model(&models.VersionDocumento{}).
		Where("id = ?", version.ID).
		Update("contenido", []byte("alterado")).Error)

	resultados, err = fs.VerifyDocument(ctx, doc.ID)
	require.NoError(t, err)
	for _, r := range resultados {
		assert.False(t, r.Valida)
	}
	recargado, err = ds.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FirmaInvalida, recargado.EstadoFirma)

	// restore: a passing sweep recovers firmado
	require.NoError(t, db.Model(&models.VersionDocumento{}).
		Where("id = ?", version.ID).
		Update("contenido", []byte("contenido")).Error)

	_, err = fs.VerifyDocument(ctx, doc.ID)
	require.NoError(t, err)
	recargado, err = ds.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FirmaFirmado, recargado.EstadoFirma)
}

func TestVerifyTrasRotacionDeClave(t *testing.T) {
	db, ds, vs, fs, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)
	doc := crearDocumento(t, ds, gestor, exp.ID)

	ctx := context.Background()
	_, err := vs.AddVersion(ctx, gestor, doc.ID, []byte("contenido"), "")
	require.NoError(t, err)

	firma, err := fs.Sign(ctx, gestor, doc.ID, "antes de rotar", models.FirmaElectronica)
	require.NoError(t, err)
	assert.Equal(t, 1, firma.ClaveVersion)

	// rotate: revoke the old pair, provision the next version
	require.NoError(t, fs.keyService.RevokeKey(ctx, gestor.ID))
	seedClave(t, db, gestor.ID, 2)

	// the old signature pins its key pair and stays valid
	resultado, err := fs.Verify(ctx, firma.ID)
	require.NoError(t, err)
	assert.True(t, resultado.Valida)

	// new signatures pick up the rotated key
	doc2 := crearDocumento(t, ds, gestor, exp.ID)
	_, err = vs.AddVersion(ctx, gestor, doc2.ID, []byte("otro contenido"), "")
	require.NoError(t, err)
	firma2, err := fs.Sign(ctx, gestor, doc2.ID, "después de rotar", models.FirmaElectronica)
	require.NoError(t, err)
	assert.Equal(t, 2, firma2.ClaveVersion)
}

func TestFirmaUnicaPorDocumentoYUsuario(t *testing.T) {
	db, ds, vs, fs, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)
	doc := crearDocumento(t, ds, gestor, exp.ID)

	ctx := context.Background()
	version, err := vs.AddVersion(ctx, gestor, doc.ID, []byte("x"), "")
	require.NoError(t, err)

	firma, err := fs.Sign(ctx, gestor, doc.ID, "primera", models.FirmaElectronica)
	require.NoError(t, err)

	// even a write that skips the service hits the unique index
	dup := models.FirmaDocumento{
		DocumentoID:   doc.ID,
		VersionID:     version.ID,
		UsuarioID:     gestor.ID,
		Motivo:        "directa",
		Tipo:          models.FirmaElectronica,
		HashContenido: firma.HashContenido,
		Firma:         firma.Firma,
		ClaveVersion:  1,
		VigenteHasta:  time.Now().Add(time.Hour),
	}
	require.Error(t, db.Create(&dup).Error)
}

func TestVerifyNoMutaCamposInmutables(t *testing.T) {
	db, ds, vs, fs, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)
	doc := crearDocumento(t, ds, gestor, exp.ID)

	ctx := context.Background()
	_, err := vs.AddVersion(ctx, gestor, doc.ID, []byte("x"), "")
	require.NoError(t, err)

	firma, err := fs.Sign(ctx, gestor, doc.ID, "motivo", models.FirmaElectronica)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := fs.Verify(ctx, firma.ID)
		require.NoError(t, err)
	}

	var recargada models.FirmaDocumento
	require.NoError(t, db.First(&recargada, firma.ID).Error)
	assert.Equal(t, firma.Motivo, recargada.Motivo)
	assert.Equal(t, firma.HashContenido, recargada.HashContenido)
	assert.Equal(t, firma.Firma, recargada.Firma)
	assert.True(t, firma.CreatedAt.Equal(recargada.CreatedAt))
}

func TestEscenarioCompletoContrato(t *testing.T) {
	db, ds, vs, fs, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)

	ctx := context.Background()

	doc, err := ds.Create(ctx, gestor, CamposDocumento{
		Titulo:       "Contrato-001",
		ExpedienteID: exp.ID,
		Soporte:      models.SoporteElectronico,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EstadoBorrador, doc.Estado)

	payload := make([]byte, 1024)
	version, err := vs.AddVersion(ctx, gestor, doc.ID, payload, "Versión 1.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0", version.Etiqueta)

	firma, err := fs.Sign(ctx, gestor, doc.ID, "Revisión inicial", models.FirmaElectronica)
	require.NoError(t, err)

	total, err := fs.CountSignatures(ctx, doc.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	recargado, err := ds.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FirmaFirmado, recargado.EstadoFirma)

	require.NoError(t, db.Model(&models.VersionDocumento{}).
		Where("id = ?", version.ID).
		Update("contenido", append(payload, 0xFF)).Error)

	resultado, err := fs.Verify(ctx, firma.ID)
	require.NoError(t, err)
	assert.False(t, resultado.Valida)
	assert.NotEmpty(t, resultado.Errores)
}
