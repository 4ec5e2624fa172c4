package services

import (
	"context"
	"testing"

	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/importer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetRetentionValidation(t *testing.T) {
	db, _, _, _, rs := newTestServices(t)
	admin := seedUsuario(t, db, "admin", models.RolAdmin)
	_, serie := seedExpediente(t, db)

	ctx := context.Background()

	_, err := rs.SetRetention(ctx, admin, serie.ID, CamposRetencion{
		RetencionGestion:   -1,
		RetencionCentral:   -2,
		Disposicion:        "X",
		SoporteFisico:      false,
		SoporteElectronico: false,
	})
	require.Error(t, err)

	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "retencion_gestion")
	assert.Contains(t, verr.Fields, "retencion_central")
	assert.Contains(t, verr.Fields, "disposicion")
	assert.Contains(t, verr.Fields, "soportes")

	// nothing persisted after the failed validation
	var total int64
	require.NoError(t, db.Model(&models.EntradaTRD{}).Count(&total).Error)
	assert.Zero(t, total)
}

func TestSetRetentionUpsertReemplaza(t *testing.T) {
	db, _, _, _, rs := newTestServices(t)
	admin := seedUsuario(t, db, "admin", models.RolAdmin)
	_, serie := seedExpediente(t, db)

	ctx := context.Background()

	_, err := rs.SetRetention(ctx, admin, serie.ID, CamposRetencion{
		RetencionGestion: 2, RetencionCentral: 8,
		Disposicion: models.DisposicionConservacionTotal, SoporteFisico: true,
	})
	require.NoError(t, err)

	_, err = rs.SetRetention(ctx, admin, serie.ID, CamposRetencion{
		RetencionGestion: 5, RetencionCentral: 10,
		Disposicion: models.DisposicionSeleccion, SoporteElectronico: true,
	})
	require.NoError(t, err)

	// replacement, not accumulation
	var total int64
	require.NoError(t, db.Model(&models.EntradaTRD{}).Where("nodo_ccd_id = ?", serie.ID).Count(&total).Error)
	assert.EqualValues(t, 1, total)

	entrada, err := rs.GetRetention(ctx, serie.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, entrada.RetencionGestion)
	assert.Equal(t, models.DisposicionSeleccion, entrada.Disposicion)
}

func TestSetRetentionRequiereAdmin(t *testing.T) {
	db, _, _, _, rs := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	_, serie := seedExpediente(t, db)

	_, err := rs.SetRetention(context.Background(), gestor, serie.ID, CamposRetencion{
		RetencionGestion: 1, RetencionCentral: 1,
		Disposicion: models.DisposicionEliminacion, SoporteFisico: true,
	})
	var perr *PermissionError
	require.ErrorAs(t, err, &perr)
}

func TestRemoveRetention(t *testing.T) {
	db, _, _, _, rs := newTestServices(t)
	admin := seedUsuario(t, db, "admin", models.RolAdmin)
	_, serie := seedExpediente(t, db)

	ctx := context.Background()

	_, err := rs.SetRetention(ctx, admin, serie.ID, CamposRetencion{
		RetencionGestion: 2, RetencionCentral: 8,
		Disposicion: models.DisposicionConservacionTotal, SoporteFisico: true,
	})
	require.NoError(t, err)

	require.NoError(t, rs.RemoveRetention(ctx, admin, serie.ID))

	_, err = rs.GetRetention(ctx, serie.ID)
	var nerr *NotFoundError
	require.ErrorAs(t, err, &nerr)

	// removing twice reports not found
	err = rs.RemoveRetention(ctx, admin, serie.ID)
	require.ErrorAs(t, err, &nerr)
}

func TestResolveForDocumentHeredaDelAncestro(t *testing.T) {
	db, ds, _, _, rs := newTestServices(t)
	admin := seedUsuario(t, db, "admin", models.RolAdmin)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, serie := seedExpediente(t, db)
	doc := crearDocumento(t, ds, gestor, exp.ID)

	ctx := context.Background()

	// no entry anywhere on the chain
	_, err := rs.ResolveForDocument(ctx, doc.ID)
	var nerr *NotFoundError
	require.ErrorAs(t, err, &nerr)

	// entry on the parent fondo: the serie inherits it
	var fondo models.NodoCCD
	require.NoError(t, db.First(&fondo, *serie.PadreID).Error)

	_, err = rs.SetRetention(ctx, admin, fondo.ID, CamposRetencion{
		RetencionGestion: 3, RetencionCentral: 7,
		Disposicion: models.DisposicionDigitalizacion, SoporteElectronico: true,
	})
	require.NoError(t, err)

	heredada, err := rs.ResolveForDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, fondo.ID, heredada.NodoCCDID)

	// a direct entry on the serie wins over the ancestor's
	_, err = rs.SetRetention(ctx, admin, serie.ID, CamposRetencion{
		RetencionGestion: 1, RetencionCentral: 4,
		Disposicion: models.DisposicionConservacionTotal, SoporteFisico: true,
	})
	require.NoError(t, err)

	directa, err := rs.ResolveForDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, serie.ID, directa.NodoCCDID)
}

func TestImportRowsErroresPorFila(t *testing.T) {
	db, _, _, _, rs := newTestServices(t)
	admin := seedUsuario(t, db, "admin", models.RolAdmin)
	_, serie := seedExpediente(t, db)

	filas := []importer.FilaTRD{
		{Fila: 1, CodigoNodo: serie.Codigo, RetencionGestion: 2, RetencionCentral: 8, Disposicion: "CT", SoporteFisico: true},
		{Fila: 2, CodigoNodo: "no-existe", RetencionGestion: 1, RetencionCentral: 1, Disposicion: "E", SoporteFisico: true},
		{Fila: 3, CodigoNodo: serie.Codigo, RetencionGestion: 1, RetencionCentral: 1, Disposicion: "ZZ", SoporteFisico: true},
	}

	resultado, err := rs.ImportRows(context.Background(), admin, filas)
	require.NoError(t, err)

	assert.Equal(t, 1, resultado.Exitosos)
	assert.Equal(t, 2, resultado.Errores)
	require.Len(t, resultado.Detalle, 2)
	assert.Equal(t, 2, resultado.Detalle[0].Fila)
	assert.Equal(t, 3, resultado.Detalle[1].Fila)
}
