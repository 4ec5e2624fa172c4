package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDocumentoDefaults(t *testing.T) {
	db, ds, _, _, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)

	doc, err := ds.Create(context.Background(), gestor, CamposDocumento{
		Titulo:       "Contrato-001",
		ExpedienteID: exp.ID,
		Soporte:      models.SoporteElectronico,
	})
	require.NoError(t, err)

	assert.Equal(t, models.EstadoBorrador, doc.Estado)
	assert.Equal(t, models.FirmaSinFirmar, doc.EstadoFirma)
	assert.Equal(t, exp.ID, doc.ExpedienteID)
	assert.NotEmpty(t, doc.Codigo)
	assert.Equal(t, gestor.ID, doc.CreadorID)
}

func TestCreateDocumentoValidation(t *testing.T) {
	db, ds, _, _, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)

	_, err := ds.Create(context.Background(), gestor, CamposDocumento{Soporte: "papel"})
	require.Error(t, err)

	verr, ok := err.(*ValidationError)
	require.True(t, ok, "expected ValidationError, got %T", err)
	assert.Contains(t, verr.Fields, "titulo")
	assert.Contains(t, verr.Fields, "expediente_id")
	assert.Contains(t, verr.Fields, "soporte")
}

func TestCreateDocumentoExpedienteInexistente(t *testing.T) {
	db, ds, _, _, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)

	_, err := ds.Create(context.Background(), gestor, CamposDocumento{
		Titulo:       "Doc",
		ExpedienteID: "no-existe",
		Soporte:      models.SoporteFisico,
	})
	require.Error(t, err)

	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "expediente_id")
}

func TestCreateDocumentoSinPermiso(t *testing.T) {
	db, ds, _, _, _ := newTestServices(t)
	consulta := seedUsuario(t, db, "consulta", models.RolConsulta)
	exp, _ := seedExpediente(t, db)

	_, err := ds.Create(context.Background(), consulta, CamposDocumento{
		Titulo:       "Doc",
		ExpedienteID: exp.ID,
		Soporte:      models.SoporteFisico,
	})
	var perr *PermissionError
	require.ErrorAs(t, err, &perr)
}

func TestTransitionGraph(t *testing.T) {
	db, ds, _, _, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)

	ctx := context.Background()
	doc, err := ds.Create(ctx, gestor, CamposDocumento{
		Titulo: "Doc", ExpedienteID: exp.ID, Soporte: models.SoporteElectronico,
	})
	require.NoError(t, err)

	// one legal step at a time along the whole chain
	cadena := []models.EstadoDocumento{
		models.EstadoPendiente,
		models.EstadoAprobado,
		models.EstadoActivo,
		models.EstadoArchivado,
	}
	lock := doc.LockVersion
	for _, destino := range cadena {
		doc, err = ds.Transition(ctx, gestor, doc.ID, destino, lock)
		require.NoError(t, err, "transition to %s", destino)
		assert.Equal(t, destino, doc.Estado)
		lock = doc.LockVersion
	}
}

func TestTransitionIlegal(t *testing.T) {
	db, ds, _, _, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)

	ctx := context.Background()
	doc, err := ds.Create(ctx, gestor, CamposDocumento{
		Titulo: "Doc", ExpedienteID: exp.ID, Soporte: models.SoporteElectronico,
	})
	require.NoError(t, err)

	// borrador -> activo skips two states
	_, err = ds.Transition(ctx, gestor, doc.ID, models.EstadoActivo, doc.LockVersion)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, models.EstadoBorrador, terr.Desde)
	assert.Equal(t, models.EstadoActivo, terr.Hacia)

	// the failed attempt must not have changed anything
	recargado, err := ds.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EstadoBorrador, recargado.Estado)
	assert.Equal(t, doc.LockVersion, recargado.LockVersion)
}

func TestTransitionObsoletoDesdeCualquierEstado(t *testing.T) {
	db, ds, _, _, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)

	ctx := context.Background()
	doc, err := ds.Create(ctx, gestor, CamposDocumento{
		Titulo: "Doc", ExpedienteID: exp.ID, Soporte: models.SoporteElectronico,
	})
	require.NoError(t, err)

	doc, err = ds.Transition(ctx, gestor, doc.ID, models.EstadoObsoleto, doc.LockVersion)
	require.NoError(t, err)
	assert.Equal(t, models.EstadoObsoleto, doc.Estado)

	// obsoleto is terminal, even for itself
	_, err = ds.Transition(ctx, gestor, doc.ID, models.EstadoObsoleto, doc.LockVersion)
	var terr *InvalidTransitionError
	require.ErrorAs(t, err, &terr)
}

func TestTransitionLockVersionConflict(t *testing.T) {
	db, ds, _, _, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)

	ctx := context.Background()
	doc, err := ds.Create(ctx, gestor, CamposDocumento{
		Titulo: "Doc", ExpedienteID: exp.ID, Soporte: models.SoporteElectronico,
	})
	require.NoError(t, err)

	_, err = ds.Transition(ctx, gestor, doc.ID, models.EstadoPendiente, doc.LockVersion)
	require.NoError(t, err)

	// second writer still holds the old lock version
	_, err = ds.Transition(ctx, gestor, doc.ID, models.EstadoPendiente, doc.LockVersion)
	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
}

func TestBulkUploadPerFileIsolation(t *testing.T) {
	db, ds, _, _, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)

	archivos := make([]ArchivoCarga, 5)
	for i := range archivos {
		archivos[i] = ArchivoCarga{
			Nombre:    fmt.Sprintf("archivo-%d.pdf", i+1),
			Contenido: []byte("contenido de prueba"),
		}
	}
	// file #3 exceeds the per-file limit
	archivos[2].Contenido = make([]byte, testMaxFileBytes+1)

	resultado, err := ds.BulkUpload(context.Background(), gestor, exp.ID, archivos)
	require.NoError(t, err)

	assert.Equal(t, 4, resultado.Exitosos)
	assert.Equal(t, 1, resultado.Errores)
	require.Len(t, resultado.Detalle, 5)

	fallo := resultado.Detalle[2]
	assert.True(t, fallo.Error)
	assert.Equal(t, "archivo-3.pdf", fallo.Archivo)
	assert.Contains(t, fallo.Mensaje, "límite")

	// each successful file produced a document with an initial version
	var docs int64
	require.NoError(t, db.Model(&models.Documento{}).Where("expediente_id = ?", exp.ID).Count(&docs).Error)
	assert.EqualValues(t, 4, docs)
	var versiones int64
	require.NoError(t, db.Model(&models.VersionDocumento{}).Count(&versiones).Error)
	assert.EqualValues(t, 4, versiones)
}

func TestListPagination(t *testing.T) {
	db, ds, _, _, _ := newTestServices(t)
	gestor := seedUsuario(t, db, "gestor", models.RolGestor)
	exp, _ := seedExpediente(t, db)

	ctx := context.Background()
	for i := 0; i < 25; i++ {
		_, err := ds.Create(ctx, gestor, CamposDocumento{
			Titulo:       fmt.Sprintf("Doc %02d", i),
			ExpedienteID: exp.ID,
			Soporte:      models.SoporteElectronico,
		})
		require.NoError(t, err)
	}

	pagina, err := ds.List(ctx, FiltroDocumentos{ExpedienteID: exp.ID, Page: 2, PerPage: 10})
	require.NoError(t, err)

	assert.EqualValues(t, 25, pagina.Total)
	assert.Len(t, pagina.Items, 10)
	assert.Equal(t, 11, pagina.From)
	assert.Equal(t, 20, pagina.To)
}
