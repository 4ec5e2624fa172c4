package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func postJSON(c *gin.Context, body string) {
	c.Request = httptest.NewRequest(http.MethodPost, "/documentos/d1/firmas", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
}

func TestSignCuerpoMalformado(t *testing.T) {
	h := NewFirmaHandler(nil, nil, zap.NewNop())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	postJSON(c, `{"motivo": `)

	h.Sign(c)

	// a broken body is a bad request, not a missing field
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Body.String(), "motivo")
}

func TestSignSinConfirmacion(t *testing.T) {
	h := NewFirmaHandler(nil, nil, zap.NewNop())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	postJSON(c, `{"motivo": "aprobación"}`)

	h.Sign(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "confirmado")
}
