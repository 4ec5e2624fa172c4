package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jhanleyder08/ArchiveyCloud-sub006/internal/db/models"
)

var (
	ErrInvalidSession = errors.New("invalid session token")
	ErrKeyNotFound    = errors.New("no active signing key for user")
)

// ValidationError carries one message per offending field so the caller can
// render field-level feedback instead of a single opaque string.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields[field] = message
	return e
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// InvalidTransitionError reports an illegal document lifecycle edge.
type InvalidTransitionError struct {
	Desde models.EstadoDocumento
	Hacia models.EstadoDocumento
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q", e.Desde, e.Hacia)
}

type PermissionError struct {
	Accion string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied for action %q", e.Accion)
}

type DuplicateSignatureError struct {
	DocumentoID string
	UsuarioID   uint
}

func (e *DuplicateSignatureError) Error() string {
	return fmt.Sprintf("document %s already signed by user %d", e.DocumentoID, e.UsuarioID)
}

type NotFoundError struct {
	Entidad string
	ID      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entidad, e.ID)
}

// IntegrityError reports a content hash mismatch detected during signature
// verification.
type IntegrityError struct {
	DocumentoID string
	Detalle     string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for document %s: %s", e.DocumentoID, e.Detalle)
}

// ConflictError reports a stale optimistic-lock version on a concurrent
// edit. Esperada is what the row holds now, Recibida what the caller sent.
type ConflictError struct {
	DocumentoID string
	Esperada    int
	Recibida    int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("document %s was modified concurrently (lock version %d, got %d)",
		e.DocumentoID, e.Esperada, e.Recibida)
}
