package domain

import (
	"errors"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInsufficientStock = errors.New("stock insuficiente")
)

// ValidationError entrada inválida con el detalle por campo. errors.Is(err, ErrInvalidInput) es true.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError construye el error con un único campo.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, m := range e.Fields {
		parts = append(parts, f+": "+m)
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Tipos de recurso reservable.
const (
	ResourceInsumo      = "insumo"
	ResourceHerramienta = "herramienta"
)

// Violation una solicitud que no se puede atender con el stock actual (o mal formada).
type Violation struct {
	Resource   string `json:"recurso"`
	ResourceID int64  `json:"recurso_id"`
	Index      int    `json:"indice"`
	Message    string `json:"mensaje"`
}

// StockError lista completa de violaciones de una reserva. errors.Is(err, ErrInsufficientStock) es true.
type StockError struct {
	Violations []Violation
}

func (e *StockError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return ErrInsufficientStock.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
