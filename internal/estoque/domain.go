// Package estoque implements the inventory core: product catalogue,
// sequential code allocation, the entrada/saída movement ledger and the
// group registry.
package estoque

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementEntrada represents an inbound movement.
	MovementEntrada MovementType = "entrada"
	// MovementSaida represents an outbound movement.
	MovementSaida MovementType = "saida"
)

// Valid reports whether the movement type is one of the supported kinds.
func (t MovementType) Valid() bool {
	return t == MovementEntrada || t == MovementSaida
}

// Product models a row of the estoque table.
type Product struct {
	ID               string    `json:"id"`
	Codigo           int64     `json:"codigo"`
	CodigoFornecedor string    `json:"codigo_fornecedor"`
	Marca            string    `json:"marca"`
	Descricao        string    `json:"descricao"`
	NCM              string    `json:"ncm,omitempty"`
	Unidade          string    `json:"unidade"`
	Quantidade       int64     `json:"quantidade"`
	ValorUnitario    float64   `json:"valor_unitario"`
	GrupoCodigo      int64     `json:"grupo_codigo"`
	GrupoNome        string    `json:"grupo_nome"`
	Timestamp        time.Time `json:"timestamp"`
}

// Movement is one append-only ledger entry. Codigo, Marca and
// CodigoFornecedor snapshot the product identity at the time of the
// movement so the history stays readable after product edits.
type Movement struct {
	ID               string       `json:"id"`
	ProductID        string       `json:"produto_id"`
	Tipo             MovementType `json:"tipo"`
	Quantidade       int64        `json:"quantidade"`
	Codigo           int64        `json:"codigo"`
	Marca            string       `json:"marca"`
	CodigoFornecedor string       `json:"codigo_fornecedor"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Group is a named product category keyed by a coarse numeric code.
type Group struct {
	Codigo int64  `json:"codigo"`
	Nome   string `json:"nome"`
}

// ErrNotFound indicates an unknown product id.
var ErrNotFound = errors.New("estoque: product not found")

// ErrGroupNotFound indicates an unknown group code or name.
var ErrGroupNotFound = errors.New("estoque: group not found")

// ErrDuplicateSupplierCode indicates a codigo_fornecedor collision.
var ErrDuplicateSupplierCode = errors.New("estoque: supplier code already registered")

// ErrDuplicateGroupName indicates a case-insensitive group name collision.
var ErrDuplicateGroupName = errors.New("estoque: group name already registered")

// ErrInsufficientStock triggered when a saída exceeds the current quantity.
var ErrInsufficientStock = errors.New("estoque: insufficient stock")

// ErrInvalidMovement indicates an unsupported movement type.
var ErrInvalidMovement = errors.New("estoque: movement type must be entrada or saida")

// ErrInvalidQuantity indicates a non-positive movement quantity.
var ErrInvalidQuantity = errors.New("estoque: quantity must be positive")

// ErrValidation indicates malformed or missing input.
var ErrValidation = errors.New("estoque: invalid input")

// ErrCodeConflict indicates a lost race on code allocation that survived
// the internal retry.
var ErrCodeConflict = errors.New("estoque: code allocation conflict")
