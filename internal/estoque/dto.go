package estoque

// CreateProductRequest is the POST /api/estoque body.
type CreateProductRequest struct {
	CodigoFornecedor string   `json:"codigo_fornecedor" validate:"required,max=50"`
	Marca            string   `json:"marca" validate:"required,max=100"`
	Descricao        string   `json:"descricao" validate:"required,max=300"`
	NCM              string   `json:"ncm" validate:"omitempty,max=20"`
	Unidade          string   `json:"unidade" validate:"omitempty,max=10"`
	Quantidade       *int64   `json:"quantidade" validate:"required,gte=0"`
	ValorUnitario    *float64 `json:"valor_unitario" validate:"required,gte=0"`
	GrupoCodigo      int64    `json:"grupo_codigo" validate:"omitempty,gt=0"`
	GrupoNome        string   `json:"grupo_nome" validate:"required_without=GrupoCodigo,omitempty,max=100"`
}

// UpdateProductRequest is the PUT /api/estoque/{id} body. Only mutable
// fields appear here.
type UpdateProductRequest struct {
	CodigoFornecedor string   `json:"codigo_fornecedor" validate:"required,max=50"`
	NCM              string   `json:"ncm" validate:"omitempty,max=20"`
	Descricao        string   `json:"descricao" validate:"required,max=300"`
	Unidade          string   `json:"unidade" validate:"omitempty,max=10"`
	ValorUnitario    *float64 `json:"valor_unitario" validate:"required,gte=0"`
}

// MovementRequest is the POST /api/estoque/{id}/movimentar body.
type MovementRequest struct {
	Tipo       string `json:"tipo" validate:"required,oneof=entrada saida"`
	Quantidade int64  `json:"quantidade" validate:"required,gt=0"`
}

// CreateGroupRequest is the POST /api/grupos body.
type CreateGroupRequest struct {
	Nome string `json:"nome" validate:"required,max=100"`
}

// ProductListResponse wraps one catalogue page.
type ProductListResponse struct {
	Data       []Product `json:"data"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
}

// MovementListResponse wraps one ledger page.
type MovementListResponse struct {
	Data       []Movement `json:"data"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
}

// DeleteGroupResponse reports the cascade size.
type DeleteGroupResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}
