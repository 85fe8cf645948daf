package estoque

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ir-comercio/estoque-api/internal/platform/httpx"
)

// Handler exposes the inventory API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches the inventory routes. The caller mounts this
// under /api behind the session gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Head("/estoque", h.Ping)
	r.Get("/estoque", h.ListProducts)
	r.Post("/estoque", h.CreateProduct)
	r.Get("/estoque/{id}", h.GetProduct)
	r.Put("/estoque/{id}", h.UpdateProduct)
	r.Delete("/estoque/{id}", h.DeleteProduct)
	r.Post("/estoque/{id}/movimentar", h.ApplyMovement)

	r.Get("/grupos", h.ListGroups)
	r.Post("/grupos", h.CreateGroup)
	r.Delete("/grupos/{codigo}", h.DeleteGroup)

	r.Get("/movimentacoes", h.ListMovements)
}

// Ping answers the SPA reachability probe.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	grupo, _ := strconv.ParseInt(r.URL.Query().Get("grupo"), 10, 64)

	products, pg, err := h.service.ListProducts(r.Context(), ProductFilter{
		GrupoCodigo: grupo,
		Search:      r.URL.Query().Get("search"),
		Page:        page,
		PerPage:     limit,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ProductListResponse{
		Data:       products,
		Total:      pg.Total,
		Page:       pg.Page,
		TotalPages: pg.TotalPages,
	})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Todos os campos obrigatórios devem ser preenchidos")
		return
	}

	product, err := h.service.CreateProduct(r.Context(), CreateProductInput{
		CodigoFornecedor: req.CodigoFornecedor,
		Marca:            req.Marca,
		Descricao:        req.Descricao,
		NCM:              req.NCM,
		Unidade:          req.Unidade,
		Quantidade:       *req.Quantidade,
		ValorUnitario:    *req.ValorUnitario,
		GrupoCodigo:      req.GrupoCodigo,
		GrupoNome:        req.GrupoNome,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Todos os campos obrigatórios devem ser preenchidos")
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), UpdateProductInput{
		CodigoFornecedor: req.CodigoFornecedor,
		NCM:              req.NCM,
		Descricao:        req.Descricao,
		Unidade:          req.Unidade,
		ValorUnitario:    *req.ValorUnitario,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ApplyMovement(w http.ResponseWriter, r *http.Request) {
	var req MovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Dados inválidos")
		return
	}

	product, err := h.service.ApplyMovement(r.Context(), chi.URLParam(r, "id"), MovementType(req.Tipo), req.Quantidade)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	movements, pg, err := h.service.ListMovements(r.Context(), MovementFilter{
		Tipo:    MovementType(r.URL.Query().Get("tipo")),
		Page:    page,
		PerPage: limit,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, MovementListResponse{
		Data:       movements,
		Total:      pg.Total,
		Page:       pg.Page,
		TotalPages: pg.TotalPages,
	})
}

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.ListGroups(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Nome do grupo é obrigatório")
		return
	}

	group, err := h.service.CreateGroup(r.Context(), req.Nome)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	codigo, err := strconv.ParseInt(chi.URLParam(r, "codigo"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "Código de grupo inválido")
		return
	}
	count, err := h.service.DeleteGroup(r.Context(), codigo)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, DeleteGroupResponse{DeletedCount: count})
}

// respondError maps domain errors onto the API's error contract.
// Internal failures are logged with detail and surfaced generically.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "Produto não encontrado")
	case errors.Is(err, ErrGroupNotFound):
		httpx.Error(w, http.StatusNotFound, "Grupo não encontrado")
	case errors.Is(err, ErrDuplicateSupplierCode):
		httpx.Error(w, http.StatusBadRequest, "Código do fornecedor já cadastrado")
	case errors.Is(err, ErrDuplicateGroupName):
		httpx.Error(w, http.StatusBadRequest, "Grupo já cadastrado")
	case errors.Is(err, ErrInsufficientStock):
		httpx.Error(w, http.StatusBadRequest, "Quantidade insuficiente em estoque")
	case errors.Is(err, ErrInvalidMovement), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrValidation):
		httpx.Error(w, http.StatusBadRequest, "Dados inválidos")
	case errors.Is(err, ErrCodeConflict):
		httpx.Error(w, http.StatusConflict, "Conflito ao alocar código, tente novamente")
	default:
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		httpx.Error(w, http.StatusInternalServerError, "Erro interno do servidor")
	}
}
