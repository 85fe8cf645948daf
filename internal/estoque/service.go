package estoque

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ir-comercio/estoque-api/internal/shared"
)

// MetricsRecorder receives movement events for instrumentation.
type MetricsRecorder interface {
	RecordMovement(tipo string)
}

// Service coordinates inventory operations.
type Service struct {
	repo    Repository
	groups  Registry
	logger  *slog.Logger
	metrics MetricsRecorder
	now     func() time.Time
}

// NewService builds Service. Logger and metrics may be nil.
func NewService(repo Repository, groups Registry, logger *slog.Logger, metrics MetricsRecorder) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		groups:  groups,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateProductInput carries the fields accepted on product creation.
// Either GrupoCodigo or GrupoNome must resolve to an existing group.
type CreateProductInput struct {
	CodigoFornecedor string
	Marca            string
	Descricao        string
	NCM              string
	Unidade          string
	Quantidade       int64
	ValorUnitario    float64
	GrupoCodigo      int64
	GrupoNome        string
}

// UpdateProductInput carries the mutable fields. Marca, group and
// quantity are locked after creation; quantity changes only through
// ApplyMovement.
type UpdateProductInput struct {
	CodigoFornecedor string
	NCM              string
	Descricao        string
	Unidade          string
	ValorUnitario    float64
}

// GetProduct returns a single product.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	if id == "" {
		return Product{}, fmt.Errorf("%w: id required", ErrValidation)
	}
	return s.repo.GetProduct(ctx, id)
}

// ListProducts returns one page of the catalogue ordered by group code
// then product code.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, shared.Pagination, error) {
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	filter.Page = page.Page
	filter.PerPage = page.PerPage

	products, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// CreateProduct allocates the next product code and inserts the product.
// A creation with positive quantity records the opening entrada movement
// so the ledger alone accounts for the current quantity. A lost race on
// code allocation is retried once with a fresh transaction before
// surfacing ErrCodeConflict.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	input.CodigoFornecedor = strings.TrimSpace(input.CodigoFornecedor)
	input.Marca = NormalizeName(input.Marca)
	input.Descricao = NormalizeName(input.Descricao)
	input.NCM = strings.TrimSpace(input.NCM)
	input.Unidade = strings.ToUpper(strings.TrimSpace(input.Unidade))
	if input.Unidade == "" {
		input.Unidade = "UN"
	}

	switch {
	case input.CodigoFornecedor == "":
		return Product{}, fmt.Errorf("%w: codigo_fornecedor required", ErrValidation)
	case input.Marca == "":
		return Product{}, fmt.Errorf("%w: marca required", ErrValidation)
	case input.Descricao == "":
		return Product{}, fmt.Errorf("%w: descricao required", ErrValidation)
	case input.Quantidade < 0:
		return Product{}, fmt.Errorf("%w: quantidade must be >= 0", ErrValidation)
	case input.ValorUnitario < 0:
		return Product{}, fmt.Errorf("%w: valor_unitario must be >= 0", ErrValidation)
	}

	group, err := s.resolveGroup(ctx, input.GrupoCodigo, input.GrupoNome)
	if err != nil {
		return Product{}, err
	}

	var created Product
	err = retryOnCodeConflict(func(attempt int) error {
		if attempt > 0 {
			s.logger.Warn("product code race, retrying", slog.String("codigo_fornecedor", input.CodigoFornecedor))
		}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			exists, err := tx.SupplierCodeExists(ctx, input.CodigoFornecedor, "")
			if err != nil {
				return err
			}
			if exists {
				return ErrDuplicateSupplierCode
			}

			max, err := tx.MaxProductCode(ctx)
			if err != nil {
				return err
			}
			now := s.now()
			created = Product{
				ID:               uuid.NewString(),
				Codigo:           NextProductCode(max),
				CodigoFornecedor: input.CodigoFornecedor,
				Marca:            input.Marca,
				Descricao:        input.Descricao,
				NCM:              input.NCM,
				Unidade:          input.Unidade,
				Quantidade:       input.Quantidade,
				ValorUnitario:    input.ValorUnitario,
				GrupoCodigo:      group.Codigo,
				GrupoNome:        group.Nome,
				Timestamp:        now,
			}
			if err := tx.InsertProduct(ctx, created); err != nil {
				return err
			}
			if created.Quantidade > 0 {
				return tx.InsertMovement(ctx, s.movementFor(created, MovementEntrada, created.Quantidade, now))
			}
			return nil
		})
	})
	if err != nil {
		return Product{}, err
	}

	s.logger.Info("product created",
		slog.Int64("codigo", created.Codigo),
		slog.String("codigo_fornecedor", created.CodigoFornecedor),
		slog.Int64("grupo_codigo", created.GrupoCodigo),
	)
	if s.metrics != nil && created.Quantidade > 0 {
		s.metrics.RecordMovement(string(MovementEntrada))
	}
	return created, nil
}

// UpdateProduct rewrites the mutable fields of a product.
func (s *Service) UpdateProduct(ctx context.Context, id string, input UpdateProductInput) (Product, error) {
	input.CodigoFornecedor = strings.TrimSpace(input.CodigoFornecedor)
	input.Descricao = NormalizeName(input.Descricao)
	input.NCM = strings.TrimSpace(input.NCM)
	input.Unidade = strings.ToUpper(strings.TrimSpace(input.Unidade))

	switch {
	case id == "":
		return Product{}, fmt.Errorf("%w: id required", ErrValidation)
	case input.CodigoFornecedor == "":
		return Product{}, fmt.Errorf("%w: codigo_fornecedor required", ErrValidation)
	case input.Descricao == "":
		return Product{}, fmt.Errorf("%w: descricao required", ErrValidation)
	case input.ValorUnitario < 0:
		return Product{}, fmt.Errorf("%w: valor_unitario must be >= 0", ErrValidation)
	}

	var updated Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if input.CodigoFornecedor != p.CodigoFornecedor {
			exists, err := tx.SupplierCodeExists(ctx, input.CodigoFornecedor, id)
			if err != nil {
				return err
			}
			if exists {
				return ErrDuplicateSupplierCode
			}
		}
		p.CodigoFornecedor = input.CodigoFornecedor
		p.NCM = input.NCM
		p.Descricao = input.Descricao
		if input.Unidade != "" {
			p.Unidade = input.Unidade
		}
		p.ValorUnitario = input.ValorUnitario
		p.Timestamp = s.now()
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return updated, nil
}

// DeleteProduct removes the product and its movements. Deleting an
// unknown or already removed id reports ErrNotFound.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id required", ErrValidation)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, err := tx.DeleteProduct(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		return nil
	})
}

// ApplyMovement applies an entrada/saída delta and appends the ledger
// entry, atomically. The product row lock serializes concurrent
// movements so the non-negativity check always sees the quantity it will
// overwrite.
func (s *Service) ApplyMovement(ctx context.Context, id string, tipo MovementType, quantidade int64) (Product, error) {
	if !tipo.Valid() {
		return Product{}, ErrInvalidMovement
	}
	if quantidade <= 0 {
		return Product{}, ErrInvalidQuantity
	}

	var updated Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if tipo == MovementSaida && quantidade > p.Quantidade {
			return ErrInsufficientStock
		}
		if tipo == MovementEntrada {
			p.Quantidade += quantidade
		} else {
			p.Quantidade -= quantidade
		}
		now := s.now()
		p.Timestamp = now
		if err := tx.UpdateProductQuantity(ctx, p.ID, p.Quantidade, now); err != nil {
			return err
		}
		if err := tx.InsertMovement(ctx, s.movementFor(p, tipo, quantidade, now)); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return Product{}, err
	}

	s.logger.Info("movement applied",
		slog.String("tipo", string(tipo)),
		slog.Int64("quantidade", quantidade),
		slog.Int64("codigo", updated.Codigo),
		slog.Int64("saldo", updated.Quantidade),
	)
	if s.metrics != nil {
		s.metrics.RecordMovement(string(tipo))
	}
	return updated, nil
}

// ListMovements returns one page of the ledger, most recent first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, shared.Pagination, error) {
	if filter.Tipo != "" && !filter.Tipo.Valid() {
		return nil, shared.Pagination{}, ErrInvalidMovement
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, 0)
	filter.Page = page.Page
	filter.PerPage = page.PerPage

	movements, total, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return movements, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ListGroups returns every group ascending by code.
func (s *Service) ListGroups(ctx context.Context) ([]Group, error) {
	return s.groups.List(ctx)
}

// CreateGroup registers a group under the next free code.
func (s *Service) CreateGroup(ctx context.Context, nome string) (Group, error) {
	nome = NormalizeName(nome)
	if nome == "" {
		return Group{}, fmt.Errorf("%w: nome required", ErrValidation)
	}
	g, err := s.groups.Create(ctx, nome)
	if err != nil {
		return Group{}, err
	}
	s.logger.Info("group created", slog.Int64("codigo", g.Codigo), slog.String("nome", g.Nome))
	return g, nil
}

// DeleteGroup removes the group and cascades to its products and their
// movements, returning how many products were removed.
func (s *Service) DeleteGroup(ctx context.Context, codigo int64) (int64, error) {
	if codigo <= 0 {
		return 0, fmt.Errorf("%w: codigo required", ErrValidation)
	}
	count, err := s.groups.DeleteCascade(ctx, codigo)
	if err != nil {
		return 0, err
	}
	s.logger.Info("group deleted", slog.Int64("codigo", codigo), slog.Int64("produtos_removidos", count))
	return count, nil
}

func (s *Service) resolveGroup(ctx context.Context, codigo int64, nome string) (Group, error) {
	if codigo > 0 {
		return s.groups.Get(ctx, codigo)
	}
	nome = NormalizeName(nome)
	if nome == "" {
		return Group{}, fmt.Errorf("%w: grupo_codigo or grupo_nome required", ErrValidation)
	}
	return s.groups.FindByName(ctx, nome)
}

func (s *Service) movementFor(p Product, tipo MovementType, quantidade int64, ts time.Time) Movement {
	return Movement{
		ID:               uuid.NewString(),
		ProductID:        p.ID,
		Tipo:             tipo,
		Quantidade:       quantidade,
		Codigo:           p.Codigo,
		Marca:            p.Marca,
		CodigoFornecedor: p.CodigoFornecedor,
		CreatedAt:        ts,
	}
}
