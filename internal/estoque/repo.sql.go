package estoque

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ir-comercio/estoque-api/internal/platform/db"
)

const productColumns = `id, codigo, codigo_fornecedor, marca, descricao, ncm, unidade, quantidade, valor_unitario, grupo_codigo, grupo_nome, atualizado_em`

const movementColumns = `id, produto_id, tipo, quantidade, codigo, marca, codigo_fornecedor, created_at`

// PGRepository persists the inventory in PostgreSQL. It also serves as
// the GroupProjection consumed by DerivedRegistry.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction; the
// row locks taken by the callbacks serialize conflicting writers.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("estoque repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *PGRepository) GetProduct(ctx context.Context, id string) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM estoque WHERE id::text=$1`, id))
}

// ListProducts uses dynamic SQL: both the search filter and the group
// filter are optional.
func (r *PGRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	where := ``
	args := []interface{}{}
	argCount := 0

	if filter.GrupoCodigo > 0 {
		argCount++
		where += ` AND grupo_codigo = $` + strconv.Itoa(argCount)
		args = append(args, filter.GrupoCodigo)
	}
	if filter.Search != "" {
		argCount++
		n := strconv.Itoa(argCount)
		where += ` AND (codigo::text ILIKE $` + n + ` OR codigo_fornecedor ILIKE $` + n +
			` OR marca ILIKE $` + n + ` OR descricao ILIKE $` + n + `)`
		args = append(args, "%"+filter.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM estoque WHERE 1=1`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM estoque WHERE 1=1` + where + ` ORDER BY grupo_codigo ASC, codigo ASC`
	if filter.PerPage > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.PerPage)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filter.Page - 1) * filter.PerPage
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *PGRepository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	where := ``
	args := []interface{}{}
	argCount := 0

	if filter.Tipo != "" {
		argCount++
		where += ` AND tipo = $` + strconv.Itoa(argCount)
		args = append(args, string(filter.Tipo))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM movimentacoes WHERE 1=1`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + movementColumns + ` FROM movimentacoes WHERE 1=1` + where + ` ORDER BY created_at DESC`
	if filter.PerPage > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.PerPage)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filter.Page - 1) * filter.PerPage
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Tipo, &m.Quantidade, &m.Codigo, &m.Marca, &m.CodigoFornecedor, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		movements = append(movements, m)
	}
	return movements, total, rows.Err()
}

// DistinctGroups implements GroupProjection.
func (r *PGRepository) DistinctGroups(ctx context.Context) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT grupo_codigo, grupo_nome FROM estoque GROUP BY grupo_codigo, grupo_nome ORDER BY grupo_codigo`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	groups := []Group{}
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.Codigo, &g.Nome); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *PGRepository) GetGroupByCode(ctx context.Context, codigo int64) (Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx, `SELECT grupo_codigo, grupo_nome FROM estoque WHERE grupo_codigo=$1 LIMIT 1`, codigo).
		Scan(&g.Codigo, &g.Nome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, ErrGroupNotFound
		}
		return Group{}, err
	}
	return g, nil
}

func (r *PGRepository) FindGroupByName(ctx context.Context, nome string) (Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx, `SELECT grupo_codigo, grupo_nome FROM estoque WHERE upper(grupo_nome)=$1 LIMIT 1`, nome).
		Scan(&g.Codigo, &g.Nome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, ErrGroupNotFound
		}
		return Group{}, err
	}
	return g, nil
}

func (r *PGRepository) MaxGroupCode(ctx context.Context) (int64, error) {
	var max int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(grupo_codigo), 0) FROM estoque`).Scan(&max)
	return max, err
}

// DeleteGroupCascade implements GroupProjection. Movements go with their
// products via the FK cascade.
func (r *PGRepository) DeleteGroupCascade(ctx context.Context, codigo int64) (int64, error) {
	var count int64
	err := r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		count, err = tx.DeleteGroupProducts(ctx, codigo)
		return err
	})
	return count, err
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM estoque WHERE id::text=$1 FOR UPDATE`, id))
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *txRepository) SupplierCodeExists(ctx context.Context, codigoFornecedor, excludeID string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM estoque WHERE codigo_fornecedor=$1 AND ($2 = '' OR id::text <> $2))`,
		codigoFornecedor, excludeID).Scan(&exists)
	return exists, err
}

func (r *txRepository) MaxProductCode(ctx context.Context) (int64, error) {
	var max int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(codigo), 0) FROM estoque`).Scan(&max)
	return max, err
}

func (r *txRepository) InsertProduct(ctx context.Context, p Product) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO estoque (id, codigo, codigo_fornecedor, marca, descricao, ncm, unidade, quantidade, valor_unitario, grupo_codigo, grupo_nome, atualizado_em)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.Codigo, p.CodigoFornecedor, p.Marca, p.Descricao, p.NCM, p.Unidade, p.Quantidade, p.ValorUnitario, p.GrupoCodigo, p.GrupoNome, p.Timestamp)
	return translateConstraintViolation(err)
}

func (r *txRepository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.tx.Exec(ctx, `UPDATE estoque SET codigo_fornecedor=$2, ncm=$3, descricao=$4, unidade=$5, valor_unitario=$6, atualizado_em=$7 WHERE id::text=$1`,
		p.ID, p.CodigoFornecedor, p.NCM, p.Descricao, p.Unidade, p.ValorUnitario, p.Timestamp)
	if err != nil {
		return translateConstraintViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateProductQuantity(ctx context.Context, id string, quantidade int64, ts time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE estoque SET quantidade=$2, atualizado_em=$3 WHERE id::text=$1`, id, quantidade, ts)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteProduct(ctx context.Context, id string) (bool, error) {
	tag, err := r.tx.Exec(ctx, `DELETE FROM estoque WHERE id::text=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO movimentacoes (id, produto_id, tipo, quantidade, codigo, marca, codigo_fornecedor, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.ProductID, string(m.Tipo), m.Quantidade, m.Codigo, m.Marca, m.CodigoFornecedor, m.CreatedAt)
	return err
}

func (r *txRepository) DeleteGroupProducts(ctx context.Context, grupoCodigo int64) (int64, error) {
	tag, err := r.tx.Exec(ctx, `DELETE FROM estoque WHERE grupo_codigo=$1`, grupoCodigo)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Codigo, &p.CodigoFornecedor, &p.Marca, &p.Descricao, &p.NCM, &p.Unidade,
		&p.Quantidade, &p.ValorUnitario, &p.GrupoCodigo, &p.GrupoNome, &p.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// translateConstraintViolation maps Postgres constraint violations to
// domain errors so callers can distinguish a duplicate business key from
// a lost allocation race. The grupo_codigo foreign key catches a product
// insert racing a group delete: the winner of that race decides whether
// the group still exists when the insert commits.
func translateConstraintViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		switch pgErr.ConstraintName {
		case "estoque_codigo_fornecedor_key":
			return ErrDuplicateSupplierCode
		case "estoque_codigo_key":
			return ErrCodeConflict
		case "grupos_nome_upper_idx":
			return ErrDuplicateGroupName
		case "grupos_pkey":
			return ErrCodeConflict
		}
	case "23503":
		if pgErr.ConstraintName == "estoque_grupo_codigo_fkey" {
			return ErrGroupNotFound
		}
	}
	return err
}
