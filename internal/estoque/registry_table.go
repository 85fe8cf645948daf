package estoque

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ir-comercio/estoque-api/internal/platform/db"
)

// TableRegistry keeps groups in a first-class grupos table. Codes come
// from a Postgres sequence stepping by GroupCodeStep, so deleted codes
// are never handed out again.
type TableRegistry struct {
	pool *pgxpool.Pool
}

// NewTableRegistry constructs the table-backed registry.
func NewTableRegistry(pool *pgxpool.Pool) *TableRegistry {
	return &TableRegistry{pool: pool}
}

func (r *TableRegistry) List(ctx context.Context) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT codigo, nome FROM grupos ORDER BY codigo`)
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

func (r *TableRegistry) Get(ctx context.Context, codigo int64) (Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx, `SELECT codigo, nome FROM grupos WHERE codigo=$1`, codigo).
		Scan(&g.Codigo, &g.Nome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, ErrGroupNotFound
		}
		return Group{}, err
	}
	return g, nil
}

func (r *TableRegistry) FindByName(ctx context.Context, nome string) (Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx, `SELECT codigo, nome FROM grupos WHERE upper(nome)=$1`, nome).
		Scan(&g.Codigo, &g.Nome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, ErrGroupNotFound
		}
		return Group{}, err
	}
	return g, nil
}

// Create allocates the next code and inserts the group in one
// transaction. The sequence is pushed forward when existing rows carry a
// higher code than it would produce, which happens after data imports; a
// lost race on the recomputed code is retried once with a fresh
// transaction before surfacing the conflict.
func (r *TableRegistry) Create(ctx context.Context, nome string) (Group, error) {
	var g Group
	err := retryOnCodeConflict(func(int) error {
		return r.createTx(ctx, nome, &g)
	})
	if err != nil {
		return Group{}, err
	}
	return g, nil
}

func (r *TableRegistry) createTx(ctx context.Context, nome string, g *Group) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var next int64
		if err := tx.QueryRow(ctx, `SELECT nextval('grupo_codigo_seq')`).Scan(&next); err != nil {
			return err
		}
		var max int64
		if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(codigo), 0) FROM grupos`).Scan(&max); err != nil {
			return err
		}
		if next <= max {
			next = NextGroupCode(max)
			if _, err := tx.Exec(ctx, `SELECT setval('grupo_codigo_seq', $1)`, next); err != nil {
				return err
			}
		}

		*g = Group{Codigo: next, Nome: nome}
		if _, err := tx.Exec(ctx, `INSERT INTO grupos (codigo, nome) VALUES ($1, $2)`, g.Codigo, g.Nome); err != nil {
			return translateConstraintViolation(err)
		}
		return nil
	})
}

// DeleteCascade removes the group row, its products and their movements
// in one transaction; a failure anywhere rolls everything back.
func (r *TableRegistry) DeleteCascade(ctx context.Context, codigo int64) (int64, error) {
	var count int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var nome string
		err := tx.QueryRow(ctx, `SELECT nome FROM grupos WHERE codigo=$1 FOR UPDATE`, codigo).Scan(&nome)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrGroupNotFound
			}
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM estoque WHERE grupo_codigo=$1`, codigo)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM grupos WHERE codigo=$1`, codigo); err != nil {
			return err
		}
		count = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
