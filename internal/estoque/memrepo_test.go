package estoque

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// memRepo is an in-memory Repository and GroupProjection used by the
// service tests. WithTx serializes callers on a mutex and restores a
// snapshot when the callback fails, mirroring the rollback the real
// transaction gives us.
type memRepo struct {
	mu        sync.Mutex
	products  map[string]Product
	movements []Movement
}

func newMemRepo() *memRepo {
	return &memRepo{products: make(map[string]Product)}
}

func (r *memRepo) snapshot() (map[string]Product, []Movement) {
	products := make(map[string]Product, len(r.products))
	for id, p := range r.products {
		products[id] = p
	}
	movements := make([]Movement, len(r.movements))
	copy(movements, r.movements)
	return products, movements
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	products, movements := r.snapshot()
	if err := fn(ctx, &memTx{repo: r}); err != nil {
		r.products = products
		r.movements = movements
		return err
	}
	return nil
}

func (r *memRepo) GetProduct(ctx context.Context, id string) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *memRepo) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := []Product{}
	for _, p := range r.products {
		if filter.GrupoCodigo > 0 && p.GrupoCodigo != filter.GrupoCodigo {
			continue
		}
		if filter.Search != "" && !productMatches(p, filter.Search) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].GrupoCodigo != matched[j].GrupoCodigo {
			return matched[i].GrupoCodigo < matched[j].GrupoCodigo
		}
		return matched[i].Codigo < matched[j].Codigo
	})
	total := len(matched)
	return pageSlice(matched, filter.Page, filter.PerPage), total, nil
}

func (r *memRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := []Movement{}
	for _, m := range r.movements {
		if filter.Tipo != "" && m.Tipo != filter.Tipo {
			continue
		}
		matched = append(matched, m)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	return pageSlice(matched, filter.Page, filter.PerPage), total, nil
}

func productMatches(p Product, search string) bool {
	s := strings.ToUpper(search)
	for _, field := range []string{strconv.FormatInt(p.Codigo, 10), p.CodigoFornecedor, p.Marca, p.Descricao} {
		if strings.Contains(strings.ToUpper(field), s) {
			return true
		}
	}
	return false
}

func pageSlice[T any](items []T, page, perPage int) []T {
	if perPage <= 0 {
		return items
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// GroupProjection over the product rows, so tests can run the derived
// registry against the same store.

func (r *memRepo) DistinctGroups(ctx context.Context) ([]Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[int64]Group{}
	for _, p := range r.products {
		seen[p.GrupoCodigo] = Group{Codigo: p.GrupoCodigo, Nome: p.GrupoNome}
	}
	groups := make([]Group, 0, len(seen))
	for _, g := range seen {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Codigo < groups[j].Codigo })
	return groups, nil
}

func (r *memRepo) GetGroupByCode(ctx context.Context, codigo int64) (Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.GrupoCodigo == codigo {
			return Group{Codigo: p.GrupoCodigo, Nome: p.GrupoNome}, nil
		}
	}
	return Group{}, ErrGroupNotFound
}

func (r *memRepo) FindGroupByName(ctx context.Context, nome string) (Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if NormalizeName(p.GrupoNome) == nome {
			return Group{Codigo: p.GrupoCodigo, Nome: p.GrupoNome}, nil
		}
	}
	return Group{}, ErrGroupNotFound
}

func (r *memRepo) MaxGroupCode(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var max int64
	for _, p := range r.products {
		if p.GrupoCodigo > max {
			max = p.GrupoCodigo
		}
	}
	return max, nil
}

func (r *memRepo) DeleteGroupCascade(ctx context.Context, codigo int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, p := range r.products {
		if p.GrupoCodigo == codigo {
			delete(r.products, id)
			r.deleteMovementsLocked(id)
			count++
		}
	}
	return count, nil
}

func (r *memRepo) deleteMovementsLocked(productID string) {
	kept := r.movements[:0]
	for _, m := range r.movements {
		if m.ProductID != productID {
			kept = append(kept, m)
		}
	}
	r.movements = kept
}

// memTx assumes the repo mutex is held by WithTx.
type memTx struct {
	repo *memRepo
}

func (t *memTx) GetProductForUpdate(ctx context.Context, id string) (Product, error) {
	p, ok := t.repo.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (t *memTx) SupplierCodeExists(ctx context.Context, codigoFornecedor, excludeID string) (bool, error) {
	for id, p := range t.repo.products {
		if p.CodigoFornecedor == codigoFornecedor && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) MaxProductCode(ctx context.Context) (int64, error) {
	var max int64
	for _, p := range t.repo.products {
		if p.Codigo > max {
			max = p.Codigo
		}
	}
	return max, nil
}

func (t *memTx) InsertProduct(ctx context.Context, p Product) error {
	for _, existing := range t.repo.products {
		if existing.Codigo == p.Codigo {
			return ErrCodeConflict
		}
		if existing.CodigoFornecedor == p.CodigoFornecedor {
			return ErrDuplicateSupplierCode
		}
	}
	t.repo.products[p.ID] = p
	return nil
}

func (t *memTx) UpdateProduct(ctx context.Context, p Product) error {
	if _, ok := t.repo.products[p.ID]; !ok {
		return ErrNotFound
	}
	t.repo.products[p.ID] = p
	return nil
}

func (t *memTx) UpdateProductQuantity(ctx context.Context, id string, quantidade int64, ts time.Time) error {
	p, ok := t.repo.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Quantidade = quantidade
	p.Timestamp = ts
	t.repo.products[id] = p
	return nil
}

func (t *memTx) DeleteProduct(ctx context.Context, id string) (bool, error) {
	if _, ok := t.repo.products[id]; !ok {
		return false, nil
	}
	delete(t.repo.products, id)
	t.repo.deleteMovementsLocked(id)
	return true, nil
}

func (t *memTx) InsertMovement(ctx context.Context, m Movement) error {
	t.repo.movements = append(t.repo.movements, m)
	return nil
}

func (t *memTx) DeleteGroupProducts(ctx context.Context, grupoCodigo int64) (int64, error) {
	var count int64
	for id, p := range t.repo.products {
		if p.GrupoCodigo == grupoCodigo {
			delete(t.repo.products, id)
			t.repo.deleteMovementsLocked(id)
			count++
		}
	}
	return count, nil
}
