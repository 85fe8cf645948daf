package estoque

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Registry manages group lifecycle. Two implementations exist: a
// first-class grupos table (TableRegistry) and a projection over product
// rows (DerivedRegistry). Both expose identical list/create/delete
// semantics; names passed in are expected to be normalized already.
type Registry interface {
	List(ctx context.Context) ([]Group, error)
	Get(ctx context.Context, codigo int64) (Group, error)
	FindByName(ctx context.Context, nome string) (Group, error)
	Create(ctx context.Context, nome string) (Group, error)
	// DeleteCascade removes the group and every product referencing it
	// (with their movements), returning the number of products removed.
	DeleteCascade(ctx context.Context, codigo int64) (int64, error)
}

// GroupProjection is the slice of the product store the derived registry
// reads groups from.
type GroupProjection interface {
	DistinctGroups(ctx context.Context) ([]Group, error)
	GetGroupByCode(ctx context.Context, codigo int64) (Group, error)
	FindGroupByName(ctx context.Context, nome string) (Group, error)
	MaxGroupCode(ctx context.Context) (int64, error)
	// DeleteGroupCascade removes the group's products and their
	// movements atomically and returns the product count.
	DeleteGroupCascade(ctx context.Context, codigo int64) (int64, error)
}

// DerivedRegistry treats the distinct (grupo_codigo, grupo_nome) pairs of
// the product rows as the group set. Groups created before any product
// references them live only in the pending overlay; they become durable
// once a member product exists. The high-water mark keeps freshly
// allocated codes strictly increasing within the process even when the
// projection shrinks.
type DerivedRegistry struct {
	proj GroupProjection

	mu        sync.Mutex
	pending   map[int64]Group
	highWater int64
}

// NewDerivedRegistry constructs the projection-backed registry.
func NewDerivedRegistry(proj GroupProjection) *DerivedRegistry {
	return &DerivedRegistry{proj: proj, pending: make(map[int64]Group)}
}

func (r *DerivedRegistry) List(ctx context.Context) ([]Group, error) {
	groups, err := r.proj.DistinctGroups(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(groups))
	for _, g := range groups {
		seen[g.Codigo] = struct{}{}
	}

	r.mu.Lock()
	for codigo, g := range r.pending {
		if _, ok := seen[codigo]; ok {
			// A product now references the group; the overlay entry
			// served its purpose.
			delete(r.pending, codigo)
			continue
		}
		groups = append(groups, g)
	}
	r.mu.Unlock()

	sort.Slice(groups, func(i, j int) bool { return groups[i].Codigo < groups[j].Codigo })
	return groups, nil
}

func (r *DerivedRegistry) Get(ctx context.Context, codigo int64) (Group, error) {
	g, err := r.proj.GetGroupByCode(ctx, codigo)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, ErrGroupNotFound) {
		return Group{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.pending[codigo]; ok {
		return g, nil
	}
	return Group{}, ErrGroupNotFound
}

func (r *DerivedRegistry) FindByName(ctx context.Context, nome string) (Group, error) {
	g, err := r.proj.FindGroupByName(ctx, nome)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, ErrGroupNotFound) {
		return Group{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.pending {
		if NormalizeName(g.Nome) == nome {
			return g, nil
		}
	}
	return Group{}, ErrGroupNotFound
}

// Create registers the group. The whole check-then-insert runs under the
// registry mutex so two concurrent creates of the same name cannot both
// pass the duplicate check.
func (r *DerivedRegistry) Create(ctx context.Context, nome string) (Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, g := range r.pending {
		if NormalizeName(g.Nome) == nome {
			return Group{}, ErrDuplicateGroupName
		}
	}
	if _, err := r.proj.FindGroupByName(ctx, nome); err == nil {
		return Group{}, ErrDuplicateGroupName
	} else if !errors.Is(err, ErrGroupNotFound) {
		return Group{}, err
	}

	max, err := r.proj.MaxGroupCode(ctx)
	if err != nil {
		return Group{}, err
	}
	if r.highWater > max {
		max = r.highWater
	}
	for codigo := range r.pending {
		if codigo > max {
			max = codigo
		}
	}
	g := Group{Codigo: NextGroupCode(max), Nome: nome}
	r.highWater = g.Codigo
	r.pending[g.Codigo] = g
	return g, nil
}

func (r *DerivedRegistry) DeleteCascade(ctx context.Context, codigo int64) (int64, error) {
	count, err := r.proj.DeleteGroupCascade(ctx, codigo)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	_, wasPending := r.pending[codigo]
	delete(r.pending, codigo)
	r.mu.Unlock()

	if count == 0 && !wasPending {
		return 0, ErrGroupNotFound
	}
	return count, nil
}
