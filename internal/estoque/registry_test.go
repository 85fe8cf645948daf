package estoque

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func addProduct(t *testing.T, repo *memRepo, id string, g Group) {
	t.Helper()
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		return tx.InsertProduct(ctx, Product{
			ID:               id,
			Codigo:           int64(len(repo.products) + 1),
			CodigoFornecedor: "F-" + id,
			Marca:            "MARCA",
			Descricao:        "DESCRICAO",
			Unidade:          "UN",
			GrupoCodigo:      g.Codigo,
			GrupoNome:        g.Nome,
			Timestamp:        time.Now(),
		})
	})
	require.NoError(t, err)
}

func TestDerivedRegistryAllocatesSteppedCodes(t *testing.T) {
	r := NewDerivedRegistry(newMemRepo())
	ctx := context.Background()

	first, err := r.Create(ctx, "ELÉTRICA")
	require.NoError(t, err)
	second, err := r.Create(ctx, "HIDRÁULICA")
	require.NoError(t, err)

	require.Equal(t, int64(10000), first.Codigo)
	require.Equal(t, int64(20000), second.Codigo)
}

func TestDerivedRegistryNeverReusesCodes(t *testing.T) {
	repo := newMemRepo()
	r := NewDerivedRegistry(repo)
	ctx := context.Background()

	first, err := r.Create(ctx, "ELÉTRICA")
	require.NoError(t, err)
	addProduct(t, repo, "p1", first)

	_, err = r.DeleteCascade(ctx, first.Codigo)
	require.NoError(t, err)

	// even with the projection empty again, the next code moves forward
	replacement, err := r.Create(ctx, "ELÉTRICA")
	require.NoError(t, err)
	require.Greater(t, replacement.Codigo, first.Codigo)
}

func TestDerivedRegistryPendingGroupVisibleUntilReferenced(t *testing.T) {
	repo := newMemRepo()
	r := NewDerivedRegistry(repo)
	ctx := context.Background()

	g, err := r.Create(ctx, "FERRAMENTAS")
	require.NoError(t, err)

	// visible through every read path before any product references it
	groups, err := r.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []Group{g}, groups)

	got, err := r.Get(ctx, g.Codigo)
	require.NoError(t, err)
	require.Equal(t, g, got)

	got, err = r.FindByName(ctx, "FERRAMENTAS")
	require.NoError(t, err)
	require.Equal(t, g, got)

	addProduct(t, repo, "p1", g)

	groups, err = r.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []Group{g}, groups)
}

func TestDerivedRegistryRejectsDuplicateName(t *testing.T) {
	repo := newMemRepo()
	r := NewDerivedRegistry(repo)
	ctx := context.Background()

	g, err := r.Create(ctx, "ELÉTRICA")
	require.NoError(t, err)

	_, err = r.Create(ctx, "ELÉTRICA")
	require.ErrorIs(t, err, ErrDuplicateGroupName)

	// still rejected once the group is backed by a product row
	addProduct(t, repo, "p1", g)
	_, err = r.Create(ctx, "ELÉTRICA")
	require.ErrorIs(t, err, ErrDuplicateGroupName)
}

func TestDerivedRegistryConcurrentCreateSameName(t *testing.T) {
	r := NewDerivedRegistry(newMemRepo())
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Create(ctx, "ELÉTRICA")
		}(i)
	}
	wg.Wait()

	var created, duplicate int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		default:
			require.ErrorIs(t, err, ErrDuplicateGroupName)
			duplicate++
		}
	}
	require.Equal(t, 1, created)
	require.Equal(t, n-1, duplicate)

	groups, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
}

func TestDerivedRegistryDeleteCascade(t *testing.T) {
	repo := newMemRepo()
	r := NewDerivedRegistry(repo)
	ctx := context.Background()

	g, err := r.Create(ctx, "ELÉTRICA")
	require.NoError(t, err)
	addProduct(t, repo, "p1", g)
	addProduct(t, repo, "p2", g)

	count, err := r.DeleteCascade(ctx, g.Codigo)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	_, err = r.Get(ctx, g.Codigo)
	require.ErrorIs(t, err, ErrGroupNotFound)

	_, err = r.DeleteCascade(ctx, g.Codigo)
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestDerivedRegistryDeletePendingGroup(t *testing.T) {
	r := NewDerivedRegistry(newMemRepo())
	ctx := context.Background()

	g, err := r.Create(ctx, "ELÉTRICA")
	require.NoError(t, err)

	count, err := r.DeleteCascade(ctx, g.Codigo)
	require.NoError(t, err)
	require.Equal(t, int64(0), count)

	_, err = r.Get(ctx, g.Codigo)
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestDerivedRegistryUnknownGroup(t *testing.T) {
	r := NewDerivedRegistry(newMemRepo())
	ctx := context.Background()

	_, err := r.Get(ctx, 10000)
	require.ErrorIs(t, err, ErrGroupNotFound)

	_, err = r.DeleteCascade(ctx, 10000)
	require.ErrorIs(t, err, ErrGroupNotFound)
}
