package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaginationDefaults(t *testing.T) {
	p := NewPagination(0, 0, 0)
	require.Equal(t, 1, p.Page)
	require.Equal(t, DefaultPerPage, p.PerPage)
	require.Equal(t, 1, p.TotalPages)
	require.Equal(t, 0, p.Offset())
}

func TestNewPaginationCapsPerPage(t *testing.T) {
	p := NewPagination(1, 500, 10)
	require.Equal(t, MaxPerPage, p.PerPage)
}

func TestNewPaginationComputesPages(t *testing.T) {
	p := NewPagination(3, 50, 127)
	require.Equal(t, 3, p.TotalPages)
	require.Equal(t, 100, p.Offset())

	// last page holds the remainder; the page after it is simply empty
	require.Equal(t, 27, p.Total-p.Offset())

	beyond := NewPagination(4, 50, 127)
	require.Equal(t, 150, beyond.Offset())
	require.GreaterOrEqual(t, beyond.Offset(), beyond.Total)
}

func TestNewPaginationNegativeInput(t *testing.T) {
	p := NewPagination(-2, -5, 7)
	require.Equal(t, 1, p.Page)
	require.Equal(t, DefaultPerPage, p.PerPage)
	require.Equal(t, 1, p.TotalPages)
}
