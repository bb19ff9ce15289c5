package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 20, 45)
	require.Equal(t, 2, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 45, p.Total)
	require.Equal(t, 3, p.TotalPages)

	p = NewPagination(0, 0, 5)
	require.Equal(t, 1, p.Page)
	require.Equal(t, 20, p.PerPage)
	require.Equal(t, 1, p.TotalPages)
}

func TestPaginationInRange(t *testing.T) {
	// the first page is always servable, even with no rows
	require.True(t, NewPagination(1, 20, 0).InRange())
	require.True(t, NewPagination(1, 20, 5).InRange())
	require.True(t, NewPagination(3, 20, 45).InRange())
	require.False(t, NewPagination(4, 20, 45).InRange())
	require.False(t, NewPagination(2, 20, 0).InRange())
}

func TestPaginationOffset(t *testing.T) {
	require.Equal(t, 0, NewPagination(1, 20, 100).Offset())
	require.Equal(t, 40, NewPagination(3, 20, 100).Offset())
}
