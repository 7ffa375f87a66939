package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageNormalize(t *testing.T) {
	p := Page{}.Normalize(10, 100)
	require.Equal(t, Page{Page: 1, Limit: 10}, p)
	require.Equal(t, 0, p.Offset())

	p = Page{Page: 3, Limit: 500}.Normalize(10, 100)
	require.Equal(t, 100, p.Limit)
	require.Equal(t, 200, p.Offset())
}

func TestTotalPages(t *testing.T) {
	require.Equal(t, 0, TotalPages(0, 10))
	require.Equal(t, 1, TotalPages(10, 10))
	require.Equal(t, 2, TotalPages(11, 10))
	require.Equal(t, 0, TotalPages(5, 0))
}

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2026-01-01T00:00:00Z"})
	require.NoError(t, err)
	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	require.Equal(t, "42", cursor.ID)
}
