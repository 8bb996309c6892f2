package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// MySQL coerces a non-numeric string to the number 0 when it is compared
// against an integer column, so a text form like 'true' inside these
// statements would match every row stored as 0. The favorite column only
// ever holds 0 or 1; the SQL must compare integers and nothing else.
func TestFavoriteSQLComparesIntegersOnly(t *testing.T) {
	for _, q := range []string{toggleFavoriteSQL, countFavoritesSQL} {
		require.NotContains(t, q, `'true'`, "query: %s", q)
		require.NotContains(t, q, `'1'`, "query: %s", q)
	}
	require.Contains(t, countFavoritesSQL, "is_favorite = 1")
	require.Contains(t, toggleFavoriteSQL, "is_favorite = 1 - is_favorite")
}

func TestStatsQueriesScopeByOwner(t *testing.T) {
	for _, q := range []string{countContactsSQL, countFavoritesSQL, countWorkSQL, countPersonalSQL} {
		require.Contains(t, q, "owner_id = ?", "query: %s", q)
	}
}
