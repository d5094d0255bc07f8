package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/carewell-hms/carewell/internal/shared"
)

func TestAsConflictMapsRetryableErrors(t *testing.T) {
	for _, code := range []string{"40001", "40P01"} {
		err := asConflict(fmt.Errorf("roles: replace grants: %w", &pgconn.PgError{Code: code}))
		require.ErrorIs(t, err, shared.ErrConflict, code)
		var pgErr *pgconn.PgError
		require.True(t, errors.As(err, &pgErr), "original error stays reachable")
	}

	unique := &pgconn.PgError{Code: "23505"}
	require.Same(t, error(unique), asConflict(unique))
	require.False(t, errors.Is(asConflict(errors.New("boom")), shared.ErrConflict))
}
