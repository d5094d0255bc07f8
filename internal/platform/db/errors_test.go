package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestPgErrorMatching(t *testing.T) {
	unique := fmt.Errorf("insert role: %w", &pgconn.PgError{Code: "23505", ConstraintName: "tenant_roles_tenant_name_key"})
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "users_role_id_fkey"}

	require.True(t, IsUniqueViolation(unique, ""))
	require.True(t, IsUniqueViolation(unique, "tenant_roles_tenant_name_key"))
	require.False(t, IsUniqueViolation(unique, "other"))
	require.False(t, IsForeignKeyViolation(unique, ""))
	require.True(t, IsForeignKeyViolation(fk, "users_role_id_fkey"))
	require.False(t, IsUniqueViolation(errors.New("plain"), ""))
	require.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
}
