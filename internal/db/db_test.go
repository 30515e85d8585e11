package db

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsurePostgresSchema(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(schemaSQL).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, EnsurePostgresSchema(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsurePostgresSchemaError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(schemaSQL).WillReturnError(errors.New("permission denied for schema public"))
	assert.ErrorContains(t, EnsurePostgresSchema(context.Background(), mock), "permission denied")
}

func TestSchemaDeclaresTables(t *testing.T) {
	for _, table := range []string{"doctors", "doctor_slots", "appointments"} {
		assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}

func TestConnectPostgresRejectsBadDSN(t *testing.T) {
	_, err := ConnectPostgres(context.Background(), "postgres://%zz")
	assert.ErrorContains(t, err, "parse postgres dsn")
}
