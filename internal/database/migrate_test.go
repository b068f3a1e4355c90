package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	require.Contains(t, schema, "CREATE TABLE IF NOT EXISTS betting_sessions")
	require.Contains(t, schema, "UNIQUE (session_id, player_id)")

	t.Run("applies the embedded schema", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(schema).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, Migrate(context.Background(), db))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps failures", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(schema).WillReturnError(errors.New("permission denied"))

		err = Migrate(context.Background(), db)
		assert.ErrorContains(t, err, "error applying schema")
		assert.ErrorContains(t, err, "permission denied")
	})
}
