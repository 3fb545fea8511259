package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "risk_rows", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_NoColumns(t *testing.T) {
	_, err := CopyFrom(context.TODO(), nil, "risk_rows", nil, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"risk_rows"}, []string{"a", "b"}).WillReturnResult(3)

	rows := [][]any{{1, "x"}, {2, "y"}, {3, "z"}}
	n, err := CopyFrom(context.Background(), mock, "risk_rows", []string{"a", "b"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"risk", "rows"}, []string{"a"}).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "risk.rows", []string{"a"}, [][]any{{1}, {2}})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"risk_rows"}, []string{"a", "b"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "risk_rows", []string{"a", "b"}, [][]any{{1, "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO risk_rows")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_ShortCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"risk_rows"}, []string{"a"}).WillReturnResult(1)

	n, err := CopyFrom(context.Background(), mock, "risk_rows", []string{"a"}, [][]any{{1}, {2}})
	require.Error(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, err.Error(), "copied 1 of 2 rows")
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected pgx.Identifier
	}{
		{"runs", pgx.Identifier{"runs"}},
		{"risk.rows", pgx.Identifier{"risk", "rows"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Identifier(tt.input))
		})
	}
}
