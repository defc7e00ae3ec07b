package journal

import (
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockSQLite(t *testing.T) (*SQLite, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &SQLite{db: db}, mock
}

var mockCols = []string{
	"id", "instrument", "seq", "kind", "side", "leg_id", "volume",
	"entry_price", "exit_price", "commission", "realized", "time",
}

func TestSQLiteWriteErrors(t *testing.T) {
	t.Parallel()

	j, mock := newMockSQLite(t)
	diskErr := errors.New("disk I/O error")

	mock.ExpectExec(`INSERT INTO realizations`).WillReturnError(diskErr)
	mock.ExpectExec(`INSERT INTO snapshots`).WillReturnError(diskErr)

	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, j.RecordRealization(realization("r1", at, "1")), diskErr)
	assert.ErrorIs(t, j.RecordSnapshot(SnapshotRecord{Time: at, Instrument: "EUR_USD"}), diskErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteReadPaths(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	row := []driver.Value{"r1", "EUR_USD", int64(4), KindFill, "BUY", int64(0), "0.10", "1.1000", "1.1050", "0.70", "-0.20", at}

	tests := []struct {
		name  string
		setup func(mock sqlmock.Sqlmock)
		run   func(j *SQLite) error
		want  string
	}{
		{
			name: "get not found",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM realizations WHERE id = \?`).
					WithArgs("nope").
					WillReturnRows(sqlmock.NewRows(mockCols))
			},
			run: func(j *SQLite) error {
				_, err := j.GetRealization("nope")
				return err
			},
			want: `realization "nope" not found`,
		},
		{
			name: "get decodes row",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM realizations WHERE id = \?`).
					WithArgs("r1").
					WillReturnRows(sqlmock.NewRows(mockCols).AddRow(row...))
			},
			run: func(j *SQLite) error {
				rec, err := j.GetRealization("r1")
				if err != nil {
					return err
				}
				if rec.Seq != 4 || !rec.Realized.Equal(d("-0.20")) || !rec.Time.Equal(at) {
					return errors.New("decoded wrong record")
				}
				return nil
			},
		},
		{
			name: "list query fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM realizations`).WillReturnError(errors.New("no such table"))
			},
			run: func(j *SQLite) error {
				_, err := j.SummaryBetween("", at, at.Add(time.Hour))
				return err
			},
			want: "no such table",
		},
		{
			name: "list row error",
			setup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(mockCols).AddRow(row...).AddRow(row...).
					RowError(1, errors.New("database disk image is malformed"))
				mock.ExpectQuery(`SELECT .+ FROM realizations`).WillReturnRows(rows)
			},
			run: func(j *SQLite) error {
				_, err := j.ListRealizationsBetween("EUR_USD", at, at.Add(time.Hour))
				return err
			},
			want: "malformed",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			j, mock := newMockSQLite(t)
			tt.setup(mock)

			err := tt.run(j)
			if tt.want == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.want)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
