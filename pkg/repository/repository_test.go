package repository_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kiranakit/reconcile/pkg/repository"
)

var (
	errEntryNotFound  = errors.New("catalog entry not found")
	errEntryDuplicate = errors.New("catalog entry already exists")
)

func TestMapError(t *testing.T) {
	passthrough := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows maps to not found", sql.ErrNoRows, errEntryNotFound},
		{"unique violation maps to duplicate", &pgconn.PgError{Code: "23505"}, errEntryDuplicate},
		{"other errors pass through", passthrough, passthrough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repository.MapError(tt.err, errEntryNotFound, errEntryDuplicate)

			if tt.want == nil {
				if got != nil {
					t.Errorf("MapError = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("MapError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapErrorForeignKeyPassesThrough(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503"}
	if got := repository.MapError(pgErr, errEntryNotFound, errEntryDuplicate); got != pgErr {
		t.Errorf("MapError(23503) = %v, want passthrough", got)
	}
}
