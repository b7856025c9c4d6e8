package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "record not found", err: gorm.ErrRecordNotFound, want: ErrNotFound},
		{name: "wrapped not found", err: fmt.Errorf("query: %w", gorm.ErrRecordNotFound), want: ErrNotFound},
		{name: "duplicated key", err: gorm.ErrDuplicatedKey, want: ErrConflict},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505", Message: "duplicate key value"}, want: ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		other := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
		got := translateError(other)
		assert.False(t, errors.Is(got, ErrConflict))
		assert.False(t, errors.Is(got, ErrNotFound))
		assert.Equal(t, other, got)
	})
}
