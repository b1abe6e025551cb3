package pg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/pg"
)

func TestErrorClassifiers(t *testing.T) {
	t.Parallel()

	duplicate := fmt.Errorf("insert delivery: %w", &pgconn.PgError{Code: "23505"})
	foreignKey := &pgconn.PgError{Code: "23503"}

	assert.True(t, pg.IsNotFoundError(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(nil))
	assert.False(t, pg.IsNotFoundError(errors.New("other")))

	assert.True(t, pg.IsDuplicateKeyError(duplicate))
	assert.False(t, pg.IsDuplicateKeyError(foreignKey))
	assert.False(t, pg.IsDuplicateKeyError(nil))

	assert.True(t, pg.IsForeignKeyViolationError(foreignKey))
	assert.False(t, pg.IsForeignKeyViolationError(duplicate))
}
