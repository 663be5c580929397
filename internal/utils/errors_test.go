package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

// Нарушение уникального индекса распознаётся и в обёрнутой ошибке;
// прочие коды и обычные ошибки не считаются конфликтом
func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "swap_requests_book_requester_active_idx"}
	assert.True(t, IsUniqueViolation(unique))
	assert.True(t, IsUniqueViolation(fmt.Errorf("ошибка вставки: %w", unique)))

	foreignKey := &pgconn.PgError{Code: "23503"}
	assert.False(t, IsUniqueViolation(foreignKey))
	assert.False(t, IsUniqueViolation(errors.New("ошибка сети")))
	assert.False(t, IsUniqueViolation(nil))
}
