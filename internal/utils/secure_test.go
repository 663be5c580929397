package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCSRFToken(t *testing.T) {
	a, err := GenerateCSRFToken()
	require.NoError(t, err)
	b, err := GenerateCSRFToken()
	require.NoError(t, err)

	// Фиксированная длина: 32 байта в hex
	assert.Len(t, a, CSRFTokenLength*2)
	assert.Len(t, b, CSRFTokenLength*2)
	assert.NotEqual(t, a, b)
}

func TestSecureCompare(t *testing.T) {
	token, err := GenerateCSRFToken()
	require.NoError(t, err)

	assert.True(t, SecureCompare(token, token))
	assert.False(t, SecureCompare(token, ""))

	// Разная длина отклоняется сразу, без посимвольного прохода
	assert.False(t, SecureCompare(token, token[:len(token)-1]))

	// Одинаковая длина, расхождение в разных позициях — всегда false
	head := "x" + token[1:]
	tail := token[:len(token)-1] + "x"
	assert.False(t, SecureCompare(token, head))
	assert.False(t, SecureCompare(token, tail))
}

func TestValidateStructFieldErrors(t *testing.T) {
	type req struct {
		Title  string `validate:"required,max=10"`
		Rating int    `validate:"omitempty,gte=1,lte=5"`
	}

	assert.Nil(t, ValidateStruct(req{Title: "ок", Rating: 3}))

	fields := ValidateStruct(req{Title: "", Rating: 9})
	require.Len(t, fields, 2)
	assert.Equal(t, "title", fields[0].Field)
	assert.Equal(t, "rating", fields[1].Field)
}
