package middleware

import (
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
)

func TestCSRFExemptMethods(t *testing.T) {
	assert.True(t, CSRFExempt(fiber.MethodGet))
	assert.True(t, CSRFExempt(fiber.MethodHead))
	assert.True(t, CSRFExempt(fiber.MethodOptions))

	assert.False(t, CSRFExempt(fiber.MethodPost))
	assert.False(t, CSRFExempt(fiber.MethodPut))
	assert.False(t, CSRFExempt(fiber.MethodPatch))
	assert.False(t, CSRFExempt(fiber.MethodDelete))
}
