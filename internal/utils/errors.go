package utils

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgconn"
)

// Коды ошибок API. Каждый ответ с ошибкой несёт стабильную форму:
// {"error": сообщение, "code": код, "fields": [...]}
const (
	CodeUnauthorized = "unauthorized"
	CodeInvalidInput = "invalid_input"
	CodeConflict     = "conflict"
	CodeRateLimited  = "rate_limited"
	CodeNotFound     = "not_found"
	CodeInternal     = "internal"
)

// FieldError описывает ошибку валидации конкретного поля
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorJSON отправляет ошибку в стабильной форме
func ErrorJSON(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

// FieldErrorsJSON отправляет ошибку валидации со списком полей
func FieldErrorsJSON(c fiber.Ctx, message string, fields []FieldError) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  message,
		"code":   CodeInvalidInput,
		"fields": fields,
	})
}

// IsUniqueViolation проверяет, является ли ошибка нарушением уникального
// ограничения Postgres (код 23505) — такие ошибки маппятся в Conflict
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
