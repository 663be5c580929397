package middleware

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/sahilm2002/booze-and-books-sub002/internal/utils"
)

// CSRFTokenLookup возвращает сохранённый токен сессии пользователя
type CSRFTokenLookup func(ctx context.Context, userID uuid.UUID) (string, error)

// ExtractCSRFToken достаёт токен из заголовка или поля формы
func ExtractCSRFToken(c fiber.Ctx) string {
	if token := c.Get("X-CSRF-Token"); token != "" {
		return token
	}
	return c.FormValue("csrf_token")
}

// CSRFExempt сообщает, освобождён ли метод от проверки CSRF
func CSRFExempt(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return true
	}
	return false
}

// CSRFMiddleware проверяет CSRF токен на всех изменяющих запросах.
// Сравнение выполняется за постоянное время, чтобы не раскрывать
// длину совпадающего префикса по времени ответа.
func CSRFMiddleware(lookup CSRFTokenLookup) fiber.Handler {
	return func(c fiber.Ctx) error {
		if CSRFExempt(c.Method()) {
			return c.Next()
		}

		userID, _ := c.Locals("userID").(string)
		userUUID, err := uuid.Parse(userID)
		if err != nil {
			return utils.ErrorJSON(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "Пользователь не авторизован")
		}

		token := ExtractCSRFToken(c)
		if token == "" {
			return utils.ErrorJSON(c, fiber.StatusForbidden, utils.CodeInvalidInput, "Отсутствует CSRF токен")
		}

		stored, err := lookup(c.Context(), userUUID)
		if err != nil {
			log.Printf("Ошибка чтения CSRF токена: %v", err)
			return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка проверки CSRF токена")
		}

		if stored == "" || !utils.SecureCompare(token, stored) {
			return utils.ErrorJSON(c, fiber.StatusForbidden, utils.CodeInvalidInput, "Неверный CSRF токен")
		}

		return c.Next()
	}
}
