package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/sahilm2002/booze-and-books-sub002/internal/utils"
)

// AuthMiddleware создаёт middleware для проверки JWT
func AuthMiddleware(jwtService *utils.JWTService) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return utils.ErrorJSON(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "Отсутствует заголовок авторизации")
		}

		// Проверяем Bearer токен
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return utils.ErrorJSON(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "Неверный формат заголовка авторизации")
		}

		tokenString := parts[1]
		userID, err := jwtService.ExtractUserID(tokenString)
		if err != nil {
			return utils.ErrorJSON(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "Невалидный или истёкший токен")
		}

		// Проверяем, что userID является валидным UUID
		_, err = uuid.Parse(userID)
		if err != nil {
			return utils.ErrorJSON(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "Неверный ID пользователя")
		}

		// Добавляем userID в контекст
		c.Locals("userID", userID)

		return c.Next()
	}
}
