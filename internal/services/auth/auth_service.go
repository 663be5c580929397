package auth

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/sahilm2002/booze-and-books-sub002/internal/config"
	"github.com/sahilm2002/booze-and-books-sub002/internal/db"
	"github.com/sahilm2002/booze-and-books-sub002/internal/utils"
)

// AuthService – структура для обработки авторизации
type AuthService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewAuthService – конструктор AuthService
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
}

// TelegramAuthHandler проверяет initData, создает или обновляет
// пользователя и возвращает JWT вместе с CSRF токеном сессии
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	var payload struct {
		InitData string `json:"init_data"`
	}

	if err := c.Bind().Body(&payload); err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат данных")
	}

	// Проверяем initData
	expiration := 24 * time.Hour
	if err := initdata.Validate(payload.InitData, s.cfg.TelegramBotToken, expiration); err != nil {
		return utils.ErrorJSON(c, fiber.StatusUnauthorized, utils.CodeUnauthorized, "Невалидные данные Telegram")
	}

	// Парсим данные
	data, err := initdata.Parse(payload.InitData)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Ошибка разбора initData")
	}

	rawUser, err := json.Marshal(data.User)
	if err != nil {
		log.Printf("Ошибка сериализации данных Telegram: %v", err)
		rawUser = []byte("{}")
	}

	// Создаем или обновляем пользователя
	user, err := db.CreateOrUpdateTelegramUser(
		data.User.ID,
		data.User.Username,
		data.User.FirstName,
		data.User.LastName,
		data.User.PhotoURL,
		data.User.IsPremium,
		data.User.LanguageCode,
		rawUser,
	)
	if err != nil {
		log.Printf("Ошибка сохранения пользователя: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка сохранения пользователя")
	}

	// Генерируем JWT на внутренний ID пользователя
	jwtToken, err := s.jwtService.GenerateToken(user.ID.String())
	if err != nil {
		log.Printf("Ошибка генерации JWT: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка генерации токена")
	}

	// Новый CSRF токен на каждый вход
	csrfToken, err := utils.GenerateCSRFToken()
	if err != nil {
		log.Printf("Ошибка генерации CSRF токена: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка генерации токена")
	}

	ctx, cancel := db.GetContext()
	defer cancel()
	if err := db.RotateCSRFToken(ctx, user.ID, csrfToken); err != nil {
		log.Printf("Ошибка сохранения CSRF токена: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка сохранения токена")
	}

	return c.JSON(fiber.Map{
		"token":      jwtToken,
		"csrf_token": csrfToken,
		"user": fiber.Map{
			"id":         user.ID,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"username":   user.Username,
			"avatar_url": user.AvatarURL,
		},
	})
}
