package main

import (
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/sahilm2002/booze-and-books-sub002/internal/config"
	"github.com/sahilm2002/booze-and-books-sub002/internal/db"
	"github.com/sahilm2002/booze-and-books-sub002/internal/middleware"
	"github.com/sahilm2002/booze-and-books-sub002/internal/services/auth"
	"github.com/sahilm2002/booze-and-books-sub002/internal/services/book"
	"github.com/sahilm2002/booze-and-books-sub002/internal/services/chat"
	"github.com/sahilm2002/booze-and-books-sub002/internal/services/notification"
	"github.com/sahilm2002/booze-and-books-sub002/internal/services/profile"
	"github.com/sahilm2002/booze-and-books-sub002/internal/services/swap"
	"github.com/sahilm2002/booze-and-books-sub002/internal/sse"
	"github.com/sahilm2002/booze-and-books-sub002/internal/utils"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	// Инициализируем базу данных
	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer db.CloseDB()

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "BookSwap API",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-CSRF-Token"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	// Общая инфраструктура: SSE-хаб и диспетчер уведомлений
	hub := sse.NewHub()
	dispatcher := notification.NewDispatcher(&notification.PgCreator{}, hub)

	// Middleware границы API
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	authMiddleware := middleware.AuthMiddleware(jwtService)
	csrfMiddleware := middleware.CSRFMiddleware(db.GetCSRFToken)
	readLimiter := middleware.NewRateLimiter(cfg.RateLimitConfig.GeneralLimit, cfg.RateLimitConfig.GeneralWindow).Middleware()
	mutationLimiter := middleware.NewRateLimiter(cfg.RateLimitConfig.MutationLimit, cfg.RateLimitConfig.MutationWindow).Middleware()

	// Создаём сервисы
	authService := auth.NewAuthService(cfg)
	bookService := book.NewBookService(cfg)
	swapService := swap.NewSwapService(cfg, dispatcher)
	chatService := chat.NewChatService(cfg, dispatcher)
	notificationService := notification.NewNotificationService(cfg, dispatcher, hub)
	profileService, err := profile.NewProfileService(cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации сервиса профилей: %v", err)
	}

	// Регистрируем маршруты
	authService.SetupRoutes(app, mutationLimiter)
	bookService.SetupRoutes(app, authMiddleware, csrfMiddleware, readLimiter, mutationLimiter)
	swapService.SetupRoutes(app, authMiddleware, csrfMiddleware, readLimiter, mutationLimiter)
	chatService.SetupRoutes(app, authMiddleware, csrfMiddleware, readLimiter, mutationLimiter)
	notificationService.SetupRoutes(app, authMiddleware, csrfMiddleware, readLimiter, mutationLimiter)
	profileService.SetupRoutes(app, authMiddleware, csrfMiddleware, readLimiter, mutationLimiter)

	// Запускаем сервер
	log.Println("✅ BookSwap API запущен на порту 8080")
	log.Fatal(app.Listen(":8080"))
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Проверяем, является ли ошибка из Fiber
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Отправляем ошибку в JSON
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
