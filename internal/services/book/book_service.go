package book

import (
	"context"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sahilm2002/booze-and-books-sub002/internal/config"
	"github.com/sahilm2002/booze-and-books-sub002/internal/db"
	"github.com/sahilm2002/booze-and-books-sub002/internal/models"
	"github.com/sahilm2002/booze-and-books-sub002/internal/utils"
)

// BookService представляет сервис для работы с каталогом книг
type BookService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewBookService создает новый экземпляр BookService
func NewBookService(cfg *config.Config) *BookService {
	return &BookService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
}

// CreateBook обрабатывает добавление новой книги в каталог
func (s *BookService) CreateBook(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	var requestData models.BookCreateRequest
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат данных")
	}

	// Структурная валидация до обращения к базе
	if fields := utils.ValidateStruct(requestData); fields != nil {
		return utils.FieldErrorsJSON(c, "Ошибка валидации книги", fields)
	}

	if requestData.Condition == "" {
		requestData.Condition = "good"
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	bookID := uuid.New()

	var book models.Book
	err = db.Pool.QueryRow(ctx, `
        INSERT INTO books (id, owner_id, title, author, description, genre, condition, google_books_id, cover_url, is_available)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, true)
        RETURNING id, owner_id, title, author, COALESCE(description, ''), COALESCE(genre, ''),
                  condition, COALESCE(google_books_id, ''), COALESCE(cover_url, ''), is_available, created_at, updated_at
    `, bookID, userUUID, requestData.Title, requestData.Author, requestData.Description,
		requestData.Genre, requestData.Condition, requestData.GoogleBooksID, requestData.CoverURL).Scan(
		&book.ID, &book.OwnerID, &book.Title, &book.Author, &book.Description, &book.Genre,
		&book.Condition, &book.GoogleBooksID, &book.CoverURL, &book.IsAvailable, &book.CreatedAt, &book.UpdatedAt,
	)

	if err != nil {
		// Дубликат внешнего каталожного ID маппится в конфликт
		if utils.IsUniqueViolation(err) {
			return utils.ErrorJSON(c, fiber.StatusConflict, utils.CodeConflict, "Книга с таким каталожным ID уже добавлена")
		}
		log.Printf("Ошибка вставки книги: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка сохранения книги")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"book":    book,
		"success": true,
	})
}

// GetBooks возвращает список книг с фильтрацией и пагинацией.
// Параметры: userId — книги конкретного владельца, includeOwner — добавить
// данные владельца, limit/offset — пагинация.
func (s *BookService) GetBooks(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	includeOwner := c.Query("includeOwner", "false") == "true"

	ctx, cancel := db.GetContext()
	defer cancel()

	var rows pgx.Rows
	var err error

	if ownerFilter := c.Query("userId"); ownerFilter != "" {
		ownerUUID, parseErr := uuid.Parse(ownerFilter)
		if parseErr != nil {
			return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат userId")
		}
		rows, err = db.Pool.Query(ctx, `
            SELECT id, owner_id, title, author, COALESCE(description, ''), COALESCE(genre, ''),
                   condition, COALESCE(google_books_id, ''), COALESCE(cover_url, ''), is_available, created_at, updated_at
            FROM books
            WHERE owner_id = $1
            ORDER BY created_at DESC
            LIMIT $2 OFFSET $3
        `, ownerUUID, limit, offset)
	} else {
		rows, err = db.Pool.Query(ctx, `
            SELECT id, owner_id, title, author, COALESCE(description, ''), COALESCE(genre, ''),
                   condition, COALESCE(google_books_id, ''), COALESCE(cover_url, ''), is_available, created_at, updated_at
            FROM books
            WHERE is_available = true
            ORDER BY created_at DESC
            LIMIT $1 OFFSET $2
        `, limit, offset)
	}

	if err != nil {
		log.Printf("Ошибка запроса книг: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения книг")
	}
	defer rows.Close()

	books := []models.Book{}
	for rows.Next() {
		var book models.Book
		if err := rows.Scan(
			&book.ID, &book.OwnerID, &book.Title, &book.Author, &book.Description, &book.Genre,
			&book.Condition, &book.GoogleBooksID, &book.CoverURL, &book.IsAvailable, &book.CreatedAt, &book.UpdatedAt,
		); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}

		if includeOwner {
			book.Owner = GetUserInfo(ctx, book.OwnerID)
		}
		books = append(books, book)
	}

	return c.JSON(fiber.Map{
		"books":   books,
		"success": true,
	})
}

// GetBook возвращает одну книгу по ID
func (s *BookService) GetBook(c fiber.Ctx) error {
	bookUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID книги")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	book, err := GetBookByID(ctx, bookUUID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return utils.ErrorJSON(c, fiber.StatusNotFound, utils.CodeNotFound, "Книга не найдена")
		}
		log.Printf("Ошибка запроса книги: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения книги")
	}

	book.Owner = GetUserInfo(ctx, book.OwnerID)

	return c.JSON(fiber.Map{
		"book":    book,
		"success": true,
	})
}

// UpdateBook обновляет книгу. Разрешено только владельцу.
func (s *BookService) UpdateBook(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	bookUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID книги")
	}

	var requestData models.BookUpdateRequest
	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат данных")
	}

	if fields := utils.ValidateStruct(requestData); fields != nil {
		return utils.FieldErrorsJSON(c, "Ошибка валидации книги", fields)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	book, err := GetBookByID(ctx, bookUUID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return utils.ErrorJSON(c, fiber.StatusNotFound, utils.CodeNotFound, "Книга не найдена")
		}
		log.Printf("Ошибка запроса книги: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения книги")
	}

	if book.OwnerID != userUUID {
		return utils.ErrorJSON(c, fiber.StatusForbidden, utils.CodeUnauthorized, "Вы не можете изменить чужую книгу")
	}

	// Применяем только переданные поля
	if requestData.Title != nil {
		book.Title = *requestData.Title
	}
	if requestData.Author != nil {
		book.Author = *requestData.Author
	}
	if requestData.Description != nil {
		book.Description = *requestData.Description
	}
	if requestData.Genre != nil {
		book.Genre = *requestData.Genre
	}
	if requestData.Condition != nil {
		book.Condition = *requestData.Condition
	}
	if requestData.CoverURL != nil {
		book.CoverURL = *requestData.CoverURL
	}
	if requestData.IsAvailable != nil {
		book.IsAvailable = *requestData.IsAvailable
	}

	_, err = db.Pool.Exec(ctx, `
        UPDATE books
        SET title = $1, author = $2, description = $3, genre = $4, condition = $5,
            cover_url = $6, is_available = $7, updated_at = NOW()
        WHERE id = $8
    `, book.Title, book.Author, book.Description, book.Genre, book.Condition,
		book.CoverURL, book.IsAvailable, bookUUID)

	if err != nil {
		log.Printf("Ошибка обновления книги: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка обновления книги")
	}

	return c.JSON(fiber.Map{
		"book":    book,
		"success": true,
	})
}

// DeleteBook удаляет книгу владельца, если по ней нет активных обменов
func (s *BookService) DeleteBook(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	bookUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID книги")
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var ownerID uuid.UUID
	err = db.Pool.QueryRow(ctx, `SELECT owner_id FROM books WHERE id = $1`, bookUUID).Scan(&ownerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return utils.ErrorJSON(c, fiber.StatusNotFound, utils.CodeNotFound, "Книга не найдена")
		}
		log.Printf("Ошибка запроса книги: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения книги")
	}

	if ownerID != userUUID {
		return utils.ErrorJSON(c, fiber.StatusForbidden, utils.CodeUnauthorized, "Вы не можете удалить чужую книгу")
	}

	// Книга с активным обменом не удаляется
	var activeSwaps int
	err = db.Pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM swap_requests
        WHERE book_id = $1 AND status IN ('pending', 'accepted')
    `, bookUUID).Scan(&activeSwaps)
	if err != nil {
		log.Printf("Ошибка проверки активных обменов: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка проверки обменов")
	}

	if activeSwaps > 0 {
		return utils.ErrorJSON(c, fiber.StatusConflict, utils.CodeConflict, "По книге есть активный обмен, удаление невозможно")
	}

	_, err = db.Pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, bookUUID)
	if err != nil {
		log.Printf("Ошибка удаления книги: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка удаления книги")
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetBookByID получает книгу по ID
func GetBookByID(ctx context.Context, bookID uuid.UUID) (*models.Book, error) {
	var book models.Book
	err := db.Pool.QueryRow(ctx, `
        SELECT id, owner_id, title, author, COALESCE(description, ''), COALESCE(genre, ''),
               condition, COALESCE(google_books_id, ''), COALESCE(cover_url, ''), is_available, created_at, updated_at
        FROM books
        WHERE id = $1
    `, bookID).Scan(
		&book.ID, &book.OwnerID, &book.Title, &book.Author, &book.Description, &book.Genre,
		&book.Condition, &book.GoogleBooksID, &book.CoverURL, &book.IsAvailable, &book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetUserInfo получает информацию о пользователе
func GetUserInfo(ctx context.Context, userID uuid.UUID) *models.User {
	var user models.User
	err := db.Pool.QueryRow(ctx, `
        SELECT id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(avatar_url, '')
        FROM users
        WHERE id = $1
    `, userID).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.AvatarURL,
	)

	if err != nil {
		log.Printf("Ошибка получения пользователя %s: %v", userID, err)
		return nil
	}

	return &user
}
