package profile

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/sahilm2002/booze-and-books-sub002/internal/db"
	"github.com/sahilm2002/booze-and-books-sub002/internal/models"
	"github.com/sahilm2002/booze-and-books-sub002/internal/utils"
)

// fetchTimeout ограничивает каждый источник панели по отдельности
const fetchTimeout = 2 * time.Second

// DashboardData агрегирует данные главной панели пользователя
type DashboardData struct {
	Profile             *models.Profile `json:"profile"`
	RecentBooks         []models.Book   `json:"recent_books"`
	IncomingPending     int             `json:"incoming_pending"`
	OutgoingPending     int             `json:"outgoing_pending"`
	ActiveSwaps         int             `json:"active_swaps"`
	UnreadNotifications int             `json:"unread_notifications"`
}

// GetDashboard собирает панель из независимых источников параллельно.
// Источник, не успевший за свой таймаут, отдаёт пустое значение и не
// задерживает остальные.
func (s *ProfileService) GetDashboard(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	data := DashboardData{RecentBooks: []models.Book{}}
	var wg sync.WaitGroup

	wg.Add(4)

	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		p, err := queryProfile(ctx, userUUID)
		if err != nil {
			log.Printf("Панель: ошибка загрузки профиля: %v", err)
			return
		}
		data.Profile = p
	}()

	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		rows, err := db.Pool.Query(ctx, `
            SELECT id, owner_id, title, author, COALESCE(description, ''), condition,
                   COALESCE(cover_url, ''), COALESCE(google_books_id, ''), is_available,
                   created_at, updated_at
            FROM books
            WHERE owner_id = $1
            ORDER BY created_at DESC
            LIMIT 5
        `, userUUID)
		if err != nil {
			log.Printf("Панель: ошибка загрузки книг: %v", err)
			return
		}
		defer rows.Close()

		books := []models.Book{}
		for rows.Next() {
			var b models.Book
			if err := rows.Scan(
				&b.ID, &b.OwnerID, &b.Title, &b.Author, &b.Description, &b.Condition,
				&b.CoverURL, &b.GoogleBooksID, &b.IsAvailable, &b.CreatedAt, &b.UpdatedAt,
			); err != nil {
				log.Printf("Панель: ошибка сканирования книги: %v", err)
				continue
			}
			books = append(books, b)
		}
		data.RecentBooks = books
	}()

	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		err := db.Pool.QueryRow(ctx, `
            SELECT COUNT(*) FILTER (WHERE owner_id = $1 AND status = 'pending'),
                   COUNT(*) FILTER (WHERE requester_id = $1 AND status = 'pending'),
                   COUNT(*) FILTER (WHERE status = 'accepted' AND (owner_id = $1 OR requester_id = $1))
            FROM swap_requests
            WHERE owner_id = $1 OR requester_id = $1
        `, userUUID).Scan(&data.IncomingPending, &data.OutgoingPending, &data.ActiveSwaps)
		if err != nil {
			log.Printf("Панель: ошибка загрузки счётчиков обменов: %v", err)
		}
	}()

	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		err := db.Pool.QueryRow(ctx, `
            SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false
        `, userUUID).Scan(&data.UnreadNotifications)
		if err != nil {
			log.Printf("Панель: ошибка загрузки счётчика уведомлений: %v", err)
		}
	}()

	wg.Wait()

	return c.JSON(fiber.Map{
		"dashboard": data,
		"success":   true,
	})
}
