package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/sahilm2002/booze-and-books-sub002/internal/db"
	"github.com/sahilm2002/booze-and-books-sub002/internal/models"
)

// ReminderRow — одна пара «получатель, обмен» из выборки напоминаний
type ReminderRow struct {
	UserID uuid.UUID
	SwapID uuid.UUID
}

// ReminderCategory описывает одну категорию ежедневных напоминаний
type ReminderCategory struct {
	Type    models.NotificationType
	Title   string
	Message string // шаблон с %d для количества
	Query   string
}

// Категории свипа: владельцы с ожидающими запросами, запрашивающие со
// встречными предложениями, обе стороны принятых, но не завершённых обменов
var reminderCategories = []ReminderCategory{
	{
		Type:    models.NotificationDailyReminderPending,
		Title:   "Запросы ждут вашего ответа",
		Message: "У вас %d ожидающих запросов на обмен",
		Query: `
            SELECT owner_id, id FROM swap_requests
            WHERE status = 'pending' AND counter_offer_book_id IS NULL
        `,
	},
	{
		Type:    models.NotificationDailyReminderCounter,
		Title:   "Встречные предложения ждут ответа",
		Message: "У вас %d встречных предложений по обмену",
		Query: `
            SELECT requester_id, id FROM swap_requests
            WHERE status = 'pending' AND counter_offer_book_id IS NOT NULL
        `,
	},
	{
		Type:    models.NotificationDailyReminderUnfinished,
		Title:   "Не забудьте завершить обмен",
		Message: "У вас %d принятых, но не завершённых обменов",
		Query: `
            SELECT requester_id, id FROM swap_requests WHERE status = 'accepted'
            UNION ALL
            SELECT owner_id, id FROM swap_requests WHERE status = 'accepted'
        `,
	},
}

// SweepStats — результат одного свипа напоминаний
type SweepStats struct {
	Users      int            `json:"users"`
	Sent       int            `json:"sent"`
	Failed     int            `json:"failed"`
	ByCategory map[string]int `json:"by_category"`
}

// BuildReminderBatches группирует строки по получателю: одно уведомление
// на пользователя с количеством и списком ID обменов, а не по уведомлению
// на каждый обмен
func BuildReminderBatches(rows []ReminderRow) map[uuid.UUID][]uuid.UUID {
	batches := make(map[uuid.UUID][]uuid.UUID)
	for _, row := range rows {
		batches[row.UserID] = append(batches[row.UserID], row.SwapID)
	}
	return batches
}

// sendCategory рассылает напоминания одной категории. Ошибка доставки
// одному получателю логируется и учитывается, остальные продолжают
// обрабатываться.
func (d *Dispatcher) sendCategory(ctx context.Context, cat ReminderCategory,
	rows []ReminderRow, dryRun bool, stats *SweepStats) {

	batches := BuildReminderBatches(rows)

	// Детерминированный порядок обхода для воспроизводимых логов
	userIDs := make([]uuid.UUID, 0, len(batches))
	for userID := range batches {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool {
		return userIDs[i].String() < userIDs[j].String()
	})

	for _, userID := range userIDs {
		swapIDs := batches[userID]
		stats.ByCategory[string(cat.Type)]++

		if dryRun {
			continue
		}

		data, err := json.Marshal(models.ReminderNotificationData{
			Count:   len(swapIDs),
			SwapIDs: swapIDs,
		})
		if err != nil {
			LogDispatchError(userID, err)
			stats.Failed++
			continue
		}

		err = d.Dispatch(ctx, &models.Notification{
			UserID:  userID,
			Type:    cat.Type,
			Title:   cat.Title,
			Message: fmt.Sprintf(cat.Message, len(swapIDs)),
			Data:    data,
		})
		if err != nil {
			LogDispatchError(userID, err)
			stats.Failed++
			continue
		}
		stats.Sent++
	}
}

// RunDailyReminders выполняет свип ежедневных напоминаний по всем категориям.
// При dryRun возвращается только статистика, без отправки.
func (d *Dispatcher) RunDailyReminders(ctx context.Context, dryRun bool) (*SweepStats, error) {
	stats := &SweepStats{ByCategory: make(map[string]int)}
	seenUsers := make(map[uuid.UUID]bool)

	for _, cat := range reminderCategories {
		rows, err := queryReminderRows(ctx, cat.Query)
		if err != nil {
			return nil, fmt.Errorf("ошибка выборки категории %s: %w", cat.Type, err)
		}

		for _, row := range rows {
			seenUsers[row.UserID] = true
		}

		d.sendCategory(ctx, cat, rows, dryRun, stats)
	}

	stats.Users = len(seenUsers)
	log.Printf("✅ Свип напоминаний завершен: пользователей %d, отправлено %d, ошибок %d",
		stats.Users, stats.Sent, stats.Failed)
	return stats, nil
}

// queryReminderRows выполняет запрос категории и собирает пары получатель/обмен
func queryReminderRows(ctx context.Context, query string) ([]ReminderRow, error) {
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ReminderRow
	for rows.Next() {
		var row ReminderRow
		if err := rows.Scan(&row.UserID, &row.SwapID); err != nil {
			log.Printf("Ошибка сканирования строки напоминания: %v", err)
			continue
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
