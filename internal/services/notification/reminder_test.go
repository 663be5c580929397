package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilm2002/booze-and-books-sub002/internal/models"
)

// fakeCreator собирает уведомления в память и умеет падать на выбранных получателях
type fakeCreator struct {
	created []*models.Notification
	failFor map[uuid.UUID]bool
}

func (f *fakeCreator) CreateNotification(_ context.Context, n *models.Notification) error {
	if f.failFor[n.UserID] {
		return errors.New("ошибка записи")
	}
	f.created = append(f.created, n)
	return nil
}

func TestBuildReminderBatches(t *testing.T) {
	userA, userB := uuid.New(), uuid.New()
	swap1, swap2, swap3 := uuid.New(), uuid.New(), uuid.New()

	batches := BuildReminderBatches([]ReminderRow{
		{UserID: userA, SwapID: swap1},
		{UserID: userA, SwapID: swap2},
		{UserID: userB, SwapID: swap3},
	})

	require.Len(t, batches, 2)
	assert.ElementsMatch(t, []uuid.UUID{swap1, swap2}, batches[userA])
	assert.ElementsMatch(t, []uuid.UUID{swap3}, batches[userB])
}

// Три пользователя с одним ожидающим обменом каждый — ровно три уведомления,
// по одному на пользователя, каждое со своим ID обмена
func TestSendCategoryOnePerUser(t *testing.T) {
	creator := &fakeCreator{}
	d := NewDispatcher(creator, nil)

	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	swaps := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	rows := make([]ReminderRow, 3)
	for i := range users {
		rows[i] = ReminderRow{UserID: users[i], SwapID: swaps[i]}
	}

	stats := &SweepStats{ByCategory: make(map[string]int)}
	d.sendCategory(context.Background(), reminderCategories[0], rows, false, stats)

	require.Len(t, creator.created, 3)
	assert.Equal(t, 3, stats.Sent)
	assert.Equal(t, 0, stats.Failed)

	byUser := make(map[uuid.UUID]*models.Notification)
	for _, n := range creator.created {
		assert.Equal(t, models.NotificationDailyReminderPending, n.Type)
		byUser[n.UserID] = n
	}
	require.Len(t, byUser, 3)

	for i, userID := range users {
		n := byUser[userID]
		require.NotNil(t, n, "пользователь %s без уведомления", userID)

		var data models.ReminderNotificationData
		require.NoError(t, json.Unmarshal(n.Data, &data))
		assert.Equal(t, 1, data.Count)
		assert.Equal(t, []uuid.UUID{swaps[i]}, data.SwapIDs)
	}
}

// Несколько обменов одного пользователя сворачиваются в одно уведомление
func TestSendCategoryBatchesPerUser(t *testing.T) {
	creator := &fakeCreator{}
	d := NewDispatcher(creator, nil)

	user := uuid.New()
	rows := []ReminderRow{
		{UserID: user, SwapID: uuid.New()},
		{UserID: user, SwapID: uuid.New()},
		{UserID: user, SwapID: uuid.New()},
	}

	stats := &SweepStats{ByCategory: make(map[string]int)}
	d.sendCategory(context.Background(), reminderCategories[2], rows, false, stats)

	require.Len(t, creator.created, 1)

	var data models.ReminderNotificationData
	require.NoError(t, json.Unmarshal(creator.created[0].Data, &data))
	assert.Equal(t, 3, data.Count)
	assert.Len(t, data.SwapIDs, 3)
}

// Ошибка доставки одному получателю не прерывает обработку остальных
func TestSendCategoryPartialFailure(t *testing.T) {
	badUser := uuid.New()
	creator := &fakeCreator{failFor: map[uuid.UUID]bool{badUser: true}}
	d := NewDispatcher(creator, nil)

	rows := []ReminderRow{
		{UserID: uuid.New(), SwapID: uuid.New()},
		{UserID: badUser, SwapID: uuid.New()},
		{UserID: uuid.New(), SwapID: uuid.New()},
	}

	stats := &SweepStats{ByCategory: make(map[string]int)}
	d.sendCategory(context.Background(), reminderCategories[0], rows, false, stats)

	assert.Equal(t, 2, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
	assert.Len(t, creator.created, 2)
	for _, n := range creator.created {
		assert.NotEqual(t, badUser, n.UserID)
	}
}

// При dryRun статистика считается, но ничего не отправляется
func TestSendCategoryDryRun(t *testing.T) {
	creator := &fakeCreator{}
	d := NewDispatcher(creator, nil)

	rows := []ReminderRow{{UserID: uuid.New(), SwapID: uuid.New()}}

	stats := &SweepStats{ByCategory: make(map[string]int)}
	d.sendCategory(context.Background(), reminderCategories[0], rows, true, stats)

	assert.Empty(t, creator.created)
	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.ByCategory[string(models.NotificationDailyReminderPending)])
}

func TestDispatchSwapEventUnknownType(t *testing.T) {
	d := NewDispatcher(&fakeCreator{}, nil)
	err := d.DispatchSwapEvent(context.Background(), models.NotificationChatMessage,
		uuid.New(), &models.SwapRequest{}, "книга")
	assert.Error(t, err)
}

// Превью длинного кириллического сообщения усекается по границе руны
// и остаётся валидным UTF-8
func TestDispatchChatMessagePreviewRuneBoundary(t *testing.T) {
	creator := &fakeCreator{}
	d := NewDispatcher(creator, nil)

	// 100 двухбайтовых рун: 200 байт, граница 80 попадает в середину руны
	long := strings.Repeat("ы", 100)

	require.NoError(t, d.DispatchChatMessage(context.Background(),
		uuid.New(), uuid.New(), uuid.New(), "Анна", long))

	require.Len(t, creator.created, 1)
	preview := creator.created[0].Message
	assert.LessOrEqual(t, len(preview), 80)
	assert.True(t, utf8.ValidString(preview), "превью содержит невалидный UTF-8")
	assert.NotEmpty(t, preview)
}

// Короткое сообщение не усекается
func TestDispatchChatMessageShortPreview(t *testing.T) {
	creator := &fakeCreator{}
	d := NewDispatcher(creator, nil)

	require.NoError(t, d.DispatchChatMessage(context.Background(),
		uuid.New(), uuid.New(), uuid.New(), "Анна", "привет"))

	require.Len(t, creator.created, 1)
	assert.Equal(t, "привет", creator.created[0].Message)
}
