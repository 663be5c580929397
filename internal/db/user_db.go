package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User представляет пользователя в системе
type User struct {
	ID             uuid.UUID
	Username       string
	FirstName      string
	LastName       string
	Bio            string
	AvatarURL      string
	AvatarPublicID string
	CSRFToken      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastLoginAt    time.Time
	IsActive       bool
}

// CreateOrUpdateTelegramUser создает нового пользователя через Telegram или обновляет существующего
func CreateOrUpdateTelegramUser(telegramID int64, username, firstName, lastName, photoURL string,
	isPremium bool, languageCode string, rawData []byte) (*User, error) {
	ctx, cancel := GetContext()
	defer cancel()

	// Начинаем транзакцию
	tx, err := Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Проверяем, существует ли пользователь Telegram
	var userID uuid.UUID

	err = tx.QueryRow(ctx, `
		SELECT user_id FROM telegram_users WHERE telegram_id = $1
	`, telegramID).Scan(&userID)

	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("ошибка при проверке существования пользователя Telegram: %w", err)
	}

	if err == pgx.ErrNoRows {
		// Создаем запись в users
		err = tx.QueryRow(ctx, `
			INSERT INTO users (first_name, last_name, username, avatar_url, last_login_at)
			VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
			RETURNING id
		`, firstName, lastName, username, photoURL).Scan(&userID)

		if err != nil {
			return nil, fmt.Errorf("ошибка при создании пользователя: %w", err)
		}

		// Создаем запись в telegram_users
		_, err = tx.Exec(ctx, `
			INSERT INTO telegram_users (user_id, telegram_id, username, first_name, last_name, photo_url, is_premium, language_code, raw_data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, userID, telegramID, username, firstName, lastName, photoURL, isPremium, languageCode, rawData)

		if err != nil {
			return nil, fmt.Errorf("ошибка при создании Telegram пользователя: %w", err)
		}
	} else {
		// Обновляем данные существующего пользователя
		_, err = tx.Exec(ctx, `
			UPDATE users
			SET first_name = $1, last_name = $2, username = $3, last_login_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
			WHERE id = $4
		`, firstName, lastName, username, userID)

		if err != nil {
			return nil, fmt.Errorf("ошибка при обновлении пользователя: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE telegram_users
			SET username = $1, first_name = $2, last_name = $3, photo_url = $4, is_premium = $5, language_code = $6, raw_data = $7, updated_at = CURRENT_TIMESTAMP
			WHERE telegram_id = $8
		`, username, firstName, lastName, photoURL, isPremium, languageCode, rawData, telegramID)

		if err != nil {
			return nil, fmt.Errorf("ошибка при обновлении Telegram пользователя: %w", err)
		}
	}

	var user User
	err = tx.QueryRow(ctx, `
		SELECT id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
		       COALESCE(bio, ''), COALESCE(avatar_url, ''), COALESCE(avatar_public_id, ''),
		       created_at, updated_at, last_login_at, is_active
		FROM users WHERE id = $1
	`, userID).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName,
		&user.Bio, &user.AvatarURL, &user.AvatarPublicID,
		&user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt, &user.IsActive,
	)

	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении пользователя: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	return &user, nil
}

// RotateCSRFToken сохраняет новый CSRF токен сессии пользователя
func RotateCSRFToken(ctx context.Context, userID uuid.UUID, token string) error {
	_, err := Pool.Exec(ctx, `
		UPDATE users SET csrf_token = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2
	`, token, userID)
	if err != nil {
		return fmt.Errorf("ошибка при сохранении CSRF токена: %w", err)
	}
	return nil
}

// GetCSRFToken возвращает сохранённый CSRF токен пользователя
func GetCSRFToken(ctx context.Context, userID uuid.UUID) (string, error) {
	var token string
	err := Pool.QueryRow(ctx, `
		SELECT COALESCE(csrf_token, '') FROM users WHERE id = $1
	`, userID).Scan(&token)
	if err != nil {
		return "", fmt.Errorf("ошибка при чтении CSRF токена: %w", err)
	}
	return token, nil
}
