package profile

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sahilm2002/booze-and-books-sub002/internal/config"
	"github.com/sahilm2002/booze-and-books-sub002/internal/db"
	"github.com/sahilm2002/booze-and-books-sub002/internal/models"
	"github.com/sahilm2002/booze-and-books-sub002/internal/utils"
)

// ProfileService представляет сервис профилей пользователей
type ProfileService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	cld        *cloudinary.Cloudinary
}

// NewProfileService создает новый экземпляр ProfileService.
// Клиент Cloudinary инициализируется один раз при старте.
func NewProfileService(cfg *config.Config) (*ProfileService, error) {
	cld, err := cloudinary.NewFromParams(
		cfg.CloudinaryConfig.CloudName,
		cfg.CloudinaryConfig.APIKey,
		cfg.CloudinaryConfig.APISecret,
	)
	if err != nil {
		return nil, fmt.Errorf("инициализация Cloudinary: %w", err)
	}

	return &ProfileService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		cld:        cld,
	}, nil
}

// GetMyProfile возвращает профиль текущего пользователя
func (s *ProfileService) GetMyProfile(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}
	return s.respondProfile(c, userUUID)
}

// GetProfile возвращает публичный профиль пользователя по ID
func (s *ProfileService) GetProfile(c fiber.Ctx) error {
	profileUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}
	return s.respondProfile(c, profileUUID)
}

func (s *ProfileService) respondProfile(c fiber.Ctx, userUUID uuid.UUID) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	profile, err := queryProfile(ctx, userUUID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return utils.ErrorJSON(c, fiber.StatusNotFound, utils.CodeNotFound, "Пользователь не найден")
		}
		log.Printf("Ошибка запроса профиля: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка получения профиля")
	}

	return c.JSON(fiber.Map{
		"profile": profile,
		"success": true,
	})
}

// queryProfile собирает профиль: данные пользователя плюс агрегат рейтинга.
// Полученные пользователем оценки — это оценки, выставленные его
// контрагентами по завершённым обменам.
func queryProfile(ctx context.Context, userUUID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := db.Pool.QueryRow(ctx, `
        SELECT id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
               COALESCE(bio, ''), COALESCE(avatar_url, ''), COALESCE(avatar_public_id, ''), created_at
        FROM users
        WHERE id = $1
    `, userUUID).Scan(
		&p.ID, &p.Username, &p.FirstName, &p.LastName,
		&p.Bio, &p.AvatarURL, &p.AvatarPublicID, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = db.Pool.QueryRow(ctx, `
        SELECT COALESCE(AVG(r.rating), 0),
               COUNT(r.rating),
               COUNT(*) FILTER (WHERE r.rating = 1),
               COUNT(*) FILTER (WHERE r.rating = 2),
               COUNT(*) FILTER (WHERE r.rating = 3),
               COUNT(*) FILTER (WHERE r.rating = 4),
               COUNT(*) FILTER (WHERE r.rating = 5)
        FROM (
            SELECT requester_rating AS rating FROM swap_requests
            WHERE owner_id = $1 AND status = 'completed' AND requester_rating IS NOT NULL
            UNION ALL
            SELECT owner_rating FROM swap_requests
            WHERE requester_id = $1 AND status = 'completed' AND owner_rating IS NOT NULL
        ) r
    `, userUUID).Scan(
		&p.AverageRating, &p.TotalRatings,
		&p.RatingBreakdown[0], &p.RatingBreakdown[1], &p.RatingBreakdown[2],
		&p.RatingBreakdown[3], &p.RatingBreakdown[4],
	)
	if err != nil {
		return nil, err
	}

	err = db.Pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM swap_requests
        WHERE status = 'completed' AND (requester_id = $1 OR owner_id = $1)
    `, userUUID).Scan(&p.CompletedSwaps)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// UploadAvatar загружает аватар пользователя в Cloudinary.
// Публичный ID фиксированный, повторная загрузка перезаписывает файл.
func (s *ProfileService) UploadAvatar(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Неверный формат ID пользователя")
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Файл avatar не найден в запросе")
	}

	if fileHeader.Size > 5*1024*1024 {
		return utils.ErrorJSON(c, fiber.StatusBadRequest, utils.CodeInvalidInput, "Файл слишком большой (максимум 5 МБ)")
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Printf("Ошибка открытия файла: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка чтения файла")
	}
	defer file.Close()

	uploadCtx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()

	publicID := fmt.Sprintf("avatars/%s/avatar", userUUID)
	result, err := s.cld.Upload.Upload(uploadCtx, file, uploader.UploadParams{
		PublicID:  publicID,
		Overwrite: api.Bool(true),
	})
	if err != nil {
		log.Printf("Ошибка загрузки аватара в Cloudinary: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка загрузки аватара")
	}

	ctx, cancelDB := db.GetContext()
	defer cancelDB()

	_, err = db.Pool.Exec(ctx, `
        UPDATE users
        SET avatar_url = $1, avatar_public_id = $2, updated_at = NOW()
        WHERE id = $3
    `, result.SecureURL, result.PublicID, userUUID)
	if err != nil {
		log.Printf("Ошибка сохранения аватара: %v", err)
		return utils.ErrorJSON(c, fiber.StatusInternalServerError, utils.CodeInternal, "Ошибка сохранения аватара")
	}

	return c.JSON(fiber.Map{
		"avatar_url": result.SecureURL,
		"public_id":  result.PublicID,
		"success":    true,
	})
}

// GenerateSignature создаёт корректную подпись для Cloudinary
func (s *ProfileService) GenerateSignature(params map[string]string) string {
	// Сортируем ключи параметров
	var keys []string
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Формируем строку для подписи
	var signParts []string
	for _, k := range keys {
		signParts = append(signParts, fmt.Sprintf("%s=%s", k, params[k]))
	}
	signatureString := strings.Join(signParts, "&")

	// Добавляем API-секрет в конец строки
	signatureString += s.cfg.CloudinaryConfig.APISecret

	h := sha1.New()
	h.Write([]byte(signatureString))

	return hex.EncodeToString(h.Sum(nil))
}

// GenerateUploadParams создаёт подписанные параметры для клиентской
// загрузки обложек книг
func (s *ProfileService) GenerateUploadParams(c fiber.Ctx) error {
	bookID := c.Query("book_id")
	if bookID == "" {
		bookID = uuid.New().String()
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	params := map[string]string{
		"timestamp":     timestamp,
		"upload_preset": s.cfg.CloudinaryConfig.UploadPreset,
	}

	signature := s.GenerateSignature(params)

	return c.JSON(fiber.Map{
		"timestamp":     timestamp,
		"signature":     signature,
		"api_key":       s.cfg.CloudinaryConfig.APIKey,
		"cloud_name":    s.cfg.CloudinaryConfig.CloudName,
		"upload_preset": s.cfg.CloudinaryConfig.UploadPreset,
		"book_id":       bookID,
	})
}
