package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/DevChiJay/url-shortener-with-QR/internal/clock"
	"github.com/DevChiJay/url-shortener-with-QR/internal/models"
	"github.com/DevChiJay/url-shortener-with-QR/internal/repository"
	"go.uber.org/zap"
)

// Константы сервиса
const (
	defaultExpirationDays = 7
	maxGenerateAttempts   = 5 // попыток перегенерации кода при коллизии
)

var (
	urlPattern  = regexp.MustCompile(`^https?://[^\s]+$`)
	slugPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{4,12}$`)
)

// CodeGenerator генерирует короткие коды, не обращаясь к хранилищу
type CodeGenerator interface {
	Generate() (string, error)
}

// QRRenderer рендерит QR-код для короткой ссылки в PNG
type QRRenderer interface {
	Render(text string) ([]byte, error)
}

// ShortenerService бизнес-логика коротких ссылок
type ShortenerService interface {
	Shorten(ctx context.Context, input *models.ShortenInput) (*models.Url, error)
	Resolve(ctx context.Context, code string) (*models.Url, error)
	UpdateExpiration(ctx context.Context, code string, days int, callerID *string) (*models.Url, error)
	Update(ctx context.Context, code string, input *models.UpdateInput, baseURL string, callerID *string) (*models.Url, error)
	Delete(ctx context.Context, code string, callerID *string) error
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Url, error)
}

// shortenerService реализация сервиса коротких ссылок
type shortenerService struct {
	urlRepo   repository.UrlRepository
	statsRepo repository.StatsRepository
	cacheRepo repository.CacheRepository
	generator CodeGenerator
	qr        QRRenderer
	clock     clock.Clock
	quota     int // лимит активных ссылок владельца, 0 - без лимита
	logger    *zap.Logger
}

// NewShortenerService создаёт новый экземпляр сервиса
func NewShortenerService(
	urlRepo repository.UrlRepository,
	statsRepo repository.StatsRepository,
	cacheRepo repository.CacheRepository,
	generator CodeGenerator,
	qr QRRenderer,
	clk clock.Clock,
	quota int,
	logger *zap.Logger,
) ShortenerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &shortenerService{
		urlRepo:   urlRepo,
		statsRepo: statsRepo,
		cacheRepo: cacheRepo,
		generator: generator,
		qr:        qr,
		clock:     clk,
		quota:     quota,
		logger:    logger,
	}
}

// Shorten создаёт короткую ссылку: дедупликация, квота, авторизация
// домена, выбор кода, QR и запись. Повторное сокращение того же URL тем
// же владельцем идемпотентно возвращает существующую запись.
func (s *shortenerService) Shorten(ctx context.Context, input *models.ShortenInput) (*models.Url, error) {
	if !urlPattern.MatchString(input.OriginalURL) {
		return nil, ErrInvalidURL
	}

	now := s.clock.Now()

	// Дедупликация: тот же URL у того же владельца - без новой записи,
	// нового кода и сброса статистики
	if input.OwnerID != nil {
		existing, err := s.urlRepo.FindByOwnerAndURL(ctx, *input.OwnerID, input.OriginalURL, now)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repository.ErrURLNotFound) {
			return nil, fmt.Errorf("dedup lookup failed: %w", err)
		}
	}

	// Квота: считаются только активные непросроченные ссылки владельца
	if input.OwnerID != nil && s.quota > 0 {
		count, err := s.urlRepo.CountActiveByOwner(ctx, *input.OwnerID, now)
		if err != nil {
			return nil, fmt.Errorf("quota check failed: %w", err)
		}
		if count >= int64(s.quota) {
			return nil, ErrQuotaExceeded
		}
	}

	// Кастомный домен доступен только аутентифицированным владельцам
	if input.Domain != nil && *input.Domain != "" && input.OwnerID == nil {
		return nil, ErrAuthRequired
	}

	days := input.ExpirationDays
	if days <= 0 {
		days = defaultExpirationDays
	}
	expiresAt := now.AddDate(0, 0, days)

	custom := input.CustomSlug != nil && *input.CustomSlug != ""
	if custom && !slugPattern.MatchString(*input.CustomSlug) {
		return nil, ErrInvalidSlug
	}

	attempts := maxGenerateAttempts
	if custom {
		attempts = 1
	}

	var url *models.Url
	for i := 0; i < attempts; i++ {
		code := ""
		if custom {
			code = *input.CustomSlug
		} else {
			generated, err := s.generator.Generate()
			if err != nil {
				return nil, fmt.Errorf("failed to generate code: %w", err)
			}
			code = generated
		}

		qrImage, err := s.qr.Render(input.BaseURL + "/" + code)
		if err != nil {
			return nil, err
		}

		candidate := &models.Url{
			ShortCode:    code,
			OriginalURL:  input.OriginalURL,
			OwnerID:      input.OwnerID,
			CustomDomain: input.Domain,
			Description:  input.Description,
			QRImage:      qrImage,
			Active:       true,
			ExpiresAt:    expiresAt,
			CreatedAt:    now,
		}

		err = s.urlRepo.Create(ctx, candidate)
		if err == nil {
			url = candidate
			break
		}
		if errors.Is(err, repository.ErrCodeExists) {
			if custom {
				return nil, ErrSlugTaken
			}
			// Коллизия сгенерированного кода - пробуем новый
			continue
		}
		return nil, err
	}
	if url == nil {
		return nil, ErrGenerationExhausted
	}

	// Сев статистики вне транзакции: сбой не откатывает ссылку,
	// отсутствующая запись статистики долечится на первом клике
	if err := s.statsRepo.Create(ctx, url.ID, url.ShortCode); err != nil {
		s.logger.Warn("Не удалось создать запись статистики",
			zap.String("short_code", url.ShortCode),
			zap.Error(err),
		)
	}

	if err := s.cacheRepo.Set(ctx, url.ShortCode, url, expiresAt.Sub(now)); err != nil {
		s.logger.Debug("Не удалось закэшировать ссылку", zap.Error(err))
	}

	return url, nil
}

// Resolve возвращает запись по коду (сначала кэш, затем БД).
// Просроченные и деактивированные записи невидимы.
func (s *shortenerService) Resolve(ctx context.Context, code string) (*models.Url, error) {
	now := s.clock.Now()

	if url, err := s.cacheRepo.Get(ctx, code); err == nil {
		if url.IsResolvable(now) {
			return url, nil
		}
		// В кэше лежит уже невидимая запись - игнорируем её
	}

	url, err := s.urlRepo.GetActive(ctx, code, now)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.cacheRepo.Set(ctx, code, url, url.ExpiresAt.Sub(now)); err != nil {
		s.logger.Debug("Не удалось закэшировать ссылку", zap.Error(err))
	}

	return url, nil
}

// UpdateExpiration пересчитывает срок действия от текущего момента.
// Затрагивает только видимые записи.
func (s *shortenerService) UpdateExpiration(ctx context.Context, code string, days int, callerID *string) (*models.Url, error) {
	if days <= 0 {
		return nil, ErrInvalidDate
	}

	now := s.clock.Now()
	url, err := s.getResolvable(ctx, code, now)
	if err != nil {
		return nil, err
	}
	if err := authorize(url, callerID); err != nil {
		return nil, err
	}

	updated, err := s.urlRepo.UpdateExpiration(ctx, code, now.AddDate(0, 0, days))
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.invalidateCache(ctx, code)
	return updated, nil
}

// Update частичное обновление записи. Смена customSlug - это
// переименование ключа: уникальность нового кода проверяется заново,
// статистика переносится на новый код, QR перерисовывается.
func (s *shortenerService) Update(ctx context.Context, code string, input *models.UpdateInput, baseURL string, callerID *string) (*models.Url, error) {
	if input.Empty() {
		return nil, ErrNoFields
	}

	var expiresAt *time.Time
	if input.ExpiresAt != nil {
		parsed, err := time.Parse(time.RFC3339, *input.ExpiresAt)
		if err != nil {
			return nil, ErrInvalidDate
		}
		expiresAt = &parsed
	}

	now := s.clock.Now()
	url, err := s.getResolvable(ctx, code, now)
	if err != nil {
		return nil, err
	}
	if err := authorize(url, callerID); err != nil {
		return nil, err
	}

	currentCode := code
	if input.CustomSlug != nil && *input.CustomSlug != code {
		newCode := *input.CustomSlug
		if !slugPattern.MatchString(newCode) {
			return nil, ErrInvalidSlug
		}

		if err := s.urlRepo.Rename(ctx, code, newCode); err != nil {
			if errors.Is(err, repository.ErrCodeExists) {
				return nil, ErrSlugTaken
			}
			if errors.Is(err, repository.ErrURLNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if err := s.statsRepo.Rename(ctx, code, newCode); err != nil {
			// Ссылка уже переименована; сбой переноса статистики
			// не замалчиваем
			return nil, fmt.Errorf("failed to rename statistics: %w", err)
		}
		currentCode = newCode

		// Код входит в закодированный URL, QR перерисовывается
		qrImage, err := s.qr.Render(baseURL + "/" + newCode)
		if err != nil {
			return nil, err
		}
		if err := s.urlRepo.SetQRImage(ctx, newCode, qrImage); err != nil {
			return nil, err
		}
	}

	if expiresAt != nil || input.Description != nil {
		if err := s.urlRepo.UpdateFields(ctx, currentCode, expiresAt, input.Description); err != nil {
			if errors.Is(err, repository.ErrURLNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
	}

	s.invalidateCache(ctx, code, currentCode)

	updated, err := s.urlRepo.GetAny(ctx, currentCode)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete удаляет запись вместе с её статистикой. Частичный сбой
// (одно удаление прошло, второе нет) возвращается как DeleteError.
func (s *shortenerService) Delete(ctx context.Context, code string, callerID *string) error {
	now := s.clock.Now()
	url, err := s.getResolvable(ctx, code, now)
	if err != nil {
		return err
	}
	if err := authorize(url, callerID); err != nil {
		return err
	}

	s.invalidateCache(ctx, code)

	linkErr := s.urlRepo.Delete(ctx, code)
	statsErr := s.statsRepo.Delete(ctx, code)
	if errors.Is(statsErr, repository.ErrStatsNotFound) {
		// Сев статистики мог не состояться - удалять нечего
		statsErr = nil
	}

	if linkErr != nil || statsErr != nil {
		return &DeleteError{LinkErr: linkErr, StatsErr: statsErr}
	}
	return nil
}

// ListByOwner возвращает все записи владельца, новые первыми
func (s *shortenerService) ListByOwner(ctx context.Context, ownerID string) ([]*models.Url, error) {
	return s.urlRepo.ListByOwner(ctx, ownerID)
}

func (s *shortenerService) getResolvable(ctx context.Context, code string, now time.Time) (*models.Url, error) {
	url, err := s.urlRepo.GetActive(ctx, code, now)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return url, nil
}

func (s *shortenerService) invalidateCache(ctx context.Context, codes ...string) {
	if err := s.cacheRepo.Delete(ctx, codes...); err != nil {
		s.logger.Debug("Не удалось инвалидировать кэш", zap.Error(err))
	}
}

// authorize сверяет владельца записи с вызывающим. Анонимные записи
// (без владельца) в базовом варианте доступны любому держателю кода.
func authorize(url *models.Url, callerID *string) error {
	if url.OwnerID == nil {
		return nil
	}
	if callerID == nil || *callerID != *url.OwnerID {
		return ErrForbidden
	}
	return nil
}
