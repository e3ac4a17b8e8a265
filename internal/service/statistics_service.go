package service

import (
	"context"
	"errors"

	"github.com/DevChiJay/url-shortener-with-QR/internal/clock"
	"github.com/DevChiJay/url-shortener-with-QR/internal/models"
	"github.com/DevChiJay/url-shortener-with-QR/internal/repository"
)

// StatisticsService чтение агрегированной статистики кликов
type StatisticsService interface {
	// GetByShortCode возвращает статистику видимой ссылки; статистика
	// чужой ссылки недоступна
	GetByShortCode(ctx context.Context, code string, callerID *string) (*models.Statistics, error)
	// GetByOwner возвращает статистику всех ссылок владельца; коды без
	// записи статистики пропускаются
	GetByOwner(ctx context.Context, ownerID string) ([]*models.Statistics, error)
}

type statisticsService struct {
	urlRepo   repository.UrlRepository
	statsRepo repository.StatsRepository
	clock     clock.Clock
}

// NewStatisticsService создаёт новый экземпляр сервиса статистики
func NewStatisticsService(
	urlRepo repository.UrlRepository,
	statsRepo repository.StatsRepository,
	clk clock.Clock,
) StatisticsService {
	return &statisticsService{
		urlRepo:   urlRepo,
		statsRepo: statsRepo,
		clock:     clk,
	}
}

func (s *statisticsService) GetByShortCode(ctx context.Context, code string, callerID *string) (*models.Statistics, error) {
	url, err := s.urlRepo.GetActive(ctx, code, s.clock.Now())
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := authorize(url, callerID); err != nil {
		return nil, err
	}

	stats, err := s.statsRepo.GetByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrStatsNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return stats, nil
}

func (s *statisticsService) GetByOwner(ctx context.Context, ownerID string) ([]*models.Statistics, error) {
	urls, err := s.urlRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, nil
	}

	codes := make([]string, 0, len(urls))
	for _, url := range urls {
		codes = append(codes, url.ShortCode)
	}

	return s.statsRepo.GetByShortCodes(ctx, codes)
}
