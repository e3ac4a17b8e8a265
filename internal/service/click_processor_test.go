package service_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/DevChiJay/url-shortener-with-QR/internal/clock"
	"github.com/DevChiJay/url-shortener-with-QR/internal/models"
	"github.com/DevChiJay/url-shortener-with-QR/internal/service"
	"github.com/DevChiJay/url-shortener-with-QR/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processorEnv struct {
	processor service.ClickProcessor
	urlRepo   *mocks.MockUrlRepository
	statsRepo *mocks.MockStatsRepository
	clock     *clock.Mock
}

// setupProcessor создаёт процессор кликов с моковыми репозиториями
// и одной зарегистрированной ссылкой
func setupProcessor(t *testing.T) *processorEnv {
	t.Helper()

	urlRepo := mocks.NewMockUrlRepository()
	statsRepo := mocks.NewMockStatsRepository()
	clk := clock.NewMock(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC))
	logger, _ := zap.NewDevelopment()

	url := &models.Url{
		ShortCode:   "abc123",
		OriginalURL: "https://example.com/test",
		Active:      true,
		ExpiresAt:   clk.Now().AddDate(0, 0, 7),
		CreatedAt:   clk.Now(),
	}
	require.NoError(t, urlRepo.Create(context.Background(), url))
	require.NoError(t, statsRepo.Create(context.Background(), url.ID, url.ShortCode))

	processor := service.NewClickProcessor(statsRepo, urlRepo, clk, logger)
	processor.Start()

	return &processorEnv{
		processor: processor,
		urlRepo:   urlRepo,
		statsRepo: statsRepo,
		clock:     clk,
	}
}

// TestClickProcessor_RecordClick проверяет агрегацию кликов по всем
// измерениям: сумма каждого измерения равна общему счётчику
func TestClickProcessor_RecordClick(t *testing.T) {
	env := setupProcessor(t)
	ctx := context.Background()

	events := []*models.ClickEvent{
		{ShortCode: "abc123", Referrer: "", Browser: "Chrome", Country: "DE"},
		{ShortCode: "abc123", Referrer: "", Browser: "Chrome", Country: "DE"},
		{ShortCode: "abc123", Referrer: "https://x.com", Browser: "Firefox", Country: "FR"},
	}
	for _, event := range events {
		require.NoError(t, env.processor.RecordClick(ctx, event))
	}

	// Stop дожидается обработки всего буфера
	env.processor.Stop()

	stats, err := env.statsRepo.GetByShortCode(ctx, "abc123")
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalClicks)

	// Пустой referrer получает дефолт, порядок появления сохраняется
	require.Len(t, stats.Referrers, 2)
	assert.Equal(t, models.LabelCount{Label: "Direct", Count: 2}, stats.Referrers[0])
	assert.Equal(t, models.LabelCount{Label: "https://x.com", Count: 1}, stats.Referrers[1])

	require.Len(t, stats.Browsers, 2)
	assert.Equal(t, models.LabelCount{Label: "Chrome", Count: 2}, stats.Browsers[0])
	assert.Equal(t, models.LabelCount{Label: "Firefox", Count: 1}, stats.Browsers[1])

	require.Len(t, stats.Countries, 2)
	assert.Equal(t, models.LabelCount{Label: "DE", Count: 2}, stats.Countries[0])
	assert.Equal(t, models.LabelCount{Label: "FR", Count: 1}, stats.Countries[1])

	// Все клики одного дня попадают в одну дневную корзину
	require.Len(t, stats.ClicksByDay, 1)
	assert.Equal(t, models.DayClicks{Date: "2025-01-15", Clicks: 3}, stats.ClicksByDay[0])

	// Денормализованный счётчик на самой ссылке тоже растёт
	url, err := env.urlRepo.GetAny(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(3), url.ClickCount)
}

// TestClickProcessor_Defaults проверяет дефолты пустых полей события
func TestClickProcessor_Defaults(t *testing.T) {
	env := setupProcessor(t)
	ctx := context.Background()

	require.NoError(t, env.processor.RecordClick(ctx, &models.ClickEvent{ShortCode: "abc123"}))
	env.processor.Stop()

	stats, err := env.statsRepo.GetByShortCode(ctx, "abc123")
	require.NoError(t, err)

	require.Len(t, stats.Referrers, 1)
	assert.Equal(t, "Direct", stats.Referrers[0].Label)
	require.Len(t, stats.Browsers, 1)
	assert.Equal(t, "Unknown", stats.Browsers[0].Label)
	require.Len(t, stats.Countries, 1)
	assert.Equal(t, "Unknown", stats.Countries[0].Label)
}

// TestClickProcessor_DayBuckets проверяет раскладку кликов по дням в UTC
func TestClickProcessor_DayBuckets(t *testing.T) {
	env := setupProcessor(t)
	ctx := context.Background()

	require.NoError(t, env.processor.RecordClick(ctx, &models.ClickEvent{ShortCode: "abc123"}))

	// Клики должны осесть до перевода часов
	assert.Eventually(t, func() bool {
		stats, err := env.statsRepo.GetByShortCode(ctx, "abc123")
		return err == nil && stats.TotalClicks == 1
	}, time.Second, 10*time.Millisecond)

	env.clock.Advance(24 * time.Hour)
	require.NoError(t, env.processor.RecordClick(ctx, &models.ClickEvent{ShortCode: "abc123"}))

	env.processor.Stop()

	stats, err := env.statsRepo.GetByShortCode(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, stats.ClicksByDay, 2)
	assert.Equal(t, models.DayClicks{Date: "2025-01-15", Clicks: 1}, stats.ClicksByDay[0])
	assert.Equal(t, models.DayClicks{Date: "2025-01-16", Clicks: 1}, stats.ClicksByDay[1])
}

// TestClickProcessor_LazySeed проверяет долечивание отсутствующей записи
// статистики на первом клике
func TestClickProcessor_LazySeed(t *testing.T) {
	env := setupProcessor(t)
	ctx := context.Background()

	// Запись статистики потеряна (сев при создании не состоялся)
	require.NoError(t, env.statsRepo.Delete(ctx, "abc123"))

	require.NoError(t, env.processor.RecordClick(ctx, &models.ClickEvent{ShortCode: "abc123"}))
	env.processor.Stop()

	stats, err := env.statsRepo.GetByShortCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalClicks)
}

// TestClickProcessor_OrphanClick проверяет, что клик по неизвестному коду
// отбрасывается и не ломает обработку остальных
func TestClickProcessor_OrphanClick(t *testing.T) {
	env := setupProcessor(t)
	ctx := context.Background()

	require.NoError(t, env.processor.RecordClick(ctx, &models.ClickEvent{ShortCode: "ghost1"}))
	require.NoError(t, env.processor.RecordClick(ctx, &models.ClickEvent{ShortCode: "abc123"}))
	env.processor.Stop()

	stats, err := env.statsRepo.GetByShortCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalClicks)

	_, err = env.statsRepo.GetByShortCode(ctx, "ghost1")
	assert.Error(t, err)
}

// TestClickProcessor_StopIdempotent проверяет безопасность повторного Stop
// и отбрасывание событий после остановки
func TestClickProcessor_StopIdempotent(t *testing.T) {
	env := setupProcessor(t)
	ctx := context.Background()

	env.processor.Stop()
	env.processor.Stop()

	// После остановки события отбрасываются без ошибки
	assert.NoError(t, env.processor.RecordClick(ctx, &models.ClickEvent{ShortCode: "abc123"}))

	stats, err := env.statsRepo.GetByShortCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalClicks)
}

// TestClickProcessor_StopDrains проверяет, что Stop дожидается обработки
// всех поставленных в очередь событий
func TestClickProcessor_StopDrains(t *testing.T) {
	env := setupProcessor(t)
	ctx := context.Background()

	const clicks = 100
	for i := 0; i < clicks; i++ {
		require.NoError(t, env.processor.RecordClick(ctx, &models.ClickEvent{ShortCode: "abc123"}))
	}
	env.processor.Stop()

	stats, err := env.statsRepo.GetByShortCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(clicks), stats.TotalClicks)
}
