package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DevChiJay/url-shortener-with-QR/internal/clock"
	"github.com/DevChiJay/url-shortener-with-QR/internal/models"
	"github.com/DevChiJay/url-shortener-with-QR/internal/repository"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount   = 3    // Количество воркеров
	defaultChannelBuffer = 1000 // Размер буфера канала
	maxClickRetries      = 3    // Максимальное количество попыток записи
	clickTimeout         = 5 * time.Second
)

// ClickProcessor асинхронно агрегирует события кликов. Путь редиректа
// только кладёт событие в буфер и никогда не ждёт записи: ошибки здесь
// терминальны - логируются и не доходят до вызывающего.
type ClickProcessor interface {
	Start()
	Stop()
	RecordClick(ctx context.Context, event *models.ClickEvent) error
}

// clickProcessor реализация процессора кликов на Worker Pool
type clickProcessor struct {
	statsRepo    repository.StatsRepository
	urlRepo      repository.UrlRepository
	clock        clock.Clock
	logger       *zap.Logger
	clickChannel chan *models.ClickEvent
	workerCount  int
	wg           sync.WaitGroup
	mu           sync.RWMutex
	stopped      bool
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewClickProcessor создаёт новый экземпляр процессора кликов
func NewClickProcessor(
	statsRepo repository.StatsRepository,
	urlRepo repository.UrlRepository,
	clk clock.Clock,
	logger *zap.Logger,
) ClickProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &clickProcessor{
		statsRepo:    statsRepo,
		urlRepo:      urlRepo,
		clock:        clk,
		logger:       logger,
		clickChannel: make(chan *models.ClickEvent, defaultChannelBuffer),
		workerCount:  defaultWorkerCount,
	}
}

// Start запускает worker pool
func (p *clickProcessor) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.logger.Info("Запуск воркеров процессора кликов", zap.Int("count", p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop закрывает приём событий, дожидается обработки буфера
// и останавливает воркеров. Повторный вызов безопасен.
func (p *clickProcessor) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.clickChannel)
	p.mu.Unlock()

	p.logger.Info("Остановка процессора кликов...")
	p.wg.Wait()
	p.cancel()
	p.logger.Info("Процессор кликов остановлен")
}

// worker обрабатывает события кликов из канала до его закрытия
func (p *clickProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Воркер кликов запущен", zap.Int("id", id))

	for event := range p.clickChannel {
		p.processClick(event)
	}

	p.logger.Debug("Воркер кликов остановлен", zap.Int("id", id))
}

// RecordClick отправляет событие в worker pool, не блокируя вызывающего.
// При заполненном буфере событие теряется с предупреждением в логе.
func (p *clickProcessor) RecordClick(ctx context.Context, event *models.ClickEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.logger.Debug("Процессор кликов остановлен, событие отброшено",
			zap.String("short_code", event.ShortCode),
		)
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.clickChannel <- event:
		return nil
	default:
		p.logger.Warn("Буфер канала кликов заполнен, событие потеряно",
			zap.String("short_code", event.ShortCode),
		)
		return nil
	}
}

// processClick применяет одно событие с retry-логикой
func (p *clickProcessor) processClick(event *models.ClickEvent) {
	ctx, cancel := context.WithTimeout(p.ctx, clickTimeout)
	defer cancel()

	referrer := event.Referrer
	if referrer == "" {
		referrer = models.DefaultReferrer
	}
	browser := event.Browser
	if browser == "" {
		browser = models.DefaultBrowser
	}
	country := event.Country
	if country == "" {
		country = models.DefaultCountry
	}

	// Дневная корзина считается в UTC с точностью до календарного дня
	day := p.clock.Now().UTC().Format("2006-01-02")

	var lastErr error
	for i := 0; i < maxClickRetries; i++ {
		err := p.apply(ctx, event.ShortCode, day, referrer, browser, country)
		if err == nil {
			return
		}
		if errors.Is(err, ErrOrphanClick) {
			// Клик по коду без записи ссылки - жёсткая ошибка, отбрасываем
			p.logger.Warn("Клик по неизвестному короткому коду отброшен",
				zap.String("short_code", event.ShortCode),
			)
			return
		}
		lastErr = err
		if i < maxClickRetries-1 {
			p.logger.Debug("Повторная попытка записи клика",
				zap.String("short_code", event.ShortCode),
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}

	p.logger.Error("Не удалось записать клик после всех попыток",
		zap.String("short_code", event.ShortCode),
		zap.Error(lastErr),
	)
}

// apply инкрементирует агрегаты клика. Отсутствующая запись статистики
// (сев при создании не состоялся) восстанавливается из записи ссылки;
// если нет и самой ссылки - это ErrOrphanClick.
func (p *clickProcessor) apply(ctx context.Context, code, day, referrer, browser, country string) error {
	err := p.statsRepo.ApplyClick(ctx, code, day, referrer, browser, country)
	if errors.Is(err, repository.ErrStatsNotFound) {
		url, lookupErr := p.urlRepo.GetAny(ctx, code)
		if errors.Is(lookupErr, repository.ErrURLNotFound) {
			return ErrOrphanClick
		}
		if lookupErr != nil {
			return lookupErr
		}
		if seedErr := p.statsRepo.Create(ctx, url.ID, code); seedErr != nil {
			return seedErr
		}
		err = p.statsRepo.ApplyClick(ctx, code, day, referrer, browser, country)
	}
	if err != nil {
		return err
	}

	return p.urlRepo.IncrementClickCount(ctx, code)
}
