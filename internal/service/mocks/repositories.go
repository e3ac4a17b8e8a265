package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/DevChiJay/url-shortener-with-QR/internal/models"
	"github.com/DevChiJay/url-shortener-with-QR/internal/repository"
)

// MockUrlRepository implements repository.UrlRepository for testing
type MockUrlRepository struct {
	mu     sync.RWMutex
	urls   map[string]*models.Url
	nextID int64
}

func NewMockUrlRepository() *MockUrlRepository {
	return &MockUrlRepository{
		urls:   make(map[string]*models.Url),
		nextID: 1,
	}
}

func (m *MockUrlRepository) Create(ctx context.Context, url *models.Url) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.urls[url.ShortCode]; exists {
		return repository.ErrCodeExists
	}

	url.ID = m.nextID
	m.nextID++
	url.UpdatedAt = url.CreatedAt
	stored := *url
	m.urls[url.ShortCode] = &stored
	return nil
}

func (m *MockUrlRepository) GetActive(ctx context.Context, code string, now time.Time) (*models.Url, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url, exists := m.urls[code]
	if !exists || !url.IsResolvable(now) {
		return nil, repository.ErrURLNotFound
	}
	copied := *url
	return &copied, nil
}

func (m *MockUrlRepository) GetAny(ctx context.Context, code string) (*models.Url, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url, exists := m.urls[code]
	if !exists {
		return nil, repository.ErrURLNotFound
	}
	copied := *url
	return &copied, nil
}

func (m *MockUrlRepository) FindByOwnerAndURL(ctx context.Context, ownerID, originalURL string, now time.Time) (*models.Url, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, url := range m.urls {
		if url.OwnerID != nil && *url.OwnerID == ownerID &&
			url.OriginalURL == originalURL && url.IsResolvable(now) {
			copied := *url
			return &copied, nil
		}
	}
	return nil, repository.ErrURLNotFound
}

func (m *MockUrlRepository) CountActiveByOwner(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, url := range m.urls {
		if url.OwnerID != nil && *url.OwnerID == ownerID && url.IsResolvable(now) {
			count++
		}
	}
	return count, nil
}

func (m *MockUrlRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Url, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var urls []*models.Url
	for _, url := range m.urls {
		if url.OwnerID != nil && *url.OwnerID == ownerID {
			copied := *url
			urls = append(urls, &copied)
		}
	}
	return urls, nil
}

func (m *MockUrlRepository) UpdateExpiration(ctx context.Context, code string, expiresAt time.Time) (*models.Url, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	url, exists := m.urls[code]
	if !exists || !url.Active {
		return nil, repository.ErrURLNotFound
	}
	url.ExpiresAt = expiresAt
	url.UpdatedAt = time.Now()
	copied := *url
	return &copied, nil
}

func (m *MockUrlRepository) UpdateFields(ctx context.Context, code string, expiresAt *time.Time, description *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	url, exists := m.urls[code]
	if !exists {
		return repository.ErrURLNotFound
	}
	if expiresAt != nil {
		url.ExpiresAt = *expiresAt
	}
	if description != nil {
		url.Description = description
	}
	url.UpdatedAt = time.Now()
	return nil
}

func (m *MockUrlRepository) SetQRImage(ctx context.Context, code string, png []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	url, exists := m.urls[code]
	if !exists {
		return repository.ErrURLNotFound
	}
	url.QRImage = png
	return nil
}

func (m *MockUrlRepository) Rename(ctx context.Context, oldCode, newCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	url, exists := m.urls[oldCode]
	if !exists {
		return repository.ErrURLNotFound
	}
	if _, taken := m.urls[newCode]; taken {
		return repository.ErrCodeExists
	}
	delete(m.urls, oldCode)
	url.ShortCode = newCode
	m.urls[newCode] = url
	return nil
}

func (m *MockUrlRepository) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.urls[code]; !exists {
		return repository.ErrURLNotFound
	}
	delete(m.urls, code)
	return nil
}

func (m *MockUrlRepository) IncrementClickCount(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if url, exists := m.urls[code]; exists {
		url.ClickCount++
	}
	return nil
}

func (m *MockUrlRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = make(map[string]*models.Url)
	m.nextID = 1
}

// MockStatsRepository implements repository.StatsRepository for testing.
// Dimension counters keep first-seen insertion order, matching the
// Postgres implementation.
type MockStatsRepository struct {
	mu     sync.RWMutex
	stats  map[string]*models.Statistics
	nextID int64

	// FailCreate makes Create fail, simulating a lost statistics seed
	FailCreate bool
}

func NewMockStatsRepository() *MockStatsRepository {
	return &MockStatsRepository{
		stats:  make(map[string]*models.Statistics),
		nextID: 1,
	}
}

func (m *MockStatsRepository) Create(ctx context.Context, urlID int64, shortCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCreate {
		return context.DeadlineExceeded
	}
	if _, exists := m.stats[shortCode]; exists {
		return nil
	}

	m.stats[shortCode] = &models.Statistics{
		ID:          m.nextID,
		URLID:       urlID,
		ShortCode:   shortCode,
		ClicksByDay: []models.DayClicks{},
		Referrers:   []models.LabelCount{},
		Browsers:    []models.LabelCount{},
		Countries:   []models.LabelCount{},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.nextID++
	return nil
}

func (m *MockStatsRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.stats[shortCode]
	if !exists {
		return nil, repository.ErrStatsNotFound
	}
	copied := copyStats(s)
	return copied, nil
}

func (m *MockStatsRepository) GetByShortCodes(ctx context.Context, shortCodes []string) ([]*models.Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.Statistics
	for _, code := range shortCodes {
		if s, exists := m.stats[code]; exists {
			result = append(result, copyStats(s))
		}
	}
	return result, nil
}

func (m *MockStatsRepository) ApplyClick(ctx context.Context, shortCode, day, referrer, browser, country string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.stats[shortCode]
	if !exists {
		return repository.ErrStatsNotFound
	}

	s.TotalClicks++
	s.UpdatedAt = time.Now()

	found := false
	for i := range s.ClicksByDay {
		if s.ClicksByDay[i].Date == day {
			s.ClicksByDay[i].Clicks++
			found = true
			break
		}
	}
	if !found {
		s.ClicksByDay = append(s.ClicksByDay, models.DayClicks{Date: day, Clicks: 1})
	}

	s.Referrers = incrementLabel(s.Referrers, referrer)
	s.Browsers = incrementLabel(s.Browsers, browser)
	s.Countries = incrementLabel(s.Countries, country)
	return nil
}

func (m *MockStatsRepository) Rename(ctx context.Context, oldCode, newCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.stats[oldCode]
	if !exists {
		return nil
	}
	delete(m.stats, oldCode)
	s.ShortCode = newCode
	m.stats[newCode] = s
	return nil
}

func (m *MockStatsRepository) Delete(ctx context.Context, shortCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.stats[shortCode]; !exists {
		return repository.ErrStatsNotFound
	}
	delete(m.stats, shortCode)
	return nil
}

func (m *MockStatsRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = make(map[string]*models.Statistics)
	m.nextID = 1
}

func incrementLabel(counts []models.LabelCount, label string) []models.LabelCount {
	for i := range counts {
		if counts[i].Label == label {
			counts[i].Count++
			return counts
		}
	}
	return append(counts, models.LabelCount{Label: label, Count: 1})
}

func copyStats(s *models.Statistics) *models.Statistics {
	copied := *s
	copied.ClicksByDay = append([]models.DayClicks(nil), s.ClicksByDay...)
	copied.Referrers = append([]models.LabelCount(nil), s.Referrers...)
	copied.Browsers = append([]models.LabelCount(nil), s.Browsers...)
	copied.Countries = append([]models.LabelCount(nil), s.Countries...)
	return &copied
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Url
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Url),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, code string) (*models.Url, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	url, exists := m.cache[code]
	if !exists {
		return nil, repository.ErrURLNotFound
	}
	copied := *url
	return &copied, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, code string, url *models.Url, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *url
	m.cache[code] = &copied
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, codes ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, code := range codes {
		delete(m.cache, code)
	}
	return nil
}

func (m *MockCacheRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*models.Url)
}
