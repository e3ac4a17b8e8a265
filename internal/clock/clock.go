package clock

import (
	"sync"
	"time"
)

// Clock источник текущего времени. Внедряется в сервисы,
// чтобы проверки истечения срока были детерминированы в тестах.
type Clock interface {
	Now() time.Time
}

// System реализация Clock на системном времени
type System struct{}

// Now возвращает текущее системное время
func (System) Now() time.Time {
	return time.Now()
}

// Mock управляемые часы для тестов
type Mock struct {
	mu      sync.Mutex
	current time.Time
}

// NewMock создаёт Mock, установленный на заданное время
func NewMock(t time.Time) *Mock {
	return &Mock{current: t}
}

// Now возвращает текущее время мока
func (c *Mock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance сдвигает часы вперёд на заданную длительность
func (c *Mock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set устанавливает конкретное время
func (c *Mock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}
