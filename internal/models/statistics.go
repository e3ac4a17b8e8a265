package models

import (
	"time"
)

// Размерности агрегированной статистики
const (
	DimensionDay      = "day"
	DimensionReferrer = "referrer"
	DimensionBrowser  = "browser"
	DimensionCountry  = "country"
)

// Метки по умолчанию, когда источник клика неизвестен
const (
	DefaultReferrer = "Direct"
	DefaultBrowser  = "Unknown"
	DefaultCountry  = "Unknown"
)

// DayClicks счётчик кликов за один календарный день (UTC, YYYY-MM-DD)
type DayClicks struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// LabelCount счётчик кликов для одной метки размерности
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Statistics агрегированная статистика кликов одной короткой ссылки.
// Инвариант: TotalClicks равен сумме счётчиков каждой размерности -
// ClicksByDay, Referrers, Browsers и Countries это независимые разбивки
// одного и того же итога.
type Statistics struct {
	ID          int64        `json:"id"`
	URLID       int64        `json:"url_id"`
	ShortCode   string       `json:"short_code"`
	TotalClicks int64        `json:"total_clicks"`
	ClicksByDay []DayClicks  `json:"clicks_by_day"`
	Referrers   []LabelCount `json:"referrers"`
	Browsers    []LabelCount `json:"browsers"`
	Countries   []LabelCount `json:"countries"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ClickEvent событие клика, передаваемое в процессор кликов
type ClickEvent struct {
	ShortCode string
	Referrer  string
	Browser   string
	Country   string
}
