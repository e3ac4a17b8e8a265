package models

import (
	"time"
)

// Url представляет запись короткой ссылки
type Url struct {
	ID           int64     `json:"id"`
	ShortCode    string    `json:"short_code"`
	OriginalURL  string    `json:"original_url"`
	OwnerID      *string   `json:"owner_id,omitempty"`
	CustomDomain *string   `json:"custom_domain,omitempty"`
	Description  *string   `json:"description,omitempty"`
	QRImage      []byte    `json:"qr_image,omitempty"`
	ClickCount   int64     `json:"click_count"`
	Active       bool      `json:"active"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsResolvable сообщает, видна ли запись читающим путям в момент now.
// Просроченная запись считается отсутствующей независимо от флага active.
func (u *Url) IsResolvable(now time.Time) bool {
	return u.Active && u.ExpiresAt.After(now)
}

// ShortenInput входные данные для создания короткой ссылки
type ShortenInput struct {
	OriginalURL    string
	BaseURL        string
	ExpirationDays int // 0 означает значение по умолчанию (7 дней)
	Description    *string
	Domain         *string
	OwnerID        *string
	CustomSlug     *string
}

// UpdateInput частичное обновление записи. Nil-поле означает "не менять".
// ExpiresAt передаётся строкой RFC3339 и валидируется сервисом.
type UpdateInput struct {
	ExpiresAt   *string
	Description *string
	CustomSlug  *string
}

// Empty возвращает true, если не задано ни одного поля
func (in *UpdateInput) Empty() bool {
	return in.ExpiresAt == nil && in.Description == nil && in.CustomSlug == nil
}
