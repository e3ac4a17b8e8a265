package service

import (
	"errors"
	"strings"
)

// Типизированные ошибки сервисного слоя. Вызывающая сторона ветвится
// по ним через errors.Is; детали нижних слоёв наружу не протекают.
var (
	ErrNotFound            = errors.New("link not found or expired")
	ErrForbidden           = errors.New("not authorized to manage this link")
	ErrAuthRequired        = errors.New("authentication required")
	ErrSlugTaken           = errors.New("custom slug already taken")
	ErrQuotaExceeded       = errors.New("link quota exceeded")
	ErrGenerationExhausted = errors.New("short code generation attempts exhausted")
	ErrInvalidDate         = errors.New("invalid expiration date")
	ErrNoFields            = errors.New("no fields provided")
	ErrOrphanClick         = errors.New("click for unknown short code")
	ErrInvalidURL          = errors.New("invalid url")
	ErrInvalidSlug         = errors.New("invalid custom slug")
)

// DeleteError частичный сбой каскадного удаления: одна из двух записей
// (ссылка, статистика) удалена, вторая нет. Не маскируется под успех -
// остаток подчищается вручную.
type DeleteError struct {
	LinkErr  error
	StatsErr error
}

func (e *DeleteError) Error() string {
	var parts []string
	if e.LinkErr != nil {
		parts = append(parts, "url: "+e.LinkErr.Error())
	}
	if e.StatsErr != nil {
		parts = append(parts, "statistics: "+e.StatsErr.Error())
	}
	return "partial delete failure: " + strings.Join(parts, "; ")
}

func (e *DeleteError) Unwrap() []error {
	var errs []error
	if e.LinkErr != nil {
		errs = append(errs, e.LinkErr)
	}
	if e.StatsErr != nil {
		errs = append(errs, e.StatsErr)
	}
	return errs
}
