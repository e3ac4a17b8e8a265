package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DevChiJay/url-shortener-with-QR/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrURLNotFound = errors.New("url not found")
	ErrCodeExists  = errors.New("short code already exists")
)

const urlColumns = `id, short_code, original_url, owner_id, custom_domain, description,
		qr_image, click_count, active, expires_at, created_at, updated_at`

// UrlRepository хранилище записей коротких ссылок.
// Читающие методы принимают момент времени now: срок действия
// проверяется лениво на чтении, фоновой очистки не требуется.
type UrlRepository interface {
	// Create атомарно вставляет запись; при занятом коде возвращает ErrCodeExists
	Create(ctx context.Context, url *models.Url) error
	// GetActive возвращает запись, только если active и expires_at > now
	GetActive(ctx context.Context, code string, now time.Time) (*models.Url, error)
	// GetAny возвращает запись без фильтра видимости (ленивое восстановление статистики)
	GetAny(ctx context.Context, code string) (*models.Url, error)
	// FindByOwnerAndURL ищет видимую запись владельца с тем же originalUrl (дедупликация)
	FindByOwnerAndURL(ctx context.Context, ownerID, originalURL string, now time.Time) (*models.Url, error)
	// CountActiveByOwner считает видимые записи владельца (проверка квоты)
	CountActiveByOwner(ctx context.Context, ownerID string, now time.Time) (int64, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Url, error)
	UpdateExpiration(ctx context.Context, code string, expiresAt time.Time) (*models.Url, error)
	// UpdateFields частично обновляет expires_at и/или description
	UpdateFields(ctx context.Context, code string, expiresAt *time.Time, description *string) error
	SetQRImage(ctx context.Context, code string, png []byte) error
	// Rename меняет короткий код записи; ErrCodeExists, если новый код занят
	Rename(ctx context.Context, oldCode, newCode string) error
	Delete(ctx context.Context, code string) error
	IncrementClickCount(ctx context.Context, code string) error
}

type urlRepository struct {
	db *PostgresDB
}

func NewUrlRepository(db *PostgresDB) UrlRepository {
	return &urlRepository{db: db}
}

func (r *urlRepository) Create(ctx context.Context, url *models.Url) error {
	query := `
		INSERT INTO urls (short_code, original_url, owner_id, custom_domain, description,
			qr_image, active, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		url.ShortCode,
		url.OriginalURL,
		url.OwnerID,
		url.CustomDomain,
		url.Description,
		url.QRImage,
		url.Active,
		url.ExpiresAt,
		url.CreatedAt,
	).Scan(&url.ID, &url.CreatedAt, &url.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to create url: %w", err)
	}

	return nil
}

func (r *urlRepository) GetActive(ctx context.Context, code string, now time.Time) (*models.Url, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM urls
		WHERE short_code = $1 AND active AND expires_at > $2
	`, urlColumns)

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, code, now))
}

func (r *urlRepository) GetAny(ctx context.Context, code string) (*models.Url, error) {
	query := fmt.Sprintf(`SELECT %s FROM urls WHERE short_code = $1`, urlColumns)
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, code))
}

func (r *urlRepository) FindByOwnerAndURL(ctx context.Context, ownerID, originalURL string, now time.Time) (*models.Url, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM urls
		WHERE owner_id = $1 AND original_url = $2 AND active AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`, urlColumns)

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, ownerID, originalURL, now))
}

func (r *urlRepository) CountActiveByOwner(ctx context.Context, ownerID string, now time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM urls WHERE owner_id = $1 AND active AND expires_at > $2`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, ownerID, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count urls: %w", err)
	}
	return count, nil
}

func (r *urlRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Url, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM urls
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, urlColumns)

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	defer rows.Close()

	var urls []*models.Url
	for rows.Next() {
		url, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating urls: %w", err)
	}
	return urls, nil
}

func (r *urlRepository) UpdateExpiration(ctx context.Context, code string, expiresAt time.Time) (*models.Url, error) {
	query := fmt.Sprintf(`
		UPDATE urls SET expires_at = $2, updated_at = now()
		WHERE short_code = $1 AND active
		RETURNING %s
	`, urlColumns)

	return r.scanOne(r.db.Pool.QueryRow(ctx, query, code, expiresAt))
}

func (r *urlRepository) UpdateFields(ctx context.Context, code string, expiresAt *time.Time, description *string) error {
	query := `
		UPDATE urls SET
			expires_at  = COALESCE($2, expires_at),
			description = COALESCE($3, description),
			updated_at  = now()
		WHERE short_code = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, code, expiresAt, description)
	if err != nil {
		return fmt.Errorf("failed to update url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrURLNotFound
	}
	return nil
}

func (r *urlRepository) SetQRImage(ctx context.Context, code string, png []byte) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE urls SET qr_image = $2, updated_at = now() WHERE short_code = $1`, code, png)
	if err != nil {
		return fmt.Errorf("failed to update qr image: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrURLNotFound
	}
	return nil
}

func (r *urlRepository) Rename(ctx context.Context, oldCode, newCode string) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE urls SET short_code = $2, updated_at = now() WHERE short_code = $1`, oldCode, newCode)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeExists
		}
		return fmt.Errorf("failed to rename url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrURLNotFound
	}
	return nil
}

func (r *urlRepository) Delete(ctx context.Context, code string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM urls WHERE short_code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to delete url: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrURLNotFound
	}
	return nil
}

func (r *urlRepository) IncrementClickCount(ctx context.Context, code string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE urls SET click_count = click_count + 1 WHERE short_code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to increment click count: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *urlRepository) scanOne(row pgx.Row) (*models.Url, error) {
	url, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}
	return url, nil
}

func (r *urlRepository) scanRow(row rowScanner) (*models.Url, error) {
	url := &models.Url{}
	err := row.Scan(
		&url.ID,
		&url.ShortCode,
		&url.OriginalURL,
		&url.OwnerID,
		&url.CustomDomain,
		&url.Description,
		&url.QRImage,
		&url.ClickCount,
		&url.Active,
		&url.ExpiresAt,
		&url.CreatedAt,
		&url.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan url: %w", err)
	}
	return url, nil
}

// isUniqueViolation распознаёт нарушение уникального индекса Postgres
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
