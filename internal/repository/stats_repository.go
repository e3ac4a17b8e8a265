package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/DevChiJay/url-shortener-with-QR/internal/models"
)

var ErrStatsNotFound = errors.New("statistics not found")

// StatsRepository агрегированная статистика кликов.
//
// Разбивки хранятся не внутри документа статистики, а отдельными
// счётчиками с ключом (short_code, dimension, label) и атомарным
// upsert-инкрементом: конкурирующие клики по одному коду не теряют
// обновления, перезаписи целого документа нет.
type StatsRepository interface {
	// Create заводит обнулённую запись статистики; повторный вызов безвреден
	Create(ctx context.Context, urlID int64, shortCode string) error
	GetByShortCode(ctx context.Context, shortCode string) (*models.Statistics, error)
	// GetByShortCodes возвращает статистику для кодов, у которых она есть;
	// коды без статистики молча пропускаются
	GetByShortCodes(ctx context.Context, shortCodes []string) ([]*models.Statistics, error)
	// ApplyClick в одной транзакции инкрементирует totalClicks и счётчики
	// всех четырёх разбивок; ErrStatsNotFound, если записи статистики нет
	ApplyClick(ctx context.Context, shortCode, day, referrer, browser, country string) error
	// Rename переносит статистику на новый короткий код
	Rename(ctx context.Context, oldCode, newCode string) error
	Delete(ctx context.Context, shortCode string) error
}

type statsRepository struct {
	db *PostgresDB
}

func NewStatsRepository(db *PostgresDB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Create(ctx context.Context, urlID int64, shortCode string) error {
	query := `
		INSERT INTO statistics (url_id, short_code)
		VALUES ($1, $2)
		ON CONFLICT (short_code) DO NOTHING
	`

	if _, err := r.db.Pool.Exec(ctx, query, urlID, shortCode); err != nil {
		return fmt.Errorf("failed to create statistics: %w", err)
	}
	return nil
}

func (r *statsRepository) GetByShortCode(ctx context.Context, shortCode string) (*models.Statistics, error) {
	stats, err := r.GetByShortCodes(ctx, []string{shortCode})
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, ErrStatsNotFound
	}
	return stats[0], nil
}

func (r *statsRepository) GetByShortCodes(ctx context.Context, shortCodes []string) ([]*models.Statistics, error) {
	if len(shortCodes) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, url_id, short_code, total_clicks, created_at, updated_at
		FROM statistics
		WHERE short_code = ANY($1)
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query, shortCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	defer rows.Close()

	var result []*models.Statistics
	byCode := make(map[string]*models.Statistics)
	for rows.Next() {
		s := &models.Statistics{
			ClicksByDay: []models.DayClicks{},
			Referrers:   []models.LabelCount{},
			Browsers:    []models.LabelCount{},
			Countries:   []models.LabelCount{},
		}
		if err := rows.Scan(&s.ID, &s.URLID, &s.ShortCode, &s.TotalClicks, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan statistics: %w", err)
		}
		result = append(result, s)
		byCode[s.ShortCode] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statistics: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	// Счётчики в порядке первого появления метки (возрастающий id)
	counterQuery := `
		SELECT short_code, dimension, label, count
		FROM statistic_counters
		WHERE short_code = ANY($1)
		ORDER BY id
	`

	counterRows, err := r.db.Pool.Query(ctx, counterQuery, shortCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistic counters: %w", err)
	}
	defer counterRows.Close()

	for counterRows.Next() {
		var code, dimension, label string
		var count int64
		if err := counterRows.Scan(&code, &dimension, &label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan statistic counter: %w", err)
		}

		s, ok := byCode[code]
		if !ok {
			continue
		}
		switch dimension {
		case models.DimensionDay:
			s.ClicksByDay = append(s.ClicksByDay, models.DayClicks{Date: label, Clicks: count})
		case models.DimensionReferrer:
			s.Referrers = append(s.Referrers, models.LabelCount{Label: label, Count: count})
		case models.DimensionBrowser:
			s.Browsers = append(s.Browsers, models.LabelCount{Label: label, Count: count})
		case models.DimensionCountry:
			s.Countries = append(s.Countries, models.LabelCount{Label: label, Count: count})
		}
	}
	if err := counterRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statistic counters: %w", err)
	}

	return result, nil
}

func (r *statsRepository) ApplyClick(ctx context.Context, shortCode, day, referrer, browser, country string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin click tx: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx,
		`UPDATE statistics SET total_clicks = total_clicks + 1, updated_at = now() WHERE short_code = $1`,
		shortCode)
	if err != nil {
		return fmt.Errorf("failed to increment total clicks: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatsNotFound
	}

	upsert := `
		INSERT INTO statistic_counters (short_code, dimension, label)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT statistic_counters_key
		DO UPDATE SET count = statistic_counters.count + 1
	`

	increments := []struct{ dimension, label string }{
		{models.DimensionDay, day},
		{models.DimensionReferrer, referrer},
		{models.DimensionBrowser, browser},
		{models.DimensionCountry, country},
	}
	for _, inc := range increments {
		if _, err := tx.Exec(ctx, upsert, shortCode, inc.dimension, inc.label); err != nil {
			return fmt.Errorf("failed to increment %s counter: %w", inc.dimension, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit click tx: %w", err)
	}
	return nil
}

func (r *statsRepository) Rename(ctx context.Context, oldCode, newCode string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin rename tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE statistics SET short_code = $2, updated_at = now() WHERE short_code = $1`,
		oldCode, newCode); err != nil {
		return fmt.Errorf("failed to rename statistics: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE statistic_counters SET short_code = $2 WHERE short_code = $1`,
		oldCode, newCode); err != nil {
		return fmt.Errorf("failed to rename statistic counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rename tx: %w", err)
	}
	return nil
}

func (r *statsRepository) Delete(ctx context.Context, shortCode string) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM statistic_counters WHERE short_code = $1`, shortCode); err != nil {
		return fmt.Errorf("failed to delete statistic counters: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM statistics WHERE short_code = $1`, shortCode)
	if err != nil {
		return fmt.Errorf("failed to delete statistics: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatsNotFound
	}

	return tx.Commit(ctx)
}
