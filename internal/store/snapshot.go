// Package store persists fetched price and branch-flow series to Postgres.
// Snapshots are a warm-start and audit surface; the query path never reads
// them synchronously.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/twchip/chipkline/internal/contracts"
)

// SnapshotRepository stores fetched series keyed by stock, branch and epoch.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a snapshot repository.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// SavePriceBars upserts one stock's price history for an epoch.
func (r *SnapshotRepository) SavePriceBars(ctx context.Context, stockID string, epoch int64, bars []contracts.PriceBar) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO chip.price_bars (
			stock_id, bar_date, epoch,
			open, high, low, close, volume,
			ma5, ma10, ma20, ma60
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (stock_id, bar_date) DO UPDATE SET
			epoch = EXCLUDED.epoch,
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			ma5 = EXCLUDED.ma5,
			ma10 = EXCLUDED.ma10,
			ma20 = EXCLUDED.ma20,
			ma60 = EXCLUDED.ma60,
			updated_at = NOW()
	`

	for _, bar := range bars {
		_, err := tx.Exec(ctx, query,
			stockID, bar.Date, epoch,
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
			bar.MA5, bar.MA10, bar.MA20, bar.MA60,
		)
		if err != nil {
			return fmt.Errorf("failed to save price bar %s/%s: %w", stockID, bar.Date, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveBranchDaily upserts one branch's daily flow for an epoch.
func (r *SnapshotRepository) SaveBranchDaily(ctx context.Context, stockID, branchKey string, epoch int64, records []contracts.BranchDailyRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO chip.branch_daily (
			stock_id, branch_key, flow_date, epoch,
			buy_volume, sell_volume, net_volume
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (stock_id, branch_key, flow_date) DO UPDATE SET
			epoch = EXCLUDED.epoch,
			buy_volume = EXCLUDED.buy_volume,
			sell_volume = EXCLUDED.sell_volume,
			net_volume = EXCLUDED.net_volume,
			updated_at = NOW()
	`

	for _, rec := range records {
		_, err := tx.Exec(ctx, query,
			stockID, branchKey, rec.Date, epoch,
			rec.Buy, rec.Sell, rec.Net,
		)
		if err != nil {
			return fmt.Errorf("failed to save branch daily %s/%s/%s: %w", stockID, branchKey, rec.Date, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadPriceBars returns one stock's stored price history ascending by date.
func (r *SnapshotRepository) LoadPriceBars(ctx context.Context, stockID string) ([]contracts.PriceBar, error) {
	query := `
		SELECT bar_date, open, high, low, close, volume, ma5, ma10, ma20, ma60
		FROM chip.price_bars
		WHERE stock_id = $1
		ORDER BY bar_date
	`

	rows, err := r.pool.Query(ctx, query, stockID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price bars: %w", err)
	}
	defer rows.Close()

	var bars []contracts.PriceBar
	for rows.Next() {
		var bar contracts.PriceBar
		err := rows.Scan(
			&bar.Date,
			&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume,
			&bar.MA5, &bar.MA10, &bar.MA20, &bar.MA60,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return bars, nil
}

// LoadBranchDaily returns one branch's stored flow ascending by date.
func (r *SnapshotRepository) LoadBranchDaily(ctx context.Context, stockID, branchKey string) ([]contracts.BranchDailyRecord, error) {
	query := `
		SELECT flow_date, buy_volume, sell_volume, net_volume
		FROM chip.branch_daily
		WHERE stock_id = $1 AND branch_key = $2
		ORDER BY flow_date
	`

	rows, err := r.pool.Query(ctx, query, stockID, branchKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query branch daily: %w", err)
	}
	defer rows.Close()

	var records []contracts.BranchDailyRecord
	for rows.Next() {
		var rec contracts.BranchDailyRecord
		if err := rows.Scan(&rec.Date, &rec.Buy, &rec.Sell, &rec.Net); err != nil {
			return nil, fmt.Errorf("failed to scan branch daily: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// PurgeStale deletes snapshot rows not touched within the retention window.
// Returns the number of rows removed.
func (r *SnapshotRepository) PurgeStale(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	var total int64
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM chip.price_bars WHERE updated_at < $1`, cutoff)
	batch.Queue(`DELETE FROM chip.branch_daily WHERE updated_at < $1`, cutoff)

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < 2; i++ {
		tag, err := results.Exec()
		if err != nil {
			return total, fmt.Errorf("failed to purge snapshots: %w", err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
