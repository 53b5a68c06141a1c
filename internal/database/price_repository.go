package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/irfndi/cyclescope-go/internal/models"
)

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	// Begin starts a transaction.
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PriceRepository handles database operations for daily price bars.
type PriceRepository struct {
	pool DatabasePool
}

// NewPriceRepository creates a new price repository.
//
// Parameters:
//
//	pool: The database connection pool.
//
// Returns:
//
//	*PriceRepository: The initialized repository.
func NewPriceRepository(pool DatabasePool) *PriceRepository {
	return &PriceRepository{
		pool: pool,
	}
}

// GetPriceSeries loads the most recent daily closes for a symbol, returned
// oldest bar first.
//
// Parameters:
//
//	ctx: Context.
//	symbol: Symbol name.
//	limit: Maximum number of bars, most recent kept. Zero or negative loads all.
//
// Returns:
//
//	*models.PriceSeries: The loaded series.
//	error: Error if the query fails or no bars exist.
func (r *PriceRepository) GetPriceSeries(ctx context.Context, symbol string, limit int) (*models.PriceSeries, error) {
	query := `
		SELECT symbol, bar_date, close_price
		FROM price_bars
		WHERE symbol = $1
		ORDER BY bar_date ASC
	`
	args := []interface{}{symbol}

	if limit > 0 {
		query = `
		SELECT symbol, bar_date, close_price
		FROM (
			SELECT symbol, bar_date, close_price
			FROM price_bars
			WHERE symbol = $1
			ORDER BY bar_date DESC
			LIMIT $2
		) recent
		ORDER BY bar_date ASC
	`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		var bar models.PriceBar
		if err := rows.Scan(&bar.Symbol, &bar.BarDate, &bar.ClosePrice); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price bars: %w", err)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("no price bars found for symbol %s: %w", symbol, models.ErrSymbolNotFound)
	}

	return models.NewPriceSeries(symbol, bars), nil
}

// ListSymbols returns coverage information for every symbol with stored bars.
//
// Parameters:
//
//	ctx: Context.
//
// Returns:
//
//	[]models.SymbolInfo: One entry per symbol, ordered by name. ID and
//	display name are left for the catalog to fill.
//	error: Error if retrieval fails.
func (r *PriceRepository) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	query := `
		SELECT symbol, COUNT(*) AS bars, MIN(bar_date) AS first_date, MAX(bar_date) AS last_date
		FROM price_bars
		GROUP BY symbol
		ORDER BY symbol ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []models.SymbolInfo
	for rows.Next() {
		var info models.SymbolInfo
		if err := rows.Scan(&info.Symbol, &info.Bars, &info.FirstDate, &info.LastDate); err != nil {
			return nil, fmt.Errorf("failed to scan symbol info: %w", err)
		}
		symbols = append(symbols, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

// LatestBarDate reports the most recent stored bar date for a symbol.
//
// Parameters:
//
//	ctx: Context.
//	symbol: Symbol name.
//
// Returns:
//
//	time.Time: The latest bar date.
//	bool: False when the symbol has no stored bars.
//	error: Error if the query fails.
func (r *PriceRepository) LatestBarDate(ctx context.Context, symbol string) (time.Time, bool, error) {
	query := `
		SELECT bar_date
		FROM price_bars
		WHERE symbol = $1
		ORDER BY bar_date DESC
		LIMIT 1
	`

	var barDate time.Time
	err := r.pool.QueryRow(ctx, query, symbol).Scan(&barDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to query latest bar date for %s: %w", symbol, err)
	}

	return barDate, true, nil
}

// UpsertBars stores price bars inside a single transaction, replacing the
// close on conflict so re-imports refresh revised data.
//
// Parameters:
//
//	ctx: Context.
//	bars: Bars to store.
//
// Returns:
//
//	int64: Number of rows written.
//	error: Error if the transaction fails.
func (r *PriceRepository) UpsertBars(ctx context.Context, bars []models.PriceBar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO price_bars (symbol, bar_date, close_price)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, bar_date)
		DO UPDATE SET close_price = EXCLUDED.close_price
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin price bar upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var affected int64
	for _, bar := range bars {
		tag, err := tx.Exec(ctx, query, bar.Symbol, bar.BarDate, bar.ClosePrice)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert price bar for %s: %w", bar.Symbol, err)
		}
		affected += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit price bar upsert: %w", err)
	}

	return affected, nil
}
