package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/irfndi/cyclescope-go/internal/config"
	"github.com/irfndi/cyclescope-go/internal/models"
)

// historySuffix is what the shared price-history tooling appends to every
// symbol's file name. Plain <symbol>.csv files are accepted too.
const historySuffix = "_history"

// barDateLayout is the date format the history files are written with.
const barDateLayout = "2006-01-02"

// displayNames carries curated names for the tickers the dashboards ship
// with. Anything else falls back to title-casing the file stem.
var displayNames = map[string]string{
	"spx":  "S&P 500",
	"spy":  "SPDR S&P 500 ETF",
	"qqq":  "Invesco QQQ ETF",
	"iwm":  "Russell 2000 ETF",
	"dia":  "Dow Jones Industrial ETF",
	"tlt":  "20+ Year Treasury Bond ETF",
	"gld":  "Gold ETF",
	"gold": "Gold",
	"uso":  "US Oil Fund",
	"ko":   "Coca-Cola",
	"tsla": "Tesla",
	"btc":  "Bitcoin",
}

// catalogEntry pairs the public symbol info with the file it came from.
type catalogEntry struct {
	info models.SymbolInfo
	file string
}

// Provider serves daily price history from one-file-per-symbol CSVs in a
// local data directory (rows of date,close with an optional header). It is
// the offline counterpart of the database-backed price repository and
// exposes the same read surface, so callers can swap one for the other.
type Provider struct {
	dataDir       string
	defaultSymbol string

	mu      sync.RWMutex
	catalog map[string]catalogEntry // keyed by lowercase symbol
}

// NewProvider creates a provider over the configured data directory and
// scans it once for the initial catalog.
//
// Parameters:
//
//	cfg: Market data configuration.
//
// Returns:
//
//	*Provider: Initialized provider.
//	error: Error if the data directory is missing or unreadable.
func NewProvider(cfg config.MarketDataConfig) (*Provider, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("market data dir is not configured")
	}
	stat, err := os.Stat(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("market data dir %s: %w", cfg.DataDir, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("market data dir %s is not a directory", cfg.DataDir)
	}

	p := &Provider{
		dataDir:       cfg.DataDir,
		defaultSymbol: strings.ToUpper(strings.TrimSpace(cfg.DefaultSymbol)),
		catalog:       make(map[string]catalogEntry),
	}
	if err := p.Refresh(); err != nil {
		return nil, err
	}
	log.Printf("Market data provider serving %d symbols from %s", len(p.catalog), p.dataDir)
	return p, nil
}

// Refresh rescans the data directory and rebuilds the symbol catalog.
// Files that fail to parse are skipped with a log line so one bad file
// cannot take down the rest of the catalog. Symbols already known keep
// their catalog IDs across refreshes.
func (p *Provider) Refresh() error {
	entries, err := os.ReadDir(p.dataDir)
	if err != nil {
		return fmt.Errorf("failed to scan market data dir: %w", err)
	}

	next := make(map[string]catalogEntry)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		slug := symbolSlug(name)
		if slug == "" {
			continue
		}

		bars, err := readBars(filepath.Join(p.dataDir, name), strings.ToUpper(slug))
		if err != nil {
			log.Printf("Skipping %s: %v", name, err)
			continue
		}

		info := models.SymbolInfo{
			ID:          uuid.New(),
			Symbol:      strings.ToUpper(slug),
			DisplayName: displayNameFor(slug),
			Bars:        len(bars),
			FirstDate:   bars[0].BarDate,
			LastDate:    bars[len(bars)-1].BarDate,
		}

		p.mu.RLock()
		prev, known := p.catalog[slug]
		p.mu.RUnlock()
		if known {
			info.ID = prev.info.ID
		}

		next[slug] = catalogEntry{info: info, file: name}
	}

	p.mu.Lock()
	p.catalog = next
	p.mu.Unlock()
	return nil
}

// GetPriceSeries loads the full history for a symbol and returns the most
// recent limit bars, or everything when limit <= 0. Symbols not in the
// catalog get one stat check against the disk, so a file dropped in after
// startup is servable before the next refresh.
//
// Parameters:
//
//	ctx: Context.
//	symbol: Ticker symbol, case-insensitive.
//	limit: Maximum number of trailing bars, 0 for all.
//
// Returns:
//
//	*models.PriceSeries: Chronological series, oldest bar first.
//	error: Error if the symbol is unknown or its file is unreadable.
func (p *Provider) GetPriceSeries(ctx context.Context, symbol string, limit int) (*models.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slug := strings.ToLower(strings.TrimSpace(symbol))
	if slug == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	p.mu.RLock()
	entry, known := p.catalog[slug]
	p.mu.RUnlock()

	file := entry.file
	if !known {
		file = p.findFile(slug)
		if file == "" {
			return nil, fmt.Errorf("no price history for symbol %s: %w", strings.ToUpper(slug), models.ErrSymbolNotFound)
		}
	}

	bars, err := readBars(filepath.Join(p.dataDir, file), strings.ToUpper(slug))
	if err != nil {
		return nil, err
	}

	series := models.NewPriceSeries(strings.ToUpper(slug), bars)
	if limit > 0 {
		series = series.Tail(limit)
	}
	return series, nil
}

// ListSymbols returns the catalog sorted by symbol. The error return keeps
// the signature interchangeable with the database-backed repository.
func (p *Provider) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	symbols := make([]models.SymbolInfo, 0, len(p.catalog))
	for _, entry := range p.catalog {
		symbols = append(symbols, entry.info)
	}
	p.mu.RUnlock()

	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i].Symbol < symbols[j].Symbol
	})
	return symbols, nil
}

// HasSymbol reports whether the catalog currently lists the symbol.
func (p *Provider) HasSymbol(symbol string) bool {
	slug := strings.ToLower(strings.TrimSpace(symbol))

	p.mu.RLock()
	_, known := p.catalog[slug]
	p.mu.RUnlock()
	return known
}

// DefaultSymbol returns the configured default ticker, uppercased, or an
// empty string when none is configured.
func (p *Provider) DefaultSymbol() string {
	return p.defaultSymbol
}

// findFile checks the disk for the two accepted file names of a symbol.
func (p *Provider) findFile(slug string) string {
	for _, name := range []string{slug + historySuffix + ".csv", slug + ".csv"} {
		if _, err := os.Stat(filepath.Join(p.dataDir, name)); err == nil {
			return name
		}
	}
	return ""
}

// symbolSlug derives the lowercase symbol from a history file name.
func symbolSlug(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem = strings.TrimSuffix(stem, historySuffix)
	return strings.ToLower(strings.TrimSpace(stem))
}

// displayNameFor resolves the human-readable name for a symbol slug.
func displayNameFor(slug string) string {
	if name, ok := displayNames[slug]; ok {
		return name
	}
	caser := cases.Title(language.English)
	return caser.String(strings.ReplaceAll(strings.ReplaceAll(slug, "_", " "), "-", " "))
}

// readBars parses one history file into chronological bars. Duplicate dates
// keep the last row seen and rows are sorted ascending, matching how the
// shared history files are maintained.
func readBars(path, symbol string) ([]models.PriceBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price file for %s: %w", symbol, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read price file for %s: %w", symbol, err)
	}

	byDate := make(map[time.Time]models.PriceBar, len(records))
	for i, record := range records {
		if len(record) < 2 {
			return nil, fmt.Errorf("row %d in %s has %d columns, want date,close", i+1, path, len(record))
		}

		date, err := time.Parse(barDateLayout, strings.TrimSpace(record[0]))
		if err != nil {
			if i == 0 {
				// Header row.
				continue
			}
			return nil, fmt.Errorf("row %d in %s has an unparseable date %q", i+1, path, record[0])
		}

		close, err := decimal.NewFromString(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("row %d in %s has an unparseable close %q", i+1, path, record[1])
		}

		byDate[date] = models.PriceBar{Symbol: symbol, BarDate: date, ClosePrice: close}
	}

	if len(byDate) == 0 {
		return nil, fmt.Errorf("no price bars found for symbol %s", symbol)
	}

	bars := make([]models.PriceBar, 0, len(byDate))
	for _, bar := range byDate {
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].BarDate.Before(bars[j].BarDate)
	})
	return bars, nil
}
