package testmocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/irfndi/cyclescope-go/internal/models"
)

// MockPriceSource implements services.PriceSource for testing
type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) GetPriceSeries(ctx context.Context, symbol string, limit int) (*models.PriceSeries, error) {
	args := m.Called(ctx, symbol, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PriceSeries), args.Error(1)
}

func (m *MockPriceSource) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SymbolInfo), args.Error(1)
}

// MockAlertSender implements services.AlertSender for testing
type MockAlertSender struct {
	mock.Mock
}

func (m *MockAlertSender) SendAlert(ctx context.Context, chatID int64, alert *models.CycleAlert) error {
	args := m.Called(ctx, chatID, alert)
	return args.Error(0)
}

// MockHealthChecker implements handlers.HealthChecker for testing
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockCatalogRefresher implements handlers.CatalogRefresher for testing
type MockCatalogRefresher struct {
	mock.Mock
}

func (m *MockCatalogRefresher) Refresh() error {
	args := m.Called()
	return args.Error(0)
}
