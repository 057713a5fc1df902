package mocks

import (
	"context"
	"fmt"
	"time"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

// MockWeatherService is a mock implementation of WeatherService for testing
type MockWeatherService struct {
	report   *domain.WeatherReport
	failNext bool

	CurrentCalls  int
	ForecastCalls int
}

// NewMockWeatherService creates a new MockWeatherService
func NewMockWeatherService() *MockWeatherService {
	return &MockWeatherService{
		report: &domain.WeatherReport{
			Location:    "Bangkok",
			Temperature: 32.5,
			Humidity:    70,
			Description: "clear sky",
			Timestamp:   time.Now(),
		},
	}
}

func (m *MockWeatherService) Current(ctx context.Context) (*domain.WeatherReport, error) {
	m.CurrentCalls++
	if m.failNext {
		m.failNext = false
		return nil, fmt.Errorf("%w: provider unreachable", domain.ErrExternalData)
	}
	r := *m.report
	return &r, nil
}

func (m *MockWeatherService) Forecast(ctx context.Context, days int) (*domain.Forecast, error) {
	m.ForecastCalls++
	if m.failNext {
		m.failNext = false
		return nil, fmt.Errorf("%w: provider unreachable", domain.ErrExternalData)
	}

	forecast := &domain.Forecast{Location: m.report.Location, Timestamp: time.Now()}
	for i := 0; i < days; i++ {
		forecast.Days = append(forecast.Days, domain.ForecastDay{
			Date:    time.Now().AddDate(0, 0, i).Format("2006-01-02"),
			AvgTemp: 30,
			MaxTemp: 34,
			MinTemp: 26,
		})
	}
	return forecast, nil
}

func (m *MockWeatherService) Name() string {
	return "OpenWeatherMap"
}

// Helper methods for testing

func (m *MockWeatherService) SetReport(r *domain.WeatherReport) {
	m.report = r
}

func (m *MockWeatherService) SetFailNext(fail bool) {
	m.failNext = fail
}
