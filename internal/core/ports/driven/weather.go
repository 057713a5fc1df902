package driven

import (
	"context"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
)

// WeatherService provides live environmental data.
// Absence of configuration is a valid state: the orchestrator holds a nil
// WeatherService and answers without external data. Failures wrap
// domain.ErrExternalData and are never fatal to answering.
type WeatherService interface {
	// Current returns current conditions for the configured location
	Current(ctx context.Context) (*domain.WeatherReport, error)

	// Forecast returns an aggregated daily forecast for up to days days
	Forecast(ctx context.Context, days int) (*domain.Forecast, error)

	// Name identifies the upstream provider (for provenance records)
	Name() string
}
