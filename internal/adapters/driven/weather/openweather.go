package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/kaset-ai/kaset-core/internal/core/domain"
	"github.com/kaset-ai/kaset-core/internal/core/ports/driven"
)

const (
	// Default coordinates are Bangkok; most of the user base farms in
	// central Thailand and per-user locations are out of scope for now.
	defaultLatitude  = 13.7563
	defaultLongitude = 100.5018

	defaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// The forecast endpoint returns 3-hour slots, 8 per day
	slotsPerDay     = 8
	maxForecastDays = 5
)

// Ensure OpenWeather implements WeatherService
var _ driven.WeatherService = (*OpenWeather)(nil)

// OpenWeather implements WeatherService against the OpenWeatherMap API.
// Descriptions are requested in Thai so they can be shown to users and
// matched by the advisory rules directly.
type OpenWeather struct {
	apiKey  string
	baseURL string
	lat     float64
	lon     float64
	client  *http.Client
}

// Config holds OpenWeatherMap connection settings
type Config struct {
	APIKey    string
	BaseURL   string
	Latitude  float64
	Longitude float64
}

// New creates a new OpenWeatherMap client
func New(cfg Config) (driven.WeatherService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenWeather API key is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Latitude == 0 && cfg.Longitude == 0 {
		cfg.Latitude = defaultLatitude
		cfg.Longitude = defaultLongitude
	}

	return &OpenWeather{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		lat:     cfg.Latitude,
		lon:     cfg.Longitude,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// currentResponse is the OpenWeatherMap current weather payload
type currentResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
		Pressure int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Visibility int `json:"visibility"`
	Sys        struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

// forecastResponse is the OpenWeatherMap 5-day forecast payload
type forecastResponse struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Rain struct {
			ThreeHours float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
}

// Current returns current conditions for the configured location
func (w *OpenWeather) Current(ctx context.Context) (*domain.WeatherReport, error) {
	var resp currentResponse
	if err := w.get(ctx, "/weather", nil, &resp); err != nil {
		return nil, err
	}

	description := ""
	if len(resp.Weather) > 0 {
		description = resp.Weather[0].Description
	}

	return &domain.WeatherReport{
		Location:     resp.Name,
		Temperature:  resp.Main.Temp,
		Humidity:     resp.Main.Humidity,
		Description:  description,
		WindSpeed:    resp.Wind.Speed,
		Pressure:     resp.Main.Pressure,
		VisibilityKM: float64(resp.Visibility) / 1000,
		Sunrise:      time.Unix(resp.Sys.Sunrise, 0),
		Sunset:       time.Unix(resp.Sys.Sunset, 0),
		Timestamp:    time.Now(),
	}, nil
}

// Forecast returns a daily forecast aggregated from 3-hour slots
func (w *OpenWeather) Forecast(ctx context.Context, days int) (*domain.Forecast, error) {
	if days <= 0 || days > maxForecastDays {
		days = maxForecastDays
	}

	var resp forecastResponse
	params := url.Values{"cnt": {strconv.Itoa(days * slotsPerDay)}}
	if err := w.get(ctx, "/forecast", params, &resp); err != nil {
		return nil, err
	}

	type bucket struct {
		temps      []float64
		humidity   []int
		rainfall   float64
		conditions []string
	}
	buckets := make(map[string]*bucket)
	var order []string

	for _, item := range resp.List {
		date := time.Unix(item.Dt, 0).UTC().Format("2006-01-02")
		b, ok := buckets[date]
		if !ok {
			b = &bucket{}
			buckets[date] = b
			order = append(order, date)
		}
		b.temps = append(b.temps, item.Main.Temp)
		b.humidity = append(b.humidity, item.Main.Humidity)
		b.rainfall += item.Rain.ThreeHours
		if len(item.Weather) > 0 {
			b.conditions = append(b.conditions, item.Weather[0].Description)
		}
	}
	sort.Strings(order)

	forecast := &domain.Forecast{
		Location:  resp.City.Name,
		Timestamp: time.Now(),
	}
	for _, date := range order {
		b := buckets[date]
		day := domain.ForecastDay{
			Date:          date,
			TotalRainfall: float64(int(b.rainfall*10+0.5)) / 10,
		}
		if len(b.temps) > 0 {
			sum, max, min := 0.0, b.temps[0], b.temps[0]
			for _, t := range b.temps {
				sum += t
				if t > max {
					max = t
				}
				if t < min {
					min = t
				}
			}
			day.AvgTemp = int(sum/float64(len(b.temps)) + 0.5)
			day.MaxTemp = int(max + 0.5)
			day.MinTemp = int(min + 0.5)
		}
		if len(b.humidity) > 0 {
			sum := 0
			for _, h := range b.humidity {
				sum += h
			}
			day.AvgHumidity = (sum + len(b.humidity)/2) / len(b.humidity)
		}
		if len(b.conditions) > 0 {
			day.DominantCondition = b.conditions[0]
		}
		forecast.Days = append(forecast.Days, day)
	}

	return forecast, nil
}

// Name identifies the upstream provider
func (w *OpenWeather) Name() string {
	return "OpenWeatherMap"
}

// get performs a GET against the OpenWeatherMap API and decodes the body
func (w *OpenWeather) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("lat", strconv.FormatFloat(w.lat, 'f', 4, 64))
	params.Set("lon", strconv.FormatFloat(w.lon, 'f', 4, 64))
	params.Set("appid", w.apiKey)
	params.Set("units", "metric")
	params.Set("lang", "th")

	req, err := http.NewRequestWithContext(ctx, "GET", w.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalData, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: OpenWeather API returned status %d: %s",
			domain.ErrExternalData, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", domain.ErrExternalData, err)
	}
	return nil
}
