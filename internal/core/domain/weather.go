package domain

import (
	"strings"
	"time"
)

// WeatherReport holds current conditions from the external weather capability
type WeatherReport struct {
	Location     string    `json:"location"`
	Temperature  float64   `json:"temperature"` // Celsius
	Humidity     int       `json:"humidity"`    // percent
	Description  string    `json:"description"`
	WindSpeed    float64   `json:"wind_speed"`
	Pressure     int       `json:"pressure"`
	VisibilityKM float64   `json:"visibility_km"`
	Sunrise      time.Time `json:"sunrise"`
	Sunset       time.Time `json:"sunset"`
	Timestamp    time.Time `json:"timestamp"`
}

// ForecastDay is one day of aggregated forecast data
type ForecastDay struct {
	Date              string  `json:"date"`
	AvgTemp           int     `json:"avg_temp"`
	MaxTemp           int     `json:"max_temp"`
	MinTemp           int     `json:"min_temp"`
	AvgHumidity       int     `json:"avg_humidity"`
	TotalRainfall     float64 `json:"total_rainfall"`
	DominantCondition string  `json:"dominant_condition"`
}

// Forecast is a multi-day weather forecast
type Forecast struct {
	Location  string        `json:"location"`
	Days      []ForecastDay `json:"days"`
	Timestamp time.Time     `json:"timestamp"`
}

// FarmingAdvice is rule-based guidance derived from current conditions
type FarmingAdvice struct {
	Irrigation string `json:"irrigation,omitempty"`
	Protection string `json:"protection,omitempty"`
	Harvesting string `json:"harvesting,omitempty"`
	General    string `json:"general,omitempty"`
}

// FarmingAdviceFor derives cassava farming guidance from current
// conditions. Thresholds and wording match the advisory rules the
// product ships with; answers are in Thai.
func FarmingAdviceFor(r *WeatherReport) FarmingAdvice {
	var advice FarmingAdvice
	if r == nil {
		return advice
	}

	if r.Humidity < 60 {
		advice.Irrigation = "ควรรดน้ำเพิ่มเติม เนื่องจากความชื้นต่ำ"
	} else if r.Humidity > 80 {
		advice.Irrigation = "ลดการรดน้ำ เนื่องจากความชื้นสูง อาจเกิดโรคราได้"
	}

	if r.Temperature > 35 {
		advice.Protection = "อุณหภูมิสูง ควรให้ร่มเงาและรักษาความชื้นในดิน"
	} else if r.Temperature < 18 {
		advice.Protection = "อุณหภูมิต่ำ ควรปกป้องต้นมันสำปะหลังจากความหนาว"
	}

	if strings.Contains(r.Description, "ฝน") {
		advice.General = "มีฝนตก ระวังการระบายน้ำให้ดี เพื่อป้องกันรากเน่า"
	} else if strings.Contains(r.Description, "แดด") {
		advice.General = "อากาศแจ่มใส เหมาะสำหรับการเจริญเติบโต"
	}

	return advice
}
