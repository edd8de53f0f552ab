package aq

// Snapshot is a complete, self-contained air-quality reading for one
// location. Both the push channel and the pull endpoint deliver this exact
// shape, so downstream consumers never see which path produced it.
type Snapshot struct {
	Location  string  `json:"location"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds, server clock
	AQI       int     `json:"aqi"`
	Category  string  `json:"category"`
	Dominant  string  `json:"dominant_pollutant"`
	PM25      float64 `json:"pm25"`
	PM10      float64 `json:"pm10"`
	NO2       float64 `json:"no2"`
	O3        float64 `json:"o3"`
	SO2       float64 `json:"so2"`
	CO        float64 `json:"co"`
}

// Categorize maps an AQI value onto the standard US EPA bands.
func Categorize(aqi int) string {
	switch {
	case aqi <= 50:
		return "good"
	case aqi <= 100:
		return "moderate"
	case aqi <= 150:
		return "unhealthy_sensitive"
	case aqi <= 200:
		return "unhealthy"
	case aqi <= 300:
		return "very_unhealthy"
	default:
		return "hazardous"
	}
}
