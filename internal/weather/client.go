// Package weather wraps the Open-Meteo forecast and geocoding APIs
// plus Nominatim reverse geocoding, and formats reports in
// Vietnamese.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/justduck/relaybot/internal/reliability"
)

// Current is the present conditions at a point.
type Current struct {
	Time          string
	Temperature   float64
	FeelsLike     float64
	Humidity      int
	Code          int
	WindSpeed     float64
	WindDirection float64
}

// Day is one entry of a daily forecast.
type Day struct {
	Date       string
	Code       int
	TempMax    float64
	TempMin    float64
	RainChance int
}

type Config struct {
	HTTPClient *http.Client
	// Base URLs overridable for tests.
	ForecastBaseURL  string
	GeocodingBaseURL string
	NominatimBaseURL string
	// UserAgent is sent to Nominatim, which rejects anonymous
	// clients.
	UserAgent string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.ForecastBaseURL == "" {
		cfg.ForecastBaseURL = "https://api.open-meteo.com"
	}
	if cfg.GeocodingBaseURL == "" {
		cfg.GeocodingBaseURL = "https://geocoding-api.open-meteo.com"
	}
	if cfg.NominatimBaseURL == "" {
		cfg.NominatimBaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "relaybot/1.0 (weather notifications)"
	}
	return &Client{cfg: cfg}
}

// FetchCurrent returns present conditions for a coordinate.
func (c *Client) FetchCurrent(ctx context.Context, lat, lon float64) (Current, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,weather_code,wind_speed_10m,wind_direction_10m")
	q.Set("timezone", "Asia/Ho_Chi_Minh")

	var out struct {
		Current struct {
			Time          string  `json:"time"`
			Temperature   float64 `json:"temperature_2m"`
			Humidity      int     `json:"relative_humidity_2m"`
			ApparentTemp  float64 `json:"apparent_temperature"`
			WeatherCode   int     `json:"weather_code"`
			WindSpeed     float64 `json:"wind_speed_10m"`
			WindDirection float64 `json:"wind_direction_10m"`
		} `json:"current"`
	}
	if err := c.getJSON(ctx, c.cfg.ForecastBaseURL+"/v1/forecast?"+q.Encode(), "open-meteo", &out); err != nil {
		return Current{}, err
	}
	return Current{
		Time:          out.Current.Time,
		Temperature:   out.Current.Temperature,
		FeelsLike:     out.Current.ApparentTemp,
		Humidity:      out.Current.Humidity,
		Code:          out.Current.WeatherCode,
		WindSpeed:     out.Current.WindSpeed,
		WindDirection: out.Current.WindDirection,
	}, nil
}

// FetchForecast returns up to days daily entries for a coordinate.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64, days int) ([]Day, error) {
	if days <= 0 {
		days = 3
	}
	if days > 7 {
		days = 7
	}
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,precipitation_probability_max")
	q.Set("forecast_days", strconv.Itoa(days))
	q.Set("timezone", "Asia/Ho_Chi_Minh")

	var out struct {
		Daily struct {
			Time        []string  `json:"time"`
			WeatherCode []int     `json:"weather_code"`
			TempMax     []float64 `json:"temperature_2m_max"`
			TempMin     []float64 `json:"temperature_2m_min"`
			RainChance  []int     `json:"precipitation_probability_max"`
		} `json:"daily"`
	}
	if err := c.getJSON(ctx, c.cfg.ForecastBaseURL+"/v1/forecast?"+q.Encode(), "open-meteo", &out); err != nil {
		return nil, err
	}

	result := make([]Day, 0, len(out.Daily.Time))
	for i := range out.Daily.Time {
		d := Day{Date: out.Daily.Time[i]}
		if i < len(out.Daily.WeatherCode) {
			d.Code = out.Daily.WeatherCode[i]
		}
		if i < len(out.Daily.TempMax) {
			d.TempMax = out.Daily.TempMax[i]
		}
		if i < len(out.Daily.TempMin) {
			d.TempMin = out.Daily.TempMin[i]
		}
		if i < len(out.Daily.RainChance) {
			d.RainChance = out.Daily.RainChance[i]
		}
		result = append(result, d)
	}
	return result, nil
}

func (c *Client) getJSON(ctx context.Context, u, provider string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", provider, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", provider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return fmt.Errorf("%s transient status %d", provider, resp.StatusCode)
		}
		return fmt.Errorf("%s status %d", provider, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", provider, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", provider, err)
	}
	return nil
}
