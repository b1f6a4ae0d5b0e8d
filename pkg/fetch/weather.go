package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultOpenMeteoBaseURL  = "https://api.open-meteo.com/v1"
	DefaultWeatherAPIBaseURL = "https://api.weatherapi.com/v1"
)

type coordinates struct {
	Lat float64
	Lon float64
}

// Known locations for the Open-Meteo client. Unknown locations fall back to
// Melbourne, matching the behavior the fleet was originally tuned for.
var knownLocations = map[string]coordinates{
	"melbourne": {Lat: -37.8136, Lon: 144.9631},
	"sydney":    {Lat: -33.8688, Lon: 151.2093},
	"london":    {Lat: 51.5074, Lon: -0.1278},
	"new york":  {Lat: 40.7128, Lon: -74.0060},
	"tokyo":     {Lat: 35.6762, Lon: 139.6503},
}

func geocode(location string) coordinates {
	if c, ok := knownLocations[strings.ToLower(strings.TrimSpace(location))]; ok {
		return c
	}
	return knownLocations["melbourne"]
}

func weatherLocation(q Query) (string, error) {
	if q.DataType != DataTypeWeather || q.Weather == nil {
		return "", fmt.Errorf("query is not a weather query")
	}
	location := strings.TrimSpace(q.Weather.Location)
	if location == "" {
		return "", fmt.Errorf("empty location")
	}
	return location, nil
}

// OpenMeteoClient reads the current temperature from the Open-Meteo forecast API.
type OpenMeteoClient struct {
	baseURL string
	client  *http.Client
}

func NewOpenMeteo(baseURL string, client *http.Client) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoBaseURL
	}
	return &OpenMeteoClient{baseURL: baseURL, client: client}
}

func (c *OpenMeteoClient) Name() string { return "Open-Meteo" }

func (c *OpenMeteoClient) Fetch(ctx context.Context, q Query) (float64, error) {
	location, err := weatherLocation(q)
	if err != nil {
		return 0, err
	}

	coords := geocode(location)
	u := fmt.Sprintf("%s/forecast?latitude=%.4f&longitude=%.4f&current=temperature_2m,precipitation",
		c.baseURL, coords.Lat, coords.Lon)

	var body struct {
		Current map[string]float64 `json:"current"`
	}
	if err := getJSON(ctx, c.client, u, &body); err != nil {
		return 0, fmt.Errorf("open-meteo request: %w", err)
	}

	temp, ok := body.Current["temperature_2m"]
	if !ok {
		return 0, fmt.Errorf("open-meteo: no temperature in response")
	}
	if err := finite(temp); err != nil {
		return 0, fmt.Errorf("open-meteo: %w", err)
	}
	return temp, nil
}

// WeatherAPIClient reads the current temperature from the WeatherAPI service.
// Requires an API key.
type WeatherAPIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewWeatherAPI(baseURL, apiKey string, client *http.Client) *WeatherAPIClient {
	if baseURL == "" {
		baseURL = DefaultWeatherAPIBaseURL
	}
	return &WeatherAPIClient{baseURL: baseURL, apiKey: apiKey, client: client}
}

func (c *WeatherAPIClient) Name() string { return "WeatherAPI" }

func (c *WeatherAPIClient) Fetch(ctx context.Context, q Query) (float64, error) {
	location, err := weatherLocation(q)
	if err != nil {
		return 0, err
	}

	u := fmt.Sprintf("%s/current.json?key=%s&q=%s", c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(location))

	var body struct {
		Current struct {
			TempC *float64 `json:"temp_c"`
		} `json:"current"`
	}
	if err := getJSON(ctx, c.client, u, &body); err != nil {
		return 0, fmt.Errorf("weatherapi request: %w", err)
	}

	if body.Current.TempC == nil {
		return 0, fmt.Errorf("weatherapi: no temperature in response")
	}
	if err := finite(*body.Current.TempC); err != nil {
		return 0, fmt.Errorf("weatherapi: %w", err)
	}
	return *body.Current.TempC, nil
}
