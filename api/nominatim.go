package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"nmcweather/internal/errorutil"
	"nmcweather/internal/logger"
)

// API Docs: https://nominatim.org/release-docs/develop/api/Reverse/
const DefaultGeocodeURL = "https://nominatim.openstreetmap.org/reverse"

// Address is the address breakdown returned by a reverse lookup
type Address struct {
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
	State        string `json:"state"`
	Province     string `json:"province"`
	City         string `json:"city"`
	Town         string `json:"town"`
	County       string `json:"county"`
	CityDistrict string `json:"city_district"`
	District     string `json:"district"`
	Suburb       string `json:"suburb"`
}

// ReverseResponse is the subset of the Nominatim reverse payload we use
type ReverseResponse struct {
	PlaceID     int     `json:"place_id"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
	Error       string  `json:"error,omitempty"`
}

// Geocoder turns coordinates into address components
type Geocoder struct {
	client  *resty.Client
	baseURL string
}

// NewGeocoder creates a reverse geocoder. Nominatim's usage policy requires an
// identifying User-Agent; language selects the names returned (e.g. "zh-CN").
func NewGeocoder(baseURL, userAgentHeader, language string) *Geocoder {
	if baseURL == "" {
		baseURL = DefaultGeocodeURL
	}
	if userAgentHeader == "" {
		userAgentHeader = userAgent
	}

	client := resty.New().
		SetHeader("User-Agent", userAgentHeader).
		SetTimeout(defaultTimeout)
	if language != "" {
		client.SetHeader("Accept-Language", language)
	}

	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.LogAPIResponse(resp.Request.Method, resp.Request.URL, resp.StatusCode(), resp.Time(), len(resp.Body()))
		return nil
	})

	return &Geocoder{client: client, baseURL: baseURL}
}

// Reverse looks up the address at lat/lon
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (*ReverseResponse, error) {
	complete := logger.LogOperationStart("reverse_geocode", map[string]any{
		"latitude":  lat,
		"longitude": lon,
	})

	start := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":            fmt.Sprintf("%f", lat),
			"lon":            fmt.Sprintf("%f", lon),
			"format":         "jsonv2",
			"addressdetails": "1",
			"zoom":           "14",
		}).
		Get(g.baseURL)
	if err != nil {
		netErr := errorutil.NewNetworkError("reverse geocode", g.baseURL, err)
		complete(netErr)
		return nil, netErr
	}
	if !resp.IsSuccess() {
		netErr := errorutil.NewStatusError("reverse geocode", g.baseURL, resp.StatusCode())
		complete(netErr)
		return nil, netErr
	}

	var result ReverseResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		decodeErr := errorutil.NewDecodeError("reverse geocode", err)
		complete(decodeErr)
		return nil, decodeErr
	}
	if result.Error != "" {
		err := fmt.Errorf("no address at %f,%f: %s", lat, lon, result.Error)
		complete(err)
		return nil, err
	}

	complete(nil)
	logger.Debug("Reverse geocoding resolved %s in %s", result.DisplayName, time.Since(start))
	return &result, nil
}
